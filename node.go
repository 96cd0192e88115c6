package rig

// Key uniquely identifies a [Node] within one planning call.
//
// Keys are how the planner compares nodes: two nodes with equal keys are the
// same node. Keys must be stable for the duration of a call.
type Key string

// A Node is one constructible unit in the dependency universe: a constructor,
// a plain function, or a type standing in for whatever provides it.
//
// Nodes are opaque to the planner. It never fabricates them: every node in a
// [Plan] was supplied by the caller, the [Introspector], or an override.
type Node interface {
	// NodeKey returns the identity of this node.
	NodeKey() Key
	// String returns a human-readable reference for diagnostics.
	String() string
}

// A Requirement describes one parameter of a node: its name and the candidate
// nodes that could satisfy it, in declaration/priority order.
//
// An empty candidate list means no information is available for the parameter,
// eg. an interface with no bound implementations in the runtime layer.
type Requirement struct {
	Name       string
	Candidates []Node
}

// Introspector reports the parameters of a node.
//
// Implementations must be side-effect free and must return the same result
// for the same node within one planning call. Requirements are returned in
// declared parameter order; the planner preserves that order in the resulting
// [Step].
//
// An error aborts planning and is returned to the caller unmodified; the
// planner neither wraps nor reinterprets introspection failures.
type Introspector interface {
	Requirements(node Node) ([]Requirement, error)
}

// IntrospectorFunc adapts a function to the [Introspector] interface.
type IntrospectorFunc func(node Node) ([]Requirement, error)

func (f IntrospectorFunc) Requirements(node Node) ([]Requirement, error) { return f(node) }
