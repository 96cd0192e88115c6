package rig

import (
	"fmt"
	"strings"
)

// A Cause is one reason a parameter could not be bound during planning.
//
// Causes are data, not control flow: the planner collects them per argument
// while expanding and only converts them into a raised [*UnresolvedError] at a
// point where full completion was required but not achieved.
//
//sumtype:decl
type Cause interface {
	error
	// cause is a sealed interface
	cause()
}

// Cycle reports that a node was reached while it was already being expanded
// on the current dependency path.
type Cycle struct {
	// Node is the node that closed the cycle.
	Node Node
	// Stack is the dependency stack at the point of detection, outermost
	// first. Node is reachable from the last entry.
	Stack []Node
}

func (c Cycle) cause() {}

func (c Cycle) Error() string {
	parts := make([]string, 0, len(c.Stack)+1)
	for _, node := range c.Stack {
		parts = append(parts, node.String())
	}
	parts = append(parts, c.Node.String())
	return "cyclic dependency: " + strings.Join(parts, " -> ")
}

// NoCandidates reports a parameter with no candidate providers at all, ie.
// one for which no type information is available.
type NoCandidates struct {
	// Param is the parameter that could not be bound.
	Param string
	// Node is the node whose parameter it is.
	Node Node
}

func (n NoCandidates) cause() {}

func (n NoCandidates) Error() string {
	return fmt.Sprintf("parameter %q of %s has no candidate providers", n.Param, n.Node)
}

// Rejected reports a parameter whose candidates were all refused by policy:
// none were injectable or externally provided.
type Rejected struct {
	// Param is the parameter that could not be bound.
	Param string
	// Node is the node whose parameter it is.
	Node Node
	// Candidates are the candidates that were refused, in declaration order.
	Candidates []Node
}

func (r Rejected) cause() {}

func (r Rejected) Error() string {
	parts := make([]string, 0, len(r.Candidates))
	for _, candidate := range r.Candidates {
		parts = append(parts, candidate.String())
	}
	return fmt.Sprintf("no candidate for parameter %q of %s can be provided: tried %s",
		r.Param, r.Node, strings.Join(parts, ", "))
}

// ArgumentCauses collects the causes that prevented one argument of a node
// from being bound. A single argument may fail for several reasons, eg. two
// distinct cyclic paths.
type ArgumentCauses struct {
	Name   string
	Causes []Cause
}

// UnresolvedError is the only failure [NewPlan] raises for an unresolvable
// graph. It carries every cause, grouped by the root argument that produced
// it, in declared parameter order.
//
// Cyclic dependencies, missing type information and policy-rejected
// candidates are cases within the error, not distinct error types, so callers
// can inspect all of them without catching anything else.
type UnresolvedError struct {
	// Node is the planning root.
	Node Node
	// Arguments holds the causes per argument, in declared parameter order.
	Arguments []ArgumentCauses
}

func (u *UnresolvedError) Error() string {
	w := &strings.Builder{}
	fmt.Fprintf(w, "cannot fully resolve %s", u.Node)
	for _, arg := range u.Arguments {
		for _, cause := range arg.Causes {
			fmt.Fprintf(w, "\n  %s: %s", arg.Name, cause.Error())
		}
	}
	return w.String()
}

// Unwrap returns every cause so that [errors.Is] and [errors.As] can match
// individual cases.
func (u *UnresolvedError) Unwrap() []error {
	var out []error
	for _, arg := range u.Arguments {
		for _, cause := range arg.Causes {
			out = append(out, cause)
		}
	}
	return out
}

// Causes returns the causes recorded for the named argument, or nil.
func (u *UnresolvedError) Causes(arg string) []Cause {
	for _, a := range u.Arguments {
		if a.Name == arg {
			return a.Causes
		}
	}
	return nil
}

// flattenCauses merges per-argument causes into one ordered list, for
// attaching a failed sub-plan to the argument that selected it.
func flattenCauses(arguments []ArgumentCauses) []Cause {
	var out []Cause
	for _, arg := range arguments {
		out = append(out, arg.Causes...)
	}
	return out
}
