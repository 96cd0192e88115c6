package rig

import (
	"slices"

	"github.com/alecthomas/errors"
)

// An override redirects requested nodes to replacements during candidate
// selection. The zero value never overrides.
type override struct {
	fn        func(Node) Node
	recursive bool
}

// apply returns the effective node for a candidate, and the override that
// propagates to the effective node's own dependencies.
//
// An unaffected candidate keeps the current override for its children. A
// replaced candidate propagates the override only under recursive
// substitution; otherwise the replacement's subtree sees no overrides at all,
// so a replacement may depend on the very node it replaces. Under recursive
// substitution that shape is reported as a cyclic dependency instead.
func (o override) apply(node Node) (Node, override) {
	if o.fn == nil {
		return node, o
	}
	replacement := o.fn(node)
	if replacement == nil || replacement.NodeKey() == node.NodeKey() {
		return node, o
	}
	if o.recursive {
		return replacement, o
	}
	return replacement, override{}
}

type planOptions struct {
	injectable func(Node) bool
	external   func(Node) bool
	override   func(Node) Node
	recursive  bool
	full       bool
}

// An Option configures a single call to [NewPlan].
type Option func(*planOptions) error

// WithInjectable marks the given nodes as injectable: the planner will
// recursively resolve their own parameters. Repeated use accumulates.
func WithInjectable(nodes ...Node) Option {
	return func(o *planOptions) error {
		set := make(map[Key]bool, len(nodes))
		for _, node := range nodes {
			set[node.NodeKey()] = true
		}
		prev := o.injectable
		o.injectable = func(node Node) bool {
			return set[node.NodeKey()] || (prev != nil && prev(node))
		}
		return nil
	}
}

// WithInjectableFunc sets the injectable policy to a predicate, replacing any
// previously configured policy.
func WithInjectableFunc(fn func(Node) bool) Option {
	return func(o *planOptions) error {
		o.injectable = fn
		return nil
	}
}

// WithExternallyProvided marks the given nodes as opaque leaves whose values
// arrive from outside the plan. Their parameters are never inspected.
// Repeated use accumulates.
func WithExternallyProvided(nodes ...Node) Option {
	return func(o *planOptions) error {
		set := make(map[Key]bool, len(nodes))
		for _, node := range nodes {
			set[node.NodeKey()] = true
		}
		prev := o.external
		o.external = func(node Node) bool {
			return set[node.NodeKey()] || (prev != nil && prev(node))
		}
		return nil
	}
}

// WithExternallyProvidedFunc sets the externally-provided policy to a
// predicate, replacing any previously configured policy.
func WithExternallyProvidedFunc(fn func(Node) bool) Option {
	return func(o *planOptions) error {
		o.external = fn
		return nil
	}
}

// WithOverride substitutes one node for another during candidate selection.
// Repeated use accumulates; the most recent substitution for a node wins.
func WithOverride(from, to Node) Option {
	key := from.NodeKey()
	return WithOverrideFunc(func(node Node) Node {
		if node.NodeKey() == key {
			return to
		}
		return nil
	})
}

// WithOverrideFunc adds an override function consulted during candidate
// selection. A return of nil, or of the node itself, leaves the candidate
// unaffected. Functions added later are consulted first.
func WithOverrideFunc(fn func(Node) Node) Option {
	return func(o *planOptions) error {
		prev := o.override
		o.override = func(node Node) Node {
			if replacement := fn(node); replacement != nil {
				return replacement
			}
			if prev != nil {
				return prev(node)
			}
			return nil
		}
		return nil
	}
}

// WithRecursiveOverrides controls whether overrides apply transitively within
// a replacement's own dependency tree. Off by default, so a replacement may
// depend on the node it replaces.
func WithRecursiveOverrides(enable bool) Option {
	return func(o *planOptions) error {
		o.recursive = enable
		return nil
	}
}

// WithFullCompletion requires every parameter of the root to be bound.
// Off by default: unresolvable root parameters are then silently left for
// the caller to supply by hand. Dependencies are always planned with full
// completion regardless of this setting.
func WithFullCompletion(enable bool) Option {
	return func(o *planOptions) error {
		o.full = enable
		return nil
	}
}

// NewPlan computes the construction plan for root.
//
// Nothing is injectable, nothing is externally provided, and nothing is
// overridden unless options say otherwise. The root itself is exempt from the
// injectable policy so that a partially resolvable root still yields a plan
// (or an [*UnresolvedError] describing why it cannot).
//
// An externally provided root short-circuits to the trivial one-step plan.
//
// Errors from the introspector are returned unmodified. All other failures
// are reported as a single [*UnresolvedError].
func NewPlan(root Node, in Introspector, options ...Option) (*Plan, error) {
	opts := &planOptions{}
	for _, option := range options {
		if err := option(opts); err != nil {
			return nil, errors.WithStack(err)
		}
	}
	if opts.injectable == nil {
		opts.injectable = func(Node) bool { return false }
	}
	if opts.external == nil {
		opts.external = func(Node) bool { return false }
	}
	p := &planner{in: in, injectable: opts.injectable, external: opts.external}
	ov := override{fn: opts.override, recursive: opts.recursive}
	plan, unresolved, err := p.expand(root, ov, opts.full, nil)
	if err != nil {
		return nil, err
	}
	if len(unresolved) > 0 {
		return nil, &UnresolvedError{Node: root, Arguments: unresolved}
	}
	return plan, nil
}

// planner carries the policies for one planning call. The accumulating plan,
// unresolved causes and dependency stack are all threaded explicitly through
// expand, so a planner is free of mutable state.
type planner struct {
	in         Introspector
	injectable func(Node) bool
	external   func(Node) bool
}

// expand is one frame of the depth-first plan construction. It returns the
// frame's accumulated plan and the causes, grouped by argument, that
// prevented full resolution. err is non-nil only when introspection failed,
// which aborts planning entirely.
//
// full requires every parameter to be bound; it is forced on for every
// non-root frame, since a selected dependency must always be fully
// resolvable. A chosen candidate whose own expansion failed is an error even
// when full is off.
func (p *planner) expand(node Node, ov override, full bool, stack []Node) (*Plan, []ArgumentCauses, error) {
	plan := newPlan()

	// Externally provided nodes are opaque: one step, no requirements
	// inspected, always fully resolved.
	if p.external(node) {
		plan.append(Step{Node: node})
		plan.resolved = true
		return plan, nil, nil
	}

	// Selection guarantees every non-root node reaching this point is
	// injectable. The root is planned regardless, so an unresolvable root
	// surfaces as causes rather than a fault.
	if slices.ContainsFunc(stack, func(n Node) bool { return n.NodeKey() == node.NodeKey() }) {
		// A cyclic frame terminates before inspecting any parameters; the
		// selecting parent associates the cause with its own argument.
		cycle := Cycle{Node: node, Stack: slices.Clone(stack)}
		return plan, []ArgumentCauses{{Causes: []Cause{cycle}}}, nil
	}
	// Copy-on-extend: sibling branches never share or mutate the stack.
	stack = append(slices.Clone(stack), node)

	reqs, err := p.in.Requirements(node)
	if err != nil {
		return nil, nil, err
	}

	var (
		args       []Arg
		unresolved []ArgumentCauses
	)
	for _, req := range reqs {
		chosen, childOv := selectCandidate(req.Candidates, p.injectable, p.external, ov)
		if chosen == nil {
			if !full {
				// Partial completion: the argument is silently left for the
				// caller. Only the true root is ever planned partially.
				continue
			}
			var cause Cause
			if len(req.Candidates) == 0 {
				cause = NoCandidates{Param: req.Name, Node: node}
			} else {
				cause = Rejected{Param: req.Name, Node: node, Candidates: req.Candidates}
			}
			unresolved = append(unresolved, ArgumentCauses{Name: req.Name, Causes: []Cause{cause}})
			continue
		}
		if !plan.Contains(chosen.NodeKey()) {
			subPlan, subUnresolved, err := p.expand(chosen, childOv, true, stack)
			if err != nil {
				return nil, nil, err
			}
			if len(subUnresolved) > 0 {
				// A chosen but unplannable dependency is fatal regardless of
				// completion mode. The sub-plan is discarded.
				unresolved = append(unresolved, ArgumentCauses{Name: req.Name, Causes: flattenCauses(subUnresolved)})
				continue
			}
			plan.merge(subPlan)
		}
		args = append(args, Arg{Name: req.Name, Node: chosen})
	}

	if len(unresolved) > 0 {
		return plan, unresolved, nil
	}
	plan.append(Step{Node: node, Args: args})
	plan.resolved = len(args) == len(reqs)
	return plan, nil, nil
}

// selectCandidate picks the first candidate accepted by policy, after
// applying the override, together with the override for the chosen
// candidate's own dependencies. Ties are broken by declaration order: the
// candidate list is the caller's priority order. A nil node means no
// candidate qualified.
func selectCandidate(candidates []Node, injectable, external func(Node) bool, ov override) (Node, override) {
	for _, candidate := range candidates {
		effective, childOv := ov.apply(candidate)
		if injectable(effective) || external(effective) {
			return effective, childOv
		}
	}
	return nil, ov
}
