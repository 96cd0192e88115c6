package rig

import (
	"strings"
)

// An Arg is one resolved parameter of a [Step]: the parameter name and the
// node chosen to satisfy it.
type Arg struct {
	Name string
	Node Node
}

// A Step is one construction task in a [Plan]: invoke Node with the arguments
// named in Args. Args are in declared parameter order.
//
// Every node referenced by Args appears as the Node of a strictly earlier
// Step in the same plan.
type Step struct {
	Node Node
	Args []Arg
}

// Arg returns the node bound to the named parameter, if any.
func (s Step) Arg(name string) (Node, bool) {
	for _, arg := range s.Args {
		if arg.Name == name {
			return arg.Node, true
		}
	}
	return nil, false
}

func (s Step) String() string {
	if len(s.Args) == 0 {
		return s.Node.String()
	}
	parts := make([]string, 0, len(s.Args))
	for _, arg := range s.Args {
		parts = append(parts, arg.Name+"="+arg.Node.String())
	}
	return s.Node.String() + " (" + strings.Join(parts, ", ") + ")"
}

// A Plan is an ordered sequence of construction steps.
//
// Dependencies precede dependents, each node appears at most once, and the
// final step is always the planning root. Plans are immutable once returned.
type Plan struct {
	steps []Step
	index map[Key]int
	// resolved reports whether every parameter of the root was bound. Always
	// true for plans produced under full completion; may be false under
	// partial completion.
	resolved bool
}

func newPlan() *Plan {
	return &Plan{index: map[Key]int{}}
}

// append adds a step for a node not yet present in the plan.
func (p *Plan) append(step Step) {
	p.index[step.Node.NodeKey()] = len(p.steps)
	p.steps = append(p.steps, step)
}

// merge copies steps from other into p, skipping nodes already present.
func (p *Plan) merge(other *Plan) {
	for _, step := range other.steps {
		if !p.Contains(step.Node.NodeKey()) {
			p.append(step)
		}
	}
}

// Steps returns the construction steps in execution order.
func (p *Plan) Steps() []Step { return p.steps }

// Len returns the number of steps in the plan.
func (p *Plan) Len() int { return len(p.steps) }

// Contains reports whether the plan has a step for key.
func (p *Plan) Contains(key Key) bool {
	_, ok := p.index[key]
	return ok
}

// Step returns the step for key, if present.
func (p *Plan) Step(key Key) (Step, bool) {
	i, ok := p.index[key]
	if !ok {
		return Step{}, false
	}
	return p.steps[i], true
}

// Target returns the final step, which always corresponds to the planning
// root.
func (p *Plan) Target() Step {
	return p.steps[len(p.steps)-1]
}

// Dependencies returns every step except the final root step.
func (p *Plan) Dependencies() []Step {
	return p.steps[:len(p.steps)-1]
}

// FullyResolved reports whether every parameter of the root was bound.
//
// Under full completion this is always true. Under partial completion it is
// false when one or more root parameters were left for the caller to supply.
func (p *Plan) FullyResolved() bool { return p.resolved }

// FinalArgs resolves the root step's bound arguments against instances,
// typically the result of building [Plan.Dependencies]. Use it to invoke the
// root by hand when the plan is not fully resolved, merging in the arguments
// the planner could not bind. Arguments without an instance are omitted.
func (p *Plan) FinalArgs(instances map[Key]any) map[string]any {
	target := p.Target()
	out := make(map[string]any, len(target.Args))
	for _, arg := range target.Args {
		if value, ok := instances[arg.Node.NodeKey()]; ok {
			out[arg.Name] = value
		}
	}
	return out
}

// String renders the plan one step per line, in execution order.
func (p *Plan) String() string {
	lines := make([]string, 0, len(p.steps))
	for _, step := range p.steps {
		lines = append(lines, step.String())
	}
	return strings.Join(lines, "\n")
}
