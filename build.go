package rig

import (
	"github.com/alecthomas/errors"
)

// Constructor is implemented by nodes that can produce their own value at
// build time. args is keyed by parameter name, matching the step's bound
// arguments.
type Constructor interface {
	Construct(args map[string]any) (any, error)
}

// Build walks steps in order, constructing one value per step.
//
// A step whose node key is present in supplied is taken as-is; this is how
// externally provided leaves receive their values. Every other step's node
// must implement [Constructor]. By the plan's topological invariant, the
// arguments of each step have already been constructed when it runs.
//
// The result maps node keys to constructed values. Pass [Plan.Steps] to build
// everything including the root, or [Plan.Dependencies] to build only the
// root's arguments, eg. for a partially resolved plan whose root the caller
// invokes by hand via [Plan.FinalArgs].
func Build(steps []Step, supplied map[Key]any) (map[Key]any, error) {
	out := make(map[Key]any, len(steps))
	for _, step := range steps {
		key := step.Node.NodeKey()
		if value, ok := supplied[key]; ok {
			out[key] = value
			continue
		}
		ctor, ok := step.Node.(Constructor)
		if !ok {
			return nil, errors.Errorf("no value supplied for %s and it does not implement Constructor", step.Node)
		}
		args := make(map[string]any, len(step.Args))
		for _, arg := range step.Args {
			args[arg.Name] = out[arg.Node.NodeKey()]
		}
		value, err := ctor.Construct(args)
		if err != nil {
			return nil, errors.Errorf("%s: %w", step.Node, err)
		}
		out[key] = value
	}
	return out, nil
}
