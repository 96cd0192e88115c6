package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/alecthomas/errors"

	"github.com/alecthomas/rig"
	"github.com/alecthomas/rig/internal/scan"
)

type PlanCmd struct {
	External           []string `help:"Treat these node references as externally provided." placeholder:"REF"`
	Override           []string `help:"Substitute one provider for another during planning." placeholder:"FROM=TO"`
	RecursiveOverrides bool     `help:"Apply overrides inside overridden subtrees too."`
	Partial            bool     `help:"Leave unresolvable root parameters to the caller instead of failing."`
	Format             string   `help:"Output format." enum:"text,dot,json" default:"text"`

	analyseFlags `embed:""`
}

func (p *PlanCmd) Run(ctx context.Context) error {
	graph, err := p.analyse(ctx)
	if err != nil {
		return err
	}
	options, err := p.planOptions(graph)
	if err != nil {
		return err
	}
	plans, err := planRoots(graph, graph.Roots, options...)
	if err != nil {
		return err
	}
	switch p.Format {
	case "dot":
		renderPlansDOT(os.Stdout, plans)
	case "json":
		return renderPlansJSON(os.Stdout, plans)
	default:
		renderPlansText(os.Stdout, plans)
	}
	return nil
}

func (p *PlanCmd) planOptions(graph *scan.Graph) ([]rig.Option, error) {
	options := []rig.Option{}
	if !p.Partial {
		options = append(options, rig.WithFullCompletion(true))
	}
	if p.RecursiveOverrides {
		options = append(options, rig.WithRecursiveOverrides(true))
	}
	for _, ref := range p.External {
		options = append(options, rig.WithExternallyProvided(resolveRef(graph, ref)))
	}
	for _, spec := range p.Override {
		from, to, ok := strings.Cut(spec, "=")
		if !ok {
			return nil, errors.Errorf("override %q is not in FROM=TO form", spec)
		}
		target, found := graph.ProviderByName(to)
		if !found {
			return nil, errors.Errorf("override target %q is not a known provider", to)
		}
		options = append(options, rig.WithOverride(resolveRef(graph, from), target))
	}
	return options, nil
}

// A rootPlan pairs a root with its computed plan.
type rootPlan struct {
	Name string
	Plan *rig.Plan
}

func planRoots(graph *scan.Graph, roots []*scan.Root, options ...rig.Option) ([]rootPlan, error) {
	plans := make([]rootPlan, 0, len(roots))
	for _, root := range roots {
		plan, err := graph.Plan(root, options...)
		if err != nil {
			return nil, errors.Wrap(err, root.Function.FullName())
		}
		plans = append(plans, rootPlan{Name: root.Function.FullName(), Plan: plan})
	}
	return plans, nil
}

func renderPlansText(w io.Writer, plans []rootPlan) {
	for i, rp := range plans {
		if i > 0 {
			fmt.Fprintln(w)
		}
		if rp.Plan.FullyResolved() {
			fmt.Fprintf(w, "%s:\n", rp.Name)
		} else {
			fmt.Fprintf(w, "%s: (partial)\n", rp.Name)
		}
		for _, step := range rp.Plan.Steps() {
			fmt.Fprintf(w, "  %s\n", step)
		}
	}
}

type planStep struct {
	Node string            `json:"node"`
	Args map[string]string `json:"args,omitempty"`
}

func renderPlansJSON(w io.Writer, plans []rootPlan) error {
	out := make(map[string][]planStep, len(plans))
	for _, rp := range plans {
		steps := make([]planStep, 0, rp.Plan.Len())
		for _, step := range rp.Plan.Steps() {
			var args map[string]string
			if len(step.Args) > 0 {
				args = make(map[string]string, len(step.Args))
				for _, arg := range step.Args {
					args[arg.Name] = arg.Node.String()
				}
			}
			steps = append(steps, planStep{Node: step.Node.String(), Args: args})
		}
		out[rp.Name] = steps
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return errors.WithStack(enc.Encode(out))
}

// renderPlansDOT emits one digraph covering every plan, with edges labelled
// by parameter name. Shared steps are deduplicated.
func renderPlansDOT(w io.Writer, plans []rootPlan) {
	fmt.Fprintln(w, "digraph rig {")
	seen := map[string]bool{}
	emit := func(line string) {
		if !seen[line] {
			seen[line] = true
			fmt.Fprintln(w, line)
		}
	}
	for _, rp := range plans {
		for _, step := range rp.Plan.Steps() {
			if len(step.Args) == 0 {
				emit(fmt.Sprintf("\t%q;", step.Node))
				continue
			}
			for _, arg := range step.Args {
				emit(fmt.Sprintf("\t%q -> %q [label=%q];", step.Node, arg.Node, arg.Name))
			}
		}
	}
	fmt.Fprintln(w, "}")
}
