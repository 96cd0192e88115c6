// Package codegen generates rig's bootstrap code.
//
// For every root in a scanned [scan.Graph] it emits one Build function that
// constructs the root's dependencies in plan order and finally invokes the
// root. Externally provided types become parameters of the Build function.
package codegen

import (
	"fmt"
	"go/token"
	"go/types"
	"io"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/alecthomas/errors"

	"github.com/alecthomas/rig"
	"github.com/alecthomas/rig/internal/codewriter"
	"github.com/alecthomas/rig/internal/scan"
	"github.com/alecthomas/rig/internal/strcase"
)

type genOptions struct {
	tags    []string
	options []rig.Option
}

// An Option configures a single call to [Generate].
type Option func(*genOptions) error

// WithTags adds build tags to the generated file.
func WithTags(tags ...string) Option {
	return func(o *genOptions) error {
		o.tags = append(o.tags, tags...)
		return nil
	}
}

// WithPlanOptions passes additional planning options through to
// [scan.Graph.Plan] for every root.
func WithPlanOptions(options ...rig.Option) Option {
	return func(o *genOptions) error {
		o.options = append(o.options, options...)
		return nil
	}
}

// Generate writes the bootstrap code for every root in the graph.
func Generate(out io.Writer, graph *scan.Graph, options ...Option) error {
	opts := &genOptions{}
	for _, option := range options {
		if err := option(opts); err != nil {
			return errors.WithStack(err)
		}
	}
	if len(graph.Roots) == 0 {
		return errors.New("no roots to generate code for")
	}
	w := codewriter.New(graph.Dest.Name())
	names := map[string]bool{}
	for i, root := range graph.Roots {
		if i > 0 {
			w.L("")
		}
		// Dependencies must be fully bound for straight-line calls, so
		// partial completion is never used here.
		planOptions := append([]rig.Option{rig.WithFullCompletion(true)}, opts.options...)
		plan, err := graph.Plan(root, planOptions...)
		if err != nil {
			return errors.Errorf("failed to plan %s: %w", root, err)
		}
		if err := generateRoot(w, graph, root, plan, uniqueName(names, "Build"+upperCamel(root.Name))); err != nil {
			return err
		}
	}

	header := "// Code generated by rig. DO NOT EDIT.\n\n"
	if len(opts.tags) > 0 {
		header += fmt.Sprintf("//go:build %s\n\n", strings.Join(opts.tags, " && "))
	}
	if _, err := io.WriteString(out, header); err != nil {
		return errors.Errorf("failed to write file: %w", err)
	}
	if _, err := out.Write(w.Bytes()); err != nil {
		return errors.Errorf("failed to write file: %w", err)
	}
	return nil
}

func generateRoot(w *codewriter.Writer, graph *scan.Graph, root *scan.Root, plan *rig.Plan, buildName string) error {
	deps := plan.Dependencies()
	names := map[rig.Key]string{}
	taken := map[string]bool{}

	// Provider steps become construction calls with v%d outputs.
	counter := 0
	for _, step := range deps {
		if constructible(step) {
			name := fmt.Sprintf("v%d", counter)
			counter++
			names[step.Node.NodeKey()] = name
			taken[name] = true
		}
	}

	// Everything else is externally provided and becomes a parameter, in
	// step order with any context.Context first.
	type param struct {
		name string
		typ  string
	}
	var params []param
	for _, step := range deps {
		if constructible(step) {
			continue
		}
		typ, ok := stepType(step.Node)
		if !ok {
			return errors.Errorf("cannot generate code for %s", step.Node)
		}
		if types.TypeString(typ, nil) == "context.Context" {
			w.Import("context")
			name := uniqueName(taken, "ctx")
			names[step.Node.NodeKey()] = name
			params = append([]param{{name: name, typ: "context.Context"}}, params...)
			continue
		}
		ref := graph.TypeRef(typ)
		if ref.Import != "" {
			w.Import(ref.Import)
		}
		name := uniqueName(taken, paramName(typ))
		names[step.Node.NodeKey()] = name
		params = append(params, param{name: name, typ: ref.Ref})
	}

	paramList := make([]string, 0, len(params))
	for _, p := range params {
		paramList = append(paramList, p.name+" "+p.typ)
	}

	results := root.Function.Signature().Results()
	var resultType types.Type
	hasErr := false
	switch results.Len() {
	case 1:
		if isErrorType(results.At(0).Type()) {
			hasErr = true
		} else {
			resultType = results.At(0).Type()
		}
	case 2:
		resultType = results.At(0).Type()
		hasErr = true
	}

	w.L("// %s resolves the dependencies of %s and invokes it.", buildName, root.Function.Name())
	failure := "return "
	if resultType == nil {
		w.L("func %s(%s) error {", buildName, strings.Join(paramList, ", "))
	} else {
		ref := graph.TypeRef(resultType)
		if ref.Import != "" {
			w.Import(ref.Import)
		}
		w.L("func %s(%s) (out %s, err error) {", buildName, strings.Join(paramList, ", "), ref.Ref)
		failure = "return out, "
	}
	w.In(func(w *codewriter.Writer) {
		for _, step := range deps {
			if !constructible(step) {
				continue
			}
			provider := step.Node.(*scan.Provider) //nolint:forcetypeassert
			call := fmt.Sprintf("%s(%s)", functionRef(w, graph, provider.Function), argList(step, names))
			if providerReturnsError(provider) {
				w.L("%s, err := %s", names[step.Node.NodeKey()], call)
				w.L("if err != nil {")
				w.In(func(w *codewriter.Writer) {
					w.Import("fmt")
					w.L(`%sfmt.Errorf("%s: %%w", err)`, failure, provider.Function.Name())
				})
				w.L("}")
			} else {
				w.L("%s := %s", names[step.Node.NodeKey()], call)
			}
		}
		call := fmt.Sprintf("%s(%s)", functionRef(w, graph, root.Function), argList(plan.Target(), names))
		switch {
		case resultType == nil && !hasErr:
			w.L("%s", call)
			w.L("return nil")
		case resultType == nil && hasErr:
			w.L("return %s", call)
		case !hasErr:
			w.L("return %s, nil", call)
		default:
			w.L("return %s", call)
		}
	})
	w.L("}")
	return nil
}

// constructible reports whether a step can be emitted as a provider call.
// A provider step with fewer bound arguments than parameters was externally
// provided at plan time, and becomes a parameter instead.
func constructible(step rig.Step) bool {
	provider, ok := step.Node.(*scan.Provider)
	return ok && len(step.Args) == len(provider.Requires)
}

func stepType(node rig.Node) (types.Type, bool) {
	switch node := node.(type) {
	case *scan.Provider:
		return node.Provides, true
	case *scan.External:
		return node.Type, true
	case *scan.Missing:
		return node.Type, true
	}
	return nil, false
}

func providerReturnsError(provider *scan.Provider) bool {
	results := provider.Function.Signature().Results()
	return results.Len() == 2
}

// functionRef renders a reference to fn, registering the import needed to
// name it from the destination package.
func functionRef(w *codewriter.Writer, graph *scan.Graph, fn *types.Func) string {
	name := fn.Name()
	if alias := graph.ImportAlias(fn.Pkg().Path()); alias != "" {
		w.Import(fmt.Sprintf("%s %q", alias, fn.Pkg().Path()))
		return alias + "." + name
	}
	return name
}

func argList(step rig.Step, names map[rig.Key]string) string {
	args := make([]string, 0, len(step.Args))
	for _, arg := range step.Args {
		args = append(args, names[arg.Node.NodeKey()])
	}
	return strings.Join(args, ", ")
}

func paramName(t types.Type) string {
	switch t := t.(type) {
	case *types.Pointer:
		return paramName(t.Elem())
	case *types.Named:
		name := lowerCamel(t.Obj().Name())
		if token.IsKeyword(name) {
			name += "_"
		}
		return name
	}
	return "arg"
}

func lowerCamel(name string) string {
	parts := strcase.Split(name)
	if len(parts) == 0 {
		return name
	}
	parts[0] = strings.ToLower(parts[0])
	return strings.Join(parts, "")
}

func upperCamel(name string) string {
	out := &strings.Builder{}
	for _, part := range strcase.Split(name) {
		r, size := utf8.DecodeRuneInString(part)
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			continue
		}
		out.WriteRune(unicode.ToUpper(r))
		out.WriteString(part[size:])
	}
	return out.String()
}

func uniqueName(taken map[string]bool, base string) string {
	name := base
	for i := 2; taken[name]; i++ {
		name = fmt.Sprintf("%s%d", base, i)
	}
	taken[name] = true
	return name
}

func isErrorType(t types.Type) bool {
	named, ok := t.(*types.Named)
	if !ok {
		return false
	}
	return named.Obj().Name() == "error" && named.Obj().Pkg() == nil
}
