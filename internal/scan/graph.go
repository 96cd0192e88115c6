package scan

import (
	"fmt"
	"go/types"
	"hash/fnv"
	"path"
	"strings"

	"github.com/alecthomas/errors"

	"github.com/alecthomas/rig"
)

// Graph is the scanned dependency universe. It implements
// [rig.Introspector], so [rig.NewPlan] works over it directly.
type Graph struct {
	// Dest is the destination package being planned for.
	Dest *types.Package
	// Providers, strong before weak, declaration order within equal
	// strength.
	Providers []*Provider
	Externals []*External
	Roots     []*Root

	byType    map[string][]*Provider
	externals map[string]*External
}

var _ rig.Introspector = (*Graph)(nil)

// Requirements reports the parameters of a scanned function node, with the
// candidates for each parameter type.
func (g *Graph) Requirements(node rig.Node) ([]rig.Requirement, error) {
	switch node := node.(type) {
	case *Provider:
		return g.requirements(node.Function), nil
	case *Root:
		return g.requirements(node.Function), nil
	case *External, *Missing:
		return nil, nil
	default:
		return nil, errors.Errorf("node %s was not produced by this analysis", node)
	}
}

func (g *Graph) requirements(fn *types.Func) []rig.Requirement {
	params := fn.Signature().Params()
	out := make([]rig.Requirement, 0, params.Len())
	for i := range params.Len() {
		param := params.At(i)
		name := param.Name()
		if name == "" || name == "_" {
			name = fmt.Sprintf("p%d", i)
		}
		out = append(out, rig.Requirement{Name: name, Candidates: g.CandidatesFor(param.Type())})
	}
	return out
}

// CandidatesFor computes the ordered candidates for a parameter type: the
// matching external first, then exact providers, then for interfaces any
// assignable providers and externals. A concrete type with no candidates
// yields a [Missing] placeholder so diagnostics can name it.
func (g *Graph) CandidatesFor(t types.Type) []rig.Node {
	key := types.TypeString(t, nil)
	var out []rig.Node
	if ext, ok := g.externals[key]; ok {
		out = append(out, ext)
	} else if isContextType(t) {
		out = append(out, &External{Type: t})
	}
	for _, provider := range g.byType[key] {
		out = append(out, provider)
	}
	if types.IsInterface(t) {
		for _, provider := range g.Providers {
			if types.TypeString(provider.Provides, nil) == key {
				continue
			}
			if types.AssignableTo(provider.Provides, t) {
				out = append(out, provider)
			}
		}
		for _, ext := range g.Externals {
			if types.TypeString(ext.Type, nil) == key {
				continue
			}
			if types.AssignableTo(ext.Type, t) {
				out = append(out, ext)
			}
		}
		return out
	}
	if len(out) == 0 {
		out = append(out, &Missing{Type: t})
	}
	return out
}

// PlanOptions returns the planning policies for a scanned universe:
// providers are injectable, externals are externally provided.
func (g *Graph) PlanOptions() []rig.Option {
	return []rig.Option{
		rig.WithInjectableFunc(func(node rig.Node) bool {
			_, ok := node.(*Provider)
			return ok
		}),
		rig.WithExternallyProvidedFunc(func(node rig.Node) bool {
			_, ok := node.(*External)
			return ok
		}),
	}
}

// Plan computes the construction plan for root. Explicit options take
// precedence over the graph's own policies.
func (g *Graph) Plan(root *Root, options ...rig.Option) (*rig.Plan, error) {
	return rig.NewPlan(root, g, append(g.PlanOptions(), options...)...)
}

// RootByName finds a root by its directive name, function name or fully
// qualified function name.
func (g *Graph) RootByName(name string) (*Root, bool) {
	for _, root := range g.Roots {
		if root.Name == name || root.Function.Name() == name || root.Function.FullName() == name {
			return root, true
		}
	}
	return nil, false
}

// ProviderByName finds a provider by its function name or fully qualified
// function name. With a bare name the first match in candidate order wins.
func (g *Graph) ProviderByName(name string) (*Provider, bool) {
	for _, provider := range g.Providers {
		if provider.Function.Name() == name || provider.Function.FullName() == name {
			return provider, true
		}
	}
	return nil, false
}

// Graph returns the dependency universe as a map from node to the type
// strings it requires. Providers are keyed by function, externals by type.
func (g *Graph) Graph() map[string][]string {
	result := make(map[string][]string)
	for _, provider := range g.Providers {
		deps := make([]string, 0, len(provider.Requires))
		for _, req := range provider.Requires {
			deps = append(deps, types.TypeString(req, types.RelativeTo(g.Dest)))
		}
		result[provider.Function.FullName()] = deps
	}
	for _, ext := range g.Externals {
		key := types.TypeString(ext.Type, types.RelativeTo(g.Dest))
		if _, exists := result[key]; !exists {
			result[key] = []string{}
		}
	}
	return result
}

// MissingDependencies returns, for each provider and root function, required
// types that nothing in the universe can satisfy.
func (g *Graph) MissingDependencies() map[*types.Func][]types.Type {
	out := map[*types.Func][]types.Type{}
	record := func(fn *types.Func, requires []types.Type) {
		for _, req := range requires {
			candidates := g.CandidatesFor(req)
			missing := len(candidates) == 0
			if len(candidates) == 1 {
				if _, ok := candidates[0].(*Missing); ok {
					missing = true
				}
			}
			if !missing {
				continue
			}
			duplicate := false
			for _, existing := range out[fn] {
				if types.Identical(existing, req) {
					duplicate = true
					break
				}
			}
			if !duplicate {
				out[fn] = append(out[fn], req)
			}
		}
	}
	for _, provider := range g.Providers {
		record(provider.Function, provider.Requires)
	}
	for _, root := range g.Roots {
		record(root.Function, root.Requires)
	}
	return out
}

// A TypeRef is a rendered reference to a type, relative to the destination
// package, plus the import (if any) needed to name it.
type TypeRef struct {
	// Import is the import spec for the type's package, eg.
	// `imp8a3b "database/sql"`. Empty for the destination package and
	// builtins.
	Import string
	// Ref is how the type is referenced in generated code, eg. "*imp8a3b.DB".
	Ref string
}

// TypeRef splits a type into its import spec and code reference.
//
// eg. *database/sql.DB would become
//
//	impe1d11ad6baa4124f "database/sql"
//	*impe1d11ad6baa4124f.DB
func (g *Graph) TypeRef(t types.Type) TypeRef {
	typ := types.TypeString(t, types.RelativeTo(g.Dest))
	var imp string
	if parts := strings.Split(typ, "."); len(parts) > 1 {
		imp = strings.TrimPrefix(strings.Join(parts[:len(parts)-1], "."), "*")
	}
	pointer := strings.HasPrefix(typ, "*")
	if strings.Contains(typ, "/") {
		typ = path.Base(typ)
	}
	if imp != "" {
		alias := g.ImportAlias(imp)
		imp = fmt.Sprintf("%s %q", alias, imp)
		_, typ, _ = strings.Cut(typ, ".")
		typ = alias + "." + typ
		if pointer {
			typ = "*" + typ
		}
	}
	return TypeRef{Import: imp, Ref: typ}
}

// ImportAlias returns a stable alias for the given package path, or "" if
// the package is the destination package.
func (g *Graph) ImportAlias(pkg string) string {
	if pkg == g.Dest.Path() {
		return ""
	}
	aliasID := fnv.New64a()
	aliasID.Write([]byte(pkg))
	return fmt.Sprintf("imp%x", aliasID.Sum64())
}
