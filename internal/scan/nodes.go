package scan

import (
	"go/token"
	"go/types"

	"golang.org/x/tools/go/packages"

	"github.com/alecthomas/rig"
	"github.com/alecthomas/rig/internal/directive"
)

// A Provider represents a //rig:provider constructor for a type.
type Provider struct {
	// Position is the position of the function declaration.
	Position  token.Position
	Directive *directive.DirectiveProvider
	// Function is the function that provides the type.
	Function *types.Func
	// Package is the package that contains the function.
	Package  *packages.Package
	Provides types.Type
	Requires []types.Type
}

var _ rig.Node = (*Provider)(nil)

func (p *Provider) NodeKey() rig.Key { return rig.Key(p.Function.FullName()) }
func (p *Provider) String() string   { return p.Function.FullName() }

// A Root represents a //rig:root planning target.
type Root struct {
	// Position is the position of the function declaration.
	Position token.Position
	// Name is the name given in the directive, defaulting to the function
	// name.
	Name     string
	Function *types.Func
	// Package is the package that contains the function.
	Package  *packages.Package
	Requires []types.Type
}

var _ rig.Node = (*Root)(nil)

func (r *Root) NodeKey() rig.Key { return rig.Key(r.Function.FullName()) }
func (r *Root) String() string   { return r.Function.FullName() }

// An External represents a //rig:external type: an externally provided leaf
// the planner never expands and generated code accepts as a parameter.
// context.Context is implicitly external.
type External struct {
	// Position is the position of the type declaration; zero for implicit
	// externals.
	Position token.Position
	Type     types.Type
}

var _ rig.Node = (*External)(nil)

func (e *External) NodeKey() rig.Key { return rig.Key(types.TypeString(e.Type, nil)) }
func (e *External) String() string   { return types.TypeString(e.Type, nil) }

// A Missing stands in for a concrete type with no provider, so that an
// unresolvable argument reports the type that would have been needed.
type Missing struct {
	Type types.Type
}

var _ rig.Node = (*Missing)(nil)

func (m *Missing) NodeKey() rig.Key { return rig.Key(types.TypeString(m.Type, nil)) }
func (m *Missing) String() string   { return types.TypeString(m.Type, nil) }
