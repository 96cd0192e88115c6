// Package directive implements a parser for rig's compiler directives.
package directive

import (
	"github.com/alecthomas/errors"
	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

var (
	annotationParser = participle.MustBuild[annotation](
		participle.Lexer(directiveLexer),
		participle.Union[Directive](&DirectiveProvider{}, &DirectiveExternal{}, &DirectiveRoot{}),
		participle.Elide("Whitespace"),
	)
	directiveLexer = lexer.MustSimple([]lexer.SimpleRule{
		{Name: "Ident", Pattern: `[a-zA-Z_][a-zA-Z0-9_]*`},
		{Name: "Punct", Pattern: `[:]`},
		{Name: "Whitespace", Pattern: `\s+`},
	})
)

type annotation struct {
	Directive Directive `parser:"'rig' ':' @@"`
}

type Directive interface {
	directive()
	// Validate the directive.
	Validate() error
	String() string
}

// DirectiveProvider marks a constructor function as a provider of its result
// type. Weak providers rank after strong ones when a type has several.
type DirectiveProvider struct {
	Weak bool `parser:"'provider' @'weak'?"`
}

func (d *DirectiveProvider) directive() {}
func (d *DirectiveProvider) String() string {
	if d.Weak {
		return "rig:provider weak"
	}
	return "rig:provider"
}
func (d *DirectiveProvider) Validate() error { return nil }

// DirectiveExternal marks a type as an externally provided leaf: the planner
// treats it as opaque and generated code takes it as a parameter.
type DirectiveExternal struct {
	Marker bool `parser:"@'external'"`
}

func (d *DirectiveExternal) directive()      {}
func (d *DirectiveExternal) String() string  { return "rig:external" }
func (d *DirectiveExternal) Validate() error { return nil }

// DirectiveRoot marks a function as a default planning target. An optional
// name selects it with --root.
type DirectiveRoot struct {
	Name string `parser:"'root' @Ident?"`
}

func (d *DirectiveRoot) directive() {}
func (d *DirectiveRoot) String() string {
	if d.Name != "" {
		return "rig:root " + d.Name
	}
	return "rig:root"
}
func (d *DirectiveRoot) Validate() error { return nil }

// Parse a rig compiler directive.
func Parse(text string) (Directive, error) {
	if text == "" {
		return nil, errors.Errorf("empty directive")
	}
	result, err := annotationParser.ParseString("", text)
	if err != nil {
		return nil, errors.Errorf("failed to parse directive: %w", err)
	}
	if err := result.Directive.Validate(); err != nil {
		return nil, errors.WithStack(err)
	}
	return result.Directive, nil
}
