// Package scan statically collects //rig:... annotated functions and types
// and exposes them as a plannable dependency universe.
//
// Three annotations are recognised:
//
//   - //rig:provider [weak] on a constructor function makes it a candidate
//     for its result type. Strong providers rank ahead of weak ones;
//     declaration order breaks ties.
//   - //rig:external on a type declaration marks it externally provided: the
//     planner treats it as an opaque leaf and generated code accepts it as a
//     parameter. Externals match their exact type, plus any interface the
//     type is assignable to.
//   - //rig:root [name] on a function marks it a default planning target.
//
// The resulting [Graph] implements [rig.Introspector], so plans over the
// scanned universe come straight from [rig.NewPlan].
package scan

import (
	"context"
	"go/ast"
	"go/token"
	"go/types"
	"log"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"

	"github.com/alecthomas/errors"
	"golang.org/x/mod/modfile"
	"golang.org/x/tools/go/packages"

	"github.com/alecthomas/rig/internal/directive"
)

type scanOptions struct {
	// Roots to select, defaulting to every //rig:root function if nil.
	roots []string
	// Additional package patterns to search for annotations.
	patterns []string
	// Build tags passed through to the package loader.
	tags  []string
	debug bool
}

type Option func(*scanOptions) error

// WithRoots selects the named roots instead of every //rig:root function.
func WithRoots(roots ...string) Option {
	return func(o *scanOptions) error {
		o.roots = roots
		return nil
	}
}

// WithPatterns adds additional package patterns to search for annotations.
func WithPatterns(patterns ...string) Option {
	return func(o *scanOptions) error {
		o.patterns = patterns
		return nil
	}
}

// WithTags sets build tags applied while loading packages.
func WithTags(tags ...string) Option {
	return func(o *scanOptions) error {
		o.tags = append(o.tags, tags...)
		return nil
	}
}

// WithDebug enables debug logging from the package loader.
func WithDebug(enable bool) Option {
	return func(o *scanOptions) error {
		o.debug = enable
		return nil
	}
}

func WithOptions(options ...Option) Option {
	return func(o *scanOptions) error {
		for _, opt := range options {
			if err := opt(o); err != nil {
				return errors.WithStack(err)
			}
		}
		return nil
	}
}

var fset = token.NewFileSet()

// Analyse statically loads Go packages, then analyses them for //rig:...
// annotations in order to build the dependency universe for dest.
func Analyse(ctx context.Context, dest string, options ...Option) (*Graph, error) {
	opts := &scanOptions{}
	for _, opt := range options {
		if err := opt(opts); err != nil {
			return nil, errors.WithStack(err)
		}
	}

	destImport, err := importPathForDir(dest)
	if err != nil {
		return nil, errors.Errorf("failed to determine import path for destination directory %s: %w", dest, err)
	}

	cfg := &packages.Config{
		Context: ctx,
		Fset:    fset,
		Mode: packages.NeedName | packages.NeedFiles | packages.NeedCompiledGoFiles |
			packages.NeedImports | packages.NeedTypes | packages.NeedSyntax |
			packages.NeedTypesInfo,
	}
	if opts.debug {
		cfg.Logf = log.Printf
	}
	if len(opts.tags) > 0 {
		cfg.BuildFlags = []string{"-tags=" + strings.Join(opts.tags, ",")}
	}
	opts.patterns = append(opts.patterns, "github.com/alecthomas/rig/providers/...")
	pkgs, err := packages.Load(cfg, append(opts.patterns, dest)...)
	if err != nil {
		return nil, errors.Errorf("failed to load packages: %w", err)
	}

	graph := &Graph{
		byType:    map[string][]*Provider{},
		externals: map[string]*External{},
	}
	for _, pkg := range pkgs {
		if pkg.PkgPath == destImport {
			graph.Dest = pkg.Types
		}
		if err := analysePackage(pkg, graph); err != nil {
			return nil, err
		}
	}
	if graph.Dest == nil {
		return nil, errors.Errorf("destination package %q not found", destImport)
	}

	// Strong providers rank ahead of weak ones; declaration order breaks
	// ties. Candidate lists inherit this order.
	slices.SortFunc(graph.Providers, func(a, b *Provider) int {
		if a.Directive.Weak != b.Directive.Weak {
			if a.Directive.Weak {
				return 1
			}
			return -1
		}
		return comparePositions(a.Position, b.Position)
	})
	slices.SortFunc(graph.Externals, func(a, b *External) int { return comparePositions(a.Position, b.Position) })
	slices.SortFunc(graph.Roots, func(a, b *Root) int { return comparePositions(a.Position, b.Position) })

	for _, provider := range graph.Providers {
		key := types.TypeString(provider.Provides, nil)
		graph.byType[key] = append(graph.byType[key], provider)
	}
	for _, ext := range graph.Externals {
		graph.externals[types.TypeString(ext.Type, nil)] = ext
	}

	if len(opts.roots) > 0 {
		selected := make([]*Root, 0, len(opts.roots))
		for _, name := range opts.roots {
			root, ok := graph.RootByName(name)
			if !ok {
				return nil, errors.Errorf("root %q not found", name)
			}
			selected = append(selected, root)
		}
		graph.Roots = selected
	}

	return graph, nil
}

func comparePositions(a, b token.Position) int {
	if c := strings.Compare(a.Filename, b.Filename); c != 0 {
		return c
	}
	return a.Line - b.Line
}

// Parse a directive from a comment. Will return (nil, nil) if a directive is
// not found.
func parseDirective(doc *ast.CommentGroup) (directive.Directive, error) {
	if doc == nil {
		return nil, nil
	}
	for _, comment := range doc.List {
		if strings.HasPrefix(comment.Text, "//rig:") {
			return directive.Parse(comment.Text[2:])
		}
	}
	return nil, nil
}

func analysePackage(pkg *packages.Package, graph *Graph) error {
	for _, file := range pkg.Syntax {
		for _, decl := range file.Decls {
			switch decl := decl.(type) {
			case *ast.FuncDecl:
				dir, err := parseDirective(decl.Doc)
				if err != nil {
					return errors.Errorf("%s: %w", fset.Position(decl.Pos()), err)
				} else if dir == nil {
					continue
				}
				switch dir := dir.(type) {
				case *directive.DirectiveProvider:
					provider, err := createProvider(decl, pkg, dir)
					if err != nil {
						return err
					}
					if provider != nil {
						graph.Providers = append(graph.Providers, provider)
					}

				case *directive.DirectiveRoot:
					root, err := createRoot(decl, pkg, dir)
					if err != nil {
						return err
					}
					if root != nil {
						graph.Roots = append(graph.Roots, root)
					}

				default:
					return errors.Errorf("%s: //%s is not valid on a function", fset.Position(decl.Pos()), dir)
				}

			case *ast.GenDecl:
				dir, err := parseDirective(decl.Doc)
				if err != nil {
					return errors.Errorf("%s: %w", fset.Position(decl.Pos()), err)
				} else if dir == nil {
					continue
				}
				for _, spec := range decl.Specs {
					typeSpec, ok := spec.(*ast.TypeSpec)
					if !ok {
						continue
					}
					switch dir := dir.(type) {
					case *directive.DirectiveExternal:
						extType := pkg.TypesInfo.TypeOf(typeSpec.Name)
						if extType != nil {
							graph.Externals = append(graph.Externals, &External{
								Position: fset.Position(typeSpec.Pos()),
								Type:     extType,
							})
						}

					default:
						return errors.Errorf("%s: //%s is not valid on a type declaration", fset.Position(typeSpec.Pos()), dir)
					}
				}
			}
		}
	}
	return nil
}

func createProvider(fn *ast.FuncDecl, pkg *packages.Package, dir *directive.DirectiveProvider) (*Provider, error) {
	funcObj := typedFunc(pkg, fn)
	if funcObj == nil {
		return nil, nil
	}
	sig := funcObj.Signature()
	results := sig.Results()
	if results.Len() == 0 || results.Len() > 2 {
		return nil, errors.Errorf("provider function %s must return (T) or (T, error)", fn.Name.Name)
	}
	if results.Len() == 2 && !isErrorType(results.At(1).Type()) {
		return nil, errors.Errorf("provider function %s second return value must be error", fn.Name.Name)
	}
	provided := results.At(0).Type()
	if isErrorType(provided) {
		return nil, errors.Errorf("provider function %s must return (T) or (T, error)", fn.Name.Name)
	}
	return &Provider{
		Position:  fset.Position(fn.Pos()),
		Directive: dir,
		Function:  funcObj,
		Package:   pkg,
		Provides:  provided,
		Requires:  paramTypes(sig),
	}, nil
}

func createRoot(fn *ast.FuncDecl, pkg *packages.Package, dir *directive.DirectiveRoot) (*Root, error) {
	if fn.Recv != nil {
		return nil, errors.Errorf("%s: //rig:root is only valid on functions, not methods: %s", fset.Position(fn.Pos()), fn.Name.Name)
	}
	funcObj := typedFunc(pkg, fn)
	if funcObj == nil {
		return nil, nil
	}
	sig := funcObj.Signature()
	results := sig.Results()
	switch {
	case results.Len() == 2 && !isErrorType(results.At(1).Type()):
		return nil, errors.Errorf("function %s second return value must be error", fn.Name.Name)
	case results.Len() > 2:
		return nil, errors.Errorf("function %s can only return one or two values", fn.Name.Name)
	}
	name := dir.Name
	if name == "" {
		name = funcObj.Name()
	}
	return &Root{
		Position: fset.Position(fn.Pos()),
		Name:     name,
		Function: funcObj,
		Package:  pkg,
		Requires: paramTypes(sig),
	}, nil
}

// typedFunc resolves a declaration to its type checked function object, or
// nil for declarations the type checker rejected.
func typedFunc(pkg *packages.Package, fn *ast.FuncDecl) *types.Func {
	funcObj, ok := pkg.TypesInfo.ObjectOf(fn.Name).(*types.Func)
	if !ok {
		return nil
	}
	return funcObj
}

func paramTypes(sig *types.Signature) []types.Type {
	params := sig.Params()
	out := make([]types.Type, params.Len())
	for i := range params.Len() {
		out[i] = params.At(i).Type()
	}
	return out
}

var errorType = types.Universe.Lookup("error").Type()

func isErrorType(t types.Type) bool {
	return types.Identical(t, errorType)
}

func isContextType(t types.Type) bool {
	named, ok := t.(*types.Named)
	if !ok {
		return false
	}
	obj := named.Obj()
	return obj.Name() == "Context" && obj.Pkg() != nil && obj.Pkg().Path() == "context"
}

// importPathForDir maps a directory to its import path by locating the
// enclosing go.mod. Arguments that are already import paths pass through
// unchanged.
func importPathForDir(dir string) (string, error) {
	if !modfile.IsDirectoryPath(dir) {
		return dir, nil
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", errors.WithStack(err)
	}
	for root := abs; ; root = filepath.Dir(root) {
		data, err := os.ReadFile(filepath.Join(root, "go.mod")) //nolint:gosec
		if errors.Is(err, os.ErrNotExist) {
			if filepath.Dir(root) == root {
				return "", errors.Errorf("no go.mod found above %s", abs)
			}
			continue
		} else if err != nil {
			return "", errors.WithStack(err)
		}
		module := modfile.ModulePath(data)
		if module == "" {
			return "", errors.Errorf("%s does not declare a module path", filepath.Join(root, "go.mod"))
		}
		rel, err := filepath.Rel(root, abs)
		if err != nil {
			return "", errors.WithStack(err)
		}
		return path.Join(module, filepath.ToSlash(rel)), nil
	}
}
