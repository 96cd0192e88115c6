package rig

import (
	"reflect"
	"runtime"
	"strconv"

	"github.com/alecthomas/errors"
)

var errType = reflect.TypeFor[error]()

// Registry is a runtime provider universe built with reflection.
//
// Register constructors with [Registry.Provide], interface implementations
// with [Registry.Bind], and externally provided values with
// [Registry.Supply]. The registry then acts as the [Introspector] for
// planning: for each parameter type of a node the candidates are, in order,
// a supplied value of that type, constructors registered for it, and, for
// interfaces, the candidates of each bound implementation in bind order.
//
// A registry is not safe for concurrent mutation; build it up front, then
// plan and build from it freely.
type Registry struct {
	providers map[reflect.Type][]*funcNode
	binds     map[reflect.Type][]reflect.Type
	supplied  map[reflect.Type]*suppliedNode
	names     map[string]int
}

var _ Introspector = (*Registry)(nil)

// NewRegistry creates an empty [Registry].
func NewRegistry() *Registry {
	return &Registry{
		providers: map[reflect.Type][]*funcNode{},
		binds:     map[reflect.Type][]reflect.Type{},
		supplied:  map[reflect.Type]*suppliedNode{},
		names:     map[string]int{},
	}
}

// Provide registers constructor functions of the form func(deps...) T or
// func(deps...) (T, error).
//
// Each constructor becomes a candidate for its result type. The first
// registration for a type heads its candidate list; later ones append, in
// registration order.
func (r *Registry) Provide(ctors ...any) error {
	for _, ctor := range ctors {
		node, err := r.newFuncNode(ctor, true)
		if err != nil {
			return errors.WithStack(err)
		}
		r.providers[node.out] = append(r.providers[node.out], node)
	}
	return nil
}

// Bind registers a concrete implementation for an interface, using
// pointer-to-interface markers:
//
//	registry.Bind((*Store)(nil), (*SQLStore)(nil))
//
// Candidates for the interface follow bind order. The implementation must
// itself be provided or supplied to be plannable.
func (r *Registry) Bind(iface, impl any) error {
	ifaceType := reflect.TypeOf(iface)
	if ifaceType == nil || ifaceType.Kind() != reflect.Ptr || ifaceType.Elem().Kind() != reflect.Interface {
		return errors.Errorf("Bind expects a pointer-to-interface marker such as (*Store)(nil), not %T", iface)
	}
	ifaceType = ifaceType.Elem()
	implType := reflect.TypeOf(impl)
	if implType == nil {
		return errors.Errorf("cannot bind an untyped nil to %s", ifaceType)
	}
	if !implType.Implements(ifaceType) {
		return errors.Errorf("%s does not implement %s", implType, ifaceType)
	}
	r.binds[ifaceType] = append(r.binds[ifaceType], implType)
	return nil
}

// Supply registers values as externally provided leaves. The planner never
// expands them, and [Registry.Build] hands them out as-is. A later value of
// the same type replaces an earlier one.
func (r *Registry) Supply(values ...any) error {
	for _, value := range values {
		t := reflect.TypeOf(value)
		if t == nil {
			return errors.Errorf("cannot supply an untyped nil")
		}
		r.supplied[t] = &suppliedNode{typ: t, value: value}
	}
	return nil
}

// SupplyAs registers a value as an externally provided leaf under an
// explicit interface, using a pointer-to-interface marker:
//
//	registry.SupplyAs(ctx, (*context.Context)(nil))
func (r *Registry) SupplyAs(value any, iface any) error {
	ifaceType := reflect.TypeOf(iface)
	if ifaceType == nil || ifaceType.Kind() != reflect.Ptr || ifaceType.Elem().Kind() != reflect.Interface {
		return errors.Errorf("SupplyAs expects a pointer-to-interface marker such as (*Store)(nil), not %T", iface)
	}
	ifaceType = ifaceType.Elem()
	valueType := reflect.TypeOf(value)
	if valueType == nil {
		return errors.Errorf("cannot supply an untyped nil as %s", ifaceType)
	}
	if !valueType.Implements(ifaceType) {
		return errors.Errorf("%s does not implement %s", valueType, ifaceType)
	}
	r.supplied[ifaceType] = &suppliedNode{typ: ifaceType, value: value}
	return nil
}

// Func wraps an arbitrary callable as a node, typically the root of a plan.
// Unlike a provider it may return nothing, a value, an error, or both.
func (r *Registry) Func(fn any) (Node, error) {
	node, err := r.newFuncNode(fn, false)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return node, nil
}

// For returns a node that plans a value of the target's type. Use a
// pointer-to-interface marker for interfaces:
//
//	node, err := registry.For((*Store)(nil)) // plans a Store
//	node, err := registry.For(&DAL{})        // plans a *DAL
func (r *Registry) For(target any) (Node, error) {
	t := reflect.TypeOf(target)
	if t == nil {
		return nil, errors.Errorf("cannot plan for an untyped nil")
	}
	if t.Kind() == reflect.Ptr && t.Elem().Kind() == reflect.Interface {
		t = t.Elem()
	}
	return &targetNode{typ: t}, nil
}

// Requirements implements [Introspector] over the registered universe.
func (r *Registry) Requirements(node Node) ([]Requirement, error) {
	switch node := node.(type) {
	case *funcNode:
		reqs := make([]Requirement, 0, len(node.params))
		for i, param := range node.params {
			reqs = append(reqs, Requirement{
				Name:       paramName(i),
				Candidates: r.candidatesFor(param, map[reflect.Type]bool{}),
			})
		}
		return reqs, nil
	case *targetNode:
		return []Requirement{{
			Name:       "value",
			Candidates: r.candidatesFor(node.typ, map[reflect.Type]bool{}),
		}}, nil
	case *suppliedNode, *missingNode:
		return nil, nil
	default:
		return nil, errors.Errorf("node %s was not produced by this registry", node)
	}
}

// Plan plans root over the registry with its default policies: registered
// constructors are injectable and supplied values are externally provided.
// Explicit options take precedence.
func (r *Registry) Plan(root Node, options ...Option) (*Plan, error) {
	defaults := []Option{
		WithInjectableFunc(func(node Node) bool {
			_, ok := node.(*funcNode)
			return ok
		}),
		WithExternallyProvidedFunc(func(node Node) bool {
			_, ok := node.(*suppliedNode)
			return ok
		}),
	}
	return NewPlan(root, r, append(defaults, options...)...)
}

// Build constructs the given steps. Every node a registry plan produces
// constructs itself, supplied leaves included, so no hand-built values are
// needed.
func (r *Registry) Build(steps []Step) (map[Key]any, error) {
	return Build(steps, nil)
}

// candidatesFor computes the ordered candidate nodes for a parameter type.
// seen guards against bind cycles.
func (r *Registry) candidatesFor(t reflect.Type, seen map[reflect.Type]bool) []Node {
	if seen[t] {
		return nil
	}
	seen[t] = true
	var out []Node
	if node, ok := r.supplied[t]; ok {
		out = append(out, node)
	}
	for _, provider := range r.providers[t] {
		out = append(out, provider)
	}
	if t.Kind() == reflect.Interface {
		// An interface with no candidates at all has no type information;
		// a concrete type always has at least an unprovidable placeholder.
		for _, impl := range r.binds[t] {
			out = append(out, r.candidatesFor(impl, seen)...)
		}
		return out
	}
	if len(out) == 0 {
		out = append(out, &missingNode{typ: t})
	}
	return out
}

func (r *Registry) newFuncNode(fn any, provider bool) (*funcNode, error) {
	v := reflect.ValueOf(fn)
	if !v.IsValid() || v.Kind() != reflect.Func {
		return nil, errors.Errorf("%T is not a function", fn)
	}
	t := v.Type()
	name := funcName(v)
	if t.IsVariadic() {
		return nil, errors.Errorf("function %s must not be variadic", name)
	}
	node := &funcNode{name: name, fn: v}
	switch t.NumOut() {
	case 0:
		if provider {
			return nil, errors.Errorf("provider function %s must return (T) or (T, error)", name)
		}
	case 1:
		if t.Out(0) == errType {
			if provider {
				return nil, errors.Errorf("provider function %s must return (T) or (T, error)", name)
			}
			node.hasErr = true
		} else {
			node.out = t.Out(0)
		}
	case 2:
		if t.Out(1) != errType {
			return nil, errors.Errorf("function %s second return value must be error", name)
		}
		if t.Out(0) == errType {
			return nil, errors.Errorf("provider function %s must return (T) or (T, error)", name)
		}
		node.out = t.Out(0)
		node.hasErr = true
	default:
		return nil, errors.Errorf("function %s can only return one or two values", name)
	}
	for i := range t.NumIn() {
		node.params = append(node.params, t.In(i))
	}
	node.key = r.keyFor(name)
	return node, nil
}

// keyFor derives a node key from a function name, discriminating duplicates
// so that separate registrations stay separate candidates.
func (r *Registry) keyFor(name string) Key {
	n := r.names[name]
	r.names[name] = n + 1
	if n == 0 {
		return Key(name)
	}
	return Key(name + "#" + strconv.Itoa(n))
}

func funcName(v reflect.Value) string {
	if fn := runtime.FuncForPC(v.Pointer()); fn != nil {
		return fn.Name()
	}
	return v.Type().String()
}

func paramName(i int) string { return "p" + strconv.Itoa(i) }

// funcNode is a registered constructor or a wrapped callable.
type funcNode struct {
	key    Key
	name   string
	fn     reflect.Value
	params []reflect.Type
	out    reflect.Type // nil if the function produces no value
	hasErr bool
}

var _ Node = (*funcNode)(nil)
var _ Constructor = (*funcNode)(nil)

func (f *funcNode) NodeKey() Key { return f.key }
func (f *funcNode) String() string { return f.name }

func (f *funcNode) Construct(args map[string]any) (any, error) {
	in := make([]reflect.Value, len(f.params))
	for i, param := range f.params {
		value, ok := args[paramName(i)]
		if !ok {
			return nil, errors.Errorf("missing argument %s", paramName(i))
		}
		rv := reflect.ValueOf(value)
		if !rv.IsValid() {
			rv = reflect.Zero(param)
		}
		in[i] = rv
	}
	outs := f.fn.Call(in)
	if f.hasErr {
		if err := outs[len(outs)-1]; !err.IsNil() {
			return nil, err.Interface().(error) //nolint:forcetypeassert
		}
	}
	if f.out == nil {
		return nil, nil
	}
	return outs[0].Interface(), nil
}

// suppliedNode is an externally provided leaf with its retained value.
type suppliedNode struct {
	typ   reflect.Type
	value any
}

var _ Node = (*suppliedNode)(nil)
var _ Constructor = (*suppliedNode)(nil)

func (s *suppliedNode) NodeKey() Key { return Key(s.typ.String()) }
func (s *suppliedNode) String() string { return s.typ.String() }

func (s *suppliedNode) Construct(args map[string]any) (any, error) { return s.value, nil }

// missingNode is a placeholder candidate for a concrete type with no
// registered provider. No default policy accepts it, so an argument whose
// only candidate is missing reports the type that would have been needed.
type missingNode struct {
	typ reflect.Type
}

var _ Node = (*missingNode)(nil)

func (m *missingNode) NodeKey() Key { return Key(m.typ.String()) }
func (m *missingNode) String() string { return m.typ.String() }

// targetNode is a synthetic root planning a value of a given type.
type targetNode struct {
	typ reflect.Type
}

var _ Node = (*targetNode)(nil)
var _ Constructor = (*targetNode)(nil)

func (n *targetNode) NodeKey() Key { return Key("for(" + n.typ.String() + ")") }
func (n *targetNode) String() string { return n.typ.String() }

func (n *targetNode) Construct(args map[string]any) (any, error) {
	value, ok := args["value"]
	if !ok {
		return nil, errors.Errorf("missing argument value")
	}
	return value, nil
}
