// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package objrpc

import (
	"context"
	"fmt"
	"reflect"
)

// BaseInterfaceID identifies the layer every interface ends in.
const BaseInterfaceID = "IObject"

// Invocation is what a method handler runs against: the interface facet of
// the instance (Target), the instance itself and the call parameters.
type Invocation struct {
	Target   any
	Instance *Instance
	Args     Args
}

// Handler executes one method of an interface.
type Handler func(ctx context.Context, inv *Invocation) (any, error)

// MethodDesc describes one entry of an interface's method table.
type MethodDesc struct {
	Name      string
	Params    []string
	Result    string
	Mutating  bool
	Index     int
	Interface string

	handler Handler
}

// Interface is a named capability set: an ordered method table plus the
// interfaces it extends. Descriptors are immutable once built.
type Interface struct {
	id      string
	extends []*Interface
	own     []*MethodDesc
	byName  map[string]*MethodDesc
	all     []*MethodDesc
	proxy   func(*Proxy) any
}

// ID returns the interface id.
func (i *Interface) ID() string { return i.id }

// Extends returns the direct ancestors in declaration order.
func (i *Interface) Extends() []*Interface { return append([]*Interface(nil), i.extends...) }

// OwnMethods returns the methods declared by this interface, in table order.
func (i *Interface) OwnMethods() []MethodDesc { return copyDescs(i.own) }

// Methods returns the effective method set: own methods first, then those
// of every ancestor, depth first, without duplicates by name.
func (i *Interface) Methods() []MethodDesc { return copyDescs(i.all) }

func copyDescs(ms []*MethodDesc) []MethodDesc {
	out := make([]MethodDesc, len(ms))
	for n, m := range ms {
		out[n] = *m
	}
	return out
}

// Supports reports whether id is this interface or one of its ancestors.
func (i *Interface) Supports(id string) bool {
	if i.id == id {
		return true
	}
	for _, e := range i.extends {
		if e.Supports(id) {
			return true
		}
	}
	return false
}

// lookup resolves name in this layer, then delegates to each ancestor in
// declaration order.
func (i *Interface) lookup(name string) (*MethodDesc, bool) {
	if m, ok := i.byName[name]; ok {
		return m, true
	}
	for _, e := range i.extends {
		if m, ok := e.lookup(name); ok {
			return m, true
		}
	}
	return nil, false
}

// HasMethod reports whether name is in the effective method set.
func (i *Interface) HasMethod(name string) bool {
	_, ok := i.lookup(name)
	return ok
}

func (i *Interface) String() string { return i.id }

// InterfaceBuilder assembles an Interface. The order of Method calls is the
// order of the method table.
type InterfaceBuilder struct {
	iface *Interface
	specs []MethodSpec
}

// NewInterface starts a descriptor for id extending the given interfaces.
// The base interface is appended when no ancestor already reaches it.
func NewInterface(id string, extends ...*Interface) *InterfaceBuilder {
	return &InterfaceBuilder{iface: &Interface{id: id, extends: extends}}
}

// Method appends methods to the table.
func (b *InterfaceBuilder) Method(specs ...MethodSpec) *InterfaceBuilder {
	b.specs = append(b.specs, specs...)
	return b
}

// Proxy registers the constructor of the typed proxy returned by As.
func (b *InterfaceBuilder) Proxy(fn func(*Proxy) any) *InterfaceBuilder {
	b.iface.proxy = fn
	return b
}

// Build validates and returns the descriptor.
func (b *InterfaceBuilder) Build() (*Interface, error) {
	i := b.iface
	if i.id == "" {
		return nil, errorf(KindInvalidArgument, "empty interface id")
	}
	for _, e := range i.extends {
		if e == nil {
			return nil, errorf(KindInvalidArgument, "interface %s extends nil", i.id)
		}
	}
	if !i.Supports(BaseInterfaceID) {
		i.extends = append(i.extends, baseInterface)
	}
	return b.finish()
}

// finish fills the method tables of a validated descriptor.
func (b *InterfaceBuilder) finish() (*Interface, error) {
	i := b.iface
	i.byName = make(map[string]*MethodDesc, len(b.specs))
	for n, s := range b.specs {
		m := s.desc
		if m.Name == "" || m.handler == nil {
			return nil, errorf(KindInvalidArgument, "interface %s: method %d is incomplete", i.id, n)
		}
		if _, dup := i.byName[m.Name]; dup {
			return nil, errorf(KindInvalidArgument, "interface %s: duplicate method %s", i.id, m.Name)
		}
		m.Index = n
		m.Interface = i.id
		i.own = append(i.own, &m)
		i.byName[m.Name] = &m
	}

	seen := make(map[string]bool)
	var walk func(*Interface)
	walk = func(x *Interface) {
		for _, m := range x.own {
			if !seen[m.Name] {
				seen[m.Name] = true
				i.all = append(i.all, m)
			}
		}
		for _, e := range x.extends {
			walk(e)
		}
	}
	walk(i)
	return i, nil
}

// MustBuild is Build for package-level descriptors.
func (b *InterfaceBuilder) MustBuild() *Interface {
	i, err := b.Build()
	if err != nil {
		panic(err)
	}
	return i
}

// MethodSpec is one method table entry produced by the Func and Proc
// adapters.
type MethodSpec struct {
	desc MethodDesc
}

// Mutating overrides whether the method changes instance state. Procs
// default to true, Funcs to false.
func (s MethodSpec) Mutating(v bool) MethodSpec {
	s.desc.Mutating = v
	return s
}

func typeName[T any]() string {
	return reflect.TypeOf((*T)(nil)).Elem().String()
}

func targetAs[T any](inv *Invocation) (T, error) {
	t, ok := inv.Target.(T)
	if !ok {
		var zero T
		return zero, errorf(KindInvalidArgument, "%T does not implement %s", inv.Target, typeName[T]())
	}
	return t, nil
}

func decodeArg[A any](args Args, i int) (A, error) {
	var a A
	err := args.Decode(i, &a)
	return a, err
}

func checkArity(args Args, n int) error {
	if args.Len() != n {
		return errorf(KindProtocolViolation, "want %d parameters, got %d", n, args.Len())
	}
	return nil
}

// Func0 adapts a method taking no parameters and returning a value.
func Func0[T, R any](name string, fn func(T, context.Context) (R, error)) MethodSpec {
	return MethodSpec{desc: MethodDesc{
		Name:   name,
		Result: typeName[R](),
		handler: func(ctx context.Context, inv *Invocation) (any, error) {
			t, err := targetAs[T](inv)
			if err != nil {
				return nil, err
			}
			if err := checkArity(inv.Args, 0); err != nil {
				return nil, err
			}
			return fn(t, ctx)
		},
	}}
}

// Func1 adapts a method taking one parameter and returning a value.
func Func1[T, A, R any](name string, fn func(T, context.Context, A) (R, error)) MethodSpec {
	return MethodSpec{desc: MethodDesc{
		Name:   name,
		Params: []string{typeName[A]()},
		Result: typeName[R](),
		handler: func(ctx context.Context, inv *Invocation) (any, error) {
			t, err := targetAs[T](inv)
			if err != nil {
				return nil, err
			}
			if err := checkArity(inv.Args, 1); err != nil {
				return nil, err
			}
			a, err := decodeArg[A](inv.Args, 0)
			if err != nil {
				return nil, err
			}
			return fn(t, ctx, a)
		},
	}}
}

// Func2 adapts a method taking two parameters and returning a value.
func Func2[T, A, B, R any](name string, fn func(T, context.Context, A, B) (R, error)) MethodSpec {
	return MethodSpec{desc: MethodDesc{
		Name:   name,
		Params: []string{typeName[A](), typeName[B]()},
		Result: typeName[R](),
		handler: func(ctx context.Context, inv *Invocation) (any, error) {
			t, err := targetAs[T](inv)
			if err != nil {
				return nil, err
			}
			if err := checkArity(inv.Args, 2); err != nil {
				return nil, err
			}
			a, err := decodeArg[A](inv.Args, 0)
			if err != nil {
				return nil, err
			}
			b, err := decodeArg[B](inv.Args, 1)
			if err != nil {
				return nil, err
			}
			return fn(t, ctx, a, b)
		},
	}}
}

// Func3 adapts a method taking three parameters and returning a value.
func Func3[T, A, B, C, R any](name string, fn func(T, context.Context, A, B, C) (R, error)) MethodSpec {
	return MethodSpec{desc: MethodDesc{
		Name:   name,
		Params: []string{typeName[A](), typeName[B](), typeName[C]()},
		Result: typeName[R](),
		handler: func(ctx context.Context, inv *Invocation) (any, error) {
			t, err := targetAs[T](inv)
			if err != nil {
				return nil, err
			}
			if err := checkArity(inv.Args, 3); err != nil {
				return nil, err
			}
			a, err := decodeArg[A](inv.Args, 0)
			if err != nil {
				return nil, err
			}
			b, err := decodeArg[B](inv.Args, 1)
			if err != nil {
				return nil, err
			}
			c, err := decodeArg[C](inv.Args, 2)
			if err != nil {
				return nil, err
			}
			return fn(t, ctx, a, b, c)
		},
	}}
}

// Proc0 adapts a method with no parameters and no result.
func Proc0[T any](name string, fn func(T, context.Context) error) MethodSpec {
	return MethodSpec{desc: MethodDesc{
		Name:     name,
		Mutating: true,
		handler: func(ctx context.Context, inv *Invocation) (any, error) {
			t, err := targetAs[T](inv)
			if err != nil {
				return nil, err
			}
			if err := checkArity(inv.Args, 0); err != nil {
				return nil, err
			}
			return nil, fn(t, ctx)
		},
	}}
}

// Proc1 adapts a method with one parameter and no result.
func Proc1[T, A any](name string, fn func(T, context.Context, A) error) MethodSpec {
	return MethodSpec{desc: MethodDesc{
		Name:     name,
		Params:   []string{typeName[A]()},
		Mutating: true,
		handler: func(ctx context.Context, inv *Invocation) (any, error) {
			t, err := targetAs[T](inv)
			if err != nil {
				return nil, err
			}
			if err := checkArity(inv.Args, 1); err != nil {
				return nil, err
			}
			a, err := decodeArg[A](inv.Args, 0)
			if err != nil {
				return nil, err
			}
			return nil, fn(t, ctx, a)
		},
	}}
}

// Proc2 adapts a method with two parameters and no result.
func Proc2[T, A, B any](name string, fn func(T, context.Context, A, B) error) MethodSpec {
	return MethodSpec{desc: MethodDesc{
		Name:     name,
		Params:   []string{typeName[A](), typeName[B]()},
		Mutating: true,
		handler: func(ctx context.Context, inv *Invocation) (any, error) {
			t, err := targetAs[T](inv)
			if err != nil {
				return nil, err
			}
			if err := checkArity(inv.Args, 2); err != nil {
				return nil, err
			}
			a, err := decodeArg[A](inv.Args, 0)
			if err != nil {
				return nil, err
			}
			b, err := decodeArg[B](inv.Args, 1)
			if err != nil {
				return nil, err
			}
			return nil, fn(t, ctx, a, b)
		},
	}}
}

// instanceMethod is a base-layer method that runs against the instance
// rather than an interface facet.
func instanceMethod(name, result string, params []string, fn func(*Instance, Args) (any, error)) MethodSpec {
	return MethodSpec{desc: MethodDesc{
		Name:   name,
		Params: params,
		Result: result,
		handler: func(_ context.Context, inv *Invocation) (any, error) {
			if inv.Instance == nil {
				return nil, errorf(KindInvalidArgument, "%s needs an instance", name)
			}
			return fn(inv.Instance, inv.Args)
		},
	}}
}

// baseBuilder declares the layer every interface ends in. It supplies
// capability negotiation to every stub.
var baseBuilder = NewInterface(BaseInterfaceID).
	Method(
		instanceMethod("SupportsInterface", "bool", []string{"string"}, func(inst *Instance, args Args) (any, error) {
			if err := checkArity(args, 1); err != nil {
				return nil, err
			}
			id, err := decodeArg[string](args, 0)
			if err != nil {
				return nil, err
			}
			return inst.Supports(id), nil
		}),
		instanceMethod("ServiceID", "string", nil, func(inst *Instance, args Args) (any, error) {
			if err := checkArity(args, 0); err != nil {
				return nil, err
			}
			return inst.ServiceID(), nil
		}),
	)

var baseInterface = mustFinish(baseBuilder)

func mustFinish(b *InterfaceBuilder) *Interface {
	i, err := b.finish()
	if err != nil {
		panic(err)
	}
	return i
}

// BaseInterface returns the descriptor every interface ends in.
func BaseInterface() *Interface { return baseInterface }

func (m MethodDesc) String() string {
	return fmt.Sprintf("%s.%s(%v) %s", m.Interface, m.Name, m.Params, m.Result)
}
