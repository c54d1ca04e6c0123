// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package objrpc

import (
	"sync"
	"sync/atomic"
)

// Adapter returns the facet of impl that serves one interface. A nil
// Adapter means impl serves the interface itself.
type Adapter func(impl any) (any, bool)

// Finalizer is implemented by service objects that need to run code when
// their last reference is released.
type Finalizer interface {
	Finalize()
}

// Class describes a constructible service: its Service Id, constructor and
// capability set (interface id to adapter).
type Class struct {
	serviceID string
	ctor      func() (any, error)
	ifaces    []*Interface
	adapters  map[string]Adapter
}

// NewClass declares a service constructed by ctor.
func NewClass(serviceID string, ctor func() (any, error)) *Class {
	return &Class{
		serviceID: serviceID,
		ctor:      ctor,
		adapters:  make(map[string]Adapter),
	}
}

// Implements adds iface (and transitively its ancestors) to the class's
// capability set.
func (c *Class) Implements(iface *Interface, adapt Adapter) *Class {
	c.ifaces = append(c.ifaces, iface)
	c.adapters[iface.ID()] = adapt
	return c
}

// ServiceID returns the key the class is registered under.
func (c *Class) ServiceID() string { return c.serviceID }

// Interfaces returns the directly implemented interfaces.
func (c *Class) Interfaces() []*Interface { return append([]*Interface(nil), c.ifaces...) }

func (c *Class) supports(id string) bool {
	for _, i := range c.ifaces {
		if i.Supports(id) {
			return true
		}
	}
	return false
}

// facet resolves the object serving id and the descriptor of id.
func (c *Class) facet(impl any, id string) (any, *Interface, bool) {
	for _, i := range c.ifaces {
		d := findInterface(i, id)
		if d == nil {
			continue
		}
		adapt := c.adapters[i.ID()]
		if adapt == nil {
			return impl, d, true
		}
		target, ok := adapt(impl)
		if !ok {
			return nil, nil, false
		}
		return target, d, true
	}
	return nil, nil, false
}

func findInterface(i *Interface, id string) *Interface {
	if i.id == id {
		return i
	}
	for _, e := range i.extends {
		if d := findInterface(e, id); d != nil {
			return d
		}
	}
	return nil
}

// Factory constructs service instances by Service Id.
type Factory interface {
	Create(serviceID string) (*Instance, error)
}

// ClassFactory is a Factory backed by registered classes.
type ClassFactory struct {
	mu      sync.RWMutex
	classes map[string]*Class
}

// NewClassFactory returns a factory holding classes.
func NewClassFactory(classes ...*Class) *ClassFactory {
	f := &ClassFactory{classes: make(map[string]*Class)}
	for _, c := range classes {
		f.classes[c.serviceID] = c
	}
	return f
}

// Register adds a class. Registering a Service Id twice fails.
func (f *ClassFactory) Register(c *Class) error {
	if c == nil || c.serviceID == "" || c.ctor == nil {
		return errorf(KindInvalidArgument, "incomplete class")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, dup := f.classes[c.serviceID]; dup {
		return errorf(KindInvalidArgument, "service %s already registered", c.serviceID)
	}
	f.classes[c.serviceID] = c
	return nil
}

// Create constructs a new instance with no references.
func (f *ClassFactory) Create(serviceID string) (*Instance, error) {
	f.mu.RLock()
	c, ok := f.classes[serviceID]
	f.mu.RUnlock()
	if !ok {
		return nil, errorf(KindNotFound, "service %s", serviceID)
	}
	impl, err := c.ctor()
	if err != nil {
		return nil, err
	}
	return NewInstance(c, impl), nil
}

// Instance is a reference-counted service object. The last Release runs
// the object's Finalizer on the releasing goroutine.
type Instance struct {
	class *Class
	impl  any
	refs  atomic.Int64
}

// NewInstance wraps impl as an instance of class with no references.
func NewInstance(class *Class, impl any) *Instance {
	return &Instance{class: class, impl: impl}
}

// AddRef takes a reference and returns the new count.
func (o *Instance) AddRef() int64 {
	return o.refs.Add(1)
}

// Release drops a reference and returns the new count. Releasing an
// instance that holds no reference panics.
func (o *Instance) Release() int64 {
	for {
		n := o.refs.Load()
		if n <= 0 {
			panic("objrpc: release of unreferenced instance")
		}
		if o.refs.CompareAndSwap(n, n-1) {
			if n == 1 {
				if f, ok := o.impl.(Finalizer); ok {
					f.Finalize()
				}
			}
			return n - 1
		}
	}
}

// Refs returns the current reference count.
func (o *Instance) Refs() int64 { return o.refs.Load() }

// Impl returns the service object.
func (o *Instance) Impl() any { return o.impl }

// ServiceID returns the Service Id the instance was created from.
func (o *Instance) ServiceID() string { return o.class.serviceID }

// Supports reports whether the instance's class implements id.
func (o *Instance) Supports(id string) bool { return o.class.supports(id) }

// Facet returns the object serving id and its descriptor.
func (o *Instance) Facet(id string) (any, *Interface, bool) {
	return o.class.facet(o.impl, id)
}
