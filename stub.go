// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package objrpc

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// ObjectManagerID is the Instance Id of the Object Manager on every
// endpoint.
const ObjectManagerID = "0"

// Stub binds an Instance Id and an interface facet to a live instance. It
// owns one reference to the instance until released.
type Stub struct {
	id       string
	iface    *Interface
	inst     *Instance
	target   any
	released atomic.Bool
}

func newStub(id string, inst *Instance, interfaceID string) (*Stub, error) {
	target, d, ok := inst.Facet(interfaceID)
	if !ok {
		return nil, errorf(KindInvalidArgument, "service %s does not implement %s", inst.ServiceID(), interfaceID)
	}
	inst.AddRef()
	return &Stub{id: id, iface: d, inst: inst, target: target}, nil
}

// ID returns the Instance Id the stub is registered under.
func (s *Stub) ID() string { return s.id }

// Interface returns the facet's descriptor.
func (s *Stub) Interface() *Interface { return s.iface }

// Instance returns the underlying instance.
func (s *Stub) Instance() *Instance { return s.inst }

// InvokeMethod dispatches method through the interface layers: the facet's
// own table first, then each ancestor's. A panic in the service is
// reported as a RemoteException.
func (s *Stub) InvokeMethod(ctx context.Context, interfaceID, method string, args Args) (result any, err error) {
	if interfaceID != "" && !s.iface.Supports(interfaceID) {
		return nil, errorf(KindProtocolViolation, "instance %s is bound to %s, not %s", s.id, s.iface.ID(), interfaceID)
	}
	m, ok := s.iface.lookup(method)
	if !ok {
		return nil, errorf(KindProtocolViolation, "unknown method %s on %s", method, s.iface.ID())
	}
	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = errorf(KindRemoteException, "panic in %s.%s: %v", m.Interface, m.Name, r)
		}
	}()
	return m.handler(ctx, &Invocation{Target: s.target, Instance: s.inst, Args: args})
}

func (s *Stub) release() {
	if s.released.CompareAndSwap(false, true) {
		s.inst.Release()
	}
}

func (s *Stub) String() string {
	return fmt.Sprintf("%s(%s:%s)", s.id, s.inst.ServiceID(), s.iface.ID())
}

// StubRegistry maps Instance Ids to stubs for one endpoint. Instance
// releases always happen after the registry lock is dropped, so a
// Finalizer may safely call back into the registry.
type StubRegistry struct {
	mu      sync.Mutex
	stubs   map[string]*Stub
	closed  bool
	onDelta func(int)
}

// NewStubRegistry returns an empty registry.
func NewStubRegistry() *StubRegistry {
	return &StubRegistry{stubs: make(map[string]*Stub)}
}

// Register binds a fresh Instance Id to inst's interfaceID facet.
func (r *StubRegistry) Register(inst *Instance, interfaceID string) (*Stub, error) {
	return r.register(uuid.NewString(), inst, interfaceID)
}

func (r *StubRegistry) register(id string, inst *Instance, interfaceID string) (*Stub, error) {
	if id == "" {
		return nil, errorf(KindInvalidArgument, "empty instance id")
	}
	s, err := newStub(id, inst, interfaceID)
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		s.release()
		return nil, errorf(KindConnectionClosed, "registry closed")
	}
	if _, dup := r.stubs[id]; dup {
		r.mu.Unlock()
		s.release()
		return nil, errorf(KindInvalidArgument, "instance id %s in use", id)
	}
	r.stubs[id] = s
	r.mu.Unlock()
	r.delta(1)
	return s, nil
}

// Lookup returns the stub registered under id.
func (r *StubRegistry) Lookup(id string) (*Stub, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.stubs[id]
	return s, ok
}

// acquire looks up id and pins the instance for the duration of one
// invocation. The returned func drops the pin.
func (r *StubRegistry) acquire(id string) (*Stub, func(), bool) {
	r.mu.Lock()
	s, ok := r.stubs[id]
	if ok {
		s.inst.AddRef()
	}
	r.mu.Unlock()
	if !ok {
		return nil, nil, false
	}
	return s, func() { s.inst.Release() }, true
}

// Destroy removes id and releases its reference.
func (r *StubRegistry) Destroy(id string) error {
	r.mu.Lock()
	s, ok := r.stubs[id]
	if ok {
		delete(r.stubs, id)
	}
	r.mu.Unlock()
	if !ok {
		return errorf(KindInvalidArgument, "unknown instance %s", id)
	}
	r.delta(-1)
	s.release()
	return nil
}

// Stubs returns a snapshot of the registered stubs.
func (r *StubRegistry) Stubs() []*Stub {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Stub, 0, len(r.stubs))
	for _, s := range r.stubs {
		out = append(out, s)
	}
	return out
}

// Len returns the number of registered stubs.
func (r *StubRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.stubs)
}

// Close releases every stub and refuses further registrations.
func (r *StubRegistry) Close() {
	r.mu.Lock()
	stubs := r.stubs
	r.stubs = make(map[string]*Stub)
	r.closed = true
	r.mu.Unlock()
	r.delta(-len(stubs))
	for _, s := range stubs {
		s.release()
	}
}

func (r *StubRegistry) delta(n int) {
	if r.onDelta != nil && n != 0 {
		r.onDelta(n)
	}
}
