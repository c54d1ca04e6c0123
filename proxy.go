// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package objrpc

import (
	"context"
)

// Proxy forwards method calls on one interface of a remote instance
// through its endpoint. Typed proxies embed a *Proxy and call Invoke.
type Proxy struct {
	ep    *Endpoint
	id    string
	iface *Interface
}

// InstanceID returns the peer's Instance Id.
func (p *Proxy) InstanceID() string { return p.id }

// Interface returns the interface the proxy is bound to.
func (p *Proxy) Interface() *Interface { return p.iface }

// Endpoint returns the endpoint calls go through.
func (p *Proxy) Endpoint() *Endpoint { return p.ep }

// Invoke calls method with positional params and decodes the result into
// result (nil discards it). Methods outside the interface's effective
// method set are refused locally.
func (p *Proxy) Invoke(ctx context.Context, method string, result any, params ...any) error {
	if !p.iface.HasMethod(method) {
		return errorf(KindProtocolViolation, "unknown method %s on %s", method, p.iface.ID())
	}
	return p.ep.Call(ctx, p.id, p.iface.ID(), method, result, params...)
}

// SupportsInterface asks the remote instance whether it implements id.
func (p *Proxy) SupportsInterface(ctx context.Context, id string) (bool, error) {
	var ok bool
	err := p.Invoke(ctx, "SupportsInterface", &ok, id)
	return ok, err
}

// QueryInterface returns a proxy for another facet of the same remote
// instance, or nil when the instance does not implement iface.
func (p *Proxy) QueryInterface(ctx context.Context, iface *Interface) (*Proxy, error) {
	id, err := p.ep.ObjectManager().QueryInterface(ctx, p.id, iface.ID(), "")
	if err != nil || id == "" {
		return nil, err
	}
	return p.ep.Proxy(id, iface), nil
}

// Clone returns an independently releasable proxy for the same instance.
func (p *Proxy) Clone(ctx context.Context) (*Proxy, error) {
	id, err := p.ep.ObjectManager().CloneReference(ctx, p.id, p.iface.ID())
	if err != nil {
		return nil, err
	}
	return p.ep.Proxy(id, p.iface), nil
}

// Release destroys the remote handle. The proxy must not be used after.
func (p *Proxy) Release(ctx context.Context) error {
	return p.ep.ObjectManager().DestroyObject(ctx, p.id)
}

// As returns the typed proxy registered on p's interface.
func As[T any](p *Proxy) (T, bool) {
	var zero T
	if p == nil || p.iface.proxy == nil {
		return zero, false
	}
	t, ok := p.iface.proxy(p).(T)
	return t, ok
}
