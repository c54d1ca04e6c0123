// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package objrpc

import (
	"context"

	"go.uber.org/zap"
)

// ObjectManagerInterfaceID identifies the Object Manager interface.
const ObjectManagerInterfaceID = "IObjectManager"

// ObjectManager creates, destroys, queries and clones the object handles
// of one endpoint. It is the only entry point for bootstrapping remote
// access.
type ObjectManager interface {
	// CreateObject constructs serviceID and exposes its interfaceID facet.
	CreateObject(ctx context.Context, serviceID, interfaceID string) (string, error)
	// DestroyObject drops the reference held by instanceID.
	DestroyObject(ctx context.Context, instanceID string) error
	// QueryInterface exposes another facet of instanceID's instance, or
	// returns "" when the instance does not implement interfaceID or was
	// not created from serviceID.
	QueryInterface(ctx context.Context, instanceID, interfaceID, serviceID string) (string, error)
	// CloneReference exposes the same instance under a second,
	// independently releasable Instance Id.
	CloneReference(ctx context.Context, instanceID, interfaceID string) (string, error)
}

// ObjectManagerInterface is the descriptor registered at ObjectManagerID.
var ObjectManagerInterface = NewInterface(ObjectManagerInterfaceID).
	Method(
		Func2("CreateObject", ObjectManager.CreateObject).Mutating(true),
		Proc1("DestroyObject", ObjectManager.DestroyObject),
		Func3("QueryInterface", ObjectManager.QueryInterface).Mutating(true),
		Func2("CloneReference", ObjectManager.CloneReference).Mutating(true),
	).
	Proxy(func(p *Proxy) any { return &ObjectManagerProxy{Proxy: p} }).
	MustBuild()

var objectManagerClass = NewClass("objrpc.ObjectManager", func() (any, error) {
	return nil, errorf(KindInvalidArgument, "the object manager is created by its endpoint")
}).Implements(ObjectManagerInterface, nil)

// objectManager serves an endpoint's registry.
type objectManager struct {
	ep *Endpoint
}

var _ ObjectManager = (*objectManager)(nil)

func (m *objectManager) CreateObject(_ context.Context, serviceID, interfaceID string) (string, error) {
	if serviceID == "" {
		return "", errorf(KindInvalidArgument, "empty service id")
	}
	if interfaceID == "" {
		return "", errorf(KindInvalidArgument, "empty interface id")
	}
	inst, err := m.ep.factory.Create(serviceID)
	if err != nil {
		return "", err
	}
	if !inst.Supports(interfaceID) {
		// Let the unexposed instance finalize.
		inst.AddRef()
		inst.Release()
		return "", errorf(KindInvalidArgument, "service %s does not implement %s", serviceID, interfaceID)
	}
	s, err := m.ep.registry.Register(inst, interfaceID)
	if err != nil {
		return "", err
	}
	m.ep.logger.Debug("object created",
		zap.String("service", serviceID),
		zap.String("interface", interfaceID),
		zap.String("instance", s.ID()))
	return s.ID(), nil
}

func (m *objectManager) DestroyObject(_ context.Context, instanceID string) error {
	switch instanceID {
	case "":
		return errorf(KindInvalidArgument, "empty instance id")
	case ObjectManagerID:
		return errorf(KindInvalidArgument, "the object manager cannot be destroyed")
	}
	return m.ep.registry.Destroy(instanceID)
}

func (m *objectManager) QueryInterface(_ context.Context, instanceID, interfaceID, serviceID string) (string, error) {
	if interfaceID == "" {
		return "", errorf(KindInvalidArgument, "empty interface id")
	}
	s, unpin, ok := m.ep.registry.acquire(instanceID)
	if !ok {
		return "", errorf(KindNotFound, "instance %s", instanceID)
	}
	defer unpin()
	if serviceID != "" && serviceID != s.inst.ServiceID() {
		return "", nil
	}
	if !s.inst.Supports(interfaceID) {
		return "", nil
	}
	facet, err := m.ep.registry.Register(s.inst, interfaceID)
	if err != nil {
		return "", err
	}
	return facet.ID(), nil
}

func (m *objectManager) CloneReference(_ context.Context, instanceID, interfaceID string) (string, error) {
	s, unpin, ok := m.ep.registry.acquire(instanceID)
	if !ok {
		return "", errorf(KindNotFound, "instance %s", instanceID)
	}
	defer unpin()
	if instanceID == ObjectManagerID {
		return "", errorf(KindInvalidArgument, "the object manager cannot be cloned")
	}
	if interfaceID == "" {
		interfaceID = s.iface.ID()
	}
	clone, err := m.ep.registry.Register(s.inst, interfaceID)
	if err != nil {
		return "", err
	}
	return clone.ID(), nil
}

// ObjectManagerProxy is the typed proxy of a peer's Object Manager.
type ObjectManagerProxy struct {
	*Proxy
}

var _ ObjectManager = (*ObjectManagerProxy)(nil)

func (p *ObjectManagerProxy) CreateObject(ctx context.Context, serviceID, interfaceID string) (string, error) {
	var id string
	err := p.Invoke(ctx, "CreateObject", &id, serviceID, interfaceID)
	return id, err
}

func (p *ObjectManagerProxy) DestroyObject(ctx context.Context, instanceID string) error {
	return p.Invoke(ctx, "DestroyObject", nil, instanceID)
}

func (p *ObjectManagerProxy) QueryInterface(ctx context.Context, instanceID, interfaceID, serviceID string) (string, error) {
	var id string
	err := p.Invoke(ctx, "QueryInterface", &id, instanceID, interfaceID, serviceID)
	return id, err
}

func (p *ObjectManagerProxy) CloneReference(ctx context.Context, instanceID, interfaceID string) (string, error) {
	var id string
	err := p.Invoke(ctx, "CloneReference", &id, instanceID, interfaceID)
	return id, err
}
