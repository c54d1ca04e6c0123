// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package objrpc

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Endpoint is the RPC stage terminating a chain. It correlates outbound
// calls with their responses and dispatches inbound requests to the stubs
// of its registry. Every endpoint hosts an Object Manager at
// ObjectManagerID.
type Endpoint struct {
	factory  Factory
	registry *StubRegistry
	pending  *pendingTable
	codec    Codec
	envCodec EnvelopeCodec
	timeout  time.Duration
	clock    clock.Clock
	logger   *zap.Logger
	metrics  *Metrics
	newUUID  func() string

	mu sync.RWMutex
	sc *StageContext

	ctx    context.Context
	cancel context.CancelFunc
}

// NewEndpoint returns an endpoint whose Object Manager constructs objects
// with factory (nil serves no services).
func NewEndpoint(factory Factory, opts ...Option) *Endpoint {
	return newEndpoint(factory, newOptions(opts))
}

func newEndpoint(factory Factory, o *options) *Endpoint {
	if factory == nil {
		factory = o.factory
	}
	if factory == nil {
		factory = NewClassFactory()
	}
	e := &Endpoint{
		factory:  factory,
		registry: NewStubRegistry(),
		pending:  newPendingTable(o.clock, o.timeout),
		codec:    o.codec,
		envCodec: o.envelopeCodec,
		timeout:  o.timeout,
		clock:    o.clock,
		logger:   o.logger,
		metrics:  o.metrics,
		newUUID:  uuid.NewString,
	}
	e.ctx, e.cancel = context.WithCancel(context.Background())
	e.registry.onDelta = e.metrics.addStubs

	om := NewInstance(objectManagerClass, &objectManager{ep: e})
	if _, err := e.registry.register(ObjectManagerID, om, ObjectManagerInterfaceID); err != nil {
		panic(err)
	}
	return e
}

// BindStage implements StageBinder.
func (e *Endpoint) BindStage(sc *StageContext) {
	e.mu.Lock()
	e.sc = sc
	e.mu.Unlock()
}

func (e *Endpoint) stage() *StageContext {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.sc
}

// Registry returns the endpoint's stub registry.
func (e *Endpoint) Registry() *StubRegistry { return e.registry }

// Factory returns the factory behind the local Object Manager.
func (e *Endpoint) Factory() Factory { return e.factory }

// PendingCalls returns the number of calls waiting for a response.
func (e *Endpoint) PendingCalls() int { return e.pending.len() }

// Call sends a request for method on the peer's instanceID and waits for
// the response, the call timeout, closure of the connection, or ctx. On
// success the result is decoded into result unless it is nil.
func (e *Endpoint) Call(ctx context.Context, instanceID, interfaceID, method string, result any, params ...any) (err error) {
	if instanceID == "" {
		return errorf(KindInvalidArgument, "empty instance id")
	}
	if method == "" {
		return errorf(KindInvalidArgument, "empty method name")
	}
	sc := e.stage()
	if sc == nil {
		return errorf(KindInvalidArgument, "endpoint is not attached to a chain")
	}

	start := e.clock.Now()
	defer func() { e.metrics.observeCall(interfaceID, method, err, e.clock.Since(start)) }()

	encoded, err := encodeParams(e.codec, params)
	if err != nil {
		return err
	}

	e.collect()
	id := e.newUUID()
	pc, err := e.pending.add(id)
	if err != nil {
		return err
	}
	e.metrics.addPending(1)
	defer func() {
		e.pending.remove(id)
		e.metrics.addPending(-1)
	}()

	msg, err := e.envCodec.Marshal(newRequest(id, instanceID, interfaceID, method, encoded))
	if err != nil {
		return err
	}
	if err := sc.FireOutbound(msg); err != nil {
		if sc.Chain().Err() != nil {
			return errorf(KindConnectionClosed, "send %s.%s: %v", interfaceID, method, err)
		}
		return err
	}

	var expired <-chan time.Time
	if e.timeout > 0 {
		timer := e.clock.Timer(e.timeout)
		defer timer.Stop()
		expired = timer.C
	}

	select {
	case <-pc.done:
	case <-expired:
		return errorf(KindTimeout, "%s.%s on %s after %v", interfaceID, method, instanceID, e.timeout)
	case <-ctx.Done():
		return ctx.Err()
	}

	if pc.err != nil {
		return pc.err
	}
	if err := pc.resp.Err(); err != nil {
		return err
	}
	if result != nil && len(pc.resp.Result) > 0 {
		if err := e.codec.Decode(pc.resp.Result, result); err != nil {
			return errorf(KindProtocolViolation, "decode result of %s.%s: %v", interfaceID, method, err)
		}
	}
	return nil
}

// collect purges stale pending entries.
func (e *Endpoint) collect() {
	if n := e.pending.gc(); n > 0 {
		e.logger.Debug("purged stale pending calls", zap.Int("count", n))
	}
}

// HandleInbound implements Stage. Responses wake their caller; requests
// are dispatched to stubs and answered.
func (e *Endpoint) HandleInbound(sc *StageContext, msg []byte) error {
	e.collect()
	env, err := e.envCodec.Unmarshal(msg)
	if err != nil {
		return err
	}
	if env.IsResponse {
		found, err := e.pending.resolve(env)
		if err != nil {
			e.logger.Warn("dropping response", zap.String("uuid", env.UUID), zap.Error(err))
		} else if !found {
			e.logger.Debug("dropping response for abandoned call",
				zap.String("uuid", env.UUID),
				zap.String("method", env.Method))
		}
		return nil
	}
	return e.dispatch(sc, env)
}

// HandleOutbound implements Stage.
func (e *Endpoint) HandleOutbound(sc *StageContext, msg []byte) error {
	return sc.FireOutbound(msg)
}

func (e *Endpoint) dispatch(sc *StageContext, req *Envelope) error {
	result, err := e.invoke(req)
	e.metrics.observeRequest(err)
	if err != nil {
		e.logger.Debug("request failed",
			zap.String("instance", req.InstanceID),
			zap.String("interface", req.InterfaceID),
			zap.String("method", req.Method),
			zap.Error(err))
	}

	msg, merr := e.envCodec.Marshal(req.reply(result, err))
	if merr != nil {
		return merr
	}
	if err := sc.FireOutbound(msg); err != nil {
		if sc.Chain().Err() != nil {
			return nil
		}
		return err
	}
	return nil
}

func (e *Endpoint) invoke(req *Envelope) ([]byte, error) {
	if req.UUID == "" {
		return nil, errorf(KindInvalidArgument, "request without uuid")
	}
	stub, unpin, ok := e.registry.acquire(req.InstanceID)
	if !ok {
		return nil, errorf(KindNotFound, "instance %s", req.InstanceID)
	}
	defer unpin()

	out, err := stub.InvokeMethod(e.ctx, req.InterfaceID, req.Method, NewArgs(e.codec, req.Params))
	if err != nil {
		return nil, err
	}
	if out == nil {
		return nil, nil
	}
	b, err := e.codec.Encode(out)
	if err != nil {
		return nil, errorf(KindRemoteException, "encode result of %s: %v", req.Method, err)
	}
	return b, nil
}

// Invoke runs a request against a local stub the way the dispatch path
// runs requests from the peer. params and the result use the endpoint's
// codec.
func (e *Endpoint) Invoke(instanceID, interfaceID, method string, params [][]byte) ([]byte, error) {
	return e.invoke(newRequest(e.newUUID(), instanceID, interfaceID, method, params))
}

// Codec returns the codec used for parameters and results.
func (e *Endpoint) Codec() Codec { return e.codec }

// Close releases every stub of an endpoint that is not attached to a
// chain. Attached endpoints are closed with their chain.
func (e *Endpoint) Close() {
	e.StageClosed(errorf(KindConnectionClosed, "endpoint closed"))
}

// StageClosed implements StageCloser: waiting calls fail with
// ConnectionClosed and every stub of this endpoint is released.
func (e *Endpoint) StageClosed(reason error) {
	e.cancel()
	closed := errorf(KindConnectionClosed, "%v", reason)
	if errors.Is(reason, ErrConnectionClosed) {
		closed = errorf(KindConnectionClosed, "connection closed")
	}
	e.pending.closeAll(closed)
	e.registry.Close()
}

// Register exposes a local instance to the peer under a fresh Instance Id.
func (e *Endpoint) Register(inst *Instance, interfaceID string) (string, error) {
	s, err := e.registry.Register(inst, interfaceID)
	if err != nil {
		return "", err
	}
	return s.ID(), nil
}

// ObjectManager returns a proxy for the peer's Object Manager.
func (e *Endpoint) ObjectManager() *ObjectManagerProxy {
	return &ObjectManagerProxy{Proxy: e.Proxy(ObjectManagerID, ObjectManagerInterface)}
}

// LocalObjectManager returns the Object Manager serving this endpoint's
// registry.
func (e *Endpoint) LocalObjectManager() ObjectManager {
	return &objectManager{ep: e}
}

// Proxy returns a proxy for an instance the peer already exposed.
func (e *Endpoint) Proxy(instanceID string, iface *Interface) *Proxy {
	return &Proxy{ep: e, id: instanceID, iface: iface}
}

// CreateObject asks the peer to construct serviceID and returns a proxy
// bound to iface.
func (e *Endpoint) CreateObject(ctx context.Context, serviceID string, iface *Interface) (*Proxy, error) {
	id, err := e.ObjectManager().CreateObject(ctx, serviceID, iface.ID())
	if err != nil {
		return nil, err
	}
	return e.Proxy(id, iface), nil
}
