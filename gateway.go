// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package objrpc

import (
	"encoding/json"
	"errors"
	"net/http"
	"sort"

	"github.com/gorilla/rpc/v2"
	"github.com/gorilla/rpc/v2/json2"
	"go.uber.org/zap"
)

// gatewayService is the JSON-RPC service name; methods are addressed as
// "Objects.<Method>".
const gatewayService = "Objects"

// CreateArgs are the parameters of Objects.CreateObject
type CreateArgs struct {
	ServiceID   string `json:"serviceID"`
	InterfaceID string `json:"interfaceID"`
}

// DestroyArgs are the parameters of Objects.DestroyObject
type DestroyArgs struct {
	InstanceID string `json:"instanceID"`
}

// QueryArgs are the parameters of Objects.QueryInterface
type QueryArgs struct {
	InstanceID  string `json:"instanceID"`
	InterfaceID string `json:"interfaceID"`
	ServiceID   string `json:"serviceID,omitempty"`
}

// CloneArgs are the parameters of Objects.CloneReference
type CloneArgs struct {
	InstanceID  string `json:"instanceID"`
	InterfaceID string `json:"interfaceID,omitempty"`
}

// InvokeArgs are the parameters of Objects.Invoke. Params are the JSON
// encodings of the method's positional parameters.
type InvokeArgs struct {
	InstanceID  string            `json:"instanceID"`
	InterfaceID string            `json:"interfaceID,omitempty"`
	Method      string            `json:"method"`
	Params      []json.RawMessage `json:"params,omitempty"`
}

// InstanceReply carries an Instance Id
type InstanceReply struct {
	InstanceID string `json:"instanceID"`
}

// InvokeReply carries the JSON encoding of a method result
type InvokeReply struct {
	Result json.RawMessage `json:"result,omitempty"`
}

// StubInfo describes one registered handle
type StubInfo struct {
	InstanceID  string `json:"instanceID"`
	ServiceID   string `json:"serviceID"`
	InterfaceID string `json:"interfaceID"`
	Refs        int64  `json:"refs"`
}

// StubsReply lists the registry
type StubsReply struct {
	Stubs []StubInfo `json:"stubs"`
}

// EmptyArgs is used by methods without parameters
type EmptyArgs struct{}

// EmptyReply is used by methods without a result
type EmptyReply struct{}

// GatewayErrorData is attached to JSON-RPC errors so clients can recover
// the error kind.
type GatewayErrorData struct {
	Kind    Kind   `json:"kind"`
	Message string `json:"message"`
}

// Objects exposes an endpoint's Object Manager and stubs over JSON-RPC 2.0.
type Objects struct {
	ep *Endpoint
	om ObjectManager
}

// CreateObject constructs a service on the endpoint
func (o *Objects) CreateObject(r *http.Request, args *CreateArgs, reply *InstanceReply) error {
	id, err := o.om.CreateObject(r.Context(), args.ServiceID, args.InterfaceID)
	if err != nil {
		return jsonError(err)
	}
	reply.InstanceID = id
	return nil
}

// DestroyObject releases a handle
func (o *Objects) DestroyObject(r *http.Request, args *DestroyArgs, _ *EmptyReply) error {
	return jsonError(o.om.DestroyObject(r.Context(), args.InstanceID))
}

// QueryInterface exposes another facet of an instance
func (o *Objects) QueryInterface(r *http.Request, args *QueryArgs, reply *InstanceReply) error {
	id, err := o.om.QueryInterface(r.Context(), args.InstanceID, args.InterfaceID, args.ServiceID)
	if err != nil {
		return jsonError(err)
	}
	reply.InstanceID = id
	return nil
}

// CloneReference exposes an instance under a second id
func (o *Objects) CloneReference(r *http.Request, args *CloneArgs, reply *InstanceReply) error {
	id, err := o.om.CloneReference(r.Context(), args.InstanceID, args.InterfaceID)
	if err != nil {
		return jsonError(err)
	}
	reply.InstanceID = id
	return nil
}

// Invoke calls a method on a registered instance
func (o *Objects) Invoke(_ *http.Request, args *InvokeArgs, reply *InvokeReply) error {
	if _, ok := o.ep.Codec().(JSONCodec); !ok {
		return jsonError(errorf(KindInvalidArgument, "gateway invoke needs the json codec, endpoint uses %T", o.ep.Codec()))
	}
	params := make([][]byte, len(args.Params))
	for i, p := range args.Params {
		params[i] = p
	}
	out, err := o.ep.Invoke(args.InstanceID, args.InterfaceID, args.Method, params)
	if err != nil {
		return jsonError(err)
	}
	reply.Result = out
	return nil
}

// Stubs lists every registered handle, ordered by Instance Id
func (o *Objects) Stubs(_ *http.Request, _ *EmptyArgs, reply *StubsReply) error {
	stubs := o.ep.Registry().Stubs()
	reply.Stubs = make([]StubInfo, 0, len(stubs))
	for _, s := range stubs {
		reply.Stubs = append(reply.Stubs, StubInfo{
			InstanceID:  s.ID(),
			ServiceID:   s.Instance().ServiceID(),
			InterfaceID: s.Interface().ID(),
			Refs:        s.Instance().Refs(),
		})
	}
	sort.Slice(reply.Stubs, func(i, j int) bool {
		return reply.Stubs[i].InstanceID < reply.Stubs[j].InstanceID
	})
	return nil
}

// jsonError maps runtime errors onto JSON-RPC error codes.
func jsonError(err error) error {
	if err == nil {
		return nil
	}
	code := json2.E_SERVER
	kind := KindRemoteException
	msg := err.Error()
	var e *Error
	if errors.As(err, &e) {
		kind, msg = e.Kind, e.Msg
		switch e.Kind {
		case KindInvalidArgument:
			code = json2.E_BAD_PARAMS
		case KindProtocolViolation:
			code = json2.E_NO_METHOD
		}
	}
	return &json2.Error{
		Code:    code,
		Message: err.Error(),
		Data:    GatewayErrorData{Kind: kind, Message: msg},
	}
}

// Gateway serves an endpoint's object space to HTTP clients.
type Gateway struct {
	server *rpc.Server
	logger *zap.Logger
}

// NewGateway builds a JSON-RPC 2.0 gateway over ep. The endpoint need not
// be attached to a chain.
func NewGateway(ep *Endpoint, logger *zap.Logger) (*Gateway, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := rpc.NewServer()
	s.RegisterCodec(json2.NewCodec(), "application/json")
	s.RegisterAfterFunc(func(info *rpc.RequestInfo) {
		if info.Error != nil {
			logger.Debug("gateway call failed",
				zap.String("method", info.Method),
				zap.Error(info.Error))
		}
	})
	svc := &Objects{ep: ep, om: ep.LocalObjectManager()}
	if err := s.RegisterService(svc, gatewayService); err != nil {
		return nil, err
	}
	return &Gateway{server: s, logger: logger}, nil
}

// Handler returns the HTTP handler serving JSON-RPC requests
func (g *Gateway) Handler() http.Handler {
	return g.server
}
