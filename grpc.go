// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package objrpc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// The gRPC transport carries chain bytes as the messages of one
// bidirectional stream per connection. No generated service is involved:
// the server answers every method through an unknown-service handler and
// both sides force a pass-through codec.
const grpcStreamMethod = "/objrpc.Pipe/Stream"

var grpcStreamDesc = grpc.StreamDesc{
	StreamName:    "Stream",
	ServerStreams: true,
	ClientStreams: true,
}

// grpcOverhead leaves room for the frame header and gzip trailer above the
// frame limit.
const grpcOverhead = 1024

// rawCodec passes []byte messages through unchanged.
type rawCodec struct{}

func (rawCodec) Marshal(v any) ([]byte, error) {
	switch b := v.(type) {
	case []byte:
		return b, nil
	case *[]byte:
		return *b, nil
	default:
		return nil, fmt.Errorf("objrpc raw codec: cannot marshal %T", v)
	}
}

func (rawCodec) Unmarshal(data []byte, v any) error {
	p, ok := v.(*[]byte)
	if !ok {
		return fmt.Errorf("objrpc raw codec: cannot unmarshal into %T", v)
	}
	*p = append((*p)[:0], data...)
	return nil
}

func (rawCodec) Name() string { return "objrpc-raw" }

// WithGRPCDialOptions appends options used when dialing the gRPC transport
func WithGRPCDialOptions(opts ...grpc.DialOption) Option {
	return func(o *options) { o.grpcDial = append(o.grpcDial, opts...) }
}

// WithGRPCServerOptions appends options used by the gRPC acceptor
func WithGRPCServerOptions(opts ...grpc.ServerOption) Option {
	return func(o *options) { o.grpcServer = append(o.grpcServer, opts...) }
}

type msgStream interface {
	SendMsg(m any) error
	RecvMsg(m any) error
}

// grpcConn adapts one side of the stream to StreamConn.
type grpcConn struct {
	stream    msgStream
	sendMu    sync.Mutex
	done      chan struct{}
	closeOnce sync.Once
	closeErr  error
	onClose   func() error
}

func newGRPCConn(stream msgStream, onClose func() error) *grpcConn {
	return &grpcConn{stream: stream, done: make(chan struct{}), onClose: onClose}
}

func (g *grpcConn) Send(data []byte) error {
	if g.IsClosed() {
		return errorf(KindConnectionClosed, "grpc stream closed")
	}
	g.sendMu.Lock()
	defer g.sendMu.Unlock()
	if err := g.stream.SendMsg(data); err != nil {
		return fmt.Errorf("grpc send: %w", err)
	}
	return nil
}

func (g *grpcConn) ReadLoop(deliver func([]byte) error) error {
	for {
		var msg []byte
		if err := g.stream.RecvMsg(&msg); err != nil {
			if errors.Is(err, io.EOF) || g.IsClosed() {
				return errorf(KindConnectionClosed, "grpc stream closed")
			}
			return fmt.Errorf("grpc recv: %w", err)
		}
		if err := deliver(msg); err != nil {
			return err
		}
	}
}

func (g *grpcConn) Close() error {
	g.closeOnce.Do(func() {
		close(g.done)
		if g.onClose != nil {
			g.closeErr = g.onClose()
		}
	})
	return g.closeErr
}

func (g *grpcConn) IsClosed() bool {
	select {
	case <-g.done:
		return true
	default:
		return false
	}
}

func dialGRPC(_ context.Context, addr string, o *options) (StreamConn, error) {
	opts := append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(
			grpc.ForceCodec(rawCodec{}),
			grpc.MaxCallRecvMsgSize(int(o.maxFrameSize)+grpcOverhead),
			grpc.MaxCallSendMsgSize(int(o.maxFrameSize)+grpcOverhead),
		),
	}, o.grpcDial...)
	cc, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("grpc dial: %w", err)
	}

	// The stream outlives the dial context; Close cancels it.
	ctx, cancel := context.WithCancel(context.Background())
	stream, err := cc.NewStream(ctx, &grpcStreamDesc, grpcStreamMethod)
	if err != nil {
		cancel()
		cc.Close()
		return nil, fmt.Errorf("grpc stream: %w", err)
	}
	return newGRPCConn(stream, func() error {
		_ = stream.CloseSend()
		cancel()
		return cc.Close()
	}), nil
}

// GRPCAcceptor serves the gRPC transport on a listener.
type GRPCAcceptor struct {
	listener net.Listener
	server   *grpc.Server
	logger   *zap.Logger

	mu     sync.RWMutex
	handle func(StreamConn)
}

// NewGRPCAcceptor creates a gRPC acceptor on listener.
func NewGRPCAcceptor(listener net.Listener, opts ...Option) *GRPCAcceptor {
	return newGRPCAcceptor(listener, newOptions(opts))
}

func newGRPCAcceptor(listener net.Listener, o *options) *GRPCAcceptor {
	a := &GRPCAcceptor{listener: listener, logger: o.logger}
	sopts := append([]grpc.ServerOption{
		grpc.ForceServerCodec(rawCodec{}),
		grpc.MaxRecvMsgSize(int(o.maxFrameSize) + grpcOverhead),
		grpc.MaxSendMsgSize(int(o.maxFrameSize) + grpcOverhead),
		grpc.UnknownServiceHandler(a.serveStream),
	}, o.grpcServer...)
	a.server = grpc.NewServer(sopts...)
	return a
}

func (a *GRPCAcceptor) serveStream(_ any, stream grpc.ServerStream) error {
	method, _ := grpc.MethodFromServerStream(stream)
	if method != grpcStreamMethod {
		return fmt.Errorf("objrpc: unknown grpc method %s", method)
	}
	a.mu.RLock()
	handle := a.handle
	a.mu.RUnlock()
	if handle == nil {
		return errors.New("objrpc: acceptor is not serving")
	}
	conn := newGRPCConn(stream, nil)
	defer conn.Close()
	handle(conn)
	return nil
}

// Serve blocks serving streams until Close
func (a *GRPCAcceptor) Serve(ctx context.Context, handle func(StreamConn)) error {
	a.mu.Lock()
	a.handle = handle
	a.mu.Unlock()

	stop := context.AfterFunc(ctx, func() { a.Close() })
	defer stop()
	if err := a.server.Serve(a.listener); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return fmt.Errorf("grpc serve: %w", err)
	}
	return nil
}

// Close stops the server, ending every stream
func (a *GRPCAcceptor) Close() error {
	a.server.Stop()
	return nil
}

// Addr returns the listener address
func (a *GRPCAcceptor) Addr() string {
	return a.listener.Addr().String()
}

func listenGRPC(addr string, o *options) (Acceptor, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	return newGRPCAcceptor(listener, o), nil
}
