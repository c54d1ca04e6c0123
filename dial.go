// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package objrpc

import (
	"context"
	"sync"
	"sync/atomic"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Stage roles of the standard chain, from the transport side outward.
const (
	StageFrameReader = "frame-reader"
	StageFrameWriter = "frame-writer"
	StageCompressor  = "compressor"
	StageParallel    = "parallel"
	StageRPC         = "rpc"
)

// standardChain lists the standard stages ending in ep. pool may be nil
// to dispatch on the read loop.
func standardChain(o *options, pool *Pool, ep *Endpoint) *ChainBuilder {
	b := NewChainBuilder().
		Logger(o.logger).
		Add(StageFrameReader, func() Stage { return NewFrameReader(o.maxFrameSize) }).
		Add(StageFrameWriter, func() Stage { return NewFrameWriter(o.maxFrameSize) })
	if o.compression {
		b.Add(StageCompressor, func() Stage { return NewCompressor(int64(o.maxFrameSize)) })
	}
	if pool != nil {
		b.Add(StageParallel, func() Stage { return NewParallelHandler(pool, o.logger) })
	}
	return b.Add(StageRPC, func() Stage { return ep })
}

// Session is one connection with its chain and endpoint. Either side of a
// session can create objects on the other.
type Session struct {
	conn     StreamConn
	chain    *Chain
	ep       *Endpoint
	pool     *Pool
	ownPool  bool
	readDone chan struct{}
	logger   *zap.Logger
}

// Dial connects to a server using the configured transport (TCP by
// default).
func Dial(ctx context.Context, addr string, opts ...Option) (*Session, error) {
	o := newOptions(opts)
	t, err := lookupTransport(o.transport)
	if err != nil {
		return nil, err
	}
	conn, err := t.dial(ctx, addr, o)
	if err != nil {
		return nil, err
	}
	return newSession(conn, o, nil), nil
}

// NewSession attaches the standard chain to an established connection and
// starts reading from it.
func NewSession(conn StreamConn, opts ...Option) *Session {
	return newSession(conn, newOptions(opts), nil)
}

func newSession(conn StreamConn, o *options, pool *Pool) *Session {
	s := &Session{
		conn:     conn,
		readDone: make(chan struct{}),
		logger:   o.logger,
	}
	switch {
	case pool != nil:
		s.pool = pool
	case o.pool != nil:
		s.pool = o.pool
	case o.workers >= 0:
		s.pool = NewPool(o.workers, o.queue, o.logger)
		s.ownPool = true
	}
	s.ep = newEndpoint(nil, o)
	s.chain = standardChain(o, s.pool, s.ep).Build(conn)

	go func() {
		defer close(s.readDone)
		err := conn.ReadLoop(s.chain.Receive)
		s.chain.Close(err)
	}()
	return s
}

// Endpoint returns the session's RPC stage.
func (s *Session) Endpoint() *Endpoint { return s.ep }

// Chain returns the session's protocol chain.
func (s *Session) Chain() *Chain { return s.chain }

// ObjectManager returns a proxy for the peer's Object Manager.
func (s *Session) ObjectManager() *ObjectManagerProxy { return s.ep.ObjectManager() }

// CreateObject asks the peer to construct serviceID and returns a proxy
// bound to iface.
func (s *Session) CreateObject(ctx context.Context, serviceID string, iface *Interface) (*Proxy, error) {
	return s.ep.CreateObject(ctx, serviceID, iface)
}

// Done is closed when the session's chain has been torn down.
func (s *Session) Done() <-chan struct{} { return s.chain.Done() }

// Close tears the session down and waits for its read loop to exit.
func (s *Session) Close() error {
	err := s.chain.Close(nil)
	<-s.readDone
	if s.ownPool {
		err = multierr.Append(err, s.pool.Close())
	}
	return err
}

// Server accepts connections and runs a session for each. Sessions share
// the server's factory and worker pool.
type Server struct {
	acceptor Acceptor
	o        *options
	pool     *Pool
	ownPool  bool
	closed   atomic.Bool

	mu       sync.Mutex
	sessions map[*Session]struct{}
}

// Listen creates a server using the configured transport (TCP by
// default).
func Listen(addr string, opts ...Option) (*Server, error) {
	o := newOptions(opts)
	t, err := lookupTransport(o.transport)
	if err != nil {
		return nil, err
	}
	a, err := t.listen(addr, o)
	if err != nil {
		return nil, err
	}
	return newServer(a, o), nil
}

// NewServer creates a server on an existing acceptor.
func NewServer(a Acceptor, opts ...Option) *Server {
	return newServer(a, newOptions(opts))
}

func newServer(a Acceptor, o *options) *Server {
	s := &Server{
		acceptor: a,
		o:        o,
		sessions: make(map[*Session]struct{}),
	}
	switch {
	case o.pool != nil:
		s.pool = o.pool
	case o.workers >= 0:
		s.pool = NewPool(o.workers, o.queue, o.logger)
		s.ownPool = true
	}
	return s
}

// Serve accepts connections until the server is closed or ctx ends.
func (s *Server) Serve(ctx context.Context) error {
	return s.acceptor.Serve(ctx, s.serveConn)
}

func (s *Server) serveConn(conn StreamConn) {
	if s.closed.Load() {
		conn.Close()
		return
	}
	sess := newSession(conn, s.o, s.pool)
	s.mu.Lock()
	s.sessions[sess] = struct{}{}
	s.mu.Unlock()

	<-sess.Done()

	s.mu.Lock()
	delete(s.sessions, sess)
	s.mu.Unlock()
}

// Sessions returns the live sessions.
func (s *Server) Sessions() []*Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Session, 0, len(s.sessions))
	for sess := range s.sessions {
		out = append(out, sess)
	}
	return out
}

// Addr returns the server's listen address
func (s *Server) Addr() string {
	return s.acceptor.Addr()
}

// Close stops accepting, tears down every session and releases everything
// the sessions' peers created.
func (s *Server) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	err := s.acceptor.Close()
	for _, sess := range s.Sessions() {
		err = multierr.Append(err, sess.Close())
	}
	if s.ownPool {
		err = multierr.Append(err, s.pool.Close())
	}
	return err
}
