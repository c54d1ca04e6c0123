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
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

const (
	tcpReadBufferSize = 32 * 1024
	tcpWriteTimeout   = 30 * time.Second
)

// TCPConn is a StreamConn over a TCP connection. Reads are delivered as
// they arrive, without regard to frame boundaries.
type TCPConn struct {
	conn    net.Conn
	writeMu sync.Mutex
	closed  atomic.Bool
}

// DialTCP connects to a TCP listener
func DialTCP(ctx context.Context, addr string) (*TCPConn, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("tcp dial: %w", err)
	}
	return NewTCPConn(conn), nil
}

// NewTCPConn wraps an established connection.
func NewTCPConn(conn net.Conn) *TCPConn {
	return &TCPConn{conn: conn}
}

func (t *TCPConn) Send(data []byte) error {
	if t.closed.Load() {
		return errorf(KindConnectionClosed, "tcp connection closed")
	}
	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	_ = t.conn.SetWriteDeadline(time.Now().Add(tcpWriteTimeout))
	if _, err := t.conn.Write(data); err != nil {
		return fmt.Errorf("tcp write: %w", err)
	}
	return nil
}

func (t *TCPConn) ReadLoop(deliver func([]byte) error) error {
	buf := make([]byte, tcpReadBufferSize)
	for {
		n, err := t.conn.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			if derr := deliver(chunk); derr != nil {
				return derr
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) || t.closed.Load() {
				return errorf(KindConnectionClosed, "tcp connection closed")
			}
			return fmt.Errorf("tcp read: %w", err)
		}
	}
}

// Close closes the connection
func (t *TCPConn) Close() error {
	if t.closed.Swap(true) {
		return nil
	}
	return t.conn.Close()
}

func (t *TCPConn) IsClosed() bool { return t.closed.Load() }

// RemoteAddr returns the peer address.
func (t *TCPConn) RemoteAddr() net.Addr { return t.conn.RemoteAddr() }

// Acceptor produces inbound connections for a Server. handle is called on
// its own goroutine per connection and returns once the connection is
// finished with.
type Acceptor interface {
	Serve(ctx context.Context, handle func(StreamConn)) error
	Close() error
	Addr() string
}

// TCPServer accepts TCP connections
type TCPServer struct {
	listener net.Listener
	logger   *zap.Logger
	conns    sync.Map
	closed   atomic.Bool
}

// NewTCPServer creates a TCP acceptor on listener
func NewTCPServer(listener net.Listener, logger *zap.Logger) *TCPServer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TCPServer{
		listener: listener,
		logger:   logger,
	}
}

// Serve accepts connections until the server is closed or ctx ends
func (s *TCPServer) Serve(ctx context.Context, handle func(StreamConn)) error {
	stop := context.AfterFunc(ctx, func() { s.Close() })
	defer stop()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if s.closed.Load() {
				return nil
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				s.logger.Warn("accept failed", zap.Error(err))
				time.Sleep(10 * time.Millisecond)
				continue
			}
			return fmt.Errorf("tcp accept: %w", err)
		}
		go s.handleConn(NewTCPConn(conn), handle)
	}
}

func (s *TCPServer) handleConn(conn *TCPConn, handle func(StreamConn)) {
	defer conn.Close()
	s.conns.Store(conn, struct{}{})
	defer s.conns.Delete(conn)

	s.logger.Debug("accepted connection", zap.Stringer("remote", conn.RemoteAddr()))
	handle(conn)
}

// Close closes the listener and every accepted connection
func (s *TCPServer) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	s.conns.Range(func(key, _ any) bool {
		key.(*TCPConn).Close()
		return true
	})
	return s.listener.Close()
}

// Addr returns the listener address
func (s *TCPServer) Addr() string {
	return s.listener.Addr().String()
}

func dialTCP(ctx context.Context, addr string, _ *options) (StreamConn, error) {
	return DialTCP(ctx, addr)
}

func listenTCP(addr string, o *options) (Acceptor, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	return NewTCPServer(listener, o.logger), nil
}
