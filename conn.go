// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package objrpc

import (
	"sync"
)

// Connection is the outbound half of a byte-stream transport as seen by a
// Chain.
type Connection interface {
	Send(data []byte) error
	Close() error
	IsClosed() bool
}

// StreamConn is a Connection that also pumps inbound bytes. ReadLoop calls
// deliver for every chunk read, in order, until the stream ends or deliver
// fails, and returns the reason.
type StreamConn interface {
	Connection
	ReadLoop(deliver func([]byte) error) error
}

// pipeConn is one end of an in-memory connection pair.
type pipeConn struct {
	in   chan []byte
	out  chan []byte
	done chan struct{}
	once *sync.Once
}

// Pipe returns two connected in-memory StreamConns. Closing either end
// closes both.
func Pipe() (StreamConn, StreamConn) {
	ab := make(chan []byte, 64)
	ba := make(chan []byte, 64)
	done := make(chan struct{})
	once := new(sync.Once)
	return &pipeConn{in: ba, out: ab, done: done, once: once},
		&pipeConn{in: ab, out: ba, done: done, once: once}
}

func (p *pipeConn) Send(data []byte) error {
	b := make([]byte, len(data))
	copy(b, data)
	select {
	case <-p.done:
		return errorf(KindConnectionClosed, "pipe closed")
	default:
	}
	select {
	case p.out <- b:
		return nil
	case <-p.done:
		return errorf(KindConnectionClosed, "pipe closed")
	}
}

func (p *pipeConn) ReadLoop(deliver func([]byte) error) error {
	for {
		select {
		case b := <-p.in:
			if err := deliver(b); err != nil {
				return err
			}
		case <-p.done:
			return errorf(KindConnectionClosed, "pipe closed")
		}
	}
}

func (p *pipeConn) Close() error {
	p.once.Do(func() { close(p.done) })
	return nil
}

func (p *pipeConn) IsClosed() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}
