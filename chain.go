// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package objrpc

import (
	"errors"
	"sync"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Stage transforms messages travelling through a Chain. Inbound messages
// move away from the transport, outbound messages toward it. A stage passes
// a message on with the StageContext's Fire methods.
type Stage interface {
	HandleInbound(sc *StageContext, msg []byte) error
	HandleOutbound(sc *StageContext, msg []byte) error
}

// StageBinder is implemented by stages that need their StageContext
// outside of a Handle call, e.g. to originate outbound messages.
type StageBinder interface {
	BindStage(sc *StageContext)
}

// StageCloser is implemented by stages that react to chain teardown. It is
// called exactly once per chain.
type StageCloser interface {
	StageClosed(reason error)
}

// StageFunc constructs a fresh stage for one chain.
type StageFunc func() Stage

// StageContext is a stage's node in the chain's doubly-linked list.
type StageContext struct {
	name  string
	stage Stage
	chain *Chain
	prev  *StageContext // toward the transport
	next  *StageContext // away from the transport
}

// Name returns the role the stage was added under.
func (sc *StageContext) Name() string { return sc.name }

// Chain returns the owning chain.
func (sc *StageContext) Chain() *Chain { return sc.chain }

// FireInbound hands msg to the next stage away from the transport, or to
// the chain's sink after the last stage.
func (sc *StageContext) FireInbound(msg []byte) error {
	if sc.next == nil {
		return sc.chain.deliver(msg)
	}
	return sc.next.stage.HandleInbound(sc.next, msg)
}

// FireOutbound hands msg to the next stage toward the transport, or to the
// connection after the first stage.
func (sc *StageContext) FireOutbound(msg []byte) error {
	if sc.prev == nil {
		return sc.chain.transmit(msg)
	}
	return sc.prev.stage.HandleOutbound(sc.prev, msg)
}

// Close requests teardown of the whole chain and its connection.
func (sc *StageContext) Close(reason error) {
	sc.chain.Close(reason)
}

// Chain is an ordered list of stages between a Connection and the
// application. It does not own the stages' peers, only the connection
// lifecycle.
type Chain struct {
	conn   Connection
	nodes  []*StageContext
	sink   func([]byte) error
	logger *zap.Logger

	closeOnce sync.Once
	closeErr  error
	reason    error
	done      chan struct{}
}

// Receive feeds inbound bytes from the transport into the first stage. A
// stage error tears the chain down.
func (c *Chain) Receive(data []byte) error {
	if len(c.nodes) == 0 {
		return c.deliver(data)
	}
	head := c.nodes[0]
	if err := head.stage.HandleInbound(head, data); err != nil {
		c.Close(err)
		return err
	}
	return nil
}

// Send feeds an outbound message into the last stage.
func (c *Chain) Send(msg []byte) error {
	if len(c.nodes) == 0 {
		return c.transmit(msg)
	}
	tail := c.nodes[len(c.nodes)-1]
	return tail.stage.HandleOutbound(tail, msg)
}

// transmit writes msg to the connection. A failed write may leave a partial
// frame on the stream, so it tears the chain down.
func (c *Chain) transmit(msg []byte) error {
	if c.conn.IsClosed() {
		return errorf(KindConnectionClosed, "send on closed connection")
	}
	if err := c.conn.Send(msg); err != nil {
		c.Close(err)
		return errorf(KindConnectionClosed, "send: %v", err)
	}
	return nil
}

func (c *Chain) deliver(msg []byte) error {
	if c.sink == nil {
		c.logger.Debug("dropping inbound message without sink", zap.Int("size", len(msg)))
		return nil
	}
	return c.sink(msg)
}

// Close closes the connection and notifies every stage once. Later calls
// are no-ops returning the first result.
func (c *Chain) Close(reason error) error {
	c.closeOnce.Do(func() {
		if reason == nil {
			reason = errorf(KindConnectionClosed, "chain closed")
		}
		c.reason = reason
		if !errors.Is(reason, ErrConnectionClosed) {
			c.logger.Info("closing chain", zap.Error(reason))
		}
		var err error
		if !c.conn.IsClosed() {
			err = c.conn.Close()
		}
		for _, n := range c.nodes {
			if sc, ok := n.stage.(StageCloser); ok {
				err = multierr.Append(err, closeStage(sc, reason))
			}
		}
		c.closeErr = err
		close(c.done)
	})
	return c.closeErr
}

func closeStage(sc StageCloser, reason error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errorf(KindProtocolViolation, "stage close panicked: %v", r)
		}
	}()
	sc.StageClosed(reason)
	return nil
}

// Done is closed once the chain has been torn down.
func (c *Chain) Done() <-chan struct{} { return c.done }

// Err returns the teardown reason, or nil while the chain is open.
func (c *Chain) Err() error {
	select {
	case <-c.done:
		return c.reason
	default:
		return nil
	}
}

// Connection returns the transport the chain is attached to.
func (c *Chain) Connection() Connection { return c.conn }

// Stage returns the stage added under name.
func (c *Chain) Stage(name string) (Stage, bool) {
	for _, n := range c.nodes {
		if n.name == name {
			return n.stage, true
		}
	}
	return nil, false
}

// Names returns the stage roles from the transport side outward.
func (c *Chain) Names() []string {
	out := make([]string, len(c.nodes))
	for i, n := range c.nodes {
		out[i] = n.name
	}
	return out
}

// StageOf returns the first stage of type T in c.
func StageOf[T Stage](c *Chain) (T, bool) {
	for _, n := range c.nodes {
		if s, ok := n.stage.(T); ok {
			return s, true
		}
	}
	var zero T
	return zero, false
}

// ChainBuilder assembles chains. Stages are listed from the transport side
// outward; each Build call constructs fresh stage instances.
type ChainBuilder struct {
	entries []chainEntry
	sink    func([]byte) error
	logger  *zap.Logger
}

type chainEntry struct {
	name string
	ctor StageFunc
}

// NewChainBuilder returns an empty builder.
func NewChainBuilder() *ChainBuilder {
	return &ChainBuilder{logger: zap.NewNop()}
}

// Add appends a stage under a role name.
func (b *ChainBuilder) Add(name string, ctor StageFunc) *ChainBuilder {
	b.entries = append(b.entries, chainEntry{name: name, ctor: ctor})
	return b
}

// Sink sets the consumer of messages leaving the last stage inbound.
func (b *ChainBuilder) Sink(fn func([]byte) error) *ChainBuilder {
	b.sink = fn
	return b
}

// Logger sets the chain's logger.
func (b *ChainBuilder) Logger(l *zap.Logger) *ChainBuilder {
	if l != nil {
		b.logger = l
	}
	return b
}

// Build links fresh stages to conn.
func (b *ChainBuilder) Build(conn Connection) *Chain {
	c := &Chain{
		conn:   conn,
		sink:   b.sink,
		logger: b.logger,
		done:   make(chan struct{}),
	}
	for _, e := range b.entries {
		n := &StageContext{name: e.name, stage: e.ctor(), chain: c}
		if len(c.nodes) > 0 {
			prev := c.nodes[len(c.nodes)-1]
			prev.next = n
			n.prev = prev
		}
		c.nodes = append(c.nodes, n)
	}
	for _, n := range c.nodes {
		if sb, ok := n.stage.(StageBinder); ok {
			sb.BindStage(n)
		}
	}
	return c
}
