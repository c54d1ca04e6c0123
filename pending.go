// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package objrpc

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// pendingCall is one Pending-Call Table entry. done is closed exactly once,
// after resp or err has been set.
type pendingCall struct {
	uuid    string
	sent    time.Time
	arrived time.Time
	resp    *Envelope
	err     error
	done    chan struct{}
}

// pendingTable correlates outbound requests with inbound responses by
// Uuid.
type pendingTable struct {
	mu     sync.Mutex
	calls  map[string]*pendingCall
	clock  clock.Clock
	ttl    time.Duration
	closed error
}

func newPendingTable(clk clock.Clock, ttl time.Duration) *pendingTable {
	return &pendingTable{
		calls: make(map[string]*pendingCall),
		clock: clk,
		ttl:   ttl,
	}
}

func (t *pendingTable) add(uuid string) (*pendingCall, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed != nil {
		return nil, t.closed
	}
	if _, dup := t.calls[uuid]; dup {
		return nil, errorf(KindProtocolViolation, "duplicate call uuid %s", uuid)
	}
	pc := &pendingCall{uuid: uuid, sent: t.clock.Now(), done: make(chan struct{})}
	t.calls[uuid] = pc
	return pc, nil
}

// resolve hands resp to its waiter. It reports false when no call is
// waiting for the Uuid.
func (t *pendingTable) resolve(resp *Envelope) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	pc, ok := t.calls[resp.UUID]
	if !ok {
		return false, nil
	}
	if pc.resp != nil || pc.err != nil {
		return true, errorf(KindProtocolViolation, "duplicate response for %s", resp.UUID)
	}
	pc.resp = resp
	pc.arrived = t.clock.Now()
	close(pc.done)
	return true, nil
}

func (t *pendingTable) remove(uuid string) {
	t.mu.Lock()
	delete(t.calls, uuid)
	t.mu.Unlock()
}

// gc drops entries sent more than ttl ago and returns how many it dropped.
// Waiters still blocked on a dropped entry time out on their own timer.
func (t *pendingTable) gc() int {
	if t.ttl <= 0 {
		return 0
	}
	now := t.clock.Now()
	t.mu.Lock()
	defer t.mu.Unlock()
	n := 0
	for id, pc := range t.calls {
		if now.Sub(pc.sent) > t.ttl {
			delete(t.calls, id)
			n++
		}
	}
	return n
}

// closeAll fails every waiting call with err and refuses new ones.
func (t *pendingTable) closeAll(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed != nil {
		return
	}
	t.closed = err
	for id, pc := range t.calls {
		if pc.resp == nil && pc.err == nil {
			pc.err = err
			close(pc.done)
		}
		delete(t.calls, id)
	}
}

func (t *pendingTable) len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.calls)
}

func (t *pendingTable) has(uuid string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.calls[uuid]
	return ok
}
