// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package objrpc

import (
	"errors"
	"runtime"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var ErrPoolClosed = errors.New("objrpc: worker pool closed")

// Pool runs posted tasks on a fixed set of worker goroutines. Tasks are
// started in submission order; with one worker they also finish in that
// order.
type Pool struct {
	mu     sync.RWMutex
	closed bool
	tasks  chan func()
	group  errgroup.Group
	logger *zap.Logger
}

// NewPool starts workers goroutines (0 means GOMAXPROCS) behind a queue of
// the given depth. Post blocks while the queue is full.
func NewPool(workers, queue int, logger *zap.Logger) *Pool {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if queue < 0 {
		queue = 0
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &Pool{
		tasks:  make(chan func(), queue),
		logger: logger,
	}
	for i := 0; i < workers; i++ {
		p.group.Go(p.work)
	}
	return p
}

func (p *Pool) work() error {
	for task := range p.tasks {
		p.run(task)
	}
	return nil
}

func (p *Pool) run(task func()) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("worker task panicked", zap.Any("panic", r))
		}
	}()
	task()
}

// Post queues task.
func (p *Pool) Post(task func()) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrPoolClosed
	}
	p.tasks <- task
	return nil
}

// Close stops accepting tasks and waits for queued ones to finish. It must
// not be called from a task.
func (p *Pool) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.tasks)
	p.mu.Unlock()
	return p.group.Wait()
}
