// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package objrpc

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestPoolRunsTasks(t *testing.T) {
	p := NewPool(4, 16, zaptest.NewLogger(t))
	var n atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		require.NoError(t, p.Post(func() {
			defer wg.Done()
			n.Add(1)
		}))
	}
	wg.Wait()
	require.EqualValues(t, 100, n.Load())
	require.NoError(t, p.Close())
}

func TestPoolSingleWorkerIsFIFO(t *testing.T) {
	p := NewPool(1, 8, nil)
	var mu sync.Mutex
	var order []int
	for i := 0; i < 50; i++ {
		i := i
		require.NoError(t, p.Post(func() {
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
		}))
	}
	require.NoError(t, p.Close())
	for i, v := range order {
		require.Equal(t, i, v)
	}
	require.Len(t, order, 50)
}

func TestPoolSurvivesPanics(t *testing.T) {
	p := NewPool(1, 4, zaptest.NewLogger(t))
	done := make(chan struct{})
	require.NoError(t, p.Post(func() { panic("boom") }))
	require.NoError(t, p.Post(func() { close(done) }))
	<-done
	require.NoError(t, p.Close())
}

func TestPoolClosed(t *testing.T) {
	p := NewPool(2, 0, nil)
	require.NoError(t, p.Close())
	require.ErrorIs(t, p.Post(func() {}), ErrPoolClosed)
	require.NoError(t, p.Close())
}

func TestParallelHandlerClosedPool(t *testing.T) {
	p := NewPool(1, 0, nil)
	require.NoError(t, p.Close())

	conn := &recordConn{}
	chain := NewChainBuilder().
		Add(StageParallel, func() Stage { return NewParallelHandler(p, nil) }).
		Build(conn)
	err := chain.Receive([]byte("x"))
	require.ErrorIs(t, err, ErrConnectionClosed)
	require.True(t, conn.IsClosed())
}

func TestParallelHandlerDispatchesOffReader(t *testing.T) {
	p := NewPool(2, 4, zaptest.NewLogger(t))
	defer p.Close()

	c := &collector{}
	got := make(chan struct{}, 1)
	chain := NewChainBuilder().
		Add(StageParallel, func() Stage { return NewParallelHandler(p, nil) }).
		Sink(func(msg []byte) error {
			_ = c.sink(msg)
			got <- struct{}{}
			return nil
		}).
		Build(&recordConn{})

	require.NoError(t, chain.Receive([]byte("work")))
	<-got
	require.Equal(t, [][]byte{[]byte("work")}, c.all())
}
