// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package objrpc

import (
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/require"
)

func TestPendingResolve(t *testing.T) {
	table := newPendingTable(clock.NewMock(), time.Second)

	a, err := table.add("a")
	require.NoError(t, err)
	b, err := table.add("b")
	require.NoError(t, err)
	_, err = table.add("a")
	require.ErrorIs(t, err, ErrProtocolViolation)

	found, err := table.resolve(&Envelope{UUID: "b", IsResponse: true, Result: []byte("B")})
	require.NoError(t, err)
	require.True(t, found)

	select {
	case <-b.done:
	default:
		t.Fatal("b not woken")
	}
	select {
	case <-a.done:
		t.Fatal("a woken by b's response")
	default:
	}
	require.Equal(t, []byte("B"), b.resp.Result)

	found, err = table.resolve(&Envelope{UUID: "b", IsResponse: true})
	require.True(t, found)
	require.ErrorIs(t, err, ErrProtocolViolation)

	found, err = table.resolve(&Envelope{UUID: "zzz", IsResponse: true})
	require.NoError(t, err)
	require.False(t, found)

	table.remove("b")
	require.False(t, table.has("b"))
	require.Equal(t, 1, table.len())
}

func TestPendingGC(t *testing.T) {
	mock := clock.NewMock()
	table := newPendingTable(mock, time.Second)

	_, err := table.add("old")
	require.NoError(t, err)
	mock.Add(600 * time.Millisecond)
	_, err = table.add("young")
	require.NoError(t, err)

	require.Zero(t, table.gc())
	mock.Add(500 * time.Millisecond)
	require.Equal(t, 1, table.gc())
	require.False(t, table.has("old"))
	require.True(t, table.has("young"))

	mock.Add(time.Second)
	require.Equal(t, 1, table.gc())
	require.Zero(t, table.len())

	unbounded := newPendingTable(mock, 0)
	_, err = unbounded.add("x")
	require.NoError(t, err)
	mock.Add(time.Hour)
	require.Zero(t, unbounded.gc())
}

func TestPendingCloseAll(t *testing.T) {
	table := newPendingTable(clock.NewMock(), time.Second)
	a, err := table.add("a")
	require.NoError(t, err)

	table.closeAll(ErrConnectionClosed)
	<-a.done
	require.ErrorIs(t, a.err, ErrConnectionClosed)
	require.Zero(t, table.len())

	_, err = table.add("b")
	require.ErrorIs(t, err, ErrConnectionClosed)

	// Responses after teardown find nobody.
	found, err := table.resolve(&Envelope{UUID: "a", IsResponse: true})
	require.NoError(t, err)
	require.False(t, found)
}
