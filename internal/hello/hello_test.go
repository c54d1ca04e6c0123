// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package hello_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/luxfi/objrpc"
	"github.com/luxfi/objrpc/internal/hello"
)

func connect(t *testing.T) *objrpc.Session {
	t.Helper()
	a, b := objrpc.Pipe()
	server := objrpc.NewSession(b, objrpc.WithFactory(hello.Factory()))
	client := objrpc.NewSession(a)
	t.Cleanup(func() {
		require.NoError(t, client.Close())
		require.NoError(t, server.Close())
	})
	return client
}

func TestHelloWorldProxy(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	client := connect(t)

	p, err := client.CreateObject(ctx, hello.HelloWorldServiceID, hello.IHelloWorld)
	require.NoError(t, err)
	hw, ok := objrpc.As[*hello.HelloWorldProxy](p)
	require.True(t, ok)

	for _, w := range []string{"Hello", "from", "the", "proxy"} {
		require.NoError(t, hw.AddWord(ctx, w))
	}
	text, err := hw.GetText(ctx)
	require.NoError(t, err)
	require.Equal(t, "Hello from the proxy", text)
	n, err := hw.WordCount(ctx)
	require.NoError(t, err)
	require.Equal(t, 4, n)

	cp, err := p.QueryInterface(ctx, hello.ICounter)
	require.NoError(t, err)
	counter, ok := objrpc.As[*hello.CounterProxy](cp)
	require.True(t, ok)
	total, err := counter.Add(ctx, 10)
	require.NoError(t, err)
	require.Equal(t, 14, total)

	// Counting through the facet does not add words.
	n, err = hw.WordCount(ctx)
	require.NoError(t, err)
	require.Equal(t, 4, n)
}

func TestCounter(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	client := connect(t)

	p, err := client.CreateObject(ctx, hello.CounterServiceID, hello.ICounter)
	require.NoError(t, err)
	counter, ok := objrpc.As[*hello.CounterProxy](p)
	require.True(t, ok)

	for i := 1; i <= 3; i++ {
		_, err := counter.Add(ctx, i)
		require.NoError(t, err)
	}
	v, err := counter.Value(ctx)
	require.NoError(t, err)
	require.Equal(t, 6, v)

	_, ok = objrpc.As[*hello.HelloWorldProxy](p)
	require.False(t, ok)
}

func TestDescriptors(t *testing.T) {
	require.True(t, hello.IHelloWorld.Supports("ITextSource"))
	require.True(t, hello.IHelloWorld.Supports(objrpc.BaseInterfaceID))
	require.False(t, hello.ICounter.Supports("ITextSource"))

	var names []string
	for _, m := range hello.IHelloWorld.Methods() {
		names = append(names, m.Name)
	}
	require.Equal(t, []string{"AddWord", "WordCount", "GetText", "SupportsInterface", "ServiceID"}, names)
}
