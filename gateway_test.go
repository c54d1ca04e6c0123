// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package objrpc_test

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/luxfi/objrpc"
	"github.com/luxfi/objrpc/internal/hello"
)

func newGatewayClient(t *testing.T, opts ...objrpc.Option) (*objrpc.GatewayClient, *objrpc.Endpoint) {
	t.Helper()
	logger := zaptest.NewLogger(t)
	ep := objrpc.NewEndpoint(hello.Factory(), append([]objrpc.Option{objrpc.WithLogger(logger)}, opts...)...)
	t.Cleanup(ep.Close)

	gw, err := objrpc.NewGateway(ep, logger.Named("gateway"))
	require.NoError(t, err)
	srv := httptest.NewServer(gw.Handler())
	t.Cleanup(srv.Close)

	c, err := objrpc.NewGatewayClient(srv.URL, objrpc.WithRequestLogger(logger.Named("client")))
	require.NoError(t, err)
	return c, ep
}

func TestGatewayObjects(t *testing.T) {
	ctx := testContext(t)
	c, ep := newGatewayClient(t)

	id, err := c.CreateObject(ctx, hello.HelloWorldServiceID, "IHelloWorld")
	require.NoError(t, err)
	require.NotEmpty(t, id)

	require.NoError(t, c.Invoke(ctx, id, "IHelloWorld", "AddWord", nil, "Hello"))
	require.NoError(t, c.Invoke(ctx, id, "", "AddWord", nil, "gateway"))
	var text string
	require.NoError(t, c.Invoke(ctx, id, "IHelloWorld", "GetText", &text))
	require.Equal(t, "Hello gateway", text)

	stubs, err := c.Stubs(ctx)
	require.NoError(t, err)
	require.Len(t, stubs, 2)
	byID := make(map[string]objrpc.StubInfo)
	for _, s := range stubs {
		byID[s.InstanceID] = s
	}
	require.Equal(t, objrpc.ObjectManagerInterfaceID, byID[objrpc.ObjectManagerID].InterfaceID)
	require.Equal(t, hello.HelloWorldServiceID, byID[id].ServiceID)
	require.EqualValues(t, 1, byID[id].Refs)

	counterID, err := c.QueryInterface(ctx, id, "ICounter", "")
	require.NoError(t, err)
	require.NotEmpty(t, counterID)
	var n int
	require.NoError(t, c.Invoke(ctx, counterID, "ICounter", "Value", &n))
	require.Equal(t, 2, n)

	none, err := c.QueryInterface(ctx, counterID, "ICounter", hello.CounterServiceID)
	require.NoError(t, err)
	require.Empty(t, none)

	cloneID, err := c.CloneReference(ctx, id, "")
	require.NoError(t, err)
	require.NotEqual(t, id, cloneID)
	require.Equal(t, 4, ep.Registry().Len())

	require.NoError(t, c.DestroyObject(ctx, id))
	err = c.Invoke(ctx, id, "IHelloWorld", "GetText", &text)
	require.ErrorIs(t, err, objrpc.ErrNotFound)
	require.NoError(t, c.Invoke(ctx, cloneID, "IHelloWorld", "GetText", &text))
	require.Equal(t, "Hello gateway", text)
}

func TestGatewayErrors(t *testing.T) {
	ctx := testContext(t)
	c, _ := newGatewayClient(t)

	_, err := c.CreateObject(ctx, "no.such.Service", "IHelloWorld")
	require.ErrorIs(t, err, objrpc.ErrNotFound)

	_, err = c.CreateObject(ctx, hello.CounterServiceID, "IHelloWorld")
	require.ErrorIs(t, err, objrpc.ErrInvalidArgument)

	require.ErrorIs(t, c.DestroyObject(ctx, objrpc.ObjectManagerID), objrpc.ErrInvalidArgument)
	require.ErrorIs(t, c.DestroyObject(ctx, "missing"), objrpc.ErrInvalidArgument)

	id, err := c.CreateObject(ctx, hello.HelloWorldServiceID, "IHelloWorld")
	require.NoError(t, err)

	err = c.Invoke(ctx, id, "IHelloWorld", "Nope", nil)
	require.ErrorIs(t, err, objrpc.ErrProtocolViolation)

	err = c.Invoke(ctx, id, "IHelloWorld", "AddWord", nil, "")
	require.ErrorIs(t, err, objrpc.ErrRemoteException)
	require.Equal(t, "empty word", objrpc.RemoteMessage(err))
}

func TestGatewayNeedsJSONCodec(t *testing.T) {
	ctx := testContext(t)
	c, _ := newGatewayClient(t, objrpc.WithCodec(objrpc.GobCodec{}))

	id, err := c.CreateObject(ctx, hello.HelloWorldServiceID, "IHelloWorld")
	require.NoError(t, err)

	err = c.Invoke(ctx, id, "IHelloWorld", "GetText", nil)
	require.ErrorIs(t, err, objrpc.ErrInvalidArgument)
}
