// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package objrpc_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/luxfi/objrpc"
	"github.com/luxfi/objrpc/internal/hello"
)

const echoServiceID = "test.Echo"

// echoer is a service with controllable latency.
type echoer interface {
	Echo(ctx context.Context, v int) (int, error)
	Block(ctx context.Context) error
	Fail(ctx context.Context, msg string) error
}

var iEcho = objrpc.NewInterface("IEcho").
	Method(
		objrpc.Func1("Echo", echoer.Echo),
		objrpc.Proc0("Block", echoer.Block),
		objrpc.Proc1("Fail", echoer.Fail),
	).
	MustBuild()

// echoService is shared by every instance its class creates.
type echoService struct {
	entered   chan struct{}
	release   chan struct{}
	finalized chan struct{}
	once      sync.Once
	releaseMu sync.Once
}

func newEchoService() *echoService {
	return &echoService{
		entered:   make(chan struct{}, 16),
		release:   make(chan struct{}),
		finalized: make(chan struct{}),
	}
}

func (s *echoService) class() *objrpc.Class {
	return objrpc.NewClass(echoServiceID, func() (any, error) { return s, nil }).
		Implements(iEcho, nil)
}

func (s *echoService) Echo(_ context.Context, v int) (int, error) {
	time.Sleep(time.Duration(v%3) * time.Millisecond)
	return v, nil
}

// Block waits for unblock or for the serving endpoint to shut down.
func (s *echoService) Block(ctx context.Context) error {
	s.entered <- struct{}{}
	select {
	case <-s.release:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *echoService) Fail(_ context.Context, msg string) error {
	return errors.New(msg)
}

func (s *echoService) Finalize() {
	s.once.Do(func() { close(s.finalized) })
}

func (s *echoService) unblock() {
	s.releaseMu.Do(func() { close(s.release) })
}

func (s *echoService) isFinalized() bool {
	select {
	case <-s.finalized:
		return true
	default:
		return false
	}
}

// pair is a client and a server session over an in-memory pipe. The server
// serves the sample services and the echo service.
type pair struct {
	client *objrpc.Session
	server *objrpc.Session
	echo   *echoService
}

func newPair(t *testing.T, clientOpts, serverOpts []objrpc.Option) *pair {
	t.Helper()
	echo := newEchoService()
	factory := hello.Factory()
	require.NoError(t, factory.Register(echo.class()))

	logger := zaptest.NewLogger(t)
	a, b := objrpc.Pipe()
	server := objrpc.NewSession(b, append([]objrpc.Option{
		objrpc.WithFactory(factory),
		objrpc.WithWorkers(4),
		objrpc.WithLogger(logger.Named("server")),
	}, serverOpts...)...)
	client := objrpc.NewSession(a, append([]objrpc.Option{
		objrpc.WithWorkers(4),
		objrpc.WithLogger(logger.Named("client")),
	}, clientOpts...)...)

	t.Cleanup(func() {
		echo.unblock()
		require.NoError(t, client.Close())
		require.NoError(t, server.Close())
	})
	return &pair{client: client, server: server, echo: echo}
}

func testContext(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func createHelloWorld(t *testing.T, ctx context.Context, s *objrpc.Session) (*objrpc.Proxy, *hello.HelloWorldProxy) {
	t.Helper()
	p, err := s.CreateObject(ctx, hello.HelloWorldServiceID, hello.IHelloWorld)
	require.NoError(t, err)
	hw, ok := objrpc.As[*hello.HelloWorldProxy](p)
	require.True(t, ok)
	return p, hw
}
