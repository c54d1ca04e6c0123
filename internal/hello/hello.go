// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package hello holds the sample services served by objrpcd.
package hello

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/luxfi/objrpc"
)

// Service Ids
const (
	HelloWorldServiceID = "hello.HelloWorld"
	CounterServiceID    = "hello.Counter"
)

var errEmptyWord = errors.New("empty word")

// TextSource produces text.
type TextSource interface {
	GetText(ctx context.Context) (string, error)
}

// HelloWorld collects words into a sentence.
type HelloWorld interface {
	TextSource
	AddWord(ctx context.Context, word string) error
	WordCount(ctx context.Context) (int, error)
}

// Counter is a running total.
type Counter interface {
	Add(ctx context.Context, n int) (int, error)
	Value(ctx context.Context) (int, error)
}

// ITextSource is the descriptor of TextSource.
var ITextSource = objrpc.NewInterface("ITextSource").
	Method(objrpc.Func0("GetText", TextSource.GetText)).
	Proxy(func(p *objrpc.Proxy) any { return &TextSourceProxy{Proxy: p} }).
	MustBuild()

// IHelloWorld is the descriptor of HelloWorld. It extends ITextSource.
var IHelloWorld = objrpc.NewInterface("IHelloWorld", ITextSource).
	Method(
		objrpc.Proc1("AddWord", HelloWorld.AddWord),
		objrpc.Func0("WordCount", HelloWorld.WordCount),
	).
	Proxy(func(p *objrpc.Proxy) any { return &HelloWorldProxy{TextSourceProxy{Proxy: p}} }).
	MustBuild()

// ICounter is the descriptor of Counter.
var ICounter = objrpc.NewInterface("ICounter").
	Method(
		objrpc.Func1("Add", Counter.Add).Mutating(true),
		objrpc.Func0("Value", Counter.Value),
	).
	Proxy(func(p *objrpc.Proxy) any { return &CounterProxy{Proxy: p} }).
	MustBuild()

// HelloWorldClass serves IHelloWorld and, through its word counter,
// ICounter.
var HelloWorldClass = objrpc.NewClass(HelloWorldServiceID, func() (any, error) {
	return &helloWorld{}, nil
}).
	Implements(IHelloWorld, nil).
	Implements(ICounter, func(impl any) (any, bool) {
		hw, ok := impl.(*helloWorld)
		if !ok {
			return nil, false
		}
		return &hw.added, true
	})

// CounterClass serves ICounter.
var CounterClass = objrpc.NewClass(CounterServiceID, func() (any, error) {
	return &counter{}, nil
}).Implements(ICounter, nil)

// Factory returns a factory for every sample service.
func Factory() *objrpc.ClassFactory {
	return objrpc.NewClassFactory(HelloWorldClass, CounterClass)
}

type helloWorld struct {
	mu    sync.Mutex
	words []string
	added counter
}

func (h *helloWorld) GetText(context.Context) (string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return strings.Join(h.words, " "), nil
}

func (h *helloWorld) AddWord(ctx context.Context, word string) error {
	if word == "" {
		return errEmptyWord
	}
	h.mu.Lock()
	h.words = append(h.words, word)
	h.mu.Unlock()
	_, err := h.added.Add(ctx, 1)
	return err
}

func (h *helloWorld) WordCount(context.Context) (int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.words), nil
}

type counter struct {
	mu sync.Mutex
	n  int
}

func (c *counter) Add(_ context.Context, n int) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.n += n
	return c.n, nil
}

func (c *counter) Value(context.Context) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.n, nil
}

// TextSourceProxy is the typed proxy of ITextSource.
type TextSourceProxy struct {
	*objrpc.Proxy
}

func (p *TextSourceProxy) GetText(ctx context.Context) (string, error) {
	var s string
	err := p.Invoke(ctx, "GetText", &s)
	return s, err
}

// HelloWorldProxy is the typed proxy of IHelloWorld.
type HelloWorldProxy struct {
	TextSourceProxy
}

var _ HelloWorld = (*HelloWorldProxy)(nil)

func (p *HelloWorldProxy) AddWord(ctx context.Context, word string) error {
	return p.Invoke(ctx, "AddWord", nil, word)
}

func (p *HelloWorldProxy) WordCount(ctx context.Context) (int, error) {
	var n int
	err := p.Invoke(ctx, "WordCount", &n)
	return n, err
}

// CounterProxy is the typed proxy of ICounter.
type CounterProxy struct {
	*objrpc.Proxy
}

var _ Counter = (*CounterProxy)(nil)

func (p *CounterProxy) Add(ctx context.Context, n int) (int, error) {
	var total int
	err := p.Invoke(ctx, "Add", &total, n)
	return total, err
}

func (p *CounterProxy) Value(ctx context.Context) (int, error) {
	var n int
	err := p.Invoke(ctx, "Value", &n)
	return n, err
}
