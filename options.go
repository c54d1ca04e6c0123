// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package objrpc

import (
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"
	"google.golang.org/grpc"
)

// DefaultCallTimeout bounds a Call when no timeout is configured.
const DefaultCallTimeout = 30 * time.Second

// Option configures endpoints, sessions and servers
type Option func(*options)

type options struct {
	codec         Codec
	envelopeCodec EnvelopeCodec
	transport     string // "tcp", "grpc"
	timeout       time.Duration
	workers       int
	queue         int
	pool          *Pool
	compression   bool
	maxFrameSize  uint32
	factory       Factory
	logger        *zap.Logger
	metrics       *Metrics
	clock         clock.Clock
	grpcDial      []grpc.DialOption
	grpcServer    []grpc.ServerOption
}

func newOptions(opts []Option) *options {
	o := &options{
		codec:         defaultCodec,
		envelopeCodec: defaultEnvelopeCodec,
		transport:     DefaultTransport,
		timeout:       DefaultCallTimeout,
		queue:         256,
		compression:   true,
		maxFrameSize:  DefaultMaxFrameSize,
		logger:        zap.NewNop(),
		clock:         clock.New(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// WithCodec sets the codec for parameters and results
func WithCodec(c Codec) Option {
	return func(o *options) { o.codec = c }
}

// WithEnvelopeCodec sets the codec for whole envelopes
func WithEnvelopeCodec(c EnvelopeCodec) Option {
	return func(o *options) { o.envelopeCodec = c }
}

// WithTransport explicitly sets the transport type
func WithTransport(t string) Option {
	return func(o *options) { o.transport = t }
}

// WithCallTimeout sets how long Call waits for a response. Zero or less
// waits without a deadline.
func WithCallTimeout(d time.Duration) Option {
	return func(o *options) { o.timeout = d }
}

// WithWorkers sets the size of the inbound worker pool created by Dial
// and Listen.
func WithWorkers(n int) Option {
	return func(o *options) { o.workers = n }
}

// WithQueue sets the depth of the worker pool's task queue
func WithQueue(n int) Option {
	return func(o *options) { o.queue = n }
}

// WithPool shares an existing worker pool. Its owner closes it.
func WithPool(p *Pool) Option {
	return func(o *options) { o.pool = p }
}

// WithCompression enables or disables the gzip stage. Both ends must agree.
func WithCompression(on bool) Option {
	return func(o *options) { o.compression = on }
}

// WithMaxFrameSize bounds frame payloads.
func WithMaxFrameSize(n uint32) Option {
	return func(o *options) { o.maxFrameSize = n }
}

// WithFactory sets the factory behind the local Object Manager
func WithFactory(f Factory) Option {
	return func(o *options) { o.factory = f }
}

// WithLogger sets the logger
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithMetrics records runtime metrics
func WithMetrics(m *Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithClock replaces the time source used for timeouts and pending-call
// collection.
func WithClock(c clock.Clock) Option {
	return func(o *options) {
		if c != nil {
			o.clock = c
		}
	}
}
