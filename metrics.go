// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package objrpc

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics collects runtime counters. A nil *Metrics records nothing.
type Metrics struct {
	calls    *prometheus.CounterVec
	latency  *prometheus.HistogramVec
	requests *prometheus.CounterVec
	pending  prometheus.Gauge
	stubs    prometheus.Gauge
}

// NewMetrics registers the collectors with reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		calls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "objrpc",
			Name:      "calls_total",
			Help:      "Outbound calls by interface, method and outcome.",
		}, []string{"interface", "method", "outcome"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "objrpc",
			Name:      "call_duration_seconds",
			Help:      "Outbound call latency.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 4, 10),
		}, []string{"interface", "method"}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "objrpc",
			Name:      "inbound_requests_total",
			Help:      "Inbound requests dispatched to stubs, by outcome.",
		}, []string{"outcome"}),
		pending: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "objrpc",
			Name:      "pending_calls",
			Help:      "Calls waiting for a response.",
		}),
		stubs: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "objrpc",
			Name:      "stubs",
			Help:      "Registered stubs across endpoints.",
		}),
	}
	for _, c := range []prometheus.Collector{m.calls, m.latency, m.requests, m.pending, m.stubs} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) observeCall(iface, method string, err error, d time.Duration) {
	if m == nil {
		return
	}
	m.calls.WithLabelValues(iface, method, outcome(err)).Inc()
	m.latency.WithLabelValues(iface, method).Observe(d.Seconds())
}

func (m *Metrics) observeRequest(err error) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(outcome(err)).Inc()
}

func (m *Metrics) addPending(n int) {
	if m == nil {
		return
	}
	m.pending.Add(float64(n))
}

func (m *Metrics) addStubs(n int) {
	if m == nil {
		return
	}
	m.stubs.Add(float64(n))
}

func outcome(err error) string {
	if err == nil {
		return "ok"
	}
	var e *Error
	if errors.As(err, &e) {
		return strings.ReplaceAll(e.Kind.String(), " ", "_")
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return "canceled"
	}
	return "error"
}
