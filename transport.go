// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package objrpc

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Transport types
const (
	TransportTCP  = "tcp"  // raw TCP stream, default
	TransportGRPC = "grpc" // one gRPC bidirectional stream per connection
)

// DefaultTransport is the default transport type (TCP)
const DefaultTransport = TransportTCP

type dialFunc func(ctx context.Context, addr string, o *options) (StreamConn, error)
type listenFunc func(addr string, o *options) (Acceptor, error)

type transportEntry struct {
	dial   dialFunc
	listen listenFunc
}

var (
	transportsMu sync.RWMutex
	transports   = map[string]transportEntry{
		TransportTCP:  {dialTCP, listenTCP},
		TransportGRPC: {dialGRPC, listenGRPC},
	}
)

// registerTransport registers a new transport
func registerTransport(name string, dial dialFunc, listen listenFunc) {
	transportsMu.Lock()
	defer transportsMu.Unlock()
	transports[name] = transportEntry{dial, listen}
}

func lookupTransport(name string) (transportEntry, error) {
	transportsMu.RLock()
	defer transportsMu.RUnlock()
	t, ok := transports[name]
	if !ok {
		return transportEntry{}, fmt.Errorf("unknown transport: %s", name)
	}
	return t, nil
}

// AvailableTransports returns list of available transport types
func AvailableTransports() []string {
	transportsMu.RLock()
	defer transportsMu.RUnlock()
	result := make([]string, 0, len(transports))
	for name := range transports {
		result = append(result, name)
	}
	sort.Strings(result)
	return result
}

// HasTransport checks if a transport is available
func HasTransport(name string) bool {
	transportsMu.RLock()
	defer transportsMu.RUnlock()
	_, ok := transports[name]
	return ok
}
