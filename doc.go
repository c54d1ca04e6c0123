// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package objrpc is a distributed-object RPC runtime. A process exposes
// reference-counted service objects through an Object Manager; a peer
// creates them by Service Id, calls their methods through proxies and
// destroys them when done.
//
// # Transport Selection
//
// TCP is the default transport. gRPC carries the same byte stream over one
// bidirectional stream per connection:
//
//	sess, err := objrpc.Dial(ctx, "localhost:9650")                                  // TCP
//	sess, err := objrpc.Dial(ctx, "localhost:9650", objrpc.WithTransport("grpc"))     // gRPC
//
// # Usage
//
// Server usage:
//
//	factory := objrpc.NewClassFactory(hello.HelloWorldClass)
//	server, err := objrpc.Listen(":9650", objrpc.WithFactory(factory))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer server.Close()
//	server.Serve(ctx)
//
// Client usage:
//
//	sess, err := objrpc.Dial(ctx, "localhost:9650")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer sess.Close()
//
//	p, err := sess.CreateObject(ctx, hello.HelloWorldServiceID, hello.IHelloWorld)
//	hw, _ := objrpc.As[*hello.HelloWorldProxy](p)
//	err = hw.AddWord(ctx, "hello")
//	text, err := hw.GetText(ctx)
//	err = p.Release(ctx)
//
// # Chain
//
// Every connection runs a chain of stages, from the transport outward:
//
//	frame-reader -> frame-writer -> compressor -> parallel -> rpc
//
// Inbound bytes are split into 4-byte big-endian length-prefixed frames,
// decompressed, handed to the worker pool and finally decoded into
// envelopes by the endpoint. Outbound envelopes take the reverse path.
// Stages are addressed by role through Chain.Stage and StageOf.
//
// The pool is bounded. A method that calls back into its caller blocks a
// worker until the nested response arrives, so deeply nested call graphs
// need at least as many workers as nesting levels.
//
// # Architecture
//
// The package separates concerns:
//
//   - errors.go: error kinds and sentinels
//   - envelope.go, codec.go, wire.go: envelopes and their codecs
//   - iface.go, object.go: interface descriptors, classes and instances
//   - stub.go, proxy.go, objmgr.go: server and client halves of a handle
//   - endpoint.go, pending.go: call correlation and dispatch
//   - chain.go, framing.go, compress.go, parallel.go, pool.go: the chain
//   - conn.go, tcp.go, grpc.go, transport.go: transports
//   - dial.go: Dial, Listen, Session and Server
//   - gateway.go, json.go: JSON-RPC 2.0 gateway and client
//   - config.go, metrics.go, options.go: configuration and observability
package objrpc
