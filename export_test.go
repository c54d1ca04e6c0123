// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package objrpc

import "context"

// RegisterTestTransport registers a transport without access to options.
func RegisterTestTransport(
	name string,
	dial func(ctx context.Context, addr string) (StreamConn, error),
	listen func(addr string) (Acceptor, error),
) {
	registerTransport(name,
		func(ctx context.Context, addr string, _ *options) (StreamConn, error) { return dial(ctx, addr) },
		func(addr string, _ *options) (Acceptor, error) { return listen(addr) },
	)
}
