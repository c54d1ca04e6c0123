// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package objrpc

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestErrorKinds(t *testing.T) {
	err := errorf(KindNotFound, "instance %s", "abc")
	require.ErrorIs(t, err, ErrNotFound)
	require.NotErrorIs(t, err, ErrTimeout)
	require.EqualError(t, err, "objrpc: not found: instance abc")
	require.EqualError(t, ErrTimeout, "objrpc: timeout")

	wrapped := fmt.Errorf("create: %w", err)
	require.ErrorIs(t, wrapped, ErrNotFound)

	require.Equal(t, "kind(99)", Kind(99).String())
}

func TestWireError(t *testing.T) {
	tests := []struct {
		err  error
		kind Kind
		msg  string
	}{
		{errorf(KindNotFound, "x"), KindNotFound, "x"},
		{errorf(KindInvalidArgument, "x"), KindInvalidArgument, "x"},
		{errorf(KindProtocolViolation, "x"), KindProtocolViolation, "x"},
		{errorf(KindRemoteException, "x"), KindRemoteException, "x"},
		{errorf(KindTimeout, "x"), KindRemoteException, "objrpc: timeout: x"},
		{errorf(KindConnectionClosed, "x"), KindRemoteException, "objrpc: connection closed: x"},
		{errors.New("disk full"), KindRemoteException, "disk full"},
	}
	for _, tt := range tests {
		kind, msg := wireError(tt.err)
		require.Equal(t, tt.kind, kind, tt.err.Error())
		require.Equal(t, tt.msg, msg)
	}
}

func TestRemoteMessage(t *testing.T) {
	env := newRequest("u", "i", "I", "M", nil).reply(nil, errors.New("empty word"))
	err := env.Err()
	require.ErrorIs(t, err, ErrRemoteException)
	require.Equal(t, "empty word", RemoteMessage(err))
	require.Empty(t, RemoteMessage(ErrNotFound))
	require.Empty(t, RemoteMessage(nil))

	ok := newRequest("u", "i", "I", "M", nil).reply([]byte("1"), nil)
	require.NoError(t, ok.Err())
}
