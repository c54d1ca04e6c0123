// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package objrpc

import (
	"errors"
	"fmt"
)

// Kind classifies runtime errors. Kinds survive the wire; concrete error
// types do not.
type Kind uint8

const (
	KindNone Kind = iota
	KindNotFound
	KindInvalidArgument
	KindTimeout
	KindConnectionClosed
	KindRemoteException
	KindProtocolViolation
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindNotFound:
		return "not found"
	case KindInvalidArgument:
		return "invalid argument"
	case KindTimeout:
		return "timeout"
	case KindConnectionClosed:
		return "connection closed"
	case KindRemoteException:
		return "remote exception"
	case KindProtocolViolation:
		return "protocol violation"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Error is the error type produced by the runtime. Two errors are equal
// under errors.Is when their kinds match, so the sentinels below can be
// used to test errors raised locally as well as errors decoded from a peer.
type Error struct {
	Kind Kind
	Msg  string
}

func (e *Error) Error() string {
	if e.Msg == "" {
		return "objrpc: " + e.Kind.String()
	}
	return "objrpc: " + e.Kind.String() + ": " + e.Msg
}

// Is reports whether target is an *Error of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

var (
	ErrNotFound          = &Error{Kind: KindNotFound}
	ErrInvalidArgument   = &Error{Kind: KindInvalidArgument}
	ErrTimeout           = &Error{Kind: KindTimeout}
	ErrConnectionClosed  = &Error{Kind: KindConnectionClosed}
	ErrRemoteException   = &Error{Kind: KindRemoteException}
	ErrProtocolViolation = &Error{Kind: KindProtocolViolation}
)

func errorf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// RemoteMessage returns the peer's message text carried by a
// RemoteException, or "" when err is not one.
func RemoteMessage(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Kind == KindRemoteException {
		return e.Msg
	}
	return ""
}

// wireError splits err into the kind and message sent in a response
// envelope. NotFound, InvalidArgument, ProtocolViolation and
// RemoteException keep their kind whether the runtime or the service raised
// them. Timeouts and closures belong to the callee's own outbound calls, so
// they travel as RemoteException like any other error.
func wireError(err error) (Kind, string) {
	var e *Error
	if errors.As(err, &e) {
		switch e.Kind {
		case KindNotFound, KindInvalidArgument, KindProtocolViolation, KindRemoteException:
			return e.Kind, e.Msg
		}
	}
	return KindRemoteException, err.Error()
}

// kindFromWire maps a decoded kind code onto a known kind. Codes outside
// the known range are reported as RemoteException.
func kindFromWire(v uint64) Kind {
	switch {
	case v == uint64(KindNone):
		return KindNone
	case v > uint64(KindProtocolViolation):
		return KindRemoteException
	default:
		return Kind(v)
	}
}
