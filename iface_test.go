// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package objrpc

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

type greeter interface {
	Greet(ctx context.Context, name string) (string, error)
}

type shouter interface {
	greeter
	Shout(ctx context.Context, name string) (string, error)
}

type greeterImpl struct{}

func (greeterImpl) Greet(_ context.Context, name string) (string, error) { return "hi " + name, nil }

func (greeterImpl) Shout(_ context.Context, name string) (string, error) {
	return strings.ToUpper("hi " + name), nil
}

var iGreeter = NewInterface("IGreeter").
	Method(Func1("Greet", greeter.Greet)).
	MustBuild()

var iShouter = NewInterface("IShouter", iGreeter).
	Method(Func1("Shout", shouter.Shout)).
	MustBuild()

func methodNames(ms []MethodDesc) []string {
	out := make([]string, len(ms))
	for i, m := range ms {
		out[i] = m.Name
	}
	return out
}

func TestInterfaceLayering(t *testing.T) {
	require.Equal(t, []string{"Shout"}, methodNames(iShouter.OwnMethods()))
	require.Equal(t,
		[]string{"Shout", "Greet", "SupportsInterface", "ServiceID"},
		methodNames(iShouter.Methods()))

	require.True(t, iShouter.Supports("IShouter"))
	require.True(t, iShouter.Supports("IGreeter"))
	require.True(t, iShouter.Supports(BaseInterfaceID))
	require.False(t, iGreeter.Supports("IShouter"))

	m, ok := iShouter.lookup("Greet")
	require.True(t, ok)
	require.Equal(t, "IGreeter", m.Interface)
	require.Equal(t, 0, m.Index)
	require.Equal(t, []string{"string"}, m.Params)
	require.Equal(t, "string", m.Result)
	require.False(t, iShouter.HasMethod("Whisper"))
}

func TestBaseInterface(t *testing.T) {
	base := BaseInterface()
	require.NotNil(t, base)
	require.Equal(t, BaseInterfaceID, base.ID())
	require.Empty(t, base.Extends())
	require.Equal(t, []string{"SupportsInterface", "ServiceID"}, methodNames(base.Methods()))

	// Every built descriptor ends in the same base layer, once.
	require.Same(t, base, iGreeter.Extends()[0])
	require.Same(t, base, ObjectManagerInterface.Extends()[0])
	require.Len(t, iShouter.Extends(), 1)
	require.Same(t, iGreeter, iShouter.Extends()[0])

	plain, err := NewInterface("IPlain").Build()
	require.NoError(t, err)
	require.Equal(t, []string{"SupportsInterface", "ServiceID"}, methodNames(plain.Methods()))
}

func TestInterfaceDiamondDedup(t *testing.T) {
	left := NewInterface("ILeft", iGreeter).Method(Func1("Shout", shouter.Shout)).MustBuild()
	right := NewInterface("IRight", iGreeter).MustBuild()
	both := NewInterface("IBoth", left, right).MustBuild()

	require.Equal(t,
		[]string{"Shout", "Greet", "SupportsInterface", "ServiceID"},
		methodNames(both.Methods()))
	require.True(t, both.Supports("IRight"))
	require.Len(t, both.Extends(), 2)
}

func TestInterfaceOwnLayerFirst(t *testing.T) {
	override := NewInterface("IOverride", iGreeter).
		Method(Func1("Greet", shouter.Shout)).
		MustBuild()

	m, ok := override.lookup("Greet")
	require.True(t, ok)
	require.Equal(t, "IOverride", m.Interface)

	out, err := m.handler(context.Background(), &Invocation{
		Target: greeterImpl{},
		Args:   mustArgs(t, "bob"),
	})
	require.NoError(t, err)
	require.Equal(t, "HI BOB", out)
}

func TestInterfaceBuildErrors(t *testing.T) {
	_, err := NewInterface("").Build()
	require.ErrorIs(t, err, ErrInvalidArgument)

	_, err = NewInterface("IDup").
		Method(Func1("Greet", greeter.Greet), Func1("Greet", greeter.Greet)).
		Build()
	require.ErrorIs(t, err, ErrInvalidArgument)

	_, err = NewInterface("IEmpty").Method(MethodSpec{}).Build()
	require.ErrorIs(t, err, ErrInvalidArgument)

	_, err = NewInterface("INil", nil).Build()
	require.ErrorIs(t, err, ErrInvalidArgument)
}

func TestMethodAdapters(t *testing.T) {
	m, _ := iGreeter.lookup("Greet")

	_, err := m.handler(context.Background(), &Invocation{Target: greeterImpl{}, Args: mustArgs(t)})
	require.ErrorIs(t, err, ErrProtocolViolation)

	_, err = m.handler(context.Background(), &Invocation{Target: 42, Args: mustArgs(t, "x")})
	require.ErrorIs(t, err, ErrInvalidArgument)

	_, err = m.handler(context.Background(), &Invocation{Target: greeterImpl{}, Args: mustArgs(t, 7)})
	require.ErrorIs(t, err, ErrProtocolViolation)

	require.False(t, m.Mutating)
	p := Proc1("Set", func(greeter, context.Context, string) error { return nil })
	require.True(t, p.desc.Mutating)
	require.False(t, p.Mutating(false).desc.Mutating)
}

func mustArgs(t *testing.T, params ...any) Args {
	t.Helper()
	b, err := encodeParams(defaultCodec, params)
	require.NoError(t, err)
	return NewArgs(defaultCodec, b)
}
