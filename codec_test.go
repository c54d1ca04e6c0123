// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package objrpc

import (
	"testing"

	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"
)

type address struct {
	Street string
	Zip    int
}

type person struct {
	Name    string
	Age     int
	Tags    []string
	Home    address
	Friends map[string]int
}

func TestValueCodecs(t *testing.T) {
	alice := person{
		Name:    "alice",
		Age:     42,
		Tags:    []string{"a", "b"},
		Home:    address{Street: "Main", Zip: 12345},
		Friends: map[string]int{"bob": 1},
	}

	for _, codec := range []Codec{JSONCodec{}, GobCodec{}} {
		t.Run(typeNameOf(codec), func(t *testing.T) {
			b, err := codec.Encode("Hello")
			require.NoError(t, err)
			var s string
			require.NoError(t, codec.Decode(b, &s))
			require.Equal(t, "Hello", s)

			b, err = codec.Encode(-7)
			require.NoError(t, err)
			var n int
			require.NoError(t, codec.Decode(b, &n))
			require.Equal(t, -7, n)

			b, err = codec.Encode(alice)
			require.NoError(t, err)
			var p person
			require.NoError(t, codec.Decode(b, &p))
			require.Equal(t, alice, p)

			b, err = codec.Encode("")
			require.NoError(t, err)
			s = "x"
			require.NoError(t, codec.Decode(b, &s))
			require.Empty(t, s)
		})
	}

	b, err := JSONCodec{}.Encode(struct{}{})
	require.NoError(t, err)
	var empty struct{}
	require.NoError(t, JSONCodec{}.Decode(b, &empty))
}

func typeNameOf(v any) string {
	switch v.(type) {
	case JSONCodec:
		return "json"
	case GobCodec:
		return "gob"
	default:
		return "other"
	}
}

func TestEnvelopeCodecs(t *testing.T) {
	envelopes := []*Envelope{
		newRequest("u-1", "inst", "IHelloWorld", "AddWord", [][]byte{[]byte(`"Hello"`)}),
		newRequest("u-2", "0", "IObjectManager", "CreateObject", [][]byte{[]byte(`"svc"`), []byte(`"IHelloWorld"`)}),
		newRequest("u-3", "inst", "IHelloWorld", "GetText", nil),
		newRequest("u-1", "inst", "", "GetText", nil).reply([]byte(`"Hello"`), nil),
		newRequest("u-4", "inst", "IHelloWorld", "AddWord", nil).reply(nil, nil),
		newRequest("u-5", "gone", "IHelloWorld", "GetText", nil).reply(nil, errorf(KindNotFound, "instance gone")),
	}

	for _, name := range []string{EnvelopeJSON, EnvelopeWire} {
		codec, err := EnvelopeCodecByName(name)
		require.NoError(t, err)
		t.Run(name, func(t *testing.T) {
			for _, env := range envelopes {
				b, err := codec.Marshal(env)
				require.NoError(t, err)
				got, err := codec.Unmarshal(b)
				require.NoError(t, err)
				require.Equal(t, env, got)
			}
		})
	}

	_, err := EnvelopeCodecByName("xml")
	require.Error(t, err)
}

func TestWireCodecEmptyParams(t *testing.T) {
	env := newRequest("u", "i", "I", "M", [][]byte{{}, []byte("x"), {}})
	b, err := WireCodec{}.Marshal(env)
	require.NoError(t, err)
	got, err := WireCodec{}.Unmarshal(b)
	require.NoError(t, err)
	require.Len(t, got.Params, 3)
	require.Equal(t, []byte{}, got.Params[0])
	require.Equal(t, []byte("x"), got.Params[1])
}

func TestWireCodecSkipsUnknownFields(t *testing.T) {
	env := newRequest("u", "i", "I", "M", [][]byte{[]byte("p")})
	b, err := WireCodec{}.Marshal(env)
	require.NoError(t, err)

	b = protowire.AppendTag(b, 42, protowire.VarintType)
	b = protowire.AppendVarint(b, 7)
	b = protowire.AppendTag(b, 43, protowire.BytesType)
	b = protowire.AppendBytes(b, []byte("future"))

	got, err := WireCodec{}.Unmarshal(b)
	require.NoError(t, err)
	require.Equal(t, env, got)
}

func TestWireCodecViolations(t *testing.T) {
	var noType []byte
	noType = protowire.AppendTag(noType, fieldInstance, protowire.BytesType)
	noType = protowire.AppendString(noType, "i")
	_, err := WireCodec{}.Unmarshal(noType)
	require.ErrorIs(t, err, ErrProtocolViolation)

	var badType []byte
	badType = protowire.AppendTag(badType, fieldType, protowire.VarintType)
	badType = protowire.AppendVarint(badType, 9)
	_, err = WireCodec{}.Unmarshal(badType)
	require.ErrorIs(t, err, ErrProtocolViolation)

	b, err := WireCodec{}.Marshal(newRequest("u", "i", "I", "M", nil))
	require.NoError(t, err)
	_, err = WireCodec{}.Unmarshal(b[:len(b)-1])
	require.ErrorIs(t, err, ErrProtocolViolation)

	_, err = JSONEnvelopeCodec{}.Unmarshal([]byte("{"))
	require.ErrorIs(t, err, ErrProtocolViolation)
}

func TestEnvelopeUnknownErrorKind(t *testing.T) {
	for _, code := range []uint64{7, 200, 256, 1 << 40} {
		var b []byte
		b = protowire.AppendTag(b, fieldType, protowire.VarintType)
		b = protowire.AppendVarint(b, tagResponse)
		b = protowire.AppendTag(b, fieldErrKind, protowire.VarintType)
		b = protowire.AppendVarint(b, code)
		env, err := WireCodec{}.Unmarshal(b)
		require.NoError(t, err)
		require.Equal(t, KindRemoteException, env.ErrKind, code)
		require.ErrorIs(t, env.Err(), ErrRemoteException)
	}

	env, err := JSONEnvelopeCodec{}.Unmarshal([]byte(`{"uuid":"u","response":true,"errKind":9,"errMsg":"odd"}`))
	require.NoError(t, err)
	require.ErrorIs(t, env.Err(), ErrRemoteException)
	require.Equal(t, "odd", RemoteMessage(env.Err()))

	env, err = JSONEnvelopeCodec{}.Unmarshal([]byte(`{"uuid":"u","response":true,"errKind":1}`))
	require.NoError(t, err)
	require.ErrorIs(t, env.Err(), ErrNotFound)
}

func TestArgs(t *testing.T) {
	params, err := encodeParams(defaultCodec, []any{"a", 2})
	require.NoError(t, err)
	args := NewArgs(defaultCodec, params)
	require.Equal(t, 2, args.Len())

	var s string
	require.NoError(t, args.Decode(0, &s))
	require.Equal(t, "a", s)

	require.ErrorIs(t, args.Decode(2, &s), ErrProtocolViolation)
	require.ErrorIs(t, args.Decode(1, &s), ErrProtocolViolation)

	_, err = encodeParams(defaultCodec, []any{make(chan int)})
	require.ErrorIs(t, err, ErrInvalidArgument)
}
