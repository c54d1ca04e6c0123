// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package objrpc

import (
	"bytes"

	"google.golang.org/protobuf/encoding/protowire"
)

// Envelope field numbers, in wire order.
const (
	fieldType      protowire.Number = 1
	fieldInstance  protowire.Number = 2
	fieldInterface protowire.Number = 3
	fieldMethod    protowire.Number = 4
	fieldParam     protowire.Number = 5
	fieldResult    protowire.Number = 6
	fieldErrKind   protowire.Number = 7
	fieldErrMsg    protowire.Number = 8
	fieldUUID      protowire.Number = 9
)

const (
	tagRequest  = 0
	tagResponse = 1
)

// WireCodec encodes envelopes in protobuf wire format without generated
// messages. Unknown fields are skipped on decode.
type WireCodec struct{}

func (WireCodec) Marshal(env *Envelope) ([]byte, error) {
	if env == nil {
		return nil, errorf(KindInvalidArgument, "nil envelope")
	}
	var b []byte
	tag := uint64(tagRequest)
	if env.IsResponse {
		tag = tagResponse
	}
	b = protowire.AppendTag(b, fieldType, protowire.VarintType)
	b = protowire.AppendVarint(b, tag)
	b = appendString(b, fieldInstance, env.InstanceID)
	b = appendString(b, fieldInterface, env.InterfaceID)
	b = appendString(b, fieldMethod, env.Method)
	if env.IsResponse {
		if env.Result != nil {
			b = protowire.AppendTag(b, fieldResult, protowire.BytesType)
			b = protowire.AppendBytes(b, env.Result)
		}
		if env.ErrKind != KindNone {
			b = protowire.AppendTag(b, fieldErrKind, protowire.VarintType)
			b = protowire.AppendVarint(b, uint64(env.ErrKind))
			b = appendString(b, fieldErrMsg, env.ErrMsg)
		}
	} else {
		for _, p := range env.Params {
			b = protowire.AppendTag(b, fieldParam, protowire.BytesType)
			b = protowire.AppendBytes(b, p)
		}
	}
	b = appendString(b, fieldUUID, env.UUID)
	return b, nil
}

func appendString(b []byte, num protowire.Number, s string) []byte {
	if s == "" {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, s)
}

func (WireCodec) Unmarshal(data []byte) (*Envelope, error) {
	env := new(Envelope)
	sawType := false
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return nil, wireViolation(n)
		}
		data = data[n:]

		switch {
		case num == fieldType && typ == protowire.VarintType:
			v, m := protowire.ConsumeVarint(data)
			if m < 0 {
				return nil, wireViolation(m)
			}
			if v != tagRequest && v != tagResponse {
				return nil, errorf(KindProtocolViolation, "unknown envelope type %d", v)
			}
			env.IsResponse = v == tagResponse
			sawType = true
			n = m
		case num == fieldErrKind && typ == protowire.VarintType:
			v, m := protowire.ConsumeVarint(data)
			if m < 0 {
				return nil, wireViolation(m)
			}
			env.ErrKind = kindFromWire(v)
			n = m
		case typ == protowire.BytesType:
			v, m := protowire.ConsumeBytes(data)
			if m < 0 {
				return nil, wireViolation(m)
			}
			switch num {
			case fieldInstance:
				env.InstanceID = string(v)
			case fieldInterface:
				env.InterfaceID = string(v)
			case fieldMethod:
				env.Method = string(v)
			case fieldParam:
				env.Params = append(env.Params, bytes.Clone(nonNil(v)))
			case fieldResult:
				env.Result = bytes.Clone(nonNil(v))
			case fieldErrMsg:
				env.ErrMsg = string(v)
			case fieldUUID:
				env.UUID = string(v)
			}
			n = m
		default:
			n = protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return nil, wireViolation(n)
			}
		}
		data = data[n:]
	}
	if !sawType {
		return nil, errorf(KindProtocolViolation, "envelope without type tag")
	}
	return env, nil
}

// nonNil keeps present-but-empty byte fields distinguishable from absent
// ones after bytes.Clone.
func nonNil(b []byte) []byte {
	if b == nil {
		return []byte{}
	}
	return b
}

func wireViolation(n int) error {
	return errorf(KindProtocolViolation, "decode envelope: %v", protowire.ParseError(n))
}
