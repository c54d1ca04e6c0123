// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package objrpc

import (
	"bytes"
	"encoding/gob"
	"encoding/json"
	"fmt"
)

// Codec encodes/decodes individual parameter and result values
type Codec interface {
	Encode(v any) ([]byte, error)
	Decode(data []byte, v any) error
}

// EnvelopeCodec encodes/decodes whole envelopes. The output is not
// self-delimiting; the chain frames it.
type EnvelopeCodec interface {
	Marshal(env *Envelope) ([]byte, error)
	Unmarshal(data []byte) (*Envelope, error)
}

// JSONCodec is a JSON-based codec
type JSONCodec struct{}

func (JSONCodec) Encode(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (JSONCodec) Decode(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

// GobCodec encodes values with encoding/gob. Both ends must agree on the
// concrete types.
type GobCodec struct{}

func (GobCodec) Encode(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (GobCodec) Decode(data []byte, v any) error {
	return gob.NewDecoder(bytes.NewReader(data)).Decode(v)
}

// defaultCodec is used when no codec is specified
var defaultCodec Codec = JSONCodec{}

// JSONEnvelopeCodec encodes envelopes as JSON objects
type JSONEnvelopeCodec struct{}

func (JSONEnvelopeCodec) Marshal(env *Envelope) ([]byte, error) {
	return json.Marshal(env)
}

func (JSONEnvelopeCodec) Unmarshal(data []byte) (*Envelope, error) {
	env := new(Envelope)
	if err := json.Unmarshal(data, env); err != nil {
		return nil, errorf(KindProtocolViolation, "decode envelope: %v", err)
	}
	env.ErrKind = kindFromWire(uint64(env.ErrKind))
	return env, nil
}

// defaultEnvelopeCodec is used when no envelope codec is specified
var defaultEnvelopeCodec EnvelopeCodec = WireCodec{}

// Envelope codec names accepted by EnvelopeCodecByName.
const (
	EnvelopeJSON = "json"
	EnvelopeWire = "wire"
)

// EnvelopeCodecByName returns the envelope codec registered under name.
func EnvelopeCodecByName(name string) (EnvelopeCodec, error) {
	switch name {
	case "", EnvelopeWire:
		return WireCodec{}, nil
	case EnvelopeJSON:
		return JSONEnvelopeCodec{}, nil
	default:
		return nil, fmt.Errorf("unknown envelope codec: %s", name)
	}
}
