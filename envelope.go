// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package objrpc

// Envelope is the unit exchanged between two endpoints. A request carries
// ordered, individually encoded parameters; a response carries either an
// encoded result or an error kind with its message.
type Envelope struct {
	UUID        string   `json:"uuid"`
	InstanceID  string   `json:"instance"`
	InterfaceID string   `json:"interface"`
	Method      string   `json:"method"`
	IsResponse  bool     `json:"response,omitempty"`
	Params      [][]byte `json:"params,omitempty"`
	Result      []byte   `json:"result,omitempty"`
	ErrKind     Kind     `json:"errKind,omitempty"`
	ErrMsg      string   `json:"errMsg,omitempty"`
}

// Err returns the error carried by a response envelope, or nil.
func (e *Envelope) Err() error {
	if e.ErrKind == KindNone {
		return nil
	}
	return &Error{Kind: e.ErrKind, Msg: e.ErrMsg}
}

func newRequest(uuid, instanceID, interfaceID, method string, params [][]byte) *Envelope {
	return &Envelope{
		UUID:        uuid,
		InstanceID:  instanceID,
		InterfaceID: interfaceID,
		Method:      method,
		Params:      params,
	}
}

// reply builds the response to req.
func (e *Envelope) reply(result []byte, err error) *Envelope {
	resp := &Envelope{
		UUID:        e.UUID,
		InstanceID:  e.InstanceID,
		InterfaceID: e.InterfaceID,
		Method:      e.Method,
		IsResponse:  true,
		Result:      result,
	}
	if err != nil {
		resp.Result = nil
		resp.ErrKind, resp.ErrMsg = wireError(err)
	}
	return resp
}

// Args gives a stub positional access to the parameters of a request.
type Args struct {
	codec  Codec
	params [][]byte
}

// NewArgs wraps already encoded parameters.
func NewArgs(codec Codec, params [][]byte) Args {
	return Args{codec: codec, params: params}
}

// Len returns the number of parameters.
func (a Args) Len() int { return len(a.params) }

// Decode decodes the i-th parameter into v.
func (a Args) Decode(i int, v any) error {
	if i < 0 || i >= len(a.params) {
		return errorf(KindProtocolViolation, "missing parameter %d of %d", i, len(a.params))
	}
	if err := a.codec.Decode(a.params[i], v); err != nil {
		return errorf(KindProtocolViolation, "decode parameter %d: %v", i, err)
	}
	return nil
}

func encodeParams(codec Codec, params []any) ([][]byte, error) {
	out := make([][]byte, len(params))
	for i, p := range params {
		b, err := codec.Encode(p)
		if err != nil {
			return nil, errorf(KindInvalidArgument, "encode parameter %d: %v", i, err)
		}
		out[i] = b
	}
	return out, nil
}
