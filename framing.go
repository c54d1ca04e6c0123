// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package objrpc

import (
	"encoding/binary"
	"sync"
)

const (
	frameHeaderLen = 4

	// DefaultMaxFrameSize bounds a single frame's payload.
	DefaultMaxFrameSize = 64 * 1024 * 1024
)

// FrameReader reassembles length-prefixed frames ([4-byte big-endian
// length][payload]) from arbitrarily split inbound deliveries. Outbound
// messages pass through.
type FrameReader struct {
	mu      sync.Mutex
	buf     []byte
	maxSize uint32
}

// NewFrameReader returns a reader rejecting frames above maxSize (0 means
// DefaultMaxFrameSize).
func NewFrameReader(maxSize uint32) *FrameReader {
	if maxSize == 0 {
		maxSize = DefaultMaxFrameSize
	}
	return &FrameReader{maxSize: maxSize}
}

func (r *FrameReader) HandleInbound(sc *StageContext, data []byte) error {
	frames, err := r.feed(data)
	for _, f := range frames {
		if ferr := sc.FireInbound(f); ferr != nil {
			return ferr
		}
	}
	return err
}

func (r *FrameReader) HandleOutbound(sc *StageContext, msg []byte) error {
	return sc.FireOutbound(msg)
}

// feed appends data and cuts every complete frame. Each returned payload
// is a fresh slice.
func (r *FrameReader) feed(data []byte) ([][]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.buf = append(r.buf, data...)

	var frames [][]byte
	for len(r.buf) >= frameHeaderLen {
		n := binary.BigEndian.Uint32(r.buf[:frameHeaderLen])
		if n > r.maxSize {
			r.buf = nil
			return frames, errorf(KindProtocolViolation, "frame of %d bytes exceeds limit %d", n, r.maxSize)
		}
		end := frameHeaderLen + int(n)
		if len(r.buf) < end {
			break
		}
		frame := make([]byte, n)
		copy(frame, r.buf[frameHeaderLen:end])
		frames = append(frames, frame)
		r.buf = r.buf[end:]
	}
	if len(r.buf) == 0 {
		r.buf = nil
	}
	return frames, nil
}

// Buffered returns the number of bytes held for an incomplete frame.
func (r *FrameReader) Buffered() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.buf)
}

// FrameWriter prefixes outbound payloads with their 4-byte big-endian
// length. Inbound messages pass through.
type FrameWriter struct {
	maxSize uint32
}

// NewFrameWriter returns a writer refusing payloads above maxSize (0 means
// DefaultMaxFrameSize).
func NewFrameWriter(maxSize uint32) *FrameWriter {
	if maxSize == 0 {
		maxSize = DefaultMaxFrameSize
	}
	return &FrameWriter{maxSize: maxSize}
}

func (w *FrameWriter) HandleInbound(sc *StageContext, msg []byte) error {
	return sc.FireInbound(msg)
}

func (w *FrameWriter) HandleOutbound(sc *StageContext, msg []byte) error {
	frame, err := AppendFrame(nil, msg, w.maxSize)
	if err != nil {
		return err
	}
	return sc.FireOutbound(frame)
}

// AppendFrame appends the framed payload to dst.
func AppendFrame(dst, payload []byte, maxSize uint32) ([]byte, error) {
	if uint64(len(payload)) > uint64(maxSize) {
		return nil, errorf(KindInvalidArgument, "payload of %d bytes exceeds frame limit %d", len(payload), maxSize)
	}
	dst = binary.BigEndian.AppendUint32(dst, uint32(len(payload)))
	return append(dst, payload...), nil
}
