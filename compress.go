// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package objrpc

import (
	"bytes"
	"fmt"
	"io"
	"sync"

	"github.com/klauspost/compress/gzip"
)

var gzipWriters = sync.Pool{
	New: func() any {
		w, _ := gzip.NewWriterLevel(nil, gzip.BestSpeed)
		return w
	},
}

// recycleWriter returns w to the pool without its last destination.
func recycleWriter(w *gzip.Writer) {
	w.Reset(io.Discard)
	gzipWriters.Put(w)
}

// Compress gzips data. Empty input yields a valid, non-empty stream.
func Compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := gzipWriters.Get().(*gzip.Writer)
	defer recycleWriter(w)
	w.Reset(&buf)
	if _, err := w.Write(data); err != nil {
		return nil, fmt.Errorf("gzip write: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("gzip close: %w", err)
	}
	return buf.Bytes(), nil
}

// Decompress reverses Compress, refusing output larger than limit bytes
// (0 means DefaultMaxFrameSize).
func Decompress(data []byte, limit int64) ([]byte, error) {
	if limit <= 0 {
		limit = DefaultMaxFrameSize
	}
	r, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("gzip header: %w", err)
	}
	defer r.Close()
	out, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, fmt.Errorf("gzip read: %w", err)
	}
	if int64(len(out)) > limit {
		return nil, fmt.Errorf("gzip: payload exceeds %d bytes", limit)
	}
	return out, nil
}

// Compressor compresses outbound and decompresses inbound payloads.
type Compressor struct {
	limit int64
}

// NewCompressor returns a compression stage bounding decompressed payloads
// to limit bytes.
func NewCompressor(limit int64) *Compressor {
	return &Compressor{limit: limit}
}

func (c *Compressor) HandleInbound(sc *StageContext, msg []byte) error {
	out, err := Decompress(msg, c.limit)
	if err != nil {
		return errorf(KindProtocolViolation, "%v", err)
	}
	return sc.FireInbound(out)
}

func (c *Compressor) HandleOutbound(sc *StageContext, msg []byte) error {
	out, err := Compress(msg)
	if err != nil {
		return err
	}
	return sc.FireOutbound(out)
}
