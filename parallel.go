// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package objrpc

import (
	"go.uber.org/zap"
)

// ParallelHandler moves inbound processing onto a worker pool so the
// transport's read loop never runs application code. Outbound messages
// pass through on the caller's goroutine.
type ParallelHandler struct {
	pool   *Pool
	logger *zap.Logger
}

// NewParallelHandler returns a stage posting to pool.
func NewParallelHandler(pool *Pool, logger *zap.Logger) *ParallelHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ParallelHandler{pool: pool, logger: logger}
}

func (p *ParallelHandler) HandleInbound(sc *StageContext, msg []byte) error {
	err := p.pool.Post(func() {
		if err := sc.FireInbound(msg); err != nil {
			p.logger.Warn("inbound processing failed", zap.String("stage", sc.Name()), zap.Error(err))
			sc.Close(err)
		}
	})
	if err != nil {
		return errorf(KindConnectionClosed, "%v", err)
	}
	return nil
}

func (p *ParallelHandler) HandleOutbound(sc *StageContext, msg []byte) error {
	return sc.FireOutbound(msg)
}
