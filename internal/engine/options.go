package engine

import (
	"time"

	"github.com/okian/rankstream/internal/adapters/cache"
	"github.com/okian/rankstream/internal/domain/model"
	"github.com/okian/rankstream/pkg/logger"
)

// Option applies a configuration option to an Engine.
type Option func(*Engine)

// WithBatchSize sets how many records are pulled per batch.
func WithBatchSize(n int) Option {
	return func(e *Engine) {
		e.batchSize = n
	}
}

// WithScoringWorkers sets the size of the intra-batch scoring pool. One or
// less scores on the calling goroutine.
func WithScoringWorkers(n int) Option {
	return func(e *Engine) {
		e.workers = n
	}
}

// WithProgressEvery logs progress every n batches. Zero disables it.
func WithProgressEvery(n int) Option {
	return func(e *Engine) {
		if n >= 0 {
			e.progressEvery = n
		}
	}
}

// WithClock replaces time.Now as the source of the run reference time.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithCache enables result caching.
func WithCache(c *cache.Cache[*Result]) Option {
	return func(e *Engine) {
		e.cache = c
	}
}

// WithPartialOnCancel makes a cancelled run return the top-K of the batches
// completed so far, flagged Partial, instead of ErrCancelled.
func WithPartialOnCancel(enabled bool) Option {
	return func(e *Engine) {
		e.partialOnCancel = enabled
	}
}

// WithNegativePolicy sets how negative counters are handled.
func WithNegativePolicy(p model.NegativePolicy) Option {
	return func(e *Engine) {
		e.policy = p
	}
}

// WithIDTieBreak breaks exact score ties by post id for a deterministic
// result regardless of arrival order.
func WithIDTieBreak(enabled bool) Option {
	return func(e *Engine) {
		e.idTieBreak = enabled
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}
