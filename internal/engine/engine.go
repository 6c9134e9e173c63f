// Package engine implements the streaming ranking controller. A run pulls
// posts from a source in fixed-size batches, scores each batch (optionally in
// parallel), offers the scores to a bounded top-K tracker in input order and
// finally drains the tracker into a Result.
//
// Batch size only paces memory and telemetry; it never changes the result.
package engine

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"

	"github.com/okian/rankstream/internal/adapters/cache"
	"github.com/okian/rankstream/internal/adapters/source"
	"github.com/okian/rankstream/internal/domain/model"
	"github.com/okian/rankstream/internal/domain/scoring"
	"github.com/okian/rankstream/internal/domain/topk"
	"github.com/okian/rankstream/pkg/logger"
	"github.com/okian/rankstream/pkg/metrics"
)

// Default engine configuration.
const (
	DefaultBatchSize     = 50_000
	DefaultProgressEvery = 10

	// minChunk is the smallest slice of a batch handed to one scoring worker.
	minChunk = 256
	// maxPrealloc caps the upfront batch allocation for very large batch sizes.
	maxPrealloc = 1 << 16
)

// Run outcome labels.
const (
	statusOK        = "ok"
	statusError     = "error"
	statusCancelled = "cancelled"
	statusPartial   = "partial"
	statusCached    = "cached"
)

// Request describes one ranking run.
type Request struct {
	Algorithm string
	TopK      int
	// Params overrides the scoring defaults when set.
	Params *scoring.Params
	// InputKey identifies the input for caching when the source cannot.
	InputKey string
}

// Stats are cumulative engine counters. Runs counts every request that
// reached the engine, including ones rejected before reading input, so
// Failed never exceeds it.
type Stats struct {
	Runs           uint64
	Failed         uint64
	Cancelled      uint64
	CacheHits      uint64
	TotalProcessed uint64

	// Engagement totals over every processed post. Float sums so that large
	// counters cannot overflow.
	TotalLikes    float64
	TotalComments float64
	TotalShares   float64
}

// Engine runs rankings. It is safe for concurrent use; each run owns its own
// tracker and buffers.
type Engine struct {
	batchSize       int
	workers         int
	progressEvery   int
	now             func() time.Time
	cache           *cache.Cache[*Result]
	partialOnCancel bool
	policy          model.NegativePolicy
	idTieBreak      bool
	logger          logger.Logger

	pool   *ants.Pool
	closed atomic.Bool

	runs      atomic.Uint64
	failed    atomic.Uint64
	cancelled atomic.Uint64
	cacheHits atomic.Uint64
	processed atomic.Uint64

	totalsMu sync.Mutex
	totals   engagement
}

// engagement sums counters of processed posts.
type engagement struct {
	likes, comments, shares float64
}

func (g *engagement) add(c model.Counters) {
	g.likes += float64(c.Likes)
	g.comments += float64(c.Comments)
	g.shares += float64(c.Shares)
}

// New creates an engine. Close releases its scoring pool.
func New(opts ...Option) (*Engine, error) {
	e := &Engine{
		batchSize:     DefaultBatchSize,
		workers:       1,
		progressEvery: DefaultProgressEvery,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = logger.Named("engine")
	}
	if e.batchSize <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidBatchSize, e.batchSize)
	}
	if e.workers < 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidWorkers, e.workers)
	}
	if e.workers > 1 {
		pool, err := ants.NewPool(e.workers)
		if err != nil {
			return nil, fmt.Errorf("create scoring pool: %w", err)
		}
		e.pool = pool
	}
	metrics.UpdateScoringWorkers(max(e.workers, 1))
	return e, nil
}

// Close releases the scoring pool. Runs started afterwards fail with
// ErrClosed.
func (e *Engine) Close() error {
	if !e.closed.CompareAndSwap(false, true) {
		return nil
	}
	if e.pool != nil {
		e.pool.Release()
	}
	return nil
}

// Stats returns cumulative counters.
func (e *Engine) Stats() Stats {
	e.totalsMu.Lock()
	totals := e.totals
	e.totalsMu.Unlock()
	return Stats{
		Runs:           e.runs.Load(),
		Failed:         e.failed.Load(),
		Cancelled:      e.cancelled.Load(),
		CacheHits:      e.cacheHits.Load(),
		TotalProcessed: e.processed.Load(),
		TotalLikes:     totals.likes,
		TotalComments:  totals.comments,
		TotalShares:    totals.shares,
	}
}

// BatchSize returns the configured batch size.
func (e *Engine) BatchSize() int { return e.batchSize }

// Rank consumes src and returns the top-K posts under the requested
// algorithm. Configuration errors are reported before any record is read.
// A failed run returns a nil result.
func (e *Engine) Rank(ctx context.Context, src source.Source, req Request) (*Result, error) {
	if e.closed.Load() {
		return nil, ErrClosed
	}
	if src == nil {
		return nil, ErrNilSource
	}
	if req.TopK < 0 {
		e.fail(ctx, req.Algorithm, "invalid_top_k")
		return nil, fmt.Errorf("%w: %d", ErrInvalidTopK, req.TopK)
	}
	var sopts []scoring.Option
	if req.Params != nil {
		sopts = append(sopts, scoring.WithParams(*req.Params))
	}
	scorer, err := scoring.NewScorer(req.Algorithm, sopts...)
	if err != nil {
		e.fail(ctx, req.Algorithm, "invalid_algorithm")
		return nil, err
	}

	if e.cache == nil {
		return e.execute(ctx, src, scorer, req)
	}

	fp, ok := e.fingerprint(src, scorer, req)
	if !ok {
		metrics.RecordCacheBypass()
		e.logger.Debug(ctx, "input cannot be fingerprinted, skipping cache",
			logger.String("algorithm", string(scorer.Algorithm())))
		return e.execute(ctx, src, scorer, req)
	}

	// The run itself honors ctx; waiting on the shared call does not, so a
	// cancelled run still reports how it ended.
	res, cached, err := e.cache.Do(context.WithoutCancel(ctx), fp.Key(), func() (*Result, error) {
		r, err := e.execute(ctx, src, scorer, req)
		if err == nil && r.Partial {
			return r, errPartial
		}
		return r, err
	})
	switch {
	case err != nil && cached && ctx.Err() == nil:
		// Shared a run that failed or was cut short under another caller's
		// context.
		return e.execute(ctx, src, scorer, req)
	case errors.Is(err, errPartial):
		return res.Clone(), nil
	case err != nil:
		return nil, err
	}

	out := res.Clone()
	if cached {
		out.FromCache = true
		e.runs.Add(1)
		e.cacheHits.Add(1)
		metrics.RecordRun(string(out.Algorithm), statusCached)
		e.logger.Info(ctx, "ranking served from cache",
			logger.String("run_id", out.RunID),
			logger.String("algorithm", string(out.Algorithm)),
			logger.Int("top_k", out.TopK))
	}
	return out, nil
}

// errPartial keeps partial results out of the cache.
var errPartial = errors.New("partial result")

func (e *Engine) fingerprint(src source.Source, scorer *scoring.Scorer, req Request) (cache.Fingerprint, bool) {
	fp := cache.Fingerprint{
		Algorithm: scorer.Algorithm(),
		TopK:      req.TopK,
		Params:    scorer.Params(),
		Variant:   fmt.Sprintf("tie_by_id=%t;negative=%s", e.idTieBreak, e.policy),
	}
	if req.InputKey != "" {
		fp.InputKey = req.InputKey
		return fp, true
	}
	ident, ok := src.(source.Identifier)
	if !ok {
		return fp, false
	}
	id, ok := ident.Identity()
	if !ok {
		return fp, false
	}
	fp.Count, fp.Digest = id.Count, id.Digest
	return fp, true
}

// run is the state of one ranking run.
type run struct {
	id      string
	scorer  *scoring.Scorer
	tracker *topk.Tracker
	ref     float64

	batch  []model.Post
	scores []float64

	processed int64
	batches   int
	totals    engagement
}

func (e *Engine) execute(ctx context.Context, src source.Source, scorer *scoring.Scorer, req Request) (*Result, error) {
	var topts []topk.Option
	if e.idTieBreak {
		topts = append(topts, topk.WithIDTieBreak())
	}
	tracker, err := topk.New(req.TopK, topts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidTopK, err)
	}

	refTime := e.now()
	r := &run{
		id:      uuid.NewString(),
		scorer:  scorer,
		tracker: tracker,
		ref:     model.Seconds(refTime),
		batch:   make([]model.Post, 0, min(e.batchSize, maxPrealloc)),
	}
	alg := string(scorer.Algorithm())
	log := e.logger
	start := time.Now()
	e.runs.Add(1)

	log.Info(ctx, "ranking run started",
		logger.String("run_id", r.id),
		logger.String("algorithm", alg),
		logger.Int("top_k", req.TopK),
		logger.Int("batch_size", e.batchSize))

	partial := false
	for {
		if err := ctx.Err(); err != nil {
			if !e.partialOnCancel {
				return nil, e.cancel(ctx, r, alg, err)
			}
			partial = true
			break
		}

		done, err := e.fill(ctx, src, r)
		if err != nil {
			if cerr := ctx.Err(); cerr != nil && errors.Is(err, cerr) {
				if !e.partialOnCancel {
					return nil, e.cancel(ctx, r, alg, cerr)
				}
				partial = true
				break
			}
			e.failed.Add(1)
			metrics.RecordRun(alg, statusError)
			log.Error(ctx, "ranking run failed",
				logger.String("run_id", r.id),
				logger.Int64("processed", r.processed),
				logger.Error(err))
			return nil, err
		}

		if len(r.batch) > 0 {
			e.score(r)
			for i := range r.batch {
				r.tracker.Offer(r.scores[i], r.batch[i].ID, r.batch[i])
				r.totals.add(r.batch[i].Counters())
			}
			r.processed += int64(len(r.batch))
			r.batches++
			metrics.RecordBatch()
			metrics.RecordPostsProcessed(len(r.batch))
			e.progress(ctx, r, start)
		}
		if done {
			break
		}
	}

	stats := r.tracker.Stats()
	metrics.RecordTracker(stats.Admitted, stats.Rejected, stats.Evicted)

	entries := r.tracker.Drain()
	posts := make([]Ranked, len(entries))
	for i, en := range entries {
		posts[i] = Ranked{Rank: i + 1, Score: en.Score, Post: en.Post}
	}

	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	elapsed := time.Since(start)
	res := &Result{
		RunID:          r.id,
		Algorithm:      scorer.Algorithm(),
		TopK:           req.TopK,
		BatchSize:      e.batchSize,
		Batches:        r.batches,
		TotalProcessed: r.processed,
		Duration:       elapsed,
		Throughput:     throughput(r.processed, elapsed),
		MemoryBytes:    ms.HeapAlloc,
		Partial:        partial,
		ReferenceTime:  refTime,
		Posts:          posts,
	}
	e.processed.Add(uint64(r.processed))
	e.totalsMu.Lock()
	e.totals.likes += r.totals.likes
	e.totals.comments += r.totals.comments
	e.totals.shares += r.totals.shares
	e.totalsMu.Unlock()

	status := statusOK
	if partial {
		status = statusPartial
		e.cancelled.Add(1)
	}
	metrics.RecordRun(alg, status)
	metrics.RecordRunDuration(alg, elapsed.Seconds())
	metrics.UpdateLastRun(res.Throughput, res.MemoryBytes)

	log.Info(ctx, "ranking run finished",
		logger.String("run_id", r.id),
		logger.Int64("processed", r.processed),
		logger.Int("returned", len(posts)),
		logger.Int("batches", r.batches),
		logger.Duration("elapsed", elapsed),
		logger.Float64("throughput", res.Throughput),
		logger.Bool("partial", partial))
	return res, nil
}

// fill pulls up to one batch from src into r.batch. done reports exhaustion.
func (e *Engine) fill(ctx context.Context, src source.Source, r *run) (done bool, err error) {
	r.batch = r.batch[:0]
	for len(r.batch) < e.batchSize {
		p, ok, err := src.Next(ctx)
		pos := int(r.processed) + len(r.batch)
		if err != nil {
			if errors.Is(err, model.ErrMalformedRecord) {
				metrics.RecordMalformedRecord()
				metrics.RecordErrorByComponent("engine", "malformed_record")
				return false, model.WithPosition(err, pos)
			}
			if ctx.Err() != nil {
				return false, err
			}
			metrics.RecordErrorByComponent("engine", "source")
			return false, fmt.Errorf("read record %d: %w", pos, err)
		}
		if !ok {
			return true, nil
		}
		p, err = model.Normalize(pos, p, e.policy)
		if err != nil {
			metrics.RecordMalformedRecord()
			metrics.RecordErrorByComponent("engine", "malformed_record")
			return false, err
		}
		r.batch = append(r.batch, p)
	}
	return false, nil
}

// score fills r.scores for r.batch. Large batches are split across the pool.
func (e *Engine) score(r *run) {
	if cap(r.scores) < len(r.batch) {
		r.scores = make([]float64, cap(r.batch))
	}
	batch, scores := r.batch, r.scores[:len(r.batch)]
	s, now := r.scorer, r.ref

	if e.pool == nil || len(batch) < 2*minChunk {
		for i := range batch {
			scores[i] = s.Score(batch[i], now)
		}
		return
	}

	size := max((len(batch)+e.workers-1)/e.workers, minChunk)
	var wg sync.WaitGroup
	for lo := 0; lo < len(batch); lo += size {
		lo := lo // per-iteration copy: the closure below runs asynchronously (go 1.21 loop semantics)
		hi := min(lo+size, len(batch))
		work := func() {
			for i := lo; i < hi; i++ {
				scores[i] = s.Score(batch[i], now)
			}
		}
		wg.Add(1)
		if err := e.pool.Submit(func() {
			defer wg.Done()
			work()
		}); err != nil {
			wg.Done()
			work()
		}
	}
	wg.Wait()
}

func (e *Engine) progress(ctx context.Context, r *run, start time.Time) {
	if e.progressEvery == 0 || r.batches%e.progressEvery != 0 {
		return
	}
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	e.logger.Info(ctx, "ranking progress",
		logger.String("run_id", r.id),
		logger.Int("batches", r.batches),
		logger.Int64("processed", r.processed),
		logger.Uint64("heap_bytes", ms.HeapAlloc),
		logger.Duration("elapsed", time.Since(start)))
}

func (e *Engine) cancel(ctx context.Context, r *run, alg string, cause error) error {
	e.cancelled.Add(1)
	metrics.RecordRun(alg, statusCancelled)
	e.logger.Warn(ctx, "ranking run cancelled",
		logger.String("run_id", r.id),
		logger.Int64("processed", r.processed),
		logger.Int("batches", r.batches))
	return fmt.Errorf("%w: %w", ErrCancelled, cause)
}

func (e *Engine) fail(ctx context.Context, alg, reason string) {
	label := alg
	if _, err := scoring.ParseAlgorithm(alg); err != nil {
		label = "unknown"
	}
	e.runs.Add(1)
	e.failed.Add(1)
	metrics.RecordRun(label, statusError)
	metrics.RecordErrorByComponent("engine", reason)
	e.logger.Warn(ctx, "ranking request rejected",
		logger.String("algorithm", alg),
		logger.String("reason", reason))
}

func throughput(n int64, d time.Duration) float64 {
	if d <= 0 {
		return 0
	}
	return float64(n) / d.Seconds()
}
