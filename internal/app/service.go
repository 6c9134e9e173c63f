// Package service wires configuration, the ranking engine and the result
// cache into one embeddable facade.
package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/okian/rankstream/internal/adapters/cache"
	"github.com/okian/rankstream/internal/adapters/source"
	"github.com/okian/rankstream/internal/config"
	"github.com/okian/rankstream/internal/domain/model"
	"github.com/okian/rankstream/internal/engine"
	"github.com/okian/rankstream/pkg/logger"
	"github.com/okian/rankstream/pkg/metrics"
)

// Service ranks post streams with the configured defaults.
type Service struct {
	mu sync.RWMutex

	cfg    *config.Config
	now    func() time.Time
	policy model.NegativePolicy

	// Core components
	engine *engine.Engine
	cache  *cache.Cache[*engine.Result]

	// State
	started   bool
	startedAt time.Time
	last      *engine.Result

	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithConfig replaces the default configuration.
func WithConfig(cfg *config.Config) Option {
	return func(s *Service) {
		if cfg != nil {
			s.cfg = cfg
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock sets the clock used for run reference times and for records
// that carry no timestamp.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// New constructs a new Service. Start must be called before ranking.
func New(opts ...Option) *Service {
	s := &Service{
		cfg: config.New(),
		now: time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start validates the configuration and builds the engine. Calling it on a
// started service is a no-op.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Named("service")
	}
	if err := s.cfg.Validate(); err != nil {
		return err
	}
	policy, err := model.ParseNegativePolicy(s.cfg.NegativeCounters)
	if err != nil {
		return fmt.Errorf("%w: %w", config.ErrInvalidConfig, err)
	}
	s.policy = policy

	opts := []engine.Option{
		engine.WithBatchSize(s.cfg.BatchSize),
		engine.WithScoringWorkers(s.cfg.ScoringWorkers),
		engine.WithProgressEvery(s.cfg.ProgressEveryBatches),
		engine.WithClock(s.now),
		engine.WithNegativePolicy(policy),
		engine.WithIDTieBreak(s.cfg.StableTieBreak),
		engine.WithPartialOnCancel(s.cfg.PartialOnCancel),
		engine.WithLogger(s.logger.Named("engine")),
	}
	s.cache = nil
	if s.cfg.CacheEnabled {
		s.cache = cache.New[*engine.Result](
			cache.WithTTL(s.cfg.CacheTTL),
			cache.WithMaxEntries(s.cfg.CacheMaxEntries),
			cache.WithClock(s.now),
		)
		opts = append(opts, engine.WithCache(s.cache))
	}

	eng, err := engine.New(opts...)
	if err != nil {
		return fmt.Errorf("start engine: %w", err)
	}
	s.engine = eng
	s.started = true
	s.startedAt = s.now()

	s.logger.Info(ctx, "ranking service started",
		logger.String("algorithm", s.cfg.Algorithm),
		logger.Int("top_k", s.cfg.TopK),
		logger.Int("batch_size", s.cfg.BatchSize),
		logger.Int("scoring_workers", s.cfg.ScoringWorkers),
		logger.Bool("cache_enabled", s.cfg.CacheEnabled),
	)
	return nil
}

// Stop releases the engine. Runs in flight finish; later calls to Rank fail
// with ErrNotStarted.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	if err := s.engine.Close(); err != nil {
		s.logger.Warn(context.Background(), "close engine", logger.Error(err))
	}
	if s.cache != nil {
		s.cache.Clear()
	}
	s.started = false
	s.logger.Info(context.Background(), "ranking service stopped")
}

// Request returns a request populated with the configured algorithm, K and
// scoring parameters.
func (s *Service) Request() engine.Request {
	params := s.cfg.Params()
	return engine.Request{
		Algorithm: s.cfg.Algorithm,
		TopK:      s.cfg.TopK,
		Params:    &params,
	}
}

// Decoder returns the record decoder matching the service's negative counter
// policy and clock.
func (s *Service) Decoder() model.Decoder {
	policy, _ := model.ParseNegativePolicy(s.cfg.NegativeCounters)
	return model.Decoder{Policy: policy, Now: s.now}
}

// Rank runs one ranking over src. An empty algorithm or nil params fall back
// to the configured values; TopK is taken as given.
func (s *Service) Rank(ctx context.Context, src source.Source, req engine.Request) (*engine.Result, error) {
	s.mu.RLock()
	eng, started := s.engine, s.started
	s.mu.RUnlock()
	if !started {
		return nil, ErrNotStarted
	}

	if req.Algorithm == "" {
		req.Algorithm = s.cfg.Algorithm
	}
	if req.Params == nil {
		params := s.cfg.Params()
		req.Params = &params
	}

	res, err := eng.Rank(ctx, src, req)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.last = res
	s.mu.Unlock()
	return res, nil
}

// RankPosts ranks an in-memory slice.
func (s *Service) RankPosts(ctx context.Context, posts []model.Post, req engine.Request) (*engine.Result, error) {
	return s.Rank(ctx, source.Slice(posts), req)
}

// RankMaps ranks raw key-value records, decoding them with Decoder.
func (s *Service) RankMaps(ctx context.Context, records []map[string]any, req engine.Request) (*engine.Result, error) {
	return s.Rank(ctx, source.Maps(records, s.Decoder()), req)
}

// ClearCache drops every cached result.
func (s *Service) ClearCache() {
	s.mu.RLock()
	c := s.cache
	s.mu.RUnlock()
	if c != nil {
		c.Clear()
	}
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]interface{}{
		"started":         s.started,
		"algorithm":       s.cfg.Algorithm,
		"top_k":           s.cfg.TopK,
		"batch_size":      s.cfg.BatchSize,
		"scoring_workers": s.cfg.ScoringWorkers,
		"cache_enabled":   s.cfg.CacheEnabled,
	}
	if !s.started {
		return stats
	}

	es := s.engine.Stats()
	stats["uptime_seconds"] = s.now().Sub(s.startedAt).Seconds()
	stats["runs"] = es.Runs
	stats["failed_runs"] = es.Failed
	stats["cancelled_runs"] = es.Cancelled
	stats["cache_hits"] = es.CacheHits
	stats["total_processed"] = es.TotalProcessed
	stats["total_likes"] = es.TotalLikes
	stats["total_comments"] = es.TotalComments
	stats["total_shares"] = es.TotalShares
	stats["avg_likes_per_post"] = perPost(es.TotalLikes, es.TotalProcessed)
	stats["avg_comments_per_post"] = perPost(es.TotalComments, es.TotalProcessed)
	stats["avg_shares_per_post"] = perPost(es.TotalShares, es.TotalProcessed)
	if s.cache != nil {
		n := s.cache.Len()
		stats["cache_entries"] = n
		metrics.UpdateCacheEntries(n)
	}
	if s.last != nil {
		stats["last_run"] = s.last.Summary()
	}
	return stats
}

func perPost(total float64, posts uint64) float64 {
	if posts == 0 {
		return 0
	}
	return total / float64(posts)
}
