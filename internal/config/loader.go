package config

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/okian/rankstream/internal/domain/model"
	"github.com/okian/rankstream/internal/domain/scoring"
)

// Environment names.
const (
	EnvPrefix     = "RANKSTREAM_"
	EnvConfigFile = "RANKSTREAM_CONFIG"
)

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New())
//  2. file (YAML) if RANKSTREAM_CONFIG is set
//  3. env (prefix RANKSTREAM_)
func Load(_ context.Context) (*Config, error) {
	base := New()
	k := koanf.New(".")

	if path := os.Getenv(EnvConfigFile); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrLoadConfig, path, err)
		}
	}

	// RANKSTREAM_TOP_K -> top_k. Keys stay flat, so nested values such as
	// hybrid_weights are only settable from the file.
	envProvider := env.Provider(EnvPrefix, ".", func(s string) string {
		s = strings.ToLower(s)
		return strings.TrimPrefix(s, strings.ToLower(EnvPrefix))
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: env: %w", ErrLoadConfig, err)
	}
	// The file path itself is not a config key.
	k.Delete("config")

	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if _, err := scoring.ParseAlgorithm(c.Algorithm); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if c.TopK < 0 {
		return fmt.Errorf("%w: top_k must not be negative, got %d", ErrInvalidConfig, c.TopK)
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("%w: batch_size must be positive, got %d", ErrInvalidConfig, c.BatchSize)
	}
	if c.ScoringWorkers < 0 {
		return fmt.Errorf("%w: scoring_workers must not be negative, got %d", ErrInvalidConfig, c.ScoringWorkers)
	}
	if c.ProgressEveryBatches < 0 {
		return fmt.Errorf("%w: progress_every_batches must not be negative", ErrInvalidConfig)
	}
	if c.CacheEnabled && c.CacheTTL <= 0 {
		return fmt.Errorf("%w: cache_ttl must be positive when the cache is enabled", ErrInvalidConfig)
	}
	if _, err := model.ParseNegativePolicy(c.NegativeCounters); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if err := c.Params().Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		return fmt.Errorf("%w: log_format must be text or json, got %q", ErrInvalidConfig, c.LogFormat)
	}
	return nil
}
