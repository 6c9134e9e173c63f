// Package config defines process configuration and its layered loading.
//
// Conventions:
// - New returns a Config holding every default.
// - Load layers a YAML file and environment variables over the defaults.
// - External errors are wrapped with this package's sentinel errors.
package config

import (
	"runtime"
	"time"

	"github.com/okian/rankstream/internal/domain/scoring"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`
	// LogFormat selects text or json log output.
	LogFormat string `koanf:"log_format"`

	// Algorithm is one of hot_score, engagement_score, time_decay, hybrid.
	Algorithm string `koanf:"algorithm"`
	// TopK is the number of posts returned.
	TopK int `koanf:"top_k"`
	// BatchSize is how many records are pulled per batch.
	BatchSize int `koanf:"batch_size"`
	// DecayRate is the time_decay exponential rate.
	DecayRate float64 `koanf:"decay_rate"`
	// HybridWeights combine the three base formulas in hybrid.
	HybridWeights scoring.Weights `koanf:"hybrid_weights"`

	// ScoringWorkers sizes the intra-batch scoring pool; 1 scores inline.
	ScoringWorkers int `koanf:"scoring_workers"`
	// ProgressEveryBatches logs progress every n batches; 0 disables it.
	ProgressEveryBatches int `koanf:"progress_every_batches"`

	CacheEnabled    bool          `koanf:"cache_enabled"`
	CacheTTL        time.Duration `koanf:"cache_ttl"`
	CacheMaxEntries int           `koanf:"cache_max_entries"`

	// NegativeCounters is clamp or reject.
	NegativeCounters string `koanf:"negative_counters"`
	// StableTieBreak orders exact score ties by post id.
	StableTieBreak bool `koanf:"stable_tie_break"`
	// PartialOnCancel returns the top-K of the processed prefix on cancel.
	PartialOnCancel bool `koanf:"partial_on_cancel"`

	// MetricsAddr serves /metrics, /healthz and /stats when set, e.g. ":9090".
	MetricsAddr string `koanf:"metrics_addr"`
	// Input is a JSON-lines file path, or "-" for stdin.
	Input string `koanf:"input"`
}

// New creates a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:             "info",
		LogFormat:            "text",
		Algorithm:            string(scoring.HotScore),
		TopK:                 100,
		BatchSize:            50_000,
		DecayRate:            scoring.DefaultDecayRate,
		HybridWeights:        scoring.DefaultWeights(),
		ScoringWorkers:       runtime.NumCPU(),
		ProgressEveryBatches: 10,
		CacheEnabled:         false,
		CacheTTL:             time.Minute,
		CacheMaxEntries:      1000,
		NegativeCounters:     "clamp",
		StableTieBreak:       false,
		PartialOnCancel:      false,
		MetricsAddr:          "",
		Input:                "-",
	}
}

// Params returns the scoring parameters described by c.
func (c *Config) Params() scoring.Params {
	p := scoring.DefaultParams()
	p.DecayRate = c.DecayRate
	p.Weights = c.HybridWeights
	return p
}
