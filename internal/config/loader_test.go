package config_test

import (
	"context"
	"errors"
	"os"
	"runtime"
	"testing"
	"time"

	"github.com/okian/rankstream/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfigLoader(t *testing.T) {
	convey.Convey("Given a config loader", t, func() {
		ctx := context.Background()

		convey.Convey("When loading config with defaults only", func() {
			clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load successfully with defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg, convey.ShouldNotBeNil)
				convey.So(cfg.Algorithm, convey.ShouldEqual, "hot_score")
				convey.So(cfg.TopK, convey.ShouldEqual, 100)
				convey.So(cfg.BatchSize, convey.ShouldEqual, 50_000)
				convey.So(cfg.DecayRate, convey.ShouldEqual, 0.01)
				convey.So(cfg.ScoringWorkers, convey.ShouldEqual, runtime.NumCPU())
				convey.So(cfg.CacheEnabled, convey.ShouldBeFalse)
				convey.So(cfg.CacheTTL, convey.ShouldEqual, time.Minute)
				convey.So(cfg.CacheMaxEntries, convey.ShouldEqual, 1000)
				convey.So(cfg.NegativeCounters, convey.ShouldEqual, "clamp")
				convey.So(cfg.Input, convey.ShouldEqual, "-")
			})
		})

		convey.Convey("When loading config with environment variables", func() {
			_ = os.Setenv("RANKSTREAM_ALGORITHM", "time_decay")
			_ = os.Setenv("RANKSTREAM_TOP_K", "25")
			_ = os.Setenv("RANKSTREAM_BATCH_SIZE", "1000")
			_ = os.Setenv("RANKSTREAM_DECAY_RATE", "0.05")
			_ = os.Setenv("RANKSTREAM_CACHE_ENABLED", "true")
			_ = os.Setenv("RANKSTREAM_CACHE_TTL", "30s")
			_ = os.Setenv("RANKSTREAM_STABLE_TIE_BREAK", "true")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should override defaults with env vars", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg, convey.ShouldNotBeNil)
				convey.So(cfg.Algorithm, convey.ShouldEqual, "time_decay")
				convey.So(cfg.TopK, convey.ShouldEqual, 25)
				convey.So(cfg.BatchSize, convey.ShouldEqual, 1000)
				convey.So(cfg.DecayRate, convey.ShouldEqual, 0.05)
				convey.So(cfg.CacheEnabled, convey.ShouldBeTrue)
				convey.So(cfg.CacheTTL, convey.ShouldEqual, 30*time.Second)
				convey.So(cfg.StableTieBreak, convey.ShouldBeTrue)
			})
		})

		convey.Convey("When loading config with YAML file", func() {
			yamlContent := `
algorithm: hybrid
top_k: 10
batch_size: 500
hybrid_weights:
  hot: 0.5
  engagement: 0.25
  time_decay: 0.25
negative_counters: reject
cache_ttl: 5m
`
			tmpFile := createTempConfigFile(yamlContent)
			defer func() { _ = os.Remove(tmpFile) }()

			_ = os.Setenv("RANKSTREAM_CONFIG", tmpFile)
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load from YAML file", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg, convey.ShouldNotBeNil)
				convey.So(cfg.Algorithm, convey.ShouldEqual, "hybrid")
				convey.So(cfg.TopK, convey.ShouldEqual, 10)
				convey.So(cfg.BatchSize, convey.ShouldEqual, 500)
				convey.So(cfg.HybridWeights.Hot, convey.ShouldEqual, 0.5)
				convey.So(cfg.HybridWeights.Engagement, convey.ShouldEqual, 0.25)
				convey.So(cfg.HybridWeights.TimeDecay, convey.ShouldEqual, 0.25)
				convey.So(cfg.NegativeCounters, convey.ShouldEqual, "reject")
				convey.So(cfg.CacheTTL, convey.ShouldEqual, 5*time.Minute)
				convey.So(cfg.DecayRate, convey.ShouldEqual, 0.01) // From defaults
			})

			convey.Convey("Then the scoring params should reflect it", func() {
				convey.So(err, convey.ShouldBeNil)
				p := cfg.Params()
				convey.So(p.Weights.Hot, convey.ShouldEqual, 0.5)
				convey.So(p.DecayRate, convey.ShouldEqual, 0.01)
			})
		})

		convey.Convey("When loading config with both file and environment variables", func() {
			yamlContent := `
algorithm: engagement_score
top_k: 10
batch_size: 500
`
			tmpFile := createTempConfigFile(yamlContent)
			defer func() { _ = os.Remove(tmpFile) }()

			_ = os.Setenv("RANKSTREAM_CONFIG", tmpFile)
			_ = os.Setenv("RANKSTREAM_TOP_K", "3") // This should override the file
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then environment variables should override file values", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg, convey.ShouldNotBeNil)
				convey.So(cfg.TopK, convey.ShouldEqual, 3)                       // Overridden by env
				convey.So(cfg.Algorithm, convey.ShouldEqual, "engagement_score") // From file
				convey.So(cfg.BatchSize, convey.ShouldEqual, 500)                // From file
				convey.So(cfg.ProgressEveryBatches, convey.ShouldEqual, 10)      // From defaults
			})
		})

		convey.Convey("When loading config with invalid YAML file", func() {
			tmpFile := createTempConfigFile(`invalid: yaml: content: [`)
			defer func() { _ = os.Remove(tmpFile) }()

			_ = os.Setenv("RANKSTREAM_CONFIG", tmpFile)
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a load error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with non-existent file", func() {
			_ = os.Setenv("RANKSTREAM_CONFIG", "/non/existent/file.yaml")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return an error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with invalid numeric environment variables", func() {
			_ = os.Setenv("RANKSTREAM_TOP_K", "not_a_number")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return an error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})
	})
}

func TestConfigValidation(t *testing.T) {
	convey.Convey("Given invalid settings", t, func() {
		ctx := context.Background()

		cases := []struct {
			name, key, value, contains string
		}{
			{"unknown algorithm", "RANKSTREAM_ALGORITHM", "foo", "unknown algorithm"},
			{"negative top_k", "RANKSTREAM_TOP_K", "-1", "top_k must not be negative"},
			{"zero batch size", "RANKSTREAM_BATCH_SIZE", "0", "batch_size must be positive"},
			{"negative workers", "RANKSTREAM_SCORING_WORKERS", "-2", "scoring_workers"},
			{"unknown negative policy", "RANKSTREAM_NEGATIVE_COUNTERS", "ignore", "negative counter policy"},
			{"unknown log format", "RANKSTREAM_LOG_FORMAT", "xml", "log_format"},
		}

		for _, tc := range cases {
			convey.Convey("When "+tc.name+" is set", func() {
				_ = os.Setenv(tc.key, tc.value)
				defer clearConfigEnvVars()

				cfg, err := config.Load(ctx)

				convey.Convey("Then it should return a validation error", func() {
					convey.So(cfg, convey.ShouldBeNil)
					convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
					convey.So(err.Error(), convey.ShouldContainSubstring, tc.contains)
				})
			})
		}

		convey.Convey("When zero top_k is set", func() {
			_ = os.Setenv("RANKSTREAM_TOP_K", "0")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should be accepted", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.TopK, convey.ShouldEqual, 0)
			})
		})

		convey.Convey("When the cache is enabled with a zero ttl", func() {
			cfg := config.New()
			cfg.CacheEnabled = true
			cfg.CacheTTL = 0

			convey.Convey("Then Validate should fail", func() {
				err := cfg.Validate()
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
				convey.So(err.Error(), convey.ShouldContainSubstring, "cache_ttl")
			})
		})
	})
}

// Helper functions.

func clearConfigEnvVars() {
	envVars := []string{
		"RANKSTREAM_CONFIG",
		"RANKSTREAM_ALGORITHM",
		"RANKSTREAM_TOP_K",
		"RANKSTREAM_BATCH_SIZE",
		"RANKSTREAM_DECAY_RATE",
		"RANKSTREAM_SCORING_WORKERS",
		"RANKSTREAM_CACHE_ENABLED",
		"RANKSTREAM_CACHE_TTL",
		"RANKSTREAM_NEGATIVE_COUNTERS",
		"RANKSTREAM_STABLE_TIE_BREAK",
		"RANKSTREAM_LOG_FORMAT",
	}
	for _, envVar := range envVars {
		_ = os.Unsetenv(envVar)
	}
}

func createTempConfigFile(content string) string {
	tmpFile, err := os.CreateTemp("", "rankstream-config-*.yaml")
	if err != nil {
		panic(err)
	}

	if _, err := tmpFile.WriteString(content); err != nil {
		panic(err)
	}

	if err := tmpFile.Close(); err != nil {
		panic(err)
	}

	return tmpFile.Name()
}
