// Command rankstream ranks a stream of JSON-lines post records and prints the
// top-K as JSON.
//
// Usage:
//
//	rankstream [input]
//
// input is a file path or "-" for stdin and overrides RANKSTREAM_INPUT. Every
// other setting comes from the environment (RANKSTREAM_*) or the YAML file
// named by RANKSTREAM_CONFIG.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/okian/rankstream/internal/adapters/http/api"
	"github.com/okian/rankstream/internal/adapters/source"
	app "github.com/okian/rankstream/internal/app"
	"github.com/okian/rankstream/internal/config"
	"github.com/okian/rankstream/pkg/logger"
	"github.com/okian/rankstream/pkg/metrics"
)

const (
	systemMetricsInterval     = 10 * time.Second
	nanosecondsPerMillisecond = 1e6
	stdinInput                = "-"
)

func main() {
	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, "rankstream: "+err.Error())
		stop()
		os.Exit(1)
	}
}

// run loads configuration, ranks the input and writes the ranking to stdout.
// Logs go to stderr.
func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	// Load configuration (defaults -> optional file -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		return err
	}
	if len(args) > 0 {
		cfg.Input = args[0]
	}

	if err := logger.Init(
		logger.WithFormat(logger.Format(cfg.LogFormat)),
		logger.WithLevel(cfg.LogLevel),
		logger.WithWriter(stderr),
	); err != nil {
		return fmt.Errorf("initialize logging: %w", err)
	}
	defer func() { _ = logger.Sync() }()
	log := logger.Named("cmd")

	svc := app.New(
		app.WithConfig(cfg),
		app.WithLogger(logger.Get()),
	)
	if err := svc.Start(ctx); err != nil {
		return fmt.Errorf("start service: %w", err)
	}
	defer svc.Stop()

	if cfg.MetricsAddr != "" {
		serverCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		metrics.RegisterRuntimeCollectors()
		go startSystemMetricsUpdater(serverCtx)
		go func() {
			if err := api.NewServer(svc).ListenAndServe(serverCtx, cfg.MetricsAddr); err != nil {
				log.Error(ctx, "observability server failed", logger.Error(err))
			}
		}()
	}

	src, closeSrc, err := openInput(cfg.Input, stdin, svc)
	if err != nil {
		return err
	}
	defer func() { _ = closeSrc() }()

	res, err := svc.Rank(ctx, src, svc.Request())
	if err != nil {
		return fmt.Errorf("rank %s: %w", cfg.Input, err)
	}

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(res.Ranking()); err != nil {
		return fmt.Errorf("write result: %w", err)
	}
	return nil
}

// openInput returns a source over stdin or the named file.
func openInput(input string, stdin io.Reader, svc *app.Service) (source.Source, func() error, error) {
	if input == "" || input == stdinInput {
		return source.NewLines(stdin, svc.Decoder()), func() error { return nil }, nil
	}
	f, err := source.Open(input, svc.Decoder())
	if err != nil {
		return nil, nil, err
	}
	return f, f.Close, nil
}

// startSystemMetricsUpdater starts a background goroutine that updates system metrics.
func startSystemMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(systemMetricsInterval)
	defer ticker.Stop()

	updateSystemMetrics()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateSystemMetrics()
		}
	}
}

// updateSystemMetrics updates system-level metrics.
func updateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	metrics.UpdateSystemMemoryUsage(m.Alloc)
	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())

	if m.NumGC > 0 {
		avgPauseMs := float64(m.PauseTotalNs) / float64(m.NumGC) / nanosecondsPerMillisecond
		metrics.RecordSystemGCPauseTime(avgPauseMs)
	}
}
