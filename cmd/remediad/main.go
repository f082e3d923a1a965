// Command remediad implements the remedia analysis and remediation engine.
//
// The daemon runs a continuous control loop that:
//  1. Collects metric samples from a configured source
//  2. Maintains a sliding statistics window per (subsystem, metric)
//  3. Evaluates threshold, trend, and staleness rules over the windows
//  4. Maps findings to remediation actions and submits them for execution
//  5. Persists samples and execution records to the configured sinks
//
// The daemon serves an HTTP API on port 8082 (configurable) providing:
//   - GET /state/windows - All current window snapshots
//   - GET /state/window?subsystem=<id>&metric=<name> - One window snapshot
//   - GET /actions/recent?limit=<n> - Most recent execution records
//   - GET /healthz - Health check endpoint
//   - GET /metrics - Prometheus metrics endpoint
//
// Usage:
//
//	remediad \
//	  -source=http \
//	  -invoker=http \
//	  -invoker-url=http://remediation-gateway:9000/actions \
//	  -cooldown=5m \
//	  -max-inflight=4 \
//	  -sinks=memory,redis
//
// Environment variables:
//
//	SOURCE          - Metric source kind: system, http (default: system)
//	SOURCE_*        - Source-specific configuration (e.g. SOURCE_URL,
//	                  SOURCE_VALUE_PATH for the http source)
//	THRESHOLD_*     - Per-metric limit overrides (e.g. THRESHOLD_CPU=85)
//	INVOKER         - Remediation invoker: http, log (default: log)
//	INVOKER_URL     - Remediation endpoint URL (required when invoker=http)
//	SINKS           - Persistence sinks: memory, redis, postgres
//	COOLDOWN        - Per-(subsystem, action) repeat interval (default: 5m)
//	MAX_INFLIGHT    - Max concurrent remediation actions (default: 4)
//	TICK_INTERVAL   - Control loop interval (default: 10s)
//	SHUTDOWN_GRACE  - Grace period for in-flight actions (default: 15s)
//	LOG_LEVEL       - Logging level: debug, info, warn, error (default: info)
//	LOG_FORMAT      - Logging format: text, json (default: text)
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/opsloop/remedia/cmd/remediad/config"
	"github.com/opsloop/remedia/cmd/remediad/logger"
	"github.com/opsloop/remedia/cmd/remediad/metrics"
	"github.com/opsloop/remedia/cmd/remediad/router"
	"github.com/opsloop/remedia/cmd/remediad/sinks"
	"github.com/opsloop/remedia/pkg/detect"
	"github.com/opsloop/remedia/pkg/execute"
	"github.com/opsloop/remedia/pkg/httpx"
	"github.com/opsloop/remedia/pkg/recommend"
	"github.com/opsloop/remedia/pkg/sink"
	"github.com/opsloop/remedia/pkg/sources"
)

// version is set via ldflags at build time
var version = "dev"

func main() {
	cfg := config.ParseFlags()

	logger := logger.New(cfg)
	slog.SetDefault(logger)

	logger.Info("starting remediad",
		"version", version,
		"source", cfg.Source,
		"invoker", cfg.Invoker,
		"sinks", cfg.Sinks,
	)

	source, err := sources.New(cfg.Source, cfg.SourceConfig)
	if err != nil {
		logger.Error("failed to create source", "error", err)
		os.Exit(1)
	}

	var invoker execute.Invoker
	switch cfg.Invoker {
	case "http":
		invoker = execute.NewHTTPInvoker(cfg.InvokerURL)
	default:
		invoker = &execute.LogInvoker{Logger: logger}
	}

	executor := execute.NewExecutor(invoker, cfg.Cooldown, cfg.MaxInflight, logger)

	state := sink.NewMemory(sink.DefaultMaxRecords)
	persistence, err := sinks.New(cfg, state, logger)
	if err != nil {
		logger.Error("failed to create sinks", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := persistence.Close(); err != nil {
			logger.Error("failed to close sinks", "error", err)
		}
	}()

	detector := detect.NewDetector(cfg.TrendLimit, cfg.StaleAfter)
	detector.MinSamples = cfg.MinSamples
	for metric, limit := range cfg.Thresholds {
		detector.Thresholds[metric] = limit
	}

	c := NewController(
		[]sources.Source{source},
		detector,
		recommend.New(),
		executor,
		persistence,
		state,
		cfg.WindowSize,
		logger,
		metrics.New(),
	)

	mux := router.SetupRoutes(state, logger)
	handler := httpx.LoggingMiddleware(logger)(mux)
	httpServer := httpx.NewServer(cfg.Listen, handler, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := c.Run(ctx, cfg.TickInterval); err != nil && err != context.Canceled {
			logger.Error("control loop failed", "error", err)
		}
	}()

	consumerDone := make(chan struct{})
	go func() {
		c.ConsumeRecords()
		close(consumerDone)
	}()

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- httpServer.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	select {
	case sig := <-sigCh:
		logger.Info("received shutdown signal", "signal", sig)
	case err := <-serverErr:
		if err != nil {
			logger.Error("server failed", "error", err)
		}
	}

	logger.Info("shutting down")
	cancel()

	// Give in-flight actions their grace period; their records drain through
	// the consumer before the sinks close.
	executor.Close(cfg.ShutdownGrace)
	<-consumerDone

	if err := httpServer.Stop(10 * time.Second); err != nil {
		logger.Error("server shutdown failed", "error", err)
		os.Exit(1)
	}

	logger.Info("shutdown complete")
}
