// Command fathom is an MCP server exposing OpenAI text generation, web
// search, and deep research as tools over stdio.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/fathom-mcp/fathom/internal/config"
	"github.com/fathom-mcp/fathom/internal/engine"
	"github.com/fathom-mcp/fathom/internal/ledger"
	"github.com/fathom-mcp/fathom/internal/mcptools"
	"github.com/fathom-mcp/fathom/internal/observe"
	"github.com/fathom-mcp/fathom/pkg/provider/llm/openai"
)

// version is stamped at build time via -ldflags.
var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		// The API credential is the usual culprit. Refuse to serve without it.
		fmt.Fprintf(os.Stderr, "fathom: %v\n", err)
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	// Stdout is the MCP transport, so all logging goes to stderr and, when
	// persistence is enabled, to the structured log file.
	logger, closeLog, err := newLogger(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "fathom: %v\n", err)
		return 1
	}
	defer closeLog()
	slog.SetDefault(logger)

	slog.Info("fathom starting",
		"version", version,
		"debug", cfg.Debug,
		"log_dir", cfg.LogDir,
		"metrics_addr", cfg.MetricsAddr,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	shutdownTelemetry, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName:    "fathom",
		ServiceVersion: version,
	})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(shutdownCtx); err != nil {
			slog.Warn("telemetry shutdown failed", "err", err)
		}
	}()

	// ── Wiring ────────────────────────────────────────────────────────────────
	var remoteOpts []openai.Option
	if cfg.OrgID != "" {
		remoteOpts = append(remoteOpts, openai.WithOrganization(cfg.OrgID))
	}
	remote, err := openai.New(cfg.APIKey, remoteOpts...)
	if err != nil {
		slog.Error("failed to construct API client", "err", err)
		return 1
	}

	led := ledger.New(cfg.LedgerPath(), logger)
	eng := engine.New(remote, led, nil, logger)

	server := mcp.NewServer(&mcp.Implementation{
		Name:    "fathom",
		Title:   "Fathom",
		Version: version,
	}, nil)
	mcptools.AddTools(server, mcptools.Deps{
		Engine: eng,
		Ledger: led,
		Logger: logger,
	})

	// ── Serve ─────────────────────────────────────────────────────────────────
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("serving MCP over stdio")
		return server.Run(ctx, &mcp.StdioTransport{})
	})

	if cfg.MetricsAddr != "" {
		g.Go(func() error {
			return serveMetrics(ctx, cfg.MetricsAddr)
		})
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("server error", "err", err)
		return 1
	}

	slog.Info("fathom stopped")
	return 0
}

// newLogger builds the process logger: JSON to stderr, duplicated into the
// structured log file when persistence is enabled. The returned close
// function releases the log file.
func newLogger(cfg *config.Config) (*slog.Logger, func(), error) {
	level := slog.LevelInfo
	if cfg.Debug {
		level = slog.LevelDebug
	}

	var w io.Writer = os.Stderr
	closeLog := func() {}

	if path := cfg.LogFilePath(); path != "" {
		if err := os.MkdirAll(cfg.LogDir, 0o755); err != nil {
			return nil, nil, fmt.Errorf("create log directory: %w", err)
		}
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		w = io.MultiWriter(os.Stderr, f)
		closeLog = func() { f.Close() }
	}

	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
	return slog.New(handler), closeLog, nil
}

// serveMetrics exposes Prometheus metrics until ctx is cancelled.
func serveMetrics(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: addr, Handler: mux}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	slog.Info("serving metrics", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("metrics server: %w", err)
	}
	return nil
}
