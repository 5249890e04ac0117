// Package main runs the signal daemon: discovery sources, the candidate
// registry, entry evaluation, the exit monitor, and the metrics/health
// HTTP endpoints.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"solana-signal-engine/internal/app"
	"solana-signal-engine/internal/config"
	"solana-signal-engine/internal/logging"
	"solana-signal-engine/internal/observability"
	"solana-signal-engine/internal/orchestrator"
	"solana-signal-engine/internal/registry"
)

func main() {
	configPath := flag.String("config", "configs/signal.example.yaml", "Path to YAML or TOML configuration")
	logLevel := flag.String("log-level", "", "Override log level (trace, debug, info, warn, error)")
	metricsAddr := flag.String("metrics-addr", "", "Override metrics/health HTTP address (\"-\" to disable)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		bootLogger := logging.New("info", os.Stderr)
		bootLogger.Fatal().Err(err).Msg("load config")
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}
	if *metricsAddr != "" {
		cfg.MetricsAddr = *metricsAddr
	}

	root := logging.New(cfg.LogLevel, os.Stdout)
	logger := logging.Component(root, "server")

	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Channel to signal main goroutine completion
	done := make(chan struct{})

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case sig := <-sigCh:
			logger.Info().Str("signal", sig.String()).Msg("initiating graceful shutdown")
		case <-done:
			return
		}
		cancel()

		// Wait for second signal for immediate shutdown
		select {
		case sig := <-sigCh:
			logger.Warn().Str("signal", sig.String()).Msg("second signal, forcing immediate shutdown")
			os.Exit(1)
		case <-time.After(30 * time.Second):
			logger.Error().Msg("graceful shutdown timed out after 30s, forcing exit")
			os.Exit(1)
		case <-done:
		}
	}()

	err = run(ctx, cfg, root)
	close(done)

	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal().Err(err).Msg("server stopped with error")
	}
	logger.Info().Msg("shutdown complete")
}

func run(ctx context.Context, cfg *config.Config, root zerolog.Logger) error {
	logger := logging.Component(root, "server")

	deps, cleanup, err := app.Wire(ctx, cfg, root)
	if err != nil {
		return err
	}
	defer cleanup()

	engine, err := app.NewEngine(cfg, deps, root)
	if err != nil {
		return err
	}

	sources, closeSources, err := app.NewSources(ctx, cfg, deps.MarketData, root)
	if err != nil {
		return err
	}
	defer closeSources()

	reg := registry.New(registry.Options{
		SelectionInterval: cfg.Registry.SelectionInterval,
		TopK:              cfg.Registry.TopK,
		MinScores:         cfg.Registry.MinScores,
		TTLs:              cfg.Registry.TTLs,
		SelectedCapacity:  cfg.Registry.SelectedCapacity,
		Logger:            logging.Component(root, "registry"),
	})

	orch, err := orchestrator.New(orchestrator.Options{
		Registry:        reg,
		Engine:          engine,
		Journal:         deps.Journal,
		Publisher:       deps.Publisher,
		Sources:         sources,
		IngressCapacity: cfg.Registry.IngressCapacity,
		Sampler:         app.NewSampler(cfg, deps, root),
		Positions:       deps.Positions,
		ExitInterval:    cfg.Orchestrator.ExitInterval,
		ExitWorkers:     cfg.Orchestrator.ExitWorkers,
		EvalWorkers:     cfg.Registry.TopK,
		EvalTimeout:     cfg.Orchestrator.EvalTimeout,
		ShutdownGrace:   cfg.Orchestrator.ShutdownGrace,
		Logger:          root,
	})
	if err != nil {
		return err
	}

	if cfg.MetricsAddr != "" && cfg.MetricsAddr != "-" {
		srv := newHTTPServer(cfg.MetricsAddr, reg, orch, time.Now())
		go func() {
			logger.Info().Str("addr", cfg.MetricsAddr).Msg("starting HTTP server")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error().Err(err).Msg("HTTP server error")
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	logger.Info().
		Int("sources", len(sources)).
		Dur("selection_interval", cfg.Registry.SelectionInterval).
		Int("top_k", cfg.Registry.TopK).
		Msg("starting signal pipeline")
	return orch.Run(ctx)
}

// StatusResponse is the JSON response for the /status endpoint.
type StatusResponse struct {
	Status         string             `json:"status"`
	Uptime         string             `json:"uptime"`
	Started        time.Time          `json:"started"`
	LiveCandidates int                `json:"live_candidates"`
	IngressPending int                `json:"ingress_pending"`
	Stats          orchestrator.Stats `json:"stats"`
}

func newHTTPServer(addr string, reg *registry.Registry, orch *orchestrator.Orchestrator, started time.Time) *http.Server {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-reg.Done():
			http.Error(w, "registry stopped", http.StatusServiceUnavailable)
		default:
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ok"))
		}
	})

	mux.Handle("/metrics", observability.Handler())

	mux.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		resp := StatusResponse{
			Status:  "running",
			Uptime:  time.Since(started).Round(time.Second).String(),
			Started: started,
			Stats:   orch.Stats(),
		}
		if live, err := reg.Snapshot(ctx); err == nil {
			resp.LiveCandidates = len(live)
		} else {
			resp.Status = "degraded"
		}
		if in := orch.Ingestion(); in != nil {
			resp.IngressPending = in.Pending()
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	})

	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}
