package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/baxromumarov/tabscrape/internal/api"
	"github.com/baxromumarov/tabscrape/internal/config"
	"github.com/baxromumarov/tabscrape/internal/httpx"
	"github.com/baxromumarov/tabscrape/internal/observability"
	"github.com/baxromumarov/tabscrape/internal/pipeline"
)

func main() {
	configFile := flag.String("config", config.DefaultFile, "JSON5 config file")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := cfg.NewLogger()
	slog.SetDefault(logger)

	fetcher, err := httpx.New(cfg.Backend, cfg.FetchOptions())
	if err != nil {
		slog.Error("failed to create fetcher", "error", err)
		os.Exit(1)
	}

	metrics := observability.NewMetrics()
	runner := pipeline.NewRunner(fetcher, pipeline.Options{
		Backend: cfg.Backend,
		Metrics: metrics,
		Logger:  logger,
		Batch:   cfg.BatchOptions(logger),
	})

	srv := api.NewServer(runner, fetcher, metrics, logger)
	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown failed", "error", err)
		}
	}()

	slog.Info("starting server", "addr", cfg.HTTPAddr, "backend", cfg.Backend)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
	slog.Info("server stopped", "stats", metrics.Snapshot().String())
}
