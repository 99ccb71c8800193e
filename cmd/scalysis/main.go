// Scalysis - Simulate COD risk cutoffs before you ship.
// Copyright (c) 2025 Scalysis
// Licensed under the Apache License 2.0

package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/500lbbicepcurl/Scalysis-public/internal/api"
	"github.com/500lbbicepcurl/Scalysis-public/internal/bus"
	"github.com/500lbbicepcurl/Scalysis-public/internal/cache"
	"github.com/500lbbicepcurl/Scalysis-public/internal/config"
	"github.com/500lbbicepcurl/Scalysis-public/internal/domain"
	"github.com/500lbbicepcurl/Scalysis-public/internal/flagging"
	"github.com/500lbbicepcurl/Scalysis-public/internal/repository"
	"github.com/500lbbicepcurl/Scalysis-public/internal/segment"
	"github.com/500lbbicepcurl/Scalysis-public/internal/shopify"
	"github.com/500lbbicepcurl/Scalysis-public/internal/simulation"
	"github.com/500lbbicepcurl/Scalysis-public/internal/worker"
)

// Version information (set via ldflags)
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

func main() {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	// Load configuration
	cfg, err := config.Load(os.Getenv("SCALYSIS_CONFIG"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize structured logger
	slog.SetDefault(newLogger(cfg.Logging))

	// Log startup
	slog.Info("starting scalysis",
		"version", Version,
		"commit", Commit,
		"build_date", BuildDate,
	)

	slog.Info("configuration loaded",
		"tier", cfg.Tier,
		"repository", cfg.Repository.Driver,
		"cache", cfg.Cache.Type,
		"eventbus", cfg.EventBus.Type,
		"session_tokens", cfg.Shopify.APISecret != "",
	)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		slog.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	// Initialize Repository
	repo, err := repository.New(cfg.Repository)
	if err != nil {
		slog.Error("failed to initialize repository", "error", err)
		os.Exit(1)
	}
	defer repo.Close()
	slog.Info("repository initialized", "driver", cfg.Repository.Driver)

	// Initialize Cache
	cacheImpl, err := cache.New(cfg.Cache)
	if err != nil {
		slog.Error("failed to initialize cache", "error", err)
		os.Exit(1)
	}
	defer cacheImpl.Close()
	slog.Info("cache initialized", "type", cfg.Cache.Type)

	// Initialize EventBus
	busImpl, err := bus.New(cfg.EventBus)
	if err != nil {
		slog.Error("failed to initialize event bus", "error", err)
		os.Exit(1)
	}
	defer busImpl.Close()
	slog.Info("event bus initialized", "type", cfg.EventBus.Type)

	// Initialize segment filters
	segments, err := segment.NewEngine(100)
	if err != nil {
		slog.Error("failed to initialize segment engine", "error", err)
		os.Exit(1)
	}

	// Initialize simulation
	simSvc := simulation.NewService(repo, cacheImpl, segments, cfg.Simulation, cfg.Cache.CurveTTL)
	slog.Info("simulation service initialized",
		"default_cutoff", cfg.Simulation.DefaultCutoff,
		"search_limit", cfg.Simulation.SearchLimit,
	)

	// Initialize flagging against the Shopify Admin API
	shopClient := shopify.NewClient(cfg.Shopify)
	flagSvc := flagging.NewService(repo, shopClient, busImpl, cfg.Shopify)
	slog.Info("flagging service initialized",
		"tag", cfg.Shopify.FlagTag,
		"api_version", cfg.Shopify.APIVersion,
	)

	// Initialize async flag worker
	var asyncWorker *worker.Worker
	if cfg.Worker.Enabled {
		asyncWorker = worker.NewWorker(busImpl, flagSvc)
		if err := asyncWorker.Start(worker.Config{WorkerCount: cfg.Worker.WorkerCount}); err != nil {
			slog.Error("failed to start async worker", "error", err)
			asyncWorker = nil
		}
	}

	// Initialize Server
	srv := api.NewServer(cfg.Server, cfg.Shopify, api.Dependencies{
		Repo:          repo,
		Cache:         cacheImpl,
		Bus:           busImpl,
		Simulation:    simSvc,
		Flagging:      flagSvc,
		Version:       Version,
		AsyncFlagging: asyncWorker != nil,
	})

	// Start Server in goroutine
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("scalysis is ready",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
	)

	printBanner(cfg, Version)

	// Wait for shutdown signal
	<-ctx.Done()
	slog.Info("shutting down...")

	// Stop async worker first
	if asyncWorker != nil {
		if err := asyncWorker.Stop(); err != nil {
			slog.Error("failed to stop async worker", "error", err)
		}
		stats := asyncWorker.GetStats()
		slog.Info("async worker stopped",
			"processed", stats.Processed,
			"failed", stats.Failed,
		)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}

	slog.Info("scalysis shutdown complete")
}

func newLogger(cfg domain.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "text" {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}

func printBanner(cfg *domain.Config, version string) {
	fmt.Println()
	fmt.Println("  +-------------------------------------------+")
	fmt.Println("  |                 SCALYSIS                  |")
	fmt.Println("  |        COD Risk Cutoff Simulator          |")
	fmt.Println("  |     Ship fewer returns, keep profit.      |")
	fmt.Println("  +-------------------------------------------+")
	fmt.Println()
	fmt.Printf("  Version:  %s\n", version)
	fmt.Printf("  Tier:     %s\n", cfg.Tier)
	fmt.Printf("  Server:   http://%s:%d\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Println()
	fmt.Println("  Endpoints:")
	fmt.Println("    GET  /simulation        - Simulate a cutoff")
	fmt.Println("    GET  /curve             - Cutoff curve")
	fmt.Println("    GET  /audit             - Per-cutoff audit table")
	fmt.Println("    GET  /orders/flaggable  - Orders the cutoff excludes")
	fmt.Println("    POST /orders            - Ingest scored orders")
	fmt.Println("    POST /orders/flag       - Tag orders on Shopify")
	fmt.Println("    GET  /store             - Store and model status")
	fmt.Println("    PUT  /store             - Update model status")
	fmt.Println("    GET  /economics         - Saved unit economics")
	fmt.Println("    PUT  /economics         - Save unit economics")
	fmt.Println("    POST /webhooks          - Shopify privacy webhooks")
	fmt.Println("    GET  /health            - Health check")
	fmt.Println("    GET  /metrics           - Prometheus metrics")
	fmt.Println()
}
