// Package main is the entrypoint for the Handreel analysis server.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/railbird/handreel/internal/ai"
	"github.com/railbird/handreel/internal/api"
	"github.com/railbird/handreel/internal/api/handler"
	mw "github.com/railbird/handreel/internal/api/middleware"
	"github.com/railbird/handreel/internal/cache"
	"github.com/railbird/handreel/internal/config"
	"github.com/railbird/handreel/internal/dispatch"
	"github.com/railbird/handreel/internal/finalize"
	"github.com/railbird/handreel/internal/orchestrator"
	"github.com/railbird/handreel/internal/processor"
	"github.com/railbird/handreel/internal/store"
	"github.com/railbird/handreel/internal/telemetry"
)

const shutdownTimeout = 30 * time.Second

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := run(); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load config — fail fast on invalid config
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	slog.Info("config loaded", "ai_provider", cfg.AI.Provider, "env", cfg.Server.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Connect to database
	pool, err := store.Connect(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()
	slog.Info("database connected")

	// 3. Run migrations
	if err := store.RunMigrations(cfg.Database.URL, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	slog.Info("database migrations applied")

	// 4. Create Redis cache
	redisCache, err := cache.NewRedisCache(cfg.Redis.URL)
	if err != nil {
		return fmt.Errorf("create redis cache: %w", err)
	}
	defer redisCache.Close()

	if err := redisCache.Ping(ctx); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}
	slog.Info("redis connected")

	// 5. Create task dispatcher and its delivery worker
	dispatcher, err := dispatch.NewRedisDispatcher(cfg.Redis.URL)
	if err != nil {
		return fmt.Errorf("create dispatcher: %w", err)
	}
	defer dispatcher.Close()

	if err := dispatcher.Ping(ctx); err != nil {
		return fmt.Errorf("ping dispatcher redis: %w", err)
	}

	worker := dispatch.NewWorker(dispatcher, cfg.Dispatch)
	go worker.Run(ctx)

	// 6. Create the video analyzer
	analyzer, err := ai.NewAnalyzer(cfg.AI)
	if err != nil {
		return fmt.Errorf("create analyzer: %w", err)
	}
	slog.Info("analyzer initialized", "provider", analyzer.Name())

	// 7. Wire the pipeline services
	pgStore := store.NewPostgresStore(pool)
	metrics := telemetry.NewMetrics()
	finalizer := finalize.NewFinalizer(pgStore, metrics, cfg.Pipeline.DuplicateTolerance)
	orch := orchestrator.NewService(pgStore, dispatcher, finalizer, metrics, cfg.Pipeline)
	proc := processor.NewProcessor(pgStore, analyzer, orch, metrics, cfg.Pipeline)

	// 8. Build router with dependencies
	deps := api.Dependencies{
		Auth:         mw.NewAuth(pgStore),
		InternalAuth: mw.NewInternalAuth(cfg.Dispatch.InternalToken),
		RateLimit:    mw.NewRateLimit(redisCache, 60),

		HealthHandler:      handler.NewHealthHandler(pgStore, redisCache),
		MetricsHandler:     metrics.Handler(),
		AnalyzeHandler:     handler.NewAnalyzeHandler(orch),
		AnalyzeYouTube:     handler.NewAnalyzeYouTubeHandler(orch),
		StatusHandler:      handler.NewStatusHandler(orch, redisCache),
		AnalyzeSegment:     handler.NewAnalyzeSegmentHandler(proc),
		AnalyzePhase2Batch: handler.NewAnalyzePhase2BatchHandler(proc),
	}

	router := api.NewRouter(deps)

	// 9. Start HTTP server
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.AI.InferenceTimeout + 30*time.Second, // internal handlers run inference inline
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		slog.Info("shutdown signal received, draining connections...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	slog.Info("server stopped gracefully")
	return nil
}
