// Package main is the entrypoint for the linkmetrics API server.
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

	"github.com/kiranshivaraju/linkmetrics/internal/api"
	"github.com/kiranshivaraju/linkmetrics/internal/api/handler"
	mw "github.com/kiranshivaraju/linkmetrics/internal/api/middleware"
	"github.com/kiranshivaraju/linkmetrics/internal/cache"
	"github.com/kiranshivaraju/linkmetrics/internal/config"
	"github.com/kiranshivaraju/linkmetrics/internal/fetcher"
	"github.com/kiranshivaraju/linkmetrics/internal/jobs"
	"github.com/kiranshivaraju/linkmetrics/internal/store"
	"github.com/kiranshivaraju/linkmetrics/internal/upload"
	"golang.org/x/sync/errgroup"
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
	// 1. Load config, fail fast on invalid config
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	slog.Info("config loaded",
		"env", cfg.Server.Env,
		"youtube_backend", cfg.Fetcher.YouTube.Backend,
		"workers", cfg.Worker.Count,
	)

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
	if err := store.RunMigrations(cfg.Database.URL, cfg.Database.MigrationsDir); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	slog.Info("database migrations applied")

	pgStore := store.NewPostgresStore(pool)

	// 4. Release runs interrupted by a previous shutdown or crash
	released, err := pgStore.ResetStaleRuns(ctx)
	if err != nil {
		return fmt.Errorf("reset stale runs: %w", err)
	}
	if released > 0 {
		slog.Warn("released stale runs", "count", released)
	}

	// 5. Create Redis cache
	redisCache, err := cache.NewRedisCache(cfg.Redis.URL)
	if err != nil {
		return fmt.Errorf("create redis cache: %w", err)
	}
	defer redisCache.Close()

	if err := redisCache.Ping(ctx); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}
	slog.Info("redis connected")

	// 6. Create fetchers
	fetchers, err := fetcher.NewRegistry(cfg.Fetcher)
	if err != nil {
		return fmt.Errorf("create fetchers: %w", err)
	}
	slog.Info("fetchers initialized", "platforms", fetchers.Platforms())

	// 7. Wire the job service and run dispatcher
	svc := jobs.NewService(pgStore, redisCache, upload.NewParser(cfg.Upload.MaxBytes), fetchers, cfg.Fetcher.Timeout)
	dispatcher := jobs.NewDispatcher(svc, cfg.Worker.Count, cfg.Worker.QueueSize)

	router := newRouter(cfg, svc, dispatcher, pgStore, redisCache)

	// 8. Serve until a signal arrives or a component fails
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return dispatcher.Start(gctx)
	})

	g.Go(func() error {
		slog.Info("server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutdown signal received, draining connections...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}

	slog.Info("server stopped gracefully")
	return nil
}

// newRouter connects the HTTP handlers to the job service and dispatcher.
func newRouter(cfg *config.Config, svc *jobs.Service, dispatcher *jobs.Dispatcher, db store.Store, c cache.Cache) http.Handler {
	return api.NewRouter(api.Dependencies{
		RateLimit:   mw.NewRateLimit(c, cfg.HTTP.RateLimitPerMinute),
		CORSOrigins: cfg.HTTP.CORSOrigins,

		HealthHandler:      handler.NewHealthHandler(db, c),
		UploadHandler:      handler.NewUploadHandler(svc, cfg.Upload.MaxBytes),
		PreviewHandler:     handler.NewPreviewHandler(svc, cfg.Upload.MaxBytes),
		RunHandler:         handler.NewRunHandler(dispatcher),
		ListJobsHandler:    handler.NewListJobsHandler(svc),
		GetJobHandler:      handler.NewGetJobHandler(svc),
		ListResultsHandler: handler.NewListResultsHandler(svc),
		ExportHandler:      handler.NewExportHandler(svc),
	})
}
