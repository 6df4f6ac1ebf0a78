package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"

	gcs "cloud.google.com/go/storage"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/JonMunkholm/docmerge/internal/config"
	"github.com/JonMunkholm/docmerge/internal/core"
	"github.com/JonMunkholm/docmerge/internal/logging"
	"github.com/JonMunkholm/docmerge/internal/storage"
	"github.com/JonMunkholm/docmerge/internal/web"
)

func main() {
	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("configuration loaded",
		"port", cfg.Server.Port,
		"storage_backend", cfg.Storage.Backend,
		"render_workers", cfg.Render.Workers,
		"max_concurrent_generations", cfg.Upload.MaxConcurrent,
		"rate_limit_enabled", cfg.Rate.Enabled,
	)
	slog.Debug("configuration", "config", cfg.String())

	presets, err := core.LoadPresets(cfg.Render.PresetsFile)
	if err != nil {
		slog.Error("failed to load delimiter presets", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()
	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		slog.Error("failed to open blob store", "backend", cfg.Storage.Backend, "error", err)
		os.Exit(1)
	}
	defer closeStore()

	limiter := core.NewGenerationLimiter(cfg.Upload.MaxConcurrent, cfg.Upload.MaxWaitTime)
	server := web.NewServer(web.Deps{
		Generator: core.NewGenerator(core.WithWorkers(cfg.Render.Workers)),
		Limiter:   limiter,
		Presets:   presets,
		Store:     store,
	}, cfg)

	// Background jobs stop on shutdown
	jobCtx, cancelJobs := context.WithCancel(context.Background())
	if sweeper, ok := store.(storage.Sweeper); ok {
		go storage.RunRetention(jobCtx, sweeper, storage.RetentionConfig{
			MaxAge:   cfg.Storage.Retention,
			Interval: cfg.Storage.SweepInterval,
		})
	}

	// Graceful shutdown
	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down...")

		cancelJobs()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		// Let in-flight generations finish before closing connections.
		if status := limiter.Status(); status.Active > 0 {
			slog.Info("waiting for generations to complete", "active", status.Active)
			if err := limiter.WaitForDrain(shutdownCtx); err != nil {
				slog.Warn("generations did not complete in time", "error", err)
			} else {
				slog.Info("all generations completed")
			}
		}

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}
	}()

	if err := serve(server.Start, shutdownDone); err != nil {
		slog.Error("server stopped", "error", err)
		closeStore()
		os.Exit(1)
	}
	slog.Info("server stopped")
}

// serve runs start and, after a graceful close, blocks until done is closed
// so in-flight responses finish writing before main returns.
func serve(start func() error, done <-chan struct{}) error {
	if err := start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	<-done
	return nil
}

// openStore builds the configured blob store. The returned func releases
// its connections.
func openStore(ctx context.Context, cfg *config.Config) (storage.Store, func(), error) {
	switch strings.ToLower(cfg.Storage.Backend) {
	case config.BackendPostgres:
		pool, err := openPool(ctx, cfg.Database)
		if err != nil {
			return nil, nil, err
		}
		store := storage.NewPostgresStore(pool, cfg.Storage.MaxBlobSize)
		if err := store.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, nil, err
		}
		return store, pool.Close, nil

	case config.BackendGCS:
		client, err := gcs.NewClient(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("create storage client: %w", err)
		}
		slog.Info("using cloud storage bucket", "bucket", cfg.Storage.Bucket, "prefix", cfg.Storage.Prefix)
		bucket := client.Bucket(cfg.Storage.Bucket)
		return storage.NewGCSStore(bucket, cfg.Storage.Prefix, cfg.Storage.MaxBlobSize), func() { client.Close() }, nil

	default:
		return storage.NewMemoryStore(cfg.Storage.MaxBlobSize), func() {}, nil
	}
}

func openPool(ctx context.Context, dbCfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(dbCfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}

	poolConfig.MaxConns = int32(dbCfg.MaxConns)
	poolConfig.MinConns = int32(dbCfg.MinConns)
	poolConfig.MaxConnLifetime = dbCfg.MaxConnLifetime
	poolConfig.MaxConnIdleTime = dbCfg.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if u, err := url.Parse(dbCfg.URL); err == nil {
		slog.Info("connected to database", "name", strings.TrimPrefix(u.Path, "/"))
	} else {
		slog.Info("connected to database")
	}
	return pool, nil
}
