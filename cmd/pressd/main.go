// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command pressd starts the AleutianPress publishing service.
//
// AleutianPress manages the publication pipeline for a multi-language
// article site:
//   - Stage rendered pages to the staging environment
//   - Promote staged pages to production atomically, with a
//     whole-production backup taken first
//   - Roll production back to any retained backup in one call
//   - Record every transition in an append-only audit ledger
//
// Usage:
//
//	go run ./cmd/pressd
//	go run ./cmd/pressd -config /etc/aleutianpress/press.yaml
//	go run ./cmd/pressd -port 9090 -debug
//
// Without a configured bucket the service runs against an in-memory
// object store, which is useful for local experiments but loses all
// environment content on restart. Article metadata and the audit ledger
// persist in BadgerDB at storage.badger_path.
//
// Example requests:
//
//	# Health check
//	curl http://localhost:8094/v1/publish/health
//
//	# Stage an article to staging
//	curl -X POST -H "X-Actor: editor-1" \
//	  http://localhost:8094/v1/publish/articles/a1/stage
//
//	# Promote it to production
//	curl -X POST -H "X-Actor: editor-1" \
//	  http://localhost:8094/v1/publish/articles/a1/promote
//
//	# List production backups
//	curl http://localhost:8094/v1/publish/backups | jq
//
//	# Roll production back to the newest backup
//	curl -X POST -H "X-Actor: oncall" \
//	  http://localhost:8094/v1/publish/rollback
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"

	"github.com/AleutianAI/AleutianPress/pkg/logging"
	"github.com/AleutianAI/AleutianPress/services/publish"
	"github.com/AleutianAI/AleutianPress/services/publish/articles"
	"github.com/AleutianAI/AleutianPress/services/publish/backup"
	"github.com/AleutianAI/AleutianPress/services/publish/config"
	"github.com/AleutianAI/AleutianPress/services/publish/envstore"
	"github.com/AleutianAI/AleutianPress/services/publish/ledger"
	"github.com/AleutianAI/AleutianPress/services/publish/render"
	"github.com/AleutianAI/AleutianPress/services/publish/storage/badgerstore"
	"github.com/AleutianAI/AleutianPress/services/publish/telemetry"
)

func main() {
	configPath := flag.String("config", "", "Path to press.yaml (default ~/.aleutianpress/press.yaml)")
	port := flag.Int("port", 0, "Override the configured listen port")
	debug := flag.Bool("debug", false, "Enable debug mode")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	if *port > 0 {
		cfg.Server.Port = *port
	}

	level := logging.ParseLevel(cfg.Logging.Level)
	if *debug {
		level = logging.LevelDebug
	}
	logger := logging.New(logging.Config{
		Level:   level,
		LogDir:  cfg.Logging.Dir,
		Service: "pressd",
		JSON:    cfg.Logging.JSON,
	})
	defer logger.Close()
	logger.SetAsDefault()

	if err := run(cfg, *debug); err != nil {
		slog.Error("pressd exited", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

// run wires the service and blocks until shutdown completes.
func run(cfg *config.PressConfig, debug bool) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	// Telemetry first so everything below is instrumented.
	telCfg := telemetry.DefaultConfig()
	if cfg.Telemetry.ServiceName != "" {
		telCfg.ServiceName = cfg.Telemetry.ServiceName
	}
	telCfg.ServiceVersion = publish.ServiceVersion
	if !cfg.Telemetry.Enabled {
		telCfg.TraceExporter = "none"
		telCfg.MetricExporter = "none"
	} else if cfg.Telemetry.OTLPEndpoint != "" {
		telCfg.OTLPEndpoint = cfg.Telemetry.OTLPEndpoint
	} else {
		telCfg.TraceExporter = "none"
	}

	telShutdown, err := telemetry.Init(ctx, telCfg)
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := telShutdown(shutdownCtx); err != nil {
			slog.Warn("Telemetry shutdown failed", slog.String("error", err.Error()))
		}
	}()

	metrics, err := telemetry.NewMetrics(otel.Meter("publish"))
	if err != nil {
		return fmt.Errorf("create metrics: %w", err)
	}

	// Metadata database.
	db, persistent, err := openDatabase(cfg.Storage)
	if err != nil {
		return fmt.Errorf("open metadata database: %w", err)
	}
	defer db.Close()

	if persistent {
		gc, err := badgerstore.NewGCRunner(db, time.Hour, 0.5, slog.Default())
		if err != nil {
			return fmt.Errorf("create gc runner: %w", err)
		}
		gc.Start()
		defer gc.Stop()
	}

	// Object store backing both environments and the backups prefix.
	objects, objectsCleanup, err := openObjectStore(ctx, cfg.Storage)
	if err != nil {
		return fmt.Errorf("open object store: %w", err)
	}
	defer objectsCleanup()

	staging := envstore.Environment{
		Name:         "staging",
		Prefix:       cfg.Environments.Staging.Prefix,
		BaseURL:      cfg.Environments.Staging.BaseURL,
		Distribution: cfg.Environments.Staging.Distribution,
	}
	production := envstore.Environment{
		Name:         "production",
		Prefix:       cfg.Environments.Production.Prefix,
		BaseURL:      cfg.Environments.Production.BaseURL,
		Distribution: cfg.Environments.Production.Distribution,
	}

	invalidator, err := openInvalidator(ctx, cfg)
	if err != nil {
		return fmt.Errorf("open cdn invalidator: %w", err)
	}
	env := envstore.NewStore(objects, invalidator, staging, production)

	articleStore, err := articles.NewBadgerStore(db)
	if err != nil {
		return fmt.Errorf("create article store: %w", err)
	}
	auditLedger, err := ledger.New(db)
	if err != nil {
		return fmt.Errorf("create audit ledger: %w", err)
	}
	backups := backup.NewManager(env, cfg.Backups.Retention.Std())

	coord := publish.NewCoordinator(
		publish.CoordinatorConfig{
			Languages:          cfg.Publishing.Languages,
			ArticleLockTTL:     cfg.Publishing.ArticleLockTTL.Std(),
			EnvironmentLockTTL: cfg.Publishing.EnvironmentLockTTL.Std(),
			OperationTimeout:   cfg.Publishing.OperationTimeout.Std(),
			RetryAttempts:      cfg.Publishing.RetryAttempts,
			RetryBackoff:       cfg.Publishing.RetryBackoff.Std(),
		},
		articleStore,
		render.NewRenderer(),
		env,
		backups,
		auditLedger,
	)

	// Router.
	router := gin.New()
	router.Use(gin.Recovery())
	if debug {
		router.Use(gin.Logger())
	}
	router.Use(otelgin.Middleware(telCfg.ServiceName))
	router.Use(telemetry.MetricsMiddleware(metrics))

	if promHandler := telemetry.MetricsHandler(); promHandler != nil {
		router.GET("/metrics", gin.WrapH(promHandler))
	}

	v1 := router.Group("/v1")
	publish.RegisterRoutes(v1, publish.NewHandlers(coord))

	// Retention sweeper.
	if interval := cfg.Backups.SweepInterval.Std(); interval > 0 {
		go runSweeper(ctx, coord, interval)
	}

	srv := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Starting AleutianPress server",
			slog.String("address", srv.Addr),
			slog.Bool("persistent_metadata", persistent),
			slog.String("bucket", cfg.Storage.Bucket))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	slog.Info("Shutting down AleutianPress server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// openDatabase opens the metadata BadgerDB per the storage config.
//
// Outputs:
//
//	*badger.DB - The opened database.
//	bool - True when the database is on disk (value log GC applies).
//	error - Non-nil if the database cannot be opened.
func openDatabase(cfg config.StorageConfig) (*badger.DB, bool, error) {
	if cfg.BadgerPath == "" {
		slog.Warn("No badger_path configured, metadata is in-memory only")
		db, err := badgerstore.OpenInMemory()
		return db, false, err
	}
	db, err := badgerstore.OpenWithPath(expandPath(cfg.BadgerPath))
	return db, true, err
}

// openObjectStore selects GCS when a bucket is configured, otherwise an
// in-memory store. The returned cleanup is always safe to call.
func openObjectStore(ctx context.Context, cfg config.StorageConfig) (envstore.ObjectStore, func(), error) {
	if cfg.Bucket == "" {
		slog.Warn("No bucket configured, environment content is in-memory only")
		return envstore.NewMemoryStore(), func() {}, nil
	}

	gcs, err := envstore.NewGCSStore(ctx, cfg.Bucket, expandPath(cfg.CredentialsFile))
	if err != nil {
		return nil, nil, fmt.Errorf("connect to bucket %s: %w", cfg.Bucket, err)
	}
	cleanup := func() {
		if err := gcs.Close(); err != nil {
			slog.Warn("Closing object store failed", slog.String("error", err.Error()))
		}
	}
	return gcs, cleanup, nil
}

// openInvalidator wires Cloud CDN invalidation when any environment has
// a distribution. Without one every invalidation is a logged no-op.
func openInvalidator(ctx context.Context, cfg *config.PressConfig) (envstore.Invalidator, error) {
	if cfg.Environments.Staging.Distribution == "" && cfg.Environments.Production.Distribution == "" {
		return envstore.NoopInvalidator{}, nil
	}
	if cfg.Storage.Project == "" {
		slog.Warn("CDN distribution configured without storage.project, cache invalidation disabled")
		return envstore.NoopInvalidator{}, nil
	}
	cdn, err := envstore.NewCloudCDNInvalidator(ctx, cfg.Storage.Project, expandPath(cfg.Storage.CredentialsFile))
	if err != nil {
		return nil, err
	}
	slog.Info("Cloud CDN invalidation enabled",
		slog.String("project", cfg.Storage.Project),
		slog.String("distribution", cfg.Environments.Production.Distribution))
	return cdn, nil
}

// runSweeper deletes expired backups on a fixed interval until ctx is
// cancelled.
func runSweeper(ctx context.Context, coord *publish.Coordinator, interval time.Duration) {
	slog.Info("Backup retention sweeper started", slog.Duration("interval", interval))
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			deleted, err := coord.SweepBackups(ctx)
			if err != nil {
				slog.Warn("Backup sweep failed", slog.String("error", err.Error()))
				continue
			}
			if len(deleted) > 0 {
				slog.Info("Backup sweep deleted expired backups",
					slog.Int("count", len(deleted)))
			}
		}
	}
}

// expandPath expands a leading ~ to the user's home directory.
func expandPath(path string) string {
	if len(path) > 0 && path[0] == '~' {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[1:])
		}
	}
	return path
}
