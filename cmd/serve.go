package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/photo-library/internal/avatar"
	"github.com/kozaktomas/photo-library/internal/config"
	"github.com/kozaktomas/photo-library/internal/constants"
	"github.com/kozaktomas/photo-library/internal/database"
	"github.com/kozaktomas/photo-library/internal/facematch"
	"github.com/kozaktomas/photo-library/internal/faces"
	"github.com/kozaktomas/photo-library/internal/ingest"
	"github.com/kozaktomas/photo-library/internal/logging"
	"github.com/kozaktomas/photo-library/internal/observability"
	"github.com/kozaktomas/photo-library/internal/storage"
	"github.com/kozaktomas/photo-library/internal/web"

	// Database backends register themselves with the database package.
	_ "github.com/kozaktomas/photo-library/internal/database/mariadb"
	_ "github.com/kozaktomas/photo-library/internal/database/postgres"
	_ "github.com/kozaktomas/photo-library/internal/database/sqlite"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the photo server",
	Long: `Start the photo server.
The server accepts photo uploads, stores originals and thumbnails, resolves
the faces in each photo to people and serves the gallery API and web client.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Int("port", 0, "Port to listen on (overrides WEB_PORT)")
	serveCmd.Flags().String("host", "", "Host to bind to (overrides WEB_HOST)")
	serveCmd.Flags().String("static-dir", "", "Web client directory (overrides STATIC_DIR)")
	serveCmd.Flags().StringSlice("allowed-origin", nil, "Extra CORS origin, repeatable")
	serveCmd.Flags().Int("workers", 0, "Concurrent ingestions (overrides INGEST_WORKERS)")
	serveCmd.Flags().Float64("tolerance", 0, "Face match tolerance (overrides MATCH_TOLERANCE)")
}

// applyServeFlags lets explicitly set flags win over the environment.
func applyServeFlags(cmd *cobra.Command, cfg *config.Config) {
	if port := mustGetInt(cmd, "port"); port > 0 {
		cfg.Server.Port = port
	}
	if host := mustGetString(cmd, "host"); host != "" {
		cfg.Server.Host = host
	}
	if dir := mustGetString(cmd, "static-dir"); dir != "" {
		cfg.Server.StaticDir = dir
	}
	if origins := mustGetStringSlice(cmd, "allowed-origin"); len(origins) > 0 {
		cfg.Server.AllowedOrigins = append(cfg.Server.AllowedOrigins, origins...)
	}
	if workers := mustGetInt(cmd, "workers"); workers > 0 {
		cfg.Ingest.Workers = workers
	}
	if tol := mustGetFloat64(cmd, "tolerance"); tol > 0 {
		cfg.Matching.Tolerance = tol
	}
}

// newResolver picks the face matching strategy.
func newResolver(cfg *config.MatchingConfig) facematch.Resolver {
	if cfg.Index == "hnsw" {
		return facematch.NewIndex(cfg.Tolerance, constants.HNSWCandidates)
	}
	return facematch.NewMatcher(cfg.Tolerance)
}

// openStore connects to the configured database and applies migrations.
func openStore(ctx context.Context, cfg *config.DatabaseConfig) (database.Store, error) {
	store, err := database.Open(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", cfg.Driver, err)
	}
	applied, err := store.Migrate(ctx)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	if len(applied) > 0 {
		slog.Info("database migrated", "driver", cfg.Driver, "versions", applied)
	}
	return store, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, logCloser, err := loadConfig()
	if err != nil {
		return err
	}
	defer logCloser.Close()
	applyServeFlags(cmd, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := openStore(ctx, &cfg.Database)
	if err != nil {
		return err
	}
	defer store.Close()

	blobs, err := storage.New(ctx, &cfg.Storage)
	if err != nil {
		return fmt.Errorf("failed to open %s storage: %w", cfg.Storage.Backend, err)
	}

	encoder := faces.NewClient(cfg.Faces.URL, time.Duration(cfg.Faces.TimeoutSeconds)*time.Second)
	metrics := observability.NewMetrics()

	ingester := ingest.New(store, blobs, encoder, newResolver(&cfg.Matching), ingest.Options{
		ThumbSize: cfg.Ingest.ThumbSize,
		Metrics:   metrics,
		Logger:    logging.ForService("ingest"),
	})
	pool := ingest.NewPool(ingester, cfg.Ingest.Workers, metrics)

	server := web.NewServer(cfg, web.Deps{
		Store:   store,
		Blobs:   blobs,
		Ingest:  pool,
		Avatars: avatar.NewRenderer(store, blobs, cfg.Ingest.AvatarSize, cfg.Ingest.AvatarZoom, logging.ForService("avatar")),
		Metrics: metrics,
		Logger:  logging.ForService("web"),
	})

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)
		<-sigChan
		slog.Info("shutting down")

		shutdownCtx, shutdownCancel := context.WithTimeout(ctx, 30*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("error during shutdown", "error", err)
		}
		if err := pool.Close(shutdownCtx); err != nil {
			slog.Error("ingestions still running at shutdown", "error", err)
		}
	}()

	slog.Info("photo server configured",
		"database", cfg.Database.Driver,
		"storage", cfg.Storage.Backend,
		"face_service", encoder.BaseURL(),
		"match_index", cfg.Matching.Index,
		"workers", pool.Workers(),
	)

	if err := server.Start(); err != nil {
		return fmt.Errorf("starting server: %w", err)
	}
	<-shutdownDone
	return nil
}
