package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/ohong/poof/internal/config"
	"github.com/ohong/poof/internal/handlers"
	"github.com/ohong/poof/internal/logging"
	"github.com/ohong/poof/internal/models"
	"github.com/ohong/poof/internal/services"
	"github.com/ohong/poof/pkg/validation"
	"github.com/spf13/cobra"
)

func newServeCmd() *cobra.Command {
	var port string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the catalog API server",
		Example: `  # Start on PORT from the environment (default 8080)
  poof serve

  # Start on a custom port
  poof serve --port 3000`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.New()
			if port != "" {
				cfg.Port = port
			}
			return serve(cmd.Context(), cfg)
		},
	}

	cmd.Flags().StringVarP(&port, "port", "p", "", "Port to listen on (overrides PORT)")

	return cmd
}

func serve(ctx context.Context, cfg *config.Config) error {
	logger := logging.New(cfg.Env)

	db, err := models.InitDB(cfg)
	if err != nil {
		return err
	}
	if err := models.Migrate(db); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	redisClient := models.InitRedis(cfg)
	if redisClient != nil {
		defer redisClient.Close()
	}

	store, err := services.NewBlobStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("init blob store: %w", err)
	}
	provider, err := services.NewDescriptionProvider(cfg)
	if err != nil {
		return err
	}
	if cfg.BFLAPIKey == "" {
		logger.Warn("BFL_API_KEY not set, entries will keep their original image")
	}

	authService := services.NewAuthService(cfg, redisClient, logger)
	catalogService := services.NewCatalogService(db)
	uploadService := services.NewUploadService(store, logger)
	processingService := services.NewProcessingService(
		services.NewTransformService(cfg, store, logger),
		services.NewDescriptionService(cfg, provider, logger),
		catalogService,
		store,
		logger,
	)

	deps := handlers.RouterDeps{
		Config:  cfg,
		Redis:   redisClient,
		Logger:  logger,
		Auth:    authService,
		Catalog: handlers.NewCatalogHandler(uploadService, processingService, catalogService, logger),
	}
	if local, ok := store.(*services.LocalStorageService); ok {
		deps.FilesRoot = local.Root()
	}

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: handlers.NewRouter(deps),
		ReadTimeout:  120 * time.Second,
		WriteTimeout: processWriteTimeout(cfg),
		IdleTimeout:  60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("starting server", "port", cfg.Port, "env", cfg.Env, "storage", cfg.StorageDriver, "describer", provider.Name())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("server forced to shutdown", "error", err)
			return err
		}
		logger.Info("server exited")
		return nil
	case err := <-serverErr:
		return err
	}
}

// processWriteTimeout covers the slowest /process batch: one wave of
// transforms, then descriptions in waves of DESCRIPTION_CONCURRENCY, plus
// headroom for storage and inserts.
func processWriteTimeout(cfg *config.Config) time.Duration {
	concurrency := cfg.DescriptionConcurrency
	if concurrency <= 0 {
		concurrency = 5
	}
	waves := (validation.MaxFilesPerUpload + concurrency - 1) / concurrency
	return cfg.TransformTimeout + time.Duration(waves)*cfg.DescriptionTimeout + 60*time.Second
}
