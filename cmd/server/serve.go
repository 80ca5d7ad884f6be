package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xevi10h/redbee-expo-sub000/internal/config"
	"github.com/xevi10h/redbee-expo-sub000/internal/httpapi"
	"github.com/xevi10h/redbee-expo-sub000/internal/logging"
	"github.com/xevi10h/redbee-expo-sub000/internal/storage"
	"github.com/xevi10h/redbee-expo-sub000/internal/storage/inmemory"
	"github.com/xevi10h/redbee-expo-sub000/internal/storage/postgres"
)

const shutdownTimeout = 10 * time.Second

func newServeCommand(root *rootOptions) *cobra.Command {
	var seed bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the comment store over HTTP",
		Long: `Serve the comment store over JSON/HTTP.

The in-memory store can be seeded with a demo thread for content "video-1".

Example:
  comments serve --storage in-memory --seed
  DATABASE_URL=postgres://localhost/comments comments serve --storage postgres`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), root.cfg, seed)
		},
	}

	cmd.Flags().StringVar(&root.cfg.Port, "port", root.cfg.Port, "HTTP port")
	cmd.Flags().StringVar(&root.cfg.Storage, "storage", root.cfg.Storage, "storage type (in-memory|postgres)")
	cmd.Flags().StringVar(&root.cfg.DatabaseURL, "database-url", root.cfg.DatabaseURL, "postgres DSN")
	cmd.Flags().BoolVar(&seed, "seed", true, "fill the in-memory store with demo data")
	return cmd
}

func serve(ctx context.Context, cfg config.Config, seed bool) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	store, err := openStore(ctx, cfg, seed, logger)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           httpapi.New(store, httpapi.WithLogger(logger)).Routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server starting", zap.String("addr", srv.Addr), zap.String("storage", cfg.Storage))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func openStore(ctx context.Context, cfg config.Config, seed bool, logger *zap.Logger) (storage.Storage, error) {
	if cfg.Storage == config.StoragePostgres {
		store, err := postgres.New(cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to postgres: %w", err)
		}
		return store, nil
	}

	store := inmemory.New()
	if seed {
		if err := fillWithMockData(ctx, store); err != nil {
			return nil, err
		}
		logger.Info("mock data filled", zap.String("content", demoContentID))
	}
	return store, nil
}
