package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"shotboard/internal/api"
	"shotboard/internal/server"
	"shotboard/internal/storage"
)

var storeCmd = &cobra.Command{
	Use:   "store",
	Short: "Run the tag and playlist store",
	Args:  cobra.NoArgs,
	RunE:  runStore,
}

func runStore(cmd *cobra.Command, args []string) error {
	logger.Info().
		Str("version", api.Version).
		Str("database", cfg.Database.Path).
		Msg("starting shotboard store")

	db, err := storage.NewSQLiteStorage(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer db.Close()

	srv := server.NewStore(cfg, logger, api.NewStoreHandler(db, logger))

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		logger.Info().Msg("received shutdown signal")
		if err := srv.Shutdown(context.Background()); err != nil {
			logger.Error().Err(err).Msg("shutdown error")
		}
	}()

	if err := srv.Start(); err != nil {
		return fmt.Errorf("server error: %w", err)
	}

	logger.Info().Msg("store stopped")
	return nil
}
