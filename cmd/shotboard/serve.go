package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"shotboard/internal/api"
	"shotboard/internal/cache"
	"shotboard/internal/catalog"
	"shotboard/internal/media"
	"shotboard/internal/prefs"
	"shotboard/internal/remote"
	"shotboard/internal/server"
	"shotboard/internal/storage"
	"shotboard/internal/streaming"
	"shotboard/internal/workspace"
)

var serveCmd = &cobra.Command{
	Use:   "serve [library-dir]",
	Short: "Run the workspace API",
	Long: `Run the workspace API. The library folder comes from the argument or
library.path in the config. Tags and playlists are read from remote.url, or
from the local database when no remote is configured.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	if len(args) == 1 {
		cfg.Library.Path = args[0]
	}

	logger.Info().
		Str("version", api.Version).
		Msg("starting shotboard workspace")

	store, err := prefs.Open(cfg.Prefs.Dir, logger)
	if err != nil {
		return fmt.Errorf("failed to open preferences: %w", err)
	}
	defer store.Close()

	tags, playlists, closeRemote, err := openRemote()
	if err != nil {
		return err
	}
	defer closeRemote()

	refs := media.NewContentRefs()
	contentCache := cache.NewLRUCache(cfg.Content.CacheCapacity, cfg.Content.CacheMaxSize)
	streamer := streaming.NewHandler(refs, contentCache, cfg.Content.MaxItemSize, logger)

	ws := workspace.New(workspace.Deps{
		Refs:            refs,
		TagRemote:       tags,
		PlaylistRemote:  playlists,
		Prefs:           store,
		ScanConcurrency: cfg.Library.ScanConcurrency,
	}, logger)
	defer ws.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := ws.Load(ctx); err != nil {
		logger.Error().Err(err).Msg("failed to load tags and playlists; continuing with empty state")
	}

	srv := server.NewWorkspace(cfg, logger, api.NewHandler(ws, streamer, logger, cfg.Library.Path))

	var watcher *workspace.Watcher
	if cfg.Library.Path != "" {
		if cfg.Library.Watch {
			watcher, err = workspace.NewWatcher(cfg.Library.Path, ws, cfg.Library.Debounce, logger)
			if err != nil {
				return fmt.Errorf("failed to create watcher: %w", err)
			}
			defer watcher.Stop()
		}

		go func() {
			logger.Info().
				Str("path", cfg.Library.Path).
				Msg("starting initial library scan")
			stats, err := ws.Scan(ctx, cfg.Library.Path)
			if err != nil {
				logger.Error().Err(err).Msg("initial scan failed")
				return
			}
			logger.Info().Int("shots", stats.Shots).Msg("initial scan completed")

			if watcher != nil {
				if err := watcher.Start(ctx); err != nil {
					logger.Error().Err(err).Msg("failed to watch library")
				}
			}
		}()
	}

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		logger.Info().Msg("received shutdown signal")
		cancel()

		if err := srv.Shutdown(context.Background()); err != nil {
			logger.Error().Err(err).Msg("shutdown error")
		}
	}()

	if err := srv.Start(); err != nil {
		return fmt.Errorf("server error: %w", err)
	}

	logger.Info().Msg("server stopped")
	return nil
}

// openRemote returns the tag and playlist remotes: an HTTP client when
// remote.url is set, the local database otherwise.
func openRemote() (catalog.TagRemote, catalog.PlaylistRemote, func(), error) {
	if cfg.Remote.URL != "" {
		client, err := remote.New(cfg.Remote.URL, cfg.Remote.Timeout, logger)
		if err != nil {
			return nil, nil, nil, err
		}
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Remote.Timeout)
		defer cancel()
		if err := client.Ping(ctx); err != nil {
			logger.Warn().Err(err).Str("url", cfg.Remote.URL).Msg("store not reachable yet")
		}
		return client, client.Playlists(), func() {}, nil
	}

	db, err := storage.NewSQLiteStorage(cfg.Database.Path)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	logger.Info().Str("path", cfg.Database.Path).Msg("using local store database")
	return db.Tags(), db.Playlists(), func() { db.Close() }, nil
}
