package workspace

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
	"shotboard/internal/media"
)

// Rescanner is what the watcher triggers once the library settles.
type Rescanner interface {
	Rescan(ctx context.Context) (media.ScanStats, error)
}

// Watcher rescans the library folder after file changes stop arriving for
// the debounce window. fsnotify is not recursive, so every subdirectory is
// added on start and as it appears.
type Watcher struct {
	mu       sync.Mutex
	watcher  *fsnotify.Watcher
	target   Rescanner
	root     string
	debounce time.Duration
	logger   zerolog.Logger

	pending   bool
	lastEvent time.Time
	rescans   int

	stopCh  chan struct{}
	doneCh  chan struct{}
	running bool
}

func NewWatcher(root string, target Rescanner, debounce time.Duration, logger zerolog.Logger) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if debounce <= 0 {
		debounce = 750 * time.Millisecond
	}

	return &Watcher{
		watcher:  fw,
		target:   target,
		root:     root,
		debounce: debounce,
		logger:   logger.With().Str("component", "watcher").Logger(),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}, nil
}

// Start adds the library tree and begins the event loop. It does not block.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	if err := w.addTree(w.root); err != nil {
		w.mu.Lock()
		w.running = false
		w.mu.Unlock()
		return err
	}
	w.logger.Info().Str("path", w.root).Dur("debounce", w.debounce).Msg("watching library")

	go w.run(ctx)
	return nil
}

// Stop ends the event loop and releases the OS watches.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		w.watcher.Close()
		return
	}
	w.running = false
	w.mu.Unlock()

	close(w.stopCh)
	<-w.doneCh

	if err := w.watcher.Close(); err != nil {
		w.logger.Error().Err(err).Msg("failed to close watcher")
	}
}

// Rescans reports how many rescans the watcher has triggered.
func (w *Watcher) Rescans() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.rescans
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.doneCh)

	tick := time.NewTicker(w.debounce / 4)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn().Err(err).Msg("watch error")

		case <-tick.C:
			w.flush(ctx)
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if hidden(filepath.Base(event.Name)) || event.Op == fsnotify.Chmod {
		return
	}

	if event.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := w.addTree(event.Name); err != nil {
				w.logger.Warn().Err(err).Str("path", event.Name).Msg("failed to watch new folder")
			}
		}
	}

	w.logger.Debug().Str("path", event.Name).Str("op", event.Op.String()).Msg("library changed")

	w.mu.Lock()
	w.pending = true
	w.lastEvent = time.Now()
	w.mu.Unlock()
}

func (w *Watcher) flush(ctx context.Context) {
	w.mu.Lock()
	if !w.pending || time.Since(w.lastEvent) < w.debounce {
		w.mu.Unlock()
		return
	}
	w.pending = false
	w.mu.Unlock()

	stats, err := w.target.Rescan(ctx)
	if errors.Is(err, ErrScanInProgress) {
		// try again on a later tick
		w.mu.Lock()
		w.pending = true
		w.mu.Unlock()
		return
	}
	if err != nil {
		w.logger.Error().Err(err).Msg("rescan failed")
		return
	}

	w.mu.Lock()
	w.rescans++
	w.mu.Unlock()

	w.logger.Info().Int("shots", stats.Shots).Msg("library rescanned")
}

func (w *Watcher) addTree(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && hidden(d.Name()) {
			return filepath.SkipDir
		}
		return w.watcher.Add(path)
	})
}

func hidden(name string) bool {
	return strings.HasPrefix(name, ".")
}
