// Package prefs keeps the small client-local state that must survive
// restarts but is never sent to the remote store.
package prefs

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/dgraph-io/badger/v4"
	"github.com/rs/zerolog"
)

const (
	keyCoverOverrides = "cover-overrides"
	keyActivePlaylist = "active-playlist"
	keyPanelOpen      = "panel-open"
)

// Snapshot is what was persisted, with defaults for missing or corrupt
// entries.
type Snapshot struct {
	CoverOverrides map[string]string
	ActivePlaylist string
	PanelOpen      bool
}

func defaults() Snapshot {
	return Snapshot{
		CoverOverrides: map[string]string{},
		PanelOpen:      true,
	}
}

type Store struct {
	db     *badger.DB
	mu     sync.Mutex
	logger zerolog.Logger
}

// Open opens (or creates) the Badger directory at path. An empty path keeps
// everything in memory.
func Open(path string, logger zerolog.Logger) (*Store, error) {
	var opts badger.Options
	if path == "" {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(path, 0o755); err != nil {
			return nil, fmt.Errorf("mkdir prefs: %w", err)
		}
		opts = badger.DefaultOptions(path)
	}
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}

	return &Store{
		db:     db,
		logger: logger.With().Str("component", "prefs").Logger(),
	}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Load reads every entry once. Missing or malformed entries fall back to
// their defaults without an error.
func (s *Store) Load() Snapshot {
	snap := defaults()

	if raw, ok := s.get(keyCoverOverrides); ok {
		if overrides, err := decodeOverrides(raw); err == nil {
			snap.CoverOverrides = overrides
		} else {
			s.logger.Debug().Err(err).Msg("ignoring corrupt cover overrides")
		}
	}

	if raw, ok := s.get(keyActivePlaylist); ok {
		var name string
		if err := json.Unmarshal(raw, &name); err == nil {
			snap.ActivePlaylist = name
		} else {
			s.logger.Debug().Err(err).Msg("ignoring corrupt active playlist")
		}
	}

	if raw, ok := s.get(keyPanelOpen); ok {
		var open bool
		if err := json.Unmarshal(raw, &open); err == nil {
			snap.PanelOpen = open
		} else {
			s.logger.Debug().Err(err).Msg("ignoring corrupt panel flag")
		}
	}

	return snap
}

func (s *Store) SaveCoverOverrides(overrides map[string]string) error {
	if overrides == nil {
		overrides = map[string]string{}
	}
	return s.put(keyCoverOverrides, overrides)
}

func (s *Store) SaveActivePlaylist(name string) error {
	return s.put(keyActivePlaylist, name)
}

func (s *Store) SavePanelOpen(open bool) error {
	return s.put(keyPanelOpen, open)
}

// decodeOverrides accepts only a flat object of string values.
func decodeOverrides(raw []byte) (map[string]string, error) {
	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, err
	}
	obj, ok := generic.(map[string]any)
	if !ok {
		return nil, errors.New("cover overrides: root is not an object")
	}
	out := make(map[string]string, len(obj))
	for k, v := range obj {
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("cover overrides: %q is not a string", k)
		}
		out[k] = s
	}
	return out, nil
}

func (s *Store) get(key string) ([]byte, bool) {
	var out []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		out, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		if !errors.Is(err, badger.ErrKeyNotFound) {
			s.logger.Debug().Err(err).Str("key", key).Msg("failed to read preference")
		}
		return nil, false
	}
	return out, true
}

func (s *Store) put(key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), data)
	})
	if err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	return nil
}

// putRaw stores bytes as-is; tests use it to plant corrupt entries.
func (s *Store) putRaw(key string, data []byte) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), data)
	})
}
