package catalog

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

type Playlist struct {
	Name    string   `json:"name"`
	ShotIDs []string `json:"shot_ids"`
}

// PlaylistRemote is the remote side of the playlists. Mutating calls on a
// playlist the remote no longer has fail with an error matching ErrNotFound.
type PlaylistRemote interface {
	FetchAll(ctx context.Context) (map[string][]string, error)
	Create(ctx context.Context, name string) (Playlist, error)
	Rename(ctx context.Context, name, newName string) (Playlist, error)
	Delete(ctx context.Context, name string) error
	AddShot(ctx context.Context, name, shotID string) (Playlist, error)
	RemoveShot(ctx context.Context, name, shotID string) (Playlist, error)
}

// ActiveSink persists the active playlist name ("" for none).
type ActiveSink interface {
	SaveActivePlaylist(name string) error
}

// PlaylistStore mirrors the remote playlists and tracks which one is
// active. Names are unique case-sensitively, unlike tags.
//
// Like TagStore, every mutation is write-then-reflect.
type PlaylistStore struct {
	remote PlaylistRemote
	sink   ActiveSink
	logger zerolog.Logger

	op        sync.Mutex
	mu        sync.RWMutex
	playlists map[string][]string
	active    string
}

func NewPlaylistStore(remote PlaylistRemote, sink ActiveSink, logger zerolog.Logger) *PlaylistStore {
	return &PlaylistStore{
		remote:    remote,
		sink:      sink,
		logger:    logger.With().Str("component", "playlists").Logger(),
		playlists: make(map[string][]string),
	}
}

// Load replaces local state with the remote playlists. preferredActive is
// kept active when it still exists, otherwise the first playlist by name
// becomes active.
func (s *PlaylistStore) Load(ctx context.Context, preferredActive string) error {
	s.op.Lock()
	defer s.op.Unlock()

	all, err := s.remote.FetchAll(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to fetch playlists")
		return fmt.Errorf("%w: fetch playlists: %w", ErrRemote, err)
	}

	next := make(map[string][]string, len(all))
	for name, ids := range all {
		next[name] = dedupeSorted(ids)
	}

	s.mu.Lock()
	s.playlists = next
	active := preferredActive
	if _, ok := next[active]; !ok {
		active = firstName(next)
	}
	s.mu.Unlock()

	s.setActive(active)
	s.logger.Info().Int("playlists", len(next)).Str("active", active).Msg("playlists loaded")
	return nil
}

func (s *PlaylistStore) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedKeys(s.playlists)
}

func (s *PlaylistStore) Shots(name string) ([]string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids, ok := s.playlists[name]
	return slices.Clone(ids), ok
}

func (s *PlaylistStore) Contains(name, shotID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, found := slices.BinarySearch(s.playlists[name], shotID)
	return found
}

func (s *PlaylistStore) Snapshot() map[string][]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string][]string, len(s.playlists))
	for name, ids := range s.playlists {
		out[name] = slices.Clone(ids)
	}
	return out
}

func (s *PlaylistStore) Active() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active
}

// SetActive selects a playlist; "" clears the selection.
func (s *PlaylistStore) SetActive(name string) error {
	if name != "" {
		s.mu.RLock()
		_, ok := s.playlists[name]
		s.mu.RUnlock()
		if !ok {
			return fmt.Errorf("playlist %q: %w", name, ErrNotFound)
		}
	}
	s.setActive(name)
	return nil
}

func (s *PlaylistStore) setActive(name string) {
	s.mu.Lock()
	changed := s.active != name
	s.active = name
	s.mu.Unlock()

	if !changed || s.sink == nil {
		return
	}
	if err := s.sink.SaveActivePlaylist(name); err != nil {
		s.logger.Warn().Err(err).Str("active", name).Msg("failed to persist active playlist")
	}
}

// Create adds an empty playlist. It becomes active when none is.
func (s *PlaylistStore) Create(ctx context.Context, name string) (Playlist, error) {
	s.op.Lock()
	defer s.op.Unlock()

	name = strings.TrimSpace(name)
	if name == "" {
		return Playlist{}, ErrEmptyName
	}
	if s.exists(name) {
		return Playlist{}, fmt.Errorf("%w: %q", ErrDuplicateName, name)
	}

	if _, err := s.remote.Create(ctx, name); err != nil {
		s.logger.Error().Err(err).Str("playlist", name).Msg("failed to create playlist")
		return Playlist{}, fmt.Errorf("%w: create playlist: %w", ErrRemote, err)
	}

	s.mu.Lock()
	s.playlists[name] = []string{}
	noActive := s.active == ""
	s.mu.Unlock()

	if noActive {
		s.setActive(name)
	}
	return Playlist{Name: name, ShotIDs: []string{}}, nil
}

// Rename moves oldName to newName, carrying the active selection along.
func (s *PlaylistStore) Rename(ctx context.Context, oldName, newName string) error {
	s.op.Lock()
	defer s.op.Unlock()

	newName = strings.TrimSpace(newName)
	if newName == "" {
		return ErrEmptyName
	}
	if newName == oldName {
		return ErrSameName
	}
	if s.exists(newName) {
		return fmt.Errorf("%w: %q", ErrDuplicateName, newName)
	}
	if !s.exists(oldName) {
		return fmt.Errorf("playlist %q: %w", oldName, ErrNotFound)
	}

	if _, err := s.remote.Rename(ctx, oldName, newName); err != nil {
		s.logger.Error().Err(err).Str("playlist", oldName).Str("new", newName).Msg("failed to rename playlist")
		return fmt.Errorf("%w: rename playlist: %w", ErrRemote, err)
	}

	s.mu.Lock()
	s.playlists[newName] = s.playlists[oldName]
	delete(s.playlists, oldName)
	wasActive := s.active == oldName
	s.mu.Unlock()

	if wasActive {
		s.setActive(newName)
	}
	return nil
}

// Delete removes a playlist. When it was active, the first remaining
// playlist by name becomes active, or none.
func (s *PlaylistStore) Delete(ctx context.Context, name string) error {
	s.op.Lock()
	defer s.op.Unlock()

	if err := s.remote.Delete(ctx, name); err != nil {
		s.logger.Error().Err(err).Str("playlist", name).Msg("failed to delete playlist")
		return fmt.Errorf("%w: delete playlist: %w", ErrRemote, err)
	}

	s.mu.Lock()
	delete(s.playlists, name)
	wasActive := s.active == name
	next := firstName(s.playlists)
	s.mu.Unlock()

	if wasActive {
		s.setActive(next)
	}
	return nil
}

// ToggleShot adds shotID to the playlist when absent and removes it when
// present. Reports whether the shot is now in the playlist.
func (s *PlaylistStore) ToggleShot(ctx context.Context, name, shotID string) (bool, error) {
	s.op.Lock()
	defer s.op.Unlock()

	if !s.exists(name) {
		return false, fmt.Errorf("playlist %q: %w", name, ErrNotFound)
	}

	if s.Contains(name, shotID) {
		if _, err := s.remote.RemoveShot(ctx, name, shotID); err != nil {
			s.logger.Error().Err(err).Str("playlist", name).Str("shot", shotID).Msg("failed to remove shot from playlist")
			return true, fmt.Errorf("%w: remove shot: %w", ErrRemote, err)
		}
		s.mu.Lock()
		s.playlists[name] = slices.DeleteFunc(slices.Clone(s.playlists[name]), func(id string) bool { return id == shotID })
		s.mu.Unlock()
		return false, nil
	}

	if _, err := s.remote.AddShot(ctx, name, shotID); err != nil {
		s.logger.Error().Err(err).Str("playlist", name).Str("shot", shotID).Msg("failed to add shot to playlist")
		return false, fmt.Errorf("%w: add shot: %w", ErrRemote, err)
	}
	s.mu.Lock()
	s.playlists[name] = dedupeSorted(append(slices.Clone(s.playlists[name]), shotID))
	s.mu.Unlock()
	return true, nil
}

// ImportDocument parses data with ParseMapping and merges it.
func (s *PlaylistStore) ImportDocument(ctx context.Context, data []byte, known func(shotID string) bool) (ImportReport, error) {
	mapping, err := ParseMapping(data)
	if err != nil {
		return ImportReport{}, err
	}
	return s.ImportMerge(ctx, mapping, known)
}

// ImportMerge replaces the playlists named in mapping, creating missing
// ones. Shot ids that known rejects are counted in the report but still
// imported.
func (s *PlaylistStore) ImportMerge(ctx context.Context, mapping map[string][]string, known func(shotID string) bool) (ImportReport, error) {
	if mapping == nil {
		return ImportReport{}, fmt.Errorf("%w: mapping is null", ErrInvalidImport)
	}

	targets := make(map[string][]string, len(mapping))
	for raw, ids := range mapping {
		name := strings.TrimSpace(raw)
		if name == "" {
			return ImportReport{}, fmt.Errorf("%w: empty playlist name", ErrInvalidImport)
		}
		if _, dup := targets[name]; dup {
			return ImportReport{}, fmt.Errorf("%w: playlist %q appears twice", ErrInvalidImport, name)
		}
		targets[name] = dedupeSorted(ids)
	}

	report := ImportReport{Entries: len(targets)}
	if known != nil {
		missing := make(map[string]struct{})
		for _, ids := range targets {
			for _, id := range ids {
				if !known(id) {
					missing[id] = struct{}{}
				}
			}
		}
		report.MissingShots = len(missing)
	}

	s.op.Lock()
	defer s.op.Unlock()

	for _, name := range sortedKeys(targets) {
		if err := s.pushPlaylist(ctx, name, targets[name]); err != nil {
			s.logger.Error().Err(err).Str("playlist", name).Int("applied", report.Applied).Msg("playlist import stopped")
			return report, fmt.Errorf("%w: import %q after %d playlists: %w", ErrRemote, name, report.Applied, err)
		}
		report.Applied++
	}

	if s.Active() == "" {
		s.setActive(firstName(s.Snapshot()))
	}

	s.logger.Info().
		Int("playlists", report.Applied).
		Int("missing_shots", report.MissingShots).
		Msg("playlists imported")
	return report, nil
}

// pushPlaylist moves the remote playlist to target, reflecting the last
// remote answer locally when a call fails part way.
func (s *PlaylistStore) pushPlaylist(ctx context.Context, name string, target []string) error {
	current, ok := s.Shots(name)
	if !ok {
		if _, err := s.remote.Create(ctx, name); err != nil {
			return err
		}
		s.reflect(name, []string{})
	}

	var answered Playlist
	pushed := false
	fail := func(err error) error {
		if pushed {
			s.reflect(name, dedupeSorted(answered.ShotIDs))
		}
		return err
	}

	for _, id := range current {
		if _, found := slices.BinarySearch(target, id); found {
			continue
		}
		pl, err := s.remote.RemoveShot(ctx, name, id)
		if err != nil {
			return fail(err)
		}
		answered, pushed = pl, true
	}
	for _, id := range target {
		if _, found := slices.BinarySearch(current, id); found {
			continue
		}
		pl, err := s.remote.AddShot(ctx, name, id)
		if err != nil {
			return fail(err)
		}
		answered, pushed = pl, true
	}

	s.reflect(name, slices.Clone(target))
	return nil
}

func (s *PlaylistStore) reflect(name string, ids []string) {
	s.mu.Lock()
	s.playlists[name] = ids
	s.mu.Unlock()
}

func (s *PlaylistStore) exists(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.playlists[name]
	return ok
}

func firstName(playlists map[string][]string) string {
	if len(playlists) == 0 {
		return ""
	}
	return sortedKeys(playlists)[0]
}
