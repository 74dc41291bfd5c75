package catalog

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

// MaxTagsPerShot caps the number of tags on one shot.
const MaxTagsPerShot = 20

// TagRemote is the remote side of the tag mapping.
type TagRemote interface {
	FetchAll(ctx context.Context) (map[string][]string, error)
	Add(ctx context.Context, shotID, tag string) ([]string, error)
	Remove(ctx context.Context, shotID, tag string) ([]string, error)
	RenameGlobally(ctx context.Context, oldTag, newTag string) error
}

// TagStore mirrors the remote shot → tags mapping.
//
// Mutations are write-then-reflect: the remote call is issued first and the
// local mirror changes only once it succeeded. A failed remote call leaves
// local state exactly as it was.
type TagStore struct {
	remote TagRemote
	logger zerolog.Logger

	op   sync.Mutex // one mutation at a time
	mu   sync.RWMutex
	tags map[string][]string
}

func NewTagStore(remote TagRemote, logger zerolog.Logger) *TagStore {
	return &TagStore{
		remote: remote,
		logger: logger.With().Str("component", "tags").Logger(),
		tags:   make(map[string][]string),
	}
}

// Load replaces local state with the remote mapping.
func (s *TagStore) Load(ctx context.Context) error {
	s.op.Lock()
	defer s.op.Unlock()

	all, err := s.remote.FetchAll(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to fetch tags")
		return fmt.Errorf("%w: fetch tags: %w", ErrRemote, err)
	}

	next := make(map[string][]string, len(all))
	for id, tags := range all {
		if norm := normalizeTags(tags); len(norm) > 0 {
			next[id] = norm
		}
	}

	s.mu.Lock()
	s.tags = next
	s.mu.Unlock()

	s.logger.Info().Int("shots", len(next)).Msg("tags loaded")
	return nil
}

// Tags returns a copy of the sorted tag list of one shot.
func (s *TagStore) Tags(shotID string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.tags[shotID])
}

// Snapshot returns a deep copy of the whole mapping.
func (s *TagStore) Snapshot() map[string][]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string][]string, len(s.tags))
	for id, tags := range s.tags {
		out[id] = slices.Clone(tags)
	}
	return out
}

// AllTags is the sorted union of every shot's tags.
func (s *TagStore) AllTags() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]struct{})
	for _, tags := range s.tags {
		for _, tag := range tags {
			seen[tag] = struct{}{}
		}
	}
	return sortedKeys(seen)
}

func (s *TagStore) AddTag(ctx context.Context, shotID, tag string) ([]string, error) {
	s.op.Lock()
	defer s.op.Unlock()

	tag = strings.TrimSpace(tag)
	if tag == "" {
		return nil, ErrEmptyTag
	}

	current := s.Tags(shotID)
	if len(current) >= MaxTagsPerShot {
		s.logger.Debug().Str("shot", shotID).Msg("tag limit reached")
		return nil, fmt.Errorf("%w: %d tags on %q", ErrTagLimit, MaxTagsPerShot, shotID)
	}
	if indexFold(current, tag) >= 0 {
		return nil, fmt.Errorf("%w: %q on %q", ErrDuplicateTag, tag, shotID)
	}

	if _, err := s.remote.Add(ctx, shotID, tag); err != nil {
		s.logger.Error().Err(err).Str("shot", shotID).Str("tag", tag).Msg("failed to add tag")
		return nil, fmt.Errorf("%w: add tag: %w", ErrRemote, err)
	}

	next := append(current, tag)
	sort.Strings(next)

	s.mu.Lock()
	s.tags[shotID] = next
	s.mu.Unlock()

	return slices.Clone(next), nil
}

// RemoveTag removes the exact tag value. The shot's entry disappears once
// its last tag is gone.
func (s *TagStore) RemoveTag(ctx context.Context, shotID, tag string) error {
	s.op.Lock()
	defer s.op.Unlock()

	if _, err := s.remote.Remove(ctx, shotID, tag); err != nil {
		s.logger.Error().Err(err).Str("shot", shotID).Str("tag", tag).Msg("failed to remove tag")
		return fmt.Errorf("%w: remove tag: %w", ErrRemote, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current := s.tags[shotID]
	next := slices.DeleteFunc(slices.Clone(current), func(t string) bool { return t == tag })
	if len(next) == 0 {
		delete(s.tags, shotID)
	} else {
		s.tags[shotID] = next
	}
	return nil
}

// RenameTag renames oldTag (matched case-insensitively) on every shot. A
// shot already carrying newTag just loses oldTag. Renaming to an empty name
// or to a case variant of oldTag does nothing. Returns the number of shots
// changed locally.
func (s *TagStore) RenameTag(ctx context.Context, oldTag, newTag string) (int, error) {
	s.op.Lock()
	defer s.op.Unlock()

	newTag = strings.TrimSpace(newTag)
	if newTag == "" || strings.EqualFold(newTag, oldTag) {
		return 0, nil
	}
	if strings.TrimSpace(oldTag) == "" {
		return 0, ErrEmptyTag
	}

	if err := s.remote.RenameGlobally(ctx, oldTag, newTag); err != nil {
		s.logger.Error().Err(err).Str("old", oldTag).Str("new", newTag).Msg("failed to rename tag")
		return 0, fmt.Errorf("%w: rename tag: %w", ErrRemote, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	changed := 0
	for id, tags := range s.tags {
		if next, ok := renameIn(tags, oldTag, newTag); ok {
			s.tags[id] = next
			changed++
		}
	}

	s.logger.Info().Str("old", oldTag).Str("new", newTag).Int("shots", changed).Msg("tag renamed")
	return changed, nil
}

func renameIn(tags []string, oldTag, newTag string) ([]string, bool) {
	i := indexFold(tags, oldTag)
	if i < 0 {
		return tags, false
	}

	next := slices.Clone(tags)
	if j := indexFold(next, newTag); j >= 0 && j != i {
		return slices.Delete(next, i, i+1), true
	}
	next[i] = newTag
	sort.Strings(next)
	return next, true
}

// ImportReport summarizes an import merge.
type ImportReport struct {
	Entries      int `json:"entries"`
	Applied      int `json:"applied"`
	MissingShots int `json:"missing_shots"`
}

// ImportDocument parses data with ParseMapping and merges it.
func (s *TagStore) ImportDocument(ctx context.Context, data []byte, known func(shotID string) bool) (ImportReport, error) {
	mapping, err := ParseMapping(data)
	if err != nil {
		return ImportReport{}, err
	}
	return s.ImportMerge(ctx, mapping, known)
}

// ImportMerge replaces the entries named in mapping and keeps every other
// shot as is. The whole mapping is validated first; nothing is sent when
// any entry is invalid. Shots are then pushed to the remote one at a time
// in id order and the first remote failure stops the import. Shot ids that
// known rejects are counted in the report but still imported.
func (s *TagStore) ImportMerge(ctx context.Context, mapping map[string][]string, known func(shotID string) bool) (ImportReport, error) {
	if mapping == nil {
		return ImportReport{}, fmt.Errorf("%w: mapping is null", ErrInvalidImport)
	}

	s.op.Lock()
	defer s.op.Unlock()

	targets := make(map[string][]string, len(mapping))
	for id, tags := range mapping {
		norm := normalizeTags(tags)
		if len(norm) > MaxTagsPerShot {
			return ImportReport{}, fmt.Errorf("%w: %q has %d tags, limit is %d", ErrInvalidImport, id, len(norm), MaxTagsPerShot)
		}
		targets[id] = norm
	}

	report := ImportReport{Entries: len(targets)}
	if known != nil {
		for id := range targets {
			if !known(id) {
				report.MissingShots++
			}
		}
	}

	for _, id := range sortedKeys(targets) {
		if err := s.pushShot(ctx, id, targets[id]); err != nil {
			s.logger.Error().Err(err).Str("shot", id).Int("applied", report.Applied).Msg("tag import stopped")
			return report, fmt.Errorf("%w: import %q after %d shots: %w", ErrRemote, id, report.Applied, err)
		}
		report.Applied++
	}

	s.logger.Info().Int("shots", report.Applied).Msg("tags imported")
	return report, nil
}

// pushShot moves the remote entry for id to target. When a call fails
// part way, the last list the remote answered with is reflected locally so
// the mirror matches what the remote now holds.
func (s *TagStore) pushShot(ctx context.Context, id string, target []string) error {
	current := s.Tags(id)
	var answered []string
	pushed := false

	fail := func(err error) error {
		if pushed {
			s.reflect(id, normalizeTags(answered))
		}
		return err
	}

	for _, tag := range current {
		if slices.Contains(target, tag) {
			continue
		}
		tags, err := s.remote.Remove(ctx, id, tag)
		if err != nil {
			return fail(err)
		}
		answered, pushed = tags, true
	}
	for _, tag := range target {
		if slices.Contains(current, tag) {
			continue
		}
		tags, err := s.remote.Add(ctx, id, tag)
		if err != nil {
			return fail(err)
		}
		answered, pushed = tags, true
	}

	s.reflect(id, slices.Clone(target))
	return nil
}

func (s *TagStore) reflect(id string, tags []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(tags) == 0 {
		delete(s.tags, id)
	} else {
		s.tags[id] = tags
	}
}
