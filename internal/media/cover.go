package media

import (
	"fmt"
	"maps"
	"sync"

	"github.com/rs/zerolog"
)

// OverrideStore persists the shot id → media name cover choices.
type OverrideStore interface {
	SaveCoverOverrides(overrides map[string]string) error
}

// CoverResolver picks the medium representing each shot. A persisted
// override wins when it still names one of the shot's images or videos;
// otherwise the first image, then the first video.
type CoverResolver struct {
	mu        sync.RWMutex
	overrides map[string]string
	store     OverrideStore
	logger    zerolog.Logger
}

func NewCoverResolver(overrides map[string]string, store OverrideStore, logger zerolog.Logger) *CoverResolver {
	if overrides == nil {
		overrides = make(map[string]string)
	}
	return &CoverResolver{
		overrides: maps.Clone(overrides),
		store:     store,
		logger:    logger.With().Str("component", "covers").Logger(),
	}
}

func (r *CoverResolver) Overrides() map[string]string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return maps.Clone(r.overrides)
}

func (r *CoverResolver) ResolveAll(c *Collection) {
	if c == nil {
		return
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, shot := range c.Shots {
		r.resolve(shot)
	}
}

func (r *CoverResolver) Resolve(shot *Shot) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	r.resolve(shot)
}

func (r *CoverResolver) resolve(shot *Shot) {
	var chosen *MediaFile
	if name, ok := r.overrides[shot.ID]; ok {
		chosen = findMedia(shot, name)
	}
	if chosen == nil {
		switch {
		case len(shot.Images) > 0:
			chosen = &shot.Images[0]
		case len(shot.Videos) > 0:
			chosen = &shot.Videos[0]
		}
	}
	applyCover(shot, chosen)
}

// SetCover persists name as the cover of shotID and updates the shot in
// place. The override is only stored when the shot actually has that file.
func (r *CoverResolver) SetCover(c *Collection, shotID, name string) error {
	shot, ok := c.Shot(shotID)
	if !ok {
		return fmt.Errorf("shot %q: %w", shotID, ErrNotFound)
	}
	chosen := findMedia(shot, name)
	if chosen == nil {
		return fmt.Errorf("media %q in shot %q: %w", name, shotID, ErrNotFound)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	next := maps.Clone(r.overrides)
	next[shotID] = name
	if err := r.persist(next); err != nil {
		return err
	}
	r.overrides = next
	applyCover(shot, chosen)

	r.logger.Debug().Str("shot", shotID).Str("media", name).Msg("cover set")
	return nil
}

// ClearCover drops the override of shotID and falls back to the default.
func (r *CoverResolver) ClearCover(c *Collection, shotID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.overrides[shotID]; ok {
		next := maps.Clone(r.overrides)
		delete(next, shotID)
		if err := r.persist(next); err != nil {
			return err
		}
		r.overrides = next
	}

	if shot, ok := c.Shot(shotID); ok {
		r.resolve(shot)
	}
	return nil
}

func (r *CoverResolver) persist(overrides map[string]string) error {
	if r.store == nil {
		return nil
	}
	if err := r.store.SaveCoverOverrides(overrides); err != nil {
		return fmt.Errorf("save cover overrides: %w", err)
	}
	return nil
}

func findMedia(shot *Shot, name string) *MediaFile {
	for i := range shot.Images {
		if shot.Images[i].Name == name {
			return &shot.Images[i]
		}
	}
	for i := range shot.Videos {
		if shot.Videos[i].Name == name {
			return &shot.Videos[i]
		}
	}
	return nil
}

func applyCover(shot *Shot, chosen *MediaFile) {
	if chosen == nil {
		shot.Cover = ""
		shot.CoverName = ""
		shot.CoverKind = CoverNone
		return
	}
	shot.Cover = chosen.Ref
	shot.CoverName = chosen.Name
	if chosen.Kind == KindVideo {
		shot.CoverKind = CoverVideo
	} else {
		shot.CoverKind = CoverImage
	}
}
