// Package workspace owns every piece of client state: the current shot
// collection, the tag and playlist mirrors, cover choices and the user's
// selection. Callers go through a single Workspace value; nothing is global.
package workspace

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"shotboard/internal/catalog"
	"shotboard/internal/media"
	"shotboard/internal/prefs"
)

var (
	ErrScanInProgress   = errors.New("scan already in progress")
	ErrNoLibrary        = errors.New("no library folder selected")
	ErrNoActivePlaylist = errors.New("no active playlist")
)

// Preferences is the local persistence the workspace writes through.
type Preferences interface {
	Load() prefs.Snapshot
	SaveCoverOverrides(overrides map[string]string) error
	SaveActivePlaylist(name string) error
	SavePanelOpen(open bool) error
}

type Deps struct {
	Refs            *media.ContentRefs
	TagRemote       catalog.TagRemote
	PlaylistRemote  catalog.PlaylistRemote
	Prefs           Preferences
	ScanConcurrency int
}

type Workspace struct {
	refs       *media.ContentRefs
	aggregator *media.Aggregator
	covers     *media.CoverResolver
	tags       *catalog.TagStore
	playlists  *catalog.PlaylistStore
	prefs      Preferences
	logger     zerolog.Logger

	initialActive string

	scanMu   sync.Mutex
	scanning bool

	mu         sync.RWMutex
	collection *media.Collection
	root       string
	filters    []string
	query      string
	panelOpen  bool
}

func New(deps Deps, logger zerolog.Logger) *Workspace {
	snap := deps.Prefs.Load()
	refs := deps.Refs
	if refs == nil {
		refs = media.NewContentRefs()
	}

	return &Workspace{
		refs:          refs,
		aggregator:    media.NewAggregator(refs, deps.ScanConcurrency, logger),
		covers:        media.NewCoverResolver(snap.CoverOverrides, deps.Prefs, logger),
		tags:          catalog.NewTagStore(deps.TagRemote, logger),
		playlists:     catalog.NewPlaylistStore(deps.PlaylistRemote, deps.Prefs, logger),
		prefs:         deps.Prefs,
		logger:        logger.With().Str("component", "workspace").Logger(),
		initialActive: snap.ActivePlaylist,
		panelOpen:     snap.PanelOpen,
	}
}

// Load pulls tags and playlists from the remote store.
func (w *Workspace) Load(ctx context.Context) error {
	if err := w.tags.Load(ctx); err != nil {
		return err
	}
	return w.playlists.Load(ctx, w.initialActive)
}

func (w *Workspace) Refs() *media.ContentRefs { return w.refs }

func (w *Workspace) Tags() *catalog.TagStore { return w.tags }

func (w *Workspace) Playlists() *catalog.PlaylistStore { return w.playlists }

func (w *Workspace) IsScanning() bool {
	w.scanMu.Lock()
	defer w.scanMu.Unlock()
	return w.scanning
}

func (w *Workspace) Root() string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.root
}

// Scan reads root and replaces the current collection. Only one scan runs
// at a time; a concurrent request gets ErrScanInProgress. The previous
// collection's content references are revoked as the new one is installed.
func (w *Workspace) Scan(ctx context.Context, root string) (media.ScanStats, error) {
	w.scanMu.Lock()
	if w.scanning {
		w.scanMu.Unlock()
		return media.ScanStats{}, ErrScanInProgress
	}
	w.scanning = true
	w.scanMu.Unlock()

	defer func() {
		w.scanMu.Lock()
		w.scanning = false
		w.scanMu.Unlock()
	}()

	if root == "" {
		return media.ScanStats{}, ErrNoLibrary
	}

	w.logger.Info().Str("path", root).Msg("scanning library")

	files, err := media.ReadDir(root)
	if err != nil {
		return media.ScanStats{}, err
	}

	coll, stats, err := w.aggregator.AggregateWithStats(ctx, files)
	if err != nil {
		return stats, fmt.Errorf("aggregate %s: %w", root, err)
	}
	w.covers.ResolveAll(coll)

	w.mu.Lock()
	previous := w.collection
	w.collection = coll
	w.root = root
	w.mu.Unlock()

	previous.Close()

	return stats, nil
}

// Rescan scans the folder of the last successful scan again.
func (w *Workspace) Rescan(ctx context.Context) (media.ScanStats, error) {
	return w.Scan(ctx, w.Root())
}

// Close releases the collection. The workspace is unusable afterwards.
func (w *Workspace) Close() {
	w.mu.Lock()
	coll := w.collection
	w.collection = nil
	w.mu.Unlock()

	coll.Close()
}

// ShotView is a shot together with its tags.
type ShotView struct {
	media.Shot
	Tags []string `json:"tags"`
}

func (w *Workspace) view(shot *media.Shot) ShotView {
	tags := w.tags.Tags(shot.ID)
	if tags == nil {
		tags = []string{}
	}
	return ShotView{Shot: *shot, Tags: tags}
}

// Shot returns a copy of one shot.
func (w *Workspace) Shot(id string) (ShotView, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	shot, ok := w.collection.Shot(id)
	if !ok {
		return ShotView{}, false
	}
	return w.view(shot), true
}

func (w *Workspace) ShotCount() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.collection.Len()
}

func (w *Workspace) HasShot(id string) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.collection.Has(id)
}

// Query selects shots. Nil fields fall back to the stored selection.
type Query struct {
	Tags     []string
	Text     *string
	Playlist string
}

// View filters the collection by tags and text, optionally restricted to a
// playlist. Result order is collection order.
func (w *Workspace) View(q Query) []ShotView {
	w.mu.RLock()
	defer w.mu.RUnlock()

	filters := q.Tags
	if filters == nil {
		filters = w.filters
	}
	text := w.query
	if q.Text != nil {
		text = *q.Text
	}

	var shots []*media.Shot
	if w.collection != nil {
		shots = w.collection.Shots
	}
	matched := catalog.Filter(shots, w.tags, filters, text)

	out := make([]ShotView, 0, len(matched))
	for _, shot := range matched {
		if q.Playlist != "" && !w.playlists.Contains(q.Playlist, shot.ID) {
			continue
		}
		out = append(out, w.view(shot))
	}
	return out
}

func (w *Workspace) SetCover(shotID, name string) (ShotView, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.covers.SetCover(w.collection, shotID, name); err != nil {
		return ShotView{}, err
	}
	shot, _ := w.collection.Shot(shotID)
	return w.view(shot), nil
}

func (w *Workspace) ClearCover(shotID string) (ShotView, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	shot, ok := w.collection.Shot(shotID)
	if !ok {
		return ShotView{}, fmt.Errorf("shot %q: %w", shotID, media.ErrNotFound)
	}
	if err := w.covers.ClearCover(w.collection, shotID); err != nil {
		return ShotView{}, err
	}
	return w.view(shot), nil
}

func (w *Workspace) AddTag(ctx context.Context, shotID, tag string) ([]string, error) {
	return w.tags.AddTag(ctx, shotID, tag)
}

func (w *Workspace) RemoveTag(ctx context.Context, shotID, tag string) error {
	if err := w.tags.RemoveTag(ctx, shotID, tag); err != nil {
		return err
	}
	w.pruneFilters()
	return nil
}

// RenameTag renames a tag everywhere and carries active tag filters along.
func (w *Workspace) RenameTag(ctx context.Context, oldTag, newTag string) (int, error) {
	changed, err := w.tags.RenameTag(ctx, oldTag, newTag)
	if err != nil {
		return 0, err
	}

	w.mu.Lock()
	newTag = strings.TrimSpace(newTag)
	for i, f := range w.filters {
		if strings.EqualFold(f, oldTag) && newTag != "" {
			w.filters[i] = newTag
		}
	}
	w.filters = uniqueFold(w.filters)
	w.mu.Unlock()

	w.pruneFilters()
	return changed, nil
}

// pruneFilters drops tag filters no shot carries anymore.
func (w *Workspace) pruneFilters() {
	all := w.tags.AllTags()

	w.mu.Lock()
	defer w.mu.Unlock()
	w.filters = slices.DeleteFunc(w.filters, func(f string) bool {
		return !slices.ContainsFunc(all, func(t string) bool { return strings.EqualFold(t, f) })
	})
}

func (w *Workspace) CreatePlaylist(ctx context.Context, name string) (catalog.Playlist, error) {
	return w.playlists.Create(ctx, name)
}

func (w *Workspace) RenamePlaylist(ctx context.Context, oldName, newName string) error {
	return w.playlists.Rename(ctx, oldName, newName)
}

func (w *Workspace) DeletePlaylist(ctx context.Context, name string) error {
	return w.playlists.Delete(ctx, name)
}

// ToggleInActive adds or removes a shot from the active playlist.
func (w *Workspace) ToggleInActive(ctx context.Context, shotID string) (bool, error) {
	active := w.playlists.Active()
	if active == "" {
		return false, ErrNoActivePlaylist
	}
	return w.playlists.ToggleShot(ctx, active, shotID)
}

func (w *Workspace) SetActivePlaylist(name string) error {
	return w.playlists.SetActive(name)
}

// ImportTags merges a tag document and reports how many of its shots are
// not in the current collection.
func (w *Workspace) ImportTags(ctx context.Context, data []byte) (catalog.ImportReport, error) {
	report, err := w.tags.ImportDocument(ctx, data, w.HasShot)
	if err != nil {
		return report, err
	}
	w.pruneFilters()
	return report, nil
}

// ImportPlaylists merges a playlist document and reports how many of the
// referenced shots are not in the current collection.
func (w *Workspace) ImportPlaylists(ctx context.Context, data []byte) (catalog.ImportReport, error) {
	return w.playlists.ImportDocument(ctx, data, w.HasShot)
}

// ExportTags exports the shots carrying any of the selected tags. An empty
// selection exports every tagged shot.
func (w *Workspace) ExportTags(selected []string) (catalog.Document, error) {
	if len(selected) == 0 {
		selected = w.tags.AllTags()
	}
	return catalog.TagsDocument(w.tags, selected)
}

// ExportPlaylists exports the selected playlists, or all of them when none
// are named.
func (w *Workspace) ExportPlaylists(selected []string) (catalog.Document, error) {
	if len(selected) == 0 {
		selected = w.playlists.Names()
	}
	return catalog.PlaylistsDocument(w.playlists, selected)
}

// Selection returns the current view state.
func (w *Workspace) Selection() catalog.Selection {
	w.mu.RLock()
	defer w.mu.RUnlock()
	filters := slices.Clone(w.filters)
	if filters == nil {
		filters = []string{}
	}
	return catalog.Selection{
		ActivePlaylist: w.playlists.Active(),
		TagFilters:     filters,
		Query:          w.query,
	}
}

// SetSelection replaces the tag filters and search query.
func (w *Workspace) SetSelection(filters []string, query string) catalog.Selection {
	w.mu.Lock()
	w.filters = uniqueFold(filters)
	w.query = query
	w.mu.Unlock()
	return w.Selection()
}

func (w *Workspace) PanelOpen() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.panelOpen
}

func (w *Workspace) SetPanelOpen(open bool) error {
	w.mu.Lock()
	w.panelOpen = open
	w.mu.Unlock()

	if err := w.prefs.SavePanelOpen(open); err != nil {
		w.logger.Warn().Err(err).Msg("failed to persist panel state")
		return err
	}
	return nil
}

func uniqueFold(list []string) []string {
	out := make([]string, 0, len(list))
	for _, s := range list {
		s = strings.TrimSpace(s)
		if s == "" || slices.ContainsFunc(out, func(o string) bool { return strings.EqualFold(o, s) }) {
			continue
		}
		out = append(out, s)
	}
	return out
}
