package workspace

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"shotboard/internal/catalog"
	"shotboard/internal/media"
	"shotboard/internal/prefs"
	"shotboard/internal/storage"
)

func TestMain(m *testing.M) {
	// badger pulls in glog, whose flush daemon runs for the life of the process.
	goleak.VerifyTestMain(m, goleak.IgnoreTopFunction("github.com/golang/glog.(*loggingT).flushDaemon"))
}

type memPrefs struct {
	mu   sync.Mutex
	snap prefs.Snapshot
}

func newMemPrefs() *memPrefs {
	return &memPrefs{snap: prefs.Snapshot{CoverOverrides: map[string]string{}, PanelOpen: true}}
}

func (p *memPrefs) Load() prefs.Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snap
}

func (p *memPrefs) SaveCoverOverrides(overrides map[string]string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.snap.CoverOverrides = overrides
	return nil
}

func (p *memPrefs) SaveActivePlaylist(name string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.snap.ActivePlaylist = name
	return nil
}

func (p *memPrefs) SavePanelOpen(open bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.snap.PanelOpen = open
	return nil
}

func writeLibrary(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for name, content := range files {
		path := filepath.Join(root, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return root
}

func newTestWorkspace(t *testing.T, p *memPrefs) (*Workspace, *storage.SQLiteStorage) {
	t.Helper()
	store, err := storage.NewSQLiteStorage(filepath.Join(t.TempDir(), "store.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	if p == nil {
		p = newMemPrefs()
	}
	ws := New(Deps{
		TagRemote:      store.Tags(),
		PlaylistRemote: store.Playlists(),
		Prefs:          p,
	}, zerolog.Nop())
	require.NoError(t, ws.Load(context.Background()))
	t.Cleanup(ws.Close)
	return ws, store
}

func ids(views []ShotView) []string {
	out := make([]string, 0, len(views))
	for _, v := range views {
		out = append(out, v.ID)
	}
	return out
}

func TestScan_BuildsCollection(t *testing.T) {
	root := writeLibrary(t, map[string]string{
		"A.jpg":       "img",
		"A.mp4":       "vid",
		"A.txt":       "rainy street",
		"sub/B.png":   "img",
		".hidden.jpg": "x",
	})
	ws, _ := newTestWorkspace(t, nil)

	stats, err := ws.Scan(context.Background(), root)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Shots)
	assert.Equal(t, root, ws.Root())

	shot, ok := ws.Shot("A")
	require.True(t, ok)
	assert.Equal(t, "A.jpg", shot.CoverName)
	assert.Equal(t, media.CoverImage, shot.CoverKind)
	assert.Equal(t, "rainy street", shot.NoteText())
	assert.Equal(t, []string{}, shot.Tags)

	assert.Equal(t, []string{"A", "B"}, ids(ws.View(Query{})))
}

func TestScan_ReplacesCollectionAndRevokesRefs(t *testing.T) {
	first := writeLibrary(t, map[string]string{"A.jpg": "1", "B.jpg": "2"})
	second := writeLibrary(t, map[string]string{"C.jpg": "3"})
	ws, _ := newTestWorkspace(t, nil)
	ctx := context.Background()

	_, err := ws.Scan(ctx, first)
	require.NoError(t, err)
	old, _ := ws.Shot("A")
	assert.Equal(t, 2, ws.Refs().Len())

	_, err = ws.Scan(ctx, second)
	require.NoError(t, err)

	_, ok := ws.Refs().Resolve(old.Cover)
	assert.False(t, ok, "old refs are revoked")
	assert.Equal(t, 1, ws.Refs().Len())
	assert.False(t, ws.HasShot("A"))
	assert.Equal(t, 1, ws.ShotCount())
}

func TestScan_Errors(t *testing.T) {
	ws, _ := newTestWorkspace(t, nil)

	_, err := ws.Rescan(context.Background())
	assert.ErrorIs(t, err, ErrNoLibrary)

	_, err = ws.Scan(context.Background(), filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
	assert.False(t, ws.IsScanning())
}

func TestScan_SingleFlight(t *testing.T) {
	ws, _ := newTestWorkspace(t, nil)

	ws.scanMu.Lock()
	ws.scanning = true
	ws.scanMu.Unlock()

	_, err := ws.Scan(context.Background(), t.TempDir())
	assert.ErrorIs(t, err, ErrScanInProgress)

	ws.scanMu.Lock()
	ws.scanning = false
	ws.scanMu.Unlock()
}

func TestCover_SurvivesRescan(t *testing.T) {
	root := writeLibrary(t, map[string]string{"A.jpg": "1", "A.mp4": "2"})
	p := newMemPrefs()
	ws, _ := newTestWorkspace(t, p)
	ctx := context.Background()

	_, err := ws.Scan(ctx, root)
	require.NoError(t, err)

	shot, err := ws.SetCover("A", "A.mp4")
	require.NoError(t, err)
	assert.Equal(t, media.CoverVideo, shot.CoverKind)
	assert.Equal(t, map[string]string{"A": "A.mp4"}, p.Load().CoverOverrides)

	_, err = ws.Rescan(ctx)
	require.NoError(t, err)
	shot, _ = ws.Shot("A")
	assert.Equal(t, "A.mp4", shot.CoverName)

	shot, err = ws.ClearCover("A")
	require.NoError(t, err)
	assert.Equal(t, "A.jpg", shot.CoverName)

	_, err = ws.ClearCover("nope")
	assert.ErrorIs(t, err, media.ErrNotFound)
}

func TestView_FiltersAndSelection(t *testing.T) {
	root := writeLibrary(t, map[string]string{
		"A.jpg": "1", "A.txt": "night exterior",
		"B.jpg": "2",
		"C.jpg": "3",
	})
	ws, _ := newTestWorkspace(t, nil)
	ctx := context.Background()

	_, err := ws.Scan(ctx, root)
	require.NoError(t, err)

	_, err = ws.AddTag(ctx, "A", "red")
	require.NoError(t, err)
	_, err = ws.AddTag(ctx, "B", "red")
	require.NoError(t, err)
	_, err = ws.AddTag(ctx, "B", "wide")
	require.NoError(t, err)

	assert.Equal(t, []string{"A", "B"}, ids(ws.View(Query{Tags: []string{"RED"}})))
	assert.Equal(t, []string{"B"}, ids(ws.View(Query{Tags: []string{"red", "wide"}})))

	text := "NIGHT"
	assert.Equal(t, []string{"A"}, ids(ws.View(Query{Text: &text})))

	sel := ws.SetSelection([]string{"wide", " ", "WIDE"}, "")
	assert.Equal(t, []string{"wide"}, sel.TagFilters)
	assert.Equal(t, []string{"B"}, ids(ws.View(Query{})))

	_, err = ws.CreatePlaylist(ctx, "selects")
	require.NoError(t, err)
	in, err := ws.ToggleInActive(ctx, "C")
	require.NoError(t, err)
	assert.True(t, in)
	assert.Equal(t, []string{"C"}, ids(ws.View(Query{Tags: []string{}, Playlist: "selects"})))
}

func TestRenameTag_CarriesFilters(t *testing.T) {
	ws, store := newTestWorkspace(t, nil)
	ctx := context.Background()

	_, err := ws.AddTag(ctx, "A", "red")
	require.NoError(t, err)
	ws.SetSelection([]string{"Red"}, "")

	changed, err := ws.RenameTag(ctx, "red", "crimson")
	require.NoError(t, err)
	assert.Equal(t, 1, changed)
	assert.Equal(t, []string{"crimson"}, ws.Selection().TagFilters)

	remote, err := store.Tags().FetchAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string][]string{"A": {"crimson"}}, remote)

	require.NoError(t, ws.RemoveTag(ctx, "A", "crimson"))
	assert.Empty(t, ws.Selection().TagFilters, "filters for vanished tags are dropped")
}

func TestToggle_RequiresActivePlaylist(t *testing.T) {
	ws, _ := newTestWorkspace(t, nil)

	_, err := ws.ToggleInActive(context.Background(), "A")
	assert.ErrorIs(t, err, ErrNoActivePlaylist)
}

func TestActivePlaylist_RestoredFromPrefs(t *testing.T) {
	ctx := context.Background()
	store, err := storage.NewSQLiteStorage(filepath.Join(t.TempDir(), "store.db"))
	require.NoError(t, err)
	defer store.Close()

	_, err = store.Playlists().Create(ctx, "alpha")
	require.NoError(t, err)
	_, err = store.Playlists().Create(ctx, "beta")
	require.NoError(t, err)

	p := newMemPrefs()
	p.snap.ActivePlaylist = "beta"

	ws := New(Deps{TagRemote: store.Tags(), PlaylistRemote: store.Playlists(), Prefs: p}, zerolog.Nop())
	defer ws.Close()
	require.NoError(t, ws.Load(ctx))
	assert.Equal(t, "beta", ws.Selection().ActivePlaylist)

	require.NoError(t, ws.SetActivePlaylist("alpha"))
	assert.Equal(t, "alpha", p.Load().ActivePlaylist)
	assert.ErrorIs(t, ws.SetActivePlaylist("ghost"), catalog.ErrNotFound)
}

func TestImportExport_RoundTrip(t *testing.T) {
	root := writeLibrary(t, map[string]string{"A.jpg": "1"})
	ws, _ := newTestWorkspace(t, nil)
	ctx := context.Background()

	_, err := ws.Scan(ctx, root)
	require.NoError(t, err)

	report, err := ws.ImportPlaylists(ctx, []byte(`{"selects": ["A", "Z", "Z"]}`))
	require.NoError(t, err)
	assert.Equal(t, 1, report.MissingShots)
	assert.Equal(t, "selects", ws.Selection().ActivePlaylist)

	report, err = ws.ImportTags(ctx, []byte(`{"A": ["red", "blue"], "Z": ["gone"]}`))
	require.NoError(t, err)
	assert.Equal(t, 1, report.MissingShots)

	doc, err := ws.ExportTags(nil)
	require.NoError(t, err)
	assert.Equal(t, catalog.TagsFilename, doc.Filename)
	assert.JSONEq(t, `{"A": ["blue", "red"], "Z": ["gone"]}`, string(doc.Body))

	doc, err = ws.ExportTags([]string{"RED"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"A": ["blue", "red"]}`, string(doc.Body))

	doc, err = ws.ExportPlaylists([]string{"selects"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"selects": ["A", "Z"]}`, string(doc.Body))

	doc, err = ws.ExportPlaylists(nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"selects": ["A", "Z"]}`, string(doc.Body))

	_, err = ws.ImportTags(ctx, []byte(`["not", "an", "object"]`))
	assert.ErrorIs(t, err, catalog.ErrInvalidImport)
}

func TestPanelOpen(t *testing.T) {
	p := newMemPrefs()
	ws, _ := newTestWorkspace(t, p)

	assert.True(t, ws.PanelOpen())
	require.NoError(t, ws.SetPanelOpen(false))
	assert.False(t, ws.PanelOpen())
	assert.False(t, p.Load().PanelOpen)
}

func TestWatcher_RescansAfterChange(t *testing.T) {
	root := writeLibrary(t, map[string]string{"A.jpg": "1"})
	ws, _ := newTestWorkspace(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	_, err := ws.Scan(ctx, root)
	require.NoError(t, err)

	w, err := NewWatcher(root, ws, 50*time.Millisecond, zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, w.Start(ctx))
	defer w.Stop()

	require.NoError(t, os.WriteFile(filepath.Join(root, "B.jpg"), []byte("2"), 0o644))

	assert.Eventually(t, func() bool { return ws.HasShot("B") }, 5*time.Second, 20*time.Millisecond)
	assert.GreaterOrEqual(t, w.Rescans(), 1)
}
