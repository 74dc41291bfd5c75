package api

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"shotboard/internal/cache"
	"shotboard/internal/catalog"
	"shotboard/internal/media"
	"shotboard/internal/prefs"
	"shotboard/internal/storage"
	"shotboard/internal/streaming"
	"shotboard/internal/workspace"
)

type memPrefs struct {
	snap prefs.Snapshot
}

func (p *memPrefs) Load() prefs.Snapshot { return p.snap }

func (p *memPrefs) SaveCoverOverrides(o map[string]string) error {
	p.snap.CoverOverrides = o
	return nil
}

func (p *memPrefs) SaveActivePlaylist(name string) error {
	p.snap.ActivePlaylist = name
	return nil
}

func (p *memPrefs) SavePanelOpen(open bool) error {
	p.snap.PanelOpen = open
	return nil
}

type testEnv struct {
	router http.Handler
	ws     *workspace.Workspace
	root   string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	root := t.TempDir()
	for name, body := range map[string]string{
		"A.jpg":  "jpeg-a",
		"A.txt":  "dusk, rooftop",
		"B.mp4":  "video-b",
		"B.json": `{"lens": "35mm"}`,
		"C.png":  "png-c",
	} {
		require.NoError(t, os.WriteFile(filepath.Join(root, name), []byte(body), 0o644))
	}

	store, err := storage.NewSQLiteStorage(filepath.Join(t.TempDir(), "store.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	refs := media.NewContentRefs()
	ws := workspace.New(workspace.Deps{
		Refs:           refs,
		TagRemote:      store.Tags(),
		PlaylistRemote: store.Playlists(),
		Prefs:          &memPrefs{snap: prefs.Snapshot{CoverOverrides: map[string]string{}, PanelOpen: true}},
	}, zerolog.Nop())
	require.NoError(t, ws.Load(t.Context()))
	t.Cleanup(ws.Close)

	streamer := streaming.NewHandler(refs, cache.NewLRUCache(16, 1<<20), 1<<16, zerolog.Nop())
	h := NewHandler(ws, streamer, zerolog.Nop(), root)

	r := chi.NewRouter()
	r.Route("/api/v1", h.Routes)

	return &testEnv{router: r, ws: ws, root: root}
}

func (e *testEnv) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, "/api/v1"+path, reader)
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func (e *testEnv) scan(t *testing.T) {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/library/scan?wait=true", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func shotIDs(resp ShotsResponse) []string {
	out := []string{}
	for _, s := range resp.Shots {
		out = append(out, s.ID)
	}
	return out
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decode[HealthResponse](t, rec).Status)
}

func TestScanLibrary_Wait(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/library/scan?wait=true", "")
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[ScanResponse](t, rec)
	assert.Equal(t, "completed", resp.Status)
	require.NotNil(t, resp.Stats)
	assert.Equal(t, 3, resp.Stats.Shots)

	lib := decode[LibraryResponse](t, env.do(t, http.MethodGet, "/library", ""))
	assert.Equal(t, env.root, lib.Root)
	assert.Equal(t, 3, lib.Shots)
}

func TestScanLibrary_EmptyFolder(t *testing.T) {
	env := newTestEnv(t)
	body := `{"path": "` + filepath.ToSlash(t.TempDir()) + `"}`

	rec := env.do(t, http.MethodPost, "/library/scan?wait=true", body)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "EMPTY_LIBRARY", decode[ErrorResponse](t, rec).Error.Code)
}

func TestShots_ListAndDetail(t *testing.T) {
	env := newTestEnv(t)
	env.scan(t)

	resp := decode[ShotsResponse](t, env.do(t, http.MethodGet, "/shots", ""))
	assert.Equal(t, []string{"A", "B", "C"}, shotIDs(resp))
	assert.Equal(t, 3, resp.Total)

	resp = decode[ShotsResponse](t, env.do(t, http.MethodGet, "/shots?q=ROOFTOP", ""))
	assert.Equal(t, []string{"A"}, shotIDs(resp))

	rec := env.do(t, http.MethodGet, "/shots/B", "")
	require.Equal(t, http.StatusOK, rec.Code)
	shot := decode[workspace.ShotView](t, rec)
	assert.Equal(t, media.CoverVideo, shot.CoverKind)
	assert.Equal(t, "B.mp4", shot.CoverName)
	require.Len(t, shot.Notes, 1)
	assert.Equal(t, media.NoteStructured, shot.Notes[0].Format)

	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, "/shots/Z", "").Code)
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, "/shots?playlist=ghost", "").Code)
}

func TestContent_ServesCover(t *testing.T) {
	env := newTestEnv(t)
	env.scan(t)

	shot, ok := env.ws.Shot("A")
	require.True(t, ok)

	rec := env.do(t, http.MethodGet, "/content/"+shot.Cover, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/jpeg", rec.Header().Get("Content-Type"))
	assert.Equal(t, "jpeg-a", rec.Body.String())

	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, "/content/unknown", "").Code)
}

func TestCover_SetAndClear(t *testing.T) {
	env := newTestEnv(t)
	env.scan(t)

	rec := env.do(t, http.MethodPut, "/shots/A/cover", `{"name": "A.txt"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code, "notes cannot be covers")

	rec = env.do(t, http.MethodPut, "/shots/A/cover", `{"name": "A.jpg"}`)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodDelete, "/shots/A/cover", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "A.jpg", decode[workspace.ShotView](t, rec).CoverName)
}

func TestTags_Endpoints(t *testing.T) {
	env := newTestEnv(t)
	env.scan(t)

	rec := env.do(t, http.MethodPost, "/shots/A/tags", `{"tag": "Dusk"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"Dusk"}, decode[ShotTagsResponse](t, rec).Tags)

	rec = env.do(t, http.MethodPost, "/shots/A/tags", `{"tag": "dusk"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "DUPLICATE_TAG", decode[ErrorResponse](t, rec).Error.Code)

	rec = env.do(t, http.MethodPost, "/shots/A/tags", `{"tag": "  "}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, "/shots/A/tags", `not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	resp := decode[ShotsResponse](t, env.do(t, http.MethodGet, "/shots?tags=DUSK", ""))
	assert.Equal(t, []string{"A"}, shotIDs(resp))

	rec = env.do(t, http.MethodPost, "/tags/rename", `{"old": "dusk", "new": "sunset"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, decode[RenameTagResponse](t, rec).Changed)

	all := decode[TagsResponse](t, env.do(t, http.MethodGet, "/tags", ""))
	assert.Equal(t, map[string][]string{"A": {"sunset"}}, all.Tags)

	rec = env.do(t, http.MethodDelete, "/shots/A/tags/sunset", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{}, decode[ShotTagsResponse](t, rec).Tags)
}

func TestPlaylists_Endpoints(t *testing.T) {
	env := newTestEnv(t)
	env.scan(t)

	rec := env.do(t, http.MethodPost, "/shots/A/toggle", "")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "NO_ACTIVE_PLAYLIST", decode[ErrorResponse](t, rec).Error.Code)

	rec = env.do(t, http.MethodPost, "/playlists", `{"name": "selects"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = env.do(t, http.MethodPost, "/playlists", `{"name": "selects"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = env.do(t, http.MethodPost, "/shots/B/toggle", "")
	require.Equal(t, http.StatusOK, rec.Code)
	toggle := decode[ToggleResponse](t, rec)
	assert.True(t, toggle.Included)
	assert.Equal(t, "selects", toggle.Playlist)

	resp := decode[ShotsResponse](t, env.do(t, http.MethodGet, "/shots?playlist=selects", ""))
	assert.Equal(t, []string{"B"}, shotIDs(resp))

	rec = env.do(t, http.MethodPut, "/playlists/selects", `{"name": "final cut"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[PlaylistsResponse](t, rec)
	assert.Equal(t, map[string][]string{"final cut": {"B"}}, list.Playlists)
	assert.Equal(t, "final cut", list.Active)

	rec = env.do(t, http.MethodPut, "/playlists/final%20cut", `{"name": "final cut"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "SAME_NAME", decode[ErrorResponse](t, rec).Error.Code)

	rec = env.do(t, http.MethodPost, "/playlists/ghost/activate", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodDelete, "/playlists/final%20cut", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[PlaylistsResponse](t, rec).Playlists)
}

func TestImportExport(t *testing.T) {
	env := newTestEnv(t)
	env.scan(t)

	rec := env.do(t, http.MethodPost, "/playlists/import", `{"day1": ["A", "Q"], "day2": ["C"]}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	report := decode[ImportResponse](t, rec)
	assert.Equal(t, 2, report.Applied)
	assert.Equal(t, 1, report.MissingShots)

	rec = env.do(t, http.MethodGet, "/playlists/export?name=day2", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, `attachment; filename="playlists.json"`, rec.Header().Get("Content-Disposition"))
	assert.JSONEq(t, `{"day2": ["C"]}`, rec.Body.String())

	rec = env.do(t, http.MethodPost, "/tags/import", `{"A": ["x", 1]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_IMPORT", decode[ErrorResponse](t, rec).Error.Code)

	rec = env.do(t, http.MethodPost, "/tags/import", `{"A": ["x", "y"]}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodGet, "/tags/export", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, `attachment; filename="tags.json"`, rec.Header().Get("Content-Disposition"))
	assert.JSONEq(t, `{"A": ["x", "y"]}`, rec.Body.String())
}

func TestState_SelectionAndPanel(t *testing.T) {
	env := newTestEnv(t)
	env.scan(t)

	state := decode[StateResponse](t, env.do(t, http.MethodGet, "/state", ""))
	assert.True(t, state.PanelOpen)
	assert.Equal(t, []string{}, state.TagFilters)

	rec := env.do(t, http.MethodPut, "/state/selection", `{"tags": [], "query": "35MM"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "35MM", decode[StateResponse](t, rec).Query)

	resp := decode[ShotsResponse](t, env.do(t, http.MethodGet, "/shots", ""))
	assert.Equal(t, []string{"B"}, shotIDs(resp), "stored selection applies")

	rec = env.do(t, http.MethodPut, "/state/panel", `{"open": false}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, decode[StateResponse](t, rec).PanelOpen)
}

func TestErrorStatus(t *testing.T) {
	for _, tc := range []struct {
		err    error
		status int
	}{
		{catalog.ErrTagLimit, http.StatusBadRequest},
		{catalog.ErrDuplicateName, http.StatusConflict},
		{catalog.ErrNotFound, http.StatusNotFound},
		{catalog.ErrRemote, http.StatusBadGateway},
		{workspace.ErrScanInProgress, http.StatusConflict},
		{io.EOF, http.StatusInternalServerError},
	} {
		status, _ := errorStatus(tc.err)
		assert.Equal(t, tc.status, status, tc.err.Error())
	}
}
