package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"shotboard/internal/catalog"
	"shotboard/internal/media"
	"shotboard/internal/streaming"
	"shotboard/internal/workspace"
)

const Version = "0.2.0"

// maxImportSize bounds uploaded import documents.
const maxImportSize = 8 << 20

// Handler serves the workspace: the scanned library, tags, playlists and
// the user's selection.
type Handler struct {
	ws          *workspace.Workspace
	streamer    *streaming.Handler
	logger      zerolog.Logger
	libraryPath string
}

func NewHandler(ws *workspace.Workspace, streamer *streaming.Handler, logger zerolog.Logger, libraryPath string) *Handler {
	return &Handler{
		ws:          ws,
		streamer:    streamer,
		logger:      logger,
		libraryPath: libraryPath,
	}
}

// Routes mounts the workspace endpoints on r.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/health", h.Health)

	r.Get("/library", h.GetLibrary)
	r.Post("/library/scan", h.ScanLibrary)

	r.Get("/shots", h.ListShots)
	r.Get("/shots/{id}", h.GetShot)
	r.Put("/shots/{id}/cover", h.SetCover)
	r.Delete("/shots/{id}/cover", h.ClearCover)
	r.Post("/shots/{id}/tags", h.AddTag)
	r.Delete("/shots/{id}/tags/{tag}", h.RemoveTag)
	r.Post("/shots/{id}/toggle", h.ToggleShot)

	r.Get("/tags", h.ListTags)
	r.Post("/tags/rename", h.RenameTag)
	r.Get("/tags/export", h.ExportTags)
	r.Post("/tags/import", h.ImportTags)

	r.Get("/playlists", h.ListPlaylists)
	r.Post("/playlists", h.CreatePlaylist)
	r.Get("/playlists/export", h.ExportPlaylists)
	r.Post("/playlists/import", h.ImportPlaylists)
	r.Put("/playlists/{name}", h.RenamePlaylist)
	r.Delete("/playlists/{name}", h.DeletePlaylist)
	r.Post("/playlists/{name}/activate", h.ActivatePlaylist)

	r.Get("/state", h.GetState)
	r.Put("/state/selection", h.SetSelection)
	r.Put("/state/panel", h.SetPanel)

	r.Get("/content/{ref}", h.Content)
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:  "ok",
		Version: Version,
	})
}

func (h *Handler) GetLibrary(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, LibraryResponse{
		Root:     h.ws.Root(),
		Shots:    h.ws.ShotCount(),
		Scanning: h.ws.IsScanning(),
		Cache:    h.streamer.CacheStats(),
	})
}

// ScanLibrary starts a scan in the background. With ?wait=true the scan runs
// within the request and its stats are returned.
func (h *Handler) ScanLibrary(w http.ResponseWriter, r *http.Request) {
	var req ScanRequest
	if r.ContentLength > 0 && !decodeBody(w, r, &req) {
		return
	}

	path := req.Path
	if path == "" {
		path = h.ws.Root()
	}
	if path == "" {
		path = h.libraryPath
	}
	if path == "" {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "No library path configured")
		return
	}

	if h.ws.IsScanning() {
		writeJSON(w, http.StatusOK, ScanResponse{
			Status:  "in_progress",
			Message: "Scan already in progress",
		})
		return
	}

	if r.URL.Query().Get("wait") == "true" {
		stats, err := h.ws.Scan(r.Context(), path)
		if errors.Is(err, workspace.ErrScanInProgress) {
			writeJSON(w, http.StatusOK, ScanResponse{Status: "in_progress", Message: "Scan already in progress"})
			return
		}
		if err != nil {
			h.respondError(w, err, "scan failed")
			return
		}
		writeJSON(w, http.StatusOK, ScanResponse{
			Status:  "completed",
			Message: fmt.Sprintf("%d shots", stats.Shots),
			Stats:   &stats,
		})
		return
	}

	go func() {
		if _, err := h.ws.Scan(context.Background(), path); err != nil && !errors.Is(err, workspace.ErrScanInProgress) {
			h.logger.Error().Err(err).Str("path", path).Msg("scan failed")
		}
	}()

	writeJSON(w, http.StatusAccepted, ScanResponse{
		Status:  "started",
		Message: "Library scan started",
	})
}

// ListShots filters by ?tags=a,b, ?q= and ?playlist=. Parameters that are
// absent fall back to the stored selection.
func (h *Handler) ListShots(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()

	var q workspace.Query
	if params.Has("tags") {
		q.Tags = splitList(params.Get("tags"))
	}
	if params.Has("q") {
		text := params.Get("q")
		q.Text = &text
	}
	q.Playlist = params.Get("playlist")
	if q.Playlist != "" {
		if _, ok := h.ws.Playlists().Shots(q.Playlist); !ok {
			writeError(w, http.StatusNotFound, "PLAYLIST_NOT_FOUND", "Playlist not found")
			return
		}
	}

	shots := h.ws.View(q)
	writeJSON(w, http.StatusOK, ShotsResponse{Shots: shots, Total: h.ws.ShotCount()})
}

func (h *Handler) GetShot(w http.ResponseWriter, r *http.Request) {
	shot, ok := h.ws.Shot(urlParam(r, "id"))
	if !ok {
		writeError(w, http.StatusNotFound, "SHOT_NOT_FOUND", "Shot not found")
		return
	}
	writeJSON(w, http.StatusOK, shot)
}

func (h *Handler) SetCover(w http.ResponseWriter, r *http.Request) {
	var req CoverRequest
	if !decodeBody(w, r, &req) {
		return
	}

	shot, err := h.ws.SetCover(urlParam(r, "id"), req.Name)
	if err != nil {
		h.respondError(w, err, "failed to set cover")
		return
	}
	writeJSON(w, http.StatusOK, shot)
}

func (h *Handler) ClearCover(w http.ResponseWriter, r *http.Request) {
	shot, err := h.ws.ClearCover(urlParam(r, "id"))
	if err != nil {
		h.respondError(w, err, "failed to clear cover")
		return
	}
	writeJSON(w, http.StatusOK, shot)
}

func (h *Handler) AddTag(w http.ResponseWriter, r *http.Request) {
	var req TagRequest
	if !decodeBody(w, r, &req) {
		return
	}

	tags, err := h.ws.AddTag(r.Context(), urlParam(r, "id"), req.Tag)
	if err != nil {
		h.respondError(w, err, "failed to add tag")
		return
	}
	writeJSON(w, http.StatusOK, ShotTagsResponse{Tags: nonNil(tags)})
}

func (h *Handler) RemoveTag(w http.ResponseWriter, r *http.Request) {
	id := urlParam(r, "id")
	if err := h.ws.RemoveTag(r.Context(), id, urlParam(r, "tag")); err != nil {
		h.respondError(w, err, "failed to remove tag")
		return
	}
	writeJSON(w, http.StatusOK, ShotTagsResponse{Tags: nonNil(h.ws.Tags().Tags(id))})
}

// ToggleShot adds or removes the shot from the active playlist.
func (h *Handler) ToggleShot(w http.ResponseWriter, r *http.Request) {
	id := urlParam(r, "id")
	included, err := h.ws.ToggleInActive(r.Context(), id)
	if err != nil {
		h.respondError(w, err, "failed to toggle shot")
		return
	}
	writeJSON(w, http.StatusOK, ToggleResponse{
		Playlist: h.ws.Playlists().Active(),
		ShotID:   id,
		Included: included,
	})
}

func (h *Handler) ListTags(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, TagsResponse{Tags: h.ws.Tags().Snapshot()})
}

func (h *Handler) RenameTag(w http.ResponseWriter, r *http.Request) {
	var req RenameTagRequest
	if !decodeBody(w, r, &req) {
		return
	}

	changed, err := h.ws.RenameTag(r.Context(), req.Old, req.New)
	if err != nil {
		h.respondError(w, err, "failed to rename tag")
		return
	}
	writeJSON(w, http.StatusOK, RenameTagResponse{Changed: changed})
}

func (h *Handler) ExportTags(w http.ResponseWriter, r *http.Request) {
	doc, err := h.ws.ExportTags(exportSelection(r))
	if err != nil {
		h.respondError(w, err, "failed to export tags")
		return
	}
	writeDocument(w, doc)
}

func (h *Handler) ImportTags(w http.ResponseWriter, r *http.Request) {
	data, ok := readUpload(w, r)
	if !ok {
		return
	}

	report, err := h.ws.ImportTags(r.Context(), data)
	if err != nil {
		h.respondError(w, err, "tag import failed")
		return
	}
	writeJSON(w, http.StatusOK, ImportResponse{ImportReport: report, Status: "ok"})
}

func (h *Handler) ListPlaylists(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, PlaylistsResponse{
		Playlists: h.ws.Playlists().Snapshot(),
		Active:    h.ws.Playlists().Active(),
	})
}

func (h *Handler) CreatePlaylist(w http.ResponseWriter, r *http.Request) {
	var req NameRequest
	if !decodeBody(w, r, &req) {
		return
	}

	p, err := h.ws.CreatePlaylist(r.Context(), req.Name)
	if err != nil {
		h.respondError(w, err, "failed to create playlist")
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (h *Handler) RenamePlaylist(w http.ResponseWriter, r *http.Request) {
	var req NameRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if err := h.ws.RenamePlaylist(r.Context(), urlParam(r, "name"), req.Name); err != nil {
		h.respondError(w, err, "failed to rename playlist")
		return
	}
	h.ListPlaylists(w, r)
}

func (h *Handler) DeletePlaylist(w http.ResponseWriter, r *http.Request) {
	if err := h.ws.DeletePlaylist(r.Context(), urlParam(r, "name")); err != nil {
		h.respondError(w, err, "failed to delete playlist")
		return
	}
	h.ListPlaylists(w, r)
}

func (h *Handler) ActivatePlaylist(w http.ResponseWriter, r *http.Request) {
	if err := h.ws.SetActivePlaylist(urlParam(r, "name")); err != nil {
		h.respondError(w, err, "failed to activate playlist")
		return
	}
	h.GetState(w, r)
}

func (h *Handler) ExportPlaylists(w http.ResponseWriter, r *http.Request) {
	doc, err := h.ws.ExportPlaylists(exportSelection(r))
	if err != nil {
		h.respondError(w, err, "failed to export playlists")
		return
	}
	writeDocument(w, doc)
}

func (h *Handler) ImportPlaylists(w http.ResponseWriter, r *http.Request) {
	data, ok := readUpload(w, r)
	if !ok {
		return
	}

	report, err := h.ws.ImportPlaylists(r.Context(), data)
	if err != nil {
		h.respondError(w, err, "playlist import failed")
		return
	}
	writeJSON(w, http.StatusOK, ImportResponse{ImportReport: report, Status: "ok"})
}

func (h *Handler) GetState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, StateResponse{
		Selection: h.ws.Selection(),
		PanelOpen: h.ws.PanelOpen(),
	})
}

func (h *Handler) SetSelection(w http.ResponseWriter, r *http.Request) {
	var req SelectionRequest
	if !decodeBody(w, r, &req) {
		return
	}

	writeJSON(w, http.StatusOK, StateResponse{
		Selection: h.ws.SetSelection(req.Tags, req.Query),
		PanelOpen: h.ws.PanelOpen(),
	})
}

func (h *Handler) SetPanel(w http.ResponseWriter, r *http.Request) {
	var req PanelRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if err := h.ws.SetPanelOpen(req.Open); err != nil {
		h.respondError(w, err, "failed to save panel state")
		return
	}
	h.GetState(w, r)
}

func (h *Handler) Content(w http.ResponseWriter, r *http.Request) {
	h.streamer.ServeRef(w, r, urlParam(r, "ref"))
}

func (h *Handler) respondError(w http.ResponseWriter, err error, msg string) {
	status, code := errorStatus(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error().Err(err).Msg(msg)
	} else {
		h.logger.Debug().Err(err).Msg(msg)
	}
	writeError(w, status, code, err.Error())
}

// errorStatus maps domain errors onto an HTTP status and error code.
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, catalog.ErrEmptyTag):
		return http.StatusBadRequest, "EMPTY_TAG"
	case errors.Is(err, catalog.ErrTagLimit):
		return http.StatusBadRequest, "TAG_LIMIT"
	case errors.Is(err, catalog.ErrDuplicateTag):
		return http.StatusConflict, "DUPLICATE_TAG"
	case errors.Is(err, catalog.ErrEmptyName):
		return http.StatusBadRequest, "EMPTY_NAME"
	case errors.Is(err, catalog.ErrDuplicateName):
		return http.StatusConflict, "DUPLICATE_NAME"
	case errors.Is(err, catalog.ErrSameName):
		return http.StatusBadRequest, "SAME_NAME"
	case errors.Is(err, catalog.ErrInvalidImport):
		return http.StatusBadRequest, "INVALID_IMPORT"
	case errors.Is(err, media.ErrEmptyInput):
		return http.StatusBadRequest, "EMPTY_LIBRARY"
	case errors.Is(err, workspace.ErrNoActivePlaylist):
		return http.StatusConflict, "NO_ACTIVE_PLAYLIST"
	case errors.Is(err, workspace.ErrScanInProgress):
		return http.StatusConflict, "SCAN_IN_PROGRESS"
	case errors.Is(err, workspace.ErrNoLibrary):
		return http.StatusBadRequest, "BAD_REQUEST"
	case errors.Is(err, catalog.ErrNotFound), errors.Is(err, media.ErrNotFound):
		return http.StatusNotFound, "NOT_FOUND"
	case errors.Is(err, catalog.ErrRemote):
		return http.StatusBadGateway, "REMOTE_ERROR"
	default:
		return http.StatusInternalServerError, "INTERNAL_ERROR"
	}
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{
		Error: ErrorDetail{
			Code:    code,
			Message: message,
		},
	})
}

// writeDocument sends an export as a file download.
func writeDocument(w http.ResponseWriter, doc catalog.Document) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", doc.Filename))
	w.WriteHeader(http.StatusOK)
	w.Write(doc.Body)
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "Invalid request body")
		return false
	}
	return true
}

func readUpload(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxImportSize+1))
	if err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "Cannot read upload")
		return nil, false
	}
	if len(data) > maxImportSize {
		writeError(w, http.StatusRequestEntityTooLarge, "TOO_LARGE", "Import document too large")
		return nil, false
	}
	return data, true
}

// urlParam returns a decoded route parameter. chi matches on the raw path
// when the request path carries escapes such as %2F.
func urlParam(r *http.Request, key string) string {
	v := chi.URLParam(r, key)
	if r.URL.RawPath == "" {
		return v
	}
	if decoded, err := url.PathUnescape(v); err == nil {
		return decoded
	}
	return v
}

// exportSelection reads ?name=a&name=b or ?names=a,b.
func exportSelection(r *http.Request) []string {
	params := r.URL.Query()
	names := params["name"]
	if list := params.Get("names"); list != "" {
		names = append(names, splitList(list)...)
	}
	return names
}

func splitList(s string) []string {
	out := []string{}
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func nonNil(list []string) []string {
	if list == nil {
		return []string{}
	}
	return list
}
