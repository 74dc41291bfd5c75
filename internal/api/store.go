package api

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"shotboard/internal/storage"
)

// StoreHandler exposes the SQLite tag and playlist tables over HTTP. It is
// the remote side that remote.Client talks to.
type StoreHandler struct {
	storage   *storage.SQLiteStorage
	tags      *storage.TagRepository
	playlists *storage.PlaylistRepository
	logger    zerolog.Logger
}

func NewStoreHandler(store *storage.SQLiteStorage, logger zerolog.Logger) *StoreHandler {
	return &StoreHandler{
		storage:   store,
		tags:      store.Tags(),
		playlists: store.Playlists(),
		logger:    logger,
	}
}

// Routes mounts the store endpoints on r.
func (h *StoreHandler) Routes(r chi.Router) {
	r.Get("/health", h.Health)

	r.Get("/tags", h.ListTags)
	r.Post("/tag-rename", h.RenameTag)
	r.Get("/tags/{shotId}", h.ShotTags)
	r.Post("/tags/{shotId}", h.AddTag)
	r.Delete("/tags/{shotId}", h.RemoveTag)

	r.Get("/playlists", h.ListPlaylists)
	r.Post("/playlists", h.CreatePlaylist)
	r.Get("/playlists/{name}", h.GetPlaylist)
	r.Put("/playlists/{name}", h.RenamePlaylist)
	r.Delete("/playlists/{name}", h.DeletePlaylist)
	r.Post("/playlists/{name}/shots", h.AddShot)
	r.Delete("/playlists/{name}/shots/{shotId}", h.RemoveShot)
}

func (h *StoreHandler) Health(w http.ResponseWriter, r *http.Request) {
	stats, err := h.storage.Stats(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to read store stats")
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Database unavailable")
		return
	}
	writeJSON(w, http.StatusOK, StoreStatsResponse{Status: "ok", Stats: stats})
}

func (h *StoreHandler) ListTags(w http.ResponseWriter, r *http.Request) {
	tags, err := h.tags.FetchAll(r.Context())
	if err != nil {
		h.storeError(w, err, "failed to list tags")
		return
	}
	writeJSON(w, http.StatusOK, TagsResponse{Tags: tags})
}

func (h *StoreHandler) ShotTags(w http.ResponseWriter, r *http.Request) {
	tags, err := h.tags.ShotTags(r.Context(), urlParam(r, "shotId"))
	if err != nil {
		h.storeError(w, err, "failed to read shot tags")
		return
	}
	writeJSON(w, http.StatusOK, ShotTagsResponse{Tags: nonNil(tags)})
}

func (h *StoreHandler) AddTag(w http.ResponseWriter, r *http.Request) {
	var req TagRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Tag) == "" {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "Tag is required")
		return
	}

	tags, err := h.tags.Add(r.Context(), urlParam(r, "shotId"), req.Tag)
	if err != nil {
		h.storeError(w, err, "failed to add tag")
		return
	}
	writeJSON(w, http.StatusOK, ShotTagsResponse{Tags: nonNil(tags)})
}

func (h *StoreHandler) RemoveTag(w http.ResponseWriter, r *http.Request) {
	tag := r.URL.Query().Get("tag")
	if tag == "" {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "Tag is required")
		return
	}

	tags, err := h.tags.Remove(r.Context(), urlParam(r, "shotId"), tag)
	if err != nil {
		h.storeError(w, err, "failed to remove tag")
		return
	}
	writeJSON(w, http.StatusOK, ShotTagsResponse{Tags: nonNil(tags)})
}

func (h *StoreHandler) RenameTag(w http.ResponseWriter, r *http.Request) {
	var req RenameTagRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Old) == "" || strings.TrimSpace(req.New) == "" {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "Both old and new tag are required")
		return
	}

	if err := h.tags.RenameGlobally(r.Context(), req.Old, req.New); err != nil {
		h.storeError(w, err, "failed to rename tag")
		return
	}
	writeJSON(w, http.StatusOK, StatusResponse{Status: "ok"})
}

func (h *StoreHandler) ListPlaylists(w http.ResponseWriter, r *http.Request) {
	playlists, err := h.playlists.FetchAll(r.Context())
	if err != nil {
		h.storeError(w, err, "failed to list playlists")
		return
	}
	writeJSON(w, http.StatusOK, PlaylistsResponse{Playlists: playlists})
}

func (h *StoreHandler) GetPlaylist(w http.ResponseWriter, r *http.Request) {
	p, err := h.playlists.Get(r.Context(), urlParam(r, "name"))
	if err != nil {
		h.storeError(w, err, "failed to get playlist")
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *StoreHandler) CreatePlaylist(w http.ResponseWriter, r *http.Request) {
	var req NameRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "Name is required")
		return
	}

	p, err := h.playlists.Create(r.Context(), req.Name)
	if err != nil {
		h.storeError(w, err, "failed to create playlist")
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (h *StoreHandler) RenamePlaylist(w http.ResponseWriter, r *http.Request) {
	var req NameRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "Name is required")
		return
	}

	p, err := h.playlists.Rename(r.Context(), urlParam(r, "name"), req.Name)
	if err != nil {
		h.storeError(w, err, "failed to rename playlist")
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *StoreHandler) DeletePlaylist(w http.ResponseWriter, r *http.Request) {
	if err := h.playlists.Delete(r.Context(), urlParam(r, "name")); err != nil {
		h.storeError(w, err, "failed to delete playlist")
		return
	}
	writeJSON(w, http.StatusOK, StatusResponse{Status: "ok"})
}

func (h *StoreHandler) AddShot(w http.ResponseWriter, r *http.Request) {
	var req ShotRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.ShotID == "" {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "shot_id is required")
		return
	}

	p, err := h.playlists.AddShot(r.Context(), urlParam(r, "name"), req.ShotID)
	if err != nil {
		h.storeError(w, err, "failed to add shot to playlist")
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *StoreHandler) RemoveShot(w http.ResponseWriter, r *http.Request) {
	p, err := h.playlists.RemoveShot(r.Context(), urlParam(r, "name"), urlParam(r, "shotId"))
	if err != nil {
		h.storeError(w, err, "failed to remove shot from playlist")
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *StoreHandler) storeError(w http.ResponseWriter, err error, msg string) {
	status, code := errorStatus(err)
	switch code {
	case "NOT_FOUND":
		code = "PLAYLIST_NOT_FOUND"
	case "DUPLICATE_NAME":
		code = "PLAYLIST_EXISTS"
	}
	if status >= http.StatusInternalServerError {
		h.logger.Error().Err(err).Msg(msg)
	}
	writeError(w, status, code, err.Error())
}
