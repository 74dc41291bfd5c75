package api

import (
	"shotboard/internal/cache"
	"shotboard/internal/catalog"
	"shotboard/internal/media"
	"shotboard/internal/storage"
	"shotboard/internal/workspace"
)

type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

type StatusResponse struct {
	Status string `json:"status"`
}

type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Store DTOs

type TagsResponse struct {
	Tags map[string][]string `json:"tags"`
}

type ShotTagsResponse struct {
	Tags []string `json:"tags"`
}

type TagRequest struct {
	Tag string `json:"tag"`
}

type RenameTagRequest struct {
	Old string `json:"old"`
	New string `json:"new"`
}

type PlaylistsResponse struct {
	Playlists map[string][]string `json:"playlists"`
	Active    string              `json:"active,omitempty"`
}

type NameRequest struct {
	Name string `json:"name"`
}

type ShotRequest struct {
	ShotID string `json:"shot_id"`
}

type StoreStatsResponse struct {
	Status string         `json:"status"`
	Stats  *storage.Stats `json:"stats"`
}

// Workspace DTOs

type ScanRequest struct {
	Path string `json:"path"`
}

type ScanResponse struct {
	Status  string           `json:"status"`
	Message string           `json:"message"`
	Stats   *media.ScanStats `json:"stats,omitempty"`
}

type LibraryResponse struct {
	Root     string      `json:"root"`
	Shots    int         `json:"shots"`
	Scanning bool        `json:"scanning"`
	Cache    cache.Stats `json:"cache"`
}

type ShotsResponse struct {
	Shots []workspace.ShotView `json:"shots"`
	Total int                  `json:"total"`
}

type CoverRequest struct {
	Name string `json:"name"`
}

type RenameTagResponse struct {
	Changed int `json:"changed"`
}

type ToggleResponse struct {
	Playlist string `json:"playlist"`
	ShotID   string `json:"shot_id"`
	Included bool   `json:"included"`
}

type ImportResponse struct {
	catalog.ImportReport
	Status string `json:"status"`
}

type SelectionRequest struct {
	Tags  []string `json:"tags"`
	Query string   `json:"query"`
}

type StateResponse struct {
	catalog.Selection
	PanelOpen bool `json:"panel_open"`
}

type PanelRequest struct {
	Open bool `json:"open"`
}
