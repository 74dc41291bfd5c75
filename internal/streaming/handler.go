package streaming

import (
	"bytes"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog"
	"shotboard/internal/cache"
	"shotboard/internal/media"
)

// Handler serves the bytes behind content references. Small items are kept
// in an LRU cache; larger disk files are streamed with range support.
type Handler struct {
	refs        *media.ContentRefs
	cache       *cache.LRUCache
	maxItemSize int64
	logger      zerolog.Logger
}

// NewHandler wires the cache to the registry so revoked refs are evicted.
func NewHandler(refs *media.ContentRefs, c *cache.LRUCache, maxItemSize int64, logger zerolog.Logger) *Handler {
	if c != nil {
		refs.OnRevoke(c.Delete)
	}
	return &Handler{
		refs:        refs,
		cache:       c,
		maxItemSize: maxItemSize,
		logger:      logger.With().Str("component", "content").Logger(),
	}
}

func (h *Handler) CacheStats() cache.Stats {
	if h.cache == nil {
		return cache.Stats{}
	}
	return h.cache.Stats()
}

func (h *Handler) ServeRef(w http.ResponseWriter, r *http.Request, ref string) {
	file, ok := h.refs.Resolve(ref)
	if !ok {
		http.Error(w, "Content not found", http.StatusNotFound)
		return
	}

	if h.cache != nil {
		if data, contentType, ok := h.cache.Get(ref); ok {
			serveBytes(w, r, file.Name(), contentType, data)
			return
		}
	}

	contentType := media.GetContentType(file.Name())

	if disk, ok := file.(*media.DiskFile); ok && (h.cache == nil || disk.Size() > h.maxItemSize) {
		h.serveDisk(w, r, disk, contentType)
		return
	}

	rc, err := file.Open()
	if err != nil {
		h.logger.Warn().Err(err).Str("name", file.Name()).Msg("failed to open content")
		http.Error(w, "Content not found", http.StatusNotFound)
		return
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		h.logger.Error().Err(err).Str("name", file.Name()).Msg("failed to read content")
		http.Error(w, "Cannot read content", http.StatusInternalServerError)
		return
	}

	if h.cache != nil && int64(len(data)) <= h.maxItemSize {
		h.cache.Put(ref, contentType, data)
		// A revoke that ran while the file was read has already fired its
		// eviction hook.
		if _, live := h.refs.Resolve(ref); !live {
			h.cache.Delete(ref)
		}
	}
	serveBytes(w, r, file.Name(), contentType, data)
}

func (h *Handler) serveDisk(w http.ResponseWriter, r *http.Request, disk *media.DiskFile, contentType string) {
	f, err := os.Open(disk.Path())
	if err != nil {
		http.Error(w, "Content not found", http.StatusNotFound)
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Accept-Ranges", "bytes")
	http.ServeContent(w, r, disk.Name(), disk.ModTime(), f)
}

func serveBytes(w http.ResponseWriter, r *http.Request, name, contentType string, data []byte) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Accept-Ranges", "bytes")
	http.ServeContent(w, r, name, time.Time{}, bytes.NewReader(data))
}
