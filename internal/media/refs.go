package media

import (
	"sync"

	"github.com/google/uuid"
)

// ContentRefs hands out opaque tokens for file contents so they can be
// served without exposing paths. Tokens live until revoked.
type ContentRefs struct {
	mu       sync.RWMutex
	files    map[string]RawFile
	onRevoke func(ref string)
}

func NewContentRefs() *ContentRefs {
	return &ContentRefs{
		files: make(map[string]RawFile),
	}
}

// OnRevoke registers a hook invoked once per revoked token.
func (r *ContentRefs) OnRevoke(fn func(ref string)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onRevoke = fn
}

func (r *ContentRefs) Register(file RawFile) string {
	ref := uuid.NewString()

	r.mu.Lock()
	r.files[ref] = file
	r.mu.Unlock()

	return ref
}

func (r *ContentRefs) Resolve(ref string) (RawFile, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	file, ok := r.files[ref]
	return file, ok
}

func (r *ContentRefs) Revoke(refs ...string) {
	r.mu.Lock()
	hook := r.onRevoke
	for _, ref := range refs {
		delete(r.files, ref)
	}
	r.mu.Unlock()

	if hook != nil {
		for _, ref := range refs {
			hook(ref)
		}
	}
}

func (r *ContentRefs) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.files)
}
