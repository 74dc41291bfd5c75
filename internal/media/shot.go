package media

import (
	"errors"
	"io"
	"sync"
)

var (
	ErrEmptyInput = errors.New("media: no files to aggregate")
	ErrNotFound   = errors.New("media: not found")
)

// RawFile is one entry handed over by a directory source. Open is called
// lazily; media files are never read during aggregation, only notes are.
type RawFile interface {
	Name() string
	Open() (io.ReadCloser, error)
}

type NoteFormat string

const (
	NoteStructured NoteFormat = "structured"
	NotePlain      NoteFormat = "plain"
)

type CoverKind string

const (
	CoverImage CoverKind = "image"
	CoverVideo CoverKind = "video"
	CoverNone  CoverKind = "none"
)

type MediaFile struct {
	Name string `json:"name"`
	Ref  string `json:"ref"`
	Kind Kind   `json:"kind"`
}

type NoteFile struct {
	Name    string     `json:"name"`
	Content string     `json:"content"`
	Format  NoteFormat `json:"format"`
}

// Shot is every file sharing one basename.
type Shot struct {
	ID        string      `json:"id"`
	Images    []MediaFile `json:"images"`
	Videos    []MediaFile `json:"videos"`
	Notes     []NoteFile  `json:"notes"`
	Cover     string      `json:"cover,omitempty"`
	CoverName string      `json:"cover_name,omitempty"`
	CoverKind CoverKind   `json:"cover_kind"`
}

// Media returns images followed by videos.
func (s *Shot) Media() []MediaFile {
	all := make([]MediaFile, 0, len(s.Images)+len(s.Videos))
	all = append(all, s.Images...)
	return append(all, s.Videos...)
}

// NoteText joins every note content, newline separated.
func (s *Shot) NoteText() string {
	var n int
	for _, note := range s.Notes {
		n += len(note.Content) + 1
	}
	buf := make([]byte, 0, n)
	for i, note := range s.Notes {
		if i > 0 {
			buf = append(buf, '\n')
		}
		buf = append(buf, note.Content...)
	}
	return string(buf)
}

// Collection is the result of one scan. It owns the content references it
// registered and must be closed when it is replaced.
type Collection struct {
	Shots []*Shot

	refs   *ContentRefs
	owned  []string
	index  map[string]*Shot
	closed bool
	mu     sync.Mutex
}

func newCollection(shots []*Shot, refs *ContentRefs, owned []string) *Collection {
	c := &Collection{
		Shots: shots,
		refs:  refs,
		owned: owned,
		index: make(map[string]*Shot, len(shots)),
	}
	for _, shot := range shots {
		c.index[shot.ID] = shot
	}
	return c
}

// Shot looks a shot up by id.
func (c *Collection) Shot(id string) (*Shot, bool) {
	if c == nil {
		return nil, false
	}
	shot, ok := c.index[id]
	return shot, ok
}

// Has reports whether id is part of the collection.
func (c *Collection) Has(id string) bool {
	_, ok := c.Shot(id)
	return ok
}

func (c *Collection) Len() int {
	if c == nil {
		return 0
	}
	return len(c.Shots)
}

// Close revokes every content reference owned by the collection. Safe to
// call more than once.
func (c *Collection) Close() {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	if c.refs != nil {
		c.refs.Revoke(c.owned...)
	}
	c.owned = nil
}
