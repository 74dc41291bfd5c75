package media

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeOverrideStore struct {
	saved map[string]string
	err   error
	calls int
}

func (s *fakeOverrideStore) SaveCoverOverrides(o map[string]string) error {
	s.calls++
	if s.err != nil {
		return s.err
	}
	s.saved = o
	return nil
}

func aggregate(t *testing.T, names ...string) *Collection {
	t.Helper()
	agg, _ := newTestAggregator()
	coll, err := agg.Aggregate(context.Background(), files(names...))
	require.NoError(t, err)
	return coll
}

func TestCoverResolver_Defaults(t *testing.T) {
	coll := aggregate(t, "a.mp4", "a.png", "a.jpg", "v.webm", "v.mp4", "n.txt")
	NewCoverResolver(nil, nil, zerolog.Nop()).ResolveAll(coll)

	a, _ := coll.Shot("a")
	assert.Equal(t, "a.jpg", a.CoverName)
	assert.Equal(t, CoverImage, a.CoverKind)
	assert.Equal(t, a.Images[0].Ref, a.Cover)

	v, _ := coll.Shot("v")
	assert.Equal(t, "v.mp4", v.CoverName)
	assert.Equal(t, CoverVideo, v.CoverKind)

	n, _ := coll.Shot("n")
	assert.Equal(t, CoverNone, n.CoverKind)
	assert.Empty(t, n.CoverName)
}

func TestCoverResolver_Override(t *testing.T) {
	coll := aggregate(t, "a.jpg", "a.png", "a.mp4", "b.png")
	r := NewCoverResolver(map[string]string{
		"a": "a.mp4",
		"b": "b-gone.png",
	}, nil, zerolog.Nop())
	r.ResolveAll(coll)

	a, _ := coll.Shot("a")
	assert.Equal(t, "a.mp4", a.CoverName)
	assert.Equal(t, CoverVideo, a.CoverKind)

	b, _ := coll.Shot("b")
	assert.Equal(t, "b.png", b.CoverName, "stale override falls back to first image")
	assert.Equal(t, CoverImage, b.CoverKind)
}

func TestCoverResolver_SetCover(t *testing.T) {
	coll := aggregate(t, "a.jpg", "a.png", "a.mp4")
	store := &fakeOverrideStore{}
	r := NewCoverResolver(nil, store, zerolog.Nop())
	r.ResolveAll(coll)

	require.NoError(t, r.SetCover(coll, "a", "a.png"))
	a, _ := coll.Shot("a")
	assert.Equal(t, "a.png", a.CoverName)
	assert.Equal(t, CoverImage, a.CoverKind)
	assert.Equal(t, map[string]string{"a": "a.png"}, store.saved)

	// survives a rescan
	next := aggregate(t, "a.jpg", "a.png", "a.mp4")
	r.ResolveAll(next)
	a2, _ := next.Shot("a")
	assert.Equal(t, "a.png", a2.CoverName)

	require.NoError(t, r.ClearCover(next, "a"))
	assert.Equal(t, "a.jpg", a2.CoverName)
	assert.Empty(t, store.saved)
}

func TestCoverResolver_SetCoverRejectsUnknown(t *testing.T) {
	coll := aggregate(t, "a.jpg", "a.txt")
	store := &fakeOverrideStore{}
	r := NewCoverResolver(nil, store, zerolog.Nop())
	r.ResolveAll(coll)

	assert.ErrorIs(t, r.SetCover(coll, "a", "a.txt"), ErrNotFound)
	assert.ErrorIs(t, r.SetCover(coll, "missing", "a.jpg"), ErrNotFound)
	assert.Zero(t, store.calls)
	assert.Empty(t, r.Overrides())
}

func TestCoverResolver_PersistFailureLeavesShot(t *testing.T) {
	coll := aggregate(t, "a.jpg", "a.png")
	store := &fakeOverrideStore{err: errors.New("disk full")}
	r := NewCoverResolver(nil, store, zerolog.Nop())
	r.ResolveAll(coll)

	assert.Error(t, r.SetCover(coll, "a", "a.png"))
	a, _ := coll.Shot("a")
	assert.Equal(t, "a.jpg", a.CoverName)
	assert.Empty(t, r.Overrides())
}
