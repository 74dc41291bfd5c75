package catalog

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
)

var errOffline = errors.New("connection refused")

type call struct {
	op   string
	args []string
}

// fakeTagRemote keeps its own copy of the mapping so tests can check what
// reached the remote.
type fakeTagRemote struct {
	data  map[string][]string
	calls []call
	fail  map[string]bool
}

func newFakeTagRemote(data map[string][]string) *fakeTagRemote {
	if data == nil {
		data = map[string][]string{}
	}
	return &fakeTagRemote{data: data, fail: map[string]bool{}}
}

func (f *fakeTagRemote) record(op string, args ...string) error {
	f.calls = append(f.calls, call{op: op, args: args})
	if f.fail[op] {
		return errOffline
	}
	return nil
}

func (f *fakeTagRemote) FetchAll(ctx context.Context) (map[string][]string, error) {
	if err := f.record("fetch"); err != nil {
		return nil, err
	}
	out := map[string][]string{}
	for k, v := range f.data {
		out[k] = slices.Clone(v)
	}
	return out, nil
}

func (f *fakeTagRemote) Add(ctx context.Context, shotID, tag string) ([]string, error) {
	if err := f.record("add", shotID, tag); err != nil {
		return nil, err
	}
	f.data[shotID] = append(f.data[shotID], tag)
	return slices.Clone(f.data[shotID]), nil
}

func (f *fakeTagRemote) Remove(ctx context.Context, shotID, tag string) ([]string, error) {
	if err := f.record("remove", shotID, tag); err != nil {
		return nil, err
	}
	f.data[shotID] = slices.DeleteFunc(f.data[shotID], func(t string) bool { return t == tag })
	return slices.Clone(f.data[shotID]), nil
}

func (f *fakeTagRemote) RenameGlobally(ctx context.Context, oldTag, newTag string) error {
	return f.record("rename", oldTag, newTag)
}

type fakePlaylistRemote struct {
	data  map[string][]string
	calls []call
	fail  map[string]bool
}

func newFakePlaylistRemote(data map[string][]string) *fakePlaylistRemote {
	if data == nil {
		data = map[string][]string{}
	}
	return &fakePlaylistRemote{data: data, fail: map[string]bool{}}
}

func (f *fakePlaylistRemote) record(op string, args ...string) error {
	f.calls = append(f.calls, call{op: op, args: args})
	if f.fail[op] {
		return errOffline
	}
	return nil
}

func (f *fakePlaylistRemote) playlist(name string) (Playlist, error) {
	ids, ok := f.data[name]
	if !ok {
		return Playlist{}, fmt.Errorf("playlist %q: %w", name, ErrNotFound)
	}
	ids = slices.Clone(ids)
	sort.Strings(ids)
	return Playlist{Name: name, ShotIDs: ids}, nil
}

func (f *fakePlaylistRemote) FetchAll(ctx context.Context) (map[string][]string, error) {
	if err := f.record("fetch"); err != nil {
		return nil, err
	}
	out := map[string][]string{}
	for k, v := range f.data {
		out[k] = slices.Clone(v)
	}
	return out, nil
}

func (f *fakePlaylistRemote) Create(ctx context.Context, name string) (Playlist, error) {
	if err := f.record("create", name); err != nil {
		return Playlist{}, err
	}
	f.data[name] = []string{}
	return f.playlist(name)
}

func (f *fakePlaylistRemote) Rename(ctx context.Context, name, newName string) (Playlist, error) {
	if err := f.record("rename", name, newName); err != nil {
		return Playlist{}, err
	}
	if _, err := f.playlist(name); err != nil {
		return Playlist{}, err
	}
	f.data[newName] = f.data[name]
	delete(f.data, name)
	return f.playlist(newName)
}

func (f *fakePlaylistRemote) Delete(ctx context.Context, name string) error {
	if err := f.record("delete", name); err != nil {
		return err
	}
	if _, err := f.playlist(name); err != nil {
		return err
	}
	delete(f.data, name)
	return nil
}

func (f *fakePlaylistRemote) AddShot(ctx context.Context, name, shotID string) (Playlist, error) {
	if err := f.record("add", name, shotID); err != nil {
		return Playlist{}, err
	}
	if _, err := f.playlist(name); err != nil {
		return Playlist{}, err
	}
	if !slices.Contains(f.data[name], shotID) {
		f.data[name] = append(f.data[name], shotID)
	}
	return f.playlist(name)
}

func (f *fakePlaylistRemote) RemoveShot(ctx context.Context, name, shotID string) (Playlist, error) {
	if err := f.record("remove", name, shotID); err != nil {
		return Playlist{}, err
	}
	if _, err := f.playlist(name); err != nil {
		return Playlist{}, err
	}
	f.data[name] = slices.DeleteFunc(f.data[name], func(id string) bool { return id == shotID })
	return f.playlist(name)
}

type memSink struct {
	saved []string
}

func (m *memSink) SaveActivePlaylist(name string) error {
	m.saved = append(m.saved, name)
	return nil
}
