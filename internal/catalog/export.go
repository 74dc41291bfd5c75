package catalog

import (
	"encoding/json"
	"slices"
	"strings"
)

const (
	PlaylistsFilename = "playlists.json"
	TagsFilename      = "tags.json"
)

// Document is a ready-to-download export.
type Document struct {
	Filename string
	Body     []byte
}

// ExportPlaylists restricts the playlists to the selected names. Unknown
// names are left out.
func ExportPlaylists(playlists map[string][]string, selected []string) map[string][]string {
	out := make(map[string][]string, len(selected))
	for _, name := range selected {
		if ids, ok := playlists[name]; ok {
			out[name] = slices.Clone(ids)
		}
	}
	return out
}

// ExportTags maps every shot carrying at least one selected tag to its
// complete tag list, not only the selected tags.
func ExportTags(tags map[string][]string, selected []string) map[string][]string {
	out := make(map[string][]string)
	for id, shotTags := range tags {
		for _, tag := range shotTags {
			if slices.ContainsFunc(selected, func(s string) bool { return strings.EqualFold(s, tag) }) {
				out[id] = slices.Clone(shotTags)
				break
			}
		}
	}
	return out
}

// Encode renders a mapping as 2-space indented JSON. Keys come out sorted
// and nil lists are written as [].
func Encode(mapping map[string][]string) ([]byte, error) {
	clean := make(map[string][]string, len(mapping))
	for k, v := range mapping {
		if v == nil {
			v = []string{}
		}
		clean[k] = v
	}
	data, err := json.MarshalIndent(clean, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

func PlaylistsDocument(store *PlaylistStore, selected []string) (Document, error) {
	body, err := Encode(ExportPlaylists(store.Snapshot(), selected))
	if err != nil {
		return Document{}, err
	}
	return Document{Filename: PlaylistsFilename, Body: body}, nil
}

func TagsDocument(store *TagStore, selected []string) (Document, error) {
	body, err := Encode(ExportTags(store.Snapshot(), selected))
	if err != nil {
		return Document{}, err
	}
	return Document{Filename: TagsFilename, Body: body}, nil
}
