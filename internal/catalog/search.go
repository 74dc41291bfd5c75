package catalog

import (
	"strings"

	"shotboard/internal/media"
)

// TagLookup is the read side of TagStore needed for filtering.
type TagLookup interface {
	Tags(shotID string) []string
}

// Selection is the transient view state of the user.
type Selection struct {
	ActivePlaylist string   `json:"active_playlist,omitempty"`
	TagFilters     []string `json:"tag_filters"`
	Query          string   `json:"query"`
}

// Filter keeps shots carrying every tag in filters (AND) and, when query is
// not blank, matching it case-insensitively in the id, the notes or a tag.
// Input order is preserved.
func Filter(shots []*media.Shot, tags TagLookup, filters []string, query string) []*media.Shot {
	query = strings.ToLower(strings.TrimSpace(query))

	out := make([]*media.Shot, 0, len(shots))
	for _, shot := range shots {
		shotTags := tags.Tags(shot.ID)
		if !hasAll(shotTags, filters) {
			continue
		}
		if query != "" && !matches(shot, shotTags, query) {
			continue
		}
		out = append(out, shot)
	}
	return out
}

func hasAll(tags, filters []string) bool {
	for _, f := range filters {
		if indexFold(tags, f) < 0 {
			return false
		}
	}
	return true
}

func matches(shot *media.Shot, tags []string, query string) bool {
	if strings.Contains(strings.ToLower(shot.ID), query) {
		return true
	}
	if strings.Contains(strings.ToLower(shot.NoteText()), query) {
		return true
	}
	for _, tag := range tags {
		if strings.Contains(strings.ToLower(tag), query) {
			return true
		}
	}
	return false
}
