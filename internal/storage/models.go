package storage

// Stats summarizes the store contents.
type Stats struct {
	TaggedShots int `json:"tagged_shots"`
	Tags        int `json:"tags"`
	Playlists   int `json:"playlists"`
}
