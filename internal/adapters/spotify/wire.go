package spotify

// Wire types for the subset of the Spotify Web API the adapter touches.

type tracksResponse struct {
	Tracks []wireTrack `json:"tracks"`
}

type wireTrack struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	PreviewURL string    `json:"preview_url"`
	Album      wireAlbum `json:"album"`
}

type wireAlbum struct {
	Name   string      `json:"name"`
	Images []wireImage `json:"images"`
}

type wireImage struct {
	URL    string `json:"url"`
	Height int    `json:"height"`
	Width  int    `json:"width"`
}

type wireUser struct {
	ID string `json:"id"`
}

type createPlaylistRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Public      bool   `json:"public"`
}

type wirePlaylist struct {
	ID           string            `json:"id"`
	ExternalURLs map[string]string `json:"external_urls"`
}

type addTracksRequest struct {
	URIs []string `json:"uris"`
}
