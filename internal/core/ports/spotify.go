package ports

import "context"

// TrackMetadata is per-track enrichment from the music catalog service.
type TrackMetadata struct {
	AlbumArt   string
	PreviewURL string
	AlbumName  string
}

// MetadataProvider resolves playable previews and album art for a batch of
// track ids. Implementations degrade per track: unresolved ids are simply
// absent from the result, never an error for the whole batch.
type MetadataProvider interface {
	TracksMetadata(ctx context.Context, trackIDs []string) (map[string]TrackMetadata, error)
}

// CreatePlaylistParams describes a playlist to create on the external
// platform.
type CreatePlaylistParams struct {
	Name        string
	Description string
	TrackURIs   []string
}

// CreatedPlaylist identifies the playlist created on the external platform.
type CreatedPlaylist struct {
	ID  string
	URL string
}

// PlaylistCreator creates a playlist on the external music platform. The call
// is not idempotent and must never be retried automatically.
type PlaylistCreator interface {
	CreatePlaylist(ctx context.Context, params CreatePlaylistParams) (CreatedPlaylist, error)
}
