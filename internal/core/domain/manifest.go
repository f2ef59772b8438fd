package domain

// ManifestSong is the compact per-song view included in the planner manifest.
type ManifestSong struct {
	Artist    string `json:"artist"`
	Title     string `json:"title"`
	TrackID   string `json:"track_id"`
	SubVibe   string `json:"sub_vibe"`
	Reasoning string `json:"reasoning,omitempty"`
}

// ManifestSubVibe pairs a sub-vibe summary with its catalog size.
type ManifestSubVibe struct {
	Name                 string             `json:"name"`
	Coordinates          Point              `json:"coordinates"`
	EmotionalComposition map[string]float64 `json:"emotional_composition"`
	Analysis             string             `json:"analysis"`
	SongCount            int                `json:"song_count"`
}

// PlaylistManifest is the bounded context payload for the composition step:
// the selected slice of the manifold plus its songs, truncated to the
// highest-confidence entries per sub-vibe so payload size stays bounded
// regardless of catalog size.
type PlaylistManifest struct {
	CentralVibes   map[string]Point          `json:"central_vibes"`
	SubVibes       []ManifestSubVibe         `json:"sub_vibes"`
	AvailableSongs map[string][]ManifestSong `json:"available_songs"`
}
