package domain

import (
	"errors"
	"sort"
	"time"
)

// SourceUserValidated tags catalog entries created or boosted through the
// feedback loop, as opposed to curated entries shipped with the tapestry.
const SourceUserValidated = "user_validated"

// CatalogSong is a single tapestry entry: a track filed under a sub-vibe with
// a confidence score and provenance. The same track may legitimately appear
// under multiple sub-vibes; boost logic is scoped per (track, sub-vibe) pair.
type CatalogSong struct {
	Artist               string             `json:"artist"`
	Title                string             `json:"title"`
	TrackID              string             `json:"track_id"`
	SubVibe              string             `json:"sub_vibe"`
	MappingConfidence    float64            `json:"mapping_confidence"`
	Justification        string             `json:"justification,omitempty"`
	FullContext          string             `json:"full_context,omitempty"`
	Source               string             `json:"source,omitempty"`
	ValidationCount      int                `json:"validation_count,omitempty"`
	LastValidated        string             `json:"last_validated,omitempty"`
	ManifoldX            *float64           `json:"manifold_x,omitempty"`
	ManifoldY            *float64           `json:"manifold_y,omitempty"`
	EmotionalComposition map[string]float64 `json:"emotional_composition,omitempty"`
	PreviewEnergy        *float64           `json:"preview_energy,omitempty"`
}

// PlaylistSong is the output unit of playlist generation: a catalog-shaped
// song plus planner confidence and, for extrapolated entries, the manifold
// placement that justifies them.
type PlaylistSong struct {
	TrackID              string             `json:"track_id"`
	Artist               string             `json:"artist"`
	Title                string             `json:"title"`
	SubVibe              string             `json:"sub_vibe"`
	MetaVibe             string             `json:"meta_vibe,omitempty"`
	Confidence           float64            `json:"confidence"`
	Context              string             `json:"context,omitempty"`
	Reasoning            string             `json:"reasoning,omitempty"`
	Extrapolated         bool               `json:"extrapolated,omitempty"`
	ManifoldX            *float64           `json:"manifold_x,omitempty"`
	ManifoldY            *float64           `json:"manifold_y,omitempty"`
	EmotionalComposition map[string]float64 `json:"emotional_composition,omitempty"`
	NearbyTapestrySongs  []string           `json:"nearby_tapestry_songs,omitempty"`

	// Enrichment fields, attached best-effort after generation.
	AlbumArt   string `json:"album_art,omitempty"`
	PreviewURL string `json:"preview_url,omitempty"`
	AlbumName  string `json:"album_name,omitempty"`
}

// ErrIncompleteExtrapolation flags an extrapolated song missing its required
// manifold placement fields.
var ErrIncompleteExtrapolation = errors.New("extrapolated song missing manifold fields")

// Validate checks the structural invariants of a planner-produced song.
// Extrapolated songs must carry coordinates, a composition, and nearby
// catalog anchors; for catalog songs those fields are optional.
func (s PlaylistSong) Validate() error {
	if s.TrackID == "" || s.Artist == "" || s.Title == "" {
		return errors.New("song missing track id, artist, or title")
	}
	if !s.Extrapolated {
		return nil
	}
	if s.ManifoldX == nil || s.ManifoldY == nil ||
		len(s.EmotionalComposition) == 0 || len(s.NearbyTapestrySongs) == 0 {
		return ErrIncompleteExtrapolation
	}
	return nil
}

// DedupeSongs removes songs whose normalized track identifier was already
// seen, preserving first-occurrence order.
func DedupeSongs(songs []PlaylistSong) []PlaylistSong {
	seen := make(map[string]struct{}, len(songs))
	out := make([]PlaylistSong, 0, len(songs))
	for _, s := range songs {
		key := NormalizeTrackID(s.TrackID)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, s)
	}
	return out
}

// SortByConfidence orders catalog songs by descending mapping confidence with
// ties broken by insertion order. Downstream truncation ("top N per
// sub-vibe") depends on this ordering.
func SortByConfidence(songs []CatalogSong) {
	sort.SliceStable(songs, func(i, j int) bool {
		return songs[i].MappingConfidence > songs[j].MappingConfidence
	})
}

// PlaylistResponse is the user-facing result of a generate-playlist request.
// The songs list is always non-empty; emotionalArc is narrative text and must
// not leak raw manifold coordinates.
type PlaylistResponse struct {
	Journey      Journey        `json:"journey"`
	Explanation  string         `json:"explanation"`
	EmotionalArc string         `json:"emotionalArc"`
	Songs        []PlaylistSong `json:"songs"`
}

// FeedbackRecord is a user vote on a song, carrying the journey that produced
// the recommendation and a server-assigned timestamp.
type FeedbackRecord struct {
	Song        PlaylistSong `json:"song"`
	UserJourney Journey      `json:"user_journey"`
	ValidatedAt time.Time    `json:"validated_at"`
	Source      string       `json:"source"`
}

// NewFeedbackRecord stamps a vote with the server clock and the fixed
// user-validated provenance tag.
func NewFeedbackRecord(song PlaylistSong, journey Journey, at time.Time) FeedbackRecord {
	return FeedbackRecord{
		Song:        song,
		UserJourney: journey,
		ValidatedAt: at.UTC(),
		Source:      SourceUserValidated,
	}
}

// DownvoteEntry is one row of the append-only downvote ledger, kept for later
// review. Duplicate normalized track ids are suppressed at write time.
type DownvoteEntry struct {
	ID                   string             `json:"id"`
	Artist               string             `json:"artist"`
	Title                string             `json:"title"`
	TrackID              string             `json:"track_id"`
	SubVibe              string             `json:"sub_vibe"`
	MetaVibe             string             `json:"meta_vibe,omitempty"`
	Confidence           float64            `json:"confidence"`
	UserJourney          Journey            `json:"user_journey"`
	Reason               string             `json:"reason"`
	DownvotedAt          string             `json:"downvoted_at"`
	ManifoldX            *float64           `json:"manifold_x,omitempty"`
	ManifoldY            *float64           `json:"manifold_y,omitempty"`
	EmotionalComposition map[string]float64 `json:"emotional_composition,omitempty"`
	Extrapolated         bool               `json:"extrapolated,omitempty"`
}

// TapestryStats is the derived, cached view of catalog size. It is recomputed
// on demand, cached with a short TTL, and invalidated on any store mutation.
type TapestryStats struct {
	TotalTracks    int  `json:"total_tracks"`
	TotalSubVibes  int  `json:"total_sub_vibes"`
	TotalMetaVibes int  `json:"total_meta_vibes"`
	HumanSourced   bool `json:"human_sourced"`
}
