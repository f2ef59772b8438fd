package services

import (
	"context"
	"fmt"

	"github.com/ewilliams-labs/tapestry/internal/core/domain"
	"github.com/ewilliams-labs/tapestry/internal/core/ports"
	"github.com/ewilliams-labs/tapestry/internal/logger"
)

const (
	// maxSongsPerSubVibe bounds the manifest payload regardless of catalog
	// size; only the highest-confidence entries per sub-vibe are included.
	maxSongsPerSubVibe = 15
	// maxPlaylistSongs caps the final playlist length.
	maxPlaylistSongs = 12
)

// PreviewQueue receives fire-and-forget preview-analysis work for songs that
// came back from generation with a playable preview.
type PreviewQueue interface {
	Submit(subVibe, trackID, previewURL string)
}

// Compositor turns a journey plus selected sub-vibes into the final ranked
// playlist: it builds the bounded manifest, invokes the planner, validates
// and repairs the output, and merges curated with extrapolated songs.
type Compositor struct {
	selector *Selector
	planner  ports.Planner
	store    ports.TapestryStore
	manifold *domain.Manifold
	enricher ports.MetadataProvider
	previews PreviewQueue
	log      *logger.Logger
}

// NewCompositor constructs a Compositor. enricher and previews may be nil,
// in which case enrichment and preview analysis are skipped.
func NewCompositor(
	selector *Selector,
	planner ports.Planner,
	store ports.TapestryStore,
	manifold *domain.Manifold,
	enricher ports.MetadataProvider,
	previews PreviewQueue,
	log *logger.Logger,
) *Compositor {
	return &Compositor{
		selector: selector,
		planner:  planner,
		store:    store,
		manifold: manifold,
		enricher: enricher,
		previews: previews,
		log:      log,
	}
}

// Generate produces a playlist for the journey. Planner failures, malformed
// replies, and missing backing data all recover locally via the fixed sample
// playlist, so the caller always receives a non-empty, well-formed response.
// The only error returned is request-context cancellation.
func (c *Compositor) Generate(ctx context.Context, journey domain.Journey) (domain.PlaylistResponse, error) {
	if err := ctx.Err(); err != nil {
		return domain.PlaylistResponse{}, err
	}

	if c.manifold == nil || c.store == nil {
		c.log.Warn("tapestry data unavailable, serving sample playlist")
		return c.samplePlaylist(journey), nil
	}

	subVibes, err := c.selector.Relevant(ctx, journey)
	if err != nil {
		if ctx.Err() != nil {
			return domain.PlaylistResponse{}, ctx.Err()
		}
		c.log.Warn("sub-vibe selection failed, serving sample playlist", "error", err)
		return c.samplePlaylist(journey), nil
	}

	songsBySubVibe, err := c.store.SongsFor(ctx, subVibes)
	if err != nil {
		c.log.Warn("catalog read failed, serving sample playlist", "error", err)
		return c.samplePlaylist(journey), nil
	}

	manifest := c.buildManifest(subVibes, songsBySubVibe)

	result, err := c.planner.ComposeJourney(ctx, journey, manifest)
	if err != nil {
		if ctx.Err() != nil {
			return domain.PlaylistResponse{}, ctx.Err()
		}
		c.log.Warn("planner composition failed, serving sample playlist", "error", err)
		return c.samplePlaylist(journey), nil
	}

	songs := c.validateSongs(result.Songs)
	songs = domain.DedupeSongs(songs)
	if len(songs) > maxPlaylistSongs {
		songs = songs[:maxPlaylistSongs]
	}
	if len(songs) == 0 {
		c.log.Warn("planner returned no usable songs, serving sample playlist")
		return c.samplePlaylist(journey), nil
	}

	songs = c.enrich(ctx, songs)

	return domain.PlaylistResponse{
		Journey:      journey,
		Explanation:  result.Explanation,
		EmotionalArc: result.EmotionalArc,
		Songs:        songs,
	}, nil
}

// buildManifest assembles the bounded context payload: coordinates,
// composition and analysis for each selected sub-vibe plus its songs
// truncated to the highest-confidence N.
func (c *Compositor) buildManifest(subVibes []string, songsBySubVibe map[string][]domain.CatalogSong) domain.PlaylistManifest {
	manifest := domain.PlaylistManifest{
		CentralVibes:   c.manifold.CentralVibes,
		AvailableSongs: make(map[string][]domain.ManifestSong, len(subVibes)),
	}

	for _, name := range subVibes {
		sv, ok := c.manifold.SubVibes[name]
		if !ok {
			continue
		}
		songs := songsBySubVibe[name]
		manifest.SubVibes = append(manifest.SubVibes, domain.ManifestSubVibe{
			Name:                 name,
			Coordinates:          sv.Coordinates,
			EmotionalComposition: sv.EmotionalComposition,
			Analysis:             sv.Analysis,
			SongCount:            len(songs),
		})

		top := songs
		if len(top) > maxSongsPerSubVibe {
			top = top[:maxSongsPerSubVibe]
		}
		entries := make([]domain.ManifestSong, 0, len(top))
		for _, song := range top {
			entries = append(entries, domain.ManifestSong{
				Artist:    song.Artist,
				Title:     song.Title,
				TrackID:   domain.TrackURI(song.TrackID),
				SubVibe:   name,
				Reasoning: song.Justification,
			})
		}
		manifest.AvailableSongs[name] = entries
	}
	return manifest
}

// validateSongs drops malformed planner output rather than propagating
// partial data: extrapolated entries must carry their manifold placement.
func (c *Compositor) validateSongs(songs []domain.PlaylistSong) []domain.PlaylistSong {
	out := make([]domain.PlaylistSong, 0, len(songs))
	for _, s := range songs {
		if err := s.Validate(); err != nil {
			c.log.Warn("dropping malformed planner song",
				"artist", s.Artist, "title", s.Title, "error", err)
			continue
		}
		out = append(out, s)
	}
	return out
}

// enrich attaches album art, preview URLs, and album names best-effort and
// queues preview analysis for catalog songs. Enrichment failures degrade per
// track, never the whole response.
func (c *Compositor) enrich(ctx context.Context, songs []domain.PlaylistSong) []domain.PlaylistSong {
	if c.enricher == nil {
		return songs
	}

	ids := make([]string, 0, len(songs))
	for _, s := range songs {
		ids = append(ids, domain.NormalizeTrackID(s.TrackID))
	}

	metadata, err := c.enricher.TracksMetadata(ctx, ids)
	if err != nil {
		c.log.Warn("metadata enrichment failed", "error", err)
		return songs
	}

	for i := range songs {
		meta, ok := metadata[domain.NormalizeTrackID(songs[i].TrackID)]
		if !ok {
			continue
		}
		songs[i].AlbumArt = meta.AlbumArt
		songs[i].PreviewURL = meta.PreviewURL
		songs[i].AlbumName = meta.AlbumName

		if c.previews != nil && !songs[i].Extrapolated && meta.PreviewURL != "" {
			c.previews.Submit(songs[i].SubVibe, songs[i].TrackID, meta.PreviewURL)
		}
	}
	return songs
}

// samplePlaylist is the fixed fallback served whenever generation cannot
// complete. It is clearly distinguishable server-side but fulfils the
// user-facing contract of always returning a well-formed playlist.
func (c *Compositor) samplePlaylist(journey domain.Journey) domain.PlaylistResponse {
	songs := []domain.PlaylistSong{
		{
			TrackID:    "spotify:track:31CYUJj5f9lbQ0Qqm9PzK5",
			Artist:     "Julee Cruise",
			Title:      "Falling",
			SubVibe:    "Night - Contemplative",
			MetaVibe:   "Night",
			Confidence: 0.92,
			Context:    "Recommended for late-night walks after a tough day",
			Reasoning:  "Captures the contemplative, floating quality of nighttime introspection",
		},
		{
			TrackID:    "spotify:track:6MWnAibO1HAEhlrHoH1kNi",
			Artist:     "Cocteau Twins",
			Title:      "Lazy Calm",
			SubVibe:    "Chill - Lofi",
			MetaVibe:   "Chill",
			Confidence: 0.88,
			Context:    "Creates dreamy, hazy ambient thought space",
			Reasoning:  "Provides an emotional bridge through ambient calm, maintaining reflective mood",
		},
		{
			TrackID:    "spotify:track:5KX2DSPC6aCA0pdDidTmBC",
			Artist:     "Portishead",
			Title:      "The Rip",
			SubVibe:    "Sad - Melancholic",
			MetaVibe:   "Sad",
			Confidence: 0.90,
			Context:    "Deep, moody reflection without being overwhelming",
			Reasoning:  "Embodies gentle melancholy suitable for contemplative moments",
		},
	}

	return domain.PlaylistResponse{
		Journey: journey,
		Explanation: fmt.Sprintf(
			"Based on your journey from %q to %q, here is a starter playlist while the full Tapestry is unavailable.",
			journey.Now, journey.Going),
		EmotionalArc: "Gentle progression through contemplative night vibes, ambient calm, and melancholic reflection.",
		Songs:        songs,
	}
}
