package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/ewilliams-labs/tapestry/internal/core/domain"
	"github.com/ewilliams-labs/tapestry/internal/core/ports"
	"github.com/ewilliams-labs/tapestry/internal/logger"
)

type mockStore struct {
	songs    map[string][]domain.CatalogSong
	songsErr error

	upsertBoosted bool
	upsertErr     error
	upserts       []domain.FeedbackRecord

	downvoteErr error
	downvotes   []domain.FeedbackRecord

	stats    domain.TapestryStats
	statsErr error
}

func (m *mockStore) SongsFor(ctx context.Context, subVibes []string) (map[string][]domain.CatalogSong, error) {
	if m.songsErr != nil {
		return nil, m.songsErr
	}
	return m.songs, nil
}

func (m *mockStore) UpsertValidated(ctx context.Context, rec domain.FeedbackRecord) (bool, error) {
	m.upserts = append(m.upserts, rec)
	return m.upsertBoosted, m.upsertErr
}

func (m *mockStore) RecordDownvote(ctx context.Context, rec domain.FeedbackRecord) error {
	m.downvotes = append(m.downvotes, rec)
	return m.downvoteErr
}

func (m *mockStore) Stats(ctx context.Context) (domain.TapestryStats, error) {
	return m.stats, m.statsErr
}

func (m *mockStore) UpdatePreviewEnergy(ctx context.Context, subVibe, trackID string, energy float64) error {
	return nil
}

func (m *mockStore) Close() error { return nil }

type mockEnricher struct {
	metadata map[string]ports.TrackMetadata
	err      error
}

func (m *mockEnricher) TracksMetadata(ctx context.Context, ids []string) (map[string]ports.TrackMetadata, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.metadata, nil
}

type mockQueue struct {
	submitted []string
}

func (m *mockQueue) Submit(subVibe, trackID, previewURL string) {
	m.submitted = append(m.submitted, trackID)
}

func plannedSong(id string) domain.PlaylistSong {
	return domain.PlaylistSong{
		TrackID: id, Artist: "Artist " + id, Title: "Title " + id,
		SubVibe: "Calm - Resolved", Confidence: 0.9,
	}
}

func newTestCompositor(planner ports.Planner, store ports.TapestryStore, enricher ports.MetadataProvider, queue PreviewQueue) *Compositor {
	manifold := selectorManifold()
	selector := NewSelector(planner, manifold, logger.NewNop())
	return NewCompositor(selector, planner, store, manifold, enricher, queue, logger.NewNop())
}

func TestGenerateHappyPath(t *testing.T) {
	planner := &mockPlanner{
		selectNames: []string{"Calm - Resolved"},
		composeResult: ports.PlanResult{
			Explanation:  "a gentle walk",
			EmotionalArc: "anxiety easing into calm",
			Songs:        []domain.PlaylistSong{plannedSong("a"), plannedSong("b")},
		},
	}
	store := &mockStore{songs: map[string][]domain.CatalogSong{
		"Calm - Resolved": {{TrackID: "a", Artist: "Artist a", Title: "Title a", MappingConfidence: 0.9}},
	}}

	c := newTestCompositor(planner, store, nil, nil)
	got, err := c.Generate(context.Background(), testJourney())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Explanation != "a gentle walk" || len(got.Songs) != 2 {
		t.Errorf("unexpected response: %+v", got)
	}
	if planner.composeCalls != 1 {
		t.Errorf("expected 1 compose call, got %d", planner.composeCalls)
	}
}

func TestGenerateDeduplicatesAndCaps(t *testing.T) {
	var songs []domain.PlaylistSong
	songs = append(songs, plannedSong("dup"))
	songs = append(songs, domain.PlaylistSong{
		TrackID: "spotify:track:dup", Artist: "Artist dup", Title: "Other Title",
		SubVibe: "Calm - Resolved", Confidence: 0.8,
	})
	for i := 0; i < 15; i++ {
		songs = append(songs, plannedSong(string(rune('a'+i))))
	}

	planner := &mockPlanner{
		selectNames:   []string{"Calm - Resolved"},
		composeResult: ports.PlanResult{Explanation: "x", EmotionalArc: "y", Songs: songs},
	}
	c := newTestCompositor(planner, &mockStore{songs: map[string][]domain.CatalogSong{}}, nil, nil)

	got, err := c.Generate(context.Background(), testJourney())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got.Songs) != 12 {
		t.Fatalf("expected cap at 12 songs, got %d", len(got.Songs))
	}
	seen := map[string]bool{}
	for _, s := range got.Songs {
		key := domain.NormalizeTrackID(s.TrackID)
		if seen[key] {
			t.Errorf("duplicate normalized track id %q", key)
		}
		seen[key] = true
	}
}

func TestGenerateDropsIncompleteExtrapolations(t *testing.T) {
	broken := plannedSong("x")
	broken.Extrapolated = true // no coordinates, no anchors

	planner := &mockPlanner{
		selectNames: []string{"Calm - Resolved"},
		composeResult: ports.PlanResult{
			Explanation: "x", EmotionalArc: "y",
			Songs: []domain.PlaylistSong{plannedSong("ok"), broken},
		},
	}
	c := newTestCompositor(planner, &mockStore{songs: map[string][]domain.CatalogSong{}}, nil, nil)

	got, err := c.Generate(context.Background(), testJourney())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got.Songs) != 1 || got.Songs[0].TrackID != "ok" {
		t.Errorf("incomplete extrapolation not dropped: %+v", got.Songs)
	}
}

func TestGenerateFallsBackOnPlannerFailure(t *testing.T) {
	tests := []struct {
		name    string
		planner *mockPlanner
		store   *mockStore
	}{
		{
			name:    "compose error",
			planner: &mockPlanner{selectNames: []string{"Calm - Resolved"}, composeErr: errors.New("timeout")},
			store:   &mockStore{songs: map[string][]domain.CatalogSong{}},
		},
		{
			name:    "store read error",
			planner: &mockPlanner{selectNames: []string{"Calm - Resolved"}},
			store:   &mockStore{songsErr: domain.ErrDataUnavailable},
		},
		{
			name: "planner returns nothing usable",
			planner: &mockPlanner{
				selectNames:   []string{"Calm - Resolved"},
				composeResult: ports.PlanResult{Explanation: "x", Songs: nil},
			},
			store: &mockStore{songs: map[string][]domain.CatalogSong{}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestCompositor(tt.planner, tt.store, nil, nil)
			got, err := c.Generate(context.Background(), testJourney())
			if err != nil {
				t.Fatalf("fallback must not error: %v", err)
			}
			if len(got.Songs) != 3 {
				t.Fatalf("expected 3 fallback songs, got %d", len(got.Songs))
			}
			if !strings.Contains(got.Explanation, `"anxious"`) || !strings.Contains(got.Explanation, `"calm acceptance"`) {
				t.Errorf("fallback explanation must quote now/going: %q", got.Explanation)
			}
		})
	}
}

func TestGenerateNilBackingData(t *testing.T) {
	planner := &mockPlanner{}
	selector := NewSelector(planner, nil, logger.NewNop())
	c := NewCompositor(selector, planner, nil, nil, nil, nil, logger.NewNop())

	got, err := c.Generate(context.Background(), testJourney())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got.Songs) != 3 {
		t.Errorf("expected sample playlist, got %d songs", len(got.Songs))
	}
	if planner.selectCalls != 0 || planner.composeCalls != 0 {
		t.Error("planner must not be called without backing data")
	}
}

func TestGenerateContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := newTestCompositor(&mockPlanner{}, &mockStore{}, nil, nil)
	if _, err := c.Generate(ctx, testJourney()); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestGenerateEnrichment(t *testing.T) {
	extrapolated := plannedSong("ex")
	extrapolated.Extrapolated = true
	extrapolated.ManifoldX = f64ptr(0.1)
	extrapolated.ManifoldY = f64ptr(0.2)
	extrapolated.EmotionalComposition = map[string]float64{"Chill": 100}
	extrapolated.NearbyTapestrySongs = []string{"A - B"}

	planner := &mockPlanner{
		selectNames: []string{"Calm - Resolved"},
		composeResult: ports.PlanResult{
			Explanation: "x", EmotionalArc: "y",
			Songs: []domain.PlaylistSong{plannedSong("cat"), extrapolated},
		},
	}
	enricher := &mockEnricher{metadata: map[string]ports.TrackMetadata{
		"cat": {AlbumArt: "http://img/cat.jpg", PreviewURL: "http://p/cat.mp3", AlbumName: "Cat LP"},
		"ex":  {PreviewURL: "http://p/ex.mp3"},
	}}
	queue := &mockQueue{}

	c := newTestCompositor(planner, &mockStore{songs: map[string][]domain.CatalogSong{}}, enricher, queue)
	got, err := c.Generate(context.Background(), testJourney())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got.Songs[0].AlbumArt != "http://img/cat.jpg" || got.Songs[0].AlbumName != "Cat LP" {
		t.Errorf("catalog song not enriched: %+v", got.Songs[0])
	}

	// only the non-extrapolated song with a preview is queued for analysis
	if len(queue.submitted) != 1 || queue.submitted[0] != "cat" {
		t.Errorf("unexpected preview submissions: %v", queue.submitted)
	}
}

func TestGenerateEnrichmentFailureDegrades(t *testing.T) {
	planner := &mockPlanner{
		selectNames: []string{"Calm - Resolved"},
		composeResult: ports.PlanResult{
			Explanation: "x", EmotionalArc: "y",
			Songs: []domain.PlaylistSong{plannedSong("a")},
		},
	}
	enricher := &mockEnricher{err: errors.New("spotify down")}

	c := newTestCompositor(planner, &mockStore{songs: map[string][]domain.CatalogSong{}}, enricher, nil)
	got, err := c.Generate(context.Background(), testJourney())
	if err != nil {
		t.Fatalf("enrichment failure must not fail generation: %v", err)
	}
	if len(got.Songs) != 1 || got.Songs[0].AlbumArt != "" {
		t.Errorf("expected un-enriched song, got %+v", got.Songs)
	}
}

func f64ptr(v float64) *float64 { return &v }
