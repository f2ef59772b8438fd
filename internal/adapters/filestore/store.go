// Package filestore implements the tapestry store port on top of two JSON
// documents: the catalog (sub-vibe -> songs) and the append-only downvote
// ledger. Every mutation rewrites the affected document in full via a
// temp-file rename, so a crash mid-write never leaves a torn document.
package filestore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/ewilliams-labs/tapestry/internal/core/domain"
	"github.com/ewilliams-labs/tapestry/internal/core/ports"
	"github.com/ewilliams-labs/tapestry/internal/logger"
)

const (
	// confidenceBoost is added per validation, capped at confidenceCeiling.
	confidenceBoost   = 0.05
	confidenceCeiling = 0.99

	statsTTL = 60 * time.Second
)

type tapestryDocument struct {
	Vibes map[string]*vibeBucket `json:"vibes"`
}

type vibeBucket struct {
	Songs []domain.CatalogSong `json:"songs"`
}

type downvoteDocument struct {
	Songs []domain.DownvoteEntry `json:"songs"`
}

// Store is the file-backed tapestry store. All operations serialize on a
// single mutex and re-read the backing document, so every write is a
// read-modify-write against the latest committed state.
type Store struct {
	path          string
	downvotesPath string
	manifold      *domain.Manifold
	log           *logger.Logger

	mu sync.Mutex

	statsMu       sync.Mutex
	cachedStats   *domain.TapestryStats
	statsCachedAt time.Time
}

var _ ports.TapestryStore = (*Store)(nil)

// New constructs a Store. The backing files are not required to exist yet;
// reads surface domain.ErrDataUnavailable until they do, so callers can tell
// "no data source" apart from "no matches".
func New(path, downvotesPath string, manifold *domain.Manifold, log *logger.Logger) *Store {
	return &Store{
		path:          path,
		downvotesPath: downvotesPath,
		manifold:      manifold,
		log:           log,
	}
}

// Close implements the store port; the filestore holds no open handles.
func (s *Store) Close() error { return nil }

// SongsFor returns the songs of each requested sub-vibe ordered by
// descending mapping confidence, ties broken by insertion order.
func (s *Store) SongsFor(ctx context.Context, subVibes []string) (map[string][]domain.CatalogSong, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	doc, err := s.readTapestry()
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}

	out := make(map[string][]domain.CatalogSong, len(subVibes))
	for _, name := range subVibes {
		bucket, ok := doc.Vibes[name]
		if !ok {
			continue
		}
		songs := make([]domain.CatalogSong, len(bucket.Songs))
		copy(songs, bucket.Songs)
		domain.SortByConfidence(songs)
		out[name] = songs
	}
	return out, nil
}

// UpsertValidated boosts an existing (track, sub-vibe) entry or inserts a
// new user-validated one. The whole read-modify-write happens under the
// store mutex so concurrent votes never apply against a stale confidence.
func (s *Store) UpsertValidated(ctx context.Context, rec domain.FeedbackRecord) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.readTapestry()
	if err != nil {
		return false, err
	}

	subVibe := rec.Song.SubVibe
	bucket, ok := doc.Vibes[subVibe]
	if !ok {
		bucket = &vibeBucket{}
		doc.Vibes[subVibe] = bucket
	}

	searchID := domain.NormalizeTrackID(rec.Song.TrackID)
	validatedAt := rec.ValidatedAt.Format(time.RFC3339)

	for i := range bucket.Songs {
		if domain.NormalizeTrackID(bucket.Songs[i].TrackID) != searchID {
			continue
		}
		song := &bucket.Songs[i]
		boosted := song.MappingConfidence + confidenceBoost
		if boosted > confidenceCeiling {
			boosted = confidenceCeiling
		}
		song.MappingConfidence = boosted
		song.ValidationCount++
		song.LastValidated = validatedAt

		if err := s.writeTapestry(doc); err != nil {
			return false, err
		}
		s.invalidateStats()
		return true, nil
	}

	entry := domain.CatalogSong{
		Artist:            rec.Song.Artist,
		Title:             rec.Song.Title,
		TrackID:           domain.TrackURI(rec.Song.TrackID),
		SubVibe:           subVibe,
		MappingConfidence: rec.Song.Confidence,
		Justification:     rec.Song.Reasoning,
		FullContext: fmt.Sprintf("User-validated song from journey: %q (%s -> %s)",
			rec.UserJourney.Vibe, rec.UserJourney.Now, rec.UserJourney.Going),
		Source:               domain.SourceUserValidated,
		ValidationCount:      1,
		LastValidated:        validatedAt,
		ManifoldX:            rec.Song.ManifoldX,
		ManifoldY:            rec.Song.ManifoldY,
		EmotionalComposition: rec.Song.EmotionalComposition,
	}
	if entry.Justification == "" {
		entry.Justification = "User-validated as a fit for their emotional journey"
	}
	bucket.Songs = append(bucket.Songs, entry)

	if err := s.writeTapestry(doc); err != nil {
		return false, err
	}
	s.invalidateStats()
	return false, nil
}

// RecordDownvote appends to the ledger unless the normalized track id is
// already present. The ledger is created on first use.
func (s *Store) RecordDownvote(ctx context.Context, rec domain.FeedbackRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	doc := downvoteDocument{}
	raw, err := os.ReadFile(s.downvotesPath)
	switch {
	case err == nil:
		if err := json.Unmarshal(raw, &doc); err != nil {
			return fmt.Errorf("filestore: parse downvotes: %w: %w", domain.ErrDataUnavailable, err)
		}
	case os.IsNotExist(err):
		// first downvote creates the ledger
	default:
		return fmt.Errorf("filestore: read downvotes: %w: %w", domain.ErrDataUnavailable, err)
	}

	searchID := domain.NormalizeTrackID(rec.Song.TrackID)
	for _, entry := range doc.Songs {
		if domain.NormalizeTrackID(entry.TrackID) == searchID {
			s.log.Info("song already downvoted", "artist", rec.Song.Artist, "title", rec.Song.Title)
			return nil
		}
	}

	doc.Songs = append(doc.Songs, domain.DownvoteEntry{
		ID:                   uuid.NewString(),
		Artist:               rec.Song.Artist,
		Title:                rec.Song.Title,
		TrackID:              domain.TrackURI(rec.Song.TrackID),
		SubVibe:              rec.Song.SubVibe,
		MetaVibe:             rec.Song.MetaVibe,
		Confidence:           rec.Song.Confidence,
		UserJourney:          rec.UserJourney,
		Reason:               "User flagged as poor match for their emotional journey",
		DownvotedAt:          rec.ValidatedAt.Format(time.RFC3339),
		ManifoldX:            rec.Song.ManifoldX,
		ManifoldY:            rec.Song.ManifoldY,
		EmotionalComposition: rec.Song.EmotionalComposition,
		Extrapolated:         rec.Song.Extrapolated,
	})

	if err := writeDocument(s.downvotesPath, doc); err != nil {
		return err
	}
	s.invalidateStats()
	return nil
}

// Stats returns the cached derived view, recomputing when the TTL lapsed.
// Any mutation invalidates the cache immediately, so a call after a vote
// reflects the new song count even inside the TTL window.
func (s *Store) Stats(ctx context.Context) (domain.TapestryStats, error) {
	if err := ctx.Err(); err != nil {
		return domain.TapestryStats{}, err
	}

	s.statsMu.Lock()
	if s.cachedStats != nil && time.Since(s.statsCachedAt) < statsTTL {
		stats := *s.cachedStats
		s.statsMu.Unlock()
		return stats, nil
	}
	s.statsMu.Unlock()

	if s.manifold == nil {
		return domain.TapestryStats{}, fmt.Errorf("filestore: manifold not loaded: %w", domain.ErrDataUnavailable)
	}

	s.mu.Lock()
	doc, err := s.readTapestry()
	s.mu.Unlock()
	if err != nil {
		return domain.TapestryStats{}, err
	}

	total := 0
	for _, bucket := range doc.Vibes {
		total += len(bucket.Songs)
	}
	stats := domain.TapestryStats{
		TotalTracks:    total,
		TotalSubVibes:  len(s.manifold.SubVibes),
		TotalMetaVibes: len(s.manifold.CentralVibes),
		HumanSourced:   true,
	}

	s.statsMu.Lock()
	s.cachedStats = &stats
	s.statsCachedAt = time.Now()
	s.statsMu.Unlock()
	return stats, nil
}

// UpdatePreviewEnergy records the analyzed preview energy on an existing
// catalog entry, leaving everything else untouched.
func (s *Store) UpdatePreviewEnergy(ctx context.Context, subVibe, trackID string, energy float64) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.readTapestry()
	if err != nil {
		return err
	}

	bucket, ok := doc.Vibes[subVibe]
	if !ok {
		return fmt.Errorf("filestore: sub-vibe %q: %w", subVibe, domain.ErrNotFound)
	}
	searchID := domain.NormalizeTrackID(trackID)
	for i := range bucket.Songs {
		if domain.NormalizeTrackID(bucket.Songs[i].TrackID) != searchID {
			continue
		}
		bucket.Songs[i].PreviewEnergy = &energy
		return s.writeTapestry(doc)
	}
	return fmt.Errorf("filestore: track %q under %q: %w", trackID, subVibe, domain.ErrNotFound)
}

func (s *Store) invalidateStats() {
	s.statsMu.Lock()
	s.cachedStats = nil
	s.statsMu.Unlock()
}

// readTapestry loads the backing document. Callers hold s.mu.
func (s *Store) readTapestry() (*tapestryDocument, error) {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("filestore: read tapestry: %w: %w", domain.ErrDataUnavailable, err)
	}
	var doc tapestryDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("filestore: parse tapestry: %w: %w", domain.ErrDataUnavailable, err)
	}
	if doc.Vibes == nil {
		doc.Vibes = make(map[string]*vibeBucket)
	}
	return &doc, nil
}

// writeTapestry rewrites the catalog document in full. Callers hold s.mu.
func (s *Store) writeTapestry(doc *tapestryDocument) error {
	return writeDocument(s.path, doc)
}

// writeDocument marshals v and atomically replaces path via temp file and
// rename.
func writeDocument(path string, v interface{}) error {
	raw, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("filestore: marshal %s: %w", filepath.Base(path), err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("filestore: create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("filestore: write %s: %w", filepath.Base(path), err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("filestore: close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("filestore: replace %s: %w", filepath.Base(path), err)
	}
	return nil
}
