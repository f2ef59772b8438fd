// Package sqlite provides a SQLite-backed implementation of the tapestry
// store port, for deployments that outgrow the JSON document store.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3" // driver

	"github.com/ewilliams-labs/tapestry/internal/core/domain"
	"github.com/ewilliams-labs/tapestry/internal/core/ports"
	"github.com/ewilliams-labs/tapestry/internal/logger"
)

const (
	confidenceBoost   = 0.05
	confidenceCeiling = 0.99

	statsTTL = 60 * time.Second
)

// Store implements the tapestry store port for SQLite.
type Store struct {
	db       *sql.DB
	manifold *domain.Manifold
	log      *logger.Logger

	statsMu       sync.Mutex
	cachedStats   *domain.TapestryStats
	statsCachedAt time.Time
}

var _ ports.TapestryStore = (*Store)(nil)

// New opens the database and runs the schema migration.
func New(path string, manifold *domain.Manifold, log *logger.Logger) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("sqlite: ping: %w", err)
	}

	s := &Store{db: db, manifold: manifold, log: log}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("sqlite: migrate: %w", err)
	}
	return s, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	query := `
	CREATE TABLE IF NOT EXISTS tapestry_songs (
		sub_vibe TEXT NOT NULL,
		track_id TEXT NOT NULL,
		artist TEXT NOT NULL,
		title TEXT NOT NULL,
		mapping_confidence REAL NOT NULL,
		justification TEXT,
		full_context TEXT,
		source TEXT,
		validation_count INTEGER NOT NULL DEFAULT 0,
		last_validated TEXT,
		manifold_x REAL,
		manifold_y REAL,
		emotional_composition TEXT,
		preview_energy REAL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (sub_vibe, track_id)
	);

	CREATE TABLE IF NOT EXISTS downvotes (
		id TEXT PRIMARY KEY,
		track_id TEXT NOT NULL UNIQUE,
		artist TEXT NOT NULL,
		title TEXT NOT NULL,
		sub_vibe TEXT,
		meta_vibe TEXT,
		confidence REAL,
		journey_vibe TEXT,
		journey_now TEXT,
		journey_going TEXT,
		reason TEXT,
		downvoted_at TEXT,
		manifold_x REAL,
		manifold_y REAL,
		emotional_composition TEXT,
		extrapolated INTEGER NOT NULL DEFAULT 0
	);
	`
	_, err := s.db.Exec(query)
	return err
}

// SongsFor returns each requested sub-vibe's songs ordered by descending
// confidence, ties broken by insertion order (rowid).
func (s *Store) SongsFor(ctx context.Context, subVibes []string) (map[string][]domain.CatalogSong, error) {
	out := make(map[string][]domain.CatalogSong, len(subVibes))
	for _, name := range subVibes {
		rows, err := s.db.QueryContext(ctx, `
			SELECT track_id, artist, title, mapping_confidence, justification, full_context,
				source, validation_count, last_validated, manifold_x, manifold_y,
				emotional_composition, preview_energy
			FROM tapestry_songs
			WHERE sub_vibe = ?
			ORDER BY mapping_confidence DESC, rowid ASC
		`, name)
		if err != nil {
			return nil, fmt.Errorf("sqlite: load songs: %w: %w", domain.ErrDataUnavailable, err)
		}

		songs, err := scanSongs(rows, name)
		rows.Close()
		if err != nil {
			return nil, err
		}
		if len(songs) > 0 {
			out[name] = songs
		}
	}
	return out, nil
}

func scanSongs(rows *sql.Rows, subVibe string) ([]domain.CatalogSong, error) {
	var songs []domain.CatalogSong
	for rows.Next() {
		var song domain.CatalogSong
		var justification, fullContext, source, lastValidated, composition sql.NullString
		var manifoldX, manifoldY, previewEnergy sql.NullFloat64
		if err := rows.Scan(
			&song.TrackID,
			&song.Artist,
			&song.Title,
			&song.MappingConfidence,
			&justification,
			&fullContext,
			&source,
			&song.ValidationCount,
			&lastValidated,
			&manifoldX,
			&manifoldY,
			&composition,
			&previewEnergy,
		); err != nil {
			return nil, fmt.Errorf("sqlite: scan song: %w", err)
		}
		song.SubVibe = subVibe
		song.Justification = justification.String
		song.FullContext = fullContext.String
		song.Source = source.String
		song.LastValidated = lastValidated.String
		if manifoldX.Valid {
			song.ManifoldX = &manifoldX.Float64
		}
		if manifoldY.Valid {
			song.ManifoldY = &manifoldY.Float64
		}
		if previewEnergy.Valid {
			song.PreviewEnergy = &previewEnergy.Float64
		}
		if composition.Valid && composition.String != "" {
			if err := json.Unmarshal([]byte(composition.String), &song.EmotionalComposition); err != nil {
				return nil, fmt.Errorf("sqlite: decode composition: %w", err)
			}
		}
		songs = append(songs, song)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterate songs: %w", err)
	}
	return songs, nil
}

// UpsertValidated boosts or inserts inside a transaction, so the
// read-modify-write is atomic against concurrent votes.
func (s *Store) UpsertValidated(ctx context.Context, rec domain.FeedbackRecord) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("sqlite: begin: %w", err)
	}
	defer tx.Rollback()

	subVibe := rec.Song.SubVibe
	trackID := domain.NormalizeTrackID(rec.Song.TrackID)
	validatedAt := rec.ValidatedAt.Format(time.RFC3339)

	var confidence float64
	err = tx.QueryRowContext(ctx,
		"SELECT mapping_confidence FROM tapestry_songs WHERE sub_vibe = ? AND track_id = ?",
		subVibe, trackID,
	).Scan(&confidence)

	switch {
	case err == nil:
		boosted := confidence + confidenceBoost
		if boosted > confidenceCeiling {
			boosted = confidenceCeiling
		}
		if _, err := tx.ExecContext(ctx, `
			UPDATE tapestry_songs
			SET mapping_confidence = ?, validation_count = validation_count + 1, last_validated = ?
			WHERE sub_vibe = ? AND track_id = ?
		`, boosted, validatedAt, subVibe, trackID); err != nil {
			return false, fmt.Errorf("sqlite: boost: %w", err)
		}
		if err := tx.Commit(); err != nil {
			return false, fmt.Errorf("sqlite: commit: %w", err)
		}
		s.invalidateStats()
		return true, nil

	case err == sql.ErrNoRows:
		composition, err := marshalComposition(rec.Song.EmotionalComposition)
		if err != nil {
			return false, err
		}
		justification := rec.Song.Reasoning
		if justification == "" {
			justification = "User-validated as a fit for their emotional journey"
		}
		fullContext := fmt.Sprintf("User-validated song from journey: %q (%s -> %s)",
			rec.UserJourney.Vibe, rec.UserJourney.Now, rec.UserJourney.Going)

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO tapestry_songs (
				sub_vibe, track_id, artist, title, mapping_confidence, justification,
				full_context, source, validation_count, last_validated,
				manifold_x, manifold_y, emotional_composition
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, 1, ?, ?, ?, ?)
		`, subVibe, trackID, rec.Song.Artist, rec.Song.Title, rec.Song.Confidence,
			justification, fullContext, domain.SourceUserValidated, validatedAt,
			nullable(rec.Song.ManifoldX), nullable(rec.Song.ManifoldY), composition,
		); err != nil {
			return false, fmt.Errorf("sqlite: insert: %w", err)
		}
		if err := tx.Commit(); err != nil {
			return false, fmt.Errorf("sqlite: commit: %w", err)
		}
		s.invalidateStats()
		return false, nil

	default:
		return false, fmt.Errorf("sqlite: lookup: %w", err)
	}
}

// RecordDownvote appends to the ledger; the UNIQUE constraint on track_id
// enforces de-duplication by normalized id.
func (s *Store) RecordDownvote(ctx context.Context, rec domain.FeedbackRecord) error {
	composition, err := marshalComposition(rec.Song.EmotionalComposition)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO downvotes (
			id, track_id, artist, title, sub_vibe, meta_vibe, confidence,
			journey_vibe, journey_now, journey_going, reason, downvoted_at,
			manifold_x, manifold_y, emotional_composition, extrapolated
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(track_id) DO NOTHING
	`, uuid.NewString(), domain.NormalizeTrackID(rec.Song.TrackID),
		rec.Song.Artist, rec.Song.Title, rec.Song.SubVibe, rec.Song.MetaVibe,
		rec.Song.Confidence, rec.UserJourney.Vibe, rec.UserJourney.Now,
		rec.UserJourney.Going, "User flagged as poor match for their emotional journey",
		rec.ValidatedAt.Format(time.RFC3339),
		nullable(rec.Song.ManifoldX), nullable(rec.Song.ManifoldY), composition,
		rec.Song.Extrapolated,
	)
	if err != nil {
		return fmt.Errorf("sqlite: record downvote: %w", err)
	}
	s.invalidateStats()
	return nil
}

// Stats returns the cached derived view, recomputing when stale.
func (s *Store) Stats(ctx context.Context) (domain.TapestryStats, error) {
	s.statsMu.Lock()
	if s.cachedStats != nil && time.Since(s.statsCachedAt) < statsTTL {
		stats := *s.cachedStats
		s.statsMu.Unlock()
		return stats, nil
	}
	s.statsMu.Unlock()

	if s.manifold == nil {
		return domain.TapestryStats{}, fmt.Errorf("sqlite: manifold not loaded: %w", domain.ErrDataUnavailable)
	}

	var total int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM tapestry_songs").Scan(&total); err != nil {
		return domain.TapestryStats{}, fmt.Errorf("sqlite: count songs: %w: %w", domain.ErrDataUnavailable, err)
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

// UpdatePreviewEnergy records the analyzed preview energy for an existing
// entry.
func (s *Store) UpdatePreviewEnergy(ctx context.Context, subVibe, trackID string, energy float64) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE tapestry_songs SET preview_energy = ? WHERE sub_vibe = ? AND track_id = ?",
		energy, subVibe, domain.NormalizeTrackID(trackID))
	if err != nil {
		return fmt.Errorf("sqlite: update preview energy: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: update preview energy: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("sqlite: track %q under %q: %w", trackID, subVibe, domain.ErrNotFound)
	}
	return nil
}

func (s *Store) invalidateStats() {
	s.statsMu.Lock()
	s.cachedStats = nil
	s.statsMu.Unlock()
}

func marshalComposition(composition map[string]float64) (sql.NullString, error) {
	if len(composition) == 0 {
		return sql.NullString{}, nil
	}
	raw, err := json.Marshal(composition)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("sqlite: encode composition: %w", err)
	}
	return sql.NullString{String: string(raw), Valid: true}, nil
}

func nullable(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}
