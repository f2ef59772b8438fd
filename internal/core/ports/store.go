package ports

import (
	"context"

	"github.com/ewilliams-labs/tapestry/internal/core/domain"
)

// TapestryStore is the persistent catalog keyed by sub-vibe. It is the single
// writer for all catalog entries; implementations must make UpsertValidated
// read-modify-write atomic so concurrent boosts never apply against a stale
// confidence value.
type TapestryStore interface {
	// SongsFor returns the songs of each requested sub-vibe, ordered by
	// descending mapping confidence with ties broken by insertion order.
	// Missing backing data surfaces domain.ErrDataUnavailable, never an
	// empty map that looks like a legitimate zero-song result.
	SongsFor(ctx context.Context, subVibes []string) (map[string][]domain.CatalogSong, error)

	// UpsertValidated boosts an existing (track, sub-vibe) entry or inserts a
	// new one. Returns true when an existing entry was boosted.
	UpsertValidated(ctx context.Context, rec domain.FeedbackRecord) (boosted bool, err error)

	// RecordDownvote appends to the downvote ledger unless the normalized
	// track id is already present.
	RecordDownvote(ctx context.Context, rec domain.FeedbackRecord) error

	// Stats returns the cached catalog statistics, recomputing when stale.
	Stats(ctx context.Context) (domain.TapestryStats, error)

	// UpdatePreviewEnergy records the analyzed preview energy on an existing
	// catalog entry. A missing entry returns domain.ErrNotFound.
	UpdatePreviewEnergy(ctx context.Context, subVibe, trackID string, energy float64) error

	Close() error
}
