package services

import (
	"context"
	"fmt"
	"time"

	"github.com/ewilliams-labs/tapestry/internal/core/domain"
	"github.com/ewilliams-labs/tapestry/internal/core/ports"
	"github.com/ewilliams-labs/tapestry/internal/logger"
)

// Feedback applies user votes back onto the tapestry. Validation boosts or
// creates catalog entries; downvotes land in the append-only ledger. The UI
// enforces the per-session unrated -> validated | downvoted state machine;
// the core does not deduplicate across the two ledgers.
type Feedback struct {
	store ports.TapestryStore
	log   *logger.Logger
	now   func() time.Time
}

// NewFeedback constructs a Feedback engine.
func NewFeedback(store ports.TapestryStore, log *logger.Logger) *Feedback {
	return &Feedback{store: store, log: log, now: time.Now}
}

// Validate records an upvote: either boosts the confidence of an existing
// (track, sub-vibe) entry or inserts the song as a new user-validated entry.
// The returned message is user-facing.
func (f *Feedback) Validate(ctx context.Context, song domain.PlaylistSong, journey domain.Journey) (boosted bool, message string, err error) {
	if f.store == nil {
		return false, "", fmt.Errorf("feedback: %w", domain.ErrDataUnavailable)
	}

	rec := domain.NewFeedbackRecord(song, journey, f.now())
	boosted, err = f.store.UpsertValidated(ctx, rec)
	if err != nil {
		return false, "", fmt.Errorf("feedback: %w", err)
	}

	if boosted {
		f.log.Info("boosted catalog entry", "artist", song.Artist, "title", song.Title, "sub_vibe", song.SubVibe)
		return true, "Confidence boosted!", nil
	}
	f.log.Info("added validated song to tapestry", "artist", song.Artist, "title", song.Title, "sub_vibe", song.SubVibe)
	return false, "Song added to Tapestry!", nil
}

// Downvote records a flag in the ledger. No confidence mutation happens;
// duplicates of the same normalized track id are suppressed by the store.
func (f *Feedback) Downvote(ctx context.Context, song domain.PlaylistSong, journey domain.Journey) (message string, err error) {
	if f.store == nil {
		return "", fmt.Errorf("feedback: %w", domain.ErrDataUnavailable)
	}

	rec := domain.NewFeedbackRecord(song, journey, f.now())
	if err := f.store.RecordDownvote(ctx, rec); err != nil {
		return "", fmt.Errorf("feedback: %w", err)
	}
	f.log.Info("recorded downvote", "artist", song.Artist, "title", song.Title)
	return "Feedback recorded!", nil
}
