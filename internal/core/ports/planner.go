package ports

import (
	"context"
	"errors"

	"github.com/ewilliams-labs/tapestry/internal/core/domain"
)

// ErrMalformedPlan indicates the planner replied but no well-formed structure
// could be extracted from the reply. Callers decide whether to fail open
// (sub-vibe selection) or fall back (playlist composition).
var ErrMalformedPlan = errors.New("malformed planner reply")

// PlanResult is the validated-shape output of a composition call.
type PlanResult struct {
	Explanation  string                `json:"explanation"`
	EmotionalArc string                `json:"emotionalArc"`
	Songs        []domain.PlaylistSong `json:"songs"`
}

// Planner is the external reasoning step, treated as a pure function with a
// strict request/response contract. Merge, validation, and fallback logic all
// live in the core so the planner backend is swappable for a scripted fake.
type Planner interface {
	// SelectSubVibes narrows the full manifold to the sub-vibes worth loading
	// songs for, given the journey. The reply is a flat list of names; the
	// planner may hallucinate names absent from the manifold.
	SelectSubVibes(ctx context.Context, journey domain.Journey, subVibes []domain.SubVibeSummary) ([]string, error)

	// ComposeJourney turns the bounded manifest into a 10-12 song emotional
	// progression mixing catalog and extrapolated entries.
	ComposeJourney(ctx context.Context, journey domain.Journey, manifest domain.PlaylistManifest) (PlanResult, error)
}
