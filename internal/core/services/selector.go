package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/ewilliams-labs/tapestry/internal/core/domain"
	"github.com/ewilliams-labs/tapestry/internal/core/ports"
	"github.com/ewilliams-labs/tapestry/internal/logger"
)

// Selector narrows the full manifold down to the sub-vibes worth loading
// songs for, keeping the planner's context small relative to the catalog.
type Selector struct {
	planner  ports.Planner
	manifold *domain.Manifold
	log      *logger.Logger
}

// NewSelector constructs a Selector.
func NewSelector(planner ports.Planner, manifold *domain.Manifold, log *logger.Logger) *Selector {
	return &Selector{planner: planner, manifold: manifold, log: log}
}

// Relevant asks the planner for the sub-vibes matching the journey's start,
// destination, the path between them, and the overall vibe text.
//
// An unparseable planner reply fails open: the full sub-vibe set is returned
// so the result is degraded but never empty. Names the planner invented are
// discarded with a log line, not an error.
func (s *Selector) Relevant(ctx context.Context, journey domain.Journey) ([]string, error) {
	if s.manifold == nil {
		return nil, fmt.Errorf("selector: %w", domain.ErrDataUnavailable)
	}

	names, err := s.planner.SelectSubVibes(ctx, journey, s.manifold.Summaries())
	switch {
	case errors.Is(err, ports.ErrMalformedPlan):
		s.log.Warn("sub-vibe selection unparseable, using full manifold")
		names = s.manifold.SubVibeNames()
	case err != nil:
		return nil, fmt.Errorf("selector: %w", err)
	}

	valid := make([]string, 0, len(names))
	for _, name := range names {
		if !s.manifold.HasSubVibe(name) {
			s.log.Warn("planner returned unknown sub-vibe", "sub_vibe", name)
			continue
		}
		valid = append(valid, name)
	}
	if len(valid) == 0 {
		s.log.Warn("no selected sub-vibe exists in manifold, using full set")
		valid = s.manifold.SubVibeNames()
	}
	return valid, nil
}
