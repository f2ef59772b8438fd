package services

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/ewilliams-labs/tapestry/internal/core/domain"
	"github.com/ewilliams-labs/tapestry/internal/core/ports"
	"github.com/ewilliams-labs/tapestry/internal/logger"
)

// --- Mocks ---

type mockPlanner struct {
	selectNames []string
	selectErr   error

	composeResult ports.PlanResult
	composeErr    error

	selectCalls  int
	composeCalls int
}

func (m *mockPlanner) SelectSubVibes(ctx context.Context, journey domain.Journey, subVibes []domain.SubVibeSummary) ([]string, error) {
	m.selectCalls++
	return m.selectNames, m.selectErr
}

func (m *mockPlanner) ComposeJourney(ctx context.Context, journey domain.Journey, manifest domain.PlaylistManifest) (ports.PlanResult, error) {
	m.composeCalls++
	return m.composeResult, m.composeErr
}

func testJourney() domain.Journey {
	return domain.Journey{Vibe: "rainy city night", Now: "anxious", Going: "calm acceptance"}
}

func selectorManifold() *domain.Manifold {
	return &domain.Manifold{
		CentralVibes: map[string]domain.Point{
			"Chill": {X: -0.5, Y: 0.3},
			"Sad":   {X: -0.2, Y: -0.7},
		},
		SubVibes: map[string]domain.SubVibe{
			"Anxious - Racing": {EmotionalComposition: map[string]float64{"Sad": 100}},
			"Calm - Resolved":  {EmotionalComposition: map[string]float64{"Chill": 100}},
			"Chill - Lofi":     {EmotionalComposition: map[string]float64{"Chill": 100}},
		},
	}
}

func TestSelectorRelevant(t *testing.T) {
	tests := []struct {
		name    string
		planner *mockPlanner
		want    []string
	}{
		{
			name:    "planner names pass through",
			planner: &mockPlanner{selectNames: []string{"Anxious - Racing", "Calm - Resolved"}},
			want:    []string{"Anxious - Racing", "Calm - Resolved"},
		},
		{
			name:    "hallucinated names filtered",
			planner: &mockPlanner{selectNames: []string{"Anxious - Racing", "Totally Invented"}},
			want:    []string{"Anxious - Racing"},
		},
		{
			name:    "malformed reply fails open to full set",
			planner: &mockPlanner{selectErr: fmt.Errorf("no array: %w", ports.ErrMalformedPlan)},
			want:    []string{"Anxious - Racing", "Calm - Resolved", "Chill - Lofi"},
		},
		{
			name:    "all names hallucinated falls back to full set",
			planner: &mockPlanner{selectNames: []string{"Nope", "Also Nope"}},
			want:    []string{"Anxious - Racing", "Calm - Resolved", "Chill - Lofi"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewSelector(tt.planner, selectorManifold(), logger.NewNop())
			got, err := s.Relevant(context.Background(), testJourney())
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("position %d: got %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestSelectorPropagatesTransportErrors(t *testing.T) {
	s := NewSelector(&mockPlanner{selectErr: errors.New("connection refused")}, selectorManifold(), logger.NewNop())
	if _, err := s.Relevant(context.Background(), testJourney()); err == nil {
		t.Fatal("expected error for non-malformed planner failure")
	}
}

func TestSelectorNilManifold(t *testing.T) {
	s := NewSelector(&mockPlanner{}, nil, logger.NewNop())
	_, err := s.Relevant(context.Background(), testJourney())
	if !errors.Is(err, domain.ErrDataUnavailable) {
		t.Fatalf("expected ErrDataUnavailable, got %v", err)
	}
}
