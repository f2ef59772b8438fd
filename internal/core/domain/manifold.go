package domain

import (
	"fmt"
	"sort"
)

// Point is a position on the 2-D emotional manifold.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// SubVibe is a fine-grained emotional category positioned on the manifold as a
// weighted blend of central vibes. Weights are relative percentages and need
// not sum to a fixed total.
type SubVibe struct {
	Coordinates          Point              `json:"coordinates"`
	EmotionalComposition map[string]float64 `json:"emotional_composition"`
	Analysis             string             `json:"analysis"`
	ProximityNotes       string             `json:"proximity_notes,omitempty"`
}

// SubVibeSummary is the compact per-sub-vibe view handed to the planner when
// narrowing the manifold down to a working set.
type SubVibeSummary struct {
	Name                 string             `json:"name"`
	Coordinates          Point              `json:"coordinates"`
	EmotionalComposition map[string]float64 `json:"emotional_composition"`
	Analysis             string             `json:"analysis"`
}

// Manifold is the static 2-D coordinate space over central vibes and
// sub-vibes. It is loaded once at startup and shared read-only by all
// requests; there are no mutation operations.
type Manifold struct {
	CentralVibes map[string]Point
	SubVibes     map[string]SubVibe
}

// HasSubVibe reports whether name exists in the manifold.
func (m *Manifold) HasSubVibe(name string) bool {
	_, ok := m.SubVibes[name]
	return ok
}

// SubVibeNames returns every sub-vibe name in deterministic order.
func (m *Manifold) SubVibeNames() []string {
	names := make([]string, 0, len(m.SubVibes))
	for name := range m.SubVibes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Summaries returns the compact planner-facing view of all sub-vibes,
// ordered by name.
func (m *Manifold) Summaries() []SubVibeSummary {
	summaries := make([]SubVibeSummary, 0, len(m.SubVibes))
	for _, name := range m.SubVibeNames() {
		sv := m.SubVibes[name]
		summaries = append(summaries, SubVibeSummary{
			Name:                 name,
			Coordinates:          sv.Coordinates,
			EmotionalComposition: sv.EmotionalComposition,
			Analysis:             sv.Analysis,
		})
	}
	return summaries
}

// Validate checks the manifold invariants: every sub-vibe carries a non-empty
// composition whose keys all reference existing central vibes.
func (m *Manifold) Validate() error {
	if len(m.CentralVibes) == 0 {
		return fmt.Errorf("manifold: no central vibes defined")
	}
	for name, sv := range m.SubVibes {
		if len(sv.EmotionalComposition) == 0 {
			return fmt.Errorf("manifold: sub-vibe %q has empty emotional composition", name)
		}
		for central := range sv.EmotionalComposition {
			if _, ok := m.CentralVibes[central]; !ok {
				return fmt.Errorf("manifold: sub-vibe %q references unknown central vibe %q", name, central)
			}
		}
	}
	return nil
}
