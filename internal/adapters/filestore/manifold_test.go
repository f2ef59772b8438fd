package filestore

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/ewilliams-labs/tapestry/internal/core/domain"
)

const manifoldFixture = `{
  "metadata": {"total_sub_vibes": 1, "total_central_vibes": 2},
  "central_vibes": {
    "positions": {
      "Chill": {"x": -0.5, "y": 0.3},
      "Sad": {"x": -0.2, "y": -0.7}
    }
  },
  "sub_vibes": {
    "Sad - Melancholic": {
      "coordinates": {"x": -0.25, "y": -0.6},
      "emotional_composition": {"Sad": 70, "Chill": 30},
      "analysis": "gentle sorrow"
    }
  }
}`

func writeManifold(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "manifold.json")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	return path
}

func TestLoadManifold(t *testing.T) {
	m, err := LoadManifold(writeManifold(t, manifoldFixture))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(m.CentralVibes) != 2 || len(m.SubVibes) != 1 {
		t.Fatalf("wrong shape: %d central, %d sub", len(m.CentralVibes), len(m.SubVibes))
	}
	sv := m.SubVibes["Sad - Melancholic"]
	if sv.Coordinates.X != -0.25 || sv.EmotionalComposition["Sad"] != 70 {
		t.Errorf("sub-vibe content wrong: %+v", sv)
	}
}

func TestLoadManifoldFailures(t *testing.T) {
	tests := []struct {
		name string
		path string
	}{
		{"missing file", filepath.Join(t.TempDir(), "nope.json")},
		{"invalid json", writeManifold(t, "{not json")},
		{"fails validation", writeManifold(t, `{
			"central_vibes": {"positions": {"Chill": {"x": 0, "y": 0}}},
			"sub_vibes": {"Broken": {"emotional_composition": {"Unknown": 100}}}
		}`)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := LoadManifold(tt.path); !errors.Is(err, domain.ErrDataUnavailable) {
				t.Errorf("expected ErrDataUnavailable, got %v", err)
			}
		})
	}
}
