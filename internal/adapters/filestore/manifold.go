package filestore

import (
	"fmt"
	"os"

	"github.com/goccy/go-json"

	"github.com/ewilliams-labs/tapestry/internal/core/domain"
)

// manifoldDocument mirrors the on-disk reference data layout.
type manifoldDocument struct {
	Metadata struct {
		TotalSubVibes     int `json:"total_sub_vibes"`
		TotalCentralVibes int `json:"total_central_vibes"`
	} `json:"metadata"`
	CentralVibes struct {
		Positions map[string]domain.Point `json:"positions"`
	} `json:"central_vibes"`
	SubVibes map[string]domain.SubVibe `json:"sub_vibes"`
}

// LoadManifold reads and validates the emotional manifold reference data.
// It is called once at startup; the returned manifold is immutable for the
// life of the process.
func LoadManifold(path string) (*domain.Manifold, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("filestore: read manifold: %w: %w", domain.ErrDataUnavailable, err)
	}

	var doc manifoldDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("filestore: parse manifold: %w: %w", domain.ErrDataUnavailable, err)
	}

	m := &domain.Manifold{
		CentralVibes: doc.CentralVibes.Positions,
		SubVibes:     doc.SubVibes,
	}
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("filestore: %w: %w", domain.ErrDataUnavailable, err)
	}
	return m, nil
}
