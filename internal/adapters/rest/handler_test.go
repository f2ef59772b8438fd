package rest

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/goccy/go-json"

	"github.com/ewilliams-labs/tapestry/internal/core/domain"
	"github.com/ewilliams-labs/tapestry/internal/core/ports"
	"github.com/ewilliams-labs/tapestry/internal/logger"
)

// --- Mocks ---

type mockGenerator struct {
	response domain.PlaylistResponse
	err      error
	journeys []domain.Journey
}

func (m *mockGenerator) Generate(ctx context.Context, journey domain.Journey) (domain.PlaylistResponse, error) {
	m.journeys = append(m.journeys, journey)
	return m.response, m.err
}

type mockFeedback struct {
	boosted     bool
	validateErr error
	downvoteErr error
}

func (m *mockFeedback) Validate(ctx context.Context, song domain.PlaylistSong, journey domain.Journey) (bool, string, error) {
	if m.validateErr != nil {
		return false, "", m.validateErr
	}
	if m.boosted {
		return true, "Confidence boosted!", nil
	}
	return false, "Song added to Tapestry!", nil
}

func (m *mockFeedback) Downvote(ctx context.Context, song domain.PlaylistSong, journey domain.Journey) (string, error) {
	if m.downvoteErr != nil {
		return "", m.downvoteErr
	}
	return "Feedback recorded!", nil
}

type mockStats struct {
	stats domain.TapestryStats
	err   error
}

func (m *mockStats) Stats(ctx context.Context) (domain.TapestryStats, error) {
	return m.stats, m.err
}

type mockCreator struct {
	created ports.CreatedPlaylist
	err     error
	params  []ports.CreatePlaylistParams
}

func (m *mockCreator) CreatePlaylist(ctx context.Context, params ports.CreatePlaylistParams) (ports.CreatedPlaylist, error) {
	m.params = append(m.params, params)
	return m.created, m.err
}

func newTestHandler(gen *mockGenerator, fb *mockFeedback, stats *mockStats, creator PlaylistCreator) *Handler {
	if gen == nil {
		gen = &mockGenerator{}
	}
	if fb == nil {
		fb = &mockFeedback{}
	}
	if stats == nil {
		stats = &mockStats{}
	}
	return NewHandler(gen, fb, stats, creator, logger.NewNop())
}

func postJSON(t *testing.T, h http.Handler, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func validFeedbackBody() map[string]interface{} {
	return map[string]interface{}{
		"song": map[string]interface{}{
			"track_id":   "spotify:track:x",
			"artist":     "A",
			"title":      "T",
			"sub_vibe":   "Chill - Lofi",
			"meta_vibe":  "Chill",
			"confidence": 0.9,
		},
		"user_journey": map[string]string{"vibe": "v", "now": "n", "going": "g"},
	}
}

// --- Tests ---

func TestHealthCheck(t *testing.T) {
	h := newTestHandler(nil, nil, nil, nil)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestGeneratePlaylist(t *testing.T) {
	gen := &mockGenerator{response: domain.PlaylistResponse{
		Journey:     domain.Journey{Vibe: "v", Now: "n", Going: "g"},
		Explanation: "a walk",
		Songs:       []domain.PlaylistSong{{TrackID: "a", Artist: "A", Title: "T"}},
	}}
	h := newTestHandler(gen, nil, nil, nil)

	rec := postJSON(t, h, "/api/generate-playlist", map[string]string{
		"vibe": "v", "now": "n", "going": "g",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	var resp domain.PlaylistResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Explanation != "a walk" || len(resp.Songs) != 1 {
		t.Errorf("unexpected response: %+v", resp)
	}
	if len(gen.journeys) != 1 || gen.journeys[0].Vibe != "v" {
		t.Errorf("journey not passed through: %+v", gen.journeys)
	}
}

func TestGeneratePlaylistRejectsBadInput(t *testing.T) {
	tests := []struct {
		name string
		body interface{}
		want int
	}{
		{"missing fields", map[string]string{"vibe": "v"}, http.StatusBadRequest},
		{"empty going", map[string]string{"vibe": "v", "now": "n", "going": ""}, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestHandler(nil, nil, nil, nil)
			rec := postJSON(t, h, "/api/generate-playlist", tt.body)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestGeneratePlaylistRequiresJSON(t *testing.T) {
	h := newTestHandler(nil, nil, nil, nil)
	req := httptest.NewRequest(http.MethodPost, "/api/generate-playlist", strings.NewReader("vibe=v"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnsupportedMediaType {
		t.Errorf("status = %d, want 415", rec.Code)
	}
}

func TestValidateSong(t *testing.T) {
	h := newTestHandler(nil, &mockFeedback{boosted: true}, nil, nil)

	rec := postJSON(t, h, "/api/validate-song", validFeedbackBody())
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	var resp validateSongResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.Success || !resp.Boosted || resp.Message != "Confidence boosted!" {
		t.Errorf("unexpected response: %+v", resp)
	}
}

func TestValidateSongRejectsIncompleteSong(t *testing.T) {
	tests := []struct {
		name string
		drop string
	}{
		{"missing track_id", "track_id"},
		{"missing artist", "artist"},
		{"missing sub_vibe", "sub_vibe"},
		{"missing meta_vibe", "meta_vibe"},
		{"missing confidence", "confidence"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := validFeedbackBody()
			delete(body["song"].(map[string]interface{}), tt.drop)

			h := newTestHandler(nil, nil, nil, nil)
			rec := postJSON(t, h, "/api/validate-song", body)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
		})
	}
}

func TestValidateSongStoreFailure(t *testing.T) {
	h := newTestHandler(nil, &mockFeedback{validateErr: errors.New("disk full")}, nil, nil)
	rec := postJSON(t, h, "/api/validate-song", validFeedbackBody())
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
}

func TestDownvoteSong(t *testing.T) {
	h := newTestHandler(nil, nil, nil, nil)

	rec := postJSON(t, h, "/api/downvote-song", validFeedbackBody())
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var resp downvoteSongResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.Success || resp.Message != "Feedback recorded!" {
		t.Errorf("unexpected response: %+v", resp)
	}
}

func TestTapestryStats(t *testing.T) {
	stats := &mockStats{stats: domain.TapestryStats{
		TotalTracks: 42, TotalSubVibes: 6, TotalMetaVibes: 4, HumanSourced: true,
	}}
	h := newTestHandler(nil, nil, stats, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/tapestry-stats", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp domain.TapestryStats
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.TotalTracks != 42 || !resp.HumanSourced {
		t.Errorf("unexpected stats: %+v", resp)
	}
}

func TestTapestryStatsUnavailable(t *testing.T) {
	h := newTestHandler(nil, nil, &mockStats{err: domain.ErrDataUnavailable}, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/tapestry-stats", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
}

func TestCreateSpotifyPlaylist(t *testing.T) {
	creator := &mockCreator{created: ports.CreatedPlaylist{ID: "pl1", URL: "https://open.spotify.com/playlist/pl1"}}
	h := newTestHandler(nil, nil, nil, creator)

	rec := postJSON(t, h, "/api/create-spotify-playlist", map[string]interface{}{
		"playlistName":        "Tapestry Journey",
		"playlistDescription": "From anxious to calm",
		"trackUris":           []string{"a", "spotify:track:b"},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	var resp createSpotifyPlaylistResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.PlaylistID != "pl1" {
		t.Errorf("unexpected response: %+v", resp)
	}

	// ids are normalized to full URIs before export
	uris := creator.params[0].TrackURIs
	if uris[0] != "spotify:track:a" || uris[1] != "spotify:track:b" {
		t.Errorf("uris not normalized: %v", uris)
	}
	if creator.params[0].Name != "Tapestry Journey" || creator.params[0].Description != "From anxious to calm" {
		t.Errorf("playlist details not passed through: %+v", creator.params[0])
	}
}

func TestCreateSpotifyPlaylistRejectsMissingFields(t *testing.T) {
	creator := &mockCreator{}
	h := newTestHandler(nil, nil, nil, creator)

	rec := postJSON(t, h, "/api/create-spotify-playlist", map[string]interface{}{
		"playlistName": "no tracks",
	})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
	if len(creator.params) != 0 {
		t.Error("creator invoked despite invalid payload")
	}
}

func TestCreateSpotifyPlaylistNotConfigured(t *testing.T) {
	h := newTestHandler(nil, nil, nil, nil)
	rec := postJSON(t, h, "/api/create-spotify-playlist", map[string]interface{}{
		"name":      "x",
		"track_ids": []string{"a"},
	})
	if rec.Code != http.StatusNotImplemented {
		t.Errorf("status = %d, want 501", rec.Code)
	}
}
