package rest

import (
	"net/http"

	"github.com/goccy/go-json"

	"github.com/ewilliams-labs/tapestry/internal/core/domain"
	"github.com/ewilliams-labs/tapestry/internal/core/ports"
)

type createSpotifyPlaylistRequest struct {
	Name        string   `json:"playlistName"`
	Description string   `json:"playlistDescription"`
	TrackURIs   []string `json:"trackUris"`
}

type createSpotifyPlaylistResponse struct {
	PlaylistID  string `json:"playlistId"`
	PlaylistURL string `json:"playlistUrl"`
}

// CreateSpotifyPlaylist handles POST /api/create-spotify-playlist
func (h *Handler) CreateSpotifyPlaylist(w http.ResponseWriter, r *http.Request) {
	if h.creator == nil {
		writeError(w, http.StatusNotImplemented, "Spotify export not configured")
		return
	}
	if !isJSONContentType(r) {
		writeError(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json")
		return
	}

	var req createSpotifyPlaylistRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Name == "" || len(req.TrackURIs) == 0 {
		writeError(w, http.StatusBadRequest, "playlistName and trackUris are required")
		return
	}

	// clients send full URIs; normalizing tolerates bare ids anyway
	uris := make([]string, 0, len(req.TrackURIs))
	for _, id := range req.TrackURIs {
		uris = append(uris, domain.TrackURI(id))
	}

	created, err := h.creator.CreatePlaylist(r.Context(), ports.CreatePlaylistParams{
		Name:        req.Name,
		Description: req.Description,
		TrackURIs:   uris,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create playlist")
		return
	}

	writeJSON(w, http.StatusCreated, createSpotifyPlaylistResponse{
		PlaylistID:  created.ID,
		PlaylistURL: created.URL,
	})
}
