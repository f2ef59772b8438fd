package rest

import (
	"net/http"

	"github.com/goccy/go-json"

	"github.com/ewilliams-labs/tapestry/internal/core/domain"
)

// GeneratePlaylist handles POST /api/generate-playlist
func (h *Handler) GeneratePlaylist(w http.ResponseWriter, r *http.Request) {
	if !isJSONContentType(r) {
		writeError(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json")
		return
	}

	var journey domain.Journey
	if err := json.NewDecoder(r.Body).Decode(&journey); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := h.validate.Struct(journey); err != nil {
		writeError(w, http.StatusBadRequest, "vibe, now, and going are required")
		return
	}

	response, err := h.generator.Generate(r.Context(), journey)
	if err != nil {
		// only request cancellation reaches here; generation self-recovers
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, response)
}
