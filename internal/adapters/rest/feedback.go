package rest

import (
	"net/http"

	"github.com/goccy/go-json"

	"github.com/ewilliams-labs/tapestry/internal/core/domain"
)

type feedbackRequest struct {
	Song        domain.PlaylistSong `json:"song"`
	UserJourney domain.Journey      `json:"user_journey"`
}

type validateSongResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Boosted bool   `json:"boosted"`
}

type downvoteSongResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func decodeFeedback(w http.ResponseWriter, r *http.Request) (feedbackRequest, bool) {
	var req feedbackRequest
	if !isJSONContentType(r) {
		writeError(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json")
		return req, false
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return req, false
	}
	s := req.Song
	if s.TrackID == "" || s.Artist == "" || s.Title == "" || s.SubVibe == "" || s.MetaVibe == "" || s.Confidence <= 0 {
		writeError(w, http.StatusBadRequest, "song track_id, artist, title, sub_vibe, meta_vibe, and confidence are required")
		return req, false
	}
	return req, true
}

// ValidateSong handles POST /api/validate-song
func (h *Handler) ValidateSong(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeFeedback(w, r)
	if !ok {
		return
	}

	boosted, message, err := h.feedback.Validate(r.Context(), req.Song, req.UserJourney)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to record validation")
		return
	}

	writeJSON(w, http.StatusOK, validateSongResponse{Success: true, Message: message, Boosted: boosted})
}

// DownvoteSong handles POST /api/downvote-song
func (h *Handler) DownvoteSong(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeFeedback(w, r)
	if !ok {
		return
	}

	message, err := h.feedback.Downvote(r.Context(), req.Song, req.UserJourney)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to record downvote")
		return
	}

	writeJSON(w, http.StatusOK, downvoteSongResponse{Success: true, Message: message})
}
