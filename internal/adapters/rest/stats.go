package rest

import "net/http"

// TapestryStats handles GET /api/tapestry-stats
func (h *Handler) TapestryStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.stats.Stats(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Tapestry data unavailable")
		return
	}

	writeJSON(w, http.StatusOK, stats)
}
