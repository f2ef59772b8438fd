// Package rest exposes the playlist engine over HTTP. Handlers depend on
// narrow interfaces rather than concrete services so tests can stub each
// capability independently.
package rest

import (
	"context"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/ewilliams-labs/tapestry/internal/core/domain"
	"github.com/ewilliams-labs/tapestry/internal/core/ports"
	"github.com/ewilliams-labs/tapestry/internal/logger"
)

type playlistGenerator interface {
	Generate(ctx context.Context, journey domain.Journey) (domain.PlaylistResponse, error)
}

type feedbackRecorder interface {
	Validate(ctx context.Context, song domain.PlaylistSong, journey domain.Journey) (bool, string, error)
	Downvote(ctx context.Context, song domain.PlaylistSong, journey domain.Journey) (string, error)
}

type statsProvider interface {
	Stats(ctx context.Context) (domain.TapestryStats, error)
}

// PlaylistCreator exports playlists to an external service. It is optional:
// a nil creator turns the export endpoint into a 501.
type PlaylistCreator interface {
	CreatePlaylist(ctx context.Context, params ports.CreatePlaylistParams) (ports.CreatedPlaylist, error)
}

// Handler manages the HTTP interface for the playlist engine.
type Handler struct {
	generator playlistGenerator
	feedback  feedbackRecorder
	stats     statsProvider
	creator   PlaylistCreator // nil when Spotify export is not configured
	validate  *validator.Validate
	log       *logger.Logger
	router    *http.ServeMux
}

// NewHandler initializes the HTTP adapter and sets up routes.
func NewHandler(generator playlistGenerator, feedback feedbackRecorder, stats statsProvider, creator PlaylistCreator, log *logger.Logger) *Handler {
	h := &Handler{
		generator: generator,
		feedback:  feedback,
		stats:     stats,
		creator:   creator,
		validate:  validator.New(validator.WithRequiredStructEnabled()),
		log:       log,
		router:    http.NewServeMux(),
	}
	h.routes()
	return h
}

// ServeHTTP satisfies http.Handler, tagging each request with an id and
// logging its outcome.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	requestID := uuid.NewString()
	start := time.Now()

	sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
	sw.Header().Set("X-Request-Id", requestID)
	h.router.ServeHTTP(sw, r)

	h.log.Info("request",
		"request_id", requestID,
		"method", r.Method,
		"path", r.URL.Path,
		"status", sw.status,
		"duration_ms", time.Since(start).Milliseconds(),
	)
}

func (h *Handler) routes() {
	h.router.HandleFunc("GET /health", h.HealthCheck)

	h.router.HandleFunc("POST /api/generate-playlist", h.GeneratePlaylist)
	h.router.HandleFunc("POST /api/validate-song", h.ValidateSong)
	h.router.HandleFunc("POST /api/downvote-song", h.DownvoteSong)
	h.router.HandleFunc("GET /api/tapestry-stats", h.TapestryStats)
	h.router.HandleFunc("POST /api/create-spotify-playlist", h.CreateSpotifyPlaylist)
}

// HealthCheck is a simple endpoint to verify the API is running.
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "message": "Tapestry is weaving 🧵"})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}
