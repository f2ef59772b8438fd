// Package spotify adapts the Spotify Web API to the metadata and playlist
// ports. Track metadata uses the client-credentials flow; playlist creation
// requires a user-scoped token and is never retried, so a flaky network
// cannot create the same playlist twice.
package spotify

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/ewilliams-labs/tapestry/internal/core/domain"
	"github.com/ewilliams-labs/tapestry/internal/core/ports"
	"github.com/ewilliams-labs/tapestry/internal/logger"
)

const (
	defaultBaseURL  = "https://api.spotify.com/v1"
	defaultTokenURL = "https://accounts.spotify.com/api/token"

	// metadataBatchSize is the Spotify /tracks endpoint's id limit.
	metadataBatchSize = 20
	// addTracksBatchSize is the playlist add-items limit per call.
	addTracksBatchSize = 100
)

// Config carries the adapter's credentials and tuning knobs.
type Config struct {
	ClientID     string
	ClientSecret string
	UserToken    string

	BaseURL     string        // defaults to the public API
	TokenURL    string        // defaults to the accounts service
	HTTPClient  *http.Client  // overrides the oauth2 transport (tests)
	MaxRetries  int
	BaseBackoff time.Duration
}

// Client talks to the Spotify Web API.
type Client struct {
	httpClient  *http.Client
	userClient  *http.Client
	userToken   string
	baseURL     string
	maxRetries  int
	baseBackoff time.Duration
	log         *logger.Logger
}

var (
	_ ports.MetadataProvider = (*Client)(nil)
	_ ports.PlaylistCreator  = (*Client)(nil)
)

// NewClient constructs the adapter. When no HTTP client is injected and app
// credentials are present, requests go through an oauth2 transport that
// fetches and refreshes the client-credentials token transparently.
func NewClient(cfg Config, log *logger.Logger) *Client {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	tokenURL := cfg.TokenURL
	if tokenURL == "" {
		tokenURL = defaultTokenURL
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		if cfg.ClientID != "" && cfg.ClientSecret != "" {
			cc := clientcredentials.Config{
				ClientID:     cfg.ClientID,
				ClientSecret: cfg.ClientSecret,
				TokenURL:     tokenURL,
			}
			httpClient = cc.Client(context.Background())
		} else {
			httpClient = http.DefaultClient
		}
	}

	return &Client{
		httpClient:  httpClient,
		userClient:  &http.Client{Timeout: 30 * time.Second},
		userToken:   cfg.UserToken,
		baseURL:     baseURL,
		maxRetries:  cfg.MaxRetries,
		baseBackoff: cfg.BaseBackoff,
		log:         log,
	}
}

// TracksMetadata fetches album art, album name, and preview URL for the
// given track ids in batches. A failed batch is logged and skipped, so one
// bad batch degrades the playlist's artwork rather than the playlist.
func (c *Client) TracksMetadata(ctx context.Context, ids []string) (map[string]ports.TrackMetadata, error) {
	out := make(map[string]ports.TrackMetadata, len(ids))

	for start := 0; start < len(ids); start += metadataBatchSize {
		end := start + metadataBatchSize
		if end > len(ids) {
			end = len(ids)
		}
		batch := make([]string, 0, end-start)
		for _, id := range ids[start:end] {
			batch = append(batch, domain.NormalizeTrackID(id))
		}

		if err := c.fetchBatch(ctx, batch, out); err != nil {
			if ctx.Err() != nil {
				return out, ctx.Err()
			}
			c.log.Warn("metadata batch failed", "from", start, "count", len(batch), "error", err)
		}
	}

	return out, nil
}

func (c *Client) fetchBatch(ctx context.Context, ids []string, out map[string]ports.TrackMetadata) error {
	q := url.Values{"ids": {strings.Join(ids, ",")}}
	reqURL := fmt.Sprintf("%s/tracks?%s", c.baseURL, q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("spotify adapter: %w", err)
	}

	resp, err := c.doRequestWithRetry(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("spotify adapter: status %d", resp.StatusCode)
	}

	var parsed tracksResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return fmt.Errorf("spotify adapter: decode tracks: %w", err)
	}

	for _, tr := range parsed.Tracks {
		if tr.ID == "" {
			continue
		}
		meta := ports.TrackMetadata{
			PreviewURL: tr.PreviewURL,
			AlbumName:  tr.Album.Name,
		}
		if len(tr.Album.Images) > 0 {
			meta.AlbumArt = tr.Album.Images[0].URL
		}
		out[tr.ID] = meta
	}
	return nil
}

// CreatePlaylist creates a private playlist on the token owner's account and
// adds the given track URIs in batches. No step is retried: a timeout after
// the create call must not produce a duplicate playlist.
func (c *Client) CreatePlaylist(ctx context.Context, params ports.CreatePlaylistParams) (ports.CreatedPlaylist, error) {
	if c.userToken == "" {
		return ports.CreatedPlaylist{}, fmt.Errorf("spotify adapter: user token not configured")
	}

	var user wireUser
	if err := c.userRequest(ctx, http.MethodGet, "/me", nil, &user); err != nil {
		return ports.CreatedPlaylist{}, fmt.Errorf("spotify adapter: resolve user: %w", err)
	}

	var playlist wirePlaylist
	createBody := createPlaylistRequest{
		Name:        params.Name,
		Description: params.Description,
		Public:      false,
	}
	path := fmt.Sprintf("/users/%s/playlists", url.PathEscape(user.ID))
	if err := c.userRequest(ctx, http.MethodPost, path, createBody, &playlist); err != nil {
		return ports.CreatedPlaylist{}, fmt.Errorf("spotify adapter: create playlist: %w", err)
	}

	for start := 0; start < len(params.TrackURIs); start += addTracksBatchSize {
		end := start + addTracksBatchSize
		if end > len(params.TrackURIs) {
			end = len(params.TrackURIs)
		}
		addBody := addTracksRequest{URIs: params.TrackURIs[start:end]}
		addPath := fmt.Sprintf("/playlists/%s/tracks", url.PathEscape(playlist.ID))
		if err := c.userRequest(ctx, http.MethodPost, addPath, addBody, nil); err != nil {
			return ports.CreatedPlaylist{}, fmt.Errorf("spotify adapter: add tracks: %w", err)
		}
	}

	created := ports.CreatedPlaylist{ID: playlist.ID, URL: playlist.ExternalURLs["spotify"]}
	c.log.Info("playlist created", "id", created.ID, "tracks", len(params.TrackURIs))
	return created, nil
}

// userRequest performs a single user-token call with no retry.
func (c *Client) userRequest(ctx context.Context, method, path string, body, out interface{}) error {
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.userToken)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.userClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("status %d", resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
