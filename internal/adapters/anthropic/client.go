// Package anthropic adapts the Claude Messages API to the planner port. It
// builds the selection and composition prompts, extracts the structured
// payload from the reply, and maps transport failures to errors the core can
// recover from.
package anthropic

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/ewilliams-labs/tapestry/internal/core/domain"
	"github.com/ewilliams-labs/tapestry/internal/core/ports"
	"github.com/ewilliams-labs/tapestry/internal/logger"
)

const (
	defaultBaseURL = "https://api.anthropic.com"
	defaultModel   = "claude-sonnet-4-5"
	apiVersion     = "2023-06-01"

	selectMaxTokens  = 1000
	composeMaxTokens = 4096
)

// Client calls the Claude Messages API and implements ports.Planner.
type Client struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
	log        *logger.Logger
}

var _ ports.Planner = (*Client)(nil)

// NewClient constructs a planner client. timeout bounds each call so a hung
// planner never hangs the request; zero selects a 60s default.
func NewClient(baseURL, apiKey, model string, timeout time.Duration, log *logger.Logger) *Client {
	baseURL = strings.TrimRight(baseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if model == "" {
		model = defaultModel
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		baseURL:    baseURL,
		apiKey:     apiKey,
		model:      model,
		httpClient: &http.Client{Timeout: timeout},
		log:        log,
	}
}

type systemBlock struct {
	Type         string            `json:"type"`
	Text         string            `json:"text"`
	CacheControl map[string]string `json:"cache_control,omitempty"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messagesRequest struct {
	Model     string        `json:"model"`
	MaxTokens int           `json:"max_tokens"`
	System    []systemBlock `json:"system,omitempty"`
	Messages  []message     `json:"messages"`
}

type contentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type messagesResponse struct {
	Content []contentBlock `json:"content"`
	Error   *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// SelectSubVibes asks the planner for 15-25 sub-vibes relevant to the
// journey. The reply is expected to be a flat JSON array of names; when none
// can be extracted the call returns ports.ErrMalformedPlan so the selector
// can fail open.
func (c *Client) SelectSubVibes(ctx context.Context, journey domain.Journey, subVibes []domain.SubVibeSummary) ([]string, error) {
	listJSON, err := json.MarshalIndent(subVibes, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("anthropic: marshal sub-vibe list: %w", err)
	}

	prompt := fmt.Sprintf(`Given this emotional journey:
- Vibe: %q
- Current state: %q
- Desired destination: %q

And these %d sub-vibes with their coordinates and compositions:
%s

Identify 15-25 sub-vibes that are most relevant for creating a playlist journey from %q to %q.

Consider:
1. Sub-vibes that match the starting emotional state
2. Sub-vibes that match the destination
3. Sub-vibes that form a good path between them
4. The overall vibe %q

Return ONLY a JSON array of sub-vibe names, nothing else:
["sub-vibe-1", "sub-vibe-2", ...]`,
		journey.Vibe, journey.Now, journey.Going,
		len(subVibes), listJSON,
		journey.Now, journey.Going, journey.Vibe)

	text, err := c.complete(ctx, messagesRequest{
		Model:     c.model,
		MaxTokens: selectMaxTokens,
		Messages:  []message{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return nil, err
	}

	raw, ok := extractJSONArray(text)
	if !ok {
		return nil, fmt.Errorf("anthropic: no array in selection reply: %w", ports.ErrMalformedPlan)
	}
	var names []string
	if err := json.Unmarshal([]byte(raw), &names); err != nil {
		return nil, fmt.Errorf("anthropic: decode selection reply: %w", ports.ErrMalformedPlan)
	}
	return names, nil
}

const composerSystemPrompt = `You are an expert emotional playlist curator that specializes in creating personalized playlists by walking a 2D emotional manifold.

Each sub-vibe has x,y coordinates and is a weighted composition of central vibes. Songs are mapped from analysis of human-sourced listening discussions, not keyword matching.

EXTRAPOLATION MODE: You may extrapolate beyond the provided catalog songs by using your music knowledge to suggest songs that fit the manifold math. Requirements for extrapolated songs:
1. You MUST calculate and provide exact x,y coordinates on the manifold
2. You MUST specify the emotional composition (% of each central vibe)
3. You MUST name 2-3 nearby catalog songs from the manifest to anchor the extrapolation
4. You MUST explain the manifold reasoning (not just genre/keywords)
5. Mark with "extrapolated": true

Aim for 60-70% catalog songs + 30-40% extrapolated songs to balance human-sourced data with expanded discovery.

Your task: Create an emotional journey by walking the manifold from the user's current state to their desired destination.`

// ComposeJourney submits the bounded manifest and journey and parses the
// reply as a single JSON object with explanation, emotionalArc, and songs.
// Surrounding prose is tolerated by locating the outermost object boundary.
func (c *Client) ComposeJourney(ctx context.Context, journey domain.Journey, manifest domain.PlaylistManifest) (ports.PlanResult, error) {
	manifestJSON, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return ports.PlanResult{}, fmt.Errorf("anthropic: marshal manifest: %w", err)
	}

	prompt := fmt.Sprintf(`Create an emotional playlist journey based on the user's responses:

**Vibe**: %s
**Current State (Now)**: %s
**Desired Destination (Going)**: %s

Instructions:
1. Analyze the emotional arc: identify starting sub-vibe(s) near %q and destination sub-vibe(s) near %q
2. Use the 2D coordinates and emotional compositions to plot a path through the manifold
3. Select 10-12 songs total: ~60-70%% from the catalog manifest, ~30-40%% extrapolated from your music knowledge
4. For catalog songs: use those with strong reasoning that match the path
5. For extrapolated songs: calculate manifold position, specify emotional composition, and name nearby catalog songs
6. Consider the overall vibe %q as the journey's emotional character
7. Create a smooth progression - don't just dump extrapolated songs at the end

Return ONLY a JSON object (no markdown, no extra text):
{
  "explanation": "2-3 sentences explaining the emotional journey you created",
  "emotionalArc": "Brief narrative description of the progression through sub-vibes. IMPORTANT: Do NOT include any numeric coordinates or manifold positions in this text - keep it purely descriptive and narrative.",
  "songs": [
    {
      "track_id": "spotify:track:...",
      "artist": "Artist Name",
      "title": "Song Title",
      "sub_vibe": "Sub-Vibe Name",
      "meta_vibe": "Central Vibe",
      "confidence": 0.95,
      "context": "Brief context from listeners or user validation",
      "reasoning": "Why this song fits this moment in the journey",
      "extrapolated": false,
      "manifold_x": 0.23,
      "manifold_y": -0.45,
      "emotional_composition": {"Chill": 60, "Sad": 25, "Night": 15},
      "nearby_tapestry_songs": ["Artist - Song", "Artist - Song"]
    }
  ]
}

Notes:
- For catalog songs: extrapolated=false, you can omit manifold coordinates and nearby songs
- For extrapolated songs: extrapolated=true, MUST include manifold_x, manifold_y, emotional_composition, nearby_tapestry_songs
- Intersperse extrapolated songs throughout the journey, not just at beginning/end`,
		journey.Vibe, journey.Now, journey.Going,
		journey.Now, journey.Going, journey.Vibe)

	text, err := c.complete(ctx, messagesRequest{
		Model:     c.model,
		MaxTokens: composeMaxTokens,
		System: []systemBlock{
			{Type: "text", Text: composerSystemPrompt},
			{
				Type:         "text",
				Text:         fmt.Sprintf("<tapestry_manifest>\n%s\n</tapestry_manifest>", manifestJSON),
				CacheControl: map[string]string{"type": "ephemeral"},
			},
		},
		Messages: []message{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return ports.PlanResult{}, err
	}

	raw, ok := extractJSONObject(text)
	if !ok {
		c.log.Warn("no object in composition reply", "head", head(text, 200))
		return ports.PlanResult{}, fmt.Errorf("anthropic: no object in composition reply: %w", ports.ErrMalformedPlan)
	}
	var result ports.PlanResult
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		return ports.PlanResult{}, fmt.Errorf("anthropic: decode composition reply: %w", ports.ErrMalformedPlan)
	}
	return result, nil
}

func (c *Client) complete(ctx context.Context, payload messagesRequest) (string, error) {
	if c.apiKey == "" {
		return "", fmt.Errorf("anthropic: api key not configured")
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("anthropic: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("anthropic: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("anthropic-version", apiVersion)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("anthropic: request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("anthropic: read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// error bodies are usually JSON but proxies may return plain text
		var parsed messagesResponse
		if err := json.Unmarshal(raw, &parsed); err == nil && parsed.Error != nil {
			return "", fmt.Errorf("anthropic: %s: %s", parsed.Error.Type, parsed.Error.Message)
		}
		return "", fmt.Errorf("anthropic: unexpected status %d", resp.StatusCode)
	}

	var parsed messagesResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", fmt.Errorf("anthropic: decode response: %w", err)
	}

	for _, block := range parsed.Content {
		if block.Type == "text" && strings.TrimSpace(block.Text) != "" {
			return block.Text, nil
		}
	}
	return "", fmt.Errorf("anthropic: empty response")
}

func head(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
