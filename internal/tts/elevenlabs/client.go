package elevenlabs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/acme/dialburst/internal/config"
	"github.com/acme/dialburst/internal/tts"
)

const defaultBaseURL = "https://api.elevenlabs.io"

// Client calls the ElevenLabs text-to-speech REST API.
type Client struct {
	apiKey       string
	baseURL      string
	defaultVoice string
	httpClient   *http.Client
}

// NewClient constructs a client from configuration.
func NewClient(cfg config.SynthesisConfig) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("elevenlabs: api key is required")
	}
	baseURL := cfg.APIBaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		apiKey:       cfg.APIKey,
		baseURL:      baseURL,
		defaultVoice: cfg.DefaultVoice,
		httpClient:   &http.Client{Timeout: timeout},
	}, nil
}

type synthesisRequest struct {
	Text    string `json:"text"`
	ModelID string `json:"model_id"`
}

// Synthesize generates MP3 audio for the given text and voice id. An empty
// voice falls back to the configured default.
func (c *Client) Synthesize(ctx context.Context, text, voice string) (tts.Result, error) {
	if text == "" {
		return tts.Result{}, fmt.Errorf("elevenlabs: empty text")
	}
	if voice == "" {
		voice = c.defaultVoice
	}
	if voice == "" {
		return tts.Result{}, fmt.Errorf("elevenlabs: no voice configured")
	}

	payload, err := json.Marshal(synthesisRequest{Text: text, ModelID: "eleven_monolingual_v1"})
	if err != nil {
		return tts.Result{}, fmt.Errorf("elevenlabs: marshal request: %w", err)
	}

	reqURL := fmt.Sprintf("%s/v1/text-to-speech/%s", c.baseURL, url.PathEscape(voice))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, bytes.NewReader(payload))
	if err != nil {
		return tts.Result{}, fmt.Errorf("elevenlabs: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "audio/mpeg")
	req.Header.Set("xi-api-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return tts.Result{}, fmt.Errorf("elevenlabs: request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return tts.Result{}, fmt.Errorf("elevenlabs: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return tts.Result{}, fmt.Errorf("elevenlabs: api error (%d): %s", resp.StatusCode, truncate(body, 200))
	}

	return tts.Result{Audio: body, ContentType: "audio/mpeg"}, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
