// Package livepeer is the thin forward to the live-video provider's REST
// API. It is a collaborator of the core, stubbed behind the Client interface.
package livepeer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/vistream/backend/config"
)

// Stream is the provider's view of a provisioned stream.
type Stream struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	StreamKey   string `json:"streamKey"`
	PlaybackID  string `json:"playbackId"`
	IsActive    bool   `json:"isActive"`
	Record      bool   `json:"record"`
	RTMPIngest  string `json:"rtmpIngestUrl"`
	PlaybackURL string `json:"playbackUrl"`
}

// Client is the live-video provider surface the callable operations need.
type Client interface {
	CreateStream(ctx context.Context, name string, record bool) (*Stream, error)
	GetStream(ctx context.Context, streamID string) (*Stream, error)
	DeleteStream(ctx context.Context, streamID string) error
	// DeleteAsset removes a VOD asset; deleting an unknown asset is an error
	// the caller maps to not-found.
	DeleteAsset(ctx context.Context, assetID string) error
}

// ProviderError is a structured provider failure the UI can render.
type ProviderError struct {
	StatusCode int
	Message    string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("livepeer error (%d): %s", e.StatusCode, e.Message)
}

// NotFound reports whether the provider answered 404.
func (e *ProviderError) NotFound() bool { return e.StatusCode == http.StatusNotFound }

// HTTPClient talks to the Livepeer Studio REST API with bearer auth.
type HTTPClient struct {
	cfg  config.LivepeerConfig
	http *http.Client
}

// NewHTTPClient creates the live-video REST client.
func NewHTTPClient(cfg config.LivepeerConfig) *HTTPClient {
	return &HTTPClient{
		cfg:  cfg,
		http: &http.Client{Timeout: 15 * time.Second},
	}
}

// CreateStream provisions a stream, optionally with recording enabled.
func (c *HTTPClient) CreateStream(ctx context.Context, name string, record bool) (*Stream, error) {
	body := map[string]interface{}{
		"name":   name,
		"record": record,
	}
	var out Stream
	if err := c.do(ctx, http.MethodPost, "/stream", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetStream returns the provider's current view of a stream.
func (c *HTTPClient) GetStream(ctx context.Context, streamID string) (*Stream, error) {
	var out Stream
	if err := c.do(ctx, http.MethodGet, "/stream/"+streamID, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteStream removes a stream on the provider.
func (c *HTTPClient) DeleteStream(ctx context.Context, streamID string) error {
	return c.do(ctx, http.MethodDelete, "/stream/"+streamID, nil, nil)
}

// DeleteAsset removes a VOD asset on the provider.
func (c *HTTPClient) DeleteAsset(ctx context.Context, assetID string) error {
	return c.do(ctx, http.MethodDelete, "/asset/"+assetID, nil, nil)
}

func (c *HTTPClient) do(ctx context.Context, method, path string, body interface{}, out interface{}) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal body: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("livepeer request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= 400 {
		var apiErr struct {
			Errors []string `json:"errors"`
		}
		_ = json.Unmarshal(raw, &apiErr)
		msg := ""
		if len(apiErr.Errors) > 0 {
			msg = apiErr.Errors[0]
		}
		return &ProviderError{StatusCode: resp.StatusCode, Message: msg}
	}
	if out != nil && len(raw) > 0 {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

var _ Client = (*HTTPClient)(nil)
