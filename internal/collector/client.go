package collector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/BTreeMap/LeadPipe/internal/models"
)

// DefaultClientTimeout bounds one submission round trip.
const DefaultClientTimeout = 30 * time.Second

// Client submits to a remote collector endpoint.
type Client struct {
	url        string
	apiKey     string
	httpClient *http.Client
}

// ClientOption customizes a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(cl *Client) {
		if c != nil {
			cl.httpClient = c
		}
	}
}

// WithAPIKey sends the key in the apikey and Authorization headers.
func WithAPIKey(key string) ClientOption {
	return func(cl *Client) { cl.apiKey = key }
}

// NewClient creates a Client for the collector at url.
func NewClient(url string, opts ...ClientOption) *Client {
	c := &Client{
		url:        url,
		httpClient: &http.Client{Timeout: DefaultClientTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Submit posts the submission once. Any non-200 response or error body becomes an error.
func (c *Client) Submit(ctx context.Context, sub models.Submission) (models.Contact, error) {
	payload, err := json.Marshal(sub)
	if err != nil {
		return models.Contact{}, fmt.Errorf("failed to marshal submission: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return models.Contact{}, fmt.Errorf("failed to build collector request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("apikey", c.apiKey)
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		slog.Error("Client.Submit: request failed", "error", err, "url", c.url)
		return models.Contact{}, fmt.Errorf("collector request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxBodyBytes))
	if err != nil {
		return models.Contact{}, fmt.Errorf("failed to read collector response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr models.CollectorError
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Error != "" {
			return models.Contact{}, fmt.Errorf("collector returned %d: %s", resp.StatusCode, apiErr.Error)
		}
		return models.Contact{}, fmt.Errorf("collector returned %d", resp.StatusCode)
	}

	var out models.CollectorResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return models.Contact{}, fmt.Errorf("failed to decode collector response: %w", err)
	}
	if !out.Success {
		return models.Contact{}, fmt.Errorf("collector reported failure")
	}
	slog.Debug("Client.Submit: submission accepted", "id", out.Data.ID)
	return out.Data, nil
}
