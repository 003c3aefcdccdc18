package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"nftgate/internal/domain"
)

const defaultClientTimeout = 10 * time.Second

// Client delivers verification results to the bot process's callback
// endpoint and parses the acknowledgment.
type Client struct {
	url        string
	httpClient *http.Client
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithClientHTTPClient overrides the underlying HTTP client.
func WithClientHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// NewClient creates a webhook client posting to the given callback URL.
func NewClient(url string, opts ...ClientOption) *Client {
	c := &Client{
		url:        url,
		httpClient: &http.Client{Timeout: defaultClientTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Deliver posts the result and returns an error unless the receiver
// acknowledged with status "success".
func (c *Client) Deliver(ctx context.Context, res domain.VerificationResult) error {
	body, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("deliver result: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("result rejected: status %d", resp.StatusCode)
	}
	var ack statusResponse
	if err := json.NewDecoder(resp.Body).Decode(&ack); err != nil {
		return fmt.Errorf("decode acknowledgment: %w", err)
	}
	if ack.Status != "success" {
		return fmt.Errorf("result rejected: %q", ack.Message)
	}
	return nil
}
