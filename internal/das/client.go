package das

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync/atomic"
	"time"

	"nftgate/internal/domain"
	"nftgate/internal/observability"
)

// Default configuration values.
const (
	DefaultEndpoint = "https://mainnet.helius-rpc.com"
	DefaultTimeout  = 30 * time.Second
)

// Client implements AssetFetcher using HTTP JSON-RPC 2.0 against a DAS
// endpoint. Failures are not retried here: the verification cache never
// stores an errored fetch, so the next verification attempt retries
// naturally.
type Client struct {
	endpoint  string
	apiKey    string
	client    *http.Client
	requestID atomic.Uint64
}

// ClientOption configures Client.
type ClientOption func(*Client)

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.client.Timeout = d
	}
}

// WithHTTPClient sets a custom http.Client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		c.client = client
	}
}

// WithAPIKey sets the api-key query parameter appended to the endpoint.
func WithAPIKey(key string) ClientOption {
	return func(c *Client) {
		c.apiKey = key
	}
}

// NewClient creates a DAS API client. An empty endpoint selects the
// default mainnet endpoint.
func NewClient(endpoint string, opts ...ClientOption) *Client {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	c := &Client{
		endpoint: endpoint,
		client:   &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

var _ AssetFetcher = (*Client)(nil)

// rpcRequest represents a JSON-RPC 2.0 request.
type rpcRequest struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      uint64      `json:"id"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params,omitempty"`
}

// rpcResponse represents a JSON-RPC 2.0 response.
type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      uint64          `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

// rpcError represents a JSON-RPC 2.0 error.
type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// searchAssetsParams is the request payload for the searchAssets method.
type searchAssetsParams struct {
	OwnerAddress string `json:"ownerAddress"`
}

// searchAssetsResult is the raw RPC result for searchAssets.
type searchAssetsResult struct {
	Total int                  `json:"total"`
	Items []domain.AssetRecord `json:"items"`
}

// AssetsByOwner issues one searchAssets call for the wallet and returns
// every asset record the indexer reports.
func (c *Client) AssetsByOwner(ctx context.Context, owner string) ([]domain.AssetRecord, error) {
	start := time.Now()
	items, err := c.searchAssets(ctx, owner)
	if err != nil {
		observability.RecordDASRequest("error", time.Since(start).Seconds())
		return nil, err
	}
	observability.RecordDASRequest("ok", time.Since(start).Seconds())
	return items, nil
}

func (c *Client) searchAssets(ctx context.Context, owner string) ([]domain.AssetRecord, error) {
	reqBody := rpcRequest{
		JSONRPC: "2.0",
		ID:      c.requestID.Add(1),
		Method:  "searchAssets",
		Params:  searchAssetsParams{OwnerAddress: owner},
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, &TransportError{Cause: "marshal request", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.requestURL(), bytes.NewReader(body))
	if err != nil {
		return nil, &TransportError{Cause: "create request", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &TransportError{Cause: fmt.Sprintf("http request: %v", err), Err: err}
	}

	respBody, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return nil, &TransportError{StatusCode: resp.StatusCode, Cause: fmt.Sprintf("read response: %v", err), Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &TransportError{StatusCode: resp.StatusCode, Cause: fmt.Sprintf("unexpected status: %s", string(respBody))}
	}

	var rpcResp rpcResponse
	if err := json.Unmarshal(respBody, &rpcResp); err != nil {
		return nil, &TransportError{StatusCode: resp.StatusCode, Cause: fmt.Sprintf("unmarshal response: %v", err), Err: err}
	}

	if rpcResp.Error != nil {
		return nil, &TransportError{StatusCode: resp.StatusCode, Cause: fmt.Sprintf("RPC error %d: %s", rpcResp.Error.Code, rpcResp.Error.Message)}
	}

	if rpcResp.Result == nil {
		return nil, &TransportError{StatusCode: resp.StatusCode, Cause: "missing result envelope"}
	}

	var result searchAssetsResult
	if err := json.Unmarshal(rpcResp.Result, &result); err != nil {
		return nil, &TransportError{StatusCode: resp.StatusCode, Cause: fmt.Sprintf("unmarshal result: %v", err), Err: err}
	}

	if result.Items == nil {
		return nil, &TransportError{StatusCode: resp.StatusCode, Cause: "malformed result: no items field"}
	}

	return result.Items, nil
}

// requestURL appends the api-key query parameter when configured.
func (c *Client) requestURL() string {
	if c.apiKey == "" {
		return c.endpoint
	}
	return c.endpoint + "/?api-key=" + url.QueryEscape(c.apiKey)
}
