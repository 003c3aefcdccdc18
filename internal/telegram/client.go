// Package telegram is a thin Telegram Bot API client covering the
// group-admin surface: sending messages, kicking members, and long
// polling for membership updates.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// DefaultBaseURL is the Telegram Bot API endpoint.
const DefaultBaseURL = "https://api.telegram.org"

// Member statuses returned by getChatMember.
const (
	StatusCreator       = "creator"
	StatusAdministrator = "administrator"
	StatusMember        = "member"
	StatusLeft          = "left"
	StatusKicked        = "kicked"
)

// Client calls the Telegram Bot API over HTTP.
type Client struct {
	token      string
	baseURL    string
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the API endpoint.
func WithBaseURL(url string) Option {
	return func(c *Client) {
		c.baseURL = url
	}
}

// WithHTTPClient overrides the underlying HTTP client. The client's
// timeout must exceed the long-poll timeout passed to GetUpdates.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// NewClient creates a Bot API client for the given bot token.
func NewClient(token string, opts ...Option) *Client {
	c := &Client{
		token:      token,
		baseURL:    DefaultBaseURL,
		httpClient: &http.Client{Timeout: 65 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type apiResponse struct {
	OK          bool            `json:"ok"`
	Result      json.RawMessage `json:"result"`
	Description string          `json:"description"`
}

func (c *Client) call(ctx context.Context, method string, params any, result any) error {
	body, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("marshal %s params: %w", method, err)
	}

	url := fmt.Sprintf("%s/bot%s/%s", c.baseURL, c.token, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s request: %w", method, err)
	}
	defer resp.Body.Close()

	var envelope apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("decode %s response: %w", method, err)
	}
	if !envelope.OK {
		return fmt.Errorf("%s failed: %s", method, envelope.Description)
	}
	if result != nil {
		if err := json.Unmarshal(envelope.Result, result); err != nil {
			return fmt.Errorf("decode %s result: %w", method, err)
		}
	}
	return nil
}

// SendMessage sends a text message to a chat.
func (c *Client) SendMessage(ctx context.Context, chatID int64, text string) error {
	return c.call(ctx, "sendMessage", map[string]any{
		"chat_id": chatID,
		"text":    text,
	}, nil)
}

// BanMember bans a user from a chat.
func (c *Client) BanMember(ctx context.Context, chatID, userID int64) error {
	return c.call(ctx, "banChatMember", map[string]any{
		"chat_id": chatID,
		"user_id": userID,
	}, nil)
}

// UnbanMember lifts a ban so the user may rejoin.
func (c *Client) UnbanMember(ctx context.Context, chatID, userID int64) error {
	return c.call(ctx, "unbanChatMember", map[string]any{
		"chat_id":        chatID,
		"user_id":        userID,
		"only_if_banned": true,
	}, nil)
}

// GetMemberStatus returns the user's membership status in the chat.
func (c *Client) GetMemberStatus(ctx context.Context, chatID, userID int64) (string, error) {
	var member struct {
		Status string `json:"status"`
	}
	err := c.call(ctx, "getChatMember", map[string]any{
		"chat_id": chatID,
		"user_id": userID,
	}, &member)
	if err != nil {
		return "", err
	}
	return member.Status, nil
}

// GetUpdates long-polls for updates after the given offset.
func (c *Client) GetUpdates(ctx context.Context, offset int64, timeout time.Duration) ([]Update, error) {
	var updates []Update
	err := c.call(ctx, "getUpdates", map[string]any{
		"offset":          offset,
		"timeout":         int(timeout.Seconds()),
		"allowed_updates": []string{"message"},
	}, &updates)
	if err != nil {
		return nil, err
	}
	return updates, nil
}

// AdminNotifier sends fire-and-forget notifications to an admin chat.
// A zero chat ID disables delivery.
type AdminNotifier struct {
	client *Client
	chatID int64
	logger *slog.Logger
}

// NewAdminNotifier creates a notifier targeting the given chat.
func NewAdminNotifier(client *Client, chatID int64, logger *slog.Logger) *AdminNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &AdminNotifier{client: client, chatID: chatID, logger: logger}
}

// Notify delivers the text, logging and swallowing any failure.
func (n *AdminNotifier) Notify(ctx context.Context, text string) {
	if n.chatID == 0 {
		return
	}
	if err := n.client.SendMessage(ctx, n.chatID, text); err != nil {
		n.logger.Warn("admin notification failed", "error", err)
	}
}
