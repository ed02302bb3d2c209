// Package relay talks to a chat relay service over HTTP.
package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/SeeWhatSticks/task-mistress/internal/platform"
)

// Client is a platform.Client backed by the relay HTTP API.
type Client struct {
	BaseURL     string
	BearerToken string
	// HTTPClient is shared by concurrent calls; set it before first use.
	HTTPClient *http.Client
}

var _ platform.Client = (*Client)(nil)

const DefaultTimeout = 10 * time.Second

// New creates a client with sane defaults. A timeout of zero or less means
// DefaultTimeout.
func New(baseURL, token string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		BaseURL:     baseURL,
		BearerToken: token,
		HTTPClient:  &http.Client{Timeout: timeout},
	}
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("relay error: status=%d body=%s", e.StatusCode, e.Body)
}

type sendResponse struct {
	ID string `json:"id"`
}

func (c *Client) FetchMessage(ctx context.Context, id string) (platform.Message, error) {
	var msg platform.Message
	err := c.do(ctx, "fetch_message", http.MethodGet, "messages/"+url.PathEscape(id), nil, &msg)
	return msg, err
}

func (c *Client) EditMessage(ctx context.Context, id string, content platform.Content) error {
	return c.do(ctx, "edit_message", http.MethodPatch, "messages/"+url.PathEscape(id), map[string]any{"content": content}, nil)
}

func (c *Client) DeleteMessage(ctx context.Context, id string) error {
	return c.do(ctx, "delete_message", http.MethodDelete, "messages/"+url.PathEscape(id), nil, nil)
}

func (c *Client) AddReaction(ctx context.Context, id, emoji string) error {
	return c.do(ctx, "add_reaction", http.MethodPut, reactionPath(id, emoji), nil, nil)
}

func (c *Client) ClearReactions(ctx context.Context, id string) error {
	return c.do(ctx, "clear_reactions", http.MethodDelete, fmt.Sprintf("messages/%s/reactions", url.PathEscape(id)), nil, nil)
}

func (c *Client) RemoveReaction(ctx context.Context, id, emoji, userID string) error {
	return c.do(ctx, "remove_reaction", http.MethodDelete, reactionPath(id, emoji)+"/"+url.PathEscape(userID), nil, nil)
}

func (c *Client) FetchUser(ctx context.Context, id string) (platform.User, error) {
	var u platform.User
	err := c.do(ctx, "fetch_user", http.MethodGet, "users/"+url.PathEscape(id), nil, &u)
	return u, err
}

func (c *Client) Send(ctx context.Context, channelID string, content platform.Content) (string, error) {
	var resp sendResponse
	err := c.do(ctx, "send", http.MethodPost, fmt.Sprintf("channels/%s/messages", url.PathEscape(channelID)), map[string]any{"content": content}, &resp)
	if err != nil {
		return "", err
	}
	if resp.ID == "" {
		return "", platform.NewError(platform.KindOther, "send", errors.New("relay returned no message id"))
	}
	return resp.ID, nil
}

func reactionPath(id, emoji string) string {
	return fmt.Sprintf("messages/%s/reactions/%s", url.PathEscape(id), url.PathEscape(emoji))
}

func (c *Client) do(ctx context.Context, op, method, endpoint string, body any, out any) error {
	hc := c.HTTPClient
	if hc == nil {
		hc = http.DefaultClient
	}
	target := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return platform.NewError(platform.KindOther, op, err)
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, target, &buf)
	if err != nil {
		return platform.NewError(platform.KindOther, op, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.BearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	}
	resp, err := hc.Do(req)
	if err != nil {
		return platform.NewError(platform.KindOther, op, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		apiErr := &APIError{StatusCode: resp.StatusCode, Body: string(b)}
		return platform.NewError(kindForStatus(resp.StatusCode), op, apiErr)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return platform.NewError(platform.KindOther, op, fmt.Errorf("decode response: %w", err))
		}
	}
	return nil
}

func kindForStatus(status int) platform.ErrorKind {
	switch status {
	case http.StatusForbidden:
		return platform.KindForbidden
	case http.StatusNotFound, http.StatusGone:
		return platform.KindNotFound
	default:
		return platform.KindOther
	}
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}
