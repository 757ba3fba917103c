package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"
)

// ErrUnauthorized is returned when the server rejects the bearer token.
// Callers use it to move the session to the auth-required state instead of
// retrying with a dead token.
var ErrUnauthorized = errors.New("unauthorized")

// APIError carries a non-2xx server response.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.Status, e.Message)
}

// TokenSource provides the current bearer token. Implemented by
// account.TokenStore. An empty token means nobody is logged in.
type TokenSource interface {
	Token() string
}

// Client talks to the OmniNudge backend REST API.
type Client struct {
	base   *url.URL
	http   *http.Client
	tokens TokenSource
	log    *zap.Logger
}

// New creates a REST client for the given server URL.
func New(serverURL string, tokens TokenSource, log *zap.Logger) (*Client, error) {
	base, err := url.Parse(serverURL)
	if err != nil {
		return nil, fmt.Errorf("parse server url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("server url must be http(s), got %q", serverURL)
	}
	return &Client{
		base:   base,
		http:   &http.Client{Timeout: 30 * time.Second},
		tokens: tokens,
		log:    log.Named("rest"),
	}, nil
}

// BaseURL returns the configured server URL.
func (c *Client) BaseURL() *url.URL { return c.base }

// Login exchanges credentials for a bearer token. The token is returned to
// the caller, not stored; persisting it is the session's job.
func (c *Client) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	body := map[string]string{"username": username, "password": password}
	var result LoginResult
	if err := c.do(ctx, http.MethodPost, "/api/token", nil, body, &result, false); err != nil {
		return nil, err
	}
	if err := result.Validate(); err != nil {
		return nil, fmt.Errorf("invalid login response: %w", err)
	}
	return &result, nil
}

// Logout invalidates the current token server-side.
func (c *Client) Logout(ctx context.Context) error {
	return c.do(ctx, http.MethodDelete, "/api/token", nil, nil, nil, true)
}

// Conversations fetches the full conversation list, server-ordered by most
// recent activity.
func (c *Client) Conversations(ctx context.Context) ([]Conversation, error) {
	var convs []Conversation
	if err := c.do(ctx, http.MethodGet, "/api/dm/conversations", nil, nil, &convs, true); err != nil {
		return nil, err
	}
	for i := range convs {
		if err := convs[i].Validate(); err != nil {
			return nil, fmt.Errorf("invalid conversation in list: %w", err)
		}
	}
	return convs, nil
}

// Messages fetches a page of a conversation's messages, newest first.
// beforeID narrows to messages older than that id; zero means latest page.
func (c *Client) Messages(ctx context.Context, conversationID, beforeID int64, limit int) ([]Message, error) {
	q := url.Values{}
	if beforeID > 0 {
		q.Set("before_id", strconv.FormatInt(beforeID, 10))
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	path := fmt.Sprintf("/api/dm/conversations/%d/messages", conversationID)
	var msgs []Message
	if err := c.do(ctx, http.MethodGet, path, q, nil, &msgs, true); err != nil {
		return nil, err
	}
	for i := range msgs {
		if err := msgs[i].Validate(); err != nil {
			return nil, fmt.Errorf("invalid message in page: %w", err)
		}
	}
	return msgs, nil
}

// Send posts a new message and returns the server's copy, which carries the
// minted message id and, for first-contact sends, the minted conversation id.
func (c *Client) Send(ctx context.Context, req SendRequest) (*Message, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	var msg Message
	if err := c.do(ctx, http.MethodPost, "/api/dm/messages", nil, req, &msg, true); err != nil {
		return nil, err
	}
	if err := msg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid send response: %w", err)
	}
	return &msg, nil
}

// MarkRead posts a read receipt for a conversation.
func (c *Client) MarkRead(ctx context.Context, conversationID int64) error {
	path := fmt.Sprintf("/api/dm/conversations/%d/read", conversationID)
	return c.do(ctx, http.MethodPost, path, nil, nil, nil, true)
}

// Feed fetches the blended front page.
func (c *Client) Feed(ctx context.Context, limit int) ([]Post, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	var posts []Post
	if err := c.do(ctx, http.MethodGet, "/api/feed", q, nil, &posts, true); err != nil {
		return nil, err
	}
	for i := range posts {
		if err := posts[i].Validate(); err != nil {
			return nil, fmt.Errorf("invalid post in feed: %w", err)
		}
	}
	return posts, nil
}

// Hubs fetches the list of communities.
func (c *Client) Hubs(ctx context.Context) ([]Hub, error) {
	var hubs []Hub
	if err := c.do(ctx, http.MethodGet, "/api/hubs", nil, nil, &hubs, true); err != nil {
		return nil, err
	}
	for i := range hubs {
		if err := hubs[i].Validate(); err != nil {
			return nil, fmt.Errorf("invalid hub in list: %w", err)
		}
	}
	return hubs, nil
}

// Thread fetches a mirrored Reddit thread through the server's proxy. The
// raw body is returned for the reddit package to decode; the proxy passes
// Reddit's listing pair through unchanged.
func (c *Client) Thread(ctx context.Context, postID int64) ([]byte, error) {
	path := fmt.Sprintf("/api/reddit/thread/%d", postID)
	req, err := c.newRequest(ctx, http.MethodGet, path, nil, nil, true)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if err := checkStatus(resp); err != nil {
		return nil, err
	}
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read thread body: %w", err)
	}
	return raw, nil
}

const maxResponseBytes = 8 << 20

func (c *Client) newRequest(ctx context.Context, method, path string, query url.Values, body any, authed bool) (*http.Request, error) {
	u := c.base.JoinPath(path)
	if query != nil {
		u.RawQuery = query.Encode()
	}

	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if authed {
		token := c.tokens.Token()
		if token == "" {
			return nil, ErrUnauthorized
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req, nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any, authed bool) error {
	req, err := c.newRequest(ctx, method, path, query, body, authed)
	if err != nil {
		return err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if err := checkStatus(resp); err != nil {
		c.log.Debug("request rejected",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", resp.StatusCode))
		return err
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	return decodeJSON(resp.Body, out)
}

func decodeJSON(r io.Reader, out any) error {
	if err := json.NewDecoder(io.LimitReader(r, maxResponseBytes)).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func checkStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	if resp.StatusCode == http.StatusUnauthorized {
		_, _ = io.Copy(io.Discard, resp.Body)
		return ErrUnauthorized
	}
	var apiErr struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	msg := ""
	if json.Unmarshal(raw, &apiErr) == nil {
		if apiErr.Error != "" {
			msg = apiErr.Error
		} else {
			msg = apiErr.Message
		}
	}
	if msg == "" {
		msg = string(raw)
	}
	return &APIError{Status: resp.StatusCode, Message: msg}
}
