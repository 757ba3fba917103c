package local

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"
)

// Client talks to a running daemon over its Unix socket.
type Client struct {
	http *http.Client
}

// NewClient creates a client for the daemon at the given socket path. The
// host in request URLs is a placeholder; all traffic goes over the socket.
func NewClient(socketPath string) *Client {
	return &Client{
		http: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
					var d net.Dialer
					return d.DialContext(ctx, "unix", socketPath)
				},
			},
		},
	}
}

// Ping reports whether a daemon is answering on the socket.
func (c *Client) Ping(ctx context.Context) bool {
	_, err := c.Status(ctx)
	return err == nil
}

func (c *Client) Status(ctx context.Context) (*StatusResponse, error) {
	var out StatusResponse
	if err := c.do(ctx, http.MethodGet, "/v1/status", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Login(ctx context.Context, username, password string) (*LoginResponse, error) {
	var out LoginResponse
	req := LoginRequest{Username: username, Password: password}
	if err := c.do(ctx, http.MethodPost, "/v1/login", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Logout(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/v1/logout", nil, nil)
}

func (c *Client) Conversations(ctx context.Context) (*ConversationsResponse, error) {
	var out ConversationsResponse
	if err := c.do(ctx, http.MethodGet, "/v1/conversations", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Messages(ctx context.Context, conversationID, beforeTs int64, limit int) (*MessagesResponse, error) {
	path := fmt.Sprintf("/v1/conversations/%d/messages", conversationID)
	if beforeTs > 0 || limit > 0 {
		path += "?before_ts=" + strconv.FormatInt(beforeTs, 10) + "&limit=" + strconv.Itoa(limit)
	}
	var out MessagesResponse
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Open marks a conversation as on screen; the daemon zeroes its unread
// count and posts the read receipt.
func (c *Client) Open(ctx context.Context, conversationID int64) error {
	path := fmt.Sprintf("/v1/conversations/%d/open", conversationID)
	return c.do(ctx, http.MethodPost, path, nil, nil)
}

func (c *Client) Send(ctx context.Context, req SendRequest) (*SendResponse, error) {
	var out SendResponse
	if err := c.do(ctx, http.MethodPost, "/v1/send", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Feed(ctx context.Context, limit int) (*FeedResponse, error) {
	path := "/v1/feed"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	var out FeedResponse
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Hubs(ctx context.Context) (*HubsResponse, error) {
	var out HubsResponse
	if err := c.do(ctx, http.MethodGet, "/v1/hubs", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Thread(ctx context.Context, postID int64) (*ThreadResponse, error) {
	var out ThreadResponse
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/v1/thread/%d", postID), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, "http://nudged"+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("daemon request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		var apiErr ErrorResponse
		if json.NewDecoder(resp.Body).Decode(&apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("daemon: %s", apiErr.Error)
		}
		return fmt.Errorf("daemon returned %d", resp.StatusCode)
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode daemon response: %w", err)
	}
	return nil
}
