package rest

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"
)

type staticToken string

func (s staticToken) Token() string { return string(s) }

func testClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c, err := New(srv.URL, staticToken("tok-abc"), zap.NewNop())
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return c
}

func TestLogin(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/token" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["username"] != "alice" || body["password"] != "hunter2" {
			t.Errorf("credentials not forwarded: %v", body)
		}
		_ = json.NewEncoder(w).Encode(LoginResult{Token: "jwt-xyz", UserID: 7, Username: "alice"})
	}))

	res, err := c.Login(context.Background(), "alice", "hunter2")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if res.Token != "jwt-xyz" || res.UserID != 7 {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestLoginRejectsIncompleteResponse(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"token": "jwt-xyz"})
	}))

	if _, err := c.Login(context.Background(), "alice", "pw"); err == nil {
		t.Fatal("expected validation error for response without user_id")
	}
}

func TestConversations(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer tok-abc" {
			t.Errorf("missing bearer token, got %q", got)
		}
		_ = json.NewEncoder(w).Encode([]Conversation{
			{ID: 1, PeerID: 2, PeerUsername: "bob", UnreadCount: 3},
		})
	}))

	convs, err := c.Conversations(context.Background())
	if err != nil {
		t.Fatalf("conversations: %v", err)
	}
	if len(convs) != 1 || convs[0].PeerUsername != "bob" || convs[0].UnreadCount != 3 {
		t.Fatalf("unexpected list: %+v", convs)
	}
}

func TestConversationsRejectsMalformedEntry(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Second entry has no peer_id.
		_, _ = w.Write([]byte(`[{"id":1,"peer_id":2},{"id":5}]`))
	}))

	if _, err := c.Conversations(context.Background()); err == nil {
		t.Fatal("expected error for conversation without peer_id")
	}
}

func TestMessagesPagination(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/dm/conversations/9/messages" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.URL.Query().Get("before_id") != "100" || r.URL.Query().Get("limit") != "25" {
			t.Errorf("unexpected query %s", r.URL.RawQuery)
		}
		_ = json.NewEncoder(w).Encode([]Message{
			{ID: 99, ConversationID: 9, SenderID: 2, RecipientID: 7, Body: "older", SentAt: 1000},
		})
	}))

	msgs, err := c.Messages(context.Background(), 9, 100, 25)
	if err != nil {
		t.Fatalf("messages: %v", err)
	}
	if len(msgs) != 1 || msgs[0].ID != 99 {
		t.Fatalf("unexpected page: %+v", msgs)
	}
}

func TestSendValidation(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("request should not reach the server")
	}))

	cases := []struct {
		name string
		req  SendRequest
	}{
		{"neither target", SendRequest{Body: "hi"}},
		{"both targets", SendRequest{ConversationID: 1, Recipient: "bob", Body: "hi"}},
		{"empty payload", SendRequest{ConversationID: 1}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := c.Send(context.Background(), tc.req); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestSendFirstContact(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req SendRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.Recipient != "carol" || req.ConversationID != 0 {
			t.Errorf("unexpected request: %+v", req)
		}
		// Server mints a fresh conversation.
		_ = json.NewEncoder(w).Encode(Message{
			ID: 500, ConversationID: 42, SenderID: 7, RecipientID: 13,
			Body: req.Body, SentAt: 2000,
		})
	}))

	msg, err := c.Send(context.Background(), SendRequest{Recipient: "carol", Body: "hello"})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if msg.ConversationID != 42 || msg.ID != 500 {
		t.Fatalf("minted ids not returned: %+v", msg)
	}
}

func TestMarkRead(t *testing.T) {
	var called bool
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost && r.URL.Path == "/api/dm/conversations/3/read" {
			called = true
			w.WriteHeader(http.StatusNoContent)
			return
		}
		t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
	}))

	if err := c.MarkRead(context.Background(), 3); err != nil {
		t.Fatalf("mark read: %v", err)
	}
	if !called {
		t.Fatal("read receipt never sent")
	}
}

func TestUnauthorized(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))

	_, err := c.Conversations(context.Background())
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestAPIError(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"error":"recipient not found"}`))
	}))

	_, err := c.Send(context.Background(), SendRequest{Recipient: "ghost", Body: "hi"})
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Status != 422 || apiErr.Message != "recipient not found" {
		t.Fatalf("unexpected error: %+v", apiErr)
	}
}

func TestUploadMediaSizeCap(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("oversized upload should not reach the server")
	}))

	path := filepath.Join(t.TempDir(), "big.bin")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := f.Truncate(MaxMediaBytes + 1); err != nil {
		t.Fatalf("truncate: %v", err)
	}
	_ = f.Close()

	if _, err := c.UploadMedia(context.Background(), path); err == nil {
		t.Fatal("expected size cap error")
	}
}

func TestUploadMedia(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse multipart: %v", err)
		}
		f, hdr, err := r.FormFile("file")
		if err != nil {
			t.Errorf("form file: %v", err)
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		defer func() { _ = f.Close() }()
		if hdr.Filename != "pic.png" {
			t.Errorf("unexpected filename %q", hdr.Filename)
		}
		_ = json.NewEncoder(w).Encode(MediaFile{ID: 77, Filename: hdr.Filename, Size: hdr.Size})
	}))

	path := filepath.Join(t.TempDir(), "pic.png")
	if err := os.WriteFile(path, []byte("not really a png"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	file, err := c.UploadMedia(context.Background(), path)
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if file.ID != 77 {
		t.Fatalf("unexpected media id %d", file.ID)
	}
}

func TestFeed(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode([]Post{
			{ID: 1, Hub: "golang", Title: "local post", Author: "alice", Source: "local", PostedAt: 100},
			{ID: 2, Hub: "mirror", Title: "reddit post", Author: "someone", Source: "reddit", Score: 50, PostedAt: 200},
		})
	}))

	posts, err := c.Feed(context.Background(), 50)
	if err != nil {
		t.Fatalf("feed: %v", err)
	}
	if len(posts) != 2 || posts[1].Source != "reddit" {
		t.Fatalf("unexpected feed: %+v", posts)
	}
}

func TestFeedRejectsUnknownSource(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"id":1,"title":"x","source":"martian"}]`))
	}))

	if _, err := c.Feed(context.Background(), 10); err == nil {
		t.Fatal("expected error for unknown post source")
	}
}

func TestHubs(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/hubs" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode([]Hub{
			{Name: "golang", Title: "Go", Source: "local", PostCount: 12},
			{Name: "programming", Title: "r/programming mirror", Source: "reddit", PostCount: 340},
		})
	}))

	hubs, err := c.Hubs(context.Background())
	if err != nil {
		t.Fatalf("hubs: %v", err)
	}
	if len(hubs) != 2 || hubs[1].Source != "reddit" {
		t.Fatalf("unexpected hubs: %+v", hubs)
	}
}

func TestHubsRejectsMissingName(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"title":"nameless","source":"local"}]`))
	}))

	if _, err := c.Hubs(context.Background()); err == nil {
		t.Fatal("expected error for hub without name")
	}
}
