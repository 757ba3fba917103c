// Package local defines the daemon's JSON API over the account's Unix
// socket: the wire types and the client used by the TUI and the CLI.
package local

// StatusResponse reports the daemon's view of the session.
type StatusResponse struct {
	Account  string `json:"account"`
	State    string `json:"state"`
	LoggedIn bool   `json:"logged_in"`
	UserID   int64  `json:"user_id,omitempty"`
	Username string `json:"username,omitempty"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	UserID   int64  `json:"user_id"`
	Username string `json:"username"`
}

// Conversation mirrors the cached conversation row.
type Conversation struct {
	ID           int64  `json:"id"`
	PeerID       int64  `json:"peer_id"`
	PeerUsername string `json:"peer_username"`
	UnreadCount  int    `json:"unread_count"`
	LastBody     string `json:"last_body"`
	LastSenderID int64  `json:"last_sender_id"`
	LastAt       int64  `json:"last_at"`
}

// ConversationsResponse carries the list plus where it came from: "server"
// when the daemon reconciled against the backend, "cache" when offline.
type ConversationsResponse struct {
	Conversations []Conversation `json:"conversations"`
	Source        string         `json:"source"`
}

// Message mirrors the cached message row. MsgID is the server id as a
// decimal string, or the client ref while a send is pending.
type Message struct {
	MsgID          string `json:"msg_id"`
	ConversationID int64  `json:"conversation_id"`
	SenderID       int64  `json:"sender_id"`
	SenderName     string `json:"sender_name"`
	Body           string `json:"body"`
	MediaID        int64  `json:"media_id,omitempty"`
	Status         string `json:"status"`
	SentAt         int64  `json:"sent_at"`
}

type MessagesResponse struct {
	Messages []Message `json:"messages"`
	Source   string    `json:"source"`
}

// SendRequest queues an outgoing message. Exactly one of ConversationID and
// Recipient must be set. MediaPath names a local file the daemon uploads
// before queuing.
type SendRequest struct {
	ConversationID int64  `json:"conversation_id,omitempty"`
	Recipient      string `json:"recipient,omitempty"`
	Body           string `json:"body"`
	MediaPath      string `json:"media_path,omitempty"`
}

type SendResponse struct {
	ClientRef string `json:"client_ref"`
}

// Post mirrors a cached front-page entry.
type Post struct {
	ID           int64  `json:"id"`
	Hub          string `json:"hub"`
	Title        string `json:"title"`
	Author       string `json:"author"`
	Source       string `json:"source"`
	Score        int64  `json:"score"`
	CommentCount int64  `json:"comment_count"`
	PostedAt     int64  `json:"posted_at"`
}

type FeedResponse struct {
	Posts  []Post `json:"posts"`
	Source string `json:"source"`
}

// Hub is a community as the backend lists it.
type Hub struct {
	Name        string `json:"name"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Source      string `json:"source"`
	PostCount   int64  `json:"post_count"`
}

type HubsResponse struct {
	Hubs []Hub `json:"hubs"`
}

// ThreadComment is one flattened comment of a mirrored Reddit thread.
type ThreadComment struct {
	Author string `json:"author"`
	Body   string `json:"body"`
	Score  int64  `json:"score"`
	Depth  int    `json:"depth"`
}

type ThreadResponse struct {
	Title    string          `json:"title"`
	Author   string          `json:"author"`
	SelfText string          `json:"selftext,omitempty"`
	Score    int64           `json:"score"`
	Comments []ThreadComment `json:"comments"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
