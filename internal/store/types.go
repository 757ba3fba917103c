package store

// Conversation is the cached copy of a server-owned conversation: the other
// participant, the unread counter, and a snapshot of the latest message.
type Conversation struct {
	ID           int64
	PeerID       int64
	PeerUsername string
	UnreadCount  int
	LastMsgID    string
	LastBody     string
	LastSenderID int64
	LastAt       int64
}

// Message is a cached direct message. MsgID is the server-assigned
// identifier as a decimal string; pending sends carry their client ref here
// until the server id is adopted.
type Message struct {
	ID             int64
	MsgID          string
	ConversationID int64
	SenderID       int64
	RecipientID    int64
	SenderName     string
	Body           string
	MediaID        int64
	Status         string // received, sending, sent, failed
	SentAt         int64
}

// OutboxEntry represents a pending outgoing message. ConversationID is zero
// for first-contact sends, which carry the Recipient username instead.
type OutboxEntry struct {
	ID             int64
	ClientRef      string
	ConversationID int64
	Recipient      string
	Body           string
	MediaID        int64
	Status         string // queued, sending, sent, failed
	ErrorMessage   string
	ServerMsgID    string
}

// Post is a cached front-page entry, either a locally authored hub post or a
// mirrored Reddit post.
type Post struct {
	ID           int64
	Hub          string
	Title        string
	Author       string
	Source       string // local or reddit
	Score        int64
	CommentCount int64
	PostedAt     int64
}
