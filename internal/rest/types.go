package rest

import (
	"errors"
	"fmt"
)

// Message is a direct message as the server sends it. SentAt is unix
// milliseconds.
type Message struct {
	ID             int64  `json:"id"`
	ConversationID int64  `json:"conversation_id"`
	SenderID       int64  `json:"sender_id"`
	RecipientID    int64  `json:"recipient_id"`
	SenderUsername string `json:"sender_username"`
	Body           string `json:"body"`
	MediaFileID    int64  `json:"media_file_id"`
	SentAt         int64  `json:"sent_at"`
}

// Validate checks the fields every consumer relies on. A message that fails
// here never reaches the cache.
func (m *Message) Validate() error {
	switch {
	case m.ID <= 0:
		return errors.New("message missing id")
	case m.ConversationID <= 0:
		return errors.New("message missing conversation_id")
	case m.SenderID <= 0:
		return errors.New("message missing sender_id")
	case m.RecipientID <= 0:
		return errors.New("message missing recipient_id")
	case m.SentAt <= 0:
		return errors.New("message missing sent_at")
	}
	return nil
}

// Conversation is a server-owned conversation summary.
type Conversation struct {
	ID           int64    `json:"id"`
	PeerID       int64    `json:"peer_id"`
	PeerUsername string   `json:"peer_username"`
	UnreadCount  int      `json:"unread_count"`
	LastMessage  *Message `json:"last_message"`
}

func (c *Conversation) Validate() error {
	switch {
	case c.ID <= 0:
		return errors.New("conversation missing id")
	case c.PeerID <= 0:
		return errors.New("conversation missing peer_id")
	case c.UnreadCount < 0:
		return errors.New("conversation has negative unread_count")
	}
	if c.LastMessage != nil {
		if err := c.LastMessage.Validate(); err != nil {
			return fmt.Errorf("conversation %d last_message: %w", c.ID, err)
		}
	}
	return nil
}

// Post is a front-page entry: a local hub post or a mirrored Reddit post.
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

func (p *Post) Validate() error {
	switch {
	case p.ID <= 0:
		return errors.New("post missing id")
	case p.Title == "":
		return errors.New("post missing title")
	case p.Source != "local" && p.Source != "reddit":
		return fmt.Errorf("post %d has unknown source %q", p.ID, p.Source)
	}
	return nil
}

// Hub is a community on the site. Mirrored hubs shadow a subreddit.
type Hub struct {
	Name        string `json:"name"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Source      string `json:"source"`
	PostCount   int64  `json:"post_count"`
}

func (h *Hub) Validate() error {
	switch {
	case h.Name == "":
		return errors.New("hub missing name")
	case h.Source != "local" && h.Source != "reddit":
		return fmt.Errorf("hub %q has unknown source %q", h.Name, h.Source)
	}
	return nil
}

// LoginResult is the server's response to a successful login.
type LoginResult struct {
	Token    string `json:"token"`
	UserID   int64  `json:"user_id"`
	Username string `json:"username"`
}

func (r *LoginResult) Validate() error {
	switch {
	case r.Token == "":
		return errors.New("login response missing token")
	case r.UserID <= 0:
		return errors.New("login response missing user_id")
	case r.Username == "":
		return errors.New("login response missing username")
	}
	return nil
}

// MediaFile is the server's response to a media upload.
type MediaFile struct {
	ID       int64  `json:"id"`
	Filename string `json:"filename"`
	Size     int64  `json:"size"`
}

func (f *MediaFile) Validate() error {
	if f.ID <= 0 {
		return errors.New("media response missing id")
	}
	return nil
}

// SendRequest is an outgoing message. Exactly one of ConversationID and
// Recipient must be set.
type SendRequest struct {
	ConversationID int64  `json:"conversation_id,omitempty"`
	Recipient      string `json:"recipient,omitempty"`
	Body           string `json:"body"`
	MediaFileID    int64  `json:"media_file_id,omitempty"`
}

func (r *SendRequest) Validate() error {
	if (r.ConversationID > 0) == (r.Recipient != "") {
		return errors.New("send needs exactly one of conversation_id or recipient")
	}
	if r.Body == "" && r.MediaFileID == 0 {
		return errors.New("send needs a body or a media file")
	}
	return nil
}
