// Package sync merges pushed messages into the local cache and keeps the
// unread accounting consistent with what the viewer has actually seen.
package sync

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/omninudge/nudge/internal/bus"
	"github.com/omninudge/nudge/internal/rest"
	"github.com/omninudge/nudge/internal/store"
)

// ReadReceipter posts read receipts to the server. Implemented by
// rest.Client.
type ReadReceipter interface {
	MarkRead(ctx context.Context, conversationID int64) error
}

// Merger applies pushed messages to the cache. Merging is idempotent on the
// server message id: replaying a message changes nothing, and in particular
// never double-counts unread.
type Merger struct {
	db       *store.DB
	bus      *bus.Bus
	receipts ReadReceipter
	log      *zap.Logger

	mu       sync.Mutex
	viewerID int64
	openConv int64
}

func NewMerger(db *store.DB, b *bus.Bus, receipts ReadReceipter, log *zap.Logger) *Merger {
	return &Merger{
		db:       db,
		bus:      b,
		receipts: receipts,
		log:      log.Named("merge"),
	}
}

// SetViewer records the logged-in user id; unread accounting is defined
// relative to it.
func (m *Merger) SetViewer(id int64) {
	m.mu.Lock()
	m.viewerID = id
	m.mu.Unlock()
}

// OpenConversation returns the conversation the viewer currently has on
// screen, or 0.
func (m *Merger) OpenConversation() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.openConv
}

// Run consumes live.message bus events until the context is cancelled.
func (m *Merger) Run(ctx context.Context) {
	ch, unsub := m.bus.Subscribe("live.message", 64)
	defer unsub()
	for {
		select {
		case <-ctx.Done():
			return
		case evt := <-ch:
			msg, ok := evt.Payload.(*rest.Message)
			if !ok {
				continue
			}
			if err := m.Merge(ctx, msg); err != nil {
				m.log.Error("merge failed", zap.Int64("msg_id", msg.ID), zap.Error(err))
			}
		}
	}
}

// Merge applies one pushed message: cache insert (idempotent), conversation
// snapshot update, unread accounting, and a read receipt when the affected
// conversation is on screen.
func (m *Merger) Merge(ctx context.Context, msg *rest.Message) error {
	m.mu.Lock()
	viewerID := m.viewerID
	openConv := m.openConv
	m.mu.Unlock()

	inserted, err := m.db.InsertMessage(&store.Message{
		MsgID:          strconv.FormatInt(msg.ID, 10),
		ConversationID: msg.ConversationID,
		SenderID:       msg.SenderID,
		RecipientID:    msg.RecipientID,
		SenderName:     msg.SenderUsername,
		Body:           msg.Body,
		MediaID:        msg.MediaFileID,
		Status:         messageStatus(msg, viewerID),
		SentAt:         msg.SentAt,
	})
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}

	if err := m.db.UpsertSnapshot(snapshotFor(msg, viewerID)); err != nil {
		return fmt.Errorf("upsert conversation: %w", err)
	}

	if msg.RecipientID == viewerID {
		switch {
		case msg.ConversationID == openConv:
			// Viewer is looking at this conversation: it stays read,
			// and the server is told so.
			if err := m.db.SetUnread(msg.ConversationID, 0); err != nil {
				return fmt.Errorf("zero unread: %w", err)
			}
			m.sendReceipt(ctx, msg.ConversationID)
		case inserted:
			if err := m.db.IncrementUnread(msg.ConversationID); err != nil {
				return fmt.Errorf("increment unread: %w", err)
			}
		}
	}
	// Echo of the viewer's own send: unread untouched.

	m.bus.Publish(bus.Event{
		Kind:      "message.merged",
		Timestamp: time.Now(),
		Payload: map[string]string{
			"conversation_id": strconv.FormatInt(msg.ConversationID, 10),
			"msg_id":          strconv.FormatInt(msg.ID, 10),
		},
	})
	return nil
}

// Open marks a conversation as on screen: the cached unread count drops to
// zero immediately and a read receipt goes out. The optimistic zero is kept
// even when the receipt fails; the server list reconciles it later.
func (m *Merger) Open(ctx context.Context, conversationID int64) error {
	m.mu.Lock()
	m.openConv = conversationID
	m.mu.Unlock()

	if conversationID == 0 {
		return nil
	}
	if err := m.db.SetUnread(conversationID, 0); err != nil {
		return fmt.Errorf("zero unread: %w", err)
	}
	m.sendReceipt(ctx, conversationID)
	return nil
}

func (m *Merger) sendReceipt(ctx context.Context, conversationID int64) {
	if err := m.receipts.MarkRead(ctx, conversationID); err != nil {
		m.log.Warn("read receipt failed", zap.Int64("conversation_id", conversationID), zap.Error(err))
	}
	m.bus.Publish(bus.Event{
		Kind:      "conversations.invalidated",
		Timestamp: time.Now(),
	})
}

func messageStatus(msg *rest.Message, viewerID int64) string {
	if msg.SenderID == viewerID {
		return "sent"
	}
	return "received"
}

// snapshotFor builds the conversation snapshot from the viewer's side: the
// peer is whichever participant is not the viewer. Peer fields stay empty
// when the push does not reveal them; the store keeps previous values then.
func snapshotFor(msg *rest.Message, viewerID int64) *store.Conversation {
	c := &store.Conversation{
		ID:           msg.ConversationID,
		LastMsgID:    strconv.FormatInt(msg.ID, 10),
		LastBody:     msg.Body,
		LastSenderID: msg.SenderID,
		LastAt:       msg.SentAt,
	}
	if msg.SenderID == viewerID {
		c.PeerID = msg.RecipientID
	} else {
		c.PeerID = msg.SenderID
		c.PeerUsername = msg.SenderUsername
	}
	return c
}
