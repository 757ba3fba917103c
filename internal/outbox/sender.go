// Package outbox queues outgoing messages locally and drains them to the
// server, adopting the server-minted ids so the pushed echo of an own send
// deduplicates in the cache.
package outbox

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/omninudge/nudge/internal/bus"
	"github.com/omninudge/nudge/internal/rest"
	"github.com/omninudge/nudge/internal/store"
)

// MessageSender posts messages to the server. Implemented by rest.Client.
type MessageSender interface {
	Send(ctx context.Context, req rest.SendRequest) (*rest.Message, error)
}

// Identity reports the logged-in user. Implemented by account.TokenStore.
type Identity interface {
	UserID() int64
}

const drainInterval = 500 * time.Millisecond

// Sender drains the outbox. Sends appear in the message cache immediately
// with status "sending"; a failure marks them failed and is not retried.
type Sender struct {
	db       *store.DB
	bus      *bus.Bus
	client   MessageSender
	identity Identity
	log      *zap.Logger
	kick     chan struct{}
}

func NewSender(db *store.DB, b *bus.Bus, client MessageSender, identity Identity, log *zap.Logger) *Sender {
	return &Sender{
		db:       db,
		bus:      b,
		client:   client,
		identity: identity,
		log:      log.Named("outbox"),
		kick:     make(chan struct{}, 1),
	}
}

// Enqueue queues a message and inserts the optimistic local copy. The
// returned client ref identifies the pending message until the server id is
// adopted.
func (s *Sender) Enqueue(conversationID int64, recipient, body string, mediaID int64) (string, error) {
	clientRef := uuid.NewString()
	if err := s.db.QueueOutbox(clientRef, conversationID, recipient, body, mediaID); err != nil {
		return "", err
	}

	_, err := s.db.InsertMessage(&store.Message{
		MsgID:          clientRef,
		ConversationID: conversationID,
		SenderID:       s.identity.UserID(),
		Body:           body,
		MediaID:        mediaID,
		Status:         "sending",
		SentAt:         time.Now().UnixMilli(),
	})
	if err != nil {
		return "", err
	}

	select {
	case s.kick <- struct{}{}:
	default:
	}
	return clientRef, nil
}

// Run drains pending sends until the context is cancelled.
func (s *Sender) Run(ctx context.Context) {
	ticker := time.NewTicker(drainInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		case <-s.kick:
		}
		s.Drain(ctx)
	}
}

// Drain sends every queued entry once.
func (s *Sender) Drain(ctx context.Context) {
	pending, err := s.db.PendingOutbox()
	if err != nil {
		s.log.Error("list pending", zap.Error(err))
		return
	}
	for _, entry := range pending {
		if ctx.Err() != nil {
			return
		}
		s.send(ctx, entry)
	}
}

func (s *Sender) send(ctx context.Context, entry store.OutboxEntry) {
	if err := s.db.MarkOutboxSending(entry.ClientRef); err != nil {
		s.log.Error("mark sending", zap.String("client_ref", entry.ClientRef), zap.Error(err))
		return
	}

	msg, err := s.client.Send(ctx, rest.SendRequest{
		ConversationID: entry.ConversationID,
		Recipient:      entry.Recipient,
		Body:           entry.Body,
		MediaFileID:    entry.MediaID,
	})
	if err != nil {
		s.fail(entry, err)
		return
	}

	serverID := strconv.FormatInt(msg.ID, 10)
	if err := s.db.MarkOutboxSent(entry.ClientRef, serverID, msg.ConversationID); err != nil {
		s.log.Error("mark sent", zap.String("client_ref", entry.ClientRef), zap.Error(err))
		return
	}
	// Rewrite the optimistic copy with the server ids. A first-contact
	// send learns its conversation id here.
	if err := s.db.AdoptSent(entry.ClientRef, &store.Message{
		MsgID:          serverID,
		ConversationID: msg.ConversationID,
		RecipientID:    msg.RecipientID,
		SentAt:         msg.SentAt,
	}); err != nil {
		s.log.Error("adopt sent", zap.String("client_ref", entry.ClientRef), zap.Error(err))
		return
	}
	if err := s.db.UpsertSnapshot(&store.Conversation{
		ID:           msg.ConversationID,
		PeerID:       msg.RecipientID,
		PeerUsername: entry.Recipient,
		LastMsgID:    serverID,
		LastBody:     msg.Body,
		LastSenderID: msg.SenderID,
		LastAt:       msg.SentAt,
	}); err != nil {
		s.log.Error("upsert conversation", zap.Int64("conversation_id", msg.ConversationID), zap.Error(err))
	}

	s.log.Info("message sent",
		zap.String("client_ref", entry.ClientRef),
		zap.String("msg_id", serverID),
		zap.Int64("conversation_id", msg.ConversationID))
	s.bus.Publish(bus.Event{
		Kind:      "message.send_ack",
		Timestamp: time.Now(),
		Payload: map[string]string{
			"client_ref":      entry.ClientRef,
			"msg_id":          serverID,
			"conversation_id": strconv.FormatInt(msg.ConversationID, 10),
		},
	})
}

func (s *Sender) fail(entry store.OutboxEntry, sendErr error) {
	s.log.Warn("send failed", zap.String("client_ref", entry.ClientRef), zap.Error(sendErr))
	if err := s.db.MarkOutboxFailed(entry.ClientRef, sendErr.Error()); err != nil {
		s.log.Error("mark failed", zap.String("client_ref", entry.ClientRef), zap.Error(err))
	}
	if err := s.db.SetMessageStatus(entry.ClientRef, "failed"); err != nil {
		s.log.Error("set message status", zap.String("client_ref", entry.ClientRef), zap.Error(err))
	}
	s.bus.Publish(bus.Event{
		Kind:      "message.send_failed",
		Timestamp: time.Now(),
		Payload: map[string]string{
			"client_ref": entry.ClientRef,
			"error":      sendErr.Error(),
		},
	})
}
