package bus

import "time"

// Event represents a domain event published on the bus.
//
// Kinds used across the client:
//
//	live.message              payload *rest.Message, a push from the live channel
//	live.status_changed       payload status.StatusChange
//	message.merged            payload map[string]string{conversation_id, msg_id}
//	message.send_ack          payload map[string]string{client_ref, msg_id}
//	message.send_failed       payload map[string]string{client_ref, error}
//	conversations.invalidated  no payload; cached unread counts may be stale
//	session.authenticated     no payload
//	session.logged_out        no payload
type Event struct {
	Kind      string
	Timestamp time.Time
	Payload   any
}
