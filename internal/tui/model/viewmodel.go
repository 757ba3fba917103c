package model

import (
	"context"
	"sync"
	"time"

	"github.com/omninudge/nudge/internal/local"
)

// ViewModel caches daemon state for the UI and signals refreshes. Views
// read snapshots under the lock; network calls happen outside it.
type ViewModel struct {
	mu sync.RWMutex

	client        *local.Client
	Status        *local.StatusResponse
	Conversations []local.Conversation
	Messages      []local.Message
	Posts         []local.Post
	Thread        *local.ThreadResponse
	ActiveConvID  int64
	Flash         Flash

	refreshCh chan struct{}
}

// NewViewModel creates a new view model connected to the daemon client.
func NewViewModel(c *local.Client) *ViewModel {
	return &ViewModel{
		client:    c,
		refreshCh: make(chan struct{}, 1),
	}
}

// RefreshCh returns the channel that signals UI refresh.
func (vm *ViewModel) RefreshCh() <-chan struct{} {
	return vm.refreshCh
}

func (vm *ViewModel) signalRefresh() {
	select {
	case vm.refreshCh <- struct{}{}:
	default:
	}
}

// LoadStatus fetches the daemon's session status.
func (vm *ViewModel) LoadStatus(ctx context.Context) error {
	resp, err := vm.client.Status(ctx)
	if err != nil {
		return err
	}
	vm.mu.Lock()
	vm.Status = resp
	vm.mu.Unlock()
	vm.signalRefresh()
	return nil
}

// LoadConversations fetches the conversation list.
func (vm *ViewModel) LoadConversations(ctx context.Context) error {
	resp, err := vm.client.Conversations(ctx)
	if err != nil {
		return err
	}
	vm.mu.Lock()
	vm.Conversations = resp.Conversations
	vm.mu.Unlock()
	vm.signalRefresh()
	return nil
}

// OpenConversation marks a conversation as on screen (the daemon zeroes
// its unread count and posts the read receipt) and loads its messages.
func (vm *ViewModel) OpenConversation(ctx context.Context, conversationID int64) error {
	if err := vm.client.Open(ctx, conversationID); err != nil {
		return err
	}
	vm.mu.Lock()
	vm.ActiveConvID = conversationID
	vm.mu.Unlock()
	return vm.LoadMessages(ctx, conversationID)
}

// CloseConversation tells the daemon nothing is on screen, so incoming
// messages count as unread again.
func (vm *ViewModel) CloseConversation(ctx context.Context) {
	vm.mu.Lock()
	vm.ActiveConvID = 0
	vm.mu.Unlock()
	_ = vm.client.Open(ctx, 0)
}

// LoadMessages fetches the latest page of the conversation's messages.
func (vm *ViewModel) LoadMessages(ctx context.Context, conversationID int64) error {
	resp, err := vm.client.Messages(ctx, conversationID, 0, 100)
	if err != nil {
		return err
	}
	vm.mu.Lock()
	vm.Messages = resp.Messages
	vm.mu.Unlock()
	vm.signalRefresh()
	return nil
}

// LoadFeed fetches the cached front page.
func (vm *ViewModel) LoadFeed(ctx context.Context) error {
	resp, err := vm.client.Feed(ctx, 50)
	if err != nil {
		return err
	}
	vm.mu.Lock()
	vm.Posts = resp.Posts
	vm.mu.Unlock()
	vm.signalRefresh()
	return nil
}

// LoadThread fetches a mirrored Reddit thread.
func (vm *ViewModel) LoadThread(ctx context.Context, postID int64) error {
	resp, err := vm.client.Thread(ctx, postID)
	if err != nil {
		return err
	}
	vm.mu.Lock()
	vm.Thread = resp
	vm.mu.Unlock()
	vm.signalRefresh()
	return nil
}

// SendText queues a message to the active conversation and returns the
// client ref identifying it until the server id is adopted.
func (vm *ViewModel) SendText(ctx context.Context, conversationID int64, text string) (string, error) {
	resp, err := vm.client.Send(ctx, local.SendRequest{ConversationID: conversationID, Body: text})
	if err != nil {
		return "", err
	}
	vm.Flash.Set("Message queued", 3*time.Second)
	vm.signalRefresh()
	return resp.ClientRef, nil
}

// WaitForSend reloads the conversation until the queued send resolves to a
// server id or fails. Each reload refreshes the cached page, so the UI
// tracks the pending marker while it waits.
func (vm *ViewModel) WaitForSend(ctx context.Context, conversationID int64, clientRef string) {
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if err := vm.LoadMessages(ctx, conversationID); err != nil {
			return
		}
		if !vm.sendPending(clientRef) {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(100 * time.Millisecond):
		}
	}
}

func (vm *ViewModel) sendPending(clientRef string) bool {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	for _, m := range vm.Messages {
		if m.MsgID == clientRef && m.Status == "sending" {
			return true
		}
	}
	return false
}

// Login exchanges credentials through the daemon.
func (vm *ViewModel) Login(ctx context.Context, username, password string) error {
	_, err := vm.client.Login(ctx, username, password)
	if err != nil {
		return err
	}
	return vm.LoadStatus(ctx)
}

// GetStatus returns a snapshot of the session status.
func (vm *ViewModel) GetStatus() *local.StatusResponse {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.Status
}

// GetConversations returns a snapshot of the conversation list.
func (vm *ViewModel) GetConversations() []local.Conversation {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.Conversations
}

// GetMessages returns a snapshot of the loaded messages.
func (vm *ViewModel) GetMessages() []local.Message {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.Messages
}

// GetPosts returns a snapshot of the cached feed.
func (vm *ViewModel) GetPosts() []local.Post {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.Posts
}

// GetThread returns a snapshot of the loaded thread.
func (vm *ViewModel) GetThread() *local.ThreadResponse {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.Thread
}

// ActiveConversation returns the id of the conversation on screen, or 0.
func (vm *ViewModel) ActiveConversation() int64 {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.ActiveConvID
}
