package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/omninudge/nudge/internal/account"
	"github.com/omninudge/nudge/internal/bus"
	"github.com/omninudge/nudge/internal/local"
	"github.com/omninudge/nudge/internal/reddit"
	"github.com/omninudge/nudge/internal/rest"
	"github.com/omninudge/nudge/internal/store"
)

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := local.StatusResponse{
		Account: s.account,
		State:   string(s.machine.Current()),
	}
	if sess, err := s.tokens.Load(); err == nil {
		resp.LoggedIn = true
		resp.UserID = sess.UserID
		resp.Username = sess.Username
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req local.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Username == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "username and password required")
		return
	}

	res, err := s.rest.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		s.logger.Warn("login failed", zap.String("username", req.Username), zap.Error(err))
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	if err := s.tokens.Save(&account.Session{
		Token:    res.Token,
		UserID:   res.UserID,
		Username: res.Username,
	}); err != nil {
		writeError(w, http.StatusInternalServerError, "persist session: "+err.Error())
		return
	}
	s.merger.SetViewer(res.UserID)
	s.bus.Publish(bus.Event{Kind: "session.authenticated", Timestamp: time.Now()})
	s.logger.Info("logged in", zap.String("username", res.Username), zap.Int64("user_id", res.UserID))

	go func() {
		if err := s.connector.Connect(context.Background()); err != nil {
			s.logger.Warn("connect after login failed", zap.Error(err))
		}
	}()

	writeJSON(w, http.StatusOK, local.LoginResponse{UserID: res.UserID, Username: res.Username})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	// Best effort: the token dies locally even when the server call fails.
	if err := s.rest.Logout(r.Context()); err != nil && !errors.Is(err, rest.ErrUnauthorized) {
		s.logger.Warn("server logout failed", zap.Error(err))
	}
	s.connector.Disconnect()
	if err := s.tokens.Clear(); err != nil {
		writeError(w, http.StatusInternalServerError, "clear session: "+err.Error())
		return
	}
	s.merger.SetViewer(0)
	s.bus.Publish(bus.Event{Kind: "session.logged_out", Timestamp: time.Now()})
	s.logger.Info("logged out")
	writeJSON(w, http.StatusOK, struct{}{})
}

// handleConversations reconciles the cached list against the server when
// reachable, then serves from the cache. Reconciling takes the server's
// unread counts as authoritative, which cleans up any optimistic zero whose
// read receipt was lost.
func (s *Server) handleConversations(w http.ResponseWriter, r *http.Request) {
	source := "server"
	convs, err := s.rest.Conversations(r.Context())
	if err != nil {
		s.logger.Debug("conversation fetch failed, serving cache", zap.Error(err))
		source = "cache"
	} else {
		for i := range convs {
			if err := s.db.ReplaceConversation(conversationToStore(&convs[i])); err != nil {
				writeError(w, http.StatusInternalServerError, err.Error())
				return
			}
		}
	}

	cached, err := s.db.ListConversations(200, 0)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	resp := local.ConversationsResponse{Source: source, Conversations: make([]local.Conversation, 0, len(cached))}
	for _, c := range cached {
		resp.Conversations = append(resp.Conversations, local.Conversation{
			ID:           c.ID,
			PeerID:       c.PeerID,
			PeerUsername: c.PeerUsername,
			UnreadCount:  c.UnreadCount,
			LastBody:     c.LastBody,
			LastSenderID: c.LastSenderID,
			LastAt:       c.LastAt,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleMessages(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid conversation id")
		return
	}
	beforeTs, _ := strconv.ParseInt(r.URL.Query().Get("before_ts"), 10, 64)
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	source := "cache"
	// Only the latest page is refreshed from the server; older pages are
	// history the cache already has.
	if beforeTs == 0 {
		msgs, err := s.rest.Messages(r.Context(), id, 0, limit)
		if err != nil {
			s.logger.Debug("message fetch failed, serving cache", zap.Error(err))
		} else {
			source = "server"
			viewerID := s.tokens.UserID()
			for i := range msgs {
				if _, err := s.db.InsertMessage(messageToStore(&msgs[i], viewerID)); err != nil {
					writeError(w, http.StatusInternalServerError, err.Error())
					return
				}
			}
		}
	}

	cached, err := s.db.ListMessages(id, beforeTs, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	resp := local.MessagesResponse{Source: source, Messages: make([]local.Message, 0, len(cached))}
	for _, m := range cached {
		resp.Messages = append(resp.Messages, local.Message{
			MsgID:          m.MsgID,
			ConversationID: m.ConversationID,
			SenderID:       m.SenderID,
			SenderName:     m.SenderName,
			Body:           m.Body,
			MediaID:        m.MediaID,
			Status:         m.Status,
			SentAt:         m.SentAt,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleOpen(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid conversation id")
		return
	}
	if err := s.merger.Open(r.Context(), id); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, struct{}{})
}

func (s *Server) handleSend(w http.ResponseWriter, r *http.Request) {
	var req local.SendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if (req.ConversationID > 0) == (req.Recipient != "") {
		writeError(w, http.StatusBadRequest, "need exactly one of conversation_id or recipient")
		return
	}
	if req.Body == "" && req.MediaPath == "" {
		writeError(w, http.StatusBadRequest, "need a body or a media file")
		return
	}

	var mediaID int64
	if req.MediaPath != "" {
		file, err := s.rest.UploadMedia(r.Context(), req.MediaPath)
		if err != nil {
			writeError(w, http.StatusBadGateway, "upload media: "+err.Error())
			return
		}
		mediaID = file.ID
	}

	clientRef, err := s.sender.Enqueue(req.ConversationID, req.Recipient, req.Body, mediaID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, local.SendResponse{ClientRef: clientRef})
}

func (s *Server) handleFeed(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	source := "server"
	posts, err := s.rest.Feed(r.Context(), limit)
	if err != nil {
		s.logger.Debug("feed fetch failed, serving cache", zap.Error(err))
		source = "cache"
	} else {
		stored := make([]store.Post, 0, len(posts))
		for _, p := range posts {
			stored = append(stored, store.Post{
				ID:           p.ID,
				Hub:          p.Hub,
				Title:        p.Title,
				Author:       p.Author,
				Source:       p.Source,
				Score:        p.Score,
				CommentCount: p.CommentCount,
				PostedAt:     p.PostedAt,
			})
		}
		if err := s.db.ReplaceFeed(stored); err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		_ = s.db.SetCheckpoint("feed_fetched_at", strconv.FormatInt(time.Now().UnixMilli(), 10))
	}

	cached, err := s.db.ListFeed(limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	resp := local.FeedResponse{Source: source, Posts: make([]local.Post, 0, len(cached))}
	for _, p := range cached {
		resp.Posts = append(resp.Posts, local.Post{
			ID:           p.ID,
			Hub:          p.Hub,
			Title:        p.Title,
			Author:       p.Author,
			Source:       p.Source,
			Score:        p.Score,
			CommentCount: p.CommentCount,
			PostedAt:     p.PostedAt,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleHubs has no cache behind it; the hub list only matters when
// browsing, which needs the server anyway.
func (s *Server) handleHubs(w http.ResponseWriter, r *http.Request) {
	hubs, err := s.rest.Hubs(r.Context())
	if err != nil {
		writeError(w, http.StatusBadGateway, "fetch hubs: "+err.Error())
		return
	}
	resp := local.HubsResponse{Hubs: make([]local.Hub, 0, len(hubs))}
	for _, h := range hubs {
		resp.Hubs = append(resp.Hubs, local.Hub{
			Name:        h.Name,
			Title:       h.Title,
			Description: h.Description,
			Source:      h.Source,
			PostCount:   h.PostCount,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleThread(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid post id")
		return
	}

	raw, err := s.rest.Thread(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusBadGateway, "fetch thread: "+err.Error())
		return
	}
	thread, err := reddit.DecodeThread(raw)
	if err != nil {
		s.logger.Warn("malformed thread listing", zap.Int64("post_id", id), zap.Error(err))
		writeError(w, http.StatusBadGateway, "malformed thread: "+err.Error())
		return
	}

	resp := local.ThreadResponse{
		Title:    thread.Post.Title,
		Author:   thread.Post.Author,
		SelfText: thread.Post.SelfText,
		Score:    thread.Post.Score,
	}
	for _, c := range thread.Comments {
		resp.Comments = append(resp.Comments, local.ThreadComment{
			Author: c.Author, Body: c.Body, Score: c.Score, Depth: 0,
		})
		for _, reply := range c.Descendants() {
			resp.Comments = append(resp.Comments, local.ThreadComment{
				Author: reply.Author, Body: reply.Body, Score: reply.Score, Depth: 1,
			})
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func conversationToStore(c *rest.Conversation) *store.Conversation {
	sc := &store.Conversation{
		ID:           c.ID,
		PeerID:       c.PeerID,
		PeerUsername: c.PeerUsername,
		UnreadCount:  c.UnreadCount,
	}
	if c.LastMessage != nil {
		sc.LastMsgID = strconv.FormatInt(c.LastMessage.ID, 10)
		sc.LastBody = c.LastMessage.Body
		sc.LastSenderID = c.LastMessage.SenderID
		sc.LastAt = c.LastMessage.SentAt
	}
	return sc
}

func messageToStore(m *rest.Message, viewerID int64) *store.Message {
	status := "received"
	if m.SenderID == viewerID {
		status = "sent"
	}
	return &store.Message{
		MsgID:          strconv.FormatInt(m.ID, 10),
		ConversationID: m.ConversationID,
		SenderID:       m.SenderID,
		RecipientID:    m.RecipientID,
		SenderName:     m.SenderUsername,
		Body:           m.Body,
		MediaID:        m.MediaFileID,
		Status:         status,
		SentAt:         m.SentAt,
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, local.ErrorResponse{Error: msg})
}
