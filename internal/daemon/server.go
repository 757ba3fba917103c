// Package daemon wires the account daemon: the local JSON API on the Unix
// socket plus the fx lifecycle composing session, cache, live channel, and
// outbox.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/omninudge/nudge/internal/account"
	"github.com/omninudge/nudge/internal/bus"
	"github.com/omninudge/nudge/internal/live"
	"github.com/omninudge/nudge/internal/outbox"
	"github.com/omninudge/nudge/internal/rest"
	"github.com/omninudge/nudge/internal/status"
	"github.com/omninudge/nudge/internal/store"
	intsync "github.com/omninudge/nudge/internal/sync"
)

// Server serves the daemon's JSON API on the account's Unix socket.
type Server struct {
	httpServer *http.Server
	listener   net.Listener
	socketPath string
	logger     *zap.Logger

	account   string
	db        *store.DB
	rest      *rest.Client
	tokens    *account.TokenStore
	machine   *status.Machine
	merger    *intsync.Merger
	sender    *outbox.Sender
	connector *live.Connector
	bus       *bus.Bus
}

// NewServer creates the API server bound to the account's Unix socket.
func NewServer(
	p Params,
	logger *zap.Logger,
	db *store.DB,
	restClient *rest.Client,
	tokens *account.TokenStore,
	machine *status.Machine,
	merger *intsync.Merger,
	sender *outbox.Sender,
	connector *live.Connector,
	b *bus.Bus,
) (*Server, error) {
	socketPath := p.SocketPath
	if socketPath == "" {
		socketPath = account.SocketPath(p.AccountName)
	}

	// Clean stale socket if it exists.
	if _, err := os.Stat(socketPath); err == nil {
		_ = os.Remove(socketPath)
	}

	listener, err := net.Listen("unix", socketPath)
	if err != nil {
		return nil, fmt.Errorf("listen unix socket: %w", err)
	}
	if err := os.Chmod(socketPath, 0600); err != nil {
		_ = listener.Close()
		return nil, fmt.Errorf("chmod socket: %w", err)
	}

	s := &Server{
		listener:   listener,
		socketPath: socketPath,
		logger:     logger.Named("api"),
		account:    p.AccountName,
		db:         db,
		rest:       restClient,
		tokens:     tokens,
		machine:    machine,
		merger:     merger,
		sender:     sender,
		connector:  connector,
		bus:        b,
	}
	s.httpServer = &http.Server{
		Handler:           s.routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s, nil
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/status", s.handleStatus)
	mux.HandleFunc("POST /v1/login", s.handleLogin)
	mux.HandleFunc("POST /v1/logout", s.handleLogout)
	mux.HandleFunc("GET /v1/conversations", s.handleConversations)
	mux.HandleFunc("GET /v1/conversations/{id}/messages", s.handleMessages)
	mux.HandleFunc("POST /v1/conversations/{id}/open", s.handleOpen)
	mux.HandleFunc("POST /v1/send", s.handleSend)
	mux.HandleFunc("GET /v1/feed", s.handleFeed)
	mux.HandleFunc("GET /v1/hubs", s.handleHubs)
	mux.HandleFunc("GET /v1/thread/{id}", s.handleThread)
	return mux
}

// Start begins serving API requests. Blocks until stopped.
func (s *Server) Start() error {
	s.logger.Info("api server starting", zap.String("socket", s.socketPath))
	if err := s.httpServer.Serve(s.listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop performs a graceful shutdown and removes the socket file.
func (s *Server) Stop(ctx context.Context) {
	s.logger.Info("api server stopping")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		_ = s.httpServer.Close()
	}
	_ = os.Remove(s.socketPath)
}
