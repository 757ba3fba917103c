// Package live maintains the push channel to the backend: one websocket
// connection that delivers new-message events, supervised by the status
// state machine, with a fixed-delay single-flight reconnect on failure.
package live

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/omninudge/nudge/internal/bus"
	"github.com/omninudge/nudge/internal/rest"
	"github.com/omninudge/nudge/internal/status"
)

// Conn is one established live channel connection.
type Conn interface {
	ReadMessage() ([]byte, error)
	Close() error
}

// Dialer establishes live channel connections. Injected so tests run
// without sockets.
type Dialer interface {
	Dial(ctx context.Context, url string) (Conn, error)
}

// Session exposes the stored token. Implemented by account.TokenStore.
type Session interface {
	Token() string
	Valid() bool
}

// ErrStopped is returned by Connect after Stop has been called.
var ErrStopped = errors.New("connector stopped")

// schedule delays f by d and returns a cancel func. The default wraps
// time.AfterFunc; tests inject a manual one.
type schedule func(d time.Duration, f func()) (cancel func())

func realSchedule(d time.Duration, f func()) func() {
	t := time.AfterFunc(d, f)
	return func() { t.Stop() }
}

// Connector owns the live channel lifecycle. All state transitions go
// through the status machine, which enforces the single-flight retry.
type Connector struct {
	dialer  Dialer
	session Session
	machine *status.Machine
	bus     *bus.Bus
	log     *zap.Logger
	url     string
	delay   time.Duration
	after   schedule

	mu          sync.Mutex
	ctx         context.Context
	conn        Conn
	cancelRetry func()
	stopped     bool
}

// New creates a connector for the given websocket endpoint (without the
// token query parameter; it is appended per dial so a re-login picks up the
// fresh token).
func New(dialer Dialer, session Session, machine *status.Machine, b *bus.Bus, log *zap.Logger, wsURL string, retryDelay time.Duration) *Connector {
	return &Connector{
		dialer:  dialer,
		session: session,
		machine: machine,
		bus:     b,
		log:     log.Named("live"),
		url:     wsURL,
		delay:   retryDelay,
		after:   realSchedule,
		ctx:     context.Background(),
	}
}

// Connect establishes the live channel. With no valid token the connector
// parks in AuthRequired instead of dialing; a live channel cannot outlive
// its token.
func (c *Connector) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return ErrStopped
	}
	c.ctx = ctx

	if !c.session.Valid() {
		c.mu.Unlock()
		if err := c.machine.Transition(status.AuthRequired); err != nil {
			c.log.Debug("auth-required transition refused", zap.Error(err))
		}
		return nil
	}

	if err := c.machine.Transition(status.Connecting); err != nil {
		c.mu.Unlock()
		return err
	}
	token := c.session.Token()
	c.mu.Unlock()

	conn, err := c.dialer.Dial(ctx, c.url+"?token="+token)
	if err != nil {
		c.log.Warn("dial failed", zap.Error(err))
		c.onDisconnect()
		return nil
	}

	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		_ = conn.Close()
		return ErrStopped
	}
	c.conn = conn
	c.mu.Unlock()

	if err := c.machine.Transition(status.Connected); err != nil {
		return err
	}
	c.log.Info("live channel connected")

	go c.readLoop(conn)
	return nil
}

func (c *Connector) readLoop(conn Conn) {
	for {
		data, err := conn.ReadMessage()
		if err != nil {
			c.mu.Lock()
			current := c.conn == conn
			c.mu.Unlock()
			if current {
				c.log.Warn("live channel closed", zap.Error(err))
				c.onDisconnect()
			}
			return
		}
		c.handle(data)
	}
}

// handle decodes one envelope. Malformed frames are logged at debug and
// dropped; the connection stays up.
func (c *Connector) handle(data []byte) {
	var env struct {
		Type    string          `json:"type"`
		Payload json.RawMessage `json:"payload"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		c.log.Debug("dropping malformed envelope", zap.Error(err))
		return
	}
	if env.Type != "new_message" {
		c.log.Debug("dropping envelope of unknown type", zap.String("type", env.Type))
		return
	}

	var msg rest.Message
	if err := json.Unmarshal(env.Payload, &msg); err != nil {
		c.log.Debug("dropping undecodable message payload", zap.Error(err))
		return
	}
	if err := msg.Validate(); err != nil {
		c.log.Debug("dropping invalid message payload", zap.Error(err))
		return
	}

	c.bus.Publish(bus.Event{
		Kind:      "live.message",
		Timestamp: time.Now(),
		Payload:   &msg,
	})
}

// onDisconnect runs on dial failure or read error. A dead token parks the
// connector in AuthRequired; otherwise exactly one retry is scheduled.
func (c *Connector) onDisconnect() {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return
	}
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
	c.mu.Unlock()

	if !c.session.Valid() {
		if err := c.machine.Transition(status.AuthRequired); err != nil {
			c.log.Debug("auth-required transition refused", zap.Error(err))
		}
		return
	}

	// The PendingRetry edge exists only once per cycle; a refused
	// transition means a retry is already scheduled.
	if err := c.machine.Transition(status.PendingRetry); err != nil {
		c.log.Debug("retry already pending", zap.Error(err))
		return
	}
	c.scheduleRetry()
}

func (c *Connector) scheduleRetry() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped || c.cancelRetry != nil {
		return
	}
	c.log.Info("scheduling reconnect", zap.Duration("delay", c.delay))
	c.cancelRetry = c.after(c.delay, func() {
		c.mu.Lock()
		c.cancelRetry = nil
		stopped := c.stopped
		ctx := c.ctx
		c.mu.Unlock()
		if stopped {
			return
		}
		if err := c.Connect(ctx); err != nil && !errors.Is(err, ErrStopped) {
			c.log.Warn("reconnect failed", zap.Error(err))
		}
	})
}

// Disconnect drops the live channel without stopping the connector, for
// logout. The machine parks in AuthRequired until the next login connects.
func (c *Connector) Disconnect() {
	c.mu.Lock()
	if c.cancelRetry != nil {
		c.cancelRetry()
		c.cancelRetry = nil
	}
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
	stopped := c.stopped
	c.mu.Unlock()
	if stopped {
		return
	}
	if err := c.machine.Transition(status.AuthRequired); err != nil {
		c.log.Debug("auth-required transition refused", zap.Error(err))
	}
}

// Stop tears down the channel: the socket is closed, a pending retry is
// cancelled, and no reconnect ever fires afterward.
func (c *Connector) Stop() {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return
	}
	c.stopped = true
	if c.cancelRetry != nil {
		c.cancelRetry()
		c.cancelRetry = nil
	}
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
	c.mu.Unlock()

	if err := c.machine.Transition(status.Stopped); err != nil {
		c.log.Debug("stop transition refused", zap.Error(err))
	}
	c.log.Info("live channel stopped")
}
