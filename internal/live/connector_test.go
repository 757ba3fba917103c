package live

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/omninudge/nudge/internal/bus"
	"github.com/omninudge/nudge/internal/rest"
	"github.com/omninudge/nudge/internal/status"
)

type fakeConn struct {
	frames chan []byte
	errs   chan error

	mu     sync.Mutex
	closed bool
	done   chan struct{}
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		frames: make(chan []byte, 16),
		errs:   make(chan error, 1),
		done:   make(chan struct{}),
	}
}

func (f *fakeConn) ReadMessage() ([]byte, error) {
	select {
	case d := <-f.frames:
		return d, nil
	case err := <-f.errs:
		return nil, err
	case <-f.done:
		return nil, errors.New("connection closed")
	}
}

func (f *fakeConn) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.closed {
		f.closed = true
		close(f.done)
	}
	return nil
}

func (f *fakeConn) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

type fakeDialer struct {
	mu    sync.Mutex
	fails int
	conns []*fakeConn
	urls  []string
}

func (d *fakeDialer) Dial(_ context.Context, url string) (Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.urls = append(d.urls, url)
	if d.fails > 0 {
		d.fails--
		return nil, errors.New("connection refused")
	}
	c := newFakeConn()
	d.conns = append(d.conns, c)
	return c, nil
}

func (d *fakeDialer) dialCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.urls)
}

func (d *fakeDialer) lastConn() *fakeConn {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.conns) == 0 {
		return nil
	}
	return d.conns[len(d.conns)-1]
}

type fakeSession struct {
	mu    sync.Mutex
	token string
	valid bool
}

func (s *fakeSession) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

func (s *fakeSession) Valid() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.valid
}

func (s *fakeSession) invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.valid = false
}

// manualClock captures scheduled retries so tests fire them by hand.
type manualClock struct {
	mu        sync.Mutex
	pending   []func()
	scheduled int
	cancelled int
}

func (m *manualClock) schedule(_ time.Duration, f func()) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scheduled++
	m.pending = append(m.pending, f)
	return func() {
		m.mu.Lock()
		m.cancelled++
		m.mu.Unlock()
	}
}

func (m *manualClock) fire(t *testing.T) {
	t.Helper()
	m.mu.Lock()
	if len(m.pending) == 0 {
		m.mu.Unlock()
		t.Fatal("no retry pending")
	}
	f := m.pending[0]
	m.pending = m.pending[1:]
	m.mu.Unlock()
	f()
}

func (m *manualClock) scheduledCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.scheduled
}

type fixture struct {
	connector *Connector
	dialer    *fakeDialer
	session   *fakeSession
	clock     *manualClock
	machine   *status.Machine
	bus       *bus.Bus
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	b := bus.New()
	d := &fakeDialer{}
	s := &fakeSession{token: "tok-1", valid: true}
	m := status.NewMachine(b)
	clk := &manualClock{}
	c := New(d, s, m, b, zap.NewNop(), "ws://test/ws", 5*time.Second)
	c.after = clk.schedule
	t.Cleanup(c.Stop)
	return &fixture{connector: c, dialer: d, session: s, clock: clk, machine: m, bus: b}
}

func waitState(t *testing.T, m *status.Machine, want status.State) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		if m.Current() == want {
			return
		}
		select {
		case <-deadline:
			t.Fatalf("state never reached %s, stuck at %s", want, m.Current())
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func recvEvent(t *testing.T, ch <-chan bus.Event) bus.Event {
	t.Helper()
	select {
	case evt := <-ch:
		return evt
	case <-time.After(2 * time.Second):
		t.Fatal("no event received")
		return bus.Event{}
	}
}

func TestConnectPublishesPushedMessages(t *testing.T) {
	f := newFixture(t)
	ch, unsub := f.bus.Subscribe("live.message", 8)
	defer unsub()

	if err := f.connector.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	if got := f.machine.Current(); got != status.Connected {
		t.Fatalf("state = %s, want CONNECTED", got)
	}
	if f.dialer.urls[0] != "ws://test/ws?token=tok-1" {
		t.Fatalf("token not in dial url: %s", f.dialer.urls[0])
	}

	f.dialer.lastConn().frames <- []byte(`{"type":"new_message","payload":{
		"id":31,"conversation_id":4,"sender_id":9,"recipient_id":2,
		"sender_username":"carol","body":"ping","sent_at":1700000000000}}`)

	evt := recvEvent(t, ch)
	msg, ok := evt.Payload.(*rest.Message)
	if !ok {
		t.Fatalf("payload is %T, want *rest.Message", evt.Payload)
	}
	if msg.ID != 31 || msg.ConversationID != 4 || msg.Body != "ping" {
		t.Fatalf("unexpected message: %+v", msg)
	}
}

func TestMalformedEnvelopesDroppedSilently(t *testing.T) {
	f := newFixture(t)
	ch, unsub := f.bus.Subscribe("live.message", 8)
	defer unsub()

	if err := f.connector.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	conn := f.dialer.lastConn()

	conn.frames <- []byte(`not json at all`)
	conn.frames <- []byte(`{"type":"typing_indicator","payload":{}}`)
	conn.frames <- []byte(`{"type":"new_message","payload":{"id":1}}`)
	// A valid frame after the garbage proves the connection survived.
	conn.frames <- []byte(`{"type":"new_message","payload":{
		"id":55,"conversation_id":4,"sender_id":9,"recipient_id":2,
		"body":"still here","sent_at":1700000000001}}`)

	evt := recvEvent(t, ch)
	msg := evt.Payload.(*rest.Message)
	if msg.ID != 55 {
		t.Fatalf("garbage frame leaked through: %+v", msg)
	}
	select {
	case extra := <-ch:
		t.Fatalf("unexpected extra event: %+v", extra)
	case <-time.After(50 * time.Millisecond):
	}
	if got := f.machine.Current(); got != status.Connected {
		t.Fatalf("malformed frames tore down the channel: %s", got)
	}
}

func TestReadErrorSchedulesSingleRetry(t *testing.T) {
	f := newFixture(t)
	if err := f.connector.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}

	f.dialer.lastConn().errs <- errors.New("server went away")
	waitState(t, f.machine, status.PendingRetry)

	if got := f.clock.scheduledCount(); got != 1 {
		t.Fatalf("scheduled %d retries, want 1", got)
	}

	f.clock.fire(t)
	waitState(t, f.machine, status.Connected)
	if got := f.dialer.dialCount(); got != 2 {
		t.Fatalf("dial count = %d, want 2", got)
	}
}

func TestDialFailureRetriesUntilSuccess(t *testing.T) {
	f := newFixture(t)
	f.dialer.fails = 2

	if err := f.connector.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	waitState(t, f.machine, status.PendingRetry)

	f.clock.fire(t)
	waitState(t, f.machine, status.PendingRetry)
	f.clock.fire(t)
	waitState(t, f.machine, status.Connected)

	if got := f.dialer.dialCount(); got != 3 {
		t.Fatalf("dial count = %d, want 3", got)
	}
	if got := f.clock.scheduledCount(); got != 2 {
		t.Fatalf("scheduled %d retries, want 2", got)
	}
}

func TestMissingTokenParksInAuthRequired(t *testing.T) {
	f := newFixture(t)
	f.session.invalidate()

	if err := f.connector.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	if got := f.machine.Current(); got != status.AuthRequired {
		t.Fatalf("state = %s, want AUTH_REQUIRED", got)
	}
	if f.dialer.dialCount() != 0 {
		t.Fatal("dialed despite missing token")
	}
	if f.clock.scheduledCount() != 0 {
		t.Fatal("retry scheduled despite missing token")
	}
}

func TestTokenExpiryDuringConnectionGoesAuthRequired(t *testing.T) {
	f := newFixture(t)
	if err := f.connector.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}

	f.session.invalidate()
	f.dialer.lastConn().errs <- errors.New("1008 policy violation")
	waitState(t, f.machine, status.AuthRequired)

	if f.clock.scheduledCount() != 0 {
		t.Fatal("reconnect scheduled with a dead token")
	}
}

func TestStopCancelsPendingRetry(t *testing.T) {
	f := newFixture(t)
	f.dialer.fails = 1

	if err := f.connector.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	waitState(t, f.machine, status.PendingRetry)

	f.connector.Stop()
	if got := f.machine.Current(); got != status.Stopped {
		t.Fatalf("state = %s, want STOPPED", got)
	}

	// Firing the stale timer must not resurrect the channel.
	f.clock.fire(t)
	time.Sleep(20 * time.Millisecond)
	if got := f.dialer.dialCount(); got != 1 {
		t.Fatalf("dial count = %d after stop, want 1", got)
	}
}

func TestDisconnectParksForRelogin(t *testing.T) {
	f := newFixture(t)
	if err := f.connector.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	conn := f.dialer.lastConn()

	f.connector.Disconnect()
	if !conn.isClosed() {
		t.Fatal("connection left open after disconnect")
	}
	waitState(t, f.machine, status.AuthRequired)
	if f.clock.scheduledCount() != 0 {
		t.Fatal("retry scheduled after a deliberate disconnect")
	}

	// A fresh login connects again on the same connector.
	if err := f.connector.Connect(context.Background()); err != nil {
		t.Fatalf("reconnect: %v", err)
	}
	waitState(t, f.machine, status.Connected)
	if got := f.dialer.dialCount(); got != 2 {
		t.Fatalf("dial count = %d, want 2", got)
	}
}

func TestStopClosesConnection(t *testing.T) {
	f := newFixture(t)
	if err := f.connector.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	conn := f.dialer.lastConn()

	f.connector.Stop()
	if !conn.isClosed() {
		t.Fatal("connection left open after stop")
	}
	if err := f.connector.Connect(context.Background()); !errors.Is(err, ErrStopped) {
		t.Fatalf("connect after stop = %v, want ErrStopped", err)
	}
}
