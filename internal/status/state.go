package status

import (
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/omninudge/nudge/internal/bus"
)

// State represents a live channel runtime state.
type State string

const (
	Disconnected State = "DISCONNECTED"
	AuthRequired State = "AUTH_REQUIRED"
	Connecting   State = "CONNECTING"
	Connected    State = "CONNECTED"
	PendingRetry State = "PENDING_RETRY"
	Stopped      State = "STOPPED"
)

// validTransitions defines allowed state transitions. PendingRetry can only
// be left by actually attempting to connect or by teardown; a second
// close/error while a retry is pending has no edge to take, which is what
// keeps the reconnect single-flight.
var validTransitions = map[State][]State{
	Disconnected: {Connecting, AuthRequired, Stopped},
	AuthRequired: {Connecting, Stopped},
	Connecting:   {Connected, PendingRetry, AuthRequired, Stopped},
	Connected:    {PendingRetry, AuthRequired, Stopped},
	PendingRetry: {Connecting, AuthRequired, Stopped},
	Stopped:      {},
}

// Machine tracks and enforces live channel state transitions.
type Machine struct {
	mu      sync.RWMutex
	current State
	bus     *bus.Bus
}

// NewMachine creates a new state machine starting in Disconnected state.
func NewMachine(b *bus.Bus) *Machine {
	return &Machine{
		current: Disconnected,
		bus:     b,
	}
}

// Current returns the current state.
func (m *Machine) Current() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Transition attempts to move to a new state. Returns error if transition is invalid.
func (m *Machine) Transition(to State) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	allowed := validTransitions[m.current]
	if !slices.Contains(allowed, to) {
		return fmt.Errorf("invalid transition from %s to %s", m.current, to)
	}
	from := m.current
	m.current = to
	if m.bus != nil {
		m.bus.Publish(bus.Event{
			Kind:      "live.status_changed",
			Timestamp: time.Now(),
			Payload: StatusChange{
				From: from,
				To:   to,
			},
		})
	}
	return nil
}

// StatusChange is the payload for status change events.
type StatusChange struct {
	From State
	To   State
}
