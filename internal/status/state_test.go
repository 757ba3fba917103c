package status

import (
	"testing"

	"github.com/omninudge/nudge/internal/bus"
)

func TestInitialState(t *testing.T) {
	m := NewMachine(nil)
	if m.Current() != Disconnected {
		t.Errorf("initial state = %s, want DISCONNECTED", m.Current())
	}
}

func TestValidTransitions(t *testing.T) {
	tests := []struct {
		from State
		to   State
	}{
		{Disconnected, Connecting},
		{Disconnected, AuthRequired},
		{AuthRequired, Connecting},
		{Connecting, Connected},
		{Connecting, PendingRetry},
		{Connected, PendingRetry},
		{PendingRetry, Connecting},
		{Connected, AuthRequired},
		{Connected, Stopped},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			m := NewMachine(nil)
			walkTo(t, m, tt.from)
			if err := m.Transition(tt.to); err != nil {
				t.Errorf("Transition(%s -> %s) error = %v", tt.from, tt.to, err)
			}
			if m.Current() != tt.to {
				t.Errorf("state = %s, want %s", m.Current(), tt.to)
			}
		})
	}
}

func TestInvalidTransition(t *testing.T) {
	m := NewMachine(nil)
	if err := m.Transition(Connected); err == nil {
		t.Error("Transition(DISCONNECTED -> CONNECTED) should fail; must go through CONNECTING")
	}
}

// TestPendingRetryRejectsReentry verifies a second close/error while a retry
// is pending cannot re-enter PENDING_RETRY. Callers treat the error as "retry
// already scheduled" and must not arm another timer.
func TestPendingRetryRejectsReentry(t *testing.T) {
	m := NewMachine(nil)
	walkTo(t, m, PendingRetry)

	if err := m.Transition(PendingRetry); err == nil {
		t.Fatal("Transition(PENDING_RETRY -> PENDING_RETRY) should fail")
	}
	if m.Current() != PendingRetry {
		t.Errorf("state = %s, want PENDING_RETRY (unchanged)", m.Current())
	}
}

func TestStoppedIsTerminal(t *testing.T) {
	m := NewMachine(nil)
	walkTo(t, m, Connected)

	if err := m.Transition(Stopped); err != nil {
		t.Fatal(err)
	}
	for _, to := range []State{Connecting, PendingRetry, Disconnected, AuthRequired} {
		if err := m.Transition(to); err == nil {
			t.Errorf("Transition(STOPPED -> %s) should fail", to)
		}
	}
}

func TestTransitionEmitsEvent(t *testing.T) {
	b := bus.New()
	ch, unsub := b.Subscribe("live.", 10)
	defer unsub()

	m := NewMachine(b)
	if err := m.Transition(Connecting); err != nil {
		t.Fatal(err)
	}

	evt := <-ch
	if evt.Kind != "live.status_changed" {
		t.Errorf("event kind = %q, want live.status_changed", evt.Kind)
	}
	change, ok := evt.Payload.(StatusChange)
	if !ok {
		t.Fatalf("payload type = %T, want StatusChange", evt.Payload)
	}
	if change.From != Disconnected || change.To != Connecting {
		t.Errorf("change = %v -> %v, want DISCONNECTED -> CONNECTING", change.From, change.To)
	}
}

// TestDropReconnectCycle simulates the steady-state reconnect loop:
// CONNECTED → PENDING_RETRY → CONNECTING → CONNECTED
func TestDropReconnectCycle(t *testing.T) {
	m := NewMachine(nil)
	walkTo(t, m, Connected)

	steps := []State{PendingRetry, Connecting, Connected}
	for _, s := range steps {
		if err := m.Transition(s); err != nil {
			t.Fatalf("Transition to %s: %v (current: %s)", s, err, m.Current())
		}
	}
	if m.Current() != Connected {
		t.Errorf("final state = %s, want CONNECTED", m.Current())
	}
}

// TestExpiredTokenLifecycle simulates a dead token discovered mid-session:
// CONNECTED → AUTH_REQUIRED → CONNECTING → CONNECTED
func TestExpiredTokenLifecycle(t *testing.T) {
	m := NewMachine(nil)
	walkTo(t, m, Connected)

	steps := []State{AuthRequired, Connecting, Connected}
	for _, s := range steps {
		if err := m.Transition(s); err != nil {
			t.Fatalf("Transition to %s: %v (current: %s)", s, err, m.Current())
		}
	}
}

// walkTo is a helper that transitions the machine to a target state.
func walkTo(t *testing.T, m *Machine, target State) {
	t.Helper()
	paths := map[State][]State{
		Disconnected: {},
		AuthRequired: {AuthRequired},
		Connecting:   {Connecting},
		Connected:    {Connecting, Connected},
		PendingRetry: {Connecting, Connected, PendingRetry},
		Stopped:      {Stopped},
	}
	for _, s := range paths[target] {
		if err := m.Transition(s); err != nil {
			t.Fatalf("walkTo(%s): %v", target, err)
		}
	}
}
