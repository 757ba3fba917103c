package views

import (
	"fmt"
	"strings"
	"time"

	"github.com/rivo/tview"
)

// StatusBar displays the account, the live channel state, key hints, and
// transient flash messages on one line.
type StatusBar struct {
	*tview.TextView
	account string
	state   string
	hints   []string
	flash   string
}

// NewStatusBar creates a new status bar.
func NewStatusBar() *StatusBar {
	tv := tview.NewTextView().
		SetDynamicColors(true)
	tv.SetBackgroundColor(tview.Styles.MoreContrastBackgroundColor)

	return &StatusBar{TextView: tv}
}

// SetAccount updates the account name display.
func (sb *StatusBar) SetAccount(name string) {
	sb.account = name
	sb.render()
}

// SetState updates the live channel state display.
func (sb *StatusBar) SetState(state string) {
	sb.state = state
	sb.render()
}

// SetHints updates the key hints for the current page.
func (sb *StatusBar) SetHints(hints []string) {
	sb.hints = hints
	sb.render()
}

// SetFlash sets a temporary message.
func (sb *StatusBar) SetFlash(msg string) {
	sb.flash = msg
	sb.render()
}

func (sb *StatusBar) render() {
	sb.Clear()

	state := sb.state
	switch state {
	case "CONNECTED":
		state = "[green]" + state + "[-]"
	case "PENDING_RETRY", "CONNECTING":
		state = "[yellow]" + state + "[-]"
	case "AUTH_REQUIRED", "DISCONNECTED":
		state = "[red]" + state + "[-]"
	}

	clock := time.Now().Format("15:04")
	line := fmt.Sprintf(" [::b]%s[-:-:-] | %s | %s", sb.account, state, clock)
	if len(sb.hints) > 0 {
		line += " | " + strings.Join(sb.hints, "  ")
	}
	if sb.flash != "" {
		line += fmt.Sprintf(" | [yellow]%s[-]", sb.flash)
	}

	_, _ = fmt.Fprint(sb, line)
}
