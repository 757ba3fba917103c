package views

import (
	"fmt"

	"github.com/rivo/tview"

	"github.com/omninudge/nudge/internal/local"
	"github.com/omninudge/nudge/internal/tui/ui"
)

// MessageView displays the messages of one conversation.
type MessageView struct {
	*tview.TextView
	viewerID int64
}

// NewMessageView creates a new message view.
func NewMessageView(theme *ui.Theme) *MessageView {
	tv := tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true).
		SetWordWrap(true)
	tv.SetBorder(true).SetTitle(" Messages ")
	tv.SetBorderColor(theme.BorderColor)
	tv.SetTitleColor(theme.TitleColor)
	tv.SetBackgroundColor(theme.BgColor)

	return &MessageView{TextView: tv}
}

// SetViewer tells the view which sender id counts as "You".
func (mv *MessageView) SetViewer(id int64) {
	mv.viewerID = id
}

// SetPeerName updates the title with the peer's name.
func (mv *MessageView) SetPeerName(name string) {
	mv.SetTitle(fmt.Sprintf(" %s ", sanitizeForTerminal(name)))
}

// Update refreshes the view. Messages arrive newest first; they render
// oldest first so the latest sits at the bottom.
func (mv *MessageView) Update(msgs []local.Message) {
	mv.Clear()

	for i := len(msgs) - 1; i >= 0; i-- {
		m := msgs[i]
		sender := m.SenderName
		if m.SenderID == mv.viewerID {
			sender = "You"
		}
		if sender == "" {
			sender = fmt.Sprintf("user %d", m.SenderID)
		}

		marker := ""
		switch m.Status {
		case "sending":
			marker = " [gray]…sending[-]"
		case "failed":
			marker = " [red]failed[-]"
		}

		ts := formatTimestamp(m.SentAt)
		line := fmt.Sprintf("[::b]%s[-:-:-] [::d]%s[-:-:-]%s\n%s\n\n",
			sanitizeForTerminal(sender), ts, marker, sanitizeForTerminal(m.Body))
		_, _ = fmt.Fprint(mv, line)
	}

	mv.ScrollToEnd()
}
