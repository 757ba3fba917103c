package views

import (
	"fmt"
	"time"

	"github.com/rivo/tview"

	"github.com/omninudge/nudge/internal/local"
	"github.com/omninudge/nudge/internal/tui/ui"
)

// ConversationList is the main conversation table.
type ConversationList struct {
	*tview.Table
	convs      []local.Conversation
	selectedFn func() (int, int)
}

// NewConversationList creates the conversation list table.
func NewConversationList(theme *ui.Theme) *ConversationList {
	table := tview.NewTable().
		SetSelectable(true, false).
		SetBorders(false)
	table.SetBorder(true).SetTitle(" Conversations ")
	table.SetBorderColor(theme.BorderColor)
	table.SetTitleColor(theme.TitleColor)
	table.SetBackgroundColor(theme.BgColor)

	cl := &ConversationList{Table: table}
	cl.selectedFn = table.GetSelection
	return cl
}

// Update refreshes the list with new data.
func (cl *ConversationList) Update(convs []local.Conversation) {
	cl.convs = convs
	cl.Clear()

	theme := ui.DefaultTheme()
	cl.SetCell(0, 0, tview.NewTableCell(" Peer").SetSelectable(false).SetTextColor(theme.TableHeaderFg))
	cl.SetCell(0, 1, tview.NewTableCell(" Last Message").SetSelectable(false).SetTextColor(theme.TableHeaderFg))
	cl.SetCell(0, 2, tview.NewTableCell(" Time").SetSelectable(false).SetTextColor(theme.TableHeaderFg))

	for i, c := range convs {
		row := i + 1
		name := c.PeerUsername
		if name == "" {
			name = fmt.Sprintf("user %d", c.PeerID)
		}
		nameCell := tview.NewTableCell(" " + sanitizeForTerminal(name)).SetMaxWidth(24).SetExpansion(1)
		if c.UnreadCount > 0 {
			nameCell.SetText(fmt.Sprintf(" %s (%d)", sanitizeForTerminal(name), c.UnreadCount))
			nameCell.SetTextColor(theme.UnreadColor)
		}
		cl.SetCell(row, 0, nameCell)
		cl.SetCell(row, 1, tview.NewTableCell(" "+sanitizeForTerminal(c.LastBody)).SetMaxWidth(48).SetExpansion(2))
		cl.SetCell(row, 2, tview.NewTableCell(" "+formatTimestamp(c.LastAt)).SetMaxWidth(12))
	}
}

// Selected returns the conversation under the cursor, or nil.
func (cl *ConversationList) Selected() *local.Conversation {
	row, _ := cl.selectedFn()
	idx := row - 1 // account for header
	if idx >= 0 && idx < len(cl.convs) {
		return &cl.convs[idx]
	}
	return nil
}

func formatTimestamp(ms int64) string {
	if ms == 0 {
		return ""
	}
	t := time.UnixMilli(ms)
	now := time.Now()
	if t.Year() == now.Year() && t.YearDay() == now.YearDay() {
		return t.Format("15:04")
	}
	return t.Format("01/02")
}
