package views

import (
	"fmt"
	"strings"

	"github.com/rivo/tview"

	"github.com/omninudge/nudge/internal/local"
	"github.com/omninudge/nudge/internal/tui/ui"
)

// ThreadView renders a mirrored Reddit thread: post header, self text, and
// the flattened comment tree.
type ThreadView struct {
	*tview.TextView
	theme *ui.Theme
}

// NewThreadView creates a new thread view.
func NewThreadView(theme *ui.Theme) *ThreadView {
	tv := tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true).
		SetWordWrap(true)
	tv.SetBorder(true)
	tv.SetBorderColor(theme.BorderColor)
	tv.SetBackgroundColor(theme.BgColor)
	tv.SetTextColor(theme.FgColor)
	tv.SetTitleColor(theme.TitleColor)

	return &ThreadView{TextView: tv, theme: theme}
}

// Update replaces the view's content with the given thread.
func (tv *ThreadView) Update(th *local.ThreadResponse) {
	tv.Clear()
	if th == nil {
		return
	}
	tv.SetTitle(fmt.Sprintf(" %s ", sanitizeForTerminal(th.Title)))

	var b strings.Builder
	fmt.Fprintf(&b, "[::b]%s[-:-:-]  (%d points, by %s)\n",
		sanitizeForTerminal(th.Title), th.Score, sanitizeForTerminal(th.Author))
	if th.SelfText != "" {
		fmt.Fprintf(&b, "\n%s\n", sanitizeForTerminal(th.SelfText))
	}
	b.WriteString("\n")
	for _, c := range th.Comments {
		indent := strings.Repeat("  ", c.Depth)
		fmt.Fprintf(&b, "%s[::b]%s[-:-:-] (%d)\n%s%s\n\n",
			indent, sanitizeForTerminal(c.Author), c.Score,
			indent, sanitizeForTerminal(c.Body))
	}
	_, _ = fmt.Fprint(tv, b.String())
	tv.ScrollToBeginning()
}
