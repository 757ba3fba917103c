package views

import (
	"fmt"

	"github.com/rivo/tview"

	"github.com/omninudge/nudge/internal/tui/ui"
)

// HelpView displays the key binding reference.
type HelpView struct {
	*tview.TextView
}

// NewHelpView creates a new help view.
func NewHelpView(theme *ui.Theme) *HelpView {
	tv := tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true)
	tv.SetBorder(true)
	tv.SetBorderColor(theme.BorderColor)
	tv.SetBackgroundColor(theme.BgColor)
	tv.SetTextColor(theme.FgColor)
	tv.SetTitle(" Help ")
	tv.SetTitleColor(theme.TitleColor)

	hv := &HelpView{TextView: tv}
	hv.render(theme)
	return hv
}

func (hv *HelpView) render(theme *ui.Theme) {
	kc := fmt.Sprintf("#%06x", theme.HintKeyColor.Hex())

	help := fmt.Sprintf(`
  [::b]Global Keys[-:-:-]

  [%s]q[-:-:-]      Quit                [%s]Esc[-:-:-]   Back
  [%s]?[-:-:-]      Help                [%s]f[-:-:-]     Front page

  [::b]Conversation List[-:-:-]

  [%s]Enter[-:-:-]  Open conversation   [%s]r[-:-:-]     Refresh
  [%s]j/Down[-:-:-] Move down           [%s]k/Up[-:-:-]  Move up

  [::b]Message Thread[-:-:-]

  [%s]i[-:-:-]      Focus composer      [%s]Esc[-:-:-]   Leave composer / back
  [%s]Enter[-:-:-]  Send (in composer)

  [::b]Front Page[-:-:-]

  [%s]Enter[-:-:-]  Open comments (mirrored posts)
`,
		kc, kc, kc, kc,
		kc, kc, kc, kc,
		kc, kc, kc, kc,
	)

	_, _ = fmt.Fprint(hv, help)
}
