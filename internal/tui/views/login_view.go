package views

import (
	"fmt"

	"github.com/rivo/tview"

	"github.com/omninudge/nudge/internal/tui/ui"
)

// LoginView is the username/password form shown while the session is in
// the auth-required state.
type LoginView struct {
	*tview.Flex
	form     *tview.Form
	message  *tview.TextView
	onSubmit func(username, password string)
}

// NewLoginView creates the login form.
func NewLoginView(theme *ui.Theme) *LoginView {
	lv := &LoginView{}

	lv.message = tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignCenter)
	lv.message.SetBackgroundColor(theme.BgColor)

	form := tview.NewForm().
		AddInputField("Username", "", 32, nil, nil).
		AddPasswordField("Password", "", 32, '*', nil)
	form.AddButton("Login", func() {
		username := form.GetFormItemByLabel("Username").(*tview.InputField).GetText()
		password := form.GetFormItemByLabel("Password").(*tview.InputField).GetText()
		if username == "" || password == "" {
			lv.ShowMessage("Username and password required")
			return
		}
		if lv.onSubmit != nil {
			lv.onSubmit(username, password)
		}
	})
	form.SetBorder(true).SetTitle(" Login ")
	form.SetBorderColor(theme.BorderColor)
	form.SetTitleColor(theme.TitleColor)
	form.SetBackgroundColor(theme.BgColor)
	lv.form = form

	lv.Flex = tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(lv.message, 3, 0, false).
		AddItem(form, 0, 1, true)

	return lv
}

// SetOnSubmit sets the callback for a submitted login.
func (lv *LoginView) SetOnSubmit(fn func(username, password string)) {
	lv.onSubmit = fn
}

// ShowMessage displays a status line above the form.
func (lv *LoginView) ShowMessage(msg string) {
	lv.message.Clear()
	_, _ = fmt.Fprintf(lv.message, "\n%s", msg)
}

// Form returns the focusable form primitive.
func (lv *LoginView) Form() *tview.Form { return lv.form }

// Reset clears the password field.
func (lv *LoginView) Reset() {
	lv.form.GetFormItemByLabel("Password").(*tview.InputField).SetText("")
}
