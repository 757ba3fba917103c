// Package tui implements the interactive terminal client on top of the
// daemon's local API.
package tui

import (
	"context"
	"fmt"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/omninudge/nudge/internal/local"
	"github.com/omninudge/nudge/internal/tui/keys"
	"github.com/omninudge/nudge/internal/tui/model"
	"github.com/omninudge/nudge/internal/tui/ui"
	"github.com/omninudge/nudge/internal/tui/views"
)

// App is the main TUI application shell.
type App struct {
	app        *tview.Application
	pages      *tview.Pages
	vm         *model.ViewModel
	registry   *keys.Registry
	statusBar  *views.StatusBar
	convList   *views.ConversationList
	msgView    *views.MessageView
	composer   *views.Composer
	feedView   *views.FeedView
	threadView *views.ThreadView
	loginView  *views.LoginView
	ctx        context.Context
	cancel     context.CancelFunc
}

// NewApp creates the TUI application.
func NewApp(c *local.Client, accountName string) *App {
	ctx, cancel := context.WithCancel(context.Background())
	vm := model.NewViewModel(c)
	theme := ui.DefaultTheme()

	a := &App{
		app:        tview.NewApplication(),
		pages:      tview.NewPages(),
		vm:         vm,
		registry:   keys.NewRegistry(),
		statusBar:  views.NewStatusBar(),
		convList:   views.NewConversationList(theme),
		msgView:    views.NewMessageView(theme),
		composer:   views.NewComposer(),
		feedView:   views.NewFeedView(theme),
		threadView: views.NewThreadView(theme),
		loginView:  views.NewLoginView(theme),
		ctx:        ctx,
		cancel:     cancel,
	}

	a.statusBar.SetAccount(accountName)
	a.setupBindings()
	a.setupCallbacks()
	a.setupLayout()

	return a
}

func (a *App) setupBindings() {
	a.registry.AddGlobal("quit", &keys.Action{
		Rune: 'q', Key: tcell.KeyRune,
		Description: "q:quit", Visible: true,
		Handler: func() { a.app.Stop() },
	})
	a.registry.AddGlobal("help", &keys.Action{
		Rune: '?', Key: tcell.KeyRune,
		Description: "?:help", Visible: true,
		Handler: func() { a.pages.SwitchToPage("help") },
	})
	a.registry.AddGlobal("feed", &keys.Action{
		Rune: 'f', Key: tcell.KeyRune,
		Description: "f:feed", Visible: true,
		Handler: func() { a.showFeed() },
	})
	a.registry.AddView("conversations", "refresh", &keys.Action{
		Rune: 'r', Key: tcell.KeyRune,
		Description: "r:refresh", Visible: true,
		Handler: func() { a.refreshConversations() },
	})
}

func (a *App) setupCallbacks() {
	a.convList.SetSelectedFunc(func(row, col int) {
		if c := a.convList.Selected(); c != nil {
			a.openConversation(c)
		}
	})

	a.composer.SetOnSend(func(text string) {
		convID := a.vm.ActiveConversation()
		if convID == 0 {
			return
		}
		go func() {
			ref, err := a.vm.SendText(a.ctx, convID, text)
			if err != nil {
				a.vm.Flash.Set("Send failed: "+err.Error(), 5*time.Second)
			} else {
				a.vm.WaitForSend(a.ctx, convID, ref)
			}
			a.app.QueueUpdateDraw(func() {
				a.msgView.Update(a.vm.GetMessages())
				a.statusBar.SetFlash(a.vm.Flash.Get())
			})
		}()
	})

	a.feedView.SetSelectedFunc(func(row, col int) {
		if p := a.feedView.Selected(); p != nil {
			a.openPost(p)
		}
	})

	a.loginView.SetOnSubmit(func(username, password string) {
		a.loginView.ShowMessage("Logging in...")
		go func() {
			if err := a.vm.Login(a.ctx, username, password); err != nil {
				a.app.QueueUpdateDraw(func() {
					a.loginView.ShowMessage("[red]Login failed:[-] " + err.Error())
					a.loginView.Reset()
				})
				return
			}
			_ = a.vm.LoadConversations(a.ctx)
			a.app.QueueUpdateDraw(func() {
				a.convList.Update(a.vm.GetConversations())
				if st := a.vm.GetStatus(); st != nil {
					a.msgView.SetViewer(st.UserID)
				}
				a.pages.SwitchToPage("conversations")
				a.app.SetFocus(a.convList)
			})
		}()
	})
}

func (a *App) setupLayout() {
	threadFlex := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(a.msgView, 0, 1, false).
		AddItem(a.composer, 1, 0, false)

	a.pages.AddPage("conversations", a.convList, true, true)
	a.pages.AddPage("thread", threadFlex, true, false)
	a.pages.AddPage("feed", a.feedView, true, false)
	a.pages.AddPage("post", a.threadView, true, false)
	a.pages.AddPage("login", a.loginView, true, false)
	a.pages.AddPage("help", views.NewHelpView(ui.DefaultTheme()), true, false)

	root := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(a.pages, 0, 1, true).
		AddItem(a.statusBar, 1, 0, false)

	a.app.SetRoot(root, true)

	a.app.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		currentPage, _ := a.pages.GetFrontPage()

		if event.Key() == tcell.KeyEscape {
			switch currentPage {
			case "thread":
				// Leaving the thread: incoming messages count as unread
				// again.
				a.vm.CloseConversation(a.ctx)
				a.backToConversations()
				return nil
			case "feed", "help":
				a.backToConversations()
				return nil
			case "post":
				a.pages.SwitchToPage("feed")
				a.app.SetFocus(a.feedView)
				return nil
			}
		}

		// Let text input widgets handle all keys normally.
		focused := a.app.GetFocus()
		if _, ok := focused.(*tview.InputField); ok {
			return event
		}

		if currentPage == "thread" && event.Key() == tcell.KeyRune && event.Rune() == 'i' {
			a.app.SetFocus(a.composer.InputField)
			return nil
		}

		if a.registry.HandleEvent(currentPage, event) {
			a.statusBar.SetHints(a.registry.Hints(currentPage))
			return nil
		}

		return event
	})
}

func (a *App) openConversation(c *local.Conversation) {
	go func() {
		if err := a.vm.OpenConversation(a.ctx, c.ID); err != nil {
			a.vm.Flash.Set("Open failed: "+err.Error(), 5*time.Second)
			return
		}
		name := c.PeerUsername
		if name == "" {
			name = fmt.Sprintf("user %d", c.PeerID)
		}
		a.app.QueueUpdateDraw(func() {
			a.msgView.SetPeerName(name)
			a.msgView.Update(a.vm.GetMessages())
			a.pages.SwitchToPage("thread")
			a.app.SetFocus(a.msgView)
		})
	}()
}

func (a *App) backToConversations() {
	a.pages.SwitchToPage("conversations")
	a.app.SetFocus(a.convList)
	a.refreshConversations()
}

func (a *App) refreshConversations() {
	go func() {
		_ = a.vm.LoadConversations(a.ctx)
		a.app.QueueUpdateDraw(func() {
			a.convList.Update(a.vm.GetConversations())
		})
	}()
}

func (a *App) showFeed() {
	go func() {
		if err := a.vm.LoadFeed(a.ctx); err != nil {
			a.vm.Flash.Set("Feed failed: "+err.Error(), 5*time.Second)
			return
		}
		a.app.QueueUpdateDraw(func() {
			a.feedView.Update(a.vm.GetPosts())
			a.pages.SwitchToPage("feed")
			a.app.SetFocus(a.feedView)
		})
	}()
}

func (a *App) openPost(p *local.Post) {
	if p.Source != "reddit" {
		a.vm.Flash.Set("No comment view for local posts yet", 3*time.Second)
		return
	}
	go func() {
		if err := a.vm.LoadThread(a.ctx, p.ID); err != nil {
			a.vm.Flash.Set("Thread failed: "+err.Error(), 5*time.Second)
			return
		}
		a.app.QueueUpdateDraw(func() {
			a.threadView.Update(a.vm.GetThread())
			a.pages.SwitchToPage("post")
			a.app.SetFocus(a.threadView)
		})
	}()
}

// Run starts the TUI application.
func (a *App) Run() error {
	go func() {
		_ = a.vm.LoadStatus(a.ctx)
		_ = a.vm.LoadConversations(a.ctx)

		a.app.QueueUpdateDraw(func() {
			a.convList.Update(a.vm.GetConversations())
			if st := a.vm.GetStatus(); st != nil {
				a.statusBar.SetState(st.State)
				a.msgView.SetViewer(st.UserID)
				if !st.LoggedIn || st.State == "AUTH_REQUIRED" {
					a.pages.SwitchToPage("login")
					a.app.SetFocus(a.loginView.Form())
				}
			}
		})

		a.startRefreshLoop()
	}()

	return a.app.Run()
}

func (a *App) startRefreshLoop() {
	ticker := time.NewTicker(3 * time.Second)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				_ = a.vm.LoadStatus(a.ctx)
				currentPage, _ := a.pages.GetFrontPage()
				switch currentPage {
				case "conversations":
					_ = a.vm.LoadConversations(a.ctx)
				case "thread":
					if id := a.vm.ActiveConversation(); id != 0 {
						_ = a.vm.LoadMessages(a.ctx, id)
					}
				}
				a.app.QueueUpdateDraw(func() {
					switch currentPage {
					case "conversations":
						a.convList.Update(a.vm.GetConversations())
					case "thread":
						a.msgView.Update(a.vm.GetMessages())
					}
					if st := a.vm.GetStatus(); st != nil {
						a.statusBar.SetState(st.State)
						if currentPage != "login" && (st.State == "AUTH_REQUIRED" || !st.LoggedIn) {
							a.pages.SwitchToPage("login")
							a.app.SetFocus(a.loginView.Form())
						}
					}
					a.statusBar.SetFlash(a.vm.Flash.Get())
				})
			case <-a.vm.RefreshCh():
				// Fresh data landed; redraw now instead of waiting a tick.
				currentPage, _ := a.pages.GetFrontPage()
				a.app.QueueUpdateDraw(func() {
					switch currentPage {
					case "conversations":
						a.convList.Update(a.vm.GetConversations())
					case "thread":
						a.msgView.Update(a.vm.GetMessages())
					case "feed":
						a.feedView.Update(a.vm.GetPosts())
					}
					if st := a.vm.GetStatus(); st != nil {
						a.statusBar.SetState(st.State)
					}
					a.statusBar.SetFlash(a.vm.Flash.Get())
				})
			case <-a.ctx.Done():
				return
			}
		}
	}()
}

// Stop gracefully shuts down the TUI.
func (a *App) Stop() {
	a.cancel()
	a.app.Stop()
}
