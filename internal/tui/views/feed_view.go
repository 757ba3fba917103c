package views

import (
	"fmt"

	"github.com/rivo/tview"

	"github.com/omninudge/nudge/internal/local"
	"github.com/omninudge/nudge/internal/tui/ui"
)

// FeedView is the read-only front-page table: local hub posts blended with
// mirrored Reddit posts.
type FeedView struct {
	*tview.Table
	posts      []local.Post
	selectedFn func() (int, int)
}

// NewFeedView creates the feed table.
func NewFeedView(theme *ui.Theme) *FeedView {
	table := tview.NewTable().
		SetSelectable(true, false).
		SetBorders(false)
	table.SetBorder(true).SetTitle(" Front Page ")
	table.SetBorderColor(theme.BorderColor)
	table.SetTitleColor(theme.TitleColor)
	table.SetBackgroundColor(theme.BgColor)

	fv := &FeedView{Table: table}
	fv.selectedFn = table.GetSelection
	return fv
}

// Update refreshes the feed with new data.
func (fv *FeedView) Update(posts []local.Post) {
	fv.posts = posts
	fv.Clear()

	theme := ui.DefaultTheme()
	fv.SetCell(0, 0, tview.NewTableCell(" Hub").SetSelectable(false).SetTextColor(theme.TableHeaderFg))
	fv.SetCell(0, 1, tview.NewTableCell(" Title").SetSelectable(false).SetTextColor(theme.TableHeaderFg))
	fv.SetCell(0, 2, tview.NewTableCell(" Score").SetSelectable(false).SetTextColor(theme.TableHeaderFg))
	fv.SetCell(0, 3, tview.NewTableCell(" Comments").SetSelectable(false).SetTextColor(theme.TableHeaderFg))

	for i, p := range posts {
		row := i + 1
		hub := p.Hub
		if p.Source == "reddit" {
			hub = "r/" + hub
		}
		fv.SetCell(row, 0, tview.NewTableCell(" "+hub).SetMaxWidth(18))
		fv.SetCell(row, 1, tview.NewTableCell(" "+sanitizeForTerminal(p.Title)).SetMaxWidth(60).SetExpansion(2))
		fv.SetCell(row, 2, tview.NewTableCell(fmt.Sprintf(" %d", p.Score)).SetMaxWidth(8))
		fv.SetCell(row, 3, tview.NewTableCell(fmt.Sprintf(" %d", p.CommentCount)).SetMaxWidth(10))
	}
}

// Selected returns the post under the cursor, or nil.
func (fv *FeedView) Selected() *local.Post {
	row, _ := fv.selectedFn()
	idx := row - 1
	if idx >= 0 && idx < len(fv.posts) {
		return &fv.posts[idx]
	}
	return nil
}
