package views

import (
	"fmt"

	"github.com/glowstudio-app/glowchat/internal/api"
	"github.com/rivo/tview"
)

// NotificationView lists the notification feed, newest first.
type NotificationView struct {
	*tview.Table
	items      []api.Notification
	selectedFn func() (int, int)
}

// NewNotificationView creates the notification feed table.
func NewNotificationView() *NotificationView {
	table := tview.NewTable().
		SetSelectable(true, false).
		SetBorders(false)
	table.SetBorder(true).SetTitle(" Notifications ")

	nv := &NotificationView{Table: table}
	nv.selectedFn = table.GetSelection
	return nv
}

// Update refreshes the feed.
func (nv *NotificationView) Update(items []api.Notification) {
	nv.items = items
	nv.Clear()

	nv.SetCell(0, 0, tview.NewTableCell(" Title").SetSelectable(false).SetTextColor(tview.Styles.SecondaryTextColor))
	nv.SetCell(0, 1, tview.NewTableCell(" Message").SetSelectable(false).SetTextColor(tview.Styles.SecondaryTextColor))
	nv.SetCell(0, 2, tview.NewTableCell(" Time").SetSelectable(false).SetTextColor(tview.Styles.SecondaryTextColor))

	for i, n := range items {
		title := n.Title
		if !n.Read {
			title = fmt.Sprintf("* %s", title)
		}
		nv.SetCell(i+1, 0, tview.NewTableCell(" "+sanitizeForTerminal(title)).SetMaxWidth(30).SetExpansion(1))
		nv.SetCell(i+1, 1, tview.NewTableCell(" "+sanitizeForTerminal(n.Body)).SetMaxWidth(50).SetExpansion(2))
		nv.SetCell(i+1, 2, tview.NewTableCell(" "+formatTimestamp(n.CreatedAt)).SetMaxWidth(12))
	}
}

// SelectedNotification returns the ID under the cursor, or zero.
func (nv *NotificationView) SelectedNotification() int64 {
	row, _ := nv.selectedFn()
	idx := row - 1
	if idx >= 0 && idx < len(nv.items) {
		return nv.items[idx].ID
	}
	return 0
}
