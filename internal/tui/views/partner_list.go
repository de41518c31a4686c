package views

import (
	"fmt"
	"time"

	"github.com/glowstudio-app/glowchat/internal/api"
	"github.com/rivo/tview"
)

// PartnerList is the conversation list table, most recent first.
type PartnerList struct {
	*tview.Table
	partners   []api.Partner
	selectedFn func() (int, int)
}

// NewPartnerList creates the partner list table.
func NewPartnerList() *PartnerList {
	table := tview.NewTable().
		SetSelectable(true, false).
		SetBorders(false)
	table.SetBorder(true).SetTitle(" Conversations ")

	pl := &PartnerList{Table: table}
	pl.selectedFn = table.GetSelection
	return pl
}

// Update refreshes the list with a new snapshot, preserving the cursor.
func (pl *PartnerList) Update(partners []api.Partner) {
	row, col := pl.selectedFn()
	pl.partners = partners
	pl.Clear()

	// Header row.
	pl.SetCell(0, 0, tview.NewTableCell(" Name").SetSelectable(false).SetTextColor(tview.Styles.SecondaryTextColor))
	pl.SetCell(0, 1, tview.NewTableCell(" Last Message").SetSelectable(false).SetTextColor(tview.Styles.SecondaryTextColor))
	pl.SetCell(0, 2, tview.NewTableCell(" Time").SetSelectable(false).SetTextColor(tview.Styles.SecondaryTextColor))

	for i, p := range partners {
		name := p.FullName
		if name == "" {
			name = p.Email
		}
		if p.UnreadCount > 0 {
			name = fmt.Sprintf("* %s (%d)", name, p.UnreadCount)
		}

		pl.SetCell(i+1, 0, tview.NewTableCell(" "+sanitizeForTerminal(name)).SetMaxWidth(30).SetExpansion(1))
		pl.SetCell(i+1, 1, tview.NewTableCell(" "+sanitizeForTerminal(p.LastMessage)).SetMaxWidth(40).SetExpansion(2))
		pl.SetCell(i+1, 2, tview.NewTableCell(" "+formatTimestamp(p.LastMessageTime)).SetMaxWidth(12))
	}

	if row > len(partners) {
		row = len(partners)
	}
	if row > 0 {
		pl.Select(row, col)
	}
}

// SelectedPartner returns the ID of the partner under the cursor, or zero.
func (pl *PartnerList) SelectedPartner() int64 {
	row, _ := pl.selectedFn()
	idx := row - 1 // account for header
	if idx >= 0 && idx < len(pl.partners) {
		return pl.partners[idx].ID
	}
	return 0
}

func formatTimestamp(ts api.Timestamp) string {
	if ts.IsZero() {
		return ""
	}
	t := ts.Local()
	now := time.Now()
	if t.Year() == now.Year() && t.YearDay() == now.YearDay() {
		return t.Format("15:04")
	}
	return t.Format("01/02")
}
