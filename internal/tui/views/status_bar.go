package views

import (
	"fmt"
	"time"

	"github.com/glowstudio-app/glowchat/internal/connstate"
	"github.com/rivo/tview"
)

// StatusBar displays the account, connection state, unread badge and
// transient errors on a single line.
type StatusBar struct {
	*tview.TextView
	account string
	state   connstate.State
	badge   int
	alerts  int
	flash   string
}

// NewStatusBar creates a new status bar.
func NewStatusBar() *StatusBar {
	tv := tview.NewTextView().
		SetDynamicColors(true)
	tv.SetBackgroundColor(tview.Styles.MoreContrastBackgroundColor)

	return &StatusBar{TextView: tv, state: connstate.Disconnected}
}

// SetAccount updates the account name display.
func (sb *StatusBar) SetAccount(name string) {
	sb.account = name
	sb.render()
}

// SetState updates the connection state display.
func (sb *StatusBar) SetState(state connstate.State) {
	sb.state = state
	sb.render()
}

// SetBadge updates the unread message badge.
func (sb *StatusBar) SetBadge(count int) {
	sb.badge = count
	sb.render()
}

// SetAlerts updates the unread notification count.
func (sb *StatusBar) SetAlerts(count int) {
	sb.alerts = count
	sb.render()
}

// SetFlash sets a temporary message.
func (sb *StatusBar) SetFlash(msg string) {
	sb.flash = msg
	sb.render()
}

func (sb *StatusBar) render() {
	sb.Clear()

	state := stateLabel(sb.state)
	badge := ""
	if sb.badge > 0 {
		badge = fmt.Sprintf(" | [red::b]%d unread[-:-:-]", sb.badge)
	}
	alerts := ""
	if sb.alerts > 0 {
		alerts = fmt.Sprintf(" | [yellow]%d alerts[-]", sb.alerts)
	}
	clock := time.Now().Format("15:04")

	line := fmt.Sprintf(" [::b]%s[-:-:-] | %s%s%s | %s", sb.account, state, badge, alerts, clock)
	if sb.flash != "" {
		line += fmt.Sprintf(" | [yellow]%s[-]", sb.flash)
	}

	_, _ = fmt.Fprint(sb, line)
}

func stateLabel(s connstate.State) string {
	switch s {
	case connstate.Connected:
		return "[green]online[-]"
	case connstate.Connecting:
		return "[yellow]connecting[-]"
	case connstate.Reconnecting:
		return "[yellow]reconnecting[-]"
	default:
		return "[red]offline[-]"
	}
}
