package views

import (
	"fmt"

	"github.com/glowstudio-app/glowchat/internal/api"
	"github.com/rivo/tview"
)

// MessageThread displays the open conversation.
type MessageThread struct {
	*tview.TextView
	selfID int64
}

// NewMessageThread creates the conversation view for the local user.
func NewMessageThread(selfID int64) *MessageThread {
	tv := tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true).
		SetWordWrap(true)
	tv.SetBorder(true).SetTitle(" Messages ")

	return &MessageThread{TextView: tv, selfID: selfID}
}

// SetPartnerName updates the title with the partner's name.
func (mt *MessageThread) SetPartnerName(name string) {
	mt.SetTitle(fmt.Sprintf(" %s ", sanitizeForTerminal(name)))
}

// Update re-renders the thread. Messages arrive oldest first.
func (mt *MessageThread) Update(msgs []api.Message) {
	mt.Clear()

	for _, m := range msgs {
		sender := m.SenderName
		if m.SenderID == mt.selfID {
			sender = "You"
		}
		ts := ""
		if !m.Timestamp.IsZero() {
			ts = m.Timestamp.Local().Format("15:04")
		}
		line := fmt.Sprintf("[::b]%s[-:-:-] [::d]%s[-:-:-]\n%s\n\n",
			sanitizeForTerminal(sender), ts, sanitizeForTerminal(m.Content))
		_, _ = fmt.Fprint(mt, line)
	}

	mt.ScrollToEnd()
}
