package tui

import (
	"context"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/glowstudio-app/glowchat/internal/badge"
	"github.com/glowstudio-app/glowchat/internal/bus"
	"github.com/glowstudio-app/glowchat/internal/chat"
	"github.com/glowstudio-app/glowchat/internal/connstate"
	"github.com/glowstudio-app/glowchat/internal/notify"
	"github.com/glowstudio-app/glowchat/internal/tui/keys"
	"github.com/glowstudio-app/glowchat/internal/tui/model"
	"github.com/glowstudio-app/glowchat/internal/tui/views"
	"github.com/rivo/tview"
)

// App is the TUI shell. It renders coordinator snapshots and re-draws on bus
// events; all state mutation goes through the coordinator.
type App struct {
	app      *tview.Application
	pages    *tview.Pages
	coord    *chat.Coordinator
	badges   *badge.Aggregator
	alerts   *notify.Poller
	bus      *bus.Bus
	machine  *connstate.Machine
	registry *keys.Registry
	flash    *model.Flash

	statusBar *views.StatusBar
	partners  *views.PartnerList
	thread    *views.MessageThread
	composer  *views.Composer
	alertView *views.NotificationView

	ctx    context.Context
	cancel context.CancelFunc
}

// NewApp creates the TUI application.
func NewApp(coord *chat.Coordinator, badges *badge.Aggregator, alerts *notify.Poller, b *bus.Bus, machine *connstate.Machine, accountName string) *App {
	ctx, cancel := context.WithCancel(context.Background())

	a := &App{
		app:       tview.NewApplication(),
		pages:     tview.NewPages(),
		coord:     coord,
		badges:    badges,
		alerts:    alerts,
		bus:       b,
		machine:   machine,
		registry:  keys.NewRegistry(),
		flash:     &model.Flash{},
		statusBar: views.NewStatusBar(),
		partners:  views.NewPartnerList(),
		thread:    views.NewMessageThread(coord.SelfID()),
		composer:  views.NewComposer(),
		alertView: views.NewNotificationView(),
		ctx:       ctx,
		cancel:    cancel,
	}

	a.statusBar.SetAccount(accountName)
	a.setupBindings()
	a.setupCallbacks()
	a.setupLayout()

	return a
}

func (a *App) setupBindings() {
	a.registry.Add(&keys.Binding{
		Rune: 'q', Key: tcell.KeyRune,
		Description: "q:quit", Visible: true,
		Handler: func() { a.app.Stop() },
	})
	a.registry.Add(&keys.Binding{
		Rune: 'n', Key: tcell.KeyRune,
		Description: "n:notifications", Visible: true,
		Handler: func() { a.showAlerts() },
	})
	a.registry.Add(&keys.Binding{
		Scope: "alerts",
		Rune:  'r', Key: tcell.KeyRune,
		Description: "r:mark read", Visible: true,
		Handler: func() {
			if id := a.alertView.SelectedNotification(); id != 0 {
				a.alerts.MarkRead(a.ctx, id)
			}
		},
	})
}

func (a *App) setupCallbacks() {
	a.partners.SetSelectedFunc(func(row, col int) {
		if id := a.partners.SelectedPartner(); id != 0 {
			a.openConversation(id)
		}
	})

	a.composer.SetOnSend(func(text string) {
		a.coord.SendOutbound(text)
	})
}

func (a *App) setupLayout() {
	chatFlex := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(a.thread, 0, 1, false).
		AddItem(a.composer, 1, 0, false)

	a.pages.AddPage("partners", a.partners, true, true)
	a.pages.AddPage("chat", chatFlex, true, false)
	a.pages.AddPage("alerts", a.alertView, true, false)

	root := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(a.pages, 0, 1, true).
		AddItem(a.statusBar, 1, 0, false)

	a.app.SetRoot(root, true)

	a.app.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		currentPage, _ := a.pages.GetFrontPage()

		if event.Key() == tcell.KeyEscape {
			switch currentPage {
			case "chat", "alerts":
				a.pages.SwitchToPage("partners")
				a.app.SetFocus(a.partners)
				return nil
			}
		}

		// Let text input widgets handle all keys normally.
		focused := a.app.GetFocus()
		if _, ok := focused.(*tview.InputField); ok {
			return event
		}

		// 'i' focuses the composer (only when not already in an input field).
		if currentPage == "chat" && event.Key() == tcell.KeyRune && event.Rune() == 'i' {
			a.app.SetFocus(a.composer.InputField)
			return nil
		}

		if a.registry.HandleEvent(currentPage, event) {
			return nil
		}

		return event
	})
}

func (a *App) openConversation(partnerID int64) {
	a.coord.SelectPartner(partnerID)

	name := ""
	for _, p := range a.coord.Partners() {
		if p.ID == partnerID {
			name = p.FullName
			break
		}
	}
	a.thread.SetPartnerName(name)
	a.thread.Update(a.coord.Messages())
	a.pages.SwitchToPage("chat")
	a.app.SetFocus(a.composer.InputField)
}

func (a *App) showAlerts() {
	a.alertView.Update(a.alerts.Notifications())
	a.pages.SwitchToPage("alerts")
	a.app.SetFocus(a.alertView)
}

// Run paints the initial snapshots, starts the event loop and blocks until
// the user quits.
func (a *App) Run() error {
	a.partners.Update(a.coord.Partners())
	a.statusBar.SetState(a.machine.Current())
	a.statusBar.SetBadge(a.badges.Count())

	go a.watchEvents()
	go a.tickClock()

	return a.app.Run()
}

// watchEvents re-renders on every domain event. Rendering reads snapshots,
// so a dropped bus event at worst delays a redraw until the next one.
func (a *App) watchEvents() {
	ch, unsub := a.bus.Subscribe("", 256)
	defer unsub()

	for {
		select {
		case evt := <-ch:
			a.handleEvent(evt)
		case <-a.ctx.Done():
			return
		}
	}
}

func (a *App) handleEvent(evt bus.Event) {
	switch evt.Kind {
	case bus.KindChatPartners, bus.KindChatMarkedRead:
		a.app.QueueUpdateDraw(func() {
			a.partners.Update(a.coord.Partners())
		})
	case bus.KindChatMessages, bus.KindChatMessage:
		a.app.QueueUpdateDraw(func() {
			page, _ := a.pages.GetFrontPage()
			if page == "chat" {
				a.thread.Update(a.coord.Messages())
			}
			a.partners.Update(a.coord.Partners())
		})
	case bus.KindChatSendFailed:
		msg, _ := evt.Payload.(string)
		a.flash.Set("Send failed: "+msg, 5*time.Second)
		a.app.QueueUpdateDraw(func() {
			a.statusBar.SetFlash(a.flash.Get())
		})
	case bus.KindTransportState:
		change, ok := evt.Payload.(connstate.Change)
		if !ok {
			return
		}
		a.app.QueueUpdateDraw(func() {
			a.statusBar.SetState(change.To)
		})
	case bus.KindBadgeChanged:
		changed, ok := evt.Payload.(badge.Changed)
		if !ok {
			return
		}
		a.app.QueueUpdateDraw(func() {
			a.statusBar.SetBadge(changed.Count)
		})
	case bus.KindNotifyChanged:
		changed, ok := evt.Payload.(notify.Changed)
		if !ok {
			return
		}
		a.app.QueueUpdateDraw(func() {
			a.statusBar.SetAlerts(changed.Unread)
			page, _ := a.pages.GetFrontPage()
			if page == "alerts" {
				a.alertView.Update(changed.Notifications)
			}
		})
	}
}

// tickClock refreshes the status bar clock and expires flash messages.
func (a *App) tickClock() {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			a.app.QueueUpdateDraw(func() {
				a.statusBar.SetFlash(a.flash.Get())
			})
		case <-a.ctx.Done():
			return
		}
	}
}

// Stop gracefully shuts down the TUI.
func (a *App) Stop() {
	a.cancel()
	a.app.Stop()
}
