package notify

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/glowstudio-app/glowchat/internal/api"
	"github.com/glowstudio-app/glowchat/internal/bus"
	"go.uber.org/zap"
)

type fakeFeed struct {
	mu     sync.Mutex
	items  []api.Notification
	marked []int64
}

func (f *fakeFeed) Notifications(context.Context) ([]api.Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]api.Notification, len(f.items))
	copy(out, f.items)
	return out, nil
}

func (f *fakeFeed) MarkNotificationRead(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.marked = append(f.marked, id)
	return nil
}

func waitUnread(t *testing.T, p *Poller, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if p.Unread() == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("unread = %d, want %d", p.Unread(), want)
}

func TestPollerInitialFetch(t *testing.T) {
	feed := &fakeFeed{items: []api.Notification{
		{ID: 1, Title: "Booking confirmed"},
		{ID: 2, Title: "Payment received", Read: true},
	}}
	b := bus.New()
	ch, unsub := b.Subscribe("notify.", 10)
	defer unsub()

	p := NewPoller(feed, b, time.Hour, zap.NewNop())
	p.Start(context.Background())
	defer p.Stop()

	waitUnread(t, p, 1)
	if got := p.Notifications(); len(got) != 2 {
		t.Errorf("notifications = %d, want 2", len(got))
	}

	select {
	case evt := <-ch:
		payload := evt.Payload.(Changed)
		if payload.Unread != 1 || len(payload.Notifications) != 2 {
			t.Errorf("payload = %+v", payload)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for notify.changed event")
	}
}

func TestPollerRefreshPicksUpNewItems(t *testing.T) {
	feed := &fakeFeed{}
	b := bus.New()
	p := NewPoller(feed, b, 20*time.Millisecond, zap.NewNop())
	p.Start(context.Background())
	defer p.Stop()

	waitUnread(t, p, 0)
	feed.mu.Lock()
	feed.items = []api.Notification{{ID: 3, Title: "New booking"}}
	feed.mu.Unlock()

	waitUnread(t, p, 1)
}

func TestPollerRefreshPublishesContentOnlyChange(t *testing.T) {
	feed := &fakeFeed{items: []api.Notification{
		{ID: 1, Title: "Booking cancelled", Read: true},
	}}
	b := bus.New()
	ch, unsub := b.Subscribe("notify.", 10)
	defer unsub()

	p := NewPoller(feed, b, 20*time.Millisecond, zap.NewNop())
	p.Start(context.Background())
	defer p.Stop()

	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for initial notify.changed event")
	}

	// Replace the only item with a different read one. Length and unread
	// tally stay the same, but subscribers still need a fresh snapshot.
	feed.mu.Lock()
	feed.items = []api.Notification{{ID: 2, Title: "Schedule updated", Read: true}}
	feed.mu.Unlock()

	deadline := time.After(2 * time.Second)
	for {
		select {
		case evt := <-ch:
			payload := evt.Payload.(Changed)
			if len(payload.Notifications) == 1 && payload.Notifications[0].ID == 2 {
				return
			}
		case <-deadline:
			t.Fatal("no notify.changed event for replaced item")
		}
	}
}

func TestMarkReadUpdatesSnapshot(t *testing.T) {
	feed := &fakeFeed{items: []api.Notification{
		{ID: 1, Title: "A"},
		{ID: 2, Title: "B"},
	}}
	b := bus.New()
	p := NewPoller(feed, b, time.Hour, zap.NewNop())
	p.Start(context.Background())
	defer p.Stop()

	waitUnread(t, p, 2)
	p.MarkRead(context.Background(), 1)
	waitUnread(t, p, 1)

	feed.mu.Lock()
	marked := append([]int64(nil), feed.marked...)
	feed.mu.Unlock()
	if len(marked) != 1 || marked[0] != 1 {
		t.Errorf("marked = %v, want [1]", marked)
	}
	got := p.Notifications()
	if !got[0].Read || got[1].Read {
		t.Errorf("snapshot read flags = %v,%v want true,false", got[0].Read, got[1].Read)
	}
}
