package notify

import (
	"context"
	"sync"
	"time"

	"github.com/glowstudio-app/glowchat/internal/api"
	"github.com/glowstudio-app/glowchat/internal/bus"
	"go.uber.org/zap"
)

// Feed is the server-side notification surface. Implemented by api.Client.
type Feed interface {
	Notifications(ctx context.Context) ([]api.Notification, error)
	MarkNotificationRead(ctx context.Context, id int64) error
}

// Changed is the payload for notify.changed events.
type Changed struct {
	Unread        int
	Notifications []api.Notification
}

// Poller keeps a periodically refreshed snapshot of the notification feed.
// The backend has no push channel for notifications, so unlike chat this is
// poll-only.
type Poller struct {
	feed     Feed
	bus      *bus.Bus
	logger   *zap.Logger
	interval time.Duration
	cancel   context.CancelFunc

	mu     sync.RWMutex
	items  []api.Notification
	unread int
}

// NewPoller creates a notification poller with the given refresh period.
func NewPoller(feed Feed, b *bus.Bus, interval time.Duration, logger *zap.Logger) *Poller {
	return &Poller{
		feed:     feed,
		bus:      b,
		logger:   logger,
		interval: interval,
	}
}

// Notifications returns the current snapshot, newest first.
func (p *Poller) Notifications() []api.Notification {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]api.Notification, len(p.items))
	copy(out, p.items)
	return out
}

// Unread returns the number of unread notifications in the snapshot.
func (p *Poller) Unread() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.unread
}

// Start performs an immediate fetch and then refreshes on the interval.
func (p *Poller) Start(ctx context.Context) {
	ctx, p.cancel = context.WithCancel(ctx)

	go func() {
		p.refresh(ctx)
		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				p.refresh(ctx)
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop stops the poller.
func (p *Poller) Stop() {
	if p.cancel != nil {
		p.cancel()
	}
}

// MarkRead acknowledges one notification and updates the snapshot in place,
// without waiting for the next poll.
func (p *Poller) MarkRead(ctx context.Context, id int64) {
	go func() {
		if err := p.feed.MarkNotificationRead(ctx, id); err != nil {
			p.logger.Warn("mark notification read failed", zap.Error(err), zap.Int64("id", id))
			return
		}
		p.mu.Lock()
		for i := range p.items {
			if p.items[i].ID == id && !p.items[i].Read {
				p.items[i].Read = true
				p.unread--
				break
			}
		}
		p.mu.Unlock()
		p.publish()
	}()
}

func (p *Poller) refresh(ctx context.Context) {
	items, err := p.feed.Notifications(ctx)
	if err != nil {
		p.logger.Warn("notification fetch failed", zap.Error(err))
		return
	}
	unread := 0
	for _, n := range items {
		if !n.Read {
			unread++
		}
	}

	p.mu.Lock()
	changed := !sameFeed(items, p.items)
	p.items = items
	p.unread = unread
	p.mu.Unlock()

	if changed {
		p.publish()
	}
}

// sameFeed reports whether two snapshots list the same notifications in the
// same order with the same read flags. Counts alone are not enough: one read
// item replaced by another keeps both the length and the unread tally.
func sameFeed(a, b []api.Notification) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].ID != b[i].ID || a[i].Read != b[i].Read {
			return false
		}
	}
	return true
}

func (p *Poller) publish() {
	p.mu.RLock()
	items := make([]api.Notification, len(p.items))
	copy(items, p.items)
	payload := Changed{Unread: p.unread, Notifications: items}
	p.mu.RUnlock()
	p.bus.Publish(bus.Event{
		Kind:      bus.KindNotifyChanged,
		Timestamp: time.Now(),
		Payload:   payload,
	})
}
