package badge

import (
	"context"
	"sync"
	"time"

	"github.com/glowstudio-app/glowchat/internal/bus"
	"github.com/glowstudio-app/glowchat/internal/chat"
	"go.uber.org/zap"
)

// Counter is the server-side unread total. Implemented by api.Client.
type Counter interface {
	UnreadCount(ctx context.Context) (int, error)
}

// Changed is the payload for badge.changed events.
type Changed struct {
	Count int
}

// Aggregator maintains the total unread badge. Between polls the badge
// tracks the partner list: every partners snapshot on the bus recomputes
// the sum of per-partner unread counts. A periodic poll reconciles against
// the server, and the server value wins whenever the two disagree, since
// other devices may have read messages this client never saw.
type Aggregator struct {
	counter  Counter
	bus      *bus.Bus
	logger   *zap.Logger
	interval time.Duration
	cancel   context.CancelFunc

	mu    sync.RWMutex
	count int
}

// NewAggregator creates the badge aggregator. interval is the server
// reconciliation period.
func NewAggregator(counter Counter, b *bus.Bus, interval time.Duration, logger *zap.Logger) *Aggregator {
	return &Aggregator{
		counter:  counter,
		bus:      b,
		logger:   logger,
		interval: interval,
	}
}

// Count returns the current badge value.
func (a *Aggregator) Count() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.count
}

// Start subscribes to conversation events and launches the reconciliation
// ticker.
func (a *Aggregator) Start(ctx context.Context) {
	ctx, a.cancel = context.WithCancel(ctx)
	ch, unsub := a.bus.Subscribe("chat.", 64)

	go func() {
		defer unsub()
		ticker := time.NewTicker(a.interval)
		defer ticker.Stop()
		for {
			select {
			case evt := <-ch:
				a.handleEvent(evt)
			case <-ticker.C:
				a.reconcile(ctx)
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop stops the aggregator.
func (a *Aggregator) Stop() {
	if a.cancel != nil {
		a.cancel()
	}
}

// Refresh forces an immediate server reconciliation, e.g. right after login.
func (a *Aggregator) Refresh(ctx context.Context) {
	a.reconcile(ctx)
}

func (a *Aggregator) handleEvent(evt bus.Event) {
	payload, ok := evt.Payload.(chat.PartnersUpdated)
	if !ok {
		return
	}
	total := 0
	for _, p := range payload.Partners {
		total += p.UnreadCount
	}
	a.set(total)
}

func (a *Aggregator) reconcile(ctx context.Context) {
	count, err := a.counter.UnreadCount(ctx)
	if err != nil {
		a.logger.Warn("unread reconciliation failed", zap.Error(err))
		return
	}
	a.set(count)
}

// set publishes badge.changed only on actual change.
func (a *Aggregator) set(count int) {
	a.mu.Lock()
	if count == a.count {
		a.mu.Unlock()
		return
	}
	a.count = count
	a.mu.Unlock()

	a.bus.Publish(bus.Event{
		Kind:      bus.KindBadgeChanged,
		Timestamp: time.Now(),
		Payload:   Changed{Count: count},
	})
}
