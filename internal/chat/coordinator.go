package chat

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/glowstudio-app/glowchat/internal/account"
	"github.com/glowstudio-app/glowchat/internal/api"
	"github.com/glowstudio-app/glowchat/internal/bus"
	"github.com/glowstudio-app/glowchat/internal/connstate"
	"github.com/glowstudio-app/glowchat/internal/transport"
	"go.uber.org/zap"
)

// QueueDestination is the per-user push destination delivering inbound messages.
const QueueDestination = "/user/queue/messages"

// Store is the REST message-store surface the coordinator consumes.
// Implemented by api.Client.
type Store interface {
	Send(ctx context.Context, receiverID int64, content string) (*api.Message, error)
	History(ctx context.Context, partnerID int64) ([]api.Message, error)
	Customers(ctx context.Context) ([]api.Partner, error)
	AdminPartner(ctx context.Context) (*api.Partner, error)
	MarkRead(ctx context.Context, senderID int64) error
}

// Pusher is the transport surface the coordinator consumes. Implemented by
// transport.Channel.
type Pusher interface {
	Subscribe(destination string, handler transport.Handler)
}

// Event payloads published on the bus.
type (
	// PartnersUpdated carries the re-sorted partner list snapshot.
	PartnersUpdated struct {
		Partners []api.Partner
	}
	// ConversationLoaded carries a full history replacement for one partner.
	ConversationLoaded struct {
		PartnerID int64
		Messages  []api.Message
	}
	// MessageUpserted carries a single appended message.
	MessageUpserted struct {
		PartnerID int64
		Message   api.Message
	}
	// MarkedRead signals a partner's messages were acknowledged.
	MarkedRead struct {
		PartnerID int64
	}
)

// Coordinator owns the conversation state: the partner list, the active
// conversation and its displayed messages. All mutation happens on a single
// run-loop goroutine; public operations post commands into the loop and
// async completions post back into the same loop, so completions interleave
// but never race. Presentation layers read snapshots and re-render on bus
// events; they never mutate.
type Coordinator struct {
	store  Store
	push   Pusher
	bus    *bus.Bus
	logger *zap.Logger
	selfID int64
	role   account.Role

	cmds     chan func()
	quit     chan struct{}
	quitOnce sync.Once
	cancel   context.CancelFunc

	// State below is written only by the run loop; the lock exists for
	// concurrent snapshot readers.
	mu              sync.RWMutex
	partners        []api.Partner
	messages        []api.Message
	activeID        int64
	sending         bool
	loadingPartners bool
	loadingMessages bool
	lastError       string
}

// NewCoordinator creates a coordinator for the local user.
func NewCoordinator(store Store, push Pusher, b *bus.Bus, profile account.Profile, logger *zap.Logger) *Coordinator {
	return &Coordinator{
		store:  store,
		push:   push,
		bus:    b,
		logger: logger,
		selfID: profile.ID,
		role:   profile.Role,
		cmds:   make(chan func(), 64),
		quit:   make(chan struct{}),
	}
}

// Start launches the run loop. It subscribes to transport state events and
// re-subscribes the message queue on every fresh connected edge, since the
// transport deliberately drops subscriptions across reconnects.
func (c *Coordinator) Start(ctx context.Context) {
	ctx, c.cancel = context.WithCancel(ctx)
	transportCh, unsub := c.bus.Subscribe("transport.", 64)

	go func() {
		defer unsub()
		for {
			select {
			case fn := <-c.cmds:
				fn()
			case evt := <-transportCh:
				c.onTransportEvent(evt)
			case <-ctx.Done():
				c.quitOnce.Do(func() { close(c.quit) })
				return
			case <-c.quit:
				return
			}
		}
	}()
}

// Stop stops the run loop. Async completions posted after Stop are dropped.
func (c *Coordinator) Stop() {
	c.quitOnce.Do(func() { close(c.quit) })
	if c.cancel != nil {
		c.cancel()
	}
}

// LoadPartners fetches the partner list from the store. For partners the
// backend returned without a denormalized last message, history is lazily
// backfilled; each backfill independently re-triggers a re-sort as it
// resolves, in whatever order the responses land.
func (c *Coordinator) LoadPartners() {
	c.post(func() {
		c.mu.Lock()
		c.loadingPartners = true
		c.mu.Unlock()

		go func() {
			partners, err := c.fetchPartners()
			c.post(func() {
				c.mu.Lock()
				c.loadingPartners = false
				if err != nil {
					c.lastError = err.Error()
					c.mu.Unlock()
					c.logger.Warn("load partners failed", zap.Error(err))
					return
				}
				c.lastError = ""
				c.partners = partners
				c.resortLocked()
				c.mu.Unlock()
				c.publishPartners()

				for _, p := range partners {
					if p.LastMessageTime.IsZero() && p.LastMessage == "" {
						c.backfillLastMessage(p.ID)
					}
				}
			})
		}()
	})
}

// SeedPartners installs a pre-fetch snapshot (e.g. from the local cache) so
// the UI has something to paint before the first server round-trip. A no-op
// once real data is present.
func (c *Coordinator) SeedPartners(partners []api.Partner) {
	c.post(func() {
		c.mu.Lock()
		if len(c.partners) == 0 && len(partners) > 0 {
			c.partners = partners
			c.resortLocked()
			c.mu.Unlock()
			c.publishPartners()
			return
		}
		c.mu.Unlock()
	})
}

// SelectPartner opens the conversation with a partner: fetches history,
// replaces the displayed messages, and marks the partner's messages read.
// Rapid re-selection is safe: each history request is tagged with the
// partner it was issued for and the response is discarded if the selection
// moved on (last-selection-wins).
func (c *Coordinator) SelectPartner(partnerID int64) {
	c.post(func() {
		c.mu.Lock()
		c.activeID = partnerID
		c.loadingMessages = true
		c.mu.Unlock()

		go func() {
			msgs, err := c.store.History(context.Background(), partnerID)
			c.post(func() {
				c.mu.Lock()
				if c.activeID != partnerID {
					// Stale response for a partner no longer selected.
					c.mu.Unlock()
					c.logger.Debug("discarding stale history",
						zap.Int64("partner_id", partnerID),
					)
					return
				}
				c.loadingMessages = false
				if err != nil {
					c.lastError = err.Error()
					c.mu.Unlock()
					c.logger.Warn("load history failed", zap.Error(err), zap.Int64("partner_id", partnerID))
					return
				}
				c.lastError = ""
				c.messages = msgs
				c.mu.Unlock()
				c.publishMessages(partnerID, msgs)

				if len(msgs) > 0 {
					c.markRead(partnerID)
				}
			})
		}()
	})
}

// SendOutbound sends a message to the currently open partner. No-ops when no
// conversation is open, the trimmed body is empty, or a send is already in
// flight (in-flight guard, not a queue: the second attempt is dropped).
func (c *Coordinator) SendOutbound(content string) {
	c.post(func() {
		content := strings.TrimSpace(content)

		c.mu.Lock()
		receiverID := c.activeID
		if receiverID == 0 || content == "" || c.sending {
			c.mu.Unlock()
			return
		}
		c.sending = true
		c.mu.Unlock()

		go func() {
			msg, err := c.store.Send(context.Background(), receiverID, content)
			c.post(func() {
				c.mu.Lock()
				c.sending = false
				if err != nil {
					c.lastError = err.Error()
					c.mu.Unlock()
					c.logger.Warn("send failed", zap.Error(err), zap.Int64("receiver_id", receiverID))
					c.bus.Publish(bus.Event{
						Kind:      bus.KindChatSendFailed,
						Timestamp: time.Now(),
						Payload:   err.Error(),
					})
					return
				}
				c.lastError = ""
				if c.activeID == receiverID {
					c.messages = append(c.messages, *msg)
				}
				c.touchPartnerLocked(receiverID, msg.Content, msg.Timestamp, 0)
				c.mu.Unlock()

				c.publishMessage(receiverID, *msg)
				c.publishPartners()
			})
		}()
	})
}

// onTransportEvent re-subscribes the inbound queue on each connected edge.
// Level checks are not enough here: the transport drops all handlers when a
// connection dies, so only the transition into Connected tells us a fresh
// subscription is needed.
func (c *Coordinator) onTransportEvent(evt bus.Event) {
	change, ok := evt.Payload.(connstate.Change)
	if !ok || change.To != connstate.Connected {
		return
	}
	c.logger.Info("subscribing to inbound queue", zap.String("from", string(change.From)))
	c.push.Subscribe(QueueDestination, c.onFrame)
}

// onFrame decodes an inbound push frame and hands it to the run loop. Runs
// on the transport's read goroutine.
func (c *Coordinator) onFrame(body json.RawMessage) {
	var msg api.Message
	if err := json.Unmarshal(body, &msg); err != nil {
		c.logger.Warn("undecodable inbound message", zap.Error(err))
		return
	}
	c.post(func() { c.receiveInbound(msg) })
}

// receiveInbound merges one pushed message. Runs on the run loop.
func (c *Coordinator) receiveInbound(msg api.Message) {
	c.mu.Lock()
	if msg.SenderID == c.activeID {
		// Open conversation: append and acknowledge immediately.
		c.messages = append(c.messages, msg)
		active := c.activeID
		c.mu.Unlock()
		c.publishMessage(active, msg)
		c.markRead(active)
		return
	}

	found := c.touchPartnerLocked(msg.SenderID, msg.Content, msg.Timestamp, 1)
	c.mu.Unlock()

	if !found {
		// Unknown sender: the push event lacks display name/contact
		// fields, so no speculative insertion; refresh from the server.
		c.logger.Info("inbound from unknown sender, refreshing partners", zap.Int64("sender_id", msg.SenderID))
		c.LoadPartners()
		return
	}
	c.publishMessage(msg.SenderID, msg)
	c.publishPartners()
}

// markRead acknowledges a partner's messages and zeroes the local unread
// count once the store confirms. The store call is idempotent.
func (c *Coordinator) markRead(partnerID int64) {
	go func() {
		if err := c.store.MarkRead(context.Background(), partnerID); err != nil {
			c.logger.Warn("mark read failed", zap.Error(err), zap.Int64("partner_id", partnerID))
			return
		}
		c.post(func() {
			c.mu.Lock()
			for i := range c.partners {
				if c.partners[i].ID == partnerID {
					c.partners[i].UnreadCount = 0
					break
				}
			}
			c.mu.Unlock()
			c.bus.Publish(bus.Event{
				Kind:      bus.KindChatMarkedRead,
				Timestamp: time.Now(),
				Payload:   MarkedRead{PartnerID: partnerID},
			})
			c.publishPartners()
		})
	}()
}

// backfillLastMessage resolves a partner's denormalized last-message fields
// from its history when the backend omitted them.
func (c *Coordinator) backfillLastMessage(partnerID int64) {
	go func() {
		msgs, err := c.store.History(context.Background(), partnerID)
		if err != nil {
			c.logger.Debug("backfill failed", zap.Error(err), zap.Int64("partner_id", partnerID))
			return
		}
		if len(msgs) == 0 {
			return
		}
		last := msgs[len(msgs)-1]
		c.post(func() {
			c.mu.Lock()
			updated := false
			for i := range c.partners {
				if c.partners[i].ID == partnerID && c.partners[i].LastMessageTime.IsZero() {
					c.partners[i].LastMessage = last.Content
					c.partners[i].LastMessageTime = last.Timestamp
					updated = true
					break
				}
			}
			if updated {
				c.resortLocked()
			}
			c.mu.Unlock()
			if updated {
				c.publishPartners()
			}
		})
	}()
}

func (c *Coordinator) fetchPartners() ([]api.Partner, error) {
	if c.role == account.RoleCustomer {
		p, err := c.store.AdminPartner(context.Background())
		if err != nil {
			return nil, err
		}
		return []api.Partner{*p}, nil
	}
	return c.store.Customers(context.Background())
}

// touchPartnerLocked updates a partner's denormalized last-message fields
// and bumps its unread count, then re-sorts. Caller holds c.mu.
func (c *Coordinator) touchPartnerLocked(partnerID int64, content string, ts api.Timestamp, unreadDelta int) bool {
	for i := range c.partners {
		if c.partners[i].ID == partnerID {
			c.partners[i].LastMessage = content
			c.partners[i].LastMessageTime = ts
			c.partners[i].UnreadCount += unreadDelta
			c.resortLocked()
			return true
		}
	}
	return false
}

// resortLocked orders partners by last-message timestamp descending.
// Stable: equal or absent timestamps retain their prior relative order.
// Pure and idempotent, so out-of-order backfill completions converge to
// the same final order. Caller holds c.mu.
func (c *Coordinator) resortLocked() {
	sort.SliceStable(c.partners, func(i, j int) bool {
		return c.partners[i].LastMessageTime.After(c.partners[j].LastMessageTime.Time)
	})
}

// post hands fn to the run loop. It must never block the caller: the run
// loop itself posts follow-up work, so a blocking send on a full buffer
// would deadlock the loop. Overflow falls back to a goroutine.
func (c *Coordinator) post(fn func()) {
	select {
	case c.cmds <- fn:
	case <-c.quit:
	default:
		go func() {
			select {
			case c.cmds <- fn:
			case <-c.quit:
			}
		}()
	}
}

func (c *Coordinator) publishPartners() {
	c.bus.Publish(bus.Event{
		Kind:      bus.KindChatPartners,
		Timestamp: time.Now(),
		Payload:   PartnersUpdated{Partners: c.Partners()},
	})
}

func (c *Coordinator) publishMessages(partnerID int64, msgs []api.Message) {
	c.bus.Publish(bus.Event{
		Kind:      bus.KindChatMessages,
		Timestamp: time.Now(),
		Payload:   ConversationLoaded{PartnerID: partnerID, Messages: msgs},
	})
}

func (c *Coordinator) publishMessage(partnerID int64, msg api.Message) {
	c.bus.Publish(bus.Event{
		Kind:      bus.KindChatMessage,
		Timestamp: time.Now(),
		Payload:   MessageUpserted{PartnerID: partnerID, Message: msg},
	})
}
