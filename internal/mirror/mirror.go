package mirror

import (
	"context"

	"github.com/glowstudio-app/glowchat/internal/api"
	"github.com/glowstudio-app/glowchat/internal/bus"
	"github.com/glowstudio-app/glowchat/internal/cache"
	"github.com/glowstudio-app/glowchat/internal/chat"
	"go.uber.org/zap"
)

// Writer mirrors conversation state into the local cache so the next launch
// can paint the partner list before the first server round-trip. It
// subscribes to "chat." events on the bus and writes idempotently; the cache
// is a read-through convenience, never the source of truth.
type Writer struct {
	db     *cache.DB
	bus    *bus.Bus
	logger *zap.Logger
	selfID int64
	cancel context.CancelFunc
}

// NewWriter creates a cache writer for the local user.
func NewWriter(db *cache.DB, b *bus.Bus, selfID int64, logger *zap.Logger) *Writer {
	return &Writer{
		db:     db,
		bus:    b,
		logger: logger,
		selfID: selfID,
	}
}

// Start subscribes to conversation events on the bus.
func (w *Writer) Start(ctx context.Context) {
	ctx, w.cancel = context.WithCancel(ctx)
	ch, unsub := w.bus.Subscribe("chat.", 256)

	go func() {
		defer unsub()
		for {
			select {
			case evt := <-ch:
				w.handleEvent(evt)
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop stops the writer.
func (w *Writer) Stop() {
	if w.cancel != nil {
		w.cancel()
	}
}

func (w *Writer) handleEvent(evt bus.Event) {
	switch evt.Kind {
	case bus.KindChatPartners:
		payload, ok := evt.Payload.(chat.PartnersUpdated)
		if !ok {
			return
		}
		if err := w.db.ReplacePartners(toPartners(payload.Partners)); err != nil {
			w.logger.Error("failed to mirror partners", zap.Error(err), zap.Int("count", len(payload.Partners)))
		}
	case bus.KindChatMessages:
		payload, ok := evt.Payload.(chat.ConversationLoaded)
		if !ok {
			return
		}
		if err := w.db.ReplaceHistory(payload.PartnerID, toMessages(w.selfID, payload.Messages)); err != nil {
			w.logger.Error("failed to mirror history", zap.Error(err), zap.Int64("partner_id", payload.PartnerID))
		} else {
			w.logger.Debug("history mirrored",
				zap.Int64("partner_id", payload.PartnerID),
				zap.Int("messages", len(payload.Messages)),
			)
		}
	case bus.KindChatMessage:
		payload, ok := evt.Payload.(chat.MessageUpserted)
		if !ok {
			return
		}
		m := toMessage(w.selfID, payload.Message)
		if err := w.db.UpsertMessage(&m); err != nil {
			w.logger.Error("failed to mirror message", zap.Error(err), zap.Int64("server_id", m.ServerID))
		}
	case bus.KindChatMarkedRead:
		payload, ok := evt.Payload.(chat.MarkedRead)
		if !ok {
			return
		}
		if err := w.db.MarkRead(payload.PartnerID); err != nil {
			w.logger.Error("failed to mirror read state", zap.Error(err), zap.Int64("partner_id", payload.PartnerID))
		}
	}
}

// Seed returns the cached partner list in display order, for pre-painting
// the UI before the first fetch completes.
func (w *Writer) Seed() ([]api.Partner, error) {
	cached, err := w.db.ListPartners()
	if err != nil {
		return nil, err
	}
	out := make([]api.Partner, 0, len(cached))
	for _, p := range cached {
		out = append(out, fromPartner(p))
	}
	return out, nil
}

func toPartners(partners []api.Partner) []cache.Partner {
	out := make([]cache.Partner, 0, len(partners))
	for _, p := range partners {
		out = append(out, cache.Partner{
			ID:            p.ID,
			FullName:      p.FullName,
			Email:         p.Email,
			UnreadCount:   p.UnreadCount,
			LastMessage:   p.LastMessage,
			LastMessageAt: unixMilli(p.LastMessageTime),
		})
	}
	return out
}

func fromPartner(p cache.Partner) api.Partner {
	out := api.Partner{
		ID:          p.ID,
		FullName:    p.FullName,
		Email:       p.Email,
		UnreadCount: p.UnreadCount,
		LastMessage: p.LastMessage,
	}
	if p.LastMessageAt != 0 {
		out.LastMessageTime = api.FromUnixMilli(p.LastMessageAt)
	}
	return out
}

func toMessages(selfID int64, msgs []api.Message) []cache.Message {
	out := make([]cache.Message, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, toMessage(selfID, m))
	}
	return out
}

func toMessage(selfID int64, m api.Message) cache.Message {
	partnerID := m.SenderID
	if partnerID == selfID {
		partnerID = m.ReceiverID
	}
	return cache.Message{
		ServerID:     m.ID,
		PartnerID:    partnerID,
		SenderID:     m.SenderID,
		SenderName:   m.SenderName,
		ReceiverID:   m.ReceiverID,
		ReceiverName: m.ReceiverName,
		Body:         m.Content,
		Read:         m.Read,
		Timestamp:    unixMilli(m.Timestamp),
	}
}

func unixMilli(ts api.Timestamp) int64 {
	if ts.IsZero() {
		return 0
	}
	return ts.UnixMilli()
}
