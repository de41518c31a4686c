package bus

import "time"

// Event represents a domain event published on the bus.
type Event struct {
	Kind      string
	Timestamp time.Time
	Payload   any
}

// Event kinds published by the client. Subscribers filter by namespace
// prefix, e.g. "transport." receives every transport event.
const (
	KindTransportState = "transport.state_changed"

	KindChatPartners   = "chat.partners"
	KindChatMessages   = "chat.messages"
	KindChatMessage    = "chat.message_upserted"
	KindChatMarkedRead = "chat.marked_read"
	KindChatSendFailed = "chat.send_failed"

	KindBadgeChanged = "badge.changed"

	KindNotifyChanged = "notify.changed"
)
