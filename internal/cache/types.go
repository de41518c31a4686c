package cache

// Partner is a cached conversation counterpart. Timestamps are unix millis;
// zero means "no messages yet" and sorts last.
type Partner struct {
	ID            int64
	FullName      string
	Email         string
	UnreadCount   int
	LastMessage   string
	LastMessageAt int64
}

// Message is a cached chat message, keyed by the store-assigned server ID.
type Message struct {
	ServerID     int64
	PartnerID    int64
	SenderID     int64
	SenderName   string
	ReceiverID   int64
	ReceiverName string
	Body         string
	Read         bool
	Timestamp    int64
}
