package api

import "strings"

// trimBody normalizes an outgoing message body. Whitespace-only bodies
// collapse to the empty string and are rejected by Send.
func trimBody(s string) string {
	return strings.TrimSpace(s)
}

// Message is one chat message as the backend represents it. The ID is zero
// for a message that has not been persisted yet; the store assigns it,
// together with the timestamp, on send.
type Message struct {
	ID           int64     `json:"id,omitempty"`
	SenderID     int64     `json:"senderId"`
	SenderName   string    `json:"senderName"`
	ReceiverID   int64     `json:"receiverId"`
	ReceiverName string    `json:"receiverName"`
	Content      string    `json:"content"`
	Timestamp    Timestamp `json:"timestamp"`
	Read         bool      `json:"read"`
}

// SendRequest is the payload for POST /api/messages/send.
type SendRequest struct {
	ReceiverID int64  `json:"receiverId"`
	Content    string `json:"content"`
}

// Partner is one chat counterpart as returned by the partner-list endpoints.
// LastMessage/LastMessageTime are denormalized caches the backend may omit
// for partners it has never exchanged messages with.
type Partner struct {
	ID              int64     `json:"id"`
	FullName        string    `json:"fullName"`
	Email           string    `json:"email"`
	LastMessage     string    `json:"lastMessage,omitempty"`
	LastMessageTime Timestamp `json:"lastMessageTime,omitempty"`
	UnreadCount     int       `json:"unreadCount"`
}

// Notification is one entry of the notification feed. Unlike chat messages,
// the backend serializes the read flag as "isRead" here.
type Notification struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"`
	Body      string    `json:"message"`
	Type      string    `json:"type"`
	Read      bool      `json:"isRead"`
	CreatedAt Timestamp `json:"createdAt"`
}

// LoginRequest is the payload for POST /api/auth/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}
