package api

import (
	"context"
	"fmt"
	"time"

	"github.com/glowstudio-app/glowchat/internal/account"
	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// Client wraps the backend's REST surface: the message store, the auth
// endpoint and the notification feed. It holds no conversation state; every
// method is a pure request/response call.
type Client struct {
	http   *resty.Client
	logger *zap.Logger
}

// AuthResponse is the login result: a bearer token plus the user it belongs to.
type AuthResponse struct {
	Token string          `json:"token"`
	User  account.Profile `json:"user"`
}

// New creates a REST client for the given base URL. token may be empty for
// a client that will only call Login.
func New(baseURL, token string, logger *zap.Logger) *Client {
	http := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(15 * time.Second).
		SetHeader("Accept", "application/json")
	if token != "" {
		http.SetAuthToken(token)
	}
	return &Client{http: http, logger: logger}
}

// SetToken replaces the bearer token used for subsequent requests.
func (c *Client) SetToken(token string) {
	c.http.SetAuthToken(token)
}

// Login authenticates with email/password and returns the issued credential.
func (c *Client) Login(ctx context.Context, email, password string) (*AuthResponse, error) {
	var out AuthResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(LoginRequest{Email: email, Password: password}).
		SetResult(&out).
		Post("/api/auth/login")
	if err := c.check("login", resp, err); err != nil {
		return nil, err
	}
	c.http.SetAuthToken(out.Token)
	return &out, nil
}

// Me fetches the authenticated user's profile.
func (c *Client) Me(ctx context.Context) (*account.Profile, error) {
	var out account.Profile
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&out).
		Get("/api/auth/me")
	if err := c.check("me", resp, err); err != nil {
		return nil, err
	}
	return &out, nil
}

// Send persists a new message addressed to receiverID and returns the full
// record the store assigned (id, timestamp). An empty trimmed body fails
// with ErrEmptyBody before any network traffic.
func (c *Client) Send(ctx context.Context, receiverID int64, content string) (*Message, error) {
	content = trimBody(content)
	if content == "" {
		return nil, ErrEmptyBody
	}
	var out Message
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(SendRequest{ReceiverID: receiverID, Content: content}).
		SetResult(&out).
		Post("/api/messages/send")
	if err := c.check("send", resp, err); err != nil {
		return nil, err
	}
	return &out, nil
}

// History fetches the full conversation with a partner, oldest first.
func (c *Client) History(ctx context.Context, partnerID int64) ([]Message, error) {
	var out []Message
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&out).
		Get(fmt.Sprintf("/api/messages/chat/%d", partnerID))
	if err := c.check("history", resp, err); err != nil {
		return nil, err
	}
	return out, nil
}

// Customers fetches the admin-side partner list with per-partner unread
// aggregates and denormalized last-message fields.
func (c *Client) Customers(ctx context.Context) ([]Partner, error) {
	var out []Partner
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&out).
		Get("/api/messages/customers")
	if err := c.check("customers", resp, err); err != nil {
		return nil, err
	}
	return out, nil
}

// AdminPartner fetches the customer-side single counterpart (the operator).
func (c *Client) AdminPartner(ctx context.Context) (*Partner, error) {
	var out Partner
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&out).
		Get("/api/messages/admin")
	if err := c.check("admin partner", resp, err); err != nil {
		return nil, err
	}
	return &out, nil
}

// MarkRead acknowledges all currently-unread messages from senderID.
// Idempotent: a second call is a server-side no-op.
func (c *Client) MarkRead(ctx context.Context, senderID int64) error {
	resp, err := c.http.R().
		SetContext(ctx).
		Post(fmt.Sprintf("/api/messages/mark-read/%d", senderID))
	return c.check("mark read", resp, err)
}

// UnreadCount fetches the total number of unread messages for the local user.
func (c *Client) UnreadCount(ctx context.Context) (int, error) {
	var out int
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&out).
		Get("/api/messages/unread-count")
	if err := c.check("unread count", resp, err); err != nil {
		return 0, err
	}
	return out, nil
}

// Notifications fetches the notification feed, newest first.
func (c *Client) Notifications(ctx context.Context) ([]Notification, error) {
	var out []Notification
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&out).
		Get("/api/notifications")
	if err := c.check("notifications", resp, err); err != nil {
		return nil, err
	}
	return out, nil
}

// MarkNotificationRead acknowledges a single notification.
func (c *Client) MarkNotificationRead(ctx context.Context, id int64) error {
	resp, err := c.http.R().
		SetContext(ctx).
		Put(fmt.Sprintf("/api/notifications/%d/read", id))
	return c.check("mark notification read", resp, err)
}

func (c *Client) check(op string, resp *resty.Response, err error) error {
	if err != nil {
		return &StoreError{Op: op, Err: err}
	}
	if resp.IsError() {
		if c.logger != nil {
			c.logger.Warn("request failed",
				zap.String("op", op),
				zap.Int("status", resp.StatusCode()),
			)
		}
		return &StoreError{Op: op, Status: resp.StatusCode()}
	}
	return nil
}
