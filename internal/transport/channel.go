package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/glowstudio-app/glowchat/internal/bus"
	"github.com/glowstudio-app/glowchat/internal/connstate"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Handler consumes the raw body of a frame delivered to a subscribed
// destination. It runs on the channel's read goroutine; long work must be
// handed off by the handler itself.
type Handler func(body json.RawMessage)

// Frame is the wire envelope exchanged with the push endpoint. Bodies are
// JSON-encoded domain payloads; this package never interprets them.
type Frame struct {
	Destination string          `json:"destination"`
	Body        json.RawMessage `json:"body"`
}

// TokenSource supplies the bearer credential at connect time. It is called
// on every (re)connect so a refreshed token is picked up automatically.
type TokenSource func() string

// Channel manages the single persistent push connection. It owns the
// connection state machine; consumers observe state edges on the bus and
// must re-subscribe their destinations after each fresh connected edge:
// subscriptions are deliberately NOT restored across reconnects.
type Channel struct {
	url            string
	token          TokenSource
	machine        *connstate.Machine
	bus            *bus.Bus
	logger         *zap.Logger
	reconnectDelay time.Duration
	heartbeat      time.Duration
	clientID       string

	mu      sync.Mutex
	conn    *websocket.Conn
	subs    map[string]Handler
	active  bool
	cancel  context.CancelFunc
	writeMu sync.Mutex
}

// Option configures a Channel.
type Option func(*Channel)

// WithReconnectDelay overrides the fixed delay between reconnect attempts.
func WithReconnectDelay(d time.Duration) Option {
	return func(c *Channel) { c.reconnectDelay = d }
}

// WithHeartbeat overrides the ping interval.
func WithHeartbeat(d time.Duration) Option {
	return func(c *Channel) { c.heartbeat = d }
}

// WithClientID attaches a stable device identifier to every dial, letting
// the backend tell this client's connections apart from the same user's
// other devices.
func WithClientID(id string) Option {
	return func(c *Channel) { c.clientID = id }
}

// NewChannel creates a disconnected channel for the given websocket URL.
func NewChannel(url string, token TokenSource, machine *connstate.Machine, b *bus.Bus, logger *zap.Logger, opts ...Option) *Channel {
	c := &Channel{
		url:            url,
		token:          token,
		machine:        machine,
		bus:            b,
		logger:         logger,
		reconnectDelay: 5 * time.Second,
		heartbeat:      4 * time.Second,
		subs:           make(map[string]Handler),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Connect starts the connection loop. Idempotent: a second call while the
// channel is active is a no-op. Failures never propagate to the caller;
// the loop retries with a fixed delay until Disconnect.
func (c *Channel) Connect() {
	c.mu.Lock()
	if c.active {
		c.mu.Unlock()
		return
	}
	c.active = true
	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.mu.Unlock()

	go c.run(ctx)
}

// Disconnect releases all subscriptions and tears down the connection.
// Safe to call when already disconnected.
func (c *Channel) Disconnect() {
	c.mu.Lock()
	if !c.active {
		c.mu.Unlock()
		return
	}
	c.active = false
	cancel := c.cancel
	conn := c.conn
	c.conn = nil
	c.subs = make(map[string]Handler)
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if conn != nil {
		_ = conn.Close()
	}
	// May fail if the loop already walked the machine down; the terminal
	// state is what matters.
	_ = c.machine.Transition(connstate.Disconnected)
}

// Subscribe registers the handler for a destination, replacing any prior
// handler for the same destination. Logs and no-ops when the channel is not
// connected; callers gate on the connected edge first.
func (c *Channel) Subscribe(destination string, handler Handler) {
	if !c.machine.Live() {
		c.logger.Warn("subscribe while not connected", zap.String("destination", destination))
		return
	}
	c.mu.Lock()
	if _, replaced := c.subs[destination]; replaced {
		c.logger.Info("replacing subscription", zap.String("destination", destination))
	}
	c.subs[destination] = handler
	c.mu.Unlock()
}

// Publish serializes payload and sends it to a destination. Same
// precondition as Subscribe.
func (c *Channel) Publish(destination string, payload any) {
	if !c.machine.Live() {
		c.logger.Warn("publish while not connected", zap.String("destination", destination))
		return
	}
	body, err := json.Marshal(payload)
	if err != nil {
		c.logger.Error("encode publish payload", zap.Error(err))
		return
	}
	if err := c.writeFrame(&Frame{Destination: destination, Body: body}); err != nil {
		c.logger.Warn("publish failed", zap.String("destination", destination), zap.Error(err))
	}
}

func (c *Channel) run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		_ = c.machine.Transition(connstate.Connecting)

		conn, err := c.dial(ctx)
		if err != nil {
			c.logger.Warn("connect failed", zap.Error(err))
			_ = c.machine.Transition(connstate.Reconnecting)
			if !c.sleep(ctx) {
				return
			}
			continue
		}

		c.mu.Lock()
		c.conn = conn
		c.mu.Unlock()
		_ = c.machine.Transition(connstate.Connected)
		c.logger.Info("push channel connected")

		err = c.serve(ctx, conn)

		c.mu.Lock()
		c.conn = nil
		// Dropped, not drained: consumers re-subscribe on the next
		// connected edge.
		c.subs = make(map[string]Handler)
		c.mu.Unlock()
		_ = conn.Close()

		if ctx.Err() != nil {
			return
		}
		c.logger.Warn("push channel lost", zap.Error(err))
		_ = c.machine.Transition(connstate.Reconnecting)
		if !c.sleep(ctx) {
			return
		}
	}
}

func (c *Channel) dial(ctx context.Context) (*websocket.Conn, error) {
	header := http.Header{}
	if token := c.token(); token != "" {
		header.Set("Authorization", "Bearer "+token)
	}
	if c.clientID != "" {
		header.Set("X-Client-Id", c.clientID)
	}
	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	conn, resp, err := websocket.DefaultDialer.DialContext(dialCtx, c.url, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial %s: %w (status %d)", c.url, err, resp.StatusCode)
		}
		return nil, fmt.Errorf("dial %s: %w", c.url, err)
	}
	return conn, nil
}

// serve pumps the connection until it fails or ctx is cancelled. Heartbeats
// run in both directions: we ping on a fixed interval and extend the read
// deadline on every pong or data frame.
func (c *Channel) serve(ctx context.Context, conn *websocket.Conn) error {
	readDeadline := 2*c.heartbeat + time.Second
	_ = conn.SetReadDeadline(time.Now().Add(readDeadline))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(readDeadline))
	})

	pingDone := make(chan struct{})
	defer close(pingDone)
	go func() {
		ticker := time.NewTicker(c.heartbeat)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				c.writeMu.Lock()
				err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(time.Second))
				c.writeMu.Unlock()
				if err != nil {
					return
				}
			case <-pingDone:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		_ = conn.SetReadDeadline(time.Now().Add(readDeadline))

		var frame Frame
		if err := json.Unmarshal(data, &frame); err != nil {
			c.logger.Warn("undecodable frame", zap.Error(err))
			continue
		}
		c.dispatch(&frame)
	}
}

func (c *Channel) dispatch(frame *Frame) {
	c.mu.Lock()
	handler := c.subs[frame.Destination]
	c.mu.Unlock()
	if handler == nil {
		c.logger.Debug("frame for unsubscribed destination", zap.String("destination", frame.Destination))
		return
	}
	handler(frame.Body)
}

func (c *Channel) writeFrame(frame *Frame) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return fmt.Errorf("no connection")
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return conn.WriteJSON(frame)
}

// sleep waits out the reconnect delay; returns false if ctx was cancelled.
func (c *Channel) sleep(ctx context.Context) bool {
	select {
	case <-time.After(c.reconnectDelay):
		return true
	case <-ctx.Done():
		return false
	}
}
