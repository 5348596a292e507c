// Package push maintains the inventory push channel: a reconnecting
// websocket connection that republishes inventory-change events to
// subscribers. Losing the channel degrades the terminal to stale stock data;
// it never blocks checkout.
package push

import (
	"context"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/fekuna/omnipos-checkout-service/internal/model"
	"github.com/fekuna/omnipos-checkout-service/pkg/logger"
)

const eventTypeInventoryChange = "inventory_change"

type Config struct {
	URL                  string
	BranchID             string
	Token                string
	MaxReconnectAttempts int
	ReconnectInterval    time.Duration
	PingInterval         time.Duration
}

type subscribeMessage struct {
	Type              string   `json:"type"`
	SubscriptionTypes []string `json:"subscription_types"`
}

type pingMessage struct {
	Type      string `json:"type"`
	Timestamp int64  `json:"timestamp"`
}

// Channel is the push-channel client. Connect/Disconnect/Send are explicit
// operations; nothing happens implicitly on construction or garbage
// collection.
type Channel struct {
	mu  sync.Mutex
	cfg Config
	log logger.ZapLogger

	conn      *websocket.Conn
	connected bool
	closed    bool
	attempts  int

	reconnectTimer *time.Timer
	stopPing       chan struct{}

	handlers []func(model.InventoryChangeEvent)
}

func NewChannel(cfg Config, log logger.ZapLogger) *Channel {
	if cfg.ReconnectInterval <= 0 {
		cfg.ReconnectInterval = 3 * time.Second
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = 30 * time.Second
	}
	return &Channel{cfg: cfg, log: log}
}

// OnInventoryChange registers a subscriber. Registration is expected before
// Connect; handlers run on the read goroutine.
func (c *Channel) OnInventoryChange(fn func(model.InventoryChangeEvent)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers = append(c.handlers, fn)
}

// Connect dials the channel. On failure it schedules reconnects (up to the
// configured attempt budget) and returns the dial error; the caller decides
// whether that is fatal. It never is for checkout.
func (c *Channel) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.connected || c.closed {
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	if err := c.dial(ctx); err != nil {
		c.scheduleReconnect()
		return err
	}
	return nil
}

func (c *Channel) dial(ctx context.Context) error {
	u, err := url.Parse(c.cfg.URL)
	if err != nil {
		return errors.Wrap(err, "invalid sync channel url")
	}
	q := u.Query()
	q.Set("branch_id", c.cfg.BranchID)
	q.Set("token", c.cfg.Token)
	u.RawQuery = q.Encode()

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return errors.Wrap(err, "failed to dial sync channel")
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		conn.Close()
		return nil
	}
	c.conn = conn
	c.connected = true
	c.attempts = 0
	c.stopPing = make(chan struct{})
	stop := c.stopPing
	c.mu.Unlock()

	c.log.Info("sync channel connected", zap.String("branch_id", c.cfg.BranchID))

	// Subscription is sent once per successful connect.
	if err := c.Send(subscribeMessage{
		Type:              "subscribe",
		SubscriptionTypes: []string{eventTypeInventoryChange},
	}); err != nil {
		c.log.Error("failed to send subscribe message", zap.Error(err))
	}

	go c.readLoop(conn)
	go c.pingLoop(stop)
	return nil
}

func (c *Channel) readLoop(conn *websocket.Conn) {
	for {
		var event model.InventoryChangeEvent
		if err := conn.ReadJSON(&event); err != nil {
			c.handleDisconnect(conn, err)
			return
		}
		if event.Type != eventTypeInventoryChange {
			continue
		}

		c.mu.Lock()
		handlers := make([]func(model.InventoryChangeEvent), len(c.handlers))
		copy(handlers, c.handlers)
		c.mu.Unlock()

		for _, fn := range handlers {
			fn(event)
		}
	}
}

func (c *Channel) pingLoop(stop chan struct{}) {
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if err := c.Send(pingMessage{Type: "ping", Timestamp: time.Now().Unix()}); err != nil {
				return
			}
		}
	}
}

func (c *Channel) handleDisconnect(conn *websocket.Conn, err error) {
	c.mu.Lock()
	if c.conn != conn {
		// A newer connection already replaced this one.
		c.mu.Unlock()
		return
	}
	c.teardownConnLocked()
	closed := c.closed
	c.mu.Unlock()

	if closed {
		return
	}
	c.log.Warn("sync channel disconnected", zap.Error(err))
	c.scheduleReconnect()
}

func (c *Channel) scheduleReconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed || c.connected {
		return
	}
	if c.attempts >= c.cfg.MaxReconnectAttempts {
		// Budget exhausted: no further timer. The terminal keeps working
		// with stale stock data.
		c.log.Warn("sync channel reconnect attempts exhausted",
			zap.Int("attempts", c.attempts))
		return
	}
	c.attempts++
	attempt := c.attempts
	c.log.Info("scheduling sync channel reconnect",
		zap.Int("attempt", attempt),
		zap.Duration("interval", c.cfg.ReconnectInterval))

	c.reconnectTimer = time.AfterFunc(c.cfg.ReconnectInterval, func() {
		c.mu.Lock()
		if c.closed || c.connected {
			c.mu.Unlock()
			return
		}
		c.mu.Unlock()

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := c.dial(ctx); err != nil {
			c.log.Warn("sync channel reconnect failed",
				zap.Int("attempt", attempt), zap.Error(err))
			c.scheduleReconnect()
		}
	})
}

// Send writes one JSON frame. Fails when not connected.
func (c *Channel) Send(v interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.connected || c.conn == nil {
		return errors.New("sync channel is not connected")
	}
	return c.conn.WriteJSON(v)
}

// Disconnect tears the channel down deterministically: reconnect timer
// canceled, ping loop stopped, connection closed. No callback fires after it
// returns.
func (c *Channel) Disconnect() {
	c.mu.Lock()
	c.closed = true
	if c.reconnectTimer != nil {
		c.reconnectTimer.Stop()
		c.reconnectTimer = nil
	}
	c.teardownConnLocked()
	c.mu.Unlock()
}

func (c *Channel) teardownConnLocked() {
	if c.stopPing != nil {
		close(c.stopPing)
		c.stopPing = nil
	}
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	c.connected = false
}

func (c *Channel) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}
