// Package stream delivers typed token lifecycle events from the pumpportal
// data feed over WebSocket, with automatic reconnection and resubscription.
package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"pump-sniper/internal/domain"
)

// Subscription method names on the wire.
const (
	methodSubscribeNewToken     = "subscribeNewToken"
	methodSubscribeAccountTrade = "subscribeAccountTrade"
	methodSubscribeTokenTrade   = "subscribeTokenTrade"
	methodUnsubscribeTokenTrade = "unsubscribeTokenTrade"
)

// ClientConfig configures stream client behavior.
type ClientConfig struct {
	// ReconnectDelay is initial delay before reconnect attempt.
	ReconnectDelay time.Duration
	// MaxReconnectDelay is maximum delay between reconnect attempts.
	MaxReconnectDelay time.Duration
	// PingInterval is interval for sending ping frames.
	PingInterval time.Duration
	// ReadTimeout is timeout for reading messages.
	ReadTimeout time.Duration
	// WriteTimeout is timeout for writing messages.
	WriteTimeout time.Duration
	// EventBuffer is the capacity of the outbound event channel.
	EventBuffer int
}

// DefaultConfig returns default stream client configuration.
func DefaultConfig() ClientConfig {
	return ClientConfig{
		ReconnectDelay:    1 * time.Second,
		MaxReconnectDelay: 30 * time.Second,
		PingInterval:      30 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      10 * time.Second,
		EventBuffer:       10000,
	}
}

// Client maintains the WebSocket connection to the event feed. Parsed events
// are delivered on Events in arrival order.
type Client struct {
	endpoint string
	config   ClientConfig
	log      *logrus.Entry

	conn   *websocket.Conn
	connMu sync.Mutex
	closed atomic.Bool

	events chan *domain.TradeEvent

	// active subscriptions, replayed after every reconnect
	subMu       sync.Mutex
	newTokens   bool
	accountKeys []string
	tokenMints  map[string]struct{}

	reconnects atomic.Uint64
	dropped    atomic.Uint64

	done chan struct{}
	wg   sync.WaitGroup
}

// NewClient connects to the endpoint and starts the read and ping loops.
func NewClient(ctx context.Context, endpoint string, config *ClientConfig, log *logrus.Logger) (*Client, error) {
	cfg := DefaultConfig()
	if config != nil {
		cfg = *config
	}
	if log == nil {
		log = logrus.StandardLogger()
	}

	c := &Client{
		endpoint:   endpoint,
		config:     cfg,
		log:        log.WithField("component", "stream"),
		events:     make(chan *domain.TradeEvent, cfg.EventBuffer),
		tokenMints: make(map[string]struct{}),
		done:       make(chan struct{}),
	}

	if err := c.connect(ctx); err != nil {
		return nil, err
	}

	c.wg.Add(1)
	go c.readLoop()

	c.wg.Add(1)
	go c.pingLoop()

	return c, nil
}

// Events returns the channel of parsed inbound events. The channel is closed
// when the client shuts down.
func (c *Client) Events() <-chan *domain.TradeEvent {
	return c.events
}

// Reconnects returns the number of reconnections performed so far.
func (c *Client) Reconnects() uint64 {
	return c.reconnects.Load()
}

// Dropped returns the number of events discarded because the consumer fell
// behind the buffer.
func (c *Client) Dropped() uint64 {
	return c.dropped.Load()
}

// connect establishes the WebSocket connection.
func (c *Client) connect(ctx context.Context) error {
	c.connMu.Lock()
	defer c.connMu.Unlock()

	dialer := websocket.Dialer{
		HandshakeTimeout:  10 * time.Second,
		EnableCompression: false,
	}

	conn, _, err := dialer.DialContext(ctx, c.endpoint, nil)
	if err != nil {
		return fmt.Errorf("websocket dial: %w", err)
	}

	c.conn = conn
	return nil
}

// subscribeRequest is the outbound subscription message shape.
type subscribeRequest struct {
	Method string   `json:"method"`
	Keys   []string `json:"keys,omitempty"`
}

// SubscribeNewTokens subscribes to token creation events.
func (c *Client) SubscribeNewTokens() error {
	c.subMu.Lock()
	c.newTokens = true
	c.subMu.Unlock()
	return c.send(subscribeRequest{Method: methodSubscribeNewToken})
}

// SubscribeAccountTrades subscribes to fills involving the given accounts,
// used for the operator's own fills.
func (c *Client) SubscribeAccountTrades(keys ...string) error {
	c.subMu.Lock()
	c.accountKeys = append([]string(nil), keys...)
	c.subMu.Unlock()
	return c.send(subscribeRequest{Method: methodSubscribeAccountTrade, Keys: keys})
}

// SubscribeTokenTrades subscribes to the trade feed of a single mint for the
// duration of its observation window or open position.
func (c *Client) SubscribeTokenTrades(mint string) error {
	c.subMu.Lock()
	c.tokenMints[mint] = struct{}{}
	c.subMu.Unlock()
	return c.send(subscribeRequest{Method: methodSubscribeTokenTrade, Keys: []string{mint}})
}

// UnsubscribeTokenTrades drops the per-mint trade feed.
func (c *Client) UnsubscribeTokenTrades(mint string) error {
	c.subMu.Lock()
	delete(c.tokenMints, mint)
	c.subMu.Unlock()
	return c.send(subscribeRequest{Method: methodUnsubscribeTokenTrade, Keys: []string{mint}})
}

// send writes a JSON message under the write deadline.
func (c *Client) send(v interface{}) error {
	if c.closed.Load() {
		return fmt.Errorf("client closed")
	}

	c.connMu.Lock()
	defer c.connMu.Unlock()

	if c.conn == nil {
		return fmt.Errorf("not connected")
	}
	c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
	if err := c.conn.WriteJSON(v); err != nil {
		return fmt.Errorf("write message: %w", err)
	}
	return nil
}

// Close shuts the client down and closes the event channel.
func (c *Client) Close() error {
	if c.closed.Swap(true) {
		return nil // Already closed
	}

	close(c.done)

	c.connMu.Lock()
	if c.conn != nil {
		c.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		c.conn.Close()
	}
	c.connMu.Unlock()

	c.wg.Wait()
	close(c.events)
	return nil
}

// readLoop reads messages, parses them, and reconnects on failure with
// capped exponential backoff. Window and position state live in the engine,
// so nothing is lost across a reconnect.
func (c *Client) readLoop() {
	defer c.wg.Done()

	reconnectDelay := c.config.ReconnectDelay

	for !c.closed.Load() {
		c.connMu.Lock()
		conn := c.conn
		c.connMu.Unlock()

		if conn == nil {
			if !c.reconnect(reconnectDelay) {
				return
			}
			reconnectDelay = bumpDelay(reconnectDelay, c.config.MaxReconnectDelay)
			continue
		}

		conn.SetReadDeadline(time.Now().Add(c.config.ReadTimeout))

		_, message, err := conn.ReadMessage()
		if err != nil {
			if c.closed.Load() {
				return
			}
			c.log.WithError(err).Warn("read failed, reconnecting")

			c.connMu.Lock()
			c.conn.Close()
			c.conn = nil
			c.connMu.Unlock()
			continue
		}

		// Reset delay on successful read
		reconnectDelay = c.config.ReconnectDelay

		if ev := parseMessage(message); ev != nil {
			select {
			case c.events <- ev:
			case <-c.done:
				return
			default:
				// Buffer full; the consumer fell behind. Dropping keeps
				// the read loop alive so the connection stays healthy.
				c.dropped.Add(1)
			}
		}
	}
}

// reconnect waits, redials, and replays all active subscriptions. Returns
// false if the client was closed while waiting.
func (c *Client) reconnect(delay time.Duration) bool {
	select {
	case <-c.done:
		return false
	case <-time.After(delay):
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := c.connect(ctx); err != nil {
		c.log.WithError(err).Warn("reconnect failed")
		return true
	}

	c.reconnects.Add(1)
	c.resubscribe()
	c.log.Info("reconnected and resubscribed")
	return true
}

// resubscribe replays the active subscription set on a fresh connection.
func (c *Client) resubscribe() {
	c.subMu.Lock()
	newTokens := c.newTokens
	accountKeys := append([]string(nil), c.accountKeys...)
	mints := make([]string, 0, len(c.tokenMints))
	for mint := range c.tokenMints {
		mints = append(mints, mint)
	}
	c.subMu.Unlock()

	if newTokens {
		if err := c.send(subscribeRequest{Method: methodSubscribeNewToken}); err != nil {
			c.log.WithError(err).Warn("resubscribe new tokens failed")
		}
	}
	if len(accountKeys) > 0 {
		if err := c.send(subscribeRequest{Method: methodSubscribeAccountTrade, Keys: accountKeys}); err != nil {
			c.log.WithError(err).Warn("resubscribe account trades failed")
		}
	}
	for _, mint := range mints {
		if err := c.send(subscribeRequest{Method: methodSubscribeTokenTrade, Keys: []string{mint}}); err != nil {
			c.log.WithError(err).WithField("mint", mint).Warn("resubscribe token trades failed")
		}
	}
}

// pingLoop sends periodic ping frames to keep the connection alive.
func (c *Client) pingLoop() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.connMu.Lock()
			if c.conn != nil {
				c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
				if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					// Connection might be dead, reader will handle reconnect
				}
			}
			c.connMu.Unlock()
		}
	}
}

// wireMessage captures the shape-varying inbound feed message. All fields
// are optional on the wire; validation happens in parseMessage.
type wireMessage struct {
	TxType          string  `json:"txType"`
	Mint            string  `json:"mint"`
	TraderPublicKey string  `json:"traderPublicKey"`
	TokenAmount     float64 `json:"tokenAmount"`
	NewTokenBalance float64 `json:"newTokenBalance"`
	SolAmount       float64 `json:"solAmount"`
	VSolInCurve     float64 `json:"vSolInBondingCurve"`
	VTokensInCurve  float64 `json:"vTokensInBondingCurve"`
	Pool            string  `json:"pool"`
}

// parseMessage validates a raw feed message into a TradeEvent. Unrecognized
// shapes (acks, malformed JSON, unknown txType, missing mint) yield nil and
// are dropped rather than propagated.
func parseMessage(raw []byte) *domain.TradeEvent {
	var m wireMessage
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil
	}
	if m.Mint == "" {
		return nil
	}

	var kind domain.EventKind
	switch m.TxType {
	case "create":
		kind = domain.EventCreate
	case "buy":
		kind = domain.EventBuy
	case "sell":
		kind = domain.EventSell
	default:
		return nil
	}

	qty := m.TokenAmount
	if qty == 0 {
		qty = m.NewTokenBalance
	}

	return &domain.TradeEvent{
		Kind:          kind,
		Mint:          m.Mint,
		Trader:        m.TraderPublicKey,
		TokenAmount:   qty,
		SolAmount:     m.SolAmount,
		VSolReserve:   m.VSolInCurve,
		VTokenReserve: m.VTokensInCurve,
		Pool:          m.Pool,
		TimestampMs:   time.Now().UnixMilli(),
	}
}

func bumpDelay(d, limit time.Duration) time.Duration {
	d *= 2
	if d > limit {
		return limit
	}
	return d
}
