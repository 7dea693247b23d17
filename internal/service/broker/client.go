// Package broker streams live M1 candles from the broker WebSocket feed.
package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gorilla/websocket"

	"SessionPulse/internal/domain/models"
	applogger "SessionPulse/pkg/logger"
)

// Client implements a CandleStream backed by the broker WebSocket API.
type Client struct {
	apiKey         string
	websocketURL   string
	symbols        []string
	reconnectDelay time.Duration
	pingInterval   time.Duration
	l              *applogger.Logger

	conn      *websocket.Conn
	connected bool
}

// New creates a live candle stream client.
func New(apiKey, websocketURL string, symbols []string, reconnectDelay, pingInterval time.Duration, l *applogger.Logger) *Client {
	return &Client{
		apiKey:         apiKey,
		websocketURL:   websocketURL,
		symbols:        symbols,
		reconnectDelay: reconnectDelay,
		pingInterval:   pingInterval,
		l:              l,
	}
}

// Connect establishes the WebSocket connection.
func (c *Client) Connect(ctx context.Context) error {
	u := fmt.Sprintf("%s?token=%s", c.websocketURL, c.apiKey)
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u, nil)
	if err != nil {
		return fmt.Errorf("broker connect: %w", err)
	}
	c.conn = conn
	c.connected = true
	c.l.Info("broker stream connected")
	return nil
}

// Subscribe subscribes to M1 candles for the configured symbols.
func (c *Client) Subscribe(ctx context.Context) error {
	if c.conn == nil || !c.connected {
		return fmt.Errorf("broker not connected")
	}
	for _, s := range c.symbols {
		msg := map[string]string{"type": "subscribe", "channel": "ohlc:1m", "symbol": s}
		if err := c.conn.WriteJSON(msg); err != nil {
			return fmt.Errorf("subscribe %s: %w", s, err)
		}
		c.l.Info("broker subscribed", applogger.String("symbol", s))
	}
	return nil
}

type wsCandle struct {
	S string  `json:"s"`
	T int64   `json:"t"` // open time, ms
	O float64 `json:"o"`
	H float64 `json:"h"`
	L float64 `json:"l"`
	C float64 `json:"c"`
	V int64   `json:"v"`
}

type wsMessage struct {
	Type string     `json:"type"`
	Data []wsCandle `json:"data"`
}

// Read streams candles and errors until the context is done or the socket
// fails. Candles never block the read loop; the channel is buffered and the
// collector is expected to keep up.
func (c *Client) Read(ctx context.Context) (<-chan *models.Candle, <-chan error) {
	candles := make(chan *models.Candle, 1024)
	errs := make(chan error, 1)

	// ping loop
	go func() {
		ticker := time.NewTicker(c.pingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if c.conn != nil {
					_ = c.conn.WriteMessage(websocket.PingMessage, nil)
				}
			}
		}
	}()

	// read loop
	go func() {
		defer close(candles)
		defer close(errs)
		for {
			select {
			case <-ctx.Done():
				return
			default:
				if c.conn == nil {
					errs <- fmt.Errorf("broker conn nil")
					return
				}
				_, b, err := c.conn.ReadMessage()
				if err != nil {
					errs <- fmt.Errorf("broker read: %w", err)
					return
				}
				var m wsMessage
				if err := json.Unmarshal(b, &m); err != nil {
					// ignore non-candle frames
					continue
				}
				if m.Type != "ohlc" {
					continue
				}
				for _, d := range m.Data {
					candle := &models.Candle{
						Symbol:     d.S,
						Timeframe:  models.M1,
						Timestamp:  time.UnixMilli(d.T).UTC(),
						Open:       d.O,
						High:       d.H,
						Low:        d.L,
						Close:      d.C,
						Volume:     d.V,
						DataSource: models.SourceLive,
					}
					select {
					case candles <- candle:
					case <-ctx.Done():
						return
					}
				}
			}
		}
	}()

	return candles, errs
}

// Reconnect closes and reconnects.
func (c *Client) Reconnect(ctx context.Context) error {
	_ = c.Close()
	time.Sleep(c.reconnectDelay)
	if err := c.Connect(ctx); err != nil {
		return err
	}
	return c.Subscribe(ctx)
}

// Close closes the WS connection.
func (c *Client) Close() error {
	c.connected = false
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// IsConnected indicates status.
func (c *Client) IsConnected() bool { return c.connected }
