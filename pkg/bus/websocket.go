package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/teslashibe/go-explore/internal/log"
)

const (
	// writeWait is how long to wait for a write to complete.
	writeWait = 10 * time.Second

	// pongWait is how long to wait for a pong response.
	pongWait = 60 * time.Second

	// pingPeriod must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// maxMessageSize allows full camera frames on the wire.
	maxMessageSize = 4 * 1024 * 1024
)

// wsFrame is the broker wire format: an op plus topic and payload.
type wsFrame struct {
	Op    string `json:"op"` // "pub" or "sub"
	Topic string `json:"topic"`
	Data  []byte `json:"data,omitempty"`
}

// WSConfig configures the WebSocket bus client.
type WSConfig struct {
	// Endpoint is the broker URL, e.g. "ws://10.0.0.5:8765".
	Endpoint string

	// ReconnectInterval is the delay between connection attempts.
	ReconnectInterval time.Duration

	// MaxReconnectAttempts bounds ConnectWithRetry; 0 retries forever.
	MaxReconnectAttempts int
}

// Validate checks the configuration.
func (c WSConfig) Validate() error {
	if c.Endpoint == "" {
		return fmt.Errorf("endpoint is required")
	}
	return nil
}

// DefaultWSConfig returns sensible client defaults.
func DefaultWSConfig(endpoint string) WSConfig {
	return WSConfig{
		Endpoint:          endpoint,
		ReconnectInterval: 2 * time.Second,
	}
}

// WSBus is a Bus over a WebSocket broker connection.
type WSBus struct {
	cfg WSConfig

	mu       sync.RWMutex
	conn     *websocket.Conn
	closed   bool
	handlers map[string][]Handler

	writeMu sync.Mutex // gorilla permits one concurrent writer

	messagesSent     atomic.Int64
	messagesReceived atomic.Int64
	reconnectCount   atomic.Int64
}

// NewWSBus creates a client. Call Connect or ConnectWithRetry before use.
func NewWSBus(cfg WSConfig) (*WSBus, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &WSBus{
		cfg:      cfg,
		handlers: make(map[string][]Handler),
	}, nil
}

// Connect dials the broker and starts the read loop.
func (b *WSBus) Connect(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return io.ErrClosedPipe
	}
	if b.conn != nil {
		return nil // already connected
	}

	log.Info("connecting to message broker", "endpoint", b.cfg.Endpoint)

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, b.cfg.Endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to dial broker: %w", err)
	}

	conn.SetReadLimit(maxMessageSize)
	b.conn = conn

	// Re-announce subscriptions from before a reconnect.
	for topic := range b.handlers {
		if err := b.writeFrame(conn, wsFrame{Op: "sub", Topic: topic}); err != nil {
			conn.Close()
			b.conn = nil
			return fmt.Errorf("failed to resubscribe to %s: %w", topic, err)
		}
	}

	go b.readLoop(conn)
	go b.pingLoop(conn)

	log.Info("connected to message broker", "endpoint", b.cfg.Endpoint)
	return nil
}

// ConnectWithRetry connects with automatic retry on failure.
func (b *WSBus) ConnectWithRetry(ctx context.Context) error {
	attempts := 0

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		err := b.Connect(ctx)
		if err == nil {
			return nil
		}

		attempts++
		b.reconnectCount.Add(1)

		if b.cfg.MaxReconnectAttempts > 0 && attempts >= b.cfg.MaxReconnectAttempts {
			return fmt.Errorf("max reconnect attempts (%d) reached: %w", b.cfg.MaxReconnectAttempts, err)
		}

		log.Warn("broker connection failed, retrying",
			"error", err,
			"attempt", attempts,
			"retry_in", b.cfg.ReconnectInterval,
		)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(b.cfg.ReconnectInterval):
		}
	}
}

// Publish sends data on a topic.
func (b *WSBus) Publish(topic string, data []byte) error {
	b.mu.RLock()
	conn := b.conn
	closed := b.closed
	b.mu.RUnlock()

	if conn == nil || closed {
		return fmt.Errorf("not connected")
	}

	if err := b.writeFrame(conn, wsFrame{Op: "pub", Topic: topic, Data: data}); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", topic, err)
	}

	b.messagesSent.Add(1)
	return nil
}

// Subscribe registers a handler and announces the subscription to the
// broker when connected.
func (b *WSBus) Subscribe(topic string, handler Handler) error {
	b.mu.Lock()
	first := len(b.handlers[topic]) == 0
	b.handlers[topic] = append(b.handlers[topic], handler)
	conn := b.conn
	b.mu.Unlock()

	if first && conn != nil {
		if err := b.writeFrame(conn, wsFrame{Op: "sub", Topic: topic}); err != nil {
			return fmt.Errorf("failed to subscribe to %s: %w", topic, err)
		}
	}

	log.Debug("subscribed to topic", "topic", topic)
	return nil
}

// Close closes the connection and releases resources.
func (b *WSBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true

	if b.conn != nil {
		b.writeMu.Lock()
		b.conn.SetWriteDeadline(time.Now().Add(writeWait))
		b.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		b.writeMu.Unlock()

		if err := b.conn.Close(); err != nil {
			return fmt.Errorf("failed to close connection: %w", err)
		}
		b.conn = nil
	}

	log.Info("bus client closed")
	return nil
}

// Stats returns client statistics.
func (b *WSBus) Stats() Stats {
	b.mu.RLock()
	connected := b.conn != nil && !b.closed
	b.mu.RUnlock()

	return Stats{
		Connected:        connected,
		MessagesSent:     b.messagesSent.Load(),
		MessagesReceived: b.messagesReceived.Load(),
		ReconnectCount:   b.reconnectCount.Load(),
	}
}

// Stats contains bus client statistics.
type Stats struct {
	Connected        bool  `json:"connected"`
	MessagesSent     int64 `json:"messages_sent"`
	MessagesReceived int64 `json:"messages_received"`
	ReconnectCount   int64 `json:"reconnect_count"`
}

func (b *WSBus) writeFrame(conn *websocket.Conn, f wsFrame) error {
	payload, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("marshal frame: %w", err)
	}

	b.writeMu.Lock()
	defer b.writeMu.Unlock()

	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteMessage(websocket.TextMessage, payload)
}

// readLoop dispatches inbound frames to their topic handlers until the
// connection drops.
func (b *WSBus) readLoop(conn *websocket.Conn) {
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			b.mu.Lock()
			if b.conn == conn {
				b.conn = nil
			}
			closed := b.closed
			b.mu.Unlock()
			if !closed {
				log.Warn("broker connection lost", "error", err)
			}
			return
		}

		var f wsFrame
		if err := json.Unmarshal(payload, &f); err != nil {
			log.Warn("malformed bus frame dropped", "error", err)
			continue
		}

		b.messagesReceived.Add(1)

		b.mu.RLock()
		handlers := b.handlers[f.Topic]
		b.mu.RUnlock()
		for _, h := range handlers {
			h(f.Data)
		}
	}
}

// pingLoop keeps the connection alive.
func (b *WSBus) pingLoop(conn *websocket.Conn) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for range ticker.C {
		b.mu.RLock()
		current := b.conn == conn && !b.closed
		b.mu.RUnlock()
		if !current {
			return
		}

		b.writeMu.Lock()
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		err := conn.WriteMessage(websocket.PingMessage, nil)
		b.writeMu.Unlock()
		if err != nil {
			return
		}
	}
}
