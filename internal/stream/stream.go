// Package stream relays dispatched activity events to WebSocket clients. Every connection is
// one listener subscription, removed when the connection ends.
package stream

import (
	"net/http"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"example.com/motion/internal/dispatch"
	"example.com/motion/internal/domain"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4 * 1024
	sendBuffer     = 64
)

// Message types exchanged on the socket.
const (
	MessageTypeActivity = "activity"
	MessageTypePing     = "ping"
	MessageTypePong     = "pong"
)

// Message is the envelope written to clients.
type Message struct {
	Type string                       `json:"type"`
	Data *domain.ActivityChangeEvent `json:"data,omitempty"`
}

// Subscriber registers activity listeners.
type Subscriber interface {
	AddListener(dispatch.Listener) *dispatch.Subscription
}

// Option configures a Handler.
type Option func(*Handler)

// WithLogger overrides the handler logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(h *Handler) {
		h.logger = logger
	}
}

// WithCheckOrigin overrides the upgrader origin check.
func WithCheckOrigin(check func(*http.Request) bool) Option {
	return func(h *Handler) {
		h.upgrader.CheckOrigin = check
	}
}

// Handler upgrades requests and streams events.
type Handler struct {
	source   Subscriber
	upgrader websocket.Upgrader
	logger   zerolog.Logger
	clients  atomic.Int64
}

// NewHandler returns a Handler streaming events from source.
func NewHandler(source Subscriber, opts ...Option) *Handler {
	h := &Handler{
		source: source,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Clients returns the number of open connections.
func (h *Handler) Clients() int {
	return int(h.clients.Load())
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	c := &client{
		id:     uuid.NewString(),
		conn:   conn,
		send:   make(chan Message, sendBuffer),
		done:   make(chan struct{}),
		logger: h.logger,
	}
	c.logger = h.logger.With().Str("client_id", c.id).Logger()
	sub := h.source.AddListener(c.enqueue)

	h.clients.Add(1)
	clientsGauge.Inc()
	c.logger.Debug().Msg("stream client connected")

	go c.writePump()
	c.readPump()

	sub.Remove()
	close(c.done)
	h.clients.Add(-1)
	clientsGauge.Dec()
	c.logger.Debug().Msg("stream client disconnected")
}

type client struct {
	id     string
	conn   *websocket.Conn
	send   chan Message
	done   chan struct{}
	logger zerolog.Logger
}

// enqueue never blocks the dispatcher; a slow client loses events.
func (c *client) enqueue(event domain.ActivityChangeEvent) {
	select {
	case c.send <- Message{Type: MessageTypeActivity, Data: &event}:
	default:
		droppedCounter.Inc()
	}
}

func (c *client) readPump() {
	defer func() { _ = c.conn.Close() }()

	c.conn.SetReadLimit(maxMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		return
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				c.logger.Warn().Err(err).Msg("unexpected websocket close")
			}
			return
		}

		var msg Message
		if err := json.Unmarshal(raw, &msg); err != nil {
			continue
		}
		if msg.Type == MessageTypePing {
			select {
			case c.send <- Message{Type: MessageTypePong}:
			default:
			}
		}
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case <-c.done:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return

		case msg := <-c.send:
			payload, err := json.Marshal(msg)
			if err != nil {
				c.logger.Error().Err(err).Msg("encode stream message")
				continue
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
			if msg.Type == MessageTypeActivity {
				sentCounter.Inc()
			}

		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
