package progress

import (
	"context"
	"encoding/json"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"ChartPulse/internal/domain/models"
	"ChartPulse/pkg/logger"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 54 * time.Second
	maxMessageSize = 512
	sendBuffer     = 32
)

// client is one WebSocket subscriber managed by the Hub.
type client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

// Hub fans backtest progress frames out to every connected subscriber.
// Slow clients are dropped rather than allowed to stall the loop.
type Hub struct {
	logger      *logger.Logger
	upgrader    websocket.Upgrader
	clients     map[*client]bool
	broadcast   chan []byte
	register    chan *client
	unregister  chan *client
	subscribers atomic.Int32
}

// NewHub creates a new Hub. Run must be started before clients connect.
func NewHub(log *logger.Logger) *Hub {
	return &Hub{
		logger: log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// progress frames carry no credentials, any dashboard origin may watch
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		clients:    make(map[*client]bool),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *client),
		unregister: make(chan *client),
	}
}

// Run drives the hub event loop until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			for c := range h.clients {
				close(c.send)
				delete(h.clients, c)
			}
			h.subscribers.Store(0)
			return
		case c := <-h.register:
			h.clients[c] = true
			h.subscribers.Store(int32(len(h.clients)))
			h.logger.Debug("progress subscriber connected", logger.Int("subscribers", len(h.clients)))
		case c := <-h.unregister:
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
				h.subscribers.Store(int32(len(h.clients)))
				h.logger.Debug("progress subscriber gone", logger.Int("subscribers", len(h.clients)))
			}
		case msg := <-h.broadcast:
			for c := range h.clients {
				select {
				case c.send <- msg:
				default:
					delete(h.clients, c)
					close(c.send)
					h.subscribers.Store(int32(len(h.clients)))
					h.logger.Warn("dropping slow progress subscriber")
				}
			}
		}
	}
}

// Subscribers reports how many clients are currently connected.
func (h *Hub) Subscribers() int {
	return int(h.subscribers.Load())
}

// Broadcast queues one progress frame for every subscriber. Frames are
// advisory; when the hub is saturated they are dropped, not queued.
func (h *Hub) Broadcast(p *models.RunProgress) {
	b, err := json.Marshal(p)
	if err != nil {
		h.logger.Warn("progress frame marshal failed", logger.Error(err))
		return
	}
	select {
	case h.broadcast <- b:
	default:
	}
}

// Serve upgrades the request and registers the connection with the hub.
func (h *Hub) Serve(c echo.Context) error {
	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", logger.Error(err))
		return err
	}

	cl := &client{hub: h, conn: conn, send: make(chan []byte, sendBuffer)}
	h.register <- cl

	go cl.writePump()
	go cl.readPump()
	return nil
}

// writePump pushes queued frames and keepalive pings to the peer.
func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump drains the connection so pings and close frames are handled.
// Subscribers only listen; inbound payloads are discarded.
func (c *client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}
