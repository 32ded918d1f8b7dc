package server

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/signalsfoundry/satmap/core"
	"github.com/signalsfoundry/satmap/internal/logging"
)

const (
	writeWait  = 5 * time.Second
	pingPeriod = 30 * time.Second
	sendBuffer = 16
)

// Message is the envelope pushed to websocket clients.
type Message struct {
	Type   string      `json:"type"`
	Frame  *core.Frame `json:"frame,omitempty"`
	Status *string     `json:"status,omitempty"`
}

// Hub fans animation frames and status changes out to websocket clients.
// A client that falls behind by more than sendBuffer messages is dropped.
type Hub struct {
	upgrader websocket.Upgrader
	log      logging.Logger

	mu      sync.Mutex
	clients map[*client]struct{}
	closed  bool
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

func NewHub(log logging.Logger) *Hub {
	if log == nil {
		log = logging.Noop()
	}
	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
		},
		log:     log,
		clients: make(map[*client]struct{}),
	}
}

// ServeHTTP upgrades the request and streams messages until the client
// disconnects.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn(r.Context(), "websocket upgrade failed", logging.Err(err))
		return
	}
	c := &client{conn: conn, send: make(chan []byte, sendBuffer)}
	if !h.register(c) {
		conn.Close()
		return
	}
	h.log.Debug(r.Context(), "websocket client connected", logging.String("remote", r.RemoteAddr))

	go h.writeLoop(c)
	// Inbound messages are ignored; reading detects the close.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	h.unregister(c)
}

func (h *Hub) register(c *client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.clients[c] = struct{}{}
	return true
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
}

func (h *Hub) writeLoop(c *client) {
	ping := time.NewTicker(pingPeriod)
	defer func() {
		ping.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ping.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Broadcast sends msg to every client without blocking.
func (h *Hub) Broadcast(msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.log.Error(context.Background(), "failed to encode websocket message", logging.Err(err))
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			delete(h.clients, c)
			close(c.send)
			h.log.Warn(context.Background(), "dropping slow websocket client")
		}
	}
}

// PublishFrame is an OnFrame observer.
func (h *Hub) PublishFrame(f core.Frame) {
	h.Broadcast(Message{Type: "frame", Frame: &f})
}

// PublishStatus is a status subscriber.
func (h *Hub) PublishStatus(s string) {
	h.Broadcast(Message{Type: "status", Status: &s})
}

// Len returns the number of connected clients.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Close disconnects every client and refuses new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
	}
}
