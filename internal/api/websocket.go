package api

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// wsSendBufferSize is the per-client outbound message buffer size.
const wsSendBufferSize = 64

// wsWriteTimeout bounds a single frame write.
const wsWriteTimeout = 5 * time.Second

// WSEvent is one message on the live feed: device availability changes
// and watchdog transitions.
type WSEvent struct {
	Type      string `json:"type"`
	Timestamp string `json:"timestamp"`
	Payload   any    `json:"payload"`
}

// Hub fans live events out to connected WebSocket clients.
//
// Every client receives every event; with a handful of operator
// dashboards there is nothing to gain from per-channel subscriptions.
type Hub struct {
	logger Logger

	mu      sync.RWMutex
	clients map[*wsClient]struct{}
}

type wsClient struct {
	conn *websocket.Conn
	send chan []byte
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(_ *http.Request) bool {
		// The control surface binds to the installation's private
		// network; origin restrictions add nothing there.
		return true
	},
}

// NewHub creates an empty hub.
func NewHub(logger Logger) *Hub {
	return &Hub{
		logger:  logger,
		clients: make(map[*wsClient]struct{}),
	}
}

// Broadcast sends an event to every connected client. Slow clients are
// disconnected rather than allowed to stall the feed.
func (h *Hub) Broadcast(eventType string, payload any) {
	data, err := json.Marshal(WSEvent{
		Type:      eventType,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Payload:   payload,
	})
	if err != nil {
		h.logger.Warn("marshalling websocket event", "error", err)
		return
	}

	h.mu.RLock()
	clients := make([]*wsClient, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		if !c.trySend(data) {
			h.unregister(c)
		}
	}
}

// trySend queues a message without blocking. Broadcasters run on
// independent goroutines and each works from its own snapshot, so a
// client may already have been unregistered, its channel closed, by
// the time this send executes; the recover guard turns that send into
// an ordinary miss instead of a process-killing panic.
func (c *wsClient) trySend(data []byte) (ok bool) {
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) register(c *wsClient) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
}

// unregister removes a client. Only the call that actually removes the
// client closes the send channel, preventing double-close panics.
func (h *Hub) unregister(c *wsClient) {
	h.mu.Lock()
	_, existed := h.clients[c]
	delete(h.clients, c)
	h.mu.Unlock()

	if existed {
		close(c.send)
	}
}

// closeAll disconnects every client, used at shutdown.
func (h *Hub) closeAll() {
	h.mu.Lock()
	clients := make([]*wsClient, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.clients = make(map[*wsClient]struct{})
	h.mu.Unlock()

	for _, c := range clients {
		close(c.send)
		c.conn.Close()
	}
}

// handleWebSocket upgrades the connection and streams events until the
// client goes away.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	client := &wsClient{
		conn: conn,
		send: make(chan []byte, wsSendBufferSize),
	}
	s.hub.register(client)

	go client.writePump()
	go client.readPump(s.hub)
}

// writePump drains the send channel to the connection.
func (c *wsClient) writePump() {
	defer c.conn.Close()

	for data := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
		if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			return
		}
	}
	_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

// readPump discards inbound frames and detects disconnects. The feed
// is one-way; clients have the REST surface for actions.
func (c *wsClient) readPump(hub *Hub) {
	defer hub.unregister(c)

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}
