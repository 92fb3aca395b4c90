package api

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/wonny/vigil/internal/contracts"
	"github.com/wonny/vigil/pkg/logger"
)

const (
	writeWait      = 10 * time.Second
	pingInterval   = 30 * time.Second
	clientSendSize = 16
)

// Hub fans alert-set updates out to connected websocket clients. A slow
// client is dropped rather than allowed to stall the broadcast.
// SSOT: the live alert stream is served here only.
type Hub struct {
	logger   *logger.Logger
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*client]bool
}

type client struct {
	conn *websocket.Conn
	send chan []contracts.ConvictionRecord
}

// NewHub creates an empty hub.
func NewHub(log *logger.Logger) *Hub {
	return &Hub{
		logger: log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Read-only stream on a private deployment.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		clients: make(map[*client]bool),
	}
}

// PublishAlerts broadcasts a recomputed alert set to every client.
func (h *Hub) PublishAlerts(records []contracts.ConvictionRecord) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for c := range h.clients {
		select {
		case c.send <- records:
		default:
			// Backed-up client; disconnect it.
			delete(h.clients, c)
			close(c.send)
		}
	}
}

// Serve upgrades the request and streams alert updates until the client
// disconnects.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.WithError(err).Warn("WebSocket upgrade failed")
		return
	}

	c := &client{
		conn: conn,
		send: make(chan []contracts.ConvictionRecord, clientSendSize),
	}

	h.mu.Lock()
	h.clients[c] = true
	count := len(h.clients)
	h.mu.Unlock()

	h.logger.WithField("clients", count).Info("Alert stream client connected")

	go h.writeLoop(c)
	h.readLoop(c)
}

// writeLoop pushes updates and pings. Exits when send closes or a write
// fails.
func (h *Hub) writeLoop(c *client) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case records, ok := <-c.send:
			if !ok {
				_ = c.conn.WriteControl(websocket.CloseMessage, []byte{}, time.Now().Add(writeWait))
				return
			}
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(records); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}

// readLoop drains the connection to process control frames and detect
// disconnects. Inbound data frames are ignored.
func (h *Hub) readLoop(c *client) {
	defer h.drop(c)
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) drop(c *client) {
	h.mu.Lock()
	if h.clients[c] {
		delete(h.clients, c)
		close(c.send)
	}
	count := len(h.clients)
	h.mu.Unlock()

	c.conn.Close()
	h.logger.WithField("clients", count).Info("Alert stream client disconnected")
}
