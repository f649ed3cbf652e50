// Package broadcast fans readings out to WebSocket clients.
package broadcast

import (
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"libdb.so/thermline/internal/reading"
)

const (
	writeTimeout = 5 * time.Second
	sendBuffer   = 16
)

// StatusMessage is sent to a client as soon as it connects.
type StatusMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	At      int64  `json:"at"`
}

// ReadingMessage is sent to every client for each parsed reading.
type ReadingMessage struct {
	Type  string   `json:"type"`
	TempC float64  `json:"tempC"`
	TempF float64  `json:"tempF"`
	PH    *float64 `json:"ph,omitempty"`
	TS    int64    `json:"ts"`
}

// NewReadingMessage converts a reading into its wire form.
func NewReadingMessage(r reading.Reading) ReadingMessage {
	return ReadingMessage{
		Type:  "reading",
		TempC: r.TempC,
		TempF: r.TempF,
		PH:    r.PH,
		TS:    r.Time.UnixMilli(),
	}
}

// Hub keeps track of connected WebSocket clients.
type Hub struct {
	logger   *slog.Logger
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*client]struct{}
}

type client struct {
	conn   *websocket.Conn
	remote string
	send   chan []byte
}

// NewHub creates a new hub with no clients.
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		logger: logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		clients: make(map[*client]struct{}),
	}
}

// Handler returns the HTTP handler serving /health. WebSocket upgrades are
// accepted on every other path.
func (h *Hub) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", h.handleHealth)
	mux.HandleFunc("/", h.handleWS)
	return mux
}

// Serve serves the hub on l until ctx is canceled or the server fails.
// Connected clients are disconnected when Serve returns.
func (h *Hub) Serve(ctx context.Context, l net.Listener) error {
	server := &http.Server{
		Handler:           h.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	done := make(chan struct{})
	defer close(done)

	go func() {
		select {
		case <-ctx.Done():
		case <-done:
		}
		h.logger.Debug("shutting down broadcast server")
		server.Close()
		h.closeAll()
	}()

	h.logger.Info("broadcast server listening", "addr", l.Addr().String())

	if err := server.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "broadcast server failed")
	}
	return ctx.Err()
}

// Broadcast sends r to all connected clients. Clients that cannot keep up
// are disconnected.
func (h *Hub) Broadcast(r reading.Reading) {
	b, err := json.Marshal(NewReadingMessage(r))
	if err != nil {
		h.logger.Error("failed to marshal reading", "error", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	for c := range h.clients {
		select {
		case c.send <- b:
		default:
			h.logger.Warn(
				"dropping slow websocket client",
				"remote", c.remote)
			h.removeLocked(c)
		}
	}
}

// NumClients returns the number of connected clients.
func (h *Hub) NumClients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *Hub) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]bool{"ok": true}); err != nil {
		h.logger.Warn("failed to write health response", "error", err)
	}
}

func (h *Hub) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debug("failed to upgrade websocket", "error", err)
		return
	}

	status, err := json.Marshal(StatusMessage{
		Type:    "status",
		Message: "connected",
		At:      time.Now().UnixMilli(),
	})
	if err != nil {
		h.logger.Warn("failed to marshal status message", "error", err)
		conn.Close()
		return
	}

	c := &client{
		conn:   conn,
		remote: conn.RemoteAddr().String(),
		send:   make(chan []byte, sendBuffer),
	}
	c.send <- status

	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()

	h.logger.Debug("websocket client connected", "remote", c.remote)

	go h.writeLoop(c)
	go h.readLoop(c)
}

func (h *Hub) writeLoop(c *client) {
	defer c.conn.Close()

	for b := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := c.conn.WriteMessage(websocket.TextMessage, b); err != nil {
			h.logger.Debug("failed to write to websocket client", "error", err)
			h.remove(c)
			return
		}
	}
}

// readLoop discards incoming messages and detects disconnects.
func (h *Hub) readLoop(c *client) {
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			h.logger.Debug("websocket client disconnected", "error", err)
			h.remove(c)
			return
		}
	}
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	h.removeLocked(c)
	h.mu.Unlock()
}

func (h *Hub) removeLocked(c *client) {
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for c := range h.clients {
		h.removeLocked(c)
	}
}
