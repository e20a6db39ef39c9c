package web

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"pavolctl/internal/usecase"
)

const (
	writeWait  = 5 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	sendBuffer = 8
)

// envelope is the JSON frame pushed to websocket clients.
type envelope struct {
	Type string    `json:"type"`
	Ts   time.Time `json:"ts"`
	Data any       `json:"data,omitempty"`
}

// Hub polls the volumes once and fans every change out to websocket clients.
// Slow clients are disconnected when their buffer fills.
type Hub struct {
	usecase  usecase.VolumeUseCase
	interval time.Duration
	logger   *slog.Logger

	mu      sync.Mutex
	clients map[*client]struct{}
	last    []byte
	closed  bool
}

type client struct {
	conn *websocket.Conn
	send chan []byte
	once sync.Once
}

func (c *client) close() {
	c.once.Do(func() { close(c.send) })
}

// NewHub creates a hub polling uc every interval once Run is called.
func NewHub(uc usecase.VolumeUseCase, interval time.Duration, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		usecase:  uc,
		interval: interval,
		logger:   logger,
		clients:  make(map[*client]struct{}),
	}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Run polls until ctx is cancelled, then disconnects every client.
func (h *Hub) Run(ctx context.Context) {
	defer h.closeAll()
	h.usecase.Watch(ctx, h.interval, func(res usecase.VolumesResult) {
		msg := envelope{Type: "volumes", Ts: res.At.UTC(), Data: res.Snapshot}
		if res.Err != nil {
			msg = envelope{Type: "error", Ts: res.At.UTC(), Data: map[string]string{"error": res.Err.Error()}}
		}
		b, err := json.Marshal(msg)
		if err != nil {
			h.logger.Warn("ws marshal failed", "error", err)
			return
		}
		h.broadcast(b)
	})
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *Hub) broadcast(msg []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.last = msg
	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
			h.logger.Info("ws client too slow; disconnecting", "remote_addr", c.conn.RemoteAddr().String())
			delete(h.clients, c)
			c.close()
		}
	}
}

// register adds c unless the hub has shut down, in which case c is closed at once.
func (h *Hub) register(c *client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		c.close()
		return false
	}
	h.clients[c] = struct{}{}
	if h.last != nil {
		c.send <- h.last
	}
	return true
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		c.close()
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for c := range h.clients {
		delete(h.clients, c)
		c.close()
	}
}

// ServeWS upgrades the request and registers the client.
// The latest snapshot, if any, is sent immediately.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("ws upgrade failed", "error", err)
		return
	}
	c := &client{conn: conn, send: make(chan []byte, sendBuffer)}
	if !h.register(c) {
		// writePump sends the close frame for the already closed send channel.
		h.writePump(c)
		return
	}

	// Pumps outlive the request; net/http cancels r.Context() when the handler returns.
	go h.writePump(c)
	go h.readPump(c)
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				if !errors.Is(err, websocket.ErrCloseSent) {
					h.logger.Info("ws write failed", "remote_addr", c.conn.RemoteAddr().String(), "error", err)
				}
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump discards incoming frames and unregisters the client on disconnect.
func (h *Hub) readPump(c *client) {
	defer h.unregister(c)

	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			var ce *websocket.CloseError
			if errors.As(err, &ce) {
				h.logger.Debug("ws client closed", "remote_addr", c.conn.RemoteAddr().String(), "code", ce.Code)
			}
			return
		}
	}
}
