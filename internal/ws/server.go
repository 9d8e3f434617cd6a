// Package ws pushes domain events to connected viewers over websocket.
package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/floorsync/server/internal/viewer"
)

const (
	writeTimeout = 5 * time.Second
	sendBuffer   = 64
)

type client struct {
	conn   *websocket.Conn
	viewer *viewer.Viewer
	send   chan any
	done   chan struct{}
}

// Hub accepts viewer connections and fans events out to them. Emit never
// blocks on a slow viewer; messages beyond its buffer are dropped.
type Hub struct {
	vm      *viewer.Manager
	origins []string
	logger  *slog.Logger

	connsMu sync.RWMutex
	conns   map[string]*client
}

func NewHub(vm *viewer.Manager, origins []string, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	return &Hub{
		vm:      vm,
		origins: origins,
		logger:  logger,
		conns:   make(map[string]*client),
	}
}

// Emit queues event for every viewer subscribed to it.
func (h *Hub) Emit(event string, payload any) {
	msg := EventMessage{Type: "event", Event: event, Data: payload, SentAt: time.Now().UTC()}

	h.connsMu.RLock()
	defer h.connsMu.RUnlock()
	for id, c := range h.conns {
		if !c.viewer.Wants(event) {
			continue
		}
		select {
		case c.send <- msg:
		case <-c.done:
		default:
			h.logger.Warn("viewer send buffer full, dropping event", "viewer_id", id, "event", event)
		}
	}
}

func (h *Hub) Viewers() *viewer.Manager {
	return h.vm
}

// Close disconnects every viewer.
func (h *Hub) Close() {
	h.connsMu.RLock()
	clients := make([]*client, 0, len(h.conns))
	for _, c := range h.conns {
		clients = append(clients, c)
	}
	h.connsMu.RUnlock()

	for _, c := range clients {
		c.conn.Close(websocket.StatusGoingAway, "server shutting down")
	}
}

func (h *Hub) HandleViewer(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: h.origins,
	})
	if err != nil {
		h.logger.Warn("websocket accept failed", "error", err)
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "goodbye")

	v := viewer.New(r.UserAgent())
	c := &client{
		conn:   conn,
		viewer: v,
		send:   make(chan any, sendBuffer),
		done:   make(chan struct{}),
	}

	ack := AckMessage{Type: "ack", ViewerID: v.ID, Message: "connected"}
	if err := wsjson.Write(r.Context(), conn, ack); err != nil {
		h.logger.Warn("failed to send ack", "error", err)
		return
	}

	h.vm.Add(v)
	h.connsMu.Lock()
	h.conns[v.ID] = c
	h.connsMu.Unlock()

	ctx, cancel := context.WithCancel(r.Context())
	defer func() {
		cancel()
		close(c.done)
		h.connsMu.Lock()
		delete(h.conns, v.ID)
		h.connsMu.Unlock()
		h.vm.Remove(v.ID)
	}()

	go h.writeLoop(ctx, c)
	h.readLoop(ctx, c)
}

func (h *Hub) writeLoop(ctx context.Context, c *client) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-c.send:
			wctx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := wsjson.Write(wctx, c.conn, msg)
			cancel()
			if err != nil {
				h.logger.Warn("failed to write to viewer", "viewer_id", c.viewer.ID, "error", err)
				c.conn.Close(websocket.StatusInternalError, "write failed")
				return
			}
			if _, ok := msg.(EventMessage); ok {
				c.viewer.MarkSent()
			}
		}
	}
}

func (h *Hub) readLoop(ctx context.Context, c *client) {
	for {
		_, data, err := c.conn.Read(ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			if status != websocket.StatusNormalClosure && status != websocket.StatusGoingAway && ctx.Err() == nil {
				h.logger.Debug("websocket read ended", "viewer_id", c.viewer.ID, "error", err)
			}
			return
		}

		var msg BaseMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			h.logger.Debug("invalid viewer message", "viewer_id", c.viewer.ID, "error", err)
			continue
		}

		switch msg.Type {
		case "heartbeat":
			c.viewer.UpdateHeartbeat()
			select {
			case c.send <- HeartbeatMessage{Type: "heartbeat", Timestamp: time.Now().UTC()}:
			default:
			}

		case "subscribe":
			var sub SubscribeMessage
			if err := json.Unmarshal(data, &sub); err != nil {
				h.logger.Debug("invalid subscribe message", "viewer_id", c.viewer.ID, "error", err)
				continue
			}
			c.viewer.Subscribe(sub.Events)
			h.logger.Info("viewer subscribed", "viewer_id", c.viewer.ID, "events", sub.Events)

		case "quit":
			return

		default:
			h.logger.Debug("unknown viewer message", "viewer_id", c.viewer.ID, "type", msg.Type)
		}
	}
}
