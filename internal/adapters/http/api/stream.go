package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/okian/chargeview/internal/domain/model"
	"github.com/okian/chargeview/pkg/logger"
	"github.com/okian/chargeview/pkg/metrics"
)

const (
	// Time allowed to write a message to the peer.
	defaultWriteWait = 5 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 512

	messageTypeSnapshot = "snapshot"
)

// Message is the envelope pushed to stream clients.
type Message struct {
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
}

// StreamHandler pushes every new snapshot to websocket clients.
type StreamHandler struct {
	deps      Dependencies
	upgrader  websocket.Upgrader
	writeWait time.Duration
	clients   atomic.Int64
	logger    logger.Logger
}

// NewStreamHandler creates a stream handler.
func NewStreamHandler(deps Dependencies) *StreamHandler {
	return &StreamHandler{
		deps: deps,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		writeWait: defaultWriteWait,
		logger:    logger.Get().Named("stream"),
	}
}

// Clients returns the number of connected stream clients.
func (h *StreamHandler) Clients() int {
	return int(h.clients.Load())
}

// HandleStream handles GET /api/stream. The current snapshot is sent right
// after the upgrade, then one message per published snapshot.
func (h *StreamHandler) HandleStream(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		h.logger.Warn(r.Context(), "stream upgrade failed", logger.Error(err))
		metrics.RecordErrorByComponent("stream", "upgrade")
		return
	}

	c := &streamClient{
		ctx:       r.Context(),
		id:        uuid.NewString(),
		conn:      conn,
		writeWait: h.writeWait,
		done:      make(chan struct{}),
		logger:    h.logger,
	}
	updates, cancel := h.deps.Subscribe()
	defer cancel()

	metrics.UpdateStreamSubscribers(int(h.clients.Add(1)))
	defer func() { metrics.UpdateStreamSubscribers(int(h.clients.Add(-1))) }()

	ctx := c.ctx
	h.logger.Info(ctx, "stream client connected", logger.String("client_id", c.id))
	defer h.logger.Info(ctx, "stream client disconnected", logger.String("client_id", c.id))

	go c.readPump()
	c.writePump(h.deps.Snapshot(ctx), updates)
}

type streamClient struct {
	ctx       context.Context
	id        string
	conn      *websocket.Conn
	writeWait time.Duration
	done      chan struct{}
	logger    logger.Logger
}

// readPump drains the peer so control frames are processed; it closes done
// when the peer goes away.
func (c *streamClient) readPump() {
	defer close(c.done)

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Debug(c.ctx, "stream read error", logger.String("client_id", c.id), logger.Error(err))
			}
			return
		}
	}
}

func (c *streamClient) writePump(initial model.Snapshot, updates <-chan model.Snapshot) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	if !c.send(initial) {
		return
	}
	for {
		select {
		case snap, ok := <-updates:
			if !ok {
				// Store closed.
				_ = c.conn.SetWriteDeadline(time.Now().Add(c.writeWait))
				_ = c.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"))
				return
			}
			if !c.send(snap) {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}

func (c *streamClient) send(snap model.Snapshot) bool {
	data, err := json.Marshal(Message{Type: messageTypeSnapshot, Timestamp: time.Now().UTC(), Data: snap})
	if err != nil {
		c.logger.Error(c.ctx, "failed to marshal stream message", logger.Error(err))
		metrics.RecordStreamMessage("error")
		return true
	}
	_ = c.conn.SetWriteDeadline(time.Now().Add(c.writeWait))
	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		metrics.RecordStreamMessage("error")
		return false
	}
	metrics.RecordStreamMessage("ok")
	return true
}
