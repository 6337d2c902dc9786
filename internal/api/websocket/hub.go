package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/platformbuilds/mirador-sentinel/internal/config"
	"github.com/platformbuilds/mirador-sentinel/internal/metrics"
	"github.com/platformbuilds/mirador-sentinel/internal/models"
	"github.com/platformbuilds/mirador-sentinel/pkg/logger"
)

const (
	writeWait      = 10 * time.Second
	maxMessageSize = 512
	sendBuffer     = 32
)

// Hub fans dispatched alerts out to connected stream clients. Slow clients
// whose buffer fills are disconnected rather than allowed to stall the rest.
type Hub struct {
	clients    map[*Client]struct{}
	register   chan *Client
	unregister chan *Client
	broadcast  chan []byte
	done       chan struct{}
	upgrader   websocket.Upgrader
	cfg        config.WebSocketConfig
	logger     logger.Logger
	mu         sync.RWMutex
}

type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
	id   string
}

type Message struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data"`
	Timestamp time.Time   `json:"timestamp"`
}

func NewHub(cfg config.WebSocketConfig, log logger.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan []byte, 256),
		done:       make(chan struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  cfg.ReadBufferSize,
			WriteBufferSize: cfg.WriteBufferSize,
			// The stream carries no credentials; any origin may subscribe.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		cfg:    cfg,
		logger: log,
	}
}

// Run owns the client set until ctx is cancelled, then closes every client.
// It must be called once.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = struct{}{}
			h.mu.Unlock()
			metrics.ActiveStreamClients.Inc()
			h.logger.Info("WebSocket client connected", "clientId", client.id)

		case client := <-h.unregister:
			h.remove(client)
			h.logger.Info("WebSocket client disconnected", "clientId", client.id)

		case message := <-h.broadcast:
			h.mu.RLock()
			var slow []*Client
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					slow = append(slow, client)
				}
			}
			h.mu.RUnlock()
			for _, client := range slow {
				h.logger.Warn("Dropping slow WebSocket client", "clientId", client.id)
				h.remove(client)
			}

		case <-ctx.Done():
			h.mu.Lock()
			for client := range h.clients {
				delete(h.clients, client)
				close(client.send)
				metrics.ActiveStreamClients.Dec()
			}
			h.mu.Unlock()
			return
		}
	}
}

func (h *Hub) remove(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		close(client.send)
		metrics.ActiveStreamClients.Dec()
	}
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// BroadcastAlert queues an alert for every connected client. It never
// blocks the caller; when the queue is full the alert is dropped from the
// stream only.
func (h *Hub) BroadcastAlert(alert *models.Alert) {
	payload, err := json.Marshal(Message{Type: "alert", Data: alert, Timestamp: time.Now().UTC()})
	if err != nil {
		h.logger.Error("Failed to marshal alert message", "alertId", alert.AlertID, "error", err)
		return
	}
	select {
	case h.broadcast <- payload:
	default:
		h.logger.Warn("Alert stream queue full, dropping message", "alertId", alert.AlertID)
	}
}

// ServeWS upgrades GET /ws/alerts and attaches the connection to the hub.
func (h *Hub) ServeWS(c *gin.Context) {
	if h.cfg.MaxConnections > 0 && h.ClientCount() >= h.cfg.MaxConnections {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "too many stream clients"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("WebSocket upgrade failed (alerts)", "error", err)
		return
	}

	id := c.GetString("request_id")
	if id == "" {
		id = conn.RemoteAddr().String()
	}
	client := &Client{hub: h, conn: conn, send: make(chan []byte, sendBuffer), id: id}
	select {
	case h.register <- client:
	case <-h.done:
		_ = conn.Close()
		return
	}

	go client.writePump(h.pingInterval())
	client.readPump(h.pingInterval())
}

func (h *Hub) pingInterval() time.Duration {
	if h.cfg.PingInterval <= 0 {
		return time.Duration(config.DefaultWSPingInterval) * time.Second
	}
	return time.Duration(h.cfg.PingInterval) * time.Second
}

// readPump discards client frames; it exists to process pongs and to notice
// when the peer goes away.
func (c *Client) readPump(ping time.Duration) {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		_ = c.conn.Close()
	}()

	pongWait := ping * 2
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

func (c *Client) writePump(ping time.Duration) {
	ticker := time.NewTicker(ping)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
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
