package notification

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"

	"Fixer-backend/internal/logger"
	"Fixer-backend/internal/model"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4 * 1024
	sendBuffer     = 64
)

// Hub tracks websocket connections per user and pushes notifications to them.
type Hub struct {
	mu       sync.RWMutex
	clients  map[uint]map[*client]struct{}
	upgrader websocket.Upgrader
	log      logger.Logger
}

type client struct {
	userID uint
	hub    *Hub
	conn   *websocket.Conn
	send   chan []byte
}

// NewHub creates a hub. allowedOrigins empty allows every origin.
func NewHub(log logger.Logger, allowedOrigins []string) *Hub {
	h := &Hub{
		clients: make(map[uint]map[*client]struct{}),
		log:     log,
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, o := range allowedOrigins {
				if o == "*" || o == origin {
					return true
				}
			}
			return false
		},
	}
	return h
}

func (h *Hub) Name() string { return "websocket" }

func (h *Hub) Accepts(model.NotificationType) bool { return true }

// Deliver pushes directly to local connections. Used when redis is disabled.
func (h *Hub) Deliver(_ context.Context, _ *model.User, n *model.Notification) error {
	payload, err := encode(n)
	if err != nil {
		return err
	}
	h.SendToUser(n.UserID, payload)
	return nil
}

// SendToUser queues payload on every connection of userID and returns how
// many connections accepted it. Full buffers drop the message.
func (h *Hub) SendToUser(userID uint, payload []byte) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	sent := 0
	for c := range h.clients[userID] {
		select {
		case c.send <- payload:
			sent++
		default:
			h.log.Warn("websocket send buffer full", map[string]interface{}{"user_id": userID})
		}
	}
	return sent
}

// Connected returns the number of open connections of userID.
func (h *Hub) Connected(userID uint) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID])
}

// Serve upgrades the request and streams notifications of userID until the
// connection closes.
func (h *Hub) Serve(userID uint, w http.ResponseWriter, r *http.Request) error {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}

	c := &client{userID: userID, hub: h, conn: conn, send: make(chan []byte, sendBuffer)}
	h.register(c)

	go c.writePump()
	go c.readPump()
	return nil
}

// Relay subscribes to every user channel on redis and forwards messages to
// local connections until ctx is canceled.
func (h *Hub) Relay(ctx context.Context, rdb *redis.Client) error {
	sub := rdb.PSubscribe(ctx, ChannelPrefix+"*")
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return err
	}
	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			userID, valid := userFromChannel(msg.Channel)
			if !valid {
				continue
			}
			h.SendToUser(userID, []byte(msg.Payload))
		}
	}
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[c.userID] == nil {
		h.clients[c.userID] = make(map[*client]struct{})
	}
	h.clients[c.userID][c] = struct{}{}
	h.log.Debug("websocket client registered", map[string]interface{}{"user_id": c.userID})
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	conns, ok := h.clients[c.userID]
	if !ok {
		return
	}
	if _, ok := conns[c]; !ok {
		return
	}
	delete(conns, c)
	if len(conns) == 0 {
		delete(h.clients, c.userID)
	}
	close(c.send)
}

// readPump only drains control frames; clients do not send data.
func (c *client) readPump() {
	defer func() {
		c.hub.unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.log.Warn("websocket read error", map[string]interface{}{"user_id": c.userID, "error": err.Error()})
			}
			return
		}
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
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
