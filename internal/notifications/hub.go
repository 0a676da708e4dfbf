package notifications

import (
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/charlesng35/introhub/pkg/logger"
	"github.com/charlesng35/introhub/pkg/metrics"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096

	defaultBufferSize = 32
)

// Event names delivered to subscribers.
const (
	EventCreated = "notification.created"
	EventRead    = "notification.read"
	EventReadAll = "notification.read_all"
	EventDeleted = "notification.deleted"
)

// Event represents a payload delivered to notification subscribers.
type Event struct {
	Event          string `json:"event"`
	Notification   any    `json:"notification,omitempty"`
	NotificationID string `json:"notification_id,omitempty"`
	UnreadCount    *int64 `json:"unread_count,omitempty"`
}

// Hub fans notification events out to each user's open WebSocket connections.
type Hub struct {
	mu       sync.RWMutex
	clients  map[string]map[*client]struct{}
	upgrader websocket.Upgrader
	log      *zap.Logger
}

// NewHub constructs a notification hub instance.
func NewHub() *Hub {
	return &Hub{
		clients: make(map[string]map[*client]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     sameOriginOrLoopback,
		},
		log: logger.WithModule("notifications"),
	}
}

// Serve upgrades the HTTP connection to a WebSocket and registers the user
// subscriber. It blocks until the connection closes.
func (h *Hub) Serve(userID string, w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Debug("websocket upgrade failed", zap.String("user_id", userID), zap.Error(err))
		return
	}

	cl := &client{
		hub:    h,
		conn:   conn,
		userID: userID,
		send:   make(chan Event, defaultBufferSize),
	}
	h.addClient(cl)

	go cl.writeLoop()
	cl.readLoop()
}

// Broadcast delivers an event to all subscribers for the provided user ID.
func (h *Hub) Broadcast(userID string, event Event) {
	if h == nil || userID == "" {
		return
	}

	h.mu.RLock()
	targets := make([]*client, 0, len(h.clients[userID]))
	for cl := range h.clients[userID] {
		targets = append(targets, cl)
	}
	h.mu.RUnlock()

	for _, cl := range targets {
		cl.enqueue(event)
	}
}

// Subscribers reports the number of open connections for a user.
func (h *Hub) Subscribers(userID string) int {
	if h == nil {
		return 0
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID])
}

// Connections reports the number of open connections across all users.
func (h *Hub) Connections() int {
	if h == nil {
		return 0
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	total := 0
	for _, set := range h.clients {
		total += len(set)
	}
	return total
}

func (h *Hub) addClient(cl *client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.clients[cl.userID] == nil {
		h.clients[cl.userID] = make(map[*client]struct{})
	}
	h.clients[cl.userID][cl] = struct{}{}
	metrics.RealtimeSubscribers.Inc()
}

func (h *Hub) removeClient(cl *client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	clients := h.clients[cl.userID]
	if _, ok := clients[cl]; !ok {
		return
	}
	delete(clients, cl)
	if len(clients) == 0 {
		delete(h.clients, cl.userID)
	}
	metrics.RealtimeSubscribers.Dec()
}

type client struct {
	hub    *Hub
	conn   *websocket.Conn
	userID string

	mu     sync.Mutex
	send   chan Event
	closed bool
	once   sync.Once
}

func (c *client) enqueue(event Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.send <- event:
	default:
		c.hub.log.Warn("dropping slow notification subscriber", zap.String("user_id", c.userID))
		c.closed = true
		close(c.send)
	}
}

func (c *client) readLoop() {
	defer c.close()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		// Inbound frames carry nothing; reading keeps pong handling alive.
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				c.hub.log.Debug("unexpected websocket close", zap.String("user_id", c.userID), zap.Error(err))
			}
			return
		}
	}
}

func (c *client) writeLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case event, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(event); err != nil {
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

func (c *client) close() {
	c.once.Do(func() {
		c.hub.removeClient(c)
		c.mu.Lock()
		if !c.closed {
			c.closed = true
			close(c.send)
		}
		c.mu.Unlock()
		_ = c.conn.Close()
	})
}

func sameOriginOrLoopback(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	parsed, err := url.Parse(origin)
	if err != nil {
		return false
	}
	originHost := hostWithoutPort(parsed.Host)
	return strings.EqualFold(originHost, hostWithoutPort(r.Host)) || isLoopback(originHost)
}

func hostWithoutPort(host string) string {
	if h, _, err := net.SplitHostPort(host); err == nil {
		return h
	}
	return host
}

func isLoopback(host string) bool {
	if ip := net.ParseIP(host); ip != nil {
		return ip.IsLoopback()
	}
	return strings.EqualFold(host, "localhost")
}
