package feed

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"rankboard/internal/metrics"
	"rankboard/internal/model"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
	sendBuffer = 64
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4 * 1024,
	CheckOrigin: func(r *http.Request) bool {
		origin := strings.TrimSpace(r.Header.Get("Origin"))
		if origin == "" {
			return true
		}
		host := strings.TrimSpace(r.Host)
		return strings.Contains(origin, "://"+host)
	},
}

type client struct {
	send chan model.Event
	done chan struct{}
	once sync.Once
}

func (c *client) stop() {
	c.once.Do(func() { close(c.done) })
}

// Hub fans published events out to every connected websocket client. A
// client that falls sendBuffer events behind is disconnected and resyncs on
// reconnect.
type Hub struct {
	log     *zap.Logger
	metrics *metrics.Metrics

	mu      sync.Mutex
	clients map[*client]struct{}
	closed  bool
}

type HubOption func(*Hub)

func WithHubLogger(l *zap.Logger) HubOption {
	return func(h *Hub) {
		if l != nil {
			h.log = l
		}
	}
}

func WithMetrics(m *metrics.Metrics) HubOption {
	return func(h *Hub) { h.metrics = m }
}

func NewHub(opts ...HubOption) *Hub {
	h := &Hub{log: zap.NewNop(), clients: map[*client]struct{}{}}
	for _, o := range opts {
		o(h)
	}
	return h
}

// Publish implements store.Publisher. It never blocks.
func (h *Hub) Publish(ev model.Event) {
	h.metrics.FeedEvent(ev.Type)
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- ev:
		default:
			h.log.Warn("feed client too slow, dropping")
			c.stop()
		}
	}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
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
		c.stop()
	}
}

func (h *Hub) add() *client {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}
	c := &client{send: make(chan model.Event, sendBuffer), done: make(chan struct{})}
	h.clients[c] = struct{}{}
	h.metrics.FeedClients(1)
	return c
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		h.metrics.FeedClients(-1)
	}
	h.mu.Unlock()
	c.stop()
}

// ServeHTTP upgrades the request and streams events until the client goes
// away, the client falls behind, or the hub closes.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Debug("feed upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	c := h.add()
	if c == nil {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"), time.Now().Add(writeWait))
		return
	}
	defer h.remove(c)
	h.log.Debug("feed client connected", zap.String("remote", r.RemoteAddr))

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		h.readLoop(conn, c)
	}()

	h.writeLoop(conn, c)
	_ = conn.Close()
	wg.Wait()
	h.log.Debug("feed client disconnected", zap.String("remote", r.RemoteAddr))
}

// readLoop discards client frames; it exists to process control frames and
// notice disconnects.
func (h *Hub) readLoop(conn *websocket.Conn, c *client) {
	defer c.stop()
	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writeLoop(conn *websocket.Conn, c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-c.done:
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
			return
		case ev := <-c.send:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(ev); err != nil {
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}
