// Package live pushes newly recorded activities to connected admin dashboards.
package live

import (
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"attendance-backend/internal/models"

	"github.com/gorilla/websocket"
)

const writeWait = 5 * time.Second

// client serializes writes; a websocket.Conn allows one concurrent writer.
type client struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *client) send(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteJSON(v)
}

// Hub keeps the set of connected clients. Publish writes synchronously to each.
type Hub struct {
	mu       sync.Mutex
	clients  map[*client]struct{}
	upgrader websocket.Upgrader
	onChange func(n int)
}

func NewHub() *Hub {
	return &Hub{
		clients: make(map[*client]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// OnClientCountChange registers a callback fired with the new client count.
func (h *Hub) OnClientCountChange(f func(n int)) {
	h.mu.Lock()
	h.onChange = f
	h.mu.Unlock()
}

// SetCheckOrigin overrides the upgrader's origin policy.
func (h *Hub) SetCheckOrigin(f func(r *http.Request) bool) {
	h.upgrader.CheckOrigin = f
}

// AllowOrigins accepts upgrades whose Origin header is in allowed, or any
// origin when allowed contains "*". Requests without an Origin header are
// not from a browser and are accepted.
func AllowOrigins(allowed []string) func(r *http.Request) bool {
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
		set[strings.TrimSuffix(o, "/")] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := set[origin]
		return ok
	}
}

func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *Hub) add(c *client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	n, f := len(h.clients), h.onChange
	h.mu.Unlock()
	if f != nil {
		f(n)
	}
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	_, ok := h.clients[c]
	delete(h.clients, c)
	n, f := len(h.clients), h.onChange
	h.mu.Unlock()
	if ok {
		c.conn.Close()
		if f != nil {
			f(n)
		}
	}
}

// Publish sends the activity to every client. Clients whose write fails are dropped.
func (h *Hub) Publish(a models.Activity) {
	msg := Message{Event: "activity", Activity: a}

	h.mu.Lock()
	conns := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		conns = append(conns, c)
	}
	h.mu.Unlock()

	for _, c := range conns {
		if err := c.send(msg); err != nil {
			log.Printf("[Live] Dropping client %s: %v", c.conn.RemoteAddr(), err)
			h.remove(c)
		}
	}
}

type Message struct {
	Event    string          `json:"event"`
	Activity models.Activity `json:"activity"`
}

// ServeWS upgrades the connection and keeps it registered until the peer
// goes away. Incoming frames are discarded.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[Live] Upgrade failed: %v", err)
		return
	}
	c := &client{conn: conn}
	h.add(c)

	go func() {
		defer h.remove(c)
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	conns := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		conns = append(conns, c)
	}
	h.mu.Unlock()
	for _, c := range conns {
		h.remove(c)
	}
}
