package gateway

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/camposer/agentrelay/internal/bus"
)

const (
	wsWriteTimeout = 5 * time.Second
	wsSendBuffer   = 32
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// wsEvent is the JSON frame written to event stream subscribers.
type wsEvent struct {
	Event   string `json:"event"`
	Payload any    `json:"payload,omitempty"`
}

// wsClient pairs a connection with its outbound queue. All frames go
// through send and are written by a single goroutine, since the
// connection allows at most one concurrent writer.
type wsClient struct {
	conn *websocket.Conn
	send chan wsEvent
	done chan struct{}
}

// eventHub tracks connected WebSocket clients and fans bus events out
// to them. Slow or broken clients are dropped rather than blocking the
// broadcast path.
type eventHub struct {
	mu      sync.Mutex
	clients map[*wsClient]struct{}
}

func newEventHub() *eventHub {
	return &eventHub{clients: make(map[*wsClient]struct{})}
}

func (h *eventHub) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("events: websocket upgrade failed", "error", err)
		return
	}

	c := &wsClient{
		conn: conn,
		send: make(chan wsEvent, wsSendBuffer),
		done: make(chan struct{}),
	}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	slog.Debug("events: client connected", "remote", conn.RemoteAddr())

	go h.writePump(c)

	// Reader loop only to detect disconnects; inbound frames are ignored.
	go func() {
		defer h.remove(c)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

// writePump is the sole writer for its connection.
func (h *eventHub) writePump(c *wsClient) {
	defer h.remove(c)
	for {
		select {
		case frame := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := c.conn.WriteJSON(frame); err != nil {
				slog.Debug("events: dropping client", "remote", c.conn.RemoteAddr(), "error", err)
				return
			}
		case <-c.done:
			return
		}
	}
}

func (h *eventHub) remove(c *wsClient) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.done)
		c.conn.Close()
	}
	h.mu.Unlock()
}

// broadcast satisfies bus.EventHandler. Frames are queued to each
// client's writer; a client whose queue is full is dropped.
func (h *eventHub) broadcast(ev bus.Event) {
	h.mu.Lock()
	clients := make([]*wsClient, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	frame := wsEvent{Event: ev.Name, Payload: ev.Payload}
	for _, c := range clients {
		select {
		case c.send <- frame:
		default:
			slog.Debug("events: dropping slow client", "remote", c.conn.RemoteAddr())
			h.remove(c)
		}
	}
}

func (h *eventHub) closeAll() {
	h.mu.Lock()
	clients := make([]*wsClient, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	// WriteControl is safe alongside the write pump.
	for _, c := range clients {
		c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(wsWriteTimeout))
		h.remove(c)
	}
}
