package web

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"

	"pulse-voice/internal/core"
	"pulse-voice/internal/domain"
	"pulse-voice/internal/logging"
)

// Websocket event names.
const (
	EventNameNotice    = "notice"
	EventNameState     = "state"
	EventNameInterpret = "interpret"
)

const (
	clientBuffer = 16
	writeTimeout = 5 * time.Second
)

// Message is the websocket envelope in both directions.
type Message struct {
	Name    string          `json:"name"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub pushes notices and state snapshots to every connected browser. It
// implements notify.Publisher and core.Observer. New clients first receive
// the latest message of each kind.
type Hub struct {
	upgrader  websocket.Upgrader
	interpret func(string)

	mu      sync.Mutex
	clients map[*client]struct{}
	latest  map[string][]byte
}

// NewHub returns a hub. Typed commands received over a socket are passed
// to interpret, which may be nil.
func NewHub(interpret func(string)) *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		interpret: interpret,
		clients:   make(map[*client]struct{}),
		latest:    make(map[string][]byte),
	}
}

// Publish implements notify.Publisher.
func (h *Hub) Publish(n domain.Notice) {
	h.broadcast(EventNameNotice, n)
}

// OnSnapshot implements core.Observer.
func (h *Hub) OnSnapshot(s core.Snapshot) {
	h.broadcast(EventNameState, s)
}

// Clients returns the number of connected sockets.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *Hub) broadcast(name string, payload any) {
	raw, err := json.Marshal(payload)
	if err != nil {
		logging.Errorf("web: encoding %s payload: %v", name, err)
		return
	}
	msg, err := json.Marshal(Message{Name: name, Payload: raw})
	if err != nil {
		logging.Errorf("web: encoding %s message: %v", name, err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.latest[name] = msg
	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
			logging.Warnf("web: dropping slow websocket client %s", c.conn.RemoteAddr())
			h.removeLocked(c)
		}
	}
}

// ServeHTTP upgrades the connection and serves it until the peer leaves.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Warnf("web: websocket upgrade failed: %v", err)
		return
	}
	c := &client{conn: conn, send: make(chan []byte, clientBuffer)}

	h.mu.Lock()
	h.clients[c] = struct{}{}
	for _, name := range []string{EventNameState, EventNameNotice} {
		if msg, ok := h.latest[name]; ok {
			c.send <- msg
		}
	}
	h.mu.Unlock()
	logging.Debugf("web: websocket client %s connected", conn.RemoteAddr())

	go h.writeLoop(c)
	if err := h.readLoop(c); err != nil {
		logging.Warnf("web: %v", err)
	}

	h.mu.Lock()
	h.removeLocked(c)
	h.mu.Unlock()
	logging.Debugf("web: websocket client %s disconnected", conn.RemoteAddr())
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		h.removeLocked(c)
	}
}

func (h *Hub) removeLocked(c *client) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	close(c.send)
}

func (h *Hub) writeLoop(c *client) {
	defer c.conn.Close()
	for msg := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			logging.Debugf("web: writing to %s: %v", c.conn.RemoteAddr(), err)
			return
		}
	}
	_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

func (h *Hub) readLoop(c *client) error {
	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
				return errors.Wrapf(err, "reading websocket %s failed", c.conn.RemoteAddr())
			}
			return nil
		}
		var m Message
		if err := json.Unmarshal(raw, &m); err != nil {
			logging.Debugf("web: ignoring malformed websocket message: %v", err)
			continue
		}
		if m.Name != EventNameInterpret || h.interpret == nil {
			logging.Debugf("web: ignoring websocket message %q", m.Name)
			continue
		}
		var text string
		if err := json.Unmarshal(m.Payload, &text); err != nil {
			logging.Debugf("web: interpret payload is not a string: %v", err)
			continue
		}
		h.interpret(text)
	}
}
