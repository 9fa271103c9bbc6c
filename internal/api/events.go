package api

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"

	"github.com/VoidMesh/worldstream/internal/logging"
	"github.com/VoidMesh/worldstream/services/biome"
	"github.com/VoidMesh/worldstream/services/residency"
	"github.com/VoidMesh/worldstream/services/spatial"
)

const (
	sendBuffer = 256
	writeWait  = 5 * time.Second
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// EventMessage is one chunk lifecycle event as sent to websocket clients.
type EventMessage struct {
	Type  string        `json:"type"`
	Coord spatial.Coord `json:"coord"`
	Key   uint64        `json:"key"`
	Biome *biome.Biome  `json:"biome,omitempty"`
	At    time.Time     `json:"at"`
}

type eventClient struct {
	conn *websocket.Conn
	send chan []byte
}

// EventHub fans residency events out to websocket clients. It is a
// residency.Listener; a client that cannot keep up is disconnected rather
// than stalling the residency update.
type EventHub struct {
	mu      sync.RWMutex
	clients map[*eventClient]struct{}
	closed  bool
	logger  *log.Logger
}

var _ residency.Listener = (*EventHub)(nil)

func NewEventHub() *EventHub {
	return &EventHub{
		clients: make(map[*eventClient]struct{}),
		logger:  logging.WithComponent("events"),
	}
}

func (h *EventHub) ChunkLoaded(e residency.LoadedEvent) {
	b := e.Biome
	h.broadcast(EventMessage{Type: "loaded", Coord: e.Coord, Key: e.Key, Biome: &b, At: time.Now()})
}

func (h *EventHub) ChunkUnloaded(e residency.UnloadedEvent) {
	h.broadcast(EventMessage{Type: "unloaded", Coord: e.Coord, Key: e.Key, At: time.Now()})
}

func (h *EventHub) broadcast(msg EventMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("Failed to marshal event", "error", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.clients {
		select {
		case client.send <- data:
		default:
			h.logger.Warn("Dropping slow event client", "remote", client.conn.RemoteAddr())
			close(client.send)
			delete(h.clients, client)
		}
	}
}

// Clients returns the number of connected clients.
func (h *EventHub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// HandleWebSocket upgrades the request and streams events until the client
// goes away.
func (h *EventHub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("Failed to upgrade connection", "error", err)
		return
	}

	client := &eventClient{
		conn: conn,
		send: make(chan []byte, sendBuffer),
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		conn.Close()
		return
	}
	h.clients[client] = struct{}{}
	h.mu.Unlock()

	h.logger.Debug("Event client connected", "remote", conn.RemoteAddr())

	go h.writePump(client)
	h.readPump(client)
}

// readPump discards client messages; it exists to notice disconnects.
func (h *EventHub) readPump(client *eventClient) {
	defer func() {
		h.remove(client)
		client.conn.Close()
	}()

	for {
		if _, _, err := client.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("Event client read error", "error", err)
			}
			return
		}
	}
}

func (h *EventHub) writePump(client *eventClient) {
	defer client.conn.Close()

	for message := range client.send {
		client.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := client.conn.WriteMessage(websocket.TextMessage, message); err != nil {
			h.logger.Debug("Event client write error", "error", err)
			return
		}
	}
	client.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
}

func (h *EventHub) remove(client *eventClient) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		close(client.send)
	}
}

// Close disconnects every client and refuses new ones.
func (h *EventHub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.closed = true
	for client := range h.clients {
		close(client.send)
		delete(h.clients, client)
	}
}
