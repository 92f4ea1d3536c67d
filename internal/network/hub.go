package network

import (
	"encoding/json"
	"sync"

	"github.com/AshuferMorningstar/Mafia/internal/platform/logger"
	"github.com/AshuferMorningstar/Mafia/internal/platform/metrics"
)

// Envelope is the wire form of every event in both directions.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Hub maintains the set of active clients and the room and sub-room
// membership used for addressed delivery. It satisfies engine.Emitter.
// Sends never block: a client whose buffer is full loses the event.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client            // connID -> client
	rooms   map[string]map[string]*Client // room code -> connID -> client
	scopes  map[string]map[string]*Client // sub-room -> connID -> client

	logger  *logger.Logger
	metrics *metrics.Collector
}

// NewHub initializes an empty Hub.
func NewHub(log *logger.Logger, m *metrics.Collector) *Hub {
	return &Hub{
		clients: make(map[string]*Client),
		rooms:   make(map[string]map[string]*Client),
		scopes:  make(map[string]map[string]*Client),
		logger:  log,
		metrics: m,
	}
}

// Add registers a freshly upgraded connection.
func (h *Hub) Add(c *Client) {
	h.mu.Lock()
	h.clients[c.id] = c
	h.mu.Unlock()
	h.metrics.ConnectionsActive.Inc()
	h.logger.Debug("websocket client connected", "conn", c.id)
}

// Remove drops a connection from the hub, its room and all sub-rooms, and
// closes its send channel.
func (h *Hub) Remove(connID string) {
	h.mu.Lock()
	c, ok := h.clients[connID]
	if ok {
		delete(h.clients, connID)
		for _, members := range h.rooms {
			delete(members, connID)
		}
		for _, members := range h.scopes {
			delete(members, connID)
		}
		close(c.send)
	}
	h.mu.Unlock()
	if ok {
		h.metrics.ConnectionsActive.Dec()
		h.logger.Debug("websocket client disconnected", "conn", connID)
	}
}

// JoinRoom adds a connection to a room's broadcast set.
func (h *Hub) JoinRoom(connID, roomCode string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	c, ok := h.clients[connID]
	if !ok {
		return
	}
	if h.rooms[roomCode] == nil {
		h.rooms[roomCode] = make(map[string]*Client)
	}
	h.rooms[roomCode][connID] = c
}

// LeaveRoom removes a connection from a room's broadcast set and from any
// of its sub-rooms.
func (h *Hub) LeaveRoom(connID, roomCode string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.rooms[roomCode], connID)
	for _, members := range h.scopes {
		delete(members, connID)
	}
}

// ToRoom delivers an event to every connection in a room.
func (h *Hub) ToRoom(roomCode, event string, payload any) {
	data, err := h.marshal(event, payload)
	if err != nil {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.rooms[roomCode] {
		h.push(c, event, data)
	}
}

// ToScope delivers an event to every connection in a sub-room.
func (h *Hub) ToScope(scope, event string, payload any) {
	data, err := h.marshal(event, payload)
	if err != nil {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.scopes[scope] {
		h.push(c, event, data)
	}
}

// ToConn delivers an event to a single connection.
func (h *Hub) ToConn(connID, event string, payload any) {
	data, err := h.marshal(event, payload)
	if err != nil {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	if c, ok := h.clients[connID]; ok {
		h.push(c, event, data)
	}
}

// AddToScope registers a connection into a sub-room.
func (h *Hub) AddToScope(connID, scope string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	c, ok := h.clients[connID]
	if !ok {
		return
	}
	if h.scopes[scope] == nil {
		h.scopes[scope] = make(map[string]*Client)
	}
	h.scopes[scope][connID] = c
}

// DropScope removes a sub-room and all its members.
func (h *Hub) DropScope(scope string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.scopes, scope)
}

func (h *Hub) marshal(event string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		h.logger.Error("failed to serialize event payload", "event", event, "err", err)
		return nil, err
	}
	raw, err := json.Marshal(Envelope{Event: event, Data: data})
	if err != nil {
		h.logger.Error("failed to serialize event envelope", "event", event, "err", err)
		return nil, err
	}
	return raw, nil
}

// push hands a frame to one client. Slow consumers lose the frame rather
// than stalling the caller.
func (h *Hub) push(c *Client, event string, data []byte) {
	select {
	case c.send <- data:
		h.metrics.EventsOut.WithLabelValues(event).Inc()
	default:
		h.metrics.EventsDropped.Inc()
		h.logger.Warn("send buffer full, event dropped", "conn", c.id, "event", event)
	}
}
