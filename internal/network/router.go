package network

import (
	"encoding/json"
	"strings"

	"github.com/google/uuid"

	"github.com/AshuferMorningstar/Mafia/internal/engine"
	"github.com/AshuferMorningstar/Mafia/internal/game"
	"github.com/AshuferMorningstar/Mafia/internal/platform/logger"
	"github.com/AshuferMorningstar/Mafia/internal/platform/metrics"
	"github.com/AshuferMorningstar/Mafia/internal/registry"
)

// Router binds websocket connections to rooms and forwards their events
// to the owning engine. join_room and leave_room are handled here because
// they move the connection between rooms; everything else is passed
// through untouched.
type Router struct {
	rooms   *registry.Rooms
	hub     *Hub
	logger  *logger.Logger
	metrics *metrics.Collector
}

func NewRouter(rooms *registry.Rooms, hub *Hub, log *logger.Logger, m *metrics.Collector) *Router {
	return &Router{rooms: rooms, hub: hub, logger: log, metrics: m}
}

type joinPayload struct {
	RoomCode string `json:"room_code"`
	PlayerID string `json:"player_id"`
	Name     string `json:"name"`
}

// Dispatch routes one inbound envelope.
func (rt *Router) Dispatch(c *Client, env Envelope) {
	switch env.Event {
	case engine.InJoinRoom:
		rt.handleJoin(c, env.Data)
	case engine.InLeaveRoom:
		rt.handleLeave(c)
	default:
		playerID, roomCode := c.binding()
		if roomCode == "" {
			rt.hub.ToConn(c.id, engine.EvtError, map[string]any{"error": "join a room first"})
			return
		}
		room, ok := rt.rooms.Get(roomCode)
		if !ok {
			rt.hub.ToConn(c.id, engine.EvtError, map[string]any{"error": "room no longer exists"})
			return
		}
		room.Engine.Handle(c.id, playerID, env.Event, env.Data)
	}
}

func (rt *Router) handleJoin(c *Client, data json.RawMessage) {
	rejected := func(reason string) {
		rt.hub.ToConn(c.id, engine.EvtJoinRejected, engine.BlockedPayload{
			Action: engine.InJoinRoom, Reason: reason,
		})
	}

	var p joinPayload
	if err := json.Unmarshal(data, &p); err != nil {
		rejected("malformed join payload")
		return
	}
	if _, bound := c.binding(); bound != "" {
		rejected("already in a room")
		return
	}
	p.Name = strings.TrimSpace(p.Name)
	if p.Name == "" {
		rejected("a name is required")
		return
	}
	code := strings.ToUpper(strings.TrimSpace(p.RoomCode))
	room, ok := rt.rooms.Get(code)
	if !ok {
		rejected("room not found")
		return
	}
	if p.PlayerID == "" {
		p.PlayerID = uuid.NewString()
	}

	// Optimistic wiring: membership must exist before the engine emits
	// the join broadcasts. The engine's verdict unwinds it on rejection.
	rt.hub.JoinRoom(c.id, code)
	room.Conns.Attach(c.id, p.PlayerID)
	c.bind(p.PlayerID, code)

	player := game.Player{ID: p.PlayerID, Name: p.Name}
	room.Engine.Join(c.id, player, func(res engine.JoinResult) {
		if !res.Accepted {
			room.Conns.Detach(c.id, true)
			rt.hub.LeaveRoom(c.id, code)
			c.bind("", "")
			rt.rooms.MaybeCollect(code)
			return
		}
		rt.logger.Info("player joined room",
			"room", code, "player", p.PlayerID, "rejoin", res.Rejoined)
	})
}

func (rt *Router) handleLeave(c *Client) {
	playerID, roomCode := c.binding()
	if roomCode == "" {
		return
	}
	room, ok := rt.rooms.Get(roomCode)
	if !ok {
		c.bind("", "")
		return
	}
	room.Engine.Handle(c.id, playerID, engine.InLeaveRoom, nil)
	room.Conns.Detach(c.id, true)
	rt.hub.LeaveRoom(c.id, roomCode)
	c.bind("", "")
	rt.rooms.MaybeCollect(roomCode)
}

// Disconnected is called when a connection's read pump exits. An abrupt
// drop starts the reconnection grace rather than removing the player.
func (rt *Router) Disconnected(c *Client) {
	playerID, roomCode := c.binding()
	if roomCode == "" {
		return
	}
	room, ok := rt.rooms.Get(roomCode)
	if !ok {
		return
	}
	room.Conns.Detach(c.id, false)
	rt.logger.Debug("connection dropped", "room", roomCode, "player", playerID)
}
