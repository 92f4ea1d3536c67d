// Package registry owns process-wide room bookkeeping: the directory of
// live rooms, room code allocation, and the connection tracker with its
// reconnection grace windows. The engines own game state; the registry
// owns which engines exist and who is attached to them.
package registry

import (
	"errors"
	"math/rand"
	"sync"
	"time"

	"github.com/AshuferMorningstar/Mafia/internal/engine"
	"github.com/AshuferMorningstar/Mafia/internal/platform/logger"
	"github.com/AshuferMorningstar/Mafia/internal/platform/metrics"
)

const (
	codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	codeLength   = 6
	maxCodeTries = 5
)

// ErrNoFreeCode is returned when code allocation keeps colliding.
var ErrNoFreeCode = errors.New("failed to allocate a free room code")

// Room pairs a game engine with its connection tracker.
type Room struct {
	Engine *engine.Engine
	Conns  *Connections
}

// Config carries the shared collaborators handed to every new engine.
type Config struct {
	Clock   engine.Clock
	Emitter engine.Emitter
	Store   engine.MessageStore
	Log     *logger.Logger
	Metrics *metrics.Collector
	Timings engine.Timings
	Grace   time.Duration
	Seed    int64
}

// Rooms is the directory of live rooms.
type Rooms struct {
	mu    sync.Mutex
	rooms map[string]*Room
	rng   *rand.Rand // guarded by mu; seeds per-engine RNGs too
	cfg   Config
}

func NewRooms(cfg Config) *Rooms {
	return &Rooms{
		rooms: make(map[string]*Room),
		rng:   rand.New(rand.NewSource(cfg.Seed)),
		cfg:   cfg,
	}
}

// Create allocates a fresh room code, builds its engine and starts it.
func (rs *Rooms) Create() (*Room, error) {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	var code string
	for i := 0; ; i++ {
		if i == maxCodeTries {
			return nil, ErrNoFreeCode
		}
		code = rs.newCode()
		if _, taken := rs.rooms[code]; !taken {
			break
		}
	}

	var eng *engine.Engine
	conns := NewConnections(rs.cfg.Clock, rs.cfg.Grace, func(playerID string) {
		eng.PlayerTimedOut(playerID)
		rs.MaybeCollect(code)
	})
	eng = engine.New(code, engine.Deps{
		Clock:   rs.cfg.Clock,
		Emitter: rs.cfg.Emitter,
		Conns:   conns,
		Store:   rs.cfg.Store,
		Log:     rs.cfg.Log,
		Metrics: rs.cfg.Metrics,
		RNG:     rand.New(rand.NewSource(rs.rng.Int63())),
		Timings: rs.cfg.Timings,
	})
	eng.Start()

	room := &Room{Engine: eng, Conns: conns}
	rs.rooms[code] = room
	rs.cfg.Metrics.RoomsActive.Inc()
	rs.cfg.Log.Info("room created", "room", code)
	return room, nil
}

func (rs *Rooms) newCode() string {
	b := make([]byte, codeLength)
	for i := range b {
		b[i] = codeAlphabet[rs.rng.Intn(len(codeAlphabet))]
	}
	return string(b)
}

// Get resolves a room by code.
func (rs *Rooms) Get(code string) (*Room, bool) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	room, ok := rs.rooms[code]
	return room, ok
}

// MaybeCollect drops the room when nobody is connected and nobody is
// inside a grace window. Safe to call on any goroutine.
func (rs *Rooms) MaybeCollect(code string) {
	rs.mu.Lock()
	room, ok := rs.rooms[code]
	if !ok || !room.Conns.Empty() {
		rs.mu.Unlock()
		return
	}
	delete(rs.rooms, code)
	rs.mu.Unlock()

	room.Conns.Close()
	room.Engine.Stop()
	rs.cfg.Metrics.RoomsActive.Dec()
	rs.cfg.Log.Info("room collected", "room", code)
}

// Shutdown stops every engine and cancels all grace timers.
func (rs *Rooms) Shutdown() {
	rs.mu.Lock()
	rooms := rs.rooms
	rs.rooms = make(map[string]*Room)
	rs.mu.Unlock()

	for code, room := range rooms {
		room.Conns.Close()
		room.Engine.Stop()
		rs.cfg.Log.Info("room stopped", "room", code)
	}
}
