package registry

import (
	"sync"
	"time"

	"github.com/AshuferMorningstar/Mafia/internal/engine"
)

// Connections tracks the live connections of one room's players and owns
// the reconnection grace timers. A player whose last connection drops is
// not removed immediately: a grace timer starts, and a reattach within
// the window cancels it silently. The attach path cancels under the same
// lock the timer fire takes, so a reconnect and an expiry cannot race.
type Connections struct {
	mu    sync.Mutex
	clock engine.Clock
	grace time.Duration

	byConn   map[string]string       // connID -> playerID
	byPlayer map[string][]string     // playerID -> connIDs
	pending  map[string]engine.Timer // playerID -> grace timer

	// onTimeout fires off-lock when a grace window expires.
	onTimeout func(playerID string)
}

// NewConnections creates an empty tracker. onTimeout is invoked for each
// player whose grace expires; it must not call back into the tracker
// synchronously from the same goroutine holding its lock (it never does:
// timers fire on their own goroutine).
func NewConnections(clock engine.Clock, grace time.Duration, onTimeout func(playerID string)) *Connections {
	return &Connections{
		clock:     clock,
		grace:     grace,
		byConn:    make(map[string]string),
		byPlayer:  make(map[string][]string),
		pending:   make(map[string]engine.Timer),
		onTimeout: onTimeout,
	}
}

// Attach binds a connection to a player, cancelling any pending removal.
// Returns true when this reattach landed inside a grace window.
func (c *Connections) Attach(connID, playerID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	inGrace := false
	if t, ok := c.pending[playerID]; ok {
		t.Stop()
		delete(c.pending, playerID)
		inGrace = true
	}
	c.byConn[connID] = playerID
	c.byPlayer[playerID] = append(c.byPlayer[playerID], connID)
	return inGrace
}

// Detach unbinds a connection. When the player's last connection is gone,
// a deliberate detach (explicit leave) reports the player immediately
// gone via the return value; an abrupt one starts the grace timer.
// Returns the player ID and whether the player has fully departed now.
func (c *Connections) Detach(connID string, deliberate bool) (playerID string, gone bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	playerID, ok := c.byConn[connID]
	if !ok {
		return "", false
	}
	delete(c.byConn, connID)

	rest := c.byPlayer[playerID][:0]
	for _, id := range c.byPlayer[playerID] {
		if id != connID {
			rest = append(rest, id)
		}
	}
	if len(rest) > 0 {
		c.byPlayer[playerID] = rest
		return playerID, false
	}
	delete(c.byPlayer, playerID)

	if deliberate {
		return playerID, true
	}

	pid := playerID
	c.pending[pid] = c.clock.AfterFunc(c.grace, func() {
		c.mu.Lock()
		_, still := c.pending[pid]
		delete(c.pending, pid)
		c.mu.Unlock()
		if still {
			c.onTimeout(pid)
		}
	})
	return playerID, false
}

// ConnectionsOf returns a copy of the player's live connection IDs.
func (c *Connections) ConnectionsOf(playerID string) []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	conns := c.byPlayer[playerID]
	out := make([]string, len(conns))
	copy(out, conns)
	return out
}

// PlayerOf resolves the player bound to a connection.
func (c *Connections) PlayerOf(connID string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	playerID, ok := c.byConn[connID]
	return playerID, ok
}

// Empty reports whether the room has no connections and no players
// waiting out a grace window.
func (c *Connections) Empty() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.byConn) == 0 && len(c.pending) == 0
}

// Close cancels every pending grace timer without firing it.
func (c *Connections) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for pid, t := range c.pending {
		t.Stop()
		delete(c.pending, pid)
	}
}
