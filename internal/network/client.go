package network

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second
	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second
	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10
	// Maximum message size allowed from peer.
	maxMessageSize = 4096
)

// Client represents an active WebSocket connection.
type Client struct {
	id      string
	hub     *Hub
	router  *Router
	conn    *websocket.Conn
	send    chan []byte
	limiter *rate.Limiter

	// Set once join_room succeeds, cleared on leave. Guarded by mu
	// because the grace path reads it off the read pump goroutine.
	mu       sync.Mutex
	playerID string
	roomCode string
}

// NewClient wraps an upgraded connection. events/sec and burst bound how
// fast a single connection may push events at the engine.
func NewClient(hub *Hub, router *Router, conn *websocket.Conn, eventsPerSec float64, burst int) *Client {
	return &Client{
		id:      uuid.NewString(),
		hub:     hub,
		router:  router,
		conn:    conn,
		send:    make(chan []byte, 256),
		limiter: rate.NewLimiter(rate.Limit(eventsPerSec), burst),
	}
}

func (c *Client) bind(playerID, roomCode string) {
	c.mu.Lock()
	c.playerID, c.roomCode = playerID, roomCode
	c.mu.Unlock()
}

func (c *Client) binding() (playerID, roomCode string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.playerID, c.roomCode
}

// ReadPump pumps events from the websocket connection into the router.
func (c *Client) ReadPump() {
	defer func() {
		c.router.Disconnected(c)
		c.hub.Remove(c.id)
		c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Warn("unexpected websocket close", "conn", c.id, "err", err)
			}
			break
		}

		if !c.limiter.Allow() {
			c.hub.logger.Debug("rate limit exceeded, event discarded", "conn", c.id)
			continue
		}

		var env Envelope
		if err := json.Unmarshal(message, &env); err != nil {
			c.hub.logger.Debug("malformed event envelope", "conn", c.id, "err", err)
			continue
		}
		c.router.Dispatch(c, env)
	}
}

// WritePump pumps frames from the hub to the websocket connection.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
