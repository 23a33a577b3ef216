// Package relay carries opaque ciphertext between group members: sealed
// SKDM envelopes (internal/senderkey.EncryptSKDM output) and wire-framed
// messages (internal/senderkey.Encrypt output). It never parses,
// decrypts, or logs the bytes it moves — adapted from the parent
// backend's internal/websocket hub/client pair, stripped of every
// content-aware feature (message typing, offline inbox, HMAC envelope
// signing) that would require looking inside the payload.
package relay

import (
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxFrameSize   = 2 * 1024 * 1024 // generous enough for an archive-sized attachment chunk
	sendBufferSize = 64
)

// Client is one relay connection, addressed by the connecting peer's
// base64 Ed25519 identity public key, not a user account.
type Client struct {
	hub *Hub

	conn           *websocket.Conn
	IdentityKeyB64 string

	send chan []byte

	tokens     int
	lastRefill time.Time
	tokenMu    sync.Mutex
}

// NewClient wraps an upgraded WebSocket connection for a given identity key.
func NewClient(hub *Hub, conn *websocket.Conn, identityKeyB64 string) *Client {
	return &Client{
		hub:            hub,
		conn:           conn,
		IdentityKeyB64: identityKeyB64,
		send:           make(chan []byte, sendBufferSize),
		tokens:         100,
		lastRefill:     time.Now(),
	}
}

// allow applies a 50 frames/sec token-bucket limit per connection, on
// top of internal/middleware's HTTP-level limiter.
func (c *Client) allow() bool {
	c.tokenMu.Lock()
	defer c.tokenMu.Unlock()

	now := time.Now()
	elapsed := now.Sub(c.lastRefill)
	if add := int(elapsed.Seconds() * 50); add > 0 {
		c.tokens += add
		if c.tokens > 100 {
			c.tokens = 100
		}
		c.lastRefill = now
	}
	if c.tokens <= 0 {
		return false
	}
	c.tokens--
	return true
}

// ReadPump reads opaque binary frames from the connection and hands
// them to the hub for routing. It never inspects frame contents beyond
// the routing header internal/relay itself defines (see frame.go).
func (c *Client) ReadPump() {
	defer func() {
		c.hub.unregister <- c
		if err := c.conn.Close(); err != nil {
			log.Printf("relay: close error for %s: %v", c.IdentityKeyB64, err)
		}
	}()

	c.conn.SetReadLimit(maxFrameSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		msgType, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("relay: read error for %s: %v", c.IdentityKeyB64, err)
			}
			return
		}
		if msgType != websocket.BinaryMessage {
			continue
		}
		if !c.allow() {
			continue
		}

		frame, err := parseFrame(raw)
		if err != nil {
			log.Printf("relay: dropping malformed frame from %s: %v", c.IdentityKeyB64, err)
			continue
		}
		frame.From = c.IdentityKeyB64
		c.hub.route(frame)
	}
}

// WritePump drains the outbound channel to the connection and keeps it
// alive with periodic pings.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.BinaryMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
