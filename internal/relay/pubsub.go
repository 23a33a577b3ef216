package relay

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

// channelPrefix namespaces relay frame channels from whatever else a
// shared Redis instance is used for.
const channelPrefix = "haven:relay:"

// RedisBroadcaster fans opaque frames out to every other havenserver
// instance over Redis pub/sub, keyed by recipient identity key rather
// than by user ID, and carrying pre-framed bytes instead of a
// JSON-encoded message model: the relay has nothing to marshal, only
// bytes to forward.
type RedisBroadcaster struct {
	client   *redis.Client
	ctx      context.Context
	serverID string
	hub      *Hub
}

// NewRedisBroadcaster wires a Hub to Redis for cross-server delivery.
// Call Subscribe in its own goroutine once the Hub is running.
func NewRedisBroadcaster(client *redis.Client, serverID string, hub *Hub) *RedisBroadcaster {
	return &RedisBroadcaster{client: client, ctx: context.Background(), serverID: serverID, hub: hub}
}

// Publish forwards a frame to the recipient's channel. Every
// havenserver instance subscribes to every recipient channel through
// a single pattern subscription (Subscribe), so there is no routing
// table to look up the recipient's actual server.
func (b *RedisBroadcaster) Publish(f Frame) error {
	channel := channelPrefix + f.To
	data := encodeCrossServer(f)

	const maxRetries = 3
	var lastErr error
	for attempt := 1; attempt <= maxRetries; attempt++ {
		if err := b.client.Publish(b.ctx, channel, data).Err(); err == nil {
			return nil
		} else {
			lastErr = err
			log.Printf("relay: publish attempt %d/%d to %s failed: %v", attempt, maxRetries, f.To, err)
			time.Sleep(time.Duration(attempt*100) * time.Millisecond)
		}
	}
	return fmt.Errorf("publish frame to %s after %d attempts: %w", f.To, maxRetries, lastErr)
}

// Subscribe pattern-subscribes to every relay channel and delivers
// frames addressed to identity keys connected to this instance's Hub.
// It blocks until the subscription's channel is closed; callers run
// it in its own goroutine for the lifetime of the server.
func (b *RedisBroadcaster) Subscribe() {
	sub := b.client.PSubscribe(b.ctx, channelPrefix+"*")
	defer func() {
		if err := sub.Close(); err != nil {
			log.Printf("relay: error closing redis subscription: %v", err)
		}
	}()

	ch := sub.Channel()
	for msg := range ch {
		frame, err := decodeCrossServer([]byte(msg.Payload))
		if err != nil {
			log.Printf("relay: dropping malformed cross-server frame: %v", err)
			continue
		}
		b.hub.DeliverFromBroadcaster(frame)
	}
}
