package relay

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const inboxPrefix = "haven:inbox:"
const inboxTTL = 7 * 24 * time.Hour

// Inbox queues opaque frames for identity keys that are offline at
// delivery time, using a Redis ZSET ordered by arrival so a
// reconnecting client drains them oldest-first. Adapted from the
// parent backend's per-user ZSET inbox, generalized to frame-shaped
// payloads instead of a typed message model: haven's relay never
// knows enough about a payload to store anything richer than bytes.
type Inbox struct {
	client *redis.Client
	ctx    context.Context
}

// NewInbox builds an Inbox over an existing Redis client.
func NewInbox(client *redis.Client) *Inbox {
	return &Inbox{client: client, ctx: context.Background()}
}

// Enqueue stores a frame for later pickup and refreshes the
// recipient's inbox TTL.
func (ib *Inbox) Enqueue(f Frame) error {
	key := inboxPrefix + f.To
	encoded := encodeCrossServer(f)

	if err := ib.client.ZAdd(ib.ctx, key, redis.Z{
		Score:  float64(time.Now().UnixNano()),
		Member: encoded,
	}).Err(); err != nil {
		return err
	}
	return ib.client.Expire(ib.ctx, key, inboxTTL).Err()
}

// Drain returns every queued frame for an identity key, oldest first,
// and clears the inbox. Callers deliver the returned frames before
// acknowledging the drain; a crash between the two loses at-most the
// frames already fetched, which is the same loss window the parent
// inbox accepts.
func (ib *Inbox) Drain(identityKeyB64 string) ([]Frame, error) {
	key := inboxPrefix + identityKeyB64

	results, err := ib.client.ZRangeByScore(ib.ctx, key, &redis.ZRangeBy{Min: "-inf", Max: "+inf"}).Result()
	if err != nil {
		return nil, err
	}

	frames := make([]Frame, 0, len(results))
	for _, raw := range results {
		frame, err := decodeCrossServer([]byte(raw))
		if err != nil {
			continue
		}
		frames = append(frames, frame)
	}

	if err := ib.client.Del(ib.ctx, key).Err(); err != nil {
		return frames, err
	}
	return frames, nil
}

// PendingCount reports how many frames are queued for an identity key.
func (ib *Inbox) PendingCount(identityKeyB64 string) (int64, error) {
	return ib.client.ZCard(ib.ctx, inboxPrefix+identityKeyB64).Result()
}
