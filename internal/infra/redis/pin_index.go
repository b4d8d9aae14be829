package redis

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the pin key only while it still names the session.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// PinIndex reserves session pins in Redis so that every instance sharing
// the server sees the same set of live pins:
//
//	SET quiz:pin:{pin} {sessionID} NX EX ttl
type PinIndex struct {
	client *redis.Client
	ttl    time.Duration
}

// NewPinIndex keeps reservations for ttl; zero keeps them until released.
func NewPinIndex(client *redis.Client, ttl time.Duration) *PinIndex {
	return &PinIndex{client: client, ttl: ttl}
}

func (p *PinIndex) Reserve(ctx context.Context, pin, sessionID string) (bool, error) {
	return p.client.SetNX(ctx, p.key(pin), sessionID, p.ttl).Result()
}

func (p *PinIndex) Lookup(ctx context.Context, pin string) (string, bool, error) {
	id, err := p.client.Get(ctx, p.key(pin)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return id, true, nil
}

func (p *PinIndex) Release(ctx context.Context, pin, sessionID string) error {
	return releaseScript.Run(ctx, p.client, []string{p.key(pin)}, sessionID).Err()
}

func (p *PinIndex) key(pin string) string {
	return "quiz:pin:" + pin
}
