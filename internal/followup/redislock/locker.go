// Package redislock implements the dispatch lock on Redis.
package redislock

import (
	"context"
	"fmt"
	"time"

	"lead-intake-workers/internal/followup"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "followup:dispatch:"

// release deletes the key only while it still holds our token.
var release = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Locker takes per-job locks with SET NX PX. A crashed holder's lock expires after ttl.
type Locker struct {
	client redis.Cmdable
	ttl    time.Duration
}

func New(client redis.Cmdable, ttl time.Duration) *Locker {
	return &Locker{client: client, ttl: ttl}
}

func (l *Locker) TryLock(ctx context.Context, key string) (followup.Unlocker, error) {
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, keyPrefix+key, token, l.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire dispatch lock: %w", err)
	}
	if !ok {
		return nil, followup.ErrLockHeld
	}
	return &lock{client: l.client, key: keyPrefix + key, token: token}, nil
}

type lock struct {
	client redis.Cmdable
	key    string
	token  string
}

func (k *lock) Unlock(ctx context.Context) error {
	if err := release.Run(ctx, k.client, []string{k.key}, k.token).Err(); err != nil && err != redis.Nil {
		return fmt.Errorf("release dispatch lock: %w", err)
	}
	return nil
}
