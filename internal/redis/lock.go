package redis

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Lock is a single-flight lease on a redis key. The value identifies the
// holder; Unlock only deletes the key while that holder still owns it, so a
// lease that expired and was re-acquired elsewhere is never released by the
// original owner.
type Lock struct {
	client *redis.Client
	key    string
	value  string
	ttl    time.Duration
}

func NewLock(client *redis.Client, key string, ttl time.Duration) *Lock {
	return &Lock{
		client: client,
		key:    key,
		value:  uuid.NewString(),
		ttl:    ttl,
	}
}

// TryLock acquires the lease if it is free. A nil client always acquires.
func (l *Lock) TryLock(ctx context.Context) (bool, error) {
	if l.client == nil {
		return true, nil
	}
	return l.client.SetNX(ctx, l.key, l.value, l.ttl).Result()
}

var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
else
	return 0
end`)

func (l *Lock) Unlock(ctx context.Context) error {
	if l.client == nil {
		return nil
	}
	return unlockScript.Run(ctx, l.client, []string{l.key}, l.value).Err()
}
