package lifecycle

import (
	"auction-engine/utils"
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Lease grants one sweeper at a time across instances
type Lease interface {
	// Acquire returns ok=false when another holder owns the lease. release must be called when ok.
	Acquire(ctx context.Context) (release func(), ok bool, err error)
}

// releaseScript deletes the key only while it still holds our token
var releaseScript = redis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
	return redis.call('DEL', KEYS[1])
end
return 0
`)

// RedisLease is a SET NX PX lease with token-checked release
type RedisLease struct {
	rdb *redis.Client
	key string
	ttl time.Duration
}

// NewRedisLease creates a lease on key that expires after ttl if its holder dies
func NewRedisLease(rdb *redis.Client, key string, ttl time.Duration) *RedisLease {
	return &RedisLease{rdb: rdb, key: key, ttl: ttl}
}

func (l *RedisLease) Acquire(ctx context.Context) (func(), bool, error) {
	token := utils.GenerateID()
	ok, err := l.rdb.SetNX(ctx, l.key, token, l.ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("lifecycle: acquire lease %s: %w", l.key, err)
	}
	if !ok {
		return nil, false, nil
	}
	release := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := releaseScript.Run(ctx, l.rdb, []string{l.key}, token).Err(); err != nil {
			utils.Warn("lifecycle: release lease failed", map[string]any{"key": l.key, "error": err.Error()})
		}
	}
	return release, true, nil
}
