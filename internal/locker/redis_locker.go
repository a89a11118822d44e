package locker

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/wolfman30/clinic-booking-engine/pkg/logging"
)

// compare-and-delete so a holder whose TTL lapsed cannot free a newer owner's lock
var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

var refreshScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// RedisLocker implements Locker with SET NX PX so every API instance shares
// the same per-doctor critical section.
type RedisLocker struct {
	client *redis.Client
	prefix string
	logger *logging.Logger
}

func NewRedisLocker(client *redis.Client, logger *logging.Logger) *RedisLocker {
	if client == nil {
		panic("locker: redis client cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &RedisLocker{client: client, prefix: "lock:", logger: logger}
}

func (l *RedisLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (bool, string, error) {
	token := uuid.NewString()
	acquired, err := l.client.SetNX(ctx, l.prefix+key, token, ttl).Result()
	if err != nil {
		l.logger.Error("redis lock attempt failed", "key", key, "error", err)
		return false, "", fmt.Errorf("locker: setnx: %w", err)
	}
	if !acquired {
		return false, "", nil
	}
	l.logger.Debug("redis lock acquired", "key", key, "ttl_ms", ttl.Milliseconds())
	return true, token, nil
}

func (l *RedisLocker) Unlock(ctx context.Context, key, token string) error {
	released, err := unlockScript.Run(ctx, l.client, []string{l.prefix + key}, token).Int()
	if err != nil {
		l.logger.Error("redis unlock failed", "key", key, "error", err)
		return fmt.Errorf("locker: unlock: %w", err)
	}
	if released == 0 {
		l.logger.Warn("redis lock already released or owned by another holder", "key", key)
	}
	return nil
}

// Refresh extends the TTL of a lock the caller still owns.
func (l *RedisLocker) Refresh(ctx context.Context, key, token string, ttl time.Duration) error {
	ok, err := refreshScript.Run(ctx, l.client, []string{l.prefix + key}, token, ttl.Milliseconds()).Int()
	if err != nil {
		return fmt.Errorf("locker: refresh: %w", err)
	}
	if ok == 0 {
		return fmt.Errorf("locker: lock %s no longer owned", key)
	}
	return nil
}
