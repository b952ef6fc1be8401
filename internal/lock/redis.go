package lock

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

const keyPrefix = "tutorpipe:lock:"

// releaseScript deletes the key only if it still holds our token, so an
// expired lock re-taken by someone else is left alone.
var releaseScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

// RedisLocker holds locks in Redis so they are shared by every server
// instance. Locks expire after ttl if the holder never releases them.
type RedisLocker struct {
	rdb    goredis.UniversalClient
	ttl    time.Duration
	logger *slog.Logger
}

// NewRedisLocker connects to addr and verifies the connection.
func NewRedisLocker(ctx context.Context, addr string, ttl time.Duration, logger *slog.Logger) (*RedisLocker, error) {
	if addr == "" {
		return nil, fmt.Errorf("missing redis address")
	}
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return NewRedisLockerWithClient(rdb, ttl, logger), nil
}

// NewRedisLockerWithClient wraps an existing client.
func NewRedisLockerWithClient(rdb goredis.UniversalClient, ttl time.Duration, logger *slog.Logger) *RedisLocker {
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisLocker{rdb: rdb, ttl: ttl, logger: logger}
}

// TryAcquire implements Locker.
func (l *RedisLocker) TryAcquire(ctx context.Context, key string) (func(), error) {
	token := uuid.NewString()
	ok, err := l.rdb.SetNX(ctx, keyPrefix+key, token, l.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire lock %s: %w", key, err)
	}
	if !ok {
		return nil, ErrHeld
	}

	return func() {
		// The request context may already be canceled.
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := releaseScript.Run(releaseCtx, l.rdb, []string{keyPrefix + key}, token).Err(); err != nil {
			l.logger.Warn("Failed to release lock", "key", key, "error", err)
		}
	}, nil
}

// Close closes the underlying client.
func (l *RedisLocker) Close() error {
	return l.rdb.Close()
}
