package lock

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

// releaseScript deletes the lock only when it still carries our token.
var releaseScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// ErrNotAcquired is returned when a Redis lock could not be taken before the wait timeout.
var ErrNotAcquired = errors.New("lock not acquired")

// RedisConfig configures a Redis locker.
type RedisConfig struct {
	Prefix      string
	TTL         time.Duration
	RetryDelay  time.Duration
	WaitTimeout time.Duration
}

// Redis is a Locker shared by every process connected to the same Redis server.
type Redis struct {
	client goredis.UniversalClient
	config RedisConfig
}

// NewRedis creates a Redis locker. Zero config values fall back to defaults.
func NewRedis(client goredis.UniversalClient, config RedisConfig) *Redis {
	if config.Prefix == "" {
		config.Prefix = "reviewer:lock:"
	}
	if config.TTL <= 0 {
		config.TTL = 10 * time.Second
	}
	if config.RetryDelay <= 0 {
		config.RetryDelay = 25 * time.Millisecond
	}
	if config.WaitTimeout <= 0 {
		config.WaitTimeout = 5 * time.Second
	}
	return &Redis{client: client, config: config}
}

func (r *Redis) Lock(ctx context.Context, key string) (func(), error) {
	token := uuid.NewString()
	redisKey := r.config.Prefix + key

	ctx, cancel := context.WithTimeout(ctx, r.config.WaitTimeout)
	defer cancel()

	ticker := time.NewTicker(r.config.RetryDelay)
	defer ticker.Stop()
	for {
		ok, err := r.client.SetNX(ctx, redisKey, token, r.config.TTL).Result()
		if err != nil {
			return nil, fmt.Errorf("redis.SetNX(%s) > %w", redisKey, err)
		}
		if ok {
			break
		}
		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return nil, fmt.Errorf("%s: %w", redisKey, ErrNotAcquired)
			}
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}

	return func() {
		releaseCtx, cancel := context.WithTimeout(context.Background(), r.config.TTL)
		defer cancel()
		if err := releaseScript.Run(releaseCtx, r.client, []string{redisKey}, token).Err(); err != nil {
			slog.Default().Warn("failed to release redis lock", "key", redisKey, "error", err)
		}
	}, nil
}
