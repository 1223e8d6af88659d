package locks

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	lockKeyPrefix = "lock:entity:"
	acquirePoll   = 50 * time.Millisecond
)

// releaseScript deletes the lock only if this holder's token still owns it,
// so an expired lock reacquired by another handler is never released here.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

// RedisCoordinator implements Coordinator with Redis SET NX PX locks, giving
// cross-instance exclusion when multiple handler processes run.
type RedisCoordinator struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewRedisCoordinator creates a Redis-backed lock coordinator. ttl bounds how
// long a crashed holder can block an entity.
func NewRedisCoordinator(client *redis.Client, ttl time.Duration, logger *zap.Logger) *RedisCoordinator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	return &RedisCoordinator{client: client, ttl: ttl, logger: logger}
}

// WithLock acquires the entity lock (polling until ctx is done), runs fn, and
// releases via deferred token-checked delete.
func (c *RedisCoordinator) WithLock(ctx context.Context, entityID string, fn func(ctx context.Context) error) error {
	key := lockKeyPrefix + entityID
	token := uuid.New().String()

	for {
		ok, err := c.client.SetNX(ctx, key, token, c.ttl).Result()
		if err != nil {
			return err
		}
		if ok {
			break
		}
		select {
		case <-ctx.Done():
			c.logger.Warn("entity lock timeout", zap.String("entity_id", entityID))
			return ErrLockTimeout
		case <-time.After(acquirePoll):
		}
	}

	defer func() {
		// Release must not inherit a canceled request context.
		releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := releaseScript.Run(releaseCtx, c.client, []string{key}, token).Err(); err != nil && err != redis.Nil {
			c.logger.Warn("entity lock release failed", zap.String("entity_id", entityID), zap.Error(err))
		}
	}()

	return fn(ctx)
}

var _ Coordinator = (*RedisCoordinator)(nil)
