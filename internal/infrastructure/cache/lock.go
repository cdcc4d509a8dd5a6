package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v9"
	"github.com/redis/go-redis/v9"

	"chatlima-server/internal/domain/cleanup"
	"chatlima-server/internal/infrastructure/logger"
)

// RedisLocker hands out redsync mutexes for jobs that must not overlap across instances.
type RedisLocker struct {
	rs *redsync.Redsync
}

var _ cleanup.Locker = (*RedisLocker)(nil)

func NewRedisLocker(client redis.UniversalClient) cleanup.Locker {
	return &RedisLocker{rs: redsync.New(goredis.NewPool(client))}
}

// TryLock makes a single acquisition attempt. A lock held elsewhere yields cleanup.ErrLockHeld.
func (l *RedisLocker) TryLock(ctx context.Context, name string, ttl time.Duration) (func(), error) {
	mutex := l.rs.NewMutex(name, redsync.WithExpiry(ttl))
	if err := mutex.TryLockContext(ctx); err != nil {
		var taken *redsync.ErrTaken
		if errors.Is(err, redsync.ErrFailed) || errors.As(err, &taken) {
			return nil, cleanup.ErrLockHeld
		}
		return nil, fmt.Errorf("acquire %s: %w", name, err)
	}

	return func() {
		if _, err := mutex.Unlock(); err != nil {
			log := logger.GetLogger()
			log.Error().Err(err).Str("lock", name).Msg("Failed to unlock mutex")
		}
	}, nil
}
