package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	appcount "github.com/erp/stockcount/internal/application/stockcount"
	"github.com/erp/stockcount/internal/infrastructure/config"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const keyPrefix = "lock:"

// NewRedisClient connects to Redis and pings it
func NewRedisClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}

// RedisCountLocker holds count and line keys in Redis with a TTL, so a crashed
// holder cannot block a count forever.
type RedisCountLocker struct {
	client *redislock.Client
	ttl    time.Duration
	retry  redislock.RetryStrategy
	logger *zap.Logger
}

// NewRedisCountLocker builds a locker that retries every cfg.RetryInterval up to
// cfg.RetryAttempts times before giving up.
func NewRedisCountLocker(client redislock.RedisClient, cfg config.LockConfig, logger *zap.Logger) *RedisCountLocker {
	retry := redislock.NoRetry()
	if cfg.RetryAttempts > 0 {
		retry = redislock.LimitRetry(redislock.LinearBackoff(cfg.RetryInterval), cfg.RetryAttempts)
	}
	return &RedisCountLocker{
		client: redislock.New(client),
		ttl:    cfg.TTL,
		retry:  retry,
		logger: logger,
	}
}

// Acquire obtains key or fails with a state conflict once the retries run out
func (l *RedisCountLocker) Acquire(ctx context.Context, key string) (appcount.ReleaseFunc, error) {
	lk, err := l.client.Obtain(ctx, keyPrefix+key, l.ttl, &redislock.Options{RetryStrategy: l.retry})
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, lockBusy(key, err)
	}
	if err != nil {
		return nil, fmt.Errorf("obtain lock %s: %w", key, err)
	}

	l.logger.Debug("Count lock obtained", zap.String("key", key), zap.Duration("ttl", l.ttl))
	return func(ctx context.Context) error {
		err := lk.Release(ctx)
		if errors.Is(err, redislock.ErrLockNotHeld) {
			return fmt.Errorf("lock %s expired before release: %w", key, err)
		}
		return err
	}, nil
}

var _ appcount.CountLocker = (*RedisCountLocker)(nil)
