package stockcount

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ReleaseFunc gives back a lock obtained from a CountLocker
type ReleaseFunc func(ctx context.Context) error

// CountLocker serializes writers on the same key across requests and, with a
// shared backend, across processes.
type CountLocker interface {
	// Acquire blocks until the key is held or ctx is done
	Acquire(ctx context.Context, key string) (ReleaseFunc, error)
}

// CountLockKey is held by merge and commit for the whole count
func CountLockKey(countID uuid.UUID) string {
	return fmt.Sprintf("stockcount:%s", countID)
}

// LineLockKey is held while creating or amending an adjustment for one line
func LineLockKey(countID, productID uuid.UUID) string {
	return fmt.Sprintf("stockcount:%s:%s", countID, productID)
}

// withLock runs fn while holding key. A nil locker runs fn unguarded.
// A failed release is only logged: the outcome of fn is already final and the
// lock expires on its own.
func withLock(ctx context.Context, locker CountLocker, logger *zap.Logger, key string, fn func() error) error {
	if locker == nil {
		return fn()
	}
	release, err := locker.Acquire(ctx, key)
	if err != nil {
		return err
	}
	defer func() {
		if rerr := release(context.WithoutCancel(ctx)); rerr != nil {
			logger.Warn("Failed to release count lock", zap.String("key", key), zap.Error(rerr))
		}
	}()
	return fn()
}
