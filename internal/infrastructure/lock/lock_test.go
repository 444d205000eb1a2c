package lock

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/erp/stockcount/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalCountLocker_Serializes(t *testing.T) {
	l := NewLocalCountLocker()
	ctx := context.Background()

	var (
		mu      sync.Mutex
		inside  int
		maxSeen int
		wg      sync.WaitGroup
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := l.Acquire(ctx, "stockcount:a")
			if !assert.NoError(t, err) {
				return
			}

			mu.Lock()
			inside++
			if inside > maxSeen {
				maxSeen = inside
			}
			mu.Unlock()

			time.Sleep(time.Millisecond)

			mu.Lock()
			inside--
			mu.Unlock()
			assert.NoError(t, release(ctx))
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, maxSeen)
	assert.Equal(t, 0, l.Held())
}

func TestLocalCountLocker_IndependentKeys(t *testing.T) {
	l := NewLocalCountLocker()
	ctx := context.Background()

	releaseA, err := l.Acquire(ctx, "stockcount:a")
	require.NoError(t, err)

	short, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	releaseB, err := l.Acquire(short, "stockcount:b")
	require.NoError(t, err)

	assert.Equal(t, 2, l.Held())
	require.NoError(t, releaseA(ctx))
	require.NoError(t, releaseB(ctx))
	assert.Equal(t, 0, l.Held())
}

func TestLocalCountLocker_ContextDone(t *testing.T) {
	l := NewLocalCountLocker()
	ctx := context.Background()

	release, err := l.Acquire(ctx, "stockcount:a")
	require.NoError(t, err)

	short, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	_, err = l.Acquire(short, "stockcount:a")

	require.Error(t, err)
	assert.True(t, shared.IsStateConflict(err))
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	require.NoError(t, release(ctx))
	assert.Equal(t, 0, l.Held())
}

func TestLocalCountLocker_ReleaseTwice(t *testing.T) {
	l := NewLocalCountLocker()
	ctx := context.Background()

	release, err := l.Acquire(ctx, "k")
	require.NoError(t, err)
	require.NoError(t, release(ctx))
	require.NoError(t, release(ctx))

	again, err := l.Acquire(ctx, "k")
	require.NoError(t, err)
	require.NoError(t, again(ctx))
}
