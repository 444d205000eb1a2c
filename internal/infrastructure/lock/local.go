// Package lock provides the CountLocker backends: an in-process keyed mutex and
// a Redis lock shared by every countctl process.
package lock

import (
	"context"
	"sync"

	appcount "github.com/erp/stockcount/internal/application/stockcount"
	"github.com/erp/stockcount/internal/domain/shared"
)

// slot is one key's binary semaphore. refs counts holders and waiters so the
// slot can be dropped once nobody needs it.
type slot struct {
	ch   chan struct{}
	refs int
}

// LocalCountLocker serializes callers within this process only.
type LocalCountLocker struct {
	mu    sync.Mutex
	slots map[string]*slot
}

// NewLocalCountLocker creates an empty LocalCountLocker
func NewLocalCountLocker() *LocalCountLocker {
	return &LocalCountLocker{slots: make(map[string]*slot)}
}

// Acquire blocks until key is free or ctx is done
func (l *LocalCountLocker) Acquire(ctx context.Context, key string) (appcount.ReleaseFunc, error) {
	s := l.ref(key)
	select {
	case s.ch <- struct{}{}:
	case <-ctx.Done():
		l.unref(key, s)
		return nil, lockBusy(key, ctx.Err())
	}

	var once sync.Once
	return func(context.Context) error {
		once.Do(func() {
			<-s.ch
			l.unref(key, s)
		})
		return nil
	}, nil
}

// Held reports how many keys currently have a holder or waiter
func (l *LocalCountLocker) Held() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.slots)
}

func (l *LocalCountLocker) ref(key string) *slot {
	l.mu.Lock()
	defer l.mu.Unlock()
	s, ok := l.slots[key]
	if !ok {
		s = &slot{ch: make(chan struct{}, 1)}
		l.slots[key] = s
	}
	s.refs++
	return s
}

func (l *LocalCountLocker) unref(key string, s *slot) {
	l.mu.Lock()
	defer l.mu.Unlock()
	s.refs--
	if s.refs == 0 {
		delete(l.slots, key)
	}
}

// lockBusy is the state conflict returned when a key cannot be obtained in time
func lockBusy(key string, cause error) error {
	return &shared.DomainError{
		Code:    shared.CodeConcurrencyConflict,
		Message: "count is locked by another operation (" + key + ")",
		Kind:    shared.KindStateConflict,
		Cause:   cause,
	}
}

var _ appcount.CountLocker = (*LocalCountLocker)(nil)
