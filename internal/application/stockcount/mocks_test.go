package stockcount

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/erp/stockcount/internal/domain/shared"
	"github.com/erp/stockcount/internal/domain/stockcount"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

// MockAdjustmentRepository is a mock implementation of stockcount.AdjustmentRepository
type MockAdjustmentRepository struct {
	mock.Mock
}

func (m *MockAdjustmentRepository) FindByID(ctx context.Context, id uuid.UUID) (*stockcount.PendingAdjustment, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*stockcount.PendingAdjustment), args.Error(1)
}

func (m *MockAdjustmentRepository) FindByCount(ctx context.Context, countID uuid.UUID) ([]stockcount.PendingAdjustment, error) {
	args := m.Called(ctx, countID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]stockcount.PendingAdjustment), args.Error(1)
}

func (m *MockAdjustmentRepository) FindByCountAndProduct(ctx context.Context, countID, productID uuid.UUID) ([]stockcount.PendingAdjustment, error) {
	args := m.Called(ctx, countID, productID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]stockcount.PendingAdjustment), args.Error(1)
}

func (m *MockAdjustmentRepository) FindPendingByCount(ctx context.Context, countID uuid.UUID) ([]stockcount.PendingAdjustment, error) {
	args := m.Called(ctx, countID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]stockcount.PendingAdjustment), args.Error(1)
}

func (m *MockAdjustmentRepository) FindOpenForLine(ctx context.Context, countID, productID uuid.UUID) (*stockcount.PendingAdjustment, error) {
	args := m.Called(ctx, countID, productID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*stockcount.PendingAdjustment), args.Error(1)
}

func (m *MockAdjustmentRepository) ExistsRecent(ctx context.Context, countID, productID, userID uuid.UUID, since time.Time, exclude uuid.UUID) (bool, error) {
	args := m.Called(ctx, countID, productID, userID, since, exclude)
	return args.Bool(0), args.Error(1)
}

func (m *MockAdjustmentRepository) HasPending(ctx context.Context, countID, productID uuid.UUID) (bool, error) {
	args := m.Called(ctx, countID, productID)
	return args.Bool(0), args.Error(1)
}

func (m *MockAdjustmentRepository) Create(ctx context.Context, adjustment *stockcount.PendingAdjustment) error {
	args := m.Called(ctx, adjustment)
	return args.Error(0)
}

func (m *MockAdjustmentRepository) SaveWithLock(ctx context.Context, adjustment *stockcount.PendingAdjustment) error {
	args := m.Called(ctx, adjustment)
	return args.Error(0)
}

func (m *MockAdjustmentRepository) DeletePending(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// MockCountRepository is a mock implementation of stockcount.CountRepository
type MockCountRepository struct {
	mock.Mock
}

func (m *MockCountRepository) FindByID(ctx context.Context, id uuid.UUID) (*stockcount.Count, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*stockcount.Count), args.Error(1)
}

func (m *MockCountRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*stockcount.Count, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*stockcount.Count), args.Error(1)
}

func (m *MockCountRepository) FindByState(ctx context.Context, state stockcount.CountState) ([]stockcount.Count, error) {
	args := m.Called(ctx, state)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]stockcount.Count), args.Error(1)
}

func (m *MockCountRepository) Create(ctx context.Context, count *stockcount.Count) error {
	args := m.Called(ctx, count)
	return args.Error(0)
}

func (m *MockCountRepository) SaveWithLock(ctx context.Context, count *stockcount.Count) error {
	args := m.Called(ctx, count)
	return args.Error(0)
}

// MockEventPublisher records published events
type MockEventPublisher struct {
	mu     sync.Mutex
	events []shared.DomainEvent
	err    error
}

func (m *MockEventPublisher) Publish(_ context.Context, events ...shared.DomainEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, events...)
	return m.err
}

func (m *MockEventPublisher) GetPublishedEvents() []shared.DomainEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]shared.DomainEvent(nil), m.events...)
}

func (m *MockEventPublisher) GetEventsByType(eventType string) []shared.DomainEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []shared.DomainEvent
	for _, e := range m.events {
		if e.EventType() == eventType {
			out = append(out, e)
		}
	}
	return out
}

// fakeLocker records the keys it hands out
type fakeLocker struct {
	mu         sync.Mutex
	acquired   []string
	released   []string
	acquireErr error
	releaseErr error
}

func (l *fakeLocker) Acquire(_ context.Context, key string) (ReleaseFunc, error) {
	if l.acquireErr != nil {
		return nil, l.acquireErr
	}
	l.mu.Lock()
	l.acquired = append(l.acquired, key)
	l.mu.Unlock()
	return func(context.Context) error {
		l.mu.Lock()
		defer l.mu.Unlock()
		l.released = append(l.released, key)
		return l.releaseErr
	}, nil
}

var errBoom = errors.New("boom")
