package stockcount

import (
	"testing"
	"time"

	"github.com/erp/stockcount/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestCount(t *testing.T) *Count {
	t.Helper()
	c, err := NewCount("Aisle 4 cycle count", CountTypeCycle, time.Now(), time.Now().Add(4*time.Hour), uuid.New())
	require.NoError(t, err)
	return c
}

func createStartedCount(t *testing.T) *Count {
	t.Helper()
	c := createTestCount(t)
	require.NoError(t, c.AssignCounters([]uuid.UUID{uuid.New()}))
	require.NoError(t, c.Start())
	return c
}

func TestNewCount(t *testing.T) {
	creator := uuid.New()
	start := time.Now()

	t.Run("creates scheduled count", func(t *testing.T) {
		c, err := NewCount("  Year end  ", CountTypeFull, start, start.Add(time.Hour), creator)

		require.NoError(t, err)
		assert.NotEqual(t, uuid.Nil, c.ID)
		assert.Equal(t, "Year end", c.Title)
		assert.Equal(t, CountStateScheduled, c.State)
		assert.Equal(t, creator, c.CreatedBy)
		assert.Equal(t, 1, c.Version)
		assert.Empty(t, c.Counters)
		require.Len(t, c.Events(), 1)
		assert.Equal(t, EventTypeCountScheduled, c.Events()[0].EventType())
	})

	t.Run("fails with empty title", func(t *testing.T) {
		_, err := NewCount("   ", CountTypeFull, start, start, creator)
		require.Error(t, err)
		assert.True(t, shared.IsValidation(err))
	})

	t.Run("fails with unknown type", func(t *testing.T) {
		_, err := NewCount("x", CountType("WEEKLY"), start, start, creator)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "Unknown count type")
	})

	t.Run("fails when window ends before start", func(t *testing.T) {
		_, err := NewCount("x", CountTypeSpot, start, start.Add(-time.Minute), creator)
		require.Error(t, err)
	})

	t.Run("fails without creator", func(t *testing.T) {
		_, err := NewCount("x", CountTypeSpot, start, start, uuid.Nil)
		require.Error(t, err)
	})
}

func TestCountState_CanTransitionTo(t *testing.T) {
	tests := []struct {
		from, to CountState
		want     bool
	}{
		{CountStateScheduled, CountStateInProgress, true},
		{CountStateScheduled, CountStateCancelled, true},
		{CountStateScheduled, CountStateCompleted, false},
		{CountStateInProgress, CountStateCompleted, true},
		{CountStateInProgress, CountStateCancelled, true},
		{CountStateInProgress, CountStateScheduled, false},
		{CountStateCompleted, CountStateInProgress, false},
		{CountStateCompleted, CountStateCancelled, false},
		{CountStateCancelled, CountStateInProgress, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.from.CanTransitionTo(tt.to))
		})
	}
}

func TestCount_Start(t *testing.T) {
	t.Run("requires assigned counters", func(t *testing.T) {
		c := createTestCount(t)

		err := c.Start()

		require.Error(t, err)
		assert.True(t, shared.IsStateConflict(err))
		assert.Equal(t, CountStateScheduled, c.State)
	})

	t.Run("starts with counters", func(t *testing.T) {
		c := createTestCount(t)
		require.NoError(t, c.AssignCounters([]uuid.UUID{uuid.New()}))

		require.NoError(t, c.Start())

		assert.Equal(t, CountStateInProgress, c.State)
		assert.NotNil(t, c.StartedAt)
		assert.Len(t, c.Events(), 2)
	})

	t.Run("cannot start twice", func(t *testing.T) {
		c := createStartedCount(t)
		err := c.Start()
		assert.True(t, shared.IsStateConflict(err))
	})
}

func TestCount_AssignCounters(t *testing.T) {
	t.Run("deduplicates", func(t *testing.T) {
		c := createTestCount(t)
		u := uuid.New()

		require.NoError(t, c.AssignCounters([]uuid.UUID{u, u, uuid.New()}))

		assert.Len(t, c.Counters, 2)
		assert.True(t, c.HasCounter(u))
	})

	t.Run("rejects nil user", func(t *testing.T) {
		c := createTestCount(t)
		err := c.AssignCounters([]uuid.UUID{uuid.Nil})
		assert.True(t, shared.IsValidation(err))
	})

	t.Run("only while scheduled", func(t *testing.T) {
		c := createStartedCount(t)
		err := c.AssignCounters([]uuid.UUID{uuid.New()})
		assert.True(t, shared.IsStateConflict(err))
	})
}

func TestCount_Complete(t *testing.T) {
	t.Run("backfills uncounted lines", func(t *testing.T) {
		c := createStartedCount(t)
		counted := NewCountLine(c.ID, uuid.New(), decimal.NewFromInt(10))
		require.NoError(t, counted.RecordCount(decimal.NewFromInt(8), uuid.New()))
		uncounted := NewCountLine(c.ID, uuid.New(), decimal.NewFromInt(25))

		filled, err := c.Complete([]*CountLine{counted, uncounted})

		require.NoError(t, err)
		require.Len(t, filled, 1)
		assert.Equal(t, uncounted.ID, filled[0].ID)
		assert.True(t, uncounted.PhysicalQuantity.Equal(decimal.NewFromInt(25)))
		assert.True(t, uncounted.Difference.IsZero())
		assert.Nil(t, uncounted.CountedBy)
		assert.True(t, counted.Difference.Equal(decimal.NewFromInt(-2)))
		assert.Equal(t, CountStateCompleted, c.State)
		assert.NotNil(t, c.CompletedAt)
	})

	t.Run("rejects lines of another count", func(t *testing.T) {
		c := createStartedCount(t)
		foreign := NewCountLine(uuid.New(), uuid.New(), decimal.Zero)

		_, err := c.Complete([]*CountLine{foreign})

		assert.True(t, shared.IsMismatch(err))
		assert.Equal(t, CountStateInProgress, c.State)
	})

	t.Run("cannot complete a scheduled count", func(t *testing.T) {
		c := createTestCount(t)
		_, err := c.Complete(nil)
		assert.True(t, shared.IsStateConflict(err))
	})
}

func TestCount_Cancel(t *testing.T) {
	t.Run("cancels in progress", func(t *testing.T) {
		c := createStartedCount(t)
		require.NoError(t, c.Cancel(" wrong aisle "))
		assert.Equal(t, CountStateCancelled, c.State)
		assert.Equal(t, "wrong aisle", c.CancelReason)
	})

	t.Run("no transition out of cancelled", func(t *testing.T) {
		c := createStartedCount(t)
		require.NoError(t, c.Cancel(""))
		assert.Error(t, c.Cancel(""))
		_, err := c.Complete(nil)
		assert.Error(t, err)
	})
}

func TestCount_EnsureInProgress(t *testing.T) {
	c := createTestCount(t)
	assert.True(t, shared.IsStateConflict(c.EnsureInProgress()))

	c = createStartedCount(t)
	assert.NoError(t, c.EnsureInProgress())
}
