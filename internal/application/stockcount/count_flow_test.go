package stockcount_test

import (
	"context"
	"testing"
	"time"

	appcount "github.com/erp/stockcount/internal/application/stockcount"
	"github.com/erp/stockcount/internal/domain/shared"
	"github.com/erp/stockcount/internal/domain/stockcount"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCountFlow_ScheduleStartCountComplete(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	bolts := h.product("BOLT-M8", 10)
	nuts := h.product("NUT-M8", 4)

	scheduled := h.schedule(bolts, nuts)
	assert.Equal(t, stockcount.CountStateScheduled, scheduled.State)
	assert.Equal(t, []uuid.UUID{h.counter}, scheduled.Counters)
	assert.Len(t, h.events.ofType(stockcount.EventTypeCountScheduled), 1)
	assert.True(t, decimal.NewFromInt(10).Equal(h.line(scheduled.ID, bolts).SystemQuantity))

	// Stock moves before the count starts; Start re-captures the snapshot.
	h.setOnHand(bolts, 12)
	started, err := h.counts.Start(ctx, scheduled.ID)
	require.NoError(t, err)
	assert.Equal(t, stockcount.CountStateInProgress, started.State)
	assert.NotNil(t, started.StartedAt)
	assert.True(t, decimal.NewFromInt(12).Equal(h.line(scheduled.ID, bolts).SystemQuantity))
	assert.Len(t, h.events.ofType(stockcount.EventTypeCountStarted), 1)

	require.NoError(t, h.counts.RecordCount(ctx, appcount.RecordCountRequest{
		CountID:          scheduled.ID,
		ProductID:        bolts,
		PhysicalQuantity: decimal.NewFromInt(11),
		UserID:           h.counter,
	}))
	require.NoError(t, h.counts.RequestRecount(ctx, scheduled.ID, nuts, h.counter, "Bin label unreadable"))

	progress, err := h.counts.Progress(ctx, scheduled.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, progress.TotalLines)
	assert.Equal(t, 1, progress.CountedLines)
	assert.Equal(t, 1, progress.DifferenceLines)
	assert.Equal(t, 1, progress.RecountLines)
	assert.InDelta(t, 50.0, progress.Percent, 0.001)

	completed, err := h.counts.Complete(ctx, scheduled.ID)
	require.NoError(t, err)
	assert.Equal(t, stockcount.CountStateCompleted, completed.State)
	assert.Len(t, h.events.ofType(stockcount.EventTypeCountCompleted), 1)

	lines, err := h.counts.ListLines(ctx, scheduled.ID)
	require.NoError(t, err)
	require.Len(t, lines, 2)
	byProduct := map[uuid.UUID]appcount.CountLineView{}
	for _, l := range lines {
		byProduct[l.ProductID] = l
	}
	assert.Equal(t, "BOLT-M8", byProduct[bolts].ProductCode)
	require.NotNil(t, byProduct[bolts].Difference)
	assert.True(t, decimal.NewFromInt(-1).Equal(*byProduct[bolts].Difference))

	backfilled := byProduct[nuts]
	require.NotNil(t, backfilled.PhysicalQuantity)
	assert.True(t, backfilled.SystemQuantity.Equal(*backfilled.PhysicalQuantity))
	assert.Nil(t, backfilled.CountedBy)

	err = h.counts.RecordCount(ctx, appcount.RecordCountRequest{
		CountID:          scheduled.ID,
		ProductID:        bolts,
		PhysicalQuantity: decimal.NewFromInt(9),
		UserID:           h.counter,
	})
	assert.True(t, shared.IsStateConflict(err))

	// Stock is only ever written by commit.
	assert.True(t, decimal.NewFromInt(12).Equal(h.stock(bolts).OnHand))
}

func TestCountFlow_ScheduleUnknownProduct(t *testing.T) {
	h := newHarness(t, nil)
	known := h.product("BOLT-M8", 10)

	_, err := h.counts.Schedule(context.Background(), appcount.ScheduleCountRequest{
		Title:       "Spot check",
		Type:        stockcount.CountTypeSpot,
		WindowStart: time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC),
		ProductIDs:  []uuid.UUID{known, uuid.New()},
		CreatedBy:   uuid.New(),
	})

	assert.True(t, shared.IsNotFound(err))
	counts, err := h.counts.ListByState(context.Background(), stockcount.CountStateScheduled)
	require.NoError(t, err)
	assert.Empty(t, counts)
}

func TestCountFlow_ScheduleRejectsBadInput(t *testing.T) {
	h := newHarness(t, nil)

	_, err := h.counts.Schedule(context.Background(), appcount.ScheduleCountRequest{
		Title:       "No products",
		Type:        stockcount.CountTypeFull,
		WindowStart: time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC),
		CreatedBy:   uuid.New(),
	})
	assert.True(t, shared.IsValidation(err))

	_, err = h.counts.Schedule(context.Background(), appcount.ScheduleCountRequest{
		Title:       "Bad type",
		Type:        "ANNUAL",
		WindowStart: time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC),
		ProductIDs:  []uuid.UUID{h.product("BOLT-M8", 1)},
		CreatedBy:   uuid.New(),
	})
	assert.True(t, shared.IsValidation(err))
}

func TestCountFlow_StartNeedsCounters(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	resp, err := h.counts.Schedule(ctx, appcount.ScheduleCountRequest{
		Title:       "Unstaffed",
		Type:        stockcount.CountTypeSpot,
		WindowStart: time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC),
		ProductIDs:  []uuid.UUID{h.product("BOLT-M8", 1)},
		CreatedBy:   uuid.New(),
	})
	require.NoError(t, err)

	_, err = h.counts.Start(ctx, resp.ID)
	assert.True(t, shared.IsStateConflict(err))

	require.NoError(t, h.counts.AssignCounters(ctx, resp.ID, []uuid.UUID{h.counter}))
	started, err := h.counts.Start(ctx, resp.ID)
	require.NoError(t, err)
	assert.Equal(t, stockcount.CountStateInProgress, started.State)

	err = h.counts.AssignCounters(ctx, resp.ID, []uuid.UUID{uuid.New()})
	assert.True(t, shared.IsStateConflict(err))
}

func TestCountFlow_Cancel(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	bolts := h.product("BOLT-M8", 10)
	countID := h.started(bolts)
	h.propose(countID, bolts, stockcount.AdjustmentKindSystemToPhysical, 10, 8)

	require.NoError(t, h.counts.Cancel(ctx, countID, "  Warehouse flooded "))

	got, err := h.counts.Get(ctx, countID)
	require.NoError(t, err)
	assert.Equal(t, stockcount.CountStateCancelled, got.State)
	assert.Equal(t, "Warehouse flooded", got.CancelReason)
	assert.Len(t, h.events.ofType(stockcount.EventTypeCountCancelled), 1)

	_, err = h.commits.Commit(ctx, countID, uuid.New())
	assert.True(t, shared.IsStateConflict(err))
	assert.True(t, decimal.NewFromInt(10).Equal(h.stock(bolts).OnHand))

	err = h.counts.Cancel(ctx, countID, "again")
	assert.True(t, shared.IsStateConflict(err))
}

func TestCountFlow_NotFound(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	_, err := h.counts.Get(ctx, uuid.New())
	assert.True(t, shared.IsNotFound(err))

	_, err = h.counts.Progress(ctx, uuid.New())
	assert.True(t, shared.IsNotFound(err))

	_, err = h.counts.ListByState(ctx, "ARCHIVED")
	assert.True(t, shared.IsValidation(err))
}
