package stockcount_test

import (
	"context"
	"testing"

	"github.com/erp/stockcount/internal/domain/shared"
	"github.com/erp/stockcount/internal/domain/stockcount"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdjustmentFlow_CreateAmendReject(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	bolts := h.product("BOLT-M8", 10)
	countID := h.started(bolts)
	alice := uuid.New()

	id, err := h.adjustments.Create(ctx, adjustmentRequest(countID, bolts, alice, stockcount.AdjustmentKindSystemToPhysical, 10, 8))
	require.NoError(t, err)

	created := h.adjustment(id)
	assert.Equal(t, stockcount.AdjustmentStatusPending, created.Status)
	assert.True(t, decimal.NewFromInt(8).Equal(created.ProposedQuantity))

	// Same user, same line, inside the window.
	_, err = h.adjustments.Create(ctx, adjustmentRequest(countID, bolts, alice, stockcount.AdjustmentKindSystemToPhysical, 10, 7))
	requireCode(t, err, shared.CodeDuplicateSubmission)

	// Another user while one is still open.
	_, err = h.adjustments.Create(ctx, adjustmentRequest(countID, bolts, uuid.New(), stockcount.AdjustmentKindValidated, 10, 10))
	requireCode(t, err, shared.CodeInvalidState)
	assert.True(t, shared.IsStateConflict(err))

	// Amending your own adjustment is not a duplicate.
	amend := adjustmentRequest(countID, bolts, alice, stockcount.AdjustmentKindSystemToPhysical, 10, 6)
	amend.Reason = "Two cartons crushed on the bottom shelf"
	require.NoError(t, h.adjustments.Amend(ctx, id, amend))

	amended := h.adjustment(id)
	assert.True(t, decimal.NewFromInt(6).Equal(amended.ProposedQuantity))
	assert.Equal(t, "Two cartons crushed on the bottom shelf", amended.Reason)
	assert.Equal(t, created.CreatedAt.Unix(), amended.CreatedAt.Unix())
	assert.Equal(t, alice, amended.CreatedBy)
	assert.Equal(t, created.Version+1, amended.Version)

	views, err := h.adjustments.ListByProduct(ctx, countID, bolts)
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, "BOLT-M8", views[0].ProductCode)
	assert.True(t, decimal.NewFromInt(-4).Equal(views[0].NetImpact))

	has, err := h.adjustments.HasPending(ctx, countID, bolts)
	require.NoError(t, err)
	assert.True(t, has)

	require.NoError(t, h.adjustments.Reject(ctx, id, uuid.New(), "Recounted, original figure was right"))
	assert.Equal(t, stockcount.AdjustmentStatusRejected, h.adjustment(id).Status)

	requireCode(t, h.adjustments.Amend(ctx, id, amend), shared.CodeInvalidState)
	requireCode(t, h.adjustments.Delete(ctx, id), shared.CodeInvalidState)
	requireCode(t, h.adjustments.Reject(ctx, id, uuid.New(), "twice"), shared.CodeInvalidState)

	// With nothing open, a new adjustment can be proposed.
	h.propose(countID, bolts, stockcount.AdjustmentKindValidated, 10, 10)

	// Stock is untouched by the ledger.
	assert.True(t, decimal.NewFromInt(10).Equal(h.stock(bolts).OnHand))
}

func TestAdjustmentFlow_ProposedDefaultsToPhysical(t *testing.T) {
	h := newHarness(t, nil)
	bolts := h.product("BOLT-M8", 10)
	nuts := h.product("NUT-M8", 4)
	countID := h.started(bolts, nuts)

	recount := h.propose(countID, bolts, stockcount.AdjustmentKindRecount, 10, 7)
	validated := h.propose(countID, nuts, stockcount.AdjustmentKindValidated, 4, 4)

	assert.True(t, decimal.NewFromInt(7).Equal(h.adjustment(recount).ProposedQuantity))
	assert.True(t, decimal.NewFromInt(4).Equal(h.adjustment(validated).ProposedQuantity))
}

func TestAdjustmentFlow_Delete(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	bolts := h.product("BOLT-M8", 10)
	countID := h.started(bolts)
	id := h.propose(countID, bolts, stockcount.AdjustmentKindSystemToPhysical, 10, 8)

	require.NoError(t, h.adjustments.Delete(ctx, id))

	views, err := h.adjustments.ListByCount(ctx, countID)
	require.NoError(t, err)
	assert.Empty(t, views)

	requireNotFound(t, h.adjustments.Delete(ctx, id))
}

func TestAdjustmentFlow_AmendMismatch(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	bolts := h.product("BOLT-M8", 10)
	nuts := h.product("NUT-M8", 4)
	countID := h.started(bolts, nuts)
	user := uuid.New()
	id, err := h.adjustments.Create(ctx, adjustmentRequest(countID, bolts, user, stockcount.AdjustmentKindSystemToPhysical, 10, 8))
	require.NoError(t, err)

	err = h.adjustments.Amend(ctx, id, adjustmentRequest(countID, nuts, user, stockcount.AdjustmentKindSystemToPhysical, 4, 3))

	assert.True(t, shared.IsMismatch(err))
	assert.Equal(t, bolts, h.adjustment(id).ProductID)
}

func TestAdjustmentFlow_Guards(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	bolts := h.product("BOLT-M8", 10)
	stray := h.product("STRAY-1", 3)

	scheduled := h.schedule(bolts)
	_, err := h.adjustments.Create(ctx, adjustmentRequest(scheduled.ID, bolts, uuid.New(), stockcount.AdjustmentKindValidated, 10, 10))
	assert.True(t, shared.IsStateConflict(err), "count must be in progress")
	views, err := h.adjustments.ListByCount(ctx, scheduled.ID)
	require.NoError(t, err)
	assert.Empty(t, views, "a refused create leaves the ledger unchanged")

	_, err = h.counts.Start(ctx, scheduled.ID)
	require.NoError(t, err)

	_, err = h.adjustments.Create(ctx, adjustmentRequest(scheduled.ID, stray, uuid.New(), stockcount.AdjustmentKindValidated, 3, 3))
	requireNotFound(t, err)

	_, err = h.adjustments.Create(ctx, adjustmentRequest(uuid.New(), bolts, uuid.New(), stockcount.AdjustmentKindValidated, 10, 10))
	requireNotFound(t, err)

	requireNotFound(t, h.adjustments.Amend(ctx, uuid.New(), adjustmentRequest(scheduled.ID, bolts, uuid.New(), stockcount.AdjustmentKindValidated, 10, 10)))
	requireNotFound(t, h.adjustments.Reject(ctx, uuid.New(), uuid.New(), ""))
}

func TestAdjustmentFlow_Summarize(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	bolts := h.product("BOLT-M8", 10)
	nuts := h.product("NUT-M8", 4)
	washers := h.product("WASHER-8", 20)
	countID := h.started(bolts, nuts, washers)

	empty, err := h.adjustments.Summarize(ctx, countID)
	require.NoError(t, err)
	assert.Equal(t, 0, empty.PendingCount)
	assert.False(t, empty.ReadyToCommit)

	h.propose(countID, bolts, stockcount.AdjustmentKindSystemToPhysical, 10, 7)
	h.propose(countID, nuts, stockcount.AdjustmentKindValidated, 4, 4)

	summary, err := h.adjustments.Summarize(ctx, countID)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.PendingCount)
	assert.True(t, decimal.NewFromInt(-3).Equal(summary.NetImpact))
	assert.False(t, summary.HasPendingRecounts)
	assert.True(t, summary.ReadyToCommit)

	h.propose(countID, washers, stockcount.AdjustmentKindRecount, 20, 18)

	summary, err = h.adjustments.Summarize(ctx, countID)
	require.NoError(t, err)
	assert.Equal(t, 3, summary.PendingCount)
	assert.True(t, summary.HasPendingRecounts)
	assert.False(t, summary.ReadyToCommit)
	assert.True(t, decimal.NewFromInt(-3).Equal(summary.NetImpact), "recounts carry no net impact")

	_, err = h.adjustments.Summarize(ctx, uuid.New())
	requireNotFound(t, err)
}

func requireCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	var de *shared.DomainError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, code, de.Code)
}

func requireNotFound(t *testing.T, err error) {
	t.Helper()
	require.Error(t, err)
	assert.True(t, shared.IsNotFound(err), "expected not found, got %v", err)
}
