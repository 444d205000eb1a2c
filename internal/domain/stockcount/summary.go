package stockcount

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Summary aggregates the adjustment ledger of one count
type Summary struct {
	CountID            uuid.UUID
	PendingCount       int
	AppliedCount       int
	RejectedCount      int
	NetImpact          decimal.Decimal
	WouldGoNegative    bool
	HasPendingRecounts bool
}

// ReadyToCommit is true with at least one pending item and nothing blocking
func (s Summary) ReadyToCommit() bool {
	return s.PendingCount > 0 && !s.HasPendingRecounts && !s.WouldGoNegative
}

// Summarize folds the adjustments of a count into a Summary
func Summarize(countID uuid.UUID, adjustments []PendingAdjustment) Summary {
	s := Summary{CountID: countID, NetImpact: decimal.Zero}
	for i := range adjustments {
		a := &adjustments[i]
		switch a.Status {
		case AdjustmentStatusApplied:
			s.AppliedCount++
			continue
		case AdjustmentStatusRejected:
			s.RejectedCount++
			continue
		case AdjustmentStatusPending:
			s.PendingCount++
		}

		if a.WouldGoNegative() {
			s.WouldGoNegative = true
		}
		switch a.Kind {
		case AdjustmentKindSystemToPhysical:
			s.NetImpact = s.NetImpact.Add(a.NetImpact())
		case AdjustmentKindRecount:
			s.HasPendingRecounts = true
		case AdjustmentKindValidated:
		}
	}
	return s
}
