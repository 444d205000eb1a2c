package stockcount

import (
	"github.com/erp/stockcount/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Count event type constants
const (
	EventTypeCountScheduled       = "StockCountScheduled"
	EventTypeCountStarted         = "StockCountStarted"
	EventTypeCountCompleted       = "StockCountCompleted"
	EventTypeCountCancelled       = "StockCountCancelled"
	EventTypeAdjustmentsCommitted = "StockCountAdjustmentsCommitted"
	EventTypeMovementsMerged      = "StockCountMovementsMerged"
)

// EventTypes lists every event type the count engine publishes
func EventTypes() []string {
	return []string{
		EventTypeCountScheduled,
		EventTypeCountStarted,
		EventTypeCountCompleted,
		EventTypeCountCancelled,
		EventTypeAdjustmentsCommitted,
		EventTypeMovementsMerged,
	}
}

// CountScheduledEvent is raised when a count is created
type CountScheduledEvent struct {
	shared.EventHeader
	CountID   uuid.UUID `json:"count_id"`
	Title     string    `json:"title"`
	CountType CountType `json:"count_type"`
	CreatedBy uuid.UUID `json:"created_by"`
}

func NewCountScheduledEvent(c *Count) *CountScheduledEvent {
	return &CountScheduledEvent{
		EventHeader: shared.NewEventHeader(EventTypeCountScheduled, c.ID),
		CountID:     c.ID,
		Title:       c.Title,
		CountType:   c.Type,
		CreatedBy:   c.CreatedBy,
	}
}

// CountStartedEvent is raised when counting begins
type CountStartedEvent struct {
	shared.EventHeader
	CountID  uuid.UUID   `json:"count_id"`
	Counters []uuid.UUID `json:"counters"`
}

func NewCountStartedEvent(c *Count) *CountStartedEvent {
	return &CountStartedEvent{
		EventHeader: shared.NewEventHeader(EventTypeCountStarted, c.ID),
		CountID:     c.ID,
		Counters:    append([]uuid.UUID(nil), c.Counters...),
	}
}

// CountCompletedEvent is raised when a count is closed
type CountCompletedEvent struct {
	shared.EventHeader
	CountID    uuid.UUID `json:"count_id"`
	TotalLines int       `json:"total_lines"`
	Backfilled int       `json:"backfilled"`
}

func NewCountCompletedEvent(c *Count, totalLines, backfilled int) *CountCompletedEvent {
	return &CountCompletedEvent{
		EventHeader: shared.NewEventHeader(EventTypeCountCompleted, c.ID),
		CountID:     c.ID,
		TotalLines:  totalLines,
		Backfilled:  backfilled,
	}
}

// CountCancelledEvent is raised when a count is abandoned
type CountCancelledEvent struct {
	shared.EventHeader
	CountID uuid.UUID `json:"count_id"`
	Reason  string    `json:"reason"`
}

func NewCountCancelledEvent(c *Count) *CountCancelledEvent {
	return &CountCancelledEvent{
		EventHeader: shared.NewEventHeader(EventTypeCountCancelled, c.ID),
		CountID:     c.ID,
		Reason:      c.CancelReason,
	}
}

// AppliedAdjustment describes one adjustment written to stock by a commit
type AppliedAdjustment struct {
	AdjustmentID uuid.UUID       `json:"adjustment_id"`
	ProductID    uuid.UUID       `json:"product_id"`
	Kind         AdjustmentKind  `json:"kind"`
	OldOnHand    decimal.Decimal `json:"old_on_hand"`
	NewOnHand    decimal.Decimal `json:"new_on_hand"`
}

// AdjustmentsCommittedEvent is raised after a commit transaction succeeds
type AdjustmentsCommittedEvent struct {
	shared.EventHeader
	CountID     uuid.UUID           `json:"count_id"`
	CommittedBy uuid.UUID           `json:"committed_by"`
	Applied     []AppliedAdjustment `json:"applied"`
}

func NewAdjustmentsCommittedEvent(countID, committedBy uuid.UUID, applied []AppliedAdjustment) *AdjustmentsCommittedEvent {
	return &AdjustmentsCommittedEvent{
		EventHeader: shared.NewEventHeader(EventTypeAdjustmentsCommitted, countID),
		CountID:     countID,
		CommittedBy: committedBy,
		Applied:     applied,
	}
}

// MovementsMergedEvent is raised after a line's movements are folded into its snapshot
type MovementsMergedEvent struct {
	shared.EventHeader
	CountID         uuid.UUID       `json:"count_id"`
	ProductID       uuid.UUID       `json:"product_id"`
	MovementsFolded int             `json:"movements_folded"`
	NewSystemQty    decimal.Decimal `json:"new_system_qty"`
	MergedBy        uuid.UUID       `json:"merged_by"`
}

func NewMovementsMergedEvent(countID, productID uuid.UUID, folded int, newSystemQty decimal.Decimal, by uuid.UUID) *MovementsMergedEvent {
	return &MovementsMergedEvent{
		EventHeader:     shared.NewEventHeader(EventTypeMovementsMerged, countID),
		CountID:         countID,
		ProductID:       productID,
		MovementsFolded: folded,
		NewSystemQty:    newSystemQty,
		MergedBy:        by,
	}
}
