package stockcount

import (
	"time"

	"github.com/erp/stockcount/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MovementKind is the closed set of operational events that change stock during a count
type MovementKind string

const (
	MovementKindSale       MovementKind = "SALE"
	MovementKindReturn     MovementKind = "RETURN"
	MovementKindAdjustment MovementKind = "ADJUSTMENT"
	MovementKindTransfer   MovementKind = "TRANSFER"
)

func (k MovementKind) IsValid() bool {
	switch k {
	case MovementKindSale, MovementKindReturn, MovementKindAdjustment, MovementKindTransfer:
		return true
	}
	return false
}

func (k MovementKind) String() string {
	return string(k)
}

// Movement is a post-cutoff stock change not yet folded into its line's snapshot.
// Once processed it is immutable.
type Movement struct {
	ID          uuid.UUID
	CountID     uuid.UUID
	ProductID   uuid.UUID
	Kind        MovementKind
	Delta       decimal.Decimal
	Reference   string
	Processed   bool
	ProcessedAt *time.Time
	ProcessedBy *uuid.UUID
	OccurredAt  time.Time
	CreatedAt   time.Time
}

// NewMovement creates an unprocessed movement
func NewMovement(countID, productID uuid.UUID, kind MovementKind, delta decimal.Decimal, reference string) (*Movement, error) {
	if !kind.IsValid() {
		return nil, shared.NewValidationError(shared.CodeInvalidKind, "Unknown movement kind: "+string(kind))
	}
	if delta.IsZero() {
		return nil, shared.NewValidationError(shared.CodeInvalidQuantity, "Movement delta cannot be zero")
	}
	now := time.Now()
	return &Movement{
		ID:         uuid.New(),
		CountID:    countID,
		ProductID:  productID,
		Kind:       kind,
		Delta:      delta,
		Reference:  reference,
		OccurredAt: now,
		CreatedAt:  now,
	}, nil
}

// MarkProcessed records that the movement was folded into its line
func (m *Movement) MarkProcessed(at time.Time, by uuid.UUID) error {
	if m.Processed {
		return shared.NewStateConflict(shared.CodeInvalidState, "Movement has already been processed")
	}
	m.Processed = true
	m.ProcessedAt = &at
	m.ProcessedBy = &by
	return nil
}

// SumDeltas totals the deltas of the given movements
func SumDeltas(movements []Movement) decimal.Decimal {
	total := decimal.Zero
	for _, m := range movements {
		total = total.Add(m.Delta)
	}
	return total
}
