package stockcount

import (
	"time"

	"github.com/erp/stockcount/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CountLine tracks system vs. physical quantity for one product within a count.
// The system quantity is the snapshot; only the reconciler moves it after start.
type CountLine struct {
	ID                   uuid.UUID
	CountID              uuid.UUID
	ProductID            uuid.UUID
	SystemQuantity       decimal.Decimal
	PhysicalQuantity     *decimal.Decimal
	Difference           *decimal.Decimal
	CountedBy            *uuid.UUID
	CountedAt            *time.Time
	RecountRequestedAt   *time.Time
	RecountRequestedBy   *uuid.UUID
	RecountNote          string
	PendingMovementTotal decimal.Decimal
	Version              int
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// NewCountLine creates an uncounted line with the given snapshot
func NewCountLine(countID, productID uuid.UUID, systemQty decimal.Decimal) *CountLine {
	now := time.Now()
	return &CountLine{
		ID:                   uuid.New(),
		CountID:              countID,
		ProductID:            productID,
		SystemQuantity:       systemQty,
		PendingMovementTotal: decimal.Zero,
		Version:              1,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
}

// IsCounted reports whether a physical quantity has been recorded
func (l *CountLine) IsCounted() bool {
	return l.PhysicalQuantity != nil
}

// HasDifference returns true when the line is counted and disagrees with the snapshot
func (l *CountLine) HasDifference() bool {
	return l.Difference != nil && !l.Difference.IsZero()
}

// RecountRequested reports whether someone asked for this line to be counted again
func (l *CountLine) RecountRequested() bool {
	return l.RecountRequestedAt != nil
}

// RecordCount stores the physical quantity counted by a user
func (l *CountLine) RecordCount(physicalQty decimal.Decimal, countedBy uuid.UUID) error {
	if physicalQty.IsNegative() {
		return shared.NewValidationError(shared.CodeInvalidQuantity, "Physical quantity cannot be negative")
	}
	if countedBy == uuid.Nil {
		return shared.NewValidationError(shared.CodeInvalidInput, "Counting user cannot be empty")
	}

	now := time.Now()
	qty := physicalQty
	l.PhysicalQuantity = &qty
	l.CountedBy = &countedBy
	l.CountedAt = &now
	l.RecountRequestedAt = nil
	l.RecountRequestedBy = nil
	l.RecountNote = ""
	l.recomputeDifference()
	l.touch(now)
	return nil
}

// RequestRecount flags the line for a second count without clearing the first
func (l *CountLine) RequestRecount(requestedBy uuid.UUID, note string) error {
	if requestedBy == uuid.Nil {
		return shared.NewValidationError(shared.CodeInvalidInput, "Requesting user cannot be empty")
	}
	now := time.Now()
	l.RecountRequestedAt = &now
	l.RecountRequestedBy = &requestedBy
	l.RecountNote = note
	l.touch(now)
	return nil
}

// Backfill sets physical = system for an uncounted line with no user attributed
func (l *CountLine) Backfill() {
	if l.IsCounted() {
		return
	}
	now := time.Now()
	qty := l.SystemQuantity
	diff := decimal.Zero
	l.PhysicalQuantity = &qty
	l.Difference = &diff
	l.CountedBy = nil
	l.CountedAt = &now
	l.touch(now)
}

// RefreshSnapshot replaces the system quantity with the current on-hand value
func (l *CountLine) RefreshSnapshot(onHand decimal.Decimal) {
	l.SystemQuantity = onHand
	l.recomputeDifference()
	l.touch(time.Now())
}

// SetPendingMovementTotal records the display-only sum of unprocessed deltas
func (l *CountLine) SetPendingMovementTotal(total decimal.Decimal) {
	l.PendingMovementTotal = total
	l.touch(time.Now())
}

// FoldMovements adds the summed drift into the snapshot and clears the running total
func (l *CountLine) FoldMovements(sum decimal.Decimal) {
	l.SystemQuantity = l.SystemQuantity.Add(sum)
	l.PendingMovementTotal = decimal.Zero
	l.recomputeDifference()
	l.touch(time.Now())
}

func (l *CountLine) recomputeDifference() {
	if l.PhysicalQuantity == nil {
		l.Difference = nil
		return
	}
	diff := l.PhysicalQuantity.Sub(l.SystemQuantity)
	l.Difference = &diff
}

func (l *CountLine) touch(now time.Time) {
	l.UpdatedAt = now
}
