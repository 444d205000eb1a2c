package stockcount

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CountRepository persists counts and their assigned counters
type CountRepository interface {
	// FindByID loads a count with its counters
	FindByID(ctx context.Context, id uuid.UUID) (*Count, error)

	// FindByIDForUpdate loads a count and locks its row for the rest of the transaction
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*Count, error)

	// FindByState lists counts in the given state, newest first
	FindByState(ctx context.Context, state CountState) ([]Count, error)

	// Create inserts a new count
	Create(ctx context.Context, count *Count) error

	// SaveWithLock updates a count, failing if its version changed since it was loaded
	SaveWithLock(ctx context.Context, count *Count) error
}

// CountLineRepository persists count lines
type CountLineRepository interface {
	FindByCountAndProduct(ctx context.Context, countID, productID uuid.UUID) (*CountLine, error)

	FindByCount(ctx context.Context, countID uuid.UUID) ([]CountLine, error)

	// FindWithUnprocessedMovements returns the lines of a count that have drift not yet merged,
	// optionally restricted to a product subset
	FindWithUnprocessedMovements(ctx context.Context, countID uuid.UUID, productIDs []uuid.UUID) ([]CountLine, error)

	// CreateBatch inserts the lines of a freshly scheduled count
	CreateBatch(ctx context.Context, lines []CountLine) error

	// SaveWithLock updates a line, failing if its version changed since it was loaded
	SaveWithLock(ctx context.Context, line *CountLine) error
}

// AdjustmentRepository persists the pending adjustment ledger
type AdjustmentRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*PendingAdjustment, error)

	// FindByCount lists every adjustment of a count, newest first
	FindByCount(ctx context.Context, countID uuid.UUID) ([]PendingAdjustment, error)

	// FindByCountAndProduct lists the adjustments of one line, newest first
	FindByCountAndProduct(ctx context.Context, countID, productID uuid.UUID) ([]PendingAdjustment, error)

	// FindPendingByCount returns Pending adjustments in creation order
	FindPendingByCount(ctx context.Context, countID uuid.UUID) ([]PendingAdjustment, error)

	// FindOpenForLine returns the non-terminal adjustment of a line, or ErrNotFound
	FindOpenForLine(ctx context.Context, countID, productID uuid.UUID) (*PendingAdjustment, error)

	// ExistsRecent reports whether the user created an adjustment for the line at or after since,
	// ignoring the excluded id when it is not uuid.Nil
	ExistsRecent(ctx context.Context, countID, productID, userID uuid.UUID, since time.Time, exclude uuid.UUID) (bool, error)

	HasPending(ctx context.Context, countID, productID uuid.UUID) (bool, error)

	Create(ctx context.Context, adjustment *PendingAdjustment) error

	// SaveWithLock updates an adjustment, failing if its version changed since it was loaded
	SaveWithLock(ctx context.Context, adjustment *PendingAdjustment) error

	// DeletePending hard-deletes an adjustment that is still Pending. There is no recovery.
	DeletePending(ctx context.Context, id uuid.UUID) error
}

// MovementRepository persists post-cutoff movements
type MovementRepository interface {
	Create(ctx context.Context, movement *Movement) error

	// FindUnprocessed returns the unprocessed movements of a line in occurrence order
	FindUnprocessed(ctx context.Context, countID, productID uuid.UUID) ([]Movement, error)

	// FindByLine returns every movement of a line, newest first
	FindByLine(ctx context.Context, countID, productID uuid.UUID) ([]Movement, error)

	// SumUnprocessed totals the unprocessed deltas of a line
	SumUnprocessed(ctx context.Context, countID, productID uuid.UUID) (decimal.Decimal, error)

	// MarkProcessed flags the given unprocessed movements as processed. It fails
	// with a concurrency conflict if any of them was processed in the meantime.
	MarkProcessed(ctx context.Context, ids []uuid.UUID, at time.Time, by uuid.UUID) error
}

// ProductStockRepository is the stock store collaborator
type ProductStockRepository interface {
	FindByID(ctx context.Context, productID uuid.UUID) (*ProductStock, error)

	FindByIDs(ctx context.Context, productIDs []uuid.UUID) ([]ProductStock, error)

	// SaveWithLock writes on-hand and last-updated, failing if the version changed
	SaveWithLock(ctx context.Context, product *ProductStock) error
}

// UserDirectory resolves display names. Presentation only.
type UserDirectory interface {
	DisplayNames(ctx context.Context, userIDs []uuid.UUID) (map[uuid.UUID]string, error)
}
