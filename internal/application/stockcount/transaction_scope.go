package stockcount

import (
	"context"

	"github.com/erp/stockcount/internal/domain/stockcount"
)

// TransactionScope provides transactional access to the count repositories.
// All repository operations inside fn share one database transaction and are
// committed or rolled back together.
type TransactionScope interface {
	// Execute runs fn within a database transaction.
	// If fn returns an error, the transaction is rolled back.
	Execute(ctx context.Context, fn func(repos TransactionalRepositories) error) error
}

// TransactionalRepositories exposes the repositories bound to the current transaction.
//
// Aggregate boundary notes:
//   - CountRepo owns the lifecycle state; every write re-reads it first.
//   - LineRepo and AdjustmentRepo rows carry their own version and are updated
//     with optimistic locking.
//   - MovementRepo is append-only except for the processed flag.
//   - ProductRepo is the stock store. Only the commit path writes to it.
type TransactionalRepositories interface {
	CountRepo() stockcount.CountRepository
	LineRepo() stockcount.CountLineRepository
	AdjustmentRepo() stockcount.AdjustmentRepository
	MovementRepo() stockcount.MovementRepository
	ProductRepo() stockcount.ProductStockRepository
}

// NoOpTransactionScope runs fn against the given repositories without a transaction.
// Useful for tests that mock the repositories.
type NoOpTransactionScope struct {
	countRepo      stockcount.CountRepository
	lineRepo       stockcount.CountLineRepository
	adjustmentRepo stockcount.AdjustmentRepository
	movementRepo   stockcount.MovementRepository
	productRepo    stockcount.ProductStockRepository
}

// NewNoOpTransactionScope creates a NoOpTransactionScope with the given repositories.
func NewNoOpTransactionScope(
	countRepo stockcount.CountRepository,
	lineRepo stockcount.CountLineRepository,
	adjustmentRepo stockcount.AdjustmentRepository,
	movementRepo stockcount.MovementRepository,
	productRepo stockcount.ProductStockRepository,
) *NoOpTransactionScope {
	return &NoOpTransactionScope{
		countRepo:      countRepo,
		lineRepo:       lineRepo,
		adjustmentRepo: adjustmentRepo,
		movementRepo:   movementRepo,
		productRepo:    productRepo,
	}
}

func (s *NoOpTransactionScope) Execute(_ context.Context, fn func(repos TransactionalRepositories) error) error {
	return fn(s)
}

func (s *NoOpTransactionScope) CountRepo() stockcount.CountRepository           { return s.countRepo }
func (s *NoOpTransactionScope) LineRepo() stockcount.CountLineRepository        { return s.lineRepo }
func (s *NoOpTransactionScope) AdjustmentRepo() stockcount.AdjustmentRepository { return s.adjustmentRepo }
func (s *NoOpTransactionScope) MovementRepo() stockcount.MovementRepository     { return s.movementRepo }
func (s *NoOpTransactionScope) ProductRepo() stockcount.ProductStockRepository  { return s.productRepo }

var _ TransactionScope = (*NoOpTransactionScope)(nil)
var _ TransactionalRepositories = (*NoOpTransactionScope)(nil)
