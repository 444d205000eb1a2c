package persistence

import (
	"context"

	appcount "github.com/erp/stockcount/internal/application/stockcount"
	"github.com/erp/stockcount/internal/domain/stockcount"
	"gorm.io/gorm"
)

// GormTransactionScope implements TransactionScope using GORM transactions.
type GormTransactionScope struct {
	db *gorm.DB
}

// NewGormTransactionScope creates a new GormTransactionScope.
func NewGormTransactionScope(db *gorm.DB) *GormTransactionScope {
	return &GormTransactionScope{db: db}
}

// Execute runs fn within a database transaction. An error from fn rolls it back.
func (s *GormTransactionScope) Execute(ctx context.Context, fn func(repos appcount.TransactionalRepositories) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormTransactionalRepositories{tx: tx})
	})
}

// gormTransactionalRepositories hands out repositories bound to one transaction.
type gormTransactionalRepositories struct {
	tx *gorm.DB
}

func (r *gormTransactionalRepositories) CountRepo() stockcount.CountRepository {
	return NewGormCountRepository(r.tx)
}

func (r *gormTransactionalRepositories) LineRepo() stockcount.CountLineRepository {
	return NewGormCountLineRepository(r.tx)
}

func (r *gormTransactionalRepositories) AdjustmentRepo() stockcount.AdjustmentRepository {
	return NewGormAdjustmentRepository(r.tx)
}

func (r *gormTransactionalRepositories) MovementRepo() stockcount.MovementRepository {
	return NewGormMovementRepository(r.tx)
}

func (r *gormTransactionalRepositories) ProductRepo() stockcount.ProductStockRepository {
	return NewGormProductStockRepository(r.tx)
}

var (
	_ appcount.TransactionScope          = (*GormTransactionScope)(nil)
	_ appcount.TransactionalRepositories = (*gormTransactionalRepositories)(nil)
)
