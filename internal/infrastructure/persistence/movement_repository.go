package persistence

import (
	"context"
	"time"

	"github.com/erp/stockcount/internal/domain/shared"
	"github.com/erp/stockcount/internal/domain/stockcount"
	"github.com/erp/stockcount/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// GormMovementRepository implements stockcount.MovementRepository using GORM
type GormMovementRepository struct {
	db *gorm.DB
}

// NewGormMovementRepository creates a new GormMovementRepository
func NewGormMovementRepository(db *gorm.DB) *GormMovementRepository {
	return &GormMovementRepository{db: db}
}

// Create appends a movement
func (r *GormMovementRepository) Create(ctx context.Context, movement *stockcount.Movement) error {
	return r.db.WithContext(ctx).Create(models.StockCountMovementModelFromDomain(movement)).Error
}

// FindUnprocessed returns the unprocessed movements of a line in occurrence order
func (r *GormMovementRepository) FindUnprocessed(ctx context.Context, countID, productID uuid.UUID) ([]stockcount.Movement, error) {
	return r.find(r.db.WithContext(ctx).
		Where("count_id = ? AND product_id = ? AND processed = ?", countID, productID, false).
		Order("occurred_at ASC, created_at ASC"))
}

// FindByLine returns every movement of a line, newest first
func (r *GormMovementRepository) FindByLine(ctx context.Context, countID, productID uuid.UUID) ([]stockcount.Movement, error) {
	return r.find(r.db.WithContext(ctx).
		Where("count_id = ? AND product_id = ?", countID, productID).
		Order("occurred_at DESC, created_at DESC"))
}

// SumUnprocessed totals the unprocessed deltas of a line
func (r *GormMovementRepository) SumUnprocessed(ctx context.Context, countID, productID uuid.UUID) (decimal.Decimal, error) {
	var result struct {
		Total decimal.Decimal
	}
	if err := r.db.WithContext(ctx).
		Model(&models.StockCountMovementModel{}).
		Select("COALESCE(SUM(delta), 0) AS total").
		Where("count_id = ? AND product_id = ? AND processed = ?", countID, productID, false).
		Scan(&result).Error; err != nil {
		return decimal.Zero, err
	}
	return result.Total, nil
}

// MarkProcessed flags movements as processed in one statement. If fewer rows than
// ids were still unprocessed, another merge got there first.
func (r *GormMovementRepository) MarkProcessed(ctx context.Context, ids []uuid.UUID, at time.Time, by uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	result := r.db.WithContext(ctx).
		Model(&models.StockCountMovementModel{}).
		Where("id IN ? AND processed = ?", ids, false).
		Updates(map[string]interface{}{
			"processed":    true,
			"processed_at": at,
			"processed_by": by,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected != int64(len(ids)) {
		return shared.ErrConcurrencyConflict
	}
	return nil
}

func (r *GormMovementRepository) find(query *gorm.DB) ([]stockcount.Movement, error) {
	var rows []models.StockCountMovementModel
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]stockcount.Movement, len(rows))
	for i := range rows {
		out[i] = *rows[i].ToDomain()
	}
	return out, nil
}

var _ stockcount.MovementRepository = (*GormMovementRepository)(nil)
