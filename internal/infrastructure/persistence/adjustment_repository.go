package persistence

import (
	"context"
	"time"

	"github.com/erp/stockcount/internal/domain/shared"
	"github.com/erp/stockcount/internal/domain/stockcount"
	"github.com/erp/stockcount/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormAdjustmentRepository implements stockcount.AdjustmentRepository using GORM
type GormAdjustmentRepository struct {
	db *gorm.DB
}

// NewGormAdjustmentRepository creates a new GormAdjustmentRepository
func NewGormAdjustmentRepository(db *gorm.DB) *GormAdjustmentRepository {
	return &GormAdjustmentRepository{db: db}
}

// FindByID finds an adjustment by its ID
func (r *GormAdjustmentRepository) FindByID(ctx context.Context, id uuid.UUID) (*stockcount.PendingAdjustment, error) {
	var model models.StockCountAdjustmentModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return model.ToDomain(), nil
}

// FindByCount lists the adjustments of a count, newest first
func (r *GormAdjustmentRepository) FindByCount(ctx context.Context, countID uuid.UUID) ([]stockcount.PendingAdjustment, error) {
	return r.find(r.db.WithContext(ctx).
		Where("count_id = ?", countID).
		Order("created_at DESC, id DESC"))
}

// FindByCountAndProduct lists the adjustments of one line, newest first
func (r *GormAdjustmentRepository) FindByCountAndProduct(ctx context.Context, countID, productID uuid.UUID) ([]stockcount.PendingAdjustment, error) {
	return r.find(r.db.WithContext(ctx).
		Where("count_id = ? AND product_id = ?", countID, productID).
		Order("created_at DESC, id DESC"))
}

// FindPendingByCount lists the Pending adjustments of a count in creation order
func (r *GormAdjustmentRepository) FindPendingByCount(ctx context.Context, countID uuid.UUID) ([]stockcount.PendingAdjustment, error) {
	return r.find(r.db.WithContext(ctx).
		Where("count_id = ? AND status = ?", countID, stockcount.AdjustmentStatusPending).
		Order("created_at ASC, id ASC"))
}

// FindOpenForLine returns the latest Pending adjustment of a line
func (r *GormAdjustmentRepository) FindOpenForLine(ctx context.Context, countID, productID uuid.UUID) (*stockcount.PendingAdjustment, error) {
	var model models.StockCountAdjustmentModel
	if err := r.db.WithContext(ctx).
		Where("count_id = ? AND product_id = ? AND status = ?", countID, productID, stockcount.AdjustmentStatusPending).
		Order("created_at DESC").
		First(&model).Error; err != nil {
		return nil, notFound(err)
	}
	return model.ToDomain(), nil
}

// ExistsRecent reports whether userID created an adjustment for the line at or after since
func (r *GormAdjustmentRepository) ExistsRecent(ctx context.Context, countID, productID, userID uuid.UUID, since time.Time, exclude uuid.UUID) (bool, error) {
	query := r.db.WithContext(ctx).
		Model(&models.StockCountAdjustmentModel{}).
		Where("count_id = ? AND product_id = ? AND created_by = ? AND created_at >= ?", countID, productID, userID, since)
	if exclude != uuid.Nil {
		query = query.Where("id <> ?", exclude)
	}
	var n int64
	if err := query.Count(&n).Error; err != nil {
		return false, err
	}
	return n > 0, nil
}

// HasPending reports whether the line has a Pending adjustment
func (r *GormAdjustmentRepository) HasPending(ctx context.Context, countID, productID uuid.UUID) (bool, error) {
	var n int64
	if err := r.db.WithContext(ctx).
		Model(&models.StockCountAdjustmentModel{}).
		Where("count_id = ? AND product_id = ? AND status = ?", countID, productID, stockcount.AdjustmentStatusPending).
		Count(&n).Error; err != nil {
		return false, err
	}
	return n > 0, nil
}

// Create inserts a Pending adjustment. A second open adjustment for the same
// line trips the partial unique index and comes back as a state conflict.
func (r *GormAdjustmentRepository) Create(ctx context.Context, adjustment *stockcount.PendingAdjustment) error {
	err := r.db.WithContext(ctx).Create(models.StockCountAdjustmentModelFromDomain(adjustment)).Error
	if isUniqueViolation(err) {
		return shared.NewStateConflict(shared.CodeInvalidState,
			"A pending adjustment already exists for this product")
	}
	return err
}

// SaveWithLock updates an adjustment when its stored version still equals adjustment.Version.
// On success adjustment.Version is advanced.
func (r *GormAdjustmentRepository) SaveWithLock(ctx context.Context, adjustment *stockcount.PendingAdjustment) error {
	result := r.db.WithContext(ctx).
		Model(&models.StockCountAdjustmentModel{}).
		Where("id = ? AND version = ?", adjustment.ID, adjustment.Version).
		Updates(map[string]interface{}{
			"kind":              adjustment.Kind,
			"system_quantity":   adjustment.SystemQuantity,
			"physical_quantity": adjustment.PhysicalQuantity,
			"proposed_quantity": adjustment.ProposedQuantity,
			"reason":            adjustment.Reason,
			"status":            adjustment.Status,
			"applied_at":        adjustment.AppliedAt,
			"rejected_at":       adjustment.RejectedAt,
			"rejected_by":       adjustment.RejectedBy,
			"rejection_note":    adjustment.RejectionNote,
			"version":           adjustment.Version + 1,
			"updated_at":        adjustment.UpdatedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return staleWrite("adjustment")
	}
	adjustment.Version++
	return nil
}

// DeletePending removes a Pending adjustment row. Applied and rejected rows are never deleted.
func (r *GormAdjustmentRepository) DeletePending(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).
		Where("id = ? AND status = ?", id, stockcount.AdjustmentStatusPending).
		Delete(&models.StockCountAdjustmentModel{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *GormAdjustmentRepository) find(query *gorm.DB) ([]stockcount.PendingAdjustment, error) {
	var rows []models.StockCountAdjustmentModel
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]stockcount.PendingAdjustment, len(rows))
	for i := range rows {
		out[i] = *rows[i].ToDomain()
	}
	return out, nil
}

var _ stockcount.AdjustmentRepository = (*GormAdjustmentRepository)(nil)
