package persistence

import (
	"context"

	"github.com/erp/stockcount/internal/domain/stockcount"
	"github.com/erp/stockcount/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormCountRepository implements stockcount.CountRepository using GORM
type GormCountRepository struct {
	db *gorm.DB
}

// NewGormCountRepository creates a new GormCountRepository
func NewGormCountRepository(db *gorm.DB) *GormCountRepository {
	return &GormCountRepository{db: db}
}

func orderedCounters(db *gorm.DB) *gorm.DB {
	return db.Order("position ASC")
}

// FindByID finds a count by its ID
func (r *GormCountRepository) FindByID(ctx context.Context, id uuid.UUID) (*stockcount.Count, error) {
	var model models.StockCountModel
	if err := r.db.WithContext(ctx).
		Preload("Counters", orderedCounters).
		First(&model, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return model.ToDomain(), nil
}

// FindByIDForUpdate finds a count and takes a row lock (SELECT ... FOR UPDATE).
// Dialects without row locks, such as sqlite, drop the locking clause.
func (r *GormCountRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*stockcount.Count, error) {
	var model models.StockCountModel
	if err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Preload("Counters", orderedCounters).
		First(&model, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return model.ToDomain(), nil
}

// FindByState lists counts in a state, newest first
func (r *GormCountRepository) FindByState(ctx context.Context, state stockcount.CountState) ([]stockcount.Count, error) {
	var rows []models.StockCountModel
	if err := r.db.WithContext(ctx).
		Preload("Counters", orderedCounters).
		Where("state = ?", state).
		Order("created_at DESC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	counts := make([]stockcount.Count, len(rows))
	for i := range rows {
		counts[i] = *rows[i].ToDomain()
	}
	return counts, nil
}

// Create inserts a count together with its counters
func (r *GormCountRepository) Create(ctx context.Context, count *stockcount.Count) error {
	return r.db.WithContext(ctx).Create(models.StockCountModelFromDomain(count)).Error
}

// SaveWithLock updates a count when its stored version still equals count.Version,
// then replaces the counter rows. On success count.Version is advanced.
func (r *GormCountRepository) SaveWithLock(ctx context.Context, count *stockcount.Count) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.StockCountModel{}).
			Where("id = ? AND version = ?", count.ID, count.Version).
			Updates(map[string]interface{}{
				"title":         count.Title,
				"state":         count.State,
				"window_start":  count.WindowStart,
				"window_end":    count.WindowEnd,
				"started_at":    count.StartedAt,
				"completed_at":  count.CompletedAt,
				"cancelled_at":  count.CancelledAt,
				"cancel_reason": count.CancelReason,
				"version":       count.Version + 1,
				"updated_at":    count.UpdatedAt,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return staleWrite("count")
		}

		if err := tx.Where("count_id = ?", count.ID).Delete(&models.StockCountCounterModel{}).Error; err != nil {
			return err
		}
		if counters := models.CounterModelsFromDomain(count); len(counters) > 0 {
			if err := tx.Create(&counters).Error; err != nil {
				return err
			}
		}

		count.Version++
		return nil
	})
}

// GormCountLineRepository implements stockcount.CountLineRepository using GORM
type GormCountLineRepository struct {
	db *gorm.DB
}

// NewGormCountLineRepository creates a new GormCountLineRepository
func NewGormCountLineRepository(db *gorm.DB) *GormCountLineRepository {
	return &GormCountLineRepository{db: db}
}

// FindByCountAndProduct finds the line of one product in a count
func (r *GormCountLineRepository) FindByCountAndProduct(ctx context.Context, countID, productID uuid.UUID) (*stockcount.CountLine, error) {
	var model models.StockCountLineModel
	if err := r.db.WithContext(ctx).
		Where("count_id = ? AND product_id = ?", countID, productID).
		First(&model).Error; err != nil {
		return nil, notFound(err)
	}
	return model.ToDomain(), nil
}

// FindByCount lists the lines of a count in creation order
func (r *GormCountLineRepository) FindByCount(ctx context.Context, countID uuid.UUID) ([]stockcount.CountLine, error) {
	var rows []models.StockCountLineModel
	if err := r.db.WithContext(ctx).
		Where("count_id = ?", countID).
		Order("created_at ASC, product_id ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return lineModelsToDomain(rows), nil
}

// FindWithUnprocessedMovements lists the lines that have at least one unprocessed
// movement. An empty productIDs means every line of the count.
func (r *GormCountLineRepository) FindWithUnprocessedMovements(ctx context.Context, countID uuid.UUID, productIDs []uuid.UUID) ([]stockcount.CountLine, error) {
	pending := r.db.Model(&models.StockCountMovementModel{}).
		Select("product_id").
		Where("count_id = ? AND processed = ?", countID, false)

	query := r.db.WithContext(ctx).
		Where("count_id = ?", countID).
		Where("product_id IN (?)", pending)
	if len(productIDs) > 0 {
		query = query.Where("product_id IN ?", productIDs)
	}

	var rows []models.StockCountLineModel
	if err := query.Order("created_at ASC, product_id ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return lineModelsToDomain(rows), nil
}

// CreateBatch inserts lines in batches of 100
func (r *GormCountLineRepository) CreateBatch(ctx context.Context, lines []stockcount.CountLine) error {
	if len(lines) == 0 {
		return nil
	}
	rows := make([]models.StockCountLineModel, len(lines))
	for i := range lines {
		rows[i].FromDomain(&lines[i])
	}
	return r.db.WithContext(ctx).CreateInBatches(rows, 100).Error
}

// SaveWithLock updates a line when its stored version still equals line.Version.
// On success line.Version is advanced.
func (r *GormCountLineRepository) SaveWithLock(ctx context.Context, line *stockcount.CountLine) error {
	result := r.db.WithContext(ctx).
		Model(&models.StockCountLineModel{}).
		Where("id = ? AND version = ?", line.ID, line.Version).
		Updates(map[string]interface{}{
			"system_quantity":        line.SystemQuantity,
			"physical_quantity":      line.PhysicalQuantity,
			"difference":             line.Difference,
			"counted_by":             line.CountedBy,
			"counted_at":             line.CountedAt,
			"recount_requested_at":   line.RecountRequestedAt,
			"recount_requested_by":   line.RecountRequestedBy,
			"recount_note":           line.RecountNote,
			"pending_movement_total": line.PendingMovementTotal,
			"version":                line.Version + 1,
			"updated_at":             line.UpdatedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return staleWrite("count line")
	}
	line.Version++
	return nil
}

func lineModelsToDomain(rows []models.StockCountLineModel) []stockcount.CountLine {
	lines := make([]stockcount.CountLine, len(rows))
	for i := range rows {
		lines[i] = *rows[i].ToDomain()
	}
	return lines
}

var (
	_ stockcount.CountRepository     = (*GormCountRepository)(nil)
	_ stockcount.CountLineRepository = (*GormCountLineRepository)(nil)
)
