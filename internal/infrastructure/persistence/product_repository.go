package persistence

import (
	"context"

	"github.com/erp/stockcount/internal/domain/stockcount"
	"github.com/erp/stockcount/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormProductStockRepository implements stockcount.ProductStockRepository using GORM
type GormProductStockRepository struct {
	db *gorm.DB
}

// NewGormProductStockRepository creates a new GormProductStockRepository
func NewGormProductStockRepository(db *gorm.DB) *GormProductStockRepository {
	return &GormProductStockRepository{db: db}
}

// FindByID finds a product's stock record
func (r *GormProductStockRepository) FindByID(ctx context.Context, productID uuid.UUID) (*stockcount.ProductStock, error) {
	var model models.ProductModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", productID).Error; err != nil {
		return nil, notFound(err)
	}
	return model.ToDomain(), nil
}

// FindByIDs loads the given products ordered by code. Missing ids are skipped.
func (r *GormProductStockRepository) FindByIDs(ctx context.Context, productIDs []uuid.UUID) ([]stockcount.ProductStock, error) {
	if len(productIDs) == 0 {
		return []stockcount.ProductStock{}, nil
	}
	var rows []models.ProductModel
	if err := r.db.WithContext(ctx).
		Where("id IN ?", productIDs).
		Order("code ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]stockcount.ProductStock, len(rows))
	for i := range rows {
		out[i] = *rows[i].ToDomain()
	}
	return out, nil
}

// SaveWithLock writes on-hand and last-updated when the stored version still equals
// product.Version. On success product.Version is advanced.
func (r *GormProductStockRepository) SaveWithLock(ctx context.Context, product *stockcount.ProductStock) error {
	result := r.db.WithContext(ctx).
		Model(&models.ProductModel{}).
		Where("id = ? AND version = ?", product.ProductID, product.Version).
		Updates(map[string]interface{}{
			"on_hand":      product.OnHand,
			"last_updated": product.LastUpdated,
			"version":      product.Version + 1,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return staleWrite("product")
	}
	product.Version++
	return nil
}

// GormUserDirectory resolves display names from the users table
type GormUserDirectory struct {
	db *gorm.DB
}

// NewGormUserDirectory creates a new GormUserDirectory
func NewGormUserDirectory(db *gorm.DB) *GormUserDirectory {
	return &GormUserDirectory{db: db}
}

// DisplayNames returns a name per known id. Unknown ids are absent from the map.
func (d *GormUserDirectory) DisplayNames(ctx context.Context, userIDs []uuid.UUID) (map[uuid.UUID]string, error) {
	names := make(map[uuid.UUID]string, len(userIDs))
	if len(userIDs) == 0 {
		return names, nil
	}
	var rows []models.UserModel
	if err := d.db.WithContext(ctx).
		Select("id", "username", "display_name").
		Where("id IN ?", userIDs).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	for i := range rows {
		names[rows[i].ID] = rows[i].Label()
	}
	return names, nil
}

var (
	_ stockcount.ProductStockRepository = (*GormProductStockRepository)(nil)
	_ stockcount.UserDirectory          = (*GormUserDirectory)(nil)
)
