package models

import (
	"time"

	"github.com/erp/stockcount/internal/domain/stockcount"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ProductModel is the stock store row a commit writes on-hand quantities to.
type ProductModel struct {
	ID          uuid.UUID       `gorm:"type:uuid;primary_key"`
	Code        string          `gorm:"type:varchar(50);not null;uniqueIndex"`
	Name        string          `gorm:"type:varchar(200);not null"`
	OnHand      decimal.Decimal `gorm:"column:on_hand;type:decimal(18,4);not null;default:0"`
	LastUpdated time.Time       `gorm:"not null"`
	Version     int             `gorm:"not null;default:1"`
}

// TableName returns the table name for GORM
func (ProductModel) TableName() string {
	return "products"
}

// ToDomain converts the persistence model to a domain ProductStock.
func (m *ProductModel) ToDomain() *stockcount.ProductStock {
	return &stockcount.ProductStock{
		ProductID:   m.ID,
		Code:        m.Code,
		Name:        m.Name,
		OnHand:      m.OnHand,
		LastUpdated: m.LastUpdated,
		Version:     m.Version,
	}
}

// FromDomain populates the persistence model from a domain ProductStock.
func (m *ProductModel) FromDomain(p *stockcount.ProductStock) {
	m.ID = p.ProductID
	m.Code = p.Code
	m.Name = p.Name
	m.OnHand = p.OnHand
	m.LastUpdated = p.LastUpdated
	m.Version = p.Version
}

// ProductModelFromDomain creates a new persistence model from a domain ProductStock.
func ProductModelFromDomain(p *stockcount.ProductStock) *ProductModel {
	m := &ProductModel{}
	m.FromDomain(p)
	return m
}

// UserModel is the read side of the users table. Only display names are needed.
type UserModel struct {
	ID          uuid.UUID `gorm:"type:uuid;primary_key"`
	Username    string    `gorm:"type:varchar(100);not null;uniqueIndex"`
	DisplayName string    `gorm:"type:varchar(200)"`
	CreatedAt   time.Time `gorm:"not null"`
	UpdatedAt   time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (UserModel) TableName() string {
	return "users"
}

// Label returns the display name, or the username when no display name is set.
func (m *UserModel) Label() string {
	if m.DisplayName != "" {
		return m.DisplayName
	}
	return m.Username
}

// All lists every model of the count schema, in creation order.
func All() []interface{} {
	return []interface{}{
		&StockCountModel{},
		&StockCountCounterModel{},
		&StockCountLineModel{},
		&StockCountAdjustmentModel{},
		&StockCountMovementModel{},
		&ProductModel{},
		&UserModel{},
	}
}
