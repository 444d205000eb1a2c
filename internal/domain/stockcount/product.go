package stockcount

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ProductStock is the on-hand record of the stock store. The commit engine is
// the only writer from this module.
type ProductStock struct {
	ProductID   uuid.UUID
	Code        string
	Name        string
	OnHand      decimal.Decimal
	LastUpdated time.Time
	Version     int
}

// SetOnHand replaces the on-hand quantity and stamps the update time
func (p *ProductStock) SetOnHand(qty decimal.Decimal, at time.Time) {
	p.OnHand = qty
	p.LastUpdated = at
}

// Touch stamps the update time without changing quantity
func (p *ProductStock) Touch(at time.Time) {
	p.LastUpdated = at
}
