package models

import (
	"time"

	"github.com/erp/stockcount/internal/domain/shared"
	"github.com/google/uuid"
)

// AggregateModel holds the columns every aggregate root table shares. The
// version column is what SaveWithLock guards on.
type AggregateModel struct {
	ID        uuid.UUID `gorm:"type:uuid;primary_key"`
	Version   int       `gorm:"not null;default:1"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

func aggregateColumns(root shared.BaseAggregateRoot) AggregateModel {
	return AggregateModel{
		ID:        root.ID,
		Version:   root.Version,
		CreatedAt: root.CreatedAt,
		UpdatedAt: root.UpdatedAt,
	}
}

// root rebuilds the domain root with an empty event queue
func (m AggregateModel) root() shared.BaseAggregateRoot {
	return shared.BaseAggregateRoot{
		ID:        m.ID,
		Version:   m.Version,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}
