package models

import (
	"time"

	"github.com/erp/stockcount/internal/domain/stockcount"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// StockCountModel is the persistence model for the Count aggregate root.
type StockCountModel struct {
	AggregateModel
	Title        string                   `gorm:"type:varchar(200);not null"`
	Type         stockcount.CountType     `gorm:"type:varchar(20);not null"`
	State        stockcount.CountState    `gorm:"type:varchar(20);not null;default:'SCHEDULED';index"`
	WindowStart  time.Time                `gorm:"not null"`
	WindowEnd    time.Time                `gorm:"not null"`
	CreatedBy    uuid.UUID                `gorm:"type:uuid;not null"`
	StartedAt    *time.Time               `gorm:""`
	CompletedAt  *time.Time               `gorm:""`
	CancelledAt  *time.Time               `gorm:""`
	CancelReason string                   `gorm:"type:varchar(500)"`
	Counters     []StockCountCounterModel `gorm:"foreignKey:CountID;references:ID"`
}

// TableName returns the table name for GORM
func (StockCountModel) TableName() string {
	return "stock_counts"
}

// ToDomain converts the persistence model to a domain Count.
func (m *StockCountModel) ToDomain() *stockcount.Count {
	c := &stockcount.Count{
		BaseAggregateRoot: m.AggregateModel.root(),
		Title:             m.Title,
		Type:              m.Type,
		State:             m.State,
		WindowStart:       m.WindowStart,
		WindowEnd:         m.WindowEnd,
		CreatedBy:         m.CreatedBy,
		StartedAt:         m.StartedAt,
		CompletedAt:       m.CompletedAt,
		CancelledAt:       m.CancelledAt,
		CancelReason:      m.CancelReason,
		Counters:          make([]uuid.UUID, len(m.Counters)),
	}
	for i, counter := range m.Counters {
		c.Counters[i] = counter.UserID
	}
	return c
}

// FromDomain populates the persistence model from a domain Count.
func (m *StockCountModel) FromDomain(c *stockcount.Count) {
	m.AggregateModel = aggregateColumns(c.BaseAggregateRoot)
	m.Title = c.Title
	m.Type = c.Type
	m.State = c.State
	m.WindowStart = c.WindowStart
	m.WindowEnd = c.WindowEnd
	m.CreatedBy = c.CreatedBy
	m.StartedAt = c.StartedAt
	m.CompletedAt = c.CompletedAt
	m.CancelledAt = c.CancelledAt
	m.CancelReason = c.CancelReason
	m.Counters = CounterModelsFromDomain(c)
}

// StockCountModelFromDomain creates a new persistence model from a domain Count.
func StockCountModelFromDomain(c *stockcount.Count) *StockCountModel {
	m := &StockCountModel{}
	m.FromDomain(c)
	return m
}

// StockCountCounterModel assigns a user to count a Count. Position keeps assignment order.
type StockCountCounterModel struct {
	CountID  uuid.UUID `gorm:"type:uuid;primaryKey"`
	UserID   uuid.UUID `gorm:"type:uuid;primaryKey"`
	Position int       `gorm:"not null;default:0"`
}

// TableName returns the table name for GORM
func (StockCountCounterModel) TableName() string {
	return "stock_count_counters"
}

// CounterModelsFromDomain lists the counter rows of c in assignment order.
func CounterModelsFromDomain(c *stockcount.Count) []StockCountCounterModel {
	rows := make([]StockCountCounterModel, len(c.Counters))
	for i, userID := range c.Counters {
		rows[i] = StockCountCounterModel{CountID: c.ID, UserID: userID, Position: i}
	}
	return rows
}

// StockCountLineModel is the persistence model for a CountLine.
type StockCountLineModel struct {
	ID                   uuid.UUID        `gorm:"type:uuid;primary_key"`
	CountID              uuid.UUID        `gorm:"type:uuid;not null;uniqueIndex:idx_stock_count_line,priority:1"`
	ProductID            uuid.UUID        `gorm:"type:uuid;not null;uniqueIndex:idx_stock_count_line,priority:2"`
	SystemQuantity       decimal.Decimal  `gorm:"type:decimal(18,4);not null"`
	PhysicalQuantity     *decimal.Decimal `gorm:"type:decimal(18,4)"`
	Difference           *decimal.Decimal `gorm:"type:decimal(18,4)"`
	CountedBy            *uuid.UUID       `gorm:"type:uuid"`
	CountedAt            *time.Time       `gorm:""`
	RecountRequestedAt   *time.Time       `gorm:""`
	RecountRequestedBy   *uuid.UUID       `gorm:"type:uuid"`
	RecountNote          string           `gorm:"type:varchar(500)"`
	PendingMovementTotal decimal.Decimal  `gorm:"type:decimal(18,4);not null;default:0"`
	Version              int              `gorm:"not null;default:1"`
	CreatedAt            time.Time        `gorm:"not null"`
	UpdatedAt            time.Time        `gorm:"not null"`
}

// TableName returns the table name for GORM
func (StockCountLineModel) TableName() string {
	return "stock_count_lines"
}

// ToDomain converts the persistence model to a domain CountLine.
func (m *StockCountLineModel) ToDomain() *stockcount.CountLine {
	return &stockcount.CountLine{
		ID:                   m.ID,
		CountID:              m.CountID,
		ProductID:            m.ProductID,
		SystemQuantity:       m.SystemQuantity,
		PhysicalQuantity:     m.PhysicalQuantity,
		Difference:           m.Difference,
		CountedBy:            m.CountedBy,
		CountedAt:            m.CountedAt,
		RecountRequestedAt:   m.RecountRequestedAt,
		RecountRequestedBy:   m.RecountRequestedBy,
		RecountNote:          m.RecountNote,
		PendingMovementTotal: m.PendingMovementTotal,
		Version:              m.Version,
		CreatedAt:            m.CreatedAt,
		UpdatedAt:            m.UpdatedAt,
	}
}

// FromDomain populates the persistence model from a domain CountLine.
func (m *StockCountLineModel) FromDomain(l *stockcount.CountLine) {
	m.ID = l.ID
	m.CountID = l.CountID
	m.ProductID = l.ProductID
	m.SystemQuantity = l.SystemQuantity
	m.PhysicalQuantity = l.PhysicalQuantity
	m.Difference = l.Difference
	m.CountedBy = l.CountedBy
	m.CountedAt = l.CountedAt
	m.RecountRequestedAt = l.RecountRequestedAt
	m.RecountRequestedBy = l.RecountRequestedBy
	m.RecountNote = l.RecountNote
	m.PendingMovementTotal = l.PendingMovementTotal
	m.Version = l.Version
	m.CreatedAt = l.CreatedAt
	m.UpdatedAt = l.UpdatedAt
}

// StockCountLineModelFromDomain creates a new persistence model from a domain CountLine.
func StockCountLineModelFromDomain(l *stockcount.CountLine) *StockCountLineModel {
	m := &StockCountLineModel{}
	m.FromDomain(l)
	return m
}

// StockCountAdjustmentModel is the persistence model for a PendingAdjustment.
type StockCountAdjustmentModel struct {
	ID               uuid.UUID                   `gorm:"type:uuid;primary_key"`
	CountID          uuid.UUID                   `gorm:"type:uuid;not null;index:idx_stock_count_adjustment_line,priority:1"`
	ProductID        uuid.UUID                   `gorm:"type:uuid;not null;index:idx_stock_count_adjustment_line,priority:2"`
	Kind             stockcount.AdjustmentKind   `gorm:"type:varchar(30);not null"`
	SystemQuantity   decimal.Decimal             `gorm:"type:decimal(18,4);not null"`
	PhysicalQuantity decimal.Decimal             `gorm:"type:decimal(18,4);not null"`
	ProposedQuantity decimal.Decimal             `gorm:"type:decimal(18,4);not null"`
	Reason           string                      `gorm:"type:text;not null"`
	CreatedBy        uuid.UUID                   `gorm:"type:uuid;not null;index"`
	Status           stockcount.AdjustmentStatus `gorm:"type:varchar(20);not null;default:'PENDING';index"`
	AppliedAt        *time.Time                  `gorm:""`
	RejectedAt       *time.Time                  `gorm:""`
	RejectedBy       *uuid.UUID                  `gorm:"type:uuid"`
	RejectionNote    string                      `gorm:"type:varchar(500)"`
	Version          int                         `gorm:"not null;default:1"`
	CreatedAt        time.Time                   `gorm:"not null;index"`
	UpdatedAt        time.Time                   `gorm:"not null"`
}

// TableName returns the table name for GORM
func (StockCountAdjustmentModel) TableName() string {
	return "stock_count_adjustments"
}

// ToDomain converts the persistence model to a domain PendingAdjustment.
func (m *StockCountAdjustmentModel) ToDomain() *stockcount.PendingAdjustment {
	return &stockcount.PendingAdjustment{
		ID:               m.ID,
		CountID:          m.CountID,
		ProductID:        m.ProductID,
		Kind:             m.Kind,
		SystemQuantity:   m.SystemQuantity,
		PhysicalQuantity: m.PhysicalQuantity,
		ProposedQuantity: m.ProposedQuantity,
		Reason:           m.Reason,
		CreatedBy:        m.CreatedBy,
		Status:           m.Status,
		AppliedAt:        m.AppliedAt,
		RejectedAt:       m.RejectedAt,
		RejectedBy:       m.RejectedBy,
		RejectionNote:    m.RejectionNote,
		Version:          m.Version,
		CreatedAt:        m.CreatedAt,
		UpdatedAt:        m.UpdatedAt,
	}
}

// FromDomain populates the persistence model from a domain PendingAdjustment.
func (m *StockCountAdjustmentModel) FromDomain(a *stockcount.PendingAdjustment) {
	m.ID = a.ID
	m.CountID = a.CountID
	m.ProductID = a.ProductID
	m.Kind = a.Kind
	m.SystemQuantity = a.SystemQuantity
	m.PhysicalQuantity = a.PhysicalQuantity
	m.ProposedQuantity = a.ProposedQuantity
	m.Reason = a.Reason
	m.CreatedBy = a.CreatedBy
	m.Status = a.Status
	m.AppliedAt = a.AppliedAt
	m.RejectedAt = a.RejectedAt
	m.RejectedBy = a.RejectedBy
	m.RejectionNote = a.RejectionNote
	m.Version = a.Version
	m.CreatedAt = a.CreatedAt
	m.UpdatedAt = a.UpdatedAt
}

// StockCountAdjustmentModelFromDomain creates a new persistence model from a domain PendingAdjustment.
func StockCountAdjustmentModelFromDomain(a *stockcount.PendingAdjustment) *StockCountAdjustmentModel {
	m := &StockCountAdjustmentModel{}
	m.FromDomain(a)
	return m
}

// StockCountMovementModel is the persistence model for a post-cutoff Movement.
type StockCountMovementModel struct {
	ID          uuid.UUID               `gorm:"type:uuid;primary_key"`
	CountID     uuid.UUID               `gorm:"type:uuid;not null;index:idx_stock_count_movement_line,priority:1"`
	ProductID   uuid.UUID               `gorm:"type:uuid;not null;index:idx_stock_count_movement_line,priority:2"`
	Kind        stockcount.MovementKind `gorm:"type:varchar(20);not null"`
	Delta       decimal.Decimal         `gorm:"type:decimal(18,4);not null"`
	Reference   string                  `gorm:"type:varchar(100)"`
	Processed   bool                    `gorm:"not null;default:false;index:idx_stock_count_movement_line,priority:3"`
	ProcessedAt *time.Time              `gorm:""`
	ProcessedBy *uuid.UUID              `gorm:"type:uuid"`
	OccurredAt  time.Time               `gorm:"not null"`
	CreatedAt   time.Time               `gorm:"not null"`
}

// TableName returns the table name for GORM
func (StockCountMovementModel) TableName() string {
	return "stock_count_movements"
}

// ToDomain converts the persistence model to a domain Movement.
func (m *StockCountMovementModel) ToDomain() *stockcount.Movement {
	return &stockcount.Movement{
		ID:          m.ID,
		CountID:     m.CountID,
		ProductID:   m.ProductID,
		Kind:        m.Kind,
		Delta:       m.Delta,
		Reference:   m.Reference,
		Processed:   m.Processed,
		ProcessedAt: m.ProcessedAt,
		ProcessedBy: m.ProcessedBy,
		OccurredAt:  m.OccurredAt,
		CreatedAt:   m.CreatedAt,
	}
}

// FromDomain populates the persistence model from a domain Movement.
func (m *StockCountMovementModel) FromDomain(mv *stockcount.Movement) {
	m.ID = mv.ID
	m.CountID = mv.CountID
	m.ProductID = mv.ProductID
	m.Kind = mv.Kind
	m.Delta = mv.Delta
	m.Reference = mv.Reference
	m.Processed = mv.Processed
	m.ProcessedAt = mv.ProcessedAt
	m.ProcessedBy = mv.ProcessedBy
	m.OccurredAt = mv.OccurredAt
	m.CreatedAt = mv.CreatedAt
}

// StockCountMovementModelFromDomain creates a new persistence model from a domain Movement.
func StockCountMovementModelFromDomain(mv *stockcount.Movement) *StockCountMovementModel {
	m := &StockCountMovementModel{}
	m.FromDomain(mv)
	return m
}
