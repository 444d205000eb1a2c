package stockcount

import (
	"time"

	"github.com/erp/stockcount/internal/domain/stockcount"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ===================== Request DTOs =====================

// AdjustmentRequest is the payload of both create and amend
type AdjustmentRequest struct {
	CountID          uuid.UUID                 `json:"count_id" validate:"required"`
	ProductID        uuid.UUID                 `json:"product_id" validate:"required"`
	Kind             stockcount.AdjustmentKind `json:"kind"`
	SystemQuantity   decimal.Decimal           `json:"system_quantity" validate:"gte=0"`
	PhysicalQuantity decimal.Decimal           `json:"physical_quantity" validate:"gte=0"`
	ProposedQuantity *decimal.Decimal          `json:"proposed_quantity,omitempty"`
	Reason           string                    `json:"reason"`
	UserID           uuid.UUID                 `json:"user_id" validate:"required"`
}

func (r AdjustmentRequest) toDraft() stockcount.AdjustmentDraft {
	return stockcount.AdjustmentDraft{
		CountID:          r.CountID,
		ProductID:        r.ProductID,
		Kind:             r.Kind,
		SystemQuantity:   r.SystemQuantity,
		PhysicalQuantity: r.PhysicalQuantity,
		ProposedQuantity: r.ProposedQuantity,
		Reason:           r.Reason,
		CreatedBy:        r.UserID,
	}
}

// RecordMovementRequest appends a post-cutoff movement to a line
type RecordMovementRequest struct {
	CountID   uuid.UUID               `json:"count_id" validate:"required"`
	ProductID uuid.UUID               `json:"product_id" validate:"required"`
	Kind      stockcount.MovementKind `json:"kind"`
	Delta     decimal.Decimal         `json:"delta"`
	Reference string                  `json:"reference,omitempty" validate:"max=100"`
}

// ScheduleCountRequest creates a count and one line per product
type ScheduleCountRequest struct {
	Title       string               `json:"title" validate:"required,max=200"`
	Type        stockcount.CountType `json:"type" validate:"required"`
	WindowStart time.Time            `json:"window_start" validate:"required"`
	WindowEnd   time.Time            `json:"window_end"`
	ProductIDs  []uuid.UUID          `json:"product_ids" validate:"required,min=1"`
	Counters    []uuid.UUID          `json:"counters"`
	CreatedBy   uuid.UUID            `json:"created_by" validate:"required"`
}

// RecordCountRequest stores a physical quantity for a line
type RecordCountRequest struct {
	CountID          uuid.UUID       `json:"count_id" validate:"required"`
	ProductID        uuid.UUID       `json:"product_id" validate:"required"`
	PhysicalQuantity decimal.Decimal `json:"physical_quantity" validate:"gte=0"`
	UserID           uuid.UUID       `json:"user_id" validate:"required"`
}

// ===================== Response DTOs =====================

// AdjustmentView is an adjustment joined with display data
type AdjustmentView struct {
	ID               uuid.UUID                   `json:"id"`
	CountID          uuid.UUID                   `json:"count_id"`
	ProductID        uuid.UUID                   `json:"product_id"`
	ProductCode      string                      `json:"product_code"`
	ProductName      string                      `json:"product_name"`
	Kind             stockcount.AdjustmentKind   `json:"kind"`
	SystemQuantity   decimal.Decimal             `json:"system_quantity"`
	PhysicalQuantity decimal.Decimal             `json:"physical_quantity"`
	ProposedQuantity decimal.Decimal             `json:"proposed_quantity"`
	NetImpact        decimal.Decimal             `json:"net_impact"`
	Reason           string                      `json:"reason"`
	CreatedBy        uuid.UUID                   `json:"created_by"`
	CreatedByName    string                      `json:"created_by_name"`
	Status           stockcount.AdjustmentStatus `json:"status"`
	AppliedAt        *time.Time                  `json:"applied_at,omitempty"`
	CreatedAt        time.Time                   `json:"created_at"`
	UpdatedAt        time.Time                   `json:"updated_at"`
}

// SummaryView reports the state of a count's adjustment ledger
type SummaryView struct {
	CountID            uuid.UUID       `json:"count_id"`
	PendingCount       int             `json:"pending_count"`
	AppliedCount       int             `json:"applied_count"`
	RejectedCount      int             `json:"rejected_count"`
	NetImpact          decimal.Decimal `json:"net_impact"`
	WouldGoNegative    bool            `json:"would_go_negative"`
	HasPendingRecounts bool            `json:"has_pending_recounts"`
	ReadyToCommit      bool            `json:"ready_to_commit"`
}

// ToSummaryView converts a domain summary
func ToSummaryView(s stockcount.Summary) SummaryView {
	return SummaryView{
		CountID:            s.CountID,
		PendingCount:       s.PendingCount,
		AppliedCount:       s.AppliedCount,
		RejectedCount:      s.RejectedCount,
		NetImpact:          s.NetImpact,
		WouldGoNegative:    s.WouldGoNegative,
		HasPendingRecounts: s.HasPendingRecounts,
		ReadyToCommit:      s.ReadyToCommit(),
	}
}

// MovementView is a post-cutoff movement as shown to operators
type MovementView struct {
	ID          uuid.UUID               `json:"id"`
	Kind        stockcount.MovementKind `json:"kind"`
	Delta       decimal.Decimal         `json:"delta"`
	Reference   string                  `json:"reference,omitempty"`
	Processed   bool                    `json:"processed"`
	ProcessedAt *time.Time              `json:"processed_at,omitempty"`
	ProcessedBy *uuid.UUID              `json:"processed_by,omitempty"`
	OccurredAt  time.Time               `json:"occurred_at"`
}

func ToMovementViews(ms []stockcount.Movement) []MovementView {
	views := make([]MovementView, len(ms))
	for i, m := range ms {
		views[i] = MovementView{
			ID:          m.ID,
			Kind:        m.Kind,
			Delta:       m.Delta,
			Reference:   m.Reference,
			Processed:   m.Processed,
			ProcessedAt: m.ProcessedAt,
			ProcessedBy: m.ProcessedBy,
			OccurredAt:  m.OccurredAt,
		}
	}
	return views
}

// MergeResult is the outcome of folding one line's movements
type MergeResult struct {
	ProductID       uuid.UUID       `json:"product_id"`
	MovementsFolded int             `json:"movements_folded"`
	NewSystemQty    decimal.Decimal `json:"new_system_qty"`
}

// LineMergeError records why one line of a batch merge failed
type LineMergeError struct {
	ProductID uuid.UUID `json:"product_id"`
	Err       error     `json:"-"`
	Message   string    `json:"message"`
}

// MergeManyResult aggregates a batch merge
type MergeManyResult struct {
	Results []MergeResult    `json:"results"`
	Errors  []LineMergeError `json:"errors"`
}

// CommitResult is returned by a successful commit
type CommitResult struct {
	Applied      bool `json:"applied"`
	AppliedCount int  `json:"applied_count"`
}

// CountResponse describes a count
type CountResponse struct {
	ID           uuid.UUID             `json:"id"`
	Title        string                `json:"title"`
	Type         stockcount.CountType  `json:"type"`
	State        stockcount.CountState `json:"state"`
	WindowStart  time.Time             `json:"window_start"`
	WindowEnd    time.Time             `json:"window_end"`
	CreatedBy    uuid.UUID             `json:"created_by"`
	Counters     []uuid.UUID           `json:"counters"`
	StartedAt    *time.Time            `json:"started_at,omitempty"`
	CompletedAt  *time.Time            `json:"completed_at,omitempty"`
	CancelledAt  *time.Time            `json:"cancelled_at,omitempty"`
	CancelReason string                `json:"cancel_reason,omitempty"`
	Version      int                   `json:"version"`
	CreatedAt    time.Time             `json:"created_at"`
}

func ToCountResponse(c *stockcount.Count) CountResponse {
	return CountResponse{
		ID:           c.ID,
		Title:        c.Title,
		Type:         c.Type,
		State:        c.State,
		WindowStart:  c.WindowStart,
		WindowEnd:    c.WindowEnd,
		CreatedBy:    c.CreatedBy,
		Counters:     append([]uuid.UUID(nil), c.Counters...),
		StartedAt:    c.StartedAt,
		CompletedAt:  c.CompletedAt,
		CancelledAt:  c.CancelledAt,
		CancelReason: c.CancelReason,
		Version:      c.Version,
		CreatedAt:    c.CreatedAt,
	}
}

// CountLineView is a count line joined with product display data
type CountLineView struct {
	ID                   uuid.UUID        `json:"id"`
	ProductID            uuid.UUID        `json:"product_id"`
	ProductCode          string           `json:"product_code"`
	ProductName          string           `json:"product_name"`
	SystemQuantity       decimal.Decimal  `json:"system_quantity"`
	PhysicalQuantity     *decimal.Decimal `json:"physical_quantity,omitempty"`
	Difference           *decimal.Decimal `json:"difference,omitempty"`
	CountedBy            *uuid.UUID       `json:"counted_by,omitempty"`
	CountedAt            *time.Time       `json:"counted_at,omitempty"`
	RecountRequested     bool             `json:"recount_requested"`
	RecountNote          string           `json:"recount_note,omitempty"`
	PendingMovementTotal decimal.Decimal  `json:"pending_movement_total"`
}

// ProgressResponse reports how far counting has got
type ProgressResponse struct {
	CountID         uuid.UUID `json:"count_id"`
	TotalLines      int       `json:"total_lines"`
	CountedLines    int       `json:"counted_lines"`
	DifferenceLines int       `json:"difference_lines"`
	RecountLines    int       `json:"recount_lines"`
	Percent         float64   `json:"percent"`
}
