package stockcount

import (
	"time"

	"github.com/erp/stockcount/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AdjustmentKind is the closed set of corrections a user can propose
type AdjustmentKind string

const (
	// AdjustmentKindSystemToPhysical replaces on-hand with the proposed final quantity
	AdjustmentKindSystemToPhysical AdjustmentKind = "SYSTEM_TO_PHYSICAL"
	// AdjustmentKindRecount asks for the line to be counted again; it blocks commit
	AdjustmentKindRecount AdjustmentKind = "RECOUNT"
	// AdjustmentKindValidated confirms the system quantity; commit leaves on-hand alone
	AdjustmentKindValidated AdjustmentKind = "VALIDATED"
)

func (k AdjustmentKind) IsValid() bool {
	switch k {
	case AdjustmentKindSystemToPhysical, AdjustmentKindRecount, AdjustmentKindValidated:
		return true
	}
	return false
}

func (k AdjustmentKind) String() string {
	return string(k)
}

// RequiresProposedQuantity reports whether the kind needs an explicit final quantity
func (k AdjustmentKind) RequiresProposedQuantity() bool {
	return k == AdjustmentKindSystemToPhysical
}

// AdjustmentStatus is the ledger state of a pending adjustment
type AdjustmentStatus string

const (
	AdjustmentStatusPending  AdjustmentStatus = "PENDING"
	AdjustmentStatusApplied  AdjustmentStatus = "APPLIED"
	AdjustmentStatusRejected AdjustmentStatus = "REJECTED"
)

func (s AdjustmentStatus) IsValid() bool {
	switch s {
	case AdjustmentStatusPending, AdjustmentStatusApplied, AdjustmentStatusRejected:
		return true
	}
	return false
}

func (s AdjustmentStatus) String() string {
	return string(s)
}

func (s AdjustmentStatus) IsTerminal() bool {
	return s == AdjustmentStatusApplied || s == AdjustmentStatusRejected
}

// AdjustmentDraft carries the user-supplied fields of a create or amend
type AdjustmentDraft struct {
	CountID          uuid.UUID
	ProductID        uuid.UUID
	Kind             AdjustmentKind
	SystemQuantity   decimal.Decimal
	PhysicalQuantity decimal.Decimal
	ProposedQuantity *decimal.Decimal
	Reason           string
	CreatedBy        uuid.UUID
}

// ResolvedProposedQuantity returns the explicit proposed quantity, or the
// physical quantity when none was given.
func (d AdjustmentDraft) ResolvedProposedQuantity() decimal.Decimal {
	if d.ProposedQuantity != nil {
		return *d.ProposedQuantity
	}
	return d.PhysicalQuantity
}

// PendingAdjustment is a proposed correction to real stock. It never touches
// on-hand quantity until the count's adjustments are committed.
type PendingAdjustment struct {
	ID               uuid.UUID
	CountID          uuid.UUID
	ProductID        uuid.UUID
	Kind             AdjustmentKind
	SystemQuantity   decimal.Decimal
	PhysicalQuantity decimal.Decimal
	ProposedQuantity decimal.Decimal
	Reason           string
	CreatedBy        uuid.UUID
	Status           AdjustmentStatus
	AppliedAt        *time.Time
	RejectedAt       *time.Time
	RejectedBy       *uuid.UUID
	RejectionNote    string
	Version          int
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// NewPendingAdjustment creates a Pending adjustment from an already validated draft
func NewPendingAdjustment(d AdjustmentDraft) *PendingAdjustment {
	now := time.Now()
	return &PendingAdjustment{
		ID:               uuid.New(),
		CountID:          d.CountID,
		ProductID:        d.ProductID,
		Kind:             d.Kind,
		SystemQuantity:   d.SystemQuantity,
		PhysicalQuantity: d.PhysicalQuantity,
		ProposedQuantity: d.ResolvedProposedQuantity(),
		Reason:           d.Reason,
		CreatedBy:        d.CreatedBy,
		Status:           AdjustmentStatusPending,
		Version:          1,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

// IsPending reports whether the adjustment can still be changed
func (a *PendingAdjustment) IsPending() bool {
	return a.Status == AdjustmentStatusPending
}

// Amend overwrites the mutable fields. ID, creator and created-at are kept.
func (a *PendingAdjustment) Amend(d AdjustmentDraft) error {
	if !a.IsPending() {
		return shared.NewStateConflict(shared.CodeInvalidState, "Only pending adjustments can be amended")
	}
	if d.CountID != a.CountID || d.ProductID != a.ProductID {
		return shared.NewMismatch("Amendment targets a different count or product")
	}

	a.Kind = d.Kind
	a.SystemQuantity = d.SystemQuantity
	a.PhysicalQuantity = d.PhysicalQuantity
	a.ProposedQuantity = d.ResolvedProposedQuantity()
	a.Reason = d.Reason
	a.UpdatedAt = time.Now()
	return nil
}

// MarkApplied moves the adjustment to its terminal Applied state
func (a *PendingAdjustment) MarkApplied(at time.Time) error {
	if !a.IsPending() {
		return shared.NewStateConflict(shared.CodeInvalidState, "Adjustment is already "+a.Status.String())
	}
	a.Status = AdjustmentStatusApplied
	a.AppliedAt = &at
	a.UpdatedAt = at
	return nil
}

// Reject moves the adjustment to its terminal Rejected state
func (a *PendingAdjustment) Reject(by uuid.UUID, note string) error {
	if !a.IsPending() {
		return shared.NewStateConflict(shared.CodeInvalidState, "Adjustment is already "+a.Status.String())
	}
	now := time.Now()
	a.Status = AdjustmentStatusRejected
	a.RejectedAt = &now
	a.RejectedBy = &by
	a.RejectionNote = note
	a.UpdatedAt = now
	return nil
}

// NetImpact is proposed minus system for SystemToPhysical adjustments, zero otherwise
func (a *PendingAdjustment) NetImpact() decimal.Decimal {
	switch a.Kind {
	case AdjustmentKindSystemToPhysical:
		return a.ProposedQuantity.Sub(a.SystemQuantity)
	case AdjustmentKindRecount, AdjustmentKindValidated:
		return decimal.Zero
	}
	return decimal.Zero
}

// WouldGoNegative reports whether applying the adjustment would leave negative stock
func (a *PendingAdjustment) WouldGoNegative() bool {
	return a.ProposedQuantity.IsNegative()
}
