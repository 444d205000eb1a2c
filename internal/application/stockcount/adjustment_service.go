package stockcount

import (
	"context"
	"errors"

	"github.com/erp/stockcount/internal/domain/shared"
	"github.com/erp/stockcount/internal/domain/stockcount"
	"github.com/erp/stockcount/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// AdjustmentService manages the pending adjustment ledger. Nothing it does
// touches on-hand stock.
type AdjustmentService struct {
	txScope   TransactionScope
	locker    CountLocker
	validator *AdjustmentValidator
	products  stockcount.ProductStockRepository
	users     stockcount.UserDirectory
	metrics   *telemetry.ReconciliationMetrics
	logger    *zap.Logger
}

// AdjustmentServiceOption configures an AdjustmentService
type AdjustmentServiceOption func(*AdjustmentService)

// WithAdjustmentLocker serializes create and amend per line
func WithAdjustmentLocker(locker CountLocker) AdjustmentServiceOption {
	return func(s *AdjustmentService) {
		s.locker = locker
	}
}

// WithAdjustmentMetrics records ledger writes
func WithAdjustmentMetrics(m *telemetry.ReconciliationMetrics) AdjustmentServiceOption {
	return func(s *AdjustmentService) {
		s.metrics = m
	}
}

// WithUserDirectory resolves creator names on read paths
func WithUserDirectory(users stockcount.UserDirectory) AdjustmentServiceOption {
	return func(s *AdjustmentService) {
		s.users = users
	}
}

// NewAdjustmentService creates a new AdjustmentService
func NewAdjustmentService(
	txScope TransactionScope,
	validator *AdjustmentValidator,
	products stockcount.ProductStockRepository,
	logger *zap.Logger,
	opts ...AdjustmentServiceOption,
) *AdjustmentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &AdjustmentService{
		txScope:   txScope,
		validator: validator,
		products:  products,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ===================== Command Methods =====================

// Create validates and inserts a Pending adjustment. The count must be
// InProgress and the product must be one of its lines.
func (s *AdjustmentService) Create(ctx context.Context, req AdjustmentRequest) (uuid.UUID, error) {
	ctx, span := telemetry.StartLineSpan(ctx, "create_adjustment", req.CountID, req.ProductID)
	defer span.End()

	var id uuid.UUID
	err := withLock(ctx, s.locker, s.logger, LineLockKey(req.CountID, req.ProductID), func() error {
		return s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
			if err := requireInProgress(ctx, repos, req.CountID); err != nil {
				return err
			}
			if _, err := repos.LineRepo().FindByCountAndProduct(ctx, req.CountID, req.ProductID); err != nil {
				return notFoundAs(err, "count line")
			}

			if err := s.validator.Validate(ctx, repos.AdjustmentRepo(), req, uuid.Nil); err != nil {
				return err
			}

			open, err := repos.AdjustmentRepo().FindOpenForLine(ctx, req.CountID, req.ProductID)
			switch {
			case err == nil:
				return shared.NewStateConflict(shared.CodeInvalidState,
					"A pending adjustment already exists for this product, amend "+open.ID.String()+" instead")
			case !errors.Is(err, shared.ErrNotFound):
				return err
			}

			adjustment := stockcount.NewPendingAdjustment(req.toDraft())
			if err := repos.AdjustmentRepo().Create(ctx, adjustment); err != nil {
				return err
			}
			id = adjustment.ID
			return nil
		})
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return uuid.Nil, err
	}

	s.metrics.RecordAdjustmentWrite(ctx, "create", string(req.Kind))
	s.logger.Info("Pending adjustment created",
		zap.String("adjustment_id", id.String()),
		zap.String("count_id", req.CountID.String()),
		zap.String("product_id", req.ProductID.String()),
		zap.String("kind", string(req.Kind)))
	telemetry.SetOK(span)
	return id, nil
}

// Amend overwrites the mutable fields of a Pending adjustment
func (s *AdjustmentService) Amend(ctx context.Context, id uuid.UUID, req AdjustmentRequest) error {
	ctx, span := telemetry.StartAdjustmentSpan(ctx, "amend_adjustment", id)
	defer span.End()

	err := withLock(ctx, s.locker, s.logger, LineLockKey(req.CountID, req.ProductID), func() error {
		return s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
			adjustment, err := repos.AdjustmentRepo().FindByID(ctx, id)
			if err != nil {
				return notFoundAs(err, "adjustment")
			}
			if err := requireInProgress(ctx, repos, adjustment.CountID); err != nil {
				return err
			}
			if !adjustment.IsPending() {
				return shared.NewStateConflict(shared.CodeInvalidState, "Only pending adjustments can be amended, adjustment is "+adjustment.Status.String())
			}
			if adjustment.CountID != req.CountID || adjustment.ProductID != req.ProductID {
				return shared.NewMismatch("Adjustment belongs to a different count or product")
			}

			if err := s.validator.Validate(ctx, repos.AdjustmentRepo(), req, adjustment.ID); err != nil {
				return err
			}

			if err := adjustment.Amend(req.toDraft()); err != nil {
				return err
			}
			return repos.AdjustmentRepo().SaveWithLock(ctx, adjustment)
		})
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return err
	}

	s.metrics.RecordAdjustmentWrite(ctx, "amend", string(req.Kind))
	s.logger.Info("Pending adjustment amended", zap.String("adjustment_id", id.String()))
	telemetry.SetOK(span)
	return nil
}

// Delete hard-deletes a Pending adjustment. This is destructive: the row is
// gone and cannot be recovered.
func (s *AdjustmentService) Delete(ctx context.Context, id uuid.UUID) error {
	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		adjustment, err := repos.AdjustmentRepo().FindByID(ctx, id)
		if err != nil {
			return notFoundAs(err, "adjustment")
		}
		if err := requireInProgress(ctx, repos, adjustment.CountID); err != nil {
			return err
		}
		if !adjustment.IsPending() {
			return shared.NewStateConflict(shared.CodeInvalidState, "Only pending adjustments can be deleted, adjustment is "+adjustment.Status.String())
		}
		return repos.AdjustmentRepo().DeletePending(ctx, id)
	})
	if err != nil {
		return err
	}

	s.metrics.RecordAdjustmentWrite(ctx, "delete", "")
	s.logger.Info("Pending adjustment deleted", zap.String("adjustment_id", id.String()))
	return nil
}

// Reject closes a Pending adjustment without applying it
func (s *AdjustmentService) Reject(ctx context.Context, id, userID uuid.UUID, note string) error {
	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		adjustment, err := repos.AdjustmentRepo().FindByID(ctx, id)
		if err != nil {
			return notFoundAs(err, "adjustment")
		}
		if err := requireInProgress(ctx, repos, adjustment.CountID); err != nil {
			return err
		}
		if err := adjustment.Reject(userID, note); err != nil {
			return err
		}
		return repos.AdjustmentRepo().SaveWithLock(ctx, adjustment)
	})
	if err != nil {
		return err
	}

	s.metrics.RecordAdjustmentWrite(ctx, "reject", "")
	s.logger.Info("Pending adjustment rejected",
		zap.String("adjustment_id", id.String()),
		zap.String("rejected_by", userID.String()))
	return nil
}

// ===================== Query Methods =====================

// ListByCount returns every adjustment of a count, newest first
func (s *AdjustmentService) ListByCount(ctx context.Context, countID uuid.UUID) ([]AdjustmentView, error) {
	var adjustments []stockcount.PendingAdjustment
	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		var err error
		adjustments, err = repos.AdjustmentRepo().FindByCount(ctx, countID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return s.toViews(ctx, adjustments)
}

// ListByProduct returns the adjustments of one line, newest first
func (s *AdjustmentService) ListByProduct(ctx context.Context, countID, productID uuid.UUID) ([]AdjustmentView, error) {
	var adjustments []stockcount.PendingAdjustment
	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		var err error
		adjustments, err = repos.AdjustmentRepo().FindByCountAndProduct(ctx, countID, productID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return s.toViews(ctx, adjustments)
}

// HasPending reports whether the line has a Pending adjustment
func (s *AdjustmentService) HasPending(ctx context.Context, countID, productID uuid.UUID) (bool, error) {
	var has bool
	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		var err error
		has, err = repos.AdjustmentRepo().HasPending(ctx, countID, productID)
		return err
	})
	return has, err
}

// Summarize aggregates the ledger of a count and says whether it can be committed
func (s *AdjustmentService) Summarize(ctx context.Context, countID uuid.UUID) (*SummaryView, error) {
	var summary stockcount.Summary
	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		if _, err := repos.CountRepo().FindByID(ctx, countID); err != nil {
			return notFoundAs(err, "count")
		}
		adjustments, err := repos.AdjustmentRepo().FindByCount(ctx, countID)
		if err != nil {
			return err
		}
		summary = stockcount.Summarize(countID, adjustments)
		return nil
	})
	if err != nil {
		return nil, err
	}

	view := ToSummaryView(summary)
	return &view, nil
}

// ===================== Helpers =====================

func (s *AdjustmentService) toViews(ctx context.Context, adjustments []stockcount.PendingAdjustment) ([]AdjustmentView, error) {
	if len(adjustments) == 0 {
		return []AdjustmentView{}, nil
	}

	productIDs := make([]uuid.UUID, 0, len(adjustments))
	userIDs := make([]uuid.UUID, 0, len(adjustments))
	for _, a := range adjustments {
		productIDs = append(productIDs, a.ProductID)
		userIDs = append(userIDs, a.CreatedBy)
	}

	products := make(map[uuid.UUID]stockcount.ProductStock)
	if s.products != nil {
		found, err := s.products.FindByIDs(ctx, uniqueIDs(productIDs))
		if err != nil {
			return nil, err
		}
		for _, p := range found {
			products[p.ProductID] = p
		}
	}

	names := map[uuid.UUID]string{}
	if s.users != nil {
		resolved, err := s.users.DisplayNames(ctx, uniqueIDs(userIDs))
		if err != nil {
			s.logger.Warn("Failed to resolve user display names", zap.Error(err))
		} else {
			names = resolved
		}
	}

	views := make([]AdjustmentView, len(adjustments))
	for i := range adjustments {
		a := &adjustments[i]
		p := products[a.ProductID]
		views[i] = AdjustmentView{
			ID:               a.ID,
			CountID:          a.CountID,
			ProductID:        a.ProductID,
			ProductCode:      p.Code,
			ProductName:      p.Name,
			Kind:             a.Kind,
			SystemQuantity:   a.SystemQuantity,
			PhysicalQuantity: a.PhysicalQuantity,
			ProposedQuantity: a.ProposedQuantity,
			NetImpact:        a.NetImpact(),
			Reason:           a.Reason,
			CreatedBy:        a.CreatedBy,
			CreatedByName:    names[a.CreatedBy],
			Status:           a.Status,
			AppliedAt:        a.AppliedAt,
			CreatedAt:        a.CreatedAt,
			UpdatedAt:        a.UpdatedAt,
		}
	}
	return views, nil
}
