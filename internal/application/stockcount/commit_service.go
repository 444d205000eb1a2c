package stockcount

import (
	"context"
	"fmt"
	"time"

	"github.com/erp/stockcount/internal/domain/shared"
	"github.com/erp/stockcount/internal/domain/stockcount"
	"github.com/erp/stockcount/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CommitService drains a count's Pending adjustments into the stock store.
// It is the only writer of on-hand quantities.
type CommitService struct {
	txScope  TransactionScope
	locker   CountLocker
	eventBus shared.EventPublisher
	metrics  *telemetry.ReconciliationMetrics
	logger   *zap.Logger
	now      func() time.Time
}

// CommitServiceOption configures a CommitService
type CommitServiceOption func(*CommitService)

func WithCommitMetrics(m *telemetry.ReconciliationMetrics) CommitServiceOption {
	return func(s *CommitService) {
		s.metrics = m
	}
}

func WithCommitClock(now func() time.Time) CommitServiceOption {
	return func(s *CommitService) {
		s.now = now
	}
}

// NewCommitService creates a new CommitService
func NewCommitService(
	txScope TransactionScope,
	locker CountLocker,
	eventBus shared.EventPublisher,
	logger *zap.Logger,
	opts ...CommitServiceOption,
) *CommitService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &CommitService{
		txScope:  txScope,
		locker:   locker,
		eventBus: eventBus,
		logger:   logger,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Commit applies every Pending adjustment of the count in one transaction.
// With nothing pending it succeeds with an applied count of zero. Any failure
// while applying rolls everything back and is returned as a fatal error.
func (s *CommitService) Commit(ctx context.Context, countID, userID uuid.UUID) (*CommitResult, error) {
	ctx, span := telemetry.StartCountSpan(ctx, "commit", countID)
	defer span.End()

	start := time.Now()
	var applied []stockcount.AppliedAdjustment

	err := withLock(ctx, s.locker, s.logger, CountLockKey(countID), func() error {
		return s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
			count, err := repos.CountRepo().FindByIDForUpdate(ctx, countID)
			if err != nil {
				return notFoundAs(err, "count")
			}
			if err := count.EnsureInProgress(); err != nil {
				return err
			}

			pending, err := repos.AdjustmentRepo().FindPendingByCount(ctx, countID)
			if err != nil {
				return shared.NewFatal("Failed to load pending adjustments", err)
			}
			if len(pending) == 0 {
				return nil
			}

			if err := checkCommittable(pending); err != nil {
				return err
			}

			applied, err = s.apply(ctx, repos, pending)
			return err
		})
	})

	if err != nil {
		applied = nil
		err = shared.AsFatal("Commit failed, nothing changed", err)
	}
	s.metrics.RecordCommit(ctx, len(applied), time.Since(start), err)
	if err != nil {
		telemetry.RecordError(span, err)
		s.logger.Error("Commit failed, no adjustment was applied",
			zap.String("count_id", countID.String()),
			zap.Error(err))
		return nil, err
	}

	if len(applied) > 0 {
		s.publish(ctx, stockcount.NewAdjustmentsCommittedEvent(countID, userID, applied))
	}
	s.logger.Info("Adjustments committed",
		zap.String("count_id", countID.String()),
		zap.String("committed_by", userID.String()),
		zap.Int("applied_count", len(applied)))
	span.SetAttributes(telemetry.AttrAppliedCount.Int(len(applied)))
	telemetry.SetOK(span)

	return &CommitResult{Applied: true, AppliedCount: len(applied)}, nil
}

// checkCommittable refuses the whole batch if any adjustment cannot be applied
func checkCommittable(pending []stockcount.PendingAdjustment) error {
	for i := range pending {
		a := &pending[i]
		switch a.Kind {
		case stockcount.AdjustmentKindRecount:
			return shared.NewStateConflict(shared.CodeRecountPending,
				fmt.Sprintf("Product %s has a pending recount, resolve it before committing", a.ProductID))
		case stockcount.AdjustmentKindSystemToPhysical, stockcount.AdjustmentKindValidated:
			if a.WouldGoNegative() {
				return shared.NewStateConflict(shared.CodeNegativeResult,
					fmt.Sprintf("Adjustment %s would leave product %s with negative stock", a.ID, a.ProductID))
			}
		default:
			return shared.NewFatal("Unknown adjustment kind in ledger", fmt.Errorf("adjustment %s has kind %q", a.ID, a.Kind))
		}
	}
	return nil
}

func (s *CommitService) apply(ctx context.Context, repos TransactionalRepositories, pending []stockcount.PendingAdjustment) ([]stockcount.AppliedAdjustment, error) {
	productIDs := make([]uuid.UUID, len(pending))
	for i := range pending {
		productIDs[i] = pending[i].ProductID
	}
	products, err := repos.ProductRepo().FindByIDs(ctx, uniqueIDs(productIDs))
	if err != nil {
		return nil, shared.NewFatal("Failed to load products", err)
	}
	byID := make(map[uuid.UUID]*stockcount.ProductStock, len(products))
	for i := range products {
		byID[products[i].ProductID] = &products[i]
	}

	now := s.now()
	applied := make([]stockcount.AppliedAdjustment, 0, len(pending))
	for i := range pending {
		a := &pending[i]
		product, ok := byID[a.ProductID]
		if !ok {
			return nil, shared.NewFatal("Commit aborted", fmt.Errorf("product %s of adjustment %s does not exist", a.ProductID, a.ID))
		}

		before := product.OnHand
		switch a.Kind {
		case stockcount.AdjustmentKindSystemToPhysical:
			product.SetOnHand(a.ProposedQuantity, now)
		case stockcount.AdjustmentKindValidated:
			product.Touch(now)
		case stockcount.AdjustmentKindRecount:
			return nil, shared.NewStateConflict(shared.CodeRecountPending, "Recount adjustments cannot be committed")
		default:
			return nil, shared.NewFatal("Unknown adjustment kind in ledger", fmt.Errorf("adjustment %s has kind %q", a.ID, a.Kind))
		}

		if err := repos.ProductRepo().SaveWithLock(ctx, product); err != nil {
			return nil, shared.NewFatal("Failed to update product stock", err)
		}
		if err := a.MarkApplied(now); err != nil {
			return nil, shared.NewFatal("Failed to mark adjustment applied", err)
		}
		if err := repos.AdjustmentRepo().SaveWithLock(ctx, a); err != nil {
			return nil, shared.NewFatal("Failed to mark adjustment applied", err)
		}

		applied = append(applied, stockcount.AppliedAdjustment{
			AdjustmentID: a.ID,
			ProductID:    a.ProductID,
			Kind:         a.Kind,
			OldOnHand:    before,
			NewOnHand:    product.OnHand,
		})
	}
	return applied, nil
}

func (s *CommitService) publish(ctx context.Context, events ...shared.DomainEvent) {
	if s.eventBus == nil {
		return
	}
	if err := s.eventBus.Publish(ctx, events...); err != nil {
		s.logger.Warn("Failed to publish commit events", zap.Error(err))
	}
}
