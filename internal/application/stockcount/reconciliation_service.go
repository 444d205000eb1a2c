package stockcount

import (
	"context"
	"time"

	"github.com/erp/stockcount/internal/domain/shared"
	"github.com/erp/stockcount/internal/domain/stockcount"
	"github.com/erp/stockcount/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ReconciliationService owns the post-cutoff movement ledger and folds it into
// count lines on demand.
type ReconciliationService struct {
	txScope  TransactionScope
	locker   CountLocker
	eventBus shared.EventPublisher
	metrics  *telemetry.ReconciliationMetrics
	logger   *zap.Logger
	now      func() time.Time
}

// ReconciliationServiceOption configures a ReconciliationService
type ReconciliationServiceOption func(*ReconciliationService)

// WithReconciliationMetrics records movement and merge metrics
func WithReconciliationMetrics(m *telemetry.ReconciliationMetrics) ReconciliationServiceOption {
	return func(s *ReconciliationService) {
		s.metrics = m
	}
}

// WithReconciliationClock replaces the time source used for processed-at
func WithReconciliationClock(now func() time.Time) ReconciliationServiceOption {
	return func(s *ReconciliationService) {
		s.now = now
	}
}

// NewReconciliationService creates a new ReconciliationService
func NewReconciliationService(
	txScope TransactionScope,
	locker CountLocker,
	eventBus shared.EventPublisher,
	logger *zap.Logger,
	opts ...ReconciliationServiceOption,
) *ReconciliationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &ReconciliationService{
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

// RecordMovement appends an unprocessed movement and refreshes the line's
// running total. The snapshot is not touched.
func (s *ReconciliationService) RecordMovement(ctx context.Context, req RecordMovementRequest) (uuid.UUID, error) {
	var id uuid.UUID
	err := withLock(ctx, s.locker, s.logger, CountLockKey(req.CountID), func() error {
		return s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
			if err := requireInProgress(ctx, repos, req.CountID); err != nil {
				return err
			}
			line, err := repos.LineRepo().FindByCountAndProduct(ctx, req.CountID, req.ProductID)
			if err != nil {
				return notFoundAs(err, "count line")
			}

			movement, err := stockcount.NewMovement(req.CountID, req.ProductID, req.Kind, req.Delta, req.Reference)
			if err != nil {
				return err
			}
			if err := repos.MovementRepo().Create(ctx, movement); err != nil {
				return err
			}

			total, err := repos.MovementRepo().SumUnprocessed(ctx, req.CountID, req.ProductID)
			if err != nil {
				return err
			}
			line.SetPendingMovementTotal(total)
			if err := repos.LineRepo().SaveWithLock(ctx, line); err != nil {
				return err
			}

			id = movement.ID
			return nil
		})
	})
	if err != nil {
		return uuid.Nil, err
	}

	s.metrics.RecordMovement(ctx, string(req.Kind))
	s.logger.Debug("Post-cutoff movement recorded",
		zap.String("movement_id", id.String()),
		zap.String("count_id", req.CountID.String()),
		zap.String("product_id", req.ProductID.String()),
		zap.String("kind", string(req.Kind)),
		zap.String("delta", req.Delta.String()))
	return id, nil
}

// Merge folds every unprocessed movement of a line into its system quantity.
// Either all summed movements are marked processed and the line updated, or nothing changes.
func (s *ReconciliationService) Merge(ctx context.Context, countID, productID, userID uuid.UUID) (*MergeResult, error) {
	ctx, span := telemetry.StartLineSpan(ctx, "merge", countID, productID)
	defer span.End()

	var result *MergeResult
	err := withLock(ctx, s.locker, s.logger, CountLockKey(countID), func() error {
		var err error
		result, err = s.mergeLine(ctx, countID, productID, userID)
		return err
	})
	if err != nil {
		telemetry.RecordError(span, err)
		s.metrics.RecordMerge(ctx, 0, err)
		return nil, err
	}

	s.metrics.RecordMerge(ctx, result.MovementsFolded, nil)
	telemetry.SetOK(span)
	return result, nil
}

// MergeMany merges every line with unprocessed movements, optionally limited to
// productIDs. Per-line failures are collected; the batch fails only when lines
// were attempted and none succeeded.
func (s *ReconciliationService) MergeMany(ctx context.Context, countID uuid.UUID, productIDs []uuid.UUID, userID uuid.UUID) (*MergeManyResult, error) {
	ctx, span := telemetry.StartCountSpan(ctx, "merge_many", countID)
	defer span.End()

	result := &MergeManyResult{
		Results: make([]MergeResult, 0),
		Errors:  make([]LineMergeError, 0),
	}

	err := withLock(ctx, s.locker, s.logger, CountLockKey(countID), func() error {
		var lines []stockcount.CountLine
		err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
			if err := requireInProgress(ctx, repos, countID); err != nil {
				return err
			}
			var err error
			lines, err = repos.LineRepo().FindWithUnprocessedMovements(ctx, countID, productIDs)
			return err
		})
		if err != nil {
			return err
		}

		for _, line := range lines {
			merged, err := s.mergeLine(ctx, countID, line.ProductID, userID)
			if err != nil {
				s.logger.Warn("Line merge failed",
					zap.String("count_id", countID.String()),
					zap.String("product_id", line.ProductID.String()),
					zap.Error(err))
				s.metrics.RecordMerge(ctx, 0, err)
				result.Errors = append(result.Errors, LineMergeError{
					ProductID: line.ProductID,
					Err:       err,
					Message:   err.Error(),
				})
				continue
			}
			s.metrics.RecordMerge(ctx, merged.MovementsFolded, nil)
			result.Results = append(result.Results, *merged)
		}
		return nil
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	if len(result.Results) == 0 && len(result.Errors) > 0 {
		err := shared.NewFatal("Merge failed for every line", result.Errors[0].Err)
		telemetry.RecordError(span, err)
		return result, err
	}

	span.SetAttributes(
		telemetry.AttrMergedLines.Int(len(result.Results)),
		telemetry.AttrFailedLines.Int(len(result.Errors)))
	telemetry.SetOK(span)
	return result, nil
}

// ListMovements returns the movements of a line, newest first
func (s *ReconciliationService) ListMovements(ctx context.Context, countID, productID uuid.UUID, onlyUnprocessed bool) ([]MovementView, error) {
	var movements []stockcount.Movement
	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		var err error
		if onlyUnprocessed {
			movements, err = repos.MovementRepo().FindUnprocessed(ctx, countID, productID)
		} else {
			movements, err = repos.MovementRepo().FindByLine(ctx, countID, productID)
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return ToMovementViews(movements), nil
}

// mergeLine runs one line merge in its own transaction. The caller holds the count lock.
func (s *ReconciliationService) mergeLine(ctx context.Context, countID, productID, userID uuid.UUID) (*MergeResult, error) {
	var result MergeResult
	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		if err := requireInProgress(ctx, repos, countID); err != nil {
			return err
		}
		line, err := repos.LineRepo().FindByCountAndProduct(ctx, countID, productID)
		if err != nil {
			return notFoundAs(err, "count line")
		}

		movements, err := repos.MovementRepo().FindUnprocessed(ctx, countID, productID)
		if err != nil {
			return err
		}
		result = MergeResult{ProductID: productID, NewSystemQty: line.SystemQuantity}
		if len(movements) == 0 {
			return nil
		}

		now := s.now()
		ids := make([]uuid.UUID, len(movements))
		for i := range movements {
			if err := movements[i].MarkProcessed(now, userID); err != nil {
				return err
			}
			ids[i] = movements[i].ID
		}
		if err := repos.MovementRepo().MarkProcessed(ctx, ids, now, userID); err != nil {
			return err
		}

		line.FoldMovements(stockcount.SumDeltas(movements))
		if err := repos.LineRepo().SaveWithLock(ctx, line); err != nil {
			return err
		}

		result.MovementsFolded = len(movements)
		result.NewSystemQty = line.SystemQuantity
		return nil
	})
	if err != nil {
		return nil, shared.AsFatal("Merge failed, nothing changed", err)
	}

	if result.MovementsFolded > 0 {
		s.publish(ctx, stockcount.NewMovementsMergedEvent(countID, productID, result.MovementsFolded, result.NewSystemQty, userID))
		s.logger.Info("Post-cutoff movements merged",
			zap.String("count_id", countID.String()),
			zap.String("product_id", productID.String()),
			zap.Int("movements_folded", result.MovementsFolded),
			zap.String("new_system_qty", result.NewSystemQty.String()))
	}
	return &result, nil
}

func (s *ReconciliationService) publish(ctx context.Context, events ...shared.DomainEvent) {
	if s.eventBus == nil {
		return
	}
	if err := s.eventBus.Publish(ctx, events...); err != nil {
		s.logger.Warn("Failed to publish reconciliation events", zap.Error(err))
	}
}
