package stockcount

import (
	"context"
	"fmt"

	"github.com/erp/stockcount/internal/domain/shared"
	"github.com/erp/stockcount/internal/domain/stockcount"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CountService drives the count lifecycle: scheduling, counting, completion.
type CountService struct {
	txScope  TransactionScope
	locker   CountLocker
	eventBus shared.EventPublisher
	validate *validator.Validate
	logger   *zap.Logger
}

// NewCountService creates a new CountService
func NewCountService(
	txScope TransactionScope,
	locker CountLocker,
	eventBus shared.EventPublisher,
	logger *zap.Logger,
) *CountService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CountService{
		txScope:  txScope,
		locker:   locker,
		eventBus: eventBus,
		validate: newStructValidator(),
		logger:   logger,
	}
}

// ===================== Command Methods =====================

// Schedule creates a count with one line per product, snapshotting current on-hand
func (s *CountService) Schedule(ctx context.Context, req ScheduleCountRequest) (*CountResponse, error) {
	if err := validateStruct(s.validate, req); err != nil {
		return nil, err
	}

	count, err := stockcount.NewCount(req.Title, req.Type, req.WindowStart, req.WindowEnd, req.CreatedBy)
	if err != nil {
		return nil, err
	}
	if len(req.Counters) > 0 {
		if err := count.AssignCounters(req.Counters); err != nil {
			return nil, err
		}
	}

	productIDs := uniqueIDs(req.ProductIDs)
	err = s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		products, err := repos.ProductRepo().FindByIDs(ctx, productIDs)
		if err != nil {
			return err
		}
		if len(products) != len(productIDs) {
			return shared.NewNotFound(fmt.Sprintf("%d of %d products", len(productIDs)-len(products), len(productIDs)))
		}

		if err := repos.CountRepo().Create(ctx, count); err != nil {
			return err
		}

		lines := make([]stockcount.CountLine, len(products))
		for i, p := range products {
			lines[i] = *stockcount.NewCountLine(count.ID, p.ProductID, p.OnHand)
		}
		return repos.LineRepo().CreateBatch(ctx, lines)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Count scheduled",
		zap.String("count_id", count.ID.String()),
		zap.String("type", count.Type.String()),
		zap.Int("lines", len(productIDs)))
	s.publishEvents(ctx, count)

	response := ToCountResponse(count)
	return &response, nil
}

// AssignCounters replaces the counters of a scheduled count
func (s *CountService) AssignCounters(ctx context.Context, countID uuid.UUID, userIDs []uuid.UUID) error {
	return s.mutate(ctx, countID, func(_ TransactionalRepositories, count *stockcount.Count) error {
		return count.AssignCounters(userIDs)
	})
}

// Start moves a count to InProgress and re-captures every line's snapshot from
// the stock store.
func (s *CountService) Start(ctx context.Context, countID uuid.UUID) (*CountResponse, error) {
	count, err := s.mutateReturning(ctx, countID, func(repos TransactionalRepositories, count *stockcount.Count) error {
		if err := count.Start(); err != nil {
			return err
		}
		return refreshSnapshot(ctx, repos, count.ID)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Count started", zap.String("count_id", countID.String()), zap.Int("counters", len(count.Counters)))
	response := ToCountResponse(count)
	return &response, nil
}

// RecordCount stores the physical quantity a user counted for a line
func (s *CountService) RecordCount(ctx context.Context, req RecordCountRequest) error {
	if err := validateStruct(s.validate, req); err != nil {
		return err
	}
	return s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		if err := requireInProgress(ctx, repos, req.CountID); err != nil {
			return err
		}
		line, err := repos.LineRepo().FindByCountAndProduct(ctx, req.CountID, req.ProductID)
		if err != nil {
			return notFoundAs(err, "count line")
		}
		if err := line.RecordCount(req.PhysicalQuantity, req.UserID); err != nil {
			return err
		}
		return repos.LineRepo().SaveWithLock(ctx, line)
	})
}

// RequestRecount flags a line to be counted again
func (s *CountService) RequestRecount(ctx context.Context, countID, productID, userID uuid.UUID, note string) error {
	return s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		if err := requireInProgress(ctx, repos, countID); err != nil {
			return err
		}
		line, err := repos.LineRepo().FindByCountAndProduct(ctx, countID, productID)
		if err != nil {
			return notFoundAs(err, "count line")
		}
		if err := line.RequestRecount(userID, note); err != nil {
			return err
		}
		return repos.LineRepo().SaveWithLock(ctx, line)
	})
}

// Complete back-fills uncounted lines and closes the count. Adjustments still
// Pending stay in the ledger but can no longer be committed.
func (s *CountService) Complete(ctx context.Context, countID uuid.UUID) (*CountResponse, error) {
	var backfilled, leftPending int
	var count *stockcount.Count
	err := withLock(ctx, s.locker, s.logger, CountLockKey(countID), func() error {
		var err error
		count, err = s.mutateReturning(ctx, countID, func(repos TransactionalRepositories, count *stockcount.Count) error {
			lines, err := repos.LineRepo().FindByCount(ctx, countID)
			if err != nil {
				return err
			}
			ptrs := make([]*stockcount.CountLine, len(lines))
			for i := range lines {
				ptrs[i] = &lines[i]
			}

			filled, err := count.Complete(ptrs)
			if err != nil {
				return err
			}
			for _, line := range filled {
				if err := repos.LineRepo().SaveWithLock(ctx, line); err != nil {
					return err
				}
			}
			backfilled = len(filled)

			pending, err := repos.AdjustmentRepo().FindPendingByCount(ctx, countID)
			if err != nil {
				return err
			}
			leftPending = len(pending)
			return nil
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	if leftPending > 0 {
		s.logger.Warn("Count completed with uncommitted adjustments",
			zap.String("count_id", countID.String()),
			zap.Int("pending", leftPending))
	}
	s.logger.Info("Count completed", zap.String("count_id", countID.String()), zap.Int("backfilled", backfilled))
	response := ToCountResponse(count)
	return &response, nil
}

// Cancel abandons a count
func (s *CountService) Cancel(ctx context.Context, countID uuid.UUID, reason string) error {
	return withLock(ctx, s.locker, s.logger, CountLockKey(countID), func() error {
		return s.mutate(ctx, countID, func(_ TransactionalRepositories, count *stockcount.Count) error {
			return count.Cancel(reason)
		})
	})
}

// ===================== Query Methods =====================

// Get loads a count
func (s *CountService) Get(ctx context.Context, countID uuid.UUID) (*CountResponse, error) {
	var count *stockcount.Count
	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		var err error
		count, err = repos.CountRepo().FindByID(ctx, countID)
		return notFoundAs(err, "count")
	})
	if err != nil {
		return nil, err
	}
	response := ToCountResponse(count)
	return &response, nil
}

// ListByState lists counts in a state, newest first
func (s *CountService) ListByState(ctx context.Context, state stockcount.CountState) ([]CountResponse, error) {
	if !state.IsValid() {
		return nil, shared.NewValidationError(shared.CodeInvalidInput, "Unknown count state: "+state.String())
	}
	var counts []stockcount.Count
	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		var err error
		counts, err = repos.CountRepo().FindByState(ctx, state)
		return err
	})
	if err != nil {
		return nil, err
	}
	out := make([]CountResponse, len(counts))
	for i := range counts {
		out[i] = ToCountResponse(&counts[i])
	}
	return out, nil
}

// ListLines returns the lines of a count with product display data
func (s *CountService) ListLines(ctx context.Context, countID uuid.UUID) ([]CountLineView, error) {
	var views []CountLineView
	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		lines, err := repos.LineRepo().FindByCount(ctx, countID)
		if err != nil {
			return err
		}
		ids := make([]uuid.UUID, len(lines))
		for i := range lines {
			ids[i] = lines[i].ProductID
		}
		products, err := repos.ProductRepo().FindByIDs(ctx, ids)
		if err != nil {
			return err
		}
		byID := make(map[uuid.UUID]stockcount.ProductStock, len(products))
		for _, p := range products {
			byID[p.ProductID] = p
		}

		views = make([]CountLineView, len(lines))
		for i := range lines {
			l := &lines[i]
			p := byID[l.ProductID]
			views[i] = CountLineView{
				ID:                   l.ID,
				ProductID:            l.ProductID,
				ProductCode:          p.Code,
				ProductName:          p.Name,
				SystemQuantity:       l.SystemQuantity,
				PhysicalQuantity:     l.PhysicalQuantity,
				Difference:           l.Difference,
				CountedBy:            l.CountedBy,
				CountedAt:            l.CountedAt,
				RecountRequested:     l.RecountRequested(),
				RecountNote:          l.RecountNote,
				PendingMovementTotal: l.PendingMovementTotal,
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return views, nil
}

// Progress reports counted vs. total lines
func (s *CountService) Progress(ctx context.Context, countID uuid.UUID) (*ProgressResponse, error) {
	progress := &ProgressResponse{CountID: countID}
	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		if _, err := repos.CountRepo().FindByID(ctx, countID); err != nil {
			return notFoundAs(err, "count")
		}
		lines, err := repos.LineRepo().FindByCount(ctx, countID)
		if err != nil {
			return err
		}
		progress.TotalLines = len(lines)
		for i := range lines {
			if lines[i].IsCounted() {
				progress.CountedLines++
			}
			if lines[i].HasDifference() {
				progress.DifferenceLines++
			}
			if lines[i].RecountRequested() {
				progress.RecountLines++
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if progress.TotalLines > 0 {
		progress.Percent = float64(progress.CountedLines) / float64(progress.TotalLines) * 100
	}
	return progress, nil
}

// ===================== Helpers =====================

func (s *CountService) mutate(ctx context.Context, countID uuid.UUID, fn func(TransactionalRepositories, *stockcount.Count) error) error {
	_, err := s.mutateReturning(ctx, countID, fn)
	return err
}

// mutateReturning loads the count for update, applies fn, saves with the
// version check and publishes the raised events once the transaction commits.
func (s *CountService) mutateReturning(ctx context.Context, countID uuid.UUID, fn func(TransactionalRepositories, *stockcount.Count) error) (*stockcount.Count, error) {
	var count *stockcount.Count
	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		var err error
		count, err = repos.CountRepo().FindByIDForUpdate(ctx, countID)
		if err != nil {
			return notFoundAs(err, "count")
		}
		if err := fn(repos, count); err != nil {
			return err
		}
		return repos.CountRepo().SaveWithLock(ctx, count)
	})
	if err != nil {
		return nil, err
	}
	s.publishEvents(ctx, count)
	return count, nil
}

func refreshSnapshot(ctx context.Context, repos TransactionalRepositories, countID uuid.UUID) error {
	lines, err := repos.LineRepo().FindByCount(ctx, countID)
	if err != nil {
		return err
	}
	ids := make([]uuid.UUID, len(lines))
	for i := range lines {
		ids[i] = lines[i].ProductID
	}
	products, err := repos.ProductRepo().FindByIDs(ctx, ids)
	if err != nil {
		return err
	}
	onHand := make(map[uuid.UUID]stockcount.ProductStock, len(products))
	for _, p := range products {
		onHand[p.ProductID] = p
	}

	for i := range lines {
		p, ok := onHand[lines[i].ProductID]
		if !ok {
			return shared.NewNotFound("product " + lines[i].ProductID.String())
		}
		if p.OnHand.Equal(lines[i].SystemQuantity) {
			continue
		}
		lines[i].RefreshSnapshot(p.OnHand)
		if err := repos.LineRepo().SaveWithLock(ctx, &lines[i]); err != nil {
			return err
		}
	}
	return nil
}

func (s *CountService) publishEvents(ctx context.Context, count *stockcount.Count) {
	events := count.PullEvents()
	if s.eventBus == nil || len(events) == 0 {
		return
	}
	if err := s.eventBus.Publish(ctx, events...); err != nil {
		s.logger.Warn("Failed to publish count events", zap.String("count_id", count.ID.String()), zap.Error(err))
	}
}
