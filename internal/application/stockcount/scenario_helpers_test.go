package stockcount_test

import (
	"context"
	"sync"
	"testing"
	"time"

	appcount "github.com/erp/stockcount/internal/application/stockcount"
	"github.com/erp/stockcount/internal/domain/shared"
	"github.com/erp/stockcount/internal/domain/stockcount"
	"github.com/erp/stockcount/internal/infrastructure/lock"
	"github.com/erp/stockcount/internal/infrastructure/persistence"
	"github.com/erp/stockcount/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var errInjected = shared.NewDomainError(shared.CodeOptimisticLock, "product was modified by another process")

// recordingPublisher keeps every published event in order
type recordingPublisher struct {
	mu     sync.Mutex
	events []shared.DomainEvent
}

func (p *recordingPublisher) Publish(_ context.Context, events ...shared.DomainEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, events...)
	return nil
}

func (p *recordingPublisher) ofType(eventType string) []shared.DomainEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []shared.DomainEvent
	for _, e := range p.events {
		if e.EventType() == eventType {
			out = append(out, e)
		}
	}
	return out
}

type harness struct {
	t              *testing.T
	db             *gorm.DB
	events         *recordingPublisher
	counts         *appcount.CountService
	adjustments    *appcount.AdjustmentService
	reconciliation *appcount.ReconciliationService
	commits        *appcount.CommitService
	counter        uuid.UUID
}

// newHarness wires the services over an in-memory sqlite database. wrap, when
// given, decorates the transaction scope used by the commit and merge paths.
func newHarness(t *testing.T, wrap func(appcount.TransactionScope) appcount.TransactionScope) *harness {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(models.All()...))

	var scope appcount.TransactionScope = persistence.NewGormTransactionScope(db)
	writeScope := scope
	if wrap != nil {
		writeScope = wrap(scope)
	}

	locker := lock.NewLocalCountLocker()
	events := &recordingPublisher{}
	log := zap.NewNop()
	validator := appcount.NewAdjustmentValidator(appcount.DefaultValidatorConfig())

	return &harness{
		t:      t,
		db:     db,
		events: events,
		counts: appcount.NewCountService(scope, locker, events, log),
		adjustments: appcount.NewAdjustmentService(scope, validator, persistence.NewGormProductStockRepository(db), log,
			appcount.WithAdjustmentLocker(locker),
			appcount.WithUserDirectory(persistence.NewGormUserDirectory(db))),
		reconciliation: appcount.NewReconciliationService(writeScope, locker, events, log),
		commits:        appcount.NewCommitService(writeScope, locker, events, log),
		counter:        uuid.New(),
	}
}

func (h *harness) product(code string, onHand int64) uuid.UUID {
	h.t.Helper()
	p := &stockcount.ProductStock{
		ProductID:   uuid.New(),
		Code:        code,
		Name:        "Product " + code,
		OnHand:      decimal.NewFromInt(onHand),
		LastUpdated: time.Date(2026, 3, 1, 18, 0, 0, 0, time.UTC),
		Version:     1,
	}
	require.NoError(h.t, h.db.Create(models.ProductModelFromDomain(p)).Error)
	return p.ProductID
}

func (h *harness) setOnHand(productID uuid.UUID, onHand int64) {
	h.t.Helper()
	require.NoError(h.t, h.db.Model(&models.ProductModel{}).
		Where("id = ?", productID).
		Update("on_hand", decimal.NewFromInt(onHand)).Error)
}

func (h *harness) stock(productID uuid.UUID) stockcount.ProductStock {
	h.t.Helper()
	p, err := persistence.NewGormProductStockRepository(h.db).FindByID(context.Background(), productID)
	require.NoError(h.t, err)
	return *p
}

func (h *harness) schedule(productIDs ...uuid.UUID) *appcount.CountResponse {
	h.t.Helper()
	resp, err := h.counts.Schedule(context.Background(), appcount.ScheduleCountRequest{
		Title:       "March cycle count",
		Type:        stockcount.CountTypeCycle,
		WindowStart: time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC),
		WindowEnd:   time.Date(2026, 3, 2, 17, 0, 0, 0, time.UTC),
		ProductIDs:  productIDs,
		Counters:    []uuid.UUID{h.counter},
		CreatedBy:   uuid.New(),
	})
	require.NoError(h.t, err)
	return resp
}

// started schedules and starts a count over the given products
func (h *harness) started(productIDs ...uuid.UUID) uuid.UUID {
	h.t.Helper()
	resp := h.schedule(productIDs...)
	_, err := h.counts.Start(context.Background(), resp.ID)
	require.NoError(h.t, err)
	return resp.ID
}

func (h *harness) line(countID, productID uuid.UUID) *stockcount.CountLine {
	h.t.Helper()
	line, err := persistence.NewGormCountLineRepository(h.db).FindByCountAndProduct(context.Background(), countID, productID)
	require.NoError(h.t, err)
	return line
}

// propose creates an adjustment as a fresh user so the duplicate window never interferes
func (h *harness) propose(countID, productID uuid.UUID, kind stockcount.AdjustmentKind, system, physical int64) uuid.UUID {
	h.t.Helper()
	id, err := h.adjustments.Create(context.Background(), adjustmentRequest(countID, productID, uuid.New(), kind, system, physical))
	require.NoError(h.t, err)
	return id
}

// adjustmentRequest proposes the physical quantity for SystemToPhysical and
// leaves the proposal empty for the other kinds.
func adjustmentRequest(countID, productID, userID uuid.UUID, kind stockcount.AdjustmentKind, system, physical int64) appcount.AdjustmentRequest {
	req := appcount.AdjustmentRequest{
		CountID:          countID,
		ProductID:        productID,
		Kind:             kind,
		SystemQuantity:   decimal.NewFromInt(system),
		PhysicalQuantity: decimal.NewFromInt(physical),
		Reason:           "Shelf recount after delivery",
		UserID:           userID,
	}
	if kind.RequiresProposedQuantity() {
		proposed := decimal.NewFromInt(physical)
		req.ProposedQuantity = &proposed
	}
	return req
}

func (h *harness) adjustment(id uuid.UUID) *stockcount.PendingAdjustment {
	h.t.Helper()
	a, err := persistence.NewGormAdjustmentRepository(h.db).FindByID(context.Background(), id)
	require.NoError(h.t, err)
	return a
}

// overrideScope swaps individual repositories inside each transaction
type overrideScope struct {
	inner     appcount.TransactionScope
	products  func(stockcount.ProductStockRepository) stockcount.ProductStockRepository
	movements func(stockcount.MovementRepository) stockcount.MovementRepository
}

func (s *overrideScope) Execute(ctx context.Context, fn func(repos appcount.TransactionalRepositories) error) error {
	return s.inner.Execute(ctx, func(repos appcount.TransactionalRepositories) error {
		return fn(&overrideRepos{TransactionalRepositories: repos, scope: s})
	})
}

type overrideRepos struct {
	appcount.TransactionalRepositories
	scope *overrideScope
}

func (r *overrideRepos) ProductRepo() stockcount.ProductStockRepository {
	inner := r.TransactionalRepositories.ProductRepo()
	if r.scope.products == nil {
		return inner
	}
	return r.scope.products(inner)
}

func (r *overrideRepos) MovementRepo() stockcount.MovementRepository {
	inner := r.TransactionalRepositories.MovementRepo()
	if r.scope.movements == nil {
		return inner
	}
	return r.scope.movements(inner)
}

// losingProductRepo loses the optimistic lock on the nth save
type losingProductRepo struct {
	stockcount.ProductStockRepository
	saves  *int
	loseAt int
}

func (r *losingProductRepo) SaveWithLock(ctx context.Context, product *stockcount.ProductStock) error {
	*r.saves++
	if *r.saves == r.loseAt {
		return errInjected
	}
	return r.ProductStockRepository.SaveWithLock(ctx, product)
}

// failingMovementRepo cannot mark movements processed
type failingMovementRepo struct {
	stockcount.MovementRepository
}

func (r *failingMovementRepo) MarkProcessed(context.Context, []uuid.UUID, time.Time, uuid.UUID) error {
	return shared.ErrConcurrencyConflict
}
