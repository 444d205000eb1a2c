package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/erp/stockcount/internal/domain/stockcount"
	"github.com/erp/stockcount/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// newTestDB opens an in-memory sqlite database with the count schema.
// One connection only: every new connection to :memory: is a fresh database.
func newTestDB(t *testing.T) *gorm.DB {
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
	return db
}

var baseTime = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

func seedCount(t *testing.T, db *gorm.DB, counters ...uuid.UUID) *stockcount.Count {
	t.Helper()
	count, err := stockcount.NewCount("March cycle count", stockcount.CountTypeCycle, baseTime, baseTime.Add(8*time.Hour), uuid.New())
	require.NoError(t, err)
	if len(counters) > 0 {
		require.NoError(t, count.AssignCounters(counters))
	}
	require.NoError(t, NewGormCountRepository(db).Create(context.Background(), count))
	return count
}

func seedLine(t *testing.T, db *gorm.DB, countID, productID uuid.UUID, system int64) *stockcount.CountLine {
	t.Helper()
	line := stockcount.NewCountLine(countID, productID, decimal.NewFromInt(system))
	require.NoError(t, NewGormCountLineRepository(db).CreateBatch(context.Background(), []stockcount.CountLine{*line}))
	return line
}

func seedProduct(t *testing.T, db *gorm.DB, code string, onHand int64) *stockcount.ProductStock {
	t.Helper()
	p := &stockcount.ProductStock{
		ProductID:   uuid.New(),
		Code:        code,
		Name:        "Product " + code,
		OnHand:      decimal.NewFromInt(onHand),
		LastUpdated: baseTime,
		Version:     1,
	}
	require.NoError(t, db.Create(models.ProductModelFromDomain(p)).Error)
	return p
}

func seedMovement(t *testing.T, db *gorm.DB, countID, productID uuid.UUID, delta int64, at time.Time) *stockcount.Movement {
	t.Helper()
	m, err := stockcount.NewMovement(countID, productID, stockcount.MovementKindSale, decimal.NewFromInt(delta), "SO-1")
	require.NoError(t, err)
	m.OccurredAt = at
	m.CreatedAt = at
	require.NoError(t, NewGormMovementRepository(db).Create(context.Background(), m))
	return m
}

func newAdjustment(countID, productID, userID uuid.UUID, kind stockcount.AdjustmentKind, system, physical int64, at time.Time) *stockcount.PendingAdjustment {
	a := stockcount.NewPendingAdjustment(stockcount.AdjustmentDraft{
		CountID:          countID,
		ProductID:        productID,
		Kind:             kind,
		SystemQuantity:   decimal.NewFromInt(system),
		PhysicalQuantity: decimal.NewFromInt(physical),
		Reason:           "Shelf recount after delivery",
		CreatedBy:        userID,
	})
	a.CreatedAt = at
	a.UpdatedAt = at
	return a
}
