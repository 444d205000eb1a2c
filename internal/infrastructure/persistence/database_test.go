package persistence

import (
	"context"
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/erp/stockcount/internal/domain/shared"
	"github.com/erp/stockcount/internal/domain/stockcount"
	"github.com/erp/stockcount/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// newMockDB creates a postgres-dialect gorm handle backed by sqlmock
func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()

	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)

	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		Conn:       mockDB,
		DriverName: "postgres",
	}), &gorm.Config{
		SkipDefaultTransaction: true,
		DisableAutomaticPing:   true,
	})
	require.NoError(t, err)
	return gormDB, mock, mockDB
}

func TestDatabase_CheckSchema(t *testing.T) {
	ctx := context.Background()

	raw, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := raw.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	d := &Database{DB: raw}
	defer d.Close()

	err = d.CheckSchema(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stock_counts")
	assert.Contains(t, err.Error(), "stock_count_movements")

	require.NoError(t, raw.AutoMigrate(&models.StockCountModel{}))
	err = d.CheckSchema(ctx)
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "stock_counts")

	require.NoError(t, raw.AutoMigrate(models.All()...))
	assert.NoError(t, d.CheckSchema(ctx))
}

func TestSaveWithLock_VersionGuard(t *testing.T) {
	ctx := context.Background()

	t.Run("count update guarded by version", func(t *testing.T) {
		gormDB, mock, mockDB := newMockDB(t)
		defer mockDB.Close()

		count, err := stockcount.NewCount("Spot check", stockcount.CountTypeSpot, baseTime, baseTime, uuid.New())
		require.NoError(t, err)
		count.Version = 3

		mock.ExpectBegin()
		mock.ExpectExec(`UPDATE "stock_counts" SET .* WHERE id = \$\d+ AND version = \$\d+`).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectRollback()

		err = NewGormCountRepository(gormDB).SaveWithLock(ctx, count)
		assert.True(t, shared.IsStateConflict(err))
		assert.ErrorIs(t, err, shared.NewDomainError(shared.CodeOptimisticLock, ""))
		assert.Equal(t, 3, count.Version)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("line update advances version", func(t *testing.T) {
		gormDB, mock, mockDB := newMockDB(t)
		defer mockDB.Close()

		line := stockcount.NewCountLine(uuid.New(), uuid.New(), decimal.NewFromInt(5))
		mock.ExpectExec(`UPDATE "stock_count_lines" SET`).
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, NewGormCountLineRepository(gormDB).SaveWithLock(ctx, line))
		assert.Equal(t, 2, line.Version)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("product update loses race", func(t *testing.T) {
		gormDB, mock, mockDB := newMockDB(t)
		defer mockDB.Close()

		product := &stockcount.ProductStock{ProductID: uuid.New(), OnHand: decimal.NewFromInt(2), Version: 1}
		mock.ExpectExec(`UPDATE "products" SET`).
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := NewGormProductStockRepository(gormDB).SaveWithLock(ctx, product)
		assert.True(t, shared.IsStateConflict(err))
		assert.Equal(t, 1, product.Version)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("movement already processed elsewhere", func(t *testing.T) {
		gormDB, mock, mockDB := newMockDB(t)
		defer mockDB.Close()

		mock.ExpectExec(`UPDATE "stock_count_movements" SET`).
			WillReturnResult(sqlmock.NewResult(0, 1))

		err := NewGormMovementRepository(gormDB).MarkProcessed(ctx, []uuid.UUID{uuid.New(), uuid.New()}, baseTime, uuid.New())
		assert.ErrorIs(t, err, shared.ErrConcurrencyConflict)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
