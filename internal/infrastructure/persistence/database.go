package persistence

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/erp/stockcount/internal/infrastructure/config"
	"github.com/erp/stockcount/internal/infrastructure/persistence/models"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
	"gorm.io/gorm/schema"
)

// Database owns the connection pool shared by the count repositories
type Database struct {
	DB *gorm.DB
}

// Instrument installs callbacks or plugins on a freshly opened handle.
type Instrument func(*gorm.DB) error

// Open connects to PostgreSQL, applies the instruments and pings the server.
// A nil logger keeps gorm silent.
func Open(ctx context.Context, cfg *config.DatabaseConfig, logger gormlogger.Interface, instruments ...Instrument) (*Database, error) {
	if logger == nil {
		logger = gormlogger.Default.LogMode(gormlogger.Silent)
	}

	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
		Logger: logger,
		// Every write path opens its own transaction through the scope.
		SkipDefaultTransaction: true,
		PrepareStmt:            true,
		TranslateError:         true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	d := &Database{DB: db}

	for _, instrument := range instruments {
		if err := instrument(db); err != nil {
			_ = d.Close()
			return nil, fmt.Errorf("failed to instrument database: %w", err)
		}
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetime) * time.Minute)
	sqlDB.SetConnMaxIdleTime(time.Duration(cfg.ConnMaxIdleTime) * time.Minute)

	if err := sqlDB.PingContext(ctx); err != nil {
		_ = d.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return d, nil
}

// CheckSchema reports the count tables that are missing, usually because
// migrations have not been applied yet.
func (d *Database) CheckSchema(ctx context.Context) error {
	migrator := d.DB.WithContext(ctx).Migrator()
	var missing []string
	for _, m := range models.All() {
		if !migrator.HasTable(m) {
			missing = append(missing, m.(schema.Tabler).TableName())
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("schema is not migrated, missing tables: %s", strings.Join(missing, ", "))
	}
	return nil
}

// Close closes the connection pool
func (d *Database) Close() error {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	return sqlDB.Close()
}
