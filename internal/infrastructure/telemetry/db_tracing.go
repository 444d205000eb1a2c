package telemetry

import (
	"fmt"
	"time"

	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// DBTracingConfig holds configuration for database tracing.
type DBTracingConfig struct {
	Enabled         bool
	LogFullSQL      bool          // include query variables in spans; never in production
	SlowQueryThresh time.Duration // default 200ms
	DBName          string
}

// DBTracingPlugin registers otelgorm and flags slow statements on their spans.
type DBTracingPlugin struct {
	config DBTracingConfig
	logger *zap.Logger
}

func NewDBTracingPlugin(cfg DBTracingConfig, logger *zap.Logger) *DBTracingPlugin {
	if cfg.SlowQueryThresh <= 0 {
		cfg.SlowQueryThresh = 200 * time.Millisecond
	}
	return &DBTracingPlugin{config: cfg, logger: logger}
}

const queryStartKey = "stockcount:query_start"

// Register installs the plugin on db. It is a no-op when tracing is disabled.
func (p *DBTracingPlugin) Register(db *gorm.DB) error {
	if !p.config.Enabled {
		return nil
	}

	opts := []otelgorm.Option{otelgorm.WithDBName(p.config.DBName)}
	if !p.config.LogFullSQL {
		opts = append(opts, otelgorm.WithoutQueryVariables())
	}
	if err := db.Use(otelgorm.NewPlugin(opts...)); err != nil {
		return err
	}

	before := func(tx *gorm.DB) {
		tx.InstanceSet(queryStartKey, time.Now())
	}
	cb := db.Callback()
	registrations := []struct {
		name string
		reg  func() error
	}{
		{"create", func() error {
			if err := cb.Create().Before("gorm:create").Register("stockcount:before_create", before); err != nil {
				return err
			}
			return cb.Create().After("gorm:create").Register("stockcount:slow_create", p.afterStatement)
		}},
		{"query", func() error {
			if err := cb.Query().Before("gorm:query").Register("stockcount:before_query", before); err != nil {
				return err
			}
			return cb.Query().After("gorm:query").Register("stockcount:slow_query", p.afterStatement)
		}},
		{"update", func() error {
			if err := cb.Update().Before("gorm:update").Register("stockcount:before_update", before); err != nil {
				return err
			}
			return cb.Update().After("gorm:update").Register("stockcount:slow_update", p.afterStatement)
		}},
		{"delete", func() error {
			if err := cb.Delete().Before("gorm:delete").Register("stockcount:before_delete", before); err != nil {
				return err
			}
			return cb.Delete().After("gorm:delete").Register("stockcount:slow_delete", p.afterStatement)
		}},
	}
	for _, r := range registrations {
		if err := r.reg(); err != nil {
			return fmt.Errorf("register %s tracing callbacks: %w", r.name, err)
		}
	}

	p.logger.Info("Database tracing enabled",
		zap.Bool("log_full_sql", p.config.LogFullSQL),
		zap.Duration("slow_query_threshold", p.config.SlowQueryThresh))
	return nil
}

func (p *DBTracingPlugin) afterStatement(tx *gorm.DB) {
	v, ok := tx.InstanceGet(queryStartKey)
	if !ok {
		return
	}
	start, ok := v.(time.Time)
	if !ok {
		return
	}
	elapsed := time.Since(start)
	if elapsed < p.config.SlowQueryThresh {
		return
	}

	span := trace.SpanFromContext(tx.Statement.Context)
	span.SetAttributes(
		attribute.Bool("db.slow_query", true),
		attribute.Int64("db.duration_ms", elapsed.Milliseconds()),
	)
	p.logger.Warn("Slow query",
		zap.String("table", tx.Statement.Table),
		zap.Duration("elapsed", elapsed),
		zap.Int64("rows", tx.Statement.RowsAffected))
}

// IsSlow reports whether d crosses the configured threshold
func (p *DBTracingPlugin) IsSlow(d time.Duration) bool {
	return d >= p.config.SlowQueryThresh
}
