package main

import (
	"context"
	"errors"
	"fmt"

	appcount "github.com/erp/stockcount/internal/application/stockcount"
	"github.com/erp/stockcount/internal/infrastructure/config"
	"github.com/erp/stockcount/internal/infrastructure/event"
	"github.com/erp/stockcount/internal/infrastructure/lock"
	"github.com/erp/stockcount/internal/infrastructure/logger"
	"github.com/erp/stockcount/internal/infrastructure/persistence"
	"github.com/erp/stockcount/internal/infrastructure/telemetry"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// app holds the wired services and everything that needs closing
type app struct {
	counts         *appcount.CountService
	adjustments    *appcount.AdjustmentService
	reconciliation *appcount.ReconciliationService
	commits        *appcount.CommitService

	log      *zap.Logger
	db       *persistence.Database
	redis    *redis.Client
	events   *event.Dispatcher
	shutdown []func(context.Context) error
}

func newApp(ctx context.Context, cfg *config.Config, log *zap.Logger) (*app, error) {
	a := &app{log: log}

	providers, err := telemetry.Setup(ctx, telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		Insecure:          cfg.Telemetry.Insecure,
		ServiceName:       cfg.Telemetry.ServiceName,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		MetricsInterval:   cfg.Telemetry.MetricsInterval,
	}, log)
	if err != nil {
		return nil, err
	}
	a.shutdown = append(a.shutdown, providers.Shutdown)

	metrics, err := telemetry.NewReconciliationMetrics(providers.Meter())
	if err != nil {
		_ = a.close(ctx)
		return nil, err
	}

	plugin := telemetry.NewDBTracingPlugin(telemetry.DBTracingConfig{
		Enabled:         cfg.Telemetry.Enabled && cfg.Telemetry.DBTraceEnabled,
		LogFullSQL:      cfg.Telemetry.DBLogFullSQL,
		SlowQueryThresh: cfg.Telemetry.DBSlowQueryThresh,
		DBName:          cfg.Database.DBName,
	}, log)
	gormLog := logger.NewGormLogger(log, logger.GormConfig{
		Level:         logger.MapGormLogLevel(cfg.Database.LogLevel),
		SlowThreshold: cfg.Telemetry.DBSlowQueryThresh,
	})
	db, err := persistence.Open(ctx, &cfg.Database, gormLog, plugin.Register)
	if err != nil {
		_ = a.close(ctx)
		return nil, err
	}
	a.db = db
	if err := db.CheckSchema(ctx); err != nil {
		_ = a.close(ctx)
		return nil, fmt.Errorf("%w (run migrate up first)", err)
	}

	locker, err := a.newLocker(ctx, cfg)
	if err != nil {
		_ = a.close(ctx)
		return nil, err
	}

	a.events = event.NewDispatcher(log.Named("events"))
	a.events.Subscribe(event.NewAuditLogHandler(log))
	a.shutdown = append(a.shutdown, a.events.Close)

	txScope := persistence.NewGormTransactionScope(db.DB)
	products := persistence.NewGormProductStockRepository(db.DB)
	validator := appcount.NewAdjustmentValidator(appcount.ValidatorConfig{
		DuplicateWindow: cfg.Reconciliation.DuplicateWindow,
		MinReasonLength: cfg.Reconciliation.MinReasonLength,
	})

	a.counts = appcount.NewCountService(txScope, locker, a.events, log.Named("count"))
	a.adjustments = appcount.NewAdjustmentService(txScope, validator, products, log.Named("adjustment"),
		appcount.WithAdjustmentLocker(locker),
		appcount.WithAdjustmentMetrics(metrics),
		appcount.WithUserDirectory(persistence.NewGormUserDirectory(db.DB)),
	)
	a.reconciliation = appcount.NewReconciliationService(txScope, locker, a.events, log.Named("reconciliation"),
		appcount.WithReconciliationMetrics(metrics),
	)
	a.commits = appcount.NewCommitService(txScope, locker, a.events, log.Named("commit"),
		appcount.WithCommitMetrics(metrics),
	)
	return a, nil
}

func (a *app) newLocker(ctx context.Context, cfg *config.Config) (appcount.CountLocker, error) {
	switch cfg.Lock.Backend {
	case config.LockBackendRedis:
		client, err := lock.NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			return nil, err
		}
		a.redis = client
		a.log.Info("Using Redis count locks", zap.String("addr", cfg.Redis.Addr()))
		return lock.NewRedisCountLocker(client, cfg.Lock, a.log.Named("lock")), nil
	case config.LockBackendLocal:
		a.log.Debug("Using in-process count locks")
		return lock.NewLocalCountLocker(), nil
	default:
		return nil, fmt.Errorf("unsupported lock backend %q", cfg.Lock.Backend)
	}
}

// close tears everything down in reverse order of construction
func (a *app) close(ctx context.Context) error {
	var errs []error
	for i := len(a.shutdown) - 1; i >= 0; i-- {
		errs = append(errs, a.shutdown[i](ctx))
	}
	if a.redis != nil {
		errs = append(errs, a.redis.Close())
	}
	if a.db != nil {
		errs = append(errs, a.db.Close())
	}
	return errors.Join(errs...)
}

