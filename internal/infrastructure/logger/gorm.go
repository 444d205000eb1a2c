package logger

import (
	"context"
	"errors"
	"regexp"
	"time"

	"go.uber.org/zap"
	gormlogger "gorm.io/gorm/logger"
)

// GormConfig tunes the statement log
type GormConfig struct {
	Level gormlogger.LogLevel
	// SlowThreshold marks statements to warn about. Zero disables it.
	SlowThreshold time.Duration
}

// GormLogger routes gorm's statement log through zap. Missing rows are never
// logged: repositories turn them into not-found errors themselves.
type GormLogger struct {
	logger *zap.Logger
	cfg    GormConfig
}

func NewGormLogger(zapLogger *zap.Logger, cfg GormConfig) *GormLogger {
	return &GormLogger{logger: zapLogger.Named("gorm"), cfg: cfg}
}

var _ gormlogger.Interface = (*GormLogger)(nil)

func (l *GormLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	clone := *l
	clone.cfg.Level = level
	return &clone
}

func (l *GormLogger) Info(ctx context.Context, msg string, data ...any) {
	l.printf(ctx, gormlogger.Info, msg, data)
}

func (l *GormLogger) Warn(ctx context.Context, msg string, data ...any) {
	l.printf(ctx, gormlogger.Warn, msg, data)
}

func (l *GormLogger) Error(ctx context.Context, msg string, data ...any) {
	l.printf(ctx, gormlogger.Error, msg, data)
}

func (l *GormLogger) printf(ctx context.Context, level gormlogger.LogLevel, msg string, data []any) {
	if l.cfg.Level < level {
		return
	}
	sugar := l.logger.With(Fields(ctx)...).Sugar()
	switch level {
	case gormlogger.Error:
		sugar.Errorf(msg, data...)
	case gormlogger.Warn:
		sugar.Warnf(msg, data...)
	default:
		sugar.Infof(msg, data...)
	}
}

// versionGuard matches the optimistic lock updates issued by SaveWithLock
var versionGuard = regexp.MustCompile("(?i)^UPDATE\\s+[\"`]?(\\w+)[\"`]?\\s.*\\bversion\\s*=")

// Trace logs one executed statement
func (l *GormLogger) Trace(ctx context.Context, begin time.Time, fc func() (sql string, rowsAffected int64), err error) {
	if l.cfg.Level <= gormlogger.Silent {
		return
	}
	if errors.Is(err, gormlogger.ErrRecordNotFound) {
		return
	}

	elapsed := time.Since(begin)
	sql, rows := fc()
	fields := append(Fields(ctx),
		zap.Duration("elapsed", elapsed),
		zap.Int64("rows", rows),
		zap.String("sql", sql),
	)

	switch {
	case err != nil && l.cfg.Level >= gormlogger.Error:
		l.logger.Error("SQL error", append(fields, zap.Error(err))...)
	case err == nil && rows == 0 && l.cfg.Level >= gormlogger.Warn:
		// A guarded update that touched nothing lost its race; the caller
		// reports the conflict, this only leaves a trail.
		if m := versionGuard.FindStringSubmatch(sql); m != nil {
			l.logger.Info("Version guard matched no rows", append(fields, zap.String("table", m[1]))...)
			return
		}
		l.traceQuiet(elapsed, fields)
	default:
		l.traceQuiet(elapsed, fields)
	}
}

func (l *GormLogger) traceQuiet(elapsed time.Duration, fields []zap.Field) {
	switch {
	case l.cfg.SlowThreshold != 0 && elapsed > l.cfg.SlowThreshold && l.cfg.Level >= gormlogger.Warn:
		l.logger.Warn("Slow SQL", append(fields, zap.Duration("threshold", l.cfg.SlowThreshold))...)
	case l.cfg.Level >= gormlogger.Info:
		l.logger.Debug("SQL", fields...)
	}
}

// MapGormLogLevel maps a config level name to a gorm log level
func MapGormLogLevel(level string) gormlogger.LogLevel {
	switch level {
	case "silent":
		return gormlogger.Silent
	case "error":
		return gormlogger.Error
	case "info", "debug":
		return gormlogger.Info
	default:
		return gormlogger.Warn
	}
}
