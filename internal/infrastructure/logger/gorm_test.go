package logger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	gormlogger "gorm.io/gorm/logger"
)

func newObservedGormLogger(cfg GormConfig) (*GormLogger, *observer.ObservedLogs) {
	core, recorded := observer.New(zapcore.DebugLevel)
	return NewGormLogger(zap.New(core), cfg), recorded
}

func sqlFunc(sql string, rows int64) func() (string, int64) {
	return func() (string, int64) { return sql, rows }
}

func TestGormLogger_Trace(t *testing.T) {
	ctx := context.Background()
	warn := GormConfig{Level: gormlogger.Warn, SlowThreshold: time.Hour}

	t.Run("error is logged", func(t *testing.T) {
		l, recorded := newObservedGormLogger(warn)
		l.Trace(ctx, time.Now(), sqlFunc(`UPDATE "stock_count_lines" SET "version"=3`, 0), errors.New("deadlock"))

		logs := recorded.FilterMessage("SQL error").All()
		require.Len(t, logs, 1)
		assert.Equal(t, "deadlock", logs[0].ContextMap()["error"])
	})

	t.Run("record not found is never logged", func(t *testing.T) {
		l, recorded := newObservedGormLogger(GormConfig{Level: gormlogger.Info})
		l.Trace(ctx, time.Now(), sqlFunc(`SELECT * FROM "products"`, 0), gormlogger.ErrRecordNotFound)
		assert.Equal(t, 0, recorded.Len())
	})

	t.Run("missed version guard leaves a trail", func(t *testing.T) {
		l, recorded := newObservedGormLogger(warn)
		l.Trace(ctx, time.Now(),
			sqlFunc(`UPDATE "products" SET "on_hand"=8,"version"=3 WHERE id = 'x' AND version = 2`, 0), nil)

		logs := recorded.FilterMessage("Version guard matched no rows").All()
		require.Len(t, logs, 1)
		assert.Equal(t, "products", logs[0].ContextMap()["table"])
	})

	t.Run("empty select is not a guard miss", func(t *testing.T) {
		l, recorded := newObservedGormLogger(warn)
		l.Trace(ctx, time.Now(), sqlFunc(`SELECT * FROM "stock_count_movements" WHERE processed = false`, 0), nil)
		assert.Equal(t, 0, recorded.Len())
	})

	t.Run("slow statement warns", func(t *testing.T) {
		l, recorded := newObservedGormLogger(GormConfig{Level: gormlogger.Warn, SlowThreshold: time.Millisecond})
		l.Trace(ctx, time.Now().Add(-time.Second), sqlFunc(`SELECT * FROM "stock_count_movements"`, 12), nil)

		logs := recorded.FilterMessage("Slow SQL").All()
		require.Len(t, logs, 1)
		assert.Equal(t, int64(12), logs[0].ContextMap()["rows"])
	})

	t.Run("zero threshold never warns", func(t *testing.T) {
		l, recorded := newObservedGormLogger(GormConfig{Level: gormlogger.Warn})
		l.Trace(ctx, time.Now().Add(-time.Minute), sqlFunc("SELECT 1", 1), nil)
		assert.Equal(t, 0, recorded.Len())
	})

	t.Run("info level logs every statement at debug", func(t *testing.T) {
		l, recorded := newObservedGormLogger(GormConfig{Level: gormlogger.Info, SlowThreshold: time.Hour})
		l.Trace(ctx, time.Now(), sqlFunc("SELECT 1", 1), nil)
		assert.Equal(t, 1, recorded.FilterMessage("SQL").Len())
	})

	t.Run("silent logs nothing", func(t *testing.T) {
		l, recorded := newObservedGormLogger(GormConfig{Level: gormlogger.Silent})
		l.Trace(ctx, time.Now(), sqlFunc("SELECT 1", 1), errors.New("boom"))
		assert.Equal(t, 0, recorded.Len())
	})
}

func TestGormLogger_LogModeCopies(t *testing.T) {
	l, recorded := newObservedGormLogger(GormConfig{Level: gormlogger.Silent})
	loud := l.LogMode(gormlogger.Info)

	loud.Info(context.Background(), "migrated %d tables", 7)
	loud.Error(context.Background(), "lost %s", "connection")
	l.Info(context.Background(), "ignored")

	require.Equal(t, 2, recorded.Len())
	assert.Equal(t, "migrated 7 tables", recorded.All()[0].Message)
	assert.Equal(t, zapcore.ErrorLevel, recorded.All()[1].Level)
}

func TestMapGormLogLevel(t *testing.T) {
	assert.Equal(t, gormlogger.Silent, MapGormLogLevel("silent"))
	assert.Equal(t, gormlogger.Error, MapGormLogLevel("error"))
	assert.Equal(t, gormlogger.Info, MapGormLogLevel("debug"))
	assert.Equal(t, gormlogger.Warn, MapGormLogLevel(""))
}
