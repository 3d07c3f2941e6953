package logger

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	gormlogger "gorm.io/gorm/logger"
)

func observedGormLogger(level gormlogger.LogLevel, opts ...GormLoggerOption) (*GormLogger, *observer.ObservedLogs) {
	core, recorded := observer.New(zapcore.DebugLevel)
	return NewGormLogger(zap.New(core), level, opts...), recorded
}

func TestGormLogger_LogMode(t *testing.T) {
	gormLog := NewGormLogger(zap.NewNop(), gormlogger.Info, WithSlowThreshold(time.Second))
	clone, ok := gormLog.LogMode(gormlogger.Warn).(*GormLogger)
	require.True(t, ok)

	assert.Equal(t, gormlogger.Info, gormLog.level)
	assert.Equal(t, gormlogger.Warn, clone.level)
	assert.Equal(t, time.Second, clone.slowThreshold)
}

func TestGormLogger_Trace(t *testing.T) {
	sqlFn := func() (string, int64) { return `SELECT * FROM "subscription"`, 1 }

	t.Run("error carries the tenant namespace", func(t *testing.T) {
		gormLog, recorded := observedGormLogger(gormlogger.Info)

		ctx := WithNamespace(WithTenantID(context.Background(), "tenant-1"), "tenant_abc")
		gormLog.Trace(ctx, time.Now(), sqlFn, errors.New("relation does not exist"))

		entries := recorded.All()
		require.Len(t, entries, 1)
		assert.Equal(t, "SQL error", entries[0].Message)
		assert.Equal(t, "tenant_abc", entries[0].ContextMap()["namespace"])
		assert.Equal(t, "tenant-1", entries[0].ContextMap()["tenant_id"])
	})

	t.Run("record not found is dropped by default", func(t *testing.T) {
		gormLog, recorded := observedGormLogger(gormlogger.Warn)
		gormLog.Trace(context.Background(), time.Now(), sqlFn, gormlogger.ErrRecordNotFound)
		assert.Empty(t, recorded.All())
	})

	t.Run("record not found can be kept", func(t *testing.T) {
		gormLog, recorded := observedGormLogger(gormlogger.Warn, WithRecordNotFound())
		gormLog.Trace(context.Background(), time.Now(), sqlFn, gormlogger.ErrRecordNotFound)
		assert.Equal(t, 1, recorded.FilterMessage("SQL error").Len())
	})

	t.Run("slow statement is a warning", func(t *testing.T) {
		gormLog, recorded := observedGormLogger(gormlogger.Warn, WithSlowThreshold(time.Millisecond))

		gormLog.Trace(context.Background(), time.Now().Add(-time.Second), sqlFn, nil)

		entries := recorded.All()
		require.Len(t, entries, 1)
		assert.Equal(t, zapcore.WarnLevel, entries[0].Level)
		assert.Equal(t, time.Millisecond, entries[0].ContextMap()["threshold"])
	})

	t.Run("long statements are truncated", func(t *testing.T) {
		gormLog, recorded := observedGormLogger(gormlogger.Info, WithMaxSQLLength(10))
		ddl := func() (string, int64) { return "CREATE TABLE " + strings.Repeat("x", 100), 0 }

		gormLog.Trace(context.Background(), time.Now(), ddl, nil)

		entries := recorded.All()
		require.Len(t, entries, 1)
		assert.Equal(t, "CREATE TAB...", entries[0].ContextMap()["sql"])
	})

	t.Run("silent logs nothing", func(t *testing.T) {
		gormLog, recorded := observedGormLogger(gormlogger.Silent)
		gormLog.Trace(context.Background(), time.Now(), sqlFn, errors.New("boom"))
		assert.Empty(t, recorded.All())
	})
}

func TestGormLogger_Messages(t *testing.T) {
	gormLog, recorded := observedGormLogger(gormlogger.Warn)
	ctx := WithRequestID(context.Background(), "req-1")

	gormLog.Info(ctx, "ignored %d", 1)
	gormLog.Warn(ctx, "pool exhausted after %d attempts", 3)

	entries := recorded.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "pool exhausted after 3 attempts", entries[0].Message)
	assert.Equal(t, "req-1", entries[0].ContextMap()["request_id"])
}

func TestMapGormLogLevel(t *testing.T) {
	assert.Equal(t, gormlogger.Silent, MapGormLogLevel("silent"))
	assert.Equal(t, gormlogger.Error, MapGormLogLevel("error"))
	assert.Equal(t, gormlogger.Info, MapGormLogLevel("debug"))
	assert.Equal(t, gormlogger.Warn, MapGormLogLevel("unknown"))
}
