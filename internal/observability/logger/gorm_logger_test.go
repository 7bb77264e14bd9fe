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

func captureLogs(t *testing.T) *observer.ObservedLogs {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	restore := zap.ReplaceGlobals(zap.New(core))
	t.Cleanup(restore)
	return logs
}

func TestQueryLogger_Trace(t *testing.T) {
	logs := captureLogs(t)
	ql := NewQueryLogger(Config{SlowQueryThreshold: 10 * time.Millisecond})
	ctx := context.Background()

	// Fast, clean statements stay quiet at the default level, and a
	// record-not-found result is not an error.
	ql.Trace(ctx, time.Now(), func() (string, int64) { return "SELECT 1", 1 }, nil)
	ql.Trace(ctx, time.Now(), func() (string, int64) { return "SELECT * FROM payouts", 0 }, gormlogger.ErrRecordNotFound)
	assert.Equal(t, 0, logs.Len())

	ql.Trace(ctx, time.Now().Add(-50*time.Millisecond), func() (string, int64) {
		return "UPDATE seller_transactions SET status = ?", 3
	}, nil)
	require.Equal(t, 1, logs.Len())
	slow := logs.All()[0]
	assert.Equal(t, zapcore.WarnLevel, slow.Level)
	assert.Equal(t, "slow query", slow.Message)
	assert.Equal(t, "update", slow.ContextMap()["verb"])
	assert.Equal(t, int64(3), slow.ContextMap()["rows"])

	ql.Trace(ctx, time.Now(), func() (string, int64) { return "INSERT INTO payouts VALUES (?)", 0 }, errors.New("boom"))
	require.Equal(t, 2, logs.Len())
	failed := logs.All()[1]
	assert.Equal(t, zapcore.ErrorLevel, failed.Level)
	assert.Equal(t, "query failed", failed.Message)
}

func TestQueryLogger_DebugLevelTracesEverything(t *testing.T) {
	logs := captureLogs(t)
	ql := NewQueryLogger(Config{Level: "debug"})

	ql.Trace(context.Background(), time.Now(), func() (string, int64) { return "SELECT 1", 1 }, nil)
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, zapcore.DebugLevel, logs.All()[0].Level)

	// Silent mode drops everything, errors included.
	silent := ql.LogMode(gormlogger.Silent)
	silent.Trace(context.Background(), time.Now(), func() (string, int64) { return "SELECT 1", 0 }, errors.New("boom"))
	assert.Equal(t, 1, logs.Len())
}

func TestSQLVerb(t *testing.T) {
	cases := []struct {
		query string
		want  string
	}{
		{"SELECT * FROM territories", "select"},
		{"insert into payouts values (?)", "insert"},
		{"WITH ready AS (SELECT id FROM x) SELECT id FROM ready", "select"},
		{"PRAGMA journal_mode", "other"},
		{"", "other"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, sqlVerb(tc.query), "query %q", tc.query)
	}
}
