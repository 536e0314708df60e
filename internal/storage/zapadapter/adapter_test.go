package zapadapter

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v4"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestContextValues(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	_, ok := IDFromContext(ctx)
	require.False(t, ok)
	_, ok = UserFromContext(ctx)
	require.False(t, ok)
	require.Empty(t, ContextFields(ctx))

	ctx = NewContextWithUser(NewContextWithID(ctx, "req-1"), "alice")

	id, ok := IDFromContext(ctx)
	require.True(t, ok)
	require.Equal(t, "req-1", id)

	username, ok := UserFromContext(ctx)
	require.True(t, ok)
	require.Equal(t, "alice", username)

	require.Len(t, ContextFields(ctx), 2)
}

func TestLogLevels(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.DebugLevel)
	l := NewLogger(zap.New(core))

	ctx := NewContextWithID(context.Background(), "req-2")
	l.Log(ctx, pgx.LogLevelDebug, "debug", nil)
	l.Log(ctx, pgx.LogLevelInfo, "info", map[string]interface{}{"sql": "select 1"})
	l.Log(ctx, pgx.LogLevelWarn, "warn", nil)
	l.Log(ctx, pgx.LogLevelError, "error", nil)
	l.Log(ctx, pgx.LogLevelTrace, "trace", nil)

	entries := logs.AllUntimed()
	require.Len(t, entries, 5)

	require.Equal(t, zapcore.DebugLevel, entries[0].Level)
	require.Equal(t, zapcore.InfoLevel, entries[1].Level)
	require.Equal(t, zapcore.WarnLevel, entries[2].Level)
	require.Equal(t, zapcore.ErrorLevel, entries[3].Level)
	require.Equal(t, zapcore.DebugLevel, entries[4].Level)

	info := entries[1].ContextMap()
	require.Equal(t, "req-2", info["request_id"])
	require.Equal(t, "select 1", info["sql"])
	require.Equal(t, "pgx", entries[1].LoggerName)
}
