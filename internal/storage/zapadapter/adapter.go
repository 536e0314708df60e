// Package zapadapter routes pgx logs to a go.uber.org/zap.Logger, tagging them with
// the request id and the authenticated user carried by the query context.
package zapadapter

import (
	"context"
	"sort"

	"github.com/jackc/pgx/v4"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type key int

const (
	idKey key = iota
	userKey
)

// NewContextWithID returns ctx carrying the request id
func NewContextWithID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, idKey, id)
}

// IDFromContext returns the request id stored by NewContextWithID
func IDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(idKey).(string)
	return id, ok
}

// NewContextWithUser returns ctx carrying the username of the authenticated caller
func NewContextWithUser(ctx context.Context, username string) context.Context {
	return context.WithValue(ctx, userKey, username)
}

// UserFromContext returns the username stored by NewContextWithUser
func UserFromContext(ctx context.Context) (string, bool) {
	username, ok := ctx.Value(userKey).(string)
	return username, ok
}

// ContextFields returns zap fields describing the request stored in ctx
func ContextFields(ctx context.Context) []zapcore.Field {
	var fields []zapcore.Field
	if id, ok := IDFromContext(ctx); ok {
		fields = append(fields, zap.String("request_id", id))
	}
	if username, ok := UserFromContext(ctx); ok {
		fields = append(fields, zap.String("caller", username))
	}
	return fields
}

// Logger implements pgx.Logger
type Logger struct {
	logger *zap.Logger
}

func NewLogger(logger *zap.Logger) *Logger {
	return &Logger{logger: logger.WithOptions(zap.AddCallerSkip(1)).Named("pgx")}
}

func (pl *Logger) Log(ctx context.Context, level pgx.LogLevel, msg string, data map[string]interface{}) {
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	fields := ContextFields(ctx)
	for _, k := range keys {
		fields = append(fields, zap.Reflect(k, data[k]))
	}

	switch level {
	case pgx.LogLevelTrace:
		pl.logger.Debug(msg, append(fields, zap.Stringer("PGX_LOG_LEVEL", level))...)
	case pgx.LogLevelDebug:
		pl.logger.Debug(msg, fields...)
	case pgx.LogLevelInfo:
		pl.logger.Info(msg, fields...)
	case pgx.LogLevelWarn:
		pl.logger.Warn(msg, fields...)
	case pgx.LogLevelError:
		pl.logger.Error(msg, fields...)
	default:
		pl.logger.Error(msg, append(fields, zap.Stringer("PGX_LOG_LEVEL", level))...)
	}
}
