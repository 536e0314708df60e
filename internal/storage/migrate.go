package storage

import (
	"context"
	"fmt"
	"strings"

	"messagely/internal/storage/migrations"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/stdlib"
	"github.com/pressly/goose/v3"
	"go.uber.org/zap"
)

// gooseLogger adapts zap.SugaredLogger to goose.Logger
type gooseLogger struct {
	*zap.SugaredLogger
}

func (l gooseLogger) Printf(format string, v ...interface{}) {
	l.Infof(strings.TrimSuffix(format, "\n"), v...)
}

// Migrate applies embedded schema migrations over a dedicated database/sql connection
func Migrate(ctx context.Context, logger *zap.SugaredLogger, cfg Config) error {
	connConfig, err := pgx.ParseConfig(cfg.DSN())
	if err != nil {
		return fmt.Errorf("pgx.ParseConfig: %w", err)
	}

	db := stdlib.OpenDB(*connConfig)
	defer db.Close()

	goose.SetBaseFS(migrations.FS)
	goose.SetLogger(gooseLogger{logger.Named("goose")})
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("goose.SetDialect: %w", err)
	}

	if err := goose.UpContext(ctx, db, "."); err != nil {
		return fmt.Errorf("goose.UpContext: %w", err)
	}

	return nil
}
