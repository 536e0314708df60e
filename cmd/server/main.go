package main

import (
	"context"
	"errors"
	"io/fs"
	"log"
	"time"

	"messagely/internal/identity"
	"messagely/internal/ledger"
	"messagely/internal/server"
	"messagely/internal/session"
	"messagely/internal/storage"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// appConfig holds settings not owned by a single package
type appConfig struct {
	SecretKey        string        `env:"SECRET_KEY,required"`
	TokenTTL         time.Duration `env:"TOKEN_TTL" envDefault:"24h"`
	BcryptWorkFactor int           `env:"BCRYPT_WORK_FACTOR" envDefault:"12"`
	LogFormat        string        `env:"LOG_FORMAT" envDefault:"console"`
	DBMaxConns       int32         `env:"DB_MAX_CONNS" envDefault:"0"`
}

func newLogger(format string) (*zap.Logger, error) {
	if format == "json" {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Fatalf("godotenv.Load: %v", err)
	}

	appCfg := appConfig{}
	if err := env.Parse(&appCfg); err != nil {
		log.Fatalf("Cannot parse env config: %v", err)
	}

	logger, err := newLogger(appCfg.LogFormat)
	if err != nil {
		log.Fatalf("zap logger: %v", err)
	}
	defer logger.Sync()

	sugar := logger.Sugar()
	sugar.Info("Application is starting")

	dbCfg := storage.Config{}
	if err := env.Parse(&dbCfg); err != nil {
		sugar.Fatalf("Cannot parse storage env config: %v", err)
	}

	srvCfg := server.EnvConfig{}
	if err := env.Parse(&srvCfg); err != nil {
		sugar.Fatalf("Cannot parse server env config: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := storage.Migrate(ctx, sugar, dbCfg); err != nil {
		sugar.Fatalf("Cannot apply migrations: %v", err)
	}

	store, err := storage.New(ctx, sugar, dbCfg,
		storage.ConnectionTimeout(30*time.Second),
		storage.MaxConns(appCfg.DBMaxConns),
	)
	if err != nil {
		sugar.Fatalf("Cannot create Store instance: %v", err)
	}

	hasher, err := identity.NewBcryptHasher(appCfg.BcryptWorkFactor)
	if err != nil {
		sugar.Fatalf("Cannot create password hasher: %v", err)
	}

	sessions, err := session.NewIssuer([]byte(appCfg.SecretKey), session.TTL(appCfg.TokenTTL))
	if err != nil {
		sugar.Fatalf("Cannot create session issuer: %v", err)
	}

	services := server.Services{
		Identity: identity.New(sugar.Named("identity"), store, hasher),
		Sessions: sessions,
		Ledger:   ledger.New(sugar.Named("ledger"), store),
		Store:    store,
	}

	srv, err := server.NewServer(sugar, services,
		server.WithEnvConfig(srvCfg),
		server.RegisterAfterShutdown(store.Close),
	)
	if err != nil {
		sugar.Fatalf("Cannot create Server instance: %v", err)
	}

	if err := srv.Start(); err != nil {
		sugar.Fatalf("Cannot start http srv: %v", err)
	}
}
