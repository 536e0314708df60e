package storage

import (
	"testing"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/stretchr/testify/require"
)

func TestDSN(t *testing.T) {
	config := Config{
		User:     "a",
		Password: "b",
		Host:     "c",
		Port:     5432,
		DBName:   "d",
	}
	expected := "user=a password=b host=c port=5432 dbname=d sslmode=disable"
	actual := config.DSN()
	require.Equal(t, expected, actual)
}

func TestDSNWithSSLMode(t *testing.T) {
	config := Config{
		User:     "a",
		Password: "b",
		Host:     "c",
		Port:     6543,
		DBName:   "d",
		SSLMode:  "require",
	}
	require.Equal(t, "user=a password=b host=c port=6543 dbname=d sslmode=require", config.DSN())
}

func TestOptions(t *testing.T) {
	cfg, err := pgxpool.ParseConfig(Config{User: "a", Password: "b", Host: "c", Port: 5432, DBName: "d"}.DSN())
	require.NoError(t, err)

	ConnectionTimeout(7 * time.Second).apply(cfg)
	MaxConns(9).apply(cfg)
	require.Equal(t, 7*time.Second, cfg.ConnConfig.ConnectTimeout)
	require.Equal(t, int32(9), cfg.MaxConns)

	MaxConns(0).apply(cfg)
	require.Equal(t, int32(9), cfg.MaxConns)
}

func TestDSNQuotesValues(t *testing.T) {
	config := Config{
		User:     "app user",
		Password: `it's a \secret`,
		Host:     "c",
		Port:     5432,
		DBName:   "d",
	}
	require.Equal(t, `user='app user' password='it\'s a \\secret' host=c port=5432 dbname=d sslmode=disable`, config.DSN())

	cfg, err := pgxpool.ParseConfig(config.DSN())
	require.NoError(t, err)
	require.Equal(t, "app user", cfg.ConnConfig.User)
	require.Equal(t, `it's a \secret`, cfg.ConnConfig.Password)
	require.Equal(t, "d", cfg.ConnConfig.Database)
}
