package storage

import (
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
)

// Config defines fields used for connecting to PostgreSQL, parsed from environment variables
type Config struct {
	User     string `env:"DB_USER" envDefault:"postgres"`
	Password string `env:"DB_PASSWORD" envDefault:"postgres"`
	Host     string `env:"DB_HOST" envDefault:"localhost"`
	Port     uint16 `env:"DB_PORT" envDefault:"5432"`
	DBName   string `env:"DB_NAME" envDefault:"messagely"`
	SSLMode  string `env:"DB_SSLMODE" envDefault:"disable"`
}

// DSN renders Config as a keyword/value connection string
func (c Config) DSN() string {
	sslMode := c.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}

	return "user=" + quoteDSNValue(c.User) +
		" password=" + quoteDSNValue(c.Password) +
		" host=" + quoteDSNValue(c.Host) +
		" port=" + strconv.FormatUint(uint64(c.Port), 10) +
		" dbname=" + quoteDSNValue(c.DBName) +
		" sslmode=" + quoteDSNValue(sslMode)
}

// quoteDSNValue single-quotes v when it is empty or holds spaces, quotes or backslashes,
// escaping quotes and backslashes with a backslash as libpq expects
func quoteDSNValue(v string) string {
	if v != "" && !strings.ContainsAny(v, " \t\n\r'\\") {
		return v
	}

	var b strings.Builder
	b.WriteByte('\'')
	for i := 0; i < len(v); i++ {
		if v[i] == '\'' || v[i] == '\\' {
			b.WriteByte('\\')
		}
		b.WriteByte(v[i])
	}
	b.WriteByte('\'')
	return b.String()
}

// Option alters the default configuration of the pgxpool.Config used during new Store construction
type Option interface {
	apply(*pgxpool.Config)
}

type optionFunc func(c *pgxpool.Config)

func (f optionFunc) apply(c *pgxpool.Config) { f(c) }

// ConnectionTimeout sets timeout for connection to be established
func ConnectionTimeout(d time.Duration) Option {
	return optionFunc(func(c *pgxpool.Config) {
		c.ConnConfig.ConnectTimeout = d
	})
}

// MaxConns limits the size of the connection pool
func MaxConns(n int32) Option {
	return optionFunc(func(c *pgxpool.Config) {
		if n > 0 {
			c.MaxConns = n
		}
	})
}
