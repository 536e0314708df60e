package server

import (
	"net/http"
	"strconv"
	"time"
)

type Option interface {
	apply(*config)
}

type optionFunc func(c *config)

func (f optionFunc) apply(c *config) { f(c) }

// config defines fields used for configuring Server instance
type config struct {
	httpServer    *http.Server
	afterShutdown []func()
}

// EnvConfig defines fields used for parsing from environment variables
type EnvConfig struct {
	Host           string        `env:"HOST" envDefault:"0.0.0.0"`
	Port           uint16        `env:"PORT" envDefault:"9000"`
	ReadTimeout    time.Duration `env:"READ_TIMEOUT" envDefault:"5s"`
	WriteTimeout   time.Duration `env:"WRITE_TIMEOUT" envDefault:"10s"`
	HandlerTimeout time.Duration `env:"HANDLER_TIMEOUT" envDefault:"0s"`
}

// WithEnvConfig enables processing exported EnvConfig struct to acts as a source of config parameters for http.Server
func WithEnvConfig(cfg EnvConfig) Option {
	return optionFunc(func(c *config) {
		c.httpServer.Addr = cfg.Host + ":" + strconv.FormatUint(uint64(cfg.Port), 10)
		if cfg.ReadTimeout > 0 {
			c.httpServer.ReadTimeout = cfg.ReadTimeout
		}
		if cfg.WriteTimeout > 0 {
			c.httpServer.WriteTimeout = cfg.WriteTimeout
		}
		if cfg.HandlerTimeout > 0 {
			TimeoutHandler(cfg.HandlerTimeout, "Request timed out").apply(c)
		}
	})
}

// ReadTimeout sets read timeout for http.Server
func ReadTimeout(d time.Duration) Option {
	return optionFunc(func(c *config) {
		c.httpServer.ReadTimeout = d
	})
}

// WriteTimeout sets write timeout for http.Server
func WriteTimeout(d time.Duration) Option {
	return optionFunc(func(c *config) {
		c.httpServer.WriteTimeout = d
	})
}

// RegisterAfterShutdown registers a function to call after http.Server shutdown
// f will not be called in separated goroutine
func RegisterAfterShutdown(f func()) Option {
	return optionFunc(func(c *config) {
		c.afterShutdown = append(c.afterShutdown, f)
	})
}

// TimeoutHandler wraps the router in http.TimeoutHandler with provided duration and message
func TimeoutHandler(d time.Duration, msg string) Option {
	return optionFunc(func(c *config) {
		c.httpServer.Handler = http.TimeoutHandler(c.httpServer.Handler, d, msg)
	})
}
