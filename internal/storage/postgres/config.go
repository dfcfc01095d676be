package postgres

import (
	"time"

	"github.com/maxbolgarin/erro"
	"github.com/maxbolgarin/lang"
)

const (
	defaultMaxOpenConns    = 10
	defaultMaxIdleConns    = 5
	defaultConnMaxLifetime = 5 * time.Minute
	defaultConnectTimeout  = 10 * time.Second
)

type Config struct {
	// DSN is a lib/pq connection string, empty disables the store
	DSN             string        `yaml:"dsn" env:"POSTGRES_DSN"`
	MaxOpenConns    int           `yaml:"max_open_conns" env:"POSTGRES_MAX_OPEN_CONNS"`
	MaxIdleConns    int           `yaml:"max_idle_conns" env:"POSTGRES_MAX_IDLE_CONNS"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" env:"POSTGRES_CONN_MAX_LIFETIME"`
	ConnectTimeout  time.Duration `yaml:"connect_timeout" env:"POSTGRES_CONNECT_TIMEOUT"`
}

// IsEnabled reports whether a durable store is configured
func (c Config) IsEnabled() bool {
	return c.DSN != ""
}

func (c *Config) PrepareAndValidate() error {
	if c.DSN == "" {
		return erro.New("dsn is required")
	}
	c.MaxOpenConns = lang.Check(c.MaxOpenConns, defaultMaxOpenConns)
	c.MaxIdleConns = lang.Check(c.MaxIdleConns, defaultMaxIdleConns)
	c.ConnMaxLifetime = lang.Check(c.ConnMaxLifetime, defaultConnMaxLifetime)
	c.ConnectTimeout = lang.Check(c.ConnectTimeout, defaultConnectTimeout)
	return nil
}
