// Package app wires configuration, storage, the flow engine and the Telegram
// runtime into a runnable bot.
package app

import (
	"fmt"
	"strings"
	"time"
	_ "time/tzdata"

	coreconfig "github.com/m3rciful/vpnshop/core/config"
	coredatabase "github.com/m3rciful/vpnshop/core/database"
	"github.com/m3rciful/vpnshop/internal/flow"
)

const (
	StoreMemory = "memory"
	StoreSQL    = "sql"

	SessionMemory = "memory"
	SessionRedis  = "redis"
)

// StoreConfig selects the ledger backend.
type StoreConfig struct {
	Backend string `yaml:"backend" envconfig:"STORE_BACKEND"`
}

// RedisConfig holds the connection used by the redis session backend.
type RedisConfig struct {
	Addr     string `yaml:"addr" envconfig:"REDIS_ADDR"`
	Password string `yaml:"password" envconfig:"REDIS_PASSWORD"`
	DB       int    `yaml:"db" envconfig:"REDIS_DB"`
	Prefix   string `yaml:"prefix" envconfig:"REDIS_PREFIX"`
}

// SessionConfig selects where conversation sessions and admin bindings live.
type SessionConfig struct {
	Backend string      `yaml:"backend" envconfig:"SESSION_BACKEND"`
	Redis   RedisConfig `yaml:"redis"`
}

// MetricsConfig enables the Prometheus endpoint when Listen is set.
type MetricsConfig struct {
	Listen string `yaml:"listen" envconfig:"METRICS_LISTEN"`
}

// DigestConfig schedules the pending-approval reminder. An empty Cron disables it.
type DigestConfig struct {
	Cron     string `yaml:"cron" envconfig:"DIGEST_CRON"`
	Timezone string `yaml:"timezone" envconfig:"DIGEST_TIMEZONE"`
}

// BroadcastConfig bounds broadcast fan-out.
type BroadcastConfig struct {
	Workers int `yaml:"workers" envconfig:"BROADCAST_WORKERS"`
}

// Config is the full bot configuration.
type Config struct {
	coreconfig.Config `yaml:",inline"`

	Database  coredatabase.Config `yaml:"database"`
	Store     StoreConfig         `yaml:"store"`
	Session   SessionConfig       `yaml:"session"`
	Metrics   MetricsConfig       `yaml:"metrics"`
	Digest    DigestConfig        `yaml:"digest"`
	Broadcast BroadcastConfig     `yaml:"broadcast"`
	Catalog   flow.Catalog        `yaml:"catalog" ignored:"true"`

	location *time.Location
}

// CoreConfig exposes the embedded core configuration.
func (c *Config) CoreConfig() *coreconfig.Config {
	if c == nil {
		return nil
	}
	return &c.Config
}

// Location returns the digest timezone, UTC when unset.
func (c *Config) Location() *time.Location {
	if c.location == nil {
		return time.UTC
	}
	return c.location
}

// LoadConfig reads path, applies environment overrides and validates the result.
func LoadConfig(path string) (*Config, error) {
	cfg := &Config{}
	if err := coreconfig.Decode(path, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Normalize(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Normalize validates every section and fills defaults.
func (c *Config) Normalize() error {
	if err := coreconfig.Normalize(&c.Config); err != nil {
		return err
	}

	c.Store.Backend = strings.ToLower(strings.TrimSpace(c.Store.Backend))
	switch c.Store.Backend {
	case "":
		c.Store.Backend = StoreSQL
		fallthrough
	case StoreSQL:
		if err := c.Database.Normalize(); err != nil {
			return err
		}
	case StoreMemory:
	default:
		return fmt.Errorf("invalid store.backend %q; allowed: sql, memory", c.Store.Backend)
	}

	c.Session.Backend = strings.ToLower(strings.TrimSpace(c.Session.Backend))
	switch c.Session.Backend {
	case "":
		c.Session.Backend = SessionMemory
	case SessionMemory:
	case SessionRedis:
		if strings.TrimSpace(c.Session.Redis.Addr) == "" {
			return fmt.Errorf("session.redis.addr is required when session.backend is 'redis'")
		}
		if c.Session.Redis.Prefix == "" {
			c.Session.Redis.Prefix = "vpnshop:"
		}
	default:
		return fmt.Errorf("invalid session.backend %q; allowed: memory, redis", c.Session.Backend)
	}

	if c.Broadcast.Workers <= 0 {
		c.Broadcast.Workers = 8
	}

	c.location = time.UTC
	if tz := strings.TrimSpace(c.Digest.Timezone); tz != "" {
		loc, err := time.LoadLocation(tz)
		if err != nil {
			return fmt.Errorf("invalid digest.timezone %q: %w", tz, err)
		}
		c.location = loc
	}
	c.Catalog.Normalize()
	return nil
}
