package appconfig

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const (
	StoreSQLite = "sqlite"
	StoreRedis  = "redis"
	StoreMemory = "memory"
)

// Config holds runtime settings for the terminal client.
type Config struct {
	ProviderURL     string
	APIKey          string
	AllowListTable  string
	ProviderTimeout time.Duration
	// CreateUsers lets a one-time code request create an account for an
	// allow-listed email the provider does not know yet.
	CreateUsers bool

	Store       string
	StorePath   string
	RedisAddr   string
	RedisPrefix string

	AppVersion     string
	ResendCooldown time.Duration

	LogLevel     string
	LogJSON      bool
	MetricsAddr  string
	AuditLogPath string
}

// LoadDefaults sets the defaults every other source overlays.
func (c *Config) LoadDefaults() {
	c.AllowListTable = "authorized_emails"
	c.ProviderTimeout = 10 * time.Second
	c.CreateUsers = true
	c.Store = StoreSQLite
	c.StorePath = "fleetauth.db"
	c.RedisAddr = "127.0.0.1:6379"
	c.RedisPrefix = "fleetauth"
	c.AppVersion = "dev"
	c.ResendCooldown = 30 * time.Second
	c.LogLevel = "info"
}

// Load applies defaults, the JSON file, the environment and flags, in that
// order, then validates. args excludes the program name; getenv is usually
// os.Getenv.
func Load(args []string, getenv func(string) string) (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()

	if err := parseJSON(cfg, configPath(args)); err != nil {
		return nil, err
	}
	parseEnv(cfg, getenv)
	if err := parseFlags(cfg, args); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports the first unusable setting.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.ProviderURL) == "" {
		return errors.New("provider url required")
	}
	if strings.TrimSpace(c.APIKey) == "" {
		return errors.New("api key required")
	}
	if c.ProviderTimeout <= 0 {
		return errors.New("provider timeout must be > 0")
	}
	switch c.Store {
	case StoreSQLite:
		if c.StorePath == "" {
			return errors.New("sqlite store requires a store path")
		}
	case StoreRedis:
		if c.RedisAddr == "" {
			return errors.New("redis store requires a redis address")
		}
	case StoreMemory:
	default:
		return fmt.Errorf("unknown store %q", c.Store)
	}
	if c.ResendCooldown < time.Second {
		return errors.New("resend cooldown must be >= 1s")
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	return nil
}

// Level parses LogLevel.
func (c *Config) Level() (zerolog.Level, error) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(c.LogLevel)))
	if err != nil {
		return zerolog.NoLevel, fmt.Errorf("log level: %w", err)
	}
	return lvl, nil
}
