package fleetAuth

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Config controls orchestrator behavior. Build clones it; later changes to the
// caller's copy have no effect.
type Config struct {
	App      AppConfig
	OTP      OTPConfig
	Password PasswordConfig
	Email    EmailConfig
	Audit    AuditConfig
	Metrics  MetricsConfig
}

/*
====================================
APP CONFIG
====================================
*/

// AppConfig identifies the running build. Version is compared against the
// persisted marker at startup to detect reinstalls.
type AppConfig struct {
	Version string
}

/*
====================================
OTP CONFIG
====================================
*/

// OTPConfig defines the resend cooldown. The counter starts at
// ResendCooldown in whole seconds and drops by one every CooldownTick.
type OTPConfig struct {
	ResendCooldown time.Duration
	CooldownTick   time.Duration
}

/*
====================================
PASSWORD CONFIG
====================================
*/

// PasswordConfig is the new-password policy enforced before UpdatePassword.
// It can be tightened but never relaxed: MinLength is at least
// MinPasswordLength and every character class is required.
type PasswordConfig struct {
	MinLength      int
	RequireUpper   bool
	RequireLower   bool
	RequireDigit   bool
	RequireSpecial bool
}

/*
====================================
EMAIL CONFIG
====================================
*/

// EmailConfig controls local email format checks. RequireDomainDot rejects
// addresses whose domain part has no dot.
type EmailConfig struct {
	RequireDomainDot bool
}

/*
====================================
OBSERVABILITY CONFIG
====================================
*/

// AuditConfig controls the async audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig toggles in-process counters and the provider latency histogram.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

// DefaultConfig returns the production defaults: a 30 second resend cooldown
// ticking once per second, the eight-character four-class password policy and
// strict email checks.
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	return Config{
		App: AppConfig{
			Version: "0.0.0",
		},
		OTP: OTPConfig{
			ResendCooldown: 30 * time.Second,
			CooldownTick:   time.Second,
		},
		Password: PasswordConfig{
			MinLength:      8,
			RequireUpper:   true,
			RequireLower:   true,
			RequireDigit:   true,
			RequireSpecial: true,
		},
		Email: EmailConfig{
			RequireDomainDot: true,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 256,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

// MinPasswordLength is the shortest MinLength Validate accepts.
const MinPasswordLength = 8

func cloneConfig(cfg Config) Config {
	return cfg
}

/*
====================================
VALIDATION
====================================
*/

// Validate reports the first invalid field.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.App.Version) == "" {
		return errors.New("App Version must be set")
	}

	if c.OTP.ResendCooldown < time.Second {
		return errors.New("OTP ResendCooldown must be >= 1s")
	}
	if c.OTP.ResendCooldown%time.Second != 0 {
		return errors.New("OTP ResendCooldown must be a whole number of seconds")
	}
	if c.OTP.CooldownTick <= 0 {
		return errors.New("OTP CooldownTick must be > 0")
	}

	if c.Password.MinLength < MinPasswordLength {
		return fmt.Errorf("Password MinLength must be >= %d", MinPasswordLength)
	}
	if c.Password.MinLength > 128 {
		return errors.New("Password MinLength must be <= 128")
	}
	if !c.Password.RequireUpper || !c.Password.RequireLower || !c.Password.RequireDigit || !c.Password.RequireSpecial {
		return errors.New("Password policy must require upper, lower, digit and special characters")
	}

	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when audit is enabled")
	}
	if c.Metrics.EnableLatencyHistograms && !c.Metrics.Enabled {
		return errors.New("Metrics EnableLatencyHistograms requires Metrics Enabled")
	}

	return nil
}
