package appconfig

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"
)

// duration accepts "10s" style strings or integer nanoseconds.
type duration time.Duration

func (d *duration) UnmarshalJSON(b []byte) error {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	switch x := v.(type) {
	case float64:
		*d = duration(time.Duration(x))
		return nil
	case string:
		parsed, err := time.ParseDuration(x)
		if err != nil {
			return err
		}
		*d = duration(parsed)
		return nil
	default:
		return errors.New("invalid duration")
	}
}

// jsonConfig is the file schema. Absent fields keep earlier values.
type jsonConfig struct {
	ProviderURL     *string   `json:"provider_url"`
	APIKey          *string   `json:"api_key"`
	AllowListTable  *string   `json:"allow_list_table"`
	ProviderTimeout *duration `json:"provider_timeout"`
	CreateUsers     *bool     `json:"create_users"`
	Store           *string   `json:"store"`
	StorePath       *string   `json:"store_path"`
	RedisAddr       *string   `json:"redis_addr"`
	RedisPrefix     *string   `json:"redis_prefix"`
	AppVersion      *string   `json:"app_version"`
	ResendCooldown  *duration `json:"resend_cooldown"`
	LogLevel        *string   `json:"log_level"`
	LogJSON         *bool     `json:"log_json"`
	MetricsAddr     *string   `json:"metrics_addr"`
	AuditLogPath    *string   `json:"audit_log"`
}

func parseJSON(cfg *Config, path string) error {
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	var jc jsonConfig
	if err := json.Unmarshal(data, &jc); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}

	setString(&cfg.ProviderURL, jc.ProviderURL)
	setString(&cfg.APIKey, jc.APIKey)
	setString(&cfg.AllowListTable, jc.AllowListTable)
	setDuration(&cfg.ProviderTimeout, jc.ProviderTimeout)
	setBool(&cfg.CreateUsers, jc.CreateUsers)
	setString(&cfg.Store, jc.Store)
	setString(&cfg.StorePath, jc.StorePath)
	setString(&cfg.RedisAddr, jc.RedisAddr)
	setString(&cfg.RedisPrefix, jc.RedisPrefix)
	setString(&cfg.AppVersion, jc.AppVersion)
	setDuration(&cfg.ResendCooldown, jc.ResendCooldown)
	setString(&cfg.LogLevel, jc.LogLevel)
	setBool(&cfg.LogJSON, jc.LogJSON)
	setString(&cfg.MetricsAddr, jc.MetricsAddr)
	setString(&cfg.AuditLogPath, jc.AuditLogPath)
	return nil
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func setBool(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}

func setDuration(dst *time.Duration, v *duration) {
	if v != nil {
		*dst = time.Duration(*v)
	}
}
