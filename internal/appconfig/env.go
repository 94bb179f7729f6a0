package appconfig

import (
	"strconv"
	"time"
)

const envPrefix = "FLEETAUTH_"

// parseEnv overlays FLEETAUTH_* variables. Unparseable durations and bools
// are ignored; flags can still override them.
func parseEnv(cfg *Config, getenv func(string) string) {
	if getenv == nil {
		return
	}
	str := func(name string, dst *string) {
		if v := getenv(envPrefix + name); v != "" {
			*dst = v
		}
	}
	dur := func(name string, dst *time.Duration) {
		if v := getenv(envPrefix + name); v != "" {
			if d, err := time.ParseDuration(v); err == nil {
				*dst = d
			}
		}
	}
	boolean := func(name string, dst *bool) {
		if v := getenv(envPrefix + name); v != "" {
			if b, err := strconv.ParseBool(v); err == nil {
				*dst = b
			}
		}
	}

	str("PROVIDER_URL", &cfg.ProviderURL)
	str("API_KEY", &cfg.APIKey)
	str("ALLOW_LIST_TABLE", &cfg.AllowListTable)
	dur("PROVIDER_TIMEOUT", &cfg.ProviderTimeout)
	str("STORE", &cfg.Store)
	str("STORE_PATH", &cfg.StorePath)
	str("REDIS_ADDR", &cfg.RedisAddr)
	str("REDIS_PREFIX", &cfg.RedisPrefix)
	str("APP_VERSION", &cfg.AppVersion)
	dur("RESEND_COOLDOWN", &cfg.ResendCooldown)
	str("LOG_LEVEL", &cfg.LogLevel)
	boolean("LOG_JSON", &cfg.LogJSON)
	boolean("CREATE_USERS", &cfg.CreateUsers)
	str("METRICS_ADDR", &cfg.MetricsAddr)
	str("AUDIT_LOG", &cfg.AuditLogPath)
}
