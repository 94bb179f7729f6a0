package appconfig

import (
	"flag"
	"io"
	"strings"
)

func newFlagSet(cfg *Config, configFile *string) *flag.FlagSet {
	fs := flag.NewFlagSet("fleetauth", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(configFile, "c", "", "path to JSON config file (short)")
	fs.StringVar(configFile, "config", "", "path to JSON config file")
	fs.StringVar(&cfg.ProviderURL, "provider-url", cfg.ProviderURL, "identity provider base url")
	fs.StringVar(&cfg.APIKey, "api-key", cfg.APIKey, "identity provider public api key")
	fs.StringVar(&cfg.AllowListTable, "allow-list-table", cfg.AllowListTable, "table listing authorized emails")
	fs.DurationVar(&cfg.ProviderTimeout, "timeout", cfg.ProviderTimeout, "provider request timeout")
	fs.BoolVar(&cfg.CreateUsers, "create-users", cfg.CreateUsers, "create provider accounts for unknown allow-listed emails on code requests")
	fs.StringVar(&cfg.Store, "store", cfg.Store, "local store backend: sqlite, redis or memory")
	fs.StringVar(&cfg.StorePath, "store-path", cfg.StorePath, "sqlite database path")
	fs.StringVar(&cfg.RedisAddr, "redis-addr", cfg.RedisAddr, "redis address")
	fs.StringVar(&cfg.RedisPrefix, "redis-prefix", cfg.RedisPrefix, "redis key prefix")
	fs.StringVar(&cfg.AppVersion, "app-version", cfg.AppVersion, "installed app version marker")
	fs.DurationVar(&cfg.ResendCooldown, "resend-cooldown", cfg.ResendCooldown, "one-time code resend cooldown")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level")
	fs.BoolVar(&cfg.LogJSON, "log-json", cfg.LogJSON, "log JSON instead of console output")
	fs.StringVar(&cfg.MetricsAddr, "metrics-addr", cfg.MetricsAddr, "serve /metrics on this address")
	fs.StringVar(&cfg.AuditLogPath, "audit-log", cfg.AuditLogPath, "append audit events to this file, or - to log them")
	return fs
}

// configPath finds -c or -config without parsing other flags.
func configPath(args []string) string {
	var path string
	fs := flag.NewFlagSet("config", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&path, "c", "", "")
	fs.StringVar(&path, "config", "", "")
	_ = fs.Parse(filterArgs(args, []string{"-c", "-config", "--c", "--config"}))
	return path
}

func parseFlags(cfg *Config, args []string) error {
	var ignored string
	return newFlagSet(cfg, &ignored).Parse(args)
}

// filterArgs keeps only the allowed flags and their values, in either the
// "-flag value" or "-flag=value" form.
func filterArgs(args []string, allowed []string) []string {
	set := make(map[string]struct{}, len(allowed))
	for _, f := range allowed {
		set[f] = struct{}{}
	}

	out := make([]string, 0, len(args))
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if strings.HasPrefix(arg, "-") && strings.Contains(arg, "=") {
			if _, ok := set[strings.SplitN(arg, "=", 2)[0]]; ok {
				out = append(out, arg)
			}
			continue
		}
		if _, ok := set[arg]; ok {
			out = append(out, arg)
			if i+1 < len(args) && !strings.HasPrefix(args[i+1], "-") {
				out = append(out, args[i+1])
				i++
			}
		}
	}
	return out
}

// Usage writes flag help to w.
func Usage(w io.Writer) {
	cfg := &Config{}
	cfg.LoadDefaults()
	var ignored string
	fs := newFlagSet(cfg, &ignored)
	fs.SetOutput(w)
	fs.PrintDefaults()
}
