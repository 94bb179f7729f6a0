// Command fleetauth is a terminal client for the fleet app sign-in flow.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	fleetAuth "github.com/MrEthical07/fleetAuth"
	"github.com/MrEthical07/fleetAuth/internal/appconfig"
	"github.com/MrEthical07/fleetAuth/internal/cli"
	"github.com/MrEthical07/fleetAuth/kvstore"
	"github.com/MrEthical07/fleetAuth/metrics/export/prometheus"
	"github.com/MrEthical07/fleetAuth/provider/gotrue"
	"github.com/common-nighthawk/go-figure"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const appname = "fleetauth"

func main() {
	cfg, err := appconfig.Load(os.Args[1:], os.Getenv)
	if err != nil {
		fmt.Fprintln(os.Stderr, "fleetauth:", err)
		appconfig.Usage(os.Stderr)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		fmt.Fprintln(os.Stderr, "fleetauth:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *appconfig.Config) error {
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	displayAppname(appname)

	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Warn().Err(err).Msg("close store")
		}
	}()

	provider, err := gotrue.New(gotrue.Config{
		BaseURL:        cfg.ProviderURL,
		APIKey:         cfg.APIKey,
		AllowListTable: cfg.AllowListTable,
		DisableSignup:  !cfg.CreateUsers,
		Timeout:        cfg.ProviderTimeout,
	}, store, gotrue.WithLogger(logger))
	if err != nil {
		return err
	}

	authCfg := fleetAuth.DefaultConfig()
	authCfg.App.Version = cfg.AppVersion
	authCfg.OTP.ResendCooldown = cfg.ResendCooldown
	authCfg.Metrics.EnableLatencyHistograms = cfg.MetricsAddr != ""

	builder := fleetAuth.New().
		WithConfig(authCfg).
		WithProvider(provider).
		WithLocalStore(store).
		WithLogger(logger)

	switch cfg.AuditLogPath {
	case "":
	case "-":
		authCfg.Audit.Enabled = true
		builder = builder.WithConfig(authCfg).WithAuditSink(fleetAuth.NewLogSink(logger))
	default:
		f, err := os.OpenFile(cfg.AuditLogPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
		if err != nil {
			return fmt.Errorf("open audit log: %w", err)
		}
		defer f.Close()
		authCfg.Audit.Enabled = true
		builder = builder.WithConfig(authCfg).WithAuditSink(fleetAuth.NewJSONWriterSink(f))
	}

	orch, err := builder.Build()
	if err != nil {
		return err
	}
	defer func() {
		if err := orch.Close(); err != nil {
			logger.Warn().Err(err).Msg("close orchestrator")
		}
	}()

	if cfg.MetricsAddr != "" {
		server := serveMetrics(cfg.MetricsAddr, orch, logger)
		defer func() {
			if err := shutdown(server); err != nil {
				logger.Warn().Err(err).Msg("metrics server shutdown")
			}
		}()
	}

	if err := orch.InitializeAuthState(ctx); err != nil {
		logger.Warn().Err(err).Msg("restore")
	}

	repl := cli.NewREPL(orch, os.Stdin, os.Stdout)
	updates, unsubscribe := orch.Subscribe(16)
	defer unsubscribe()
	go repl.Watch(updates)

	// Unblock the pending line read on interrupt.
	go func() {
		<-ctx.Done()
		_ = os.Stdin.Close()
	}()

	return repl.Run(ctx)
}

func newLogger(cfg *appconfig.Config) (zerolog.Logger, error) {
	level, err := cfg.Level()
	if err != nil {
		return zerolog.Nop(), err
	}
	var w io.Writer = os.Stderr
	if !cfg.LogJSON {
		w = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}
	}
	return zerolog.New(w).Level(level).With().Timestamp().Logger(), nil
}

type closableStore interface {
	fleetAuth.LocalStore
	Close() error
}

func openStore(ctx context.Context, cfg *appconfig.Config) (closableStore, error) {
	switch cfg.Store {
	case appconfig.StoreSQLite:
		db, err := kvstore.OpenSQLite(ctx, cfg.StorePath)
		if err != nil {
			return nil, err
		}
		return db, nil
	case appconfig.StoreRedis:
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("redis %s: %w", cfg.RedisAddr, err)
		}
		return &ownedRedis{Redis: kvstore.NewRedis(client, cfg.RedisPrefix), client: client}, nil
	default:
		return kvstore.NewMemory(), nil
	}
}

// ownedRedis closes the client kvstore.Redis leaves to its caller.
type ownedRedis struct {
	*kvstore.Redis
	client *redis.Client
}

func (r *ownedRedis) Close() error {
	return errors.Join(r.Redis.Close(), r.client.Close())
}

func serveMetrics(addr string, orch *fleetAuth.Orchestrator, logger zerolog.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", prometheus.NewPrometheusExporter(orch).Handler())

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info().Str("addr", addr).Msg("serving metrics")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("metrics server")
		}
	}()
	return server
}

func shutdown(server *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
