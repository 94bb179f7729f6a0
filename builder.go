package fleetAuth

import (
	"errors"

	internalaudit "github.com/MrEthical07/fleetAuth/internal/audit"
	"github.com/MrEthical07/fleetAuth/internal/stores"
	"github.com/rs/zerolog"
)

// Builder assembles an Orchestrator. A Builder is single use.
type Builder struct {
	config Config

	provider  IdentityProvider
	store     LocalStore
	session   SessionState
	auditSink AuditSink
	logger    *zerolog.Logger

	built bool
}

// New returns a Builder holding DefaultConfig.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig replaces the whole configuration with a copy of cfg.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithProvider sets the identity provider. Required.
func (b *Builder) WithProvider(p IdentityProvider) *Builder {
	b.provider = p
	return b
}

// WithLocalStore sets the durable flag store. Required.
func (b *Builder) WithLocalStore(s LocalStore) *Builder {
	b.store = s
	return b
}

// WithSessionState sets the app-wide authenticated flag. Defaults to a fresh
// AppSession.
func (b *Builder) WithSessionState(s SessionState) *Builder {
	b.session = s
	return b
}

// WithAuditSink sets the sink used when Audit.Enabled is true.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithLogger sets the logger. Defaults to zerolog.Nop.
func (b *Builder) WithLogger(l zerolog.Logger) *Builder {
	b.logger = &l
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and returns an Orchestrator in the
// Unauthenticated stage. Call InitializeAuthState before any other intent.
func (b *Builder) Build() (*Orchestrator, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if b.provider == nil {
		return nil, errors.New("identity provider required")
	}
	if b.store == nil {
		return nil, errors.New("local store required")
	}

	session := b.session
	if session == nil {
		session = NewAppSession(nil)
	}
	logger := zerolog.Nop()
	if b.logger != nil {
		logger = *b.logger
	}

	o := &Orchestrator{
		config:   cfg,
		provider: b.provider,
		flags:    stores.NewFlowState(b.store),
		session:  session,
		logger:   logger.With().Str("component", "fleetauth").Logger(),
		metrics:  NewMetrics(cfg.Metrics),
		audit: internalaudit.NewDispatcher(internalaudit.Config{
			Enabled:    cfg.Audit.Enabled,
			BufferSize: cfg.Audit.BufferSize,
			DropIfFull: cfg.Audit.DropIfFull,
		}, b.auditSink),
		policy:    passwordPolicy(cfg.Password),
		newTicker: newTimeTicker,
		newFlowID: newFlowID,
		stage:     StageUnauthenticated,
		subs:      make(map[uint64]chan State),
	}
	o.deps = o.flowDeps()

	b.built = true
	return o, nil
}
