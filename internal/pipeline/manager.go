package pipeline

import (
	"log/slog"
	"time"

	"easel/internal/blobstore"
	"easel/internal/config"
	"easel/internal/describe"
	"easel/internal/ledger"
	"easel/internal/logging"
	"easel/internal/prompt"
	"easel/internal/providers"
	"easel/internal/retry"
	"easel/internal/services"
)

// Manager drives posts through the generation lifecycle and commits every
// outcome, success or failure, to the ledger.
type Manager struct {
	cfg      *config.Config
	store    *ledger.Store
	blobs    *blobstore.Store
	registry providers.Registry
	analyzer *describe.Analyzer
	template *prompt.Template
	policy   retry.Policy
	logger   *slog.Logger
}

// Option customizes a Manager.
type Option func(*Manager)

// WithPolicy replaces the provider retry policy. Tests use this to strip
// the backoff delays.
func WithPolicy(policy retry.Policy) Option {
	return func(m *Manager) {
		m.policy = policy
	}
}

func NewManager(cfg *config.Config, store *ledger.Store, blobs *blobstore.Store, registry providers.Registry, analyzer *describe.Analyzer, logger *slog.Logger, opts ...Option) (*Manager, error) {
	if cfg == nil || store == nil || blobs == nil {
		return nil, services.Wrap(services.ErrConfiguration, "pipeline", "new manager", "config, ledger store, and blob store are required", nil)
	}
	if len(registry) == 0 {
		return nil, services.Wrap(services.ErrConfiguration, "pipeline", "new manager", "no generation providers registered", nil)
	}
	template, err := prompt.New(cfg.Brand)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	policy := retry.Default()
	if cfg.Generation.MaxRetries > 0 {
		policy.MaxAttempts = cfg.Generation.MaxRetries
	}
	if cfg.Generation.BackoffSeconds > 0 {
		policy.BaseDelay = time.Duration(cfg.Generation.BackoffSeconds) * time.Second
	}
	manager := &Manager{
		cfg:      cfg,
		store:    store,
		blobs:    blobs,
		registry: registry,
		analyzer: analyzer,
		template: template,
		policy:   policy,
		logger:   logging.NewComponentLogger(logger, "pipeline"),
	}
	for _, opt := range opts {
		opt(manager)
	}
	return manager, nil
}

// variations returns the provider preference order: the explicit override
// when given, otherwise the configured list.
func (m *Manager) variations(preferred []string) []string {
	if len(preferred) > 0 {
		return preferred
	}
	return m.cfg.Generation.Variations
}
