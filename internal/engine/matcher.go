package engine

import (
	"context"
	"log"
	"os"
	"time"
)

// MatcherConfig contains settings for the background matching loop.
type MatcherConfig struct {
	// PollInterval is the time between matching passes.
	PollInterval time.Duration
	// PassTimeout bounds the feed calls of a single pass.
	PassTimeout time.Duration
}

// DefaultMatcherConfig is the default configuration for the matcher.
var DefaultMatcherConfig = MatcherConfig{
	PollInterval: 2 * time.Second,
	PassTimeout:  10 * time.Second,
}

// Matcher drives the pending-order queue: every poll interval it runs
// one matching pass against the live feed.
type Matcher struct {
	service *Service
	logger  *log.Logger
	config  MatcherConfig
	nowFn   func() time.Time
}

// NewMatcher creates a matcher over the service. The config parameter
// is optional; if not provided, DefaultMatcherConfig is used.
func NewMatcher(service *Service, logger *log.Logger, config ...MatcherConfig) *Matcher {
	cfg := DefaultMatcherConfig
	if len(config) > 0 {
		cfg = config[0]
	}

	// Guard against nil logger
	if logger == nil {
		logger = log.New(os.Stderr, "matcher: ", log.LstdFlags)
	}

	// Validate and clamp config values
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultMatcherConfig.PollInterval
	}
	if cfg.PassTimeout <= 0 {
		cfg.PassTimeout = DefaultMatcherConfig.PassTimeout
	}

	// Validate required dependencies (fail fast to avoid later panics)
	if service == nil {
		panic("engine.NewMatcher: service must not be nil")
	}

	return &Matcher{
		service: service,
		logger:  logger,
		config:  cfg,
		nowFn:   time.Now,
	}
}

// Run polls the pending queue until the context ends. The first pass
// runs immediately so a restart does not wait a full interval to expire
// overdue orders.
func (m *Matcher) Run(ctx context.Context) {
	m.logger.Printf("matching loop started, interval %s", m.config.PollInterval)

	m.pass(ctx)

	ticker := time.NewTicker(m.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.logger.Printf("matching loop stopped: %v", ctx.Err())
			return
		case <-ticker.C:
			m.pass(ctx)
		}
	}
}

// pass runs one bounded matching pass.
func (m *Matcher) pass(ctx context.Context) {
	passCtx, cancel := context.WithTimeout(ctx, m.config.PassTimeout)
	defer cancel()

	if m.service.ProcessPending(passCtx, m.nowFn()) {
		m.logger.Printf("matching pass settled orders, %d still pending", m.service.PendingCount())
	}
}
