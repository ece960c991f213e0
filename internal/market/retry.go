package market

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log"
	"math/big"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// RetryConfig controls how failed feed calls are retried.
type RetryConfig struct {
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// DefaultRetryConfig retries quickly. The feed sits on the matching
// path, so long waits here stall every pending order of a pass.
var DefaultRetryConfig = RetryConfig{
	MaxRetries:     3,
	InitialBackoff: 200 * time.Millisecond,
	MaxBackoff:     2 * time.Second,
}

// RetrySource wraps a Source and retries calls that failed for reasons
// that tend to clear on their own: timeouts, resets, throttling,
// gateway errors. Anything else fails on the first attempt.
type RetrySource struct {
	source Source
	logger *log.Logger
	config RetryConfig
}

// NewRetrySource creates a retrying wrapper around source. The config
// parameter is optional; if not provided, DefaultRetryConfig is used.
func NewRetrySource(source Source, logger *log.Logger, config ...RetryConfig) *RetrySource {
	cfg := DefaultRetryConfig
	if len(config) > 0 {
		cfg = config[0]
	}

	// Guard against nil logger
	if logger == nil {
		logger = log.New(os.Stderr, "retry: ", log.LstdFlags)
	}

	// Validate and clamp config values
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = DefaultRetryConfig.MaxRetries
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = DefaultRetryConfig.InitialBackoff
	}
	if cfg.MaxBackoff < cfg.InitialBackoff {
		cfg.MaxBackoff = cfg.InitialBackoff
	}

	if source == nil {
		panic("market.NewRetrySource: source must not be nil")
	}

	return &RetrySource{
		source: source,
		logger: logger,
		config: cfg,
	}
}

// LastPrice implements Source.
func (r *RetrySource) LastPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	var price decimal.Decimal
	err := r.do(ctx, "last price", symbol, func() error {
		var callErr error
		price, callErr = r.source.LastPrice(ctx, symbol)
		return callErr
	})
	return price, err
}

// Limits implements Source.
func (r *RetrySource) Limits(ctx context.Context, symbol string) (Limits, error) {
	var limits Limits
	err := r.do(ctx, "limits", symbol, func() error {
		var callErr error
		limits, callErr = r.source.Limits(ctx, symbol)
		return callErr
	})
	return limits, err
}

// Quote implements Source.
func (r *RetrySource) Quote(ctx context.Context, symbol string) (*Quote, error) {
	var quote *Quote
	err := r.do(ctx, "quote", symbol, func() error {
		var callErr error
		quote, callErr = r.source.Quote(ctx, symbol)
		return callErr
	})
	return quote, err
}

// do runs one feed call, sleeping between transient failures. The last
// error comes back wrapped with the attempt count.
func (r *RetrySource) do(ctx context.Context, op, symbol string, call func() error) error {
	var lastErr error
	backoff := r.config.InitialBackoff
	attempts := 0

	for attempt := 0; attempt <= r.config.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%s %s canceled: %w", op, symbol, err)
		}

		attempts++
		err := call()
		if err == nil {
			return nil
		}
		lastErr = err

		if !isTransientError(err) || attempt == r.config.MaxRetries {
			break
		}

		r.logger.Printf("%s %s attempt %d/%d failed (%v), retrying in %v",
			op, symbol, attempt+1, r.config.MaxRetries+1, err, backoff)

		select {
		case <-time.After(backoff):
			backoff = r.nextBackoff(backoff)
		case <-ctx.Done():
			return fmt.Errorf("%s %s canceled during backoff: %w", op, symbol, ctx.Err())
		}
	}

	return fmt.Errorf("%s %s failed after %d attempt(s): %w", op, symbol, attempts, lastErr)
}

// nextBackoff grows the wait by half and jitters it so a flapping feed
// does not see retries arrive in lockstep.
func (r *RetrySource) nextBackoff(current time.Duration) time.Duration {
	next := time.Duration(float64(current) * 1.5)
	if next > r.config.MaxBackoff {
		next = r.config.MaxBackoff
	}

	maxJitter := int64(next / 4)
	if maxJitter > 0 {
		jitterVal, err := rand.Int(rand.Reader, big.NewInt(maxJitter))
		if err != nil {
			r.logger.Printf("Failed to generate jitter: %v", err)
		} else {
			next += time.Duration(jitterVal.Int64())
		}
	}

	return next
}

// isTransientError reports whether a feed failure is worth retrying. A
// status code from the feed wins over string matching.
func isTransientError(err error) bool {
	if err == nil {
		return false
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return !IsPermanentAPIError(err)
	}

	errStr := strings.ToLower(err.Error())

	transientPatterns := []string{
		"timeout",
		"connection refused",
		"connection reset",
		"temporary failure",
		"server error",
		"rate limit",
		"429",
		"502",
		"503",
		"504",
		"network",
		"dns",
		"tcp",
	}

	for _, pattern := range transientPatterns {
		if strings.Contains(errStr, pattern) {
			return true
		}
	}

	return false
}
