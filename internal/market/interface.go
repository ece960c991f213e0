// Package market provides quote feeds for A-share symbols. It includes
// the Eastmoney push-service client, a TTL price cache and scripted
// sources for offline runs.
package market

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker"
)

// Source defines the quote feed contract the engine consumes.
type Source interface {
	// LastPrice returns the latest traded price for the symbol.
	LastPrice(ctx context.Context, symbol string) (decimal.Decimal, error)

	// Limits returns the daily price band. A zero band with a nil error
	// means the venue published none; callers skip band validation then.
	Limits(ctx context.Context, symbol string) (Limits, error)

	// Quote returns the level-1 snapshot with five book levels.
	Quote(ctx context.Context, symbol string) (*Quote, error)
}

// Limits is the exchange-published daily price band.
type Limits struct {
	Upper decimal.Decimal `json:"upper"`
	Lower decimal.Decimal `json:"lower"`
}

// Zero returns true when no band was published.
func (l Limits) Zero() bool {
	return l.Upper.IsZero() && l.Lower.IsZero()
}

// BookLevel is one price level of the five-level depth.
type BookLevel struct {
	Price  decimal.Decimal `json:"price"`
	Volume int64           `json:"volume"`
}

// Quote is a level-1 snapshot of one symbol.
type Quote struct {
	Timestamp     time.Time       `json:"timestamp"`
	Symbol        string          `json:"symbol"`
	Name          string          `json:"name"`
	Bids          []BookLevel     `json:"bids"`
	Asks          []BookLevel     `json:"asks"`
	Last          decimal.Decimal `json:"last"`
	Open          decimal.Decimal `json:"open"`
	High          decimal.Decimal `json:"high"`
	Low           decimal.Decimal `json:"low"`
	PrevClose     decimal.Decimal `json:"prev_close"`
	UpperLimit    decimal.Decimal `json:"upper_limit"`
	LowerLimit    decimal.Decimal `json:"lower_limit"`
	Amount        decimal.Decimal `json:"amount"`
	Change        decimal.Decimal `json:"change"`
	ChangePercent decimal.Decimal `json:"change_percent"`
	Volume        int64           `json:"volume"`
}

// APIError represents a quote feed error with status code and response body
type APIError struct {
	Body   string
	Status int
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error %d: %s", e.Status, e.Body)
}

// IsPermanentAPIError reports whether an error is a 4xx feed error that
// retrying cannot fix. 429 stays retryable.
func IsPermanentAPIError(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status >= 400 && apiErr.Status < 500 && apiErr.Status != 429
	}
	return false
}

// BreakerSource wraps a Source with circuit breaker functionality so a
// flapping feed cannot stall every matching pass.
type BreakerSource struct {
	source  Source
	breaker *gobreaker.CircuitBreaker
}

// Ensure BreakerSource implements Source at compile time.
var _ Source = (*BreakerSource)(nil)

// execBreaker is a generic helper for circuit breaker wrapper methods
func execBreaker[T any](
	breaker *gobreaker.CircuitBreaker,
	source Source,
	fn func(Source) (T, error),
) (T, error) {
	var zero T
	res, err := breaker.Execute(func() (interface{}, error) { return fn(source) })
	if err != nil {
		return zero, err
	}
	if res == nil {
		return zero, nil
	}
	v, ok := res.(T)
	if !ok {
		return zero, errors.New("circuit breaker: type assertion failed")
	}
	return v, nil
}

// BreakerSettings configures circuit breaker behavior
type BreakerSettings struct {
	MaxRequests  uint32        // Max requests when half-open
	Interval     time.Duration // Reset counts interval
	Timeout      time.Duration // Open circuit duration
	MinRequests  uint32        // Min requests before tripping
	FailureRatio float64       // Failure ratio threshold
}

// NewBreakerSource creates a BreakerSource with sensible defaults
func NewBreakerSource(source Source) *BreakerSource {
	return NewBreakerSourceWithSettings(source, BreakerSettings{
		MaxRequests:  3,                // Allow 3 requests when half-open
		Interval:     60 * time.Second, // Reset counts every minute
		Timeout:      30 * time.Second, // Open circuit for 30 seconds
		MinRequests:  5,                // Minimum requests before tripping
		FailureRatio: 0.6,              // Trip if 60% failure rate
	})
}

// NewBreakerSourceWithSettings creates a BreakerSource with custom settings
func NewBreakerSourceWithSettings(source Source, settings BreakerSettings) *BreakerSource {
	gbSettings := gobreaker.Settings{
		Name:        "QuoteFeedCircuitBreaker",
		MaxRequests: settings.MaxRequests,
		Interval:    settings.Interval,
		Timeout:     settings.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests == 0 || counts.Requests < settings.MinRequests {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= settings.FailureRatio
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			log.Printf("Circuit breaker %s state changed from %s to %s", name, from, to)
		},
	}

	return &BreakerSource{
		source:  source,
		breaker: gobreaker.NewCircuitBreaker(gbSettings),
	}
}

// LastPrice wraps the underlying source call with circuit breaker
func (b *BreakerSource) LastPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	return execBreaker(b.breaker, b.source, func(s Source) (decimal.Decimal, error) {
		return s.LastPrice(ctx, symbol)
	})
}

// Limits wraps the underlying source call with circuit breaker
func (b *BreakerSource) Limits(ctx context.Context, symbol string) (Limits, error) {
	return execBreaker(b.breaker, b.source, func(s Source) (Limits, error) {
		return s.Limits(ctx, symbol)
	})
}

// Quote wraps the underlying source call with circuit breaker
func (b *BreakerSource) Quote(ctx context.Context, symbol string) (*Quote, error) {
	return execBreaker(b.breaker, b.source, func(s Source) (*Quote, error) {
		return s.Quote(ctx, symbol)
	})
}
