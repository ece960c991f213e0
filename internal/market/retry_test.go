package market

import (
	"bytes"
	"context"
	"errors"
	"log"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

// flakySource fails with errTransient until successAfterN calls have
// been made, then returns a fixed price. A permanent error, when set,
// wins every time.
type flakySource struct {
	callCount int32

	successAfterN int
	errTransient  error
	errPermanent  error
}

func (f *flakySource) LastPrice(_ context.Context, _ string) (decimal.Decimal, error) {
	atomic.AddInt32(&f.callCount, 1)

	if f.errPermanent != nil {
		return decimal.Zero, f.errPermanent
	}
	if f.successAfterN > 0 && int(atomic.LoadInt32(&f.callCount)) < f.successAfterN {
		if f.errTransient != nil {
			return decimal.Zero, f.errTransient
		}
		return decimal.Zero, errors.New("timeout") // default transient
	}
	return decimal.RequireFromString("9.80"), nil
}

func (f *flakySource) Limits(ctx context.Context, symbol string) (Limits, error) {
	if _, err := f.LastPrice(ctx, symbol); err != nil {
		return Limits{}, err
	}
	return Limits{Upper: decimal.RequireFromString("11.00"), Lower: decimal.RequireFromString("9.00")}, nil
}

func (f *flakySource) Quote(ctx context.Context, symbol string) (*Quote, error) {
	last, err := f.LastPrice(ctx, symbol)
	if err != nil {
		return nil, err
	}
	return &Quote{Symbol: symbol, Last: last}, nil
}

func (f *flakySource) calls() int {
	return int(atomic.LoadInt32(&f.callCount))
}

// makeRetrySource builds a RetrySource with fast timing and a
// buffer-backed logger.
func makeRetrySource(t *testing.T, source Source, cfg RetryConfig) (*RetrySource, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	l := log.New(&buf, "", 0)
	return NewRetrySource(source, l, cfg), &buf
}

func fastRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:     3,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     4 * time.Millisecond,
	}
}

func TestNewRetrySource_ConfigSanitizationAndDefaults(t *testing.T) {
	r := NewRetrySource(&flakySource{}, nil, RetryConfig{
		MaxRetries:     -1,
		InitialBackoff: 0,
		MaxBackoff:     0,
	})

	if r.logger == nil {
		t.Fatalf("expected logger to be non-nil (defaulted)")
	}
	if r.config.MaxRetries != DefaultRetryConfig.MaxRetries {
		t.Fatalf("MaxRetries sanitized: got %d want %d", r.config.MaxRetries, DefaultRetryConfig.MaxRetries)
	}
	if r.config.InitialBackoff != DefaultRetryConfig.InitialBackoff {
		t.Fatalf("InitialBackoff sanitized: got %v want %v", r.config.InitialBackoff, DefaultRetryConfig.InitialBackoff)
	}
	if r.config.MaxBackoff < r.config.InitialBackoff {
		t.Fatalf("MaxBackoff below InitialBackoff: %v < %v", r.config.MaxBackoff, r.config.InitialBackoff)
	}

	defer func() {
		if recover() == nil {
			t.Fatalf("expected nil source to panic")
		}
	}()
	NewRetrySource(nil, nil)
}

func TestRetrySource_SucceedsFirstAttempt(t *testing.T) {
	fs := &flakySource{}
	r, buf := makeRetrySource(t, fs, fastRetryConfig())

	price, err := r.LastPrice(context.Background(), "sh600000")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !price.Equal(decimal.RequireFromString("9.80")) {
		t.Fatalf("price = %s, want 9.80", price)
	}
	if fs.calls() != 1 {
		t.Fatalf("expected 1 feed call, got %d", fs.calls())
	}
	if buf.Len() != 0 {
		t.Fatalf("a clean call should not log, got: %s", buf.String())
	}
}

func TestRetrySource_RecoversFromTransientErrors(t *testing.T) {
	fs := &flakySource{
		successAfterN: 3,
		errTransient:  errors.New("read: connection reset by peer"),
	}
	r, buf := makeRetrySource(t, fs, fastRetryConfig())

	price, err := r.LastPrice(context.Background(), "sh600000")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !price.Equal(decimal.RequireFromString("9.80")) {
		t.Fatalf("price = %s, want 9.80", price)
	}
	if fs.calls() != 3 {
		t.Fatalf("expected 3 feed calls, got %d", fs.calls())
	}
	if !strings.Contains(buf.String(), "retrying in") {
		t.Fatalf("expected retry logging, got: %s", buf.String())
	}
}

func TestRetrySource_GivesUpAfterMaxRetries(t *testing.T) {
	fs := &flakySource{
		successAfterN: 100,
		errTransient:  errors.New("504 Gateway Timeout"),
	}
	r, _ := makeRetrySource(t, fs, fastRetryConfig())

	_, err := r.LastPrice(context.Background(), "sh600000")
	if err == nil {
		t.Fatalf("expected an error after retries are exhausted")
	}
	if fs.calls() != 4 {
		t.Fatalf("expected 4 feed calls (1 + 3 retries), got %d", fs.calls())
	}
	if !strings.Contains(err.Error(), "failed after 4 attempt(s)") {
		t.Fatalf("error should carry the attempt count, got: %v", err)
	}
}

func TestRetrySource_PermanentErrorFailsFast(t *testing.T) {
	fs := &flakySource{
		errPermanent: errors.New("symbol is delisted"),
	}
	r, _ := makeRetrySource(t, fs, fastRetryConfig())

	_, err := r.LastPrice(context.Background(), "sh600000")
	if err == nil {
		t.Fatalf("expected the permanent error through")
	}
	if fs.calls() != 1 {
		t.Fatalf("permanent errors must not retry, got %d calls", fs.calls())
	}
}

func TestRetrySource_HonorsContext(t *testing.T) {
	fs := &flakySource{
		successAfterN: 100,
		errTransient:  errors.New("timeout"),
	}
	r, _ := makeRetrySource(t, fs, RetryConfig{
		MaxRetries:     3,
		InitialBackoff: time.Hour, // the cancel must cut the backoff short
		MaxBackoff:     time.Hour,
	})

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, err := r.LastPrice(ctx, "sh600000")
		errCh <- err
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected a canceled error, got: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("retry loop ignored the canceled context")
	}
}

func TestRetrySource_WrapsAllSourceMethods(t *testing.T) {
	fs := &flakySource{successAfterN: 2, errTransient: errors.New("tcp handshake failed")}
	r, _ := makeRetrySource(t, fs, fastRetryConfig())
	ctx := context.Background()

	if _, err := r.Limits(ctx, "sh600000"); err != nil {
		t.Fatalf("Limits: %v", err)
	}

	fs2 := &flakySource{successAfterN: 2, errTransient: errors.New("dns lookup failed")}
	r2, _ := makeRetrySource(t, fs2, fastRetryConfig())
	quote, err := r2.Quote(ctx, "sh600000")
	if err != nil {
		t.Fatalf("Quote: %v", err)
	}
	if quote.Symbol != "sh600000" {
		t.Fatalf("quote symbol = %s", quote.Symbol)
	}
}

func TestIsTransientError_Patterns(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"timeout", errors.New("request TIMEOUT while processing"), true},
		{"conn refused", errors.New("connection refused by target"), true},
		{"conn reset", errors.New("read: connection reset by peer"), true},
		{"temporary failure", errors.New("temporary failure in name resolution"), true},
		{"server error", errors.New("internal server error"), true},
		{"rate limit", errors.New("rate limit exceeded"), true},
		{"status 429", &APIError{Status: 429, Body: "slow down"}, true},
		{"status 503", &APIError{Status: 503, Body: "maintenance"}, true},
		{"status 404", &APIError{Status: 404, Body: "no such symbol"}, false},
		{"network", errors.New("network unreachable"), true},
		{"dns", errors.New("dns lookup failed"), true},
		{"tcp", errors.New("tcp handshake failed"), true},
		{"non-transient", errors.New("validation failed: odd lot"), false},
		{"empty string", errors.New(""), false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := isTransientError(tc.err); got != tc.want {
				t.Fatalf("isTransientError(%v)=%v want %v", tc.err, got, tc.want)
			}
		})
	}
}
