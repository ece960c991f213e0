package market

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// ScriptedSource serves prices and bands from in-memory tables. Tests
// and the integration harness drive it; errors can be injected per
// symbol.
type ScriptedSource struct {
	prices map[string]decimal.Decimal
	limits map[string]Limits
	errs   map[string]error
	calls  map[string]int
	mu     sync.Mutex
}

// Ensure ScriptedSource implements Source at compile time.
var _ Source = (*ScriptedSource)(nil)

// NewScriptedSource creates an empty scripted source.
func NewScriptedSource() *ScriptedSource {
	return &ScriptedSource{
		prices: make(map[string]decimal.Decimal),
		limits: make(map[string]Limits),
		errs:   make(map[string]error),
		calls:  make(map[string]int),
	}
}

// SetPrice scripts the last price for a symbol.
func (s *ScriptedSource) SetPrice(symbol string, price decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prices[symbol] = price
}

// SetLimits scripts the daily band for a symbol.
func (s *ScriptedSource) SetLimits(symbol string, upper, lower decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.limits[symbol] = Limits{Upper: upper, Lower: lower}
}

// SetError makes every call for the symbol fail until cleared with a
// nil error.
func (s *ScriptedSource) SetError(symbol string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.errs, symbol)
		return
	}
	s.errs[symbol] = err
}

// CallCount returns how many LastPrice calls the symbol has seen.
func (s *ScriptedSource) CallCount(symbol string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[symbol]
}

// LastPrice returns the scripted price.
func (s *ScriptedSource) LastPrice(_ context.Context, symbol string) (decimal.Decimal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls[symbol]++
	if err, ok := s.errs[symbol]; ok {
		return decimal.Zero, err
	}
	price, ok := s.prices[symbol]
	if !ok {
		return decimal.Zero, fmt.Errorf("no scripted price for %s", symbol)
	}
	return price, nil
}

// Limits returns the scripted band, or a zero band when none is set.
func (s *ScriptedSource) Limits(_ context.Context, symbol string) (Limits, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err, ok := s.errs[symbol]; ok {
		return Limits{}, err
	}
	return s.limits[symbol], nil
}

// Quote synthesizes a snapshot around the scripted price.
func (s *ScriptedSource) Quote(ctx context.Context, symbol string) (*Quote, error) {
	last, err := s.LastPrice(ctx, symbol)
	if err != nil {
		return nil, err
	}
	limits, err := s.Limits(ctx, symbol)
	if err != nil {
		return nil, err
	}
	return &Quote{
		Timestamp:  time.Now(),
		Symbol:     symbol,
		Name:       symbol,
		Last:       last,
		Open:       last,
		High:       last,
		Low:        last,
		PrevClose:  last,
		UpperLimit: limits.Upper,
		LowerLimit: limits.Lower,
		Bids:       flatBook(last),
		Asks:       flatBook(last),
	}, nil
}

func flatBook(price decimal.Decimal) []BookLevel {
	levels := make([]BookLevel, 5)
	for i := range levels {
		levels[i] = BookLevel{Price: price, Volume: 100}
	}
	return levels
}

// secureFloat64 generates a cryptographically secure random float64 between 0 and 1
func secureFloat64() float64 {
	n, err := rand.Int(rand.Reader, big.NewInt(1<<53))
	if err != nil {
		// Fallback to a reasonable default if crypto/rand fails
		return 0.5
	}
	return float64(n.Int64()) / (1 << 53)
}

// RandomWalkSource simulates a drifting market for offline demo runs.
// Symbols seed on first sight and wander a fraction of a percent per
// call, clamped inside a ten percent band around the seed.
type RandomWalkSource struct {
	walks map[string]*walkState
	mu    sync.Mutex
}

// Ensure RandomWalkSource implements Source at compile time.
var _ Source = (*RandomWalkSource)(nil)

type walkState struct {
	last  decimal.Decimal
	seed  decimal.Decimal
	bands Limits
}

// NewRandomWalkSource creates an empty random walk feed.
func NewRandomWalkSource() *RandomWalkSource {
	return &RandomWalkSource{walks: make(map[string]*walkState)}
}

// caller holds mu.
func (r *RandomWalkSource) walk(symbol string) *walkState {
	w, ok := r.walks[symbol]
	if !ok {
		seed := decimal.NewFromFloat(5 + secureFloat64()*95).Round(2)
		tenPct := seed.Mul(decimal.RequireFromString("0.1")).Round(2)
		w = &walkState{
			last: seed,
			seed: seed,
			bands: Limits{
				Upper: seed.Add(tenPct),
				Lower: seed.Sub(tenPct),
			},
		}
		r.walks[symbol] = w
	}
	return w
}

// LastPrice advances the walk one step and returns the new price.
func (r *RandomWalkSource) LastPrice(_ context.Context, symbol string) (decimal.Decimal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	w := r.walk(symbol)
	step := w.last.Mul(decimal.NewFromFloat((secureFloat64() - 0.5) * 0.01)).Round(2)
	next := w.last.Add(step)
	if next.GreaterThan(w.bands.Upper) {
		next = w.bands.Upper
	}
	if next.LessThan(w.bands.Lower) {
		next = w.bands.Lower
	}
	w.last = next
	return w.last, nil
}

// Limits returns the ten percent band around the seed price.
func (r *RandomWalkSource) Limits(_ context.Context, symbol string) (Limits, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.walk(symbol).bands, nil
}

// Quote synthesizes a snapshot with a one-tick spread book.
func (r *RandomWalkSource) Quote(ctx context.Context, symbol string) (*Quote, error) {
	last, err := r.LastPrice(ctx, symbol)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	w := r.walk(symbol)
	bands := w.bands
	seed := w.seed
	r.mu.Unlock()

	tick := decimal.RequireFromString("0.01")
	bids := make([]BookLevel, 5)
	asks := make([]BookLevel, 5)
	for i := 0; i < 5; i++ {
		depth := decimal.NewFromInt(int64(i + 1)).Mul(tick)
		bids[i] = BookLevel{Price: last.Sub(depth), Volume: int64(100 * (i + 1))}
		asks[i] = BookLevel{Price: last.Add(depth), Volume: int64(100 * (i + 1))}
	}

	change := last.Sub(seed).Round(2)
	q := &Quote{
		Timestamp:  time.Now(),
		Symbol:     symbol,
		Name:       symbol,
		Last:       last,
		Open:       seed,
		High:       last.Add(tick),
		Low:        last.Sub(tick),
		PrevClose:  seed,
		UpperLimit: bands.Upper,
		LowerLimit: bands.Lower,
		Change:     change,
		Bids:       bids,
		Asks:       asks,
	}
	if !seed.IsZero() {
		q.ChangePercent = change.Div(seed).Mul(decimal.NewFromInt(100)).Round(2)
	}
	return q, nil
}
