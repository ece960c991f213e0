package market

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"
)

// DefaultCacheTTL is how long a fetched last price stays fresh.
const DefaultCacheTTL = time.Second

// PriceCache memoizes LastPrice per symbol with a short TTL so matching
// passes and report queries do not hammer the feed. Limits and Quote
// pass through uncached: limits change at most daily and are queried
// rarely, quotes want live depth.
type PriceCache struct {
	source  Source
	nowFn   func() time.Time
	entries map[string]cacheEntry
	group   singleflight.Group
	ttl     time.Duration
	mu      sync.Mutex
}

// Ensure PriceCache implements Source at compile time.
var _ Source = (*PriceCache)(nil)

type cacheEntry struct {
	at    time.Time
	price decimal.Decimal
}

// NewPriceCache wraps a source. A non-positive ttl falls back to the
// default. Panics on a nil source, matching other constructor checks.
func NewPriceCache(source Source, ttl time.Duration) *PriceCache {
	if source == nil {
		panic("market: source cannot be nil")
	}
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &PriceCache{
		source:  source,
		ttl:     ttl,
		entries: make(map[string]cacheEntry),
		nowFn:   time.Now,
	}
}

// LastPrice returns the cached price when fresh, otherwise fetches.
// Concurrent misses on the same symbol collapse into a single upstream
// call.
func (pc *PriceCache) LastPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	pc.mu.Lock()
	if entry, ok := pc.entries[symbol]; ok && pc.nowFn().Sub(entry.at) < pc.ttl {
		pc.mu.Unlock()
		return entry.price, nil
	}
	pc.mu.Unlock()

	v, err, _ := pc.group.Do(symbol, func() (interface{}, error) {
		price, err := pc.source.LastPrice(ctx, symbol)
		if err != nil {
			return decimal.Zero, err
		}
		pc.mu.Lock()
		pc.entries[symbol] = cacheEntry{price: price, at: pc.nowFn()}
		pc.mu.Unlock()
		return price, nil
	})
	if err != nil {
		return decimal.Zero, err
	}
	return v.(decimal.Decimal), nil
}

// Limits passes through to the source.
func (pc *PriceCache) Limits(ctx context.Context, symbol string) (Limits, error) {
	return pc.source.Limits(ctx, symbol)
}

// Quote passes through to the source.
func (pc *PriceCache) Quote(ctx context.Context, symbol string) (*Quote, error) {
	return pc.source.Quote(ctx, symbol)
}

// Invalidate drops the cached entry for a symbol.
func (pc *PriceCache) Invalidate(symbol string) {
	pc.mu.Lock()
	delete(pc.entries, symbol)
	pc.mu.Unlock()
}

// Purge drops every entry older than the TTL.
func (pc *PriceCache) Purge() {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	now := pc.nowFn()
	for symbol, entry := range pc.entries {
		if now.Sub(entry.at) >= pc.ttl {
			delete(pc.entries, symbol)
		}
	}
}
