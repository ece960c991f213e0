package market

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"github.com/eddiefleurent/paper_tiger/internal/models"
)

const (
	eastmoneyBaseURL = "https://push2.eastmoney.com"
	eastmoneyGetPath = "/api/qt/stock/get"
	eastmoneyToken   = "fa5fd1943c7b386f172d6893dbfba10b"

	defaultTimeout    = 5 * time.Second
	defaultRatePerSec = 10
	defaultBurst      = 5
)

// Field code sets for the push service. f59 is the decimal scale and
// rides along on every request.
const (
	fieldsLast   = "f43,f59"
	fieldsLimits = "f51,f52,f59"
	fieldsQuote  = "f43,f44,f45,f46,f47,f48,f51,f52,f58,f59,f60," +
		"f19,f20,f17,f18,f15,f16,f13,f14,f11,f12," +
		"f39,f40,f37,f38,f35,f36,f33,f34,f31,f32"
)

// Five-level depth field codes, best level first.
var (
	bidPriceFields  = []string{"f19", "f17", "f15", "f13", "f11"}
	bidVolumeFields = []string{"f20", "f18", "f16", "f14", "f12"}
	askPriceFields  = []string{"f39", "f37", "f35", "f33", "f31"}
	askVolumeFields = []string{"f40", "f38", "f36", "f34", "f32"}
)

// EastmoneyAPI fetches quotes from the public Eastmoney push service.
type EastmoneyAPI struct {
	client  *http.Client
	limiter *rate.Limiter
	baseURL string
	token   string
	timeout time.Duration
}

// Ensure EastmoneyAPI implements Source at compile time.
var _ Source = (*EastmoneyAPI)(nil)

// NewEastmoneyAPI creates a client with default settings.
func NewEastmoneyAPI() *EastmoneyAPI {
	return NewEastmoneyAPIWithBaseURL(eastmoneyBaseURL)
}

// NewEastmoneyAPIWithBaseURL creates a client against a custom host.
// Used by tests to point at a local stub server. The client appends
// the push-service path itself, so pass the bare host.
func NewEastmoneyAPIWithBaseURL(baseURL string) *EastmoneyAPI {
	baseURL = strings.TrimRight(baseURL, "/")
	if baseURL == "" {
		baseURL = eastmoneyBaseURL
	}
	return &EastmoneyAPI{
		client:  &http.Client{Timeout: defaultTimeout},
		limiter: rate.NewLimiter(rate.Limit(defaultRatePerSec), defaultBurst),
		baseURL: baseURL,
		token:   eastmoneyToken,
		timeout: defaultTimeout,
	}
}

// WithToken overrides the push-service ut token and returns the client.
func (e *EastmoneyAPI) WithToken(token string) *EastmoneyAPI {
	if token != "" {
		e.token = token
	}
	return e
}

// WithTimeout sets the per-request timeout and returns the client.
func (e *EastmoneyAPI) WithTimeout(timeout time.Duration) *EastmoneyAPI {
	if timeout > 0 {
		e.timeout = timeout
		e.client.Timeout = timeout
	}
	return e
}

// WithHTTPClient replaces the HTTP client and returns the client.
func (e *EastmoneyAPI) WithHTTPClient(client *http.Client) *EastmoneyAPI {
	if client != nil {
		e.client = client
	}
	return e
}

// WithRateLimit replaces the request limiter and returns the client.
func (e *EastmoneyAPI) WithRateLimit(perSec float64, burst int) *EastmoneyAPI {
	if perSec > 0 && burst > 0 {
		e.limiter = rate.NewLimiter(rate.Limit(perSec), burst)
	}
	return e
}

// LastPrice returns the latest traded price. Halted symbols publish a
// placeholder instead of a number, which surfaces as an error here.
func (e *EastmoneyAPI) LastPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	data, err := e.fetch(ctx, symbol, fieldsLast)
	if err != nil {
		return decimal.Zero, err
	}
	last, ok := data.price("f43")
	if !ok {
		return decimal.Zero, fmt.Errorf("no last price published for %s", symbol)
	}
	return last, nil
}

// Limits returns the daily price band. Symbols without a published band
// (new listings, some boards) return a zero band and no error.
func (e *EastmoneyAPI) Limits(ctx context.Context, symbol string) (Limits, error) {
	data, err := e.fetch(ctx, symbol, fieldsLimits)
	if err != nil {
		return Limits{}, err
	}
	upper, _ := data.price("f51")
	lower, _ := data.price("f52")
	return Limits{Upper: upper, Lower: lower}, nil
}

// Quote returns the full level-1 snapshot with five book levels.
func (e *EastmoneyAPI) Quote(ctx context.Context, symbol string) (*Quote, error) {
	data, err := e.fetch(ctx, symbol, fieldsQuote)
	if err != nil {
		return nil, err
	}

	q := &Quote{
		Timestamp: time.Now(),
		Symbol:    symbol,
		Name:      data.name(symbol),
		Volume:    data.int64At("f47"),
		Amount:    data.amount("f48"),
	}
	q.Last, _ = data.price("f43")
	q.High, _ = data.price("f44")
	q.Low, _ = data.price("f45")
	q.Open, _ = data.price("f46")
	q.UpperLimit, _ = data.price("f51")
	q.LowerLimit, _ = data.price("f52")
	q.PrevClose, _ = data.price("f60")

	if !q.Last.IsZero() && !q.PrevClose.IsZero() {
		q.Change = q.Last.Sub(q.PrevClose).Round(2)
		q.ChangePercent = q.Change.Div(q.PrevClose).Mul(decimal.NewFromInt(100)).Round(2)
	}

	for i := range bidPriceFields {
		price, _ := data.price(bidPriceFields[i])
		q.Bids = append(q.Bids, BookLevel{Price: price, Volume: data.int64At(bidVolumeFields[i])})
		price, _ = data.price(askPriceFields[i])
		q.Asks = append(q.Asks, BookLevel{Price: price, Volume: data.int64At(askVolumeFields[i])})
	}

	return q, nil
}

// quoteEnvelope is the push service's response wrapper. Field values
// are decoded loosely because halted symbols publish "-" placeholders
// in place of numbers.
type quoteEnvelope struct {
	Data map[string]any `json:"data"`
	RC   int            `json:"rc"`
}

// quoteData is a decoded field map plus its decimal scale.
type quoteData struct {
	fields map[string]any
	scale  int
}

// fetch issues one rate-limited GET and unwraps the envelope.
func (e *EastmoneyAPI) fetch(ctx context.Context, symbol, fields string) (*quoteData, error) {
	if err := e.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	params := url.Values{}
	params.Set("invt", "2")
	params.Set("fltt", "1")
	params.Set("fields", fields)
	params.Set("secid", secID(symbol))
	params.Set("ut", e.token)
	params.Set("_", strconv.FormatInt(time.Now().UnixMilli(), 10))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.baseURL+eastmoneyGetPath+"?"+params.Encode(), http.NoBody)
	if err != nil {
		return nil, err
	}
	req.Header.Add("Accept", "application/json")
	req.Header.Add("User-Agent", "paper-tiger/1.0 (+eastmoney)")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			log.Printf("Failed to close response body: %v", err)
		}
	}()

	if resp.StatusCode != http.StatusOK {
		body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10)) // 64KB cap to avoid huge payloads
		if err != nil {
			return nil, &APIError{Status: resp.StatusCode, Body: fmt.Sprintf("GET %s -> failed to read error body", e.baseURL)}
		}
		return nil, &APIError{Status: resp.StatusCode, Body: string(body)}
	}

	var envelope quoteEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, fmt.Errorf("decode quote envelope: %w", err)
	}
	if envelope.RC != 0 || envelope.Data == nil {
		return nil, fmt.Errorf("quote feed returned rc=%d for %s", envelope.RC, symbol)
	}

	return &quoteData{fields: envelope.Data, scale: dataScale(envelope.Data)}, nil
}

// secID maps a symbol to the push service's market-qualified id:
// market 1 for Shanghai, 0 for Shenzhen.
func secID(symbol string) string {
	exchange, ticker := models.SplitSymbol(symbol)
	if exchange == models.ExchangeShanghai {
		return "1." + ticker
	}
	return "0." + ticker
}

// dataScale reads f59. Missing, 0 and -1 all mean unscaled values.
func dataScale(fields map[string]any) int {
	v, ok := fields["f59"].(float64)
	if !ok {
		return 0
	}
	scale := int(v)
	if scale == -1 || scale < 0 {
		return 0
	}
	return scale
}

// num returns the field as a float64 when it is numeric. Halted
// symbols publish "-" strings, which read as missing.
func (d *quoteData) num(key string) (float64, bool) {
	v, ok := d.fields[key].(float64)
	return v, ok
}

// price returns the field descaled by 10^f59 as an exact decimal.
func (d *quoteData) price(key string) (decimal.Decimal, bool) {
	v, ok := d.num(key)
	if !ok {
		return decimal.Zero, false
	}
	if d.scale > 0 && v == math.Trunc(v) {
		return decimal.New(int64(v), -int32(d.scale)), true
	}
	dec := decimal.NewFromFloat(v)
	if d.scale > 0 {
		dec = dec.Shift(-int32(d.scale))
	}
	return dec, true
}

// int64At returns the field truncated to an int64, or 0 when missing.
func (d *quoteData) int64At(key string) int64 {
	v, ok := d.num(key)
	if !ok {
		return 0
	}
	return int64(v)
}

// amount returns a turnover-style field, unscaled, or zero when missing.
func (d *quoteData) amount(key string) decimal.Decimal {
	v, ok := d.num(key)
	if !ok {
		return decimal.Zero
	}
	return decimal.NewFromFloat(v)
}

// name returns f58, falling back to a placeholder built from the
// symbol's tail digits.
func (d *quoteData) name(symbol string) string {
	if s, ok := d.fields["f58"].(string); ok && s != "" && s != "-" {
		return s
	}
	tail := symbol
	if len(tail) > 4 {
		tail = tail[len(tail)-4:]
	}
	return "股票" + tail
}
