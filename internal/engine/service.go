// Package engine implements the paper-trading account: order
// validation, immediate fills, the pending-order matching pass and the
// portfolio bookkeeping around them.
package engine

import (
	"context"
	"fmt"
	"log"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/eddiefleurent/paper_tiger/internal/book"
	"github.com/eddiefleurent/paper_tiger/internal/calendar"
	"github.com/eddiefleurent/paper_tiger/internal/fees"
	"github.com/eddiefleurent/paper_tiger/internal/journal"
	"github.com/eddiefleurent/paper_tiger/internal/ledger"
	"github.com/eddiefleurent/paper_tiger/internal/market"
	"github.com/eddiefleurent/paper_tiger/internal/models"
	"github.com/eddiefleurent/paper_tiger/internal/storage"
)

// Config contains account and matching settings for the service.
type Config struct {
	// InitialCash funds a brand-new account.
	InitialCash decimal.Decimal
	// TPlus is the settlement rule: lots at most TPlus calendar days
	// old cannot be sold yet.
	TPlus int
	// OrderTTL is how long a pending order lives before expiring.
	OrderTTL time.Duration
	// MaxAttempts caps matching attempts before an auto-cancel.
	MaxAttempts int
}

// DefaultConfig is the default configuration for the service.
var DefaultConfig = Config{
	InitialCash: decimal.NewFromInt(1_000_000),
	TPlus:       1,
	OrderTTL:    30 * time.Minute,
	MaxAttempts: 10,
}

// Service is the trading account facade. One mutex serializes every
// public entry point; internal helpers carry the Locked suffix and
// assume the caller holds it.
type Service struct {
	mu      sync.Mutex
	ledger  *ledger.Ledger
	book    *book.Book
	journal *journal.Journal
	source  market.Source
	cal     *calendar.Calendar
	store   storage.Storage
	fees    fees.Schedule
	logger  *log.Logger
	config  Config
	nowFn   func() time.Time
	gen     atomic.Uint64
}

// New creates a service over a freshly funded account. The config
// parameter is optional; if not provided, DefaultConfig is used.
func New(
	source market.Source,
	cal *calendar.Calendar,
	store storage.Storage,
	logger *log.Logger,
	config ...Config,
) *Service {
	cfg := DefaultConfig
	if len(config) > 0 {
		cfg = config[0]
	}

	// Guard against nil logger
	if logger == nil {
		logger = log.New(os.Stderr, "engine: ", log.LstdFlags)
	}

	// Validate and clamp config values
	if !cfg.InitialCash.IsPositive() {
		cfg.InitialCash = DefaultConfig.InitialCash
	}
	if cfg.TPlus < 0 {
		cfg.TPlus = DefaultConfig.TPlus
	}
	if cfg.OrderTTL <= 0 {
		cfg.OrderTTL = DefaultConfig.OrderTTL
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultConfig.MaxAttempts
	}

	// Validate required dependencies (fail fast to avoid later panics)
	if source == nil {
		panic("engine.New: market source must not be nil")
	}
	if cal == nil {
		panic("engine.New: calendar must not be nil")
	}
	if store == nil {
		panic("engine.New: storage must not be nil")
	}

	s := &Service{
		source: source,
		cal:    cal,
		store:  store,
		logger: logger,
		config: cfg,
		nowFn:  time.Now,
		ledger: ledger.New(cfg.InitialCash),
		book:   book.New(),
	}
	s.journal = journal.New(cal.TradingDate(s.nowFn()))
	return s
}

// Restore rebuilds a service from a persisted snapshot. The config
// supplies runtime knobs; account balances, holdings, orders and the
// settlement rule come from the snapshot. Frozen balances must match
// the pending orders exactly, otherwise the snapshot is rejected.
func Restore(
	snap *storage.Snapshot,
	source market.Source,
	cal *calendar.Calendar,
	store storage.Storage,
	logger *log.Logger,
	config ...Config,
) (*Service, error) {
	if snap == nil {
		return nil, fmt.Errorf("snapshot is nil")
	}
	if err := snap.Validate(); err != nil {
		return nil, err
	}

	s := New(source, cal, store, logger, config...)

	bk, err := book.Load(snap.Orders, snap.PendingOrders)
	if err != nil {
		return nil, fmt.Errorf("rebuild order book: %w", err)
	}
	s.book = bk
	s.ledger = ledger.Load(snap.Cash, snap.FrozenCash, snap.InitialCash,
		snap.Positions, snap.FrozenPositions)
	s.journal = journal.Load(snap.TradeHistory, snap.EquityHistory,
		snap.TodayProfit, snap.LastTradingDay)
	s.config.TPlus = snap.TPlus

	if err := s.verifyFrozenLocked(); err != nil {
		return nil, err
	}

	setPendingOrders(bk.PendingCount())
	if history := s.journal.EquityHistory(); len(history) > 0 {
		setEquity(history[len(history)-1].TotalAssets)
	}
	return s, nil
}

// verifyFrozenLocked recomputes the frozen balances implied by the
// pending queue and rejects state where they drifted.
func (s *Service) verifyFrozenLocked() error {
	wantCash := decimal.Zero
	wantQty := make(map[string]int64)
	for _, id := range s.book.PendingIDs() {
		order := s.book.Get(id)
		if order.Side == models.SideBuy {
			notional := order.Notional()
			wantCash = wantCash.Add(notional).Add(s.fees.Buy(notional))
			continue
		}
		wantQty[order.Symbol] += order.Quantity
	}

	if !s.ledger.FrozenCash().Equal(wantCash) {
		return fmt.Errorf("frozen cash %s does not match pending buys %s",
			s.ledger.FrozenCash(), wantCash)
	}
	frozen := s.ledger.FrozenPositions()
	if len(frozen) != len(wantQty) {
		return fmt.Errorf("frozen positions cover %d symbols, pending sells cover %d",
			len(frozen), len(wantQty))
	}
	for symbol, qty := range wantQty {
		if frozen[symbol] != qty {
			return fmt.Errorf("frozen quantity %d for %s does not match pending sells %d",
				frozen[symbol], symbol, qty)
		}
	}
	return nil
}

// Buy submits a limit buy order.
func (s *Service) Buy(ctx context.Context, symbol string, limitPrice decimal.Decimal,
	quantity int64, at time.Time) (*models.Order, error) {
	return s.submit(ctx, models.SideBuy, symbol, limitPrice, quantity, at)
}

// Sell submits a limit sell order.
func (s *Service) Sell(ctx context.Context, symbol string, limitPrice decimal.Decimal,
	quantity int64, at time.Time) (*models.Order, error) {
	return s.submit(ctx, models.SideSell, symbol, limitPrice, quantity, at)
}

// submit validates an order and routes it: pre-market orders queue with
// their resources frozen, otherwise an immediate fill at the limit
// price is attempted first and the order queues on miss.
func (s *Service) submit(ctx context.Context, side models.Side, symbol string,
	limitPrice decimal.Decimal, quantity int64, at time.Time) (*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.validateLocked(ctx, side, symbol, limitPrice, quantity, at); err != nil {
		recordOrder(side, "rejected")
		return nil, err
	}

	order := &models.Order{
		ID:         uuid.NewString(),
		Symbol:     symbol,
		Side:       side,
		Status:     models.StatusPending,
		LimitPrice: limitPrice,
		Quantity:   quantity,
		CreatedAt:  at,
		UpdatedAt:  at,
		ExpiresAt:  at.Add(s.config.OrderTTL),
	}

	if s.cal.IsPreMarket(at) {
		if err := s.queueLocked(order); err != nil {
			recordOrder(side, "rejected")
			return nil, err
		}
		recordOrder(side, "accepted")
		s.logger.Printf("order %s queued: %s %d %s @ %s (opening auction)",
			order.ID, side, quantity, symbol, limitPrice)
		return order.Copy(), nil
	}

	// An unusable last price rejects the order instead of queueing a
	// fill that could never be priced.
	last, err := s.source.LastPrice(ctx, symbol)
	if err != nil {
		recordOrder(side, "rejected")
		recordFeedError()
		return nil, fmt.Errorf("%w: last price for %s: %v", ErrMarketData, symbol, err)
	}
	if !last.IsPositive() {
		recordOrder(side, "rejected")
		return nil, fmt.Errorf("%w: last price for %s is %s", ErrMarketData, symbol, last)
	}

	if fillableAt(side, limitPrice, last) {
		if err := s.fillLocked(ctx, order, false, at); err != nil {
			s.logger.Printf("immediate fill of %s failed, queueing: %v", order.ID, err)
		} else {
			if err := s.book.Add(order); err != nil {
				s.logger.Printf("booking filled order %s: %v", order.ID, err)
			}
			recordOrder(side, "accepted")
			return order.Copy(), nil
		}
	}

	if err := s.queueLocked(order); err != nil {
		recordOrder(side, "rejected")
		return nil, err
	}
	recordOrder(side, "accepted")
	s.logger.Printf("order %s queued: %s %d %s @ %s (last %s)",
		order.ID, side, quantity, symbol, limitPrice, last)
	return order.Copy(), nil
}

// validateLocked applies the placement checks in a fixed order so a
// request failing several of them always reports the same error.
func (s *Service) validateLocked(ctx context.Context, side models.Side, symbol string,
	limitPrice decimal.Decimal, quantity int64, at time.Time) error {
	if err := models.ValidateSymbol(symbol); err != nil {
		return fmt.Errorf("%w: %v", ErrBadInput, err)
	}
	if !limitPrice.IsPositive() {
		return fmt.Errorf("%w: price %s must be positive", ErrBadInput, limitPrice)
	}
	if quantity <= 0 || quantity%models.BoardLot != 0 {
		return fmt.Errorf("%w: quantity %d must be a positive multiple of %d",
			ErrBadInput, quantity, models.BoardLot)
	}
	if !s.cal.CanPlaceOrder(at) {
		return fmt.Errorf("%w: orders not accepted during %s", ErrSessionForbidden, s.cal.Phase(at))
	}

	limits, err := s.source.Limits(ctx, symbol)
	if err != nil {
		recordFeedError()
		return fmt.Errorf("%w: daily band for %s: %v", ErrMarketData, symbol, err)
	}
	if !limits.Zero() {
		if side == models.SideBuy && limitPrice.GreaterThan(limits.Upper) {
			return fmt.Errorf("%w: limit %s above the upper band %s",
				ErrLimitViolation, limitPrice, limits.Upper)
		}
		if side == models.SideSell && limitPrice.LessThan(limits.Lower) {
			return fmt.Errorf("%w: limit %s below the lower band %s",
				ErrLimitViolation, limitPrice, limits.Lower)
		}
	}

	if side == models.SideSell {
		if avail := s.ledger.AvailableQty(symbol); avail < quantity {
			return fmt.Errorf("%w: %d available of %s, want %d",
				ErrInsufficientHolding, avail, symbol, quantity)
		}
		sellable, err := s.ledger.CanSellAll(symbol, at, s.config.TPlus)
		if err != nil {
			return fmt.Errorf("check holding age for %s: %w", symbol, err)
		}
		if !sellable {
			return fmt.Errorf("%w: %s has lots bought within the last %d day(s)",
				ErrTPlusRestriction, symbol, s.config.TPlus)
		}
		return nil
	}

	notional := limitPrice.Mul(decimal.NewFromInt(quantity))
	need := notional.Add(s.fees.Buy(notional))
	if avail := s.ledger.AvailableCash(); avail.LessThan(need) {
		return fmt.Errorf("%w: need %s, available %s", ErrInsufficientFunds, need, avail)
	}
	return nil
}

// fillableAt applies the limit crossing rule: buys fill when the market
// trades at or below the limit, sells at or above. A non-positive last
// price never fills.
func fillableAt(side models.Side, limit, last decimal.Decimal) bool {
	if !last.IsPositive() {
		return false
	}
	if side == models.SideBuy {
		return last.LessThanOrEqual(limit)
	}
	return last.GreaterThanOrEqual(limit)
}

// queueLocked freezes the order's resources and adds it to the book.
func (s *Service) queueLocked(order *models.Order) error {
	if order.Side == models.SideBuy {
		notional := order.Notional()
		if err := s.ledger.FreezeCash(notional.Add(s.fees.Buy(notional))); err != nil {
			return fmt.Errorf("%w: %v", ErrInsufficientFunds, err)
		}
	} else {
		if err := s.ledger.FreezeQuantity(order.Symbol, order.Quantity); err != nil {
			return fmt.Errorf("%w: %v", ErrInsufficientHolding, err)
		}
	}
	if err := s.book.Add(order); err != nil {
		s.releaseLocked(order)
		return fmt.Errorf("%w: %v", ErrBadInput, err)
	}
	setPendingOrders(s.book.PendingCount())
	s.dirtyLocked()
	return nil
}

// releaseLocked returns the resources a queued order froze.
func (s *Service) releaseLocked(order *models.Order) {
	if order.Side == models.SideBuy {
		notional := order.Notional()
		s.mustLedger(s.ledger.UnfreezeCash(notional.Add(s.fees.Buy(notional))), "release buy freeze")
		return
	}
	s.ledger.UnfreezeQuantity(order.Symbol, order.Quantity)
}

// fillLocked settles a pending order at its limit price. frozen says
// whether the order's resources were reserved when it queued; immediate
// fills pay straight from the free balance.
func (s *Service) fillLocked(ctx context.Context, order *models.Order, frozen bool, now time.Time) error {
	if order.Side == models.SideBuy {
		return s.fillBuyLocked(ctx, order, frozen, now)
	}
	return s.fillSellLocked(ctx, order, frozen, now)
}

// fillBuyLocked re-checks the upper band, settles the cash leg and
// appends the new lot. A band violation or band outage leaves the order
// pending and returns the reason.
func (s *Service) fillBuyLocked(ctx context.Context, order *models.Order, frozen bool, now time.Time) error {
	limits, err := s.source.Limits(ctx, order.Symbol)
	if err != nil {
		recordFeedError()
		return fmt.Errorf("%w: daily band for %s: %v", ErrMarketData, order.Symbol, err)
	}
	if !limits.Zero() && order.LimitPrice.GreaterThan(limits.Upper) {
		return fmt.Errorf("%w: limit %s above the upper band %s",
			ErrLimitViolation, order.LimitPrice, limits.Upper)
	}

	notional := order.Notional()
	fee := s.fees.Buy(notional)
	if frozen {
		s.mustLedger(s.ledger.UnfreezeCash(notional.Add(fee)), "release buy freeze")
	}
	s.mustLedger(s.ledger.ApplyBuyFill(order.Symbol, order.LimitPrice, order.Quantity, fee, now), "settle buy")
	s.mustTransition(order, models.StatusFilled, models.ConditionFilled, now)

	s.journal.Record(models.Fill{
		Timestamp: now,
		OrderID:   order.ID,
		Symbol:    order.Symbol,
		Side:      models.SideBuy,
		Price:     order.LimitPrice,
		Quantity:  order.Quantity,
		Amount:    notional,
		Fee:       fee,
		Profit:    decimal.Zero,
	})

	recordFill(models.SideBuy)
	recordTerminal(models.StatusFilled)
	s.updateEquityLocked(ctx, now)
	s.dirtyLocked()
	s.logger.Printf("filled buy %s: %d %s @ %s, fee %s",
		order.ID, order.Quantity, order.Symbol, order.LimitPrice, fee)
	return nil
}

// fillSellLocked settles a sell against the FIFO lots, writing one fill
// record per consumed slice and accumulating today's realized profit.
func (s *Service) fillSellLocked(ctx context.Context, order *models.Order, frozen bool, now time.Time) error {
	if frozen {
		s.ledger.UnfreezeQuantity(order.Symbol, order.Quantity)
	}
	slices, err := s.ledger.ApplySellFill(order.Symbol, order.LimitPrice, order.Quantity)
	s.mustLedger(err, "settle sell")
	s.mustTransition(order, models.StatusFilled, models.ConditionFilled, now)

	profit := decimal.Zero
	for _, slice := range slices {
		s.journal.Record(models.Fill{
			Timestamp: now,
			OrderID:   order.ID,
			Symbol:    order.Symbol,
			Side:      models.SideSell,
			Price:     order.LimitPrice,
			Quantity:  slice.Quantity,
			Amount:    slice.Amount,
			Fee:       slice.Fee,
			Profit:    slice.Profit,
		})
		profit = profit.Add(slice.Profit)
	}
	s.journal.AddTodayProfit(profit, s.cal.TradingDate(now))

	recordFill(models.SideSell)
	recordTerminal(models.StatusFilled)
	s.updateEquityLocked(ctx, now)
	s.dirtyLocked()
	s.logger.Printf("filled sell %s: %d %s @ %s across %d lot(s), profit %s",
		order.ID, order.Quantity, order.Symbol, order.LimitPrice, len(slices), profit)
	return nil
}

// Cancel cancels a pending order and releases its frozen resources.
func (s *Service) Cancel(id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	order := s.book.Get(id)
	if order == nil {
		return fmt.Errorf("%w: %s", ErrOrderNotFound, id)
	}
	if order.Status != models.StatusPending {
		return fmt.Errorf("%w: order %s is already %s", ErrIllegalTransition, id, order.Status)
	}
	if !s.cal.CanCancelOrder(at) {
		return fmt.Errorf("%w: cancels not accepted during %s", ErrSessionForbidden, s.cal.Phase(at))
	}

	s.releaseLocked(order)
	s.mustTransition(order, models.StatusCanceled, models.ConditionCanceled, at)
	s.book.RemovePending(id)
	setPendingOrders(s.book.PendingCount())
	recordTerminal(models.StatusCanceled)
	s.dirtyLocked()
	s.logger.Printf("order %s canceled by user", id)
	return nil
}

// ProcessPending runs one matching pass at the given time: overdue
// orders expire first, then the queue is walked oldest-first attempting
// a fill at each order's limit price. It reports whether any order
// reached a terminal status.
func (s *Service) ProcessPending(ctx context.Context, now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	recordMatchPass()
	changed := s.expireLocked(now)

	switch s.cal.Phase(now) {
	case calendar.PhaseNonTrading, calendar.PhaseClosed, calendar.PhaseBreak:
		return changed
	}

	// One feed call per symbol per pass. A failed fetch matches nothing
	// this pass but still costs every order of that symbol an attempt.
	lastBySymbol := make(map[string]decimal.Decimal)

	for _, id := range s.book.PendingIDs() {
		order := s.book.Get(id)
		if order == nil || order.Status != models.StatusPending {
			continue
		}

		last, seen := lastBySymbol[order.Symbol]
		if !seen {
			price, err := s.source.LastPrice(ctx, order.Symbol)
			if err != nil {
				s.logger.Printf("matching: last price for %s: %v", order.Symbol, err)
				recordFeedError()
				price = decimal.Zero
			}
			lastBySymbol[order.Symbol] = price
			last = price
		}

		order.Attempts++
		order.UpdatedAt = now
		s.dirtyLocked()

		if fillableAt(order.Side, order.LimitPrice, last) {
			if err := s.fillLocked(ctx, order, true, now); err != nil {
				s.logger.Printf("matching: fill %s: %v", order.ID, err)
			} else {
				s.book.RemovePending(id)
				setPendingOrders(s.book.PendingCount())
				changed = true
				continue
			}
		}

		if order.Attempts > s.config.MaxAttempts {
			s.releaseLocked(order)
			s.mustTransition(order, models.StatusCanceled, models.ConditionExhausted, now)
			s.book.RemovePending(id)
			setPendingOrders(s.book.PendingCount())
			recordTerminal(models.StatusCanceled)
			changed = true
			s.logger.Printf("order %s canceled after %d matching attempts", id, order.Attempts)
		}
	}
	return changed
}

// expireLocked ends overdue orders. Expiry ignores the session phase:
// an order that aged out during the lunch break dies on the first pass
// after it.
func (s *Service) expireLocked(now time.Time) bool {
	changed := false
	for _, id := range s.book.PendingIDs() {
		order := s.book.Get(id)
		if order == nil || order.Status != models.StatusPending || !order.ExpiredBy(now) {
			continue
		}
		s.releaseLocked(order)
		s.mustTransition(order, models.StatusExpired, models.ConditionExpired, now)
		s.book.RemovePending(id)
		setPendingOrders(s.book.PendingCount())
		recordTerminal(models.StatusExpired)
		s.dirtyLocked()
		changed = true
		s.logger.Printf("order %s expired", id)
	}
	return changed
}

// Report assembles the full portfolio summary. Feed failures degrade to
// zero prices for the affected symbols rather than failing the report.
func (s *Service) Report(ctx context.Context) *models.PortfolioReport {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.rollDayLocked(s.nowFn())

	prices := s.heldPricesLocked(ctx)
	stockValue := decimal.Zero
	positions := make([]models.PositionDetail, 0, len(prices))

	for _, symbol := range s.ledger.Symbols() {
		lots := s.ledger.Lots(symbol)
		qty := models.TotalQuantity(lots)
		if qty == 0 {
			continue
		}
		cost := decimal.Zero
		for _, lot := range lots {
			cost = cost.Add(lot.Cost())
		}
		avgCost := cost.Div(decimal.NewFromInt(qty))
		price := prices[symbol]
		value := price.Mul(decimal.NewFromInt(qty))
		stockValue = stockValue.Add(value)
		positions = append(positions, models.PositionDetail{
			Symbol:       symbol,
			BuyDate:      models.EarliestBuyDate(lots),
			Quantity:     qty,
			AvgCost:      avgCost,
			CurrentPrice: price,
			MarketValue:  value,
			Profit:       price.Sub(avgCost).Mul(decimal.NewFromInt(qty)),
		})
	}

	cash := s.ledger.Cash()
	total := cash.Add(stockValue)

	return &models.PortfolioReport{
		Cash:            cash,
		FrozenCash:      s.ledger.FrozenCash(),
		Positions:       positions,
		FrozenPositions: s.ledger.FrozenPositions(),
		StockPrices:     prices,
		LastTrade:       s.journal.LastFill(),
		EquityHistory:   s.journal.EquityHistory(),
		TotalProfit:     total.Sub(s.ledger.InitialCash()),
		TodayProfit:     s.journal.TodayProfit(),
		TotalAssets:     total,
		StockValue:      stockValue,
		NumPositions:    len(positions),
		TradeCount:      s.journal.TradeCount(),
		PendingOrders:   s.book.PendingCount(),
	}
}

// Orders lists orders with the given status, oldest first. An empty
// status lists everything.
func (s *Service) Orders(status models.OrderStatus) []*models.Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.book.Orders(status)
}

// PendingCount returns the matching queue depth.
func (s *Service) PendingCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.book.PendingCount()
}

// TradeHistory returns every recorded fill slice, oldest first.
func (s *Service) TradeHistory() []models.Fill {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.journal.Fills()
}

// EquityHistory returns the retained equity curve, oldest first.
func (s *Service) EquityHistory() []models.EquitySample {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.journal.EquityHistory()
}

// Quote passes a level-1 quote request through to the feed. It takes no
// account lock, so slow feeds never stall trading calls.
func (s *Service) Quote(ctx context.Context, symbol string) (*market.Quote, error) {
	if err := models.ValidateSymbol(symbol); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadInput, err)
	}
	quote, err := s.source.Quote(ctx, symbol)
	if err != nil {
		recordFeedError()
		return nil, fmt.Errorf("%w: quote for %s: %v", ErrMarketData, symbol, err)
	}
	return quote, nil
}

// AvailableCash returns cash not reserved by pending buys.
func (s *Service) AvailableCash() decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ledger.AvailableCash()
}

// AvailableQty returns shares of the symbol not reserved by pending
// sells.
func (s *Service) AvailableQty(symbol string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ledger.AvailableQty(symbol)
}

// StockValue prices every holding at the live feed.
func (s *Service) StockValue(ctx context.Context) decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stockValueLocked(ctx)
}

// TotalAssets returns cash plus the market value of all holdings.
func (s *Service) TotalAssets(ctx context.Context) decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ledger.Cash().Add(s.stockValueLocked(ctx))
}

// TotalProfit returns equity growth over the initial funding.
func (s *Service) TotalProfit(ctx context.Context) decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ledger.Cash().Add(s.stockValueLocked(ctx)).Sub(s.ledger.InitialCash())
}

// TodayProfit returns the realized profit accumulated on the current
// trading day.
func (s *Service) TodayProfit() decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rollDayLocked(s.nowFn())
	return s.journal.TodayProfit()
}

// TPlus returns the settlement rule in force.
func (s *Service) TPlus() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.config.TPlus
}

// Snapshot captures a deep copy of the full account state.
func (s *Service) Snapshot() *storage.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	orders, pending := s.book.Snapshot()
	return &storage.Snapshot{
		Magic:           storage.SnapshotMagic,
		Version:         storage.SnapshotVersion,
		Cash:            s.ledger.Cash(),
		FrozenCash:      s.ledger.FrozenCash(),
		InitialCash:     s.ledger.InitialCash(),
		TPlus:           s.config.TPlus,
		TodayProfit:     s.journal.TodayProfit(),
		LastTradingDay:  s.journal.LastTradingDay(),
		Positions:       s.ledger.Positions(),
		FrozenPositions: s.ledger.FrozenPositions(),
		Orders:          orders,
		PendingOrders:   pending,
		TradeHistory:    s.journal.Fills(),
		EquityHistory:   s.journal.EquityHistory(),
	}
}

// Generation counts state mutations. The background flusher compares it
// across polls to skip writes when nothing changed.
func (s *Service) Generation() uint64 {
	return s.gen.Load()
}

// Save writes the current state through the configured storage.
func (s *Service) Save() error {
	if err := s.store.Save(s.Snapshot()); err != nil {
		return fmt.Errorf("save state: %w", err)
	}
	return nil
}

// heldPricesLocked fetches the last price of every held symbol. A feed
// failure yields a zero price for that symbol.
func (s *Service) heldPricesLocked(ctx context.Context) map[string]decimal.Decimal {
	prices := make(map[string]decimal.Decimal)
	for _, symbol := range s.ledger.Symbols() {
		price, err := s.source.LastPrice(ctx, symbol)
		if err != nil {
			s.logger.Printf("pricing %s: %v", symbol, err)
			recordFeedError()
			price = decimal.Zero
		}
		prices[symbol] = price
	}
	return prices
}

// stockValueLocked prices the holdings at the live feed.
func (s *Service) stockValueLocked(ctx context.Context) decimal.Decimal {
	value := decimal.Zero
	for symbol, price := range s.heldPricesLocked(ctx) {
		value = value.Add(price.Mul(decimal.NewFromInt(s.ledger.TotalHoldings(symbol))))
	}
	return value
}

// updateEquityLocked records an equity sample after a fill.
func (s *Service) updateEquityLocked(ctx context.Context, now time.Time) {
	stockValue := s.stockValueLocked(ctx)
	cash := s.ledger.Cash()
	total := cash.Add(stockValue)
	s.journal.RecordEquity(now, total, cash, stockValue)
	setEquity(total)
}

// rollDayLocked resets today's profit when the trading day moved on.
func (s *Service) rollDayLocked(now time.Time) {
	if s.journal.RollDay(s.cal.TradingDate(now)) {
		s.dirtyLocked()
	}
}

// dirtyLocked marks the state changed for the background flusher.
func (s *Service) dirtyLocked() {
	s.gen.Add(1)
}

// mustLedger aborts on a failed ledger mutation inside a fill. The
// validation and freeze bookkeeping before each fill make these
// unreachable; reaching one means the books no longer balance, and the
// snapshot on disk is the last trustworthy state.
func (s *Service) mustLedger(err error, op string) {
	if err != nil {
		s.logger.Fatalf("ledger invariant violated during %s: %v", op, err)
	}
}

// mustTransition aborts on an order lifecycle violation.
func (s *Service) mustTransition(order *models.Order, to models.OrderStatus, condition string, at time.Time) {
	if err := order.Transition(to, condition, at); err != nil {
		s.logger.Fatalf("order lifecycle violated: %v", err)
	}
}
