// Package ledger tracks cash, frozen balances and FIFO lot positions
// for one trading account.
package ledger

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/eddiefleurent/paper_tiger/internal/fees"
	"github.com/eddiefleurent/paper_tiger/internal/models"
)

// Ledger is the cash and position book. It is not self-locking: the
// owning service serializes every call.
type Ledger struct {
	positions       map[string][]models.Lot
	frozenPositions map[string]int64
	cash            decimal.Decimal
	frozenCash      decimal.Decimal
	initialCash     decimal.Decimal
	fees            fees.Schedule
}

// SellSlice is the result of consuming one lot slice during a sell.
// Amount is gross, Fee the full sell-side cost, Profit net of the fee.
type SellSlice struct {
	CostPrice decimal.Decimal
	Amount    decimal.Decimal
	Fee       decimal.Decimal
	Profit    decimal.Decimal
	Quantity  int64
}

// New creates a ledger holding only cash.
func New(initialCash decimal.Decimal) *Ledger {
	return &Ledger{
		cash:            initialCash,
		initialCash:     initialCash,
		positions:       make(map[string][]models.Lot),
		frozenPositions: make(map[string]int64),
	}
}

// Load rebuilds a ledger from persisted balances. Nil maps are treated
// as empty.
func Load(cash, frozenCash, initialCash decimal.Decimal,
	positions map[string][]models.Lot, frozenPositions map[string]int64) *Ledger {
	l := New(initialCash)
	l.cash = cash
	l.frozenCash = frozenCash
	for symbol, lots := range positions {
		if len(lots) == 0 {
			continue
		}
		l.positions[symbol] = append([]models.Lot(nil), lots...)
	}
	for symbol, qty := range frozenPositions {
		if qty == 0 {
			continue
		}
		l.frozenPositions[symbol] = qty
	}
	return l
}

// Cash returns the gross cash balance, frozen included.
func (l *Ledger) Cash() decimal.Decimal { return l.cash }

// FrozenCash returns the amount reserved against pending buys.
func (l *Ledger) FrozenCash() decimal.Decimal { return l.frozenCash }

// InitialCash returns the starting balance. Immutable after construction.
func (l *Ledger) InitialCash() decimal.Decimal { return l.initialCash }

// AvailableCash returns cash minus frozen cash.
func (l *Ledger) AvailableCash() decimal.Decimal {
	return l.cash.Sub(l.frozenCash)
}

// TotalHoldings returns the share count held for a symbol, frozen included.
func (l *Ledger) TotalHoldings(symbol string) int64 {
	return models.TotalQuantity(l.positions[symbol])
}

// FrozenQty returns the share count reserved against pending sells.
func (l *Ledger) FrozenQty(symbol string) int64 {
	return l.frozenPositions[symbol]
}

// AvailableQty returns holdings minus frozen shares.
func (l *Ledger) AvailableQty(symbol string) int64 {
	return l.TotalHoldings(symbol) - l.frozenPositions[symbol]
}

// Lots returns a copy of the symbol's lot list in FIFO order.
func (l *Ledger) Lots(symbol string) []models.Lot {
	lots := l.positions[symbol]
	if len(lots) == 0 {
		return nil
	}
	return append([]models.Lot(nil), lots...)
}

// Symbols returns the held symbols in sorted order.
func (l *Ledger) Symbols() []string {
	symbols := make([]string, 0, len(l.positions))
	for s := range l.positions {
		symbols = append(symbols, s)
	}
	sort.Strings(symbols)
	return symbols
}

// Positions returns a deep copy of the position map.
func (l *Ledger) Positions() map[string][]models.Lot {
	out := make(map[string][]models.Lot, len(l.positions))
	for symbol, lots := range l.positions {
		out[symbol] = append([]models.Lot(nil), lots...)
	}
	return out
}

// FrozenPositions returns a copy of the frozen share map.
func (l *Ledger) FrozenPositions() map[string]int64 {
	out := make(map[string]int64, len(l.frozenPositions))
	for symbol, qty := range l.frozenPositions {
		out[symbol] = qty
	}
	return out
}

// FreezeCash reserves cash against a pending buy.
func (l *Ledger) FreezeCash(amount decimal.Decimal) error {
	if amount.IsNegative() {
		return fmt.Errorf("freeze amount %s is negative", amount)
	}
	if l.frozenCash.Add(amount).GreaterThan(l.cash) {
		return fmt.Errorf("freeze %s exceeds available cash %s", amount, l.AvailableCash())
	}
	l.frozenCash = l.frozenCash.Add(amount)
	return nil
}

// UnfreezeCash releases a prior cash reservation. Releasing more than
// is frozen indicates double accounting and fails.
func (l *Ledger) UnfreezeCash(amount decimal.Decimal) error {
	if amount.IsNegative() {
		return fmt.Errorf("unfreeze amount %s is negative", amount)
	}
	if amount.GreaterThan(l.frozenCash) {
		return fmt.Errorf("unfreeze %s exceeds frozen cash %s", amount, l.frozenCash)
	}
	l.frozenCash = l.frozenCash.Sub(amount)
	return nil
}

// FreezeQuantity reserves shares against a pending sell.
func (l *Ledger) FreezeQuantity(symbol string, qty int64) error {
	if qty < 0 {
		return fmt.Errorf("freeze quantity %d is negative", qty)
	}
	if l.frozenPositions[symbol]+qty > l.TotalHoldings(symbol) {
		return fmt.Errorf("freeze %d exceeds available holding %d for %s",
			qty, l.AvailableQty(symbol), symbol)
	}
	l.frozenPositions[symbol] += qty
	return nil
}

// UnfreezeQuantity releases a prior share reservation, clamping at zero
// to tolerate duplicate releases.
func (l *Ledger) UnfreezeQuantity(symbol string, qty int64) {
	remaining := l.frozenPositions[symbol] - qty
	if remaining <= 0 {
		delete(l.frozenPositions, symbol)
		return
	}
	l.frozenPositions[symbol] = remaining
}

// ApplyBuyFill debits the full cost and appends a new lot. The caller
// has already released the matching freeze.
func (l *Ledger) ApplyBuyFill(symbol string, price decimal.Decimal, qty int64, fee decimal.Decimal, at time.Time) error {
	total := price.Mul(decimal.NewFromInt(qty)).Add(fee)
	if total.GreaterThan(l.cash) {
		return fmt.Errorf("buy cost %s exceeds cash %s", total, l.cash)
	}
	l.cash = l.cash.Sub(total)
	l.positions[symbol] = append(l.positions[symbol], models.Lot{
		Quantity:  qty,
		CostPrice: price,
		BuyDate:   at.Format(models.DateFormat),
	})
	return nil
}

// ApplySellFill consumes lots FIFO at the given price, crediting cash
// net of fees per slice. The caller has already released the matching
// freeze and verified the holding covers qty.
func (l *Ledger) ApplySellFill(symbol string, price decimal.Decimal, qty int64) ([]SellSlice, error) {
	if l.TotalHoldings(symbol) < qty {
		return nil, fmt.Errorf("holding %d is short of sell quantity %d for %s",
			l.TotalHoldings(symbol), qty, symbol)
	}

	var slices []SellSlice
	remaining := qty
	for remaining > 0 {
		lot := l.positions[symbol][0]
		sliceQty := lot.Quantity
		if remaining < sliceQty {
			sliceQty = remaining
		}

		amount := price.Mul(decimal.NewFromInt(sliceQty))
		fee := l.fees.Sell(amount)
		profit := price.Sub(lot.CostPrice).Mul(decimal.NewFromInt(sliceQty)).Sub(fee)

		l.cash = l.cash.Add(amount).Sub(fee)

		if sliceQty == lot.Quantity {
			l.positions[symbol] = l.positions[symbol][1:]
		} else {
			l.positions[symbol][0].Quantity -= sliceQty
		}

		slices = append(slices, SellSlice{
			Quantity:  sliceQty,
			CostPrice: lot.CostPrice,
			Amount:    amount,
			Fee:       fee,
			Profit:    profit,
		})
		remaining -= sliceQty
	}

	if len(l.positions[symbol]) == 0 {
		delete(l.positions, symbol)
	}
	return slices, nil
}

// CanSellAll reports whether every lot of the symbol clears the T+X
// holding rule at the given time: each lot must be strictly older than
// tPlus calendar days. One fresh lot blocks the whole symbol.
func (l *Ledger) CanSellAll(symbol string, at time.Time, tPlus int) (bool, error) {
	for _, lot := range l.positions[symbol] {
		age, err := lot.Age(at)
		if err != nil {
			return false, err
		}
		if age <= tPlus {
			return false, nil
		}
	}
	return true, nil
}
