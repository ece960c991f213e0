package storage

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/eddiefleurent/paper_tiger/internal/models"
)

// SnapshotMagic identifies a state file written by this engine.
const SnapshotMagic = "PTSTATE"

// SnapshotVersion is the current snapshot layout version. Load rejects
// any other version rather than guessing at field meanings.
const SnapshotVersion = 1

// Snapshot is the complete persisted account state. It carries no
// wall-clock write timestamp so saving the same state twice produces
// byte-identical files.
type Snapshot struct {
	Magic           string                     `json:"magic"`
	Version         int                        `json:"version"`
	Cash            decimal.Decimal            `json:"cash"`
	FrozenCash      decimal.Decimal            `json:"frozen_cash"`
	InitialCash     decimal.Decimal            `json:"initial_cash"`
	TPlus           int                        `json:"t_plus"`
	TodayProfit     decimal.Decimal            `json:"today_profit"`
	LastTradingDay  string                     `json:"last_trading_day"`
	Positions       map[string][]models.Lot    `json:"positions"`
	FrozenPositions map[string]int64           `json:"frozen_positions"`
	Orders          map[string]*models.Order   `json:"orders"`
	PendingOrders   []string                   `json:"pending_orders"`
	TradeHistory    []models.Fill              `json:"trade_history"`
	EquityHistory   []models.EquitySample      `json:"equity_history"`
}

// NewSnapshot returns the state of a freshly funded account.
func NewSnapshot(initialCash decimal.Decimal, tPlus int, tradingDay string) *Snapshot {
	return &Snapshot{
		Magic:           SnapshotMagic,
		Version:         SnapshotVersion,
		Cash:            initialCash,
		FrozenCash:      decimal.Zero,
		InitialCash:     initialCash,
		TPlus:           tPlus,
		TodayProfit:     decimal.Zero,
		LastTradingDay:  tradingDay,
		Positions:       make(map[string][]models.Lot),
		FrozenPositions: make(map[string]int64),
		Orders:          make(map[string]*models.Order),
		PendingOrders:   []string{},
		TradeHistory:    []models.Fill{},
		EquityHistory:   []models.EquitySample{},
	}
}

// Validate checks the header and the balance sanity of a loaded
// snapshot. Queue/book consistency is checked by the engine when it
// rebuilds its order book.
func (s *Snapshot) Validate() error {
	if s.Magic != SnapshotMagic {
		return fmt.Errorf("%w: magic %q", ErrIncompatibleSnapshot, s.Magic)
	}
	if s.Version != SnapshotVersion {
		return fmt.Errorf("%w: version %d, this build reads %d",
			ErrIncompatibleSnapshot, s.Version, SnapshotVersion)
	}
	if s.Cash.IsNegative() {
		return fmt.Errorf("snapshot cash %s is negative", s.Cash)
	}
	if s.FrozenCash.IsNegative() {
		return fmt.Errorf("snapshot frozen cash %s is negative", s.FrozenCash)
	}
	if s.FrozenCash.GreaterThan(s.Cash) {
		return fmt.Errorf("snapshot frozen cash %s exceeds cash %s", s.FrozenCash, s.Cash)
	}
	if s.TPlus < 0 {
		return fmt.Errorf("snapshot t_plus %d is negative", s.TPlus)
	}
	for symbol, qty := range s.FrozenPositions {
		if qty < 0 {
			return fmt.Errorf("snapshot frozen quantity %d for %s is negative", qty, symbol)
		}
		if qty > models.TotalQuantity(s.Positions[symbol]) {
			return fmt.Errorf("snapshot frozen quantity %d for %s exceeds holding", qty, symbol)
		}
	}
	return nil
}

// Copy returns a deep copy sharing nothing with the receiver.
func (s *Snapshot) Copy() *Snapshot {
	if s == nil {
		return nil
	}
	dup := *s
	dup.Positions = make(map[string][]models.Lot, len(s.Positions))
	for symbol, lots := range s.Positions {
		dup.Positions[symbol] = append([]models.Lot(nil), lots...)
	}
	dup.FrozenPositions = make(map[string]int64, len(s.FrozenPositions))
	for symbol, qty := range s.FrozenPositions {
		dup.FrozenPositions[symbol] = qty
	}
	dup.Orders = make(map[string]*models.Order, len(s.Orders))
	for id, o := range s.Orders {
		dup.Orders[id] = o.Copy()
	}
	dup.PendingOrders = append([]string(nil), s.PendingOrders...)
	dup.TradeHistory = append([]models.Fill(nil), s.TradeHistory...)
	dup.EquityHistory = append([]models.EquitySample(nil), s.EquityHistory...)
	return &dup
}
