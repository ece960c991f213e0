// Package journal records executed fills, realized intraday profit and
// the account equity curve.
package journal

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/eddiefleurent/paper_tiger/internal/models"
)

// EquityCap bounds the retained equity curve. Older samples fall off
// first.
const EquityCap = 100

// Journal is the trade and equity record. It is not self-locking: the
// owning service serializes every call.
type Journal struct {
	fills          []models.Fill
	equity         []models.EquitySample
	todayProfit    decimal.Decimal
	lastTradingDay string
}

// New returns an empty journal anchored to the given trading day.
func New(tradingDay string) *Journal {
	return &Journal{lastTradingDay: tradingDay, todayProfit: decimal.Zero}
}

// Load rebuilds a journal from persisted history. An oversized equity
// curve is trimmed to the cap, keeping the newest samples.
func Load(fills []models.Fill, equity []models.EquitySample,
	todayProfit decimal.Decimal, lastTradingDay string) *Journal {
	j := New(lastTradingDay)
	j.todayProfit = todayProfit
	j.fills = append(j.fills, fills...)
	if len(equity) > EquityCap {
		equity = equity[len(equity)-EquityCap:]
	}
	j.equity = append(j.equity, equity...)
	return j
}

// Record appends one fill slice.
func (j *Journal) Record(f models.Fill) {
	j.fills = append(j.fills, f)
}

// Fills returns a copy of the fill history, oldest first.
func (j *Journal) Fills() []models.Fill {
	return append([]models.Fill(nil), j.fills...)
}

// LastFill returns a copy of the most recent fill, or nil when none
// was recorded yet.
func (j *Journal) LastFill() *models.Fill {
	if len(j.fills) == 0 {
		return nil
	}
	f := j.fills[len(j.fills)-1]
	return &f
}

// TradeCount returns the number of recorded fill slices.
func (j *Journal) TradeCount() int { return len(j.fills) }

// RecordEquity appends one equity sample. Timestamps carry second
// granularity; a sample landing on the same second as the previous one
// replaces it.
func (j *Journal) RecordEquity(at time.Time, totalAssets, cash, stockValue decimal.Decimal) {
	sample := models.EquitySample{
		Timestamp:   at.Truncate(time.Second),
		TotalAssets: totalAssets,
		Cash:        cash,
		StockValue:  stockValue,
	}
	if n := len(j.equity); n > 0 && j.equity[n-1].Timestamp.Equal(sample.Timestamp) {
		j.equity[n-1] = sample
		return
	}
	j.equity = append(j.equity, sample)
	if len(j.equity) > EquityCap {
		j.equity = j.equity[len(j.equity)-EquityCap:]
	}
}

// EquityHistory returns a copy of the equity curve, oldest first.
func (j *Journal) EquityHistory() []models.EquitySample {
	return append([]models.EquitySample(nil), j.equity...)
}

// TodayProfit returns the realized profit accumulated on the current
// trading day.
func (j *Journal) TodayProfit() decimal.Decimal { return j.todayProfit }

// LastTradingDay returns the day today's profit belongs to.
func (j *Journal) LastTradingDay() string { return j.lastTradingDay }

// RollDay resets today's profit once the trading day moves on. It
// reports whether a reset happened.
func (j *Journal) RollDay(tradingDay string) bool {
	if tradingDay == j.lastTradingDay {
		return false
	}
	j.lastTradingDay = tradingDay
	j.todayProfit = decimal.Zero
	return true
}

// AddTodayProfit rolls the day forward and accumulates realized profit
// into it.
func (j *Journal) AddTodayProfit(profit decimal.Decimal, tradingDay string) {
	j.RollDay(tradingDay)
	j.todayProfit = j.todayProfit.Add(profit)
}
