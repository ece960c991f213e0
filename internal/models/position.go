package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// DateFormat is the calendar-date layout used for lot buy dates and
// trading-day bookkeeping.
const DateFormat = "2006-01-02"

// Lot is one buy execution. Lots are held per symbol in insertion
// order, which is also the FIFO consumption order on sale.
type Lot struct {
	BuyDate   string          `json:"buy_date"`
	CostPrice decimal.Decimal `json:"cost_price"`
	Quantity  int64           `json:"quantity"`
}

// Age returns the number of whole calendar days from the lot's buy
// date to the given time. Same-day is 0.
func (l Lot) Age(at time.Time) (int, error) {
	bought, err := time.ParseInLocation(DateFormat, l.BuyDate, at.Location())
	if err != nil {
		return 0, fmt.Errorf("lot buy date %q: %w", l.BuyDate, err)
	}
	day := time.Date(at.Year(), at.Month(), at.Day(), 0, 0, 0, 0, at.Location())
	return int(day.Sub(bought).Hours() / 24), nil
}

// Cost returns cost price times quantity
func (l Lot) Cost() decimal.Decimal {
	return l.CostPrice.Mul(decimal.NewFromInt(l.Quantity))
}

// TotalQuantity sums the share count across lots
func TotalQuantity(lots []Lot) int64 {
	var total int64
	for _, l := range lots {
		total += l.Quantity
	}
	return total
}

// EarliestBuyDate returns the oldest buy date across lots, or "" when
// there are none. Dates compare lexically in DateFormat.
func EarliestBuyDate(lots []Lot) string {
	earliest := ""
	for _, l := range lots {
		if earliest == "" || l.BuyDate < earliest {
			earliest = l.BuyDate
		}
	}
	return earliest
}
