// Package fees implements the A-share trading cost schedule.
package fees

import "github.com/shopspring/decimal"

// Published rates, as exact fractions of the traded notional. The
// commission carries a per-order floor.
var (
	CommissionRate  = decimal.RequireFromString("0.00025")
	CommissionFloor = decimal.RequireFromString("5.00")
	TransferRate    = decimal.RequireFromString("0.00001")
	StampRate       = decimal.RequireFromString("0.001")
)

// Schedule computes trading costs from a gross notional. The zero
// value is ready to use.
type Schedule struct{}

// Commission returns max(notional x rate, floor).
func (Schedule) Commission(notional decimal.Decimal) decimal.Decimal {
	fee := notional.Mul(CommissionRate)
	if fee.LessThan(CommissionFloor) {
		return CommissionFloor
	}
	return fee
}

// Transfer returns the registrar transfer fee, charged on both sides.
func (Schedule) Transfer(notional decimal.Decimal) decimal.Decimal {
	return notional.Mul(TransferRate)
}

// StampDuty returns the stamp duty, charged on sells only.
func (Schedule) StampDuty(notional decimal.Decimal) decimal.Decimal {
	return notional.Mul(StampRate)
}

// Buy returns the full cost of a buy: commission plus transfer fee.
func (s Schedule) Buy(notional decimal.Decimal) decimal.Decimal {
	return s.Commission(notional).Add(s.Transfer(notional))
}

// Sell returns the full cost of a sell: commission, transfer fee and
// stamp duty.
func (s Schedule) Sell(notional decimal.Decimal) decimal.Decimal {
	return s.Commission(notional).Add(s.Transfer(notional)).Add(s.StampDuty(notional))
}
