// Package util provides common utility functions for quantities and
// money presentation.
package util

import (
	"github.com/shopspring/decimal"

	"github.com/eddiefleurent/paper_tiger/internal/models"
)

// RoundToLot rounds qty down to a whole number of board lots.
// For example, with the 100-share lot, 250 becomes 200.
func RoundToLot(qty int64) int64 {
	if qty <= 0 {
		return 0
	}
	return qty - qty%models.BoardLot
}

// MaxAffordableQty returns the largest lot-aligned quantity whose
// notional at the given price fits the budget. Fees are not included;
// callers wanting headroom shrink the budget first.
func MaxAffordableQty(budget, price decimal.Decimal) int64 {
	if !price.IsPositive() || !budget.IsPositive() {
		return 0
	}
	return RoundToLot(budget.Div(price).IntPart())
}

// FormatCNY renders a money value for display, rounded to fen.
func FormatCNY(v decimal.Decimal) string {
	return "¥" + v.StringFixed(2)
}
