// Package models provides the account-facing data types shared by the
// trading engine: orders, lots, journal entries and report rows.
package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// BoardLot is the exchange board lot. Order quantities are whole
// multiples of it.
const BoardLot int64 = 100

// Side identifies the direction of an order.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// Valid returns true if the Side is one of the defined constants
func (s Side) Valid() bool {
	switch s {
	case SideBuy, SideSell:
		return true
	default:
		return false
	}
}

// OrderStatus represents the lifecycle status of an order
type OrderStatus string

const (
	// StatusPending means the order sits in the matching queue with its
	// resources frozen.
	StatusPending OrderStatus = "pending"
	// StatusFilled means the order executed at its limit price.
	StatusFilled OrderStatus = "filled"
	// StatusCanceled covers user cancels and attempts-exhausted cancels.
	StatusCanceled OrderStatus = "canceled"
	// StatusExpired means the order outlived its TTL without filling.
	StatusExpired OrderStatus = "expired"
)

// Terminal returns true once the status can no longer change
func (s OrderStatus) Terminal() bool {
	switch s {
	case StatusFilled, StatusCanceled, StatusExpired:
		return true
	default:
		return false
	}
}

// Order is a single limit order. Quantity is in shares and always a
// multiple of the exchange board lot. LimitPrice doubles as the
// executed price on fill, so realized P&L is reproducible from order
// inputs alone.
type Order struct {
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
	ExpiresAt  time.Time       `json:"expires_at"`
	ID         string          `json:"id"`
	Symbol     string          `json:"symbol"`
	Side       Side            `json:"side"`
	Status     OrderStatus     `json:"status"`
	LimitPrice decimal.Decimal `json:"limit_price"`
	Quantity   int64           `json:"quantity"`
	Attempts   int             `json:"attempts"`
}

// ExpiredBy returns true if the order's lifetime has elapsed at the given time
func (o *Order) ExpiredBy(now time.Time) bool {
	return now.After(o.ExpiresAt)
}

// Notional returns limit price times quantity
func (o *Order) Notional() decimal.Decimal {
	return o.LimitPrice.Mul(decimal.NewFromInt(o.Quantity))
}

// Copy creates a deep copy of the Order
func (o *Order) Copy() *Order {
	if o == nil {
		return nil
	}
	dup := *o
	return &dup
}
