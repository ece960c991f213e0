package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Fill is one executed trade slice recorded in the journal. A sell that
// consumes several lots writes one Fill per consumed slice so the
// realized profit of each slice stays visible.
type Fill struct {
	Timestamp time.Time       `json:"timestamp"`
	OrderID   string          `json:"order_id"`
	Symbol    string          `json:"symbol"`
	Side      Side            `json:"side"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int64           `json:"quantity"`
	Amount    decimal.Decimal `json:"amount"`
	Fee       decimal.Decimal `json:"fee"`
	Profit    decimal.Decimal `json:"profit"`
}

// EquitySample is one point on the account equity curve. Timestamps are
// second-granular; a sample recorded at the same instant as the previous
// one replaces it.
type EquitySample struct {
	Timestamp   time.Time       `json:"timestamp"`
	TotalAssets decimal.Decimal `json:"total_assets"`
	Cash        decimal.Decimal `json:"cash"`
	StockValue  decimal.Decimal `json:"stock_value"`
}
