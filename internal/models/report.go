package models

import "github.com/shopspring/decimal"

// PositionDetail is one aggregated holding row in a portfolio report.
// Holdings whose lots sum to zero shares are omitted from reports.
type PositionDetail struct {
	Symbol       string          `json:"symbol"`
	BuyDate      string          `json:"buy_date"`
	Quantity     int64           `json:"quantity"`
	AvgCost      decimal.Decimal `json:"avg_cost"`
	CurrentPrice decimal.Decimal `json:"current_price"`
	MarketValue  decimal.Decimal `json:"market_value"`
	Profit       decimal.Decimal `json:"profit"`
}

// PortfolioReport is the full account summary produced by the engine.
type PortfolioReport struct {
	Cash            decimal.Decimal            `json:"cash"`
	FrozenCash      decimal.Decimal            `json:"frozen_cash"`
	Positions       []PositionDetail           `json:"positions"`
	FrozenPositions map[string]int64           `json:"frozen_positions"`
	StockPrices     map[string]decimal.Decimal `json:"stock_prices"`
	LastTrade       *Fill                      `json:"last_trade,omitempty"`
	EquityHistory   []EquitySample             `json:"equity_history"`
	TotalProfit     decimal.Decimal            `json:"total_profit"`
	TodayProfit     decimal.Decimal            `json:"today_profit"`
	TotalAssets     decimal.Decimal            `json:"total_assets"`
	StockValue      decimal.Decimal            `json:"stock_value"`
	NumPositions    int                        `json:"num_positions"`
	TradeCount      int                        `json:"trade_count"`
	PendingOrders   int                        `json:"pending_orders"`
}
