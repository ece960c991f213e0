package models

import (
	"fmt"
	"strings"
)

// Exchange prefixes carried by symbols, e.g. "sh600519", "sz000001".
const (
	ExchangeShanghai = "sh"
	ExchangeShenzhen = "sz"
)

// ValidateSymbol rejects symbols too short to carry an exchange prefix
func ValidateSymbol(symbol string) error {
	if len(symbol) < 2 {
		return fmt.Errorf("symbol %q too short", symbol)
	}
	return nil
}

// SplitSymbol separates a symbol into its exchange prefix and numeric
// ticker. Unrecognized prefixes map to Shenzhen, matching the quote
// feed's market numbering.
func SplitSymbol(symbol string) (exchange, ticker string) {
	if strings.HasPrefix(symbol, ExchangeShanghai) {
		return ExchangeShanghai, strings.TrimPrefix(symbol, ExchangeShanghai)
	}
	return ExchangeShenzhen, strings.TrimPrefix(symbol, ExchangeShenzhen)
}
