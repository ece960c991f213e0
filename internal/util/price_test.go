package util

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestRoundToLot(t *testing.T) {
	tests := []struct {
		name     string
		qty      int64
		expected int64
	}{
		{
			name:     "rounds down to the lot",
			qty:      250,
			expected: 200,
		},
		{
			name:     "exact lot multiple",
			qty:      300,
			expected: 300,
		},
		{
			name:     "below one lot",
			qty:      99,
			expected: 0,
		},
		{
			name:     "zero",
			qty:      0,
			expected: 0,
		},
		{
			name:     "negative clamps to zero",
			qty:      -150,
			expected: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if result := RoundToLot(tt.qty); result != tt.expected {
				t.Errorf("RoundToLot(%d) = %d, expected %d", tt.qty, result, tt.expected)
			}
		})
	}
}

func TestMaxAffordableQty(t *testing.T) {
	tests := []struct {
		name     string
		budget   string
		price    string
		expected int64
	}{
		{
			name:     "whole lots within budget",
			budget:   "10000",
			price:    "9.80",
			expected: 1000,
		},
		{
			name:     "partial lot is discarded",
			budget:   "1500",
			price:    "10.00",
			expected: 100,
		},
		{
			name:     "budget below one lot",
			budget:   "900",
			price:    "10.00",
			expected: 0,
		},
		{
			name:     "zero price",
			budget:   "10000",
			price:    "0",
			expected: 0,
		},
		{
			name:     "zero budget",
			budget:   "0",
			price:    "10.00",
			expected: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			budget := decimal.RequireFromString(tt.budget)
			price := decimal.RequireFromString(tt.price)
			if result := MaxAffordableQty(budget, price); result != tt.expected {
				t.Errorf("MaxAffordableQty(%s, %s) = %d, expected %d", tt.budget, tt.price, result, tt.expected)
			}
		})
	}
}

func TestFormatCNY(t *testing.T) {
	tests := []struct {
		name     string
		value    string
		expected string
	}{
		{
			name:     "rounds to fen",
			value:    "89994.898",
			expected: "¥89994.90",
		},
		{
			name:     "pads whole numbers",
			value:    "100000",
			expected: "¥100000.00",
		},
		{
			name:     "negative",
			value:    "-259.7975",
			expected: "¥-259.80",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if result := FormatCNY(decimal.RequireFromString(tt.value)); result != tt.expected {
				t.Errorf("FormatCNY(%s) = %q, expected %q", tt.value, result, tt.expected)
			}
		})
	}
}
