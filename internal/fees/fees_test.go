package fees

import (
	"testing"

	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestSchedule_Commission(t *testing.T) {
	var s Schedule

	cases := []struct {
		name     string
		notional string
		want     string
	}{
		{"floor applies on small trades", "10000", "5.00"},
		{"exactly at the floor", "20000", "5.00"},
		{"rate applies above the floor", "40000", "10"},
		{"large trade", "1000000", "250"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := s.Commission(dec(tc.notional))
			if !got.Equal(dec(tc.want)) {
				t.Errorf("Commission(%s) = %s, want %s", tc.notional, got, tc.want)
			}
		})
	}
}

func TestSchedule_Buy(t *testing.T) {
	var s Schedule

	// 1000 shares at 10.00: commission floored at 5.00, transfer 0.10.
	got := s.Buy(dec("10000"))
	if !got.Equal(dec("5.1")) {
		t.Errorf("Buy(10000) = %s, want 5.1", got)
	}

	// 200 shares at 9.00: 5.00 + 0.018.
	got = s.Buy(dec("1800"))
	if !got.Equal(dec("5.018")) {
		t.Errorf("Buy(1800) = %s, want 5.018", got)
	}
}

func TestSchedule_Sell(t *testing.T) {
	var s Schedule

	// 10000 notional: 5.00 commission + 0.10 transfer + 10.00 stamp.
	got := s.Sell(dec("10000"))
	if !got.Equal(dec("15.1")) {
		t.Errorf("Sell(10000) = %s, want 15.1", got)
	}

	// Stamp duty only on the sell side.
	buy := s.Buy(dec("50000"))
	sell := s.Sell(dec("50000"))
	if !sell.Sub(buy).Equal(dec("50")) {
		t.Errorf("sell-buy spread on 50000 = %s, want 50 (stamp duty)", sell.Sub(buy))
	}
}

func TestSchedule_Monotonic(t *testing.T) {
	var s Schedule

	notionals := []string{"0", "100", "1800", "10000", "20000", "20001", "50000", "1000000"}
	prevBuy := decimal.Zero
	prevSell := decimal.Zero
	for i, n := range notionals {
		buy := s.Buy(dec(n))
		sell := s.Sell(dec(n))
		if i > 0 {
			if buy.LessThan(prevBuy) {
				t.Errorf("Buy fee decreased at notional %s: %s < %s", n, buy, prevBuy)
			}
			if sell.LessThan(prevSell) {
				t.Errorf("Sell fee decreased at notional %s: %s < %s", n, sell, prevSell)
			}
		}
		prevBuy, prevSell = buy, sell
	}
}
