package ledger

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/eddiefleurent/paper_tiger/internal/models"
)

var cst = time.FixedZone("CST", 8*3600)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func at(day, hour int) time.Time {
	return time.Date(2025, 6, day, hour, 0, 0, 0, cst)
}

func TestLedger_CashFreezeUnfreeze(t *testing.T) {
	l := New(dec("1000"))

	if err := l.FreezeCash(dec("600")); err != nil {
		t.Fatalf("FreezeCash failed: %v", err)
	}
	if !l.AvailableCash().Equal(dec("400")) {
		t.Errorf("AvailableCash = %s, want 400", l.AvailableCash())
	}

	// Freezing past available cash must fail.
	if err := l.FreezeCash(dec("500")); err == nil {
		t.Error("FreezeCash beyond available should fail")
	}
	if err := l.FreezeCash(dec("-1")); err == nil {
		t.Error("negative freeze should fail")
	}

	if err := l.UnfreezeCash(dec("600")); err != nil {
		t.Fatalf("UnfreezeCash failed: %v", err)
	}
	if !l.FrozenCash().IsZero() {
		t.Errorf("FrozenCash = %s, want 0", l.FrozenCash())
	}

	// Underflow indicates double accounting.
	if err := l.UnfreezeCash(dec("0.01")); err == nil {
		t.Error("unfreezing more than frozen should fail")
	}
}

func TestLedger_QuantityFreezeUnfreeze(t *testing.T) {
	l := New(dec("100000"))
	if err := l.ApplyBuyFill("sh600000", dec("10.00"), 500, dec("5.05"), at(2, 10)); err != nil {
		t.Fatalf("ApplyBuyFill failed: %v", err)
	}

	if err := l.FreezeQuantity("sh600000", 300); err != nil {
		t.Fatalf("FreezeQuantity failed: %v", err)
	}
	if got := l.AvailableQty("sh600000"); got != 200 {
		t.Errorf("AvailableQty = %d, want 200", got)
	}

	if err := l.FreezeQuantity("sh600000", 300); err == nil {
		t.Error("freezing past the holding should fail")
	}

	// Unfreeze clamps at zero and drops empty entries.
	l.UnfreezeQuantity("sh600000", 1000)
	if got := l.FrozenQty("sh600000"); got != 0 {
		t.Errorf("FrozenQty = %d, want 0", got)
	}
	if len(l.FrozenPositions()) != 0 {
		t.Error("zeroed freeze entries should be dropped")
	}
}

func TestLedger_ApplyBuyFill(t *testing.T) {
	l := New(dec("100000"))

	// 1000 shares at 10.00, fee 5.10.
	if err := l.ApplyBuyFill("sh600000", dec("10.00"), 1000, dec("5.1"), at(4, 10)); err != nil {
		t.Fatalf("ApplyBuyFill failed: %v", err)
	}

	if !l.Cash().Equal(dec("89994.90")) {
		t.Errorf("Cash = %s, want 89994.90", l.Cash())
	}
	lots := l.Lots("sh600000")
	if len(lots) != 1 {
		t.Fatalf("lots = %d, want 1", len(lots))
	}
	want := models.Lot{Quantity: 1000, CostPrice: dec("10.00"), BuyDate: "2025-06-04"}
	if lots[0].Quantity != want.Quantity || !lots[0].CostPrice.Equal(want.CostPrice) || lots[0].BuyDate != want.BuyDate {
		t.Errorf("lot = %+v, want %+v", lots[0], want)
	}

	// Costs beyond the cash balance must not go through.
	if err := l.ApplyBuyFill("sh600000", dec("100.00"), 10000, dec("25"), at(4, 10)); err == nil {
		t.Error("buy beyond cash should fail")
	}
}

func TestLedger_ApplySellFill_FIFO(t *testing.T) {
	l := New(dec("100000"))
	if err := l.ApplyBuyFill("sh600000", dec("10.00"), 300, dec("5.03"), at(2, 10)); err != nil {
		t.Fatal(err)
	}
	if err := l.ApplyBuyFill("sh600000", dec("12.00"), 300, dec("5.036"), at(3, 10)); err != nil {
		t.Fatal(err)
	}
	cashBefore := l.Cash()

	slices, err := l.ApplySellFill("sh600000", dec("11.00"), 500)
	if err != nil {
		t.Fatalf("ApplySellFill failed: %v", err)
	}
	if len(slices) != 2 {
		t.Fatalf("slices = %d, want 2", len(slices))
	}

	// First slice drains the oldest lot: 300 at cost 10.00.
	// fee = 5.00 + 3300*0.00001 + 3300*0.001 = 8.333
	s0 := slices[0]
	if s0.Quantity != 300 || !s0.CostPrice.Equal(dec("10.00")) {
		t.Errorf("slice0 = %d @ %s, want 300 @ 10.00", s0.Quantity, s0.CostPrice)
	}
	if !s0.Fee.Equal(dec("8.333")) {
		t.Errorf("slice0 fee = %s, want 8.333", s0.Fee)
	}
	if !s0.Profit.Equal(dec("291.667")) {
		t.Errorf("slice0 profit = %s, want 291.667", s0.Profit)
	}

	// Second slice takes 200 of the newer lot at cost 12.00.
	// fee = 5.00 + 2200*0.00001 + 2200*0.001 = 7.222
	s1 := slices[1]
	if s1.Quantity != 200 || !s1.CostPrice.Equal(dec("12.00")) {
		t.Errorf("slice1 = %d @ %s, want 200 @ 12.00", s1.Quantity, s1.CostPrice)
	}
	if !s1.Profit.Equal(dec("-207.222")) {
		t.Errorf("slice1 profit = %s, want -207.222", s1.Profit)
	}

	// Cash credited net of fees: 3300-8.333 + 2200-7.222.
	wantCash := cashBefore.Add(dec("3291.667")).Add(dec("2192.778"))
	if !l.Cash().Equal(wantCash) {
		t.Errorf("Cash = %s, want %s", l.Cash(), wantCash)
	}

	// The newer lot keeps its tail.
	lots := l.Lots("sh600000")
	if len(lots) != 1 || lots[0].Quantity != 100 || !lots[0].CostPrice.Equal(dec("12.00")) {
		t.Errorf("remaining lots = %+v, want one 100 @ 12.00", lots)
	}
}

func TestLedger_ApplySellFill_DrainsSymbol(t *testing.T) {
	l := New(dec("100000"))
	if err := l.ApplyBuyFill("sh600000", dec("10.00"), 200, dec("5.02"), at(2, 10)); err != nil {
		t.Fatal(err)
	}

	if _, err := l.ApplySellFill("sh600000", dec("10.50"), 200); err != nil {
		t.Fatalf("ApplySellFill failed: %v", err)
	}
	if len(l.Positions()) != 0 {
		t.Error("drained symbols should leave the position map")
	}

	// Nothing left to sell.
	if _, err := l.ApplySellFill("sh600000", dec("10.50"), 100); err == nil {
		t.Error("selling a drained symbol should fail")
	}
}

func TestLedger_ApplySellFill_ShortHolding(t *testing.T) {
	l := New(dec("100000"))
	if err := l.ApplyBuyFill("sh600000", dec("10.00"), 100, dec("5.01"), at(2, 10)); err != nil {
		t.Fatal(err)
	}
	if _, err := l.ApplySellFill("sh600000", dec("10.00"), 200); err == nil {
		t.Error("selling more than held should fail")
	}
	// Failed sells must not touch the lots.
	if got := l.TotalHoldings("sh600000"); got != 100 {
		t.Errorf("TotalHoldings = %d, want 100", got)
	}
}

func TestLedger_CanSellAll(t *testing.T) {
	l := New(dec("100000"))
	if err := l.ApplyBuyFill("sh600000", dec("10.00"), 100, dec("5.01"), at(2, 10)); err != nil {
		t.Fatal(err)
	}

	const tPlus = 1

	cases := []struct {
		name string
		at   time.Time
		want bool
	}{
		{"same day", at(2, 14), false},
		{"one day later still inside the window", at(3, 10), false},
		{"strictly past the window", at(4, 10), true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ok, err := l.CanSellAll("sh600000", tc.at, tPlus)
			if err != nil {
				t.Fatalf("CanSellAll failed: %v", err)
			}
			if ok != tc.want {
				t.Errorf("CanSellAll = %v, want %v", ok, tc.want)
			}
		})
	}
}

func TestLedger_CanSellAll_FreshLotBlocksWholeSymbol(t *testing.T) {
	l := New(dec("100000"))
	if err := l.ApplyBuyFill("sh600000", dec("10.00"), 100, dec("5.01"), at(2, 10)); err != nil {
		t.Fatal(err)
	}
	if err := l.ApplyBuyFill("sh600000", dec("10.50"), 100, dec("5.0105"), at(4, 10)); err != nil {
		t.Fatal(err)
	}

	// The June 2nd lot has matured by the 4th, the June 4th one has not.
	ok, err := l.CanSellAll("sh600000", at(4, 14), 1)
	if err != nil {
		t.Fatalf("CanSellAll failed: %v", err)
	}
	if ok {
		t.Error("a fresh lot should block the whole symbol")
	}
}

func TestLedger_Load(t *testing.T) {
	positions := map[string][]models.Lot{
		"sh600000": {{Quantity: 100, CostPrice: dec("10.00"), BuyDate: "2025-06-02"}},
		"sz000001": {},
	}
	frozen := map[string]int64{"sh600000": 100, "sz000001": 0}

	l := Load(dec("5000"), dec("1000"), dec("10000"), positions, frozen)

	if !l.Cash().Equal(dec("5000")) || !l.FrozenCash().Equal(dec("1000")) || !l.InitialCash().Equal(dec("10000")) {
		t.Errorf("balances = %s/%s/%s", l.Cash(), l.FrozenCash(), l.InitialCash())
	}
	if got := l.TotalHoldings("sh600000"); got != 100 {
		t.Errorf("TotalHoldings = %d, want 100", got)
	}
	// Empty and zeroed entries are dropped on load.
	if _, ok := l.Positions()["sz000001"]; ok {
		t.Error("empty lot lists should not survive a load")
	}
	if _, ok := l.FrozenPositions()["sz000001"]; ok {
		t.Error("zero freeze entries should not survive a load")
	}

	// The load must deep-copy its inputs.
	positions["sh600000"][0].Quantity = 999
	if got := l.TotalHoldings("sh600000"); got != 100 {
		t.Error("ledger should not alias caller-owned lot slices")
	}
}

func TestLedger_Symbols_Sorted(t *testing.T) {
	l := New(dec("100000"))
	for _, symbol := range []string{"sz000001", "sh600000", "sh510300"} {
		if err := l.ApplyBuyFill(symbol, dec("10.00"), 100, dec("5.01"), at(2, 10)); err != nil {
			t.Fatal(err)
		}
	}
	symbols := l.Symbols()
	want := []string{"sh510300", "sh600000", "sz000001"}
	for i := range want {
		if symbols[i] != want[i] {
			t.Fatalf("Symbols = %v, want %v", symbols, want)
		}
	}
}
