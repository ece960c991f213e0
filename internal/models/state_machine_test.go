package models

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func newTestOrder() *Order {
	now := time.Date(2025, 6, 4, 10, 0, 0, 0, time.UTC)
	return &Order{
		ID:         "ord-1",
		Symbol:     "sh600000",
		Side:       SideBuy,
		Status:     StatusPending,
		LimitPrice: decimal.RequireFromString("10.00"),
		Quantity:   100,
		CreatedAt:  now,
		UpdatedAt:  now,
		ExpiresAt:  now.Add(30 * time.Minute),
	}
}

func TestOrderTransition_PendingToTerminal(t *testing.T) {
	cases := []struct {
		name      string
		to        OrderStatus
		condition string
	}{
		{"filled", StatusFilled, ConditionFilled},
		{"user cancel", StatusCanceled, ConditionCanceled},
		{"attempts exhausted", StatusCanceled, ConditionExhausted},
		{"expired", StatusExpired, ConditionExpired},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			o := newTestOrder()
			at := o.CreatedAt.Add(5 * time.Minute)

			if err := o.Transition(tc.to, tc.condition, at); err != nil {
				t.Fatalf("Valid transition failed: %v", err)
			}
			if o.Status != tc.to {
				t.Errorf("Status should be %s, got %s", tc.to, o.Status)
			}
			if !o.UpdatedAt.Equal(at) {
				t.Errorf("UpdatedAt should be %v, got %v", at, o.UpdatedAt)
			}
		})
	}
}

func TestOrderTransition_TerminalIsImmutable(t *testing.T) {
	o := newTestOrder()
	at := o.CreatedAt.Add(time.Minute)

	if err := o.Transition(StatusFilled, ConditionFilled, at); err != nil {
		t.Fatalf("Fill transition failed: %v", err)
	}

	// No route out of a terminal status.
	err := o.Transition(StatusCanceled, ConditionCanceled, at.Add(time.Minute))
	if err == nil {
		t.Error("Transition out of filled should fail")
	}
	if o.Status != StatusFilled {
		t.Errorf("Status should remain filled, got %s", o.Status)
	}
}

func TestOrderTransition_WrongCondition(t *testing.T) {
	o := newTestOrder()

	err := o.Transition(StatusFilled, ConditionExpired, o.CreatedAt)
	if err == nil {
		t.Error("Transition with mismatched condition should fail")
	}
	if o.Status != StatusPending {
		t.Errorf("Status should remain pending after failed transition, got %s", o.Status)
	}
}

func TestOrderStatus_Terminal(t *testing.T) {
	if StatusPending.Terminal() {
		t.Error("pending should not be terminal")
	}
	for _, s := range []OrderStatus{StatusFilled, StatusCanceled, StatusExpired} {
		if !s.Terminal() {
			t.Errorf("%s should be terminal", s)
		}
	}
}

func TestSide_Valid(t *testing.T) {
	if !SideBuy.Valid() || !SideSell.Valid() {
		t.Error("buy and sell should be valid sides")
	}
	if Side("hold").Valid() {
		t.Error("unknown side should be invalid")
	}
}
