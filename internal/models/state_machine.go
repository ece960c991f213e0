package models

import (
	"fmt"
	"time"
)

// OrderTransition defines a valid order status transition
type OrderTransition struct {
	From        OrderStatus
	To          OrderStatus
	Condition   string
	Description string
}

// Transition conditions recognized by the order lifecycle.
const (
	ConditionFilled    = "order_filled"
	ConditionCanceled  = "user_canceled"
	ConditionExhausted = "attempts_exhausted"
	ConditionExpired   = "order_expired"
)

// ValidTransitions enumerates every legal status change. An order moves
// from pending to exactly one terminal status and is immutable after.
var ValidTransitions = []OrderTransition{
	{StatusPending, StatusFilled, ConditionFilled, "Limit condition met, trade executed"},
	{StatusPending, StatusCanceled, ConditionCanceled, "Canceled by the account holder"},
	{StatusPending, StatusCanceled, ConditionExhausted, "Matching attempts exhausted"},
	{StatusPending, StatusExpired, ConditionExpired, "Lifetime elapsed without a fill"},
}

// IsValidTransition checks if a transition is valid
func IsValidTransition(from, to OrderStatus, condition string) error {
	for _, t := range ValidTransitions {
		if t.From == from && t.To == to && t.Condition == condition {
			return nil
		}
	}
	return fmt.Errorf("invalid transition from %s to %s with condition '%s'", from, to, condition)
}

// Transition moves the order to a new status, stamping UpdatedAt
func (o *Order) Transition(to OrderStatus, condition string, at time.Time) error {
	if err := IsValidTransition(o.Status, to, condition); err != nil {
		return fmt.Errorf("order %s: %w", o.ID, err)
	}
	o.Status = to
	o.UpdatedAt = at
	return nil
}
