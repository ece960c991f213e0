package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/eddiefleurent/paper_tiger/internal/models"
	"github.com/shopspring/decimal"
)

func main() {
	// Build an order the way the engine does
	now := time.Now()
	order := &models.Order{
		ID:         "check-1",
		Symbol:     "sh600000",
		Side:       models.SideBuy,
		Status:     models.StatusPending,
		LimitPrice: decimal.RequireFromString("10.00"),
		Quantity:   1000,
		CreatedAt:  now,
		UpdatedAt:  now,
		ExpiresAt:  now.Add(30 * time.Minute),
	}

	// Walk it through a fill to test persistence of a terminal status
	err := order.Transition(models.StatusFilled, models.ConditionFilled, now.Add(time.Minute))
	if err != nil {
		fmt.Printf("Error transitioning: %v\n", err)
		return
	}

	fmt.Printf("Original Order Status: %s\n", order.Status)

	// Serialize to JSON
	jsonData, err := json.MarshalIndent(order, "", "  ")
	if err != nil {
		fmt.Printf("Error marshaling: %v\n", err)
		return
	}

	fmt.Printf("JSON representation:\n%s\n", string(jsonData))

	if !json.Valid(jsonData) {
		fmt.Println("JSON is not valid!")
		return
	}

	// Deserialize from JSON
	var deserialized models.Order
	err = json.Unmarshal(jsonData, &deserialized)
	if err != nil {
		fmt.Printf("Error unmarshaling: %v\n", err)
		return
	}

	fmt.Printf("Deserialized Order Status: %s\n", deserialized.Status)
	fmt.Printf("Limit price survived: %v\n", deserialized.LimitPrice.Equal(order.LimitPrice))
	fmt.Printf("Notional after round trip: %s\n", deserialized.Notional())

	// The transition table must still hold after a round trip: a filled
	// order refuses every further move.
	err = deserialized.Transition(models.StatusCanceled, models.ConditionCanceled, now.Add(2*time.Minute))
	if err != nil {
		fmt.Printf("Terminal order correctly refused a cancel: %v\n", err)
	} else {
		fmt.Println("BUG: a filled order accepted a cancel after deserialization")
	}
}
