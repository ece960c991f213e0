// Package main provides a rescue utility that force-cancels every pending
// order in a state file and releases the cash and shares they froze.
//
// Usage:
//
//	# Preview what would be canceled
//	go run scripts/cancel_all.go -state data/state.json -dry-run
//
//	# Actually drop the queue
//	go run scripts/cancel_all.go -state data/state.json
//
// This tool will:
// 1. Load the state file and walk its pending queue
// 2. Mark each order canceled and release its frozen cash or shares
// 3. Replace the state file atomically
//
// Note: Stop the trader first. Changes made while the engine owns the
// file are lost on its next flush.
package main

import (
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/eddiefleurent/paper_tiger/internal/fees"
	"github.com/eddiefleurent/paper_tiger/internal/models"
	"github.com/eddiefleurent/paper_tiger/internal/storage"
	"github.com/shopspring/decimal"
)

func main() {
	statePath := flag.String("state", "data/state.json", "Path to the engine state file")
	dryRun := flag.Bool("dry-run", false, "List what would be canceled without writing")
	flag.Parse()

	store, err := storage.NewJSONStorage(*statePath)
	if err != nil {
		log.Fatalf("❌ Failed to open storage: %v", err)
	}

	snap, err := store.Load()
	if err != nil {
		log.Fatalf("❌ Failed to load state: %v", err)
	}

	if len(snap.PendingOrders) == 0 {
		fmt.Println("✅ No pending orders, nothing to do")
		return
	}

	fmt.Printf("📋 Found %d pending order(s) in %s\n\n", len(snap.PendingOrders), *statePath)

	var schedule fees.Schedule
	now := time.Now()
	canceled := 0

	for _, id := range snap.PendingOrders {
		order, ok := snap.Orders[id]
		if !ok || order == nil {
			fmt.Printf("⚠️  Pending id %s has no order record, dropping it from the queue\n", id)
			continue
		}
		if order.Status != models.StatusPending {
			fmt.Printf("⚠️  Order %s is already %s, dropping it from the queue\n", id, order.Status)
			continue
		}

		switch order.Side {
		case models.SideBuy:
			notional := order.Notional()
			release := notional.Add(schedule.Buy(notional))
			snap.FrozenCash = snap.FrozenCash.Sub(release)
			fmt.Printf("✓ Canceled buy %d %s @ %s, released ¥%s\n",
				order.Quantity, order.Symbol, order.LimitPrice, release.StringFixed(2))
		case models.SideSell:
			snap.FrozenPositions[order.Symbol] -= order.Quantity
			if snap.FrozenPositions[order.Symbol] <= 0 {
				delete(snap.FrozenPositions, order.Symbol)
			}
			fmt.Printf("✓ Canceled sell %d %s @ %s, released the shares\n",
				order.Quantity, order.Symbol, order.LimitPrice)
		}

		if err := order.Transition(models.StatusCanceled, models.ConditionCanceled, now); err != nil {
			log.Fatalf("❌ Order %s refused the cancel: %v", id, err)
		}
		canceled++
	}

	snap.PendingOrders = []string{}
	if snap.FrozenCash.IsNegative() {
		// More was frozen per order than the file recorded in total;
		// clamp so the result passes validation and flag it loudly.
		fmt.Printf("⚠️  Frozen cash went negative during release, clamping to zero. Audit this file.\n")
		snap.FrozenCash = decimal.Zero
	}

	if *dryRun {
		fmt.Printf("\n🔍 Dry run: %d order(s) would be canceled, file untouched\n", canceled)
		return
	}

	if err := store.Save(snap); err != nil {
		log.Fatalf("❌ Failed to save state: %v", err)
	}

	fmt.Printf("\n✅ Canceled %d order(s), frozen cash now ¥%s\n", canceled, snap.FrozenCash.StringFixed(2))
	fmt.Printf("\nNext steps:\n")
	fmt.Printf("  1. Verify with: go run ./scripts/audit_state -state %s\n", *statePath)
	fmt.Printf("  2. Restart the trader\n")
}
