// reset_state - Replace the engine state file with a freshly funded account
// This writes a clean snapshot with no positions, no orders and no history,
// the same state the trader boots into on first run.
package main

import (
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/eddiefleurent/paper_tiger/internal/models"
	"github.com/eddiefleurent/paper_tiger/internal/storage"
	"github.com/shopspring/decimal"
)

func main() {
	outputPath := flag.String("output", "data/state.json", "Output path for the state file")
	cash := flag.Float64("cash", 1_000_000, "Initial cash for the fresh account")
	tPlus := flag.Int("tplus", 1, "Settlement rule: days a lot must age before it can sell")
	flag.Parse()

	if *cash <= 0 {
		log.Fatalf("Initial cash must be positive, got %v", *cash)
	}
	if *tPlus < 0 {
		log.Fatalf("t_plus must not be negative, got %d", *tPlus)
	}

	store, err := storage.NewJSONStorage(*outputPath)
	if err != nil {
		log.Fatalf("Failed to open storage: %v", err)
	}

	if _, err := store.Load(); err == nil {
		fmt.Printf("⚠️  Overwriting existing state at %s\n", *outputPath)
	}

	snap := storage.NewSnapshot(decimal.NewFromFloat(*cash), *tPlus, time.Now().Format(models.DateFormat))

	fmt.Printf("📄 Writing fresh state...\n")
	if err := store.Save(snap); err != nil {
		log.Fatalf("Failed to save state: %v", err)
	}

	fmt.Printf("✅ Fresh state written to: %s\n", *outputPath)
	fmt.Printf("  - Cash: %s\n", snap.Cash)
	fmt.Printf("  - T+%d settlement\n", snap.TPlus)
	fmt.Printf("\nNext steps:\n")
	fmt.Printf("  1. Back up the old file first if you still need its history\n")
	fmt.Printf("  2. Restart the trader to pick up the fresh account\n")
}
