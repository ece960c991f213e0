// audit_state - A utility to audit frozen balances against the pending queue
// This script helps identify drift between the frozen cash and shares a state
// file claims and what its own pending orders actually imply. The engine
// refuses to restore a drifted snapshot, so run this before deciding whether
// to repair or reset.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/eddiefleurent/paper_tiger/internal/fees"
	"github.com/eddiefleurent/paper_tiger/internal/models"
	"github.com/eddiefleurent/paper_tiger/internal/storage"
	"github.com/shopspring/decimal"
)

// AuditResult compares a snapshot's frozen balances with the ones its
// pending queue implies.
type AuditResult struct {
	Path          string           `json:"path"`
	TradingDay    string           `json:"trading_day"`
	Cash          decimal.Decimal  `json:"cash"`
	FrozenCash    decimal.Decimal  `json:"frozen_cash"`
	ImpliedFrozen decimal.Decimal  `json:"implied_frozen_cash"`
	FrozenShares  map[string]int64 `json:"frozen_shares"`
	ImpliedShares map[string]int64 `json:"implied_frozen_shares"`
	Holdings      map[string]int64 `json:"holdings"`
	PendingOrders int              `json:"pending_orders"`
	Trades        int              `json:"trades"`
	Issues        []string         `json:"issues"`
}

func main() {
	var (
		statePath  = flag.String("state", "data/state.json", "Path to the engine state file")
		jsonOutput = flag.Bool("json", false, "Output results as JSON")
		verbose    = flag.Bool("v", false, "Verbose output")
	)
	flag.Parse()

	store, err := storage.NewJSONStorage(*statePath)
	if err != nil {
		log.Fatalf("Failed to open storage: %v", err)
	}

	snap, err := store.Load()
	if err != nil {
		log.Fatalf("Failed to load state: %v", err)
	}

	if *verbose {
		fmt.Printf("Using state file: %s\n", *statePath)
		fmt.Printf("Snapshot header: %s v%d\n", snap.Magic, snap.Version)
		fmt.Printf("Last trading day: %s\n", snap.LastTradingDay)
		fmt.Printf("\n")
	}

	fmt.Printf("Auditing frozen balances against the pending queue...\n")
	audit := auditSnapshot(snap, *statePath)

	if *jsonOutput {
		output, err := json.MarshalIndent(audit, "", "  ")
		if err != nil {
			log.Fatalf("Failed to marshal JSON: %v", err)
		}
		fmt.Println(string(output))
		return
	}

	printAuditReport(audit)

	fmt.Printf("=== ANALYSIS ===\n")
	if len(audit.Issues) > 0 {
		fmt.Printf("POTENTIAL ISSUES FOUND:\n")
		for i, issue := range audit.Issues {
			fmt.Printf("  %d. %s\n", i+1, issue)
		}
	} else {
		fmt.Printf("No drift detected, the engine will restore this state.\n")
	}

	fmt.Printf("\n")
	fmt.Printf("Next steps:\n")
	fmt.Printf("  1. Back up the state file before changing anything\n")
	fmt.Printf("  2. Drop a stuck queue with: go run scripts/cancel_all.go -state %s\n", *statePath)
	fmt.Printf("  3. Start over with: go run ./scripts/reset_state -output %s\n", *statePath)
}

// auditSnapshot recomputes the frozen balances the pending queue implies
// and collects every discrepancy worth a human look.
func auditSnapshot(snap *storage.Snapshot, path string) *AuditResult {
	impliedCash, impliedShares := recomputeFrozen(snap)

	holdings := make(map[string]int64, len(snap.Positions))
	for symbol, lots := range snap.Positions {
		holdings[symbol] = models.TotalQuantity(lots)
	}

	return &AuditResult{
		Path:          path,
		TradingDay:    snap.LastTradingDay,
		Cash:          snap.Cash,
		FrozenCash:    snap.FrozenCash,
		ImpliedFrozen: impliedCash,
		FrozenShares:  snap.FrozenPositions,
		ImpliedShares: impliedShares,
		Holdings:      holdings,
		PendingOrders: len(snap.PendingOrders),
		Trades:        len(snap.TradeHistory),
		Issues:        analyzeSnapshot(snap, impliedCash, impliedShares),
	}
}

// recomputeFrozen walks the pending queue and sums what each live order
// should be holding: notional plus buy fee for buys, raw shares for
// sells. This mirrors what the engine freezes at order placement.
func recomputeFrozen(snap *storage.Snapshot) (decimal.Decimal, map[string]int64) {
	var schedule fees.Schedule
	cash := decimal.Zero
	shares := make(map[string]int64)

	for _, id := range snap.PendingOrders {
		order, ok := snap.Orders[id]
		if !ok || order == nil {
			continue
		}
		switch order.Side {
		case models.SideBuy:
			notional := order.Notional()
			cash = cash.Add(notional).Add(schedule.Buy(notional))
		case models.SideSell:
			shares[order.Symbol] += order.Quantity
		}
	}
	return cash, shares
}

// analyzeSnapshot reports drifted balances and structural oddities the
// snapshot validator is too lenient to reject.
func analyzeSnapshot(snap *storage.Snapshot, impliedCash decimal.Decimal,
	impliedShares map[string]int64) []string {
	var issues []string

	if snap == nil {
		return issues
	}

	if !snap.FrozenCash.Equal(impliedCash) {
		issues = append(issues, fmt.Sprintf(
			"frozen cash %s does not match the %s implied by pending buys (drift %s)",
			snap.FrozenCash, impliedCash, snap.FrozenCash.Sub(impliedCash)))
	}

	for _, symbol := range sortedKeys(snap.FrozenPositions, impliedShares) {
		stored := snap.FrozenPositions[symbol]
		implied := impliedShares[symbol]
		if stored != implied {
			issues = append(issues, fmt.Sprintf(
				"frozen shares for %s: stored %d, pending sells imply %d",
				symbol, stored, implied))
		}
	}

	now := time.Now()
	for _, id := range snap.PendingOrders {
		order, ok := snap.Orders[id]
		if !ok || order == nil {
			issues = append(issues, fmt.Sprintf("pending id %s has no order record", id))
			continue
		}
		if order.Status != models.StatusPending {
			issues = append(issues, fmt.Sprintf(
				"order %s sits in the pending queue with status %s", id, order.Status))
		}
		if order.ExpiredBy(now) {
			issues = append(issues, fmt.Sprintf(
				"order %s expired %s ago and is waiting for a matching pass",
				id, now.Sub(order.ExpiresAt).Round(time.Second)))
		}
	}

	return issues
}

// sortedKeys merges the symbols of both maps so one-sided drift is
// never skipped.
func sortedKeys(a, b map[string]int64) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	for symbol := range a {
		seen[symbol] = struct{}{}
	}
	for symbol := range b {
		seen[symbol] = struct{}{}
	}
	keys := make([]string, 0, len(seen))
	for symbol := range seen {
		keys = append(keys, symbol)
	}
	sort.Strings(keys)
	return keys
}

func printAuditReport(audit *AuditResult) {
	fmt.Printf("\n=== STATE AUDIT: %s ===\n", audit.Path)
	fmt.Printf("Trading day:     %s\n", audit.TradingDay)
	fmt.Printf("Cash:            %s (frozen %s, implied %s)\n",
		audit.Cash, audit.FrozenCash, audit.ImpliedFrozen)
	fmt.Printf("Pending orders:  %d\n", audit.PendingOrders)
	fmt.Printf("Trades recorded: %d\n", audit.Trades)

	for _, symbol := range sortedKeys(audit.Holdings, audit.FrozenShares) {
		fmt.Printf("  %s: holding %d, frozen %d (implied %d)\n",
			symbol, audit.Holdings[symbol], audit.FrozenShares[symbol], audit.ImpliedShares[symbol])
	}
	fmt.Printf("\n")
}
