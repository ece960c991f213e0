// Package main provides a one-shot quote fetcher for checking Eastmoney
// connectivity and eyeballing the data the engine trades on.
//
// Usage:
//
//	# Token is optional; public quotes work without one
//	export EASTMONEY_UT_TOKEN="your_token_here"
//	go run ./scripts/quote -symbol sh600000
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/shopspring/decimal"

	"github.com/eddiefleurent/paper_tiger/internal/market"
	"github.com/eddiefleurent/paper_tiger/internal/models"
	"github.com/eddiefleurent/paper_tiger/internal/util"
)

func main() {
	var (
		symbol     = flag.String("symbol", "sh600000", "Symbol to quote (shXXXXXX or szXXXXXX)")
		endpoint   = flag.String("endpoint", "https://push2.eastmoney.com", "Eastmoney quote host")
		timeout    = flag.Duration("timeout", 5*time.Second, "Request timeout")
		cash       = flag.Float64("cash", 0, "If set, also print how many shares this cash buys at the last price")
		jsonOutput = flag.Bool("json", false, "Output the quote as JSON")
	)
	flag.Parse()

	if err := models.ValidateSymbol(*symbol); err != nil {
		log.Fatalf("Bad symbol: %v", err)
	}

	api := market.NewEastmoneyAPIWithBaseURL(*endpoint).WithTimeout(*timeout)
	if token := os.Getenv("EASTMONEY_UT_TOKEN"); token != "" {
		api = api.WithToken(token)
		fmt.Println("✓ Using EASTMONEY_UT_TOKEN from environment")
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout+time.Second)
	defer cancel()

	quote, err := api.Quote(ctx, *symbol)
	if err != nil {
		log.Fatalf("Quote failed: %v", err)
	}

	if *jsonOutput {
		output, err := json.MarshalIndent(quote, "", "  ")
		if err != nil {
			log.Fatalf("Failed to marshal JSON: %v", err)
		}
		fmt.Println(string(output))
		return
	}

	fmt.Printf("\n=== %s (%s) ===\n", quote.Name, quote.Symbol)
	fmt.Printf("Last:       %s (%s, %s%%)\n", quote.Last, quote.Change, quote.ChangePercent)
	fmt.Printf("Open:       %s\n", quote.Open)
	fmt.Printf("High/Low:   %s / %s\n", quote.High, quote.Low)
	fmt.Printf("Prev close: %s\n", quote.PrevClose)
	fmt.Printf("Band:       %s - %s\n", quote.LowerLimit, quote.UpperLimit)
	fmt.Printf("Volume:     %d shares, turnover %s\n", quote.Volume, quote.Amount)
	fmt.Printf("As of:      %s\n", quote.Timestamp.Format(time.RFC3339))

	if *cash > 0 {
		qty := util.MaxAffordableQty(decimal.NewFromFloat(*cash), quote.Last)
		fmt.Printf("Affordable: %d shares with %s (fees not counted)\n",
			qty, util.FormatCNY(decimal.NewFromFloat(*cash)))
	}

	if len(quote.Asks) > 0 || len(quote.Bids) > 0 {
		fmt.Printf("\n%8s %12s %12s\n", "", "Price", "Volume")
		for i := len(quote.Asks) - 1; i >= 0; i-- {
			fmt.Printf("  Ask %d: %12s %12d\n", i+1, quote.Asks[i].Price, quote.Asks[i].Volume)
		}
		for i, bid := range quote.Bids {
			fmt.Printf("  Bid %d: %12s %12d\n", i+1, bid.Price, bid.Volume)
		}
	}
}
