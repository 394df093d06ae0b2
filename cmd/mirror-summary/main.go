package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/shopspring/decimal"

	"mirrortrade/internal/config"
	"mirrortrade/internal/store"
)

// mirror-summary prints the most recent realized closes from the trade
// journal with a running P&L total.
func main() {
	limit := flag.Int("n", 20, "number of closes to show")
	flag.Parse()

	cfgPath := "config/mirrortrade.yaml"
	if p := os.Getenv("MIRROR_CONFIG"); p != "" {
		cfgPath = p
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if cfg.Storage.JournalPath == "" {
		log.Fatal("storage.journal_path is not configured")
	}

	journal, err := store.NewJournal(cfg.Storage.JournalPath)
	if err != nil {
		log.Fatalf("failed to open journal: %v", err)
	}
	defer journal.Close()

	closes, err := journal.RecentCloses(context.Background(), *limit)
	if err != nil {
		log.Fatalf("failed to query closes: %v", err)
	}
	if len(closes) == 0 {
		fmt.Println("no realized closes recorded")
		return
	}

	var total decimal.Decimal
	fmt.Printf("%-19s %-8s %12s %12s %12s %10s\n",
		"CLOSED AT", "SYMBOL", "QTY", "ENTRY", "EXIT", "P&L")
	for _, c := range closes {
		total = total.Add(c.PnL)
		fmt.Printf("%-19s %-8s %12s %12s %12s %10s\n",
			c.ClosedAt.Format("2006-01-02 15:04:05"), c.Symbol,
			c.Qty.String(), c.EntryPrice.String(), c.ExitPrice.String(), c.PnL.StringFixed(2))
	}
	fmt.Printf("\ntotal realized P&L over %d closes: %s\n", len(closes), total.StringFixed(2))
}
