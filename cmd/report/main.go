package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"pump-sniper/internal/domain"
	pgstore "pump-sniper/internal/storage/postgres"
)

func main() {
	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string")
	mint := flag.String("mint", "", "Report a single mint instead of a time range")
	from := flag.String("from", "", "Range start (RFC3339), defaults to 24h ago")
	to := flag.String("to", "", "Range end (RFC3339), defaults to now")
	flag.Parse()

	if *postgresDSN == "" {
		fmt.Fprintln(os.Stderr, "Error: --postgres-dsn (or POSTGRES_DSN) is required")
		os.Exit(1)
	}

	ctx := context.Background()

	pool, err := pgstore.NewPool(ctx, *postgresDSN)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error connecting to postgres: %v\n", err)
		os.Exit(1)
	}
	defer pool.Close()

	store := pgstore.NewJournalStore(pool)

	var entries []*domain.JournalEntry
	if *mint != "" {
		entries, err = store.GetByMint(ctx, *mint)
	} else {
		var start, end int64
		start, end, err = parseRange(*from, *to)
		if err == nil {
			entries, err = store.GetByTimeRange(ctx, start, end)
		}
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading journal: %v\n", err)
		os.Exit(1)
	}

	if len(entries) == 0 {
		fmt.Println("No journaled trades in the selected range.")
		return
	}

	printReport(entries)
}

// parseRange resolves the report window, defaulting to the last 24 hours.
func parseRange(from, to string) (int64, int64, error) {
	end := time.Now()
	start := end.Add(-24 * time.Hour)

	if from != "" {
		t, err := time.Parse(time.RFC3339, from)
		if err != nil {
			return 0, 0, fmt.Errorf("parse --from: %w", err)
		}
		start = t
	}
	if to != "" {
		t, err := time.Parse(time.RFC3339, to)
		if err != nil {
			return 0, 0, fmt.Errorf("parse --to: %w", err)
		}
		end = t
	}
	return start.UnixMilli(), end.UnixMilli(), nil
}

// mintSummary aggregates the journal rows of one mint.
type mintSummary struct {
	mint     string
	buys     int
	sells    int
	spendSOL float64
	exitSOL  float64
	reasons  []string
	lastTs   int64
}

func printReport(entries []*domain.JournalEntry) {
	byMint := make(map[string]*mintSummary)
	var order []string

	for _, e := range entries {
		s, ok := byMint[e.Mint]
		if !ok {
			s = &mintSummary{mint: e.Mint}
			byMint[e.Mint] = s
			order = append(order, e.Mint)
		}
		switch e.Side {
		case domain.SideBuy:
			s.buys++
			s.spendSOL += e.AmountSOL
		case domain.SideSell:
			s.sells++
			s.exitSOL += e.AmountSOL
			if e.ExitReason != "" {
				s.reasons = append(s.reasons, e.ExitReason)
			}
		}
		if e.TimestampMs > s.lastTs {
			s.lastTs = e.TimestampMs
		}
	}
	sort.Strings(order)

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "MINT\tBUYS\tSELLS\tSPEND (SOL)\tEXIT EST (SOL)\tNET EST (SOL)\tEXIT REASONS\tLAST TRADE")

	var totalSpend, totalExit float64
	var open int
	for _, mint := range order {
		s := byMint[mint]
		totalSpend += s.spendSOL
		totalExit += s.exitSOL
		if s.sells == 0 {
			open++
		}
		fmt.Fprintf(w, "%s\t%d\t%d\t%.6f\t%.6f\t%+.6f\t%s\t%s\n",
			s.mint, s.buys, s.sells, s.spendSOL, s.exitSOL, s.exitSOL-s.spendSOL,
			joinReasons(s.reasons), time.UnixMilli(s.lastTs).UTC().Format(time.RFC3339))
	}
	w.Flush()

	fmt.Printf("\n%d trades across %d mints (%d still unexited)\n", len(entries), len(order), open)
	fmt.Printf("total spend %.6f SOL, estimated exits %.6f SOL, net %+.6f SOL\n",
		totalSpend, totalExit, totalExit-totalSpend)
	fmt.Println("exit values are estimates taken at submission time, not settled balances")
}

func joinReasons(reasons []string) string {
	if len(reasons) == 0 {
		return "-"
	}
	return strings.Join(reasons, ",")
}
