package domain

// PairSnapshot is one candidate pair from the market snapshot API.
// It is the polling-path equivalent of a stream price tick.
type PairSnapshot struct {
	Mint           string
	PairAddress    string
	DexID          string
	PriceSOL       float64 // price in the quote asset (SOL)
	PriceChange5m  float64 // percent change over the last 5 minutes
	Volume5mSOL    float64 // quote volume over the last 5 minutes
	Buys5m         int
	Sells5m        int
	LiquidityQuote float64 // quote-side pool liquidity
}

// JournalEntry is one confirmed trade recorded by the journal.
type JournalEntry struct {
	ID          string // uuid
	Mint        string
	Side        TradeSide
	AmountSOL   float64 // spend for buys, estimated proceeds for sells
	TokenQty    float64
	Signature   string
	Mode        string // "local" or "lightning"
	ExitReason  string // empty for buys
	TimestampMs int64
}
