package domain

// TradeSide is the direction of a trade request.
type TradeSide string

// Trade sides. Values match the action field expected by the execution API.
const (
	SideBuy  TradeSide = "buy"
	SideSell TradeSide = "sell"
)

// TradeRequest describes a single buy or sell to be executed.
// Buys are denominated in SOL; full exits use AmountPct ("100%") instead.
type TradeRequest struct {
	Side        TradeSide
	Mint        string
	AmountSOL   float64 // SOL to spend (buy side)
	AmountPct   string  // percentage of holdings to sell, e.g. "100%" (sell side)
	SlippageBps int     // slippage tolerance in basis points
	PriorityFee float64 // priority fee in SOL
	Pool        string  // venue hint, "auto" when unset
}

// DenominatedInSOL reports whether the request amount is quoted in SOL.
func (r *TradeRequest) DenominatedInSOL() bool {
	return r.Side == SideBuy
}

// Amount returns the wire representation of the request amount.
func (r *TradeRequest) Amount() interface{} {
	if r.Side == SideSell && r.AmountPct != "" {
		return r.AmountPct
	}
	return r.AmountSOL
}

// TradeResult is the outcome of a submission attempt. A nil *TradeResult, or
// one with an empty Signature, means the trade was not executed; submission
// never reports success without an explicit confirmation signature.
type TradeResult struct {
	Signature string
	Endpoint  string // endpoint that produced the confirmation
	Attempts  int    // total network attempts consumed
}

// Confirmed reports whether the result carries a usable confirmation.
func (r *TradeResult) Confirmed() bool {
	return r != nil && r.Signature != ""
}
