package domain

// EventKind identifies the type of a stream event.
type EventKind string

// Stream event kinds. Values match the txType field on the wire.
const (
	EventCreate EventKind = "create"
	EventBuy    EventKind = "buy"
	EventSell   EventKind = "sell"
)

// TradeEvent is a validated inbound stream event. Messages whose shape does
// not resolve to one of the known kinds are dropped at ingress and never
// reach this type.
type TradeEvent struct {
	Kind          EventKind
	Mint          string  // token mint address
	Trader        string  // trader public key (empty on create)
	TokenAmount   float64 // token quantity of the fill
	SolAmount     float64 // SOL side of the fill, if reported
	VSolReserve   float64 // virtual SOL reserve of the bonding curve
	VTokenReserve float64 // virtual token reserve of the bonding curve
	Pool          string  // venue tag ("pump", "raydium", ...)
	TimestampMs   int64   // ingest timestamp, Unix milliseconds
}

// Price returns the estimated SOL price per token derived from the reported
// reserves. ok is false when either reserve is missing or non-positive.
func (e *TradeEvent) Price() (price float64, ok bool) {
	if e.VSolReserve > 0 && e.VTokenReserve > 0 {
		return e.VSolReserve / e.VTokenReserve, true
	}
	return 0, false
}
