package domain

// PositionState is the lifecycle state of an open trade.
type PositionState string

// Position lifecycle. A position is created in StateOpening when a buy is
// submitted and removed entirely once a sell confirmation arrives.
const (
	StateOpening PositionState = "opening" // buy submitted, confirmation pending
	StateOpen    PositionState = "open"    // buy confirmed
	StateExiting PositionState = "exiting" // sell submitted, confirmation pending
	StateClosed  PositionState = "closed"  // terminal
)

// Position tracks a confirmed buy until its exit.
type Position struct {
	Mint           string
	State          PositionState
	EntryCostSOL   float64 // total spend including priority fee
	TokenQty       float64 // 0 until the first fill is observed
	PeakExitValue  float64 // monotone high-water mark of estimated exit value
	TakeProfitSeen bool    // true once the take-profit target has been reached
	OpenedAtMs     int64   // Unix milliseconds at buy confirmation
	Pool           string  // venue tag
}

// ExitReason identifies which exit rule triggered a sell.
type ExitReason string

// Exit reasons in evaluation priority order.
const (
	ExitTakeProfit   ExitReason = "take_profit"
	ExitTrailingStop ExitReason = "trailing_stop"
	ExitStopLoss     ExitReason = "stop_loss"
	ExitMaxHold      ExitReason = "max_hold"
)
