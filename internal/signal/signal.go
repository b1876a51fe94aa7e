// Package signal standardizes the decision payloads flowing from the strategy
// engine through risk approval into order execution.
package signal

import "time"

// Kind enumerates trade recommendations a strategy can emit.
type Kind string

const (
	Buy     Kind = "BUY"
	Sell    Kind = "SELL"
	CutLoss Kind = "CUTLOSS"
	Hold    Kind = "HOLD"
)

// Side enumerates order directions used by risk and execution.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Signal expresses a trading bias produced by one strategy evaluation.
// Price is the tick price the evaluation saw, carried so approval can size
// the entry without re-reading the feed.
type Signal struct {
	Symbol   string
	Kind     Kind
	Strength float64 // in [0,1]
	Price    float64
	Reason   string
	Strategy string
	Ts       time.Time
}

// Intent is a risk-approved action ready for order submission. ID doubles as
// the idempotency key attached to the brokerage submission.
type Intent struct {
	ID     string
	Symbol string
	Side   Side
	Qty    float64
	Price  float64
	Kind   Kind
	Reason string
	Ts     time.Time
}
