// Package market standardizes the price payloads shared between ingestion,
// the rolling series store, and the strategy layer.
package market

import "time"

// Tick models a single timestamped market update for one symbol.
// Ticks are immutable once received.
type Tick struct {
	Symbol string
	Price  float64
	Volume float64
	Bid    float64
	Ask    float64
	High   float64
	Low    float64
	Ts     time.Time
}

// Candle is an OHLCV aggregate over a fixed time bucket. A candle is
// finalized exactly once, when its bucket end has passed.
type Candle struct {
	Symbol string
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
	Start  time.Time
	End    time.Time
}
