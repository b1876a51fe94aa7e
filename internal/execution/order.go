// Package execution owns the order lifecycle from creation to terminal
// state and the interaction with the selected venue backend.
package execution

import (
	"time"

	"dnsebot-go/internal/signal"
)

// Status enumerates the order state machine. Transitions are monotonic:
// CREATED → SUBMITTED → {FILLED | PARTIALLY_FILLED → FILLED | REJECTED |
// CANCELLED}; a terminal status never regresses.
type Status string

const (
	StatusCreated         Status = "CREATED"
	StatusSubmitted       Status = "SUBMITTED"
	StatusPartiallyFilled Status = "PARTIALLY_FILLED"
	StatusFilled          Status = "FILLED"
	StatusRejected        Status = "REJECTED"
	StatusCancelled       Status = "CANCELLED"
)

// Terminal reports whether the status ends the order lifecycle.
func (s Status) Terminal() bool {
	switch s {
	case StatusFilled, StatusRejected, StatusCancelled:
		return true
	}
	return false
}

// rank orders statuses along the state machine so transitions can be
// checked for monotonicity.
func (s Status) rank() int {
	switch s {
	case StatusCreated:
		return 0
	case StatusSubmitted:
		return 1
	case StatusPartiallyFilled:
		return 2
	case StatusFilled, StatusRejected, StatusCancelled:
		return 3
	}
	return -1
}

// Type enumerates supported order types.
type Type string

const (
	TypeLimit  Type = "LO"
	TypeMarket Type = "MP"
)

// Order is owned by the executor from creation to terminal status; the risk
// manager only reads terminal outcomes.
type Order struct {
	ID             string
	IdempotencyKey string
	Symbol         string
	Side           signal.Side
	Qty            float64
	Price          float64
	Type           Type
	Status         Status
	FilledQty      float64
	AvgFillPrice   float64
	Reason         string
	Err            string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// transition applies a status change, refusing regressions.
func (o *Order) transition(next Status, now time.Time) bool {
	if next.rank() < o.Status.rank() || (o.Status.Terminal() && next != o.Status) {
		return false
	}
	o.Status = next
	o.UpdatedAt = now
	return true
}

// Fill is the per-execution record written to the paper ledger and the
// trade journal.
type Fill struct {
	OrderID string      `json:"order_id"`
	Symbol  string      `json:"symbol"`
	Side    signal.Side `json:"side"`
	Qty     float64     `json:"qty"`
	Price   float64     `json:"price"`
	Ts      time.Time   `json:"ts"`
}
