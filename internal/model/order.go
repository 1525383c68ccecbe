// Package model holds the value types shared across the simulation core:
// orders, trades, news, sessions, and the market view handed to agents.
package model

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Side is the direction of an order.
type Side int

const (
	Buy Side = iota
	Sell
)

func (s Side) String() string {
	if s == Buy {
		return "buy"
	}
	return "sell"
}

// OrderType distinguishes resting limit orders from immediate-or-cancel
// market orders, which fill what they can and drop any remainder. Market
// orders are never stored in the book.
type OrderType int

const (
	Limit OrderType = iota
	Market
)

func (t OrderType) String() string {
	if t == Limit {
		return "limit"
	}
	return "market"
}

// OrderStatus is a monotonic function of an order's filled/cancelled state.
type OrderStatus int

const (
	Open OrderStatus = iota
	Partial
	Filled
	Cancelled
)

func (s OrderStatus) String() string {
	switch s {
	case Open:
		return "open"
	case Partial:
		return "partial"
	case Filled:
		return "filled"
	case Cancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// SeedAgentID is the reserved agent id used for the book's bootstrap
// liquidity. Downstream consumers identify and exclude it by
// this exact prefix.
const SeedAgentID = "SEED"

// Order is a single resting or market order. Price is always tick-rounded
// before an Order is constructed (internal/book.RoundToTick is the single
// choke point that performs that rounding).
type Order struct {
	OrderID        string
	SessionID      string
	AgentID        string
	Side           Side
	Type           OrderType
	Price          decimal.Decimal
	Quantity       uint64
	FilledQuantity uint64
	Status         OrderStatus
	TimestampMs    int64
}

// Remaining returns the quantity still unfilled.
func (o Order) Remaining() uint64 {
	if o.FilledQuantity >= o.Quantity {
		return 0
	}
	return o.Quantity - o.FilledQuantity
}

func (o Order) String() string {
	return fmt.Sprintf(
		"Order{id=%s side=%s type=%s price=%s qty=%d/%d status=%s agent=%s t=%d}",
		o.OrderID, o.Side, o.Type, o.Price, o.FilledQuantity, o.Quantity, o.Status, o.AgentID, o.TimestampMs,
	)
}
