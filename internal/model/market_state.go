package model

import "github.com/shopspring/decimal"

// MarketState is the read-only view of the book and recent activity handed
// to each agent every tick. RecentNews retains Sentiment: it is
// the one place in the system sentiment is allowed to be visible, and it is
// never derived from anything that reaches the tape.
type MarketState struct {
	TimestampMs     int64
	BestBid         *decimal.Decimal
	BestAsk         *decimal.Decimal
	MidPrice        *decimal.Decimal
	Spread          *decimal.Decimal
	LastTrade       *Trade
	LastTradePrice  *decimal.Decimal
	RecentNews      []NewsEvent
	RecentTrades    []Trade

	// Per-agent view, filled in by the Runner before each agent's Tick.
	Position  int64
	Cash      decimal.Decimal
	OpenOrders []Order
}

// ActionKind distinguishes the two things an agent may ask the Runner to do.
type ActionKind int

const (
	ActionPlaceOrder ActionKind = iota
	ActionCancelOrder
)

// PlaceOrderRequest is the subset of Order fields an agent supplies; the
// engine fills in OrderID, SessionID, Status, and the tick-rounded Price.
type PlaceOrderRequest struct {
	Side     Side
	Type     OrderType
	Price    float64 // ignored for Market orders
	Quantity uint64
}

// AgentAction is one thing an agent wants done this tick, optionally
// annotated with a thought that becomes an agent_thought tape event once
// the action has been executed.
type AgentAction struct {
	Kind     ActionKind
	Place    PlaceOrderRequest
	CancelID string
	Thought  string
}
