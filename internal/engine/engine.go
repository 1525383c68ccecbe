// Package engine wraps internal/book with the tape-emitting sink that
// saiputravu-Exchange's internal/engine/engine.go left as two FIXMEs ("fire an
// execution report", "log an internal trade"): this is where those two
// things actually happen, via a synchronous sink callback instead of a
// live TCP report.
package engine

import (
	"github.com/shopspring/decimal"

	"marketsim/internal/book"
	"marketsim/internal/model"
)

// EventKind enumerates the state changes the engine reports to its sink.
type EventKind int

const (
	EventOrderPlaced EventKind = iota
	EventOrderCancelled
	EventTrade
	EventBookSnapshot
)

// Event is one state change the engine hands to its sink. Exactly one of
// the payload fields is populated, matching Kind.
type Event struct {
	Kind        EventKind
	TimestampMs int64
	Order       *model.Order
	Trade       *model.Trade
	Snapshot    *book.Snapshot
}

// Sink receives engine events synchronously, in the order they occur
// within a single call into the engine; the engine assumes
// single-threaded invocation.
type Sink func(Event)

// Engine is a thin wrapper over an OrderBook that emits one event per
// state change: order_placed before any fills of that placement, one
// trade event per fill, order_cancelled per successful cancel, and
// book_snapshot on demand.
type Engine struct {
	book *book.OrderBook
	sink Sink
}

// New constructs an Engine over a fresh book for sessionID.
func New(sessionID string, tickSize decimal.Decimal, sink Sink) *Engine {
	return &Engine{
		book: book.New(sessionID, tickSize),
		sink: sink,
	}
}

// Book returns the underlying order book, for read-only queries
// (GetBestBid, GetSpread, etc.) that do not need to go through the sink.
func (e *Engine) Book() *book.OrderBook {
	return e.book
}

// PlaceOrder submits req to the book and emits order_placed followed by
// zero or more trade events, in that order.
func (e *Engine) PlaceOrder(agentID string, req model.PlaceOrderRequest, timestampMs int64) (model.Order, []model.Trade, error) {
	order, trades, err := e.book.PlaceOrder(agentID, req, timestampMs)
	if err != nil {
		return model.Order{}, nil, err
	}

	placed := order
	e.emit(Event{Kind: EventOrderPlaced, TimestampMs: timestampMs, Order: &placed})
	for i := range trades {
		tr := trades[i]
		e.emit(Event{Kind: EventTrade, TimestampMs: timestampMs, Trade: &tr})
	}
	return order, trades, nil
}

// CancelOrder cancels orderID and emits order_cancelled on success.
func (e *Engine) CancelOrder(orderID string, timestampMs int64) (model.Order, bool) {
	order, ok := e.book.CancelOrder(orderID)
	if !ok {
		return model.Order{}, false
	}
	e.emit(Event{Kind: EventOrderCancelled, TimestampMs: timestampMs, Order: &order})
	return order, true
}

// Snapshot captures the top-depth book state and emits book_snapshot.
func (e *Engine) Snapshot(depth int, timestampMs int64) book.Snapshot {
	snap := e.book.GetSnapshot(depth)
	e.emit(Event{Kind: EventBookSnapshot, TimestampMs: timestampMs, Snapshot: &snap})
	return snap
}

func (e *Engine) emit(ev Event) {
	if e.sink != nil {
		e.sink(ev)
	}
}
