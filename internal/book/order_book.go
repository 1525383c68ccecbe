// Package book implements the price-level ladder and price-time-priority
// matching algorithm at the heart of the simulator. It is adapted from
// saiputravu-Exchange's internal/engine/orderbook.go: the same
// tidwall/btree-backed price levels and sweep-while-crossing matching
// loop, generalized to single-instrument scope and given an intrusive
// doubly-linked FIFO queue per level so cancellation is O(1) instead of an
// O(n) slice search.
package book

import (
	"errors"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
	"github.com/tidwall/btree"

	"marketsim/internal/model"
)

var (
	ErrInvalidQuantity = errors.New("order quantity must be positive")
	ErrInvalidPrice    = errors.New("limit order price must be positive")
)

// node is one resident order's slot in its price level's FIFO queue.
type node struct {
	order      *model.Order
	prev, next *node
	level      *priceLevel
}

// priceLevel is the intrusive FIFO queue of orders resting at one price.
type priceLevel struct {
	price         decimal.Decimal
	head, tail    *node
	totalQuantity uint64
	orderCount    int
}

// LevelView is a read-only snapshot of one price level, used for tests and
// for building an OrderBookSnapshot.
type LevelView struct {
	Price      decimal.Decimal
	Quantity   uint64
	OrderCount int
	Orders     []model.Order // FIFO order, head first; copied, safe to retain
}

// Snapshot is the depth-limited view of the book GetSnapshot returns.
type Snapshot struct {
	Bids             []LevelView
	Asks             []LevelView
	LastTradePrice   *decimal.Decimal
	LastTradeQuantity uint64
}

// OrderBook is a single-instrument price-time-priority limit order book.
type OrderBook struct {
	sessionID string
	tickSize  decimal.Decimal

	bids *btree.BTreeG[*priceLevel]
	asks *btree.BTreeG[*priceLevel]

	orders map[string]*node

	lastTradePrice    *decimal.Decimal
	lastTradeQuantity uint64

	nextOrderSeq uint64
	nextTradeSeq uint64
}

// New constructs an empty book for one session.
func New(sessionID string, tickSize decimal.Decimal) *OrderBook {
	bids := btree.NewBTreeG(func(a, b *priceLevel) bool {
		return a.price.GreaterThan(b.price) // highest bid first
	})
	asks := btree.NewBTreeG(func(a, b *priceLevel) bool {
		return a.price.LessThan(b.price) // lowest ask first
	})
	return &OrderBook{
		sessionID: sessionID,
		tickSize:  tickSize,
		bids:      bids,
		asks:      asks,
		orders:    make(map[string]*node),
	}
}

// RoundToTick rounds a raw price to the nearest multiple of tickSize. This
// is the single point where a float64 price (as produced by agent
// heuristics) becomes the decimal.Decimal the book, tape, and aggregates
// all deal in.
func RoundToTick(price float64, tickSize decimal.Decimal) decimal.Decimal {
	if tickSize.IsZero() {
		return decimal.NewFromFloat(price).Round(2)
	}
	p := decimal.NewFromFloat(price)
	ticks := p.Div(tickSize).Round(0)
	return ticks.Mul(tickSize)
}

func (b *OrderBook) nextOrderID() string {
	b.nextOrderSeq++
	return fmt.Sprintf("ORD-%06d", b.nextOrderSeq)
}

func (b *OrderBook) nextTradeID() string {
	b.nextTradeSeq++
	return fmt.Sprintf("TRD-%06d", b.nextTradeSeq)
}

func (b *OrderBook) sideLevels(side model.Side) *btree.BTreeG[*priceLevel] {
	if side == model.Buy {
		return b.bids
	}
	return b.asks
}

func (b *OrderBook) oppositeLevels(side model.Side) *btree.BTreeG[*priceLevel] {
	if side == model.Buy {
		return b.asks
	}
	return b.bids
}

// PlaceOrder rounds the price (for limit orders), assigns a fresh OrderID,
// attempts to match immediately, and — for limit orders with remaining
// quantity — rests the residual at the tail of its price level.
func (b *OrderBook) PlaceOrder(agentID string, req model.PlaceOrderRequest, timestampMs int64) (model.Order, []model.Trade, error) {
	if req.Quantity == 0 {
		return model.Order{}, nil, ErrInvalidQuantity
	}
	if req.Type == model.Limit && req.Price <= 0 {
		return model.Order{}, nil, ErrInvalidPrice
	}

	order := &model.Order{
		OrderID:     b.nextOrderID(),
		SessionID:   b.sessionID,
		AgentID:     agentID,
		Side:        req.Side,
		Type:        req.Type,
		Quantity:    req.Quantity,
		TimestampMs: timestampMs,
		Status:      model.Open,
	}
	if req.Type == model.Limit {
		order.Price = RoundToTick(req.Price, b.tickSize)
	}

	trades := b.match(order, timestampMs)

	if order.Remaining() == 0 {
		order.Status = model.Filled
	} else if req.Type == model.Limit {
		b.insert(order)
		if order.FilledQuantity > 0 {
			order.Status = model.Partial
		} else {
			order.Status = model.Open
		}
	} else {
		// Market order with leftover quantity: never enters the book.
		if order.FilledQuantity > 0 {
			order.Status = model.Partial
		} else {
			order.Status = model.Open
		}
	}

	return *order, trades, nil
}

// match sweeps the opposite side of the book while it crosses the incoming
// order, in price-then-time priority.
func (b *OrderBook) match(incoming *model.Order, timestampMs int64) []model.Trade {
	var trades []model.Trade
	opposite := b.oppositeLevels(incoming.Side)

	for incoming.Remaining() > 0 {
		lvl, ok := opposite.Min()
		if !ok {
			break
		}
		if incoming.Type == model.Limit {
			if incoming.Side == model.Buy && lvl.price.GreaterThan(incoming.Price) {
				break
			}
			if incoming.Side == model.Sell && lvl.price.LessThan(incoming.Price) {
				break
			}
		}

		n := lvl.head
		for n != nil && incoming.Remaining() > 0 {
			resting := n.order
			matchQty := min(incoming.Remaining(), resting.Remaining())

			incoming.FilledQuantity += matchQty
			resting.FilledQuantity += matchQty
			lvl.totalQuantity -= matchQty

			var buyOrderID, sellOrderID, buyAgent, sellAgent string
			if incoming.Side == model.Buy {
				buyOrderID, buyAgent = incoming.OrderID, incoming.AgentID
				sellOrderID, sellAgent = resting.OrderID, resting.AgentID
			} else {
				sellOrderID, sellAgent = incoming.OrderID, incoming.AgentID
				buyOrderID, buyAgent = resting.OrderID, resting.AgentID
			}

			trade := model.Trade{
				TradeID:     b.nextTradeID(),
				SessionID:   b.sessionID,
				BuyOrderID:  buyOrderID,
				SellOrderID: sellOrderID,
				BuyAgentID:  buyAgent,
				SellAgentID: sellAgent,
				Price:       resting.Price,
				Quantity:    matchQty,
				TimestampMs: timestampMs,
				MakerSide:   resting.Side,
			}
			trades = append(trades, trade)

			price := resting.Price
			b.lastTradePrice = &price
			b.lastTradeQuantity = matchQty

			next := n.next
			if resting.Remaining() == 0 {
				resting.Status = model.Filled
				b.unlink(n)
			} else {
				resting.Status = model.Partial
			}
			n = next
		}

		if lvl.head == nil {
			opposite.Delete(lvl)
		}
	}

	return trades
}

// insert rests order at the tail of its price level's FIFO queue, creating
// the level if this is its first resident order.
func (b *OrderBook) insert(order *model.Order) {
	levels := b.sideLevels(order.Side)
	probe := &priceLevel{price: order.Price}
	lvl, ok := levels.Get(probe)
	if !ok {
		lvl = &priceLevel{price: order.Price}
		levels.Set(lvl)
	}

	n := &node{order: order, level: lvl}
	if lvl.tail == nil {
		lvl.head, lvl.tail = n, n
	} else {
		n.prev = lvl.tail
		lvl.tail.next = n
		lvl.tail = n
	}
	lvl.totalQuantity += order.Remaining()
	lvl.orderCount++

	b.orders[order.OrderID] = n
}

// unlink removes n from its level's FIFO queue and deletes the level from
// its side's tree if it is now empty. It does not touch the order's status.
func (b *OrderBook) unlink(n *node) {
	lvl := n.level
	if n.prev != nil {
		n.prev.next = n.next
	} else {
		lvl.head = n.next
	}
	if n.next != nil {
		n.next.prev = n.prev
	} else {
		lvl.tail = n.prev
	}
	lvl.orderCount--
	delete(b.orders, n.order.OrderID)

	if lvl.head == nil {
		levels := b.sideLevels(n.order.Side)
		levels.Delete(lvl)
	}
}

// CancelOrder removes a resident order from the book if it is still
// cancellable (not already filled or cancelled). Returns the cancelled
// order and true, or a zero value and false if the order could not be
// cancelled.
func (b *OrderBook) CancelOrder(orderID string) (model.Order, bool) {
	n, ok := b.orders[orderID]
	if !ok {
		return model.Order{}, false
	}
	order := n.order
	if order.Status == model.Filled || order.Status == model.Cancelled {
		return model.Order{}, false
	}

	n.level.totalQuantity -= order.Remaining()
	b.unlink(n)
	order.Status = model.Cancelled
	return *order, true
}

// GetBestBid returns the highest resting bid price, or nil if the bid side
// is empty.
func (b *OrderBook) GetBestBid() *decimal.Decimal {
	lvl, ok := b.bids.Min()
	if !ok {
		return nil
	}
	p := lvl.price
	return &p
}

// GetBestAsk returns the lowest resting ask price, or nil if the ask side
// is empty.
func (b *OrderBook) GetBestAsk() *decimal.Decimal {
	lvl, ok := b.asks.Min()
	if !ok {
		return nil
	}
	p := lvl.price
	return &p
}

// GetMidPrice returns (bid+ask)/2, or nil if either side is empty.
func (b *OrderBook) GetMidPrice() *decimal.Decimal {
	bid, ask := b.GetBestBid(), b.GetBestAsk()
	if bid == nil || ask == nil {
		return nil
	}
	mid := bid.Add(*ask).Div(decimal.NewFromInt(2))
	return &mid
}

// GetSpread returns ask-bid, or nil if either side is empty.
func (b *OrderBook) GetSpread() *decimal.Decimal {
	bid, ask := b.GetBestBid(), b.GetBestAsk()
	if bid == nil || ask == nil {
		return nil
	}
	spread := ask.Sub(*bid)
	return &spread
}

// LastTrade returns the last observed trade price/quantity, if any.
func (b *OrderBook) LastTrade() (price *decimal.Decimal, quantity uint64) {
	return b.lastTradePrice, b.lastTradeQuantity
}

// levelViews walks depth levels of a side's tree, best-price-first (Items
// returns the tree in its comparator's sort order), copying out each
// level's FIFO queue.
func levelViews(levels *btree.BTreeG[*priceLevel], depth int) []LevelView {
	var out []LevelView
	for _, lvl := range levels.Items() {
		if depth > 0 && len(out) >= depth {
			break
		}
		lv := LevelView{Price: lvl.price, Quantity: lvl.totalQuantity, OrderCount: lvl.orderCount}
		for n := lvl.head; n != nil; n = n.next {
			lv.Orders = append(lv.Orders, *n.order)
		}
		out = append(out, lv)
	}
	return out
}

// GetSnapshot returns the top-depth levels per side plus the last trade
// seen by this book. depth <= 0 returns every resident level.
func (b *OrderBook) GetSnapshot(depth int) Snapshot {
	return Snapshot{
		Bids:              levelViews(b.bids, depth),
		Asks:              levelViews(b.asks, depth),
		LastTradePrice:    b.lastTradePrice,
		LastTradeQuantity: b.lastTradeQuantity,
	}
}

// Bids returns every resident bid level, best-first. Intended for tests and
// diagnostics; GetSnapshot is the hot-path equivalent with a depth cutoff.
func (b *OrderBook) Bids() []LevelView { return levelViews(b.bids, 0) }

// Asks returns every resident ask level, best-first.
func (b *OrderBook) Asks() []LevelView { return levelViews(b.asks, 0) }

// OrdersByAgent returns copies of every order currently resting in the book
// for agentID, in placement (OrderID) order, so the actions an agent derives
// from them are the same on every run. Used by the runner to build each
// agent's view of its own open orders without maintaining a parallel index.
func (b *OrderBook) OrdersByAgent(agentID string) []model.Order {
	var out []model.Order
	for _, n := range b.orders {
		if n.order.AgentID == agentID {
			out = append(out, *n.order)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, c := out[i].OrderID, out[j].OrderID
		if len(a) != len(c) {
			return len(a) < len(c)
		}
		return a < c
	})
	return out
}

func min(a, b uint64) uint64 {
	if a < b {
		return a
	}
	return b
}
