package model

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Trade records a single match between a resting (maker) order and the
// order that crossed it (taker). Price is always the resting order's price
// (the maker-price rule).
type Trade struct {
	TradeID      string
	SessionID    string
	BuyOrderID   string
	SellOrderID  string
	BuyAgentID   string
	SellAgentID  string
	Price        decimal.Decimal
	Quantity     uint64
	TimestampMs  int64
	MakerSide    Side
}

func (t Trade) String() string {
	return fmt.Sprintf(
		"Trade{id=%s buy=%s sell=%s price=%s qty=%d maker=%s t=%d}",
		t.TradeID, t.BuyOrderID, t.SellOrderID, t.Price, t.Quantity, t.MakerSide, t.TimestampMs,
	)
}
