package aggregate

import (
	"github.com/shopspring/decimal"

	"marketsim/internal/book"
)

// Snapshot is the externally-storable form of a point-in-time book view:
// a book.Snapshot (itself session-agnostic and timestamp-agnostic) plus
// the (sessionId, timestamp) key the snapshot store indexes by.
type Snapshot struct {
	SessionID         string
	TimestampMs       int64
	Bids              []book.LevelView
	Asks              []book.LevelView
	LastTradePrice    *decimal.Decimal
	LastTradeQuantity uint64
}

// NewSnapshot wraps a book snapshot with the key its store needs.
func NewSnapshot(sessionID string, timestampMs int64, snap book.Snapshot) Snapshot {
	return Snapshot{
		SessionID:         sessionID,
		TimestampMs:       timestampMs,
		Bids:              snap.Bids,
		Asks:              snap.Asks,
		LastTradePrice:    snap.LastTradePrice,
		LastTradeQuantity: snap.LastTradeQuantity,
	}
}
