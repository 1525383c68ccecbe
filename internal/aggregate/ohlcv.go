// Package aggregate turns the raw trade/snapshot stream into two
// downstream-facing views: OHLCV bars and snapshot cadence. saiputravu-Exchange
// has no bar aggregation to draw on directly, so this package follows its
// general habit of a small accumulator type with one mutating method per
// input and an explicit Flush, the same shape as internal/book's price
// level bookkeeping.
package aggregate

import (
	"github.com/shopspring/decimal"

	"marketsim/internal/model"
)

// Bar is one OHLCV candle at a fixed resolution.
type Bar struct {
	SessionID     string
	Resolution    int64
	IntervalStart int64
	Open          decimal.Decimal
	High          decimal.Decimal
	Low           decimal.Decimal
	Close         decimal.Decimal
	Volume        uint64
	TradeCount    int
}

// BarSink receives a completed bar, never to be mutated again.
type BarSink func(Bar)

// OHLCVAccumulator keeps exactly one bar in flight: trades extend the
// current bar while they fall in its bucket, otherwise the current bar
// is flushed and a new one opened.
type OHLCVAccumulator struct {
	sessionID  string
	resolution int64
	sink       BarSink
	current    *Bar
}

// NewOHLCVAccumulator constructs an accumulator for the given base
// resolution (ms). sink is invoked once per completed bar, in
// intervalStart order.
func NewOHLCVAccumulator(sessionID string, resolution int64, sink BarSink) *OHLCVAccumulator {
	return &OHLCVAccumulator{sessionID: sessionID, resolution: resolution, sink: sink}
}

func bucketStart(timestampMs, resolution int64) int64 {
	return (timestampMs / resolution) * resolution
}

// OnTrade folds one trade into the current bar, flushing the previous bar
// first if the trade falls into a later bucket.
func (a *OHLCVAccumulator) OnTrade(trade model.Trade) {
	bucket := bucketStart(trade.TimestampMs, a.resolution)

	if a.current != nil && a.current.IntervalStart != bucket {
		a.flushCurrent()
	}
	if a.current == nil {
		a.current = &Bar{
			SessionID:     a.sessionID,
			Resolution:    a.resolution,
			IntervalStart: bucket,
			Open:          trade.Price,
			High:          trade.Price,
			Low:           trade.Price,
			Close:         trade.Price,
			Volume:        trade.Quantity,
			TradeCount:    1,
		}
		return
	}

	if trade.Price.GreaterThan(a.current.High) {
		a.current.High = trade.Price
	}
	if trade.Price.LessThan(a.current.Low) {
		a.current.Low = trade.Price
	}
	a.current.Close = trade.Price
	a.current.Volume += trade.Quantity
	a.current.TradeCount++
}

func (a *OHLCVAccumulator) flushCurrent() {
	if a.current == nil {
		return
	}
	bar := *a.current
	a.current = nil
	if a.sink != nil {
		a.sink(bar)
	}
}

// Flush emits the bar in flight, if any. Called once more at session end,
// so the final partial bar is never silently dropped.
func (a *OHLCVAccumulator) Flush() {
	a.flushCurrent()
}

// RebucketBars derives bars at a coarser resolution from base bars already
// produced at a finer one.
// targetResolution must be an integer multiple of the base bars' resolution;
// bars must already be sorted by IntervalStart.
func RebucketBars(bars []Bar, targetResolution int64) []Bar {
	if len(bars) == 0 {
		return nil
	}

	var result []Bar
	var current *Bar

	for _, b := range bars {
		bucket := bucketStart(b.IntervalStart, targetResolution)
		if current != nil && current.IntervalStart != bucket {
			result = append(result, *current)
			current = nil
		}
		if current == nil {
			current = &Bar{
				SessionID:     b.SessionID,
				Resolution:    targetResolution,
				IntervalStart: bucket,
				Open:          b.Open,
				High:          b.High,
				Low:           b.Low,
				Close:         b.Close,
				Volume:        b.Volume,
				TradeCount:    b.TradeCount,
			}
			continue
		}
		if b.High.GreaterThan(current.High) {
			current.High = b.High
		}
		if b.Low.LessThan(current.Low) {
			current.Low = b.Low
		}
		current.Close = b.Close
		current.Volume += b.Volume
		current.TradeCount += b.TradeCount
	}
	if current != nil {
		result = append(result, *current)
	}
	return result
}
