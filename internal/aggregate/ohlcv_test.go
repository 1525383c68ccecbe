package aggregate

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketsim/internal/model"
)

func trade(ts int64, price float64, qty uint64) model.Trade {
	return model.Trade{Price: decimal.NewFromFloat(price), Quantity: qty, TimestampMs: ts}
}

func TestOHLCVExtendsWithinBucket(t *testing.T) {
	var flushed []Bar
	acc := NewOHLCVAccumulator("s1", 1000, func(b Bar) { flushed = append(flushed, b) })

	acc.OnTrade(trade(0, 100, 5))
	acc.OnTrade(trade(200, 105, 3))
	acc.OnTrade(trade(900, 98, 2))

	assert.Empty(t, flushed, "bar not flushed until bucket changes or Flush is called")

	acc.Flush()
	require.Len(t, flushed, 1)
	bar := flushed[0]
	assert.True(t, bar.Open.Equal(decimal.NewFromInt(100)))
	assert.True(t, bar.High.Equal(decimal.NewFromInt(105)))
	assert.True(t, bar.Low.Equal(decimal.NewFromInt(98)))
	assert.True(t, bar.Close.Equal(decimal.NewFromInt(98)))
	assert.EqualValues(t, 10, bar.Volume)
	assert.Equal(t, 3, bar.TradeCount)
}

func TestOHLCVFlushesOnBucketChange(t *testing.T) {
	var flushed []Bar
	acc := NewOHLCVAccumulator("s1", 1000, func(b Bar) { flushed = append(flushed, b) })

	acc.OnTrade(trade(500, 100, 1))
	acc.OnTrade(trade(1500, 110, 1))

	require.Len(t, flushed, 1)
	assert.EqualValues(t, 0, flushed[0].IntervalStart)
	assert.True(t, flushed[0].Close.Equal(decimal.NewFromInt(100)))

	acc.Flush()
	require.Len(t, flushed, 2)
	assert.EqualValues(t, 1000, flushed[1].IntervalStart)
}

func TestRebucketBars(t *testing.T) {
	base := []Bar{
		{IntervalStart: 0, Open: decimal.NewFromInt(100), High: decimal.NewFromInt(102), Low: decimal.NewFromInt(99), Close: decimal.NewFromInt(101), Volume: 5, TradeCount: 2},
		{IntervalStart: 1000, Open: decimal.NewFromInt(101), High: decimal.NewFromInt(103), Low: decimal.NewFromInt(100), Close: decimal.NewFromInt(102), Volume: 4, TradeCount: 1},
		{IntervalStart: 2000, Open: decimal.NewFromInt(102), High: decimal.NewFromInt(104), Low: decimal.NewFromInt(101), Close: decimal.NewFromInt(103), Volume: 3, TradeCount: 3},
	}

	rebucketed := RebucketBars(base, 2000)
	require.Len(t, rebucketed, 2)

	first := rebucketed[0]
	assert.EqualValues(t, 0, first.IntervalStart)
	assert.True(t, first.Open.Equal(decimal.NewFromInt(100)))
	assert.True(t, first.High.Equal(decimal.NewFromInt(103)))
	assert.True(t, first.Low.Equal(decimal.NewFromInt(99)))
	assert.True(t, first.Close.Equal(decimal.NewFromInt(102)))
	assert.EqualValues(t, 9, first.Volume)
	assert.Equal(t, 3, first.TradeCount)

	second := rebucketed[1]
	assert.EqualValues(t, 2000, second.IntervalStart)
	assert.EqualValues(t, 3, second.Volume)
}

func TestSnapshotSchedulerDueCadence(t *testing.T) {
	s := NewSnapshotScheduler(1000)
	assert.True(t, s.Due(0))
	assert.False(t, s.Due(500))
	assert.True(t, s.Due(1000))
	assert.False(t, s.Due(1999))
	assert.True(t, s.Due(2000))
}

func TestSnapshotSchedulerPrimeSuppressesFirstDue(t *testing.T) {
	s := NewSnapshotScheduler(1000)
	s.Prime(0)
	assert.False(t, s.Due(0))
	assert.False(t, s.Due(999))
	assert.True(t, s.Due(1000))
}
