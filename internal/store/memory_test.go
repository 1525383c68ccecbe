package store

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketsim/internal/aggregate"
	"marketsim/internal/model"
	"marketsim/internal/tape"
)

func bar(intervalStart int64, close float64) aggregate.Bar {
	return aggregate.Bar{
		SessionID:     "s1",
		Resolution:    1000,
		IntervalStart: intervalStart,
		Open:          decimal.NewFromFloat(close),
		High:          decimal.NewFromFloat(close),
		Low:           decimal.NewFromFloat(close),
		Close:         decimal.NewFromFloat(close),
		Volume:        10,
		TradeCount:    1,
	}
}

func TestMemoryUpsertBarReplacesSameInterval(t *testing.T) {
	m := NewMemory()
	require.NoError(t, m.UpsertBar("s1", 1000, bar(0, 100)))
	require.NoError(t, m.UpsertBar("s1", 1000, bar(0, 101)))
	require.NoError(t, m.UpsertBar("s1", 1000, bar(1000, 102)))

	bars, err := m.QueryRange("s1", 1000, 0, 1000)
	require.NoError(t, err)
	require.Len(t, bars, 2)
	assert.True(t, bars[0].Close.Equal(decimal.NewFromFloat(101)))
	assert.True(t, bars[1].Close.Equal(decimal.NewFromFloat(102)))
}

func TestMemoryQueryRangeFiltersByResolutionAndSession(t *testing.T) {
	m := NewMemory()
	require.NoError(t, m.UpsertBar("s1", 1000, bar(0, 100)))
	require.NoError(t, m.UpsertBar("s1", 60000, bar(0, 200)))
	require.NoError(t, m.UpsertBar("s2", 1000, bar(0, 300)))

	bars, err := m.QueryRange("s1", 1000, 0, 0)
	require.NoError(t, err)
	require.Len(t, bars, 1)
	assert.True(t, bars[0].Close.Equal(decimal.NewFromFloat(100)))
}

func TestMemorySnapshotAtOrBeforePicksLatestNotAfter(t *testing.T) {
	m := NewMemory()
	require.NoError(t, m.PutSnapshot("s1", aggregate.Snapshot{SessionID: "s1", TimestampMs: 100}))
	require.NoError(t, m.PutSnapshot("s1", aggregate.Snapshot{SessionID: "s1", TimestampMs: 200}))
	require.NoError(t, m.PutSnapshot("s1", aggregate.Snapshot{SessionID: "s1", TimestampMs: 300}))

	snap, ok, err := m.AtOrBefore("s1", 250)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(200), snap.TimestampMs)

	_, ok, err = m.AtOrBefore("s1", 50)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemorySessionPutGetRoundTrips(t *testing.T) {
	m := NewMemory()
	sess := model.Session{SessionID: "s1", Status: model.SessionRunning, EventCount: 3}
	require.NoError(t, m.Put(sess))

	got, ok, err := m.Get("s1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, model.SessionRunning, got.Status)
	assert.EqualValues(t, 3, got.EventCount)

	_, ok, err = m.Get("missing")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryIndexEventAcceptsEntries(t *testing.T) {
	m := NewMemory()
	require.NoError(t, m.IndexEvent("s1", "EVT-000001", tape.EventTrade, 100, 1, 0))
	assert.Len(t, m.tapeIndex["s1"], 1)
}

func TestMemoryUpdateSessionDelegatesToPut(t *testing.T) {
	m := NewMemory()
	require.NoError(t, m.UpdateSession(model.Session{SessionID: "s1", Status: model.SessionCompleted}))
	got, ok, err := m.Get("s1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, model.SessionCompleted, got.Status)
}
