package agents

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketsim/internal/model"
)

func decPtr(v float64) *decimal.Decimal {
	d := decimal.NewFromFloat(v)
	return &d
}

func TestNewUnknownArchetypeFails(t *testing.T) {
	_, err := New(model.AgentConfig{ID: "x", Archetype: "not-a-real-one"}, 1)
	assert.Error(t, err)
}

func TestNewKnownArchetypesConstruct(t *testing.T) {
	for _, arch := range []string{ArchetypeNoise, ArchetypeMarketMaker, ArchetypeMomentum, ArchetypeInformed, ArchetypeFundamentals} {
		a, err := New(model.AgentConfig{ID: "a", Archetype: arch}, 42)
		require.NoError(t, err)
		assert.Equal(t, "a", a.ID())
	}
}

func TestMarketMakerQuotesSymmetricAroundMid(t *testing.T) {
	mm := newMarketMakerAgent(model.AgentConfig{ID: "mm", Params: map[string]float64{
		"inventorySkew": 0, "maxPosition": 1000, "orderSize": 50,
	}}, nil)

	state := model.MarketState{
		MidPrice: decPtr(100),
		Spread:   decPtr(2),
	}
	actions, err := mm.Tick(state)
	require.NoError(t, err)
	require.Len(t, actions, 2)
	assert.Equal(t, model.Buy, actions[0].Place.Side)
	assert.InDelta(t, 99, actions[0].Place.Price, 0.001)
	assert.Equal(t, model.Sell, actions[1].Place.Side)
	assert.InDelta(t, 101, actions[1].Place.Price, 0.001)
}

func TestMarketMakerCancelsRestingOrdersFirst(t *testing.T) {
	mm := newMarketMakerAgent(model.AgentConfig{ID: "mm", Params: map[string]float64{}}, nil)
	state := model.MarketState{
		MidPrice:   decPtr(100),
		OpenOrders: []model.Order{{OrderID: "ORD-000001"}, {OrderID: "ORD-000002"}},
	}
	actions, err := mm.Tick(state)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(actions), 2)
	assert.Equal(t, model.ActionCancelOrder, actions[0].Kind)
	assert.Equal(t, model.ActionCancelOrder, actions[1].Kind)
}

func TestMomentumTriggersOnThresholdBreach(t *testing.T) {
	mom := newMomentumAgent(model.AgentConfig{ID: "mom", Params: map[string]float64{
		"lookbackPeriod": 3, "threshold": 0.05, "orderSize": 10, "cooldownPeriod": 5, "maxPosition": 1000, "maxDeviation": 0.5,
	}}, nil)

	prices := []float64{100, 100, 100}
	var lastActions []model.AgentAction
	for i, p := range prices {
		actions, err := mom.Tick(model.MarketState{MidPrice: decPtr(p), TimestampMs: int64(i)})
		require.NoError(t, err)
		lastActions = actions
	}
	assert.Empty(t, lastActions, "no breach yet, window flat")

	actions, err := mom.Tick(model.MarketState{MidPrice: decPtr(110), TimestampMs: 3})
	require.NoError(t, err)
	require.Len(t, actions, 1)
	assert.Equal(t, model.Buy, actions[0].Place.Side)
	assert.Equal(t, model.Market, actions[0].Place.Type)

	// immediately in cooldown
	actions, err = mom.Tick(model.MarketState{MidPrice: decPtr(110), TimestampMs: 4})
	require.NoError(t, err)
	assert.Empty(t, actions)
}

func TestInformedReactsOncePerNewsItem(t *testing.T) {
	inf := newInformedAgent(model.AgentConfig{ID: "inf", Params: map[string]float64{
		"reactionStrength": 1.0, "maxPosition": 1000,
	}}, nil)

	news := model.NewsEvent{ID: "N1", Sentiment: 0.9, TimestampMs: 0}
	state := model.MarketState{RecentNews: []model.NewsEvent{news}, Position: 0}

	actions, err := inf.Tick(state)
	require.NoError(t, err)
	require.Len(t, actions, 1)
	assert.Equal(t, model.Buy, actions[0].Place.Side)

	// same news item still in the trailing window next tick: must not re-fire
	actions, err = inf.Tick(state)
	require.NoError(t, err)
	assert.Empty(t, actions)
}

func TestInformedIgnoresNeutralNews(t *testing.T) {
	inf := newInformedAgent(model.AgentConfig{ID: "inf", Params: map[string]float64{}}, nil)
	state := model.MarketState{RecentNews: []model.NewsEvent{{ID: "N2", Sentiment: 0}}}
	actions, err := inf.Tick(state)
	require.NoError(t, err)
	assert.Empty(t, actions)
}

func TestFundamentalsInitializesFairValueToFirstPrice(t *testing.T) {
	f := newFundamentalsAgent(model.AgentConfig{ID: "f", Params: map[string]float64{
		"deviationThreshold": 0.5,
	}}, nil)
	_, err := f.Tick(model.MarketState{MidPrice: decPtr(100), TimestampMs: 0})
	require.NoError(t, err)
	assert.InDelta(t, 100, f.fairValue, 0.001)
}

func TestFundamentalsMeanRevertsWhenDeviationExceedsThreshold(t *testing.T) {
	f := newFundamentalsAgent(model.AgentConfig{ID: "f", Params: map[string]float64{
		"deviationThreshold": 0.01, "baseOrderSize": 10, "maxPosition": 1000, "driftUpdateInterval": 0,
	}}, nil)
	_, err := f.Tick(model.MarketState{MidPrice: decPtr(100), TimestampMs: 0})
	require.NoError(t, err)

	actions, err := f.Tick(model.MarketState{MidPrice: decPtr(110), TimestampMs: 100})
	require.NoError(t, err)
	require.Len(t, actions, 1)
	assert.Equal(t, model.Sell, actions[0].Place.Side, "price above fair value reverts by selling")
}
