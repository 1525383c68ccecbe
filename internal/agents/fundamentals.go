package agents

import (
	"math"

	"marketsim/internal/model"
	"marketsim/internal/rng"
)

var magnitudeMultiplier = map[model.NewsMagnitude]float64{
	model.MagnitudeHigh:   0.08,
	model.MagnitudeMedium: 0.04,
	model.MagnitudeLow:    0.02,
}

const highMagnitudeShock = 0.0005

type pendingNewsReaction struct {
	news      model.NewsEvent
	reactAtMs int64
}

// fundamentalsAgent trades against its own private fair-value estimate,
// which drifts on a fixed schedule and jumps (after a reaction lag) when
// material news arrives.
type fundamentalsAgent struct {
	id                  string
	rng                 *rng.Source
	driftUpdateInterval int
	driftPerTick        float64
	volatilityPerTick   float64
	newsDriftDecay      float64
	reactionLagMs       int64
	deviationThreshold  float64
	baseOrderSize       float64
	maxPosition         int64

	fairValue   float64
	initialized bool
	shock       float64
	tickCount   int
	pending     []pendingNewsReaction
	seen        map[string]bool
}

func newFundamentalsAgent(cfg model.AgentConfig, source *rng.Source) *fundamentalsAgent {
	return &fundamentalsAgent{
		id:                  cfg.ID,
		rng:                 source,
		driftUpdateInterval: int(paramOrDefault(cfg.Params, "driftUpdateInterval", 50)),
		driftPerTick:        paramOrDefault(cfg.Params, "driftPerTick", 0),
		volatilityPerTick:   paramOrDefault(cfg.Params, "volatilityPerTick", 0.001),
		newsDriftDecay:      paramOrDefault(cfg.Params, "newsDriftDecay", 0.1),
		reactionLagMs:       int64(paramOrDefault(cfg.Params, "reactionLagMs", 2000)),
		deviationThreshold:  paramOrDefault(cfg.Params, "deviationThreshold", 0.02),
		baseOrderSize:       paramOrDefault(cfg.Params, "baseOrderSize", 20),
		maxPosition:         int64(paramOrDefault(cfg.Params, "maxPosition", 500)),
		seen:                make(map[string]bool),
	}
}

func (a *fundamentalsAgent) ID() string { return a.id }

func (a *fundamentalsAgent) Tick(state model.MarketState) ([]model.AgentAction, error) {
	price, ok := currentPrice(state)
	if !ok {
		return nil, nil
	}
	if !a.initialized {
		a.fairValue = price
		a.initialized = true
	}

	for _, news := range state.RecentNews {
		if !news.Material() || a.seen[news.ID] {
			continue
		}
		a.seen[news.ID] = true
		a.pending = append(a.pending, pendingNewsReaction{news: news, reactAtMs: news.TimestampMs + a.reactionLagMs})
	}

	var remaining []pendingNewsReaction
	for _, p := range a.pending {
		if state.TimestampMs < p.reactAtMs {
			remaining = append(remaining, p)
			continue
		}
		mult := magnitudeMultiplier[p.news.Magnitude]
		if p.news.Sentiment < 0 {
			mult = -mult
		}
		a.fairValue *= 1 + mult
		if p.news.Magnitude == model.MagnitudeHigh {
			shock := highMagnitudeShock
			if p.news.Sentiment < 0 {
				shock = -shock
			}
			a.shock += shock
		}
	}
	a.pending = remaining

	a.tickCount++
	if a.driftUpdateInterval > 0 && a.tickCount%a.driftUpdateInterval == 0 {
		noise := a.rng.FloatRange(-1, 1) * a.volatilityPerTick
		a.fairValue *= 1 + a.driftPerTick + a.shock + noise
		a.shock *= 1 - a.newsDriftDecay
	}

	if a.fairValue <= 0 {
		return nil, nil
	}
	deviation := (price - a.fairValue) / a.fairValue
	if math.Abs(deviation) < a.deviationThreshold {
		return nil, nil
	}

	var side model.Side
	var orderPrice float64
	if deviation > 0 {
		side = model.Sell
		orderPrice = price - 0.5
	} else {
		side = model.Buy
		orderPrice = price + 0.5
	}
	orderPrice = clampMin(round2(orderPrice), 1)

	sizeFactor := math.Min(3, math.Abs(deviation)/a.deviationThreshold)
	size := capToPosition(uint64(a.baseOrderSize*sizeFactor), side, state.Position, a.maxPosition)
	if size == 0 {
		return nil, nil
	}

	return []model.AgentAction{{
		Kind:  model.ActionPlaceOrder,
		Place: model.PlaceOrderRequest{Side: side, Type: model.Limit, Price: orderPrice, Quantity: size},
	}}, nil
}
