package agents

import (
	"marketsim/internal/model"
	"marketsim/internal/rng"
)

// noiseAgent submits random limit orders around the mid price with no
// directional view.
type noiseAgent struct {
	id              string
	rng             *rng.Source
	orderProbability float64
	priceRange      float64
	orderSize       uint64
}

func newNoiseAgent(cfg model.AgentConfig, source *rng.Source) *noiseAgent {
	return &noiseAgent{
		id:               cfg.ID,
		rng:              source,
		orderProbability: paramOrDefault(cfg.Params, "orderProbability", 0.1),
		priceRange:       paramOrDefault(cfg.Params, "priceRange", 1.0),
		orderSize:        uint64(paramOrDefault(cfg.Params, "orderSize", 10)),
	}
}

func (a *noiseAgent) ID() string { return a.id }

func (a *noiseAgent) Tick(state model.MarketState) ([]model.AgentAction, error) {
	if a.rng.Float64() >= a.orderProbability {
		return nil, nil
	}
	if state.MidPrice == nil {
		return nil, nil
	}

	side := model.Buy
	if a.rng.Pick(2) == 1 {
		side = model.Sell
	}

	mid, _ := state.MidPrice.Float64()
	offset := a.rng.FloatRange(-a.priceRange, a.priceRange)
	price := clampMin(round2(mid+offset), 1)

	return []model.AgentAction{{
		Kind: model.ActionPlaceOrder,
		Place: model.PlaceOrderRequest{
			Side: side, Type: model.Limit, Price: price, Quantity: a.orderSize,
		},
	}}, nil
}
