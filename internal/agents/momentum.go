package agents

import (
	"math"

	"marketsim/internal/model"
	"marketsim/internal/rng"
)

// momentumAgent trades a market order in the direction of a move once the
// relative change over its lookback window crosses threshold, then sits
// out a position-scaled cooldown.
type momentumAgent struct {
	id             string
	rng            *rng.Source
	lookback       int
	threshold      float64
	orderSize      uint64
	cooldownPeriod int
	maxPosition    int64
	maxDeviation   float64

	window            []float64
	anchor            float64
	anchorSet         bool
	cooldownRemaining int
}

func newMomentumAgent(cfg model.AgentConfig, source *rng.Source) *momentumAgent {
	return &momentumAgent{
		id:             cfg.ID,
		rng:            source,
		lookback:       int(paramOrDefault(cfg.Params, "lookbackPeriod", 20)),
		threshold:      paramOrDefault(cfg.Params, "threshold", 0.02),
		orderSize:      uint64(paramOrDefault(cfg.Params, "orderSize", 30)),
		cooldownPeriod: int(paramOrDefault(cfg.Params, "cooldownPeriod", 10)),
		maxPosition:    int64(paramOrDefault(cfg.Params, "maxPosition", 500)),
		maxDeviation:   paramOrDefault(cfg.Params, "maxDeviation", 0.1),
	}
}

func (a *momentumAgent) ID() string { return a.id }

func currentPrice(state model.MarketState) (float64, bool) {
	if state.MidPrice != nil {
		v, _ := state.MidPrice.Float64()
		return v, true
	}
	if state.LastTradePrice != nil {
		v, _ := state.LastTradePrice.Float64()
		return v, true
	}
	return 0, false
}

func (a *momentumAgent) Tick(state model.MarketState) ([]model.AgentAction, error) {
	price, ok := currentPrice(state)
	if !ok {
		return nil, nil
	}
	if !a.anchorSet {
		a.anchor = price
		a.anchorSet = true
	}

	a.window = append(a.window, price)
	if len(a.window) > a.lookback {
		a.window = a.window[len(a.window)-a.lookback:]
	}

	if a.cooldownRemaining > 0 {
		a.cooldownRemaining--
		return nil, nil
	}
	if len(a.window) < a.lookback || a.lookback == 0 {
		return nil, nil
	}

	oldest := a.window[0]
	if oldest == 0 {
		return nil, nil
	}
	change := (price - oldest) / oldest
	if math.Abs(change) <= a.threshold {
		return nil, nil
	}

	side := model.Buy
	if change < 0 {
		side = model.Sell
	}

	size := a.orderSize
	if a.anchor != 0 {
		deviation := math.Abs(price-a.anchor) / a.anchor
		if deviation > a.maxDeviation {
			size = uint64(float64(size) * 0.25)
			if size < 5 {
				a.cooldownRemaining = a.cooldownPeriod + int(math.Abs(float64(state.Position)))/50
				return nil, nil
			}
		}
	}

	size = capToPosition(size, side, state.Position, a.maxPosition)
	a.cooldownRemaining = a.cooldownPeriod + int(math.Abs(float64(state.Position)))/50
	if size == 0 {
		return nil, nil
	}

	return []model.AgentAction{{
		Kind:  model.ActionPlaceOrder,
		Place: model.PlaceOrderRequest{Side: side, Type: model.Market, Quantity: size},
	}}, nil
}

// capToPosition shrinks size so that executing it on side never carries
// position past ±maxPosition.
func capToPosition(size uint64, side model.Side, position, maxPosition int64) uint64 {
	var headroom int64
	if side == model.Buy {
		headroom = maxPosition - position
	} else {
		headroom = maxPosition + position
	}
	if headroom <= 0 {
		return 0
	}
	if uint64(headroom) < size {
		return uint64(headroom)
	}
	return size
}
