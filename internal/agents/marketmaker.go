package agents

import (
	"marketsim/internal/model"
	"marketsim/internal/rng"
)

// marketMakerAgent quotes a symmetric bid/ask around the mid price every
// tick, shifted by an inventory-skew term, and re-quotes from scratch each
// time rather than managing individual resting orders.
type marketMakerAgent struct {
	id                string
	rng               *rng.Source
	inventorySkew     float64
	maxPosition       int64
	orderSize         uint64
	defaultHalfSpread float64
}

func newMarketMakerAgent(cfg model.AgentConfig, source *rng.Source) *marketMakerAgent {
	return &marketMakerAgent{
		id:                cfg.ID,
		rng:               source,
		inventorySkew:     paramOrDefault(cfg.Params, "inventorySkew", 0.01),
		maxPosition:       int64(paramOrDefault(cfg.Params, "maxPosition", 500)),
		orderSize:         uint64(paramOrDefault(cfg.Params, "orderSize", 20)),
		defaultHalfSpread: paramOrDefault(cfg.Params, "defaultHalfSpread", 0.5),
	}
}

func (a *marketMakerAgent) ID() string { return a.id }

func (a *marketMakerAgent) Tick(state model.MarketState) ([]model.AgentAction, error) {
	var actions []model.AgentAction
	for _, o := range state.OpenOrders {
		actions = append(actions, model.AgentAction{Kind: model.ActionCancelOrder, CancelID: o.OrderID})
	}

	if state.MidPrice == nil {
		return actions, nil
	}
	mid, _ := state.MidPrice.Float64()

	halfSpread := a.defaultHalfSpread
	if state.Spread != nil {
		spread, _ := state.Spread.Float64()
		halfSpread = spread / 2
	}

	skew := -float64(state.Position) * a.inventorySkew
	bidPrice := clampMin(round2(mid-halfSpread+skew), 1)
	askPrice := clampMin(round2(mid+halfSpread+skew), 1)

	if bidSize := a.capacity(state.Position, a.maxPosition); bidSize > 0 {
		actions = append(actions, model.AgentAction{
			Kind:  model.ActionPlaceOrder,
			Place: model.PlaceOrderRequest{Side: model.Buy, Type: model.Limit, Price: bidPrice, Quantity: bidSize},
		})
	}
	if askSize := a.capacity(-state.Position, a.maxPosition); askSize > 0 {
		actions = append(actions, model.AgentAction{
			Kind:  model.ActionPlaceOrder,
			Place: model.PlaceOrderRequest{Side: model.Sell, Type: model.Limit, Price: askPrice, Quantity: askSize},
		})
	}
	return actions, nil
}

// capacity returns how much of orderSize remains before signedPosition
// would carry the book past maxPosition in that direction.
func (a *marketMakerAgent) capacity(signedPosition, maxPosition int64) uint64 {
	remaining := maxPosition - signedPosition
	if remaining <= 0 {
		return 0
	}
	if uint64(remaining) < a.orderSize {
		return uint64(remaining)
	}
	return a.orderSize
}
