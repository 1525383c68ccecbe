package agents

import (
	"fmt"
	"math"

	"marketsim/internal/model"
	"marketsim/internal/rng"
)

// informedAgent reacts once to every material news item it has not yet
// seen, pushing its position toward ±maxPosition in the direction of the
// sentiment.
type informedAgent struct {
	id               string
	rng              *rng.Source
	reactionStrength float64
	maxPosition      int64
	processed        map[string]bool
}

func newInformedAgent(cfg model.AgentConfig, source *rng.Source) *informedAgent {
	return &informedAgent{
		id:               cfg.ID,
		rng:              source,
		reactionStrength: paramOrDefault(cfg.Params, "reactionStrength", 0.5),
		maxPosition:      int64(paramOrDefault(cfg.Params, "maxPosition", 500)),
		processed:        make(map[string]bool),
	}
}

func (a *informedAgent) ID() string { return a.id }

func (a *informedAgent) Tick(state model.MarketState) ([]model.AgentAction, error) {
	var actions []model.AgentAction
	for _, news := range state.RecentNews {
		if a.processed[news.ID] {
			continue
		}
		a.processed[news.ID] = true
		if !news.Material() {
			continue
		}

		var side model.Side
		var target int64
		if news.Sentiment > 0 {
			side = model.Buy
			target = a.maxPosition
		} else {
			side = model.Sell
			target = -a.maxPosition
		}

		delta := target - state.Position
		if (side == model.Buy && delta <= 0) || (side == model.Sell && delta >= 0) {
			continue
		}
		magnitude := uint64(math.Abs(float64(delta)))
		scaled := uint64(math.Abs(float64(target)) * math.Min(1, math.Abs(news.Sentiment)*a.reactionStrength))
		size := scaled
		if size > magnitude {
			size = magnitude
		}
		if size == 0 {
			continue
		}

		actions = append(actions, model.AgentAction{
			Kind:    model.ActionPlaceOrder,
			Place:   model.PlaceOrderRequest{Side: side, Type: model.Market, Quantity: size},
			Thought: fmt.Sprintf("reacting to %q (sentiment %.2f)", news.Headline, news.Sentiment),
		})
	}
	return actions, nil
}
