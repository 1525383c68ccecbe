package runner

import (
	"fmt"

	"github.com/rs/zerolog/log"

	"marketsim/internal/model"
)

// stepNews drains every scheduled item due at or before now: it builds the
// in-memory NewsEvent (with sentiment, for this tick's agents) and writes a
// sentiment-stripped copy to the tape.
func (r *Runner) stepNews(now int64) {
	for len(r.newsQueue) > 0 && r.newsQueue[0].TimestampMs <= now {
		item := r.newsQueue[0]
		r.newsQueue = r.newsQueue[1:]
		r.newsSeq++

		news := model.NewsEvent{
			ID:          fmt.Sprintf("NEWS-%06d", r.newsSeq),
			TimestampMs: item.TimestampMs,
			Headline:    item.Headline,
			Content:     item.Content,
			Sentiment:   item.Sentiment,
			Magnitude:   item.Magnitude,
			Source:      item.Source,
		}
		r.recentNews = append(r.recentNews, news)

		if r.tape != nil {
			if _, err := r.tape.AppendNews(news.Redact(), now); err != nil {
				log.Error().Err(err).Msg("tape append news failed")
			}
		}
	}
}

// buildMarketState assembles the shared view every agent's per-agent copy
// is derived from.
func (r *Runner) buildMarketState(now int64) model.MarketState {
	b := r.engine.Book()
	lastPrice, _ := b.LastTrade()

	var lastTrade *model.Trade
	if len(r.recentTrades) > 0 {
		t := r.recentTrades[len(r.recentTrades)-1]
		lastTrade = &t
	}

	return model.MarketState{
		TimestampMs:    now,
		BestBid:        b.GetBestBid(),
		BestAsk:        b.GetBestAsk(),
		MidPrice:       b.GetMidPrice(),
		Spread:         b.GetSpread(),
		LastTrade:      lastTrade,
		LastTradePrice: lastPrice,
		RecentNews:     append([]model.NewsEvent(nil), r.recentNews...),
		RecentTrades:   append([]model.Trade(nil), r.recentTrades...),
	}
}

// stepAgents calls each agent in configuration order with its own
// position/cash/open-order view layered onto the shared state, executes
// whatever actions it returns, and writes any attached thought to the tape
// only after that action's own events, preserving the tape's ordering
// guarantee that an action's own events precede its thought.
func (r *Runner) stepAgents(now int64, base model.MarketState) {
	for _, agent := range r.agentList {
		acct := r.accounts[agent.ID()]
		state := base
		state.Position = acct.position
		state.Cash = acct.cash
		state.OpenOrders = r.engine.Book().OrdersByAgent(agent.ID())

		actions, err := func() (actions []model.AgentAction, err error) {
			defer func() {
				if p := recover(); p != nil {
					err = fmt.Errorf("agent panicked: %v", p)
				}
			}()
			return agent.Tick(state)
		}()
		if err != nil {
			// Agent-thrown errors, returned or panicked, are isolatable: this
			// agent's actions for the tick are discarded, the session continues.
			log.Error().Err(err).Str("agent", agent.ID()).Msg("agent tick failed")
			continue
		}

		for _, action := range actions {
			r.executeAction(agent.ID(), now, action)
		}
	}
}

func (r *Runner) executeAction(agentID string, now int64, action model.AgentAction) {
	switch action.Kind {
	case model.ActionPlaceOrder:
		_, _, err := r.engine.PlaceOrder(agentID, action.Place, now)
		if err != nil {
			// Programmer errors (bad quantity/price): the engine already
			// rejected and recorded no tape event; log and move on.
			log.Warn().Err(err).Str("agent", agentID).Msg("order placement rejected")
			if r.opts.RejectSink != nil {
				r.opts.RejectSink(agentID, err)
			}
			return
		}
	case model.ActionCancelOrder:
		r.engine.CancelOrder(action.CancelID, now)
	}

	if action.Thought != "" && r.tape != nil {
		if _, err := r.tape.AppendAgentThought(agentID, action.Thought, now); err != nil {
			log.Error().Err(err).Msg("tape append agent_thought failed")
		}
	}
}

// pruneWindows trims recentNews/recentTrades to the trailing window.
func (r *Runner) pruneWindows(now int64) {
	cutoff := now - TrailingWindowMs
	r.recentNews = pruneNews(r.recentNews, cutoff)
	r.recentTrades = pruneTrades(r.recentTrades, cutoff)
}

func pruneNews(items []model.NewsEvent, cutoff int64) []model.NewsEvent {
	i := 0
	for i < len(items) && items[i].TimestampMs < cutoff {
		i++
	}
	return items[i:]
}

func pruneTrades(items []model.Trade, cutoff int64) []model.Trade {
	i := 0
	for i < len(items) && items[i].TimestampMs < cutoff {
		i++
	}
	return items[i:]
}
