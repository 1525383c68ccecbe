// Package runner drives a single simulation session: it owns the clock,
// engine, tape, aggregators, and agent roster and is the sole mutator of
// shared market state. It is grounded on saiputravu-Exchange's
// internal/worker.go dispatch-loop shape (one owning goroutine pulling work
// and reacting to a cancellation signal at well-defined boundaries) even
// though nothing here is networked.
package runner

import (
	"errors"
	"fmt"
	"sort"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"marketsim/internal/aggregate"
	"marketsim/internal/agents"
	"marketsim/internal/book"
	"marketsim/internal/clock"
	"marketsim/internal/engine"
	"marketsim/internal/model"
	"marketsim/internal/rng"
	"marketsim/internal/tape"
)

// TrailingWindowMs is the width of the recentNews/recentTrades window kept
// in MarketState.
const TrailingWindowMs = 5000

// seedOrderLevels is how many price levels are seeded on each side of the
// book before the tick loop starts.
const seedOrderLevels = 5

// seedOrderSize is the size of each seeded bootstrap order.
const seedOrderSize = 100

// OHLCVSink receives completed OHLCV bars for external storage.
type OHLCVSink interface {
	UpsertBar(sessionID string, resolutionMs int64, bar aggregate.Bar) error
}

// SnapshotSink receives book snapshots for external storage.
type SnapshotSink interface {
	PutSnapshot(sessionID string, snapshot aggregate.Snapshot) error
}

// SessionUpdater receives Session record updates as status transitions
// happen, so a host can expose live session state.
type SessionUpdater interface {
	UpdateSession(session model.Session) error
}

// Options configures the external collaborators a Runner reports to. All
// fields are optional; a nil sink is simply not called.
type Options struct {
	TapePath       string
	Indexer        tape.Indexer
	OHLCVSink      OHLCVSink
	SnapshotSink   SnapshotSink
	SessionUpdater SessionUpdater
	EventSink      func(engine.Event)
	RejectSink     func(agentID string, err error)
}

type agentAccount struct {
	position int64
	cash     decimal.Decimal
}

// Runner owns one session's worth of in-memory state end to end.
type Runner struct {
	cfg     model.SessionConfig
	opts    Options
	clock   *clock.Clock
	engine  *engine.Engine
	tape    *tape.Writer
	ohlcv   *aggregate.OHLCVAccumulator
	snapSch *aggregate.SnapshotScheduler

	agentList []agents.Agent
	accounts  map[string]*agentAccount

	newsQueue    []model.NewsScheduleItem
	recentNews   []model.NewsEvent
	recentTrades []model.Trade

	eventCount uint64
	tradeCount uint64
	newsSeq    uint64
	lastSnap   *book.Snapshot

	session model.Session
}

// New constructs a Runner, validating cfg and the agent roster up front.
// Configuration errors (empty roster, non-positive tick size or duration,
// unknown archetype) fail here, before any state transition.
func New(cfg model.SessionConfig, opts Options) (*Runner, error) {
	if len(cfg.Agents) == 0 {
		return nil, errors.New("runner: agent roster must not be empty")
	}
	if cfg.TickSize.Sign() <= 0 {
		return nil, errors.New("runner: tickSize must be positive")
	}
	durationMs := cfg.DurationMs
	initialPrice := cfg.InitialPrice
	newsSchedule := cfg.NewsSchedule
	if cfg.Storyline != nil {
		durationMs = cfg.Storyline.DurationMs
		initialPrice = cfg.Storyline.InitialPrice
		newsSchedule = cfg.Storyline.News
	}
	if durationMs <= 0 {
		return nil, errors.New("runner: durationMs must be positive")
	}

	sortedNews := make([]model.NewsScheduleItem, len(newsSchedule))
	copy(sortedNews, newsSchedule)
	sort.Slice(sortedNews, func(i, j int) bool { return sortedNews[i].TimestampMs < sortedNews[j].TimestampMs })

	master := rng.New(cfg.Seed)
	accounts := make(map[string]*agentAccount, len(cfg.Agents))
	agentList := make([]agents.Agent, 0, len(cfg.Agents))
	for _, ac := range cfg.Agents {
		a, err := agents.New(ac, master.Derive())
		if err != nil {
			return nil, fmt.Errorf("runner: %w", err)
		}
		agentList = append(agentList, a)
		accounts[ac.ID] = &agentAccount{}
	}

	r := &Runner{
		cfg:       cfg,
		opts:      opts,
		clock:     clock.New(),
		agentList: agentList,
		accounts:  accounts,
		newsQueue: sortedNews,
		snapSch:   aggregate.NewSnapshotScheduler(cfg.SnapshotInterval),
		session: model.Session{
			SessionID: cfg.SessionID,
			Name:      cfg.Name,
			Status:    model.SessionPending,
		},
	}

	r.ohlcv = aggregate.NewOHLCVAccumulator(cfg.SessionID, cfg.OHLCVResolution, r.onBarComplete)

	if opts.TapePath != "" {
		w, err := tape.NewWriter(opts.TapePath, cfg.SessionID, opts.Indexer)
		if err != nil {
			return nil, fmt.Errorf("runner: %w", err)
		}
		r.tape = w
	}

	r.engine = engine.New(cfg.SessionID, cfg.TickSize, r.onEngineEvent)
	r.seedBook(initialPrice)
	return r, nil
}

func (r *Runner) updateSession() {
	if r.opts.SessionUpdater != nil {
		if err := r.opts.SessionUpdater.UpdateSession(r.session); err != nil {
			log.Error().Err(err).Msg("session updater failed")
		}
	}
}

// seedBook places the bootstrap liquidity the session starts with, then
// captures and persists an initial snapshot.
func (r *Runner) seedBook(initialPrice float64) {
	tick, _ := r.cfg.TickSize.Float64()
	for i := 1; i <= seedOrderLevels; i++ {
		bidPrice := initialPrice - float64(i)*tick
		askPrice := initialPrice + float64(i)*tick
		if bidPrice > 0 {
			_, _, _ = r.engine.PlaceOrder(model.SeedAgentID, model.PlaceOrderRequest{
				Side: model.Buy, Type: model.Limit, Price: bidPrice, Quantity: seedOrderSize,
			}, 0)
		}
		_, _, _ = r.engine.PlaceOrder(model.SeedAgentID, model.PlaceOrderRequest{
			Side: model.Sell, Type: model.Limit, Price: askPrice, Quantity: seedOrderSize,
		}, 0)
	}
	r.captureSnapshot(0)
	r.snapSch.Prime(0)
}

// Run drives the tick loop until the configured duration elapses or cancel
// is closed. cancel may be a context's Done() channel or a tomb's Dying()
// channel; Runner only ever reads from it at tick boundaries.
func (r *Runner) Run(cancel <-chan struct{}) (err error) {
	r.session.Status = model.SessionRunning
	r.updateSession()

	defer func() {
		if p := recover(); p != nil {
			err = r.finish(model.SessionError, fmt.Errorf("runner: panic in tick loop: %v", p))
		}
	}()

	for r.clock.Now() < r.effectiveDuration() {
		select {
		case <-cancel:
			return r.finishCancelled()
		default:
		}

		now := r.clock.Now()
		r.stepNews(now)
		state := r.buildMarketState(now)
		r.stepAgents(now, state)
		if r.snapSch.Due(now) {
			r.captureSnapshot(now)
		}
		r.pruneWindows(now)
		r.clock.Advance(r.cfg.TickIntervalMs)
	}

	return r.finish(model.SessionCompleted, nil)
}

func (r *Runner) effectiveDuration() int64 {
	if r.cfg.Storyline != nil {
		return r.cfg.Storyline.DurationMs
	}
	return r.cfg.DurationMs
}

func (r *Runner) finishCancelled() error {
	r.captureSnapshot(r.clock.Now())
	return r.finish(model.SessionError, errors.New("runner: cancelled"))
}

// finish performs the shared shutdown sequence: write a final snapshot
// when the session completes (the cancellation path takes its own first;
// the panic path takes none), flush the pending OHLCV bar, close the tape,
// and transition the session to a terminal status.
func (r *Runner) finish(status model.SessionStatus, cause error) error {
	if r.session.Status.Terminal() {
		return cause
	}
	if status == model.SessionCompleted {
		r.captureSnapshot(r.clock.Now())
	}
	r.ohlcv.Flush()

	if r.tape != nil {
		if closeErr := r.tape.Close(); closeErr != nil {
			log.Error().Err(closeErr).Msg("tape close failed")
			if cause == nil {
				cause = closeErr
			}
			status = model.SessionError
		}
	}

	r.session.Status = status
	r.session.EventCount = r.eventCount
	r.session.TradeCount = r.tradeCount
	if r.lastSnap != nil && r.lastSnap.LastTradePrice != nil {
		r.session.FinalPrice = *r.lastSnap.LastTradePrice
	}
	if cause != nil {
		r.session.Error = cause.Error()
	}
	r.updateSession()
	return cause
}

func (r *Runner) onEngineEvent(ev engine.Event) {
	r.eventCount++
	if r.opts.EventSink != nil {
		r.opts.EventSink(ev)
	}

	switch ev.Kind {
	case engine.EventOrderPlaced:
		if r.tape != nil {
			if _, err := r.tape.AppendOrderPlaced(*ev.Order, ev.TimestampMs); err != nil {
				log.Error().Err(err).Msg("tape append order_placed failed")
			}
		}
	case engine.EventOrderCancelled:
		if r.tape != nil {
			if _, err := r.tape.AppendOrderCancelled(*ev.Order, ev.TimestampMs); err != nil {
				log.Error().Err(err).Msg("tape append order_cancelled failed")
			}
		}
	case engine.EventTrade:
		r.tradeCount++
		r.applyTrade(*ev.Trade)
		r.ohlcv.OnTrade(*ev.Trade)
		r.recentTrades = append(r.recentTrades, *ev.Trade)
		if r.tape != nil {
			if _, err := r.tape.AppendTrade(*ev.Trade, ev.TimestampMs); err != nil {
				log.Error().Err(err).Msg("tape append trade failed")
			}
		}
	case engine.EventBookSnapshot:
		r.lastSnap = ev.Snapshot
		if r.tape != nil {
			if _, err := r.tape.AppendBookSnapshot(*ev.Snapshot, ev.TimestampMs); err != nil {
				log.Error().Err(err).Msg("tape append book_snapshot failed")
			}
		}
		if r.opts.SnapshotSink != nil {
			snap := aggregate.NewSnapshot(r.cfg.SessionID, ev.TimestampMs, *ev.Snapshot)
			if err := r.opts.SnapshotSink.PutSnapshot(r.cfg.SessionID, snap); err != nil {
				log.Error().Err(err).Msg("snapshot sink failed")
			}
		}
	}
}

func (r *Runner) onBarComplete(bar aggregate.Bar) {
	if r.opts.OHLCVSink != nil {
		if err := r.opts.OHLCVSink.UpsertBar(r.cfg.SessionID, r.cfg.OHLCVResolution, bar); err != nil {
			log.Error().Err(err).Msg("ohlcv sink failed")
		}
	}
}

// applyTrade updates both counterparties' position and cash, per spec
// §4.8's "notify all agents (so both sides of a trade update their
// positions)" rule — "all" here means both sides of this trade, since a
// trade can only ever affect its two counterparties.
func (r *Runner) applyTrade(trade model.Trade) {
	notional := trade.Price.Mul(decimal.NewFromInt(int64(trade.Quantity)))
	if buyer, ok := r.accounts[trade.BuyAgentID]; ok {
		buyer.position += int64(trade.Quantity)
		buyer.cash = buyer.cash.Sub(notional)
	}
	if seller, ok := r.accounts[trade.SellAgentID]; ok {
		seller.position -= int64(trade.Quantity)
		seller.cash = seller.cash.Add(notional)
	}
}

func (r *Runner) captureSnapshot(now int64) {
	r.engine.Snapshot(r.cfg.SnapshotDepth, now)
}
