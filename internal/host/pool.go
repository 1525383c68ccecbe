// Package host runs many simulation sessions concurrently under a bounded
// worker pool, adapted from saiputravu-Exchange's internal/worker.go
// (WorkerPool gating active goroutines against a fixed size) and
// internal/net/server.go (a map of live sessions guarded by a mutex, a
// cancel-on-shutdown path per unit of work). There the unit of work was
// "read and act on one client message"; here it is "run one simulation
// session to completion," so the task channel of net.Conn that
// saiputravu-Exchange pools becomes a semaphore that gates a direct launch
// of one goroutine per session, each owning a runner.Runner plus its own
// tomb.Tomb instead of a socket read loop.
package host

import (
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	tomb "gopkg.in/tomb.v2"

	"marketsim/internal/aggregate"
	"marketsim/internal/engine"
	"marketsim/internal/model"
	"marketsim/internal/runner"
	"marketsim/internal/store"
	"marketsim/internal/tape"
)

var (
	ErrSessionExists   = errors.New("host: session already running")
	ErrSessionNotFound = errors.New("host: session not found")
	ErrPoolFull        = errors.New("host: no free session slot")
)

// Stores bundles the four store interfaces a Host needs. store.Memory and
// store.Postgres both satisfy it as-is.
type Stores interface {
	store.TapeIndexer
	store.OHLCVStore
	store.SnapshotStore
	store.SessionStore
}

// Options configures a Host.
type Options struct {
	MaxConcurrent int
	TapeDir       string
	Stores        Stores
	EventSink     func(sessionID string, ev engine.Event)
	RejectSink    func(sessionID, agentID string, err error)
}

type sessionHandle struct {
	tomb   *tomb.Tomb
	cancel chan struct{}
}

// Host owns the bounded pool of concurrently-running sessions.
type Host struct {
	opts Options
	sem  chan struct{} // one token per free slot

	mu       sync.Mutex
	sessions map[string]*sessionHandle
}

// New constructs a Host with the given maximum concurrent session count.
func New(opts Options) *Host {
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = 4
	}
	return &Host{
		opts:     opts,
		sem:      make(chan struct{}, opts.MaxConcurrent),
		sessions: make(map[string]*sessionHandle),
	}
}

// StartSession launches a new session from cfg, assigning it a fresh
// session id (the same uuid.New().String() call
// saiputravu-Exchange's NewOrderMessage.Order() uses for order ids) when
// cfg.SessionID is empty, and returns the id that was actually used. It
// returns ErrPoolFull immediately rather than queuing, so a caller can
// retry or reject — unlike saiputravu-Exchange's WorkerPool, which blocks
// new tasks in an unbounded channel until a worker frees up; session runs
// are long enough that call-site backpressure is the better default.
func (h *Host) StartSession(cfg model.SessionConfig) (string, error) {
	if cfg.SessionID == "" {
		cfg.SessionID = uuid.New().String()
	}

	h.mu.Lock()
	if _, exists := h.sessions[cfg.SessionID]; exists {
		h.mu.Unlock()
		return "", ErrSessionExists
	}
	h.mu.Unlock()

	select {
	case h.sem <- struct{}{}:
	default:
		return "", ErrPoolFull
	}

	t := new(tomb.Tomb)
	handle := &sessionHandle{tomb: t, cancel: make(chan struct{})}

	h.mu.Lock()
	h.sessions[cfg.SessionID] = handle
	h.mu.Unlock()

	t.Go(func() error {
		defer func() { <-h.sem }()
		return h.runSession(cfg, handle)
	})

	return cfg.SessionID, nil
}

func (h *Host) runSession(cfg model.SessionConfig, handle *sessionHandle) error {
	sessionID := cfg.SessionID
	opts := runner.Options{
		TapePath: h.opts.TapeDir + "/" + sessionID + ".tape",
		Indexer: func(id string, eventType tape.EventType, timestampMs int64, sequence uint64, offset int64) error {
			return h.opts.Stores.IndexEvent(sessionID, id, eventType, timestampMs, sequence, offset)
		},
		OHLCVSink:    ohlcvSinkFunc(func(sid string, res int64, bar aggregate.Bar) error { return h.opts.Stores.UpsertBar(sid, res, bar) }),
		SnapshotSink: snapshotSinkFunc(func(sid string, snap aggregate.Snapshot) error { return h.opts.Stores.PutSnapshot(sid, snap) }),
		SessionUpdater: sessionUpdaterFunc(func(sess model.Session) error { return h.opts.Stores.Put(sess) }),
	}
	if h.opts.RejectSink != nil {
		opts.RejectSink = func(agentID string, err error) { h.opts.RejectSink(sessionID, agentID, err) }
	}
	if h.opts.EventSink != nil {
		opts.EventSink = func(ev engine.Event) { h.opts.EventSink(sessionID, ev) }
	}

	r, err := runner.New(cfg, opts)
	if err != nil {
		log.Error().Err(err).Str("session", sessionID).Msg("session construction failed")
		h.remove(sessionID)
		return err
	}

	err = r.Run(handle.cancel)
	h.remove(sessionID)
	return err
}

func (h *Host) remove(sessionID string) {
	h.mu.Lock()
	delete(h.sessions, sessionID)
	h.mu.Unlock()
}

// CancelSession signals the named session's cancel channel. It is a no-op
// error (ErrSessionNotFound) if the session isn't currently running —
// it may have already finished.
func (h *Host) CancelSession(sessionID string) error {
	h.mu.Lock()
	handle, ok := h.sessions[sessionID]
	h.mu.Unlock()
	if !ok {
		return ErrSessionNotFound
	}
	select {
	case <-handle.cancel:
		// already closed
	default:
		close(handle.cancel)
	}
	return nil
}

// QuerySession returns the most recently persisted Session record.
func (h *Host) QuerySession(sessionID string) (model.Session, bool, error) {
	return h.opts.Stores.Get(sessionID)
}

// Shutdown cancels every running session and waits for each to exit.
func (h *Host) Shutdown() {
	h.mu.Lock()
	handles := make([]*sessionHandle, 0, len(h.sessions))
	for _, handle := range h.sessions {
		handles = append(handles, handle)
	}
	h.mu.Unlock()

	for _, handle := range handles {
		select {
		case <-handle.cancel:
		default:
			close(handle.cancel)
		}
	}
	for _, handle := range handles {
		_ = handle.tomb.Wait()
	}
}

type ohlcvSinkFunc func(sessionID string, resolutionMs int64, bar aggregate.Bar) error

func (f ohlcvSinkFunc) UpsertBar(sessionID string, resolutionMs int64, bar aggregate.Bar) error {
	return f(sessionID, resolutionMs, bar)
}

type snapshotSinkFunc func(sessionID string, snap aggregate.Snapshot) error

func (f snapshotSinkFunc) PutSnapshot(sessionID string, snap aggregate.Snapshot) error {
	return f(sessionID, snap)
}

type sessionUpdaterFunc func(sess model.Session) error

func (f sessionUpdaterFunc) UpdateSession(sess model.Session) error {
	return f(sess)
}
