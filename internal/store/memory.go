package store

import (
	"sort"
	"strconv"
	"sync"

	"marketsim/internal/aggregate"
	"marketsim/internal/model"
	"marketsim/internal/tape"
)

type tapeIndexEntry struct {
	ID          string
	EventType   tape.EventType
	TimestampMs int64
	Sequence    uint64
	Offset      int64
}

// Memory is an in-process implementation of every store interface, backed
// by plain maps and slices under a single mutex. It is the default for
// cmd/simrun and is the store the host package's tests run against.
type Memory struct {
	mu sync.Mutex

	tapeIndex map[string][]tapeIndexEntry
	bars      map[string][]aggregate.Bar
	snapshots map[string][]aggregate.Snapshot
	sessions  map[string]model.Session
}

// NewMemory constructs an empty Memory store.
func NewMemory() *Memory {
	return &Memory{
		tapeIndex: make(map[string][]tapeIndexEntry),
		bars:      make(map[string][]aggregate.Bar),
		snapshots: make(map[string][]aggregate.Snapshot),
		sessions:  make(map[string]model.Session),
	}
}

func (m *Memory) IndexEvent(sessionID string, id string, eventType tape.EventType, timestamp int64, sequence uint64, offset int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tapeIndex[sessionID] = append(m.tapeIndex[sessionID], tapeIndexEntry{
		ID: id, EventType: eventType, TimestampMs: timestamp, Sequence: sequence, Offset: offset,
	})
	return nil
}

func barKey(sessionID string, resolutionMs int64) string {
	return sessionID + "|" + strconv.FormatInt(resolutionMs, 10)
}

func (m *Memory) UpsertBar(sessionID string, resolutionMs int64, bar aggregate.Bar) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := barKey(sessionID, resolutionMs)
	bars := m.bars[key]
	for i := range bars {
		if bars[i].IntervalStart == bar.IntervalStart {
			bars[i] = bar
			return nil
		}
	}
	m.bars[key] = append(bars, bar)
	return nil
}

func (m *Memory) QueryRange(sessionID string, resolutionMs int64, fromMs, toMs int64) ([]aggregate.Bar, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := barKey(sessionID, resolutionMs)
	var out []aggregate.Bar
	for _, b := range m.bars[key] {
		if b.IntervalStart >= fromMs && b.IntervalStart <= toMs {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].IntervalStart < out[j].IntervalStart })
	return out, nil
}

func (m *Memory) PutSnapshot(sessionID string, snap aggregate.Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshots[sessionID] = append(m.snapshots[sessionID], snap)
	return nil
}

func (m *Memory) AtOrBefore(sessionID string, timestampMs int64) (aggregate.Snapshot, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	snaps := m.snapshots[sessionID]
	var best aggregate.Snapshot
	found := false
	for _, s := range snaps {
		if s.TimestampMs <= timestampMs && (!found || s.TimestampMs > best.TimestampMs) {
			best = s
			found = true
		}
	}
	return best, found, nil
}

func (m *Memory) Put(sess model.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[sess.SessionID] = sess
	return nil
}

func (m *Memory) Get(sessionID string) (model.Session, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[sessionID]
	return sess, ok, nil
}

// UpdateSession satisfies runner.SessionUpdater by delegating to Put, so a
// Memory store can be wired as a session updater directly.
func (m *Memory) UpdateSession(session model.Session) error {
	return m.Put(session)
}
