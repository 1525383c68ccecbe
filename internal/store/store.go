// Package store defines the persistence boundary between a running session
// and durable storage: where tape events can be looked up by offset, where
// OHLCV bars and book snapshots land, and where session records live. Two
// implementations are provided: Memory (in-process, used by cmd/simrun and
// tests) and Postgres (grounded on the db *sql.DB constructor-injection
// convention used throughout DimaJoyti-ai-agentic-crypto-browser's
// internal/web3, internal/optimization, and internal/affiliate packages).
package store

import (
	"marketsim/internal/aggregate"
	"marketsim/internal/model"
	"marketsim/internal/tape"
)

// TapeIndexer records where a tape event physically lives, so a reader can
// seek straight to it instead of scanning the file.
type TapeIndexer interface {
	IndexEvent(sessionID string, id string, eventType tape.EventType, timestamp int64, sequence uint64, offset int64) error
}

// OHLCVStore persists completed bars and answers range queries over them.
type OHLCVStore interface {
	UpsertBar(sessionID string, resolutionMs int64, bar aggregate.Bar) error
	QueryRange(sessionID string, resolutionMs int64, fromMs, toMs int64) ([]aggregate.Bar, error)
}

// SnapshotStore persists point-in-time book snapshots and answers
// as-of queries.
type SnapshotStore interface {
	PutSnapshot(sessionID string, snap aggregate.Snapshot) error
	AtOrBefore(sessionID string, timestampMs int64) (aggregate.Snapshot, bool, error)
}

// SessionStore persists Session records as their status transitions happen.
type SessionStore interface {
	Put(sess model.Session) error
	Get(sessionID string) (model.Session, bool, error)
}
