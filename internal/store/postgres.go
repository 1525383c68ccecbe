package store

import (
	"database/sql"
	"errors"
	"fmt"

	goccyjson "github.com/goccy/go-json"
	_ "github.com/lib/pq"
	"github.com/shopspring/decimal"

	"marketsim/internal/aggregate"
	"marketsim/internal/model"
	"marketsim/internal/tape"
)

// schema is applied by EnsureSchema. Snapshots carry a lot of nested
// structure (order book levels, per-order detail); rather than
// normalize that across tables, the book side of a snapshot is kept as a
// single jsonb column, the same flattening choice internal/tape already
// makes for event payloads.
const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	session_id    TEXT PRIMARY KEY,
	name          TEXT NOT NULL,
	status        TEXT NOT NULL,
	created_at_ms BIGINT NOT NULL,
	completed_at  BIGINT,
	event_count   BIGINT NOT NULL,
	trade_count   BIGINT NOT NULL,
	final_price   NUMERIC NOT NULL,
	error         TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS ohlcv_bars (
	session_id     TEXT NOT NULL,
	resolution_ms  BIGINT NOT NULL,
	interval_start BIGINT NOT NULL,
	open           NUMERIC NOT NULL,
	high           NUMERIC NOT NULL,
	low            NUMERIC NOT NULL,
	close          NUMERIC NOT NULL,
	volume         BIGINT NOT NULL,
	trade_count    INTEGER NOT NULL,
	PRIMARY KEY (session_id, resolution_ms, interval_start)
);

CREATE TABLE IF NOT EXISTS book_snapshots (
	session_id   TEXT NOT NULL,
	timestamp_ms BIGINT NOT NULL,
	book_json    JSONB NOT NULL,
	PRIMARY KEY (session_id, timestamp_ms)
);

CREATE TABLE IF NOT EXISTS tape_index (
	session_id   TEXT NOT NULL,
	event_id     TEXT NOT NULL,
	event_type   TEXT NOT NULL,
	timestamp_ms BIGINT NOT NULL,
	sequence     BIGINT NOT NULL,
	byte_offset  BIGINT NOT NULL,
	PRIMARY KEY (session_id, event_id)
);
`

// Postgres is a database/sql-backed implementation of every store
// interface, following the db *sql.DB field + NewXxx(db *sql.DB)
// constructor-injection convention used across
// DimaJoyti-ai-agentic-crypto-browser's repositories (e.g.
// internal/web3.postgresWalletRepository).
type Postgres struct {
	db *sql.DB
}

// NewPostgres wraps an already-open *sql.DB. Callers open it with
// sql.Open("postgres", dsn) and a blank import of github.com/lib/pq, the
// same pairing used by that repo's test/integration/health_test.go.
func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

// EnsureSchema creates the tables used by Postgres if they do not already
// exist. Called once at host startup.
func (p *Postgres) EnsureSchema() error {
	_, err := p.db.Exec(schema)
	return err
}

func (p *Postgres) IndexEvent(sessionID string, id string, eventType tape.EventType, timestamp int64, sequence uint64, offset int64) error {
	_, err := p.db.Exec(
		`INSERT INTO tape_index (session_id, event_id, event_type, timestamp_ms, sequence, byte_offset)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (session_id, event_id) DO NOTHING`,
		sessionID, id, string(eventType), timestamp, int64(sequence), offset,
	)
	return err
}

func (p *Postgres) UpsertBar(sessionID string, resolutionMs int64, bar aggregate.Bar) error {
	_, err := p.db.Exec(
		`INSERT INTO ohlcv_bars (session_id, resolution_ms, interval_start, open, high, low, close, volume, trade_count)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 ON CONFLICT (session_id, resolution_ms, interval_start) DO UPDATE SET
		   high = EXCLUDED.high, low = EXCLUDED.low, close = EXCLUDED.close,
		   volume = EXCLUDED.volume, trade_count = EXCLUDED.trade_count`,
		sessionID, resolutionMs, bar.IntervalStart,
		bar.Open.String(), bar.High.String(), bar.Low.String(), bar.Close.String(),
		int64(bar.Volume), bar.TradeCount,
	)
	return err
}

func (p *Postgres) QueryRange(sessionID string, resolutionMs int64, fromMs, toMs int64) ([]aggregate.Bar, error) {
	rows, err := p.db.Query(
		`SELECT interval_start, open, high, low, close, volume, trade_count
		 FROM ohlcv_bars
		 WHERE session_id = $1 AND resolution_ms = $2 AND interval_start BETWEEN $3 AND $4
		 ORDER BY interval_start ASC`,
		sessionID, resolutionMs, fromMs, toMs,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []aggregate.Bar
	for rows.Next() {
		var (
			b                      aggregate.Bar
			open, high, low, close string
			volume                 int64
		)
		if err := rows.Scan(&b.IntervalStart, &open, &high, &low, &close, &volume, &b.TradeCount); err != nil {
			return nil, err
		}
		b.SessionID = sessionID
		b.Resolution = resolutionMs
		b.Volume = uint64(volume)
		if b.Open, err = decimal.NewFromString(open); err != nil {
			return nil, err
		}
		if b.High, err = decimal.NewFromString(high); err != nil {
			return nil, err
		}
		if b.Low, err = decimal.NewFromString(low); err != nil {
			return nil, err
		}
		if b.Close, err = decimal.NewFromString(close); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (p *Postgres) PutSnapshot(sessionID string, snap aggregate.Snapshot) error {
	body, err := goccyjson.Marshal(snap)
	if err != nil {
		return fmt.Errorf("store: marshal snapshot: %w", err)
	}
	_, err = p.db.Exec(
		`INSERT INTO book_snapshots (session_id, timestamp_ms, book_json)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (session_id, timestamp_ms) DO UPDATE SET book_json = EXCLUDED.book_json`,
		sessionID, snap.TimestampMs, body,
	)
	return err
}

func (p *Postgres) AtOrBefore(sessionID string, timestampMs int64) (aggregate.Snapshot, bool, error) {
	row := p.db.QueryRow(
		`SELECT book_json FROM book_snapshots
		 WHERE session_id = $1 AND timestamp_ms <= $2
		 ORDER BY timestamp_ms DESC LIMIT 1`,
		sessionID, timestampMs,
	)
	var body []byte
	if err := row.Scan(&body); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return aggregate.Snapshot{}, false, nil
		}
		return aggregate.Snapshot{}, false, err
	}
	var snap aggregate.Snapshot
	if err := goccyjson.Unmarshal(body, &snap); err != nil {
		return aggregate.Snapshot{}, false, fmt.Errorf("store: unmarshal snapshot: %w", err)
	}
	return snap, true, nil
}

func (p *Postgres) Put(sess model.Session) error {
	var completedAt sql.NullInt64
	if sess.CompletedAt != nil {
		completedAt = sql.NullInt64{Int64: *sess.CompletedAt, Valid: true}
	}
	_, err := p.db.Exec(
		`INSERT INTO sessions (session_id, name, status, created_at_ms, completed_at, event_count, trade_count, final_price, error)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 ON CONFLICT (session_id) DO UPDATE SET
		   status = EXCLUDED.status, completed_at = EXCLUDED.completed_at,
		   event_count = EXCLUDED.event_count, trade_count = EXCLUDED.trade_count,
		   final_price = EXCLUDED.final_price, error = EXCLUDED.error`,
		sess.SessionID, sess.Name, string(sess.Status), sess.CreatedAtMs, completedAt,
		sess.EventCount, sess.TradeCount, sess.FinalPrice.String(), sess.Error,
	)
	return err
}

func (p *Postgres) Get(sessionID string) (model.Session, bool, error) {
	row := p.db.QueryRow(
		`SELECT session_id, name, status, created_at_ms, completed_at, event_count, trade_count, final_price, error
		 FROM sessions WHERE session_id = $1`,
		sessionID,
	)
	var (
		sess        model.Session
		status      string
		completedAt sql.NullInt64
		finalPrice  string
	)
	if err := row.Scan(&sess.SessionID, &sess.Name, &status, &sess.CreatedAtMs, &completedAt,
		&sess.EventCount, &sess.TradeCount, &finalPrice, &sess.Error); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Session{}, false, nil
		}
		return model.Session{}, false, err
	}
	sess.Status = model.SessionStatus(status)
	if completedAt.Valid {
		v := completedAt.Int64
		sess.CompletedAt = &v
	}
	var err error
	if sess.FinalPrice, err = decimal.NewFromString(finalPrice); err != nil {
		return model.Session{}, false, err
	}
	return sess, true, nil
}

// UpdateSession satisfies runner.SessionUpdater by delegating to Put.
func (p *Postgres) UpdateSession(session model.Session) error {
	return p.Put(session)
}
