// Package tape is the append-only event log: every order placement,
// cancellation, trade, book snapshot, news release, and agent thought is
// serialized as one line of JSON, in the order it happened, and never
// rewritten. saiputravu-Exchange holds no tape of its own, so this package
// borrows only its habit of a single synchronous writer behind a narrow
// interface, plus goccy/go-json as the encoder the rest of this module
// already uses for anything wire- or disk-facing.
package tape

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"sync"

	json "github.com/goccy/go-json"

	"marketsim/internal/model"
)

// ErrTimestampRegressed signals a caller tried to append an event timestamped
// earlier than the last one written, which would violate the tape's
// non-decreasing-timestamp invariant.
var ErrTimestampRegressed = errors.New("tape: event timestamp precedes last written event")

// Indexer receives one call per appended event, after the line has been
// written to the underlying buffer, so downstream consumers (internal/store)
// can build a byte-offset index for random access into the tape file.
type Indexer func(id string, eventType EventType, timestampMs int64, sequence uint64, offset int64) error

// Writer is the single append point for a session's tape file. Every
// exported method takes the writer's mutex, so calls from several
// goroutines are serialized; the runner drives it from its single tick loop.
type Writer struct {
	mu            sync.Mutex
	sessionID     string
	file          *os.File
	buf           *bufio.Writer
	offset        int64
	seq           uint64
	lastTimestamp int64
	indexer       Indexer
}

// NewWriter creates (or truncates) the tape file at path for sessionID.
// indexer may be nil if no index is needed.
func NewWriter(path string, sessionID string, indexer Indexer) (*Writer, error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("tape: open %s: %w", path, err)
	}
	return &Writer{
		sessionID: sessionID,
		file:      f,
		buf:       bufio.NewWriter(f),
		indexer:   indexer,
	}, nil
}

// Close flushes buffered bytes, fsyncs the file, and closes it. The tape is
// the durable record of a session; losing the tail of it to a crash between
// write and sync would be worse than the extra syscall.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.buf.Flush(); err != nil {
		return fmt.Errorf("tape: flush: %w", err)
	}
	if err := w.file.Sync(); err != nil {
		return fmt.Errorf("tape: sync: %w", err)
	}
	return w.file.Close()
}

func (w *Writer) nextID() string {
	return fmt.Sprintf("EVT-%06d", w.seq)
}

// append serializes one flat JSON object (base fields merged with payload)
// and writes it as a single line. Caller must hold w.mu.
func (w *Writer) append(eventType EventType, timestampMs int64, payload map[string]interface{}) (Record, error) {
	if timestampMs < w.lastTimestamp {
		return Record{}, ErrTimestampRegressed
	}
	w.seq++
	id := w.nextID()

	obj := make(map[string]interface{}, len(payload)+5)
	for k, v := range payload {
		obj[k] = v
	}
	obj["id"] = id
	obj["sessionId"] = w.sessionID
	obj["type"] = eventType
	obj["timestamp"] = timestampMs
	obj["sequence"] = w.seq

	line, err := json.Marshal(obj)
	if err != nil {
		return Record{}, fmt.Errorf("tape: marshal %s event: %w", eventType, err)
	}

	startOffset := w.offset
	n, err := w.buf.Write(line)
	if err != nil {
		return Record{}, fmt.Errorf("tape: write %s event: %w", eventType, err)
	}
	if err := w.buf.WriteByte('\n'); err != nil {
		return Record{}, fmt.Errorf("tape: write newline: %w", err)
	}
	w.offset += int64(n) + 1
	w.lastTimestamp = timestampMs

	if w.indexer != nil {
		if err := w.indexer(id, eventType, timestampMs, w.seq, startOffset); err != nil {
			return Record{}, fmt.Errorf("tape: index %s event: %w", eventType, err)
		}
	}

	return Record{ID: id, SessionID: w.sessionID, Type: eventType, TimestampMs: timestampMs, Sequence: w.seq, Payload: payload}, nil
}

// AppendOrderPlaced records an order entering the book, before any of its
// resulting trades: placement precedes fills.
func (w *Writer) AppendOrderPlaced(order model.Order, timestampMs int64) (Record, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.append(EventOrderPlaced, timestampMs, map[string]interface{}{
		"order": order,
	})
}

// AppendOrderCancelled records a successful cancellation.
func (w *Writer) AppendOrderCancelled(order model.Order, timestampMs int64) (Record, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.append(EventOrderCancelled, timestampMs, map[string]interface{}{
		"order": order,
	})
}

// AppendTrade records one executed trade.
func (w *Writer) AppendTrade(trade model.Trade, timestampMs int64) (Record, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.append(EventTrade, timestampMs, map[string]interface{}{
		"trade": trade,
	})
}

// AppendBookSnapshot records a point-in-time view of the book.
func (w *Writer) AppendBookSnapshot(snapshot interface{}, timestampMs int64) (Record, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.append(EventBookSnapshot, timestampMs, map[string]interface{}{
		"snapshot": snapshot,
	})
}

// AppendNews records a news release. It accepts only the redacted
// PersistedNewsEvent type, so the tape can never carry the Sentiment field
// a model.NewsEvent holds in memory; the compiler, not a runtime check,
// enforces this.
func (w *Writer) AppendNews(news model.PersistedNewsEvent, timestampMs int64) (Record, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.append(EventNews, timestampMs, map[string]interface{}{
		"news": news,
	})
}

// AppendAgentThought records an agent's optional free-text rationale for an
// action, when one was produced. A thought is advisory and never drives
// matching.
func (w *Writer) AppendAgentThought(agentID, thought string, timestampMs int64) (Record, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.append(EventAgentThought, timestampMs, map[string]interface{}{
		"agentId": agentID,
		"thought": thought,
	})
}

// Sequence returns the number of events appended so far.
func (w *Writer) Sequence() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.seq
}
