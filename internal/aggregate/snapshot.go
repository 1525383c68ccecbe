package aggregate

// SnapshotScheduler decides when the Runner should capture a book snapshot:
// it fires once now minus the last snapshot's timestamp reaches the
// configured interval.
type SnapshotScheduler struct {
	interval int64
	last     int64
	started  bool
}

// NewSnapshotScheduler constructs a scheduler with the given interval (ms).
func NewSnapshotScheduler(interval int64) *SnapshotScheduler {
	return &SnapshotScheduler{interval: interval}
}

// Due reports whether a snapshot should be captured at now, and if so
// records now as the new lastSnapshotTime. The very first call is always
// due, establishing the baseline, unless Prime has already been called.
func (s *SnapshotScheduler) Due(now int64) bool {
	if !s.started {
		s.started = true
		s.last = now
		return true
	}
	if now-s.last >= s.interval {
		s.last = now
		return true
	}
	return false
}

// Prime establishes now as the baseline lastSnapshotTime without reporting
// a snapshot as due, for callers that capture their own snapshot (e.g. a
// seeded book) outside of Due's normal gating. It prevents the first Due
// call at the same timestamp from firing a redundant snapshot.
func (s *SnapshotScheduler) Prime(now int64) {
	s.started = true
	s.last = now
}
