package host

import (
	"os"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketsim/internal/model"
	"marketsim/internal/store"
)

func testSessionConfig(sessionID string) model.SessionConfig {
	return model.SessionConfig{
		SessionID:        sessionID,
		Seed:             1,
		DurationMs:       200,
		TickSize:         decimal.NewFromFloat(0.01),
		InitialPrice:     100,
		TickIntervalMs:   50,
		SnapshotInterval: 100,
		OHLCVResolution:  100,
		SnapshotDepth:    5,
		Agents: []model.AgentConfig{
			{ID: "noise-1", Archetype: "noise", Params: map[string]float64{"orderProbability": 0.5}},
		},
	}
}

func newTestHost(t *testing.T) *Host {
	t.Helper()
	dir := t.TempDir()
	return New(Options{
		MaxConcurrent: 2,
		TapeDir:       dir,
		Stores:        store.NewMemory(),
	})
}

func TestStartSessionRunsToCompletion(t *testing.T) {
	h := newTestHost(t)
	cfg := testSessionConfig("host-1")
	_, err := h.StartSession(cfg)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		sess, ok, err := h.QuerySession("host-1")
		return err == nil && ok && sess.Status.Terminal()
	}, 2*time.Second, 10*time.Millisecond)

	sess, ok, err := h.QuerySession("host-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, model.SessionCompleted, sess.Status)
}

func TestStartSessionAssignsIDWhenEmpty(t *testing.T) {
	h := newTestHost(t)
	cfg := testSessionConfig("")
	id, err := h.StartSession(cfg)
	require.NoError(t, err)
	assert.NotEmpty(t, id)
	h.Shutdown()
}

func TestStartSessionRejectsDuplicateID(t *testing.T) {
	h := newTestHost(t)
	cfg := testSessionConfig("host-dup")
	_, err := h.StartSession(cfg)
	require.NoError(t, err)
	_, err = h.StartSession(cfg)
	assert.ErrorIs(t, err, ErrSessionExists)
	h.Shutdown()
}

func TestStartSessionRejectsWhenPoolFull(t *testing.T) {
	h := New(Options{MaxConcurrent: 1, TapeDir: t.TempDir(), Stores: store.NewMemory()})
	long := testSessionConfig("host-long")
	long.DurationMs = 5000
	_, err := h.StartSession(long)
	require.NoError(t, err)

	_, err = h.StartSession(testSessionConfig("host-overflow"))
	assert.ErrorIs(t, err, ErrPoolFull)
	h.Shutdown()
}

func TestCancelSessionStopsRunningSession(t *testing.T) {
	h := newTestHost(t)
	cfg := testSessionConfig("host-cancel")
	cfg.DurationMs = 10_000
	_, err := h.StartSession(cfg)
	require.NoError(t, err)

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, h.CancelSession("host-cancel"))

	require.Eventually(t, func() bool {
		sess, ok, err := h.QuerySession("host-cancel")
		return err == nil && ok && sess.Status.Terminal()
	}, 2*time.Second, 10*time.Millisecond)
}

func TestCancelSessionUnknownIDFails(t *testing.T) {
	h := newTestHost(t)
	err := h.CancelSession("does-not-exist")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestShutdownStopsAllSessions(t *testing.T) {
	dir := t.TempDir()
	h := New(Options{MaxConcurrent: 2, TapeDir: dir, Stores: store.NewMemory()})
	cfg1 := testSessionConfig("host-s1")
	cfg1.DurationMs = 10_000
	cfg2 := testSessionConfig("host-s2")
	cfg2.DurationMs = 10_000
	_, err := h.StartSession(cfg1)
	require.NoError(t, err)
	_, err = h.StartSession(cfg2)
	require.NoError(t, err)

	time.Sleep(20 * time.Millisecond)
	h.Shutdown()

	sess1, _, _ := h.QuerySession("host-s1")
	sess2, _, _ := h.QuerySession("host-s2")
	assert.True(t, sess1.Status.Terminal())
	assert.True(t, sess2.Status.Terminal())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.NotEmpty(t, entries)
}
