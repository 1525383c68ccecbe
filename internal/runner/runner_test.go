package runner

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketsim/internal/model"
)

func testConfig(sessionID string) model.SessionConfig {
	return model.SessionConfig{
		SessionID:        sessionID,
		Name:             "test",
		Seed:             42,
		DurationMs:       1000,
		TickSize:         decimal.NewFromInt(1),
		InitialPrice:     100,
		TickIntervalMs:   100,
		SnapshotInterval: 500,
		OHLCVResolution:  1000,
		SnapshotDepth:    5,
		Agents: []model.AgentConfig{
			{ID: "noise-1", Name: "noise-1", Archetype: "noise", Params: map[string]float64{
				"orderProbability": 0.8, "priceRange": 2, "orderSize": 5,
			}},
			{ID: "mm-1", Name: "mm-1", Archetype: "market_maker", Params: map[string]float64{
				"inventorySkew": 0.01, "maxPosition": 500, "orderSize": 20,
			}},
		},
	}
}

func TestNewRejectsEmptyRoster(t *testing.T) {
	cfg := testConfig("s1")
	cfg.Agents = nil
	_, err := New(cfg, Options{})
	assert.Error(t, err)
}

func TestNewRejectsUnknownArchetype(t *testing.T) {
	cfg := testConfig("s1")
	cfg.Agents = []model.AgentConfig{{ID: "x", Archetype: "does-not-exist"}}
	_, err := New(cfg, Options{})
	assert.Error(t, err)
}

func TestNewRejectsNonPositiveTickSize(t *testing.T) {
	cfg := testConfig("s1")
	cfg.TickSize = decimal.Zero
	_, err := New(cfg, Options{})
	assert.Error(t, err)
}

func TestSeedBookPopulatesFiveLevelsEachSide(t *testing.T) {
	cfg := testConfig("s1")
	r, err := New(cfg, Options{})
	require.NoError(t, err)

	bids := r.engine.Book().Bids()
	asks := r.engine.Book().Asks()
	assert.Len(t, bids, 5)
	assert.Len(t, asks, 5)
	for _, lvl := range bids {
		assert.Equal(t, model.SeedAgentID, lvl.Orders[0].AgentID)
	}
}

func TestRunCompletesAndWritesTape(t *testing.T) {
	dir := t.TempDir()
	tapePath := filepath.Join(dir, "s1.jsonl")

	cfg := testConfig("s1")
	r, err := New(cfg, Options{TapePath: tapePath})
	require.NoError(t, err)

	err = r.Run(nil)
	require.NoError(t, err)
	assert.Equal(t, model.SessionCompleted, r.session.Status)
	assert.Greater(t, r.session.EventCount, uint64(0))

	info, statErr := os.Stat(tapePath)
	require.NoError(t, statErr)
	assert.Greater(t, info.Size(), int64(0))
}

func TestRunIsDeterministicAcrossIdenticalConfigs(t *testing.T) {
	dir := t.TempDir()

	run := func(name string) []byte {
		path := filepath.Join(dir, name+".jsonl")
		cfg := testConfig("det-test")
		r, err := New(cfg, Options{TapePath: path})
		require.NoError(t, err)
		require.NoError(t, r.Run(nil))
		data, err := os.ReadFile(path)
		require.NoError(t, err)
		return data
	}

	a := run("run-a")
	b := run("run-b")
	assert.Equal(t, string(a), string(b), "identical config must produce byte-identical tapes")
}

func TestCancellationTransitionsToError(t *testing.T) {
	cfg := testConfig("s1")
	cfg.DurationMs = 100000
	r, err := New(cfg, Options{})
	require.NoError(t, err)

	cancel := make(chan struct{})
	close(cancel)

	err = r.Run(cancel)
	assert.Error(t, err)
	assert.Equal(t, model.SessionError, r.session.Status)
}
