package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleYAML = `
session_id: sess-1
name: demo
session:
  seed: 7
  duration_ms: 5000
  tick_size: 0.5
  initial_price: 100
agents:
  - id: noise-1
    name: noise-1
    archetype: noise
    params:
      orderProbability: 0.3
news_schedule:
  - timestamp_ms: 1000
    headline: "Widget co beats estimates"
    sentiment: 0.6
    magnitude: medium
`

func writeSample(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadAppliesDefaultsAndFields(t *testing.T) {
	path := writeSample(t, sampleYAML)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "sess-1", cfg.SessionID)
	assert.EqualValues(t, 7, cfg.Session.Seed)
	assert.EqualValues(t, 100, cfg.Session.TickIntervalMs)
	assert.EqualValues(t, 1000, cfg.Session.SnapshotInterval)
	require.Len(t, cfg.Agents, 1)
	assert.Equal(t, "noise", cfg.Agents[0].Archetype)
	require.Len(t, cfg.News, 1)
	assert.Equal(t, "medium", cfg.News[0].Magnitude)
}

func TestValidateRejectsEmptyRoster(t *testing.T) {
	cfg := &Config{Session: SessionTuning{TickSize: 1, DurationMs: 1000}}
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsUnknownArchetype(t *testing.T) {
	cfg := &Config{
		Session: SessionTuning{TickSize: 1, DurationMs: 1000},
		Agents:  []AgentSpec{{ID: "a", Archetype: "nonsense"}},
	}
	assert.Error(t, cfg.Validate())
}

func TestValidateAcceptsWellFormedConfig(t *testing.T) {
	cfg := &Config{
		Session: SessionTuning{TickSize: 1, DurationMs: 1000},
		Agents:  []AgentSpec{{ID: "a", Archetype: "momentum"}},
	}
	assert.NoError(t, cfg.Validate())
}

func TestToSessionConfigConvertsAgentsAndNews(t *testing.T) {
	path := writeSample(t, sampleYAML)
	cfg, err := Load(path)
	require.NoError(t, err)

	sc := cfg.ToSessionConfig()
	assert.Equal(t, "sess-1", sc.SessionID)
	require.Len(t, sc.Agents, 1)
	assert.Equal(t, "noise", sc.Agents[0].Archetype)
	require.Len(t, sc.NewsSchedule, 1)
	assert.Equal(t, "Widget co beats estimates", sc.NewsSchedule[0].Headline)
	assert.True(t, sc.TickSize.Equal(sc.TickSize)) // sanity: decimal conversion didn't panic
}
