// Package config defines the configuration a session is run from. Config
// is loaded from a YAML file with overrides from SIM_*-prefixed environment
// variables, mirroring 0xtitan6-polymarket-mm's internal/config/config.go
// Load/Validate split almost verbatim, retargeted at this simulator's
// fields.
package config

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	"marketsim/internal/model"
)

// Config is the top-level configuration for one simulation session.
// Maps directly onto the YAML file structure.
type Config struct {
	SessionID string       `mapstructure:"session_id"`
	Name      string       `mapstructure:"name"`
	Session   SessionTuning `mapstructure:"session"`
	Agents    []AgentSpec  `mapstructure:"agents"`
	News      []NewsItem   `mapstructure:"news_schedule"`
	Storyline *Storyline   `mapstructure:"storyline"`
	Logging   LoggingConfig `mapstructure:"logging"`
	Store     StoreConfig  `mapstructure:"store"`
	Metrics   MetricsConfig `mapstructure:"metrics"`
}

// SessionTuning holds the scalar knobs the configuration table lists.
type SessionTuning struct {
	Seed             uint64  `mapstructure:"seed"`
	DurationMs       int64   `mapstructure:"duration_ms"`
	TickSize         float64 `mapstructure:"tick_size"`
	InitialPrice     float64 `mapstructure:"initial_price"`
	TickIntervalMs   int64   `mapstructure:"tick_interval_ms"`
	SnapshotInterval int64   `mapstructure:"snapshot_interval_ms"`
	OHLCVResolution  int64   `mapstructure:"ohlcv_resolution_ms"`
	SnapshotDepth    int     `mapstructure:"snapshot_depth"`
}

// AgentSpec is one roster entry.
type AgentSpec struct {
	ID        string             `mapstructure:"id"`
	Name      string             `mapstructure:"name"`
	Archetype string             `mapstructure:"archetype"`
	Params    map[string]float64 `mapstructure:"params"`
}

// NewsItem is one scheduled news release.
type NewsItem struct {
	TimestampMs int64   `mapstructure:"timestamp_ms"`
	Headline    string  `mapstructure:"headline"`
	Content     string  `mapstructure:"content"`
	Sentiment   float64 `mapstructure:"sentiment"`
	Magnitude   string  `mapstructure:"magnitude"`
	Source      string  `mapstructure:"source"`
}

// Storyline overrides InitialPrice, DurationMs, and News when present.
type Storyline struct {
	InitialPrice float64    `mapstructure:"initial_price"`
	DurationMs   int64      `mapstructure:"duration_ms"`
	News         []NewsItem `mapstructure:"news"`
}

// LoggingConfig controls the zerolog console/json writer (ambient concern,
// not part of the simulation core itself).
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// StoreConfig selects and configures the persistence backend.
type StoreConfig struct {
	Driver string `mapstructure:"driver"` // "memory" or "postgres"
	DSN    string `mapstructure:"dsn"`
	TapeDir string `mapstructure:"tape_dir"`
}

// MetricsConfig controls the Prometheus exposition endpoint.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
}

// Load reads config from a YAML file with SIM_* environment overrides.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("SIM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("session.tick_interval_ms", 100)
	v.SetDefault("session.snapshot_interval_ms", 1000)
	v.SetDefault("session.ohlcv_resolution_ms", 1000)
	v.SetDefault("session.snapshot_depth", 10)
	v.SetDefault("store.driver", "memory")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
}

// Validate checks the fields the Runner requires up front, so
// configuration errors are detected before construction rather than at
// run time. It duplicates a subset of runner.New's own checks
// deliberately: a config file can be validated by a host before it ever
// reaches a Runner.
func (c *Config) Validate() error {
	if len(c.Agents) == 0 {
		return fmt.Errorf("config: agents must not be empty")
	}
	if c.Session.TickSize <= 0 {
		return fmt.Errorf("config: session.tick_size must be > 0")
	}
	if c.Session.DurationMs <= 0 && c.Storyline == nil {
		return fmt.Errorf("config: session.duration_ms must be > 0")
	}
	for _, a := range c.Agents {
		if a.ID == "" {
			return fmt.Errorf("config: agent entries must have an id")
		}
		switch a.Archetype {
		case "noise", "market_maker", "momentum", "informed", "fundamentals":
		default:
			return fmt.Errorf("config: agent %s: unknown archetype %q", a.ID, a.Archetype)
		}
	}
	return nil
}

// ToSessionConfig converts the loaded configuration into the plain value
// the core (internal/runner) consumes, independent of how it was loaded.
func (c *Config) ToSessionConfig() model.SessionConfig {
	agents := make([]model.AgentConfig, len(c.Agents))
	for i, a := range c.Agents {
		agents[i] = model.AgentConfig{ID: a.ID, Name: a.Name, Archetype: a.Archetype, Params: a.Params}
	}

	news := make([]model.NewsScheduleItem, len(c.News))
	for i, n := range c.News {
		news[i] = toNewsScheduleItem(n)
	}

	var storyline *model.StorylineConfig
	if c.Storyline != nil {
		storylineNews := make([]model.NewsScheduleItem, len(c.Storyline.News))
		for i, n := range c.Storyline.News {
			storylineNews[i] = toNewsScheduleItem(n)
		}
		storyline = &model.StorylineConfig{
			InitialPrice: c.Storyline.InitialPrice,
			DurationMs:   c.Storyline.DurationMs,
			News:         storylineNews,
		}
	}

	return model.SessionConfig{
		SessionID:        c.SessionID,
		Name:             c.Name,
		Seed:             c.Session.Seed,
		DurationMs:       c.Session.DurationMs,
		TickSize:         tickSizeDecimal(c.Session.TickSize),
		InitialPrice:     c.Session.InitialPrice,
		TickIntervalMs:   c.Session.TickIntervalMs,
		SnapshotInterval: c.Session.SnapshotInterval,
		OHLCVResolution:  c.Session.OHLCVResolution,
		SnapshotDepth:    c.Session.SnapshotDepth,
		Agents:           agents,
		NewsSchedule:     news,
		Storyline:        storyline,
	}
}

func tickSizeDecimal(tickSize float64) decimal.Decimal {
	return decimal.NewFromFloat(tickSize)
}

func toNewsScheduleItem(n NewsItem) model.NewsScheduleItem {
	return model.NewsScheduleItem{
		TimestampMs: n.TimestampMs,
		Headline:    n.Headline,
		Content:     n.Content,
		Sentiment:   n.Sentiment,
		Magnitude:   model.NewsMagnitude(n.Magnitude),
		Source:      n.Source,
	}
}
