// Package config exposes strongly typed application configuration structs loaded from YAML.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// App captures process-wide runtime settings such as name, metrics, and logging levels.
type App struct {
	Name        string `yaml:"name"`
	Env         string `yaml:"env"`
	MetricsAddr string `yaml:"metrics_addr"`
	LogLevel    string `yaml:"log_level"`
}

// Venue describes how to reach one trading venue.
type Venue struct {
	Name      string  `yaml:"name"`
	BaseURL   string  `yaml:"base_url"`
	WSURL     string  `yaml:"ws_url"`
	APIKeyEnv string  `yaml:"api_key_env"`
	SizeStep  float64 `yaml:"size_step"`
}

// Strategy groups the spread-statistics and signal-debounce knobs.
type Strategy struct {
	Token             string  `yaml:"token"`
	Window            int     `yaml:"window"`
	Decay             float64 `yaml:"decay"`
	EntryThreshold    float64 `yaml:"entry_threshold"`
	ExitThreshold     float64 `yaml:"exit_threshold"`
	StopLossThreshold float64 `yaml:"stop_loss_threshold"`
	MinSpreadFilter   float64 `yaml:"min_spread_filter"`
	MinSignalSecs     int     `yaml:"min_signal_secs"`
	MaxHoldSecs       int     `yaml:"max_hold_secs"`
	TickIntervalMs    int     `yaml:"tick_interval_ms"`
	WarmupTicks       int     `yaml:"warmup_ticks"`
	GraceTicks        int     `yaml:"grace_ticks"`
	ReconcileTicks    int     `yaml:"reconcile_ticks"`
}

// Execution bounds order placement.
type Execution struct {
	Margin              float64 `yaml:"margin"`
	Leverage            float64 `yaml:"leverage"`
	LegTimeoutMs        int     `yaml:"leg_timeout_ms"`
	MaxNotionalPerTrade float64 `yaml:"max_notional_per_trade"`
}

// Storage points at the on-disk trade database and event stream.
type Storage struct {
	TradesPath string `yaml:"trades_path"`
	EventsPath string `yaml:"events_path"`
}

// Config collects every configuration leaf for easy marshaling from YAML.
type Config struct {
	App       App       `yaml:"app"`
	VenueA    Venue     `yaml:"venue_a"`
	VenueB    Venue     `yaml:"venue_b"`
	Strategy  Strategy  `yaml:"strategy"`
	Execution Execution `yaml:"execution"`
	Storage   Storage   `yaml:"storage"`
}

// TickInterval returns the tick cadence, defaulting to one second.
func (s Strategy) TickInterval() time.Duration {
	if s.TickIntervalMs <= 0 {
		return time.Second
	}
	return time.Duration(s.TickIntervalMs) * time.Millisecond
}

// MinSignalDuration returns the debounce persistence requirement.
func (s Strategy) MinSignalDuration() time.Duration {
	return time.Duration(s.MinSignalSecs) * time.Second
}

// MaxHold returns the hard position age limit, zero meaning disabled.
func (s Strategy) MaxHold() time.Duration {
	return time.Duration(s.MaxHoldSecs) * time.Second
}

// LegTimeout returns the per-leg order deadline, defaulting to ten seconds.
func (e Execution) LegTimeout() time.Duration {
	if e.LegTimeoutMs <= 0 {
		return 10 * time.Second
	}
	return time.Duration(e.LegTimeoutMs) * time.Millisecond
}

// Load reads a YAML file from disk and hydrates a Config struct.
func Load(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	var config Config
	if err := yaml.NewDecoder(file).Decode(&config); err != nil {
		return nil, fmt.Errorf("decode yaml: %w", err)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// Validate rejects configurations that would make the coordinator
// misbehave quietly. It runs once at startup; a bad value is fatal.
func (c *Config) Validate() error {
	if c.Strategy.Token == "" {
		return fmt.Errorf("config: strategy.token is required")
	}
	if c.VenueA.Name == "" || c.VenueB.Name == "" {
		return fmt.Errorf("config: both venue names are required")
	}
	if c.VenueA.Name == c.VenueB.Name {
		return fmt.Errorf("config: venues must differ, both are %q", c.VenueA.Name)
	}
	if c.Strategy.Decay <= 0 || c.Strategy.Decay > 1 {
		return fmt.Errorf("config: strategy.decay must be in (0,1], got %v", c.Strategy.Decay)
	}
	if c.Strategy.Window < 2 {
		return fmt.Errorf("config: strategy.window must be at least 2, got %d", c.Strategy.Window)
	}
	if c.Strategy.ExitThreshold >= c.Strategy.EntryThreshold {
		return fmt.Errorf("config: exit_threshold %v must be below entry_threshold %v",
			c.Strategy.ExitThreshold, c.Strategy.EntryThreshold)
	}
	if c.Strategy.StopLossThreshold <= c.Strategy.EntryThreshold {
		return fmt.Errorf("config: stop_loss_threshold %v must exceed entry_threshold %v",
			c.Strategy.StopLossThreshold, c.Strategy.EntryThreshold)
	}
	if c.Execution.Margin <= 0 || c.Execution.Leverage <= 0 {
		return fmt.Errorf("config: execution.margin and execution.leverage must be positive")
	}
	return nil
}

// Save persists a Config struct to disk as YAML.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("nil config")
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal yaml: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}
