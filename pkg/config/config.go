// Package config loads the process-wide configuration keys from §6.5:
// hard defaults, then a YAML file, then environment variable
// overrides, in that order of increasing precedence.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/cuemby/fleet/pkg/types"
)

// Config holds every tunable named in §6.5.
type Config struct {
	SchedulerStrategy    string `yaml:"scheduler_strategy"`
	TimeTickIntervalS    int    `yaml:"time_tick_interval_s"`
	ReconcileIntervalS   int    `yaml:"reconcile_interval_s"`
	HeartbeatIntervalS   int    `yaml:"heartbeat_interval_s"`
	NodeStaleThresholdS  int    `yaml:"node_stale_threshold_s"`
	OverloadThresholdPct int    `yaml:"overload_threshold_pct"`
	ReactorDebounceS     int    `yaml:"reactor_debounce_s"`
}

// Defaults returns the hard defaults from §6.5.
func Defaults() Config {
	return Config{
		SchedulerStrategy:    "spread",
		TimeTickIntervalS:    5,
		ReconcileIntervalS:   30,
		HeartbeatIntervalS:   5,
		NodeStaleThresholdS:  30,
		OverloadThresholdPct: 90,
		ReactorDebounceS:     30,
	}
}

// envOverrides maps each key to the FLEET_-prefixed environment
// variable that overrides it.
var envOverrides = map[string]string{
	"scheduler_strategy":     "FLEET_SCHEDULER_STRATEGY",
	"time_tick_interval_s":   "FLEET_TIME_TICK_INTERVAL_S",
	"reconcile_interval_s":   "FLEET_RECONCILE_INTERVAL_S",
	"heartbeat_interval_s":   "FLEET_HEARTBEAT_INTERVAL_S",
	"node_stale_threshold_s": "FLEET_NODE_STALE_THRESHOLD_S",
	"overload_threshold_pct": "FLEET_OVERLOAD_THRESHOLD_PCT",
	"reactor_debounce_s":     "FLEET_REACTOR_DEBOUNCE_S",
}

// Load reads path (if non-empty) over the hard defaults, applies
// environment overrides, then validates the result. An empty path
// loads defaults plus environment overrides only.
func Load(path string) (Config, error) {
	cfg := Defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	if err := applyEnvOverrides(&cfg); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) error {
	if v, ok := os.LookupEnv(envOverrides["scheduler_strategy"]); ok {
		cfg.SchedulerStrategy = v
	}

	intFields := []struct {
		key string
		dst *int
	}{
		{"time_tick_interval_s", &cfg.TimeTickIntervalS},
		{"reconcile_interval_s", &cfg.ReconcileIntervalS},
		{"heartbeat_interval_s", &cfg.HeartbeatIntervalS},
		{"node_stale_threshold_s", &cfg.NodeStaleThresholdS},
		{"overload_threshold_pct", &cfg.OverloadThresholdPct},
		{"reactor_debounce_s", &cfg.ReactorDebounceS},
	}
	for _, f := range intFields {
		v, ok := os.LookupEnv(envOverrides[f.key])
		if !ok {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: %s: invalid integer %q", envOverrides[f.key], v)
		}
		*f.dst = n
	}
	return nil
}

// Validate enforces the value constraints from §6.5.
func (c Config) Validate() error {
	switch types.Strategy(c.SchedulerStrategy) {
	case types.StrategySpread, types.StrategyPack, types.StrategyRandom:
	default:
		return fmt.Errorf("config: scheduler_strategy must be spread, pack, or random, got %q", c.SchedulerStrategy)
	}
	if c.TimeTickIntervalS < 1 {
		return fmt.Errorf("config: time_tick_interval_s must be >= 1, got %d", c.TimeTickIntervalS)
	}
	if c.ReconcileIntervalS < c.TimeTickIntervalS {
		return fmt.Errorf("config: reconcile_interval_s (%d) must be >= time_tick_interval_s (%d)", c.ReconcileIntervalS, c.TimeTickIntervalS)
	}
	if c.HeartbeatIntervalS < 1 {
		return fmt.Errorf("config: heartbeat_interval_s must be >= 1, got %d", c.HeartbeatIntervalS)
	}
	if c.NodeStaleThresholdS < 1 {
		return fmt.Errorf("config: node_stale_threshold_s must be >= 1, got %d", c.NodeStaleThresholdS)
	}
	if c.OverloadThresholdPct < 0 || c.OverloadThresholdPct > 100 {
		return fmt.Errorf("config: overload_threshold_pct must be 0..100, got %d", c.OverloadThresholdPct)
	}
	if c.ReactorDebounceS < 1 {
		return fmt.Errorf("config: reactor_debounce_s must be >= 1, got %d", c.ReactorDebounceS)
	}
	return nil
}

// Strategy returns the configured placement strategy as a types.Strategy.
func (c Config) Strategy() types.Strategy {
	return types.Strategy(c.SchedulerStrategy)
}

func (c Config) TimeTickInterval() time.Duration {
	return time.Duration(c.TimeTickIntervalS) * time.Second
}

func (c Config) ReconcileInterval() time.Duration {
	return time.Duration(c.ReconcileIntervalS) * time.Second
}

func (c Config) HeartbeatInterval() time.Duration {
	return time.Duration(c.HeartbeatIntervalS) * time.Second
}

func (c Config) NodeStaleThreshold() time.Duration {
	return time.Duration(c.NodeStaleThresholdS) * time.Second
}

func (c Config) ReactorDebounce() time.Duration {
	return time.Duration(c.ReactorDebounceS) * time.Second
}
