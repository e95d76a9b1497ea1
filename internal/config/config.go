// Package config loads roboswarm configuration from .roboswarm/config.json,
// applying defaults for missing values and ROBOSWARM_* environment overrides.
// The dispatch tables (signal mapping, signal priority, capacity ceilings)
// are configuration data: loaded, never computed.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// LoggingConfig mirrors the logging package's file-based debug logging knobs.
type LoggingConfig struct {
	DebugMode  bool            `json:"debug_mode"`
	Categories map[string]bool `json:"categories,omitempty"`
	Level      string          `json:"level,omitempty"`
	JSONFormat bool            `json:"json_format,omitempty"`
}

// DetectionConfig tunes the signal detection engine.
type DetectionConfig struct {
	CacheTTLSeconds int `json:"cache_ttl_seconds"` // default 60
	CacheMaxSize    int `json:"cache_max_size"`    // default 10000
	DebounceMs      int `json:"debounce_ms"`       // default 50
}

// StreamConfig tunes the event buffer/flusher.
type StreamConfig struct {
	MaxBufferSize      int `json:"max_buffer_size"`      // default 1000
	FlushIntervalMs    int `json:"flush_interval_ms"`    // default 100
	MaxConcurrency     int `json:"max_concurrency"`      // default 10
	DedupWindowSeconds int `json:"dedup_window_seconds"` // default 5
}

// DispatchConfig carries the static dispatch tables.
type DispatchConfig struct {
	// SignalAgents maps bracketed marker codes to candidate agent types in
	// preference order, e.g. "[bb]" -> ["robo-developer","robo-devops-sre"].
	SignalAgents map[string][]string `json:"signal_agents,omitempty"`
	// SignalPriority maps bare codes to dispatch priority, e.g. "bb" -> 9.
	SignalPriority map[string]int `json:"signal_priority,omitempty"`
	// Capacity is the per-agent-type concurrency ceiling.
	Capacity map[string]int `json:"capacity,omitempty"`
}

// SpawnConfig tunes the batch spawn dispatcher.
type SpawnConfig struct {
	MaxConcurrentSpawns  int  `json:"max_concurrent_spawns"`  // default 5
	HealthTimeoutSeconds int  `json:"health_timeout_seconds"` // default 60
	SkipHealthWait       bool `json:"skip_health_wait"`
}

// WatchConfig tunes the filesystem source watcher.
type WatchConfig struct {
	Roots      []string `json:"roots,omitempty"`      // directories to monitor
	Extensions []string `json:"extensions,omitempty"` // e.g. [".go",".md"]
	DebounceMs int      `json:"debounce_ms"`          // default 500
}

// Config is the full roboswarm configuration.
type Config struct {
	Logging  LoggingConfig   `json:"logging"`
	Detect   DetectionConfig `json:"detect"`
	Stream   StreamConfig    `json:"stream"`
	Dispatch DispatchConfig  `json:"dispatch"`
	Spawn    SpawnConfig     `json:"spawn"`
	Watch    WatchConfig     `json:"watch"`
}

// Default returns the compiled-in configuration.
func Default() *Config {
	return &Config{
		Logging: LoggingConfig{Level: "info"},
		Detect: DetectionConfig{
			CacheTTLSeconds: 60,
			CacheMaxSize:    10000,
			DebounceMs:      50,
		},
		Stream: StreamConfig{
			MaxBufferSize:      1000,
			FlushIntervalMs:    100,
			MaxConcurrency:     10,
			DedupWindowSeconds: 5,
		},
		Dispatch: DispatchConfig{
			SignalAgents:   defaultSignalAgents(),
			SignalPriority: defaultSignalPriority(),
			Capacity:       defaultCapacity(),
		},
		Spawn: SpawnConfig{
			MaxConcurrentSpawns:  5,
			HealthTimeoutSeconds: 60,
		},
		Watch: WatchConfig{
			Roots:      []string{"."},
			Extensions: []string{".go", ".md", ".ts", ".js", ".py", ".txt"},
			DebounceMs: 500,
		},
	}
}

// Load reads workspace/.roboswarm/config.json over the defaults. A missing
// file yields the defaults. Environment overrides are applied last.
func Load(workspace string) (*Config, error) {
	cfg := Default()

	path := filepath.Join(workspace, ".roboswarm", "config.json")
	data, err := os.ReadFile(path)
	if err == nil {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
		cfg.applyDefaults()
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// applyDefaults fixes up zero values left by a partial config file.
func (c *Config) applyDefaults() {
	def := Default()
	if c.Detect.CacheTTLSeconds <= 0 {
		c.Detect.CacheTTLSeconds = def.Detect.CacheTTLSeconds
	}
	if c.Detect.CacheMaxSize <= 0 {
		c.Detect.CacheMaxSize = def.Detect.CacheMaxSize
	}
	if c.Detect.DebounceMs <= 0 {
		c.Detect.DebounceMs = def.Detect.DebounceMs
	}
	if c.Stream.MaxBufferSize <= 0 {
		c.Stream.MaxBufferSize = def.Stream.MaxBufferSize
	}
	if c.Stream.FlushIntervalMs <= 0 {
		c.Stream.FlushIntervalMs = def.Stream.FlushIntervalMs
	}
	if c.Stream.MaxConcurrency <= 0 {
		c.Stream.MaxConcurrency = def.Stream.MaxConcurrency
	}
	if c.Stream.DedupWindowSeconds <= 0 {
		c.Stream.DedupWindowSeconds = def.Stream.DedupWindowSeconds
	}
	if len(c.Dispatch.SignalAgents) == 0 {
		c.Dispatch.SignalAgents = def.Dispatch.SignalAgents
	}
	if len(c.Dispatch.SignalPriority) == 0 {
		c.Dispatch.SignalPriority = def.Dispatch.SignalPriority
	}
	if len(c.Dispatch.Capacity) == 0 {
		c.Dispatch.Capacity = def.Dispatch.Capacity
	}
	if c.Spawn.MaxConcurrentSpawns <= 0 {
		c.Spawn.MaxConcurrentSpawns = def.Spawn.MaxConcurrentSpawns
	}
	if c.Spawn.HealthTimeoutSeconds <= 0 {
		c.Spawn.HealthTimeoutSeconds = def.Spawn.HealthTimeoutSeconds
	}
	if len(c.Watch.Roots) == 0 {
		c.Watch.Roots = def.Watch.Roots
	}
	if len(c.Watch.Extensions) == 0 {
		c.Watch.Extensions = def.Watch.Extensions
	}
	if c.Watch.DebounceMs <= 0 {
		c.Watch.DebounceMs = def.Watch.DebounceMs
	}
}

// applyEnvOverrides applies ROBOSWARM_* environment variables on top of the
// loaded config.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("ROBOSWARM_DEBUG"); v != "" {
		c.Logging.DebugMode = v == "1" || strings.EqualFold(v, "true")
	}
	if v := os.Getenv("ROBOSWARM_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("ROBOSWARM_MAX_SPAWNS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Spawn.MaxConcurrentSpawns = n
		}
	}
	if v := os.Getenv("ROBOSWARM_WATCH_ROOTS"); v != "" {
		c.Watch.Roots = strings.Split(v, string(os.PathListSeparator))
	}
	if v := os.Getenv("ROBOSWARM_SKIP_HEALTH_WAIT"); v != "" {
		c.Spawn.SkipHealthWait = v == "1" || strings.EqualFold(v, "true")
	}
}

// CacheTTL returns the detection cache TTL as a duration.
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.Detect.CacheTTLSeconds) * time.Second
}

// DebounceDelay returns the detection debounce delay as a duration.
func (c *Config) DebounceDelay() time.Duration {
	return time.Duration(c.Detect.DebounceMs) * time.Millisecond
}

// FlushInterval returns the stream flush cadence as a duration.
func (c *Config) FlushInterval() time.Duration {
	return time.Duration(c.Stream.FlushIntervalMs) * time.Millisecond
}

// DedupWindow returns the dedup suppression window as a duration.
func (c *Config) DedupWindow() time.Duration {
	return time.Duration(c.Stream.DedupWindowSeconds) * time.Second
}

// HealthTimeout returns the spawn health-wait bound as a duration.
func (c *Config) HealthTimeout() time.Duration {
	return time.Duration(c.Spawn.HealthTimeoutSeconds) * time.Second
}

// WatchDebounce returns the watcher debounce delay as a duration.
func (c *Config) WatchDebounce() time.Duration {
	return time.Duration(c.Watch.DebounceMs) * time.Millisecond
}
