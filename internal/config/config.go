package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Config holds all application configuration
type Config struct {
	Fetch         FetchConfig         `toml:"fetch"`
	Cache         CacheConfig         `toml:"cache"`
	MultiFetch    MultiFetchConfig    `toml:"multifetch"`
	Enhance       EnhanceConfig       `toml:"enhance"`
	Squads        SquadConfig         `toml:"squads"`
	Fallback      FallbackConfig      `toml:"fallback"`
	Pool          PoolConfig          `toml:"pool"`
	Notifications NotificationsConfig `toml:"notifications"`
	Refresh       []RefreshJob        `toml:"refresh"`
}

// FetchConfig holds single-fetch and retry settings
type FetchConfig struct {
	TimeoutSecs      int     `toml:"timeout_secs"`
	MaxRetries       int     `toml:"max_retries"`
	BaseDelayMs      int     `toml:"base_delay_ms"`
	Multiplier       float64 `toml:"multiplier"`
	JitterRatio      float64 `toml:"jitter_ratio"`
	RateLimitDelayMs int     `toml:"rate_limit_delay_ms"`
	ScopePrefix      string  `toml:"scope_prefix"` // same-repository link scope; derived from root URL if empty
}

// Timeout returns the per-fetch timeout as a duration
func (c FetchConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSecs) * time.Second
}

// CacheConfig holds resource cache settings
type CacheConfig struct {
	TTLSeconds   int    `toml:"ttl_seconds"`
	DatabasePath string `toml:"database_path"`
}

// TTL returns the cache TTL as a duration
func (c CacheConfig) TTL() time.Duration {
	return time.Duration(c.TTLSeconds) * time.Second
}

// MultiFetchConfig holds discovery expansion settings
type MultiFetchConfig struct {
	Enabled            bool `toml:"enabled"`
	MaxDepth           int  `toml:"max_depth"`
	MaxConcurrency     int  `toml:"max_concurrency"`
	SessionTimeoutSecs int  `toml:"session_timeout_secs"`
}

// SessionTimeout returns the global expansion timeout as a duration
func (c MultiFetchConfig) SessionTimeout() time.Duration {
	return time.Duration(c.SessionTimeoutSecs) * time.Second
}

// EnhanceConfig holds input-enhancement bounds
type EnhanceConfig struct {
	Enabled             bool `toml:"enabled"`
	MinQueries          int  `toml:"min_queries"`
	MaxQueries          int  `toml:"max_queries"`
	MaxPhases           int  `toml:"max_phases"`
	MaxSubTasksPerPhase int  `toml:"max_subtasks_per_phase"`
}

// SquadRoute maps a task category to a squad
type SquadRoute struct {
	Category string `toml:"category"`
	Squad    string `toml:"squad"`
}

// SquadConfig holds the static squad registry. Loaded at startup, never
// mutated at runtime by this subsystem.
type SquadConfig struct {
	DefaultSquad string       `toml:"default_squad"`
	Routes       []SquadRoute `toml:"route"`
}

// FallbackConfig holds local fallback resource settings
type FallbackConfig struct {
	Dir   string `toml:"dir"`
	Watch bool   `toml:"watch"`
}

// PoolConfig holds worker pool coordinator settings
type PoolConfig struct {
	WebSocketPort         int `toml:"websocket_port"`
	HeartbeatIntervalSecs int `toml:"heartbeat_interval_secs"`
	HeartbeatTimeoutSecs  int `toml:"heartbeat_timeout_secs"`
	EmbeddedSlots         int `toml:"embedded_slots"`
}

// NotificationsConfig holds notification settings
type NotificationsConfig struct {
	Desktop      bool   `toml:"desktop"`
	SlackWebhook string `toml:"slack_webhook"`
}

// RefreshJob is one scheduled cache-refresh entry
type RefreshJob struct {
	Name        string   `toml:"name"`
	Cron        string   `toml:"cron"`
	Identifiers []string `toml:"identifiers"`
}

// Default returns a Config with sensible defaults
func Default() *Config {
	home, _ := os.UserHomeDir()
	return &Config{
		Fetch: FetchConfig{
			TimeoutSecs:      5,
			MaxRetries:       3,
			BaseDelayMs:      250,
			Multiplier:       2.0,
			JitterRatio:      0.2,
			RateLimitDelayMs: 2000,
		},
		Cache: CacheConfig{
			TTLSeconds:   3600,
			DatabasePath: filepath.Join(home, ".ctx-orchestrator", "resources.db"),
		},
		MultiFetch: MultiFetchConfig{
			Enabled:            true,
			MaxDepth:           2,
			MaxConcurrency:     4,
			SessionTimeoutSecs: 60,
		},
		Enhance: EnhanceConfig{
			Enabled:             true,
			MinQueries:          15,
			MaxQueries:          20,
			MaxPhases:           8,
			MaxSubTasksPerPhase: 6,
		},
		Squads: SquadConfig{
			DefaultSquad: "general",
		},
		Fallback: FallbackConfig{
			Dir:   filepath.Join(home, ".ctx-orchestrator", "fallbacks"),
			Watch: true,
		},
		Pool: PoolConfig{
			WebSocketPort:         9417,
			HeartbeatIntervalSecs: 30,
			HeartbeatTimeoutSecs:  90,
			EmbeddedSlots:         2,
		},
		Notifications: NotificationsConfig{
			Desktop: true,
		},
	}
}

// Load reads configuration from a TOML file, falling back to defaults
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	// Expand paths
	cfg.Cache.DatabasePath = ExpandPath(cfg.Cache.DatabasePath)
	cfg.Fallback.Dir = ExpandPath(cfg.Fallback.Dir)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks bounds and fills defaults for zero values
func (c *Config) Validate() error {
	if c.Fetch.TimeoutSecs <= 0 {
		c.Fetch.TimeoutSecs = 5
	}
	if c.Fetch.MaxRetries < 0 {
		return fmt.Errorf("fetch.max_retries must be >= 0")
	}
	if c.Fetch.Multiplier < 1 {
		c.Fetch.Multiplier = 2.0
	}
	if c.Fetch.JitterRatio < 0 || c.Fetch.JitterRatio > 1 {
		return fmt.Errorf("fetch.jitter_ratio must be in [0, 1]")
	}
	if c.MultiFetch.MaxDepth < 0 {
		return fmt.Errorf("multifetch.max_depth must be >= 0")
	}
	if c.MultiFetch.MaxConcurrency <= 0 {
		c.MultiFetch.MaxConcurrency = 4
	}
	if c.Enhance.MinQueries <= 0 || c.Enhance.MaxQueries < c.Enhance.MinQueries {
		return fmt.Errorf("enhance.min_queries/max_queries out of order: [%d, %d]",
			c.Enhance.MinQueries, c.Enhance.MaxQueries)
	}
	if c.Enhance.MaxPhases <= 0 || c.Enhance.MaxPhases > 8 {
		return fmt.Errorf("enhance.max_phases must be in [1, 8]")
	}
	if c.Enhance.MaxSubTasksPerPhase <= 0 || c.Enhance.MaxSubTasksPerPhase > 6 {
		return fmt.Errorf("enhance.max_subtasks_per_phase must be in [1, 6]")
	}
	if c.Squads.DefaultSquad == "" {
		c.Squads.DefaultSquad = "general"
	}
	return nil
}

// ExpandPath expands ~ to the user's home directory
func ExpandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, _ := os.UserHomeDir()
		return filepath.Join(home, path[2:])
	}
	return path
}

// DefaultConfigPath returns the default config file location
func DefaultConfigPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "ctx-orchestrator", "config.toml")
}
