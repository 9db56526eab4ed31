// CLAUDE:SUMMARY Persisted reservoir configuration: reservoir.yaml with size budget, tick, fetch defaults.
package reservoir

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hazyhaar/reservoir/reservoir/internal/chanstore"
	"github.com/hazyhaar/reservoir/reservoir/internal/fetch"
	"github.com/hazyhaar/reservoir/reservoir/internal/scheduler"
)

const configFile = "reservoir.yaml"

// Config is the per-reservoir configuration, persisted as reservoir.yaml at
// the root. The zero value is usable: no size budget, hourly fetches.
type Config struct {
	// SizeBudgetBytes caps the total size of stored documents. 0 disables
	// eviction entirely.
	SizeBudgetBytes int64 `yaml:"size_budget_bytes"`

	// TickMs is the scheduler tick in milliseconds. Default: 1000.
	TickMs int64 `yaml:"tick_ms,omitempty"`

	// FetchIntervalMs is the default poll interval for new sources.
	// Default: 3600000 (1 hour).
	FetchIntervalMs int64 `yaml:"fetch_interval_ms,omitempty"`

	// DuplicatePolicy is the default duplicate policy for new sources.
	// Default: keep-both.
	DuplicatePolicy string `yaml:"duplicate_policy,omitempty"`

	// Fetch settings for the built-in HTTP adapters.
	Fetch FetchConfig `yaml:"fetch,omitempty"`
}

// FetchConfig configures the HTTP fetcher used by built-in adapters.
type FetchConfig struct {
	TimeoutMs int64  `yaml:"timeout_ms,omitempty"`
	MaxBytes  int64  `yaml:"max_bytes,omitempty"`
	UserAgent string `yaml:"user_agent,omitempty"`
}

func (c *Config) defaults() {
	if c.TickMs <= 0 {
		c.TickMs = 1000
	}
	if c.FetchIntervalMs <= 0 {
		c.FetchIntervalMs = 3_600_000
	}
	if c.DuplicatePolicy == "" {
		c.DuplicatePolicy = chanstore.PolicyKeepBoth
	}
}

func (c *Config) fetchConfig() fetch.Config {
	return fetch.Config{
		Timeout:   time.Duration(c.Fetch.TimeoutMs) * time.Millisecond,
		MaxBytes:  c.Fetch.MaxBytes,
		UserAgent: c.Fetch.UserAgent,
	}
}

func (c *Config) storeDefaults() chanstore.Defaults {
	return chanstore.Defaults{
		FetchIntervalMs: c.FetchIntervalMs,
		DuplicatePolicy: c.DuplicatePolicy,
	}
}

func (c *Config) schedulerConfig() scheduler.Config {
	return scheduler.Config{
		TickInterval: time.Duration(c.TickMs) * time.Millisecond,
	}
}

// loadConfig reads reservoir.yaml from the root. A missing file yields the
// default configuration.
func loadConfig(root string) (*Config, error) {
	var cfg Config
	data, err := os.ReadFile(filepath.Join(root, configFile))
	switch {
	case os.IsNotExist(err):
		// fall through with the zero config
	case err != nil:
		return nil, fmt.Errorf("reservoir: read config: %w", err)
	default:
		if yerr := yaml.Unmarshal(data, &cfg); yerr != nil {
			return nil, fmt.Errorf("reservoir: parse %s: %w", configFile, yerr)
		}
	}
	cfg.defaults()
	return &cfg, nil
}

// saveConfig rewrites reservoir.yaml atomically.
func saveConfig(root string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("reservoir: encode config: %w", err)
	}
	target := filepath.Join(root, configFile)
	tmp := target + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("reservoir: write config: %w", err)
	}
	if err := os.Rename(tmp, target); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("reservoir: rename config: %w", err)
	}
	return nil
}
