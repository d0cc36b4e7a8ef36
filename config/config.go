package config

import (
	"encoding/json"
	"os"
	"time"
)

// Config holds runtime configuration for matching and polling.
// Fields may be loaded from a JSON file and overridden by command-line flags.
type Config struct {
	Debug bool `json:"debug"`
	// Matching parameters
	MinSimilarity      float64 `json:"min_similarity"`
	PixelDiffThreshold int     `json:"pixel_diff_threshold"`
	Workers            int     `json:"workers"`

	// Polling
	ScanIntervalMS    int     `json:"scan_interval_ms"`
	ObserveIntervalMS int     `json:"observe_interval_ms"`
	WaitTimeoutSec    float64 `json:"wait_timeout_sec"`
	ExistsTimeoutSec  float64 `json:"exists_timeout_sec"`

	// Diagnostics
	StatsIntervalMS int `json:"stats_interval_ms"`
}

const minIntervalMS = 10

// DefaultConfig returns a Config populated with standard defaults.
func DefaultConfig() *Config {
	return &Config{
		Debug:              false,
		MinSimilarity:      0.7,
		PixelDiffThreshold: 20,
		Workers:            0,
		ScanIntervalMS:     50,
		ObserveIntervalMS:  500,
		WaitTimeoutSec:     3,
		ExistsTimeoutSec:   0,
		StatsIntervalMS:    5000,
	}
}

// Validate clamps/normalizes values to safe ranges.
func (c *Config) Validate() error {
	if c.MinSimilarity < 0 || c.MinSimilarity > 1 {
		c.MinSimilarity = 0.7
	}
	if c.PixelDiffThreshold < 0 || c.PixelDiffThreshold > 255 {
		c.PixelDiffThreshold = 20
	}
	if c.Workers < 0 {
		c.Workers = 0
	}
	if c.ScanIntervalMS <= 0 {
		c.ScanIntervalMS = 50
	}
	c.ScanIntervalMS = max(c.ScanIntervalMS, minIntervalMS)
	if c.ObserveIntervalMS <= 0 {
		c.ObserveIntervalMS = 500
	}
	c.ObserveIntervalMS = max(c.ObserveIntervalMS, minIntervalMS)
	if c.WaitTimeoutSec < 0 {
		c.WaitTimeoutSec = 3
	}
	if c.ExistsTimeoutSec < 0 {
		c.ExistsTimeoutSec = 0
	}
	if c.StatsIntervalMS <= 0 {
		c.StatsIntervalMS = 5000
	}
	return nil
}

func (c *Config) ScanInterval() time.Duration {
	return time.Duration(c.ScanIntervalMS) * time.Millisecond
}

func (c *Config) ObserveInterval() time.Duration {
	return time.Duration(c.ObserveIntervalMS) * time.Millisecond
}

func (c *Config) WaitTimeout() time.Duration { return seconds(c.WaitTimeoutSec) }

func (c *Config) ExistsTimeout() time.Duration { return seconds(c.ExistsTimeoutSec) }

func (c *Config) StatsInterval() time.Duration {
	return time.Duration(c.StatsIntervalMS) * time.Millisecond
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

// Load attempts to read configuration from the given JSON file path. If the file does not
// exist it returns DefaultConfig(). On JSON error it returns defaults with the error.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, err
	}
	defer f.Close()
	dec := json.NewDecoder(f)
	if err := dec.Decode(cfg); err != nil {
		return DefaultConfig(), err
	}
	_ = cfg.Validate()
	return cfg, nil
}

// Save writes the configuration to the given path in JSON format.
func (c *Config) Save(path string) error {
	_ = c.Validate()
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(c)
}
