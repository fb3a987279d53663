package server

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so YAML configs can use strings like "30s".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return fmt.Errorf("duration must be a string like \"30s\": %w", err)
	}
	if strings.TrimSpace(s) == "" {
		d.Duration = 0
		return nil
	}
	dd, err := time.ParseDuration(strings.TrimSpace(s))
	if err != nil {
		return err
	}
	d.Duration = dd
	return nil
}

// Config holds the HTTP server configuration.
type Config struct {
	Addr     string `yaml:"addr"`
	PoolFile string `yaml:"poolFile"`

	// RateLimit is the number of solution submissions allowed per client
	// IP within RateWindow.
	RateLimit  int      `yaml:"rateLimit"`
	RateWindow Duration `yaml:"rateWindow"`

	RequestTimeout Duration `yaml:"requestTimeout"`

	// Development switches the logger to human-readable output.
	Development bool `yaml:"development"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() Config {
	return Config{
		Addr:           ":8080",
		PoolFile:       "challenges.yaml",
		RateLimit:      10,
		RateWindow:     Duration{time.Minute},
		RequestTimeout: Duration{30 * time.Second},
	}
}

// LoadConfig reads a YAML config file over the defaults. An empty path
// returns the defaults unchanged.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("config: %w", err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate rejects configurations the server cannot run with.
func (c Config) Validate() error {
	if c.Addr == "" {
		return errors.New("config: addr is required")
	}
	if c.PoolFile == "" {
		return errors.New("config: poolFile is required")
	}
	if c.RateLimit <= 0 {
		return errors.New("config: rateLimit must be positive")
	}
	if c.RateWindow.Duration <= 0 {
		return errors.New("config: rateWindow must be positive")
	}
	if c.RequestTimeout.Duration <= 0 {
		return errors.New("config: requestTimeout must be positive")
	}
	return nil
}
