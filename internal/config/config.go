// Package config assembles service settings from defaults, an optional JSON
// file, the environment and command-line flags, in that order of precedence.
package config

import (
	"fmt"
	"time"

	"github.com/erazemk/surplus/internal/model"
	"github.com/erazemk/surplus/internal/safety"
)

// Config holds runtime settings for the surplus service.
type Config struct {
	Addr      string
	DBPath    string
	AdminUser string
	LogPath   string

	// ListingsDSN selects PostgreSQL for listings when non-empty.
	ListingsDSN string

	StoreTimeout     time.Duration
	DegradeOnTimeout bool

	// SafetyWindowHours overrides the default window per category.
	SafetyWindowHours map[model.FoodCategory]float64
}

// LoadDefaults populates Config with development defaults.
func (c *Config) LoadDefaults() {
	c.Addr = ":8080"
	c.DBPath = "surplus.sqlite3"
	c.AdminUser = "admin"
	c.LogPath = ""
	c.ListingsDSN = ""
	c.StoreTimeout = 5 * time.Second
	c.DegradeOnTimeout = false
	c.SafetyWindowHours = map[model.FoodCategory]float64{}
}

// Load builds a Config from args (without the program name) and the
// environment lookup getenv.
func Load(args []string, getenv func(string) string) (*Config, error) {
	fs, fv := newFlagSet()
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() > 0 {
		return nil, fmt.Errorf("unexpected argument: %s", fs.Arg(0))
	}

	cfg := &Config{}
	cfg.LoadDefaults()

	if fv.configFile != "" {
		if err := applyFile(cfg, fv.configFile); err != nil {
			return nil, err
		}
	}
	if err := applyEnv(cfg, getenv); err != nil {
		return nil, err
	}
	fv.apply(cfg, fs)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the service cannot start with.
func (c *Config) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("listen address must not be empty")
	}
	if c.DBPath == "" {
		return fmt.Errorf("database path must not be empty")
	}
	if c.StoreTimeout < 0 {
		return fmt.Errorf("store timeout must not be negative, got %s", c.StoreTimeout)
	}
	for category, hours := range c.SafetyWindowHours {
		if !category.Valid() {
			return fmt.Errorf("safety window for unknown food type %q", category)
		}
		if hours <= 0 {
			return fmt.Errorf("safety window for %q must be positive, got %g", category, hours)
		}
	}
	return nil
}

// Windows builds the immutable safety window table: the defaults with any
// configured overrides applied.
func (c *Config) Windows() (*safety.Windows, error) {
	table := safety.DefaultWindows()
	for category, hours := range c.SafetyWindowHours {
		table[category] = time.Duration(hours * float64(time.Hour))
	}
	return safety.NewWindows(table)
}
