package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/erazemk/surplus/internal/model"
)

// duration accepts both "5s" style strings and integer nanoseconds.
type duration struct {
	time.Duration
}

func (d *duration) UnmarshalJSON(b []byte) error {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	switch value := v.(type) {
	case float64:
		d.Duration = time.Duration(value)
	case string:
		parsed, err := time.ParseDuration(value)
		if err != nil {
			return err
		}
		d.Duration = parsed
	default:
		return fmt.Errorf("invalid duration %s", string(b))
	}
	return nil
}

// fileConfig is the JSON shape of a configuration file. Absent keys leave
// the current value untouched.
type fileConfig struct {
	Addr              *string                        `json:"addr"`
	DBPath            *string                        `json:"db"`
	AdminUser         *string                        `json:"admin_user"`
	LogPath           *string                        `json:"log"`
	ListingsDSN       *string                        `json:"listings_dsn"`
	StoreTimeout      *duration                      `json:"store_timeout"`
	DegradeOnTimeout  *bool                          `json:"degrade_on_timeout"`
	SafetyWindowHours map[model.FoodCategory]float64 `json:"safety_window_hours"`
}

func applyFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}

	var fc fileConfig
	if err := json.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("parsing config file %s: %w", path, err)
	}

	setString(&cfg.Addr, fc.Addr)
	setString(&cfg.DBPath, fc.DBPath)
	setString(&cfg.AdminUser, fc.AdminUser)
	setString(&cfg.LogPath, fc.LogPath)
	setString(&cfg.ListingsDSN, fc.ListingsDSN)
	if fc.StoreTimeout != nil {
		cfg.StoreTimeout = fc.StoreTimeout.Duration
	}
	if fc.DegradeOnTimeout != nil {
		cfg.DegradeOnTimeout = *fc.DegradeOnTimeout
	}
	for category, hours := range fc.SafetyWindowHours {
		cfg.SafetyWindowHours[category] = hours
	}
	return nil
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}
