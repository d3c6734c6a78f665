package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/erazemk/surplus/internal/model"
)

const (
	envAddr             = "SURPLUS_ADDR"
	envDB               = "SURPLUS_DB"
	envAdminUser        = "SURPLUS_ADMIN_USER"
	envLog              = "SURPLUS_LOG"
	envListingsDSN      = "SURPLUS_LISTINGS_DSN"
	envStoreTimeout     = "SURPLUS_STORE_TIMEOUT"
	envDegradeOnTimeout = "SURPLUS_DEGRADE_ON_TIMEOUT"

	// envWindowPrefix is followed by the upper-cased food type, for example
	// SAFETY_WINDOW_PREPARED_MEAL=6.
	envWindowPrefix = "SAFETY_WINDOW_"
)

func applyEnv(cfg *Config, getenv func(string) string) error {
	if getenv == nil {
		return nil
	}

	for key, dst := range map[string]*string{
		envAddr:        &cfg.Addr,
		envDB:          &cfg.DBPath,
		envAdminUser:   &cfg.AdminUser,
		envLog:         &cfg.LogPath,
		envListingsDSN: &cfg.ListingsDSN,
	} {
		if v := getenv(key); v != "" {
			*dst = v
		}
	}

	if v := getenv(envStoreTimeout); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", envStoreTimeout, err)
		}
		cfg.StoreTimeout = d
	}

	if v := getenv(envDegradeOnTimeout); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%s: %w", envDegradeOnTimeout, err)
		}
		cfg.DegradeOnTimeout = b
	}

	for _, category := range model.FoodCategories {
		key := envWindowPrefix + strings.ToUpper(string(category))
		v := getenv(key)
		if v == "" {
			continue
		}
		hours, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		cfg.SafetyWindowHours[category] = hours
	}

	return nil
}
