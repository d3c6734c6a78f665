package config

import (
	"encoding/json"
	"flag"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erazemk/surplus/internal/model"
)

func noEnv(string) string { return "" }

func envMap(m map[string]string) func(string) string {
	return func(key string) string { return m[key] }
}

func writeTempJSON(t *testing.T, data map[string]any) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cfg.json")
	b, err := json.Marshal(data)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, b, 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	var c Config
	c.LoadDefaults()

	assert.Equal(t, ":8080", c.Addr)
	assert.Equal(t, "surplus.sqlite3", c.DBPath)
	assert.Equal(t, "admin", c.AdminUser)
	assert.Equal(t, 5*time.Second, c.StoreTimeout)
	assert.False(t, c.DegradeOnTimeout)
	assert.Empty(t, c.ListingsDSN)
	assert.NotNil(t, c.SafetyWindowHours)
}

func TestLoad_NoSources(t *testing.T) {
	c, err := Load(nil, noEnv)
	require.NoError(t, err)

	var want Config
	want.LoadDefaults()
	assert.Equal(t, &want, c)
}

func TestLoad_Precedence(t *testing.T) {
	path := writeTempJSON(t, map[string]any{
		"addr":                "file:1",
		"db":                  "file.sqlite3",
		"store_timeout":       "2s",
		"degrade_on_timeout":  true,
		"safety_window_hours": map[string]float64{"prepared_meal": 6, "dairy_product": 10},
	})

	env := envMap(map[string]string{
		envAddr:                       "env:2",
		envStoreTimeout:               "3s",
		"SAFETY_WINDOW_DAIRY_PRODUCT": "8",
	})

	c, err := Load([]string{"-config", path, "-a", "flag:3"}, env)
	require.NoError(t, err)

	assert.Equal(t, "flag:3", c.Addr)
	assert.Equal(t, "file.sqlite3", c.DBPath)
	assert.Equal(t, 3*time.Second, c.StoreTimeout)
	assert.True(t, c.DegradeOnTimeout)
	assert.Equal(t, 6.0, c.SafetyWindowHours[model.CategoryPreparedMeal])
	assert.Equal(t, 8.0, c.SafetyWindowHours[model.CategoryDairyProduct])
}

func TestLoad_FlagsOverrideEnv(t *testing.T) {
	env := envMap(map[string]string{
		envDegradeOnTimeout: "true",
		envListingsDSN:      "postgres://env",
	})

	c, err := Load([]string{"-degrade-on-timeout=false", "-listings-dsn", "postgres://flag", "-store-timeout", "250ms"}, env)
	require.NoError(t, err)

	assert.False(t, c.DegradeOnTimeout)
	assert.Equal(t, "postgres://flag", c.ListingsDSN)
	assert.Equal(t, 250*time.Millisecond, c.StoreTimeout)
}

func TestLoad_JSONDurationAsNanoseconds(t *testing.T) {
	path := writeTempJSON(t, map[string]any{"store_timeout": int64(time.Second)})

	c, err := Load([]string{"-c", path}, noEnv)
	require.NoError(t, err)
	assert.Equal(t, time.Second, c.StoreTimeout)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		env  map[string]string
		file map[string]any
	}{
		{name: "unknown flag", args: []string{"-nope"}},
		{name: "stray argument", args: []string{"serve"}},
		{name: "bad timeout env", env: map[string]string{envStoreTimeout: "soon"}},
		{name: "bad bool env", env: map[string]string{envDegradeOnTimeout: "maybe"}},
		{name: "bad window env", env: map[string]string{"SAFETY_WINDOW_BAKERY_ITEM": "two"}},
		{name: "zero window env", env: map[string]string{"SAFETY_WINDOW_BAKERY_ITEM": "0"}},
		{name: "unknown category in file", file: map[string]any{"safety_window_hours": map[string]float64{"casserole": 3}}},
		{name: "bad duration in file", file: map[string]any{"store_timeout": "later"}},
		{name: "negative timeout", args: []string{"-store-timeout", "-1s"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := tt.args
			if tt.file != nil {
				args = append([]string{"-c", writeTempJSON(t, tt.file)}, args...)
			}
			_, err := Load(args, envMap(tt.env))
			assert.Error(t, err)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load([]string{"-c", filepath.Join(t.TempDir(), "missing.json")}, noEnv)
	assert.Error(t, err)
}

func TestLoad_Help(t *testing.T) {
	_, err := Load([]string{"-h"}, noEnv)
	assert.ErrorIs(t, err, flag.ErrHelp)
}

func TestWindows(t *testing.T) {
	var c Config
	c.LoadDefaults()
	c.SafetyWindowHours[model.CategoryPreparedMeal] = 1.5

	w, err := c.Windows()
	require.NoError(t, err)

	assert.Equal(t, 90*time.Minute, w.Window(model.CategoryPreparedMeal))
	assert.Equal(t, 24*time.Hour, w.Window(model.CategoryFreshProduce))
	assert.Equal(t, 4*time.Hour, w.Window("unknown"))
}
