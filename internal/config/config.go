// Package config loads castnav settings from an optional TOML file and
// CASTNAV_* environment variables. Environment values win over the file.
//
// TOML format:
//
//	works_dir = "/srv/works"
//	log_level = "debug"
//	log_format = "json"
//	tick_interval = "16ms"
//	expansion = "union"
//
//	[physics]
//	link_distance_highlighted = 600
//	ready_after = "1s"
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
	"github.com/latebit/castnav/internal/layout"
)

// Config holds the settings shared by every castnav binary.
type Config struct {
	WorksDir     string        `toml:"works_dir" validate:"required"`
	LogLevel     string        `toml:"log_level" validate:"oneof=debug info warn error"`
	LogFormat    string        `toml:"log_format" validate:"oneof=text json"`
	LogFile      string        `toml:"log_file"`
	TickInterval time.Duration `toml:"tick_interval" validate:"gt=0"`
	Expansion    string        `toml:"expansion" validate:"oneof=cumulative union neighbors"`
	MetricsAddr  string        `toml:"metrics_addr"`
	Physics      layout.Params `toml:"physics"`
}

var validate = validator.New()

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		WorksDir:     "works",
		LogLevel:     "info",
		LogFormat:    "text",
		TickInterval: 16 * time.Millisecond,
		Expansion:    "cumulative",
		Physics:      layout.DefaultParams(),
	}
}

// DefaultPath returns the default config file path (~/.castnav/config.toml).
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".castnav", "config.toml")
}

// Load reads path if it exists, applies environment overrides and validates
// the result. An empty path or a missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
		case err != nil:
			return nil, fmt.Errorf("read config file %q: %w", path, err)
		default:
			if _, err := toml.Decode(string(data), cfg); err != nil {
				return nil, fmt.Errorf("parse config file %q: %w", path, err)
			}
		}
	}
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.WorksDir = getEnv("CASTNAV_WORKS_DIR", c.WorksDir)
	c.LogLevel = strings.ToLower(getEnv("CASTNAV_LOG_LEVEL", c.LogLevel))
	c.LogFormat = strings.ToLower(getEnv("CASTNAV_LOG_FORMAT", c.LogFormat))
	c.LogFile = getEnv("CASTNAV_LOG_FILE", c.LogFile)
	c.TickInterval = getEnvAsDuration("CASTNAV_TICK_INTERVAL", c.TickInterval)
	c.Expansion = strings.ToLower(getEnv("CASTNAV_EXPANSION", c.Expansion))
	c.MetricsAddr = getEnv("CASTNAV_METRICS_ADDR", c.MetricsAddr)
	c.Physics.Seed = getEnvAsUint("CASTNAV_SEED", c.Physics.Seed)
}

// Validate checks every field and reports the first failure.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	if errs, ok := err.(validator.ValidationErrors); ok && len(errs) > 0 {
		fe := errs[0]
		return fmt.Errorf("config: invalid %s %q (%s)", fe.Field(), fmt.Sprint(fe.Value()), fe.Tag())
	}
	return fmt.Errorf("config: %w", err)
}

func getEnv(key, defaultValue string) string {
	value, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}
	return value
}

func getEnvAsUint(key string, defaultValue uint64) uint64 {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseUint(valueStr, 10, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsDuration accepts Go durations ("16ms") or bare milliseconds.
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if ms, err := strconv.Atoi(valueStr); err == nil {
		if ms <= 0 {
			return defaultValue
		}
		return time.Duration(ms) * time.Millisecond
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil || value <= 0 {
		return defaultValue
	}
	return value
}
