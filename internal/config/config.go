// Package config loads server settings from an optional YAML file and
// CLEANHOME_* environment variables, the latter taking precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dukerupert/cleanhome/internal/recurrence"
)

const envPrefix = "CLEANHOME_"

type Config struct {
	Port            string        `yaml:"port"`
	DBPath          string        `yaml:"db_path"`
	LogLevel        string        `yaml:"log_level"`
	CatalogPath     string        `yaml:"catalog"`
	WeeklyAnchor    string        `yaml:"weekly_anchor"`
	MonthlyDay      int           `yaml:"monthly_day"`
	SyncDebounce    time.Duration `yaml:"sync_debounce"`
	ReminderTime    string        `yaml:"reminder_time"`
	Timezone        string        `yaml:"timezone"`
	VAPIDPublicKey  string        `yaml:"vapid_public_key"`
	VAPIDPrivateKey string        `yaml:"vapid_private_key"`
}

func Default() Config {
	return Config{
		Port:         "8080",
		DBPath:       "cleanhome.db",
		LogLevel:     "info",
		WeeklyAnchor: "monday",
		MonthlyDay:   1,
		SyncDebounce: 500 * time.Millisecond,
		ReminderTime: "20:00",
		Timezone:     "Local",
	}
}

// Load reads path (skipped when empty) over the defaults, then applies the
// environment.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(envPrefix + key); ok && v != "" {
			*dst = v
		}
	}
	str("PORT", &c.Port)
	str("DB_PATH", &c.DBPath)
	str("LOG_LEVEL", &c.LogLevel)
	str("CATALOG", &c.CatalogPath)
	str("WEEKLY_ANCHOR", &c.WeeklyAnchor)
	str("REMINDER_TIME", &c.ReminderTime)
	str("TIMEZONE", &c.Timezone)
	str("VAPID_PUBLIC_KEY", &c.VAPIDPublicKey)
	str("VAPID_PRIVATE_KEY", &c.VAPIDPrivateKey)

	if v, ok := lookup(envPrefix + "MONTHLY_DAY"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%sMONTHLY_DAY: %w", envPrefix, err)
		}
		c.MonthlyDay = n
	}
	if v, ok := lookup(envPrefix + "SYNC_DEBOUNCE"); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%sSYNC_DEBOUNCE: %w", envPrefix, err)
		}
		c.SyncDebounce = d
	}
	return nil
}

func (c Config) Validate() error {
	var errs []error
	if c.Port == "" {
		errs = append(errs, errors.New("port is required"))
	}
	if c.DBPath == "" {
		errs = append(errs, errors.New("db path is required"))
	}
	if _, err := c.Anchors(); err != nil {
		errs = append(errs, err)
	}
	if c.SyncDebounce < 0 {
		errs = append(errs, fmt.Errorf("sync debounce must not be negative: %s", c.SyncDebounce))
	}
	if _, err := c.Location(); err != nil {
		errs = append(errs, err)
	}
	if (c.VAPIDPublicKey == "") != (c.VAPIDPrivateKey == "") {
		errs = append(errs, errors.New("both VAPID keys must be set together"))
	}
	return errors.Join(errs...)
}

// Anchors returns the recurrence anchors with the configured weekly and
// monthly overrides applied.
func (c Config) Anchors() (recurrence.Anchors, error) {
	a := recurrence.DefaultAnchors()
	if strings.TrimSpace(c.WeeklyAnchor) != "" {
		wd, err := recurrence.ParseWeekday(c.WeeklyAnchor)
		if err != nil {
			return a, fmt.Errorf("weekly anchor: %w", err)
		}
		a.Weekday = wd
	}
	if c.MonthlyDay != 0 {
		a.MonthDay = c.MonthlyDay
	}
	if err := a.Validate(); err != nil {
		return a, err
	}
	return a, nil
}

func (c Config) Location() (*time.Location, error) {
	if c.Timezone == "" || c.Timezone == "Local" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("timezone: %w", err)
	}
	return loc, nil
}
