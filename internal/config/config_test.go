package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func lookupFrom(env map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}
}

func TestDefaultsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("defaults invalid: %v", err)
	}
	a, err := Default().Anchors()
	if err != nil {
		t.Fatalf("Anchors: %v", err)
	}
	if a.Weekday != time.Monday || a.MonthDay != 1 {
		t.Errorf("anchors = %+v", a)
	}
}

func TestApplyEnv(t *testing.T) {
	cfg := Default()
	err := cfg.applyEnv(lookupFrom(map[string]string{
		"CLEANHOME_PORT":          "9090",
		"CLEANHOME_WEEKLY_ANCHOR": "sat",
		"CLEANHOME_MONTHLY_DAY":   "15",
		"CLEANHOME_SYNC_DEBOUNCE": "2s",
		"CLEANHOME_DB_PATH":       "",
	}))
	if err != nil {
		t.Fatalf("applyEnv: %v", err)
	}
	if cfg.Port != "9090" || cfg.SyncDebounce != 2*time.Second || cfg.MonthlyDay != 15 {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.DBPath != "cleanhome.db" {
		t.Errorf("empty env should keep default db path, got %q", cfg.DBPath)
	}
	a, err := cfg.Anchors()
	if err != nil {
		t.Fatalf("Anchors: %v", err)
	}
	if a.Weekday != time.Saturday || a.MonthDay != 15 {
		t.Errorf("anchors = %+v", a)
	}
}

func TestApplyEnvBadNumber(t *testing.T) {
	cfg := Default()
	if err := cfg.applyEnv(lookupFrom(map[string]string{"CLEANHOME_MONTHLY_DAY": "first"})); err == nil {
		t.Error("expected error for non-numeric monthly day")
	}
	if err := cfg.applyEnv(lookupFrom(map[string]string{"CLEANHOME_SYNC_DEBOUNCE": "soon"})); err == nil {
		t.Error("expected error for bad duration")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"bad weekday", func(c *Config) { c.WeeklyAnchor = "funday" }, "weekly anchor"},
		{"bad monthly day", func(c *Config) { c.MonthlyDay = 32 }, "day-of-month"},
		{"bad timezone", func(c *Config) { c.Timezone = "Mars/Olympus" }, "timezone"},
		{"half vapid", func(c *Config) { c.VAPIDPublicKey = "abc" }, "VAPID"},
		{"negative debounce", func(c *Config) { c.SyncDebounce = -time.Second }, "debounce"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("err = %v, want mention of %q", err, tt.want)
			}
		})
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cleanhome.yaml")
	data := "port: \"7000\"\nweekly_anchor: sunday\nreminder_time: \"19:30\"\n"
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("CLEANHOME_PORT", "7001")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != "7001" {
		t.Errorf("port = %q, env should win", cfg.Port)
	}
	if cfg.WeeklyAnchor != "sunday" || cfg.ReminderTime != "19:30" {
		t.Errorf("cfg = %+v", cfg)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}
