package config

import (
	"testing"
	"time"
)

func TestLoadFromEnvDefaults(t *testing.T) {
	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv failed: %v", err)
	}

	if cfg.Detection.PaintIdleEnergyKWh != 120 {
		t.Errorf("PaintIdleEnergyKWh = %v, want 120", cfg.Detection.PaintIdleEnergyKWh)
	}
	if cfg.Detection.HVACLowTempC != 19 {
		t.Errorf("HVACLowTempC = %v, want 19", cfg.Detection.HVACLowTempC)
	}
	if cfg.Costs.CurrencyPerKWh != 0.07 {
		t.Errorf("CurrencyPerKWh = %v, want 0.07", cfg.Costs.CurrencyPerKWh)
	}
	if cfg.Remediation.HighDeadlineHours != 2 || cfg.Remediation.LowDeadlineHours != 72 {
		t.Errorf("deadlines = %d/%d/%d, want 2/24/72",
			cfg.Remediation.HighDeadlineHours,
			cfg.Remediation.MediumDeadlineHours,
			cfg.Remediation.LowDeadlineHours)
	}
	if cfg.Scoring.ScoreThreshold != 0.5 {
		t.Errorf("ScoreThreshold = %v, want 0.5", cfg.Scoring.ScoreThreshold)
	}
	if cfg.Scoring.Timeout != 10*time.Second {
		t.Errorf("Timeout = %v, want 10s", cfg.Scoring.Timeout)
	}
	if cfg.Server.SweepSchedule != "0 * * * *" {
		t.Errorf("SweepSchedule = %q, want hourly", cfg.Server.SweepSchedule)
	}
}

func TestLoadFromEnvOverrides(t *testing.T) {
	t.Setenv("PAINT_IDLE_ENERGY_KWH", "200")
	t.Setenv("SCORE_THRESHOLD", "0.8")
	t.Setenv("ZONE_AREA_M2_ZONE-PAINT-SHOP", "1500")

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv failed: %v", err)
	}
	if cfg.Detection.PaintIdleEnergyKWh != 200 {
		t.Errorf("PaintIdleEnergyKWh = %v, want 200", cfg.Detection.PaintIdleEnergyKWh)
	}
	if cfg.Scoring.ScoreThreshold != 0.8 {
		t.Errorf("ScoreThreshold = %v, want 0.8", cfg.Scoring.ScoreThreshold)
	}
	if got := cfg.Detection.ZoneArea("ZONE-PAINT-SHOP"); got != 1500 {
		t.Errorf("ZoneArea = %v, want the env override 1500", got)
	}
	if got := cfg.Detection.ZoneArea("ZONE-OTHER"); got != cfg.Detection.DefaultZoneAreaM2 {
		t.Errorf("ZoneArea fallback = %v, want the default", got)
	}
}

func TestLoadFromEnvBadValueFallsBack(t *testing.T) {
	t.Setenv("PAINT_IDLE_ENERGY_KWH", "not-a-number")

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv failed: %v", err)
	}
	if cfg.Detection.PaintIdleEnergyKWh != 120 {
		t.Errorf("PaintIdleEnergyKWh = %v, want the default 120", cfg.Detection.PaintIdleEnergyKWh)
	}
}

func TestIsPaintZone(t *testing.T) {
	d := DetectionConfig{PaintZonePattern: "PAINT"}
	cases := []struct {
		zone string
		want bool
	}{
		{"ZONE-PAINT-SHOP", true},
		{"zone-paint-shop", true},
		{"ZONE-ASSEMBLY", false},
	}
	for _, tc := range cases {
		if got := d.IsPaintZone(tc.zone); got != tc.want {
			t.Errorf("IsPaintZone(%q) = %v, want %v", tc.zone, got, tc.want)
		}
	}
}

func TestValidateCatchesBadConfig(t *testing.T) {
	base := func() *Config {
		cfg, err := LoadFromEnv()
		if err != nil {
			t.Fatalf("LoadFromEnv failed: %v", err)
		}
		return cfg
	}

	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing paint pattern", func(c *Config) { c.Detection.PaintZonePattern = "" }},
		{"negative threshold", func(c *Config) { c.Detection.AirLeakM3 = -1 }},
		{"multiplier below one", func(c *Config) { c.Detection.EfficiencyDropMultiplier = 0.9 }},
		{"inverted deadlines", func(c *Config) { c.Remediation.HighDeadlineHours = 100 }},
		{"threshold above one", func(c *Config) { c.Scoring.ScoreThreshold = 1.5 }},
		{"zero rate limit", func(c *Config) { c.Scoring.RateLimit = 0 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := base()
			tc.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Validate accepted an invalid configuration")
			}
		})
	}
}
