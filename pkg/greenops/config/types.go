package config

import (
	"fmt"
	"strings"
	"time"
)

// Config holds all configuration for the greenops engine
type Config struct {
	Detection   DetectionConfig   `yaml:"detection"`
	Costs       CostConfig        `yaml:"costs"`
	Remediation RemediationConfig `yaml:"remediation"`
	Scoring     ScoringConfig     `yaml:"scoring"`
	Telemetry   TelemetryConfig   `yaml:"telemetry"`
	Server      ServerConfig      `yaml:"server"`
}

// DetectionConfig holds every threshold used by the rule detector.
// No threshold lives anywhere else; changing one never requires a rebuild.
type DetectionConfig struct {
	PaintZonePattern         string             `yaml:"paintZonePattern"`         // Substring identifying paint-type zones
	PaintIdleEnergyKWh       float64            `yaml:"paintIdleEnergyKWh"`       // Energy above this with zero production flags PAINT_OVEN_IDLE
	AirLeakM3                float64            `yaml:"airLeakM3"`                // Compressed air above this with production <= 1 flags a leak
	HVACLowTempC             float64            `yaml:"hvacLowTempC"`             // Temperature below this flags HVAC_OVERCOOLING
	HVACMaxKWhPerM2          float64            `yaml:"hvacMaxKWhPerM2"`          // Hourly energy per conditioned m2 above this flags HVAC_INEFFICIENCY
	StandbyMaxKWh            float64            `yaml:"standbyMaxKWh"`            // Energy above this while in STANDBY flags excessive standby power
	EfficiencyDropMultiplier float64            `yaml:"efficiencyDropMultiplier"` // energy-per-unit above baseline*multiplier flags an efficiency drop
	BaselineWindowHours      int                `yaml:"baselineWindowHours"`      // Trailing window for the per-zone energy-per-unit baseline
	DefaultZoneAreaM2        float64            `yaml:"defaultZoneAreaM2"`        // Conditioned area for zones absent from ZoneAreasM2
	ZoneAreasM2              map[string]float64 `yaml:"zoneAreasM2"`              // Per-zone conditioned areas
}

// CostConfig holds the financial and emission conversion rates
type CostConfig struct {
	CurrencyPerKWh    float64 `yaml:"currencyPerKWh"`    // Cost of one kWh
	CO2KgPerKWh       float64 `yaml:"co2KgPerKWh"`       // Emission factor
	AirKWhPerM3       float64 `yaml:"airKWhPerM3"`       // Compressor energy equivalent per m3 of compressed air
	HighImpactPerYear float64 `yaml:"highImpactPerYear"` // Annual cost above which severity escalates one level
}

// RemediationConfig holds the severity deadline table and the catalog path
type RemediationConfig struct {
	CatalogPath         string `yaml:"catalogPath"`       // Optional YAML file overriding the built-in remediation catalog
	HighDeadlineHours   int    `yaml:"highDeadlineHours"` // Deadline offsets per severity
	MediumDeadlineHours int    `yaml:"mediumDeadlineHours"`
	LowDeadlineHours    int    `yaml:"lowDeadlineHours"`
}

// ScoringConfig holds configuration for the external ML scoring services
type ScoringConfig struct {
	AnomalyURL     string        `yaml:"anomalyUrl"`     // Outlier classification deployment
	ForecastURL    string        `yaml:"forecastUrl"`    // Energy regression deployment
	APIKey         string        `yaml:"apiKey"`
	Timeout        time.Duration `yaml:"timeout"`
	MaxRetries     int           `yaml:"maxRetries"`
	RetryDelay     time.Duration `yaml:"retryDelay"`
	RateLimit      int           `yaml:"rateLimit"` // Requests per second
	CacheTTL       time.Duration `yaml:"cacheTTL"`
	ScoreThreshold float64       `yaml:"scoreThreshold"` // Model score above which a hit participates in fusion
}

// TelemetryConfig holds the reading store configuration
type TelemetryConfig struct {
	DatabasePath string `yaml:"databasePath"` // SQLite path; empty means in-memory store
	CSVPath      string `yaml:"csvPath"`      // Optional CSV file loaded into the store at startup
}

// ServerConfig holds configuration for the HTTP surface
type ServerConfig struct {
	ListenPort    int    `yaml:"listenPort"`
	SweepEnabled  bool   `yaml:"sweepEnabled"`  // Hourly detection sweep
	SweepSchedule string `yaml:"sweepSchedule"` // Cron expression for the sweep
}

// IsPaintZone reports whether a zone identifier names a paint-type zone
func (d *DetectionConfig) IsPaintZone(zone string) bool {
	return strings.Contains(strings.ToUpper(zone), strings.ToUpper(d.PaintZonePattern))
}

// ZoneArea returns the conditioned area for a zone, falling back to the default
func (d *DetectionConfig) ZoneArea(zone string) float64 {
	if area, ok := d.ZoneAreasM2[zone]; ok {
		return area
	}
	return d.DefaultZoneAreaM2
}

// Validate performs validation of the configuration
func (c *Config) Validate() error {
	if c.Detection.PaintZonePattern == "" {
		return fmt.Errorf("paint zone pattern is required")
	}
	if c.Detection.PaintIdleEnergyKWh <= 0 {
		return fmt.Errorf("paint idle energy threshold must be positive")
	}
	if c.Detection.AirLeakM3 <= 0 {
		return fmt.Errorf("air leak threshold must be positive")
	}
	if c.Detection.HVACMaxKWhPerM2 <= 0 {
		return fmt.Errorf("HVAC energy-per-area bound must be positive")
	}
	if c.Detection.StandbyMaxKWh <= 0 {
		return fmt.Errorf("standby energy threshold must be positive")
	}
	if c.Detection.EfficiencyDropMultiplier <= 1 {
		return fmt.Errorf("efficiency drop multiplier must be greater than 1")
	}
	if c.Detection.BaselineWindowHours <= 0 {
		return fmt.Errorf("baseline window must be positive")
	}
	if c.Detection.DefaultZoneAreaM2 <= 0 {
		return fmt.Errorf("default zone area must be positive")
	}
	for zone, area := range c.Detection.ZoneAreasM2 {
		if area <= 0 {
			return fmt.Errorf("conditioned area for zone %s must be positive", zone)
		}
	}

	if c.Costs.CurrencyPerKWh <= 0 {
		return fmt.Errorf("currency per kWh must be positive")
	}
	if c.Costs.CO2KgPerKWh <= 0 {
		return fmt.Errorf("CO2 factor must be positive")
	}
	if c.Costs.AirKWhPerM3 <= 0 {
		return fmt.Errorf("air energy conversion factor must be positive")
	}

	if c.Remediation.HighDeadlineHours <= 0 ||
		c.Remediation.MediumDeadlineHours <= 0 ||
		c.Remediation.LowDeadlineHours <= 0 {
		return fmt.Errorf("severity deadlines must be positive")
	}
	if c.Remediation.HighDeadlineHours > c.Remediation.MediumDeadlineHours ||
		c.Remediation.MediumDeadlineHours > c.Remediation.LowDeadlineHours {
		return fmt.Errorf("severity deadlines must not invert (high <= medium <= low)")
	}

	if c.Scoring.ScoreThreshold < 0 || c.Scoring.ScoreThreshold > 1 {
		return fmt.Errorf("score threshold must be within [0,1]")
	}
	if c.Scoring.Timeout <= 0 {
		return fmt.Errorf("scoring timeout must be positive")
	}
	if c.Scoring.RateLimit <= 0 {
		return fmt.Errorf("scoring rate limit must be positive")
	}

	return nil
}
