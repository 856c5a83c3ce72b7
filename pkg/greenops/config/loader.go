package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v2"
	"k8s.io/klog/v2"
)

// LoadFromEnv loads configuration from environment variables
func LoadFromEnv() (*Config, error) {
	cfg := &Config{
		Detection: DetectionConfig{
			PaintZonePattern:         getEnvOrDefault("PAINT_ZONE_PATTERN", "PAINT"),
			PaintIdleEnergyKWh:       getFloatOrDefault("PAINT_IDLE_ENERGY_KWH", 120.0),
			AirLeakM3:                getFloatOrDefault("AIR_LEAK_M3", 90.0),
			HVACLowTempC:             getFloatOrDefault("HVAC_LOW_TEMP_C", 19.0),
			HVACMaxKWhPerM2:          getFloatOrDefault("HVAC_MAX_KWH_PER_M2", 0.35),
			StandbyMaxKWh:            getFloatOrDefault("STANDBY_MAX_KWH", 45.0),
			EfficiencyDropMultiplier: getFloatOrDefault("EFFICIENCY_DROP_MULTIPLIER", 1.5),
			BaselineWindowHours:      getIntOrDefault("BASELINE_WINDOW_HOURS", 24),
			DefaultZoneAreaM2:        getFloatOrDefault("DEFAULT_ZONE_AREA_M2", 2000.0),
			ZoneAreasM2:              loadZoneAreas(),
		},
		Costs: CostConfig{
			CurrencyPerKWh:    getFloatOrDefault("CURRENCY_PER_KWH", 0.07),
			CO2KgPerKWh:       getFloatOrDefault("CO2_KG_PER_KWH", 0.82),
			AirKWhPerM3:       getFloatOrDefault("AIR_KWH_PER_M3", 0.1),
			HighImpactPerYear: getFloatOrDefault("HIGH_IMPACT_PER_YEAR", 10000.0),
		},
		Remediation: RemediationConfig{
			CatalogPath:         os.Getenv("REMEDIATION_CATALOG_PATH"),
			HighDeadlineHours:   getIntOrDefault("HIGH_DEADLINE_HOURS", 2),
			MediumDeadlineHours: getIntOrDefault("MEDIUM_DEADLINE_HOURS", 24),
			LowDeadlineHours:    getIntOrDefault("LOW_DEADLINE_HOURS", 72),
		},
		Scoring: ScoringConfig{
			AnomalyURL:     os.Getenv("ANOMALY_SCORING_URL"),
			ForecastURL:    os.Getenv("FORECAST_SCORING_URL"),
			APIKey:         os.Getenv("SCORING_API_KEY"),
			Timeout:        getDurationOrDefault("SCORING_TIMEOUT", 10*time.Second),
			MaxRetries:     getIntOrDefault("SCORING_MAX_RETRIES", 3),
			RetryDelay:     getDurationOrDefault("SCORING_RETRY_DELAY", 1*time.Second),
			RateLimit:      getIntOrDefault("SCORING_RATE_LIMIT", 10),
			CacheTTL:       getDurationOrDefault("SCORING_CACHE_TTL", 5*time.Minute),
			ScoreThreshold: getFloatOrDefault("SCORE_THRESHOLD", 0.5),
		},
		Telemetry: TelemetryConfig{
			DatabasePath: os.Getenv("TELEMETRY_DB_PATH"),
			CSVPath:      os.Getenv("TELEMETRY_CSV_PATH"),
		},
		Server: ServerConfig{
			ListenPort:    getIntOrDefault("LISTEN_PORT", 8080),
			SweepEnabled:  getBoolOrDefault("SWEEP_ENABLED", false),
			SweepSchedule: getEnvOrDefault("SWEEP_SCHEDULE", "0 * * * *"),
		},
	}

	// Optional YAML file overrides the env-derived detection and cost settings
	if path := os.Getenv("GREENOPS_CONFIG_PATH"); path != "" {
		if err := loadConfigFile(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	klog.V(2).InfoS("Loaded configuration",
		"paintIdleEnergyKWh", cfg.Detection.PaintIdleEnergyKWh,
		"currencyPerKWh", cfg.Costs.CurrencyPerKWh,
		"scoreThreshold", cfg.Scoring.ScoreThreshold,
		"sweepEnabled", cfg.Server.SweepEnabled)

	return cfg, nil
}

func loadConfigFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntOrDefault(key string, defaultValue int) int {
	if strValue := os.Getenv(key); strValue != "" {
		if value, err := strconv.Atoi(strValue); err == nil {
			return value
		}
		klog.V(2).InfoS("Invalid integer value, using default",
			"key", key,
			"value", strValue,
			"default", defaultValue)
	}
	return defaultValue
}

func getFloatOrDefault(key string, defaultValue float64) float64 {
	if strValue := os.Getenv(key); strValue != "" {
		if value, err := strconv.ParseFloat(strValue, 64); err == nil {
			return value
		}
		klog.V(2).InfoS("Invalid float value, using default",
			"key", key,
			"value", strValue,
			"default", defaultValue)
	}
	return defaultValue
}

func getBoolOrDefault(key string, defaultValue bool) bool {
	if strValue := os.Getenv(key); strValue != "" {
		value, err := strconv.ParseBool(strValue)
		if err == nil {
			return value
		}
		klog.V(2).InfoS("Invalid boolean value, using default",
			"key", key,
			"value", strValue,
			"default", defaultValue)
	}
	return defaultValue
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if strValue := os.Getenv(key); strValue != "" {
		if value, err := time.ParseDuration(strValue); err == nil {
			return value
		}
		klog.V(2).InfoS("Invalid duration value, using default",
			"key", key,
			"value", strValue,
			"default", defaultValue)
	}
	return defaultValue
}

// loadZoneAreas loads per-zone conditioned areas from environment variables.
// Format: ZONE_AREA_M2_<NAME>=1500
func loadZoneAreas() map[string]float64 {
	areas := make(map[string]float64)

	for _, env := range os.Environ() {
		if name, value, found := strings.Cut(env, "="); found && strings.HasPrefix(name, "ZONE_AREA_M2_") {
			zone := strings.TrimPrefix(name, "ZONE_AREA_M2_")
			if area, err := strconv.ParseFloat(value, 64); err == nil && area > 0 {
				areas[zone] = area
			}
		}
	}

	return areas
}
