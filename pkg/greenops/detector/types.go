package detector

import (
	"time"
)

// AnomalyType identifies which operating pattern a record deviates from
type AnomalyType string

const (
	PaintOvenIdle            AnomalyType = "PAINT_OVEN_IDLE"
	CompressedAirLeak        AnomalyType = "COMPRESSED_AIR_LEAK"
	HVACOvercooling          AnomalyType = "HVAC_OVERCOOLING"
	HVACInefficiency         AnomalyType = "HVAC_INEFFICIENCY"
	StandbyPowerExcessive    AnomalyType = "STANDBY_POWER_EXCESSIVE"
	ProductionEfficiencyDrop AnomalyType = "PRODUCTION_EFFICIENCY_DROP"

	// ModelDetected marks hits the outlier model raised without a matching
	// rule predicate; the model assigns no specific cause.
	ModelDetected AnomalyType = "MODEL_DETECTED"
)

// Source identifies which detector produced a record
type Source string

const (
	SourceRule  Source = "RULE"
	SourceModel Source = "MODEL"
	SourceFused Source = "FUSED"
)

// MetricSnapshot captures the raw metrics at the flagged instant
type MetricSnapshot struct {
	EnergyKWh       float64 `json:"energy_kwh"`
	ProductionUnits int     `json:"production_units"`
	TemperatureC    float64 `json:"temperature_c"`
	CompressedAirM3 float64 `json:"compressed_air_m3"`
}

// AnomalyRecord is one flagged zone-hour. Created by the rule detector or
// the scorer adapter; consumed, never mutated, downstream.
type AnomalyRecord struct {
	Zone       string         `json:"zone_id"`
	Timestamp  time.Time      `json:"timestamp"`
	Type       AnomalyType    `json:"anomaly_type"`
	Source     Source         `json:"source"`
	Confidence float64        `json:"confidence"` // 1.0 for rule hits, model score otherwise
	Metrics    MetricSnapshot `json:"metrics"`
	Note       string         `json:"note,omitempty"`
}

// DetectionResult labels partial output: how many readings were skipped and
// why, so a caller never mistakes a degraded batch for a complete one.
type DetectionResult struct {
	Records     []AnomalyRecord `json:"records"`
	Skipped     int             `json:"skipped"`
	SkipReasons map[string]int  `json:"skip_reasons,omitempty"`
}

// predicatePriority returns the fixed evaluation rank of a rule predicate.
// Lower ranks win when fusion defensively resolves duplicate rule hits for
// the same (zone, timestamp).
func predicatePriority(t AnomalyType) int {
	switch t {
	case PaintOvenIdle:
		return 1
	case CompressedAirLeak:
		return 2
	case HVACOvercooling, HVACInefficiency:
		return 3
	case StandbyPowerExcessive:
		return 4
	case ProductionEfficiencyDrop:
		return 5
	default:
		return 6
	}
}
