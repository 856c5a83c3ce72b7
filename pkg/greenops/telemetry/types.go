package telemetry

import (
	"errors"
	"time"
)

// ErrMalformedReading marks a reading missing required fields. Malformed
// readings are skipped and counted, never fatal for a batch.
var ErrMalformedReading = errors.New("malformed reading")

// Operational status values as recorded by the plant historian
const (
	StatusOperational = "OPERATIONAL"
	StatusStandby     = "STANDBY"
	StatusMaintenance = "MAINTENANCE"
)

// Shift identifiers
const (
	ShiftA = "SHIFT-A"
	ShiftB = "SHIFT-B"
	ShiftC = "SHIFT-C"
)

// Reading is one zone-hour observation. Immutable once recorded.
type Reading struct {
	Zone            string    `json:"zone_id"`
	Timestamp       time.Time `json:"timestamp"` // Hour-aligned
	EnergyKWh       float64   `json:"energy_kwh"`
	ProductionUnits int       `json:"production_units"`
	CO2Kg           float64   `json:"co2_kg"`
	TemperatureC    float64   `json:"temperature_c"`
	CompressedAirM3 float64   `json:"compressed_air_m3"`
	Shift           string    `json:"shift"`
	Status          string    `json:"status"`
}

// Validate reports whether the reading carries the fields every consumer
// depends on. Metric values of zero are legitimate; identity fields are not.
func (r *Reading) Validate() error {
	if r.Zone == "" {
		return ErrMalformedReading
	}
	if r.Timestamp.IsZero() {
		return ErrMalformedReading
	}
	if r.EnergyKWh < 0 || r.CompressedAirM3 < 0 || r.ProductionUnits < 0 {
		return ErrMalformedReading
	}
	return nil
}

// Filter narrows a store query. Zero values mean "no constraint".
type Filter struct {
	Zone   string
	Shift  string
	Status string
	From   time.Time
	To     time.Time
}

func (f Filter) matches(r *Reading) bool {
	if f.Zone != "" && r.Zone != f.Zone {
		return false
	}
	if f.Shift != "" && r.Shift != f.Shift {
		return false
	}
	if f.Status != "" && r.Status != f.Status {
		return false
	}
	if !f.From.IsZero() && r.Timestamp.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && r.Timestamp.After(f.To) {
		return false
	}
	return true
}

// HourlyEnergy is one point of the plant-level hourly energy aggregate
// consumed by the forecast engine.
type HourlyEnergy struct {
	Timestamp time.Time `json:"timestamp"`
	EnergyKWh float64   `json:"energy_kwh"`
}
