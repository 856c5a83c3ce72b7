// Package kpi computes plant-level efficiency indicators from telemetry
package kpi

import (
	"sort"

	"github.com/plant-ops/greenops-engine/pkg/greenops/telemetry"
)

// ZoneEnergy is one zone's share of total consumption
type ZoneEnergy struct {
	Zone         string  `json:"zone_id"`
	EnergyKWh    float64 `json:"energy_kwh"`
	SharePercent float64 `json:"share_percent"`
}

// Summary aggregates production and emission indicators over a set of
// readings. Per-unit figures are nil when nothing was produced; reporting
// zero would read as perfect efficiency.
type Summary struct {
	Readings         int          `json:"readings"`
	TotalEnergyKWh   float64      `json:"total_energy_kwh"`
	TotalCO2Kg       float64      `json:"total_co2_kg"`
	TotalUnits       int          `json:"total_units"`
	EnergyPerUnitKWh *float64     `json:"energy_per_unit_kwh,omitempty"`
	CO2PerUnitKg     *float64     `json:"co2_per_unit_kg,omitempty"`
	ZoneEnergy       []ZoneEnergy `json:"zone_energy"`
}

// Compute builds a Summary over the readings. Malformed readings are
// excluded; zones are listed by descending energy share.
func Compute(readings []telemetry.Reading) Summary {
	s := Summary{}
	byZone := make(map[string]float64)

	for i := range readings {
		r := &readings[i]
		if err := r.Validate(); err != nil {
			continue
		}
		s.Readings++
		s.TotalEnergyKWh += r.EnergyKWh
		s.TotalCO2Kg += r.CO2Kg
		s.TotalUnits += r.ProductionUnits
		byZone[r.Zone] += r.EnergyKWh
	}

	if s.TotalUnits > 0 {
		perUnit := s.TotalEnergyKWh / float64(s.TotalUnits)
		co2PerUnit := s.TotalCO2Kg / float64(s.TotalUnits)
		s.EnergyPerUnitKWh = &perUnit
		s.CO2PerUnitKg = &co2PerUnit
	}

	s.ZoneEnergy = make([]ZoneEnergy, 0, len(byZone))
	for zone, energy := range byZone {
		share := 0.0
		if s.TotalEnergyKWh > 0 {
			share = energy / s.TotalEnergyKWh * 100
		}
		s.ZoneEnergy = append(s.ZoneEnergy, ZoneEnergy{
			Zone:         zone,
			EnergyKWh:    energy,
			SharePercent: share,
		})
	}
	sort.Slice(s.ZoneEnergy, func(i, j int) bool {
		if s.ZoneEnergy[i].EnergyKWh != s.ZoneEnergy[j].EnergyKWh {
			return s.ZoneEnergy[i].EnergyKWh > s.ZoneEnergy[j].EnergyKWh
		}
		return s.ZoneEnergy[i].Zone < s.ZoneEnergy[j].Zone
	})
	return s
}
