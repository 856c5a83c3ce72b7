package detector

import (
	"fmt"

	"k8s.io/klog/v2"

	"github.com/plant-ops/greenops-engine/pkg/greenops/config"
	"github.com/plant-ops/greenops-engine/pkg/greenops/telemetry"
)

// minBaselineSamples is the number of trailing energy-per-unit observations a
// zone needs before the efficiency-drop predicate can fire. Below this the
// baseline is too thin to call a deviation.
const minBaselineSamples = 3

// Rules evaluates the fixed-priority threshold predicates. Pure function of
// input plus configuration; safe for concurrent use.
type Rules struct {
	cfg *config.DetectionConfig
}

// NewRules creates a rule detector bound to a detection configuration
func NewRules(cfg *config.DetectionConfig) *Rules {
	return &Rules{cfg: cfg}
}

// Detect evaluates every reading against the predicate list and emits at
// most one RULE record per reading: the first matching predicate determines
// the anomaly type. Malformed readings are skipped and counted.
func (r *Rules) Detect(readings []telemetry.Reading) DetectionResult {
	result := DetectionResult{SkipReasons: make(map[string]int)}
	baselines := make(map[string]*efficiencyBaseline)

	for i := range readings {
		reading := &readings[i]
		if err := reading.Validate(); err != nil {
			result.Skipped++
			result.SkipReasons["malformed"]++
			continue
		}

		record, matched := r.evaluate(reading, baselines)

		// The baseline tracks only the trailing window; feed it after
		// evaluation so a reading never judges itself.
		baseline := baselines[reading.Zone]
		if baseline == nil {
			baseline = newEfficiencyBaseline(r.cfg.BaselineWindowHours)
			baselines[reading.Zone] = baseline
		}
		baseline.observe(energyPerUnit(reading))

		if matched {
			result.Records = append(result.Records, record)
		}
	}

	if result.Skipped > 0 {
		klog.V(2).InfoS("Rule detection skipped malformed readings",
			"skipped", result.Skipped,
			"flagged", len(result.Records))
	}
	return result
}

// evaluate walks the predicates in priority order; first match wins
func (r *Rules) evaluate(reading *telemetry.Reading, baselines map[string]*efficiencyBaseline) (AnomalyRecord, bool) {
	cfg := r.cfg

	if cfg.IsPaintZone(reading.Zone) &&
		reading.EnergyKWh > cfg.PaintIdleEnergyKWh &&
		reading.ProductionUnits == 0 {
		return r.record(reading, PaintOvenIdle,
			fmt.Sprintf("%.1f kWh in paint zone with zero production (threshold %.1f kWh)",
				reading.EnergyKWh, cfg.PaintIdleEnergyKWh)), true
	}

	if reading.CompressedAirM3 > cfg.AirLeakM3 &&
		reading.ProductionUnits <= 1 {
		return r.record(reading, CompressedAirLeak,
			fmt.Sprintf("%.1f m3 compressed air with production <= 1 (threshold %.1f m3)",
				reading.CompressedAirM3, cfg.AirLeakM3)), true
	}

	if reading.TemperatureC < cfg.HVACLowTempC {
		return r.record(reading, HVACOvercooling,
			fmt.Sprintf("temperature %.1fC below %.1fC setback floor",
				reading.TemperatureC, cfg.HVACLowTempC)), true
	}
	if perArea := reading.EnergyKWh / cfg.ZoneArea(reading.Zone); perArea > cfg.HVACMaxKWhPerM2 {
		return r.record(reading, HVACInefficiency,
			fmt.Sprintf("%.3f kWh/m2 exceeds %.3f kWh/m2 bound",
				perArea, cfg.HVACMaxKWhPerM2)), true
	}

	if reading.Status == telemetry.StatusStandby &&
		reading.EnergyKWh > cfg.StandbyMaxKWh {
		return r.record(reading, StandbyPowerExcessive,
			fmt.Sprintf("%.1f kWh while in standby (threshold %.1f kWh)",
				reading.EnergyKWh, cfg.StandbyMaxKWh)), true
	}

	if baseline := baselines[reading.Zone]; baseline != nil && baseline.size() >= minBaselineSamples {
		ratio := energyPerUnit(reading)
		if mean := baseline.mean(); ratio > mean*cfg.EfficiencyDropMultiplier {
			return r.record(reading, ProductionEfficiencyDrop,
				fmt.Sprintf("%.1f kWh/unit against trailing baseline %.1f kWh/unit",
					ratio, mean)), true
		}
	}

	return AnomalyRecord{}, false
}

func (r *Rules) record(reading *telemetry.Reading, t AnomalyType, note string) AnomalyRecord {
	return AnomalyRecord{
		Zone:       reading.Zone,
		Timestamp:  reading.Timestamp,
		Type:       t,
		Source:     SourceRule,
		Confidence: 1.0, // Threshold predicates are deterministic
		Metrics: MetricSnapshot{
			EnergyKWh:       reading.EnergyKWh,
			ProductionUnits: reading.ProductionUnits,
			TemperatureC:    reading.TemperatureC,
			CompressedAirM3: reading.CompressedAirM3,
		},
		Note: note,
	}
}

func energyPerUnit(r *telemetry.Reading) float64 {
	units := r.ProductionUnits
	if units < 1 {
		units = 1
	}
	return r.EnergyKWh / float64(units)
}

// efficiencyBaseline is a trailing window of energy-per-unit observations
type efficiencyBaseline struct {
	window []float64
	limit  int
}

func newEfficiencyBaseline(limit int) *efficiencyBaseline {
	return &efficiencyBaseline{limit: limit}
}

func (b *efficiencyBaseline) observe(ratio float64) {
	b.window = append(b.window, ratio)
	if len(b.window) > b.limit {
		b.window = b.window[1:]
	}
}

func (b *efficiencyBaseline) size() int {
	return len(b.window)
}

func (b *efficiencyBaseline) mean() float64 {
	if len(b.window) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range b.window {
		sum += v
	}
	return sum / float64(len(b.window))
}
