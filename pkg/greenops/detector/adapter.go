package detector

import (
	"context"
	"sort"

	"k8s.io/klog/v2"

	"github.com/plant-ops/greenops-engine/pkg/greenops/scoring"
	"github.com/plant-ops/greenops-engine/pkg/greenops/telemetry"
)

// AnomalyFeatureFields is the outlier model's input contract. Order and
// naming must match the deployment's training data exactly: reordering or
// omitting a feature corrupts scores without any error being raised.
var AnomalyFeatureFields = []string{
	"energy_kwh",
	"production_units",
	"temperature_c",
	"compressed_air_m3",
	"shift_encoded",
	"zone_encoded",
	"energy_per_unit",
	"air_per_unit",
}

// ScorerAdapter translates readings into the outlier model's feature space
// and normalizes its output into AnomalyRecords.
type ScorerAdapter struct {
	scorer scoring.Scorer
}

// NewScorerAdapter creates an adapter over a scoring backend
func NewScorerAdapter(scorer scoring.Scorer) *ScorerAdapter {
	return &ScorerAdapter{scorer: scorer}
}

// Score submits the readings to the outlier model and returns one MODEL
// record per positive classification. A scoring failure surfaces
// scoring.ErrUnavailable; the caller degrades to rule-only detection, it
// never interprets the failure as "no anomaly".
func (a *ScorerAdapter) Score(ctx context.Context, readings []telemetry.Reading) (DetectionResult, error) {
	result := DetectionResult{SkipReasons: make(map[string]int)}

	valid := make([]*telemetry.Reading, 0, len(readings))
	for i := range readings {
		if err := readings[i].Validate(); err != nil {
			result.Skipped++
			result.SkipReasons["malformed"]++
			continue
		}
		valid = append(valid, &readings[i])
	}
	if len(valid) == 0 {
		return result, nil
	}

	zoneCodes := encodeZones(valid)
	vectors := make([][]float64, 0, len(valid))
	for _, r := range valid {
		vectors = append(vectors, featureVector(r, zoneCodes))
	}

	predictions, err := a.scorer.ScoreBatch(ctx, AnomalyFeatureFields, vectors)
	if err != nil {
		return result, err
	}

	for i, p := range predictions {
		if p.Label != 1 {
			continue
		}
		r := valid[i]
		result.Records = append(result.Records, AnomalyRecord{
			Zone:       r.Zone,
			Timestamp:  r.Timestamp,
			Type:       ModelDetected,
			Source:     SourceModel,
			Confidence: p.Score,
			Metrics: MetricSnapshot{
				EnergyKWh:       r.EnergyKWh,
				ProductionUnits: r.ProductionUnits,
				TemperatureC:    r.TemperatureC,
				CompressedAirM3: r.CompressedAirM3,
			},
		})
	}

	klog.V(3).InfoS("Outlier model scored readings",
		"scored", len(valid),
		"flagged", len(result.Records),
		"skipped", result.Skipped)
	return result, nil
}

// featureVector builds one model input row in AnomalyFeatureFields order
func featureVector(r *telemetry.Reading, zoneCodes map[string]float64) []float64 {
	units := float64(r.ProductionUnits)
	denom := units
	if denom < 1 {
		denom = 1
	}
	return []float64{
		r.EnergyKWh,
		units,
		r.TemperatureC,
		r.CompressedAirM3,
		encodeShift(r.Shift),
		zoneCodes[r.Zone],
		r.EnergyKWh / denom,
		r.CompressedAirM3 / denom,
	}
}

// encodeShift maps shift identifiers to the categorical codes the model was
// trained with
func encodeShift(shift string) float64 {
	switch shift {
	case telemetry.ShiftA:
		return 0
	case telemetry.ShiftB:
		return 1
	case telemetry.ShiftC:
		return 2
	default:
		return -1
	}
}

// encodeZones assigns each distinct zone its categorical code: the index of
// the zone in the sorted distinct-zone list, matching the training encoder.
func encodeZones(readings []*telemetry.Reading) map[string]float64 {
	distinct := make(map[string]struct{})
	for _, r := range readings {
		distinct[r.Zone] = struct{}{}
	}
	zones := make([]string, 0, len(distinct))
	for zone := range distinct {
		zones = append(zones, zone)
	}
	sort.Strings(zones)

	codes := make(map[string]float64, len(zones))
	for i, zone := range zones {
		codes[zone] = float64(i)
	}
	return codes
}
