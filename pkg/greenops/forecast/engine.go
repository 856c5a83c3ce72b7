package forecast

import (
	"context"
	"fmt"
	"time"

	"k8s.io/klog/v2"

	"github.com/plant-ops/greenops-engine/pkg/greenops/scoring"
	"github.com/plant-ops/greenops-engine/pkg/greenops/telemetry"
)

// Engine produces recursive hourly energy forecasts through a regression
// backend. Each predicted hour is appended to the lag buffer before the next
// hour is requested, so steps are strictly sequential.
type Engine struct {
	regressor scoring.Regressor
}

// NewEngine creates a forecast engine over a regression backend
func NewEngine(regressor scoring.Regressor) *Engine {
	return &Engine{regressor: regressor}
}

// Forecast predicts the next horizon hours of energy consumption for one
// zone. The series must be hourly-contiguous observed history, oldest first.
// On any backend failure the whole request fails; a partial forecast would
// shift every later hour offset and is worse than no forecast.
func (e *Engine) Forecast(ctx context.Context, zone string, series []telemetry.HourlyEnergy, horizon int) (*Result, error) {
	if horizon < 1 || horizon > MaxHorizonHours {
		return nil, fmt.Errorf("%w: %d (want 1..%d)", ErrInvalidHorizon, horizon, MaxHorizonHours)
	}
	if len(series) == 0 {
		return nil, fmt.Errorf("%w: the series is empty", ErrInsufficientHistory)
	}
	if err := checkContiguous(series); err != nil {
		return nil, err
	}
	if len(series) < FullHistoryHours {
		klog.V(2).InfoS("Forecasting from short history, padding missing lags from the window mean",
			"zone", zone,
			"historyHours", len(series),
			"fullHistoryHours", FullHistoryHours)
	}

	energy := make([]float64, 0, len(series)+horizon)
	for _, h := range series {
		energy = append(energy, h.EnergyKWh)
	}
	last := series[len(series)-1].Timestamp

	result := &Result{
		Zone:    zone,
		Horizon: horizon,
		Points:  make([]Point, 0, horizon),
	}

	for step := 1; step <= horizon; step++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("forecast canceled at step %d: %w", step, err)
		}

		ts := last.Add(time.Duration(step) * time.Hour)
		row := featureVector(energy, ts)

		predicted, err := e.regressor.PredictScalar(ctx, FeatureFields, row)
		if err != nil {
			klog.ErrorS(err, "Regression backend failed mid-forecast",
				"zone", zone,
				"step", step,
				"horizon", horizon)
			return nil, fmt.Errorf("%w: step %d of %d: %v", ErrServiceUnavailable, step, horizon, err)
		}
		if predicted < 0 {
			// The model can extrapolate below zero near the start of quiet
			// periods; energy consumption cannot.
			predicted = 0
		}

		energy = append(energy, predicted)
		result.Points = append(result.Points, Point{
			HourOffset:         step,
			Timestamp:          ts,
			PredictedEnergyKWh: predicted,
		})
	}

	klog.V(2).InfoS("Forecast complete",
		"zone", zone,
		"horizon", horizon,
		"historyHours", len(series))
	return result, nil
}

// checkContiguous verifies the series is aligned to hour boundaries with no
// gaps and no duplicates. Silently interpolating a gap would teach the model
// an energy profile the plant never had.
func checkContiguous(series []telemetry.HourlyEnergy) error {
	for i := range series {
		ts := series[i].Timestamp
		if !ts.Truncate(time.Hour).Equal(ts) {
			return fmt.Errorf("%w: %s is not on an hour boundary", ErrNonContiguousSeries, ts.Format(time.RFC3339))
		}
		if i == 0 {
			continue
		}
		if got := ts.Sub(series[i-1].Timestamp); got != time.Hour {
			return fmt.Errorf("%w: %s to %s spans %s, want 1h",
				ErrNonContiguousSeries,
				series[i-1].Timestamp.Format(time.RFC3339),
				ts.Format(time.RFC3339),
				got)
		}
	}
	return nil
}
