package forecast

import (
	"math"
	"time"
)

// lagHours are the autoregressive offsets the regression model was trained
// with, deepest last
var lagHours = [5]int{1, 3, 6, 12, 24}

// rollingWindowHours is the span of the trailing mean/std features
const rollingWindowHours = 24

// FeatureFields is the regression model's input contract. Order and naming
// must match the deployment's training data exactly.
var FeatureFields = []string{
	"lag_1h",
	"lag_3h",
	"lag_6h",
	"lag_12h",
	"lag_24h",
	"rolling_mean_24h",
	"rolling_std_24h",
	"hour",
	"day_of_week",
	"is_weekend",
}

// featureVector builds one regression input row for the hour at ts, given the
// energy series so far (observed history plus any earlier predictions). Lags
// deeper than the series stand in as the window mean, so a short history
// degrades accuracy instead of blocking the forecast.
func featureVector(series []float64, ts time.Time) []float64 {
	n := len(series)

	window := series
	if n > rollingWindowHours {
		window = series[n-rollingWindowHours:]
	}
	mean, std := meanStd(window)

	row := make([]float64, 0, len(FeatureFields))
	for _, lag := range lagHours {
		if lag <= n {
			row = append(row, series[n-lag])
		} else {
			row = append(row, mean)
		}
	}
	row = append(row, mean, std)

	row = append(row,
		float64(ts.Hour()),
		float64(calendarWeekday(ts)),
		isWeekend(ts),
	)
	return row
}

// calendarWeekday maps to Monday=0..Sunday=6, the encoding pandas uses and
// the model was trained with; Go's time.Weekday starts at Sunday.
func calendarWeekday(ts time.Time) int {
	return (int(ts.Weekday()) + 6) % 7
}

func isWeekend(ts time.Time) float64 {
	if calendarWeekday(ts) >= 5 {
		return 1
	}
	return 0
}

// meanStd computes the window mean and population standard deviation
func meanStd(window []float64) (float64, float64) {
	if len(window) == 0 {
		return 0, 0
	}
	sum := 0.0
	for _, v := range window {
		sum += v
	}
	mean := sum / float64(len(window))

	variance := 0.0
	for _, v := range window {
		d := v - mean
		variance += d * d
	}
	variance /= float64(len(window))
	return mean, math.Sqrt(variance)
}
