package forecast

import (
	"errors"
	"time"
)

const (
	// MaxHorizonHours caps a forecast request at one week. Recursive
	// prediction compounds error with every step; beyond a week the output
	// is noise dressed as data.
	MaxHorizonHours = 168

	// FullHistoryHours is the depth at which every lag feature is a true
	// observation: the deepest lag looks back 24 hours. Shorter series still
	// forecast, with the missing lags padded from the window mean, at
	// reduced accuracy.
	FullHistoryHours = 24
)

var (
	// ErrInvalidHorizon is returned for horizons outside 1..MaxHorizonHours
	ErrInvalidHorizon = errors.New("forecast horizon out of range")

	// ErrServiceUnavailable is returned when the regression backend fails
	// mid-forecast. No partial series is returned: a truncated forecast
	// would silently shift every downstream hour offset.
	ErrServiceUnavailable = errors.New("forecast service unavailable")

	// ErrNonContiguousSeries is returned when the input history has gaps or
	// is not aligned to hour boundaries
	ErrNonContiguousSeries = errors.New("energy series is not hourly contiguous")

	// ErrInsufficientHistory is returned when there is no history at all.
	// A short series is not a failure; it pads and forecasts.
	ErrInsufficientHistory = errors.New("not enough energy history to forecast")
)

// Point is one forecast step. HourOffset counts from 1: the first predicted
// hour after the last observed one.
type Point struct {
	HourOffset         int       `json:"hour_offset"`
	Timestamp          time.Time `json:"timestamp"`
	PredictedEnergyKWh float64   `json:"predicted_energy_kwh"`
}

// Result carries a complete forecast for one zone
type Result struct {
	Zone    string  `json:"zone_id"`
	Horizon int     `json:"horizon_hours"`
	Points  []Point `json:"points"`
}
