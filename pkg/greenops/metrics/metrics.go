// Package metrics defines the Prometheus instrumentation for the engine
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// AnomaliesDetected counts detections by type and source
	AnomaliesDetected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "greenops_anomalies_detected_total",
			Help: "Number of anomalies detected, by type and detector source",
		},
		[]string{"type", "source"},
	)

	// ReadingsSkipped counts malformed readings dropped during detection
	ReadingsSkipped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "greenops_readings_skipped_total",
			Help: "Number of readings skipped during detection, by reason",
		},
		[]string{"reason"},
	)

	// ScoringRequests counts calls to the external scoring deployments
	ScoringRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "greenops_scoring_requests_total",
			Help: "Number of scoring service requests, by deployment and outcome",
		},
		[]string{"deployment", "outcome"},
	)

	// ForecastDuration observes end-to-end recursive forecast latency
	ForecastDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "greenops_forecast_duration_seconds",
			Help:    "Recursive forecast duration by horizon bucket",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
		},
		[]string{"outcome"},
	)

	// WorkOrdersCreated counts planned work orders by severity
	WorkOrdersCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "greenops_work_orders_created_total",
			Help: "Number of work orders created, by anomaly type and severity",
		},
		[]string{"type", "severity"},
	)

	// ProjectedAnnualWaste gauges the annual cost of currently open work
	ProjectedAnnualWaste = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "greenops_projected_annual_waste_dollars",
			Help: "Projected annual cost of unremediated anomalies, by zone",
		},
		[]string{"zone"},
	)
)

func init() {
	prometheus.MustRegister(AnomaliesDetected)
	prometheus.MustRegister(ReadingsSkipped)
	prometheus.MustRegister(ScoringRequests)
	prometheus.MustRegister(ForecastDuration)
	prometheus.MustRegister(WorkOrdersCreated)
	prometheus.MustRegister(ProjectedAnnualWaste)
}
