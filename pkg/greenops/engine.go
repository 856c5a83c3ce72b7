// Package greenops wires the detection, forecasting, and remediation
// components into one engine behind the HTTP surface and the sweep job.
package greenops

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"k8s.io/klog/v2"

	"github.com/plant-ops/greenops-engine/pkg/greenops/clock"
	"github.com/plant-ops/greenops-engine/pkg/greenops/config"
	"github.com/plant-ops/greenops-engine/pkg/greenops/detector"
	"github.com/plant-ops/greenops-engine/pkg/greenops/forecast"
	"github.com/plant-ops/greenops-engine/pkg/greenops/kpi"
	"github.com/plant-ops/greenops-engine/pkg/greenops/metrics"
	"github.com/plant-ops/greenops-engine/pkg/greenops/remediation"
	"github.com/plant-ops/greenops-engine/pkg/greenops/report"
	"github.com/plant-ops/greenops-engine/pkg/greenops/scoring"
	"github.com/plant-ops/greenops-engine/pkg/greenops/telemetry"
)

// ErrNoData is returned when a filter matches no readings
var ErrNoData = errors.New("no readings match the filter")

// Engine is the application facade. All operations are safe for concurrent
// use. Configuration lives in an immutable snapshot that UpdateConfig swaps
// atomically, so in-flight requests keep the snapshot they started with.
type Engine struct {
	store      telemetry.Store
	adapter    *detector.ScorerAdapter
	forecaster *forecast.Engine
	catalog    remediation.Catalog
	seq        remediation.SequenceGenerator
	clock      clock.Clock

	updateMu sync.Mutex // serializes UpdateConfig
	state    atomic.Pointer[engineState]
}

// engineState is one immutable configuration snapshot plus the components
// bound to it. Never mutated after Store; replaced wholesale on update.
type engineState struct {
	cfg     *config.Config
	rules   *detector.Rules
	planner *remediation.Planner
}

func newEngineState(cfg *config.Config, catalog remediation.Catalog, seq remediation.SequenceGenerator, c clock.Clock) *engineState {
	return &engineState{
		cfg:     cfg,
		rules:   detector.NewRules(&cfg.Detection),
		planner: remediation.NewPlanner(catalog, &cfg.Costs, &cfg.Remediation, seq, c),
	}
}

// New assembles an engine from its components
func New(cfg *config.Config, store telemetry.Store, scorer scoring.Scorer, regressor scoring.Regressor, c clock.Clock) (*Engine, error) {
	catalog, err := remediation.LoadCatalog(cfg.Remediation.CatalogPath)
	if err != nil {
		return nil, err
	}

	e := &Engine{
		store:      store,
		adapter:    detector.NewScorerAdapter(scorer),
		forecaster: forecast.NewEngine(regressor),
		catalog:    catalog,
		seq:        remediation.NewSequence(c),
		clock:      c,
	}
	e.state.Store(newEngineState(cfg, catalog, e.seq, c))
	return e, nil
}

// Config returns the current configuration snapshot. Callers must treat it
// as read-only; live updates go through UpdateConfig.
func (e *Engine) Config() *config.Config {
	return e.state.Load().cfg
}

// Clock returns the engine's time source
func (e *Engine) Clock() clock.Clock {
	return e.clock
}

// UpdateConfig replaces the detection thresholds and cost rates. The new
// snapshot is validated before it becomes visible; requests already running
// finish against the snapshot they loaded.
func (e *Engine) UpdateConfig(detection config.DetectionConfig, costs config.CostConfig) (*config.Config, error) {
	e.updateMu.Lock()
	defer e.updateMu.Unlock()

	next := *e.state.Load().cfg
	next.Detection = detection
	next.Costs = costs
	if err := next.Validate(); err != nil {
		return nil, err
	}

	e.state.Store(newEngineState(&next, e.catalog, e.seq, e.clock))
	klog.InfoS("Configuration updated",
		"paintIdleEnergyKWh", next.Detection.PaintIdleEnergyKWh,
		"currencyPerKWh", next.Costs.CurrencyPerKWh)
	return &next, nil
}

// DetectAnomalies runs rule-based detection over readings matching the filter
func (e *Engine) DetectAnomalies(ctx context.Context, filter telemetry.Filter) (detector.DetectionResult, error) {
	readings, err := e.store.Query(ctx, filter)
	if err != nil {
		return detector.DetectionResult{}, fmt.Errorf("failed to query readings: %w", err)
	}
	if len(readings) == 0 {
		return detector.DetectionResult{}, ErrNoData
	}

	result := e.state.Load().rules.Detect(readings)
	observeDetection(result)
	return result, nil
}

// DetectWithModel runs rule and model detection and fuses the two. A scoring
// failure degrades to rule-only output instead of failing the request; the
// result is labeled with the degradation so the caller can tell.
func (e *Engine) DetectWithModel(ctx context.Context, filter telemetry.Filter) (detector.DetectionResult, detector.FusionSummary, error) {
	result, summary, err := e.fuseDetect(ctx, filter)
	if err != nil {
		return detector.DetectionResult{}, detector.FusionSummary{}, err
	}
	observeDetection(result)
	return result, summary, nil
}

// CompareDetectors reports rule/model agreement without emitting records.
// A comparison query observes no detection metrics; only DetectWithModel
// counts toward the detection totals.
func (e *Engine) CompareDetectors(ctx context.Context, filter telemetry.Filter) (detector.FusionSummary, error) {
	_, summary, err := e.fuseDetect(ctx, filter)
	return summary, err
}

// fuseDetect is the shared rule+model path. Scoring request metrics are
// observed here because the scoring call happens either way; detection
// metrics are the caller's concern.
func (e *Engine) fuseDetect(ctx context.Context, filter telemetry.Filter) (detector.DetectionResult, detector.FusionSummary, error) {
	readings, err := e.store.Query(ctx, filter)
	if err != nil {
		return detector.DetectionResult{}, detector.FusionSummary{}, fmt.Errorf("failed to query readings: %w", err)
	}
	if len(readings) == 0 {
		return detector.DetectionResult{}, detector.FusionSummary{}, ErrNoData
	}

	st := e.state.Load()
	ruleResult := st.rules.Detect(readings)

	modelResult, err := e.adapter.Score(ctx, readings)
	if err != nil {
		if !errors.Is(err, scoring.ErrUnavailable) {
			return detector.DetectionResult{}, detector.FusionSummary{}, err
		}
		klog.ErrorS(err, "Outlier model unavailable, degrading to rule-only detection")
		metrics.ScoringRequests.WithLabelValues("anomaly", "unavailable").Inc()
		ruleResult.SkipReasons["model_unavailable"] = len(readings)
		summary := detector.FusionSummary{RuleOnly: len(ruleResult.Records)}
		return ruleResult, summary, nil
	}
	metrics.ScoringRequests.WithLabelValues("anomaly", "success").Inc()

	fused, summary := detector.Fuse(ruleResult.Records, modelResult.Records, st.cfg.Scoring.ScoreThreshold)
	result := detector.DetectionResult{
		Records:     fused,
		Skipped:     ruleResult.Skipped,
		SkipReasons: ruleResult.SkipReasons,
	}
	return result, summary, nil
}

// ForecastEnergy predicts the next horizon hours of energy for a zone from
// its stored hourly history
func (e *Engine) ForecastEnergy(ctx context.Context, zone string, horizon int) (*forecast.Result, error) {
	series, err := e.store.HourlyEnergy(ctx, telemetry.Filter{Zone: zone})
	if err != nil {
		return nil, fmt.Errorf("failed to load energy history: %w", err)
	}
	if len(series) == 0 {
		return nil, ErrNoData
	}

	start := e.clock.Now()
	result, err := e.forecaster.Forecast(ctx, zone, series, horizon)
	if err != nil {
		metrics.ForecastDuration.WithLabelValues("error").Observe(e.clock.Since(start).Seconds())
		return nil, err
	}
	metrics.ForecastDuration.WithLabelValues("success").Observe(e.clock.Since(start).Seconds())
	return result, nil
}

// PlanRemediations detects anomalies and plans work orders for them
func (e *Engine) PlanRemediations(ctx context.Context, filter telemetry.Filter) (remediation.PlanResult, error) {
	detected, err := e.DetectAnomalies(ctx, filter)
	if err != nil {
		return remediation.PlanResult{}, err
	}

	planned, err := e.state.Load().planner.PlanAll(detected.Records)
	if err != nil {
		return planned, err
	}
	observePlanning(planned)
	return planned, nil
}

// RankPriorities plans remediations and returns them ranked by weighted
// annual cost
func (e *Engine) RankPriorities(ctx context.Context, filter telemetry.Filter, opts remediation.RankOptions) ([]remediation.RankedOrder, error) {
	planned, err := e.PlanRemediations(ctx, filter)
	if err != nil {
		return nil, err
	}
	return remediation.Rank(planned.Orders, opts), nil
}

// ComputeKPIs aggregates efficiency indicators over readings matching the
// filter
func (e *Engine) ComputeKPIs(ctx context.Context, filter telemetry.Filter) (kpi.Summary, error) {
	readings, err := e.store.Query(ctx, filter)
	if err != nil {
		return kpi.Summary{}, fmt.Errorf("failed to query readings: %w", err)
	}
	if len(readings) == 0 {
		return kpi.Summary{}, ErrNoData
	}
	return kpi.Compute(readings), nil
}

// GenerateReport builds the full sustainability report for readings matching
// the filter
func (e *Engine) GenerateReport(ctx context.Context, filter telemetry.Filter) (*report.Report, error) {
	readings, err := e.store.Query(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to query readings: %w", err)
	}
	if len(readings) == 0 {
		return nil, ErrNoData
	}

	st := e.state.Load()
	kpis := kpi.Compute(readings)
	detected := st.rules.Detect(readings)
	observeDetection(detected)

	planned, err := st.planner.PlanAll(detected.Records)
	if err != nil {
		return nil, err
	}
	observePlanning(planned)

	return report.New(e.clock.Now(), kpis, detected.Records, planned.Orders), nil
}

// Notifications renders alert payloads for a batch of work orders
func (e *Engine) Notifications(orders []remediation.WorkOrder) []remediation.Notification {
	out := make([]remediation.Notification, 0, len(orders))
	for i := range orders {
		out = append(out, remediation.BuildNotification(&orders[i]))
	}
	return out
}

func observeDetection(result detector.DetectionResult) {
	for _, r := range result.Records {
		metrics.AnomaliesDetected.WithLabelValues(string(r.Type), string(r.Source)).Inc()
	}
	for reason, n := range result.SkipReasons {
		metrics.ReadingsSkipped.WithLabelValues(reason).Add(float64(n))
	}
}

func observePlanning(result remediation.PlanResult) {
	waste := make(map[string]float64)
	for i := range result.Orders {
		o := &result.Orders[i]
		metrics.WorkOrdersCreated.WithLabelValues(string(o.AnomalyType), string(o.Severity)).Inc()
		waste[o.Zone] += o.Impact.PerYear
	}
	for zone, total := range waste {
		metrics.ProjectedAnnualWaste.WithLabelValues(zone).Set(total)
	}
}
