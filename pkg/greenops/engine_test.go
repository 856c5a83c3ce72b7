package greenops

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/plant-ops/greenops-engine/pkg/greenops/clock"
	"github.com/plant-ops/greenops-engine/pkg/greenops/config"
	"github.com/plant-ops/greenops-engine/pkg/greenops/detector"
	"github.com/plant-ops/greenops-engine/pkg/greenops/metrics"
	"github.com/plant-ops/greenops-engine/pkg/greenops/remediation"
	"github.com/plant-ops/greenops-engine/pkg/greenops/scoring"
	"github.com/plant-ops/greenops-engine/pkg/greenops/scoring/mock"
	"github.com/plant-ops/greenops-engine/pkg/greenops/telemetry"
)

var engineNow = time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.LoadFromEnv()
	if err != nil {
		t.Fatalf("failed to load default config: %v", err)
	}
	return cfg
}

func seedStore(t *testing.T, readings []telemetry.Reading) telemetry.Store {
	t.Helper()
	store := telemetry.NewMemoryStore()
	if _, err := store.Insert(context.Background(), readings); err != nil {
		t.Fatalf("failed to seed store: %v", err)
	}
	return store
}

func paintIdleReading(hour int) telemetry.Reading {
	return telemetry.Reading{
		Zone:         "ZONE-PAINT-SHOP",
		Timestamp:    time.Date(2025, 6, 2, hour, 0, 0, 0, time.UTC),
		EnergyKWh:    150,
		TemperatureC: 21,
		Shift:        telemetry.ShiftA,
		Status:       telemetry.StatusOperational,
	}
}

func newTestEngine(t *testing.T, store telemetry.Store, scorer *mock.MockScorer) *Engine {
	t.Helper()
	engine, err := New(testConfig(t), store, scorer, scorer, clock.NewMockClock(engineNow))
	if err != nil {
		t.Fatalf("failed to build engine: %v", err)
	}
	return engine
}

func TestDetectAnomaliesNoData(t *testing.T) {
	engine := newTestEngine(t, telemetry.NewMemoryStore(), &mock.MockScorer{})

	_, err := engine.DetectAnomalies(context.Background(), telemetry.Filter{})
	if !errors.Is(err, ErrNoData) {
		t.Fatalf("got %v, want ErrNoData", err)
	}
}

func TestDetectAnomaliesRuleOnly(t *testing.T) {
	store := seedStore(t, []telemetry.Reading{paintIdleReading(3)})
	engine := newTestEngine(t, store, &mock.MockScorer{})

	result, err := engine.DetectAnomalies(context.Background(), telemetry.Filter{})
	if err != nil {
		t.Fatalf("DetectAnomalies failed: %v", err)
	}
	if len(result.Records) != 1 || result.Records[0].Type != detector.PaintOvenIdle {
		t.Fatalf("got %+v, want one paint oven idle record", result.Records)
	}
}

func TestDetectWithModelFusesAgreement(t *testing.T) {
	store := seedStore(t, []telemetry.Reading{paintIdleReading(3)})
	scorer := &mock.MockScorer{
		ScoreBatchFunc: func(ctx context.Context, fields []string, vectors [][]float64) ([]scoring.Prediction, error) {
			predictions := make([]scoring.Prediction, len(vectors))
			for i := range predictions {
				predictions[i] = scoring.Prediction{Label: 1, Score: 0.9}
			}
			return predictions, nil
		},
	}
	engine := newTestEngine(t, store, scorer)

	result, summary, err := engine.DetectWithModel(context.Background(), telemetry.Filter{})
	if err != nil {
		t.Fatalf("DetectWithModel failed: %v", err)
	}
	if summary.Agreed != 1 {
		t.Errorf("summary = %+v, want 1 agreed", summary)
	}
	if len(result.Records) != 1 || result.Records[0].Source != detector.SourceFused {
		t.Fatalf("got %+v, want one fused record", result.Records)
	}
}

func TestDetectWithModelDegradesWhenUnavailable(t *testing.T) {
	store := seedStore(t, []telemetry.Reading{paintIdleReading(3)})
	scorer := &mock.MockScorer{
		ScoreBatchFunc: func(ctx context.Context, fields []string, vectors [][]float64) ([]scoring.Prediction, error) {
			return nil, scoring.ErrUnavailable
		},
	}
	engine := newTestEngine(t, store, scorer)

	result, summary, err := engine.DetectWithModel(context.Background(), telemetry.Filter{})
	if err != nil {
		t.Fatalf("DetectWithModel should degrade, got error: %v", err)
	}
	if len(result.Records) != 1 || result.Records[0].Source != detector.SourceRule {
		t.Fatalf("got %+v, want the rule record", result.Records)
	}
	if _, degraded := result.SkipReasons["model_unavailable"]; !degraded {
		t.Errorf("skip reasons = %v, want the degradation labeled", result.SkipReasons)
	}
	if summary.RuleOnly != 1 || summary.Agreed != 0 {
		t.Errorf("summary = %+v, want rule-only", summary)
	}
}

func TestPlanRemediationsEndToEnd(t *testing.T) {
	store := seedStore(t, []telemetry.Reading{paintIdleReading(3)})
	engine := newTestEngine(t, store, &mock.MockScorer{})

	planned, err := engine.PlanRemediations(context.Background(), telemetry.Filter{})
	if err != nil {
		t.Fatalf("PlanRemediations failed: %v", err)
	}
	if len(planned.Orders) != 1 {
		t.Fatalf("got %d orders, want 1", len(planned.Orders))
	}
	order := planned.Orders[0]
	if order.AnomalyType != detector.PaintOvenIdle || order.Status != remediation.StatusOpen {
		t.Errorf("order = %+v, want an open paint oven idle order", order)
	}
	if order.Impact.PerYear <= 0 {
		t.Errorf("annual impact = %v, want positive", order.Impact.PerYear)
	}
}

func TestRankPrioritiesLimit(t *testing.T) {
	store := seedStore(t, []telemetry.Reading{
		paintIdleReading(3),
		paintIdleReading(4),
		paintIdleReading(5),
	})
	engine := newTestEngine(t, store, &mock.MockScorer{})

	ranked, err := engine.RankPriorities(context.Background(), telemetry.Filter{}, remediation.RankOptions{Limit: 2})
	if err != nil {
		t.Fatalf("RankPriorities failed: %v", err)
	}
	if len(ranked) != 2 {
		t.Fatalf("got %d ranked orders, want 2", len(ranked))
	}
}

func TestForecastEnergyFromStore(t *testing.T) {
	readings := make([]telemetry.Reading, 0, 48)
	for i := 0; i < 48; i++ {
		readings = append(readings, telemetry.Reading{
			Zone:         "ZONE-ASSEMBLY",
			Timestamp:    time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(i) * time.Hour),
			EnergyKWh:    100,
			TemperatureC: 21,
			Status:       telemetry.StatusOperational,
		})
	}
	store := seedStore(t, readings)

	scorer := &mock.MockScorer{
		PredictScalarFunc: func(ctx context.Context, fields []string, vector []float64) (float64, error) {
			return vector[0], nil
		},
	}
	engine := newTestEngine(t, store, scorer)

	result, err := engine.ForecastEnergy(context.Background(), "ZONE-ASSEMBLY", 24)
	if err != nil {
		t.Fatalf("ForecastEnergy failed: %v", err)
	}
	if len(result.Points) != 24 {
		t.Fatalf("got %d points, want 24", len(result.Points))
	}
}

func TestCompareDetectorsDoesNotCountDetections(t *testing.T) {
	store := seedStore(t, []telemetry.Reading{paintIdleReading(3)})
	scorer := &mock.MockScorer{
		ScoreBatchFunc: func(ctx context.Context, fields []string, vectors [][]float64) ([]scoring.Prediction, error) {
			predictions := make([]scoring.Prediction, len(vectors))
			for i := range predictions {
				predictions[i] = scoring.Prediction{Label: 1, Score: 0.9}
			}
			return predictions, nil
		},
	}
	engine := newTestEngine(t, store, scorer)

	counter := metrics.AnomaliesDetected.WithLabelValues(string(detector.PaintOvenIdle), string(detector.SourceFused))
	before := testutil.ToFloat64(counter)

	if _, err := engine.CompareDetectors(context.Background(), telemetry.Filter{}); err != nil {
		t.Fatalf("CompareDetectors failed: %v", err)
	}
	if got := testutil.ToFloat64(counter); got != before {
		t.Errorf("comparison moved the detection counter from %v to %v", before, got)
	}

	if _, _, err := engine.DetectWithModel(context.Background(), telemetry.Filter{}); err != nil {
		t.Fatalf("DetectWithModel failed: %v", err)
	}
	if got := testutil.ToFloat64(counter); got != before+1 {
		t.Errorf("detection counter = %v, want %v after a real detection", got, before+1)
	}
}

func TestUpdateConfigSwapsThresholds(t *testing.T) {
	store := seedStore(t, []telemetry.Reading{paintIdleReading(3)})
	engine := newTestEngine(t, store, &mock.MockScorer{})

	cfg := engine.Config()
	detection := cfg.Detection
	detection.PaintIdleEnergyKWh = 500
	if _, err := engine.UpdateConfig(detection, cfg.Costs); err != nil {
		t.Fatalf("UpdateConfig failed: %v", err)
	}

	result, err := engine.DetectAnomalies(context.Background(), telemetry.Filter{})
	if err != nil {
		t.Fatalf("DetectAnomalies failed: %v", err)
	}
	if len(result.Records) != 0 {
		t.Errorf("got %d records, want none after raising the threshold", len(result.Records))
	}

	// An invalid update is rejected and the current snapshot stands
	detection.PaintIdleEnergyKWh = -1
	if _, err := engine.UpdateConfig(detection, cfg.Costs); err == nil {
		t.Fatal("UpdateConfig accepted a negative threshold")
	}
	if got := engine.Config().Detection.PaintIdleEnergyKWh; got != 500 {
		t.Errorf("threshold = %v, want the last valid value 500", got)
	}
}

func TestUpdateConfigConcurrentWithDetection(t *testing.T) {
	store := seedStore(t, []telemetry.Reading{paintIdleReading(3)})
	engine := newTestEngine(t, store, &mock.MockScorer{})
	base := *engine.Config()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func(threshold float64) {
			defer wg.Done()
			detection := base.Detection
			detection.PaintIdleEnergyKWh = threshold
			if _, err := engine.UpdateConfig(detection, base.Costs); err != nil {
				t.Errorf("UpdateConfig failed: %v", err)
			}
		}(float64(120 + i))
		go func() {
			defer wg.Done()
			if _, err := engine.DetectAnomalies(context.Background(), telemetry.Filter{}); err != nil {
				t.Errorf("DetectAnomalies failed: %v", err)
			}
		}()
	}
	wg.Wait()
}

func TestGenerateReport(t *testing.T) {
	store := seedStore(t, []telemetry.Reading{paintIdleReading(3)})
	engine := newTestEngine(t, store, &mock.MockScorer{})

	rpt, err := engine.GenerateReport(context.Background(), telemetry.Filter{})
	if err != nil {
		t.Fatalf("GenerateReport failed: %v", err)
	}
	if rpt.KPIs.TotalEnergyKWh != 150 {
		t.Errorf("report energy = %v, want 150", rpt.KPIs.TotalEnergyKWh)
	}
	if len(rpt.Anomalies) != 1 || len(rpt.WorkOrders) != 1 {
		t.Errorf("report carries %d anomalies and %d orders, want 1 and 1",
			len(rpt.Anomalies), len(rpt.WorkOrders))
	}
	if text := rpt.Text(); text == "" {
		t.Error("text rendering is empty")
	}
}
