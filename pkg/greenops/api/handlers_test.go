package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	greenops "github.com/plant-ops/greenops-engine/pkg/greenops"
	"github.com/plant-ops/greenops-engine/pkg/greenops/clock"
	"github.com/plant-ops/greenops-engine/pkg/greenops/config"
	"github.com/plant-ops/greenops-engine/pkg/greenops/scoring"
	"github.com/plant-ops/greenops-engine/pkg/greenops/scoring/mock"
	"github.com/plant-ops/greenops-engine/pkg/greenops/telemetry"
)

func testServer(t *testing.T, readings []telemetry.Reading, scorer *mock.MockScorer) *Server {
	t.Helper()

	cfg, err := config.LoadFromEnv()
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	store := telemetry.NewMemoryStore()
	if _, err := store.Insert(context.Background(), readings); err != nil {
		t.Fatalf("failed to seed store: %v", err)
	}

	c := clock.NewMockClock(time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC))
	engine, err := greenops.New(cfg, store, scorer, scorer, c)
	if err != nil {
		t.Fatalf("failed to build engine: %v", err)
	}
	return NewServer(engine, &cfg.Server)
}

func paintReadings() []telemetry.Reading {
	return []telemetry.Reading{{
		Zone:         "ZONE-PAINT-SHOP",
		Timestamp:    time.Date(2025, 6, 2, 3, 0, 0, 0, time.UTC),
		EnergyKWh:    150,
		TemperatureC: 21,
		Shift:        telemetry.ShiftA,
		Status:       telemetry.StatusOperational,
	}}
}

func doRequest(t *testing.T, s *Server, method, target string, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	rec := httptest.NewRecorder()
	s.http.Handler.ServeHTTP(rec, req)
	return rec
}

func TestDetectAnomaliesEndpoint(t *testing.T) {
	s := testServer(t, paintReadings(), &mock.MockScorer{})

	rec := doRequest(t, s, http.MethodGet, "/api/v1/detect-anomalies", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}

	var body struct {
		Records []struct {
			Type string `json:"anomaly_type"`
			Zone string `json:"zone_id"`
		} `json:"records"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(body.Records) != 1 || body.Records[0].Type != "PAINT_OVEN_IDLE" {
		t.Fatalf("body = %s, want one paint oven idle record", rec.Body.String())
	}
}

func TestDetectAnomaliesNoDataMapsTo404(t *testing.T) {
	s := testServer(t, nil, &mock.MockScorer{})

	rec := doRequest(t, s, http.MethodGet, "/api/v1/detect-anomalies", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestPredictEnergyValidation(t *testing.T) {
	s := testServer(t, paintReadings(), &mock.MockScorer{})

	cases := []struct {
		name   string
		target string
		want   int
	}{
		{"missing zone", "/api/v1/predict-energy", http.StatusBadRequest},
		{"bad hours", "/api/v1/predict-energy?zone=Z&hours=abc", http.StatusBadRequest},
		{"horizon too large", "/api/v1/predict-energy?zone=ZONE-PAINT-SHOP&hours=200", http.StatusBadRequest},
		{"zone without data", "/api/v1/predict-energy?zone=ZONE-NONE&hours=24", http.StatusNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := doRequest(t, s, http.MethodGet, tc.target, "")
			if rec.Code != tc.want {
				t.Errorf("status = %d, want %d: %s", rec.Code, tc.want, rec.Body.String())
			}
		})
	}
}

func TestPredictEnergyUnavailableMapsTo503(t *testing.T) {
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
	scorer := &mock.MockScorer{
		PredictScalarFunc: func(ctx context.Context, fields []string, vector []float64) (float64, error) {
			return 0, scoring.ErrUnavailable
		},
	}
	s := testServer(t, readings, scorer)

	rec := doRequest(t, s, http.MethodGet, "/api/v1/predict-energy?zone=ZONE-ASSEMBLY&hours=24", "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503: %s", rec.Code, rec.Body.String())
	}
}

func TestReportTextFormat(t *testing.T) {
	s := testServer(t, paintReadings(), &mock.MockScorer{})

	rec := doRequest(t, s, http.MethodGet, "/api/v1/report?format=text", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Errorf("content type = %q, want text/plain", ct)
	}
	if !strings.Contains(rec.Body.String(), "SUSTAINABILITY REPORT") {
		t.Errorf("body does not look like the text report: %s", rec.Body.String())
	}
}

func TestConfigEndpointHidesAPIKey(t *testing.T) {
	t.Setenv("SCORING_API_KEY", "secret")
	s := testServer(t, paintReadings(), &mock.MockScorer{})

	rec := doRequest(t, s, http.MethodGet, "/api/v1/config", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "secret") {
		t.Error("config response leaked the API key")
	}
}

func TestPutConfigValidatesAndApplies(t *testing.T) {
	s := testServer(t, paintReadings(), &mock.MockScorer{})

	// An invalid update is rejected outright
	rec := doRequest(t, s, http.MethodPut, "/api/v1/config",
		`{"detection":{"paintZonePattern":""}}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("invalid update: status = %d, want 400", rec.Code)
	}

	// A valid update raises the paint idle threshold above the test reading
	update := map[string]interface{}{
		"detection": map[string]interface{}{
			"paintZonePattern":         "PAINT",
			"paintIdleEnergyKWh":       500,
			"airLeakM3":                90,
			"hvacLowTempC":             19,
			"hvacMaxKWhPerM2":          0.35,
			"standbyMaxKWh":            45,
			"efficiencyDropMultiplier": 1.5,
			"baselineWindowHours":      24,
			"defaultZoneAreaM2":        2000,
		},
	}
	body, _ := json.Marshal(update)
	rec = doRequest(t, s, http.MethodPut, "/api/v1/config", string(body))
	if rec.Code != http.StatusOK {
		t.Fatalf("valid update: status = %d, want 200: %s", rec.Code, rec.Body.String())
	}

	rec = doRequest(t, s, http.MethodGet, "/api/v1/detect-anomalies", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("detect after update: status = %d, want 200", rec.Code)
	}
	var result struct {
		Records []json.RawMessage `json:"records"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatal(err)
	}
	if len(result.Records) != 0 {
		t.Errorf("got %d records, want none after raising the threshold", len(result.Records))
	}
}

func TestPutConfigConcurrentWithDetection(t *testing.T) {
	s := testServer(t, paintReadings(), &mock.MockScorer{})

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func(threshold float64) {
			defer wg.Done()
			update := map[string]interface{}{
				"detection": map[string]interface{}{
					"paintZonePattern":         "PAINT",
					"paintIdleEnergyKWh":       threshold,
					"airLeakM3":                90,
					"hvacLowTempC":             19,
					"hvacMaxKWhPerM2":          0.35,
					"standbyMaxKWh":            45,
					"efficiencyDropMultiplier": 1.5,
					"baselineWindowHours":      24,
					"defaultZoneAreaM2":        2000,
				},
			}
			body, _ := json.Marshal(update)
			if rec := doRequest(t, s, http.MethodPut, "/api/v1/config", string(body)); rec.Code != http.StatusOK {
				t.Errorf("config update: status = %d: %s", rec.Code, rec.Body.String())
			}
		}(float64(120 + i))
		go func() {
			defer wg.Done()
			if rec := doRequest(t, s, http.MethodGet, "/api/v1/detect-anomalies", ""); rec.Code != http.StatusOK {
				t.Errorf("detect: status = %d: %s", rec.Code, rec.Body.String())
			}
		}()
	}
	wg.Wait()
}

func TestSweepFilterUsesInjectedClock(t *testing.T) {
	now := time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)

	filter := sweepFilter(clock.NewMockClock(now))
	if want := now.Add(-24 * time.Hour); !filter.From.Equal(want) {
		t.Errorf("sweep window start = %s, want %s", filter.From, want)
	}
	if !filter.To.IsZero() {
		t.Errorf("sweep window end = %s, want open", filter.To)
	}
}

func TestHealthz(t *testing.T) {
	s := testServer(t, nil, &mock.MockScorer{})
	rec := doRequest(t, s, http.MethodGet, "/healthz", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}
