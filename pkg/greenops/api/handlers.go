package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"k8s.io/klog/v2"

	greenops "github.com/plant-ops/greenops-engine/pkg/greenops"
	"github.com/plant-ops/greenops-engine/pkg/greenops/clock"
	"github.com/plant-ops/greenops-engine/pkg/greenops/config"
	"github.com/plant-ops/greenops-engine/pkg/greenops/forecast"
	"github.com/plant-ops/greenops-engine/pkg/greenops/remediation"
	"github.com/plant-ops/greenops-engine/pkg/greenops/scoring"
	"github.com/plant-ops/greenops-engine/pkg/greenops/telemetry"
)

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleDetectAnomalies(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	result, err := s.engine.DetectAnomalies(r.Context(), filter)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleDetectFused(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	result, summary, err := s.engine.DetectWithModel(r.Context(), filter)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"result":  result,
		"summary": summary,
	})
}

func (s *Server) handleCompareDetectors(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	summary, err := s.engine.CompareDetectors(r.Context(), filter)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handlePredictEnergy(w http.ResponseWriter, r *http.Request) {
	zone := r.URL.Query().Get("zone")
	if zone == "" {
		writeError(w, http.StatusBadRequest, errors.New("zone parameter is required"))
		return
	}
	horizon := 24
	if v := r.URL.Query().Get("hours"); v != "" {
		h, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, errors.New("hours must be an integer"))
			return
		}
		horizon = h
	}

	result, err := s.engine.ForecastEnergy(r.Context(), zone, horizon)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handlePlanActions(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	planned, err := s.engine.PlanRemediations(r.Context(), filter)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, planned)
}

func (s *Server) handlePriorities(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	opts := remediation.RankOptions{Zone: r.URL.Query().Get("rank_zone")}
	if v := r.URL.Query().Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 0 {
			writeError(w, http.StatusBadRequest, errors.New("limit must be a non-negative integer"))
			return
		}
		opts.Limit = limit
	}

	ranked, err := s.engine.RankPriorities(r.Context(), filter, opts)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ranked)
}

func (s *Server) handleKPIs(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	summary, err := s.engine.ComputeKPIs(r.Context(), filter)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	rpt, err := s.engine.GenerateReport(r.Context(), filter)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	if r.URL.Query().Get("format") == "text" {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(rpt.Text()))
		return
	}
	writeJSON(w, http.StatusOK, rpt)
}

func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	cfg := *s.engine.Config()
	cfg.Scoring.APIKey = "" // Never echo credentials
	writeJSON(w, http.StatusOK, cfg)
}

// handlePutConfig replaces the detection thresholds and cost rates. The
// engine swaps in a validated snapshot atomically; requests already running
// finish against the snapshot they started with.
func (s *Server) handlePutConfig(w http.ResponseWriter, r *http.Request) {
	var update struct {
		Detection *config.DetectionConfig `json:"detection"`
		Costs     *config.CostConfig      `json:"costs"`
	}
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		writeError(w, http.StatusBadRequest, errors.New("invalid config payload"))
		return
	}

	current := s.engine.Config()
	detection := current.Detection
	costs := current.Costs
	if update.Detection != nil {
		detection = *update.Detection
	}
	if update.Costs != nil {
		costs = *update.Costs
	}

	applied, err := s.engine.UpdateConfig(detection, costs)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	echo := *applied
	echo.Scoring.APIKey = ""
	writeJSON(w, http.StatusOK, echo)
}

// parseFilter reads the common query filters
func parseFilter(r *http.Request) (telemetry.Filter, error) {
	q := r.URL.Query()
	filter := telemetry.Filter{
		Zone:   q.Get("zone"),
		Shift:  q.Get("shift"),
		Status: q.Get("status"),
	}

	if v := q.Get("from"); v != "" {
		t, err := parseTime(v)
		if err != nil {
			return filter, errors.New("from must be RFC3339 or YYYY-MM-DD")
		}
		filter.From = t
	}
	if v := q.Get("to"); v != "" {
		t, err := parseTime(v)
		if err != nil {
			return filter, errors.New("to must be RFC3339 or YYYY-MM-DD")
		}
		filter.To = t
	}
	return filter, nil
}

func parseTime(v string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", v)
}

// sweepFilter limits the periodic sweep to the trailing day of readings
func sweepFilter(c clock.Clock) telemetry.Filter {
	return telemetry.Filter{From: c.Now().Add(-24 * time.Hour)}
}

// writeEngineError maps engine errors to HTTP statuses
func writeEngineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, greenops.ErrNoData):
		writeError(w, http.StatusNotFound, err)
	case errors.Is(err, forecast.ErrInvalidHorizon),
		errors.Is(err, forecast.ErrNonContiguousSeries),
		errors.Is(err, forecast.ErrInsufficientHistory):
		writeError(w, http.StatusBadRequest, err)
	case errors.Is(err, scoring.ErrUnavailable),
		errors.Is(err, forecast.ErrServiceUnavailable):
		writeError(w, http.StatusServiceUnavailable, err)
	default:
		klog.ErrorS(err, "Request failed")
		writeError(w, http.StatusInternalServerError, errors.New("internal error"))
	}
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		klog.ErrorS(err, "Failed to encode response")
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
