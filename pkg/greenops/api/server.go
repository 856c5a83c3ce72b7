// Package api exposes the engine over HTTP
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"
	"k8s.io/klog/v2"

	greenops "github.com/plant-ops/greenops-engine/pkg/greenops"
	"github.com/plant-ops/greenops-engine/pkg/greenops/config"
)

// Server serves the engine API and runs the periodic detection sweep
type Server struct {
	engine *greenops.Engine
	cfg    *config.ServerConfig
	http   *http.Server
	cron   *cron.Cron
}

// NewServer builds the HTTP server and its routes
func NewServer(engine *greenops.Engine, cfg *config.ServerConfig) *Server {
	s := &Server{
		engine: engine,
		cfg:    cfg,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)

	r.Get("/healthz", s.handleHealthz)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/detect-anomalies", s.handleDetectAnomalies)
		r.Get("/detect-anomalies/fused", s.handleDetectFused)
		r.Get("/compare-detectors", s.handleCompareDetectors)
		r.Get("/predict-energy", s.handlePredictEnergy)
		r.Get("/plan-actions", s.handlePlanActions)
		r.Get("/priorities", s.handlePriorities)
		r.Get("/kpis", s.handleKPIs)
		r.Get("/report", s.handleReport)
		r.Get("/config", s.handleGetConfig)
		r.Put("/config", s.handlePutConfig)
	})

	s.http = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.ListenPort),
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute, // Long-horizon forecasts are slow
	}
	return s
}

// Start serves until the context is canceled, then shuts down gracefully
func (s *Server) Start(ctx context.Context) error {
	if s.cfg.SweepEnabled {
		if err := s.startSweep(); err != nil {
			return err
		}
	}

	errCh := make(chan error, 1)
	go func() {
		klog.InfoS("API server listening", "addr", s.http.Addr)
		if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	if s.cron != nil {
		s.cron.Stop()
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.http.Shutdown(shutdownCtx)
}

// startSweep schedules the periodic detection and planning pass
func (s *Server) startSweep() error {
	s.cron = cron.New()
	_, err := s.cron.AddFunc(s.cfg.SweepSchedule, s.runSweep)
	if err != nil {
		return fmt.Errorf("invalid sweep schedule %q: %w", s.cfg.SweepSchedule, err)
	}
	s.cron.Start()
	klog.InfoS("Detection sweep scheduled", "schedule", s.cfg.SweepSchedule)
	return nil
}

// runSweep detects, plans, and logs the notifications that would be sent
func (s *Server) runSweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	planned, err := s.engine.PlanRemediations(ctx, sweepFilter(s.engine.Clock()))
	if err != nil {
		if err == greenops.ErrNoData {
			klog.V(2).InfoS("Sweep found no readings")
			return
		}
		klog.ErrorS(err, "Detection sweep failed")
		return
	}

	for _, n := range s.engine.Notifications(planned.Orders) {
		klog.InfoS("Sweep notification",
			"workOrder", n.WorkOrderID,
			"zone", n.Zone,
			"severity", n.Severity,
			"team", n.Team,
			"title", n.Title)
	}
	klog.V(2).InfoS("Detection sweep complete",
		"workOrders", len(planned.Orders),
		"skipped", planned.Skipped)
}

// requestLogger logs one line per request in klog structured form
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		klog.V(2).InfoS("Handled request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start))
	})
}
