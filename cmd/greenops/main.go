package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"k8s.io/klog/v2"

	greenops "github.com/plant-ops/greenops-engine/pkg/greenops"
	"github.com/plant-ops/greenops-engine/pkg/greenops/api"
	"github.com/plant-ops/greenops-engine/pkg/greenops/clock"
	"github.com/plant-ops/greenops-engine/pkg/greenops/config"
	"github.com/plant-ops/greenops-engine/pkg/greenops/scoring"
	"github.com/plant-ops/greenops-engine/pkg/greenops/telemetry"
)

func main() {
	klog.InitFlags(nil)
	flag.Parse()
	defer klog.Flush()

	if err := run(); err != nil {
		klog.ErrorS(err, "Engine exited with error")
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	anomalyClient := scoring.NewClient(cfg.Scoring.AnomalyURL, cfg.Scoring)
	defer anomalyClient.Close()
	forecastClient := scoring.NewClient(cfg.Scoring.ForecastURL, cfg.Scoring)
	defer forecastClient.Close()

	engine, err := greenops.New(cfg, store, anomalyClient, forecastClient, clock.RealClock{})
	if err != nil {
		return err
	}

	server := api.NewServer(engine, &cfg.Server)
	return server.Start(ctx)
}

// openStore opens the configured reading store and loads the seed CSV if one
// is configured
func openStore(ctx context.Context, cfg *config.Config) (telemetry.Store, error) {
	var store telemetry.Store
	var writer telemetry.Writer

	if cfg.Telemetry.DatabasePath != "" {
		sqlite, err := telemetry.NewSQLiteStore(cfg.Telemetry.DatabasePath)
		if err != nil {
			return nil, err
		}
		store, writer = sqlite, sqlite
		klog.InfoS("Opened reading store", "path", cfg.Telemetry.DatabasePath)
	} else {
		mem := telemetry.NewMemoryStore()
		store, writer = mem, mem
		klog.InfoS("Using in-memory reading store")
	}

	if cfg.Telemetry.CSVPath != "" {
		loaded, err := telemetry.LoadCSV(ctx, cfg.Telemetry.CSVPath, writer)
		if err != nil {
			store.Close()
			return nil, err
		}
		klog.InfoS("Loaded telemetry CSV",
			"path", cfg.Telemetry.CSVPath,
			"loaded", loaded.Loaded,
			"skipped", loaded.Skipped)
	}
	return store, nil
}
