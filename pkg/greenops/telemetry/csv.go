package telemetry

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"k8s.io/klog/v2"
)

// LoadResult reports how a CSV import went. Skipped rows never abort a load.
type LoadResult struct {
	Loaded  int
	Skipped int
}

// LoadCSV reads readings from a historian export and inserts them into the
// given writer. The expected header is the historian's layout:
// timestamp,zone_id,energy_kwh,co2_kg,production_units,compressed_air_m3,
// water_liters,temperature_c,shift,efficiency_score,status
func LoadCSV(ctx context.Context, path string, w Writer) (LoadResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return LoadResult{}, fmt.Errorf("failed to open telemetry CSV: %v", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	header, err := reader.Read()
	if err != nil {
		return LoadResult{}, fmt.Errorf("failed to read CSV header: %v", err)
	}

	col := make(map[string]int, len(header))
	for i, name := range header {
		col[name] = i
	}
	for _, required := range []string{"timestamp", "zone_id", "energy_kwh"} {
		if _, ok := col[required]; !ok {
			return LoadResult{}, fmt.Errorf("telemetry CSV missing required column %q", required)
		}
	}

	var result LoadResult
	var batch []Reading
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			result.Skipped++
			continue
		}

		r, ok := parseRow(row, col)
		if !ok {
			result.Skipped++
			continue
		}
		batch = append(batch, r)
	}

	inserted, err := w.Insert(ctx, batch)
	if err != nil {
		return result, err
	}
	result.Skipped += len(batch) - inserted
	result.Loaded = inserted

	klog.V(2).InfoS("Loaded telemetry CSV", "path", path, "loaded", result.Loaded, "skipped", result.Skipped)
	return result, nil
}

func parseRow(row []string, col map[string]int) (Reading, bool) {
	get := func(name string) string {
		if i, ok := col[name]; ok && i < len(row) {
			return row[i]
		}
		return ""
	}

	ts, err := parseTimestamp(get("timestamp"))
	if err != nil {
		return Reading{}, false
	}

	r := Reading{
		Zone:      get("zone_id"),
		Timestamp: ts,
		Shift:     get("shift"),
		Status:    get("status"),
	}
	if r.EnergyKWh, err = strconv.ParseFloat(get("energy_kwh"), 64); err != nil {
		return Reading{}, false
	}
	// Optional metric columns default to zero, mirroring the historian's fillna
	r.CO2Kg, _ = strconv.ParseFloat(get("co2_kg"), 64)
	r.TemperatureC, _ = strconv.ParseFloat(get("temperature_c"), 64)
	r.CompressedAirM3, _ = strconv.ParseFloat(get("compressed_air_m3"), 64)
	if units, err := strconv.Atoi(get("production_units")); err == nil {
		r.ProductionUnits = units
	}

	if r.Validate() != nil {
		return Reading{}, false
	}
	return r, true
}

func parseTimestamp(value string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02T15:04:05"} {
		if ts, err := time.Parse(layout, value); err == nil {
			return ts.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", value)
}
