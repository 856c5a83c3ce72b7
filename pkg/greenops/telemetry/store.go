package telemetry

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"k8s.io/klog/v2"
)

// Store provides read access to recorded readings. Implementations must
// return readings in non-decreasing timestamp order; the detection and
// forecasting logic assumes this.
type Store interface {
	Query(ctx context.Context, filter Filter) ([]Reading, error)
	HourlyEnergy(ctx context.Context, filter Filter) ([]HourlyEnergy, error)
	Close() error
}

// Writer is the ingestion side of a store. The engine itself never writes;
// this exists for loaders and tests.
type Writer interface {
	Insert(ctx context.Context, readings []Reading) (int, error)
}

// SQLiteStore persists readings in a local SQLite database
type SQLiteStore struct {
	db       *sql.DB
	mutex    sync.RWMutex
	prepared map[string]*sql.Stmt
}

// NewSQLiteStore opens (and if needed initializes) a reading database
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %v", err)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal=WAL&_sync=NORMAL&_cache=shared")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %v", err)
	}

	store := &SQLiteStore{
		db:       db,
		prepared: make(map[string]*sql.Stmt),
	}

	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize database schema: %v", err)
	}
	if err := store.prepareStatements(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to prepare statements: %v", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS readings (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		zone_id TEXT NOT NULL,
		timestamp DATETIME NOT NULL,
		energy_kwh REAL NOT NULL,
		production_units INTEGER NOT NULL,
		co2_kg REAL,
		temperature_c REAL,
		compressed_air_m3 REAL,
		shift TEXT,
		status TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_zone_timestamp ON readings(zone_id, timestamp);
	CREATE INDEX IF NOT EXISTS idx_readings_timestamp ON readings(timestamp);
	`

	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteStore) prepareStatements() error {
	statements := map[string]string{
		"insert": `
			INSERT INTO readings (
				zone_id, timestamp, energy_kwh, production_units, co2_kg,
				temperature_c, compressed_air_m3, shift, status
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`,
	}

	for name, query := range statements {
		stmt, err := s.db.Prepare(query)
		if err != nil {
			return fmt.Errorf("failed to prepare statement %s: %v", name, err)
		}
		s.prepared[name] = stmt
	}

	return nil
}

// Insert stores a batch of readings, skipping and counting malformed ones
func (s *SQLiteStore) Insert(ctx context.Context, readings []Reading) (int, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	stmt := s.prepared["insert"]
	inserted := 0
	skipped := 0
	for i := range readings {
		r := &readings[i]
		if err := r.Validate(); err != nil {
			skipped++
			continue
		}
		if _, err := stmt.ExecContext(ctx,
			r.Zone, r.Timestamp.UTC(), r.EnergyKWh, r.ProductionUnits, r.CO2Kg,
			r.TemperatureC, r.CompressedAirM3, r.Shift, r.Status,
		); err != nil {
			return inserted, fmt.Errorf("failed to insert reading: %v", err)
		}
		inserted++
	}

	if skipped > 0 {
		klog.V(2).InfoS("Skipped malformed readings during insert", "skipped", skipped, "inserted", inserted)
	}
	return inserted, nil
}

// Query returns readings matching the filter in timestamp order
func (s *SQLiteStore) Query(ctx context.Context, filter Filter) ([]Reading, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	query := `SELECT zone_id, timestamp, energy_kwh, production_units, co2_kg,
		temperature_c, compressed_air_m3, shift, status FROM readings WHERE 1=1`
	var args []interface{}

	if filter.Zone != "" {
		query += " AND zone_id = ?"
		args = append(args, filter.Zone)
	}
	if filter.Shift != "" {
		query += " AND shift = ?"
		args = append(args, filter.Shift)
	}
	if filter.Status != "" {
		query += " AND status = ?"
		args = append(args, filter.Status)
	}
	if !filter.From.IsZero() {
		query += " AND timestamp >= ?"
		args = append(args, filter.From.UTC())
	}
	if !filter.To.IsZero() {
		query += " AND timestamp <= ?"
		args = append(args, filter.To.UTC())
	}
	query += " ORDER BY timestamp ASC, zone_id ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query readings: %v", err)
	}
	defer rows.Close()

	var readings []Reading
	for rows.Next() {
		var r Reading
		if err := rows.Scan(
			&r.Zone, &r.Timestamp, &r.EnergyKWh, &r.ProductionUnits, &r.CO2Kg,
			&r.TemperatureC, &r.CompressedAirM3, &r.Shift, &r.Status,
		); err != nil {
			return nil, fmt.Errorf("failed to scan row: %v", err)
		}
		readings = append(readings, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %v", err)
	}

	return readings, nil
}

// HourlyEnergy returns the plant-level (or filtered) energy sum per hour
func (s *SQLiteStore) HourlyEnergy(ctx context.Context, filter Filter) ([]HourlyEnergy, error) {
	readings, err := s.Query(ctx, filter)
	if err != nil {
		return nil, err
	}
	return aggregateHourly(readings), nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	for _, stmt := range s.prepared {
		stmt.Close()
	}
	return s.db.Close()
}

// MemoryStore keeps readings in memory, for tests and CSV-only deployments
type MemoryStore struct {
	mutex    sync.RWMutex
	readings []Reading
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Insert stores valid readings, returning the number accepted
func (m *MemoryStore) Insert(ctx context.Context, readings []Reading) (int, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	inserted := 0
	for i := range readings {
		if err := readings[i].Validate(); err != nil {
			continue
		}
		m.readings = append(m.readings, readings[i])
		inserted++
	}
	sort.SliceStable(m.readings, func(i, j int) bool {
		return m.readings[i].Timestamp.Before(m.readings[j].Timestamp)
	})
	return inserted, nil
}

// Query returns matching readings in timestamp order
func (m *MemoryStore) Query(ctx context.Context, filter Filter) ([]Reading, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	var out []Reading
	for i := range m.readings {
		if filter.matches(&m.readings[i]) {
			out = append(out, m.readings[i])
		}
	}
	return out, nil
}

// HourlyEnergy returns the filtered energy sum per hour
func (m *MemoryStore) HourlyEnergy(ctx context.Context, filter Filter) ([]HourlyEnergy, error) {
	readings, err := m.Query(ctx, filter)
	if err != nil {
		return nil, err
	}
	return aggregateHourly(readings), nil
}

// Close is a no-op for the in-memory store
func (m *MemoryStore) Close() error {
	return nil
}

// aggregateHourly sums energy per hour bucket, preserving time order
func aggregateHourly(readings []Reading) []HourlyEnergy {
	if len(readings) == 0 {
		return nil
	}

	sums := make(map[time.Time]float64)
	var hours []time.Time
	for i := range readings {
		hour := readings[i].Timestamp.UTC().Truncate(time.Hour)
		if _, seen := sums[hour]; !seen {
			hours = append(hours, hour)
		}
		sums[hour] += readings[i].EnergyKWh
	}
	sort.Slice(hours, func(i, j int) bool { return hours[i].Before(hours[j]) })

	out := make([]HourlyEnergy, 0, len(hours))
	for _, hour := range hours {
		out = append(out, HourlyEnergy{Timestamp: hour, EnergyKWh: sums[hour]})
	}
	return out
}
