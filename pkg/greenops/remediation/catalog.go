package remediation

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"
	"k8s.io/klog/v2"

	"github.com/plant-ops/greenops-engine/pkg/greenops/detector"
)

// WasteModel selects how an entry estimates hourly energy waste from the
// metrics captured at detection time
type WasteModel string

const (
	// WasteMeasured treats the full measured energy as waste. Used where
	// the predicate already implies the consumption was avoidable.
	WasteMeasured WasteModel = "measured"

	// WasteAir converts the measured compressed-air volume to the energy
	// spent compressing it
	WasteAir WasteModel = "air"

	// WasteFixed uses a fixed per-hour estimate from the catalog entry.
	// Used where the measured metrics cannot isolate the wasted fraction.
	WasteFixed WasteModel = "fixed"
)

// CatalogEntry describes how one anomaly type gets remediated
type CatalogEntry struct {
	Category     string     `yaml:"category"`
	BaseSeverity Severity   `yaml:"base_severity"`
	Waste        WasteModel `yaml:"waste_model"`
	FixedKWh     float64    `yaml:"fixed_kwh,omitempty"`
	FixTime      string     `yaml:"fix_time"`
	Team         string     `yaml:"team"`
	RootCauses   []string   `yaml:"root_causes"`
	FixSteps     []string   `yaml:"fix_steps"`
}

// Catalog maps anomaly types to remediation knowledge. Entries come from the
// built-in defaults, optionally overridden per type by a YAML asset.
type Catalog map[detector.AnomalyType]CatalogEntry

// DefaultCatalog returns the built-in remediation knowledge base
func DefaultCatalog() Catalog {
	return Catalog{
		detector.PaintOvenIdle: {
			Category:     "Equipment Misuse",
			BaseSeverity: SeverityHigh,
			Waste:        WasteMeasured,
			FixTime:      "15 minutes",
			Team:         "Maintenance Team",
			RootCauses: []string{
				"Timer malfunction",
				"Manual override not disabled",
				"Scheduling gap miscommunication",
			},
			FixSteps: []string{
				"Inspect paint oven timer settings",
				"Verify auto-shutdown during production gaps",
				"Test timer with production schedule",
				"Document timer configuration in maintenance log",
			},
		},
		detector.CompressedAirLeak: {
			Category:     "Equipment Failure",
			BaseSeverity: SeverityMedium,
			Waste:        WasteAir,
			FixTime:      "30-45 minutes",
			Team:         "Maintenance Team",
			RootCauses: []string{
				"Worn seal or gasket",
				"Loose connection",
				"Valve malfunction",
				"Pipe crack or damage",
			},
			FixSteps: []string{
				"Locate leak using ultrasonic detector",
				"Isolate affected zone/equipment",
				"Replace damaged seals or valves",
				"Pressure test after repair",
				"Monitor for 24 hours post-fix",
			},
		},
		detector.HVACOvercooling: {
			Category:     "Climate Control",
			BaseSeverity: SeverityMedium,
			Waste:        WasteFixed,
			FixedKWh:     25,
			FixTime:      "20 minutes",
			Team:         "Facilities Team",
			RootCauses: []string{
				"Incorrect temperature setpoint",
				"Setback schedule not applied",
				"Sensor calibration drift",
			},
			FixSteps: []string{
				"Review and adjust temperature setpoints",
				"Verify zone sensors are calibrated",
				"Restore setback schedule outside production hours",
			},
		},
		detector.HVACInefficiency: {
			Category:     "Climate Control",
			BaseSeverity: SeverityLow,
			Waste:        WasteFixed,
			FixedKWh:     15,
			FixTime:      "20 minutes",
			Team:         "Facilities Team",
			RootCauses: []string{
				"Incorrect temperature setpoint",
				"Zone overcooling/overheating",
				"Sensor calibration drift",
				"Insulation gaps",
			},
			FixSteps: []string{
				"Review and adjust temperature setpoints",
				"Verify zone sensors are calibrated",
				"Check for air leaks or insulation gaps",
				"Optimize HVAC schedule with production hours",
			},
		},
		detector.StandbyPowerExcessive: {
			Category:     "Energy Waste",
			BaseSeverity: SeverityLow,
			Waste:        WasteMeasured,
			FixTime:      "10 minutes",
			Team:         "Operations Team",
			RootCauses: []string{
				"Equipment left running during breaks",
				"No automated shutdown",
				"Operator oversight",
				"Missing shutdown procedure",
			},
			FixSteps: []string{
				"Identify equipment running in standby",
				"Create/update shutdown checklist",
				"Train operators on shutdown procedures",
				"Implement automated shutdown timers",
			},
		},
		detector.ProductionEfficiencyDrop: {
			Category:     "Process Optimization",
			BaseSeverity: SeverityMedium,
			Waste:        WasteMeasured,
			FixTime:      "Variable (investigation required)",
			Team:         "Production & Maintenance Teams",
			RootCauses: []string{
				"Machine calibration drift",
				"Material quality issues",
				"Operator training gap",
				"Maintenance backlog",
			},
			FixSteps: []string{
				"Analyze production data for patterns",
				"Inspect machine settings and calibration",
				"Review material batch quality",
				"Schedule preventive maintenance",
				"Provide operator training if needed",
			},
		},
		detector.ModelDetected: {
			Category:     "Unclassified",
			BaseSeverity: SeverityLow,
			Waste:        WasteFixed,
			FixedKWh:     10,
			FixTime:      "Variable (investigation required)",
			Team:         "Maintenance Team",
			RootCauses: []string{
				"Flagged by outlier model without a matching rule",
			},
			FixSteps: []string{
				"Review flagged reading against zone history",
				"Inspect equipment for off-nominal operation",
				"Classify root cause and update detection rules",
			},
		},
	}
}

// LoadCatalog returns the default catalog with any per-type overrides from
// the YAML file at path. An empty path means defaults only.
func LoadCatalog(path string) (Catalog, error) {
	catalog := DefaultCatalog()
	if path == "" {
		return catalog, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read remediation catalog %q: %w", path, err)
	}

	overrides := make(map[detector.AnomalyType]CatalogEntry)
	if err := yaml.Unmarshal(data, &overrides); err != nil {
		return nil, fmt.Errorf("failed to parse remediation catalog %q: %w", path, err)
	}

	for t, entry := range overrides {
		if err := entry.validate(); err != nil {
			return nil, fmt.Errorf("invalid catalog entry for %s: %w", t, err)
		}
		catalog[t] = entry
	}
	klog.V(2).InfoS("Loaded remediation catalog overrides", "path", path, "overridden", len(overrides))
	return catalog, nil
}

func (e CatalogEntry) validate() error {
	switch e.BaseSeverity {
	case SeverityHigh, SeverityMedium, SeverityLow:
	default:
		return fmt.Errorf("unknown base severity %q", e.BaseSeverity)
	}
	switch e.Waste {
	case WasteMeasured, WasteAir:
	case WasteFixed:
		if e.FixedKWh <= 0 {
			return fmt.Errorf("fixed waste model requires positive fixed_kwh, got %v", e.FixedKWh)
		}
	default:
		return fmt.Errorf("unknown waste model %q", e.Waste)
	}
	if len(e.FixSteps) == 0 {
		return fmt.Errorf("entry has no fix steps")
	}
	if e.Team == "" {
		return fmt.Errorf("entry has no responsible team")
	}
	return nil
}
