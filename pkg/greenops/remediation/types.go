package remediation

import (
	"errors"
	"time"

	"github.com/plant-ops/greenops-engine/pkg/greenops/detector"
)

var (
	// ErrUnknownAnomalyType is returned when no catalog entry exists for an
	// anomaly type. The planner refuses to invent a generic plan: a work
	// order nobody can act on is worse than a reported gap in the catalog.
	ErrUnknownAnomalyType = errors.New("no remediation catalog entry for anomaly type")

	// ErrDuplicateWorkOrder indicates the sequence generator produced an ID
	// that already exists. This is a defect, not an operational condition.
	ErrDuplicateWorkOrder = errors.New("duplicate work order id")
)

// Severity classifies how urgently a work order needs attention
type Severity string

const (
	SeverityHigh   Severity = "HIGH"
	SeverityMedium Severity = "MEDIUM"
	SeverityLow    Severity = "LOW"
)

// Status tracks a work order through its lifecycle
type Status string

const (
	StatusOpen       Status = "OPEN"
	StatusInProgress Status = "IN_PROGRESS"
	StatusResolved   Status = "RESOLVED"
	StatusBlocked    Status = "BLOCKED"
)

// active reports whether a work order still competes for attention
func (s Status) active() bool {
	switch s {
	case StatusOpen, StatusInProgress, StatusBlocked:
		return true
	default:
		return false
	}
}

// FinancialImpact projects the cost of leaving an anomaly unfixed. PerYear
// is always PerHour times 8760; the projection assumes the waste persists.
type FinancialImpact struct {
	WasteKWhPerHour float64 `json:"waste_kwh_per_hour"`
	PerHour         float64 `json:"cost_per_hour"`
	PerDay          float64 `json:"cost_per_day"`
	PerYear         float64 `json:"cost_per_year"`
	CO2KgPerYear    float64 `json:"co2_kg_per_year"`
}

// Step is one action item on a work order
type Step struct {
	Number int    `json:"step"`
	Action string `json:"action"`
	Status string `json:"status"`
	Team   string `json:"team"`
}

// WorkOrder is a complete remediation plan for one detected anomaly
type WorkOrder struct {
	WorkOrderID string               `json:"work_order_id"`
	CreatedAt   time.Time            `json:"created_at"`
	Status      Status               `json:"status"`
	Zone        string               `json:"zone_id"`
	DetectedAt  time.Time            `json:"detected_at"`
	AnomalyType detector.AnomalyType `json:"anomaly_type"`
	Category    string               `json:"category"`
	Severity    Severity             `json:"severity"`
	Deadline    time.Time            `json:"deadline"`
	Impact      FinancialImpact      `json:"financial_impact"`
	RootCauses  []string             `json:"root_causes"`
	Steps       []Step               `json:"steps"`
	Team        string               `json:"responsible_team"`
	FixTime     string               `json:"estimated_fix_time"`
	Note        string               `json:"note,omitempty"`
}

// PlanResult labels partial planner output the same way detection does
type PlanResult struct {
	Orders      []WorkOrder    `json:"work_orders"`
	Skipped     int            `json:"skipped"`
	SkipReasons map[string]int `json:"skip_reasons,omitempty"`
}
