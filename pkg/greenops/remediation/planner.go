package remediation

import (
	"errors"
	"fmt"
	"time"

	"k8s.io/klog/v2"

	"github.com/plant-ops/greenops-engine/pkg/greenops/clock"
	"github.com/plant-ops/greenops-engine/pkg/greenops/config"
	"github.com/plant-ops/greenops-engine/pkg/greenops/detector"
)

// hoursPerYear projects an hourly rate to an annual one. PerYear is defined
// as PerHour * 8760, not PerDay * 365, so the two projections never drift.
const hoursPerYear = 24 * 365

// Planner turns detected anomalies into work orders
type Planner struct {
	catalog Catalog
	costs   *config.CostConfig
	cfg     *config.RemediationConfig
	seq     SequenceGenerator
	clock   clock.Clock
}

// NewPlanner creates a remediation planner
func NewPlanner(catalog Catalog, costs *config.CostConfig, cfg *config.RemediationConfig, seq SequenceGenerator, c clock.Clock) *Planner {
	return &Planner{
		catalog: catalog,
		costs:   costs,
		cfg:     cfg,
		seq:     seq,
		clock:   c,
	}
}

// Plan builds one work order for a detected anomaly. An anomaly type with no
// catalog entry returns ErrUnknownAnomalyType and no order.
func (p *Planner) Plan(record detector.AnomalyRecord) (*WorkOrder, error) {
	entry, ok := p.catalog[record.Type]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownAnomalyType, record.Type)
	}

	impact := p.financialImpact(entry, record.Metrics)
	severity := p.escalate(entry.BaseSeverity, impact.PerYear)

	id, err := p.seq.Next()
	if err != nil {
		return nil, err
	}

	now := p.clock.Now()
	steps := make([]Step, 0, len(entry.FixSteps))
	for i, action := range entry.FixSteps {
		steps = append(steps, Step{
			Number: i + 1,
			Action: action,
			Status: "PENDING",
			Team:   entry.Team,
		})
	}

	order := &WorkOrder{
		WorkOrderID: id,
		CreatedAt:   now,
		Status:      StatusOpen,
		Zone:        record.Zone,
		DetectedAt:  record.Timestamp,
		AnomalyType: record.Type,
		Category:    entry.Category,
		Severity:    severity,
		Deadline:    now.Add(p.deadline(severity)),
		Impact:      impact,
		RootCauses:  entry.RootCauses,
		Steps:       steps,
		Team:        entry.Team,
		FixTime:     entry.FixTime,
		Note:        record.Note,
	}

	klog.V(2).InfoS("Created work order",
		"workOrder", id,
		"zone", record.Zone,
		"type", record.Type,
		"severity", severity,
		"annualCost", fmt.Sprintf("%.0f", impact.PerYear))
	return order, nil
}

// PlanAll plans every anomaly in a batch. Failures are per-anomaly: an
// unknown type skips that anomaly and counts it, the rest still get orders.
func (p *Planner) PlanAll(records []detector.AnomalyRecord) (PlanResult, error) {
	result := PlanResult{SkipReasons: make(map[string]int)}
	for _, record := range records {
		order, err := p.Plan(record)
		if err != nil {
			if errors.Is(err, ErrUnknownAnomalyType) {
				result.Skipped++
				result.SkipReasons[string(record.Type)]++
				klog.V(2).InfoS("Skipped anomaly with no catalog entry",
					"zone", record.Zone, "type", record.Type)
				continue
			}
			// Sequence failures are defects, not data problems; abort.
			return result, err
		}
		result.Orders = append(result.Orders, *order)
	}
	return result, nil
}

// financialImpact estimates cost and emissions from the waste model
func (p *Planner) financialImpact(entry CatalogEntry, m detector.MetricSnapshot) FinancialImpact {
	var wasteKWh float64
	switch entry.Waste {
	case WasteAir:
		wasteKWh = m.CompressedAirM3 * p.costs.AirKWhPerM3
	case WasteFixed:
		wasteKWh = entry.FixedKWh
	default:
		wasteKWh = m.EnergyKWh
	}

	perHour := wasteKWh * p.costs.CurrencyPerKWh
	return FinancialImpact{
		WasteKWhPerHour: wasteKWh,
		PerHour:         perHour,
		PerDay:          perHour * 24,
		PerYear:         perHour * hoursPerYear,
		CO2KgPerYear:    wasteKWh * hoursPerYear * p.costs.CO2KgPerKWh,
	}
}

// escalate bumps severity one level when the annual cost crosses the
// configured high-impact threshold
func (p *Planner) escalate(base Severity, perYear float64) Severity {
	if p.costs.HighImpactPerYear <= 0 || perYear <= p.costs.HighImpactPerYear {
		return base
	}
	switch base {
	case SeverityLow:
		return SeverityMedium
	case SeverityMedium:
		return SeverityHigh
	default:
		return base
	}
}

// deadline maps a severity to its configured response window
func (p *Planner) deadline(s Severity) time.Duration {
	switch s {
	case SeverityHigh:
		return time.Duration(p.cfg.HighDeadlineHours) * time.Hour
	case SeverityMedium:
		return time.Duration(p.cfg.MediumDeadlineHours) * time.Hour
	default:
		return time.Duration(p.cfg.LowDeadlineHours) * time.Hour
	}
}
