// Package report renders plant sustainability reports from computed results
package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/plant-ops/greenops-engine/pkg/greenops/detector"
	"github.com/plant-ops/greenops-engine/pkg/greenops/kpi"
	"github.com/plant-ops/greenops-engine/pkg/greenops/remediation"
)

// Report combines the day's indicators, detections, and planned work
type Report struct {
	GeneratedAt time.Time                `json:"generated_at"`
	KPIs        kpi.Summary              `json:"kpis"`
	Anomalies   []detector.AnomalyRecord `json:"anomalies"`
	WorkOrders  []remediation.WorkOrder  `json:"work_orders"`
}

// New assembles a report
func New(now time.Time, kpis kpi.Summary, anomalies []detector.AnomalyRecord, orders []remediation.WorkOrder) *Report {
	return &Report{
		GeneratedAt: now.UTC(),
		KPIs:        kpis,
		Anomalies:   anomalies,
		WorkOrders:  orders,
	}
}

// Text renders the console-friendly summary
func (r *Report) Text() string {
	var b strings.Builder
	rule := strings.Repeat("=", 47)

	fmt.Fprintf(&b, "%s\n", rule)
	fmt.Fprintf(&b, "  PLANT SUSTAINABILITY REPORT\n")
	fmt.Fprintf(&b, "  Date: %s\n", r.GeneratedAt.Format("2006-01-02"))
	fmt.Fprintf(&b, "%s\n\n", rule)

	fmt.Fprintf(&b, "PRODUCTION METRICS:\n")
	fmt.Fprintf(&b, "  Units produced:  %d\n", r.KPIs.TotalUnits)
	fmt.Fprintf(&b, "  Energy consumed: %.1f kWh\n", r.KPIs.TotalEnergyKWh)
	if r.KPIs.EnergyPerUnitKWh != nil {
		fmt.Fprintf(&b, "  Energy per unit: %.2f kWh\n", *r.KPIs.EnergyPerUnitKWh)
	}
	fmt.Fprintf(&b, "  CO2 emitted:     %.1f kg\n", r.KPIs.TotalCO2Kg)
	if r.KPIs.CO2PerUnitKg != nil {
		fmt.Fprintf(&b, "  CO2 per unit:    %.2f kg\n", *r.KPIs.CO2PerUnitKg)
	}

	fmt.Fprintf(&b, "\nENERGY BY ZONE:\n")
	for _, z := range r.KPIs.ZoneEnergy {
		fmt.Fprintf(&b, "  %s: %.1f kWh (%.1f%%)\n", z.Zone, z.EnergyKWh, z.SharePercent)
	}

	fmt.Fprintf(&b, "\nANOMALIES DETECTED:\n")
	if len(r.Anomalies) == 0 {
		fmt.Fprintf(&b, "  None\n")
	}
	for i, a := range r.Anomalies {
		fmt.Fprintf(&b, "  %d. %s - %s", i+1, a.Type, a.Zone)
		if a.Note != "" {
			fmt.Fprintf(&b, " - %s", a.Note)
		}
		fmt.Fprintf(&b, "\n")
	}

	fmt.Fprintf(&b, "\nPLANNED WORK:\n")
	if len(r.WorkOrders) == 0 {
		fmt.Fprintf(&b, "  None\n")
	}
	for _, o := range r.WorkOrders {
		fmt.Fprintf(&b, "  [%s] %s  %s in %s ($%.0f/year)\n",
			o.Severity, o.WorkOrderID, o.AnomalyType, o.Zone, o.Impact.PerYear)
	}
	return b.String()
}
