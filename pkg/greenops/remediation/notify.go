package remediation

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Notification is the structured payload handed to whatever channel carries
// alerts to the responsible team
type Notification struct {
	ID          string    `json:"id"`
	WorkOrderID string    `json:"work_order_id"`
	Zone        string    `json:"zone_id"`
	Severity    Severity  `json:"severity"`
	Title       string    `json:"title"`
	Body        string    `json:"body"`
	Team        string    `json:"team"`
	Deadline    time.Time `json:"deadline"`
	CreatedAt   time.Time `json:"created_at"`
}

// BuildNotification renders a work order into a notification payload
func BuildNotification(o *WorkOrder) Notification {
	return Notification{
		ID:          uuid.NewString(),
		WorkOrderID: o.WorkOrderID,
		Zone:        o.Zone,
		Severity:    o.Severity,
		Title:       fmt.Sprintf("%s priority: %s in %s", o.Severity, humanType(string(o.AnomalyType)), o.Zone),
		Body:        formatBody(o),
		Team:        o.Team,
		Deadline:    o.Deadline,
		CreatedAt:   o.CreatedAt,
	}
}

// formatBody renders the human-readable alert text
func formatBody(o *WorkOrder) string {
	var b strings.Builder

	fmt.Fprintf(&b, "%s PRIORITY ALERT\n\n", o.Severity)
	fmt.Fprintf(&b, "Anomaly: %s\n", humanType(string(o.AnomalyType)))
	fmt.Fprintf(&b, "Zone: %s\n", o.Zone)
	fmt.Fprintf(&b, "Category: %s\n", o.Category)
	fmt.Fprintf(&b, "Detected: %s\n\n", o.DetectedAt.Format("2006-01-02 15:04"))

	fmt.Fprintf(&b, "Financial impact:\n")
	fmt.Fprintf(&b, "  Current waste: $%.2f/day\n", o.Impact.PerDay)
	fmt.Fprintf(&b, "  Annual impact: $%.0f/year\n", o.Impact.PerYear)
	fmt.Fprintf(&b, "  CO2 impact: %.0f kg/year\n\n", o.Impact.CO2KgPerYear)

	fmt.Fprintf(&b, "Action required:\n")
	for _, step := range o.Steps {
		fmt.Fprintf(&b, "  %d. %s\n", step.Number, step.Action)
	}

	fmt.Fprintf(&b, "\nResponsible: %s\n", o.Team)
	fmt.Fprintf(&b, "Estimated fix time: %s\n", o.FixTime)
	fmt.Fprintf(&b, "Deadline: %s\n", o.Deadline.Format("2006-01-02 15:04"))
	fmt.Fprintf(&b, "Work order: %s\n", o.WorkOrderID)
	return b.String()
}

// humanType turns COMPRESSED_AIR_LEAK into "Compressed Air Leak"
func humanType(t string) string {
	words := strings.Split(strings.ToLower(t), "_")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
