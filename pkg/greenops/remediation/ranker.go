package remediation

import (
	"sort"
)

// severityMultiplier weights annual cost by urgency when ranking
func severityMultiplier(s Severity) float64 {
	switch s {
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 1.5
	default:
		return 1
	}
}

// PriorityScore is the value work orders are ranked by
func PriorityScore(o *WorkOrder) float64 {
	return o.Impact.PerYear * severityMultiplier(o.Severity)
}

// RankOptions narrows ranker output. Filters apply after ranking so a zone
// filter returns that zone's orders in their plant-wide rank positions.
type RankOptions struct {
	Limit int    // Top N; 0 means all
	Zone  string // Only orders for this zone; empty means all
}

// RankedOrder pairs a work order with its computed priority score
type RankedOrder struct {
	WorkOrder
	Score float64 `json:"priority_score"`
}

// Rank orders active work orders by weighted annual cost, highest first.
// Resolved orders never rank. The sort key is a total order (score, then
// earliest deadline, then work order ID) so any permutation of the input
// produces the same output.
func Rank(orders []WorkOrder, opts RankOptions) []RankedOrder {
	ranked := make([]RankedOrder, 0, len(orders))
	for i := range orders {
		if !orders[i].Status.active() {
			continue
		}
		ranked = append(ranked, RankedOrder{
			WorkOrder: orders[i],
			Score:     PriorityScore(&orders[i]),
		})
	}

	sort.Slice(ranked, func(i, j int) bool {
		a, b := &ranked[i], &ranked[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if !a.Deadline.Equal(b.Deadline) {
			return a.Deadline.Before(b.Deadline)
		}
		return a.WorkOrderID < b.WorkOrderID
	})

	if opts.Zone != "" {
		filtered := ranked[:0]
		for _, r := range ranked {
			if r.Zone == opts.Zone {
				filtered = append(filtered, r)
			}
		}
		ranked = filtered
	}
	if opts.Limit > 0 && len(ranked) > opts.Limit {
		ranked = ranked[:opts.Limit]
	}
	return ranked
}
