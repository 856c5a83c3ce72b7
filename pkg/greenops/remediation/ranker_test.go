package remediation

import (
	"math/rand"
	"testing"
	"time"
)

func rankedOrder(id, zone string, severity Severity, perYear float64, deadline time.Time) WorkOrder {
	return WorkOrder{
		WorkOrderID: id,
		Zone:        zone,
		Status:      StatusOpen,
		Severity:    severity,
		Deadline:    deadline,
		Impact:      FinancialImpact{PerYear: perYear},
	}
}

func TestRankWeightsBySeverity(t *testing.T) {
	deadline := time.Date(2025, 6, 3, 0, 0, 0, 0, time.UTC)
	orders := []WorkOrder{
		rankedOrder("WO-20250602-1001", "ZONE-A", SeverityLow, 2500, deadline),
		rankedOrder("WO-20250602-1002", "ZONE-B", SeverityHigh, 1000, deadline),
	}

	ranked := Rank(orders, RankOptions{})
	if len(ranked) != 2 {
		t.Fatalf("got %d ranked orders, want 2", len(ranked))
	}

	// HIGH 1000 scores 3000 and outranks LOW 2500
	if ranked[0].WorkOrderID != "WO-20250602-1002" {
		t.Errorf("top order = %s, want the weighted HIGH order", ranked[0].WorkOrderID)
	}
	if ranked[0].Score != 3000 {
		t.Errorf("top score = %v, want 3000", ranked[0].Score)
	}
	if ranked[1].Score != 2500 {
		t.Errorf("second score = %v, want 2500", ranked[1].Score)
	}
}

func TestRankStableUnderPermutation(t *testing.T) {
	deadline := time.Date(2025, 6, 3, 0, 0, 0, 0, time.UTC)
	orders := []WorkOrder{
		rankedOrder("WO-20250602-1001", "ZONE-A", SeverityHigh, 5000, deadline),
		rankedOrder("WO-20250602-1002", "ZONE-B", SeverityMedium, 10000, deadline),
		rankedOrder("WO-20250602-1003", "ZONE-C", SeverityLow, 15000, deadline),
		// Same score as 1003 but an earlier deadline
		rankedOrder("WO-20250602-1004", "ZONE-D", SeverityLow, 15000, deadline.Add(-time.Hour)),
		// Same score and deadline as 1003, ID breaks the tie
		rankedOrder("WO-20250602-1005", "ZONE-E", SeverityLow, 15000, deadline),
	}

	want := Rank(orders, RankOptions{})

	rng := rand.New(rand.NewSource(1))
	for trial := 0; trial < 20; trial++ {
		shuffled := append([]WorkOrder(nil), orders...)
		rng.Shuffle(len(shuffled), func(i, j int) {
			shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
		})

		got := Rank(shuffled, RankOptions{})
		if len(got) != len(want) {
			t.Fatalf("trial %d: got %d orders, want %d", trial, len(got), len(want))
		}
		for i := range want {
			if got[i].WorkOrderID != want[i].WorkOrderID {
				t.Fatalf("trial %d: position %d = %s, want %s",
					trial, i, got[i].WorkOrderID, want[i].WorkOrderID)
			}
		}
	}
}

func TestRankExcludesResolved(t *testing.T) {
	deadline := time.Date(2025, 6, 3, 0, 0, 0, 0, time.UTC)
	resolved := rankedOrder("WO-20250602-1001", "ZONE-A", SeverityHigh, 9999, deadline)
	resolved.Status = StatusResolved
	blocked := rankedOrder("WO-20250602-1002", "ZONE-B", SeverityLow, 100, deadline)
	blocked.Status = StatusBlocked

	ranked := Rank([]WorkOrder{resolved, blocked}, RankOptions{})
	if len(ranked) != 1 || ranked[0].WorkOrderID != "WO-20250602-1002" {
		t.Fatalf("got %+v, want only the blocked order", ranked)
	}
}

func TestRankLimitAndZoneFilter(t *testing.T) {
	deadline := time.Date(2025, 6, 3, 0, 0, 0, 0, time.UTC)
	orders := []WorkOrder{
		rankedOrder("WO-20250602-1001", "ZONE-A", SeverityHigh, 5000, deadline),
		rankedOrder("WO-20250602-1002", "ZONE-B", SeverityHigh, 4000, deadline),
		rankedOrder("WO-20250602-1003", "ZONE-A", SeverityHigh, 3000, deadline),
	}

	limited := Rank(orders, RankOptions{Limit: 2})
	if len(limited) != 2 || limited[0].WorkOrderID != "WO-20250602-1001" {
		t.Fatalf("limit: got %+v, want the top two", limited)
	}

	zoned := Rank(orders, RankOptions{Zone: "ZONE-A"})
	if len(zoned) != 2 {
		t.Fatalf("zone filter: got %d orders, want 2", len(zoned))
	}
	if zoned[0].WorkOrderID != "WO-20250602-1001" || zoned[1].WorkOrderID != "WO-20250602-1003" {
		t.Errorf("zone filter order = %s, %s; want 1001 then 1003",
			zoned[0].WorkOrderID, zoned[1].WorkOrderID)
	}
}
