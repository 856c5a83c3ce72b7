package detector

import (
	"time"

	"k8s.io/klog/v2"
)

// FusionSummary reports comparative detector performance for one window.
// Every distinct (zone, timestamp) across both inputs lands in exactly one
// bucket; the three counts always sum to the distinct-key count.
type FusionSummary struct {
	Agreed    int `json:"agreed"`
	RuleOnly  int `json:"rule_only"`
	ModelOnly int `json:"model_only"`
}

type fusionKey struct {
	zone string
	ts   int64
}

func keyOf(r *AnomalyRecord) fusionKey {
	return fusionKey{zone: r.Zone, ts: r.Timestamp.UTC().Truncate(time.Hour).Unix()}
}

// Fuse reconciles rule and model detections for the same reading window.
// A rule hit confirmed by a model score at or above the threshold becomes one
// FUSED record carrying the rule's anomaly type and the higher confidence.
// Unconfirmed rule hits and unmatched model hits at or above the threshold
// pass through with their original source tag.
func Fuse(rule, model []AnomalyRecord, scoreThreshold float64) ([]AnomalyRecord, FusionSummary) {
	// Index rule hits by key. The rule detector's first-match-wins contract
	// makes duplicates impossible, but resolve defensively by predicate
	// priority if they ever appear.
	ruleByKey := make(map[fusionKey]AnomalyRecord, len(rule))
	ruleOrder := make([]fusionKey, 0, len(rule))
	for i := range rule {
		k := keyOf(&rule[i])
		if existing, dup := ruleByKey[k]; dup {
			klog.ErrorS(nil, "Duplicate rule hits for one reading, keeping higher-priority predicate",
				"zone", rule[i].Zone,
				"timestamp", rule[i].Timestamp,
				"kept", existing.Type,
				"dropped", rule[i].Type)
			if predicatePriority(rule[i].Type) < predicatePriority(existing.Type) {
				ruleByKey[k] = rule[i]
			}
			continue
		}
		ruleByKey[k] = rule[i]
		ruleOrder = append(ruleOrder, k)
	}

	// Index model hits by key, keeping the highest score per key
	modelByKey := make(map[fusionKey]AnomalyRecord, len(model))
	modelOrder := make([]fusionKey, 0, len(model))
	for i := range model {
		k := keyOf(&model[i])
		if existing, dup := modelByKey[k]; dup {
			if model[i].Confidence > existing.Confidence {
				modelByKey[k] = model[i]
			}
			continue
		}
		modelByKey[k] = model[i]
		modelOrder = append(modelOrder, k)
	}

	var summary FusionSummary
	fused := make([]AnomalyRecord, 0, len(ruleOrder)+len(modelOrder))

	for _, k := range ruleOrder {
		ruleHit := ruleByKey[k]
		modelHit, matched := modelByKey[k]
		if matched && modelHit.Confidence >= scoreThreshold {
			merged := ruleHit
			merged.Source = SourceFused
			if modelHit.Confidence > merged.Confidence {
				merged.Confidence = modelHit.Confidence
			}
			fused = append(fused, merged)
			summary.Agreed++
			continue
		}
		// A model hit below threshold does not confirm the rule; the rule
		// record stands on its own.
		fused = append(fused, ruleHit)
		summary.RuleOnly++
	}

	for _, k := range modelOrder {
		if _, matched := ruleByKey[k]; matched {
			continue
		}
		summary.ModelOnly++
		if hit := modelByKey[k]; hit.Confidence >= scoreThreshold {
			fused = append(fused, hit)
		}
	}

	klog.V(3).InfoS("Fused detector outputs",
		"agreed", summary.Agreed,
		"ruleOnly", summary.RuleOnly,
		"modelOnly", summary.ModelOnly,
		"emitted", len(fused))
	return fused, summary
}
