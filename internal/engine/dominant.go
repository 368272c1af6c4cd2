package engine

import (
	"github.com/Santanajose0405/Industrial-Telemetry-Analytics-Platform-ITAP/internal/models"
	"github.com/Santanajose0405/Industrial-Telemetry-Analytics-Platform-ITAP/internal/rules"
)

// MatchDominantFamily evaluates one dominant-family rule against an event's
// attribution snapshot. It returns the match confidence and whether the rule
// matched.
//
// The combined share of the rule's families must reach MinPercent. Missing,
// NaN, or otherwise malformed attribution values count as zero contribution
// and can never cause a match by themselves. Confidence rewards dominance
// beyond the threshold, saturating at 1.0 when attribution is total.
func MatchDominantFamily(rule *rules.DominantFamilyRule, families map[string]float64) (float64, bool) {
	actual := 0.0
	for _, fam := range rule.Families {
		actual += models.SanitizePercent(families[fam])
	}

	if actual < rule.MinPercent {
		return 0, false
	}

	// At a 100% threshold the gradient collapses: only total attribution
	// earns full confidence.
	if rule.MinPercent >= 100 {
		if actual == 100 {
			return 1, true
		}
		return 0, true
	}

	conf := (actual - rule.MinPercent) / (100 - rule.MinPercent)
	if conf < 0 {
		conf = 0
	}
	if conf > 1 {
		conf = 1
	}
	return conf, true
}
