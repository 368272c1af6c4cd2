package engine

import (
	"math"

	"github.com/Santanajose0405/Industrial-Telemetry-Analytics-Platform-ITAP/internal/models"
	"github.com/Santanajose0405/Industrial-Telemetry-Analytics-Platform-ITAP/internal/rules"
)

// Fallback identity for events carrying a tag absent from the route table.
const (
	FallbackRuleName = "untagged_fallback"
	FallbackRoute    = "unclassified"
	FallbackCause    = "untagged anomaly"
)

// fallbackOrder sorts the implicit fallback after every declared rule so it
// never wins a confidence tie against one.
const fallbackOrder = math.MaxInt

// MatchTag routes an event's fault tag against the catalogue's tag table.
// An untagged event produces no candidate at all. A tag present in the table
// yields that rule with confidence 1.0; an unknown tag yields the fallback
// candidate with confidence 0.0, which never suppresses other matchers.
func MatchTag(cat *rules.Catalog, tag string) (candidate, bool) {
	normalized := rules.NormalizeTag(tag)
	if normalized == "" {
		return candidate{}, false
	}

	if rule, ok := cat.RouteFor(normalized); ok {
		return candidate{
			ruleName:   rule.Name,
			order:      rule.Order,
			confidence: 1.0,
			severity:   rule.Severity,
			cause:      rule.Cause,
			route:      rule.Route,
		}, true
	}

	return candidate{
		ruleName:   FallbackRuleName,
		order:      fallbackOrder,
		confidence: 0.0,
		severity:   models.SeverityInfo,
		cause:      FallbackCause,
		route:      FallbackRoute,
	}, true
}
