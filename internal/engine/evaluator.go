package engine

import (
	"time"

	"github.com/Santanajose0405/Industrial-Telemetry-Analytics-Platform-ITAP/internal/metrics"
	"github.com/Santanajose0405/Industrial-Telemetry-Analytics-Platform-ITAP/internal/models"
	"github.com/Santanajose0405/Industrial-Telemetry-Analytics-Platform-ITAP/internal/rules"
)

// candidate is one potential single-event alert produced by a matcher,
// before precedence resolution.
type candidate struct {
	ruleName   string
	order      int
	confidence float64
	severity   models.Severity
	cause      string
	route      string
}

// Evaluator orchestrates the three matchers per event and resolves
// multi-match precedence. For each incoming event it emits at most one
// single-event alert, plus any burst alerts, which represent a different
// signal (temporal clustering) and are never suppressed by the other kinds.
//
// The evaluator is stateless with respect to rule application; the burst
// detector is the only mutable state, so an Evaluator must be confined to a
// single goroutine (one per shard).
type Evaluator struct {
	catalog *rules.Catalog
	bursts  *BurstDetector
}

// NewEvaluator creates an Evaluator over an immutable rule catalogue.
func NewEvaluator(cat *rules.Catalog) *Evaluator {
	return &Evaluator{
		catalog: cat,
		bursts:  NewBurstDetector(cat.Bursts),
	}
}

// Evaluate runs one scored event through the rule engine and returns the
// alerts it produces, burst alerts first. Malformed input never aborts
// evaluation: matchers degrade to "no match".
func (e *Evaluator) Evaluate(ev *models.ScoredEvent) []*models.AlertEvent {
	start := time.Now()
	var alerts []*models.AlertEvent

	for _, rule := range e.bursts.Observe(ev.DeviceID, ev.Timestamp) {
		alerts = append(alerts, buildAlert(ev, candidate{
			ruleName:   rule.Name,
			confidence: 1.0,
			severity:   rule.Severity,
			cause:      rule.Cause,
		}))
		metrics.AlertsEmittedTotal.WithLabelValues(rules.KindBurst, string(rule.Severity)).Inc()
	}

	if best, ok := e.bestSingleEventMatch(ev); ok {
		alerts = append(alerts, buildAlert(ev, best))
		metrics.AlertsEmittedTotal.WithLabelValues(kindOf(best), string(best.severity)).Inc()
	}

	metrics.EvaluationDuration.Observe(time.Since(start).Seconds())
	return alerts
}

// bestSingleEventMatch collects the dominant-family and tag-route candidates
// for ev and selects the single highest-confidence one. Exact confidence ties
// are broken by declaration order in the config file, first-declared wins,
// so outcomes are auditable from the file alone.
func (e *Evaluator) bestSingleEventMatch(ev *models.ScoredEvent) (candidate, bool) {
	var best candidate
	found := false

	consider := func(c candidate) {
		if !found || c.confidence > best.confidence ||
			(c.confidence == best.confidence && c.order < best.order) {
			best = c
			found = true
		}
	}

	for i := range e.catalog.Dominants {
		rule := &e.catalog.Dominants[i]
		if conf, ok := MatchDominantFamily(rule, ev.Families); ok {
			consider(candidate{
				ruleName:   rule.Name,
				order:      rule.Order,
				confidence: conf,
				severity:   rule.Severity,
				cause:      rule.Cause,
			})
		}
	}

	if c, ok := MatchTag(e.catalog, ev.Tag); ok {
		consider(c)
	}

	return best, found
}

// Devices reports the number of devices with live burst state.
func (e *Evaluator) Devices() int {
	return e.bursts.Devices()
}

// buildAlert assembles an immutable AlertEvent from the winning rule and the
// triggering event. Score, state, attribution, and top features are carried
// through unchanged from the input.
func buildAlert(ev *models.ScoredEvent, c candidate) *models.AlertEvent {
	features := make([]models.Share, len(ev.TopFeatures))
	copy(features, ev.TopFeatures)

	return &models.AlertEvent{
		Timestamp:   ev.Timestamp,
		DeviceID:    ev.DeviceID,
		State:       ev.State,
		Severity:    c.severity,
		Score:       ev.Score,
		Confidence:  c.confidence,
		RootCause:   c.cause,
		Route:       c.route,
		RuleName:    c.ruleName,
		Families:    models.SortedFamilies(ev.Families),
		TopFeatures: features,
		Tag:         ev.Tag,
	}
}

func kindOf(c candidate) string {
	if c.ruleName == FallbackRuleName {
		return "fallback"
	}
	if c.route != "" {
		return rules.KindTagRoute
	}
	return rules.KindDominantFamily
}
