package models

import (
	"sort"
	"time"
)

// Severity represents operator alert severity levels
type Severity string

const (
	SeverityInfo     Severity = "INFO"
	SeverityWarning  Severity = "WARNING"
	SeverityCritical Severity = "CRITICAL"
)

// IsValid checks if the severity level is valid
func (s Severity) IsValid() bool {
	switch s {
	case SeverityInfo, SeverityWarning, SeverityCritical:
		return true
	default:
		return false
	}
}

// AlertEvent is one operator alert produced by the rule engine. It is
// immutable once emitted and carries the attribution snapshot of the event
// that triggered it unchanged.
//
// AlertEvent deliberately has no generated ID and no wall-clock fields:
// re-evaluating the same event stream against the same catalogue must yield
// byte-identical output.
type AlertEvent struct {
	Timestamp   time.Time      `json:"timestamp"`
	DeviceID    string         `json:"device_id"`
	State       OperatingState `json:"state"`
	Severity    Severity       `json:"severity"`
	Score       float64        `json:"score"`
	Confidence  float64        `json:"confidence"`
	RootCause   string         `json:"root_cause"`
	Route       string         `json:"route,omitempty"`
	RuleName    string         `json:"rule_name"`
	Families    []Share        `json:"families"`
	TopFeatures []Share        `json:"top_features"`
	Tag         string         `json:"tag,omitempty"`
}

// SortedFamilies renders an attribution map as a descending (name, percent)
// list. Equal percentages fall back to name order so output is deterministic.
func SortedFamilies(families map[string]float64) []Share {
	out := make([]Share, 0, len(families))
	for name, pct := range families {
		out = append(out, Share{Name: name, Percent: SanitizePercent(pct)})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Percent != out[j].Percent {
			return out[i].Percent > out[j].Percent
		}
		return out[i].Name < out[j].Name
	})
	return out
}
