package engine

import (
	"time"

	"github.com/Santanajose0405/Industrial-Telemetry-Analytics-Platform-ITAP/internal/rules"
)

// BurstDetector maintains per-device sliding windows of recent anomalous
// events and reports temporal clustering. Every incoming event on the scored
// stream qualifies: the upstream scoring collaborator has already applied its
// anomaly threshold.
//
// BurstDetector is not safe for concurrent use; each evaluation shard owns
// its own detector and the devices hashed to it.
type BurstDetector struct {
	rules []rules.BurstRule

	// windows[i] holds the unconsumed event timestamps per device for rule i
	windows []map[string][]time.Time
}

// NewBurstDetector creates a detector for the given burst rules.
func NewBurstDetector(burstRules []rules.BurstRule) *BurstDetector {
	windows := make([]map[string][]time.Time, len(burstRules))
	for i := range windows {
		windows[i] = make(map[string][]time.Time)
	}
	return &BurstDetector{rules: burstRules, windows: windows}
}

// Observe records one qualifying event for deviceID at t and returns the
// burst rules that fire on it.
//
// The window boundary is inclusive: an event exactly Window earlier still
// counts. Once a rule fires for a device, that device's window is cleared so
// the next burst needs an independent accumulation of MinAnomalies events
// beyond the triggering one. One ongoing incident therefore yields one alert
// per completed group instead of a continuous overlapping stream.
func (d *BurstDetector) Observe(deviceID string, t time.Time) []*rules.BurstRule {
	var fired []*rules.BurstRule

	for i := range d.rules {
		rule := &d.rules[i]
		window := d.windows[i][deviceID]

		cutoff := t.Add(-rule.Window)
		kept := window[:0]
		for _, ts := range window {
			if !ts.Before(cutoff) {
				kept = append(kept, ts)
			}
		}
		window = append(kept, t)

		if len(window) >= rule.MinAnomalies {
			fired = append(fired, rule)
			window = window[:0]
		}

		d.windows[i][deviceID] = window
	}

	return fired
}

// Devices returns the number of devices with live window state.
func (d *BurstDetector) Devices() int {
	seen := make(map[string]struct{})
	for _, w := range d.windows {
		for dev := range w {
			seen[dev] = struct{}{}
		}
	}
	return len(seen)
}
