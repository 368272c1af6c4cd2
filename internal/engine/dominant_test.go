package engine

import (
	"math"
	"testing"

	"github.com/Santanajose0405/Industrial-Telemetry-Analytics-Platform-ITAP/internal/rules"
)

func domRule(minPercent float64, families ...string) *rules.DominantFamilyRule {
	return &rules.DominantFamilyRule{
		Name:       "test_dominant",
		Families:   families,
		MinPercent: minPercent,
		Severity:   "WARNING",
		Cause:      "dominant family",
	}
}

func TestMatchDominantFamily(t *testing.T) {
	tests := []struct {
		name      string
		rule      *rules.DominantFamilyRule
		families  map[string]float64
		wantMatch bool
		wantConf  float64
	}{
		{
			name:      "voltage 47 over threshold 45",
			rule:      domRule(45, "Voltage"),
			families:  map[string]float64{"Voltage": 47, "Temperature": 25, "Current": 20},
			wantMatch: true,
			wantConf:  (47.0 - 45.0) / (100.0 - 45.0), // ~0.036
		},
		{
			name:      "below threshold",
			rule:      domRule(45, "Voltage"),
			families:  map[string]float64{"Voltage": 44.9},
			wantMatch: false,
		},
		{
			name:      "exactly at threshold matches with zero confidence",
			rule:      domRule(45, "Voltage"),
			families:  map[string]float64{"Voltage": 45},
			wantMatch: true,
			wantConf:  0,
		},
		{
			name:      "total attribution saturates at one",
			rule:      domRule(45, "Voltage"),
			families:  map[string]float64{"Voltage": 100},
			wantMatch: true,
			wantConf:  1,
		},
		{
			name:      "family set sums contributions",
			rule:      domRule(50, "Voltage", "Current"),
			families:  map[string]float64{"Voltage": 30, "Current": 25},
			wantMatch: true,
			wantConf:  (55.0 - 50.0) / 50.0,
		},
		{
			name:      "missing family counts as zero",
			rule:      domRule(50, "Voltage", "Current"),
			families:  map[string]float64{"Voltage": 30},
			wantMatch: false,
		},
		{
			name:      "NaN counts as zero",
			rule:      domRule(20, "Voltage"),
			families:  map[string]float64{"Voltage": math.NaN()},
			wantMatch: false,
		},
		{
			name:      "negative counts as zero",
			rule:      domRule(20, "Voltage"),
			families:  map[string]float64{"Voltage": -30},
			wantMatch: false,
		},
		{
			name:      "nil attribution never matches",
			rule:      domRule(20, "Voltage"),
			families:  nil,
			wantMatch: false,
		},
		{
			name:      "hundred percent threshold needs total attribution",
			rule:      domRule(100, "Voltage"),
			families:  map[string]float64{"Voltage": 100},
			wantMatch: true,
			wantConf:  1,
		},
		{
			name:      "hundred percent threshold rejects partial",
			rule:      domRule(100, "Voltage"),
			families:  map[string]float64{"Voltage": 99.5},
			wantMatch: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conf, ok := MatchDominantFamily(tt.rule, tt.families)
			if ok != tt.wantMatch {
				t.Fatalf("match: got %v, want %v", ok, tt.wantMatch)
			}
			if !ok {
				return
			}
			if math.Abs(conf-tt.wantConf) > 1e-9 {
				t.Errorf("confidence: got %v, want %v", conf, tt.wantConf)
			}
		})
	}
}

func TestMatchDominantFamily_ConfidenceMonotonic(t *testing.T) {
	rule := domRule(40, "Temperature")

	prev := -1.0
	for pct := 40.0; pct <= 100.0; pct += 5 {
		conf, ok := MatchDominantFamily(rule, map[string]float64{"Temperature": pct})
		if !ok {
			t.Fatalf("pct %v: expected match", pct)
		}
		if conf < prev {
			t.Fatalf("confidence decreased at pct %v: %v < %v", pct, conf, prev)
		}
		prev = conf
	}

	if prev != 1.0 {
		t.Errorf("confidence at 100%%: got %v, want 1.0", prev)
	}
}

func TestMatchDominantFamily_DoesNotMutateAttribution(t *testing.T) {
	families := map[string]float64{"Voltage": math.NaN(), "Current": -5, "Temperature": 60}
	rule := domRule(50, "Temperature")

	if _, ok := MatchDominantFamily(rule, families); !ok {
		t.Fatal("expected match")
	}

	if !math.IsNaN(families["Voltage"]) || families["Current"] != -5 || families["Temperature"] != 60 {
		t.Error("matcher must not mutate the attribution snapshot")
	}
}
