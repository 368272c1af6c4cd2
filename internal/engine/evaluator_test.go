package engine

import (
	"bytes"
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/Santanajose0405/Industrial-Telemetry-Analytics-Platform-ITAP/internal/models"
	"github.com/Santanajose0405/Industrial-Telemetry-Analytics-Platform-ITAP/internal/rules"
)

func testCatalog(t *testing.T) *rules.Catalog {
	t.Helper()
	cat, err := rules.Build([]rules.Spec{
		{Type: "burst", Name: "triple_in_ten", DeviceWindowMinutes: 10, MinAnomalies: 3,
			Severity: "CRITICAL", Cause: "repeated anomalies"},
		{Type: "dominant_family", Name: "voltage_dominant", Family: "Voltage", MinPercent: 45,
			Severity: "WARNING", Cause: "electrical noise"},
		{Type: "dominant_family", Name: "thermal_dominant", Family: "Temperature", MinPercent: 40,
			Severity: "CRITICAL", Cause: "thermal overload"},
		{Type: "tag_route", Name: "route_bearing", Tag: "bearing_wear",
			Route: "mechanical-maintenance", Severity: "WARNING", Cause: "bearing wear signature"},
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return cat
}

func event(deviceID string, ts time.Time, families map[string]float64) *models.ScoredEvent {
	return &models.ScoredEvent{
		Timestamp: ts,
		DeviceID:  deviceID,
		State:     models.StateRun,
		Score:     0.42,
		Families:  families,
		TopFeatures: []models.Share{
			{Name: "voltage_v_mean", Percent: 31.5},
			{Name: "voltage_v_std", Percent: 15.5},
		},
	}
}

var t0 = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func TestEvaluator_BurstScenario(t *testing.T) {
	e := NewEvaluator(testCatalog(t))

	var all []*models.AlertEvent
	for _, offset := range []time.Duration{0, 3 * time.Minute, 6 * time.Minute} {
		all = append(all, e.Evaluate(event("DEV-001", t0.Add(offset), nil))...)
	}

	if len(all) != 1 {
		t.Fatalf("got %d alerts, want exactly 1 burst alert", len(all))
	}
	a := all[0]
	if a.RuleName != "triple_in_ten" {
		t.Errorf("rule: got %q", a.RuleName)
	}
	if a.Confidence != 1.0 {
		t.Errorf("confidence: got %v, want 1.0", a.Confidence)
	}
	if a.RootCause != "repeated anomalies" {
		t.Errorf("cause: got %q", a.RootCause)
	}
	if a.Severity != models.SeverityCritical {
		t.Errorf("severity: got %q", a.Severity)
	}
}

func TestEvaluator_DominantScenario(t *testing.T) {
	e := NewEvaluator(testCatalog(t))

	alerts := e.Evaluate(event("DEV-001", t0,
		map[string]float64{"Voltage": 47, "Temperature": 25, "Current": 20}))

	if len(alerts) != 1 {
		t.Fatalf("got %d alerts, want 1", len(alerts))
	}
	a := alerts[0]
	if a.RuleName != "voltage_dominant" {
		t.Errorf("rule: got %q", a.RuleName)
	}
	want := (47.0 - 45.0) / (100.0 - 45.0)
	if math.Abs(a.Confidence-want) > 1e-9 {
		t.Errorf("confidence: got %v, want %v", a.Confidence, want)
	}
}

func TestEvaluator_HighestConfidenceWins(t *testing.T) {
	e := NewEvaluator(testCatalog(t))

	// Voltage: conf (50-45)/55 ≈ 0.09; Temperature: conf (70-40)/60 = 0.5
	alerts := e.Evaluate(event("DEV-001", t0,
		map[string]float64{"Voltage": 50, "Temperature": 70}))

	if len(alerts) != 1 {
		t.Fatalf("got %d alerts, want 1", len(alerts))
	}
	if alerts[0].RuleName != "thermal_dominant" {
		t.Errorf("rule: got %q, want thermal_dominant", alerts[0].RuleName)
	}
}

func TestEvaluator_TieBrokenByDeclarationOrder(t *testing.T) {
	cat, err := rules.Build([]rules.Spec{
		{Type: "dominant_family", Name: "first_rule", Family: "Voltage", MinPercent: 40,
			Severity: "WARNING", Cause: "a"},
		{Type: "dominant_family", Name: "second_rule", Family: "Current", MinPercent: 40,
			Severity: "WARNING", Cause: "b"},
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	e := NewEvaluator(cat)

	// Both rules match with identical confidence
	alerts := e.Evaluate(event("DEV-001", t0,
		map[string]float64{"Voltage": 50, "Current": 50}))

	if len(alerts) != 1 {
		t.Fatalf("got %d alerts, want 1", len(alerts))
	}
	if alerts[0].RuleName != "first_rule" {
		t.Errorf("tie must go to the first-declared rule, got %q", alerts[0].RuleName)
	}
}

func TestEvaluator_BurstNotSuppressedByOtherKinds(t *testing.T) {
	e := NewEvaluator(testCatalog(t))

	families := map[string]float64{"Temperature": 80}
	e.Evaluate(event("DEV-001", t0, families))
	e.Evaluate(event("DEV-001", t0.Add(time.Minute), families))
	alerts := e.Evaluate(event("DEV-001", t0.Add(2*time.Minute), families))

	// Third event completes the burst and still carries its own dominant match
	if len(alerts) != 2 {
		t.Fatalf("got %d alerts, want burst + dominant", len(alerts))
	}
	if alerts[0].RuleName != "triple_in_ten" {
		t.Errorf("first alert: got %q, want the burst", alerts[0].RuleName)
	}
	if alerts[1].RuleName != "thermal_dominant" {
		t.Errorf("second alert: got %q, want thermal_dominant", alerts[1].RuleName)
	}
}

func TestEvaluator_KnownTagOutranksWeakDominant(t *testing.T) {
	e := NewEvaluator(testCatalog(t))

	ev := event("DEV-001", t0, map[string]float64{"Voltage": 46})
	ev.Tag = "bearing_wear"

	alerts := e.Evaluate(ev)
	if len(alerts) != 1 {
		t.Fatalf("got %d alerts, want 1", len(alerts))
	}
	a := alerts[0]
	if a.RuleName != "route_bearing" {
		t.Errorf("rule: got %q, want route_bearing", a.RuleName)
	}
	if a.Route != "mechanical-maintenance" {
		t.Errorf("route: got %q", a.Route)
	}
}

func TestEvaluator_FallbackNeverBeatsDeclaredRule(t *testing.T) {
	e := NewEvaluator(testCatalog(t))

	// Dominant matches at exactly the threshold (confidence 0); the unknown
	// tag's fallback also has confidence 0. The declared rule must win.
	ev := event("DEV-001", t0, map[string]float64{"Voltage": 45})
	ev.Tag = "overheat_drift"

	alerts := e.Evaluate(ev)
	if len(alerts) != 1 {
		t.Fatalf("got %d alerts, want 1", len(alerts))
	}
	if alerts[0].RuleName != "voltage_dominant" {
		t.Errorf("rule: got %q, want voltage_dominant", alerts[0].RuleName)
	}
}

func TestEvaluator_UnknownTagScenario(t *testing.T) {
	e := NewEvaluator(testCatalog(t))

	ev := event("DEV-001", t0, map[string]float64{"Voltage": 10})
	ev.Tag = "overheat_drift"

	alerts := e.Evaluate(ev)
	if len(alerts) != 1 {
		t.Fatalf("got %d alerts, want 1", len(alerts))
	}
	a := alerts[0]
	if a.Route != "unclassified" {
		t.Errorf("route: got %q, want unclassified", a.Route)
	}
	if a.Severity != models.SeverityInfo {
		t.Errorf("severity: got %q, want INFO", a.Severity)
	}
	if a.Confidence != 0.0 {
		t.Errorf("confidence: got %v, want 0.0", a.Confidence)
	}
	if a.RootCause != FallbackCause {
		t.Errorf("cause: got %q", a.RootCause)
	}
}

func TestEvaluator_NoMatchNoAlert(t *testing.T) {
	e := NewEvaluator(testCatalog(t))

	alerts := e.Evaluate(event("DEV-001", t0, map[string]float64{"Voltage": 10}))
	if len(alerts) != 0 {
		t.Fatalf("got %d alerts, want 0", len(alerts))
	}
}

func TestEvaluator_AlertCarriesEventSnapshot(t *testing.T) {
	e := NewEvaluator(testCatalog(t))

	ev := event("DEV-042", t0, map[string]float64{"Voltage": 47, "Temperature": 25, "Current": 20})
	alerts := e.Evaluate(ev)
	if len(alerts) != 1 {
		t.Fatalf("got %d alerts, want 1", len(alerts))
	}

	a := alerts[0]
	if a.DeviceID != "DEV-042" || !a.Timestamp.Equal(t0) || a.Score != 0.42 || a.State != models.StateRun {
		t.Errorf("event fields not carried through: %+v", a)
	}

	wantFamilies := []models.Share{
		{Name: "Voltage", Percent: 47},
		{Name: "Temperature", Percent: 25},
		{Name: "Current", Percent: 20},
	}
	if len(a.Families) != len(wantFamilies) {
		t.Fatalf("families: got %v", a.Families)
	}
	for i, want := range wantFamilies {
		if a.Families[i] != want {
			t.Errorf("families[%d]: got %+v, want %+v", i, a.Families[i], want)
		}
	}

	if len(a.TopFeatures) != 2 || a.TopFeatures[0].Name != "voltage_v_mean" {
		t.Errorf("top features not carried through: %v", a.TopFeatures)
	}
}

func TestEvaluator_Idempotent(t *testing.T) {
	families := map[string]float64{"Voltage": 47, "Temperature": 38}
	mkEvents := func() []*models.ScoredEvent {
		var evs []*models.ScoredEvent
		for i := 0; i < 6; i++ {
			ev := event("DEV-001", t0.Add(time.Duration(i)*time.Minute), families)
			if i%2 == 0 {
				ev.Tag = "bearing_wear"
			}
			evs = append(evs, ev)
		}
		return evs
	}

	run := func() []byte {
		e := NewEvaluator(testCatalog(t))
		var out []*models.AlertEvent
		for _, ev := range mkEvents() {
			out = append(out, e.Evaluate(ev)...)
		}
		data, err := json.Marshal(out)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		return data
	}

	first := run()
	second := run()
	if !bytes.Equal(first, second) {
		t.Error("identical input must yield byte-identical alert output")
	}
}
