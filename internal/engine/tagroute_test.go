package engine

import (
	"testing"

	"github.com/Santanajose0405/Industrial-Telemetry-Analytics-Platform-ITAP/internal/models"
	"github.com/Santanajose0405/Industrial-Telemetry-Analytics-Platform-ITAP/internal/rules"
)

func tagCatalog(t *testing.T) *rules.Catalog {
	t.Helper()
	cat, err := rules.Build([]rules.Spec{
		{Type: "tag_route", Name: "route_bearing", Tag: "bearing_wear",
			Route: "mechanical-maintenance", Severity: "WARNING", Cause: "bearing wear signature"},
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return cat
}

func TestMatchTag_ExactMatch(t *testing.T) {
	cat := tagCatalog(t)

	c, ok := MatchTag(cat, "bearing_wear")
	if !ok {
		t.Fatal("expected a candidate")
	}
	if c.ruleName != "route_bearing" {
		t.Errorf("rule: got %q", c.ruleName)
	}
	if c.confidence != 1.0 {
		t.Errorf("confidence: got %v, want 1.0", c.confidence)
	}
	if c.route != "mechanical-maintenance" {
		t.Errorf("route: got %q", c.route)
	}
	if c.severity != models.SeverityWarning {
		t.Errorf("severity: got %q", c.severity)
	}
}

func TestMatchTag_NormalizesBeforeLookup(t *testing.T) {
	cat := tagCatalog(t)

	// Mixed case with trailing whitespace resolves identically
	c, ok := MatchTag(cat, "Bearing_Wear ")
	if !ok || c.ruleName != "route_bearing" {
		t.Fatalf("normalized tag should match: ok=%v rule=%q", ok, c.ruleName)
	}
}

func TestMatchTag_UnknownTagFallsBack(t *testing.T) {
	cat := tagCatalog(t)

	c, ok := MatchTag(cat, "overheat_drift")
	if !ok {
		t.Fatal("a tagged event always produces at least the fallback")
	}
	if c.ruleName != FallbackRuleName {
		t.Errorf("rule: got %q, want %q", c.ruleName, FallbackRuleName)
	}
	if c.route != FallbackRoute {
		t.Errorf("route: got %q, want %q", c.route, FallbackRoute)
	}
	if c.severity != models.SeverityInfo {
		t.Errorf("severity: got %q, want INFO", c.severity)
	}
	if c.confidence != 0.0 {
		t.Errorf("confidence: got %v, want 0.0", c.confidence)
	}
}

func TestMatchTag_UntaggedProducesNothing(t *testing.T) {
	cat := tagCatalog(t)

	if _, ok := MatchTag(cat, ""); ok {
		t.Error("untagged event must produce no candidate")
	}
	if _, ok := MatchTag(cat, "   "); ok {
		t.Error("whitespace-only tag must produce no candidate")
	}
}
