package rules

import (
	"strings"
	"time"

	"github.com/Santanajose0405/Industrial-Telemetry-Analytics-Platform-ITAP/internal/models"
)

// Rule kinds accepted in the catalogue
const (
	KindBurst          = "burst"
	KindDominantFamily = "dominant_family"
	KindTagRoute       = "tag_route"
)

// ValidKinds lists the accepted rule kinds, used in configuration errors.
var ValidKinds = []string{KindBurst, KindDominantFamily, KindTagRoute}

// BurstRule fires when MinAnomalies or more events for one device fall inside
// a rolling Window. Matching is boolean: confidence is always 1.0.
type BurstRule struct {
	Name         string
	Order        int
	Window       time.Duration
	MinAnomalies int
	Severity     models.Severity
	Cause        string
}

// DominantFamilyRule fires when the combined attribution of Families reaches
// MinPercent of the event's anomaly score.
type DominantFamilyRule struct {
	Name       string
	Order      int
	Families   []string
	MinPercent float64
	Severity   models.Severity
	Cause      string
}

// TagRouteRule maps a normalized fault tag to a responsible team.
type TagRouteRule struct {
	Name     string
	Order    int
	Tag      string // normalized
	Route    string
	Severity models.Severity
	Cause    string
}

// Catalog is the immutable, typed rule set produced by Load. Rules are
// grouped by kind but keep their declaration order from the config file;
// Order is the global file position used to break confidence ties.
//
// A Catalog is read-only after construction and safe to share across
// evaluation shards without synchronization.
type Catalog struct {
	Bursts    []BurstRule
	Dominants []DominantFamilyRule
	TagRoutes []TagRouteRule

	tagIndex map[string]*TagRouteRule
}

// Len returns the total number of declared rules.
func (c *Catalog) Len() int {
	return len(c.Bursts) + len(c.Dominants) + len(c.TagRoutes)
}

// RouteFor looks up the tag-route rule for a normalized tag.
func (c *Catalog) RouteFor(normalizedTag string) (*TagRouteRule, bool) {
	r, ok := c.tagIndex[normalizedTag]
	return r, ok
}

// NormalizeTag canonicalizes a fault tag for table lookup: surrounding
// whitespace is stripped and the tag is case-folded.
func NormalizeTag(tag string) string {
	return strings.ToLower(strings.TrimSpace(tag))
}

func (c *Catalog) buildTagIndex() {
	c.tagIndex = make(map[string]*TagRouteRule, len(c.TagRoutes))
	for i := range c.TagRoutes {
		r := &c.TagRoutes[i]
		// First-declared rule wins on duplicate tags
		if _, exists := c.tagIndex[r.Tag]; !exists {
			c.tagIndex[r.Tag] = r
		}
	}
}
