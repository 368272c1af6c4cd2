package rules

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Santanajose0405/Industrial-Telemetry-Analytics-Platform-ITAP/internal/models"
)

// Spec is one declarative rule entry as written in the rules file. Which keys
// are required depends on Type.
type Spec struct {
	Type string `yaml:"type"`
	Name string `yaml:"name"`

	// burst
	DeviceWindowMinutes float64 `yaml:"device_window_minutes"`
	MinAnomalies        int     `yaml:"min_anomalies"`

	// dominant_family (either a single family or a list)
	Family     string   `yaml:"family"`
	Families   []string `yaml:"families"`
	MinPercent float64  `yaml:"min_percent"`

	// tag_route
	Tag   string `yaml:"tag"`
	Route string `yaml:"route"`

	// common
	Severity string `yaml:"severity"`
	Cause    string `yaml:"cause"`
}

type rulesFile struct {
	Rules []Spec `yaml:"rules"`
}

// ValidationError reports every violation found across the whole rule set so
// an operator can fix the file in one pass.
type ValidationError struct {
	Violations []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid rule configuration (%d violations):\n  - %s",
		len(e.Violations), strings.Join(e.Violations, "\n  - "))
}

// Load reads and validates the declarative rule file at path.
// No partial catalogue is ever returned: any violation fails the whole load.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("rules: read %q: %w", path, err)
	}

	var file rulesFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("rules: parse yaml: %w", err)
	}

	return Build(file.Rules)
}

// Build validates a declarative rule list and assembles the immutable
// catalogue. Validation is exhaustive: all violations across all rules are
// collected before failing.
func Build(specs []Spec) (*Catalog, error) {
	cat := &Catalog{}
	var violations []string

	for i, s := range specs {
		label := ruleLabel(s, i)

		sev := models.Severity(strings.ToUpper(strings.TrimSpace(s.Severity)))
		if !sev.IsValid() {
			violations = append(violations, fmt.Sprintf(
				"%s: severity %q invalid: want INFO|WARNING|CRITICAL", label, s.Severity))
		}
		if strings.TrimSpace(s.Cause) == "" {
			violations = append(violations, fmt.Sprintf("%s: cause is required", label))
		}

		switch s.Type {
		case KindBurst:
			if s.DeviceWindowMinutes <= 0 {
				violations = append(violations, fmt.Sprintf(
					"%s: device_window_minutes %v must be > 0", label, s.DeviceWindowMinutes))
			}
			if s.MinAnomalies < 2 {
				violations = append(violations, fmt.Sprintf(
					"%s: min_anomalies %d must be >= 2", label, s.MinAnomalies))
			}
			cat.Bursts = append(cat.Bursts, BurstRule{
				Name:         ruleName(s, i),
				Order:        i,
				Window:       time.Duration(s.DeviceWindowMinutes * float64(time.Minute)),
				MinAnomalies: s.MinAnomalies,
				Severity:     sev,
				Cause:        s.Cause,
			})

		case KindDominantFamily:
			fams := familySet(s)
			if len(fams) == 0 {
				violations = append(violations, fmt.Sprintf(
					"%s: at least one family is required", label))
			}
			if s.MinPercent <= 0 || s.MinPercent > 100 {
				violations = append(violations, fmt.Sprintf(
					"%s: min_percent %v must be in (0, 100]", label, s.MinPercent))
			}
			cat.Dominants = append(cat.Dominants, DominantFamilyRule{
				Name:       ruleName(s, i),
				Order:      i,
				Families:   fams,
				MinPercent: s.MinPercent,
				Severity:   sev,
				Cause:      s.Cause,
			})

		case KindTagRoute:
			tag := NormalizeTag(s.Tag)
			if tag == "" {
				violations = append(violations, fmt.Sprintf("%s: tag is required", label))
			}
			if strings.TrimSpace(s.Route) == "" {
				violations = append(violations, fmt.Sprintf("%s: route is required", label))
			}
			cat.TagRoutes = append(cat.TagRoutes, TagRouteRule{
				Name:     ruleName(s, i),
				Order:    i,
				Tag:      tag,
				Route:    strings.TrimSpace(s.Route),
				Severity: sev,
				Cause:    s.Cause,
			})

		default:
			violations = append(violations, fmt.Sprintf(
				"%s: unknown type %q: want %s", label, s.Type, strings.Join(ValidKinds, "|")))
		}
	}

	if len(violations) > 0 {
		return nil, &ValidationError{Violations: violations}
	}

	cat.buildTagIndex()
	return cat, nil
}

// familySet merges the single-family and list forms, deduplicating while
// preserving declaration order.
func familySet(s Spec) []string {
	var out []string
	seen := make(map[string]struct{})

	add := func(name string) {
		name = strings.TrimSpace(name)
		if name == "" {
			return
		}
		if _, dup := seen[name]; dup {
			return
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}

	add(s.Family)
	for _, f := range s.Families {
		add(f)
	}
	return out
}

func ruleName(s Spec, idx int) string {
	if name := strings.TrimSpace(s.Name); name != "" {
		return name
	}
	return fmt.Sprintf("%s_%d", s.Type, idx+1)
}

func ruleLabel(s Spec, idx int) string {
	if name := strings.TrimSpace(s.Name); name != "" {
		return fmt.Sprintf("rule %d (%s)", idx+1, name)
	}
	return fmt.Sprintf("rule %d", idx+1)
}
