package listing

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// IdentityRule names one spec field that guards a product code's identity
// and the tolerance used when comparing it.
type IdentityRule struct {
	Field   CanonicalField
	Label   string
	Epsilon float64
	Unit    string
}

// DefaultIdentityRules returns the CPU, GPU, RAM and storage checks.
func DefaultIdentityRules() []IdentityRule {
	return []IdentityRule{
		{Field: FieldProcessorModel, Label: "CPU"},
		{Field: FieldGraphics, Label: "GPU"},
		{Field: FieldSystemMemoryGB, Label: "RAM", Epsilon: 0.01, Unit: "GB"},
		{Field: FieldTotalStorageGB, Label: "Storage", Epsilon: 1, Unit: "GB"},
	}
}

// BuildIdentityRules turns configured field names into rules. An empty
// field list keeps the default rules. Tolerances override the epsilon of
// the named field; fields without one compare exactly unless a default
// rule gives them a tolerance.
func BuildIdentityRules(fields []string, tolerances map[string]float64) ([]IdentityRule, error) {
	defaults := DefaultIdentityRules()
	if len(fields) == 0 {
		for _, r := range defaults {
			fields = append(fields, string(r.Field))
		}
	}

	known := make(map[CanonicalField]IdentityRule, len(defaults))
	for _, r := range defaults {
		known[r.Field] = r
	}
	for name := range tolerances {
		if _, ok := ParseCanonicalField(name); !ok {
			return nil, fmt.Errorf("identity tolerance for unknown field %q", name)
		}
	}

	rules := make([]IdentityRule, 0, len(fields))
	seen := make(map[CanonicalField]bool, len(fields))
	for _, name := range fields {
		f, ok := ParseCanonicalField(strings.TrimSpace(name))
		if !ok {
			return nil, fmt.Errorf("unknown monitored field %q", name)
		}
		if seen[f] {
			continue
		}
		seen[f] = true

		rule, ok := known[f]
		if !ok {
			rule = IdentityRule{Field: f}
		}
		if eps, ok := tolerances[string(f)]; ok {
			rule.Epsilon = eps
		}
		rules = append(rules, rule)
	}
	return rules, nil
}

func (r IdentityRule) label() string {
	if r.Label != "" {
		return r.Label
	}
	return string(r.Field)
}

// drifted reports whether stored and observed differ under the rule. A null
// on either side never counts as drift.
func (r IdentityRule) drifted(stored, observed Value) bool {
	if !stored.Valid || !observed.Valid {
		return false
	}
	switch stored.Kind {
	case KindString:
		return !strings.EqualFold(strings.TrimSpace(stored.Text), strings.TrimSpace(observed.Text))
	case KindNumber, KindInteger:
		return math.Abs(stored.Number-observed.Number) > r.Epsilon
	case KindBool:
		return stored.Flag != observed.Flag
	default:
		return false
	}
}

// FieldDrift describes one monitored field whose observed value disagrees
// with the stored record.
type FieldDrift struct {
	Rule     IdentityRule
	Stored   Value
	Observed Value
}

// String renders the drift as a mismatch log line, e.g.
// "RAM mismatch: DB=8 GB, New=16 GB".
func (d FieldDrift) String() string {
	if d.Stored.Kind == KindString {
		return fmt.Sprintf("%s mismatch: DB='%s', New='%s'", d.Rule.label(), d.Stored, d.Observed)
	}
	unit := ""
	if d.Rule.Unit != "" {
		unit = " " + d.Rule.Unit
	}
	return fmt.Sprintf("%s mismatch: DB=%s%s, New=%s%s", d.Rule.label(), d.Stored, unit, d.Observed, unit)
}

// DetectDrift compares the monitored fields of a stored snapshot against a
// new observation.
func DetectDrift(stored, observed Specs, rules []IdentityRule) []FieldDrift {
	var drifts []FieldDrift
	for _, rule := range rules {
		s, o := stored.Get(rule.Field), observed.Get(rule.Field)
		if rule.drifted(s, o) {
			drifts = append(drifts, FieldDrift{Rule: rule, Stored: s, Observed: o})
		}
	}
	return drifts
}

// MismatchLogEntry records a product code whose monitored specs changed.
type MismatchLogEntry struct {
	ProductCode string
	SourceURL   string
	ObservedAt  time.Time
	Drifts      []FieldDrift
}

// Format renders the entry as a header line, one indented line per drift
// and a trailing blank line.
func (e MismatchLogEntry) Format() string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] UPC=%s, Link=%s\n", e.ObservedAt.Format(time.RFC3339), e.ProductCode, e.SourceURL)
	for _, d := range e.Drifts {
		fmt.Fprintf(&b, "  - %s\n", d)
	}
	b.WriteString("\n")
	return b.String()
}

// Messages returns the drift lines without the header.
func (e MismatchLogEntry) Messages() []string {
	lines := make([]string, len(e.Drifts))
	for i, d := range e.Drifts {
		lines[i] = d.String()
	}
	return lines
}
