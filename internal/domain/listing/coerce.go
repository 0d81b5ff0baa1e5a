package listing

import (
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

var numberPattern = regexp.MustCompile(`\d+(\.\d+)?`)

// ExtractNumber returns the first decimal number in raw after thousands
// separators are removed, so "$999.99 (was $1,299.99)" yields 999.99.
func ExtractNumber(raw string) (float64, bool) {
	if raw == "" {
		return 0, false
	}
	match := numberPattern.FindString(strings.ReplaceAll(raw, ",", ""))
	if match == "" {
		return 0, false
	}
	n, err := strconv.ParseFloat(match, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// CoerceNumber applies the numeric rule. Missing or digit-free text is null.
func CoerceNumber(raw *string) Value {
	if raw == nil {
		return Null(KindNumber)
	}
	n, ok := ExtractNumber(*raw)
	if !ok {
		return Null(KindNumber)
	}
	return NumberValue(n)
}

// CoerceInteger applies the numeric rule and truncates toward zero. A
// number outside the int64 range is null.
func CoerceInteger(raw *string) Value {
	v := CoerceNumber(raw)
	if !v.Valid || v.Number >= math.MaxInt64 || v.Number < math.MinInt64 {
		return Null(KindInteger)
	}
	return IntegerValue(int64(v.Number))
}

// CoerceBool is true only for the literal "true" in any case. Everything
// else, a missing value included, is false.
func CoerceBool(raw *string) Value {
	if raw == nil {
		return BoolValue(false)
	}
	return BoolValue(strings.EqualFold(strings.TrimSpace(*raw), "true"))
}

// CoerceString keeps the trimmed original text unless it is empty or reads
// like a placeholder such as "Not Available" or "Not Applicable".
func CoerceString(raw *string) Value {
	if raw == nil {
		return Null(KindString)
	}
	trimmed := strings.TrimSpace(*raw)
	if trimmed == "" || strings.Contains(strings.ToLower(trimmed), "not") {
		return Null(KindString)
	}
	return StringValue(trimmed)
}

// Coerce converts raw text with the rule selected by kind.
func Coerce(kind FieldKind, raw *string) Value {
	switch kind {
	case KindNumber:
		return CoerceNumber(raw)
	case KindInteger:
		return CoerceInteger(raw)
	case KindBool:
		return CoerceBool(raw)
	default:
		return CoerceString(raw)
	}
}

// ExtractSpecs normalizes every attribute name, drops the ones outside the
// canonical set and coerces the rest. The result holds a value for every
// spec field: absent fields get their closed-world default, or null.
//
// When two display names normalize to the same field, the lexicographically
// last display name wins.
func ExtractSpecs(attributes map[string]string) Specs {
	names := make([]string, 0, len(attributes))
	for name := range attributes {
		names = append(names, name)
	}
	sort.Strings(names)

	raw := make(map[CanonicalField]string, len(names))
	for _, name := range names {
		f, ok := NormalizeKey(name)
		if !ok {
			continue
		}
		raw[f] = attributes[name]
	}

	specs := make(Specs, len(SpecFields))
	for _, f := range SpecFields {
		kind, _ := f.Kind()
		text, present := raw[f]
		if !present {
			if def, ok := absentDefaults[f]; ok {
				specs[f] = def
				continue
			}
			specs[f] = Coerce(kind, nil)
			continue
		}
		specs[f] = Coerce(kind, &text)
	}
	return specs
}

// AttributeUPC returns the coerced UPC attribute, if any display name in
// attributes normalizes to it.
func AttributeUPC(attributes map[string]string) string {
	names := make([]string, 0, len(attributes))
	for name := range attributes {
		names = append(names, name)
	}
	sort.Strings(names)

	upc := ""
	for _, name := range names {
		if f, ok := NormalizeKey(name); ok && f == FieldUPC {
			text := attributes[name]
			if v := CoerceString(&text); v.Valid {
				upc = v.Text
			}
		}
	}
	return upc
}
