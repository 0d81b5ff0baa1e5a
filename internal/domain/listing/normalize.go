package listing

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// keyOverrides maps normalized display names whose canonical form is
// irregular onto the canonical field.
var keyOverrides = map[string]CanonicalField{
	"product_weight":                 FieldProductWeightLbs,
	"battery_life_up_to":             FieldBatteryLifeHrs,
	"manufacturers_warranty___labor": FieldWarranty,
	"screen_size":                    FieldScreenSizeInches,
	"refresh_rate":                   FieldRefreshRateHz,
	"cpu_base_clock_frequency":       FieldCPUBaseClockGHz,
	"cpu_boost_clock_frequency":      FieldCPUBoostClockGHz,
	"total_storage_capacity":         FieldTotalStorageGB,
	"system_memory_ram":              FieldSystemMemoryGB,
	"system_memory_ram_speed":        FieldSystemMemorySpeedMHz,
	"2_in_1_design":                  FieldTwoInOneDesign,
}

// NormalizeKey maps a retailer display name such as "Battery Life (Up to)"
// to its canonical field. It returns false for names outside the canonical
// set; callers drop those attributes.
func NormalizeKey(displayName string) (CanonicalField, bool) {
	key := snakeKey(displayName)
	if f, ok := keyOverrides[key]; ok {
		return f, true
	}
	f := CanonicalField(key)
	if _, ok := FieldKinds[f]; !ok {
		return "", false
	}
	return f, true
}

// snakeKey lowercases and trims name, turns every whitespace rune and hyphen
// into an underscore, and drops parentheses and apostrophes. Runs of
// separators are not collapsed: "Warranty - Labor" keeps all three.
func snakeKey(name string) string {
	name = norm.NFKC.String(name)
	name = strings.TrimSpace(strings.ToLower(name))

	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		switch {
		case r == '-' || unicode.IsSpace(r):
			b.WriteByte('_')
		case r == '(' || r == ')' || r == '\'':
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
