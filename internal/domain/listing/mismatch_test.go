package listing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectDrift(t *testing.T) {
	rules := DefaultIdentityRules()
	stored := ExtractSpecs(map[string]string{
		"Processor Model":        "Intel Core i7",
		"Graphics":               "Intel Iris Xe",
		"System Memory (RAM)":    "8 gigabytes",
		"Total Storage Capacity": "512 gigabytes",
	})

	t.Run("identical monitored fields produce no drift", func(t *testing.T) {
		observed := ExtractSpecs(map[string]string{
			"Processor Model":        "  intel core I7 ",
			"Graphics":               "INTEL IRIS XE",
			"System Memory (RAM)":    "8.005 gigabytes",
			"Total Storage Capacity": "512.9 gigabytes",
		})
		assert.Empty(t, DetectDrift(stored, observed, rules))
	})

	t.Run("memory beyond its epsilon drifts", func(t *testing.T) {
		observed := ExtractSpecs(map[string]string{
			"Processor Model":     "Intel Core i7",
			"System Memory (RAM)": "16 gigabytes",
		})
		drifts := DetectDrift(stored, observed, rules)
		require.Len(t, drifts, 1)
		assert.Equal(t, FieldSystemMemoryGB, drifts[0].Rule.Field)
		assert.Equal(t, "RAM mismatch: DB=8 GB, New=16 GB", drifts[0].String())
	})

	t.Run("string fields report quoted values", func(t *testing.T) {
		observed := ExtractSpecs(map[string]string{"Processor Model": "AMD Ryzen 7"})
		drifts := DetectDrift(stored, observed, rules)
		require.Len(t, drifts, 1)
		assert.Equal(t, "CPU mismatch: DB='Intel Core i7', New='AMD Ryzen 7'", drifts[0].String())
	})

	t.Run("a null side never drifts", func(t *testing.T) {
		observed := ExtractSpecs(map[string]string{"Graphics": "Not Available"})
		assert.Empty(t, DetectDrift(stored, observed, rules))
		assert.Empty(t, DetectDrift(Specs{}, stored, rules))
	})

	t.Run("only configured fields are monitored", func(t *testing.T) {
		observed := ExtractSpecs(map[string]string{"Brand": "Dell"})
		withBrand := append(DefaultIdentityRules(), IdentityRule{Field: FieldBrand})
		storedBrand := ExtractSpecs(map[string]string{"Brand": "HP"})

		assert.Empty(t, DetectDrift(storedBrand, observed, rules))
		drifts := DetectDrift(storedBrand, observed, withBrand)
		require.Len(t, drifts, 1)
		assert.Equal(t, "brand mismatch: DB='HP', New='Dell'", drifts[0].String())
	})
}

func TestMismatchLogEntryFormat(t *testing.T) {
	entry := MismatchLogEntry{
		ProductCode: "111",
		SourceURL:   "https://example.com/p/111",
		ObservedAt:  time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
		Drifts:      []FieldDrift{{
			Rule:     IdentityRule{Field: FieldTotalStorageGB, Label: "Storage", Epsilon: 1, Unit: "GB"},
			Stored:   NumberValue(512),
			Observed: NumberValue(1024),
		}},
	}

	want := "[2025-03-01T12:00:00Z] UPC=111, Link=https://example.com/p/111\n" +
		"  - Storage mismatch: DB=512 GB, New=1024 GB\n\n"
	assert.Equal(t, want, entry.Format())
	assert.Equal(t, []string{"Storage mismatch: DB=512 GB, New=1024 GB"}, entry.Messages())
}

func TestBuildIdentityRules(t *testing.T) {
	t.Run("empty config keeps defaults", func(t *testing.T) {
		rules, err := BuildIdentityRules(nil, nil)
		require.NoError(t, err)
		assert.Equal(t, DefaultIdentityRules(), rules)
	})

	t.Run("tolerance overrides default epsilon", func(t *testing.T) {
		rules, err := BuildIdentityRules(nil, map[string]float64{"total_storage_capacity_gb": 16})
		require.NoError(t, err)
		require.Len(t, rules, 4)
		assert.Equal(t, IdentityRule{Field: FieldTotalStorageGB, Label: "Storage", Epsilon: 16, Unit: "GB"}, rules[3])
	})

	t.Run("custom fields in configured order", func(t *testing.T) {
		rules, err := BuildIdentityRules(
			[]string{"brand", " processor_model ", "screen_size_inches", "brand"},
			map[string]float64{"screen_size_inches": 0.1},
		)
		require.NoError(t, err)
		assert.Equal(t, []IdentityRule{
			{Field: FieldBrand},
			{Field: FieldProcessorModel, Label: "CPU"},
			{Field: FieldScreenSizeInches, Epsilon: 0.1},
		}, rules)
	})

	t.Run("unknown names are rejected", func(t *testing.T) {
		_, err := BuildIdentityRules([]string{"upc"}, nil)
		assert.ErrorContains(t, err, `unknown monitored field "upc"`)

		_, err = BuildIdentityRules(nil, map[string]float64{"cpu": 1})
		assert.ErrorContains(t, err, `unknown field "cpu"`)
	})
}
