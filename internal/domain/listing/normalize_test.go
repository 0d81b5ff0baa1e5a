package listing

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeKey(t *testing.T) {
	t.Run("maps every override entry", func(t *testing.T) {
		cases := map[string]CanonicalField{
			"Product Weight":                  FieldProductWeightLbs,
			"Battery Life (Up to)":            FieldBatteryLifeHrs,
			"Manufacturer's Warranty - Labor": FieldWarranty,
			"Screen Size":                     FieldScreenSizeInches,
			"Refresh Rate":                    FieldRefreshRateHz,
			"CPU Base Clock Frequency":        FieldCPUBaseClockGHz,
			"CPU Boost Clock Frequency":       FieldCPUBoostClockGHz,
			"Total Storage Capacity":          FieldTotalStorageGB,
			"System Memory (RAM)":             FieldSystemMemoryGB,
			"System Memory RAM Speed":         FieldSystemMemorySpeedMHz,
			"2-in-1 Design":                   FieldTwoInOneDesign,
		}
		for name, want := range cases {
			got, ok := NormalizeKey(name)
			assert.True(t, ok, name)
			assert.Equal(t, want, got, name)
		}
	})

	t.Run("ignores casing and surrounding whitespace", func(t *testing.T) {
		for _, name := range []string{"  SCREEN SIZE ", "screen size", "Screen-Size", "screen\tsize"} {
			got, ok := NormalizeKey(name)
			assert.True(t, ok, name)
			assert.Equal(t, FieldScreenSizeInches, got, name)
		}
	})

	t.Run("normalizes compatibility characters", func(t *testing.T) {
		got, ok := NormalizeKey("Ｂｒａｎｄ")
		assert.True(t, ok)
		assert.Equal(t, FieldBrand, got)
	})

	t.Run("maps regular names directly", func(t *testing.T) {
		got, ok := NormalizeKey("Processor Model")
		assert.True(t, ok)
		assert.Equal(t, FieldProcessorModel, got)

		got, ok = NormalizeKey("Neural Processing Unit (NPU)")
		assert.True(t, ok)
		assert.Equal(t, FieldNPU, got)
	})

	t.Run("recognizes the UPC attribute", func(t *testing.T) {
		got, ok := NormalizeKey("UPC")
		assert.True(t, ok)
		assert.Equal(t, FieldUPC, got)
	})

	t.Run("drops names outside the canonical set", func(t *testing.T) {
		for _, name := range []string{"Model Number", "Keyboard Layout", "", "   "} {
			_, ok := NormalizeKey(name)
			assert.False(t, ok, name)
		}
	})
}
