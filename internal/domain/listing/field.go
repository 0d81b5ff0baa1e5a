package listing

// CanonicalField identifies one normalized laptop attribute, independent of any
// retailer's display wording.
type CanonicalField string

// String spec fields
const (
	FieldProductName          CanonicalField = "product_name"
	FieldBrand                CanonicalField = "brand"
	FieldColor                CanonicalField = "color"
	FieldYearOfRelease        CanonicalField = "year_of_release"
	FieldOperatingSystem      CanonicalField = "operating_system"
	FieldWindowsAI            CanonicalField = "windows_ai"
	FieldCasingMaterial       CanonicalField = "casing_material"
	FieldWirelessStandard     CanonicalField = "wireless_networking_standard"
	FieldAudioTechnology      CanonicalField = "audio_technology"
	FieldSecurityFeatures     CanonicalField = "security_features"
	FieldWarranty             CanonicalField = "warranty"
	FieldScreenType           CanonicalField = "screen_type"
	FieldDisplayType          CanonicalField = "display_type"
	FieldScreenResolution     CanonicalField = "screen_resolution"
	FieldGraphics             CanonicalField = "graphics"
	FieldGraphicsType         CanonicalField = "graphics_type"
	FieldProcessorModel       CanonicalField = "processor_model"
	FieldProcessorModelNumber CanonicalField = "processor_model_number"
	FieldDisplayConnectors    CanonicalField = "display_connectors"
	FieldUSBPorts             CanonicalField = "usb_ports"
	FieldStorageType          CanonicalField = "storage_type"
	FieldSSDInterface         CanonicalField = "solid_state_drive_interface"
	FieldMemoryType           CanonicalField = "type_of_memory_ram"
)

// Numeric spec fields
const (
	FieldProductWeightLbs     CanonicalField = "product_weight_lbs"
	FieldBatteryLifeHrs       CanonicalField = "battery_life_hrs"
	FieldBrightness           CanonicalField = "brightness"
	FieldScreenSizeInches     CanonicalField = "screen_size_inches"
	FieldRefreshRateHz        CanonicalField = "refresh_rate_hz"
	FieldCPUBaseClockGHz      CanonicalField = "cpu_base_clock_frequency_ghz"
	FieldCPUBoostClockGHz     CanonicalField = "cpu_boost_clock_frequency_ghz"
	FieldTotalStorageGB       CanonicalField = "total_storage_capacity_gb"
	FieldSystemMemoryGB       CanonicalField = "system_memory_ram_gb"
	FieldSystemMemorySpeedMHz CanonicalField = "system_memory_ram_speed_mhz"
)

// Integer spec fields
const (
	FieldCPUCores      CanonicalField = "number_of_cpu_cores"
	FieldCPUThreads    CanonicalField = "number_of_cpu_threads"
	FieldEthernetPorts CanonicalField = "number_of_ethernet_ports"
)

// Boolean spec fields
const (
	FieldBacklitKeyboard CanonicalField = "backlit_keyboard"
	FieldTwoInOneDesign  CanonicalField = "two_in_one_design"
	FieldTouchScreen     CanonicalField = "touch_screen"
	FieldNPU             CanonicalField = "neural_processing_unit_npu"
	FieldHeadphoneJack   CanonicalField = "headphone_jack"
	FieldMediaCardReader CanonicalField = "media_card_reader"
)

// FieldUPC is recognized by the normalizer so a listing without an explicit
// product code can fall back to it. It is never stored as a spec.
const FieldUPC CanonicalField = "upc"

// FieldKind selects the coercion rule applied to a field's raw text.
type FieldKind int

const (
	KindString FieldKind = iota
	KindNumber
	KindInteger
	KindBool
)

func (k FieldKind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindInteger:
		return "integer"
	case KindBool:
		return "bool"
	default:
		return "unknown"
	}
}

// SpecFields lists every spec field in column order.
var SpecFields = []CanonicalField{
	FieldProductName,
	FieldBrand,
	FieldColor,
	FieldYearOfRelease,
	FieldOperatingSystem,
	FieldWindowsAI,
	FieldProductWeightLbs,
	FieldCasingMaterial,
	FieldBatteryLifeHrs,
	FieldBacklitKeyboard,
	FieldWirelessStandard,
	FieldAudioTechnology,
	FieldSecurityFeatures,
	FieldWarranty,
	FieldTwoInOneDesign,
	FieldScreenType,
	FieldDisplayType,
	FieldScreenResolution,
	FieldBrightness,
	FieldScreenSizeInches,
	FieldTouchScreen,
	FieldRefreshRateHz,
	FieldGraphics,
	FieldGraphicsType,
	FieldProcessorModel,
	FieldProcessorModelNumber,
	FieldCPUBaseClockGHz,
	FieldCPUBoostClockGHz,
	FieldCPUCores,
	FieldCPUThreads,
	FieldNPU,
	FieldHeadphoneJack,
	FieldEthernetPorts,
	FieldMediaCardReader,
	FieldDisplayConnectors,
	FieldUSBPorts,
	FieldStorageType,
	FieldTotalStorageGB,
	FieldSSDInterface,
	FieldSystemMemoryGB,
	FieldMemoryType,
	FieldSystemMemorySpeedMHz,
}

// FieldKinds is the static coercion table. A field absent from this table is
// not part of the canonical set.
var FieldKinds = map[CanonicalField]FieldKind{
	FieldUPC: KindString,

	FieldProductName:          KindString,
	FieldBrand:                KindString,
	FieldColor:                KindString,
	FieldYearOfRelease:        KindString,
	FieldOperatingSystem:      KindString,
	FieldWindowsAI:            KindString,
	FieldCasingMaterial:       KindString,
	FieldWirelessStandard:     KindString,
	FieldAudioTechnology:      KindString,
	FieldSecurityFeatures:     KindString,
	FieldWarranty:             KindString,
	FieldScreenType:           KindString,
	FieldDisplayType:          KindString,
	FieldScreenResolution:     KindString,
	FieldGraphics:             KindString,
	FieldGraphicsType:         KindString,
	FieldProcessorModel:       KindString,
	FieldProcessorModelNumber: KindString,
	FieldDisplayConnectors:    KindString,
	FieldUSBPorts:             KindString,
	FieldStorageType:          KindString,
	FieldSSDInterface:         KindString,
	FieldMemoryType:           KindString,

	FieldProductWeightLbs:     KindNumber,
	FieldBatteryLifeHrs:       KindNumber,
	FieldBrightness:           KindNumber,
	FieldScreenSizeInches:     KindNumber,
	FieldRefreshRateHz:        KindNumber,
	FieldCPUBaseClockGHz:      KindNumber,
	FieldCPUBoostClockGHz:     KindNumber,
	FieldTotalStorageGB:       KindNumber,
	FieldSystemMemoryGB:       KindNumber,
	FieldSystemMemorySpeedMHz: KindNumber,

	FieldCPUCores:      KindInteger,
	FieldCPUThreads:    KindInteger,
	FieldEthernetPorts: KindInteger,

	FieldBacklitKeyboard: KindBool,
	FieldTwoInOneDesign:  KindBool,
	FieldTouchScreen:     KindBool,
	FieldNPU:             KindBool,
	FieldHeadphoneJack:   KindBool,
	FieldMediaCardReader: KindBool,
}

// absentDefaults holds the closed-world defaults: a missing spec line for
// these fields means the laptop does not have the feature.
var absentDefaults = map[CanonicalField]Value{
	FieldEthernetPorts:   IntegerValue(0),
	FieldMediaCardReader: BoolValue(false),
	FieldTwoInOneDesign:  BoolValue(false),
}

// Kind returns the coercion kind of f and whether f is canonical.
func (f CanonicalField) Kind() (FieldKind, bool) {
	k, ok := FieldKinds[f]
	return k, ok
}

// IsSpec reports whether f is stored on the product record.
func (f CanonicalField) IsSpec() bool {
	_, ok := FieldKinds[f]
	return ok && f != FieldUPC
}

// ParseCanonicalField validates a field name coming from configuration.
func ParseCanonicalField(name string) (CanonicalField, bool) {
	f := CanonicalField(name)
	if !f.IsSpec() {
		return "", false
	}
	return f, true
}
