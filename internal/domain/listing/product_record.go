package listing

import (
	"strings"

	"github.com/dealtracker/backend/internal/domain/shared"
)

// ProductRecord is the deduplicated identity of one physical product. It
// holds the latest spec snapshot and no prices. Records are created on first
// observation of a product code and are never deleted.
type ProductRecord struct {
	shared.BaseEntity
	ProductCode string `gorm:"type:varchar(64);not null;uniqueIndex"`

	// General
	ProductName                *string  `gorm:"column:product_name"`
	Brand                      *string  `gorm:"column:brand"`
	Color                      *string  `gorm:"column:color"`
	YearOfRelease              *string  `gorm:"column:year_of_release"`
	OperatingSystem            *string  `gorm:"column:operating_system"`
	WindowsAI                  *string  `gorm:"column:windows_ai"`
	ProductWeightLbs           *float64 `gorm:"column:product_weight_lbs"`
	CasingMaterial             *string  `gorm:"column:casing_material"`
	BatteryLifeHrs             *float64 `gorm:"column:battery_life_hrs"`
	BacklitKeyboard            bool     `gorm:"column:backlit_keyboard"`
	WirelessNetworkingStandard *string  `gorm:"column:wireless_networking_standard"`
	AudioTechnology            *string  `gorm:"column:audio_technology"`
	SecurityFeatures           *string  `gorm:"column:security_features"`
	Warranty                   *string  `gorm:"column:warranty"`
	TwoInOneDesign             bool     `gorm:"column:two_in_one_design"`

	// Display
	ScreenType       *string  `gorm:"column:screen_type"`
	DisplayType      *string  `gorm:"column:display_type"`
	ScreenResolution *string  `gorm:"column:screen_resolution"`
	Brightness       *float64 `gorm:"column:brightness"`
	ScreenSizeInches *float64 `gorm:"column:screen_size_inches"`
	TouchScreen      bool     `gorm:"column:touch_screen"`
	RefreshRateHz    *float64 `gorm:"column:refresh_rate_hz"`

	// Graphics
	Graphics     *string `gorm:"column:graphics"`
	GraphicsType *string `gorm:"column:graphics_type"`

	// Processor
	ProcessorModel       *string  `gorm:"column:processor_model"`
	ProcessorModelNumber *string  `gorm:"column:processor_model_number"`
	CPUBaseClockGHz      *float64 `gorm:"column:cpu_base_clock_frequency_ghz"`
	CPUBoostClockGHz     *float64 `gorm:"column:cpu_boost_clock_frequency_ghz"`
	CPUCores             *int64   `gorm:"column:number_of_cpu_cores"`
	CPUThreads           *int64   `gorm:"column:number_of_cpu_threads"`
	NPU                  bool     `gorm:"column:neural_processing_unit_npu"`

	// Ports
	HeadphoneJack     bool    `gorm:"column:headphone_jack"`
	EthernetPorts     *int64  `gorm:"column:number_of_ethernet_ports"`
	MediaCardReader   bool    `gorm:"column:media_card_reader"`
	DisplayConnectors *string `gorm:"column:display_connectors"`
	USBPorts          *string `gorm:"column:usb_ports"`

	// Storage and memory
	StorageType              *string  `gorm:"column:storage_type"`
	TotalStorageGB           *float64 `gorm:"column:total_storage_capacity_gb"`
	SolidStateDriveInterface *string  `gorm:"column:solid_state_drive_interface"`
	SystemMemoryGB           *float64 `gorm:"column:system_memory_ram_gb"`
	MemoryType               *string  `gorm:"column:type_of_memory_ram"`
	SystemMemorySpeedMHz     *float64 `gorm:"column:system_memory_ram_speed_mhz"`
}

// TableName returns the table name for GORM
func (ProductRecord) TableName() string {
	return "product_records"
}

// NewProductRecord creates a record for a product code seen for the first
// time, populated from every spec field of the observation.
func NewProductRecord(code string, specs Specs) *ProductRecord {
	r := &ProductRecord{
		BaseEntity:  shared.NewBaseEntity(),
		ProductCode: strings.TrimSpace(code),
	}
	for _, f := range SpecFields {
		r.SetSpec(f, specs.Get(f))
	}
	return r
}

// Spec returns the stored value of a spec field.
func (r *ProductRecord) Spec(f CanonicalField) Value {
	kind, ok := f.Kind()
	if !ok {
		return Value{}
	}
	switch kind {
	case KindString:
		if p := r.stringRef(f); p != nil && *p != nil {
			return StringValue(**p)
		}
	case KindNumber:
		if p := r.numberRef(f); p != nil && *p != nil {
			return NumberValue(**p)
		}
	case KindInteger:
		if p := r.integerRef(f); p != nil && *p != nil {
			return IntegerValue(**p)
		}
	case KindBool:
		if p := r.boolRef(f); p != nil {
			return BoolValue(*p)
		}
	}
	return Null(kind)
}

// SetSpec stores v in field f. A null v clears the column; booleans have no
// null and are stored as false.
func (r *ProductRecord) SetSpec(f CanonicalField, v Value) {
	kind, ok := f.Kind()
	if !ok {
		return
	}
	switch kind {
	case KindString:
		if p := r.stringRef(f); p != nil {
			*p = nil
			if v.Valid {
				s := v.Text
				*p = &s
			}
		}
	case KindNumber:
		if p := r.numberRef(f); p != nil {
			*p = nil
			if v.Valid {
				n := v.Number
				*p = &n
			}
		}
	case KindInteger:
		if p := r.integerRef(f); p != nil {
			*p = nil
			if v.Valid {
				n := v.Int()
				*p = &n
			}
		}
	case KindBool:
		if p := r.boolRef(f); p != nil {
			*p = v.Valid && v.Flag
		}
	}
}

// Specs returns the stored spec snapshot.
func (r *ProductRecord) Specs() Specs {
	specs := make(Specs, len(SpecFields))
	for _, f := range SpecFields {
		specs[f] = r.Spec(f)
	}
	return specs
}

// Refresh overwrites every spec field for which the observation carries a
// value. Fields the observation leaves null keep their stored value.
func (r *ProductRecord) Refresh(observed Specs) {
	for _, f := range SpecFields {
		if v := observed.Get(f); v.Valid {
			r.SetSpec(f, v)
		}
	}
}

func (r *ProductRecord) stringRef(f CanonicalField) **string {
	switch f {
	case FieldProductName:
		return &r.ProductName
	case FieldBrand:
		return &r.Brand
	case FieldColor:
		return &r.Color
	case FieldYearOfRelease:
		return &r.YearOfRelease
	case FieldOperatingSystem:
		return &r.OperatingSystem
	case FieldWindowsAI:
		return &r.WindowsAI
	case FieldCasingMaterial:
		return &r.CasingMaterial
	case FieldWirelessStandard:
		return &r.WirelessNetworkingStandard
	case FieldAudioTechnology:
		return &r.AudioTechnology
	case FieldSecurityFeatures:
		return &r.SecurityFeatures
	case FieldWarranty:
		return &r.Warranty
	case FieldScreenType:
		return &r.ScreenType
	case FieldDisplayType:
		return &r.DisplayType
	case FieldScreenResolution:
		return &r.ScreenResolution
	case FieldGraphics:
		return &r.Graphics
	case FieldGraphicsType:
		return &r.GraphicsType
	case FieldProcessorModel:
		return &r.ProcessorModel
	case FieldProcessorModelNumber:
		return &r.ProcessorModelNumber
	case FieldDisplayConnectors:
		return &r.DisplayConnectors
	case FieldUSBPorts:
		return &r.USBPorts
	case FieldStorageType:
		return &r.StorageType
	case FieldSSDInterface:
		return &r.SolidStateDriveInterface
	case FieldMemoryType:
		return &r.MemoryType
	}
	return nil
}

func (r *ProductRecord) numberRef(f CanonicalField) **float64 {
	switch f {
	case FieldProductWeightLbs:
		return &r.ProductWeightLbs
	case FieldBatteryLifeHrs:
		return &r.BatteryLifeHrs
	case FieldBrightness:
		return &r.Brightness
	case FieldScreenSizeInches:
		return &r.ScreenSizeInches
	case FieldRefreshRateHz:
		return &r.RefreshRateHz
	case FieldCPUBaseClockGHz:
		return &r.CPUBaseClockGHz
	case FieldCPUBoostClockGHz:
		return &r.CPUBoostClockGHz
	case FieldTotalStorageGB:
		return &r.TotalStorageGB
	case FieldSystemMemoryGB:
		return &r.SystemMemoryGB
	case FieldSystemMemorySpeedMHz:
		return &r.SystemMemorySpeedMHz
	}
	return nil
}

func (r *ProductRecord) integerRef(f CanonicalField) **int64 {
	switch f {
	case FieldCPUCores:
		return &r.CPUCores
	case FieldCPUThreads:
		return &r.CPUThreads
	case FieldEthernetPorts:
		return &r.EthernetPorts
	}
	return nil
}

func (r *ProductRecord) boolRef(f CanonicalField) *bool {
	switch f {
	case FieldBacklitKeyboard:
		return &r.BacklitKeyboard
	case FieldTwoInOneDesign:
		return &r.TwoInOneDesign
	case FieldTouchScreen:
		return &r.TouchScreen
	case FieldNPU:
		return &r.NPU
	case FieldHeadphoneJack:
		return &r.HeadphoneJack
	case FieldMediaCardReader:
		return &r.MediaCardReader
	}
	return nil
}
