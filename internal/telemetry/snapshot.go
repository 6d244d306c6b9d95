package telemetry

import (
	"encoding/json"
	"fmt"
	"time"
)

// Category names one view of a snapshot.
type Category string

// Comprehensive categories.
const (
	CategoryPower       Category = "power"
	CategoryEnergy      Category = "energy"
	CategoryVoltage     Category = "voltage"
	CategoryCurrent     Category = "current"
	CategoryTemperature Category = "temperature"
	CategoryBattery     Category = "battery"
)

// Dashboard categories.
const (
	CategoryEnergyFlow    Category = "energy_flow"
	CategoryBatteryStatus Category = "battery_status"
	CategoryStrings       Category = "strings"
	CategorySystem        Category = "system"
	CategoryDaily         Category = "daily"
	CategoryCalculated    Category = "calculated"
)

// ComprehensiveCategories are the per-quantity views.
var ComprehensiveCategories = []Category{
	CategoryPower,
	CategoryEnergy,
	CategoryVoltage,
	CategoryCurrent,
	CategoryTemperature,
	CategoryBattery,
}

// DashboardCategories are the compact cards of the overview page.
var DashboardCategories = []Category{
	CategoryEnergyFlow,
	CategoryBatteryStatus,
	CategoryStrings,
	CategorySystem,
	CategoryDaily,
	CategoryCalculated,
}

// views maps every category to its transform.
var views = map[Category]func(RawFieldMap) Values{
	CategoryPower:         PowerView,
	CategoryEnergy:        EnergyView,
	CategoryVoltage:       VoltageView,
	CategoryCurrent:       CurrentView,
	CategoryTemperature:   TemperatureView,
	CategoryBattery:       BatteryView,
	CategoryEnergyFlow:    EnergyFlowView,
	CategoryBatteryStatus: BatteryStatusView,
	CategoryStrings:       StringsView,
	CategorySystem:        SystemView,
	CategoryDaily:         DailyView,
	CategoryCalculated:    CalculatedView,
}

// AllCategories returns every known category, comprehensive first.
func AllCategories() []Category {
	all := make([]Category, 0, len(ComprehensiveCategories)+len(DashboardCategories))
	all = append(all, ComprehensiveCategories...)
	return append(all, DashboardCategories...)
}

// Transform applies the transform of a single category.
func Transform(raw RawFieldMap, c Category) (Values, error) {
	view, ok := views[c]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCategory, c)
	}
	return view(raw), nil
}

// Snapshot is one consistent set of category views produced from a single
// raw field map. A published Snapshot is never modified.
type Snapshot struct {
	Timestamp  time.Time
	Online     bool
	Categories map[Category]Values
	Raw        RawFieldMap
}

// Build derives the requested category views from raw. With no categories
// given, every known view is built. Build takes ownership of raw.
func Build(raw RawFieldMap, at time.Time, categories ...Category) (*Snapshot, error) {
	if raw == nil {
		raw = RawFieldMap{}
	}
	if len(categories) == 0 {
		categories = AllCategories()
	}

	s := &Snapshot{
		Timestamp:  at,
		Online:     len(raw) > 0,
		Categories: make(map[Category]Values, len(categories)),
		Raw:        raw,
	}
	for _, c := range categories {
		values, err := Transform(raw, c)
		if err != nil {
			return nil, err
		}
		s.Categories[c] = values
	}
	return s, nil
}

// Category returns the view for c, if it was built.
func (s *Snapshot) Category(c Category) (Values, bool) {
	if s == nil {
		return nil, false
	}
	v, ok := s.Categories[c]
	return v, ok
}

// FieldCount is the number of raw fields captured in this snapshot.
func (s *Snapshot) FieldCount() int {
	if s == nil {
		return 0
	}
	return len(s.Raw)
}

// Metadata summarises a snapshot for API consumers.
type Metadata struct {
	TotalFieldsCaptured int       `json:"total_fields_captured"`
	LastUpdate          time.Time `json:"last_update"`
	SystemOnline        bool      `json:"system_online"`
}

// MarshalJSON renders the snapshot as one flat document: timestamp,
// metadata, one object per built category, and the raw fields under
// "raw_data".
func (s *Snapshot) MarshalJSON() ([]byte, error) {
	doc := make(map[string]any, len(s.Categories)+3)
	for c, v := range s.Categories {
		doc[string(c)] = v
	}
	doc["timestamp"] = s.Timestamp.Format(time.RFC3339)
	doc["metadata"] = Metadata{
		TotalFieldsCaptured: s.FieldCount(),
		LastUpdate:          s.Timestamp,
		SystemOnline:        s.Online,
	}
	raw := s.Raw
	if raw == nil {
		raw = RawFieldMap{}
	}
	doc["raw_data"] = raw
	return json.Marshal(doc)
}
