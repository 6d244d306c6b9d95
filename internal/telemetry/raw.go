package telemetry

import "math"

// RawFieldMap maps a hierarchical field name (e.g. "Power.Production.Total")
// to the value reported by the store. Values are int64, float64, or string
// when the store's value could not be read as a number.
//
// A RawFieldMap is produced fresh by ParseCSV on every refresh cycle and is
// treated as immutable once it has been wrapped in a Snapshot.
type RawFieldMap map[string]any

// Field describes one raw telemetry point together with the value used
// when the point is missing from a RawFieldMap.
type Field struct {
	Name    string
	Default float64
}

// WithDefault returns a copy of f that falls back to d instead.
func (f Field) WithDefault(d float64) Field {
	f.Default = d
	return f
}

// Float returns the numeric value of f, or f.Default if the field is
// absent or not numeric. It never panics.
func (m RawFieldMap) Float(f Field) float64 {
	v, ok := m.number(f.Name)
	if !ok {
		return f.Default
	}
	return v
}

func (m RawFieldMap) number(name string) (float64, bool) {
	switch v := m[name].(type) {
	case int64:
		return float64(v), true
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return 0, false
		}
		return v, true
	case float32:
		return float64(v), true
	default:
		return 0, false
	}
}
