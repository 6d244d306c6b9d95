// Package telemetry turns the store's annotated CSV into dashboard views.
//
// The pipeline has two stages:
//
//   - ParseCSV converts the query response into a RawFieldMap of
//     hierarchical field names ("Power.Production.Total") to int64,
//     float64 or string values.
//   - Build applies the category transforms to a RawFieldMap and wraps the
//     result in an immutable Snapshot.
//
// # Units
//
// Raw power is reported in W and converted to kW everywhere it is shown.
// Energy counters are already kWh and are only rounded. Each transform
// reads raw values through a Field descriptor carrying its fallback, so a
// missing point substitutes a documented default and never fails.
//
// # Views
//
// The comprehensive views (power, energy, voltage, current, temperature,
// battery) expose every known point. The dashboard views (energy_flow,
// battery_status, strings, system, daily, calculated) are compact cards
// for the overview page. Both sets are built from the same RawFieldMap in
// one pass, so they always agree.
//
// All functions in this package are pure and safe for concurrent use.
package telemetry
