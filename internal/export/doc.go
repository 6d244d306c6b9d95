// Package export writes telemetry snapshots to timestamped JSON files.
//
// File names follow solar_snapshot_YYYYMMDD_HHMMSS.json and are created
// exclusively, so an existing export is never overwritten. When two exports
// land in the same second a numeric suffix is appended.
package export
