package api

import (
	"context"
	"net/http"
	"time"

	"github.com/nerrad567/sunwatch/internal/telemetry"
)

// refreshRequestTimeout bounds a refresh triggered by an HTTP request.
const refreshRequestTimeout = 30 * time.Second

// CategoryResponse is the body of a single-category endpoint.
type CategoryResponse struct {
	Category    string `json:"category"`
	Data        any    `json:"data"`
	Timestamp   string `json:"timestamp"`
	TotalFields int    `json:"total_fields"`
}

// DashboardStatus is the status block of the dashboard payload.
type DashboardStatus struct {
	Online         bool    `json:"online"`
	DataAgeSeconds float64 `json:"data_age_seconds"`
	LastUpdate     string  `json:"last_update"`
}

// DashboardResponse is the compact payload behind GET /api/data.
type DashboardResponse struct {
	Timestamp  string           `json:"timestamp"`
	Status     DashboardStatus  `json:"status"`
	EnergyFlow telemetry.Values `json:"energy_flow"`
	Battery    telemetry.Values `json:"battery"`
	Strings    telemetry.Values `json:"strings"`
	System     telemetry.Values `json:"system"`
	Daily      telemetry.Values `json:"daily"`
	Calculated telemetry.Values `json:"calculated"`
}

// ExportResponse is the body of GET /api/export.
type ExportResponse struct {
	ExportFile string              `json:"export_file"`
	Data       *telemetry.Snapshot `json:"data"`
	Timestamp  string              `json:"timestamp"`
}

// snapshot returns the cached snapshot, refreshing once if the cache is empty.
// On failure the offline response has already been written.
func (s *Server) snapshot(w http.ResponseWriter, r *http.Request) (*telemetry.Snapshot, bool) {
	ctx, cancel := context.WithTimeout(r.Context(), refreshRequestTimeout)
	defer cancel()

	snap, err := s.cache.CurrentOrRefresh(ctx)
	if err != nil {
		s.logger.Warn("no snapshot available", "path", r.URL.Path, "error", err)
		writeOffline(w, err)
		return nil, false
	}
	return snap, true
}

// handleComprehensive returns every category plus the raw fields.
func (s *Server) handleComprehensive(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.snapshot(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// handleCategory returns a handler serving one category view.
func (s *Server) handleCategory(c telemetry.Category) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap, ok := s.snapshot(w, r)
		if !ok {
			return
		}

		values, built := snap.Category(c)
		if !built {
			// Snapshots built with a restricted category set
			var err error
			if values, err = telemetry.Transform(snap.Raw, c); err != nil {
				writeInternalError(w, err.Error())
				return
			}
		}

		writeJSON(w, http.StatusOK, CategoryResponse{
			Category:    string(c),
			Data:        values,
			Timestamp:   formatTime(snap.Timestamp),
			TotalFields: len(values),
		})
	}
}

// handleRaw returns the unprocessed field map.
func (s *Server) handleRaw(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.snapshot(w, r)
	if !ok {
		return
	}

	raw := snap.Raw
	if raw == nil {
		raw = telemetry.RawFieldMap{}
	}
	writeJSON(w, http.StatusOK, CategoryResponse{
		Category:    "raw",
		Data:        raw,
		Timestamp:   formatTime(snap.Timestamp),
		TotalFields: len(raw),
	})
}

// handleDashboard returns the compact overview payload.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.snapshot(w, r)
	if !ok {
		return
	}

	view := func(c telemetry.Category) telemetry.Values {
		if v, built := snap.Category(c); built {
			return v
		}
		v, _ := telemetry.Transform(snap.Raw, c) //nolint:errcheck // dashboard categories are always known
		return v
	}

	health := s.cache.Health()
	writeJSON(w, http.StatusOK, DashboardResponse{
		Timestamp: formatTime(snap.Timestamp),
		Status: DashboardStatus{
			Online:         snap.Online,
			DataAgeSeconds: health.AgeSeconds,
			LastUpdate:     formatTime(snap.Timestamp),
		},
		EnergyFlow: view(telemetry.CategoryEnergyFlow),
		Battery:    view(telemetry.CategoryBatteryStatus),
		Strings:    view(telemetry.CategoryStrings),
		System:     view(telemetry.CategorySystem),
		Daily:      view(telemetry.CategoryDaily),
		Calculated: view(telemetry.CategoryCalculated),
	})
}

// handleExport refreshes, writes the snapshot to disk and returns it.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), refreshRequestTimeout)
	defer cancel()

	snap, err := s.cache.ForceRefresh(ctx)
	if err != nil {
		s.logger.Warn("export refresh failed", "error", err)
		writeOffline(w, err)
		return
	}

	path, err := s.exporter.Write(snap)
	if err != nil {
		s.logger.Error("export write failed", "error", err)
		writeInternalError(w, err.Error())
		return
	}

	s.logger.Info("snapshot exported", "file", path, "fields", snap.FieldCount())
	writeJSON(w, http.StatusOK, ExportResponse{
		ExportFile: path,
		Data:       snap,
		Timestamp:  formatTime(time.Now()),
	})
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
