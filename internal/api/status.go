package api

import (
	"context"
	"net/http"
	"time"

	"github.com/nerrad567/sunwatch/internal/refresh"
)

// statusProbeTimeout bounds the store connectivity probe.
const statusProbeTimeout = 5 * time.Second

// StatusResponse is the body of GET /api/status and POST /api/refresh.
type StatusResponse struct {
	Server  string `json:"server"`
	Version string `json:"version"`
	refresh.Status
}

// HealthResponse is the body of GET /api/health.
type HealthResponse struct {
	Healthy       bool          `json:"healthy"`
	State         refresh.State `json:"state"`
	Timestamp     string        `json:"timestamp"`
	UptimeSeconds int64         `json:"uptime_seconds"`
	LastUpdate    *time.Time    `json:"last_update"`
	Stale         bool          `json:"stale"`
}

// handleStatus reports cache state and probes the store.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.status(r.Context()))
}

// handleHealth returns 200 while a snapshot is cached and 503 otherwise.
// It never touches the store.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	h := s.cache.Health()

	code := http.StatusOK
	if !h.Healthy {
		code = http.StatusServiceUnavailable
	}

	writeJSON(w, code, HealthResponse{
		Healthy:       h.Healthy,
		State:         h.State,
		Timestamp:     formatTime(time.Now()),
		UptimeSeconds: int64(time.Since(s.startTime).Seconds()),
		LastUpdate:    h.LastUpdate,
		Stale:         h.Stale,
	})
}

// handleRefresh forces a refresh cycle.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), refreshRequestTimeout)
	defer cancel()

	if _, err := s.cache.ForceRefresh(ctx); err != nil {
		s.logger.Warn("forced refresh failed", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, s.status(r.Context()))
		return
	}

	s.logger.Info("forced refresh completed")
	writeJSON(w, http.StatusOK, s.status(r.Context()))
}

func (s *Server) status(ctx context.Context) StatusResponse {
	ctx, cancel := context.WithTimeout(ctx, statusProbeTimeout)
	defer cancel()

	return StatusResponse{
		Server:  ServerName,
		Version: s.version,
		Status:  s.cache.Status(ctx),
	}
}
