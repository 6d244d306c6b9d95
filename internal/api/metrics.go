package api

import (
	"net/http"
	"runtime"
	"time"

	"github.com/nerrad567/sunwatch/internal/refresh"
)

// SystemMetrics represents the complete system metrics response.
type SystemMetrics struct {
	Timestamp     string         `json:"timestamp"`
	Version       string         `json:"version"`
	UptimeSeconds int64          `json:"uptime_seconds"`
	Runtime       RuntimeMetrics `json:"runtime"`
	WebSocket     WSMetrics      `json:"websocket"`
	MQTT          MQTTMetrics    `json:"mqtt"`
	Cache         CacheMetrics   `json:"cache"`
}

// RuntimeMetrics contains Go runtime statistics.
type RuntimeMetrics struct {
	Goroutines    int     `json:"goroutines"`
	MemoryAllocMB float64 `json:"memory_alloc_mb"`
	MemoryTotalMB float64 `json:"memory_total_mb"`
	NumGC         uint32  `json:"num_gc"`
}

// WSMetrics contains WebSocket hub statistics.
type WSMetrics struct {
	ConnectedClients int `json:"connected_clients"`
}

// MQTTMetrics contains MQTT client and bridge statistics.
type MQTTMetrics struct {
	Enabled       bool  `json:"enabled"`
	Connected     bool  `json:"connected"`
	Subscriptions int   `json:"subscriptions"`
	Published     int64 `json:"snapshots_published"`
	Failed        int64 `json:"publish_failures"`
}

// CacheMetrics summarises the refresh cache.
type CacheMetrics struct {
	State               refresh.State `json:"state"`
	Fields              int           `json:"fields"`
	AgeSeconds          float64       `json:"age_seconds"`
	IntervalSeconds     int           `json:"update_interval"`
	ConsecutiveFailures int64         `json:"consecutive_failures"`
	LastError           string        `json:"last_error,omitempty"`
}

// handleSystemMetrics returns runtime, WebSocket, MQTT and cache statistics.
func (s *Server) handleSystemMetrics(w http.ResponseWriter, _ *http.Request) {
	// Collect runtime stats
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	health := s.cache.Health()
	snap, _ := s.cache.Current()

	metrics := SystemMetrics{
		Timestamp:     formatTime(time.Now()),
		Version:       s.version,
		UptimeSeconds: int64(time.Since(s.startTime).Seconds()),
		Runtime: RuntimeMetrics{
			Goroutines:    runtime.NumGoroutine(),
			MemoryAllocMB: float64(memStats.Alloc) / 1024 / 1024,
			MemoryTotalMB: float64(memStats.TotalAlloc) / 1024 / 1024,
			NumGC:         memStats.NumGC,
		},
		Cache: CacheMetrics{
			State:               health.State,
			Fields:              snap.FieldCount(),
			AgeSeconds:          health.AgeSeconds,
			IntervalSeconds:     health.IntervalSeconds,
			ConsecutiveFailures: health.ConsecutiveFailures,
			LastError:           s.cache.LastError(),
		},
	}

	if s.hub != nil {
		metrics.WebSocket.ConnectedClients = s.hub.ClientCount()
	}

	// MQTT metrics (if enabled)
	if s.mqtt != nil {
		metrics.MQTT.Enabled = true
		metrics.MQTT.Connected = s.mqtt.IsConnected()
		metrics.MQTT.Subscriptions = s.mqtt.SubscriptionCount()
	}
	if s.bridge != nil {
		metrics.MQTT.Published, metrics.MQTT.Failed = s.bridge.Stats()
	}

	writeJSON(w, http.StatusOK, metrics)
}
