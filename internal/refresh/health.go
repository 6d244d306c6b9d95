package refresh

import (
	"context"
	"time"
)

// State is the coarse condition of the cache.
type State string

// Cache states.
const (
	StateEmpty State = "empty"
	StateFresh State = "fresh"
	StateStale State = "stale"
)

// Health describes how current the published snapshot is.
type Health struct {
	Healthy             bool       `json:"healthy"`
	State               State      `json:"state"`
	LastUpdate          *time.Time `json:"last_update"`
	IntervalSeconds     int        `json:"update_interval"`
	AgeSeconds          float64    `json:"age_seconds"`
	Stale               bool       `json:"stale"`
	ConsecutiveFailures int64      `json:"consecutive_failures"`
}

// Health reports the cache state without touching the store.
//
// Healthy means a snapshot exists; Stale means it is older than one interval.
func (c *Cache) Health() Health {
	h := Health{
		State:               StateEmpty,
		IntervalSeconds:     int(c.interval / time.Second),
		ConsecutiveFailures: c.failures.Load(),
	}

	st := c.current.Load()
	if st == nil {
		return h
	}

	last := st.lastUpdate
	age := c.now().Sub(last)
	if age < 0 {
		age = 0
	}

	h.Healthy = true
	h.LastUpdate = &last
	h.AgeSeconds = age.Seconds()
	h.Stale = age > c.interval
	h.State = StateFresh
	if h.Stale {
		h.State = StateStale
	}
	return h
}

// Status extends Health with a live connectivity probe and snapshot facts.
type Status struct {
	Health
	Connected           bool   `json:"influxdb_connection"`
	CachedDataAvailable bool   `json:"cached_data_available"`
	TotalFields         int    `json:"total_fields_captured"`
	LastError           string `json:"last_error,omitempty"`
}

// Status probes the store and combines the result with Health.
func (c *Cache) Status(ctx context.Context) Status {
	snap, ok := c.Current()
	return Status{
		Health:              c.Health(),
		Connected:           c.TestConnection(ctx),
		CachedDataAvailable: ok,
		TotalFields:         snap.FieldCount(),
		LastError:           c.LastError(),
	}
}
