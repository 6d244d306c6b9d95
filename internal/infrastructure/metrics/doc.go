// Package metrics exposes Prometheus instrumentation for sunwatch.
//
// All collectors live in a private registry served by Handler, so tests can
// create as many Metrics values as they like. Every method is safe to call
// on a nil *Metrics, which lets components run uninstrumented.
//
// Exported series:
//
//	sunwatch_refresh_cycles_total{outcome}
//	sunwatch_refresh_duration_seconds
//	sunwatch_snapshot_fields
//	sunwatch_cache_state            (0 empty, 1 fresh, 2 stale)
//	sunwatch_snapshot_age_seconds
//	sunwatch_http_requests_total{route,status}
//	sunwatch_http_request_duration_seconds{route}
//	sunwatch_websocket_clients
//	sunwatch_mqtt_publishes_total{result}
package metrics
