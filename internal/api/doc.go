// Package api provides the HTTP REST API and WebSocket server for sunwatch.
//
// Every snapshot endpoint reads the refresh cache; none of them queries the
// store directly, except for the first request against an empty cache and
// the explicit refresh and export endpoints.
//
// Endpoints (all under /api):
//
//	GET  /comprehensive         full snapshot: every category plus raw_data
//	GET  /power|energy|...|raw  one category
//	GET  /data                  compact dashboard payload
//	GET  /export                refresh, write a JSON export, return it
//	GET  /status                cache state and store connectivity
//	GET  /health                200 when data is cached, 503 otherwise
//	POST /refresh               force a refresh
//	GET  /system/metrics        runtime, WebSocket, MQTT and cache stats
//	GET  /ws                    live snapshot stream
//
// Prometheus metrics are served at /metrics.
package api
