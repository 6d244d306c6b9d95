package influxdb

import "errors"

// Sentinel errors for InfluxDB operations.
//
// These errors can be checked using errors.Is() for specific handling:
//
//	if errors.Is(err, influxdb.ErrQueryFailed) {
//	    // No fresh data this cycle
//	}
var (
	// ErrNotConnected indicates the client has been closed.
	ErrNotConnected = errors.New("influxdb: not connected")

	// ErrConnectionFailed indicates the server could not be reached or reported unhealthy.
	ErrConnectionFailed = errors.New("influxdb: connection failed")

	// ErrQueryFailed indicates a Flux query failed: network error, timeout,
	// or a non-success status from the server.
	ErrQueryFailed = errors.New("influxdb: query failed")

	// ErrInvalidConfig indicates required connection parameters are missing.
	ErrInvalidConfig = errors.New("influxdb: invalid configuration")
)
