// Package influxdb is the query client for the solar telemetry store.
//
// It wraps the official influxdb-client-go v2 library. Queries are Flux
// scripts executed through the raw query API, so callers receive the
// annotated CSV text exactly as the server produced it; parsing is left
// to the telemetry package.
//
// # Usage
//
//	client, err := influxdb.New(cfg.InfluxDB)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	csv, err := client.QueryLatest(ctx)
//	if errors.Is(err, influxdb.ErrQueryFailed) {
//	    // keep serving the previous snapshot
//	}
//
// # Timeouts
//
// Every query runs under the configured budget (30s by default), enforced
// both on the HTTP transport and on the request context. Failures are
// returned as errors wrapping ErrQueryFailed and never panic.
//
// # Thread Safety
//
// All methods are safe for concurrent use from multiple goroutines.
package influxdb
