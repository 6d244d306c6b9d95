package influxdb

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api"
)

// probeLookback and probeLimit shape the cheap connectivity query.
const (
	probeLookback = time.Minute
	probeLimit    = 1
)

// Execute runs a Flux query and returns the annotated CSV response body.
//
// The query is bounded by the client timeout even if ctx has no deadline.
//
// Parameters:
//   - ctx: Context for cancellation
//   - flux: Flux script to execute
//
// Returns:
//   - string: Raw annotated CSV (annotations, header and data rows)
//   - error: Wraps ErrQueryFailed on network errors, timeouts, or non-2xx responses
func (c *Client) Execute(ctx context.Context, flux string) (string, error) {
	if !c.IsConnected() {
		return "", ErrNotConnected
	}

	queryCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	raw, err := c.queryAPI.QueryRaw(queryCtx, flux, api.DefaultDialect())
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrQueryFailed, err)
	}
	return raw, nil
}

// QueryLatest fetches the most recent value of every field in the bucket,
// pivoted into a single row per series.
func (c *Client) QueryLatest(ctx context.Context) (string, error) {
	return c.Execute(ctx, LatestQuery(c.bucket, c.lookback))
}

// TestConnection issues a minimal query against the bucket.
//
// It reports whether the query succeeded; the response content is ignored.
func (c *Client) TestConnection(ctx context.Context) bool {
	_, err := c.Execute(ctx, ProbeQuery(c.bucket))
	return err == nil
}

// LatestQuery builds the Flux script returning the last value of every
// field within the look-back window, one column per field.
//
// Example:
//
//	from(bucket: "solar")
//	  |> range(start: -5m)
//	  |> last()
//	  |> pivot(rowKey: ["_time"], columnKey: ["_field"], valueColumn: "_value")
func LatestQuery(bucket string, lookback time.Duration) string {
	return fmt.Sprintf(
		"from(bucket: %s)\n"+
			"  |> range(start: -%s)\n"+
			"  |> last()\n"+
			"  |> pivot(rowKey: [\"_time\"], columnKey: [\"_field\"], valueColumn: \"_value\")",
		strconv.Quote(bucket), fluxDuration(lookback))
}

// ProbeQuery builds the connectivity check: one row from the last minute.
func ProbeQuery(bucket string) string {
	return fmt.Sprintf(
		"from(bucket: %s)\n  |> range(start: -%s)\n  |> limit(n: %d)",
		strconv.Quote(bucket), fluxDuration(probeLookback), probeLimit)
}

// fluxDuration renders d as a Flux duration literal in the coarsest exact unit.
func fluxDuration(d time.Duration) string {
	switch {
	case d <= 0:
		return "0s"
	case d%time.Hour == 0:
		return strconv.FormatInt(int64(d/time.Hour), 10) + "h"
	case d%time.Minute == 0:
		return strconv.FormatInt(int64(d/time.Minute), 10) + "m"
	case d%time.Second == 0:
		return strconv.FormatInt(int64(d/time.Second), 10) + "s"
	default:
		return strconv.FormatInt(d.Milliseconds(), 10) + "ms"
	}
}
