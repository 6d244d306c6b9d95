package influxdb

import (
	"context"
	"fmt"
	"sync"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"

	"github.com/nerrad567/sunwatch/internal/infrastructure/config"
)

// Default timeouts for InfluxDB operations.
const (
	defaultQueryTimeout = 30 * time.Second
	defaultPingTimeout  = 5 * time.Second
	defaultLookback     = 5 * time.Minute
)

// Client wraps the InfluxDB v2 client for read-only Flux queries.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
type Client struct {
	client   influxdb2.Client
	queryAPI api.QueryAPI

	bucket   string
	timeout  time.Duration
	lookback time.Duration

	// connected is false once Close has been called.
	connected bool
	mu        sync.RWMutex
}

// New creates a client for the configured server without contacting it.
//
// An unreachable server is not an error here: the refresh cache must be
// able to start Empty and recover once the store comes up.
//
// Parameters:
//   - cfg: InfluxDB configuration from config.yaml
//
// Returns:
//   - *Client: Client ready for queries
//   - error: ErrInvalidConfig if org, bucket or token are missing
func New(cfg config.InfluxDBConfig) (*Client, error) {
	if cfg.Token == "" || cfg.Org == "" || cfg.Bucket == "" {
		return nil, fmt.Errorf("%w: token, org and bucket are required", ErrInvalidConfig)
	}

	timeout := cfg.QueryTimeout()
	if timeout <= 0 {
		timeout = defaultQueryTimeout
	}
	lookback := cfg.Lookback()
	if lookback <= 0 {
		lookback = defaultLookback
	}

	// #nosec G115 -- timeout is positive
	client := influxdb2.NewClientWithOptions(
		cfg.ServerURL(),
		cfg.Token,
		influxdb2.DefaultOptions().
			SetHTTPRequestTimeout(uint(timeout/time.Second)),
	)

	return &Client{
		client:    client,
		queryAPI:  client.QueryAPI(cfg.Org),
		bucket:    cfg.Bucket,
		timeout:   timeout,
		lookback:  lookback,
		connected: true,
	}, nil
}

// Connect creates a client and verifies the server answers a ping.
//
// Parameters:
//   - ctx: Context for the initial ping
//   - cfg: InfluxDB configuration from config.yaml
//
// Returns:
//   - *Client: Connected client ready for use
//   - error: If the configuration is invalid or the server is unreachable
func Connect(ctx context.Context, cfg config.InfluxDBConfig) (*Client, error) {
	c, err := New(cfg)
	if err != nil {
		return nil, err
	}
	if err := c.HealthCheck(ctx); err != nil {
		c.Close() //nolint:errcheck // Close never fails
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}
	return c, nil
}

// Close releases idle connections held by the underlying client.
//
// Returns:
//   - error: nil (InfluxDB client Close doesn't return errors)
func (c *Client) Close() error {
	if c.client == nil {
		return nil
	}

	c.mu.Lock()
	c.connected = false
	c.mu.Unlock()

	c.client.Close()
	return nil
}

// HealthCheck verifies the InfluxDB server is alive by pinging it.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//
// Returns:
//   - error: nil if healthy, error describing the issue otherwise
func (c *Client) HealthCheck(ctx context.Context) error {
	if !c.IsConnected() {
		return ErrNotConnected
	}

	checkCtx, cancel := context.WithTimeout(ctx, defaultPingTimeout)
	defer cancel()

	healthy, err := c.client.Ping(checkCtx)
	if err != nil {
		return fmt.Errorf("influxdb health check failed: %w", err)
	}
	if !healthy {
		return fmt.Errorf("influxdb health check failed: server not healthy")
	}

	return nil
}

// IsConnected reports whether the client is still open.
//
// Note: This does not contact the server. Use HealthCheck or
// TestConnection for an active probe.
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

// Bucket returns the bucket queried by QueryLatest and TestConnection.
func (c *Client) Bucket() string {
	return c.bucket
}

// Timeout returns the per-query budget.
func (c *Client) Timeout() time.Duration {
	return c.timeout
}
