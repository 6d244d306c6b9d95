// Sunwatch - solar inverter telemetry service
//
// Sunwatch polls the latest inverter readings from InfluxDB, keeps an
// in-memory snapshot of them, and serves that snapshot over a REST API,
// a WebSocket stream, Prometheus metrics and, optionally, MQTT.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nerrad567/sunwatch/internal/api"
	"github.com/nerrad567/sunwatch/internal/export"
	"github.com/nerrad567/sunwatch/internal/infrastructure/config"
	"github.com/nerrad567/sunwatch/internal/infrastructure/influxdb"
	"github.com/nerrad567/sunwatch/internal/infrastructure/logging"
	"github.com/nerrad567/sunwatch/internal/infrastructure/metrics"
	"github.com/nerrad567/sunwatch/internal/infrastructure/mqtt"
	"github.com/nerrad567/sunwatch/internal/refresh"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

// startupProbeTimeout bounds the initial InfluxDB reachability check.
const startupProbeTimeout = 5 * time.Second

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
//
// Components start in dependency order and are closed in reverse by the
// deferred calls.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting Sunwatch",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
		"site", cfg.Site.ID,
	)

	// InfluxDB. An unreachable store is logged, not fatal: the cache starts
	// Empty and recovers when the store comes up.
	influxClient, err := influxdb.New(cfg.InfluxDB)
	if err != nil {
		return fmt.Errorf("creating InfluxDB client: %w", err)
	}
	defer func() {
		log.Info("closing InfluxDB connection")
		if closeErr := influxClient.Close(); closeErr != nil {
			log.Error("error closing InfluxDB", "error", closeErr)
		}
	}()
	probeInfluxDB(ctx, influxClient, cfg.InfluxDB, log)

	m := metrics.New()

	cache := refresh.New(influxClient, refresh.Options{
		Interval:        cfg.GetRefreshInterval(),
		RetryDelay:      cfg.GetRetryDelay(),
		ShutdownTimeout: cfg.GetShutdownTimeout(),
		Logger:          log,
		Observer:        m,
	})
	m.WatchCache(cache)
	if startErr := cache.Start(ctx); startErr != nil {
		return fmt.Errorf("starting refresh cache: %w", startErr)
	}
	defer func() {
		log.Info("stopping refresh cache")
		if closeErr := cache.Close(); closeErr != nil {
			log.Error("error stopping refresh cache", "error", closeErr)
		}
	}()
	log.Info("refresh cache started", "interval", cache.Interval().String())

	// MQTT fan-out (optional)
	var mqttClient *mqtt.Client
	var bridge *mqtt.Bridge
	if cfg.MQTT.Enabled {
		mqttClient, bridge, err = startMQTT(ctx, cfg.MQTT, cache, m, log)
		if err != nil {
			return err
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			bridge.Stop()
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
	} else {
		log.Info("MQTT disabled")
	}

	apiServer, err := api.New(api.Deps{
		Config:   cfg.API,
		WS:       cfg.WebSocket,
		Logger:   log,
		Cache:    cache,
		Exporter: export.NewWriter(cfg.Export.Directory),
		Metrics:  m,
		MQTT:     mqttClient,
		Bridge:   bridge,
		Version:  version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if startErr := apiServer.Start(ctx); startErr != nil {
		return fmt.Errorf("starting API server: %w", startErr)
	}
	defer func() {
		if closeErr := apiServer.Close(); closeErr != nil {
			log.Error("error stopping API server", "error", closeErr)
		}
	}()

	log.Info("initialisation complete, waiting for shutdown signal")

	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")
	return nil
}

// probeInfluxDB logs whether the store answers at startup.
func probeInfluxDB(ctx context.Context, client *influxdb.Client, cfg config.InfluxDBConfig, log *logging.Logger) {
	probeCtx, cancel := context.WithTimeout(ctx, startupProbeTimeout)
	defer cancel()

	if client.TestConnection(probeCtx) {
		log.Info("InfluxDB reachable",
			"url", cfg.ServerURL(),
			"org", cfg.Org,
			"bucket", client.Bucket(),
			"query_timeout", client.Timeout().String(),
		)
		return
	}
	log.Warn("InfluxDB not reachable, starting with an empty cache",
		"url", cfg.ServerURL(),
		"bucket", client.Bucket(),
	)
}

// startMQTT connects to the broker and starts the snapshot bridge.
func startMQTT(ctx context.Context, cfg config.MQTTConfig, cache *refresh.Cache, m *metrics.Metrics, log *logging.Logger) (*mqtt.Client, *mqtt.Bridge, error) {
	client, err := mqtt.Connect(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("connecting to MQTT: %w", err)
	}
	client.SetLogger(log.With("component", "mqtt"))
	client.SetOnConnect(func() {
		log.Info("MQTT reconnected")
	})
	client.SetOnDisconnect(func(err error) {
		log.Warn("MQTT connection lost", "error", err)
	})

	// #nosec G115 -- qos validated to 0..2
	bridge := mqtt.NewBridge(client, cache, client.Topics(), byte(cfg.QoS), log.With("component", "mqtt-bridge"), m)
	if err := bridge.Start(ctx); err != nil {
		client.Close() //nolint:errcheck // already failing
		return nil, nil, fmt.Errorf("starting MQTT bridge: %w", err)
	}

	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.Broker.Host, cfg.Broker.Port),
		"client_id", cfg.Broker.ClientID,
		"topic_prefix", client.Topics().Prefix,
	)
	return client, bridge, nil
}

// getConfigPath returns the configuration file path.
// Uses SUNWATCH_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("SUNWATCH_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}
