package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for Sunwatch.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Site      SiteConfig      `yaml:"site"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	Refresh   RefreshConfig   `yaml:"refresh"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	API       APIConfig       `yaml:"api"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	Export    ExportConfig    `yaml:"export"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// SiteConfig identifies the installation being monitored.
type SiteConfig struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

// InfluxDBConfig contains the connection parameters of the telemetry store.
//
// Either URL or Host/Port may be given; URL wins when both are set.
type InfluxDBConfig struct {
	URL    string `yaml:"url"`
	Host   string `yaml:"host"`
	Port   int    `yaml:"port"`
	TLS    bool   `yaml:"tls"`
	Token  string `yaml:"token"`
	Org    string `yaml:"org"`
	Bucket string `yaml:"bucket"`

	// LookbackMinutes is the range used by the latest-snapshot query.
	LookbackMinutes int `yaml:"lookback_minutes"`

	// Timeout is the per-query budget in seconds.
	Timeout int `yaml:"timeout"`
}

// RefreshConfig controls the background snapshot scheduler.
type RefreshConfig struct {
	IntervalSeconds        int `yaml:"interval_seconds"`
	RetryDelaySeconds      int `yaml:"retry_delay_seconds"`
	ShutdownTimeoutSeconds int `yaml:"shutdown_timeout_seconds"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Enabled     bool                `yaml:"enabled"`
	Broker      MQTTBrokerConfig    `yaml:"broker"`
	Auth        MQTTAuthConfig      `yaml:"auth"`
	QoS         int                 `yaml:"qos"`
	TopicPrefix string              `yaml:"topic_prefix"`
	Reconnect   MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
	MaxAttempts  int `yaml:"max_attempts"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`

	// DashboardDir serves the dashboard page from disk instead of the
	// embedded copy. Empty uses the embedded page.
	DashboardDir string `yaml:"dashboard_dir"`
}

// APITimeoutConfig contains HTTP timeout settings.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// CORSConfig contains Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
}

// WebSocketConfig contains WebSocket server settings.
type WebSocketConfig struct {
	MaxMessageSize int `yaml:"max_message_size"`
	PingInterval   int `yaml:"ping_interval"`
	PongTimeout    int `yaml:"pong_timeout"`
}

// ExportConfig controls where on-demand snapshot exports are written.
type ExportConfig struct {
	Directory string `yaml:"directory"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. A .env file next to the working directory, if present
//  4. Environment variables (override file values)
//
// Environment variables follow the pattern: SUNWATCH_SECTION_KEY
// For example: SUNWATCH_INFLUXDB_TOKEN, SUNWATCH_REFRESH_INTERVAL
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := loadDotEnv(".env"); err != nil {
		return nil, err
	}
	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// loadDotEnv populates the process environment from a dotenv file.
// Variables already set in the environment are left untouched; a missing
// file is not an error.
func loadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("loading %s: %w", path, err)
	}
	return nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Site: SiteConfig{
			ID:   "site-001",
			Name: "Sunwatch",
		},
		InfluxDB: InfluxDBConfig{
			Host:            "localhost",
			Port:            8086,
			Bucket:          "solar",
			LookbackMinutes: 5,
			Timeout:         30,
		},
		Refresh: RefreshConfig{
			IntervalSeconds:        60,
			RetryDelaySeconds:      10,
			ShutdownTimeoutSeconds: 5,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "sunwatch",
			},
			QoS:         1,
			TopicPrefix: "sunwatch",
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		API: APIConfig{
			Host: "0.0.0.0",
			Port: 8080,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 60,
				Idle:  120,
			},
		},
		WebSocket: WebSocketConfig{
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		Export: ExportConfig{
			Directory: "./exports",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: SUNWATCH_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// InfluxDB
	if v := os.Getenv("SUNWATCH_INFLUXDB_URL"); v != "" {
		cfg.InfluxDB.URL = v
	}
	if v := os.Getenv("SUNWATCH_INFLUXDB_HOST"); v != "" {
		cfg.InfluxDB.Host = v
	}
	if v, ok := envInt("SUNWATCH_INFLUXDB_PORT"); ok {
		cfg.InfluxDB.Port = v
	}
	if v := os.Getenv("SUNWATCH_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}
	if v := os.Getenv("SUNWATCH_INFLUXDB_ORG"); v != "" {
		cfg.InfluxDB.Org = v
	}
	if v := os.Getenv("SUNWATCH_INFLUXDB_BUCKET"); v != "" {
		cfg.InfluxDB.Bucket = v
	}

	// Refresh
	if v, ok := envInt("SUNWATCH_REFRESH_INTERVAL"); ok {
		cfg.Refresh.IntervalSeconds = v
	}

	// MQTT
	if v := os.Getenv("SUNWATCH_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("SUNWATCH_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("SUNWATCH_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// API
	if v := os.Getenv("SUNWATCH_API_HOST"); v != "" {
		cfg.API.Host = v
	}
	if v, ok := envInt("SUNWATCH_API_PORT"); ok {
		cfg.API.Port = v
	}

	// Export
	if v := os.Getenv("SUNWATCH_EXPORT_DIR"); v != "" {
		cfg.Export.Directory = v
	}
}

// envInt reads an integer environment variable. Unparseable values are ignored.
func envInt(key string) (int, bool) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	if c.Site.ID == "" {
		errs = append(errs, "site.id is required")
	}

	// InfluxDB validation
	if c.InfluxDB.URL == "" && c.InfluxDB.Host == "" {
		errs = append(errs, "influxdb.url or influxdb.host is required")
	}
	if c.InfluxDB.URL == "" && (c.InfluxDB.Port < 1 || c.InfluxDB.Port > 65535) {
		errs = append(errs, "influxdb.port must be between 1 and 65535")
	}
	if c.InfluxDB.Token == "" {
		errs = append(errs, "influxdb.token is required (set SUNWATCH_INFLUXDB_TOKEN environment variable)")
	}
	if c.InfluxDB.Org == "" {
		errs = append(errs, "influxdb.org is required")
	}
	if c.InfluxDB.Bucket == "" {
		errs = append(errs, "influxdb.bucket is required")
	}
	if c.InfluxDB.LookbackMinutes < 1 {
		errs = append(errs, "influxdb.lookback_minutes must be at least 1")
	}
	if c.InfluxDB.Timeout < 1 {
		errs = append(errs, "influxdb.timeout must be at least 1 second")
	}

	// Refresh validation
	if c.Refresh.IntervalSeconds < 1 {
		errs = append(errs, "refresh.interval_seconds must be at least 1")
	}
	if c.Refresh.RetryDelaySeconds < 1 {
		errs = append(errs, "refresh.retry_delay_seconds must be at least 1")
	} else if c.Refresh.RetryDelaySeconds >= c.Refresh.IntervalSeconds {
		errs = append(errs, "refresh.retry_delay_seconds must be shorter than refresh.interval_seconds")
	}
	if c.Refresh.ShutdownTimeoutSeconds < 1 {
		errs = append(errs, "refresh.shutdown_timeout_seconds must be at least 1")
	}

	// MQTT validation
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}
	if c.MQTT.Enabled && c.MQTT.TopicPrefix == "" {
		errs = append(errs, "mqtt.topic_prefix is required when mqtt is enabled")
	}

	// API validation
	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	if c.Export.Directory == "" {
		errs = append(errs, "export.directory is required")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// ServerURL returns the base URL of the telemetry store.
// An explicit url takes precedence over host and port.
func (c InfluxDBConfig) ServerURL() string {
	if c.URL != "" {
		return strings.TrimRight(c.URL, "/")
	}
	scheme := "http"
	if c.TLS {
		scheme = "https"
	}
	u := url.URL{
		Scheme: scheme,
		Host:   net.JoinHostPort(c.Host, strconv.Itoa(c.Port)),
	}
	return u.String()
}

// QueryTimeout returns the per-query timeout as a Duration.
func (c InfluxDBConfig) QueryTimeout() time.Duration {
	return time.Duration(c.Timeout) * time.Second
}

// Lookback returns the latest-snapshot query range as a Duration.
func (c InfluxDBConfig) Lookback() time.Duration {
	return time.Duration(c.LookbackMinutes) * time.Minute
}

// GetRefreshInterval returns the snapshot refresh interval as a Duration.
func (c *Config) GetRefreshInterval() time.Duration {
	return time.Duration(c.Refresh.IntervalSeconds) * time.Second
}

// GetRetryDelay returns the upper bound of the failure back-off as a Duration.
func (c *Config) GetRetryDelay() time.Duration {
	return time.Duration(c.Refresh.RetryDelaySeconds) * time.Second
}

// GetShutdownTimeout returns how long shutdown waits for an in-flight refresh.
func (c *Config) GetShutdownTimeout() time.Duration {
	return time.Duration(c.Refresh.ShutdownTimeoutSeconds) * time.Second
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}
