package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for heatpump-sync.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Database      DatabaseConfig      `yaml:"database"`
	SettingsStore SettingsStoreConfig `yaml:"settings_store"`
	MQTT          MQTTConfig          `yaml:"mqtt"`
	API           APIConfig           `yaml:"api"`
	WebSocket     WebSocketConfig     `yaml:"websocket"`
	InfluxDB      InfluxDBConfig      `yaml:"influxdb"`
	Logging       LoggingConfig       `yaml:"logging"`
	Security      SecurityConfig      `yaml:"security"`
	Uplink        UplinkConfig        `yaml:"uplink"`
	Sync          SyncConfig          `yaml:"sync"`
	Devices       []DeviceConfig      `yaml:"devices"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// SettingsStoreConfig locates the bbolt file holding per-device settings.
type SettingsStoreConfig struct {
	Path string `yaml:"path"`
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
	Enabled  bool             `yaml:"enabled"`
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	TLS      TLSConfig        `yaml:"tls"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
}

// TLSConfig contains TLS certificate settings.
type TLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// APITimeoutConfig contains HTTP timeout settings in seconds.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// CORSConfig contains Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// WebSocketConfig contains WebSocket server settings.
type WebSocketConfig struct {
	Path           string `yaml:"path"`
	MaxMessageSize int    `yaml:"max_message_size"`
	PingInterval   int    `yaml:"ping_interval"`
	PongTimeout    int    `yaml:"pong_timeout"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// SecurityConfig contains security settings.
type SecurityConfig struct {
	JWT JWTConfig `yaml:"jwt"`
}

// JWTConfig contains JWT verification settings. An empty secret disables
// authentication on the API.
type JWTConfig struct {
	Secret string `yaml:"secret"`
	Issuer string `yaml:"issuer"`
}

// UplinkConfig configures the myUplink API client.
type UplinkConfig struct {
	BaseURL   string `yaml:"base_url"`
	Token     string `yaml:"token"`
	Timeout   int    `yaml:"timeout"` // seconds
	UserAgent string `yaml:"user_agent"`
}

// SyncConfig holds timing shared by every device session.
type SyncConfig struct {
	// DebounceMS is the write queue debounce window in milliseconds.
	DebounceMS int `yaml:"debounce_ms"`
	// MinWriteInterval is the minimum gap between write batches in seconds.
	MinWriteInterval int `yaml:"min_write_interval"`
	// PollMinutes is the default poll interval for devices that do not set one.
	PollMinutes int `yaml:"poll_minutes"`
	// HistoryRetentionDays bounds the attribute history table. 0 keeps everything.
	HistoryRetentionDays int `yaml:"history_retention_days"`
}

// DeviceConfig describes one heat pump. Values other than ID, Name and Family
// seed the device's settings on first start; later changes go through the
// settings store.
type DeviceConfig struct {
	ID               string         `yaml:"id"`
	Name             string         `yaml:"name"`
	Family           string         `yaml:"family"`
	PollMinutes      int            `yaml:"poll_minutes"`
	Voltage          float64        `yaml:"voltage"`
	PowerFactor      float64        `yaml:"power_factor"`
	EnergyParameter  int            `yaml:"energy_parameter"`
	AccumulateEnergy bool           `yaml:"accumulate_energy"`
	Overrides        map[string]int `yaml:"overrides"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: HPSYNC_SECTION_KEY
// For example: HPSYNC_DATABASE_PATH, HPSYNC_UPLINK_TOKEN
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

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Path:        "./data/heatpump-sync.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		SettingsStore: SettingsStoreConfig{
			Path: "./data/settings.bolt",
		},
		MQTT: MQTTConfig{
			Enabled: true,
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "heatpump-sync",
			},
			QoS:         1,
			TopicPrefix: "heatpump",
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		API: APIConfig{
			Enabled: true,
			Host:    "0.0.0.0",
			Port:    8080,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 60,
				Idle:  60,
			},
		},
		WebSocket: WebSocketConfig{
			Path:           "/ws",
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Uplink: UplinkConfig{
			BaseURL:   "https://api.myuplink.com",
			Timeout:   30,
			UserAgent: "heatpump-sync",
		},
		Sync: SyncConfig{
			DebounceMS:       500,
			MinWriteInterval: 5,
			PollMinutes:      5,
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: HPSYNC_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Database
	if v := os.Getenv("HPSYNC_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("HPSYNC_SETTINGS_PATH"); v != "" {
		cfg.SettingsStore.Path = v
	}

	// MQTT
	if v := os.Getenv("HPSYNC_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("HPSYNC_MQTT_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.MQTT.Broker.Port = port
		}
	}
	if v := os.Getenv("HPSYNC_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("HPSYNC_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// API
	if v := os.Getenv("HPSYNC_API_HOST"); v != "" {
		cfg.API.Host = v
	}

	// InfluxDB
	if v := os.Getenv("HPSYNC_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	// Uplink
	if v := os.Getenv("HPSYNC_UPLINK_TOKEN"); v != "" {
		cfg.Uplink.Token = v
	}
	if v := os.Getenv("HPSYNC_UPLINK_BASE_URL"); v != "" {
		cfg.Uplink.BaseURL = v
	}

	// Security
	if v := os.Getenv("HPSYNC_JWT_SECRET"); v != "" {
		cfg.Security.JWT.Secret = v
	}

	// Logging
	if v := os.Getenv("HPSYNC_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}
	if c.SettingsStore.Path == "" {
		errs = append(errs, "settings_store.path is required")
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	if c.API.Enabled && (c.API.Port < 1 || c.API.Port > 65535) {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	const minJWTSecretLength = 32
	if c.Security.JWT.Secret != "" && len(c.Security.JWT.Secret) < minJWTSecretLength {
		errs = append(errs, "security.jwt.secret must be at least 32 characters")
	}

	if c.Sync.DebounceMS < 0 {
		errs = append(errs, "sync.debounce_ms must not be negative")
	}
	if c.Sync.MinWriteInterval < 0 {
		errs = append(errs, "sync.min_write_interval must not be negative")
	}
	if c.Sync.PollMinutes < 1 {
		errs = append(errs, "sync.poll_minutes must be at least 1")
	}

	seen := make(map[string]bool, len(c.Devices))
	for i, d := range c.Devices {
		if d.ID == "" {
			errs = append(errs, fmt.Sprintf("devices[%d].id is required", i))
			continue
		}
		if seen[d.ID] {
			errs = append(errs, fmt.Sprintf("devices[%d].id %q is duplicated", i, d.ID))
		}
		seen[d.ID] = true
		switch d.Family {
		case "", "f-series", "s-series":
		default:
			errs = append(errs, fmt.Sprintf("devices[%d].family must be f-series or s-series", i))
		}
		if d.PowerFactor < 0 || d.PowerFactor > 1 {
			errs = append(errs, fmt.Sprintf("devices[%d].power_factor must be between 0 and 1", i))
		}
		if d.Voltage < 0 {
			errs = append(errs, fmt.Sprintf("devices[%d].voltage must not be negative", i))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
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

// Debounce returns the write queue debounce window.
func (s SyncConfig) Debounce() time.Duration {
	return time.Duration(s.DebounceMS) * time.Millisecond
}

// MinInterval returns the minimum gap between write batches.
func (s SyncConfig) MinInterval() time.Duration {
	return time.Duration(s.MinWriteInterval) * time.Second
}
