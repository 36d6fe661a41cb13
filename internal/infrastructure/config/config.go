package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for fritzcore.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Router   RouterConfig   `yaml:"router"`
	Cache    CacheConfig    `yaml:"cache"`
	Monitor  MonitorConfig  `yaml:"monitor"`
	Journal  JournalConfig  `yaml:"journal"`
	MQTT     MQTTConfig     `yaml:"mqtt"`
	InfluxDB InfluxDBConfig `yaml:"influxdb"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// RouterConfig contains the connection settings for one router.
type RouterConfig struct {
	// Address is the router host, with or without a scheme. An https
	// scheme switches to the TLS port.
	Address  string `yaml:"address"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Port     int    `yaml:"port"`
	TLSPort  int    `yaml:"tls_port"`
	// VerifyTLS enables certificate verification. Routers ship with
	// self-signed certificates, so this is off by default.
	VerifyTLS bool `yaml:"verify_tls"`
	// Timeout is the per-call HTTP timeout in seconds. 0 means no limit.
	Timeout int `yaml:"timeout"`
	// Permissive drops unknown action arguments instead of rejecting the
	// call.
	Permissive bool `yaml:"permissive"`
}

// CacheConfig contains the capability model cache settings.
type CacheConfig struct {
	Enabled bool   `yaml:"enabled"`
	Dir     string `yaml:"dir"`
	Format  string `yaml:"format"`
	// Verify checks the cached fingerprint against a live identity probe
	// before the cache is trusted.
	Verify bool `yaml:"verify"`
}

// MonitorConfig contains the call event monitor settings.
type MonitorConfig struct {
	Enabled     bool `yaml:"enabled"`
	QueueSize   int  `yaml:"queue_size"`
	ReadTimeout int  `yaml:"read_timeout"`
}

// JournalConfig contains the SQLite call journal settings.
type JournalConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// MQTTConfig contains MQTT broker connection settings for the event
// mirror.
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

// InfluxDBConfig contains InfluxDB connection settings for the call
// event timeseries sink.
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

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: FRITZCORE_SECTION_KEY
// For example: FRITZCORE_ROUTER_ADDRESS, FRITZCORE_ROUTER_PASSWORD
func Load(path string) (*Config, error) {
	cfg := Default()

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

// Default returns a Config with sensible defaults. The router address
// falls back to the AVM link-local address reachable on a direct cable
// connection.
func Default() *Config {
	return &Config{
		Router: RouterConfig{
			Address:  "169.254.1.1",
			Username: "dslf-config",
			Port:     49000,
			TLSPort:  49443,
			Timeout:  10,
		},
		Cache: CacheConfig{
			Enabled: true,
			Dir:     "./data/cache",
			Format:  "json",
			Verify:  true,
		},
		Monitor: MonitorConfig{
			QueueSize:   256,
			ReadTimeout: 10,
		},
		Journal: JournalConfig{
			Path:        "./data/fritzcore.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "fritzcore",
			},
			QoS:         1,
			TopicPrefix: "fritzcore",
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
				MaxAttempts:  0,
			},
		},
		InfluxDB: InfluxDBConfig{
			BatchSize:     100,
			FlushInterval: 10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: FRITZCORE_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Router
	if v := os.Getenv("FRITZCORE_ROUTER_ADDRESS"); v != "" {
		cfg.Router.Address = v
	}
	if v := os.Getenv("FRITZCORE_ROUTER_USERNAME"); v != "" {
		cfg.Router.Username = v
	}
	if v := os.Getenv("FRITZCORE_ROUTER_PASSWORD"); v != "" {
		cfg.Router.Password = v
	}

	// MQTT
	if v := os.Getenv("FRITZCORE_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("FRITZCORE_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("FRITZCORE_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// InfluxDB
	if v := os.Getenv("FRITZCORE_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []string

	if c.Router.Address == "" {
		errs = append(errs, "router.address is required")
	}
	if c.Router.Port < 1 || c.Router.Port > 65535 {
		errs = append(errs, "router.port must be between 1 and 65535")
	}
	if c.Router.TLSPort < 1 || c.Router.TLSPort > 65535 {
		errs = append(errs, "router.tls_port must be between 1 and 65535")
	}

	if c.Cache.Enabled {
		switch c.Cache.Format {
		case "json", "gob":
		default:
			errs = append(errs, "cache.format must be json or gob")
		}
		if c.Cache.Dir == "" {
			errs = append(errs, "cache.dir is required when the cache is enabled")
		}
	}

	if c.Journal.Enabled && c.Journal.Path == "" {
		errs = append(errs, "journal.path is required when the journal is enabled")
	}

	if c.MQTT.Enabled {
		if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
			errs = append(errs, "mqtt.qos must be 0, 1, or 2")
		}
		if c.MQTT.Broker.Host == "" {
			errs = append(errs, "mqtt.broker.host is required when mqtt is enabled")
		}
	}

	if c.InfluxDB.Enabled {
		if c.InfluxDB.URL == "" {
			errs = append(errs, "influxdb.url is required when influxdb is enabled")
		}
		if c.InfluxDB.Token == "" {
			errs = append(errs, "influxdb.token is required when influxdb is enabled (set FRITZCORE_INFLUXDB_TOKEN)")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// GetTimeout returns the per-call HTTP timeout as a Duration.
func (c *Config) GetTimeout() time.Duration {
	return time.Duration(c.Router.Timeout) * time.Second
}

// GetMonitorReadTimeout returns the call monitor read timeout as a Duration.
func (c *Config) GetMonitorReadTimeout() time.Duration {
	return time.Duration(c.Monitor.ReadTimeout) * time.Second
}
