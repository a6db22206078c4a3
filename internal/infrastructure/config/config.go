package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for the Gray Logic simulator.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Site       SiteConfig       `yaml:"site"`
	Simulation SimulationConfig `yaml:"simulation"`
	Database   DatabaseConfig   `yaml:"database"`
	MQTT       MQTTConfig       `yaml:"mqtt"`
	InfluxDB   InfluxDBConfig   `yaml:"influxdb"`
	API        APIConfig        `yaml:"api"`
	Metrics    MetricsConfig    `yaml:"metrics"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// SiteConfig contains site-specific information.
type SiteConfig struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

// SimulationConfig controls the agent and group loops.
type SimulationConfig struct {
	// TickInterval is the real-time length of one tick. Default: 1s.
	TickInterval time.Duration `yaml:"tick_interval"`

	// InboxSize is the buffered mailbox capacity of each agent and group.
	// Messages arriving at a full mailbox are dropped.
	InboxSize int `yaml:"inbox_size"`

	// DeviceWatchdog is the default manual-mode watchdog of new agents, in seconds.
	DeviceWatchdog int `yaml:"device_watchdog"`

	// GroupWatchdog is the default manual-mode watchdog of new groups, in seconds.
	GroupWatchdog int `yaml:"group_watchdog"`

	// SlopeRise and SlopeFall are the number of ticks a group spreads a setpoint
	// increase or decrease over.
	SlopeRise int `yaml:"slope_rise"`
	SlopeFall int `yaml:"slope_fall"`

	// Step is the setpoint change applied by one brightness rule decision.
	Step int `yaml:"step"`

	// LightIMax is the driver current sent to lights that say hello.
	LightIMax int `yaml:"light_imax"`

	// Devices are plugged in at startup.
	Devices []DeviceConfig `yaml:"devices"`

	// Groups are created at startup, after Devices.
	Groups []GroupConfig `yaml:"groups"`
}

// DeviceConfig describes one agent created at startup.
type DeviceConfig struct {
	// Kind is the wire kind: "led", "sensor" or "blind".
	Kind string `yaml:"kind"`

	// ID is optional. A random identity is generated when empty.
	ID string `yaml:"id,omitempty"`
}

// GroupConfig describes one group created at startup.
type GroupConfig struct {
	ID      int         `yaml:"id"`
	Members []string    `yaml:"members"`
	Rules   RulesConfig `yaml:"rules"`
}

// RulesConfig holds optional rule targets. Nil means the rule is off.
type RulesConfig struct {
	Temperature *int `yaml:"temperature,omitempty"`
	Brightness  *int `yaml:"brightness,omitempty"`
	Presence    *int `yaml:"presence,omitempty"`
}

// DatabaseConfig contains SQLite settings for the diagnostic event log.
type DatabaseConfig struct {
	// Path is the database file. ":memory:" keeps the log in process memory.
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	// Embedded runs every agent on an in-process broker instead of dialling Broker.
	Embedded bool `yaml:"embedded"`
	// EmbeddedListen optionally exposes the embedded broker on a TCP address.
	EmbeddedListen string              `yaml:"embedded_listen"`
	Broker         MQTTBrokerConfig    `yaml:"broker"`
	Auth           MQTTAuthConfig      `yaml:"auth"`
	QoS            int                 `yaml:"qos"`
	Reconnect      MQTTReconnectConfig `yaml:"reconnect"`
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

// APIConfig contains the operator HTTP API settings.
type APIConfig struct {
	Enabled  bool              `yaml:"enabled"`
	Host     string            `yaml:"host"`
	Port     int               `yaml:"port"`
	Timeouts APITimeoutsConfig `yaml:"timeouts"`
}

// APITimeoutsConfig contains HTTP server timeouts in seconds.
type APITimeoutsConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Host    string `yaml:"host"`
	Port    int    `yaml:"port"`
	Path    string `yaml:"path"`
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
//  2. YAML file values (override defaults), skipped when path is empty
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: GRAYLOGIC_SIM_SECTION_KEY
// For example: GRAYLOGIC_SIM_MQTT_HOST, GRAYLOGIC_SIM_LOG_LEVEL
//
// Parameters:
//   - path: Path to the YAML configuration file, or "" for defaults only
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}

		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, fmt.Errorf("applying environment overrides: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Site: SiteConfig{
			ID:   "site-001",
			Name: "Gray Logic Simulator",
		},
		Simulation: SimulationConfig{
			TickInterval:   time.Second,
			InboxSize:      256,
			DeviceWatchdog: 3600,
			GroupWatchdog:  60,
			SlopeRise:      10,
			SlopeFall:      10,
			Step:           10,
			LightIMax:      700,
		},
		Database: DatabaseConfig{
			Path:        ":memory:",
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "graylogic-sim",
			},
			QoS: 0,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		API: APIConfig{
			Enabled: true,
			Host:    "127.0.0.1",
			Port:    8080,
			Timeouts: APITimeoutsConfig{
				Read:  10,
				Write: 10,
				Idle:  60,
			},
		},
		Metrics: MetricsConfig{
			Host: "0.0.0.0",
			Port: 9100,
			Path: "/metrics",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: GRAYLOGIC_SIM_SECTION_KEY
func applyEnvOverrides(cfg *Config) error {
	// Database
	if v := os.Getenv("GRAYLOGIC_SIM_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// MQTT
	if v := os.Getenv("GRAYLOGIC_SIM_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("GRAYLOGIC_SIM_MQTT_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("GRAYLOGIC_SIM_MQTT_PORT: %w", err)
		}
		cfg.MQTT.Broker.Port = port
	}
	if v := os.Getenv("GRAYLOGIC_SIM_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("GRAYLOGIC_SIM_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}
	if v := os.Getenv("GRAYLOGIC_SIM_MQTT_EMBEDDED"); v != "" {
		embedded, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("GRAYLOGIC_SIM_MQTT_EMBEDDED: %w", err)
		}
		cfg.MQTT.Embedded = embedded
	}
	if v := os.Getenv("GRAYLOGIC_SIM_MQTT_EMBEDDED_LISTEN"); v != "" {
		cfg.MQTT.EmbeddedListen = v
	}

	// Simulation
	if v := os.Getenv("GRAYLOGIC_SIM_TICK_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("GRAYLOGIC_SIM_TICK_INTERVAL: %w", err)
		}
		cfg.Simulation.TickInterval = d
	}

	// API
	if v := os.Getenv("GRAYLOGIC_SIM_API_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("GRAYLOGIC_SIM_API_PORT: %w", err)
		}
		cfg.API.Port = port
	}

	// InfluxDB
	if v := os.Getenv("GRAYLOGIC_SIM_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	// Logging
	if v := os.Getenv("GRAYLOGIC_SIM_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}

	return nil
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

	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	// MQTT validation
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}
	if !c.MQTT.Embedded {
		if c.MQTT.Broker.Host == "" {
			errs = append(errs, "mqtt.broker.host is required unless mqtt.embedded is set")
		}
		if c.MQTT.Broker.Port < 1 || c.MQTT.Broker.Port > 65535 {
			errs = append(errs, "mqtt.broker.port must be between 1 and 65535")
		}
	}

	errs = append(errs, c.Simulation.validate()...)

	if c.InfluxDB.Enabled && c.InfluxDB.URL == "" {
		errs = append(errs, "influxdb.url is required when influxdb is enabled")
	}

	if c.API.Enabled && (c.API.Port < 1 || c.API.Port > 65535) {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	if c.Metrics.Enabled && (c.Metrics.Port < 1 || c.Metrics.Port > 65535) {
		errs = append(errs, "metrics.port must be between 1 and 65535")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

func (s SimulationConfig) validate() []string {
	var errs []string

	if s.TickInterval <= 0 {
		errs = append(errs, "simulation.tick_interval must be positive")
	}
	if s.InboxSize < 1 {
		errs = append(errs, "simulation.inbox_size must be at least 1")
	}
	if s.DeviceWatchdog < 0 || s.GroupWatchdog < 0 {
		errs = append(errs, "simulation watchdogs cannot be negative")
	}
	if s.SlopeRise < 0 || s.SlopeFall < 0 {
		errs = append(errs, "simulation slopes cannot be negative")
	}
	if s.Step < 1 || s.Step > 100 {
		errs = append(errs, "simulation.step must be between 1 and 100")
	}

	ids := make(map[string]bool)
	for i, d := range s.Devices {
		switch d.Kind {
		case "led", "sensor", "blind":
		default:
			errs = append(errs, fmt.Sprintf("simulation.devices[%d].kind %q is not led, sensor or blind", i, d.Kind))
		}
		if d.ID != "" {
			if ids[d.ID] {
				errs = append(errs, fmt.Sprintf("simulation.devices[%d].id %q is duplicated", i, d.ID))
			}
			ids[d.ID] = true
		}
	}

	groups := make(map[int]bool)
	for i, g := range s.Groups {
		if g.ID < 1 {
			errs = append(errs, fmt.Sprintf("simulation.groups[%d].id must be positive", i))
		}
		if groups[g.ID] {
			errs = append(errs, fmt.Sprintf("simulation.groups[%d].id %d is duplicated", i, g.ID))
		}
		groups[g.ID] = true
	}

	return errs
}

// MQTTAddress returns the broker address as host:port.
func (c *Config) MQTTAddress() string {
	return fmt.Sprintf("%s:%d", c.MQTT.Broker.Host, c.MQTT.Broker.Port)
}

// APIAddress returns the API listener address as host:port.
func (c *Config) APIAddress() string {
	return fmt.Sprintf("%s:%d", c.API.Host, c.API.Port)
}

// MetricsAddress returns the metrics listener address as host:port.
func (c *Config) MetricsAddress() string {
	return fmt.Sprintf("%s:%d", c.Metrics.Host, c.Metrics.Port)
}

// ErrNoConfigFile is returned by ResolvePath when an explicitly named file does not exist.
var ErrNoConfigFile = errors.New("config: file not found")

// ResolvePath picks the configuration file: the flag value first, then
// GRAYLOGIC_SIM_CONFIG, then fallback if it exists. An empty result means
// defaults only.
func ResolvePath(flagValue, fallback string) (string, error) {
	explicit := flagValue
	if explicit == "" {
		explicit = os.Getenv("GRAYLOGIC_SIM_CONFIG")
	}
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("%w: %s", ErrNoConfigFile, explicit)
		}
		return explicit, nil
	}
	if fallback != "" {
		if _, err := os.Stat(fallback); err == nil {
			return fallback, nil
		}
	}
	return "", nil
}
