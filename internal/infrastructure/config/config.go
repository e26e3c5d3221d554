package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the bridge configuration. Every section has a working default,
// so a file only needs the keys it changes.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Sampler       SamplerConfig       `yaml:"sampler"`
	Gesture       GestureConfig       `yaml:"gesture"`
	Hardware      HardwareConfig      `yaml:"hardware"`
	Notifications NotificationsConfig `yaml:"notifications"`
	Database      DatabaseConfig      `yaml:"database"`
	Capture       CaptureConfig       `yaml:"capture"`
	MQTT          MQTTConfig          `yaml:"mqtt"`
	InfluxDB      InfluxDBConfig      `yaml:"influxdb"`
	API           APIConfig           `yaml:"api"`
	WebSocket     WebSocketConfig     `yaml:"websocket"`
	Logging       LoggingConfig       `yaml:"logging"`
}

// ServerConfig contains the UDP protocol server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`

	// RespondToExit makes an "e" command from the client stop the server
	// after the echo reply has been sent.
	RespondToExit bool `yaml:"respond_to_exit"`

	// MaxDatagramSize is the receive buffer size. Requests larger than this
	// are truncated by the socket.
	MaxDatagramSize int `yaml:"max_datagram_size"`
}

// SamplerConfig contains accelerometer sampling settings.
type SamplerConfig struct {
	// FrequencyHz is the sampling rate applied to capturing devices.
	FrequencyHz float64 `yaml:"frequency_hz"`

	// BufferCapacity is the number of samples preallocated per device.
	// Captures longer than this still grow the buffer.
	BufferCapacity int `yaml:"buffer_capacity"`
}

// GestureConfig selects the gesture matcher.
type GestureConfig struct {
	// Matcher is the matcher implementation. Only "fixed" is built in.
	Matcher string `yaml:"matcher"`

	// FixedResult is returned by the fixed matcher for every capture.
	FixedResult int `yaml:"fixed_result"`
}

// HardwareConfig selects the controller driver.
type HardwareConfig struct {
	// Driver is the controller driver name. Only "simulated" is built in.
	Driver string `yaml:"driver"`

	// ConnectLEDs is the LED pattern lit on every controller after connecting.
	ConnectLEDs []bool `yaml:"connect_leds"`

	Simulated SimulatedHardwareConfig `yaml:"simulated"`
}

// SimulatedHardwareConfig configures the simulated controller driver.
type SimulatedHardwareConfig struct {
	Devices  int     `yaml:"devices"`
	MotionHz float64 `yaml:"motion_hz"`
}

// NotificationsConfig contains status notification queue settings.
type NotificationsConfig struct {
	QueueSize   int `yaml:"queue_size"`
	HistorySize int `yaml:"history_size"`
}

// DatabaseConfig locates the SQLite capture archive.
type DatabaseConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// CaptureConfig contains capture archive settings.
type CaptureConfig struct {
	// Archive stores every closed capture session in the database.
	Archive bool `yaml:"archive"`

	// Compression is the sample blob compression: "zstd", "lz4" or "none".
	Compression string `yaml:"compression"`
}

// MQTTConfig enables the MQTT notification and command surface when
// Enabled is set.
type MQTTConfig struct {
	Enabled   bool                `yaml:"enabled"`
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig names the broker. TLS switches the scheme to ssl://.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig delays are in seconds.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
	MaxAttempts  int `yaml:"max_attempts"`
}

// InfluxDBConfig configures capture telemetry. FlushInterval is in seconds.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// APIConfig contains HTTP status API settings.
type APIConfig struct {
	Enabled  bool             `yaml:"enabled"`
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
}

// APITimeoutConfig values are in seconds.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// WebSocketConfig tunes the /api/v1/ws event stream.
type WebSocketConfig struct {
	MaxMessageSize int `yaml:"max_message_size"`
	PingInterval   int `yaml:"ping_interval"`
	PongTimeout    int `yaml:"pong_timeout"`
}

// LoggingConfig selects level, format (json or text) and output.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load layers the YAML file at path over Default, then applies
// MOTIONBRIDGE_* environment overrides (MOTIONBRIDGE_SERVER_PORT,
// MOTIONBRIDGE_DATABASE_PATH, ...) and validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// LoadOrDefault behaves like Load, but a missing file yields the defaults
// (still subject to environment overrides and validation).
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if err == nil {
		return cfg, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}

	cfg = Default()
	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

// Default returns a Config with the stock settings: one simulated
// controller, UDP port 9050, 50 Hz sampling and 900-sample buffers.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            9050,
			RespondToExit:   false,
			MaxDatagramSize: 1024,
		},
		Sampler: SamplerConfig{
			FrequencyHz:    50,
			BufferCapacity: 900,
		},
		Gesture: GestureConfig{
			Matcher:     "fixed",
			FixedResult: -1,
		},
		Hardware: HardwareConfig{
			Driver:      "simulated",
			ConnectLEDs: []bool{true, false, false, false},
			Simulated: SimulatedHardwareConfig{
				Devices:  1,
				MotionHz: 1,
			},
		},
		Notifications: NotificationsConfig{
			QueueSize:   256,
			HistorySize: 200,
		},
		Database: DatabaseConfig{
			Enabled:     true,
			Path:        "./data/motionbridge.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		Capture: CaptureConfig{
			Archive:     true,
			Compression: "zstd",
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "motionbridge",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		API: APIConfig{
			Enabled: true,
			Host:    "127.0.0.1",
			Port:    8090,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		WebSocket: WebSocketConfig{
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides copies set MOTIONBRIDGE_* variables into cfg.
// Environment variables follow the pattern: MOTIONBRIDGE_SECTION_KEY
func applyEnvOverrides(cfg *Config) error {
	// Server
	if v := os.Getenv("MOTIONBRIDGE_SERVER_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parsing MOTIONBRIDGE_SERVER_PORT: %w", err)
		}
		cfg.Server.Port = port
	}
	if v := os.Getenv("MOTIONBRIDGE_RESPOND_TO_EXIT"); v != "" {
		respond, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("parsing MOTIONBRIDGE_RESPOND_TO_EXIT: %w", err)
		}
		cfg.Server.RespondToExit = respond
	}

	// Sampler
	if v := os.Getenv("MOTIONBRIDGE_SAMPLER_FREQUENCY"); v != "" {
		freq, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("parsing MOTIONBRIDGE_SAMPLER_FREQUENCY: %w", err)
		}
		cfg.Sampler.FrequencyHz = freq
	}

	// Database
	if v := os.Getenv("MOTIONBRIDGE_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// MQTT
	if v := os.Getenv("MOTIONBRIDGE_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("MOTIONBRIDGE_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("MOTIONBRIDGE_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// InfluxDB
	if v := os.Getenv("MOTIONBRIDGE_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	// API
	if v := os.Getenv("MOTIONBRIDGE_API_HOST"); v != "" {
		cfg.API.Host = v
	}

	return nil
}

// Validate reports every invalid setting in one error.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, "server.port must be between 1 and 65535")
	}
	if c.Server.MaxDatagramSize < 64 || c.Server.MaxDatagramSize > 65507 {
		errs = append(errs, "server.max_datagram_size must be between 64 and 65507")
	}

	if c.Sampler.FrequencyHz <= 0 || c.Sampler.FrequencyHz > 1000 {
		errs = append(errs, "sampler.frequency_hz must be greater than 0 and at most 1000")
	}
	if c.Sampler.BufferCapacity < 0 {
		errs = append(errs, "sampler.buffer_capacity cannot be negative")
	}

	if c.Gesture.Matcher != "fixed" {
		errs = append(errs, fmt.Sprintf("gesture.matcher %q is not supported", c.Gesture.Matcher))
	}

	if c.Hardware.Driver != "simulated" {
		errs = append(errs, fmt.Sprintf("hardware.driver %q is not supported", c.Hardware.Driver))
	}
	if len(c.Hardware.ConnectLEDs) > 4 {
		errs = append(errs, "hardware.connect_leds has at most 4 entries")
	}
	if c.Hardware.Driver == "simulated" && c.Hardware.Simulated.Devices < 0 {
		errs = append(errs, "hardware.simulated.devices cannot be negative")
	}

	if c.Notifications.QueueSize < 1 {
		errs = append(errs, "notifications.queue_size must be at least 1")
	}

	if c.Database.Enabled && c.Database.Path == "" {
		errs = append(errs, "database.path is required when the database is enabled")
	}

	switch c.Capture.Compression {
	case "zstd", "lz4", "none":
	default:
		errs = append(errs, "capture.compression must be zstd, lz4, or none")
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	if c.API.Enabled && (c.API.Port < 1 || c.API.Port > 65535) {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// SamplePeriod returns the sampler tick period (1 / frequency).
func (c *Config) SamplePeriod() time.Duration {
	return time.Duration(float64(time.Second) / c.Sampler.FrequencyHz)
}

// ReadTimeout bounds reading a request, headers included.
func (t APITimeoutConfig) ReadTimeout() time.Duration {
	return time.Duration(t.Read) * time.Second
}

func (t APITimeoutConfig) WriteTimeout() time.Duration {
	return time.Duration(t.Write) * time.Second
}

// IdleTimeout bounds keep-alive connections between requests.
func (t APITimeoutConfig) IdleTimeout() time.Duration {
	return time.Duration(t.Idle) * time.Second
}
