package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for the Gray Logic client.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Platform  PlatformConfig  `yaml:"platform"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	Session   SessionConfig   `yaml:"session"`
	Security  SecurityConfig  `yaml:"security"`
	API       APIConfig       `yaml:"api"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// Platform link types.
const (
	LinkWebSocket = "websocket"
	LinkMQTT      = "mqtt"
)

// PlatformConfig contains settings for the connection to the remote platform.
type PlatformConfig struct {
	// Link selects the transport carrying platform frames: "websocket" or "mqtt".
	Link string `yaml:"link"`

	// URL is the platform WebSocket endpoint (websocket link only).
	URL string `yaml:"url"`

	// RequestTimeout bounds a single request/response exchange (seconds).
	RequestTimeout int `yaml:"request_timeout"`

	// MaxMessageSize is the largest inbound frame accepted (bytes).
	MaxMessageSize int `yaml:"max_message_size"`
}

// MQTTConfig contains MQTT broker connection settings (mqtt link only).
type MQTTConfig struct {
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
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

// SessionConfig contains login and session settings.
type SessionConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`

	// PlaceID is the preferred place to activate after login. If it is not
	// in the account's place list, the first owned place is used instead.
	PlaceID string `yaml:"place_id"`

	// LoadTimeout bounds the post-login cache barrier (seconds).
	LoadTimeout int `yaml:"load_timeout"`
}

// SecurityConfig contains security subsystem settings.
type SecurityConfig struct {
	// CountdownInterval is the local arming countdown tick (milliseconds).
	CountdownInterval int `yaml:"countdown_interval"`
}

// APIConfig contains local control API settings.
type APIConfig struct {
	Enabled  bool             `yaml:"enabled"`
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
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
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
}

// WebSocketConfig contains local WebSocket hub settings.
type WebSocketConfig struct {
	// Path is mounted under /api/v1.
	Path           string `yaml:"path"`
	MaxMessageSize int    `yaml:"max_message_size"`
	PingInterval   int    `yaml:"ping_interval"`
	PongTimeout    int    `yaml:"pong_timeout"`
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
// Environment variables follow the pattern: GRAYLOGIC_SECTION_KEY
// For example: GRAYLOGIC_PLATFORM_URL, GRAYLOGIC_SESSION_PASSWORD
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
		Platform: PlatformConfig{
			Link:           LinkWebSocket,
			URL:            "wss://platform.graylogic.local/client",
			RequestTimeout: 30,
			MaxMessageSize: 1 << 20,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "graylogic-client",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		Session: SessionConfig{
			LoadTimeout: 30,
		},
		Security: SecurityConfig{
			CountdownInterval: 1000,
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
	}
}

// applyEnvOverrides applies GRAYLOGIC_SECTION_KEY environment variables on
// top of the file values. Credentials should come from here in production.
// Integer variables that do not parse are ignored.
func applyEnvOverrides(cfg *Config) {
	strs := map[string]*string{
		"GRAYLOGIC_PLATFORM_LINK":    &cfg.Platform.Link,
		"GRAYLOGIC_PLATFORM_URL":     &cfg.Platform.URL,
		"GRAYLOGIC_MQTT_HOST":        &cfg.MQTT.Broker.Host,
		"GRAYLOGIC_MQTT_USERNAME":    &cfg.MQTT.Auth.Username,
		"GRAYLOGIC_MQTT_PASSWORD":    &cfg.MQTT.Auth.Password,
		"GRAYLOGIC_SESSION_USERNAME": &cfg.Session.Username,
		"GRAYLOGIC_SESSION_PASSWORD": &cfg.Session.Password,
		"GRAYLOGIC_SESSION_PLACE_ID": &cfg.Session.PlaceID,
		"GRAYLOGIC_API_HOST":         &cfg.API.Host,
	}
	for name, field := range strs {
		if v := os.Getenv(name); v != "" {
			*field = v
		}
	}

	ints := map[string]*int{
		"GRAYLOGIC_SESSION_LOAD_TIMEOUT":     &cfg.Session.LoadTimeout,
		"GRAYLOGIC_PLATFORM_REQUEST_TIMEOUT": &cfg.Platform.RequestTimeout,
		"GRAYLOGIC_API_PORT":                 &cfg.API.Port,
	}
	for name, field := range ints {
		if n, err := strconv.Atoi(os.Getenv(name)); err == nil {
			*field = n
		}
	}
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	switch c.Platform.Link {
	case LinkWebSocket:
		if c.Platform.URL == "" {
			errs = append(errs, "platform.url is required for the websocket link")
		}
	case LinkMQTT:
		if c.MQTT.Broker.ClientID == "" {
			errs = append(errs, "mqtt.broker.client_id is required for the mqtt link")
		}
	default:
		errs = append(errs, "platform.link must be \"websocket\" or \"mqtt\"")
	}

	if c.Platform.RequestTimeout < 1 {
		errs = append(errs, "platform.request_timeout must be at least 1 second")
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	if c.Session.LoadTimeout < 1 {
		errs = append(errs, "session.load_timeout must be at least 1 second")
	}

	if c.Security.CountdownInterval < 1 {
		errs = append(errs, "security.countdown_interval must be positive")
	}

	if c.API.Enabled && (c.API.Port < 1 || c.API.Port > 65535) {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	if c.API.Enabled && !strings.HasPrefix(c.WebSocket.Path, "/") {
		errs = append(errs, "websocket.path must start with /")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// GetRequestTimeout returns the platform request timeout as a Duration.
func (c *Config) GetRequestTimeout() time.Duration {
	return time.Duration(c.Platform.RequestTimeout) * time.Second
}

// GetLoadTimeout returns the login cache barrier timeout as a Duration.
func (c *Config) GetLoadTimeout() time.Duration {
	return time.Duration(c.Session.LoadTimeout) * time.Second
}

// GetCountdownInterval returns the arming countdown tick as a Duration.
func (c *Config) GetCountdownInterval() time.Duration {
	return time.Duration(c.Security.CountdownInterval) * time.Millisecond
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
