// Package config loads the relay-rig daemon configuration.
//
// Values are resolved in order: built-in defaults, the YAML file, then
// RELAYRIG_* environment variables. An optional .env file is loaded into the
// environment first; variables already set take precedence over it.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/sweeney/relay-rig/internal/catalog"
	"github.com/sweeney/relay-rig/internal/expander"
	"github.com/sweeney/relay-rig/internal/sense"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "RELAYRIG_"

// Config is the daemon configuration.
type Config struct {
	I2C     I2CConfig       `yaml:"i2c"`
	GPIO    GPIOConfig      `yaml:"gpio"`
	Profile catalog.Profile `yaml:"profile"`
	MQTT    MQTTConfig      `yaml:"mqtt"`
	HTTP    HTTPConfig      `yaml:"http"`
	Logging LoggingConfig   `yaml:"logging"`
	Sense   SenseConfig     `yaml:"sense"`
}

// I2CConfig locates the expanders.
type I2CConfig struct {
	Bus   int `yaml:"bus"`
	IC1   int `yaml:"ic1"`
	IC2   int `yaml:"ic2"`
	Sense int `yaml:"sense"`
}

// GPIOConfig names the control line chip. Empty leaves the lines alone.
type GPIOConfig struct {
	Chip string `yaml:"chip"`
}

// MQTTConfig configures event publishing. An empty broker disables it.
type MQTTConfig struct {
	Broker           string `yaml:"broker"`
	ClientID         string `yaml:"client_id"`
	Username         string `yaml:"username"`
	Password         string `yaml:"password"`
	BufferSize       int    `yaml:"buffer_size"`
	HeartbeatSeconds int    `yaml:"heartbeat_seconds"`
}

// HTTPConfig configures the status server. An empty address disables it.
type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

// LoggingConfig selects log level and format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // text or json
}

// SenseConfig sets the event sensor intervals.
type SenseConfig struct {
	PollMs int `yaml:"poll_ms"`
	LogMs  int `yaml:"log_ms"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		I2C: I2CConfig{
			Bus:   1,
			IC1:   expander.AddrIC1,
			IC2:   expander.AddrIC2,
			Sense: expander.AddrSense,
		},
		GPIO:    GPIOConfig{Chip: "gpiochip0"},
		Profile: catalog.DefaultProfile(),
		MQTT: MQTTConfig{
			ClientID:         "relay-rig",
			BufferSize:       100,
			HeartbeatSeconds: 900,
		},
		HTTP: HTTPConfig{Addr: ":80"},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Sense: SenseConfig{
			PollMs: int(sense.PollInterval / time.Millisecond),
			LogMs:  int(sense.LogInterval / time.Millisecond),
		},
	}
}

// Load reads the configuration. An empty path skips the file. envFile, if
// non-empty, is loaded with godotenv; a missing env file is not an error.
func Load(path, envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("loading env file: %w", err)
		}
	}

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
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

// applyEnvOverrides applies RELAYRIG_SECTION_KEY variables.
func applyEnvOverrides(cfg *Config) error {
	var errs []error
	str := func(key string, dst *string) {
		if v, ok := os.LookupEnv(EnvPrefix + key); ok {
			*dst = v
		}
	}
	num := func(key string, dst *int) {
		v, ok := os.LookupEnv(EnvPrefix + key)
		if !ok {
			return
		}
		n, err := strconv.ParseInt(v, 0, 32)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, key, err))
			return
		}
		*dst = int(n)
	}
	flag := func(key string, dst *bool) {
		v, ok := os.LookupEnv(EnvPrefix + key)
		if !ok {
			return
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, key, err))
			return
		}
		*dst = b
	}

	// I2C
	num("I2C_BUS", &cfg.I2C.Bus)
	num("I2C_IC1", &cfg.I2C.IC1)
	num("I2C_IC2", &cfg.I2C.IC2)
	num("I2C_SENSE", &cfg.I2C.Sense)

	str("GPIO_CHIP", &cfg.GPIO.Chip)

	// Profile
	if v, ok := os.LookupEnv(EnvPrefix + "PROFILE_MODEL"); ok {
		m, err := catalog.ParseModel(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%sPROFILE_MODEL: %w", EnvPrefix, err))
		} else {
			cfg.Profile.Model = m
		}
	}
	flag("PROFILE_HAS_PEK", &cfg.Profile.HasPEK)
	flag("PROFILE_HAS_RH", &cfg.Profile.HasRH)
	flag("PROFILE_HAS_RC", &cfg.Profile.HasRC)
	flag("PROFILE_IN_PHASE", &cfg.Profile.InPhase)
	flag("PROFILE_ACC_MINUS", &cfg.Profile.AccMinus)

	// MQTT
	str("MQTT_BROKER", &cfg.MQTT.Broker)
	str("MQTT_CLIENT_ID", &cfg.MQTT.ClientID)
	str("MQTT_USERNAME", &cfg.MQTT.Username)
	str("MQTT_PASSWORD", &cfg.MQTT.Password)
	num("MQTT_HEARTBEAT_SECONDS", &cfg.MQTT.HeartbeatSeconds)
	num("MQTT_BUFFER_SIZE", &cfg.MQTT.BufferSize)

	str("HTTP_ADDR", &cfg.HTTP.Addr)

	// Logging; the bare LOG_LEVEL is honoured too.
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	str("LOG_LEVEL", &cfg.Logging.Level)
	str("LOG_FORMAT", &cfg.Logging.Format)

	num("SENSE_POLL_MS", &cfg.Sense.PollMs)
	num("SENSE_LOG_MS", &cfg.Sense.LogMs)

	return errors.Join(errs...)
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []string

	if c.I2C.Bus < 0 || c.I2C.Bus > 255 {
		errs = append(errs, "i2c.bus must be between 0 and 255")
	}
	seen := make(map[int]string)
	for _, a := range []struct {
		name string
		addr int
	}{{"i2c.ic1", c.I2C.IC1}, {"i2c.ic2", c.I2C.IC2}, {"i2c.sense", c.I2C.Sense}} {
		if a.addr < expander.BaseAddress || a.addr > expander.BaseAddress+7 {
			errs = append(errs, fmt.Sprintf("%s must be between 0x20 and 0x27", a.name))
			continue
		}
		if other, dup := seen[a.addr]; dup {
			errs = append(errs, fmt.Sprintf("%s duplicates %s", a.name, other))
		}
		seen[a.addr] = a.name
	}

	if err := c.Profile.Validate(); err != nil {
		errs = append(errs, "profile: "+err.Error())
	}

	if c.MQTT.Broker != "" {
		u, err := url.Parse(c.MQTT.Broker)
		if err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, "mqtt.broker must be a URL such as tcp://host:1883")
		}
	}
	if c.MQTT.BufferSize < 0 {
		errs = append(errs, "mqtt.buffer_size must not be negative")
	}
	if c.MQTT.HeartbeatSeconds < 0 {
		errs = append(errs, "mqtt.heartbeat_seconds must not be negative")
	}

	if _, err := logrus.ParseLevel(c.Logging.Level); err != nil {
		errs = append(errs, "logging.level: "+err.Error())
	}
	if c.Logging.Format != "text" && c.Logging.Format != "json" {
		errs = append(errs, "logging.format must be text or json")
	}

	if c.Sense.PollMs <= 0 {
		errs = append(errs, "sense.poll_ms must be positive")
	}
	if c.Sense.LogMs < c.Sense.PollMs {
		errs = append(errs, "sense.log_ms must not be shorter than sense.poll_ms")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}
	return nil
}

// Heartbeat returns the MQTT heartbeat interval; zero disables it.
func (c *Config) Heartbeat() time.Duration {
	return time.Duration(c.MQTT.HeartbeatSeconds) * time.Second
}

// SensePoll returns the sense polling interval.
func (c *Config) SensePoll() time.Duration {
	return time.Duration(c.Sense.PollMs) * time.Millisecond
}

// SenseLog returns the sense diagnostic log interval.
func (c *Config) SenseLog() time.Duration {
	return time.Duration(c.Sense.LogMs) * time.Millisecond
}
