// Package config loads the heater-node configuration from a YAML file,
// environment variables and built-in defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v2"

	"github.com/sweeney/heater-node/internal/core"
	"github.com/sweeney/heater-node/internal/gpio"
	"github.com/sweeney/heater-node/internal/mqtt"
	"github.com/sweeney/heater-node/internal/sensor"
)

// Environment overrides.
const (
	EnvBroker = "HEATER_NODE_BROKER"
	EnvNodeID = "HEATER_NODE_ID"
)

// Config is the complete daemon configuration.
type Config struct {
	Core      CoreConfig    `yaml:"core"`
	MQTT      MQTTConfig    `yaml:"mqtt"`
	Sensor    SensorConfig  `yaml:"sensor"`
	GPIO      GPIOConfig    `yaml:"gpio"`
	HTTP      HTTPConfig    `yaml:"http"`
	Log       LogConfig     `yaml:"log"`
	Tick      time.Duration `yaml:"tick"`
	Heartbeat time.Duration `yaml:"heartbeat"` // 0 disables
}

// CoreConfig holds the control core tunables.
type CoreConfig struct {
	Capabilities         string        `yaml:"capabilities"`    // dual | thermostat
	SetpointPolicy       string        `yaml:"setpoint_policy"` // clamp | reject
	ClampMin             float64       `yaml:"clamp_min"`
	ClampMax             float64       `yaml:"clamp_max"`
	RejectMin            float64       `yaml:"reject_min"`
	RejectMax            float64       `yaml:"reject_max"`
	DefaultTarget        float64       `yaml:"default_target"`
	MaxOffset            float64       `yaml:"max_offset"`
	TemperatureThreshold float64       `yaml:"temperature_threshold"`
	HumidityThreshold    float64       `yaml:"humidity_threshold"`
	ReportInterval       time.Duration `yaml:"report_interval"`
	HeatDwell            time.Duration `yaml:"heat_dwell"`
	ErrorBackoff         time.Duration `yaml:"error_backoff"`
}

// MQTTConfig holds broker and MySensors addressing settings.
type MQTTConfig struct {
	Broker         string        `yaml:"broker"`
	ClientID       string        `yaml:"client_id"`
	NodeID         int           `yaml:"node_id"`
	InPrefix       string        `yaml:"in_prefix"`
	OutPrefix      string        `yaml:"out_prefix"`
	PublishTimeout time.Duration `yaml:"publish_timeout"`
	QueueSize      int           `yaml:"queue_size"`
	SketchName     string        `yaml:"sketch_name"`
	SketchVersion  string        `yaml:"sketch_version"`
}

// SensorConfig selects the hwmon device.
type SensorConfig struct {
	HwmonRoot    string   `yaml:"hwmon_root"`
	Path         string   `yaml:"path"` // explicit hwmon dir; skips discovery
	Names        []string `yaml:"names"`
	HumidityUnit string   `yaml:"humidity_unit"` // percent | fraction
}

// GPIOConfig holds chip and line offsets.
type GPIOConfig struct {
	Chip      string `yaml:"chip"`
	TriacN    int    `yaml:"triac_n"`
	TriacP    int    `yaml:"triac_p"`
	LEDRed    int    `yaml:"led_red"`
	LEDYellow int    `yaml:"led_yellow"`
	LEDGreen  int    `yaml:"led_green"`
}

// HTTPConfig holds status server settings.
type HTTPConfig struct {
	Addr string `yaml:"addr"` // empty disables
}

// LogConfig holds log output settings.
type LogConfig struct {
	File       string `yaml:"file"` // empty logs to stderr
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

// Default returns the built-in configuration.
func Default() *Config {
	cc := core.DefaultConfig()
	pins := gpio.DefaultPins()
	return &Config{
		Core: CoreConfig{
			Capabilities:         cc.Capabilities.String(),
			SetpointPolicy:       cc.SetpointPolicy.String(),
			ClampMin:             cc.ClampMin,
			ClampMax:             cc.ClampMax,
			RejectMin:            cc.RejectMin,
			RejectMax:            cc.RejectMax,
			DefaultTarget:        cc.DefaultTarget,
			MaxOffset:            cc.MaxOffset,
			TemperatureThreshold: cc.TemperatureThreshold,
			HumidityThreshold:    cc.HumidityThreshold,
			ReportInterval:       time.Duration(cc.ReportInterval) * time.Millisecond,
			HeatDwell:            time.Duration(cc.HeatDwell) * time.Millisecond,
			ErrorBackoff:         time.Duration(cc.ErrorBackoff) * time.Millisecond,
		},
		MQTT: MQTTConfig{
			Broker:         "tcp://192.168.1.200:1883",
			NodeID:         1,
			InPrefix:       mqtt.DefaultInPrefix,
			OutPrefix:      mqtt.DefaultOutPrefix,
			PublishTimeout: 500 * time.Millisecond,
			QueueSize:      32,
			SketchName:     "Electric Heater",
			SketchVersion:  "1.0",
		},
		Sensor: SensorConfig{
			HwmonRoot:    sensor.DefaultHwmonRoot,
			Names:        append([]string(nil), sensor.DefaultNames...),
			HumidityUnit: string(sensor.HumidityPercent),
		},
		GPIO: GPIOConfig{
			Chip:      gpio.DefaultChip,
			TriacN:    pins.TriacN,
			TriacP:    pins.TriacP,
			LEDRed:    pins.LEDRed,
			LEDYellow: pins.LEDYellow,
			LEDGreen:  pins.LEDGreen,
		},
		HTTP: HTTPConfig{Addr: ":80"},
		Log: LogConfig{
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
		Tick:      100 * time.Millisecond,
		Heartbeat: 15 * time.Minute,
	}
}

// Load builds the configuration: defaults, then the YAML file at path (if
// any), then environment overrides. The result is validated.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		if err := loadFromFile(cfg, path); err != nil {
			return nil, fmt.Errorf("load %s: %w", path, err)
		}
	}
	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func loadFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.UnmarshalStrict(data, cfg)
}

func applyEnvOverrides(cfg *Config) error {
	if broker := os.Getenv(EnvBroker); broker != "" {
		cfg.MQTT.Broker = broker
	}
	if id := os.Getenv(EnvNodeID); id != "" {
		n, err := strconv.Atoi(id)
		if err != nil {
			return fmt.Errorf("%s=%q: %w", EnvNodeID, id, err)
		}
		cfg.MQTT.NodeID = n
	}
	return nil
}

// Validate checks every section and reports all problems at once.
func (c *Config) Validate() error {
	var errs []error
	if _, err := c.CoreConfig(); err != nil {
		errs = append(errs, err)
	}
	if c.MQTT.Broker == "" {
		errs = append(errs, errors.New("mqtt.broker is required"))
	}
	// 255 is the MySensors broadcast/unassigned id.
	if c.MQTT.NodeID < 0 || c.MQTT.NodeID > 254 {
		errs = append(errs, fmt.Errorf("mqtt.node_id %d outside [0,254]", c.MQTT.NodeID))
	}
	if c.MQTT.InPrefix == "" || c.MQTT.OutPrefix == "" {
		errs = append(errs, errors.New("mqtt prefixes must not be empty"))
	}
	if c.MQTT.QueueSize < 1 {
		errs = append(errs, fmt.Errorf("mqtt.queue_size %d must be positive", c.MQTT.QueueSize))
	}
	if c.MQTT.PublishTimeout <= 0 {
		errs = append(errs, errors.New("mqtt.publish_timeout must be positive"))
	}
	if _, err := sensor.ParseHumidityUnit(c.Sensor.HumidityUnit); err != nil {
		errs = append(errs, fmt.Errorf("sensor: %w", err))
	}
	if c.Tick <= 0 {
		errs = append(errs, errors.New("tick must be positive"))
	}
	if c.Heartbeat < 0 {
		errs = append(errs, errors.New("heartbeat must not be negative"))
	}
	return errors.Join(errs...)
}

// CoreConfig translates the core section into core tunables.
func (c *Config) CoreConfig() (core.Config, error) {
	cc := core.Config{
		ClampMin:             c.Core.ClampMin,
		ClampMax:             c.Core.ClampMax,
		RejectMin:            c.Core.RejectMin,
		RejectMax:            c.Core.RejectMax,
		DefaultTarget:        c.Core.DefaultTarget,
		MaxOffset:            c.Core.MaxOffset,
		TemperatureThreshold: c.Core.TemperatureThreshold,
		HumidityThreshold:    c.Core.HumidityThreshold,
		ReportInterval:       core.Tick(c.Core.ReportInterval.Milliseconds()),
		HeatDwell:            core.Tick(c.Core.HeatDwell.Milliseconds()),
		ErrorBackoff:         core.Tick(c.Core.ErrorBackoff.Milliseconds()),
	}

	switch c.Core.Capabilities {
	case core.DualSurface.String():
		cc.Capabilities = core.DualSurface
	case core.ThermostatOnly.String():
		cc.Capabilities = core.ThermostatOnly
	default:
		return core.Config{}, fmt.Errorf("core.capabilities %q: want dual or thermostat", c.Core.Capabilities)
	}

	switch c.Core.SetpointPolicy {
	case core.PolicyClamp.String():
		cc.SetpointPolicy = core.PolicyClamp
	case core.PolicyReject.String():
		cc.SetpointPolicy = core.PolicyReject
	default:
		return core.Config{}, fmt.Errorf("core.setpoint_policy %q: want clamp or reject", c.Core.SetpointPolicy)
	}

	if err := cc.Validate(); err != nil {
		return core.Config{}, fmt.Errorf("core: %w", err)
	}
	return cc, nil
}

// Pins returns the configured GPIO wiring.
func (c *Config) Pins() gpio.Pins {
	return gpio.Pins{
		TriacN:    c.GPIO.TriacN,
		TriacP:    c.GPIO.TriacP,
		LEDRed:    c.GPIO.LEDRed,
		LEDYellow: c.GPIO.LEDYellow,
		LEDGreen:  c.GPIO.LEDGreen,
	}
}
