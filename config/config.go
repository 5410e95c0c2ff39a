// Package config loads the audio output configuration: logging, metrics and the simulated board.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/gen2brain/aout"
	"github.com/gen2brain/aout/internal/logger"
)

// Config represents the audio output configuration.
//
// Configuration sources (in order of precedence):
//  1. Environment variables (AOUT_*)
//  2. Configuration file (YAML)
//  3. Default values
type Config struct {
	// Logging controls log output behavior
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`

	// Metrics contains Prometheus metrics server configuration
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`

	// Board describes the simulated audio subsystem
	Board BoardConfig `mapstructure:"board" yaml:"board"`

	// Playback holds the session defaults of aoutctl
	Playback PlaybackConfig `mapstructure:"playback" yaml:"playback"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level to output
	// Valid values: DEBUG, INFO, WARN, ERROR (case-insensitive, normalized to uppercase)
	Level string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR" yaml:"level"`

	// Format specifies the log output format
	// Valid values: text, json
	Format string `mapstructure:"format" validate:"required,oneof=text json" yaml:"format"`

	// Output specifies where logs are written
	// Valid values: stdout, stderr, or a file path
	Output string `mapstructure:"output" validate:"required" yaml:"output"`
}

// MetricsConfig configures the Prometheus metrics HTTP endpoint.
// When Enabled is false, no metrics are collected.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Addr is the listen address of the /metrics endpoint
	// Default: 127.0.0.1:9090
	Addr string `mapstructure:"addr" validate:"omitempty,hostname_port" yaml:"addr"`
}

// BoardConfig describes the physical blocks bound on the device bus.
type BoardConfig struct {
	// Variant selects the session table of the hardware
	// Valid values: default, pearlriver
	Variant string `mapstructure:"variant" validate:"oneof=default pearlriver" yaml:"variant"`

	// Capacity overrides the session table of the variant when set
	Capacity *aout.Capacity `mapstructure:"capacity" yaml:"capacity,omitempty"`

	// PAWaitTimeout bounds the wait of open for a transient power-amplifier session
	// Default: 2s
	PAWaitTimeout time.Duration `mapstructure:"pa_wait_timeout" validate:"gt=0" yaml:"pa_wait_timeout"`

	// PAWaitInterval is the polling interval of that wait
	// Default: 2ms
	PAWaitInterval time.Duration `mapstructure:"pa_wait_interval" validate:"gt=0,ltefield=PAWaitTimeout" yaml:"pa_wait_interval"`

	// ExternalPA attaches a board power amplifier to the DAC output
	ExternalPA bool `mapstructure:"external_pa" yaml:"external_pa"`

	DMA     DMAConfig     `mapstructure:"dma" yaml:"dma"`
	DAC     DACConfig     `mapstructure:"dac" yaml:"dac"`
	I2STX   I2STXConfig   `mapstructure:"i2stx" yaml:"i2stx"`
	SPDIFTX SPDIFTXConfig `mapstructure:"spdiftx" yaml:"spdiftx"`
	PDMTX   PDMTXConfig   `mapstructure:"pdmtx" yaml:"pdmtx"`
}

// DMAConfig configures the DMA engine.
type DMAConfig struct {
	Name     string `mapstructure:"name" validate:"required" yaml:"name"`
	Channels int    `mapstructure:"channels" validate:"min=1,max=32" yaml:"channels"`

	// Realtime paces transfers at the session sample rate instead of completing them immediately
	Realtime bool `mapstructure:"realtime" yaml:"realtime"`
}

// DACConfig configures the DAC block.
type DACConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Name    string `mapstructure:"name" validate:"required_if=Enabled true" yaml:"name"`

	// DrainTimeout bounds the FIFO drain wait on disable
	// Default: 130ms
	DrainTimeout time.Duration `mapstructure:"drain_timeout" validate:"gte=0" yaml:"drain_timeout"`

	KeepEnabledOnPause bool `mapstructure:"keep_enabled_on_pause" yaml:"keep_enabled_on_pause"`
	Dither             bool `mapstructure:"dither" yaml:"dither"`
	AutoMute           bool `mapstructure:"auto_mute" yaml:"auto_mute"`
	NoiseDetectMute    bool `mapstructure:"noise_detect_mute" yaml:"noise_detect_mute"`
	LeftMute           bool `mapstructure:"left_mute" yaml:"left_mute"`
	RightMute          bool `mapstructure:"right_mute" yaml:"right_mute"`
}

// I2STXConfig configures the I2S transmitter.
type I2STXConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Name    string `mapstructure:"name" validate:"required_if=Enabled true" yaml:"name"`

	// SRDTimeout is the sample rate detector timeout; negative disables it
	// Default: 500ms
	SRDTimeout time.Duration `mapstructure:"srd_timeout" yaml:"srd_timeout"`

	// BCLK32 starts the detector at 32 BCLK per LRCLK
	BCLK32 bool `mapstructure:"bclk32" yaml:"bclk32"`
}

// SPDIFTXConfig configures the S/PDIF transmitter.
type SPDIFTXConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Name    string `mapstructure:"name" validate:"required_if=Enabled true" yaml:"name"`
}

// PDMTXConfig configures the PDM transmitter.
type PDMTXConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Name    string `mapstructure:"name" validate:"required_if=Enabled true" yaml:"name"`
}

// PlaybackConfig holds the session parameters used when none are given on the command line.
type PlaybackConfig struct {
	// Channel is the channel mask, e.g. "DAC" or "DAC|SPDIFTX"
	Channel aout.ChannelType `mapstructure:"channel" validate:"required" yaml:"channel"`

	// Fifo is the output FIFO, e.g. "DAC0" or "I2STX0"
	Fifo aout.FifoType `mapstructure:"fifo" yaml:"fifo"`

	// Volume is the initial DAC volume in 1/10000 dB
	Volume int32 `mapstructure:"volume" validate:"lte=240000" yaml:"volume"`

	// PeriodSize is the half size of the reload ring in bytes
	PeriodSize int `mapstructure:"period_size" validate:"gt=0" yaml:"period_size"`
}

// MarshalYAML writes the channel mask and the FIFO by name.
func (c PlaybackConfig) MarshalYAML() (any, error) {
	return struct {
		Channel    string `yaml:"channel"`
		Fifo       string `yaml:"fifo"`
		Volume     int32  `yaml:"volume"`
		PeriodSize int    `yaml:"period_size"`
	}{c.Channel.String(), c.Fifo.String(), c.Volume, c.PeriodSize}, nil
}

// Load loads configuration from file, environment, and defaults.
// An empty configPath searches the default location; a missing file yields the defaults.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setupViper(v, configPath)

	if _, err := readConfigFile(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(configDecodeHooks())); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// SaveConfig saves the configuration to the specified file path in YAML format.
func SaveConfig(cfg *Config, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks the struct tags of the configuration and the rules that span fields.
func Validate(cfg *Config) error {
	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := validate.Struct(cfg); err != nil {
		return err
	}

	if cfg.Board.Capacity != nil {
		c := cfg.Board.Capacity
		if c.DAC < 0 || c.I2STX < 0 || c.SPDIFTX < 0 || c.PDMTX < 0 {
			return fmt.Errorf("board.capacity: negative session limit: %w", aout.ErrInvalidArgument)
		}
		if c.Total() == 0 {
			return errors.New("board.capacity: at least one session is required")
		}
	}

	if cfg.Playback.Channel.Primary() == 0 {
		return fmt.Errorf("playback.channel %s: %w", cfg.Playback.Channel, aout.ErrInvalidArgument)
	}

	return nil
}

// SessionCapacity returns the session table: the override if present, else the one of the variant.
func (b *BoardConfig) SessionCapacity() (aout.Capacity, error) {
	if b.Capacity != nil {
		return *b.Capacity, nil
	}

	return aout.CapacityForVariant(b.Variant)
}

// LoggerConfig returns the logger settings of the configuration.
func (c *Config) LoggerConfig() logger.Config {
	return logger.Config{
		Level:  c.Logging.Level,
		Format: c.Logging.Format,
		Output: c.Logging.Output,
	}
}

// setupViper configures viper with environment variables and config file settings.
func setupViper(v *viper.Viper, configPath string) {
	// Environment variables use the AOUT_ prefix, e.g. AOUT_LOGGING_LEVEL=DEBUG.
	v.SetEnvPrefix("AOUT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// AutomaticEnv only covers keys viper knows about.
	setViperDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath(GetConfigDir())
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
}

// readConfigFile reads the configuration file if it exists.
func readConfigFile(v *viper.Viper) (bool, error) {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) || os.IsNotExist(err) {
			return false, nil
		}

		return false, fmt.Errorf("failed to read config file: %w", err)
	}

	return true, nil
}

// configDecodeHooks returns a combined decode hook for all custom types.
func configDecodeHooks() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		durationDecodeHook(),
		channelTypeDecodeHook(),
		fifoTypeDecodeHook(),
	)
}

// durationDecodeHook converts strings like "130ms" or "2s" to time.Duration.
func durationDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data any) (any, error) {
		if to != reflect.TypeOf(time.Duration(0)) {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			return time.ParseDuration(v)
		case int:
			return time.Duration(v), nil
		case int64:
			return time.Duration(v), nil
		case float64:
			return time.Duration(v), nil
		default:
			return data, nil
		}
	}
}

// channelTypeDecodeHook converts channel masks like "DAC|SPDIFTX" to aout.ChannelType.
func channelTypeDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data any) (any, error) {
		if to != reflect.TypeOf(aout.ChannelType(0)) {
			return data, nil
		}

		if s, ok := data.(string); ok {
			return aout.ParseChannelType(s)
		}

		return data, nil
	}
}

// fifoTypeDecodeHook converts FIFO names like "DAC1" to aout.FifoType.
func fifoTypeDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data any) (any, error) {
		if to != reflect.TypeOf(aout.FifoType(0)) {
			return data, nil
		}

		if s, ok := data.(string); ok {
			return aout.ParseFifoType(s)
		}

		return data, nil
	}
}

// GetConfigDir returns the configuration directory: $XDG_CONFIG_HOME/aout, ~/.config/aout or ".".
func GetConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "aout")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}

	return filepath.Join(home, ".config", "aout")
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() string {
	return filepath.Join(GetConfigDir(), "config.yaml")
}
