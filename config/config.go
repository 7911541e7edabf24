// Package config loads xqueue application settings from YAML.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/trickstertwo/xlog"
	"github.com/trickstertwo/xlog/adapter/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/trickstertwo/xqueue"
)

// Config is the file layout used by cmd/xqueue and by applications that
// prefer configuration over code.
type Config struct {
	Transport TransportConfig `yaml:"transport"`
	Producer  ProducerConfig  `yaml:"producer"`
	Consumer  ConsumerConfig  `yaml:"consumer"`
	Monitor   MonitorConfig   `yaml:"monitor"`
	Log       LogConfig       `yaml:"log"`
}

// TransportConfig selects a registered transport. Options are handed to the
// transport factory unchanged.
type TransportConfig struct {
	Name    string         `yaml:"name"`
	Options map[string]any `yaml:"options,omitempty"`
}

type ProducerConfig struct {
	Address string        `yaml:"address"`
	Timeout time.Duration `yaml:"timeout"`
}

type ConsumerConfig struct {
	Address       string        `yaml:"address"`
	FilterExpired bool          `yaml:"filter_expired"`
	AckTimeout    time.Duration `yaml:"ack_timeout"`
}

type MonitorConfig struct {
	Address string `yaml:"address"`
}

type LogConfig struct {
	Level   string `yaml:"level"`
	Console bool   `yaml:"console"`
	Caller  bool   `yaml:"caller"`
}

// Default returns a configuration that talks to a local ZeroMQ broker.
func Default() *Config {
	return &Config{
		Transport: TransportConfig{Name: "zmq"},
		Producer: ProducerConfig{
			Address: "tcp://127.0.0.1:5555",
			Timeout: xqueue.DefaultProduceTimeout,
		},
		Consumer: ConsumerConfig{
			Address:       "tcp://127.0.0.1:5556",
			FilterExpired: true,
			AckTimeout:    5 * time.Second,
		},
		Monitor: MonitorConfig{
			Address: "tcp://127.0.0.1:5557",
		},
		Log: LogConfig{
			Level:   "info",
			Console: true,
		},
	}
}

// Load loads configuration from a YAML file.
// If the file doesn't exist, returns default configuration.
func Load(filename string) (*Config, error) {
	if filename == "" {
		return Default(), nil
	}

	data, err := os.ReadFile(filename)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Transport.Name == "" {
		return fmt.Errorf("transport.name cannot be empty")
	}
	if c.Producer.Address == "" {
		return fmt.Errorf("producer.address cannot be empty")
	}
	if c.Producer.Timeout <= 0 {
		return fmt.Errorf("producer.timeout must be positive")
	}
	if c.Consumer.Address == "" {
		return fmt.Errorf("consumer.address cannot be empty")
	}
	if c.Consumer.AckTimeout < 0 {
		return fmt.Errorf("consumer.ack_timeout cannot be negative")
	}
	if _, err := parseLevel(c.Log.Level); err != nil {
		return err
	}
	return nil
}

// Save writes the configuration to a YAML file.
func (c *Config) Save(filename string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Builder returns a client builder preloaded from c. The transport named in
// c must be registered, usually by importing its adapter package.
func (c *Config) Builder(logger *xlog.Logger) *xqueue.Builder {
	b := xqueue.NewBuilder().
		WithTransport(c.Transport.Name, c.Transport.Options).
		WithProduceTimeout(c.Producer.Timeout).
		WithAckTimeout(c.Consumer.AckTimeout).
		WithFilterExpired(c.Consumer.FilterExpired)
	if logger != nil {
		b.WithLogger(logger)
	}
	return b
}

// Logger installs the zerolog backend configured by l and returns it.
func (l LogConfig) Logger() (*xlog.Logger, error) {
	level, err := parseLevel(l.Level)
	if err != nil {
		return nil, err
	}
	return zerolog.Use(zerolog.Config{
		MinLevel:          level,
		Console:           l.Console,
		ConsoleTimeFormat: time.RFC3339Nano,
		Caller:            l.Caller,
		CallerSkip:        5,
	}), nil
}

func parseLevel(s string) (xlog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return xlog.LevelDebug, nil
	case "", "info":
		return xlog.LevelInfo, nil
	case "warn", "warning":
		return xlog.LevelWarn, nil
	case "error":
		return xlog.LevelError, nil
	default:
		return xlog.LevelInfo, fmt.Errorf("log.level %q is not one of debug, info, warn, error", s)
	}
}
