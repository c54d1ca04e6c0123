// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package objrpc

import (
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Config is the yaml form of the runtime options, as read by objrpcd.
type Config struct {
	Transport      string        `yaml:"transport"`
	Address        string        `yaml:"address"`
	CallTimeout    time.Duration `yaml:"callTimeout"`
	Workers        int           `yaml:"workers"`
	Queue          int           `yaml:"queue"`
	Compression    *bool         `yaml:"compression"`
	MaxFrameSize   uint32        `yaml:"maxFrameSize"`
	Envelope       string        `yaml:"envelope"`
	GatewayAddress string        `yaml:"gatewayAddress"`
	MetricsAddress string        `yaml:"metricsAddress"`
	Log            LogConfig     `yaml:"log"`
}

// LogConfig selects the logger built by NewLogger
type LogConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

// DefaultConfig returns the configuration used when no file is given
func DefaultConfig() *Config {
	return &Config{
		Transport:   DefaultTransport,
		Address:     "127.0.0.1:9650",
		CallTimeout: DefaultCallTimeout,
		Envelope:    EnvelopeWire,
		Log:         LogConfig{Level: "info"},
	}
}

// LoadConfig reads a yaml file over DefaultConfig
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return ParseConfig(data)
}

// ParseConfig decodes yaml over DefaultConfig and validates the result
func ParseConfig(data []byte) (*Config, error) {
	c := DefaultConfig()
	if err := yaml.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("config unmarshal: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate rejects unknown transports and envelope codecs
func (c *Config) Validate() error {
	if !HasTransport(c.Transport) {
		return fmt.Errorf("config: unknown transport %q (have %v)", c.Transport, AvailableTransports())
	}
	if _, err := EnvelopeCodecByName(c.Envelope); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if c.Address == "" {
		return fmt.Errorf("config: empty address")
	}
	return nil
}

// Options converts the configuration into runtime options. The logger and
// metrics are supplied by the caller.
func (c *Config) Options() []Option {
	opts := []Option{
		WithTransport(c.Transport),
		WithCallTimeout(c.CallTimeout),
		WithWorkers(c.Workers),
	}
	if c.Queue > 0 {
		opts = append(opts, WithQueue(c.Queue))
	}
	if c.Compression != nil {
		opts = append(opts, WithCompression(*c.Compression))
	}
	if c.MaxFrameSize > 0 {
		opts = append(opts, WithMaxFrameSize(c.MaxFrameSize))
	}
	if ec, err := EnvelopeCodecByName(c.Envelope); err == nil {
		opts = append(opts, WithEnvelopeCodec(ec))
	}
	return opts
}

// NewLogger builds the zap logger described by c
func (c LogConfig) NewLogger() (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	if c.Development {
		zc = zap.NewDevelopmentConfig()
	}
	if c.Level != "" {
		lvl, err := zap.ParseAtomicLevel(c.Level)
		if err != nil {
			return nil, fmt.Errorf("log level: %w", err)
		}
		zc.Level = lvl
	}
	return zc.Build()
}
