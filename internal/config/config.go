// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package config loads photon's settings from flags, environment and an
// optional YAML file.
package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/Thermoquad/photon/pkg/protocols"
)

// EnvPrefix is prepended to every environment variable, e.g. PHOTON_PROTOCOL
const EnvPrefix = "photon"

// Output formats accepted by output.format
var Formats = []string{"text", "json", "cbor", "hex"}

const minReadTimeoutMillis = 100

type Config struct {
	LogLevel     zapcore.Level `mapstructure:"-"`
	LogLevelName string        `mapstructure:"log_level"`
	Protocol     string        `mapstructure:"protocol"`

	Connection ConnectionConfig `mapstructure:"connection"`
	Timeouts   TimeoutsConfig   `mapstructure:"timeouts"`
	Output     OutputConfig     `mapstructure:"output"`
}

type ConnectionConfig struct {
	Port        string
	Baud        int
	URL         string `mapstructure:"url"`
	Username    string
	NoSSLVerify bool `mapstructure:"no_ssl_verify"`
}

type TimeoutsConfig struct {
	ReadMillis   uint32 `mapstructure:"read_millis"`
	SettleMillis uint32 `mapstructure:"settle_millis"`
}

type OutputConfig struct {
	Format string
}

// ReadTimeout is the wait for one response
func (c *Config) ReadTimeout() time.Duration {
	return time.Duration(c.Timeouts.ReadMillis) * time.Millisecond
}

// Settle is the quiet time enforced between two exchanges
func (c *Config) Settle() time.Duration {
	return time.Duration(c.Timeouts.SettleMillis) * time.Millisecond
}

// SetDefaults registers the default value of every key on v
func SetDefaults(v *viper.Viper) {
	v.SetDefault("log_level", "warn")
	v.SetDefault("protocol", "pi30")
	v.SetDefault("connection.port", "")
	v.SetDefault("connection.baud", 2400)
	v.SetDefault("connection.url", "")
	v.SetDefault("connection.username", "")
	v.SetDefault("connection.no_ssl_verify", false)
	v.SetDefault("timeouts.read_millis", 2000)
	v.SetDefault("timeouts.settle_millis", 0)
	v.SetDefault("output.format", "text")
}

// Load reads the configuration held by v. Flags must already be bound.
// A config file is taken from the "config" key or the CONFIG_FILE
// environment variable.
func Load(v *viper.Viper) (*Config, error) {
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfgFile := v.GetString("config")
	if cfgFile == "" {
		cfgFile = os.Getenv("CONFIG_FILE")
	}
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", cfgFile, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	cfg.LogLevel = ParseLogLevel(cfg.LogLevelName)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ParseLogLevel maps a level name to a zap level. Unknown names give warn.
func ParseLogLevel(name string) zapcore.Level {
	switch strings.ToLower(name) {
	case "trace", "debug":
		return zap.DebugLevel
	case "info":
		return zap.InfoLevel
	case "warn":
		return zap.WarnLevel
	case "error":
		return zap.ErrorLevel
	case "fatal":
		return zap.FatalLevel
	default:
		return zap.WarnLevel
	}
}

// Validate checks bounds and names
func (c *Config) Validate() error {
	var errs []error

	if !slices.Contains(protocols.Names(), c.Protocol) {
		errs = append(errs, fmt.Errorf("config param protocol: unknown protocol %q (known: %s)",
			c.Protocol, strings.Join(protocols.Names(), ", ")))
	}
	if c.Connection.Baud <= 0 {
		errs = append(errs, errors.New("config param connection.baud should be > 0"))
	}
	if c.Timeouts.ReadMillis < minReadTimeoutMillis {
		errs = append(errs, fmt.Errorf("config param timeouts.read_millis should be >= %d", minReadTimeoutMillis))
	}
	if !slices.Contains(Formats, c.Output.Format) {
		errs = append(errs, fmt.Errorf("config param output.format: %q is not one of %s",
			c.Output.Format, strings.Join(Formats, ", ")))
	}
	return errors.Join(errs...)
}

// SafePrint logs the configuration with credentials redacted
func SafePrint(cfg Config, logger *zap.Logger) {
	if cfg.Connection.Username != "" {
		cfg.Connection.Username = "*redacted*"
	}
	logger.Debug("using config", zap.Any("config", cfg))
}
