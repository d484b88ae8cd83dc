// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 grblhost contributors

// Package config loads grblhost's YAML configuration file via viper,
// grounded on the pack's viper-based internal/config.Load pattern.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the top-level configuration document, supplying connection and
// streaming defaults the CLI layer applies before any flag overrides.
type Config struct {
	Device     DeviceConfig     `mapstructure:"device"`
	Streaming  StreamingConfig  `mapstructure:"streaming"`
	Bridge     BridgeConfig     `mapstructure:"bridge"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

// DeviceConfig names the serial endpoint and its framing.
type DeviceConfig struct {
	Port string `mapstructure:"port"`
	Baud int    `mapstructure:"baud"`
}

// StreamingConfig carries flow-controller defaults.
type StreamingConfig struct {
	Capacity     int           `mapstructure:"capacity"`
	Mode         string        `mapstructure:"mode"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
	AllowEEPROM  bool          `mapstructure:"allow_eeprom"`
}

// BridgeConfig carries WebSocket-bridge connection defaults.
type BridgeConfig struct {
	URL           string `mapstructure:"url"`
	Username      string `mapstructure:"username"`
	SkipSSLVerify bool   `mapstructure:"skip_ssl_verify"`
}

// LoggingConfig controls the zap logger's construction.
type LoggingConfig struct {
	Level string `mapstructure:"level"`
	JSON  bool   `mapstructure:"json"`
}

// Load reads path as YAML, applies grblhost's defaults, and binds
// GRBLHOST_-prefixed environment variables over both, mirroring the pack's
// OMC_-prefixed viper.AutomaticEnv pattern.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.SetDefault("device.baud", 115200)
	v.SetDefault("streaming.capacity", 128)
	v.SetDefault("streaming.mode", "incremental")
	v.SetDefault("streaming.poll_interval", "200ms")
	v.SetDefault("streaming.allow_eeprom", false)
	v.SetDefault("bridge.skip_ssl_verify", false)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.json", false)

	v.AutomaticEnv()
	v.SetEnvPrefix("GRBLHOST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config %s: %w", path, err)
	}
	return &cfg, nil
}

// Defaults returns a Config populated with grblhost's built-in defaults,
// for callers (tests, `grblhost` run without -c) that never load a file.
func Defaults() *Config {
	return &Config{
		Device:    DeviceConfig{Baud: 115200},
		Streaming: StreamingConfig{Capacity: 128, Mode: "incremental", PollInterval: 200 * time.Millisecond},
		Logging:   LoggingConfig{Level: "info"},
	}
}
