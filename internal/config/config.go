// Copyright (c) 2025-2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	DefaultSettle     = 500 * time.Millisecond
	DefaultOpenSettle = 2 * time.Second
)

// Config defines the global configuration structure
type Config struct {
	Lines   []LineConfig  `mapstructure:"lines"`
	Log     LogConfig     `mapstructure:"log"`
	Metrics MetricsConfig `mapstructure:"metrics"`
}

// LogConfig defines logging configuration
type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	File   string `mapstructure:"file"`   // Log file path
	Format string `mapstructure:"format"` // text, json, console
}

// MetricsConfig defines the Prometheus endpoint
type MetricsConfig struct {
	Address string `mapstructure:"address"` // e.g. "0.0.0.0:9090", empty disables
}

// LineConfig defines one pump line (a serial port shared by up to 100 pumps)
type LineConfig struct {
	Name        string        `mapstructure:"name"`
	Type        string        `mapstructure:"type"`         // "serial", "local"
	Listen      string        `mapstructure:"listen"`       // TCP address served by the line gateway, optional
	Settle      time.Duration `mapstructure:"settle"`       // Wait between command and response read
	OpenSettle  time.Duration `mapstructure:"open_settle"`  // Wait after opening the port
	StrictUnits bool          `mapstructure:"strict_units"` // Reject unknown rate units instead of dropping them
	Serial      SerialConfig  `mapstructure:"serial"`       // Used if Type is "serial"
	Local       LocalConfig   `mapstructure:"local"`        // Used if Type is "local"
}

// SerialConfig defines serial port settings. Line settings are fixed by the dialect.
type SerialConfig struct {
	Device      string        `mapstructure:"device"`
	ReadTimeout time.Duration `mapstructure:"read_timeout"`
}

// LocalConfig defines settings for the in-process pump emulator
type LocalConfig struct {
	Persistence PersistenceConfig `mapstructure:"persistence"`
}

// PersistenceConfig defines emulator state storage settings
type PersistenceConfig struct {
	Type string `mapstructure:"type"` // "memory", "file", "mmap"
	Path string `mapstructure:"path"` // File path for "file/mmap" type
}

// Port returns the port name the line opens.
func (l LineConfig) Port() string {
	if l.Type == "local" {
		return "local:" + l.Name
	}
	return l.Serial.Device
}

// LoadConfig loads configuration from file
func LoadConfig(configFile string) (*Config, error) {
	v := viper.New()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("/etc/syringe-pump/")
		v.AddConfigPath("$HOME/.syringe-pump")
		v.AddConfigPath(".")
	}

	// Set defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil, fmt.Errorf("failed to find config file: %w", err)
		}

		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Validate / Fixups
	for i := range config.Lines {
		if err := fixupLine(i, &config.Lines[i]); err != nil {
			return nil, err
		}
	}

	return &config, nil
}

func fixupLine(i int, l *LineConfig) error {
	l.Type = strings.ToLower(l.Type)
	if l.Type == "" {
		l.Type = "serial"
	}
	switch l.Type {
	case "serial":
		if l.Serial.Device == "" {
			return fmt.Errorf("line %d: serial device is required", i)
		}
	case "local":
	default:
		return fmt.Errorf("line %d: unknown type %q", i, l.Type)
	}
	if l.Name == "" {
		l.Name = fmt.Sprintf("line%d", i)
	}
	if l.Settle == 0 {
		l.Settle = DefaultSettle
	}
	if l.OpenSettle == 0 {
		l.OpenSettle = DefaultOpenSettle
	}
	l.Local.Persistence.Type = strings.ToLower(l.Local.Persistence.Type)
	return nil
}
