// Package config provides configuration helpers and TOML parsing.
package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// FileConfig represents the TOML configuration file.
type FileConfig struct {
	Estimate EstimateConfig `toml:"estimate"`
	Export   ExportConfig   `toml:"export"`
	Store    StoreConfig    `toml:"store"`
}

// EstimateConfig maps curve fitting and search settings.
type EstimateConfig struct {
	Degree        *int     `toml:"degree"`
	Smoothing     *float64 `toml:"smoothing"`
	KneeScale     *string  `toml:"knee-scale"`
	Linspace      *int     `toml:"linspace"`
	MaxExhaustive *int     `toml:"max-exhaustive"`
}

// ExportConfig maps image export settings.
type ExportConfig struct {
	DPI    *int     `toml:"dpi"`
	Width  *float64 `toml:"width"`
	Height *float64 `toml:"height"`
}

// StoreConfig maps the estimate database location.
type StoreConfig struct {
	Path *string `toml:"path"`
}

// LoadConfig reads a TOML config from the given path. Missing file is not an error.
func LoadConfig(path string) (FileConfig, error) {
	if path == "" {
		return FileConfig{}, fmt.Errorf("config path is empty")
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return FileConfig{}, nil
		}
		return FileConfig{}, fmt.Errorf("failed to stat config: %w", err)
	}
	var cfg FileConfig
	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return FileConfig{}, fmt.Errorf("failed to decode config: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return FileConfig{}, fmt.Errorf("unknown config key %q", undecoded[0].String())
	}
	return cfg, nil
}
