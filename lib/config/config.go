// Copyright 2026 The Sliceforge Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides configuration loading for sliceforge tools.
//
// Configuration is loaded from a single file specified by:
//   - SLICEFORGE_CONFIG environment variable, or
//   - --config flag passed to the command
//
// There are no fallbacks or automatic discovery. A missing variable
// with no flag is an error, never a silent default file.
package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/sliceforge/sliceforge/lib/raster"
)

// Config is the tool configuration.
type Config struct {
	// Output configures where exports land.
	Output OutputConfig `yaml:"output"`

	// Encode configures slice payload encoding.
	Encode EncodeConfig `yaml:"encode"`

	// Slicing configures slicing defaults.
	Slicing SlicingConfig `yaml:"slicing"`
}

// OutputConfig configures export output.
type OutputConfig struct {
	// Dir is the directory exports are written into.
	// Default: current directory.
	Dir string `yaml:"dir"`
}

// EncodeConfig configures slice encoding.
type EncodeConfig struct {
	// Format is "jpeg" or "png". Default: jpeg.
	Format string `yaml:"format"`

	// JPEGQuality is 1..100. Default: 90.
	JPEGQuality int `yaml:"jpeg_quality"`
}

// SlicingConfig configures slicing defaults.
type SlicingConfig struct {
	// DefaultHeight is the slice height used when the user gives
	// none. Default: 1000.
	DefaultHeight int `yaml:"default_height"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Output: OutputConfig{Dir: "."},
		Encode: EncodeConfig{
			Format:      raster.FormatJPEG.String(),
			JPEGQuality: raster.DefaultJPEGQuality,
		},
		Slicing: SlicingConfig{DefaultHeight: 1000},
	}
}

// Load loads configuration from the SLICEFORGE_CONFIG environment
// variable. Fails if the variable is unset.
func Load() (*Config, error) {
	path := os.Getenv("SLICEFORGE_CONFIG")
	if path == "" {
		return nil, fmt.Errorf("SLICEFORGE_CONFIG environment variable not set; " +
			"set it to the path of your sliceforge.yaml config file, or use --config flag")
	}
	return LoadFile(path)
}

// LoadFile loads the configuration at path over the defaults.
func LoadFile(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if c.Output.Dir == "" {
		errs = append(errs, fmt.Errorf("output.dir is required"))
	}
	if _, err := raster.ParseFormat(c.Encode.Format); err != nil {
		errs = append(errs, fmt.Errorf("encode.format: %w", err))
	}
	if c.Encode.JPEGQuality < 1 || c.Encode.JPEGQuality > 100 {
		errs = append(errs, fmt.Errorf("encode.jpeg_quality must be 1..100, got %d", c.Encode.JPEGQuality))
	}
	if err := raster.ValidateSliceHeight(c.Slicing.DefaultHeight); err != nil {
		errs = append(errs, fmt.Errorf("slicing.default_height: %w", err))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// Format returns the parsed encode format. Call after Validate.
func (c *Config) Format() raster.Format {
	f, err := raster.ParseFormat(c.Encode.Format)
	if err != nil {
		return raster.FormatJPEG
	}
	return f
}
