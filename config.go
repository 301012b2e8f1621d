// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package ggatlas

// maxTextureSide bounds every side setting. It matches the largest 2D
// texture dimension commonly exposed by wgpu adapters.
const maxTextureSide = 16384

// Config holds atlas and compositor configuration.
type Config struct {
	// MinSide is the smallest atlas side the allocator will build.
	// Must be a power of 2. Default: 64
	MinSide int

	// MaxSide is the largest atlas side growth may reach.
	// Must be a power of 2. Default: 8192
	MaxSide int

	// Padding is the gap in pixels kept between packed surfaces.
	// Default: 0
	Padding int

	// FlipY places fragments so that destination row 0 is the bottom
	// row of the fragment (bottom-left origin). Default: false
	FlipY bool

	// Workers is the number of raster workers. 0 uses GOMAXPROCS.
	Workers int

	// Label names the atlas texture for debugging. Default: "ggatlas"
	Label string
}

// DefaultConfig returns default configuration.
func DefaultConfig() Config {
	return Config{
		MinSide: 64,
		MaxSide: 8192,
		Label:   "ggatlas",
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if err := validateSide("MinSide", c.MinSide); err != nil {
		return err
	}
	if err := validateSide("MaxSide", c.MaxSide); err != nil {
		return err
	}
	if c.MinSide > c.MaxSide {
		return &ConfigError{Field: "MinSide", Reason: "must be at most MaxSide"}
	}
	if c.Padding < 0 {
		return &ConfigError{Field: "Padding", Reason: "must be non-negative"}
	}
	if c.Padding >= 64 {
		return &ConfigError{Field: "Padding", Reason: "must be less than 64"}
	}
	if c.Workers < 0 {
		return &ConfigError{Field: "Workers", Reason: "must be non-negative"}
	}
	return nil
}

func validateSide(field string, side int) error {
	if side < 1 {
		return &ConfigError{Field: field, Reason: "must be at least 1"}
	}
	if side > maxTextureSide {
		return &ConfigError{Field: field, Reason: "must be at most 16384"}
	}
	if side&(side-1) != 0 {
		return &ConfigError{Field: field, Reason: "must be power of 2"}
	}
	return nil
}

// ConfigError represents a configuration validation error.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return "ggatlas: invalid config." + e.Field + ": " + e.Reason
}
