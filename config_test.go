// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package ggatlas

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 64, cfg.MinSide)
	assert.Equal(t, 8192, cfg.MaxSide)
	assert.False(t, cfg.FlipY)
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		field  string
	}{
		{"min side zero", func(c *Config) { c.MinSide = 0 }, "MinSide"},
		{"min side not power of 2", func(c *Config) { c.MinSide = 100 }, "MinSide"},
		{"max side too large", func(c *Config) { c.MaxSide = 32768 }, "MaxSide"},
		{"max side not power of 2", func(c *Config) { c.MaxSide = 3000 }, "MaxSide"},
		{"min above max", func(c *Config) { c.MinSide, c.MaxSide = 512, 256 }, "MinSide"},
		{"negative padding", func(c *Config) { c.Padding = -1 }, "Padding"},
		{"huge padding", func(c *Config) { c.Padding = 64 }, "Padding"},
		{"negative workers", func(c *Config) { c.Workers = -2 }, "Workers"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(&cfg)
			err := cfg.Validate()

			var cerr *ConfigError
			require.ErrorAs(t, err, &cerr)
			assert.Equal(t, tt.field, cerr.Field)
			assert.Contains(t, err.Error(), "ggatlas: invalid config."+tt.field)
		})
	}
}

func TestConfigValidateBoundaries(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MinSide, cfg.MaxSide = 1, 16384
	cfg.Padding = 63
	assert.NoError(t, cfg.Validate())
}
