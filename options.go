// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package ggatlas

// Option configures a Compositor during creation.
//
// Example:
//
//	// Bottom-left origin destinations with a larger atlas ceiling
//	c, err := ggatlas.NewCompositor(dev,
//	    ggatlas.WithFlipY(true),
//	    ggatlas.WithMaxSide(16384),
//	)
type Option func(*options)

// options holds optional configuration for Compositor creation.
type options struct {
	config     Config
	rasterizer Rasterizer
}

func defaultOptions() options {
	return options{
		config:     DefaultConfig(),
		rasterizer: nil, // SceneRasterizer is created if nil
	}
}

// WithConfig replaces the whole configuration. Options applied after it
// still override individual fields.
func WithConfig(cfg Config) Option {
	return func(o *options) {
		o.config = cfg
	}
}

// WithMinSide sets the smallest atlas side.
func WithMinSide(side int) Option {
	return func(o *options) {
		o.config.MinSide = side
	}
}

// WithMaxSide sets the largest atlas side growth may reach.
func WithMaxSide(side int) Option {
	return func(o *options) {
		o.config.MaxSide = side
	}
}

// WithPadding sets the gap kept between packed surfaces.
func WithPadding(px int) Option {
	return func(o *options) {
		o.config.Padding = px
	}
}

// WithFlipY selects the bottom-left origin convention for destination
// textures.
func WithFlipY(flip bool) Option {
	return func(o *options) {
		o.config.FlipY = flip
	}
}

// WithWorkers sets the number of raster workers. 0 uses GOMAXPROCS.
func WithWorkers(n int) Option {
	return func(o *options) {
		o.config.Workers = n
	}
}

// WithLabel names the atlas texture.
func WithLabel(label string) Option {
	return func(o *options) {
		o.config.Label = label
	}
}

// WithRasterizer injects the rasterizer used to turn the aggregate scene
// into pixels. Use this for GPU rasterizers or test doubles.
func WithRasterizer(r Rasterizer) Option {
	return func(o *options) {
		o.rasterizer = r
	}
}
