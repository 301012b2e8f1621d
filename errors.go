// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package ggatlas

import "errors"

// Errors returned by the allocator, compositor and registry.
var (
	// ErrAtlasTooLarge is returned when packing the surface set would need
	// an atlas side beyond Config.MaxSide.
	ErrAtlasTooLarge = errors.New("ggatlas: atlas exceeds maximum side")

	// ErrRasterize wraps failures of the scene rasterizer. No region copies
	// are issued for a frame that returns it.
	ErrRasterize = errors.New("ggatlas: rasterization failed")

	// ErrTexture wraps atlas texture creation and upload failures.
	ErrTexture = errors.New("ggatlas: atlas texture failure")

	// ErrNilDevice is returned when a compositor is created without a device.
	ErrNilDevice = errors.New("ggatlas: nil device")

	// ErrClosed is returned by operations on a closed compositor.
	ErrClosed = errors.New("ggatlas: compositor is closed")

	// ErrUnknownSurface is returned by registry operations on an id that
	// is not attached.
	ErrUnknownSurface = errors.New("ggatlas: unknown surface")
)
