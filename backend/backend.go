// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package backend selects a gpucore.Device implementation by name.
//
// Backend packages register a factory from init(); importing them for
// side effects makes them available:
//
//	import _ "github.com/gogpu/ggatlas/backend/software"
//
//	dev, err := backend.Open(backend.Software)
package backend

import (
	"errors"

	"github.com/gogpu/ggatlas/gpucore"
)

// Backend names.
const (
	// Native is the gogpu/wgpu HAL device. It registers once a HAL provider
	// has been bound with native.Register.
	Native = "native"

	// Software keeps textures in CPU memory.
	Software = "software"
)

// Common backend errors.
var (
	// ErrBackendNotAvailable is returned when a requested backend is not
	// registered.
	ErrBackendNotAvailable = errors.New("backend: not available")
)

// Factory creates a device.
type Factory func() (gpucore.Device, error)
