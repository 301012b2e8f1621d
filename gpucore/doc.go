// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package gpucore defines the device abstraction the atlas compositor
// records its GPU work against.
//
// The [Device] interface covers exactly what a composite-and-copy frame
// needs: creating and destroying textures, uploading a rasterized pixmap,
// and submitting a batch of texture-to-texture region copies. Textures
// are referred to by opaque [TextureID] handles; each backend keeps the
// mapping from IDs to its own resources.
//
// Two backends implement it:
//   - backend/native drives gogpu/wgpu HAL devices
//   - backend/software keeps textures in CPU memory (tests, headless tools)
//
//	               +------------------+
//	               |     ggatlas      |
//	               | (Plan / Execute) |
//	               +---------+--------+
//	                         |
//	                  gpucore.Device
//	                         |
//	        +----------------+----------------+
//	        |                                 |
//	+-------v--------+               +--------v-------+
//	| backend/native |               |backend/software|
//	|  (hal.Device)  |               |  (image.RGBA)  |
//	+----------------+               +----------------+
package gpucore
