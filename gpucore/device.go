// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package gpucore

import (
	"errors"

	"github.com/gogpu/gg"
)

// Device errors shared by the backends.
var (
	// ErrUnknownTexture is returned for a TextureID the device does not own.
	ErrUnknownTexture = errors.New("gpucore: unknown texture")

	// ErrInvalidDimensions is returned for non-positive texture sizes.
	ErrInvalidDimensions = errors.New("gpucore: invalid texture dimensions")

	// ErrTextureTooLarge is returned when a texture exceeds the device limit.
	ErrTextureTooLarge = errors.New("gpucore: texture exceeds device limit")

	// ErrCopyOutOfBounds is returned when a region copy leaves a texture.
	ErrCopyOutOfBounds = errors.New("gpucore: copy region out of bounds")

	// ErrUsage is returned when a texture lacks the usage an operation needs.
	ErrUsage = errors.New("gpucore: texture usage does not allow operation")
)

// Device is the GPU surface the compositor records against.
//
// Operations are issued in program order: a WriteTexture is visible to
// every CopyTextureRegions submitted after it.
type Device interface {
	// CreateTexture allocates a texture and returns its handle.
	CreateTexture(desc *TextureDescriptor) (TextureID, error)

	// DestroyTexture releases a texture. Unknown handles are ignored.
	DestroyTexture(id TextureID)

	// TextureSize returns the dimensions of a texture.
	TextureSize(id TextureID) (width, height int, ok bool)

	// WriteTexture uploads pm into the texture with its top-left corner
	// at (x, y). The pixmap is premultiplied RGBA.
	WriteTexture(id TextureID, x, y int, pm *gg.Pixmap) error

	// CopyTextureRegions records all copies into one command submission.
	// Either every copy is submitted or none is.
	CopyTextureRegions(copies []RegionCopy) error

	// ReadTexture reads a texture back into a new pixmap.
	ReadTexture(id TextureID) (*gg.Pixmap, error)
}

// CheckCopy validates a copy against source and destination sizes.
func CheckCopy(c RegionCopy, srcW, srcH, dstW, dstH int) error {
	if c.Width <= 0 || c.Height <= 0 ||
		c.SrcX < 0 || c.SrcY < 0 || c.SrcX+c.Width > srcW || c.SrcY+c.Height > srcH ||
		c.DstX < 0 || c.DstY < 0 || c.DstX+c.Width > dstW || c.DstY+c.Height > dstH {
		return ErrCopyOutOfBounds
	}
	return nil
}
