// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package gpucore

import "fmt"

// TextureID is an opaque handle to a GPU texture.
type TextureID uint64

// InvalidID is the zero value, representing an invalid/null texture.
const InvalidID TextureID = 0

// IsValid reports whether the handle refers to a texture.
func (id TextureID) IsValid() bool { return id != InvalidID }

// TextureFormat specifies the format of texture data.
type TextureFormat uint32

// Texture formats.
const (
	// TextureFormatRGBA8Unorm is 8-bit RGBA, normalized unsigned integer.
	TextureFormatRGBA8Unorm TextureFormat = iota + 1

	// TextureFormatBGRA8Unorm is 8-bit BGRA, normalized unsigned integer.
	TextureFormatBGRA8Unorm
)

func (f TextureFormat) String() string {
	switch f {
	case TextureFormatRGBA8Unorm:
		return "RGBA8Unorm"
	case TextureFormatBGRA8Unorm:
		return "BGRA8Unorm"
	default:
		return fmt.Sprintf("TextureFormat(%d)", uint32(f))
	}
}

// TextureUsage is a bitmask specifying how a texture will be used.
type TextureUsage uint32

// Texture usage flags.
const (
	// TextureUsageCopySrc indicates the texture can be used as a copy source.
	TextureUsageCopySrc TextureUsage = 1 << 0

	// TextureUsageCopyDst indicates the texture can be used as a copy destination.
	TextureUsageCopyDst TextureUsage = 1 << 1

	// TextureUsageTextureBinding indicates the texture can be bound as a sampled texture.
	TextureUsageTextureBinding TextureUsage = 1 << 2

	// TextureUsageStorageBinding indicates the texture can be bound as a storage texture.
	TextureUsageStorageBinding TextureUsage = 1 << 3

	// TextureUsageRenderAttachment indicates the texture can be used as a render target.
	TextureUsageRenderAttachment TextureUsage = 1 << 4
)

// Has reports whether all bits of flag are set.
func (u TextureUsage) Has(flag TextureUsage) bool { return u&flag == flag }

// TextureDescriptor describes a 2D texture to create.
type TextureDescriptor struct {
	Label  string
	Width  int
	Height int
	Format TextureFormat
	Usage  TextureUsage
}

// Validate checks the descriptor before it reaches a backend.
func (d *TextureDescriptor) Validate() error {
	if d.Width <= 0 || d.Height <= 0 {
		return fmt.Errorf("%w: %dx%d", ErrInvalidDimensions, d.Width, d.Height)
	}
	if d.Format == 0 {
		return fmt.Errorf("gpucore: texture %q has no format", d.Label)
	}
	return nil
}

// RegionCopy copies a Width x Height block from Src at (SrcX, SrcY) to
// Dst at (DstX, DstY).
type RegionCopy struct {
	Src, Dst   TextureID
	SrcX, SrcY int
	DstX, DstY int
	Width      int
	Height     int
}

func (c RegionCopy) String() string {
	return fmt.Sprintf("copy %d(%d,%d) -> %d(%d,%d) %dx%d",
		c.Src, c.SrcX, c.SrcY, c.Dst, c.DstX, c.DstY, c.Width, c.Height)
}
