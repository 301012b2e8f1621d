// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package software provides a CPU-memory implementation of gpucore.Device.
//
// Textures are image.RGBA buffers and region copies are golang.org/x/image/draw
// operations. It is used for headless rendering and as the device in tests.
package software

import (
	"fmt"
	"image"
	"sync"
	"sync/atomic"

	"github.com/gogpu/gg"
	"golang.org/x/image/draw"

	"github.com/gogpu/ggatlas"
	"github.com/gogpu/ggatlas/backend"
	"github.com/gogpu/ggatlas/gpucore"
)

func init() {
	backend.Register(backend.Software, func() (gpucore.Device, error) {
		return New(), nil
	})
}

// DefaultMaxTextureSide is the default texture side limit.
const DefaultMaxTextureSide = 16384

// Stats counts device operations.
type Stats struct {
	TexturesCreated   uint64
	TexturesDestroyed uint64
	Writes            uint64
	Submissions       uint64
	RegionCopies      uint64
}

type texture struct {
	label string
	usage gpucore.TextureUsage
	img   *image.RGBA
}

// Device keeps textures in CPU memory.
//
// Device is safe for concurrent use.
type Device struct {
	mu       sync.RWMutex
	textures map[gpucore.TextureID]*texture
	maxSide  int
	nextID   atomic.Uint64
	stats    Stats
}

// Option configures a Device.
type Option func(*Device)

// WithMaxTextureSide limits texture dimensions, like an adapter's
// MaxTextureDimension2D.
func WithMaxTextureSide(side int) Option {
	return func(d *Device) {
		d.maxSide = side
	}
}

// New creates an empty device.
func New(opts ...Option) *Device {
	d := &Device{
		textures: make(map[gpucore.TextureID]*texture),
		maxSide:  DefaultMaxTextureSide,
	}
	for _, opt := range opts {
		opt(d)
	}
	// 0 is gpucore.InvalidID
	d.nextID.Store(1)
	return d
}

func (d *Device) newID() gpucore.TextureID {
	return gpucore.TextureID(d.nextID.Add(1) - 1)
}

// CreateTexture allocates a zeroed texture.
func (d *Device) CreateTexture(desc *gpucore.TextureDescriptor) (gpucore.TextureID, error) {
	if err := desc.Validate(); err != nil {
		return gpucore.InvalidID, err
	}
	if desc.Width > d.maxSide || desc.Height > d.maxSide {
		return gpucore.InvalidID, fmt.Errorf("%w: %dx%d > %d", gpucore.ErrTextureTooLarge, desc.Width, desc.Height, d.maxSide)
	}

	id := d.newID()
	tex := &texture{
		label: desc.Label,
		usage: desc.Usage,
		img:   image.NewRGBA(image.Rect(0, 0, desc.Width, desc.Height)),
	}

	d.mu.Lock()
	d.textures[id] = tex
	d.stats.TexturesCreated++
	d.mu.Unlock()

	ggatlas.Logger().Debug("software: texture created", "id", id, "label", desc.Label, "width", desc.Width, "height", desc.Height)
	return id, nil
}

// DestroyTexture releases a texture.
func (d *Device) DestroyTexture(id gpucore.TextureID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.textures[id]; ok {
		delete(d.textures, id)
		d.stats.TexturesDestroyed++
	}
}

// TextureSize returns the dimensions of a texture.
func (d *Device) TextureSize(id gpucore.TextureID) (width, height int, ok bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	tex, ok := d.textures[id]
	if !ok {
		return 0, 0, false
	}
	b := tex.img.Bounds()
	return b.Dx(), b.Dy(), true
}

// WriteTexture copies pm into the texture at (x, y).
func (d *Device) WriteTexture(id gpucore.TextureID, x, y int, pm *gg.Pixmap) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	tex, ok := d.textures[id]
	if !ok {
		return fmt.Errorf("%w: %d", gpucore.ErrUnknownTexture, id)
	}
	if !tex.usage.Has(gpucore.TextureUsageCopyDst) {
		return fmt.Errorf("%w: write to %q", gpucore.ErrUsage, tex.label)
	}
	dst := image.Rect(x, y, x+pm.Width(), y+pm.Height())
	if !dst.In(tex.img.Bounds()) {
		return fmt.Errorf("%w: write %v into %v", gpucore.ErrCopyOutOfBounds, dst, tex.img.Bounds())
	}

	draw.Draw(tex.img, dst, pixmapImage(pm), image.Point{}, draw.Src)
	d.stats.Writes++
	return nil
}

// CopyTextureRegions validates every copy first and then applies them in
// order, as one submission.
func (d *Device) CopyTextureRegions(copies []gpucore.RegionCopy) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, c := range copies {
		src, ok := d.textures[c.Src]
		if !ok {
			return fmt.Errorf("%w: source %d", gpucore.ErrUnknownTexture, c.Src)
		}
		dst, ok := d.textures[c.Dst]
		if !ok {
			return fmt.Errorf("%w: destination %d", gpucore.ErrUnknownTexture, c.Dst)
		}
		if !src.usage.Has(gpucore.TextureUsageCopySrc) {
			return fmt.Errorf("%w: copy from %q", gpucore.ErrUsage, src.label)
		}
		if !dst.usage.Has(gpucore.TextureUsageCopyDst) {
			return fmt.Errorf("%w: copy to %q", gpucore.ErrUsage, dst.label)
		}
		sb, db := src.img.Bounds(), dst.img.Bounds()
		if err := gpucore.CheckCopy(c, sb.Dx(), sb.Dy(), db.Dx(), db.Dy()); err != nil {
			return fmt.Errorf("%w: %v", err, c)
		}
	}

	for _, c := range copies {
		src, dst := d.textures[c.Src].img, d.textures[c.Dst].img
		r := image.Rect(c.DstX, c.DstY, c.DstX+c.Width, c.DstY+c.Height)
		draw.Draw(dst, r, src, image.Pt(c.SrcX, c.SrcY), draw.Src)
	}
	d.stats.Submissions++
	d.stats.RegionCopies += uint64(len(copies))
	return nil
}

// ReadTexture returns a copy of the texture contents.
func (d *Device) ReadTexture(id gpucore.TextureID) (*gg.Pixmap, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	tex, ok := d.textures[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", gpucore.ErrUnknownTexture, id)
	}
	b := tex.img.Bounds()
	pm := gg.NewPixmap(b.Dx(), b.Dy())
	draw.Draw(pixmapImage(pm), pm.Bounds(), tex.img, b.Min, draw.Src)
	return pm, nil
}

// Stats returns a copy of the operation counters.
func (d *Device) Stats() Stats {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.stats
}

// Len returns the number of live textures.
func (d *Device) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.textures)
}

// pixmapImage views the pixmap's buffer as an image.RGBA without copying.
func pixmapImage(pm *gg.Pixmap) *image.RGBA {
	return &image.RGBA{
		Pix:    pm.Data(),
		Stride: pm.Width() * 4,
		Rect:   image.Rect(0, 0, pm.Width(), pm.Height()),
	}
}
