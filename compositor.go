// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package ggatlas

import (
	"context"
	"fmt"

	"github.com/gogpu/gg/scene"

	"github.com/gogpu/ggatlas/gpucore"
)

// Stats counts compositor work since creation.
type Stats struct {
	// Frames is the number of Execute calls that did the work.
	Frames uint64
	// Gated is the number of Execute calls skipped by the frame gate.
	Gated uint64
	// Rebuilds counts atlas rebuilds, including growth.
	Rebuilds uint64
	// Grows counts the rebuilds caused by a surface not fitting.
	Grows uint64
	// Copies is the total number of region copies submitted.
	Copies uint64
	// Failures counts Execute calls that returned an error.
	Failures uint64

	// RasterWidth and RasterHeight are the size of the last raster pass.
	RasterWidth  int
	RasterHeight int
}

// Compositor packs surfaces into one atlas texture, rasterizes all their
// fragments in a single pass and copies each surface's region back into
// its destination texture.
//
// Work is split in two steps, mirroring a render-graph node:
//   - Plan sizes the atlas and allocates rectangles. It makes no device calls.
//   - Execute records the device work: atlas texture lifecycle, raster
//     upload and region copies.
//
// Compositor is not safe for concurrent use. Share it through a Context.
type Compositor struct {
	cfg    Config
	device gpucore.Device
	raster Rasterizer
	atlas  *Atlas
	gate   FrameGate

	// Atlas texture, recreated when the atlas side changes.
	texture gpucore.TextureID
	texSide int

	planned map[SurfaceID]struct{}
	scene   *scene.Scene
	stats   Stats
	closed  bool
}

// NewCompositor creates a compositor recording into dev.
func NewCompositor(dev gpucore.Device, opts ...Option) (*Compositor, error) {
	if dev == nil {
		return nil, ErrNilDevice
	}
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if err := o.config.Validate(); err != nil {
		return nil, err
	}
	if o.rasterizer == nil {
		o.rasterizer = NewSceneRasterizer(o.config.Workers)
	}
	return &Compositor{
		cfg:     o.config,
		device:  dev,
		raster:  o.rasterizer,
		atlas:   NewAtlas(o.config),
		planned: make(map[SurfaceID]struct{}),
		scene:   scene.NewScene(),
	}, nil
}

// Config returns the configuration in effect.
func (c *Compositor) Config() Config { return c.cfg }

// Atlas exposes the allocator state for inspection.
func (c *Compositor) Atlas() *Atlas { return c.atlas }

// Texture returns the current atlas texture, or gpucore.InvalidID before
// the first Execute.
func (c *Compositor) Texture() gpucore.TextureID { return c.texture }

// Gate returns the frame gate.
func (c *Compositor) Gate() *FrameGate { return &c.gate }

// Stats returns a copy of the work counters.
func (c *Compositor) Stats() Stats { return c.stats }

// Plan updates the atlas size and allocations for the surface set. It
// returns early once the frame has been rendered.
func (c *Compositor) Plan(surfaces []Surface) error {
	if c.closed {
		return ErrClosed
	}
	if c.gate.Rendered() {
		return nil
	}

	live := packingOrder(surfaces)
	clear(c.planned)
	if len(live) == 0 {
		return nil
	}

	gen, grows := c.atlas.Generation(), c.atlas.Grows()
	c.atlas.UpdateSize(live)
	err := c.atlas.AllocateAll(live)
	c.stats.Rebuilds += c.atlas.Generation() - gen
	c.stats.Grows += c.atlas.Grows() - grows
	if err != nil {
		return err
	}

	for _, s := range live {
		c.planned[s.ID] = struct{}{}
	}
	return nil
}

// Execute composites and copies back the current surface set, once per
// frame. Later calls in the same frame return nil without doing anything.
//
// Surfaces that were not part of the last Plan are skipped until the next
// frame. On error no region copy has been submitted, so destination
// textures keep their previous content.
func (c *Compositor) Execute(ctx context.Context, surfaces []Surface) error {
	if c.closed {
		return ErrClosed
	}
	if !c.gate.Begin() {
		c.stats.Gated++
		return nil
	}
	// No retry within a frame, whatever the outcome.
	c.gate.Done()

	if err := c.execute(ctx, surfaces); err != nil {
		c.stats.Failures++
		return err
	}
	c.stats.Frames++
	return nil
}

func (c *Compositor) execute(ctx context.Context, surfaces []Surface) error {
	placed := c.compose(surfaces)
	if len(placed) == 0 {
		return nil
	}

	if err := c.ensureTexture(); err != nil {
		return err
	}

	width, height := rasterBounds(placed)
	pm, err := c.raster.Rasterize(ctx, c.scene, width, height)
	if err != nil {
		return fmt.Errorf("%w: %dx%d: %w", ErrRasterize, width, height, err)
	}
	c.stats.RasterWidth, c.stats.RasterHeight = width, height

	if err := c.device.WriteTexture(c.texture, 0, 0, pm); err != nil {
		return fmt.Errorf("%w: upload %dx%d: %w", ErrTexture, width, height, err)
	}

	copies := c.copyBack(placed)
	if len(copies) == 0 {
		return nil
	}
	if err := c.device.CopyTextureRegions(copies); err != nil {
		return fmt.Errorf("ggatlas: copy back %d regions: %w", len(copies), err)
	}
	c.stats.Copies += uint64(len(copies))
	return nil
}

// placement pairs a surface with its atlas rectangle for this frame.
type placement struct {
	surface Surface
	rect    Rect
}

// compose rebuilds the aggregate scene from every planned surface.
func (c *Compositor) compose(surfaces []Surface) []placement {
	c.scene.Reset()
	placed := make([]placement, 0, len(surfaces))
	for _, s := range surfaces {
		if _, ok := c.planned[s.ID]; !ok {
			if s.Area() > 0 {
				Logger().Debug("ggatlas: surface not planned this frame", "surface", s.ID)
			}
			continue
		}
		r := c.atlas.Get(s.ID)
		s.Fragment.AppendTo(c.scene, c.placeTransform(r))
		placed = append(placed, placement{surface: s, rect: r})
	}
	return placed
}

// placeTransform maps fragment space onto the atlas rectangle. With FlipY
// the fragment's top row lands on the rectangle's bottom row.
func (c *Compositor) placeTransform(r Rect) scene.Affine {
	if !c.cfg.FlipY {
		return scene.TranslateAffine(float32(r.X), float32(r.Y))
	}
	return scene.TranslateAffine(float32(r.X), float32(r.MaxY())).Multiply(scene.ScaleAffine(1, -1))
}

// rasterBounds returns the extent of all rectangles touched this frame.
func rasterBounds(placed []placement) (width, height int) {
	for _, p := range placed {
		width = max(width, p.rect.MaxX())
		height = max(height, p.rect.MaxY())
	}
	return width, height
}

// ensureTexture (re)creates the atlas texture when the side changed.
func (c *Compositor) ensureTexture() error {
	side := c.atlas.Side()
	if c.texture.IsValid() && c.texSide == side {
		return nil
	}
	if c.texture.IsValid() {
		Logger().Debug("ggatlas: releasing atlas texture", "old", c.texSide, "new", side)
		c.device.DestroyTexture(c.texture)
		c.texture, c.texSide = gpucore.InvalidID, 0
	}
	id, err := c.device.CreateTexture(&gpucore.TextureDescriptor{
		Label:  c.cfg.Label,
		Width:  side,
		Height: side,
		Format: gpucore.TextureFormatRGBA8Unorm,
		Usage:  gpucore.TextureUsageCopySrc | gpucore.TextureUsageCopyDst | gpucore.TextureUsageStorageBinding,
	})
	if err != nil {
		return fmt.Errorf("%w: side=%d: %w", ErrTexture, side, err)
	}
	c.texture, c.texSide = id, side
	Logger().Info("ggatlas: atlas texture created", "side", side, "texture", id)
	return nil
}

// Close releases the atlas texture and the rasterizer. Destination
// textures are not touched.
func (c *Compositor) Close() {
	if c.closed {
		return
	}
	c.closed = true
	if c.texture.IsValid() {
		c.device.DestroyTexture(c.texture)
		c.texture = gpucore.InvalidID
	}
	c.raster.Close()
}
