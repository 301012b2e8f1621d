// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

//go:build !nogpu

// Package native implements gpucore.Device on top of gogpu/wgpu/hal.
//
// The device does not own the HAL device. It is shared with the host
// application through a gpucontext.DeviceProvider whose HalDevice and
// HalQueue methods return hal.Device and hal.Queue:
//
//	dev, err := native.FromProvider(provider)
//	if err != nil {
//		return err
//	}
//	defer dev.Close()
//
// Destination textures created by the host are made addressable with Import.
package native

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/gogpu/gg"
	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/ggatlas"
	"github.com/gogpu/ggatlas/backend"
	"github.com/gogpu/ggatlas/gpucore"
)

// DefaultMaxTextureSide matches the WebGPU default maxTextureDimension2D.
const DefaultMaxTextureSide = 8192

// copyPitchAlignment is the WebGPU bytesPerRow alignment for buffer copies.
const copyPitchAlignment = 256

var (
	// ErrNoHAL is returned when a provider does not expose HAL types.
	ErrNoHAL = errors.New("native: provider does not expose HAL device and queue")

	// ErrClosed is returned after Close.
	ErrClosed = errors.New("native: device closed")
)

type texture struct {
	raw      hal.Texture
	label    string
	width    int
	height   int
	format   gpucore.TextureFormat
	usage    gpucore.TextureUsage
	imported bool
}

// restUsage is the state a texture is left in between operations.
// Sampled textures rest as TextureBinding, everything else as CopyDst.
func (t *texture) restUsage() gputypes.TextureUsage {
	if t.usage.Has(gpucore.TextureUsageTextureBinding) {
		return gputypes.TextureUsageTextureBinding
	}
	return gputypes.TextureUsageCopyDst
}

// submission is the most recent region-copy batch still owned by the GPU.
type submission struct {
	cmd   hal.CommandBuffer
	index uint64
}

// Device adapts a hal.Device and hal.Queue to gpucore.Device.
//
// Thread Safety: Device is safe for concurrent use from multiple goroutines.
type Device struct {
	mu       sync.Mutex
	device   hal.Device
	queue    hal.Queue
	maxSide  int
	nextID   atomic.Uint64
	textures map[gpucore.TextureID]*texture
	inFlight *submission
	closed   bool
}

// Option configures a Device.
type Option func(*Device)

// WithMaxTextureSide sets the texture side limit, usually the adapter's
// MaxTextureDimension2D.
func WithMaxTextureSide(side int) Option {
	return func(d *Device) {
		if side > 0 {
			d.maxSide = side
		}
	}
}

// New wraps a HAL device and queue.
func New(device hal.Device, queue hal.Queue, opts ...Option) *Device {
	d := &Device{
		device:   device,
		queue:    queue,
		maxSide:  DefaultMaxTextureSide,
		textures: make(map[gpucore.TextureID]*texture),
	}
	for _, opt := range opts {
		opt(d)
	}
	// Start ID generation at 1 (0 is invalid)
	d.nextID.Store(1)
	return d
}

// FromProvider extracts the HAL device and queue from a provider that
// implements HalDevice() any and HalQueue() any.
func FromProvider(provider gpucontext.DeviceProvider, opts ...Option) (*Device, error) {
	type halProvider interface {
		HalDevice() any
		HalQueue() any
	}
	if provider == nil {
		return nil, ErrNoHAL
	}
	hp, ok := provider.(halProvider)
	if !ok {
		return nil, ErrNoHAL
	}
	device, ok := hp.HalDevice().(hal.Device)
	if !ok || device == nil {
		return nil, fmt.Errorf("%w: HalDevice is not hal.Device", ErrNoHAL)
	}
	queue, ok := hp.HalQueue().(hal.Queue)
	if !ok || queue == nil {
		return nil, fmt.Errorf("%w: HalQueue is not hal.Queue", ErrNoHAL)
	}
	return New(device, queue, opts...), nil
}

// Register makes provider available as backend.Native.
func Register(provider gpucontext.DeviceProvider, opts ...Option) {
	backend.Register(backend.Native, func() (gpucore.Device, error) {
		return FromProvider(provider, opts...)
	})
}

func (d *Device) newID() gpucore.TextureID {
	return gpucore.TextureID(d.nextID.Add(1) - 1)
}

// CreateTexture creates a single-mip 2D texture.
func (d *Device) CreateTexture(desc *gpucore.TextureDescriptor) (gpucore.TextureID, error) {
	if err := desc.Validate(); err != nil {
		return gpucore.InvalidID, err
	}
	if desc.Width > d.maxSide || desc.Height > d.maxSide {
		return gpucore.InvalidID, fmt.Errorf("%w: %dx%d > %d", gpucore.ErrTextureTooLarge, desc.Width, desc.Height, d.maxSide)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return gpucore.InvalidID, ErrClosed
	}

	raw, err := d.device.CreateTexture(&hal.TextureDescriptor{
		Label: desc.Label,
		Size: hal.Extent3D{
			Width:              uint32(desc.Width),
			Height:             uint32(desc.Height),
			DepthOrArrayLayers: 1,
		},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        textureFormat(desc.Format),
		Usage:         textureUsage(desc.Usage),
	})
	if err != nil {
		return gpucore.InvalidID, fmt.Errorf("create texture %q: %w", desc.Label, err)
	}

	id := d.newID()
	d.textures[id] = &texture{
		raw:    raw,
		label:  desc.Label,
		width:  desc.Width,
		height: desc.Height,
		format: desc.Format,
		usage:  desc.Usage,
	}
	ggatlas.Logger().Debug("native: texture created", "id", id, "label", desc.Label, "width", desc.Width, "height", desc.Height)
	return id, nil
}

// Import registers a texture owned by the caller, typically a per-surface
// destination. The device never destroys imported textures.
func (d *Device) Import(raw hal.Texture, width, height int, format gpucore.TextureFormat, usage gpucore.TextureUsage) (gpucore.TextureID, error) {
	if raw == nil {
		return gpucore.InvalidID, fmt.Errorf("%w: nil texture", gpucore.ErrUnknownTexture)
	}
	if width <= 0 || height <= 0 {
		return gpucore.InvalidID, fmt.Errorf("%w: %dx%d", gpucore.ErrInvalidDimensions, width, height)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return gpucore.InvalidID, ErrClosed
	}
	id := d.newID()
	d.textures[id] = &texture{
		raw:      raw,
		label:    "imported",
		width:    width,
		height:   height,
		format:   format,
		usage:    usage,
		imported: true,
	}
	return id, nil
}

// DestroyTexture releases a texture. Imported textures are only forgotten.
func (d *Device) DestroyTexture(id gpucore.TextureID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	tex, ok := d.textures[id]
	if !ok {
		return
	}
	delete(d.textures, id)
	if !tex.imported {
		// The texture may still be a copy source of the pending batch.
		if err := d.retireLocked(); err != nil {
			ggatlas.Logger().Warn("native: destroying texture with work in flight", "id", id, "err", err)
		}
		d.device.DestroyTexture(tex.raw)
	}
}

// TextureSize returns the dimensions of a texture.
func (d *Device) TextureSize(id gpucore.TextureID) (width, height int, ok bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	tex, ok := d.textures[id]
	if !ok {
		return 0, 0, false
	}
	return tex.width, tex.height, true
}

// WriteTexture uploads pm through queue.WriteTexture.
func (d *Device) WriteTexture(id gpucore.TextureID, x, y int, pm *gg.Pixmap) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return ErrClosed
	}

	tex, ok := d.textures[id]
	if !ok {
		return fmt.Errorf("%w: %d", gpucore.ErrUnknownTexture, id)
	}
	if !tex.usage.Has(gpucore.TextureUsageCopyDst) {
		return fmt.Errorf("%w: write to %q", gpucore.ErrUsage, tex.label)
	}
	w, h := pm.Width(), pm.Height()
	if x < 0 || y < 0 || x+w > tex.width || y+h > tex.height {
		return fmt.Errorf("%w: write %dx%d at (%d,%d) into %dx%d", gpucore.ErrCopyOutOfBounds, w, h, x, y, tex.width, tex.height)
	}

	data := pm.Data()
	if tex.format == gpucore.TextureFormatBGRA8Unorm {
		data = swapRedBlue(data)
	}
	// The previous batch may still read the region being overwritten.
	if err := d.retireLocked(); err != nil {
		return err
	}
	err := d.queue.WriteTexture(
		&hal.ImageCopyTexture{
			Texture:  tex.raw,
			MipLevel: 0,
			Origin:   hal.Origin3D{X: uint32(x), Y: uint32(y)},
			Aspect:   gputypes.TextureAspectAll,
		},
		data,
		&hal.ImageDataLayout{
			Offset:       0,
			BytesPerRow:  uint32(w * 4),
			RowsPerImage: uint32(h),
		},
		&hal.Extent3D{Width: uint32(w), Height: uint32(h), DepthOrArrayLayers: 1},
	)
	if err != nil {
		return fmt.Errorf("write texture %q: %w", tex.label, err)
	}
	return nil
}

// CopyTextureRegions records every copy into one command buffer and submits
// it. The submission is not waited on; it is retired before the next
// submission, readback, or destruction.
func (d *Device) CopyTextureRegions(copies []gpucore.RegionCopy) error {
	if len(copies) == 0 {
		return nil
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return ErrClosed
	}

	for _, c := range copies {
		if err := d.checkCopyLocked(c); err != nil {
			return err
		}
	}
	if err := d.retireLocked(); err != nil {
		return err
	}

	encoder, err := d.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{
		Label: "region_copy_encoder",
	})
	if err != nil {
		return fmt.Errorf("create command encoder: %w", err)
	}
	if err := encoder.BeginEncoding("region_copy"); err != nil {
		encoder.Destroy()
		return fmt.Errorf("begin encoding: %w", err)
	}

	before, after := d.copyBarriersLocked(copies)
	encoder.TransitionTextures(before)
	for _, c := range copies {
		src, dst := d.textures[c.Src], d.textures[c.Dst]
		encoder.CopyTextureToTexture(src.raw, dst.raw, []hal.TextureCopy{{
			SrcBase: hal.ImageCopyTexture{
				Texture: src.raw,
				Origin:  hal.Origin3D{X: uint32(c.SrcX), Y: uint32(c.SrcY)},
				Aspect:  gputypes.TextureAspectAll,
			},
			DstBase: hal.ImageCopyTexture{
				Texture: dst.raw,
				Origin:  hal.Origin3D{X: uint32(c.DstX), Y: uint32(c.DstY)},
				Aspect:  gputypes.TextureAspectAll,
			},
			Size: hal.Extent3D{Width: uint32(c.Width), Height: uint32(c.Height), DepthOrArrayLayers: 1},
		}})
	}
	encoder.TransitionTextures(after)

	cmd, err := encoder.EndEncoding()
	if err != nil {
		encoder.DiscardEncoding()
		return fmt.Errorf("end encoding: %w", err)
	}
	index, err := d.queue.Submit([]hal.CommandBuffer{cmd})
	if err != nil {
		d.device.FreeCommandBuffer(cmd)
		return fmt.Errorf("submit: %w", err)
	}
	d.inFlight = &submission{cmd: cmd, index: index}
	return nil
}

func (d *Device) checkCopyLocked(c gpucore.RegionCopy) error {
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
	if src.format != dst.format {
		return fmt.Errorf("native: copy %v: format %v to %v", c, src.format, dst.format)
	}
	if err := gpucore.CheckCopy(c, src.width, src.height, dst.width, dst.height); err != nil {
		return fmt.Errorf("%w: %v", err, c)
	}
	return nil
}

// copyBarriersLocked moves every source texture into CopySrc and every
// destination into CopyDst, and back to their resting usage afterwards.
func (d *Device) copyBarriersLocked(copies []gpucore.RegionCopy) (before, after []hal.TextureBarrier) {
	seen := make(map[gpucore.TextureID]bool, len(copies)+1)
	add := func(id gpucore.TextureID, use gputypes.TextureUsage) {
		tex := d.textures[id]
		rest := tex.restUsage()
		if seen[id] || rest == use {
			return
		}
		seen[id] = true
		raw := tex.raw
		before = append(before, hal.TextureBarrier{
			Texture: raw,
			Usage:   hal.TextureUsageTransition{OldUsage: rest, NewUsage: use},
		})
		after = append(after, hal.TextureBarrier{
			Texture: raw,
			Usage:   hal.TextureUsageTransition{OldUsage: use, NewUsage: rest},
		})
	}
	for _, c := range copies {
		add(c.Src, gputypes.TextureUsageCopySrc)
	}
	for _, c := range copies {
		add(c.Dst, gputypes.TextureUsageCopyDst)
	}
	return before, after
}

// retireLocked waits for the in-flight submission and frees it.
func (d *Device) retireLocked() error {
	s := d.inFlight
	if s == nil {
		return nil
	}
	d.inFlight = nil
	defer d.device.FreeCommandBuffer(s.cmd)

	if d.queue.PollCompleted() >= s.index {
		return nil
	}
	// The queue is FIFO, so idle means the batch is done.
	if err := d.device.WaitIdle(); err != nil {
		return fmt.Errorf("wait for GPU: %w", err)
	}
	return nil
}

// ReadTexture copies the texture into a staging buffer and waits for it.
func (d *Device) ReadTexture(id gpucore.TextureID) (*gg.Pixmap, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil, ErrClosed
	}

	tex, ok := d.textures[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", gpucore.ErrUnknownTexture, id)
	}
	if !tex.usage.Has(gpucore.TextureUsageCopySrc) {
		return nil, fmt.Errorf("%w: read from %q", gpucore.ErrUsage, tex.label)
	}
	if err := d.retireLocked(); err != nil {
		return nil, err
	}

	w, h := uint32(tex.width), uint32(tex.height)
	bytesPerRow := w * 4
	alignedBytesPerRow := (bytesPerRow + copyPitchAlignment - 1) &^ (copyPitchAlignment - 1)
	stagingSize := uint64(alignedBytesPerRow) * uint64(h)

	staging, err := d.device.CreateBuffer(&hal.BufferDescriptor{
		Label: "readback_staging",
		Size:  stagingSize,
		Usage: gputypes.BufferUsageMapRead | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("create staging buffer: %w", err)
	}
	defer d.device.DestroyBuffer(staging)

	encoder, err := d.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{
		Label: "readback_encoder",
	})
	if err != nil {
		return nil, fmt.Errorf("create command encoder: %w", err)
	}
	if err := encoder.BeginEncoding("readback"); err != nil {
		encoder.Destroy()
		return nil, fmt.Errorf("begin encoding: %w", err)
	}
	rest := tex.restUsage()
	encoder.TransitionTextures([]hal.TextureBarrier{{
		Texture: tex.raw,
		Usage:   hal.TextureUsageTransition{OldUsage: rest, NewUsage: gputypes.TextureUsageCopySrc},
	}})
	encoder.CopyTextureToBuffer(tex.raw, staging, []hal.BufferTextureCopy{{
		BufferLayout: hal.ImageDataLayout{Offset: 0, BytesPerRow: alignedBytesPerRow, RowsPerImage: h},
		TextureBase:  hal.ImageCopyTexture{Texture: tex.raw, MipLevel: 0, Aspect: gputypes.TextureAspectAll},
		Size:         hal.Extent3D{Width: w, Height: h, DepthOrArrayLayers: 1},
	}})
	encoder.TransitionTextures([]hal.TextureBarrier{{
		Texture: tex.raw,
		Usage:   hal.TextureUsageTransition{OldUsage: gputypes.TextureUsageCopySrc, NewUsage: rest},
	}})
	cmd, err := encoder.EndEncoding()
	if err != nil {
		encoder.DiscardEncoding()
		return nil, fmt.Errorf("end encoding: %w", err)
	}
	defer d.device.FreeCommandBuffer(cmd)

	if _, err := d.queue.Submit([]hal.CommandBuffer{cmd}); err != nil {
		return nil, fmt.Errorf("submit: %w", err)
	}
	if err := d.device.WaitIdle(); err != nil {
		return nil, fmt.Errorf("wait for GPU: %w", err)
	}

	mapping, err := d.device.MapBuffer(staging, 0, stagingSize)
	if err != nil {
		return nil, fmt.Errorf("map staging: %w", err)
	}
	readback := make([]byte, stagingSize)
	copy(readback, unsafe.Slice((*byte)(mapping.Ptr), stagingSize))
	if err := d.device.UnmapBuffer(staging); err != nil {
		ggatlas.Logger().Warn("native: unmap failed", "err", err)
	}

	pm := gg.NewPixmap(tex.width, tex.height)
	unpackRows(pm.Data(), readback, int(bytesPerRow), int(alignedBytesPerRow), tex.height)
	if tex.format == gpucore.TextureFormatBGRA8Unorm {
		swapRedBlueInPlace(pm.Data())
	}
	return pm, nil
}

// Close waits for outstanding work and destroys every texture the device
// created. The HAL device itself belongs to the provider.
func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	d.closed = true

	err := d.retireLocked()
	for id, tex := range d.textures {
		if !tex.imported {
			d.device.DestroyTexture(tex.raw)
		}
		delete(d.textures, id)
	}
	return err
}

// textureFormat converts a gpucore format to its gputypes counterpart.
func textureFormat(f gpucore.TextureFormat) gputypes.TextureFormat {
	switch f {
	case gpucore.TextureFormatBGRA8Unorm:
		return gputypes.TextureFormatBGRA8Unorm
	default:
		return gputypes.TextureFormatRGBA8Unorm
	}
}

func textureUsage(u gpucore.TextureUsage) gputypes.TextureUsage {
	var out gputypes.TextureUsage
	if u.Has(gpucore.TextureUsageCopySrc) {
		out |= gputypes.TextureUsageCopySrc
	}
	if u.Has(gpucore.TextureUsageCopyDst) {
		out |= gputypes.TextureUsageCopyDst
	}
	if u.Has(gpucore.TextureUsageTextureBinding) {
		out |= gputypes.TextureUsageTextureBinding
	}
	if u.Has(gpucore.TextureUsageStorageBinding) {
		out |= gputypes.TextureUsageStorageBinding
	}
	if u.Has(gpucore.TextureUsageRenderAttachment) {
		out |= gputypes.TextureUsageRenderAttachment
	}
	return out
}

// unpackRows strips per-row padding from an aligned readback.
func unpackRows(dst, src []byte, rowBytes, pitch, rows int) {
	if rowBytes == pitch {
		copy(dst, src[:rowBytes*rows])
		return
	}
	for row := 0; row < rows; row++ {
		copy(dst[row*rowBytes:(row+1)*rowBytes], src[row*pitch:row*pitch+rowBytes])
	}
}

func swapRedBlue(data []byte) []byte {
	out := make([]byte, len(data))
	copy(out, data)
	swapRedBlueInPlace(out)
	return out
}

func swapRedBlueInPlace(data []byte) {
	for i := 0; i+3 < len(data); i += 4 {
		data[i], data[i+2] = data[i+2], data[i]
	}
}
