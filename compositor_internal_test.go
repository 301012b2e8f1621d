// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package ggatlas

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/gogpu/gg"
	"github.com/gogpu/gg/scene"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gogpu/ggatlas/gpucore"
)

// fakeDevice records device calls without storing pixels.
type fakeDevice struct {
	sizes     map[gpucore.TextureID][2]int
	next      gpucore.TextureID
	calls     int
	creates   int
	destroys  int
	writes    int
	copies    [][]gpucore.RegionCopy
	createErr error
}

func newFakeDevice() *fakeDevice {
	return &fakeDevice{sizes: make(map[gpucore.TextureID][2]int), next: 1}
}

func (d *fakeDevice) target(w, h int) gpucore.TextureID {
	id := d.next
	d.next++
	d.sizes[id] = [2]int{w, h}
	return id
}

func (d *fakeDevice) CreateTexture(desc *gpucore.TextureDescriptor) (gpucore.TextureID, error) {
	d.calls++
	if d.createErr != nil {
		return gpucore.InvalidID, d.createErr
	}
	d.creates++
	return d.target(desc.Width, desc.Height), nil
}

func (d *fakeDevice) DestroyTexture(id gpucore.TextureID) {
	d.calls++
	d.destroys++
	delete(d.sizes, id)
}

func (d *fakeDevice) TextureSize(id gpucore.TextureID) (int, int, bool) {
	sz, ok := d.sizes[id]
	return sz[0], sz[1], ok
}

func (d *fakeDevice) WriteTexture(gpucore.TextureID, int, int, *gg.Pixmap) error {
	d.calls++
	d.writes++
	return nil
}

func (d *fakeDevice) CopyTextureRegions(copies []gpucore.RegionCopy) error {
	d.calls++
	d.copies = append(d.copies, append([]gpucore.RegionCopy(nil), copies...))
	return nil
}

func (d *fakeDevice) ReadTexture(gpucore.TextureID) (*gg.Pixmap, error) {
	return nil, errors.New("fake device cannot read")
}

type failingRasterizer struct{}

func (failingRasterizer) Rasterize(context.Context, *scene.Scene, int, int) (*gg.Pixmap, error) {
	return nil, errors.New("out of tiles")
}

func (failingRasterizer) Close() {}

func newTestCompositor(t *testing.T, dev gpucore.Device, opts ...Option) *Compositor {
	t.Helper()
	opts = append([]Option{WithRasterizer(&stubRasterizer{})}, opts...)
	c, err := NewCompositor(dev, opts...)
	require.NoError(t, err)
	t.Cleanup(c.Close)
	return c
}

func TestPlanMakesNoDeviceCalls(t *testing.T) {
	dev := newFakeDevice()
	c := newTestCompositor(t, dev)

	s := testSurface(100, 100)
	s.Target = dev.target(100, 100)
	require.NoError(t, c.Plan([]Surface{s}))

	assert.Zero(t, dev.calls)
	assert.Equal(t, 256, c.Atlas().Side())
	assert.False(t, c.Texture().IsValid())
}

func TestExecuteGatedWithinFrame(t *testing.T) {
	dev := newFakeDevice()
	c := newTestCompositor(t, dev)

	s := testSurface(32, 16)
	s.Target = dev.target(32, 16)
	surfaces := []Surface{s}

	require.NoError(t, c.Plan(surfaces))
	for range 3 {
		require.NoError(t, c.Execute(context.Background(), surfaces))
	}
	assert.Len(t, dev.copies, 1)
	assert.Equal(t, uint64(1), c.Stats().Frames)
	assert.Equal(t, uint64(2), c.Stats().Gated)

	// Plan is a no-op once the frame is rendered.
	require.NoError(t, c.Plan([]Surface{s, testSurface(8, 8)}))
	assert.Equal(t, 1, c.Atlas().Len())

	c.Gate().Reset()
	require.NoError(t, c.Plan(surfaces))
	require.NoError(t, c.Execute(context.Background(), surfaces))
	assert.Len(t, dev.copies, 2)
}

func TestExecuteCopyRegions(t *testing.T) {
	dev := newFakeDevice()
	c := newTestCompositor(t, dev)

	a, b := testSurface(100, 100), testSurface(50, 200)
	a.Target, b.Target = dev.target(100, 100), dev.target(50, 200)
	surfaces := []Surface{a, b}

	require.NoError(t, c.Plan(surfaces))
	require.NoError(t, c.Execute(context.Background(), surfaces))

	require.Len(t, dev.copies, 1)
	for _, cp := range dev.copies[0] {
		assert.Equal(t, c.Texture(), cp.Src)
		assert.Zero(t, cp.DstX)
		assert.Zero(t, cp.DstY)
		switch cp.Dst {
		case a.Target:
			r := c.Atlas().Get(a.ID)
			assert.Equal(t, [4]int{r.X, r.Y, 100, 100}, [4]int{cp.SrcX, cp.SrcY, cp.Width, cp.Height})
		case b.Target:
			r := c.Atlas().Get(b.ID)
			assert.Equal(t, [4]int{r.X, r.Y, 50, 200}, [4]int{cp.SrcX, cp.SrcY, cp.Width, cp.Height})
		default:
			t.Fatalf("unexpected destination %d", cp.Dst)
		}
	}
	assert.Equal(t, uint64(2), c.Stats().Copies)
}

func TestExecuteRasterFailure(t *testing.T) {
	dev := newFakeDevice()
	c := newTestCompositor(t, dev, WithRasterizer(failingRasterizer{}))

	s := testSurface(16, 16)
	s.Target = dev.target(16, 16)
	require.NoError(t, c.Plan([]Surface{s}))

	err := c.Execute(context.Background(), []Surface{s})
	assert.ErrorIs(t, err, ErrRasterize)
	assert.Empty(t, dev.copies)
	assert.Zero(t, dev.writes)
	assert.Equal(t, uint64(1), c.Stats().Failures)

	// No retry within the frame.
	assert.NoError(t, c.Execute(context.Background(), []Surface{s}))
	assert.Equal(t, uint64(1), c.Stats().Failures)
}

func TestExecuteTextureFailure(t *testing.T) {
	dev := newFakeDevice()
	dev.createErr = gpucore.ErrTextureTooLarge
	c := newTestCompositor(t, dev)

	s := testSurface(16, 16)
	s.Target = dev.target(16, 16)
	require.NoError(t, c.Plan([]Surface{s}))

	err := c.Execute(context.Background(), []Surface{s})
	assert.ErrorIs(t, err, ErrTexture)
	assert.ErrorIs(t, err, gpucore.ErrTextureTooLarge)
	assert.Empty(t, dev.copies)
}

func TestExecuteSkipsUnplannedSurface(t *testing.T) {
	dev := newFakeDevice()
	c := newTestCompositor(t, dev)

	a, late := testSurface(16, 16), testSurface(16, 16)
	a.Target, late.Target = dev.target(16, 16), dev.target(16, 16)

	require.NoError(t, c.Plan([]Surface{a}))
	require.NoError(t, c.Execute(context.Background(), []Surface{a, late}))
	require.Len(t, dev.copies, 1)
	require.Len(t, dev.copies[0], 1)
	assert.Equal(t, a.Target, dev.copies[0][0].Dst)

	c.Gate().Reset()
	require.NoError(t, c.Plan([]Surface{a, late}))
	require.NoError(t, c.Execute(context.Background(), []Surface{a, late}))
	assert.Len(t, dev.copies[1], 2)
}

func TestExecutePanicsOnLostAllocation(t *testing.T) {
	dev := newFakeDevice()
	c := newTestCompositor(t, dev)

	s := testSurface(16, 16)
	s.Target = dev.target(16, 16)
	surfaces := []Surface{s}

	require.NoError(t, c.Plan(surfaces))
	c.Atlas().Rebuild(c.Atlas().Side())

	assert.PanicsWithValue(t, fmt.Sprintf("ggatlas: no allocation for live surface %s", s.ID), func() {
		_ = c.Execute(context.Background(), surfaces)
	})
	assert.Empty(t, dev.copies)
}

func TestExecuteWithoutSurfaces(t *testing.T) {
	dev := newFakeDevice()
	c := newTestCompositor(t, dev)

	require.NoError(t, c.Plan(nil))
	require.NoError(t, c.Execute(context.Background(), nil))
	assert.Zero(t, dev.calls)
	assert.Equal(t, uint64(1), c.Stats().Frames)
}

func TestExecuteRecreatesTextureOnResize(t *testing.T) {
	dev := newFakeDevice()
	c := newTestCompositor(t, dev)

	s := testSurface(16, 16)
	s.Target = dev.target(16, 16)
	require.NoError(t, c.Plan([]Surface{s}))
	require.NoError(t, c.Execute(context.Background(), []Surface{s}))
	first := c.Texture()

	// Same side: texture is reused.
	c.Gate().Reset()
	require.NoError(t, c.Plan([]Surface{s}))
	require.NoError(t, c.Execute(context.Background(), []Surface{s}))
	assert.Equal(t, first, c.Texture())

	big := testSurface(300, 300)
	big.Target = dev.target(300, 300)
	c.Gate().Reset()
	require.NoError(t, c.Plan([]Surface{s, big}))
	require.NoError(t, c.Execute(context.Background(), []Surface{s, big}))

	assert.NotEqual(t, first, c.Texture())
	assert.Equal(t, 2, dev.creates)
	assert.Equal(t, 1, dev.destroys)
	w, h, ok := dev.TextureSize(c.Texture())
	require.True(t, ok)
	assert.Equal(t, c.Atlas().Side(), w)
	assert.Equal(t, c.Atlas().Side(), h)
}

func TestExecuteSkipsInvalidTarget(t *testing.T) {
	dev := newFakeDevice()
	c := newTestCompositor(t, dev)

	s := testSurface(8, 8) // no target
	require.NoError(t, c.Plan([]Surface{s}))
	require.NoError(t, c.Execute(context.Background(), []Surface{s}))
	assert.Equal(t, 1, dev.writes)
	assert.Empty(t, dev.copies)
}

func TestRasterBounds(t *testing.T) {
	w, h := rasterBounds([]placement{
		{rect: Rect{X: 0, Y: 0, W: 100, H: 100}},
		{rect: Rect{X: 100, Y: 0, W: 50, H: 200}},
	})
	assert.Equal(t, 150, w)
	assert.Equal(t, 200, h)
}

func TestPlaceTransform(t *testing.T) {
	r := Rect{X: 10, Y: 20, W: 32, H: 16}

	c := &Compositor{}
	x, y := c.placeTransform(r).TransformPoint(0, 0)
	assert.Equal(t, [2]float32{10, 20}, [2]float32{x, y})

	c.cfg.FlipY = true
	x, y = c.placeTransform(r).TransformPoint(0, 0)
	assert.Equal(t, [2]float32{10, 36}, [2]float32{x, y})
	x, y = c.placeTransform(r).TransformPoint(32, 16)
	assert.Equal(t, [2]float32{42, 20}, [2]float32{x, y})
}
