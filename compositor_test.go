// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package ggatlas_test

import (
	"context"
	"testing"

	"github.com/gogpu/gg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gogpu/ggatlas"
	"github.com/gogpu/ggatlas/backend/software"
	"github.com/gogpu/ggatlas/gpucore"
)

const colorTolerance = 0.02

func assertColor(t *testing.T, want, got gg.RGBA, msgAndArgs ...any) {
	t.Helper()
	assert.InDelta(t, want.R, got.R, colorTolerance, msgAndArgs...)
	assert.InDelta(t, want.G, got.G, colorTolerance, msgAndArgs...)
	assert.InDelta(t, want.B, got.B, colorTolerance, msgAndArgs...)
	assert.InDelta(t, want.A, got.A, colorTolerance, msgAndArgs...)
}

func newDestination(t *testing.T, dev *software.Device, w, h int) gpucore.TextureID {
	t.Helper()
	id, err := dev.CreateTexture(&gpucore.TextureDescriptor{
		Label:  "destination",
		Width:  w,
		Height: h,
		Format: gpucore.TextureFormatRGBA8Unorm,
		Usage:  gpucore.TextureUsageCopyDst | gpucore.TextureUsageCopySrc | gpucore.TextureUsageTextureBinding,
	})
	require.NoError(t, err)
	return id
}

// quadrantFragment paints each quadrant a different color: red top-left,
// blue top-right, green bottom-left and yellow bottom-right.
func quadrantFragment(w, h float32) *ggatlas.Fragment {
	hw, hh := w/2, h/2
	return ggatlas.NewFragmentBuilder().
		FillRect(0, 0, hw, hh, gg.Red).
		FillRect(hw, 0, hw, hh, gg.Blue).
		FillRect(0, hh, hw, hh, gg.Green).
		FillRect(hw, hh, hw, hh, gg.Yellow).
		Build()
}

// runFrame attaches nothing; it plans, executes and resets like one host frame.
func runFrame(t *testing.T, c *ggatlas.Compositor, surfaces []ggatlas.Surface) {
	t.Helper()
	require.NoError(t, c.Plan(surfaces))
	require.NoError(t, c.Execute(context.Background(), surfaces))
	c.Gate().Reset()
}

func TestCompositorRoundTrip(t *testing.T) {
	for _, flip := range []bool{false, true} {
		name := "top-left"
		if flip {
			name = "bottom-left"
		}
		t.Run(name, func(t *testing.T) {
			dev := software.New()
			c, err := ggatlas.NewCompositor(dev, ggatlas.WithFlipY(flip), ggatlas.WithWorkers(1))
			require.NoError(t, err)
			defer c.Close()

			reg := ggatlas.NewRegistry()
			// A taller neighbour so the tested surface is not at the atlas origin.
			other := reg.Attach(newDestination(t, dev, 20, 40))
			require.NoError(t, reg.Publish(other, ggatlas.NewFragmentBuilder().FillRect(0, 0, 20, 40, gg.White).Build()))
			id := reg.Attach(newDestination(t, dev, 32, 16))
			require.NoError(t, reg.Publish(id, quadrantFragment(32, 16)))
			reg.SyncSizes(dev)

			runFrame(t, c, reg.Surfaces())
			r := c.Atlas().Get(id)
			assert.NotEqual(t, ggatlas.Rect{W: 32, H: 16}, r)

			s, _ := reg.Get(id)
			out, err := dev.ReadTexture(s.Target)
			require.NoError(t, err)

			topLeft, topRight := gg.Red, gg.Blue
			bottomLeft, bottomRight := gg.Green, gg.Yellow
			if flip {
				topLeft, bottomLeft = bottomLeft, topLeft
				topRight, bottomRight = bottomRight, topRight
			}
			for _, y := range []int{1, 6} {
				assertColor(t, topLeft, out.GetPixel(2, y), "top-left y=%d", y)
				assertColor(t, topRight, out.GetPixel(29, y), "top-right y=%d", y)
			}
			for _, y := range []int{9, 14} {
				assertColor(t, bottomLeft, out.GetPixel(2, y), "bottom-left y=%d", y)
				assertColor(t, bottomRight, out.GetPixel(29, y), "bottom-right y=%d", y)
			}

			o, _ := reg.Get(other)
			out, err = dev.ReadTexture(o.Target)
			require.NoError(t, err)
			assertColor(t, gg.White, out.GetPixel(10, 20))
		})
	}
}

func TestCompositorClearsBetweenFrames(t *testing.T) {
	dev := software.New()
	c, err := ggatlas.NewCompositor(dev)
	require.NoError(t, err)
	defer c.Close()

	target := newDestination(t, dev, 16, 16)
	s := ggatlas.Surface{ID: ggatlas.NewRegistry().Attach(target), Width: 16, Height: 16, Target: target}

	s.Fragment = ggatlas.NewFragmentBuilder().FillRect(0, 0, 16, 16, gg.Red).Build()
	runFrame(t, c, []ggatlas.Surface{s})

	// Second frame draws only the left half; the right half must not keep
	// the previous frame's pixels.
	s.Fragment = ggatlas.NewFragmentBuilder().FillRect(0, 0, 8, 16, gg.Blue).Build()
	runFrame(t, c, []ggatlas.Surface{s})

	out, err := dev.ReadTexture(target)
	require.NoError(t, err)
	assertColor(t, gg.Blue, out.GetPixel(2, 8))
	assertColor(t, gg.Transparent, out.GetPixel(13, 8))
}

func TestCompositorSingleSubmissionPerFrame(t *testing.T) {
	dev := software.New()
	c, err := ggatlas.NewCompositor(dev)
	require.NoError(t, err)
	defer c.Close()

	reg := ggatlas.NewRegistry()
	for i := range 5 {
		id := reg.Attach(newDestination(t, dev, 10+i, 20))
		require.NoError(t, reg.Publish(id, quadrantFragment(float32(10+i), 20)))
	}
	reg.SyncSizes(dev)
	surfaces := reg.Surfaces()

	require.NoError(t, c.Plan(surfaces))
	for range 2 { // 2D and 3D paths
		require.NoError(t, c.Execute(context.Background(), surfaces))
	}

	stats := dev.Stats()
	assert.Equal(t, uint64(1), stats.Submissions)
	assert.Equal(t, uint64(5), stats.RegionCopies)
	assert.Equal(t, uint64(1), stats.Writes)
	assert.Equal(t, uint64(1), c.Stats().Frames)
	assert.Equal(t, uint64(1), c.Stats().Gated)
}

func TestCompositorAtlasTooLarge(t *testing.T) {
	dev := software.New()
	c, err := ggatlas.NewCompositor(dev, ggatlas.WithMaxSide(128))
	require.NoError(t, err)
	defer c.Close()

	target := newDestination(t, dev, 200, 10)
	s := ggatlas.Surface{ID: ggatlas.NewRegistry().Attach(target), Width: 200, Height: 10, Target: target}
	assert.ErrorIs(t, c.Plan([]ggatlas.Surface{s}), ggatlas.ErrAtlasTooLarge)
}

func TestCompositorDeviceTextureLimit(t *testing.T) {
	dev := software.New(software.WithMaxTextureSide(64))
	c, err := ggatlas.NewCompositor(dev)
	require.NoError(t, err)
	defer c.Close()

	target := newDestination(t, dev, 60, 60)
	s := ggatlas.Surface{ID: ggatlas.NewRegistry().Attach(target), Width: 60, Height: 60, Target: target}
	s.Fragment = quadrantFragment(60, 60)

	require.NoError(t, c.Plan([]ggatlas.Surface{s}))
	err = c.Execute(context.Background(), []ggatlas.Surface{s})
	assert.ErrorIs(t, err, ggatlas.ErrTexture)
	assert.ErrorIs(t, err, gpucore.ErrTextureTooLarge)
	assert.Zero(t, dev.Stats().Submissions)
}

func TestCompositorCloseReleasesAtlasTexture(t *testing.T) {
	dev := software.New()
	c, err := ggatlas.NewCompositor(dev)
	require.NoError(t, err)

	target := newDestination(t, dev, 8, 8)
	s := ggatlas.Surface{ID: ggatlas.NewRegistry().Attach(target), Width: 8, Height: 8, Target: target}
	runFrame(t, c, []ggatlas.Surface{s})
	assert.Equal(t, 2, dev.Len())

	c.Close()
	assert.Equal(t, 1, dev.Len(), "destination textures must survive Close")
	assert.ErrorIs(t, c.Execute(context.Background(), nil), ggatlas.ErrClosed)
}
