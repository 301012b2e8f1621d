// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package ggatlas

import (
	"context"
	"fmt"

	"github.com/gogpu/gg"
	"github.com/gogpu/gg/scene"
)

// Rasterizer turns the aggregate scene into premultiplied RGBA pixels.
//
// The returned pixmap is width x height and may be reused by the next
// call; the caller must upload it before rasterizing again.
type Rasterizer interface {
	Rasterize(ctx context.Context, s *scene.Scene, width, height int) (*gg.Pixmap, error)
	Close()
}

// SceneRasterizer rasterizes with the tile-parallel scene.Renderer.
type SceneRasterizer struct {
	workers  int
	renderer *scene.Renderer
	target   *gg.Pixmap
}

// NewSceneRasterizer creates a rasterizer using the given number of
// workers. 0 uses GOMAXPROCS.
func NewSceneRasterizer(workers int) *SceneRasterizer {
	return &SceneRasterizer{workers: workers}
}

// Rasterize renders s into a cleared pixmap of the given size.
func (r *SceneRasterizer) Rasterize(ctx context.Context, s *scene.Scene, width, height int) (*gg.Pixmap, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid raster size %dx%d", width, height)
	}

	if r.renderer == nil {
		var opts []scene.RendererOption
		if r.workers > 0 {
			opts = append(opts, scene.WithWorkers(r.workers))
		}
		r.renderer = scene.NewRenderer(width, height, opts...)
		if r.renderer == nil {
			return nil, fmt.Errorf("create scene renderer %dx%d", width, height)
		}
	} else {
		r.renderer.Resize(width, height)
	}

	if r.target == nil || r.target.Width() != width || r.target.Height() != height {
		r.target = gg.NewPixmap(width, height)
	} else {
		// The renderer blends over the target.
		r.target.Clear(gg.Transparent)
	}

	if err := r.renderer.RenderWithContext(ctx, r.target, s); err != nil {
		return nil, err
	}
	return r.target, nil
}

// Close releases the renderer's worker pool.
func (r *SceneRasterizer) Close() {
	if r.renderer != nil {
		r.renderer.Close()
		r.renderer = nil
	}
	r.target = nil
}
