// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package ggatlas

import "github.com/gogpu/ggatlas/gpucore"

// copyBack builds one region copy per placed surface, from its atlas
// rectangle to the top-left corner of its destination texture.
func (c *Compositor) copyBack(placed []placement) []gpucore.RegionCopy {
	copies := make([]gpucore.RegionCopy, 0, len(placed))
	for _, p := range placed {
		if !p.surface.Target.IsValid() {
			Logger().Debug("ggatlas: surface has no destination", "surface", p.surface.ID)
			continue
		}
		copies = append(copies, gpucore.RegionCopy{
			Src:    c.texture,
			Dst:    p.surface.Target,
			SrcX:   p.rect.X,
			SrcY:   p.rect.Y,
			Width:  p.rect.W,
			Height: p.rect.H,
		})
	}
	return copies
}
