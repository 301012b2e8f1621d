// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package ggatlas

import (
	"cmp"
	"fmt"
	"maps"
	"math"
	"math/bits"
	"slices"
)

// RequiredSize returns the atlas side needed for the given surfaces.
//
// The total area is square-rooted, rounded up to a power of two, and
// doubled once more when less than half of the square would stay free.
// The result depends only on the set of sizes, not on their order.
// An empty set needs no atlas and returns 0.
func RequiredSize(surfaces []Surface) int {
	var total int64
	for _, s := range surfaces {
		total += int64(s.Area())
	}
	if total == 0 {
		return 0
	}
	side := nextPowerOfTwo(int(math.Ceil(math.Sqrt(float64(total)))))
	if int64(side)*int64(side) < total*2 {
		side *= 2
	}
	return side
}

func nextPowerOfTwo(n int) int {
	if n <= 1 {
		return 1
	}
	return 1 << bits.Len(uint(n-1))
}

// Atlas assigns every surface a non-overlapping rectangle inside one
// square of side Side().
//
// Atlas is not safe for concurrent use; the Compositor owns it.
type Atlas struct {
	cfg        Config
	side       int
	packer     *shelfPacker
	allocs     map[SurfaceID]Rect
	generation uint64
	grows      uint64
	dead       int // area of dropped allocations still held by the packer
}

// NewAtlas creates an atlas with no backing square yet. The first
// UpdateSize or AllocateAll call sizes it.
func NewAtlas(cfg Config) *Atlas {
	return &Atlas{
		cfg:    cfg,
		packer: newShelfPacker(0, cfg.Padding),
		allocs: make(map[SurfaceID]Rect),
	}
}

// Side returns the current side length, or 0 before the first sizing.
func (a *Atlas) Side() int { return a.side }

// Len returns the number of allocated surfaces.
func (a *Atlas) Len() int { return len(a.allocs) }

// Generation counts rebuilds. Allocations from an older generation are gone.
func (a *Atlas) Generation() uint64 { return a.generation }

// Grows counts rebuilds caused by a surface not fitting.
func (a *Atlas) Grows() uint64 { return a.grows }

// Utilization returns the fraction of the atlas covered by live allocations.
func (a *Atlas) Utilization() float64 {
	if a.side <= 0 {
		return 0
	}
	return a.packer.utilization() - float64(a.dead)/float64(a.side*a.side)
}

// Rebuild discards the packing and all allocations and starts over with
// the given side.
func (a *Atlas) Rebuild(side int) {
	a.side = side
	a.packer.reset(side)
	clear(a.allocs)
	a.dead = 0
	a.generation++
}

// UpdateSize resizes the atlas when the surface set no longer fits its
// hysteresis band and reports whether it did.
//
// With R the required side, the atlas is kept while R² lies within
// [S²/4, S²]: it grows as soon as the requirement exceeds it and shrinks
// only once the requirement drops below a quarter of its area.
func (a *Atlas) UpdateSize(surfaces []Surface) bool {
	required := RequiredSize(surfaces)
	if required == 0 {
		return false
	}
	required = min(max(required, a.cfg.MinSide), a.cfg.MaxSide)

	if a.side > 0 {
		cur := int64(a.side) * int64(a.side)
		req := int64(required) * int64(required)
		if req >= cur/4 && req <= cur {
			return false
		}
	}

	Logger().Debug("ggatlas: atlas rebuilt", "from", a.side, "to", required, "surfaces", len(surfaces))
	a.Rebuild(required)
	return true
}

// AllocateAll gives every surface with a positive area a rectangle.
//
// Allocations of surfaces that are gone or whose size changed are
// dropped. Surfaces without an allocation are then placed tallest
// first. When one does not fit and dropped allocations still hold
// space, the whole set is repacked at the same side. Otherwise the side
// is doubled, everything is cleared and the whole set is placed again. The only error is
// ErrAtlasTooLarge, when that would exceed Config.MaxSide.
func (a *Atlas) AllocateAll(surfaces []Surface) error {
	order := packingOrder(surfaces)
	if len(order) == 0 {
		clear(a.allocs)
		return nil
	}
	for _, s := range order {
		if s.Width > a.cfg.MaxSide || s.Height > a.cfg.MaxSide {
			return fmt.Errorf("%w: surface %s is %dx%d, max side %d",
				ErrAtlasTooLarge, s.ID, s.Width, s.Height, a.cfg.MaxSide)
		}
	}
	if a.side == 0 {
		a.Rebuild(min(max(RequiredSize(order), a.cfg.MinSide), a.cfg.MaxSide))
	}

	a.forgetStale(order)
	for !a.placeMissing(order) {
		if a.dead > 0 {
			Logger().Debug("ggatlas: atlas fragmented, repacking", "side", a.side, "dead", a.dead)
			a.Rebuild(a.side)
			continue
		}
		next := a.side * 2
		if next > a.cfg.MaxSide {
			return fmt.Errorf("%w: %d surfaces need more than %d px",
				ErrAtlasTooLarge, len(order), a.cfg.MaxSide)
		}
		Logger().Debug("ggatlas: atlas full, growing", "from", a.side, "to", next)
		a.Rebuild(next)
		a.grows++
	}
	return nil
}

// packingOrder filters out empty surfaces and sorts the rest tallest
// first, then widest, then by ID.
func packingOrder(surfaces []Surface) []Surface {
	order := make([]Surface, 0, len(surfaces))
	for _, s := range surfaces {
		if s.Area() > 0 {
			order = append(order, s)
		}
	}
	slices.SortFunc(order, func(x, y Surface) int {
		return cmp.Or(
			cmp.Compare(y.Height, x.Height),
			cmp.Compare(y.Width, x.Width),
			compareSurfaceIDs(x.ID, y.ID),
		)
	})
	return order
}

func (a *Atlas) forgetStale(live []Surface) {
	sizes := make(map[SurfaceID][2]int, len(live))
	for _, s := range live {
		sizes[s.ID] = [2]int{s.Width, s.Height}
	}
	for id, r := range a.allocs {
		if sz, ok := sizes[id]; !ok || sz != [2]int{r.W, r.H} {
			delete(a.allocs, id)
			a.dead += r.W * r.H
		}
	}
}

// placeMissing allocates every surface that has no rectangle yet and
// reports false on the first one that does not fit.
func (a *Atlas) placeMissing(order []Surface) bool {
	for _, s := range order {
		if _, ok := a.allocs[s.ID]; ok {
			continue
		}
		r, ok := a.packer.allocate(s.Width, s.Height)
		if !ok {
			return false
		}
		a.allocs[s.ID] = r
	}
	return true
}

// Lookup returns the rectangle of a surface if it has one.
func (a *Atlas) Lookup(id SurfaceID) (Rect, bool) {
	r, ok := a.allocs[id]
	return r, ok
}

// Get returns the rectangle of a surface that AllocateAll has placed.
// A miss means the caller and the allocator disagree about the live
// surface set, and Get panics.
func (a *Atlas) Get(id SurfaceID) Rect {
	r, ok := a.allocs[id]
	if !ok {
		panic(fmt.Sprintf("ggatlas: no allocation for live surface %s", id))
	}
	return r
}

// Allocations returns a copy of the allocation map.
func (a *Atlas) Allocations() map[SurfaceID]Rect {
	return maps.Clone(a.allocs)
}
