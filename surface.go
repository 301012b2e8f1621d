// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package ggatlas

import (
	"bytes"
	"fmt"
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/gogpu/ggatlas/gpucore"
)

// SurfaceID identifies a surface for its whole lifetime. IDs are UUIDv7,
// so sorting them follows attach order.
type SurfaceID = uuid.UUID

// Surface is a per-frame snapshot of one independently animated drawable.
// Width and Height mirror the destination texture size.
type Surface struct {
	ID       SurfaceID
	Width    int
	Height   int
	Fragment *Fragment
	Target   gpucore.TextureID
}

// Area returns Width*Height, or 0 for degenerate sizes.
func (s Surface) Area() int {
	if s.Width <= 0 || s.Height <= 0 {
		return 0
	}
	return s.Width * s.Height
}

func compareSurfaceIDs(a, b SurfaceID) int {
	return bytes.Compare(a[:], b[:])
}

// Registry tracks the live surface set. Producers attach surfaces and
// publish a new fragment for each frame; the compositor only reads
// snapshots.
//
// Registry is safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	surfaces map[SurfaceID]*Surface
	warned   map[SurfaceID]bool // missing target already logged
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		surfaces: make(map[SurfaceID]*Surface),
		warned:   make(map[SurfaceID]bool),
	}
}

// Attach registers a surface drawing into target. The size is taken
// from the target on the next SyncSizes, or set explicitly with Resize.
func (r *Registry) Attach(target gpucore.TextureID) SurfaceID {
	id := uuid.Must(uuid.NewV7())
	r.mu.Lock()
	r.surfaces[id] = &Surface{ID: id, Target: target}
	r.mu.Unlock()
	return id
}

// Detach removes a surface. Detaching an unknown id is a no-op.
func (r *Registry) Detach(id SurfaceID) {
	r.mu.Lock()
	delete(r.surfaces, id)
	delete(r.warned, id)
	r.mu.Unlock()
}

// Publish replaces the fragment of a surface. The fragment must not be
// modified afterwards.
func (r *Registry) Publish(id SurfaceID, f *Fragment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.surfaces[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownSurface, id)
	}
	s.Fragment = f
	return nil
}

// Resize sets the declared size of a surface.
func (r *Registry) Resize(id SurfaceID, width, height int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.surfaces[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownSurface, id)
	}
	s.Width, s.Height = width, height
	return nil
}

// SyncSizes copies each destination texture size into its surface.
// A surface whose target the device does not know gets a zero size and
// is left out of packing; this is logged once until the target resolves.
func (r *Registry) SyncSizes(dev gpucore.Device) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, s := range r.surfaces {
		w, h, ok := dev.TextureSize(s.Target)
		if !ok {
			s.Width, s.Height = 0, 0
			if !r.warned[id] {
				r.warned[id] = true
				Logger().Warn("ggatlas: destination texture not found", "surface", id, "texture", s.Target)
			}
			continue
		}
		delete(r.warned, id)
		s.Width, s.Height = w, h
	}
}

// Get returns a snapshot of one surface.
func (r *Registry) Get(id SurfaceID) (Surface, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.surfaces[id]
	if !ok {
		return Surface{}, false
	}
	return *s, true
}

// Len returns the number of attached surfaces.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.surfaces)
}

// Surfaces returns snapshots of all surfaces ordered by ID.
func (r *Registry) Surfaces() []Surface {
	r.mu.RLock()
	out := make([]Surface, 0, len(r.surfaces))
	for _, s := range r.surfaces {
		out = append(out, *s)
	}
	r.mu.RUnlock()
	slices.SortFunc(out, func(a, b Surface) int { return compareSurfaceIDs(a.ID, b.ID) })
	return out
}
