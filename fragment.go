// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package ggatlas

import (
	"github.com/gogpu/gg"
	"github.com/gogpu/gg/scene"
)

// Fragment is an immutable drawable snapshot for one surface and one frame.
// It is expressed in the surface's local pixel space: (0,0) is the top-left
// corner and y grows downward.
//
// A Fragment is never modified after Build, so the producer and the
// compositor may hold it at the same time without locking.
type Fragment struct {
	items  []fragmentItem
	bounds scene.Rect
}

type fragmentItem struct {
	stroke    *scene.StrokeStyle // nil for fills
	fill      scene.FillStyle
	transform scene.Affine
	brush     scene.Brush
	shape     scene.Shape
}

// Len returns the number of draw items.
func (f *Fragment) Len() int {
	if f == nil {
		return 0
	}
	return len(f.items)
}

// Bounds returns the local bounding box of all items.
func (f *Fragment) Bounds() scene.Rect {
	if f == nil {
		return scene.EmptyRect()
	}
	return f.bounds
}

// AppendTo records the fragment into s with every item placed by t.
//
// Transforms are baked into the geometry and the scene transform stays
// identity, so no transform state carries over from one fragment to the
// next.
func (f *Fragment) AppendTo(s *scene.Scene, t scene.Affine) {
	if f == nil {
		return
	}
	identity := scene.IdentityAffine()
	for i := range f.items {
		it := &f.items[i]
		shape := scene.NewTransformShape(it.shape, t.Multiply(it.transform))
		if it.stroke != nil {
			s.Stroke(it.stroke, identity, it.brush, shape)
		} else {
			s.Fill(it.fill, identity, it.brush, shape)
		}
	}
}

// FragmentBuilder accumulates draw items for a new Fragment.
//
// Example:
//
//	f := ggatlas.NewFragmentBuilder().
//	    FillRect(0, 0, 64, 32, gg.Red).
//	    Stroke(scene.DefaultStrokeStyle(), scene.IdentityAffine(),
//	        scene.SolidBrush(gg.Black), scene.NewCircleShape(16, 16, 8)).
//	    Build()
type FragmentBuilder struct {
	items  []fragmentItem
	bounds scene.Rect
}

// NewFragmentBuilder returns an empty builder.
func NewFragmentBuilder() *FragmentBuilder {
	return &FragmentBuilder{bounds: scene.EmptyRect()}
}

// Fill adds a filled shape.
func (b *FragmentBuilder) Fill(style scene.FillStyle, transform scene.Affine, brush scene.Brush, shape scene.Shape) *FragmentBuilder {
	if shape == nil {
		return b
	}
	b.items = append(b.items, fragmentItem{fill: style, transform: transform, brush: brush, shape: shape})
	b.bounds = b.bounds.Union(scene.NewTransformShape(shape, transform).Bounds())
	return b
}

// Stroke adds a stroked shape. A nil style uses scene.DefaultStrokeStyle.
func (b *FragmentBuilder) Stroke(style *scene.StrokeStyle, transform scene.Affine, brush scene.Brush, shape scene.Shape) *FragmentBuilder {
	if shape == nil {
		return b
	}
	if style == nil {
		style = scene.DefaultStrokeStyle()
	}
	st := *style
	b.items = append(b.items, fragmentItem{stroke: &st, transform: transform, brush: brush, shape: shape})

	r := scene.NewTransformShape(shape, transform).Bounds()
	half := st.Width / 2
	r.MinX, r.MinY, r.MaxX, r.MaxY = r.MinX-half, r.MinY-half, r.MaxX+half, r.MaxY+half
	b.bounds = b.bounds.Union(r)
	return b
}

// FillRect adds an axis-aligned solid rectangle.
func (b *FragmentBuilder) FillRect(x, y, w, h float32, c gg.RGBA) *FragmentBuilder {
	return b.Fill(scene.FillNonZero, scene.IdentityAffine(), scene.SolidBrush(c), scene.NewRectShape(x, y, w, h))
}

// Build returns the immutable fragment. The builder may keep being used;
// later additions do not affect fragments already built.
func (b *FragmentBuilder) Build() *Fragment {
	return &Fragment{
		items:  append([]fragmentItem(nil), b.items...),
		bounds: b.bounds,
	}
}
