// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package ggatlas

// FrameGate lets the composite-and-copy step run at most once per frame,
// however many render paths invoke it.
//
// The zero value is an open gate.
type FrameGate struct {
	rendered bool
}

// Begin reports whether the step may run in this frame.
func (g *FrameGate) Begin() bool { return !g.rendered }

// Done closes the gate until the next Reset.
func (g *FrameGate) Done() { g.rendered = true }

// Rendered reports whether the step already ran in this frame.
func (g *FrameGate) Rendered() bool { return g.rendered }

// Reset reopens the gate. Call it once per frame after every consumer of
// the frame's output has run.
func (g *FrameGate) Reset() { g.rendered = false }
