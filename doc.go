// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package ggatlas renders many independently animated vector surfaces
// through one shared atlas texture per frame.
//
// # Overview
//
// Each surface owns a destination texture and publishes a [Fragment] (an
// immutable gg scene snapshot) every frame. Instead of rasterizing every
// surface on its own, the [Compositor] packs all of them into one square
// atlas, rasterizes a single aggregate scene, and copies every surface's
// rectangle back into its destination texture.
//
// # Quick Start
//
//	dev := software.New()
//	reg := ggatlas.NewRegistry()
//	ctx, err := ggatlas.NewContext(dev)
//	if err != nil {
//	    return err
//	}
//	defer ctx.Close()
//
//	sched := ggatlas.NewSchedule(ctx, reg, dev)
//	sched.AddNode(ggatlas.Subgraph2D)
//	sched.AddNode(ggatlas.Subgraph3D)
//
//	id := reg.Attach(target)
//	reg.Publish(id, ggatlas.NewFragmentBuilder().FillRect(0, 0, 64, 64, gg.Red).Build())
//	err = sched.RunFrame(context.Background())
//
// # Atlas Sizing
//
// [RequiredSize] derives a power-of-two side from the total surface area,
// keeping at least half of the atlas free. [Atlas.UpdateSize] only rebuilds
// when the requirement leaves the band [S²/4, S²], and [Atlas.AllocateAll]
// doubles the side and repacks everything when a surface does not fit.
// Every rebuild invalidates all rectangles.
//
// # Frame Gate
//
// Several render paths may run the compositor in the same frame. The
// [FrameGate] lets only the first [Compositor.Execute] do the work until
// [Context.Reset] runs at the end of the frame.
//
// # Coordinate System
//
// Fragments use gg's convention: origin at the top-left, y down. By default
// destination textures share it. With [WithFlipY] the fragment is mirrored
// vertically inside its rectangle, so destination row 0 holds the bottom
// row of the fragment, as bottom-left-origin consumers expect.
//
// # Latency
//
// A surface attached after the frame's plan ran is skipped until the next
// frame, so its destination shows no new content for one frame.
package ggatlas
