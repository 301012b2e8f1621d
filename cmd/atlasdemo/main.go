// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Command atlasdemo composites a set of animated surfaces through one
// shared atlas and writes every destination texture as a PNG.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"

	"github.com/gogpu/gg"
	"github.com/gogpu/gg/scene"

	"github.com/gogpu/ggatlas"
	"github.com/gogpu/ggatlas/backend"
	_ "github.com/gogpu/ggatlas/backend/software"
	"github.com/gogpu/ggatlas/gpucore"
)

type animated struct {
	id     ggatlas.SurfaceID
	target gpucore.TextureID
	hue    float64
}

func main() {
	var (
		count   = flag.Int("surfaces", 6, "number of surfaces")
		frames  = flag.Int("frames", 30, "frames to run")
		outDir  = flag.String("out", "atlasdemo-out", "output directory")
		flipY   = flag.Bool("flipy", false, "bottom-left destination origin")
		padding = flag.Int("padding", 1, "pixels between packed surfaces")
		verbose = flag.Bool("v", false, "debug logging")
	)
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	ggatlas.SetLogger(logger)

	if err := run(*count, *frames, *outDir, *flipY, *padding, logger); err != nil {
		logger.Error("atlasdemo failed", "err", err)
		os.Exit(1)
	}
}

func run(count, frames int, outDir string, flipY bool, padding int, logger *slog.Logger) error {
	dev, err := backend.Default()
	if err != nil {
		return err
	}

	actx, err := ggatlas.NewContext(dev,
		ggatlas.WithFlipY(flipY),
		ggatlas.WithPadding(padding),
		ggatlas.WithLabel("atlasdemo"),
	)
	if err != nil {
		return err
	}
	defer actx.Close()

	reg := ggatlas.NewRegistry()
	sched := ggatlas.NewSchedule(actx, reg, dev)
	sched.AddNode(ggatlas.Subgraph2D)
	sched.AddNode(ggatlas.Subgraph3D)

	surfaces := make([]animated, 0, count)
	for i := range count {
		w, h := 48+i*24, 32+(i%3)*40
		target, err := createTarget(dev, w, h)
		if err != nil {
			return err
		}
		surfaces = append(surfaces, animated{
			id:     reg.Attach(target),
			target: target,
			hue:    float64(i) * 360 / float64(max(count, 1)),
		})
	}

	ctx := context.Background()
	for frame := range frames {
		// Halfway through, the first surface doubles in size.
		if frame == frames/2 && len(surfaces) > 0 {
			s := &surfaces[0]
			w, h, _ := dev.TextureSize(s.target)
			dev.DestroyTexture(s.target)
			if s.target, err = createTarget(dev, w*2, h*2); err != nil {
				return err
			}
			reg.Detach(s.id)
			s.id = reg.Attach(s.target)
		}

		for _, s := range surfaces {
			w, h, _ := dev.TextureSize(s.target)
			if err := reg.Publish(s.id, drawFrame(float32(w), float32(h), s.hue, frame)); err != nil {
				return err
			}
		}
		if err := sched.RunFrame(ctx); err != nil {
			return fmt.Errorf("frame %d: %w", frame, err)
		}
	}

	stats := actx.Stats()
	logger.Info("frames done",
		"frames", stats.Frames,
		"gated", stats.Gated,
		"rebuilds", stats.Rebuilds,
		"grows", stats.Grows,
		"copies", stats.Copies,
		"raster", fmt.Sprintf("%dx%d", stats.RasterWidth, stats.RasterHeight))

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return err
	}
	err = actx.Do(func(c *ggatlas.Compositor) error {
		if !c.Texture().IsValid() {
			return nil
		}
		pm, err := dev.ReadTexture(c.Texture())
		if err != nil {
			return err
		}
		logger.Info("atlas saved", "side", c.Atlas().Side(), "utilization", c.Atlas().Utilization())
		return pm.SavePNG(filepath.Join(outDir, "atlas.png"))
	})
	if err != nil {
		return err
	}
	for i, s := range surfaces {
		pm, err := dev.ReadTexture(s.target)
		if err != nil {
			return err
		}
		path := filepath.Join(outDir, fmt.Sprintf("surface-%02d.png", i))
		if err := pm.SavePNG(path); err != nil {
			return fmt.Errorf("save %s: %w", path, err)
		}
		logger.Info("surface saved", "path", path, "width", pm.Width(), "height", pm.Height())
	}
	return nil
}

func createTarget(dev gpucore.Device, w, h int) (gpucore.TextureID, error) {
	return dev.CreateTexture(&gpucore.TextureDescriptor{
		Label:  "atlasdemo-surface",
		Width:  w,
		Height: h,
		Format: gpucore.TextureFormatRGBA8Unorm,
		Usage:  gpucore.TextureUsageCopyDst | gpucore.TextureUsageCopySrc | gpucore.TextureUsageTextureBinding,
	})
}

// drawFrame renders a background, a rotating square and an orbiting dot.
func drawFrame(w, h float32, hue float64, frame int) *ggatlas.Fragment {
	t := float64(frame) / 30
	cx, cy := w/2, h/2
	side := min(w, h) / 2
	angle := float32(t * math.Pi)

	spin := scene.TranslateAffine(cx, cy).
		Multiply(scene.RotateAffine(angle)).
		Multiply(scene.TranslateAffine(-side/2, -side/2))

	orbit := min(w, h) / 3
	dx := cx + orbit*float32(math.Cos(t*2*math.Pi))
	dy := cy + orbit*float32(math.Sin(t*2*math.Pi))

	return ggatlas.NewFragmentBuilder().
		FillRect(0, 0, w, h, gg.HSL(hue, 0.4, 0.2)).
		Fill(scene.FillNonZero, spin, scene.SolidBrush(gg.HSL(hue, 0.8, 0.6)), scene.NewRectShape(0, 0, side, side)).
		Fill(scene.FillNonZero, scene.IdentityAffine(), scene.SolidBrush(gg.White), scene.NewCircleShape(dx, dy, 4)).
		Stroke(nil, scene.IdentityAffine(), scene.SolidBrush(gg.White), scene.NewRectShape(0.5, 0.5, w-1, h-1)).
		Build()
}
