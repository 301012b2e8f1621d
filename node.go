// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package ggatlas

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/gogpu/ggatlas/gpucore"
)

// Context is the shared handle to one Compositor. Every render path that
// composites surfaces holds the same Context; the mutex only serializes
// access, the frame gate decides who does the work.
type Context struct {
	mu   sync.Mutex
	comp *Compositor
}

// NewContext creates a compositor for dev and wraps it.
func NewContext(dev gpucore.Device, opts ...Option) (*Context, error) {
	comp, err := NewCompositor(dev, opts...)
	if err != nil {
		return nil, err
	}
	return &Context{comp: comp}, nil
}

// Do runs fn with exclusive access to the compositor.
func (c *Context) Do(fn func(*Compositor) error) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return fn(c.comp)
}

// Reset reopens the frame gate. It is the end-of-frame cleanup step.
func (c *Context) Reset() {
	c.mu.Lock()
	c.comp.gate.Reset()
	c.mu.Unlock()
}

// Stats returns the compositor counters.
func (c *Context) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.comp.Stats()
}

// Close releases the compositor's resources.
func (c *Context) Close() {
	c.mu.Lock()
	c.comp.Close()
	c.mu.Unlock()
}

// Subgraph names a render path a Node is registered in.
type Subgraph uint8

// Render paths sharing the atlas.
const (
	Subgraph2D Subgraph = iota
	Subgraph3D
)

func (s Subgraph) String() string {
	switch s {
	case Subgraph2D:
		return "core2d"
	case Subgraph3D:
		return "core3d"
	default:
		return fmt.Sprintf("Subgraph(%d)", uint8(s))
	}
}

// Node is the render-graph entry point of one render path. Update plans,
// Run executes; both defer to the shared Context.
type Node struct {
	subgraph Subgraph
	ctx      *Context
	registry *Registry
}

// NewNode creates a node for the given render path.
func NewNode(sub Subgraph, ctx *Context, reg *Registry) *Node {
	return &Node{subgraph: sub, ctx: ctx, registry: reg}
}

// Subgraph returns the render path the node belongs to.
func (n *Node) Subgraph() Subgraph { return n.subgraph }

// Update plans the atlas for the current surface set.
func (n *Node) Update() error {
	surfaces := n.registry.Surfaces()
	return n.ctx.Do(func(c *Compositor) error {
		return c.Plan(surfaces)
	})
}

// Run composites and copies back, once per frame across all nodes.
func (n *Node) Run(ctx context.Context) error {
	surfaces := n.registry.Surfaces()
	err := n.ctx.Do(func(c *Compositor) error {
		return c.Execute(ctx, surfaces)
	})
	if err != nil {
		return fmt.Errorf("%s: %w", n.subgraph, err)
	}
	return nil
}

// Schedule drives one frame the way a host engine does: destination sizes
// are synced, every registered node is updated and run, and the frame gate
// is reset after all of them.
type Schedule struct {
	ctx      *Context
	registry *Registry
	device   gpucore.Device
	nodes    []*Node
}

// NewSchedule creates a schedule with no render paths.
func NewSchedule(ctx *Context, reg *Registry, dev gpucore.Device) *Schedule {
	return &Schedule{ctx: ctx, registry: reg, device: dev}
}

// AddNode registers the compositor in a render path and returns its node.
func (s *Schedule) AddNode(sub Subgraph) *Node {
	n := NewNode(sub, s.ctx, s.registry)
	s.nodes = append(s.nodes, n)
	return n
}

// RunFrame runs one frame. Every node runs even if an earlier one failed;
// the errors are joined. The gate is reset in all cases.
func (s *Schedule) RunFrame(ctx context.Context) error {
	defer s.ctx.Reset()

	s.registry.SyncSizes(s.device)

	var errs []error
	for _, n := range s.nodes {
		if err := n.Update(); err != nil {
			errs = append(errs, fmt.Errorf("%s: plan: %w", n.subgraph, err))
			continue
		}
		if err := n.Run(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
