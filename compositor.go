// compositor.go - Per-frame damage-driven compositing pipeline

// Copyright (c) 2024-2026 the compositor contributors
// License: GPLv3 or later

package main

import (
	"context"
	"sort"
	"time"
)

// CompositorRefreshInterval approximates 60Hz, matching the teacher's own
// compositor tick rate and spec.md §4.C's "~16.6ms" budget.
const CompositorRefreshInterval = time.Second / 60

// CursorSpriteSize is the fixed-size damage footprint of the cursor, per
// spec.md §4.C step 1.
const CursorSpriteSize = 64

// Compositor drains the damage queue and blits windows bottom-to-top onto
// the front surface at a fixed tick rate.
type Compositor struct {
	registry *Registry
	damage   *DamageQueue
	surface  Surface // compositor backbuffer
	front    Frontend

	tick uint64 // advances by AnimTickStep every frame

	lastCursorX, lastCursorY int
	cursorValid               bool
	pointerFn                 func() (x, y int, ok bool)

	resizing      bool
	resizeOutline Rect

	debugFn func() (hitTest, bounds bool)

	closeQueue []*Window
	onClose    func(*Window)

	nested bool

	done chan struct{}
}

// NewCompositor wires the registry, damage queue, blit surface, and front
// presentation target together.
func NewCompositor(reg *Registry, damage *DamageQueue, surface Surface, front Frontend) *Compositor {
	return &Compositor{
		registry: reg,
		damage:   damage,
		surface:  surface,
		front:    front,
		done:     make(chan struct{}),
	}
}

// SetPointerSource installs the function the compositor polls each frame to
// latch the current pointer position (spec.md §4.C step 1).
func (c *Compositor) SetPointerSource(fn func() (x, y int, ok bool)) {
	c.pointerFn = fn
}

// SetOnClose installs the callback invoked once per window whose fade-out
// animation has completed, in place of the compositor tearing the window
// down itself — the dispatcher owns the focus-fallback and subscriber
// notify that must accompany teardown (spec.md §9).
func (c *Compositor) SetOnClose(fn func(*Window)) { c.onClose = fn }

// SetDebugSource installs the function the compositor polls each frame to
// learn the CTRL+SHIFT+V (hit-test visualisation) / CTRL+SHIFT+B (bounds
// overlay) toggle state (spec.md §4.D).
func (c *Compositor) SetDebugSource(fn func() (hitTest, bounds bool)) {
	c.debugFn = fn
}

// SetResizeOutline overlays a translucent outline at the given would-be
// final window bounds while a resize is in progress (spec.md §4.C step 6).
// Passing an empty Rect clears the overlay.
func (c *Compositor) SetResizeOutline(r Rect) {
	c.resizing = !r.Empty()
	c.resizeOutline = r
}

// Run starts the refresh loop; it returns when ctx is cancelled or Stop is
// called.
func (c *Compositor) Run(ctx context.Context) {
	ticker := time.NewTicker(CompositorRefreshInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.done:
			return
		case <-ticker.C:
			c.composite(ctx)
		}
	}
}

// Stop halts the refresh loop.
func (c *Compositor) Stop() { close(c.done) }

func (c *Compositor) composite(ctx context.Context) {
	c.tick += AnimTickStep

	// Step 1: latch pointer, enqueue cursor damage for old+new positions.
	if c.pointerFn != nil {
		if x, y, ok := c.pointerFn(); ok {
			if !c.cursorValid || x != c.lastCursorX || y != c.lastCursorY {
				if c.cursorValid {
					c.damage.MarkRegion(c.lastCursorX, c.lastCursorY, CursorSpriteSize, CursorSpriteSize)
				}
				c.damage.MarkRegion(x, y, CursorSpriteSize, CursorSpriteSize)
				c.lastCursorX, c.lastCursorY = x, y
				c.cursorValid = true
			}
		}
	}

	// Step 2: animated windows re-damage themselves every frame.
	for _, w := range c.registry.Snapshot() {
		if w.AnimMode != AnimNone {
			c.damage.MarkWindow(w)
		}
	}

	// Step 3: drain and union damage into a clip region.
	rects := c.damage.Drain()
	if len(rects) == 0 {
		// Step 4: nothing to do.
		return
	}
	clip := Rect{}
	for _, r := range rects {
		clip = clip.Union(r)
	}

	// Step 5: blit bottom, mid back->front, top. Z-order is a strict
	// sequential dependency, so windows themselves are not parallelized;
	// ImageSurface.CompositeAffine parallelizes the per-window resampling
	// internally for large windows instead (see blit.go).
	c.closeQueue = c.closeQueue[:0]
	snap := c.registry.Snapshot()
	// Snapshot lists MID front->back (QUERY_WINDOWS order); paint MID
	// back->front instead, so the frontmost window is drawn last.
	sort.SliceStable(snap, func(i, j int) bool {
		if snap[i].Band != snap[j].Band {
			return snap[i].Band < snap[j].Band
		}
		return snap[i].MidRank < snap[j].MidRank
	})
	for _, w := range snap {
		c.blitWindow(w)
	}

	// Step 6: resize outline overlay.
	if c.resizing {
		c.surface.FillRect(c.resizeOutline, 0x40FFFFFF)
		c.strokeOutline(c.resizeOutline)
	}

	// Step 6b: debug overlays (spec.md §4.D's CTRL+SHIFT+V / CTRL+SHIFT+B).
	if c.debugFn != nil {
		hitTest, bounds := c.debugFn()
		if bounds {
			for _, w := range c.registry.Snapshot() {
				c.strokeOutline(w.BoundingBox())
			}
		}
		if hitTest && c.cursorValid {
			if w := c.registry.HitTest(c.lastCursorX, c.lastCursorY); w != nil {
				c.strokeOutline(w.BoundingBox())
			}
		}
	}

	// Step 7: cursor sprite, skipped when nested. No nested-surface flip is
	// done here, and nothing in this package sets nested.
	if !c.nested && c.cursorValid {
		c.drawCursor(c.lastCursorX, c.lastCursorY)
	}

	// Step 8: hand the whole backbuffer and the damage clip to the frontend.
	if c.front != nil {
		c.front.Present(c.surface.Bytes(), clip)
	}

	// Step 9: process the close queue.
	for _, w := range c.closeQueue {
		if c.onClose != nil {
			c.onClose(w)
		} else {
			c.registry.Destroy(w)
		}
	}

	// Step 10: clip regions reset implicitly — nothing held between frames.
}

// blitWindow paints a single window per spec.md §4.C's blit rules.
func (c *Compositor) blitWindow(w *Window) {
	alpha := 1.0
	scale := 1.0
	filterNearest := w.rotationEnabled()
	degrees := 0.0
	if w.rotationEnabled() {
		degrees = float64(w.Rotation)
	}

	switch w.AnimMode {
	case AnimFadeIn:
		frame := c.tick - w.AnimStart
		if frame >= AnimLength {
			frame = AnimLength
			w.AnimMode = AnimNone
		}
		alpha = float64(frame) / AnimLength
		scale = 0.75 + 0.25*alpha
	case AnimFadeOut:
		elapsed := c.tick - w.AnimStart
		if elapsed >= AnimLength {
			c.closeQueue = append(c.closeQueue, w)
			return
		}
		alpha = float64(AnimLength-elapsed) / AnimLength
		scale = 0.75 + 0.25*alpha
	}

	if w.Width <= 0 || w.Height <= 0 {
		return
	}
	buf := &RGBABuffer{Pix: w.Buffer, Width: w.Width, Height: w.Height}
	c.surface.CompositeAffine(buf, w.X, w.Y, degrees, scale, alpha, filterNearest)
}

func (c *Compositor) strokeOutline(r Rect) {
	const t = 2
	c.surface.FillRect(Rect{X: r.X, Y: r.Y, W: r.W, H: t}, 0xFFFFFFFF)
	c.surface.FillRect(Rect{X: r.X, Y: r.Y + r.H - t, W: r.W, H: t}, 0xFFFFFFFF)
	c.surface.FillRect(Rect{X: r.X, Y: r.Y, W: t, H: r.H}, 0xFFFFFFFF)
	c.surface.FillRect(Rect{X: r.X + r.W - t, Y: r.Y, W: t, H: r.H}, 0xFFFFFFFF)
}

func (c *Compositor) drawCursor(x, y int) {
	c.surface.FillRect(Rect{X: x, Y: y, W: CursorSpriteSize, H: CursorSpriteSize}, 0xFFFFFFFF)
}
