// damage.go - Damage accumulation queue

// Copyright (c) 2024-2026 the compositor contributors
// License: GPLv3 or later

package main

import "sync"

// DamageQueue is a lock-guarded sequence of damage rectangles. It performs
// no coalescing itself — that is the compositor's job via clip union
// (spec.md §4.B).
type DamageQueue struct {
	mu    sync.Mutex // update_list_lock from spec.md §5
	rects []Rect
}

// NewDamageQueue constructs an empty queue.
func NewDamageQueue() *DamageQueue {
	return &DamageQueue{}
}

// MarkRegion enqueues a rectangle directly.
func (q *DamageQueue) MarkRegion(x, y, w, h int) {
	if w <= 0 || h <= 0 {
		return
	}
	q.mu.Lock()
	q.rects = append(q.rects, Rect{X: x, Y: y, W: w, H: h})
	q.mu.Unlock()
}

// MarkWindow enqueues the screen-space bounding box of w's (possibly
// rotated) four corners. If rotation == 0, this is simply (x, y, w, h).
func (q *DamageQueue) MarkWindow(w *Window) {
	q.MarkRegion(rectFields(w.BoundingBox()))
}

// MarkWindowRelative enqueues the bounding box of an internal rectangle
// (rx, ry, rw, rh) relative to w, forward-rotating its four corners through
// w's current rotation the same way MarkWindow forward-rotates the whole
// window.
func (q *DamageQueue) MarkWindowRelative(w *Window, rx, ry, rw, rh int) {
	if rw <= 0 || rh <= 0 {
		return
	}
	if !w.rotationEnabled() {
		q.MarkRegion(w.X+rx, w.Y+ry, rw, rh)
		return
	}

	local := [4][2]int{{rx, ry}, {rx + rw, ry}, {rx + rw, ry + rh}, {rx, ry + rh}}
	var sx0, sy0, sx1, sy1 int
	for i, p := range local {
		sx, sy := w.ToScreen(p[0], p[1])
		if i == 0 {
			sx0, sy0, sx1, sy1 = sx, sy, sx, sy
			continue
		}
		sx0, sx1 = min(sx0, sx), max(sx1, sx)
		sy0, sy1 = min(sy0, sy), max(sy1, sy)
	}
	q.MarkRegion(sx0, sy0, sx1-sx0, sy1-sy0)
}

// Drain removes and returns all pending rectangles.
func (q *DamageQueue) Drain() []Rect {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.rects) == 0 {
		return nil
	}
	out := q.rects
	q.rects = nil
	return out
}

func rectFields(r Rect) (int, int, int, int) { return r.X, r.Y, r.W, r.H }
