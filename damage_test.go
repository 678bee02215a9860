// damage_test.go - Damage queue tests: mark/drain, rotated bounding boxes

// Copyright (c) 2024-2026 the compositor contributors
// License: GPLv3 or later

package main

import "testing"

func TestDamageQueueMarkAndDrain(t *testing.T) {
	q := NewDamageQueue()
	q.MarkRegion(0, 0, 10, 10)
	q.MarkRegion(5, 5, 0, 10) // zero width: dropped
	q.MarkRegion(20, 20, 5, 5)

	rects := q.Drain()
	if len(rects) != 2 {
		t.Fatalf("expected 2 surviving rects, got %d: %v", len(rects), rects)
	}
	if drained := q.Drain(); drained != nil {
		t.Fatalf("second Drain should be empty, got %v", drained)
	}
}

func TestDamageQueueMarkWindowUnrotated(t *testing.T) {
	q := NewDamageQueue()
	w := &Window{X: 10, Y: 20, Width: 30, Height: 40, Band: BandMid}
	q.MarkWindow(w)
	rects := q.Drain()
	if len(rects) != 1 {
		t.Fatalf("expected 1 rect, got %d", len(rects))
	}
	want := Rect{X: 10, Y: 20, W: 30, H: 40}
	if rects[0] != want {
		t.Fatalf("MarkWindow = %v, want %v", rects[0], want)
	}
}

func TestDamageQueueMarkWindowRotatedGrowsBoundingBox(t *testing.T) {
	q := NewDamageQueue()
	w := &Window{X: 100, Y: 100, Width: 100, Height: 50, Band: BandMid, Rotation: 45}
	q.MarkWindow(w)
	rects := q.Drain()
	if len(rects) != 1 {
		t.Fatalf("expected 1 rect, got %d", len(rects))
	}
	if rects[0].W <= 100 || rects[0].H <= 50 {
		t.Fatalf("rotated window damage should exceed the unrotated extents, got %v", rects[0])
	}
}

func TestDamageQueueMarkWindowRelativeUnrotated(t *testing.T) {
	q := NewDamageQueue()
	w := &Window{X: 10, Y: 10, Width: 100, Height: 100, Band: BandMid}
	q.MarkWindowRelative(w, 5, 5, 20, 20)
	rects := q.Drain()
	want := Rect{X: 15, Y: 15, W: 20, H: 20}
	if rects[0] != want {
		t.Fatalf("MarkWindowRelative = %v, want %v", rects[0], want)
	}
}

func TestRectUnion(t *testing.T) {
	a := Rect{X: 0, Y: 0, W: 10, H: 10}
	b := Rect{X: 5, Y: 5, W: 10, H: 10}
	u := a.Union(b)
	want := Rect{X: 0, Y: 0, W: 15, H: 15}
	if u != want {
		t.Fatalf("Union = %v, want %v", u, want)
	}
	if empty := (Rect{}).Union(a); empty != a {
		t.Fatalf("Union with an empty rect should return the other operand, got %v", empty)
	}
}
