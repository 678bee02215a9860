// compositor_test.go - Z-order blit sequencing and fade animation tests

// Copyright (c) 2024-2026 the compositor contributors
// License: GPLv3 or later

package main

import "testing"

// recordingSurface records each CompositeAffine call. Tests that check blit
// order place every window at X == its WindowID, so x identifies the window.
type recordingSurface struct {
	blitOrder []WindowID
	alphas    []float64
	fills     int
}

func (s *recordingSurface) FillRect(r Rect, argb uint32) { s.fills++ }
func (s *recordingSurface) CompositeAffine(src *RGBABuffer, x, y int, degrees, scale, alpha float64, filterNearest bool) {
	s.blitOrder = append(s.blitOrder, WindowID(x))
	s.alphas = append(s.alphas, alpha)
}
func (s *recordingSurface) CopyRegion(src Surface, clip Rect) {}
func (s *recordingSurface) Bytes() []byte                     { return nil }
func (s *recordingSurface) Bounds() Rect                      { return Rect{} }

type noopFrontend struct{ presented int }

func (f *noopFrontend) Start() error                     { return nil }
func (f *noopFrontend) Stop() error                       { return nil }
func (f *noopFrontend) Close() error                      { return nil }
func (f *noopFrontend) IsStarted() bool                   { return true }
func (f *noopFrontend) Present(pix []byte, clip Rect)     { f.presented++ }

func TestBlitWindowFadeInAlphaProgresses(t *testing.T) {
	reg := newTestRegistry()
	dq := NewDamageQueue()
	surf := &recordingSurface{}
	front := &noopFrontend{}
	c := NewCompositor(reg, dq, surf, front)

	w, _ := reg.Create(ClientID(1), 10, 10, 0)
	w.Buffer = opaqueBuffer(10, 10)

	c.tick = 0
	c.blitWindow(w) // at tick 0, AnimStart 0: frame=0, alpha=0

	c.tick = AnimLength
	c.blitWindow(w) // frame == AnimLength: alpha reaches 1, window stays

	if len(surf.alphas) != 2 || surf.alphas[0] != 0 || surf.alphas[1] != 1 {
		t.Fatalf("fade-in alpha should go from 0 at its start to 1 at AnimLength, got %v", surf.alphas)
	}
	if len(c.closeQueue) != 0 {
		t.Fatalf("fade-in should never enqueue a close, got %d entries", len(c.closeQueue))
	}
}

func TestBlitWindowFadeOutEnqueuesCloseWhenComplete(t *testing.T) {
	reg := newTestRegistry()
	dq := NewDamageQueue()
	surf := &recordingSurface{}
	front := &noopFrontend{}
	c := NewCompositor(reg, dq, surf, front)

	w, _ := reg.Create(ClientID(1), 10, 10, 0)
	w.Buffer = opaqueBuffer(10, 10)
	w.AnimMode = AnimFadeOut
	w.AnimStart = 0

	c.tick = AnimLength // elapsed = tick-start = AnimLength: fade-out complete
	c.blitWindow(w)

	if len(c.closeQueue) != 1 || c.closeQueue[0] != w {
		t.Fatalf("completed fade-out should enqueue w for close, got %v", c.closeQueue)
	}
}

func TestCompositeBlitsInBottomMidTopOrder(t *testing.T) {
	reg := newTestRegistry()
	dq := NewDamageQueue()
	surf := &recordingSurface{}
	front := &noopFrontend{}
	c := NewCompositor(reg, dq, surf, front)

	bottom, _ := reg.Create(ClientID(1), 10, 10, 0)
	bottom.Buffer = opaqueBuffer(10, 10)
	bottom.AnimMode = AnimNone
	reg.Reorder(bottom, BandBottom)

	mid, _ := reg.Create(ClientID(1), 10, 10, 0)
	mid.Buffer = opaqueBuffer(10, 10)
	mid.AnimMode = AnimNone

	mid2, _ := reg.Create(ClientID(1), 10, 10, 0) // created later: frontmost MID
	mid2.Buffer = opaqueBuffer(10, 10)
	mid2.AnimMode = AnimNone

	top, _ := reg.Create(ClientID(1), 10, 10, 0)
	top.Buffer = opaqueBuffer(10, 10)
	top.AnimMode = AnimNone
	reg.Reorder(top, BandTop)

	for _, w := range []*Window{bottom, mid, mid2, top} {
		w.X = int(w.WID)
	}

	snap := reg.Snapshot()
	if snap[0] != bottom || snap[len(snap)-1] != top {
		t.Fatalf("Snapshot order should be bottom..top, got %v", snap)
	}

	dq.MarkRegion(0, 0, 1, 1)
	c.composite(nil)

	if front.presented != 1 {
		t.Fatalf("composite with pending damage should call Present once, got %d", front.presented)
	}
	want := []WindowID{bottom.WID, mid.WID, mid2.WID, top.WID}
	if len(surf.blitOrder) != len(want) {
		t.Fatalf("blit order = %v, want %v", surf.blitOrder, want)
	}
	for i := range want {
		if surf.blitOrder[i] != want[i] {
			t.Fatalf("blit order = %v, want %v (bottom, MID back->front, top)", surf.blitOrder, want)
		}
	}
}

func TestCompositeSkipsPresentWhenNoDamage(t *testing.T) {
	reg := newTestRegistry()
	dq := NewDamageQueue()
	surf := &recordingSurface{}
	front := &noopFrontend{}
	c := NewCompositor(reg, dq, surf, front)

	c.composite(nil)

	if front.presented != 0 {
		t.Fatalf("composite with no pending damage should not call Present, got %d", front.presented)
	}
}

func TestDebugBoundsOverlayDrawsPerWindow(t *testing.T) {
	reg := newTestRegistry()
	dq := NewDamageQueue()
	surf := &recordingSurface{}
	front := &noopFrontend{}
	c := NewCompositor(reg, dq, surf, front)

	w, _ := reg.Create(ClientID(1), 10, 10, 0)
	w.Buffer = opaqueBuffer(10, 10)

	c.SetDebugSource(func() (bool, bool) { return false, true })
	dq.MarkRegion(0, 0, 1, 1)

	before := surf.fills
	c.composite(nil)

	if surf.fills <= before {
		t.Fatalf("bounds overlay should draw at least one outline stroke, fills before=%d after=%d", before, surf.fills)
	}
}

func TestOnCloseCallbackInvokedInsteadOfDirectDestroy(t *testing.T) {
	reg := newTestRegistry()
	dq := NewDamageQueue()
	surf := &recordingSurface{}
	front := &noopFrontend{}
	c := NewCompositor(reg, dq, surf, front)

	w, _ := reg.Create(ClientID(1), 10, 10, 0)
	w.Buffer = opaqueBuffer(10, 10)
	w.AnimMode = AnimFadeOut
	w.AnimStart = 0
	c.tick = AnimLength

	var closed *Window
	c.SetOnClose(func(win *Window) { closed = win })

	dq.MarkRegion(0, 0, 1, 1)
	c.composite(nil)

	if closed != w {
		t.Fatalf("SetOnClose callback should receive the completed-fade-out window")
	}
}
