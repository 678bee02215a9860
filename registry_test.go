// registry_test.go - Window registry tests: z-order, hit-test, resize handshake

// Copyright (c) 2024-2026 the compositor contributors
// License: GPLv3 or later

package main

import "testing"

func newTestRegistry() *Registry {
	return NewRegistry(NewMemfdShm(), "test")
}

func TestRegistryCreateAssignsMidBand(t *testing.T) {
	r := newTestRegistry()
	w, err := r.Create(ClientID(1), 100, 50, 0)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if w.Band != BandMid {
		t.Fatalf("new window band = %v, want BandMid", w.Band)
	}
	if w.AnimMode != AnimFadeIn {
		t.Fatalf("new window anim = %v, want AnimFadeIn", w.AnimMode)
	}
	if len(w.Buffer) != 100*50*4 {
		t.Fatalf("buffer size = %d, want %d", len(w.Buffer), 100*50*4)
	}
}

func TestRegistryRaiseReordersMid(t *testing.T) {
	r := newTestRegistry()
	a, _ := r.Create(ClientID(1), 10, 10, 0)
	b, _ := r.Create(ClientID(1), 10, 10, 0)
	c, _ := r.Create(ClientID(1), 10, 10, 0)

	// Snapshot lists MID front->back, so snap[0] is the frontmost window.
	snap := r.Snapshot()
	if snap[0] != c {
		t.Fatalf("most recently created window should be frontmost")
	}

	r.Raise(a)
	snap = r.Snapshot()
	if snap[0] != a {
		t.Fatalf("Raise did not move a to frontmost: got %v", snap)
	}
	_ = b
}

func TestRegistryReorderBottomEvictsPriorOccupant(t *testing.T) {
	r := newTestRegistry()
	a, _ := r.Create(ClientID(1), 10, 10, 0)
	b, _ := r.Create(ClientID(1), 10, 10, 0)

	r.Reorder(a, BandBottom)
	if r.Bottom() != a {
		t.Fatalf("a should occupy BandBottom")
	}
	r.Reorder(b, BandBottom)
	if r.Bottom() != b {
		t.Fatalf("b should now occupy BandBottom")
	}
	if a.Band != BandMid {
		t.Fatalf("evicted occupant a should fall back to BandMid, got %v", a.Band)
	}
}

func TestRegistryHitTestOrderTopMidBottom(t *testing.T) {
	r := newTestRegistry()
	bottom, _ := r.Create(ClientID(1), 100, 100, 0)
	bottom.Buffer = opaqueBuffer(100, 100)
	r.Reorder(bottom, BandBottom)

	mid, _ := r.Create(ClientID(1), 100, 100, 0)
	mid.Buffer = opaqueBuffer(100, 100)

	top, _ := r.Create(ClientID(1), 100, 100, 0)
	top.Buffer = opaqueBuffer(100, 100)
	r.Reorder(top, BandTop)

	if got := r.HitTest(5, 5); got != top {
		t.Fatalf("HitTest should prefer BandTop, got %v want %v", got, top)
	}

	r.Reorder(top, BandMid) // top joins MID as its frontmost window, ahead of mid and bottom
	if got := r.HitTest(5, 5); got != top {
		t.Fatalf("HitTest should prefer frontmost MID over BandBottom, got %v want %v", got, top)
	}
}

func TestRegistryDestroyReportsFocusAndHoverFallback(t *testing.T) {
	r := newTestRegistry()
	w, _ := r.Create(ClientID(1), 10, 10, 0)
	r.SetFocused(w)
	r.SetHover(w)

	wasFocused, wasHover := r.Destroy(w)
	if !wasFocused || !wasHover {
		t.Fatalf("Destroy should report wasFocused=true wasHover=true, got %v %v", wasFocused, wasHover)
	}
	if r.Focused() != nil || r.Hover() != nil {
		t.Fatalf("focus/hover should be cleared after destroying the focused/hover window")
	}
	if r.Lookup(w.WID) != nil {
		t.Fatalf("destroyed window should no longer be reachable via Lookup")
	}
}

func TestRegistryResizeHandshakeIdempotent(t *testing.T) {
	r := newTestRegistry()
	w, _ := r.Create(ClientID(1), 10, 10, 0)

	bufid1, err := r.AllocatePending(w, 20, 20)
	if err != nil {
		t.Fatalf("AllocatePending: %v", err)
	}
	if bufid1 == 0 {
		t.Fatalf("expected non-zero pending bufid")
	}

	// A duplicate RESIZE_ACCEPT must re-report the same pending bufid rather
	// than allocate a second buffer.
	bufid2, err := r.AllocatePending(w, 20, 20)
	if err != nil {
		t.Fatalf("AllocatePending (repeat): %v", err)
	}
	if bufid2 != bufid1 {
		t.Fatalf("repeat AllocatePending returned a different bufid: %d != %d", bufid2, bufid1)
	}

	if err := r.CommitResize(w, 20, 20); err != nil {
		t.Fatalf("CommitResize: %v", err)
	}
	if w.Width != 20 || w.Height != 20 {
		t.Fatalf("CommitResize did not update dimensions: %dx%d", w.Width, w.Height)
	}
	if w.PendingBuffer != nil || w.PendingBufID != 0 {
		t.Fatalf("CommitResize should clear the pending buffer/bufid")
	}
}

func opaqueBuffer(w, h int) []byte {
	buf := make([]byte, w*h*4)
	for i := 3; i < len(buf); i += 4 {
		buf[i] = 0xFF
	}
	return buf
}
