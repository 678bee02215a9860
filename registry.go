// registry.go - Window registry: ownership, z-order, id allocation

// Copyright (c) 2024-2026 the compositor contributors
// License: GPLv3 or later

package main

import (
	"strconv"
	"sync"
	"sync/atomic"
)

// Rect is a screen-space rectangle. It has no lifetime beyond one composite
// when used as a damage rectangle.
type Rect struct {
	X, Y, W, H int
}

// Empty reports whether the rectangle covers no area.
func (r Rect) Empty() bool { return r.W <= 0 || r.H <= 0 }

// Union returns the smallest rectangle containing both r and o. An empty
// operand is ignored so Union can be folded over a list starting from the
// zero Rect.
func (r Rect) Union(o Rect) Rect {
	if r.Empty() {
		return o
	}
	if o.Empty() {
		return r
	}
	minX, minY := min(r.X, o.X), min(r.Y, o.Y)
	maxX, maxY := max(r.X+r.W, o.X+o.W), max(r.Y+r.H, o.Y+o.H)
	return Rect{X: minX, Y: minY, W: maxX - minX, H: maxY - minY}
}

// Registry owns the set of windows, their z-order, and per-client buckets.
// redraw_lock from spec.md §5 is muWindows: it protects any mutation that
// affects iteration order (reorder, raise, destroy, create).
type Registry struct {
	muWindows sync.Mutex

	windows  map[WindowID]*Window
	bottom   *Window
	top      *Window
	mid      []*Window // back -> front; mid[len-1] is frontmost
	byClient map[ClientID][]*Window

	focused *Window
	hover   *Window
	capture *Window

	nextWID   atomic.Uint32
	nextBufID atomic.Int64

	shm         ShmAllocator
	serverIdent string
}

// ShmAllocator creates and releases the shared-memory-backed buffers that
// back window framebuffers. See shmem.go for the default implementation;
// spec.md §1 treats the underlying primitive as an external collaborator,
// so the registry only depends on this narrow contract.
type ShmAllocator interface {
	Allocate(name string, size int) ([]byte, error)
	Release(buf []byte) error
}

// NewRegistry constructs an empty registry backed by the given allocator.
// serverIdent is folded into shared-memory region names per spec.md §6.
func NewRegistry(shm ShmAllocator, serverIdent string) *Registry {
	return &Registry{
		windows:     make(map[WindowID]*Window),
		byClient:    make(map[ClientID][]*Window),
		shm:         shm,
		serverIdent: serverIdent,
	}
}

// Create allocates a new window owned by the given client, places it at the
// frontmost MID position (below any explicit TOP occupant), and schedules
// its fade-in animation. now is the compositor's current tick value.
func (r *Registry) Create(owner ClientID, w, h int, now uint64) (*Window, error) {
	r.muWindows.Lock()
	defer r.muWindows.Unlock()

	wid := WindowID(r.nextWID.Add(1))
	bufid := int(r.nextBufID.Add(1))

	size := w * h * 4
	var buf []byte
	if size > 0 {
		name := r.shmWindowName(wid, bufid)
		b, err := r.shm.Allocate(name, size)
		if err != nil {
			return nil, err
		}
		buf = b
	}

	win := &Window{
		WID:            wid,
		Owner:          owner,
		Width:          w,
		Height:         h,
		Band:           BandMid,
		Buffer:         buf,
		BufID:          bufid,
		AlphaThreshold: 0,
		AnimMode:       AnimFadeIn,
		AnimStart:      now,
	}

	r.windows[wid] = win
	r.mid = append(r.mid, win)
	r.renumberMid()
	r.byClient[owner] = append(r.byClient[owner], win)

	return win, nil
}

// renumberMid refreshes MidRank after any structural change to mid.
func (r *Registry) renumberMid() {
	for i, w := range r.mid {
		w.MidRank = i
	}
}

// Lookup finds a window by id. Returns nil if not registered.
func (r *Registry) Lookup(wid WindowID) *Window {
	r.muWindows.Lock()
	defer r.muWindows.Unlock()
	return r.windows[wid]
}

// removeFromMid splices w out of the mid slice, if present.
func (r *Registry) removeFromMid(w *Window) bool {
	for i, m := range r.mid {
		if m == w {
			r.mid = append(r.mid[:i], r.mid[i+1:]...)
			r.renumberMid()
			return true
		}
	}
	return false
}

// Reorder moves w to the given band. Moving to BOTTOM/TOP evicts any prior
// occupant back into MID at its most-recent position (appended to front,
// since "most-recent position" for an evicted singleton is simply back in
// the ordered sequence). Moving to MID appends at the front.
func (r *Registry) Reorder(w *Window, band Band) {
	r.muWindows.Lock()
	defer r.muWindows.Unlock()
	r.reorderLocked(w, band)
}

func (r *Registry) reorderLocked(w *Window, band Band) {
	switch w.Band {
	case BandBottom:
		if r.bottom == w {
			r.bottom = nil
		}
	case BandTop:
		if r.top == w {
			r.top = nil
		}
	case BandMid:
		r.removeFromMid(w)
	}

	switch band {
	case BandBottom:
		if prev := r.bottom; prev != nil && prev != w {
			prev.Band = BandMid
			r.mid = append(r.mid, prev)
		}
		r.bottom = w
		w.Band = BandBottom
	case BandTop:
		if prev := r.top; prev != nil && prev != w {
			prev.Band = BandMid
			r.mid = append(r.mid, prev)
		}
		r.top = w
		w.Band = BandTop
	case BandMid:
		w.Band = BandMid
		r.mid = append(r.mid, w)
	}
	r.renumberMid()
}

// Raise moves w to the frontmost MID slot. No-op for BOTTOM/TOP.
func (r *Registry) Raise(w *Window) {
	r.muWindows.Lock()
	defer r.muWindows.Unlock()
	if w.Band != BandMid {
		return
	}
	if r.removeFromMid(w) {
		r.mid = append(r.mid, w)
		r.renumberMid()
	}
}

// HitTest scans TOP, then MID front->back, then BOTTOM, returning the first
// window whose opaque pixel lies at (x, y).
func (r *Registry) HitTest(x, y int) *Window {
	r.muWindows.Lock()
	defer r.muWindows.Unlock()

	if r.top != nil && r.top.HitAt(x, y) {
		return r.top
	}
	for i := len(r.mid) - 1; i >= 0; i-- {
		if r.mid[i].HitAt(x, y) {
			return r.mid[i]
		}
	}
	if r.bottom != nil && r.bottom.HitAt(x, y) {
		return r.bottom
	}
	return nil
}

// Destroy removes w from all indices and releases its shared buffer(s).
// It reports whether w had been the focused and/or hover window, so callers
// (the dispatcher) can make the focus-fallback transition explicit per
// spec.md §9.
func (r *Registry) Destroy(w *Window) (wasFocused, wasHover bool) {
	r.muWindows.Lock()
	defer r.muWindows.Unlock()

	switch w.Band {
	case BandBottom:
		if r.bottom == w {
			r.bottom = nil
		}
	case BandTop:
		if r.top == w {
			r.top = nil
		}
	case BandMid:
		r.removeFromMid(w)
	}

	delete(r.windows, w.WID)

	bucket := r.byClient[w.Owner]
	for i, m := range bucket {
		if m == w {
			bucket = append(bucket[:i], bucket[i+1:]...)
			break
		}
	}
	if len(bucket) == 0 {
		delete(r.byClient, w.Owner)
	} else {
		r.byClient[w.Owner] = bucket
	}

	if w.Buffer != nil {
		_ = r.shm.Release(w.Buffer)
		w.Buffer = nil
	}
	if w.PendingBuffer != nil {
		_ = r.shm.Release(w.PendingBuffer)
		w.PendingBuffer = nil
	}

	if r.focused == w {
		r.focused = nil
		wasFocused = true
	}
	if r.hover == w {
		r.hover = nil
		wasHover = true
	}
	if r.capture == w {
		r.capture = nil
	}
	return wasFocused, wasHover
}

// ClientWindows returns the live bucket for a client (nil if the client owns
// no windows). The returned slice must not be mutated by the caller.
func (r *Registry) ClientWindows(owner ClientID) []*Window {
	r.muWindows.Lock()
	defer r.muWindows.Unlock()
	return r.byClient[owner]
}

// Snapshot returns windows in QUERY_WINDOWS order: bottom, then mid
// front->back, then top. Entries may be nil-filtered by the caller.
func (r *Registry) Snapshot() []*Window {
	r.muWindows.Lock()
	defer r.muWindows.Unlock()

	out := make([]*Window, 0, len(r.windows))
	if r.bottom != nil {
		out = append(out, r.bottom)
	}
	for i := len(r.mid) - 1; i >= 0; i-- {
		out = append(out, r.mid[i])
	}
	if r.top != nil {
		out = append(out, r.top)
	}
	return out
}

func (r *Registry) Bottom() *Window { r.muWindows.Lock(); defer r.muWindows.Unlock(); return r.bottom }
func (r *Registry) Top() *Window    { r.muWindows.Lock(); defer r.muWindows.Unlock(); return r.top }

func (r *Registry) Focused() *Window { r.muWindows.Lock(); defer r.muWindows.Unlock(); return r.focused }
func (r *Registry) Hover() *Window   { r.muWindows.Lock(); defer r.muWindows.Unlock(); return r.hover }
func (r *Registry) Capture() *Window { r.muWindows.Lock(); defer r.muWindows.Unlock(); return r.capture }

func (r *Registry) SetFocused(w *Window) { r.muWindows.Lock(); r.focused = w; r.muWindows.Unlock() }
func (r *Registry) SetHover(w *Window)   { r.muWindows.Lock(); r.hover = w; r.muWindows.Unlock() }
func (r *Registry) SetCapture(w *Window) { r.muWindows.Lock(); r.capture = w; r.muWindows.Unlock() }

// AllocatePending allocates the second shared-memory region used during a
// resize handshake. Idempotent: if a pending buffer already exists for w,
// its existing bufid is returned unchanged (spec.md §4.E RESIZE_ACCEPT).
func (r *Registry) AllocatePending(w *Window, newW, newH int) (bufid int, err error) {
	r.muWindows.Lock()
	defer r.muWindows.Unlock()

	if w.PendingBufID != 0 {
		return w.PendingBufID, nil
	}

	bufid = int(r.nextBufID.Add(1))
	size := newW * newH * 4
	var buf []byte
	if size > 0 {
		buf, err = r.shm.Allocate(r.shmWindowName(w.WID, bufid), size)
		if err != nil {
			return 0, err
		}
	}
	w.PendingBuffer = buf
	w.PendingBufID = bufid
	return bufid, nil
}

// CommitResize swaps the pending buffer into place, releasing the old one.
func (r *Registry) CommitResize(w *Window, newW, newH int) error {
	r.muWindows.Lock()
	defer r.muWindows.Unlock()

	old := w.Buffer
	w.Buffer = w.PendingBuffer
	w.BufID = w.PendingBufID
	w.PendingBuffer = nil
	w.PendingBufID = 0
	w.Width = newW
	w.Height = newH

	if old != nil {
		return r.shm.Release(old)
	}
	return nil
}

// shmWindowName derives the per-window shared-memory key from
// (server_ident, window, bufid), per spec.md §6.
func (r *Registry) shmWindowName(wid WindowID, bufid int) string {
	return r.serverIdent + ".win." + strconv.Itoa(int(wid)) + "." + strconv.Itoa(bufid)
}
