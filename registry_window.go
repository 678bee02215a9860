// registry_window.go - Window entity and z-band geometry for the compositor

// Copyright (c) 2024-2026 the compositor contributors
// License: GPLv3 or later

package main

import "math"

// Band identifies one of the three z-positions a window can occupy.
type Band int

const (
	BandBottom Band = iota
	BandMid
	BandTop
)

func (b Band) String() string {
	switch b {
	case BandBottom:
		return "bottom"
	case BandMid:
		return "mid"
	case BandTop:
		return "top"
	default:
		return "unknown"
	}
}

// AnimMode is the window's current fade animation, driven by the compositor.
type AnimMode int

const (
	AnimNone AnimMode = iota
	AnimFadeIn
	AnimFadeOut
)

// AnimLength is the number of compositor ticks a fade animation runs for.
// Ticks advance by AnimTickStep per frame (see compositor.go), so a fade
// completes in AnimLength/AnimTickStep frames.
const (
	AnimLength   = 256
	AnimTickStep = 10
)

// WindowID is a stable, monotonically increasing identifier, never reused
// within a process lifetime.
type WindowID uint32

// ClientID is the opaque handle of the owning client, as attached by the
// transport (the packet's source identifier).
type ClientID uint64

// Window is the primary entity of the compositor: a rectangular framebuffer
// owned by one client, positioned in one of three z-bands.
type Window struct {
	WID   WindowID
	Owner ClientID

	X, Y          int
	Width, Height int

	Band    Band
	MidRank int // position within BandMid; higher = more front

	Buffer []byte // ARGB32 little-endian, row stride Width*4
	BufID  int

	PendingBuffer []byte
	PendingBufID  int

	Rotation int // degrees, conventionally [0,360), clockwise on screen

	AlphaThreshold byte

	AnimMode  AnimMode
	AnimStart uint64 // tick value the animation began at

	ClientFlags   uint32
	ClientOffsets [6]uint32
	ClientStrings []byte
}

// Bounds returns the window's unrotated screen-space bounding rectangle.
func (w *Window) Bounds() Rect {
	return Rect{X: w.X, Y: w.Y, W: w.Width, H: w.Height}
}

// rotationEnabled reports whether this window's rotation applies. Rotation
// is disabled (treated as identity) for windows docked in BandBottom or
// BandTop, per spec.
func (w *Window) rotationEnabled() bool {
	return w.Rotation != 0 && w.Band == BandMid
}

// ToLocal maps a screen-space coordinate into the window's local coordinate
// space, inverting translation and (if applicable) rotation. This is the
// "inverse rotation mapping" referenced throughout the input and hit-test
// logic.
func (w *Window) ToLocal(sx, sy int) (lx, ly int) {
	fx, fy := float64(sx-w.X), float64(sy-w.Y)
	if !w.rotationEnabled() {
		return int(fx), int(fy)
	}
	cx, cy := float64(w.Width)/2, float64(w.Height)/2
	fx -= cx
	fy -= cy
	fx, fy = rotatePoint(fx, fy, -float64(w.Rotation))
	fx += cx
	fy += cy
	return int(math.Round(fx)), int(math.Round(fy))
}

// ToScreen is the forward mapping, the inverse of ToLocal.
func (w *Window) ToScreen(lx, ly int) (sx, sy int) {
	fx, fy := float64(lx), float64(ly)
	if w.rotationEnabled() {
		cx, cy := float64(w.Width)/2, float64(w.Height)/2
		fx -= cx
		fy -= cy
		fx, fy = rotatePoint(fx, fy, float64(w.Rotation))
		fx += cx
		fy += cy
	}
	return int(math.Round(fx + float64(w.X))), int(math.Round(fy + float64(w.Y)))
}

// corners returns the four screen-space corners of the window, forward
// rotated around its center when rotation applies.
func (w *Window) corners() [4][2]int {
	var pts [4][2]int
	local := [4][2]int{{0, 0}, {w.Width, 0}, {w.Width, w.Height}, {0, w.Height}}
	for i, p := range local {
		sx, sy := w.ToScreen(p[0], p[1])
		pts[i] = [2]int{sx, sy}
	}
	return pts
}

// BoundingBox returns the screen-space axis-aligned bounding box of the
// window's (possibly rotated) corners. For rotation==0 this equals Bounds().
func (w *Window) BoundingBox() Rect {
	if !w.rotationEnabled() {
		return w.Bounds()
	}
	pts := w.corners()
	minX, minY := pts[0][0], pts[0][1]
	maxX, maxY := pts[0][0], pts[0][1]
	for _, p := range pts[1:] {
		if p[0] < minX {
			minX = p[0]
		}
		if p[0] > maxX {
			maxX = p[0]
		}
		if p[1] < minY {
			minY = p[1]
		}
		if p[1] > maxY {
			maxY = p[1]
		}
	}
	return Rect{X: minX, Y: minY, W: maxX - minX, H: maxY - minY}
}

// rotatePoint rotates (x,y) by degrees clockwise (positive = clockwise on
// screen, matching the engine's device coordinate convention where +Y is
// down).
func rotatePoint(x, y, degrees float64) (float64, float64) {
	if degrees == 0 {
		return x, y
	}
	rad := degrees * math.Pi / 180
	sin, cos := math.Sin(rad), math.Cos(rad)
	return x*cos - y*sin, x*sin + y*cos
}

// pixelAlpha reads the alpha byte of the pixel at local coordinate (lx, ly)
// in the window's ARGB32 little-endian buffer. Returns 0 if out of bounds
// or the buffer has not been allocated.
func (w *Window) pixelAlpha(lx, ly int) byte {
	if lx < 0 || ly < 0 || lx >= w.Width || ly >= w.Height {
		return 0
	}
	stride := w.Width * 4
	idx := ly*stride + lx*4
	if idx+3 >= len(w.Buffer) {
		return 0
	}
	// ARGB32 little-endian: byte 3 is alpha.
	return w.Buffer[idx+3]
}

// HitAt reports whether the window hits at screen coordinate (sx, sy):
// the coordinate maps into [0,width)x[0,height) local space and the pixel
// there has alpha >= AlphaThreshold.
func (w *Window) HitAt(sx, sy int) bool {
	lx, ly := w.ToLocal(sx, sy)
	if lx < 0 || ly < 0 || lx >= w.Width || ly >= w.Height {
		return false
	}
	return w.pixelAlpha(lx, ly) >= w.AlphaThreshold
}
