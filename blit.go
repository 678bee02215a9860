// blit.go - Pixel blitter contract and default x/image-backed implementation

// Copyright (c) 2024-2026 the compositor contributors
// License: GPLv3 or later

package main

import (
	"image"
	"image/color"
	"image/draw"
	"math"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/math/f64"
	"golang.org/x/sync/errgroup"
)

// compositeStripHeight mirrors the teacher's blendFrame1to1 strip size: large
// destination rectangles are split into horizontal strips and resampled
// concurrently, since each strip writes disjoint rows of the destination
// image and the scaler does no cross-row blending.
const compositeStripHeight = 60

// Surface is the minimal contract the compositor needs from the external
// pixel blitter / 2D graphics library named (but not specified) in
// spec.md §1: fill a rectangle of ARGB into a framebuffer, and composite a
// surface with affine transform and alpha.
type Surface interface {
	FillRect(r Rect, argb uint32)
	// CompositeAffine draws src onto the surface translated to (x, y),
	// rotated by degrees around its own center, and scaled by scale, with
	// uniform alpha multiplier in [0,1]. filterNearest selects
	// nearest-neighbour filtering (used while actively rotating, per
	// spec.md §4.C) instead of the smoother default.
	CompositeAffine(src *RGBABuffer, x, y int, degrees float64, scale, alpha float64, filterNearest bool)
	// CopyRegion copies clip from src onto the surface using a source-copy
	// operator (spec.md §4.C step 8).
	CopyRegion(src Surface, clip Rect)
	Bytes() []byte
	Bounds() Rect
}

// RGBABuffer is a raw ARGB32 little-endian pixel buffer with explicit
// dimensions — the shape a Window's shared-memory Buffer is in.
type RGBABuffer struct {
	Pix           []byte
	Width, Height int
}

// ImageSurface is the default Surface implementation. It composites through
// golang.org/x/image/draw, the same image package the teacher already
// depends on for frame scaling, rather than hand-rolling affine sampling.
type ImageSurface struct {
	img *image.RGBA
	w, h int
}

// NewImageSurface allocates a blank surface of the given dimensions.
func NewImageSurface(w, h int) *ImageSurface {
	return &ImageSurface{img: image.NewRGBA(image.Rect(0, 0, w, h)), w: w, h: h}
}

func (s *ImageSurface) Bounds() Rect { return Rect{W: s.w, H: s.h} }
func (s *ImageSurface) Bytes() []byte { return s.img.Pix }

// FillRect fills r with an ARGB32 colour (alpha in the high byte, matching
// the Window.Buffer convention used throughout the registry).
func (s *ImageSurface) FillRect(r Rect, argb uint32) {
	clip := clampRect(r, s.w, s.h)
	if clip.Empty() {
		return
	}
	a := byte(argb >> 24)
	rr := byte(argb >> 16)
	gg := byte(argb >> 8)
	bb := byte(argb)
	c := color.NRGBA{R: rr, G: gg, B: bb, A: a}
	draw.Draw(s.img, image.Rect(clip.X, clip.Y, clip.X+clip.W, clip.Y+clip.H),
		&image.Uniform{C: c}, image.Point{}, draw.Src)
}

// CompositeAffine draws src at (x, y) with rotation, scale, and alpha. The
// degrees == 0 case is the common path: scale the source into an
// axis-aligned destination rectangle via x/image/draw's BiLinear (or
// NearestNeighbor) Scale, splitting tall rectangles into concurrent
// horizontal strips. Any other angle goes through compositeRotated's affine
// Transform instead, since a rotated footprint isn't expressible as a plain
// destination rectangle.
func (s *ImageSurface) CompositeAffine(src *RGBABuffer, x, y int, degrees float64, scale, alpha float64, filterNearest bool) {
	if src == nil || src.Width <= 0 || src.Height <= 0 || len(src.Pix) < src.Width*src.Height*4 {
		return
	}
	// src.Pix is ARGB32 little-endian (bytes B, G, R, A); swap B and R into
	// the R, G, B, A byte order image.RGBA reads.
	pix := make([]byte, src.Width*src.Height*4)
	for i := 0; i < len(pix); i += 4 {
		pix[i], pix[i+1], pix[i+2], pix[i+3] = src.Pix[i+2], src.Pix[i+1], src.Pix[i], src.Pix[i+3]
	}
	srcImg := &image.RGBA{Pix: pix, Stride: src.Width * 4, Rect: image.Rect(0, 0, src.Width, src.Height)}

	scaler := xdraw.BiLinear
	if filterNearest {
		scaler = xdraw.NearestNeighbor
	}

	var opts *xdraw.Options
	if alpha < 1.0 {
		opts = &xdraw.Options{SrcMask: image.NewUniform(color.Alpha{A: clampAlpha(alpha)})}
	}

	if degrees != 0 {
		s.compositeRotated(scaler, srcImg, x, y, degrees, scale, opts)
		return
	}

	scaledW := int(float64(src.Width) * scale)
	scaledH := int(float64(src.Height) * scale)
	if scaledW <= 0 || scaledH <= 0 {
		return
	}
	cx := x + src.Width/2
	cy := y + src.Height/2
	dstRect := image.Rect(cx-scaledW/2, cy-scaledH/2, cx-scaledW/2+scaledW, cy-scaledH/2+scaledH)

	if dstRect.Dy() <= compositeStripHeight {
		scaler.Scale(s.img, dstRect, srcImg, srcImg.Bounds(), draw.Over, opts)
		return
	}

	// Split into horizontal strips of the destination rectangle, each
	// resampled from its corresponding source strip concurrently.
	var eg errgroup.Group
	srcH := srcImg.Bounds().Dy()
	dstH := dstRect.Dy()
	for y0 := dstRect.Min.Y; y0 < dstRect.Max.Y; y0 += compositeStripHeight {
		y1 := min(y0+compositeStripHeight, dstRect.Max.Y)
		strip := image.Rect(dstRect.Min.X, y0, dstRect.Max.X, y1)
		srcY0 := srcImg.Bounds().Min.Y + (y0-dstRect.Min.Y)*srcH/dstH
		srcY1 := srcImg.Bounds().Min.Y + (y1-dstRect.Min.Y)*srcH/dstH
		if srcY1 <= srcY0 {
			srcY1 = srcY0 + 1
		}
		srcStrip := image.Rect(srcImg.Bounds().Min.X, srcY0, srcImg.Bounds().Max.X, srcY1)
		eg.Go(func() error {
			scaler.Scale(s.img, strip, srcImg, srcStrip, draw.Over, opts)
			return nil
		})
	}
	_ = eg.Wait()
}

// compositeRotated draws src rotated by degrees around its own center and
// scaled, anchored so that its unrotated top-left corner would sit at
// (x, y) — spec.md §4.C's MID-band rotation rule. Unlike the axis-aligned
// scale path, a rotated destination footprint isn't a union of independent
// horizontal strips, so this runs as a single Transform call.
func (s *ImageSurface) compositeRotated(scaler xdraw.Interpolator, srcImg *image.RGBA, x, y int, degrees, scale float64, opts *xdraw.Options) {
	w, h := srcImg.Bounds().Dx(), srcImg.Bounds().Dy()
	cx0, cy0 := float64(w)/2, float64(h)/2
	cx, cy := float64(x)+cx0, float64(y)+cy0

	theta := degrees * math.Pi / 180
	sin, cos := math.Sincos(theta)
	m0, m1 := scale*cos, -scale*sin
	m3, m4 := scale*sin, scale*cos

	s2d := f64.Aff3{
		m0, m1, cx - m0*cx0 - m1*cy0,
		m3, m4, cy - m3*cx0 - m4*cy0,
	}
	scaler.Transform(s.img, s2d, srcImg, srcImg.Bounds(), draw.Over, opts)
}

// CopyRegion copies clip from src onto s using a source-copy operator.
func (s *ImageSurface) CopyRegion(src Surface, clip Rect) {
	c := clampRect(clip, s.w, s.h)
	if c.Empty() {
		return
	}
	other, ok := src.(*ImageSurface)
	if !ok {
		return
	}
	r := image.Rect(c.X, c.Y, c.X+c.W, c.Y+c.H)
	draw.Draw(s.img, r, other.img, r.Min, draw.Src)
}

func clampAlpha(a float64) byte {
	if a <= 0 {
		return 0
	}
	if a >= 1 {
		return 255
	}
	return byte(a * 255)
}

func clampRect(r Rect, w, h int) Rect {
	x0, y0 := max(r.X, 0), max(r.Y, 0)
	x1, y1 := min(r.X+r.W, w), min(r.Y+r.H, h)
	if x1 <= x0 || y1 <= y0 {
		return Rect{}
	}
	return Rect{X: x0, Y: y0, W: x1 - x0, H: y1 - y0}
}
