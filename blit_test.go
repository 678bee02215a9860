// blit_test.go - ImageSurface fill/composite and rotation geometry tests

// Copyright (c) 2024-2026 the compositor contributors
// License: GPLv3 or later

package main

import "testing"

func solidBuffer(w, h int, argb uint32) *RGBABuffer {
	pix := make([]byte, w*h*4)
	a, r, g, b := byte(argb>>24), byte(argb>>16), byte(argb>>8), byte(argb)
	for i := 0; i < w*h; i++ {
		pix[i*4+0] = b
		pix[i*4+1] = g
		pix[i*4+2] = r
		pix[i*4+3] = a
	}
	return &RGBABuffer{Pix: pix, Width: w, Height: h}
}

func alphaAt(s *ImageSurface, x, y int) byte {
	if x < 0 || y < 0 || x >= s.w || y >= s.h {
		return 0
	}
	i := y*s.img.Stride + x*4
	return s.img.Pix[i+3]
}

func TestFillRectClampsToSurfaceBounds(t *testing.T) {
	s := NewImageSurface(10, 10)
	s.FillRect(Rect{X: -5, Y: -5, W: 10, H: 10}, 0xFFFFFFFF)

	if alphaAt(s, 0, 0) == 0 {
		t.Fatalf("fill should cover the clamped-in portion of the rect")
	}
}

func TestCompositeAffineUnrotatedCoversSourceFootprint(t *testing.T) {
	s := NewImageSurface(200, 200)
	src := solidBuffer(6, 40, 0xFFFFFFFF)

	s.CompositeAffine(src, 80, 20, 0, 1.0, 1.0, true)

	if alphaAt(s, 83, 55) == 0 {
		t.Fatalf("unrotated composite should cover its own vertical footprint at (83,55)")
	}
	if alphaAt(s, 110, 40) != 0 {
		t.Fatalf("unrotated composite should not bleed sideways to (110,40)")
	}
}

func TestCompositeAffineRotatesAroundCenter(t *testing.T) {
	s := NewImageSurface(200, 200)
	src := solidBuffer(6, 40, 0xFFFFFFFF)

	// Rotating a tall, narrow rectangle 90 degrees around its own center
	// turns it into a short, wide one: a point that was inside the
	// unrotated footprint should fall outside it, and a point that was
	// outside (to the side) should now fall inside.
	s.CompositeAffine(src, 80, 20, 90, 1.0, 1.0, true)

	if alphaAt(s, 83, 55) != 0 {
		t.Fatalf("after a 90-degree rotation, the unrotated footprint point (83,55) should no longer be covered")
	}
	if alphaAt(s, 100, 40) == 0 {
		t.Fatalf("after a 90-degree rotation, the rect should now extend sideways to cover (100,40)")
	}
}

func TestCompositeAffineZeroDegreesMatchesUnrotatedPath(t *testing.T) {
	a := NewImageSurface(200, 200)
	b := NewImageSurface(200, 200)
	src := solidBuffer(20, 20, 0xFFFFFFFF)

	a.CompositeAffine(src, 50, 50, 0, 1.0, 1.0, true)
	b.CompositeAffine(src, 50, 50, 360, 1.0, 1.0, true)

	// 360 degrees takes the rotated branch (degrees != 0) but should land
	// on the same footprint as the unrotated (degrees == 0) branch.
	if alphaAt(a, 55, 55) != alphaAt(b, 55, 55) {
		t.Fatalf("360-degree rotation should cover the same footprint as no rotation")
	}
}
