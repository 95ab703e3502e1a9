// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: Ryan Johnson

package vncgrab

import (
	"fmt"
	"image"
)

// Screen describes one detected physical screen within the framebuffer.
type Screen struct {
	// X is the horizontal position of the screen's left edge in pixels.
	X int

	// Y is the vertical position of the screen's top edge in pixels.
	Y int

	// Width is the screen width in pixels.
	Width int

	// Height is the screen height in pixels.
	Height int
}

// Bounds returns the screen's region as an image rectangle, suitable for
// cropping a captured frame with SubImage.
func (s Screen) Bounds() image.Rectangle {
	return image.Rect(s.X, s.Y, s.X+s.Width, s.Y+s.Height)
}

// String returns the screen geometry in X11 form, widthxheight+x+y.
func (s Screen) String() string {
	return fmt.Sprintf("%dx%d+%d+%d", s.Width, s.Height, s.X, s.Y)
}

// Score is a measure of confidence that this region is a real screen. For
// regions with a standard aspect ratio the score is the pixel area. For
// non-standard ratios the area is multiplied by half the ratio or half its
// reciprocal, whichever is smaller, so implausibly thin regions rank far
// below plausible ones of similar area.
func (s Screen) Score() float64 {
	value := float64(s.Width) * float64(s.Height)

	r1 := newFraction(int64(s.Width), int64(s.Height)).limitDenominator(aspectMaxDenominator)
	r2 := newFraction(int64(s.Height), int64(s.Width)).limitDenominator(aspectMaxDenominator)

	_, ok1 := screenRatios[r1]
	_, ok2 := screenRatios[r2]
	if !ok1 && !ok2 {
		m := r1
		if r2.less(r1) {
			m = r2
		}
		value *= m.float() * 0.5
	}
	return value
}

// aspectMaxDenominator bounds the rational approximation of an aspect ratio
// before it is compared against the standard set.
const aspectMaxDenominator = 64

// screenRatios holds the standard screen aspect ratios in reduced form.
var screenRatios = map[fraction]struct{}{
	newFraction(3, 2):   {},
	newFraction(4, 3):   {},
	newFraction(16, 10): {},
	newFraction(16, 9):  {},
	newFraction(32, 9):  {},
	newFraction(64, 27): {},
}

// fraction is an exact rational with positive numerator and denominator,
// kept in reduced form.
type fraction struct {
	num int64
	den int64
}

// newFraction reduces num/den. Both arguments must be positive.
func newFraction(num, den int64) fraction {
	g := gcd(num, den)
	return fraction{num: num / g, den: den / g}
}

// less reports whether f is numerically smaller than other.
func (f fraction) less(other fraction) bool {
	return f.num*other.den < other.num*f.den
}

// float returns the fraction as a float64.
func (f fraction) float() float64 {
	return float64(f.num) / float64(f.den)
}

// limitDenominator returns the closest fraction to f with a denominator of
// at most maxDen, using the continued fraction expansion. A tie between the
// two bounding approximants goes to the final principal convergent.
func (f fraction) limitDenominator(maxDen int64) fraction {
	if f.den <= maxDen {
		return f
	}

	p0, q0, p1, q1 := int64(0), int64(1), int64(1), int64(0)
	n, d := f.num, f.den
	for {
		a := n / d
		q2 := q0 + a*q1
		if q2 > maxDen {
			break
		}
		p0, q0, p1, q1 = p1, q1, p0+a*p1, q2
		n, d = d, n-a*d
	}

	k := (maxDen - q0) / q1
	bound1 := fraction{num: p0 + k*p1, den: q0 + k*q1}
	bound2 := fraction{num: p1, den: q1}

	// Compare |bound2 - f| against |bound1 - f| by cross multiplication.
	// All quantities fit int64 for framebuffer-scale inputs.
	diff2 := abs64(bound2.num*f.den - f.num*bound2.den)
	diff1 := abs64(bound1.num*f.den - f.num*bound1.den)
	if diff2*bound1.den*f.den <= diff1*bound2.den*f.den {
		return bound2
	}
	return bound1
}

func gcd(a, b int64) int64 {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
