// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: Ryan Johnson

package vncgrab

import (
	"image"
	"sort"
)

// point is a corner location in mask coordinates, row first.
type point struct {
	y int
	x int
}

// rectKey identifies a candidate rectangle by its half-open extent.
type rectKey struct {
	x0, y0, x1, y1 int
}

// DetectScreens recovers axis-aligned screen rectangles from a coverage
// mask. A pixel belongs to a screen iff its mask value is exactly 255;
// anything else counts as never written.
//
// Corners are classified with 2x2 first-difference tests against a working
// copy of the mask (zero outside the bounds, so screens touching the edge
// still produce corners). Any three corners that pairwise align reconstruct
// a candidate rectangle, which tolerates one corner hidden by an adjacent
// screen. Candidates are ranked by Score and the best fully-covered one is
// accepted per round; its region is then cleared from the working mask so
// that nested or overlapping candidates cannot be re-detected, and the
// corner classification runs again. Clearing an accepted screen can expose
// corners of a neighbor that shares an edge, which is why classification is
// per round rather than up front. Detection stops at the first round that
// accepts nothing.
//
// The input mask is never modified. An empty or all-zero mask yields an
// empty result.
func DetectScreens(mask *image.Alpha) []Screen {
	if mask == nil {
		return nil
	}
	bounds := mask.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w == 0 || h == 0 {
		return nil
	}

	work := make([]uint8, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if mask.AlphaAt(bounds.Min.X+x, bounds.Min.Y+y).A == 0xFF {
				work[y*w+x] = 1
			}
		}
	}

	at := func(y, x int) uint8 {
		if y < 0 || y >= h || x < 0 || x >= w {
			return 0
		}
		return work[y*w+x]
	}

	var screens []Screen
	for {
		// Scan coordinates run one past the mask on both axes so that
		// right and bottom corner classes land on half-open extents.
		var tl, tr, bl, br []point
		for i := 0; i <= h; i++ {
			for j := 0; j <= w; j++ {
				a := at(i, j)
				b := at(i, j-1)
				c := at(i-1, j)
				d := at(i-1, j-1)
				if a == 1 && b == 0 && c == 0 {
					tl = append(tl, point{y: i, x: j})
				}
				if b == 1 && a == 0 && d == 0 {
					tr = append(tr, point{y: i, x: j})
				}
				if c == 1 && d == 0 && a == 0 {
					bl = append(bl, point{y: i, x: j})
				}
				if d == 1 && c == 0 && b == 0 {
					br = append(br, point{y: i, x: j})
				}
			}
		}

		rects := make(map[rectKey]struct{})
		for _, a := range tl {
			for _, b := range tr {
				ab := a.y == b.y && a.x < b.x // top edge
				for _, c := range bl {
					ac := a.x == c.x && a.y < c.y // left edge
					for _, d := range br {
						cd := c.y == d.y && c.x < d.x // bottom edge
						bd := b.x == d.x && b.y < d.y // right edge
						if ab && ac {
							rects[rectKey{a.x, a.y, b.x, c.y}] = struct{}{}
						}
						if ab && bd {
							rects[rectKey{a.x, a.y, d.x, d.y}] = struct{}{}
						}
						if cd && ac {
							rects[rectKey{a.x, a.y, d.x, d.y}] = struct{}{}
						}
						if cd && bd {
							rects[rectKey{c.x, b.y, d.x, d.y}] = struct{}{}
						}
					}
				}
			}
		}

		candidates := make([]Screen, 0, len(rects))
		for k := range rects {
			candidates = append(candidates, Screen{
				X:      k.x0,
				Y:      k.y0,
				Width:  k.x1 - k.x0,
				Height: k.y1 - k.y0,
			})
		}
		// Rank by score; position breaks ties so results are deterministic.
		sort.Slice(candidates, func(i, j int) bool {
			si, sj := candidates[i].Score(), candidates[j].Score()
			if si != sj {
				return si > sj
			}
			if candidates[i].Y != candidates[j].Y {
				return candidates[i].Y < candidates[j].Y
			}
			if candidates[i].X != candidates[j].X {
				return candidates[i].X < candidates[j].X
			}
			if candidates[i].Width != candidates[j].Width {
				return candidates[i].Width < candidates[j].Width
			}
			return candidates[i].Height < candidates[j].Height
		})

		accepted := false
		for _, s := range candidates {
			if !regionFilled(work, w, s) {
				continue
			}
			clearRegion(work, w, s)
			screens = append(screens, s)
			accepted = true
			break
		}
		if !accepted {
			return screens
		}
	}
}

// regionFilled reports whether every cell of the screen's region is set in
// the working mask.
func regionFilled(work []uint8, stride int, s Screen) bool {
	for y := s.Y; y < s.Y+s.Height; y++ {
		row := work[y*stride+s.X : y*stride+s.X+s.Width]
		for _, cell := range row {
			if cell == 0 {
				return false
			}
		}
	}
	return true
}

// clearRegion zeroes the screen's region in the working mask.
func clearRegion(work []uint8, stride int, s Screen) {
	for y := s.Y; y < s.Y+s.Height; y++ {
		row := work[y*stride+s.X : y*stride+s.X+s.Width]
		for i := range row {
			row[i] = 0
		}
	}
}
