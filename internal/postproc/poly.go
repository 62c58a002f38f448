package postproc

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
)

const (
	numControlPoints = 5
	maxLenRatio      = 0.7
	expandRatio      = 1.45
	maxR             = 2.0
	stepR            = 0.2

	// minPolySide is the smallest box side, in score-map pixels, that is
	// worth fitting a polygon to.
	minPolySide = 10
)

// GetPolyCore fits a curved outline to every box. mapper[k] is the label of
// boxes[k] in labels. An entry is nil when the word is too small, too
// irregular, or the geometry cannot be solved; callers fall back to the box.
//
// Each polygon has 2*numControlPoints+4 points: the start edge top, the
// upper control points left to right, the end edge top and bottom, the
// lower control points right to left, and the start edge bottom.
func GetPolyCore(boxes []Box, labels *LabelMap, mapper []int32) []Polygon {
	polys := make([]Polygon, len(boxes))
	for k, box := range boxes {
		polys[k] = fitPolygon(box, labels, mapper[k])
	}
	return polys
}

// controlPoint is one column of a word's mask: its x and the first and last
// set rows.
type controlPoint struct {
	x, sy, ey int
}

func fitPolygon(box Box, labels *LabelMap, label int32) Polygon {
	w := int(dist(box[0], box[1]) + 1)
	h := int(dist(box[1], box[2]) + 1)
	if w < minPolySide || h < minPolySide {
		return nil
	}

	target := [4]Point{{0, 0}, {float64(w), 0}, {float64(w), float64(h)}, {0, float64(h)}}
	m, err := perspectiveTransform([4]Point(box), target)
	if err != nil {
		return nil
	}
	minv, err := invert(m)
	if err != nil {
		return nil
	}

	word := warpLabel(labels, minv, w, h, label)

	var cps []controlPoint
	maxLen := -1
	for x := 0; x < w; x++ {
		sy, ey, n := -1, -1, 0
		for y := 0; y < h; y++ {
			if word[y*w+x] {
				if sy < 0 {
					sy = y
				}
				ey = y
				n++
			}
		}
		if n < 2 {
			continue
		}
		cps = append(cps, controlPoint{x, sy, ey})
		maxLen = max(maxLen, ey-sy+1)
	}
	if float64(h)*maxLenRatio < float64(maxLen) {
		return nil
	}

	const totSeg = numControlPoints*2 + 1
	segW := float64(w) / totSeg

	var (
		pp        [numControlPoints]*Point
		sections  [totSeg]Point
		segHeight [numControlPoints]int
		segNum    int
		numSec    int
		prevH     = -1
	)
	for _, cp := range cps {
		if float64(segNum+1)*segW <= float64(cp.x) && segNum <= totSeg {
			if numSec == 0 {
				break
			}
			sections[segNum].X /= float64(numSec)
			sections[segNum].Y /= float64(numSec)
			numSec = 0
			segNum++
			prevH = -1
		}

		cy := float64(cp.sy+cp.ey) * 0.5
		curH := cp.ey - cp.sy + 1
		sections[segNum].X += float64(cp.x)
		sections[segNum].Y += cy
		numSec++

		if segNum%2 == 0 {
			continue
		}
		if prevH < curH {
			i := (segNum - 1) / 2
			pp[i] = &Point{float64(cp.x), cy}
			segHeight[i] = curH
			prevH = curH
		}
	}
	if numSec != 0 {
		sections[totSeg-1].X /= float64(numSec)
		sections[totSeg-1].Y /= float64(numSec)
	}

	maxHeight := 0
	for i := range pp {
		if pp[i] == nil {
			return nil
		}
		maxHeight = max(maxHeight, segHeight[i])
	}
	if segW < float64(maxHeight)*0.25 {
		return nil
	}

	halfCharH := median(segHeight[:]) * expandRatio / 2

	// newPP[i] holds the top (x, y) and bottom (x, y) of the control line
	// through pivot i, perpendicular to the local text direction.
	newPP := make([][4]float64, numControlPoints)
	for i, p := range pp {
		dx := sections[i*2+2].X - sections[i*2].X
		dy := sections[i*2+2].Y - sections[i*2].Y
		if dx == 0 {
			newPP[i] = [4]float64{p.X, p.Y - halfCharH, p.X, p.Y + halfCharH}
			continue
		}
		rad := -math.Atan2(dy, dx)
		c, s := halfCharH*math.Cos(rad), halfCharH*math.Sin(rad)
		newPP[i] = [4]float64{p.X - s, p.Y - c, p.X + s, p.Y + c}
	}

	n := numControlPoints
	gradS := (pp[1].Y-pp[0].Y)/(pp[1].X-pp[0].X) + (pp[2].Y-pp[1].Y)/(pp[2].X-pp[1].X)
	gradE := (pp[n-2].Y-pp[n-1].Y)/(pp[n-2].X-pp[n-1].X) + (pp[n-3].Y-pp[n-2].Y)/(pp[n-3].X-pp[n-2].X)

	var spp, epp [4]float64
	sppFound, eppFound := false, false
	for i := 0; ; i++ {
		r := 0.5 + float64(i)*stepR
		if r >= maxR {
			break
		}
		dx := 2 * halfCharH * r
		last := r+2*stepR >= maxR

		if !sppFound {
			dy := gradS * dx
			p := newPP[0]
			p = [4]float64{p[0] - dx, p[1] - dy, p[2] - dx, p[3] - dy}
			if last || !lineHits(word, w, h, p) {
				spp, sppFound = p, true
			}
		}
		if !eppFound {
			dy := gradE * dx
			p := newPP[n-1]
			p = [4]float64{p[0] + dx, p[1] + dy, p[2] + dx, p[3] + dy}
			if last || !lineHits(word, w, h, p) {
				epp, eppFound = p, true
			}
		}
		if sppFound && eppFound {
			break
		}
	}
	if !sppFound || !eppFound {
		return nil
	}

	poly := make(Polygon, 0, 2*n+4)
	add := func(x, y float64) {
		poly = append(poly, warpCoord(minv, Point{x, y}))
	}
	add(spp[0], spp[1])
	for _, p := range newPP {
		add(p[0], p[1])
	}
	add(epp[0], epp[1])
	add(epp[2], epp[3])
	for i := n - 1; i >= 0; i-- {
		add(newPP[i][2], newPP[i][3])
	}
	add(spp[2], spp[3])
	return poly
}

// warpLabel samples labels through the inverse homography minv into a
// w x h grid, keeping only pixels that carry label. Sampling is
// nearest-neighbour; points outside the map read as background.
func warpLabel(labels *LabelMap, minv *mat.Dense, w, h int, label int32) []bool {
	out := make([]bool, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			src := warpCoord(minv, Point{float64(x), float64(y)})
			if math.IsNaN(src.X) || math.IsNaN(src.Y) || math.IsInf(src.X, 0) || math.IsInf(src.Y, 0) {
				continue
			}
			sx := int(math.RoundToEven(src.X))
			sy := int(math.RoundToEven(src.Y))
			out[y*w+x] = labels.At(sx, sy) == label
		}
	}
	return out
}

// lineHits reports whether the segment from (p[0], p[1]) to (p[2], p[3])
// touches any set pixel of mask. Endpoints are truncated to integers.
func lineHits(mask []bool, w, h int, p [4]float64) bool {
	hit := false
	bresenham(int(p[0]), int(p[1]), int(p[2]), int(p[3]), func(x, y int) bool {
		if x >= 0 && y >= 0 && x < w && y < h && mask[y*w+x] {
			hit = true
			return false
		}
		return true
	})
	return hit
}

// bresenham walks the 8-connected line from (x0, y0) to (x1, y1) inclusive,
// stopping early when fn returns false.
func bresenham(x0, y0, x1, y1 int, fn func(x, y int) bool) {
	dx := abs(x1 - x0)
	dy := -abs(y1 - y0)
	sx, sy := 1, 1
	if x0 > x1 {
		sx = -1
	}
	if y0 > y1 {
		sy = -1
	}
	e := dx + dy
	for {
		if !fn(x0, y0) {
			return
		}
		if x0 == x1 && y0 == y1 {
			return
		}
		e2 := 2 * e
		if e2 >= dy {
			e += dy
			x0 += sx
		}
		if e2 <= dx {
			e += dx
			y0 += sy
		}
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func median(vals []int) float64 {
	s := append([]int(nil), vals...)
	sort.Ints(s)
	n := len(s)
	if n%2 == 1 {
		return float64(s[n/2])
	}
	return float64(s[n/2-1]+s[n/2]) / 2
}
