package postproc

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
)

// Point is a 2-D coordinate in score-map or image pixels.
type Point struct {
	X, Y float64
}

// Box is a quadrilateral whose first corner has the smallest X+Y and whose
// corners follow clockwise on screen (top-left, top-right, bottom-right,
// bottom-left for an upright box).
type Box [4]Point

// Polygon is a closed outline. A nil Polygon means no polygon could be
// fitted.
type Polygon []Point

func dist(a, b Point) float64 {
	return math.Hypot(a.X-b.X, a.Y-b.Y)
}

type ipoint struct {
	x, y int
}

func cross(o, a, b ipoint) int {
	return (a.x-o.x)*(b.y-o.y) - (a.y-o.y)*(b.x-o.x)
}

// convexHull returns the hull of pts in counter-clockwise order (with the Y
// axis pointing up) without collinear points.
func convexHull(pts []ipoint) []ipoint {
	ps := append([]ipoint(nil), pts...)
	sort.Slice(ps, func(i, j int) bool {
		if ps[i].x != ps[j].x {
			return ps[i].x < ps[j].x
		}
		return ps[i].y < ps[j].y
	})

	// dedupe
	uniq := ps[:0]
	for i, p := range ps {
		if i == 0 || p != ps[i-1] {
			uniq = append(uniq, p)
		}
	}
	ps = uniq
	if len(ps) < 3 {
		return ps
	}

	hull := make([]ipoint, 0, 2*len(ps))
	for _, p := range ps {
		for len(hull) >= 2 && cross(hull[len(hull)-2], hull[len(hull)-1], p) <= 0 {
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, p)
	}
	lower := len(hull) + 1
	for i := len(ps) - 2; i >= 0; i-- {
		p := ps[i]
		for len(hull) >= lower && cross(hull[len(hull)-2], hull[len(hull)-1], p) <= 0 {
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, p)
	}
	return hull[:len(hull)-1]
}

// minAreaRect returns the corners of the smallest-area rectangle enclosing
// pts. Corners are ordered clockwise on screen.
func minAreaRect(pts []ipoint) [4]Point {
	hull := convexHull(pts)
	switch len(hull) {
	case 0:
		return [4]Point{}
	case 1:
		p := Point{float64(hull[0].x), float64(hull[0].y)}
		return [4]Point{p, p, p, p}
	}

	bestArea := math.Inf(1)
	var best [4]Point
	n := len(hull)
	for i := 0; i < n; i++ {
		a, b := hull[i], hull[(i+1)%n]
		ex, ey := float64(b.x-a.x), float64(b.y-a.y)
		l := math.Hypot(ex, ey)
		if l == 0 {
			continue
		}
		ux, uy := ex/l, ey/l
		// normal
		vx, vy := -uy, ux

		minU, maxU := math.Inf(1), math.Inf(-1)
		minV, maxV := math.Inf(1), math.Inf(-1)
		for _, p := range hull {
			px, py := float64(p.x-a.x), float64(p.y-a.y)
			u := px*ux + py*uy
			v := px*vx + py*vy
			minU, maxU = math.Min(minU, u), math.Max(maxU, u)
			minV, maxV = math.Min(minV, v), math.Max(maxV, v)
		}

		area := (maxU - minU) * (maxV - minV)
		if area < bestArea {
			bestArea = area
			ax, ay := float64(a.x), float64(a.y)
			corner := func(u, v float64) Point {
				return Point{ax + u*ux + v*vx, ay + u*uy + v*vy}
			}
			best = [4]Point{
				corner(minU, minV),
				corner(maxU, minV),
				corner(maxU, maxV),
				corner(minU, maxV),
			}
		}
	}
	return clockwise(best)
}

// clockwise orders a rectangle's corners clockwise as seen on screen, where
// the Y axis points down.
func clockwise(c [4]Point) [4]Point {
	area := 0.0
	for i := range c {
		j := (i + 1) % 4
		area += c[i].X*c[j].Y - c[j].X*c[i].Y
	}
	if area < 0 {
		c[1], c[3] = c[3], c[1]
	}
	return c
}

// startAtTopLeft rotates the corner order so the corner with the smallest
// X+Y comes first. Ties go to the smaller X.
func startAtTopLeft(c [4]Point) Box {
	start := 0
	for i := 1; i < 4; i++ {
		si, ss := c[i].X+c[i].Y, c[start].X+c[start].Y
		if si < ss || (si == ss && c[i].X < c[start].X) {
			start = i
		}
	}
	var b Box
	for i := range b {
		b[i] = c[(start+i)%4]
	}
	return b
}

// perspectiveTransform returns the 3x3 homography mapping src onto dst.
func perspectiveTransform(src, dst [4]Point) (*mat.Dense, error) {
	a := mat.NewDense(8, 8, nil)
	b := mat.NewVecDense(8, nil)
	for i := 0; i < 4; i++ {
		x, y := src[i].X, src[i].Y
		u, v := dst[i].X, dst[i].Y
		a.SetRow(i, []float64{x, y, 1, 0, 0, 0, -x * u, -y * u})
		a.SetRow(i+4, []float64{0, 0, 0, x, y, 1, -x * v, -y * v})
		b.SetVec(i, u)
		b.SetVec(i+4, v)
	}

	var sol mat.VecDense
	if err := sol.SolveVec(a, b); err != nil {
		return nil, fmt.Errorf("failed to solve perspective transform: %w", err)
	}

	m := make([]float64, 9)
	for i := 0; i < 8; i++ {
		m[i] = sol.AtVec(i)
	}
	m[8] = 1
	return mat.NewDense(3, 3, m), nil
}

// invert returns the inverse of a homography.
func invert(m *mat.Dense) (*mat.Dense, error) {
	var inv mat.Dense
	if err := inv.Inverse(m); err != nil {
		return nil, fmt.Errorf("failed to invert transform: %w", err)
	}
	return &inv, nil
}

// warpCoord applies homography m to p.
func warpCoord(m *mat.Dense, p Point) Point {
	x := m.At(0, 0)*p.X + m.At(0, 1)*p.Y + m.At(0, 2)
	y := m.At(1, 0)*p.X + m.At(1, 1)*p.Y + m.At(1, 2)
	w := m.At(2, 0)*p.X + m.At(2, 1)*p.Y + m.At(2, 2)
	return Point{x / w, y / w}
}
