package imaging

import (
	"image"
	"image/color"
	"image/draw"
	"math"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"golang.org/x/image/vector"
)

var (
	// OutlineColor is the colour of detected polygons in result images.
	OutlineColor = color.NRGBA{R: 255, G: 0, B: 0, A: 255}

	labelColor  = color.NRGBA{R: 255, G: 255, B: 0, A: 255}
	shadowColor = color.NRGBA{R: 0, G: 0, B: 0, A: 255}
)

// DrawPolygon strokes the closed outline through pts onto dst.
//
// Each edge is rasterised as a quad of the given thickness. Points are in
// dst's coordinate space; parts outside the bounds are clipped.
func DrawPolygon(dst draw.Image, pts []image.Point, c color.Color, thickness float32) {
	if len(pts) < 2 {
		return
	}
	b := dst.Bounds()
	src := image.NewUniform(c)
	half := thickness / 2

	edges := len(pts)
	if edges == 2 {
		edges = 1
	}
	for i := 0; i < edges; i++ {
		strokeSegment(dst, b, src, pts[i], pts[(i+1)%len(pts)], half)
	}
}

func strokeSegment(dst draw.Image, b image.Rectangle, src image.Image, p0, p1 image.Point, half float32) {
	x0, y0 := float32(p0.X-b.Min.X)+0.5, float32(p0.Y-b.Min.Y)+0.5
	x1, y1 := float32(p1.X-b.Min.X)+0.5, float32(p1.Y-b.Min.Y)+0.5

	dx, dy := x1-x0, y1-y0
	length := float32(math.Hypot(float64(dx), float64(dy)))
	var ux, uy float32
	if length == 0 {
		ux, uy = 1, 0
	} else {
		ux, uy = dx/length, dy/length
	}
	// Extend along the edge so neighbouring segments meet at corners.
	x0, y0 = x0-ux*half, y0-uy*half
	x1, y1 = x1+ux*half, y1+uy*half
	nx, ny := -uy*half, ux*half

	r := vector.NewRasterizer(b.Dx(), b.Dy())
	r.DrawOp = draw.Over
	r.MoveTo(x0+nx, y0+ny)
	r.LineTo(x1+nx, y1+ny)
	r.LineTo(x1-nx, y1-ny)
	r.LineTo(x0-nx, y0-ny)
	r.ClosePath()
	r.Draw(dst, b, src, image.Point{})
}

// DrawLabel writes text with its baseline at the given point, in yellow over
// a one pixel black shadow.
func DrawLabel(dst draw.Image, at image.Point, text string) {
	if text == "" {
		return
	}
	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(shadowColor),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(at.X+1, at.Y+1),
	}
	d.DrawString(text)

	d.Src = image.NewUniform(labelColor)
	d.Dot = fixed.P(at.X, at.Y)
	d.DrawString(text)
}
