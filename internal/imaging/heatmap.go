package imaging

import (
	"fmt"
	"image"
	"image/color"

	"github.com/anthonynsimon/bild/blend"
	"github.com/anthonynsimon/bild/transform"
	colorful "github.com/lucasb-eyer/go-colorful"
)

// ScoreMap is a single-channel float map stored row-major.
type ScoreMap struct {
	W, H int
	Data []float32
}

// NewScoreMap wraps data, checking its length.
func NewScoreMap(w, h int, data []float32) (ScoreMap, error) {
	if len(data) != w*h {
		return ScoreMap{}, fmt.Errorf("score map has %d values, want %dx%d", len(data), w, h)
	}
	return ScoreMap{W: w, H: h, Data: data}, nil
}

// At returns the value at (x, y).
func (m ScoreMap) At(x, y int) float32 {
	return m.Data[y*m.W+x]
}

// HStack places maps side by side. All maps must have the same height.
func HStack(maps ...ScoreMap) (ScoreMap, error) {
	if len(maps) == 0 {
		return ScoreMap{}, fmt.Errorf("nothing to stack")
	}
	h := maps[0].H
	w := 0
	for _, m := range maps {
		if m.H != h {
			return ScoreMap{}, fmt.Errorf("cannot stack maps of height %d and %d", h, m.H)
		}
		w += m.W
	}

	out := ScoreMap{W: w, H: h, Data: make([]float32, w*h)}
	for y := 0; y < h; y++ {
		off := y * w
		for _, m := range maps {
			off += copy(out.Data[off:], m.Data[y*m.W:(y+1)*m.W])
		}
	}
	return out, nil
}

// jetStops are the anchor colours of the JET colour map from 0 to 1.
var jetStops = []struct {
	pos float64
	c   colorful.Color
}{
	{0, colorful.Color{R: 0, G: 0, B: 0.5}},
	{0.125, colorful.Color{R: 0, G: 0, B: 1}},
	{0.375, colorful.Color{R: 0, G: 1, B: 1}},
	{0.625, colorful.Color{R: 1, G: 1, B: 0}},
	{0.875, colorful.Color{R: 1, G: 0, B: 0}},
	{1, colorful.Color{R: 0.5, G: 0, B: 0}},
}

// jetLUT maps an 8-bit level to its JET colour.
var jetLUT = buildJet()

func buildJet() [256]color.NRGBA {
	var lut [256]color.NRGBA
	for i := range lut {
		t := float64(i) / 255
		j := 1
		for j < len(jetStops)-1 && t > jetStops[j].pos {
			j++
		}
		lo, hi := jetStops[j-1], jetStops[j]
		c := lo.c.BlendRgb(hi.c, (t-lo.pos)/(hi.pos-lo.pos))
		r, g, b := c.Clamped().RGB255()
		lut[i] = color.NRGBA{R: r, G: g, B: b, A: 0xff}
	}
	return lut
}

// JetColor returns the JET colour of an 8-bit level.
func JetColor(level uint8) color.NRGBA {
	return jetLUT[level]
}

// Cvt2HeatmapImg renders a score map as a colour image: values are clipped
// to [0,1], quantised to 8 bits and mapped through JET, so 0 is dark blue
// and 1 is dark red.
func Cvt2HeatmapImg(m ScoreMap) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, m.W, m.H))
	for i, v := range m.Data {
		c := jetLUT[clip8(v*255)]
		p := img.Pix[i*4 : i*4+4]
		p[0], p[1], p[2], p[3] = c.R, c.G, c.B, c.A
	}
	return img
}

// Overlay stretches heat over base and blends it with the given opacity
// (0 keeps base, 1 shows only the heatmap).
func Overlay(base, heat image.Image, opacity float64) image.Image {
	b := base.Bounds()
	stretched := transform.Resize(heat, b.Dx(), b.Dy(), transform.Linear)
	return blend.Opacity(base, stretched, opacity)
}
