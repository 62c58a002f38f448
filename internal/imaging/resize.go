package imaging

import (
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/disintegration/imaging"
	xdraw "golang.org/x/image/draw"
)

// ResizeResult is an image scaled for the detector.
type ResizeResult struct {
	// Canvas is the resized image padded with black on the right and bottom
	// so both sides are multiples of 32.
	Canvas *image.NRGBA

	// Ratio is the scale applied to the source: resized = source * Ratio.
	Ratio float64

	// Heatmap is the size of the score maps the detector produces for
	// Canvas (half of each padded side).
	Heatmap image.Point
}

// ResizeAspectRatio scales img so that its longer side becomes
// magRatio times its current length, capped at squareSize, then pads it.
//
// Parameters:
//   - img: Source RGB image.
//   - squareSize: Maximum length of the longer side after scaling.
//   - magRatio: Magnification applied before the cap.
//
// Returns:
//   - *ResizeResult: The padded canvas, the applied ratio and the heatmap size.
//   - error: Non-nil for an empty image or non-positive parameters.
//
// Shrinking samples bilinearly between the two nearest source pixels
// without widening the filter. The scaled size is truncated, not rounded: an 800x600 image with
// magRatio 1.5 and squareSize 1280 becomes 1200x900 and is padded to
// 1216x928.
func ResizeAspectRatio(img image.Image, squareSize int, magRatio float64) (*ResizeResult, error) {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("cannot resize empty image")
	}
	if squareSize <= 0 || magRatio <= 0 {
		return nil, fmt.Errorf("invalid resize parameters: canvas %d, mag ratio %g", squareSize, magRatio)
	}

	longest := float64(max(w, h))
	target := magRatio * longest
	if target > float64(squareSize) {
		target = float64(squareSize)
	}
	ratio := target / longest

	tw := max(int(float64(w)*ratio), 1)
	th := max(int(float64(h)*ratio), 1)
	var resized image.Image
	if ratio < 1 {
		// imaging widens its filter when shrinking; the detector was trained
		// on plain two-tap bilinear samples.
		dst := image.NewNRGBA(image.Rect(0, 0, tw, th))
		xdraw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, b, xdraw.Src, nil)
		resized = dst
	} else {
		resized = imaging.Resize(img, tw, th, imaging.Linear)
	}

	w32, h32 := padTo32(tw), padTo32(th)
	canvas := imaging.New(w32, h32, color.NRGBA{0, 0, 0, 255})
	canvas = imaging.Paste(canvas, resized, image.Pt(0, 0))

	return &ResizeResult{
		Canvas:  canvas,
		Ratio:   ratio,
		Heatmap: image.Pt(w32/2, h32/2),
	}, nil
}

func padTo32(n int) int {
	if r := n % 32; r != 0 {
		return n + 32 - r
	}
	return n
}

// ScaleToFit returns img resized so its longer side is at most maxSide,
// preserving aspect ratio. Images already within bounds are returned as is.
func ScaleToFit(img image.Image, maxSide int) image.Image {
	b := img.Bounds()
	longest := max(b.Dx(), b.Dy())
	if maxSide <= 0 || longest <= maxSide {
		return img
	}
	scale := float64(maxSide) / float64(longest)
	w := int(math.Round(float64(b.Dx()) * scale))
	h := int(math.Round(float64(b.Dy()) * scale))
	return imaging.Resize(img, max(w, 1), max(h, 1), imaging.Lanczos)
}
