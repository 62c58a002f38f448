package imaging

import (
	"fmt"
	"image"

	"github.com/ironsheep/craft-text-detector/internal/tensor"
)

// ImageNet channel statistics in RGB order.
var (
	meanRGB     = [3]float32{0.485, 0.456, 0.406}
	varianceRGB = [3]float32{0.229, 0.224, 0.225}
)

// NormalizeMeanVariance converts an RGB image into a CHW tensor with each
// channel shifted by its mean and divided by its deviation, both scaled to
// the 0-255 range.
func NormalizeMeanVariance(img *image.NRGBA) *tensor.Tensor {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	out := tensor.New(3, h, w)
	plane := w * h

	var mean, scale [3]float32
	for c := 0; c < 3; c++ {
		mean[c] = meanRGB[c] * 255
		scale[c] = 1 / (varianceRGB[c] * 255)
	}

	for y := 0; y < h; y++ {
		row := img.Pix[y*img.Stride : y*img.Stride+w*4]
		for x := 0; x < w; x++ {
			i := y*w + x
			for c := 0; c < 3; c++ {
				out.Data[c*plane+i] = (float32(row[x*4+c]) - mean[c]) * scale[c]
			}
		}
	}
	return out
}

// DenormalizeMeanVariance inverts NormalizeMeanVariance, clipping to 0-255.
func DenormalizeMeanVariance(t *tensor.Tensor) (*image.NRGBA, error) {
	if t.C != 3 {
		return nil, fmt.Errorf("expected 3 channels, got %v", t)
	}
	img := image.NewNRGBA(image.Rect(0, 0, t.W, t.H))
	plane := t.Plane()
	for i := 0; i < plane; i++ {
		for c := 0; c < 3; c++ {
			v := t.Data[c*plane+i]*varianceRGB[c]*255 + meanRGB[c]*255
			img.Pix[i*4+c] = clip8(v)
		}
		img.Pix[i*4+3] = 0xff
	}
	return img, nil
}

func clip8(v float32) uint8 {
	switch {
	case v <= 0:
		return 0
	case v >= 255:
		return 255
	}
	return uint8(v)
}
