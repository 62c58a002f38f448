package tensor

import (
	"fmt"
	"math"
)

// MaxPool2d applies max pooling with a square window. Padded positions are
// treated as negative infinity and output sizes are floored.
func MaxPool2d(x *Tensor, k, stride, pad int) (*Tensor, error) {
	if k <= 0 || stride <= 0 || pad < 0 {
		return nil, fmt.Errorf("invalid pool geometry k=%d stride=%d pad=%d", k, stride, pad)
	}
	outH := (x.H+2*pad-k)/stride + 1
	outW := (x.W+2*pad-k)/stride + 1
	if outH <= 0 || outW <= 0 {
		return nil, fmt.Errorf("input %v too small for %dx%d pool", x, k, k)
	}

	out := New(x.C, outH, outW)
	negInf := float32(math.Inf(-1))
	for c := 0; c < x.C; c++ {
		in := x.Channel(c)
		dst := out.Channel(c)
		for oy := 0; oy < outH; oy++ {
			for ox := 0; ox < outW; ox++ {
				best := negInf
				for ky := 0; ky < k; ky++ {
					iy := oy*stride + ky - pad
					if iy < 0 || iy >= x.H {
						continue
					}
					for kx := 0; kx < k; kx++ {
						ix := ox*stride + kx - pad
						if ix < 0 || ix >= x.W {
							continue
						}
						if v := in[iy*x.W+ix]; v > best {
							best = v
						}
					}
				}
				dst[oy*outW+ox] = best
			}
		}
	}
	return out, nil
}

// ResizeBilinear resamples every channel to h x w using bilinear
// interpolation with half-pixel centres (align_corners=false).
func ResizeBilinear(x *Tensor, h, w int) (*Tensor, error) {
	if h <= 0 || w <= 0 {
		return nil, fmt.Errorf("invalid resize target %dx%d", w, h)
	}
	if h == x.H && w == x.W {
		return x.Clone(), nil
	}

	ys := axisWeights(x.H, h)
	xs := axisWeights(x.W, w)

	out := New(x.C, h, w)
	for c := 0; c < x.C; c++ {
		in := x.Channel(c)
		dst := out.Channel(c)
		for oy, ay := range ys {
			r0 := in[ay.i0*x.W : (ay.i0+1)*x.W]
			r1 := in[ay.i1*x.W : (ay.i1+1)*x.W]
			for ox, ax := range xs {
				top := ax.w0*r0[ax.i0] + ax.w1*r0[ax.i1]
				bot := ax.w0*r1[ax.i0] + ax.w1*r1[ax.i1]
				dst[oy*w+ox] = ay.w0*top + ay.w1*bot
			}
		}
	}
	return out, nil
}

type lerp struct {
	i0, i1 int
	w0, w1 float32
}

func axisWeights(in, out int) []lerp {
	scale := float32(in) / float32(out)
	ws := make([]lerp, out)
	for d := range ws {
		src := (float32(d)+0.5)*scale - 0.5
		if src < 0 {
			src = 0
		}
		i0 := int(src)
		if i0 > in-1 {
			i0 = in - 1
		}
		i1 := i0
		if i0 < in-1 {
			i1 = i0 + 1
		}
		l1 := src - float32(i0)
		ws[d] = lerp{i0: i0, i1: i1, w0: 1 - l1, w1: l1}
	}
	return ws
}
