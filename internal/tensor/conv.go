package tensor

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas32"
)

// colBudget caps the number of float32 values in one im2col band.
const colBudget = 1 << 23

// Conv2d is a stride-1 two-dimensional convolution with square kernels.
//
// Weights use the PyTorch layout [OutC, InC, K, K], flattened so that each
// output channel is one row of an OutC x (InC*K*K) matrix.
type Conv2d struct {
	InC, OutC int
	K         int
	Pad       int
	Dilation  int
	Weight    []float32
	Bias      []float32
}

// NewConv2d validates the parameter sizes and returns a convolution. A nil
// bias is treated as zero.
func NewConv2d(inC, outC, k, pad, dilation int, weight, bias []float32) (*Conv2d, error) {
	if inC <= 0 || outC <= 0 || k <= 0 || dilation <= 0 || pad < 0 {
		return nil, fmt.Errorf("invalid conv geometry in=%d out=%d k=%d pad=%d dil=%d", inC, outC, k, pad, dilation)
	}
	if len(weight) != outC*inC*k*k {
		return nil, fmt.Errorf("conv weight has %d values, want %d", len(weight), outC*inC*k*k)
	}
	if bias == nil {
		bias = make([]float32, outC)
	}
	if len(bias) != outC {
		return nil, fmt.Errorf("conv bias has %d values, want %d", len(bias), outC)
	}

	w := make([]float32, len(weight))
	copy(w, weight)
	b := make([]float32, outC)
	copy(b, bias)

	return &Conv2d{
		InC:      inC,
		OutC:     outC,
		K:        k,
		Pad:      pad,
		Dilation: dilation,
		Weight:   w,
		Bias:     b,
	}, nil
}

// FoldBatchNorm merges an inference-mode batch normalization that follows
// the convolution into its weights and bias.
func (c *Conv2d) FoldBatchNorm(gamma, beta, mean, variance []float32, eps float64) error {
	for _, p := range [][]float32{gamma, beta, mean, variance} {
		if len(p) != c.OutC {
			return fmt.Errorf("batch norm has %d channels, conv has %d", len(p), c.OutC)
		}
	}

	row := c.InC * c.K * c.K
	for o := 0; o < c.OutC; o++ {
		scale := float32(float64(gamma[o]) / math.Sqrt(float64(variance[o])+eps))
		w := c.Weight[o*row : (o+1)*row]
		for i := range w {
			w[i] *= scale
		}
		c.Bias[o] = (c.Bias[o]-mean[o])*scale + beta[o]
	}
	return nil
}

// OutputSize returns the spatial size produced for an h x w input.
func (c *Conv2d) OutputSize(h, w int) (int, int) {
	span := c.Dilation * (c.K - 1)
	return h + 2*c.Pad - span, w + 2*c.Pad - span
}

// Forward applies the convolution to x.
func (c *Conv2d) Forward(x *Tensor) (*Tensor, error) {
	if x.C != c.InC {
		return nil, fmt.Errorf("conv expects %d input channels, got %v", c.InC, x)
	}
	outH, outW := c.OutputSize(x.H, x.W)
	if outH <= 0 || outW <= 0 {
		return nil, fmt.Errorf("input %v too small for %dx%d kernel", x, c.K, c.K)
	}

	out := New(c.OutC, outH, outW)
	plane := outH * outW
	for o := 0; o < c.OutC; o++ {
		b := c.Bias[o]
		ch := out.Data[o*plane : (o+1)*plane]
		for i := range ch {
			ch[i] = b
		}
	}

	rowLen := c.InC * c.K * c.K
	weights := blas32.General{Rows: c.OutC, Cols: rowLen, Stride: rowLen, Data: c.Weight}

	// 1x1 kernels read the input directly.
	if c.K == 1 && c.Pad == 0 {
		src := blas32.General{Rows: c.InC, Cols: plane, Stride: plane, Data: x.Data}
		dst := blas32.General{Rows: c.OutC, Cols: plane, Stride: plane, Data: out.Data}
		blas32.Gemm(blas.NoTrans, blas.NoTrans, 1, weights, src, 1, dst)
		return out, nil
	}

	band := colBudget / (rowLen * outW)
	if band < 1 {
		band = 1
	}
	if band > outH {
		band = outH
	}
	cols := make([]float32, rowLen*band*outW)

	for y0 := 0; y0 < outH; y0 += band {
		rows := band
		if y0+rows > outH {
			rows = outH - y0
		}
		n := rows * outW
		c.im2col(x, y0, rows, outW, cols[:rowLen*n])

		src := blas32.General{Rows: rowLen, Cols: n, Stride: n, Data: cols[:rowLen*n]}
		dst := blas32.General{Rows: c.OutC, Cols: n, Stride: plane, Data: out.Data[y0*outW:]}
		blas32.Gemm(blas.NoTrans, blas.NoTrans, 1, weights, src, 1, dst)
	}
	return out, nil
}

// im2col unrolls output rows [y0, y0+rows) into dst, one matrix row per
// (input channel, ky, kx) triple.
func (c *Conv2d) im2col(x *Tensor, y0, rows, outW int, dst []float32) {
	n := rows * outW
	r := 0
	for ci := 0; ci < c.InC; ci++ {
		in := x.Channel(ci)
		for ky := 0; ky < c.K; ky++ {
			for kx := 0; kx < c.K; kx++ {
				row := dst[r*n : (r+1)*n]
				r++
				dx := kx*c.Dilation - c.Pad
				for yy := 0; yy < rows; yy++ {
					seg := row[yy*outW : (yy+1)*outW]
					iy := y0 + yy + ky*c.Dilation - c.Pad
					if iy < 0 || iy >= x.H {
						for i := range seg {
							seg[i] = 0
						}
						continue
					}
					line := in[iy*x.W : (iy+1)*x.W]
					for ox := range seg {
						ix := ox + dx
						if ix < 0 || ix >= x.W {
							seg[ox] = 0
						} else {
							seg[ox] = line[ix]
						}
					}
				}
			}
		}
	}
}
