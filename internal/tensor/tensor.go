package tensor

import "fmt"

// Tensor is a single-batch feature map stored channel-major: element
// (c, y, x) lives at Data[(c*H+y)*W+x].
type Tensor struct {
	C, H, W int
	Data    []float32
}

// New allocates a zeroed tensor.
func New(c, h, w int) *Tensor {
	return &Tensor{C: c, H: h, W: w, Data: make([]float32, c*h*w)}
}

// FromData wraps data without copying. It panics when the length does not
// match the dimensions.
func FromData(c, h, w int, data []float32) *Tensor {
	if len(data) != c*h*w {
		panic(fmt.Sprintf("tensor: %d values for %dx%dx%d", len(data), c, h, w))
	}
	return &Tensor{C: c, H: h, W: w, Data: data}
}

// Plane returns the number of elements in one channel.
func (t *Tensor) Plane() int {
	return t.H * t.W
}

// At returns element (c, y, x).
func (t *Tensor) At(c, y, x int) float32 {
	return t.Data[(c*t.H+y)*t.W+x]
}

// Set stores v at (c, y, x).
func (t *Tensor) Set(c, y, x int, v float32) {
	t.Data[(c*t.H+y)*t.W+x] = v
}

// Channel returns the backing slice of channel c.
func (t *Tensor) Channel(c int) []float32 {
	p := t.Plane()
	return t.Data[c*p : (c+1)*p]
}

// Clone returns a deep copy.
func (t *Tensor) Clone() *Tensor {
	out := New(t.C, t.H, t.W)
	copy(out.Data, t.Data)
	return out
}

// String describes the tensor shape.
func (t *Tensor) String() string {
	return fmt.Sprintf("Tensor[%d,%d,%d]", t.C, t.H, t.W)
}

// ReLU clamps negative values to zero in place and returns t.
func ReLU(t *Tensor) *Tensor {
	for i, v := range t.Data {
		if v < 0 {
			t.Data[i] = 0
		}
	}
	return t
}

// AddInPlace accumulates b into a. Shapes must match.
func AddInPlace(a, b *Tensor) error {
	if a.C != b.C || a.H != b.H || a.W != b.W {
		return fmt.Errorf("cannot add %v and %v", a, b)
	}
	for i, v := range b.Data {
		a.Data[i] += v
	}
	return nil
}

// Concat joins tensors along the channel axis. All inputs must share the
// same spatial size.
func Concat(ts ...*Tensor) (*Tensor, error) {
	if len(ts) == 0 {
		return nil, fmt.Errorf("concat of zero tensors")
	}
	h, w := ts[0].H, ts[0].W
	c := 0
	for _, t := range ts {
		if t.H != h || t.W != w {
			return nil, fmt.Errorf("cannot concat %v with %v", ts[0], t)
		}
		c += t.C
	}

	out := New(c, h, w)
	off := 0
	for _, t := range ts {
		off += copy(out.Data[off:], t.Data)
	}
	return out, nil
}

// ToHWC returns the data permuted from [C,H,W] to [H,W,C].
func ToHWC(t *Tensor) []float32 {
	out := make([]float32, len(t.Data))
	p := t.Plane()
	for c := 0; c < t.C; c++ {
		src := t.Data[c*p : (c+1)*p]
		for i, v := range src {
			out[i*t.C+c] = v
		}
	}
	return out
}

// FromHWC builds a CHW tensor from interleaved [H,W,C] data.
func FromHWC(h, w, c int, data []float32) (*Tensor, error) {
	if len(data) != h*w*c {
		return nil, fmt.Errorf("%d values for %dx%dx%d", len(data), h, w, c)
	}
	out := New(c, h, w)
	p := h * w
	for i := 0; i < p; i++ {
		for ch := 0; ch < c; ch++ {
			out.Data[ch*p+i] = data[i*c+ch]
		}
	}
	return out, nil
}
