package checkpoint

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrMissingTensor is returned when a required parameter is absent.
	ErrMissingTensor = errors.New("tensor not found in state dict")

	// ErrShapeMismatch is returned when a parameter has an unexpected shape.
	ErrShapeMismatch = errors.New("tensor shape mismatch")
)

// Tensor is a dense row-major float32 array.
type Tensor struct {
	Shape []int
	Data  []float32
}

// NewTensor wraps data with the given shape. It panics if the element
// count does not match the shape.
func NewTensor(data []float32, shape ...int) *Tensor {
	if n := numel(shape); n != len(data) {
		panic(fmt.Sprintf("checkpoint: %d values for shape %v (%d)", len(data), shape, n))
	}
	return &Tensor{Shape: append([]int(nil), shape...), Data: data}
}

// Len returns the number of elements.
func (t *Tensor) Len() int {
	return len(t.Data)
}

func numel(shape []int) int {
	n := 1
	for _, d := range shape {
		n *= d
	}
	return n
}

func sameShape(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// StateDict is an insertion-ordered mapping of parameter names to tensors.
type StateDict struct {
	keys    []string
	tensors map[string]*Tensor
}

// NewStateDict creates an empty state dict.
func NewStateDict() *StateDict {
	return &StateDict{tensors: make(map[string]*Tensor)}
}

// Set stores t under name. A new name is appended to the key order; an
// existing name keeps its position.
func (sd *StateDict) Set(name string, t *Tensor) {
	if _, ok := sd.tensors[name]; !ok {
		sd.keys = append(sd.keys, name)
	}
	sd.tensors[name] = t
}

// Get returns the tensor stored under name.
func (sd *StateDict) Get(name string) (*Tensor, bool) {
	t, ok := sd.tensors[name]
	return t, ok
}

// Keys returns the parameter names in insertion order.
func (sd *StateDict) Keys() []string {
	return append([]string(nil), sd.keys...)
}

// Len returns the number of parameters.
func (sd *StateDict) Len() int {
	return len(sd.keys)
}

// Tensor returns the parameter called name, checking its shape when one is
// given. Errors wrap ErrMissingTensor or ErrShapeMismatch.
func (sd *StateDict) Tensor(name string, shape ...int) (*Tensor, error) {
	t, ok := sd.tensors[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMissingTensor, name)
	}
	if len(shape) > 0 && !sameShape(t.Shape, shape) {
		return nil, fmt.Errorf("%w: %s has shape %v, want %v", ErrShapeMismatch, name, t.Shape, shape)
	}
	return t, nil
}

// CopyStateDict returns a copy of sd with the distributed-training prefix
// removed. When the first key starts with "module", the leading
// dot-separated component is dropped from every key; otherwise keys are
// copied unchanged. Tensors are shared, not cloned.
func CopyStateDict(sd *StateDict) *StateDict {
	start := 0
	if len(sd.keys) > 0 && strings.HasPrefix(sd.keys[0], "module") {
		start = 1
	}

	out := NewStateDict()
	for _, k := range sd.keys {
		parts := strings.Split(k, ".")
		out.Set(strings.Join(parts[start:], "."), sd.tensors[k])
	}
	return out
}
