package checkpoint

import (
	"errors"
	"reflect"
	"testing"
)

func newTestDict(keys ...string) *StateDict {
	sd := NewStateDict()
	for i, k := range keys {
		sd.Set(k, NewTensor([]float32{float32(i)}, 1))
	}
	return sd
}

func TestCopyStateDict_StripsModulePrefix(t *testing.T) {
	sd := newTestDict(
		"module.basenet.slice1.0.weight",
		"module.basenet.slice1.0.bias",
		"module.conv_cls.8.weight",
	)

	out := CopyStateDict(sd)

	want := []string{
		"basenet.slice1.0.weight",
		"basenet.slice1.0.bias",
		"conv_cls.8.weight",
	}
	if got := out.Keys(); !reflect.DeepEqual(got, want) {
		t.Errorf("Keys() = %v, want %v", got, want)
	}

	// Tensors are shared with the source dict
	a, _ := sd.Get("module.conv_cls.8.weight")
	b, _ := out.Get("conv_cls.8.weight")
	if a != b {
		t.Error("CopyStateDict should not clone tensors")
	}
}

func TestCopyStateDict_KeepsPlainKeys(t *testing.T) {
	sd := newTestDict("basenet.slice1.0.weight", "upconv1.conv.0.weight")

	out := CopyStateDict(sd)

	if got := out.Keys(); !reflect.DeepEqual(got, sd.Keys()) {
		t.Errorf("Keys() = %v, want %v", got, sd.Keys())
	}
}

func TestCopyStateDict_DecidesFromFirstKey(t *testing.T) {
	// Only the first key is inspected; every key loses its first component.
	sd := newTestDict("module.a.weight", "b.weight")
	out := CopyStateDict(sd)

	want := []string{"a.weight", "weight"}
	if got := out.Keys(); !reflect.DeepEqual(got, want) {
		t.Errorf("Keys() = %v, want %v", got, want)
	}

	// And a later prefixed key is left alone when the first is plain.
	sd = newTestDict("a.weight", "module.b.weight")
	out = CopyStateDict(sd)
	if got := out.Keys(); !reflect.DeepEqual(got, sd.Keys()) {
		t.Errorf("Keys() = %v, want %v", got, sd.Keys())
	}
}

func TestCopyStateDict_Empty(t *testing.T) {
	out := CopyStateDict(NewStateDict())
	if out.Len() != 0 {
		t.Errorf("Len() = %d, want 0", out.Len())
	}
}

func TestStateDict_Tensor(t *testing.T) {
	sd := NewStateDict()
	sd.Set("w", NewTensor(make([]float32, 6), 2, 3))

	if _, err := sd.Tensor("w", 2, 3); err != nil {
		t.Errorf("Tensor(w, 2, 3) unexpected error: %v", err)
	}
	if _, err := sd.Tensor("w"); err != nil {
		t.Errorf("Tensor(w) without shape unexpected error: %v", err)
	}

	_, err := sd.Tensor("w", 3, 2)
	if !errors.Is(err, ErrShapeMismatch) {
		t.Errorf("expected ErrShapeMismatch, got %v", err)
	}

	_, err = sd.Tensor("missing")
	if !errors.Is(err, ErrMissingTensor) {
		t.Errorf("expected ErrMissingTensor, got %v", err)
	}
}

func TestStateDict_SetKeepsOrder(t *testing.T) {
	sd := newTestDict("a", "b", "c")
	sd.Set("b", NewTensor([]float32{9}, 1))

	if got := sd.Keys(); !reflect.DeepEqual(got, []string{"a", "b", "c"}) {
		t.Errorf("Keys() = %v", got)
	}
	b, _ := sd.Get("b")
	if b.Data[0] != 9 {
		t.Errorf("replaced tensor value = %v, want 9", b.Data[0])
	}
}

func TestNewTensor_PanicsOnBadShape(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic for mismatched shape")
		}
	}()
	NewTensor(make([]float32, 5), 2, 3)
}

func TestGather(t *testing.T) {
	src := []float32{0, 1, 2, 3, 4, 5, 6, 7}

	tests := []struct {
		name   string
		offset int
		size   []int
		stride []int
		want   []float32
	}{
		{"contiguous", 0, []int{2, 3}, []int{3, 1}, []float32{0, 1, 2, 3, 4, 5}},
		{"offset", 2, []int{3}, []int{1}, []float32{2, 3, 4}},
		{"transposed", 0, []int{3, 2}, []int{1, 3}, []float32{0, 3, 1, 4, 2, 5}},
		{"scalar", 7, []int{}, []int{}, []float32{7}},
		{"singleton dims", 1, []int{1, 2, 1}, []int{99, 1, 42}, []float32{1, 2}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := gather(src, tt.offset, tt.size, tt.stride)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("gather() = %v, want %v", got, tt.want)
			}
		})
	}
}
