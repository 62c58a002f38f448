package checkpoint

import (
	"fmt"
	"os"

	"github.com/nlpodyssey/gopickle/pytorch"
	"github.com/nlpodyssey/gopickle/types"
)

// wrapperKeys are the entries under which training scripts commonly nest
// the actual state dict.
var wrapperKeys = []string{"state_dict", "model", "net"}

// Load reads a PyTorch checkpoint file and returns its float parameters in
// file order. Integer buffers such as num_batches_tracked are skipped.
func Load(path string) (*StateDict, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("failed to stat checkpoint: %w", err)
	}

	obj, err := pytorch.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to unpickle checkpoint %s: %w", path, err)
	}

	od, ok := obj.(*types.OrderedDict)
	if !ok {
		return nil, fmt.Errorf("unsupported checkpoint root type %T", obj)
	}

	return fromOrderedDict(od)
}

func fromOrderedDict(od *types.OrderedDict) (*StateDict, error) {
	if inner := unwrap(od); inner != nil {
		od = inner
	}

	sd := NewStateDict()
	for e := od.List.Front(); e != nil; e = e.Next() {
		entry, ok := e.Value.(*types.OrderedDictEntry)
		if !ok {
			continue
		}
		name, ok := entry.Key.(string)
		if !ok {
			return nil, fmt.Errorf("unsupported state dict key type %T", entry.Key)
		}
		t, ok := entry.Value.(*pytorch.Tensor)
		if !ok {
			continue
		}
		data, ok := tensorData(t)
		if !ok {
			continue
		}
		sd.Set(name, NewTensor(data, t.Size...))
	}

	if sd.Len() == 0 {
		return nil, fmt.Errorf("checkpoint contains no float tensors")
	}
	return sd, nil
}

// unwrap returns the nested state dict when od is a training snapshot
// rather than a bare state dict.
func unwrap(od *types.OrderedDict) *types.OrderedDict {
	for e := od.List.Front(); e != nil; e = e.Next() {
		entry, ok := e.Value.(*types.OrderedDictEntry)
		if !ok {
			continue
		}
		key, _ := entry.Key.(string)
		for _, w := range wrapperKeys {
			if key != w {
				continue
			}
			if inner, ok := entry.Value.(*types.OrderedDict); ok {
				return inner
			}
		}
	}
	return nil
}

// tensorData copies the logical contents of t into a contiguous slice.
func tensorData(t *pytorch.Tensor) ([]float32, bool) {
	var src []float32
	switch s := t.Source.(type) {
	case *pytorch.FloatStorage:
		src = s.Data
	case *pytorch.HalfStorage:
		src = s.Data
	case *pytorch.DoubleStorage:
		src = make([]float32, len(s.Data))
		for i, v := range s.Data {
			src[i] = float32(v)
		}
	default:
		return nil, false
	}
	return gather(src, t.StorageOffset, t.Size, t.Stride), true
}

// gather reads a strided view out of a flat storage.
func gather(src []float32, offset int, size, stride []int) []float32 {
	n := numel(size)
	out := make([]float32, n)
	if n == 0 {
		return out
	}

	if isContiguous(size, stride) {
		copy(out, src[offset:offset+n])
		return out
	}

	idx := make([]int, len(size))
	for i := 0; i < n; i++ {
		pos := offset
		for d := range idx {
			pos += idx[d] * stride[d]
		}
		out[i] = src[pos]

		for d := len(idx) - 1; d >= 0; d-- {
			idx[d]++
			if idx[d] < size[d] {
				break
			}
			idx[d] = 0
		}
	}
	return out
}

func isContiguous(size, stride []int) bool {
	if len(stride) != len(size) {
		return len(size) == 0
	}
	expected := 1
	for d := len(size) - 1; d >= 0; d-- {
		if size[d] != 1 && stride[d] != expected {
			return false
		}
		expected *= size[d]
	}
	return true
}
