package craft

import (
	"fmt"

	"github.com/ironsheep/craft-text-detector/internal/checkpoint"
	"github.com/ironsheep/craft-text-detector/internal/tensor"
)

// bnEps matches the PyTorch BatchNorm2d default.
const bnEps = 1e-5

type layerKind int

const (
	convKind layerKind = iota
	poolKind
)

// layerSpec describes one step of a sequential block. Convolution names are
// the module indices used as parameter prefixes in the checkpoint.
type layerSpec struct {
	kind layerKind

	conv string
	bn   string
	in   int
	out  int
	k    int
	pad  int
	dil  int
	relu bool

	poolK      int
	poolStride int
	poolPad    int
}

// namedSeq is a sequential block and the parameter prefix it is stored under.
type namedSeq struct {
	prefix string
	layers []layerSpec
}

// convBN is a 3x3 same-padding convolution followed by batch norm and ReLU.
func convBN(conv, bn string, in, out int) layerSpec {
	return layerSpec{kind: convKind, conv: conv, bn: bn, in: in, out: out, k: 3, pad: 1, dil: 1, relu: true}
}

func conv(name string, in, out, k, pad, dil int, relu bool) layerSpec {
	return layerSpec{kind: convKind, conv: name, in: in, out: out, k: k, pad: pad, dil: dil, relu: relu}
}

func pool(k, stride, pad int) layerSpec {
	return layerSpec{kind: poolKind, poolK: k, poolStride: stride, poolPad: pad}
}

// layer is one built operator.
type layer interface {
	forward(x *tensor.Tensor) (*tensor.Tensor, error)
}

type convLayer struct {
	conv *tensor.Conv2d
	relu bool
}

func (l *convLayer) forward(x *tensor.Tensor) (*tensor.Tensor, error) {
	y, err := l.conv.Forward(x)
	if err != nil {
		return nil, err
	}
	if l.relu {
		tensor.ReLU(y)
	}
	return y, nil
}

type poolLayer struct {
	k, stride, pad int
}

func (l *poolLayer) forward(x *tensor.Tensor) (*tensor.Tensor, error) {
	return tensor.MaxPool2d(x, l.k, l.stride, l.pad)
}

type sequential []layer

func (s sequential) forward(x *tensor.Tensor) (*tensor.Tensor, error) {
	var err error
	for _, l := range s {
		if x, err = l.forward(x); err != nil {
			return nil, err
		}
	}
	return x, nil
}

// buildSeq binds the parameters of seq from sd.
func buildSeq(sd *checkpoint.StateDict, seq namedSeq) (sequential, error) {
	out := make(sequential, 0, len(seq.layers))
	for _, spec := range seq.layers {
		switch spec.kind {
		case poolKind:
			out = append(out, &poolLayer{k: spec.poolK, stride: spec.poolStride, pad: spec.poolPad})
		case convKind:
			c, err := loadConv(sd, seq.prefix, spec)
			if err != nil {
				return nil, err
			}
			out = append(out, &convLayer{conv: c, relu: spec.relu})
		}
	}
	return out, nil
}

func loadConv(sd *checkpoint.StateDict, prefix string, spec layerSpec) (*tensor.Conv2d, error) {
	name := prefix + spec.conv
	w, err := sd.Tensor(name+".weight", spec.out, spec.in, spec.k, spec.k)
	if err != nil {
		return nil, err
	}
	b, err := sd.Tensor(name+".bias", spec.out)
	if err != nil {
		return nil, err
	}

	c, err := tensor.NewConv2d(spec.in, spec.out, spec.k, spec.pad, spec.dil, w.Data, b.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to build %s: %w", name, err)
	}
	if spec.bn == "" {
		return c, nil
	}

	bn := prefix + spec.bn
	var params [4][]float32
	for i, suffix := range []string{".weight", ".bias", ".running_mean", ".running_var"} {
		t, err := sd.Tensor(bn+suffix, spec.out)
		if err != nil {
			return nil, err
		}
		params[i] = t.Data
	}
	if err := c.FoldBatchNorm(params[0], params[1], params[2], params[3], bnEps); err != nil {
		return nil, fmt.Errorf("failed to fold %s: %w", bn, err)
	}
	return c, nil
}

func buildAll(sd *checkpoint.StateDict, layout []namedSeq) (map[string]sequential, error) {
	built := make(map[string]sequential, len(layout))
	for _, seq := range layout {
		s, err := buildSeq(sd, seq)
		if err != nil {
			return nil, err
		}
		built[seq.prefix] = s
	}
	return built, nil
}
