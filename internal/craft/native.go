package craft

import (
	"context"
	"fmt"

	"github.com/ironsheep/craft-text-detector/internal/checkpoint"
	"github.com/ironsheep/craft-text-detector/internal/tensor"
)

// featureChannels is the width of the shared feature map handed to the
// refiner.
const featureChannels = 32

// craftLayout lists every parameterised block of CRAFT in forward order.
//
// The backbone is VGG16 with batch norm, cut into five slices that keep the
// original feature indices. Each of the first four slices ends on a batch
// norm in the checkpoint. For slices 1 to 3 the ReLU that opens the
// following slice runs in place, so the activation kept for the skip
// connection is rectified; that ReLU is folded into the slice here. Slice 5
// opens with a pool instead, so the output of slice 4 stays unrectified.
func craftLayout() []namedSeq {
	return []namedSeq{
		{"basenet.slice1.", []layerSpec{
			convBN("0", "1", 3, 64),
			convBN("3", "4", 64, 64),
			pool(2, 2, 0),
			convBN("7", "8", 64, 128),
			convBN("10", "11", 128, 128),
		}},
		{"basenet.slice2.", []layerSpec{
			pool(2, 2, 0),
			convBN("14", "15", 128, 256),
			convBN("17", "18", 256, 256),
		}},
		{"basenet.slice3.", []layerSpec{
			convBN("20", "21", 256, 256),
			pool(2, 2, 0),
			convBN("24", "25", 256, 512),
			convBN("27", "28", 512, 512),
		}},
		{"basenet.slice4.", []layerSpec{
			convBN("30", "31", 512, 512),
			pool(2, 2, 0),
			convBN("34", "35", 512, 512),
			{kind: convKind, conv: "37", bn: "38", in: 512, out: 512, k: 3, pad: 1, dil: 1},
		}},
		{"basenet.slice5.", []layerSpec{
			pool(3, 1, 1),
			conv("1", 512, 1024, 3, 6, 6, false),
			conv("2", 1024, 1024, 1, 0, 1, false),
		}},
		doubleConv("upconv1.conv.", 1024, 512, 256),
		doubleConv("upconv2.conv.", 512, 256, 128),
		doubleConv("upconv3.conv.", 256, 128, 64),
		doubleConv("upconv4.conv.", 128, 64, featureChannels),
		{"conv_cls.", []layerSpec{
			conv("0", 32, 32, 3, 1, 1, true),
			conv("2", 32, 32, 3, 1, 1, true),
			conv("4", 32, 16, 3, 1, 1, true),
			conv("6", 16, 16, 1, 0, 1, true),
			conv("8", 16, 2, 1, 0, 1, false),
		}},
	}
}

// doubleConv is the up-sampling block: a 1x1 reduction of the concatenated
// skip connection followed by a 3x3 convolution.
func doubleConv(prefix string, in, mid, out int) namedSeq {
	return namedSeq{prefix, []layerSpec{
		{kind: convKind, conv: "0", bn: "1", in: in + mid, out: mid, k: 1, pad: 0, dil: 1, relu: true},
		convBN("3", "4", mid, out),
	}}
}

// NativeNet evaluates CRAFT on the CPU from checkpoint weights.
type NativeNet struct {
	slices  [5]sequential
	upconv  [4]sequential
	convCls sequential
}

// NewNativeNet binds a key-remapped CRAFT state dict.
func NewNativeNet(sd *checkpoint.StateDict) (*NativeNet, error) {
	built, err := buildAll(sd, craftLayout())
	if err != nil {
		return nil, fmt.Errorf("failed to build detector: %w", err)
	}

	n := &NativeNet{convCls: built["conv_cls."]}
	for i := range n.slices {
		n.slices[i] = built[fmt.Sprintf("basenet.slice%d.", i+1)]
	}
	for i := range n.upconv {
		n.upconv[i] = built[fmt.Sprintf("upconv%d.conv.", i+1)]
	}
	return n, nil
}

// Forward runs the detector on a normalised 3-channel image whose sides are
// multiples of 32.
func (n *NativeNet) Forward(ctx context.Context, x *tensor.Tensor) (*Output, error) {
	if x.C != 3 {
		return nil, fmt.Errorf("detector expects 3 channels, got %v", x)
	}
	if x.H%32 != 0 || x.W%32 != 0 {
		return nil, fmt.Errorf("input %v is not padded to a multiple of 32", x)
	}

	// sources[0..4] = relu2_2, relu3_2, relu4_3, relu5_3, fc7
	var sources [5]*tensor.Tensor
	h := x
	for i, s := range n.slices {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		var err error
		if h, err = s.forward(h); err != nil {
			return nil, fmt.Errorf("backbone slice %d: %w", i+1, err)
		}
		sources[i] = h
	}

	y, err := tensor.Concat(sources[4], sources[3])
	if err != nil {
		return nil, err
	}
	for i, up := range n.upconv {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if i > 0 {
			skip := sources[3-i]
			if y, err = tensor.ResizeBilinear(y, skip.H, skip.W); err != nil {
				return nil, err
			}
			if y, err = tensor.Concat(y, skip); err != nil {
				return nil, err
			}
		}
		if y, err = up.forward(y); err != nil {
			return nil, fmt.Errorf("upconv%d: %w", i+1, err)
		}
	}
	feature := y

	scores, err := n.convCls.forward(feature)
	if err != nil {
		return nil, fmt.Errorf("classifier: %w", err)
	}

	return &Output{
		H:       scores.H,
		W:       scores.W,
		Scores:  tensor.ToHWC(scores),
		Feature: feature,
	}, nil
}

// Close is a no-op for the native backend.
func (n *NativeNet) Close() error {
	return nil
}

// refinerLayout lists the link refiner blocks: a shared trunk and four
// atrous branches whose outputs are summed.
func refinerLayout() []namedSeq {
	layout := []namedSeq{
		{"last_conv.", []layerSpec{
			convBN("0", "1", 2+featureChannels, 64),
			convBN("3", "4", 64, 64),
			convBN("6", "7", 64, 64),
		}},
	}
	for i, d := range asppDilations {
		layout = append(layout, namedSeq{fmt.Sprintf("aspp%d.", i+1), []layerSpec{
			{kind: convKind, conv: "0", bn: "1", in: 64, out: 128, k: 3, pad: d, dil: d, relu: true},
			{kind: convKind, conv: "3", bn: "4", in: 128, out: 128, k: 1, pad: 0, dil: 1, relu: true},
			conv("6", 128, 1, 1, 0, 1, false),
		}})
	}
	return layout
}

var asppDilations = [4]int{6, 12, 18, 24}

// NativeRefiner evaluates the link refiner on the CPU.
type NativeRefiner struct {
	trunk sequential
	aspp  [4]sequential
}

// NewNativeRefiner binds a key-remapped refiner state dict.
func NewNativeRefiner(sd *checkpoint.StateDict) (*NativeRefiner, error) {
	built, err := buildAll(sd, refinerLayout())
	if err != nil {
		return nil, fmt.Errorf("failed to build refiner: %w", err)
	}
	r := &NativeRefiner{trunk: built["last_conv."]}
	for i := range r.aspp {
		r.aspp[i] = built[fmt.Sprintf("aspp%d.", i+1)]
	}
	return r, nil
}

// Refine returns a sharpened link map for out, laid out as H*W values.
func (r *NativeRefiner) Refine(ctx context.Context, out *Output) ([]float32, error) {
	if out.Feature == nil {
		return nil, fmt.Errorf("refiner needs the detector feature map")
	}
	y, err := tensor.FromHWC(out.H, out.W, 2, out.Scores)
	if err != nil {
		return nil, err
	}
	x, err := tensor.Concat(y, out.Feature)
	if err != nil {
		return nil, err
	}

	trunk, err := r.trunk.forward(x)
	if err != nil {
		return nil, fmt.Errorf("refiner trunk: %w", err)
	}

	var sum *tensor.Tensor
	for i, branch := range r.aspp {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		b, err := branch.forward(trunk)
		if err != nil {
			return nil, fmt.Errorf("aspp%d: %w", i+1, err)
		}
		if sum == nil {
			sum = b
			continue
		}
		if err := tensor.AddInPlace(sum, b); err != nil {
			return nil, err
		}
	}
	return sum.Data, nil
}

// Close is a no-op for the native backend.
func (r *NativeRefiner) Close() error {
	return nil
}
