package craft

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/ironsheep/craft-text-detector/internal/checkpoint"
	"github.com/ironsheep/craft-text-detector/internal/tensor"
)

// Output is the result of one detector pass at half the input resolution.
type Output struct {
	// H and W are the score map dimensions.
	H, W int

	// Scores holds H*W*2 values: region score then affinity score per pixel.
	Scores []float32

	// Feature is the 32-channel map consumed by the refiner. It may be nil
	// for exported models that do not expose it.
	Feature *tensor.Tensor
}

// ScoreText returns the region score map as H*W values.
func (o *Output) ScoreText() []float32 {
	return o.channel(0)
}

// ScoreLink returns the affinity score map as H*W values.
func (o *Output) ScoreLink() []float32 {
	return o.channel(1)
}

func (o *Output) channel(c int) []float32 {
	out := make([]float32, o.H*o.W)
	for i := range out {
		out[i] = o.Scores[i*2+c]
	}
	return out
}

// Net is a loaded CRAFT detector.
type Net interface {
	Forward(ctx context.Context, x *tensor.Tensor) (*Output, error)
	Close() error
}

// Refiner is a loaded link refiner.
type Refiner interface {
	Refine(ctx context.Context, out *Output) ([]float32, error)
	Close() error
}

// Options controls where and how weights are loaded.
type Options struct {
	// CUDA requests GPU execution. Only the ONNX Runtime backend honours it.
	CUDA bool

	// Threads bounds ONNX Runtime intra-op parallelism. Zero keeps the
	// runtime default.
	Threads int

	// RuntimeLibrary is the path of the ONNX Runtime shared library.
	RuntimeLibrary string

	Logger logrus.FieldLogger
}

func (o Options) logger() logrus.FieldLogger {
	if o.Logger != nil {
		return o.Logger
	}
	return logrus.StandardLogger()
}

// IsONNX reports whether path names an exported ONNX model.
func IsONNX(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".onnx")
}

// OpenNet loads a detector. ONNX files run through ONNX Runtime; anything
// else is read as a PyTorch checkpoint and evaluated natively.
func OpenNet(path string, opts Options) (Net, error) {
	if IsONNX(path) {
		return newONNXNet(path, opts)
	}

	sd, err := loadStateDict(path)
	if err != nil {
		return nil, err
	}
	placeNative(opts)
	return NewNativeNet(sd)
}

// OpenRefiner loads a link refiner with the same backend rules as OpenNet.
func OpenRefiner(path string, opts Options) (Refiner, error) {
	if IsONNX(path) {
		return newONNXRefiner(path, opts)
	}

	sd, err := loadStateDict(path)
	if err != nil {
		return nil, err
	}
	placeNative(opts)
	return NewNativeRefiner(sd)
}

func loadStateDict(path string) (*checkpoint.StateDict, error) {
	sd, err := checkpoint.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load weights: %w", err)
	}
	return checkpoint.CopyStateDict(sd), nil
}

func placeNative(opts Options) {
	if opts.CUDA {
		opts.logger().Warn("CUDA is only available with ONNX models; running on CPU")
	}
}
