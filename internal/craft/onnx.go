package craft

import (
	"context"
	"fmt"
	"sync"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/ironsheep/craft-text-detector/internal/tensor"
)

var (
	runtimeOnce sync.Once
	runtimeErr  error
)

// initRuntime loads the ONNX Runtime library once per process.
func initRuntime(library string) error {
	runtimeOnce.Do(func() {
		if library != "" {
			ort.SetSharedLibraryPath(library)
		}
		runtimeErr = ort.InitializeEnvironment()
	})
	if runtimeErr != nil {
		return fmt.Errorf("failed to initialize onnxruntime: %w", runtimeErr)
	}
	return nil
}

type onnxSession struct {
	session *ort.DynamicAdvancedSession
	options *ort.SessionOptions
	inputs  []string
	outputs []string
}

func newSession(path string, opts Options) (*onnxSession, error) {
	if err := initRuntime(opts.RuntimeLibrary); err != nil {
		return nil, err
	}

	inputs, outputs, err := ort.GetInputOutputInfo(path)
	if err != nil {
		return nil, fmt.Errorf("failed to get model input/output info: %w", err)
	}

	options, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("failed to create session options: %w", err)
	}
	if opts.Threads > 0 {
		if err := options.SetIntraOpNumThreads(opts.Threads); err != nil {
			opts.logger().WithError(err).Warnf("Could not limit ONNX Runtime to %d threads", opts.Threads)
		}
	}
	if opts.CUDA {
		if err := appendCUDA(options); err != nil {
			opts.logger().WithError(err).Warn("CUDA execution provider unavailable; running on CPU")
		}
	}

	s := &onnxSession{options: options}
	for _, in := range inputs {
		s.inputs = append(s.inputs, in.Name)
	}
	for _, out := range outputs {
		s.outputs = append(s.outputs, out.Name)
	}

	s.session, err = ort.NewDynamicAdvancedSession(path, s.inputs, s.outputs, options)
	if err != nil {
		options.Destroy()
		return nil, fmt.Errorf("failed to create session for %s: %w", path, err)
	}
	return s, nil
}

func appendCUDA(options *ort.SessionOptions) error {
	cuda, err := ort.NewCUDAProviderOptions()
	if err != nil {
		return err
	}
	defer cuda.Destroy()
	return options.AppendExecutionProviderCUDA(cuda)
}

// run feeds the inputs and returns float32 outputs with their shapes. The
// caller owns nothing; all runtime values are released before returning.
func (s *onnxSession) run(inputs ...*ort.Tensor[float32]) ([][]float32, []ort.Shape, error) {
	in := make([]ort.Value, len(inputs))
	for i, t := range inputs {
		in[i] = t
	}
	out := make([]ort.Value, len(s.outputs))
	if err := s.session.Run(in, out); err != nil {
		return nil, nil, fmt.Errorf("inference failed: %w", err)
	}
	defer func() {
		for _, v := range out {
			if v != nil {
				v.Destroy()
			}
		}
	}()

	data := make([][]float32, len(out))
	shapes := make([]ort.Shape, len(out))
	for i, v := range out {
		t, ok := v.(*ort.Tensor[float32])
		if !ok {
			return nil, nil, fmt.Errorf("output %s is not a float32 tensor", s.outputs[i])
		}
		data[i] = append([]float32(nil), t.GetData()...)
		shapes[i] = t.GetShape().Clone()
	}
	return data, shapes, nil
}

func (s *onnxSession) close() error {
	var err error
	if s.session != nil {
		err = s.session.Destroy()
	}
	if s.options != nil {
		if e := s.options.Destroy(); err == nil {
			err = e
		}
	}
	return err
}

// ONNXNet runs an exported CRAFT model. The model takes a [1,3,H,W] image
// and yields the [1,H/2,W/2,2] score map, optionally followed by the
// [1,32,H/2,W/2] feature map.
type ONNXNet struct {
	s *onnxSession
}

func newONNXNet(path string, opts Options) (*ONNXNet, error) {
	s, err := newSession(path, opts)
	if err != nil {
		return nil, err
	}
	if len(s.inputs) != 1 || len(s.outputs) == 0 {
		s.close()
		return nil, fmt.Errorf("expected 1 input and at least 1 output, got %d and %d", len(s.inputs), len(s.outputs))
	}
	return &ONNXNet{s: s}, nil
}

// Forward runs the exported detector.
func (n *ONNXNet) Forward(ctx context.Context, x *tensor.Tensor) (*Output, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	input, err := ort.NewTensor(ort.NewShape(1, int64(x.C), int64(x.H), int64(x.W)), x.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to create input tensor: %w", err)
	}
	defer input.Destroy()

	data, shapes, err := n.s.run(input)
	if err != nil {
		return nil, err
	}

	y := shapes[0]
	if len(y) != 4 || y[3] != 2 {
		return nil, fmt.Errorf("unexpected score map shape %v", y)
	}
	out := &Output{H: int(y[1]), W: int(y[2]), Scores: data[0]}

	if len(data) > 1 {
		f := shapes[1]
		if len(f) != 4 || int(f[2]) != out.H || int(f[3]) != out.W {
			return nil, fmt.Errorf("unexpected feature shape %v", f)
		}
		out.Feature = tensor.FromData(int(f[1]), out.H, out.W, data[1])
	}
	return out, nil
}

// Close releases the runtime session.
func (n *ONNXNet) Close() error {
	return n.s.close()
}

// ONNXRefiner runs an exported link refiner taking the score map and the
// feature map and producing a [1,H,W,1] link map.
type ONNXRefiner struct {
	s *onnxSession
}

func newONNXRefiner(path string, opts Options) (*ONNXRefiner, error) {
	s, err := newSession(path, opts)
	if err != nil {
		return nil, err
	}
	if len(s.inputs) != 2 || len(s.outputs) != 1 {
		s.close()
		return nil, fmt.Errorf("expected 2 inputs and 1 output, got %d and %d", len(s.inputs), len(s.outputs))
	}
	return &ONNXRefiner{s: s}, nil
}

// Refine runs the exported refiner.
func (r *ONNXRefiner) Refine(ctx context.Context, out *Output) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if out.Feature == nil {
		return nil, fmt.Errorf("refiner needs the detector feature map")
	}

	y, err := ort.NewTensor(ort.NewShape(1, int64(out.H), int64(out.W), 2), out.Scores)
	if err != nil {
		return nil, fmt.Errorf("failed to create score tensor: %w", err)
	}
	defer y.Destroy()

	f := out.Feature
	feature, err := ort.NewTensor(ort.NewShape(1, int64(f.C), int64(f.H), int64(f.W)), f.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to create feature tensor: %w", err)
	}
	defer feature.Destroy()

	data, _, err := r.s.run(y, feature)
	if err != nil {
		return nil, err
	}
	if len(data[0]) != out.H*out.W {
		return nil, fmt.Errorf("refiner returned %d values, want %d", len(data[0]), out.H*out.W)
	}
	return data[0], nil
}

// Close releases the runtime session.
func (r *ONNXRefiner) Close() error {
	return r.s.close()
}
