package detection

import (
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	disimaging "github.com/disintegration/imaging"
	"github.com/sirupsen/logrus"

	"github.com/ironsheep/craft-text-detector/internal/config"
	"github.com/ironsheep/craft-text-detector/internal/craft"
	"github.com/ironsheep/craft-text-detector/internal/ocr"
	"github.com/ironsheep/craft-text-detector/internal/postproc"
	"github.com/ironsheep/craft-text-detector/internal/tensor"
)

// fakeNet returns a region score bar over [10,50) x [10,20) of the score
// map, whatever the input.
type fakeNet struct {
	calls  int
	closed bool
	err    error
}

func (n *fakeNet) Forward(ctx context.Context, x *tensor.Tensor) (*craft.Output, error) {
	n.calls++
	if n.err != nil {
		return nil, n.err
	}
	h, w := x.H/2, x.W/2
	scores := make([]float32, h*w*2)
	for y := 10; y < 20; y++ {
		for x := 10; x < 50; x++ {
			scores[(y*w+x)*2] = 0.9
		}
	}
	return &craft.Output{H: h, W: w, Scores: scores}, nil
}

func (n *fakeNet) Close() error {
	n.closed = true
	return nil
}

type fakeRefiner struct {
	calls int
}

func (r *fakeRefiner) Refine(ctx context.Context, out *craft.Output) ([]float32, error) {
	r.calls++
	return make([]float32, out.H*out.W), nil
}

func (r *fakeRefiner) Close() error { return nil }

type fakeRecognizer struct{}

func (fakeRecognizer) Recognize(img image.Image, polys []postproc.Polygon) ([]ocr.TextRegion, error) {
	regions := make([]ocr.TextRegion, len(polys))
	for i := range regions {
		regions[i] = ocr.TextRegion{Text: "word", Confidence: 0.75}
	}
	return regions, nil
}

func (fakeRecognizer) Close() error { return nil }

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func testOptions(t *testing.T) *config.Options {
	t.Helper()
	return &config.Options{
		TextThreshold: 0.7,
		LowText:       0.4,
		LinkThreshold: 0.4,
		CanvasSize:    1280,
		MagRatio:      1,
		ResultFolder:  filepath.Join(t.TempDir(), "result"),
		Workers:       1,
		LogLevel:      "info",
	}
}

func TestTestNet(t *testing.T) {
	net := &fakeNet{}
	d, err := NewWithNets(testOptions(t), net, nil, testLogger())
	if err != nil {
		t.Fatalf("NewWithNets failed: %v", err)
	}

	img := disimaging.New(200, 100, color.White)
	res, err := d.TestNet(context.Background(), img)
	if err != nil {
		t.Fatalf("TestNet failed: %v", err)
	}

	if len(res.Boxes) != 1 || len(res.Polys) != 1 {
		t.Fatalf("got %d boxes, %d polys, want 1 each", len(res.Boxes), len(res.Polys))
	}
	// Score-map box (7,7)-(52,22) scaled by 2/ratio with ratio 1.
	want := postproc.Box{{14, 14}, {104, 14}, {104, 44}, {14, 44}}
	if res.Boxes[0] != want {
		t.Errorf("box = %v, want %v", res.Boxes[0], want)
	}
	if len(res.Polys[0]) != 4 || res.Polys[0][2] != want[2] {
		t.Errorf("missing polygon should fall back to the box, got %v", res.Polys[0])
	}

	// 200x100 -> canvas 224x128 -> score maps 112x64, stacked side by side.
	if got := res.Heatmap.Bounds().Size(); got != image.Pt(224, 64) {
		t.Errorf("heatmap size %v, want 224x64", got)
	}
}

func TestTestNet_Scaled(t *testing.T) {
	opts := testOptions(t)
	opts.MagRatio = 2

	d, err := NewWithNets(opts, &fakeNet{}, nil, testLogger())
	if err != nil {
		t.Fatalf("NewWithNets failed: %v", err)
	}
	res, err := d.TestNet(context.Background(), disimaging.New(200, 100, color.White))
	if err != nil {
		t.Fatalf("TestNet failed: %v", err)
	}
	// ratio 2 halves the mapping back to the image.
	want := postproc.Box{{7, 7}, {52, 7}, {52, 22}, {7, 22}}
	if len(res.Boxes) != 1 || res.Boxes[0] != want {
		t.Errorf("boxes = %v, want [%v]", res.Boxes, want)
	}
}

func TestTestNet_Refiner(t *testing.T) {
	ref := &fakeRefiner{}
	d, err := NewWithNets(testOptions(t), &fakeNet{}, ref, testLogger())
	if err != nil {
		t.Fatalf("NewWithNets failed: %v", err)
	}
	if !d.Options().Poly {
		t.Error("a refiner should enable polygons")
	}

	res, err := d.TestNet(context.Background(), disimaging.New(200, 100, color.White))
	if err != nil {
		t.Fatalf("TestNet failed: %v", err)
	}
	if ref.calls != 1 {
		t.Errorf("refiner called %d times, want 1", ref.calls)
	}
	if len(res.Polys) != len(res.Boxes) {
		t.Errorf("polys %d, boxes %d", len(res.Polys), len(res.Boxes))
	}
	for i, p := range res.Polys {
		if len(p) < 4 {
			t.Errorf("polygon %d has %d points", i, len(p))
		}
	}
}

func TestTestNet_ForwardError(t *testing.T) {
	boom := errors.New("boom")
	d, err := NewWithNets(testOptions(t), &fakeNet{err: boom}, nil, testLogger())
	if err != nil {
		t.Fatalf("NewWithNets failed: %v", err)
	}
	_, err = d.TestNet(context.Background(), disimaging.New(64, 64, color.White))
	if !errors.Is(err, boom) {
		t.Errorf("err = %v, want wrapped boom", err)
	}
}

func TestNewWithNets_RequiresNet(t *testing.T) {
	if _, err := NewWithNets(testOptions(t), nil, nil, testLogger()); err == nil {
		t.Error("expected error without a network")
	}
}

func TestNetOptions(t *testing.T) {
	opts := testOptions(t)
	opts.Cuda.On = true
	opts.Threads = 3
	opts.ORTLibrary = "/opt/ort/libonnxruntime.so"
	log := testLogger()

	got := netOptions(opts, log)
	if !got.CUDA || got.Threads != 3 || got.RuntimeLibrary != opts.ORTLibrary {
		t.Errorf("netOptions = %+v", got)
	}
	if got.Logger != log {
		t.Error("netOptions should pass the logger through")
	}
}

func TestNew_MissingModel(t *testing.T) {
	opts := testOptions(t)
	opts.TrainedModel = filepath.Join(t.TempDir(), "missing.pth")
	if _, err := New(opts, testLogger()); err == nil {
		t.Error("expected error for missing checkpoint")
	}
}

func writeInput(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := png.Encode(f, disimaging.New(200, 100, color.White)); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestPredict(t *testing.T) {
	opts := testOptions(t)
	opts.JSON = true
	opts.Overlay = true

	net := &fakeNet{}
	d, err := NewWithNets(opts, net, nil, testLogger())
	if err != nil {
		t.Fatalf("NewWithNets failed: %v", err)
	}
	d.SetRecognizer(fakeRecognizer{})

	path := writeInput(t, t.TempDir(), "sign.png")
	pred, err := d.Predict(context.Background(), path)
	if err != nil {
		t.Fatalf("Predict failed: %v", err)
	}

	if len(pred.Texts) != 1 || pred.Texts[0] != "word" {
		t.Errorf("texts = %v", pred.Texts)
	}
	if len(pred.Regions) != 1 || pred.Regions[0].Confidence != 0.75 {
		t.Errorf("regions = %+v", pred.Regions)
	}
	for _, p := range []string{pred.Files.Text, pred.Files.Image, pred.Files.Mask, pred.Files.Overlay, pred.Files.JSON} {
		if _, err := os.Stat(p); err != nil {
			t.Errorf("result file missing: %v", err)
		}
	}
	if filepath.Dir(pred.Files.Mask) != opts.ResultFolder {
		t.Errorf("mask written to %s", pred.Files.Mask)
	}

	data, err := os.ReadFile(pred.Files.Text)
	if err != nil {
		t.Fatal(err)
	}
	if got := strings.TrimSpace(string(data)); got != "14,14,104,14,104,44,14,44" {
		t.Errorf("result text %q", got)
	}

	if err := d.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}
	if !net.closed {
		t.Error("Close did not close the network")
	}
}

func TestPredict_MissingFile(t *testing.T) {
	d, err := NewWithNets(testOptions(t), &fakeNet{}, nil, testLogger())
	if err != nil {
		t.Fatalf("NewWithNets failed: %v", err)
	}
	if _, err := d.Predict(context.Background(), "/nonexistent/image.png"); err == nil {
		t.Error("expected error for missing image")
	}
}
