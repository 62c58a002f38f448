package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/alexflint/go-arg"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"golang.org/x/term"
)

// ErrHelp is returned by Parse after printing usage for --help.
var ErrHelp = arg.ErrHelp

// ErrVersion is returned by Parse after printing the version for --version.
var ErrVersion = arg.ErrVersion

// Version is reported by --version. It is set from main.
var Version = "dev"

// Program is the command name shown in usage and version output.
var Program = "craft"

// Toggle is a boolean option that takes an explicit value, as in
// "--cuda false". Values accepted as true are yes, y, true, t and 1 in any
// case; everything else is false.
type Toggle struct {
	On bool
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *Toggle) UnmarshalText(b []byte) error {
	t.On = Str2Bool(string(b))
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (t Toggle) MarshalText() ([]byte, error) {
	if t.On {
		return []byte("True"), nil
	}
	return []byte("False"), nil
}

// Str2Bool interprets a command-line truth value.
func Str2Bool(v string) bool {
	switch strings.ToLower(v) {
	case "yes", "y", "true", "t", "1":
		return true
	}
	return false
}

// Options holds every setting of a detection run.
type Options struct {
	TrainedModel  string  `arg:"--trained_model,env:CRAFT_TRAINED_MODEL" default:"weights/craft_mlt_25k.pth" help:"pretrained model (.pth checkpoint or .onnx export)"`
	TextThreshold float64 `arg:"--text_threshold,env:CRAFT_TEXT_THRESHOLD" default:"0.7" help:"text confidence threshold"`
	LowText       float64 `arg:"--low_text,env:CRAFT_LOW_TEXT" default:"0.4" help:"text low-bound score"`
	LinkThreshold float64 `arg:"--link_threshold,env:CRAFT_LINK_THRESHOLD" default:"0.4" help:"link confidence threshold"`
	Cuda          Toggle  `arg:"--cuda,env:CRAFT_CUDA" default:"True" help:"use cuda for inference"`
	CanvasSize    int     `arg:"--canvas_size,env:CRAFT_CANVAS_SIZE" default:"1280" help:"image size for inference"`
	MagRatio      float64 `arg:"--mag_ratio,env:CRAFT_MAG_RATIO" default:"1.5" help:"image magnification ratio"`
	Poly          bool    `arg:"--poly,env:CRAFT_POLY" help:"enable polygon type"`
	ShowTime      bool    `arg:"--show_time,env:CRAFT_SHOW_TIME" help:"show processing time"`
	TestFolder    string  `arg:"--test_folder,env:CRAFT_TEST_FOLDER" default:"/data/" help:"folder path to input images"`
	Refine        bool    `arg:"--refine,env:CRAFT_REFINE" help:"enable link refiner"`
	RefinerModel  string  `arg:"--refiner_model,env:CRAFT_REFINER_MODEL" default:"weights/craft_refiner_CTW1500.pth" help:"pretrained refiner model"`

	ResultFolder string `arg:"--result_folder,env:CRAFT_RESULT_FOLDER" default:"./result/" help:"folder for result files"`
	Workers      int    `arg:"--workers,env:CRAFT_WORKERS" default:"1" help:"images processed in parallel"`
	Threads      int    `arg:"--threads,env:CRAFT_THREADS" default:"0" help:"ONNX Runtime intra-op threads (0 keeps the runtime default)"`
	ORTLibrary   string `arg:"--ort_library,env:CRAFT_ORT_LIBRARY" help:"path of the ONNX Runtime shared library"`
	Recognize    bool   `arg:"--recognize,env:CRAFT_RECOGNIZE" help:"recognise detected regions with Tesseract"`
	Lang         string `arg:"--lang,env:CRAFT_LANG" default:"eng" help:"Tesseract language(s)"`
	Overlay      bool   `arg:"--overlay,env:CRAFT_OVERLAY" help:"also write the heatmap blended over the input"`
	JSON         bool   `arg:"--json,env:CRAFT_JSON" help:"also write results as JSON"`
	LogLevel     string `arg:"--log_level,env:CRAFT_LOG_LEVEL" default:"info" help:"debug, info, warn or error"`
}

// Description implements arg.Described.
func (Options) Description() string {
	return "craft - CRAFT text detection over a folder of images"
}

// Version implements arg.Versioned.
func (Options) Version() string {
	return Program + " " + Version
}

// Parse resolves options from args (without the program name) and the
// environment. Help and version output go to out, after which ErrHelp or
// ErrVersion is returned.
func Parse(args []string, out io.Writer) (*Options, error) {
	var opts Options
	p, err := arg.NewParser(arg.Config{Program: Program}, &opts)
	if err != nil {
		return nil, fmt.Errorf("failed to build argument parser: %w", err)
	}

	if err := p.Parse(args); err != nil {
		switch {
		case errors.Is(err, arg.ErrHelp):
			p.WriteHelp(out)
		case errors.Is(err, arg.ErrVersion):
			fmt.Fprintln(out, opts.Version())
		default:
			p.WriteUsage(out)
		}
		return nil, err
	}

	if err := opts.Finalize(); err != nil {
		return nil, err
	}
	return &opts, nil
}

// Finalize validates the options and applies the rules between them.
func (o *Options) Finalize() error {
	if o.CanvasSize <= 0 {
		return fmt.Errorf("canvas_size must be positive, got %d", o.CanvasSize)
	}
	if o.MagRatio <= 0 {
		return fmt.Errorf("mag_ratio must be positive, got %g", o.MagRatio)
	}
	for _, th := range []struct {
		name string
		v    float64
	}{
		{"text_threshold", o.TextThreshold},
		{"low_text", o.LowText},
		{"link_threshold", o.LinkThreshold},
	} {
		if th.v < 0 || th.v > 1 {
			return fmt.Errorf("%s must be within [0, 1], got %g", th.name, th.v)
		}
	}
	if o.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", o.Workers)
	}
	if o.Threads < 0 {
		return fmt.Errorf("threads must not be negative, got %d", o.Threads)
	}
	if o.TrainedModel == "" {
		return errors.New("trained_model is required")
	}
	if o.Refine && o.RefinerModel == "" {
		return errors.New("refiner_model is required with --refine")
	}
	if _, err := logrus.ParseLevel(o.LogLevel); err != nil {
		return fmt.Errorf("invalid log_level: %w", err)
	}

	if o.Refine {
		o.Poly = true
	}
	return nil
}

// LoadDotenv loads .env from the working directory and from the directory
// of the executable. Variables already set are not overridden and missing
// files are ignored.
func LoadDotenv() {
	paths := []string{".env"}
	if exe, err := os.Executable(); err == nil {
		paths = append(paths, filepath.Join(filepath.Dir(exe), ".env"))
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			_ = godotenv.Load(p)
		}
	}
}

// NewLogger returns a logger writing to w at the given level. Colours are
// enabled only when w is a terminal.
func NewLogger(level string, w io.Writer) (*logrus.Logger, error) {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}

	color := false
	if f, ok := w.(*os.File); ok {
		color = term.IsTerminal(int(f.Fd()))
	}

	log := logrus.New()
	log.SetOutput(w)
	log.SetLevel(lvl)
	log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
		ForceColors:   color,
		DisableColors: !color,
	})
	return log, nil
}
