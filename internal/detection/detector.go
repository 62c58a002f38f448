package detection

import (
	"context"
	"fmt"
	"image"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ironsheep/craft-text-detector/internal/config"
	"github.com/ironsheep/craft-text-detector/internal/craft"
	"github.com/ironsheep/craft-text-detector/internal/fileutil"
	"github.com/ironsheep/craft-text-detector/internal/imaging"
	"github.com/ironsheep/craft-text-detector/internal/ocr"
	"github.com/ironsheep/craft-text-detector/internal/postproc"
)

// netRatio is the detector's down-sampling factor between input and score
// maps.
const netRatio = 2

// Recognizer reads the text inside detected polygons.
type Recognizer interface {
	Recognize(img image.Image, polys []postproc.Polygon) ([]ocr.TextRegion, error)
	Close() error
}

// Result holds the detections of one image.
type Result struct {
	// Boxes are the word rectangles in source image coordinates.
	Boxes []postproc.Box `json:"boxes"`

	// Polys are the word outlines in source image coordinates. Words
	// without a fitted polygon carry their box.
	Polys []postproc.Polygon `json:"polys"`

	// Heatmap renders score_text and score_link side by side.
	Heatmap *image.NRGBA `json:"-"`

	InferTime time.Duration `json:"infer_time"`
	PostTime  time.Duration `json:"postproc_time"`
}

// Prediction is the outcome of Predict for one file.
type Prediction struct {
	Path   string
	Result *Result
	Texts  []string

	// Regions carries the recognised text with its confidence, one per
	// polygon, when recognition is enabled.
	Regions []ocr.TextRegion

	Files *fileutil.ResultPaths
}

// Detector wraps a loaded CRAFT network, its optional refiner and the
// post-processing settings of a run.
type Detector struct {
	opts       config.Options
	net        craft.Net
	refiner    craft.Refiner
	recognizer Recognizer
	log        logrus.FieldLogger
}

// New loads the networks named in opts. When opts.Refine is set the
// refiner is loaded as well and polygons are enabled.
func New(opts *config.Options, log logrus.FieldLogger) (*Detector, error) {
	copts := netOptions(opts, log)

	log.Infof("Loading weights from checkpoint (%s)", opts.TrainedModel)
	net, err := craft.OpenNet(opts.TrainedModel, copts)
	if err != nil {
		return nil, fmt.Errorf("failed to load detector: %w", err)
	}

	var refiner craft.Refiner
	if opts.Refine {
		log.Infof("Loading weights of refiner from checkpoint (%s)", opts.RefinerModel)
		refiner, err = craft.OpenRefiner(opts.RefinerModel, copts)
		if err != nil {
			net.Close()
			return nil, fmt.Errorf("failed to load refiner: %w", err)
		}
	}

	return NewWithNets(opts, net, refiner, log)
}

// netOptions maps run options onto network loading options.
func netOptions(opts *config.Options, log logrus.FieldLogger) craft.Options {
	return craft.Options{
		CUDA:           opts.Cuda.On,
		Threads:        opts.Threads,
		RuntimeLibrary: opts.ORTLibrary,
		Logger:         log,
	}
}

// NewWithNets builds a detector around already loaded networks. refiner may
// be nil.
func NewWithNets(opts *config.Options, net craft.Net, refiner craft.Refiner, log logrus.FieldLogger) (*Detector, error) {
	if net == nil {
		return nil, fmt.Errorf("detector network is required")
	}
	o := *opts
	if refiner != nil {
		o.Poly = true
	}
	if err := os.MkdirAll(o.ResultFolder, 0755); err != nil {
		return nil, fmt.Errorf("failed to create result folder: %w", err)
	}
	return &Detector{opts: o, net: net, refiner: refiner, log: log}, nil
}

// SetRecognizer enables text recognition of detected regions in Predict.
// The detector takes ownership of r.
func (d *Detector) SetRecognizer(r Recognizer) {
	d.recognizer = r
}

// Options returns the effective options of the detector.
func (d *Detector) Options() config.Options {
	return d.opts
}

// Close releases the networks and the recognizer.
func (d *Detector) Close() error {
	var first error
	keep := func(err error) {
		if err != nil && first == nil {
			first = err
		}
	}
	keep(d.net.Close())
	if d.refiner != nil {
		keep(d.refiner.Close())
	}
	if d.recognizer != nil {
		keep(d.recognizer.Close())
	}
	return first
}

func (d *Detector) thresholds() postproc.Thresholds {
	return postproc.Thresholds{
		Text:    d.opts.TextThreshold,
		Link:    d.opts.LinkThreshold,
		LowText: d.opts.LowText,
	}
}

// TestNet runs the detector on one RGB image and returns its detections
// in image coordinates.
func (d *Detector) TestNet(ctx context.Context, img *image.NRGBA) (*Result, error) {
	start := time.Now()

	resized, err := imaging.ResizeAspectRatio(img, d.opts.CanvasSize, d.opts.MagRatio)
	if err != nil {
		return nil, err
	}
	ratioH := 1 / resized.Ratio
	ratioW := ratioH

	x := imaging.NormalizeMeanVariance(resized.Canvas)
	out, err := d.net.Forward(ctx, x)
	if err != nil {
		return nil, fmt.Errorf("forward pass failed: %w", err)
	}

	scoreText := out.ScoreText()
	scoreLink := out.ScoreLink()
	if d.refiner != nil {
		scoreLink, err = d.refiner.Refine(ctx, out)
		if err != nil {
			return nil, fmt.Errorf("refiner failed: %w", err)
		}
	}

	inferTime := time.Since(start)
	start = time.Now()

	boxes, polys, err := postproc.GetDetBoxes(scoreText, scoreLink, out.W, out.H, d.thresholds(), d.opts.Poly)
	if err != nil {
		return nil, fmt.Errorf("post-processing failed: %w", err)
	}
	boxes = postproc.AdjustResultCoordinates(boxes, ratioW, ratioH, netRatio)
	polys = postproc.AdjustPolygonCoordinates(polys, ratioW, ratioH, netRatio)
	for k := range polys {
		if polys[k] == nil {
			polys[k] = boxes[k].Polygon()
		}
	}

	postTime := time.Since(start)

	textMap, err := imaging.NewScoreMap(out.W, out.H, scoreText)
	if err != nil {
		return nil, err
	}
	linkMap, err := imaging.NewScoreMap(out.W, out.H, scoreLink)
	if err != nil {
		return nil, err
	}
	stacked, err := imaging.HStack(textMap, linkMap)
	if err != nil {
		return nil, err
	}

	if d.opts.ShowTime {
		d.log.Infof("infer/postproc time : %.3f/%.3f", inferTime.Seconds(), postTime.Seconds())
	}

	return &Result{
		Boxes:     boxes,
		Polys:     polys,
		Heatmap:   imaging.Cvt2HeatmapImg(stacked),
		InferTime: inferTime,
		PostTime:  postTime,
	}, nil
}

// Predict loads the image at path, detects text, optionally recognises it
// and writes the result files into the result folder.
func (d *Detector) Predict(ctx context.Context, path string) (*Prediction, error) {
	img, err := imaging.LoadImage(path)
	if err != nil {
		return nil, err
	}

	res, err := d.TestNet(ctx, img)
	if err != nil {
		return nil, err
	}
	pred := &Prediction{Path: path, Result: res}

	if d.recognizer != nil {
		pred.Regions, err = d.recognizer.Recognize(img, res.Polys)
		if err != nil {
			return nil, fmt.Errorf("recognition failed: %w", err)
		}
		pred.Texts = ocr.Texts(pred.Regions)
	}

	dir := d.opts.ResultFolder
	pred.Files, err = fileutil.SaveResult(path, img, res.Polys, dir, pred.Texts)
	if err != nil {
		return nil, err
	}
	if pred.Files.Mask, err = fileutil.SaveMask(path, res.Heatmap, dir); err != nil {
		return nil, err
	}
	if d.opts.Overlay {
		if pred.Files.Overlay, err = fileutil.SaveOverlay(path, img, res.Heatmap, dir); err != nil {
			return nil, err
		}
	}
	if d.opts.JSON {
		rec := fileutil.NewRecord(path, img.Bounds().Size(), res.Polys, pred.Regions)
		rec.InferTime = res.InferTime.Seconds()
		rec.PostTime = res.PostTime.Seconds()
		if pred.Files.JSON, err = fileutil.SaveJSON(path, rec, dir); err != nil {
			return nil, err
		}
	}
	return pred, nil
}
