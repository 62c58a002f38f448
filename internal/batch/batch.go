package batch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ironsheep/craft-text-detector/internal/detection"
	"github.com/ironsheep/craft-text-detector/internal/fileutil"
)

// Predictor processes one image file.
type Predictor interface {
	Predict(ctx context.Context, path string) (*detection.Prediction, error)
}

// Item is the outcome for one input image.
type Item struct {
	Path       string
	Prediction *detection.Prediction
	Err        error
}

// Summary collects the outcome of a folder run in input order.
type Summary struct {
	Items   []Item
	Elapsed time.Duration
}

// Failed returns the number of images that could not be processed.
func (s *Summary) Failed() int {
	n := 0
	for _, it := range s.Items {
		if it.Err != nil {
			n++
		}
	}
	return n
}

// Runner runs a predictor over every image of a folder with a fixed number
// of workers.
type Runner struct {
	predictor Predictor
	workers   int
	log       logrus.FieldLogger
}

// NewRunner creates a runner. workers below 1 are treated as 1.
func NewRunner(p Predictor, workers int, log logrus.FieldLogger) *Runner {
	return &Runner{predictor: p, workers: max(workers, 1), log: log}
}

type job struct {
	index int
	path  string
}

// Run processes every image under dir. A failing image is logged and
// recorded in the summary without stopping the run. When ctx is canceled
// no further images are started, the images in flight are finished and
// ctx's error is returned along with the partial summary.
func (r *Runner) Run(ctx context.Context, dir string) (*Summary, error) {
	files, err := fileutil.GetFiles(dir)
	if err != nil {
		return nil, err
	}
	return r.RunFiles(ctx, files.Images)
}

// RunFiles processes the given image paths.
func (r *Runner) RunFiles(ctx context.Context, paths []string) (*Summary, error) {
	start := time.Now()
	total := len(paths)
	sum := &Summary{Items: make([]Item, total)}
	for i, p := range paths {
		sum.Items[i].Path = p
	}

	jobs := make(chan job)
	var wg sync.WaitGroup
	for w := 0; w < min(r.workers, max(total, 1)); w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobs {
				r.log.Infof("Test image %d/%d: %s", j.index+1, total, j.path)
				pred, err := r.predictor.Predict(ctx, j.path)
				if err != nil {
					r.log.WithError(err).WithField("image", j.path).Error("failed to process image")
				}
				// Each worker writes only its own index.
				sum.Items[j.index].Prediction = pred
				sum.Items[j.index].Err = err
			}
		}()
	}

	var runErr error
	skip := func(from int) {
		runErr = ctx.Err()
		for k := from; k < total; k++ {
			sum.Items[k].Err = fmt.Errorf("not processed: %w", runErr)
		}
	}
dispatch:
	for i, p := range paths {
		if ctx.Err() != nil {
			skip(i)
			break
		}
		select {
		case <-ctx.Done():
			skip(i)
			break dispatch
		case jobs <- job{index: i, path: p}:
		}
	}
	close(jobs)
	wg.Wait()

	sum.Elapsed = time.Since(start)
	r.log.Infof("elapsed time : %gs", sum.Elapsed.Seconds())
	return sum, runErr
}
