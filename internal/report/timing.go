package report

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/wcharczuk/go-chart/v2"

	"github.com/ironsheep/craft-text-detector/internal/batch"
)

// TimingFile is the name of the chart written into the result folder.
const TimingFile = "timing.png"

// Timing is the processing time of one image in seconds.
type Timing struct {
	Image string
	Infer float64
	Post  float64
}

// FromSummary extracts the timings of every successful image.
func FromSummary(sum *batch.Summary) []Timing {
	var ts []Timing
	for _, it := range sum.Items {
		if it.Err != nil || it.Prediction == nil || it.Prediction.Result == nil {
			continue
		}
		r := it.Prediction.Result
		ts = append(ts, Timing{
			Image: filepath.Base(it.Path),
			Infer: r.InferTime.Seconds(),
			Post:  r.PostTime.Seconds(),
		})
	}
	return ts
}

func series(name string, xs, ys []float64, c chart.Style) chart.ContinuousSeries {
	return chart.ContinuousSeries{Name: name, XValues: xs, YValues: ys, Style: c}
}

// Graph renders inference and post-processing time per image as a PNG.
func Graph(timings []Timing, w io.Writer) error {
	if len(timings) < 2 {
		return errors.New("not enough images to chart")
	}

	var xs, infer, post []float64
	top := 0.0
	for i, t := range timings {
		xs = append(xs, float64(i+1))
		infer = append(infer, t.Infer)
		post = append(post, t.Post)
		top = max(top, t.Infer, t.Post)
	}
	if top == 0 {
		top = 1
	}

	graph := chart.Chart{
		Title:  "Processing time",
		Width:  1280,
		Height: 720,
		Background: chart.Style{
			Padding: chart.Box{Top: 40, Left: 20, Right: 20, Bottom: 20},
		},
		XAxis: chart.XAxis{
			Name: "Image",
			Range: &chart.ContinuousRange{
				Min: 1,
				Max: float64(len(timings)),
			},
			ValueFormatter: func(v interface{}) string {
				return fmt.Sprintf("%.0f", v)
			},
		},
		YAxis: chart.YAxis{
			Name: "Seconds",
			Range: &chart.ContinuousRange{
				Min: 0,
				Max: top * 1.1,
			},
		},
		Series: []chart.Series{
			series("inference", xs, infer, chart.Style{
				StrokeColor: chart.ColorBlue,
				StrokeWidth: 2,
			}),
			series("post-processing", xs, post, chart.Style{
				StrokeColor: chart.ColorOrange,
				StrokeWidth: 2,
			}),
		},
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}
	return graph.Render(chart.PNG, w)
}

// WriteTimingChart writes the chart for sum into dir and returns its path.
func WriteTimingChart(sum *batch.Summary, dir string) (string, error) {
	path := filepath.Join(dir, TimingFile)
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create timing chart: %w", err)
	}
	defer f.Close()

	if err := Graph(FromSummary(sum), f); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("failed to render timing chart: %w", err)
	}
	return path, nil
}
