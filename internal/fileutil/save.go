package fileutil

import (
	"bufio"
	"encoding/json"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strconv"

	"github.com/anthonynsimon/bild/imgio"
	disimaging "github.com/disintegration/imaging"

	"github.com/ironsheep/craft-text-detector/internal/imaging"
	"github.com/ironsheep/craft-text-detector/internal/ocr"
	"github.com/ironsheep/craft-text-detector/internal/postproc"
)

// jpegQuality matches the quality result images have always been saved with.
const jpegQuality = 95

// overlayOpacity is the heatmap weight in overlay images.
const overlayOpacity = 0.5

// ResultPaths names the files written for one input image.
type ResultPaths struct {
	Text    string `json:"text"`
	Image   string `json:"image"`
	Mask    string `json:"mask,omitempty"`
	Overlay string `json:"overlay,omitempty"`
	JSON    string `json:"json,omitempty"`
}

// SaveResult writes the detections for imgFile into dir:
//
//   - res_<name>.txt holds one line per polygon with its coordinates
//     truncated to integers, comma-separated, each line ending in CRLF.
//   - res_<name>.jpg is img with every polygon outlined in red. When texts
//     is non-nil, texts[i] is written at the first point of polygon i.
//
// img is not modified.
func SaveResult(imgFile string, img image.Image, polys []postproc.Polygon, dir string, texts []string) (*ResultPaths, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create result folder: %w", err)
	}

	name := baseName(imgFile)
	paths := &ResultPaths{
		Text:  filepath.Join(dir, "res_"+name+".txt"),
		Image: filepath.Join(dir, "res_"+name+".jpg"),
	}

	if err := writeCoordinates(paths.Text, polys); err != nil {
		return nil, err
	}

	canvas := disimaging.Clone(img)
	for i, poly := range polys {
		pts := toPoints(poly)
		imaging.DrawPolygon(canvas, pts, imaging.OutlineColor, 2)
		if texts != nil && i < len(texts) && len(pts) > 0 {
			imaging.DrawLabel(canvas, pts[0], texts[i])
		}
	}
	if err := imgio.Save(paths.Image, canvas, imgio.JPEGEncoder(jpegQuality)); err != nil {
		return nil, fmt.Errorf("failed to save result image: %w", err)
	}
	return paths, nil
}

func writeCoordinates(path string, polys []postproc.Polygon) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create result file: %w", err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	for _, poly := range polys {
		var line []byte
		for i, p := range poly {
			if i > 0 {
				line = append(line, ',')
			}
			line = strconv.AppendInt(line, int64(p.X), 10)
			line = append(line, ',')
			line = strconv.AppendInt(line, int64(p.Y), 10)
		}
		line = append(line, '\r', '\n')
		if _, err := w.Write(line); err != nil {
			return fmt.Errorf("failed to write result file: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("failed to write result file: %w", err)
	}
	return f.Close()
}

// toPoints truncates polygon coordinates to pixels.
func toPoints(poly postproc.Polygon) []image.Point {
	pts := make([]image.Point, len(poly))
	for i, p := range poly {
		pts[i] = image.Pt(int(p.X), int(p.Y))
	}
	return pts
}

// SaveMask writes the score heatmap as res_<name>_mask.jpg in dir.
func SaveMask(imgFile string, heatmap image.Image, dir string) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create result folder: %w", err)
	}
	path := filepath.Join(dir, "res_"+baseName(imgFile)+"_mask.jpg")
	if err := imgio.Save(path, heatmap, imgio.JPEGEncoder(jpegQuality)); err != nil {
		return "", fmt.Errorf("failed to save mask: %w", err)
	}
	return path, nil
}

// SaveOverlay writes the region-score half of heatmap stretched over img as
// res_<name>_overlay.jpg in dir.
func SaveOverlay(imgFile string, img, heatmap image.Image, dir string) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create result folder: %w", err)
	}

	// The heatmap is score_text | score_link; only the left half lines up
	// with the image.
	hb := heatmap.Bounds()
	text := disimaging.Crop(heatmap, image.Rect(hb.Min.X, hb.Min.Y, hb.Min.X+hb.Dx()/2, hb.Max.Y))

	path := filepath.Join(dir, "res_"+baseName(imgFile)+"_overlay.jpg")
	out := imaging.Overlay(img, text, overlayOpacity)
	if err := imgio.Save(path, out, imgio.JPEGEncoder(jpegQuality)); err != nil {
		return "", fmt.Errorf("failed to save overlay: %w", err)
	}
	return path, nil
}

// Region is one detected word in a JSON result.
type Region struct {
	Polygon    [][2]float64 `json:"polygon"`
	Text       string       `json:"text,omitempty"`
	Confidence float64      `json:"confidence,omitempty"`
}

// Record is the JSON form of one image's detections.
type Record struct {
	Image     string   `json:"image"`
	Width     int      `json:"width"`
	Height    int      `json:"height"`
	Regions   []Region `json:"regions"`
	InferTime float64  `json:"infer_time_sec"`
	PostTime  float64  `json:"postproc_time_sec"`
}

// NewRecord builds a Record from polygons and optional recognised regions.
func NewRecord(imgFile string, size image.Point, polys []postproc.Polygon, regions []ocr.TextRegion) *Record {
	rec := &Record{Image: imgFile, Width: size.X, Height: size.Y, Regions: make([]Region, 0, len(polys))}
	for i, poly := range polys {
		r := Region{Polygon: make([][2]float64, len(poly))}
		for j, p := range poly {
			r.Polygon[j] = [2]float64{p.X, p.Y}
		}
		if i < len(regions) {
			r.Text = regions[i].Text
			r.Confidence = regions[i].Confidence
		}
		rec.Regions = append(rec.Regions, r)
	}
	return rec
}

// SaveJSON writes rec as res_<name>.json in dir.
func SaveJSON(imgFile string, rec *Record, dir string) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create result folder: %w", err)
	}
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode result: %w", err)
	}
	path := filepath.Join(dir, "res_"+baseName(imgFile)+".json")
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to save result: %w", err)
	}
	return path, nil
}
