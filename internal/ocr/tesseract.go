package ocr

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"strings"
	"sync"

	"github.com/otiai10/gosseract/v2"

	"github.com/ironsheep/craft-text-detector/internal/imaging"
	"github.com/ironsheep/craft-text-detector/internal/postproc"
)

// cropMargin is the border, in pixels, kept around each region so glyph
// edges are not clipped.
const cropMargin = 2

// Bounds represents a rectangular bounding box in pixel coordinates.
type Bounds struct {
	X1 int `json:"x1"` // Left edge
	Y1 int `json:"y1"` // Top edge
	X2 int `json:"x2"` // Right edge
	Y2 int `json:"y2"` // Bottom edge
}

func boundsOf(r image.Rectangle) Bounds {
	return Bounds{X1: r.Min.X, Y1: r.Min.Y, X2: r.Max.X, Y2: r.Max.Y}
}

// TextRegion is the recognised content of one detected region.
type TextRegion struct {
	// Text is the recognised text with surrounding whitespace removed.
	Text string `json:"text"`

	// Confidence is Tesseract's mean word confidence (0.0 to 1.0), or 0
	// when no word was found.
	Confidence float64 `json:"confidence"`

	// Bounds is the area of the source image that was recognised.
	Bounds Bounds `json:"bounds"`
}

// Recognizer reads text from detected regions with a single Tesseract
// client. It is safe for concurrent use; calls are serialised.
type Recognizer struct {
	mu     sync.Mutex
	client *gosseract.Client
}

// NewRecognizer creates a recognizer for the given Tesseract language(s),
// e.g. "eng" or "eng+deu". tessdata overrides the training data directory
// when non-empty.
func NewRecognizer(language, tessdata string) (*Recognizer, error) {
	client := gosseract.NewClient()

	if tessdata != "" {
		if err := client.SetTessdataPrefix(tessdata); err != nil {
			client.Close()
			return nil, fmt.Errorf("failed to set tessdata path: %w", err)
		}
	}
	if err := client.SetLanguage(strings.Split(language, "+")...); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to set language: %w", err)
	}
	// Each crop holds a single word or line.
	if err := client.SetPageSegMode(gosseract.PSM_SINGLE_LINE); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to set page segmentation mode: %w", err)
	}

	return &Recognizer{client: client}, nil
}

// Close releases the Tesseract client.
func (r *Recognizer) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.client.Close()
}

// RecognizeRegion crops the bounding rectangle of pts (plus a small margin)
// out of img and runs Tesseract on it.
func (r *Recognizer) RecognizeRegion(img image.Image, pts []image.Point) (*TextRegion, error) {
	rect := imaging.PolygonBounds(pts, cropMargin, img.Bounds())
	crop, err := imaging.CropPolygon(img, pts, cropMargin)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, crop); err != nil {
		return nil, fmt.Errorf("failed to encode region: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.client.SetImageFromBytes(buf.Bytes()); err != nil {
		return nil, fmt.Errorf("failed to set image: %w", err)
	}
	text, err := r.client.Text()
	if err != nil {
		return nil, fmt.Errorf("OCR failed: %w", err)
	}

	region := &TextRegion{
		Text:   strings.TrimSpace(text),
		Bounds: boundsOf(rect),
	}

	// Confidence is best effort; the text is still useful without it.
	if boxes, err := r.client.GetBoundingBoxes(gosseract.RIL_WORD); err == nil {
		sum, n := 0.0, 0
		for _, box := range boxes {
			if box.Word == "" {
				continue
			}
			sum += box.Confidence
			n++
		}
		if n > 0 {
			region.Confidence = sum / float64(n) / 100.0
		}
	}
	return region, nil
}

// Recognize reads every polygon of img and returns one region per polygon.
// Polygons that fall outside the image yield an empty region.
func (r *Recognizer) Recognize(img image.Image, polys []postproc.Polygon) ([]TextRegion, error) {
	regions := make([]TextRegion, len(polys))
	for i, poly := range polys {
		pts := make([]image.Point, len(poly))
		for j, p := range poly {
			pts[j] = image.Pt(int(p.X), int(p.Y))
		}
		if imaging.PolygonBounds(pts, cropMargin, img.Bounds()).Empty() {
			continue
		}

		region, err := r.RecognizeRegion(img, pts)
		if err != nil {
			return nil, fmt.Errorf("region %d: %w", i, err)
		}
		regions[i] = *region
	}
	return regions, nil
}

// Texts returns the text of each region.
func Texts(regions []TextRegion) []string {
	if regions == nil {
		return nil
	}
	texts := make([]string, len(regions))
	for i, r := range regions {
		texts[i] = r.Text
	}
	return texts
}
