package imaging

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/png"

	"github.com/disintegration/imaging"
)

// EncodedImage contains an image encoded as base64 PNG.
type EncodedImage struct {
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	ImageBase64 string `json:"image_base64"`
	MimeType    string `json:"mime_type"`
}

// EncodePNG encodes img as base64 PNG
func EncodePNG(img image.Image) (*EncodedImage, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}

	return &EncodedImage{
		Width:       img.Bounds().Dx(),
		Height:      img.Bounds().Dy(),
		ImageBase64: base64.StdEncoding.EncodeToString(buf.Bytes()),
		MimeType:    "image/png",
	}, nil
}

// PolygonBounds returns the bounding rectangle of pts grown by margin and
// clipped to limit. The result is empty when the polygon lies outside.
func PolygonBounds(pts []image.Point, margin int, limit image.Rectangle) image.Rectangle {
	if len(pts) == 0 {
		return image.Rectangle{}
	}
	r := image.Rectangle{Min: pts[0], Max: pts[0]}
	for _, p := range pts[1:] {
		r.Min.X = min(r.Min.X, p.X)
		r.Min.Y = min(r.Min.Y, p.Y)
		r.Max.X = max(r.Max.X, p.X)
		r.Max.Y = max(r.Max.Y, p.Y)
	}
	// Max is exclusive
	r.Max = r.Max.Add(image.Pt(1, 1))
	return r.Inset(-margin).Intersect(limit)
}

// CropPolygon extracts the bounding rectangle of a polygon.
func CropPolygon(img image.Image, pts []image.Point, margin int) (*image.NRGBA, error) {
	r := PolygonBounds(pts, margin, img.Bounds())
	if r.Empty() {
		return nil, fmt.Errorf("polygon %v lies outside image bounds %v", pts, img.Bounds())
	}
	return imaging.Crop(img, r), nil
}
