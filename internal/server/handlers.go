package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"

	"github.com/ironsheep/craft-text-detector/internal/detection"
	"github.com/ironsheep/craft-text-detector/internal/imaging"
	"github.com/ironsheep/craft-text-detector/internal/ocr"
	"github.com/ironsheep/craft-text-detector/internal/postproc"
)

const (
	defaultCropMargin = 4
	overlayOpacity    = 0.5
)

// ToolCallParams represents the parameters for a tools/call MCP request.
type ToolCallParams struct {
	// Name is the tool to invoke (e.g., "text_detect", "text_heatmap").
	Name string `json:"name"`

	// Arguments contains the tool-specific parameters as JSON.
	Arguments json.RawMessage `json:"arguments"`
}

// handleToolsCall processes a tools/call request and executes the specified tool.
//
// The response wraps the tool result in MCP's content format:
//
//	{
//	  "content": [{"type": "text", "text": "<JSON result>"}]
//	}
//
// Tool execution errors return a JSON-RPC error response with code -32000.
func (s *Server) handleToolsCall(ctx context.Context, req *MCPRequest) *MCPResponse {
	var params ToolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return s.errorResponse(req.ID, -32602, "Invalid params", err.Error())
	}

	result, err := s.executeTool(ctx, params.Name, params.Arguments)
	if err != nil {
		s.log.WithError(err).WithField("tool", params.Name).Warn("tool failed")
		return s.errorResponse(req.ID, -32000, "Tool execution failed", err.Error())
	}

	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"content": []map[string]interface{}{
				{
					"type": "text",
					"text": mustMarshalJSON(result),
				},
			},
		},
	}
}

// executeTool dispatches tool execution to the appropriate handler function.
func (s *Server) executeTool(ctx context.Context, name string, args json.RawMessage) (interface{}, error) {
	switch name {
	case "image_info":
		return s.handleImageInfo(args)
	case "text_detect":
		return s.handleTextDetect(ctx, args)
	case "text_heatmap":
		return s.handleTextHeatmap(ctx, args)
	case "text_region_crop":
		return s.handleTextRegionCrop(ctx, args)
	default:
		return nil, fmt.Errorf("unknown tool: %s", name)
	}
}

// errorResponse creates a JSON-RPC error response with the given details.
func (s *Server) errorResponse(id interface{}, code int, message, data string) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error: &MCPError{
			Code:    code,
			Message: message,
			Data:    data,
		},
	}
}

// mustMarshalJSON converts a value to pretty-printed JSON string.
// Panics are suppressed; on marshal failure, returns an empty string.
func mustMarshalJSON(v interface{}) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}

type pathArgs struct {
	Path string `json:"path"`
}

func decodeArgs(args json.RawMessage, v interface{}) error {
	if len(args) == 0 {
		return errors.New("missing arguments")
	}
	return json.Unmarshal(args, v)
}

func (s *Server) handleImageInfo(args json.RawMessage) (interface{}, error) {
	var a pathArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	return imaging.LoadImageInfo(a.Path)
}

// === Detection Handlers ===

type textDetectArgs struct {
	Path      string `json:"path"`
	MaxSide   int    `json:"max_side"`
	Recognize bool   `json:"recognize"`
}

// Word is one detected word in a text_detect result.
type Word struct {
	Index      int              `json:"index"`
	Polygon    []postproc.Point `json:"polygon"`
	Box        postproc.Box     `json:"box"`
	Text       string           `json:"text,omitempty"`
	Confidence float64          `json:"confidence,omitempty"`
}

// DetectResult is the result of the text_detect tool.
type DetectResult struct {
	Width       int     `json:"width"`
	Height      int     `json:"height"`
	WordCount   int     `json:"word_count"`
	Words       []Word  `json:"words"`
	InferTimeMS float64 `json:"infer_time_ms"`
	PostTimeMS  float64 `json:"postproc_time_ms"`
}

// detect runs the detector on the cached image at path, optionally on a
// downscaled copy, and returns detections in the coordinates of the
// original image.
func (s *Server) detect(ctx context.Context, path string, maxSide int) (*image.NRGBA, *detection.Result, error) {
	if path == "" {
		return nil, nil, errors.New("path is required")
	}
	if maxSide < 0 {
		return nil, nil, fmt.Errorf("max_side must not be negative, got %d", maxSide)
	}
	img, err := s.cache.Load(path)
	if err != nil {
		return nil, nil, err
	}

	input := img
	scaled := imaging.ScaleToFit(img, maxSide)
	if scaled != image.Image(img) {
		input = imaging.ToRGB(scaled)
	}

	res, err := s.detector.TestNet(ctx, input)
	if err != nil {
		return nil, nil, err
	}

	if input != img {
		sx := float64(img.Bounds().Dx()) / float64(input.Bounds().Dx())
		sy := float64(img.Bounds().Dy()) / float64(input.Bounds().Dy())
		res.Boxes = postproc.AdjustResultCoordinates(res.Boxes, sx, sy, 1)
		res.Polys = postproc.AdjustPolygonCoordinates(res.Polys, sx, sy, 1)
	}
	return img, res, nil
}

func (s *Server) handleTextDetect(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a textDetectArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	img, res, err := s.detect(ctx, a.Path, a.MaxSide)
	if err != nil {
		return nil, err
	}

	var regions []ocr.TextRegion
	if a.Recognize {
		if s.recognizer == nil {
			return nil, errors.New("recognition is not enabled on this server")
		}
		regions, err = s.recognizer.Recognize(img, res.Polys)
		if err != nil {
			return nil, err
		}
	}

	out := &DetectResult{
		Width:       img.Bounds().Dx(),
		Height:      img.Bounds().Dy(),
		WordCount:   len(res.Boxes),
		Words:       make([]Word, len(res.Boxes)),
		InferTimeMS: float64(res.InferTime.Microseconds()) / 1000,
		PostTimeMS:  float64(res.PostTime.Microseconds()) / 1000,
	}
	for i, box := range res.Boxes {
		w := Word{Index: i, Box: box, Polygon: box.Polygon()}
		if i < len(res.Polys) && res.Polys[i] != nil {
			w.Polygon = res.Polys[i]
		}
		if i < len(regions) {
			w.Text = regions[i].Text
			w.Confidence = regions[i].Confidence
		}
		out.Words[i] = w
	}
	return out, nil
}

type textHeatmapArgs struct {
	Path    string `json:"path"`
	Overlay bool   `json:"overlay"`
}

func (s *Server) handleTextHeatmap(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a textHeatmapArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	img, res, err := s.detect(ctx, a.Path, 0)
	if err != nil {
		return nil, err
	}
	if res.Heatmap == nil {
		return nil, errors.New("detector returned no heatmap")
	}

	var out image.Image = res.Heatmap
	if a.Overlay {
		// The left half of the heatmap is the region score.
		b := res.Heatmap.Bounds()
		text := res.Heatmap.SubImage(image.Rect(b.Min.X, b.Min.Y, b.Min.X+b.Dx()/2, b.Max.Y))
		out = imaging.Overlay(img, text, overlayOpacity)
	}
	return imaging.EncodePNG(out)
}

type textRegionCropArgs struct {
	Path   string `json:"path"`
	Index  *int   `json:"index"`
	Margin *int   `json:"margin"`
}

// CropResult is the result of the text_region_crop tool.
type CropResult struct {
	*imaging.EncodedImage
	Index   int              `json:"index"`
	Polygon []postproc.Point `json:"polygon"`
	Bounds  image.Rectangle  `json:"bounds"`
}

func (s *Server) handleTextRegionCrop(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a textRegionCropArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	if a.Index == nil {
		return nil, errors.New("index is required")
	}
	margin := defaultCropMargin
	if a.Margin != nil {
		margin = *a.Margin
	}

	img, res, err := s.detect(ctx, a.Path, 0)
	if err != nil {
		return nil, err
	}
	idx := *a.Index
	if idx < 0 || idx >= len(res.Boxes) {
		return nil, fmt.Errorf("index %d out of range: %d words detected", idx, len(res.Boxes))
	}

	poly := res.Boxes[idx].Polygon()
	if idx < len(res.Polys) && res.Polys[idx] != nil {
		poly = res.Polys[idx]
	}
	pts := make([]image.Point, len(poly))
	for i, p := range poly {
		pts[i] = image.Pt(int(p.X), int(p.Y))
	}

	crop, err := imaging.CropPolygon(img, pts, margin)
	if err != nil {
		return nil, err
	}
	enc, err := imaging.EncodePNG(crop)
	if err != nil {
		return nil, err
	}
	return &CropResult{
		EncodedImage: enc,
		Index:        idx,
		Polygon:      poly,
		Bounds:       imaging.PolygonBounds(pts, margin, img.Bounds()),
	}, nil
}
