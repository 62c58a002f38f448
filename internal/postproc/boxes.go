package postproc

import (
	"fmt"
	"math"
)

const (
	// minComponentArea drops specks smaller than this many pixels.
	minComponentArea = 10

	// squareTolerance is how far from 1 a box's side ratio may be before
	// the rotated rectangle is kept instead of the axis-aligned bounds.
	squareTolerance = 0.1
)

// Thresholds controls how score maps are binarised.
type Thresholds struct {
	// Text is the minimum peak region score a component needs to be kept.
	Text float64

	// Link is the affinity threshold joining characters into words.
	Link float64

	// LowText is the region score threshold for the component mask.
	LowText float64
}

// Detection is the output of GetDetBoxesCore.
type Detection struct {
	// Boxes are the word boxes in score-map coordinates.
	Boxes []Box

	// Labels is the component map the boxes were extracted from.
	Labels *LabelMap

	// Mapper holds the component label of each box.
	Mapper []int32
}

// GetDetBoxesCore extracts word boxes from region and affinity score maps
// of size w x h.
//
// A pixel belongs to the word mask when its region score exceeds
// th.LowText or its affinity score exceeds th.Link. Each 4-connected
// component of at least 10 pixels whose peak region score reaches th.Text
// becomes one box: affinity-only pixels are removed, the remainder is
// dilated by a kernel that grows with the component's thickness, and the
// minimum-area rectangle of the result is taken. Near-square rectangles are
// replaced by their axis-aligned bounds.
func GetDetBoxesCore(text, link []float32, w, h int, th Thresholds) (*Detection, error) {
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("invalid score map size %dx%d", w, h)
	}
	if len(text) != w*h || len(link) != w*h {
		return nil, fmt.Errorf("score maps have %d and %d values, want %d", len(text), len(link), w*h)
	}

	lowText := float32(th.LowText)
	linkThr := float32(th.Link)

	textScore := make([]bool, w*h)
	linkScore := make([]bool, w*h)
	combined := make([]uint8, w*h)
	for i := range text {
		textScore[i] = text[i] > lowText
		linkScore[i] = link[i] > linkThr
		if textScore[i] || linkScore[i] {
			combined[i] = 1
		}
	}

	labels, stats := connectedComponents(combined, w, h)
	det := &Detection{Labels: labels}

	for k := 1; k < len(stats); k++ {
		st := stats[k]
		if st.area < minComponentArea {
			continue
		}

		label := int32(k)
		bx, by := st.bounds.Min.X, st.bounds.Min.Y
		bw, bh := st.bounds.Dx(), st.bounds.Dy()

		peak := float32(math.Inf(-1))
		for y := by; y < by+bh; y++ {
			for x := bx; x < bx+bw; x++ {
				i := y*w + x
				if labels.Labels[i] == label && text[i] > peak {
					peak = text[i]
				}
			}
		}
		if float64(peak) < th.Text {
			continue
		}

		niter := int(math.Sqrt(float64(st.area*min(bw, bh))/float64(bw*bh)) * 2)
		sx, ex := max(bx-niter, 0), min(bx+bw+niter+1, w)
		sy, ey := max(by-niter, 0), min(by+bh+niter+1, h)
		rw, rh := ex-sx, ey-sy

		seg := make([]uint8, rw*rh)
		for y := by; y < by+bh; y++ {
			for x := bx; x < bx+bw; x++ {
				i := y*w + x
				if labels.Labels[i] != label {
					continue
				}
				if linkScore[i] && !textScore[i] {
					continue
				}
				seg[(y-sy)*rw+(x-sx)] = 255
			}
		}
		seg = dilateRect(seg, rw, rh, 1+niter)

		var pts []ipoint
		for y := 0; y < rh; y++ {
			for x := 0; x < rw; x++ {
				if seg[y*rw+x] != 0 {
					pts = append(pts, ipoint{x + sx, y + sy})
				}
			}
		}
		if len(pts) == 0 {
			continue
		}

		det.Boxes = append(det.Boxes, boxFromPoints(pts))
		det.Mapper = append(det.Mapper, label)
	}
	return det, nil
}

// boxFromPoints fits the minimum-area rectangle around pts, falling back to
// the axis-aligned bounds when the rectangle is nearly square.
func boxFromPoints(pts []ipoint) Box {
	corners := minAreaRect(pts)

	bw := dist(corners[0], corners[1])
	bh := dist(corners[1], corners[2])
	ratio := math.Max(bw, bh) / (math.Min(bw, bh) + 1e-5)
	if math.Abs(1-ratio) <= squareTolerance {
		l, r := pts[0].x, pts[0].x
		t, b := pts[0].y, pts[0].y
		for _, p := range pts[1:] {
			l, r = min(l, p.x), max(r, p.x)
			t, b = min(t, p.y), max(b, p.y)
		}
		corners = [4]Point{
			{float64(l), float64(t)},
			{float64(r), float64(t)},
			{float64(r), float64(b)},
			{float64(l), float64(b)},
		}
	}
	return startAtTopLeft(corners)
}

// GetDetBoxes runs GetDetBoxesCore and, when poly is set, fits polygons to
// the boxes. Without poly every polygon is nil.
func GetDetBoxes(text, link []float32, w, h int, th Thresholds, poly bool) ([]Box, []Polygon, error) {
	det, err := GetDetBoxesCore(text, link, w, h, th)
	if err != nil {
		return nil, nil, err
	}

	var polys []Polygon
	if poly {
		polys = GetPolyCore(det.Boxes, det.Labels, det.Mapper)
	} else {
		polys = make([]Polygon, len(det.Boxes))
	}
	return det.Boxes, polys, nil
}

// AdjustResultCoordinates scales boxes from score-map to image coordinates.
// ratioNet is the detector's down-sampling factor, normally 2.
func AdjustResultCoordinates(boxes []Box, ratioW, ratioH, ratioNet float64) []Box {
	sx, sy := ratioW*ratioNet, ratioH*ratioNet
	out := make([]Box, len(boxes))
	for k, b := range boxes {
		for i, p := range b {
			out[k][i] = Point{p.X * sx, p.Y * sy}
		}
	}
	return out
}

// AdjustPolygonCoordinates scales polygons like AdjustResultCoordinates.
// Missing polygons stay nil.
func AdjustPolygonCoordinates(polys []Polygon, ratioW, ratioH, ratioNet float64) []Polygon {
	sx, sy := ratioW*ratioNet, ratioH*ratioNet
	out := make([]Polygon, len(polys))
	for k, poly := range polys {
		if poly == nil {
			continue
		}
		out[k] = make(Polygon, len(poly))
		for i, p := range poly {
			out[k][i] = Point{p.X * sx, p.Y * sy}
		}
	}
	return out
}

// Polygon returns the box as a four-point polygon.
func (b Box) Polygon() Polygon {
	return Polygon{b[0], b[1], b[2], b[3]}
}
