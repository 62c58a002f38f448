package postproc

import (
	"math"
	"testing"
)

var defaultThresholds = Thresholds{Text: 0.7, Link: 0.4, LowText: 0.4}

// scoreMap returns a w x h map with the rectangle [x0,x1) x [y0,y1) set to v.
func scoreMap(w, h int, rects ...[5]float64) []float32 {
	m := make([]float32, w*h)
	for _, r := range rects {
		for y := int(r[1]); y < int(r[3]); y++ {
			for x := int(r[0]); x < int(r[2]); x++ {
				m[y*w+x] = float32(r[4])
			}
		}
	}
	return m
}

func approx(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol
}

func TestConnectedComponents(t *testing.T) {
	// 1 1 0 0
	// 0 0 0 1
	// 0 0 1 0
	mask := []uint8{
		1, 1, 0, 0,
		0, 0, 0, 1,
		0, 0, 1, 0,
	}
	lm, stats := connectedComponents(mask, 4, 3)

	if len(stats) != 4 {
		t.Fatalf("got %d labels, want 3 (plus background)", len(stats)-1)
	}
	if lm.At(0, 0) != 1 || lm.At(1, 0) != 1 {
		t.Errorf("first run labelled %d,%d, want 1", lm.At(0, 0), lm.At(1, 0))
	}
	if lm.At(3, 1) != 2 || lm.At(2, 2) != 3 {
		t.Errorf("diagonal neighbours should be separate components: %d, %d", lm.At(3, 1), lm.At(2, 2))
	}
	if stats[1].area != 2 || stats[1].bounds.Dx() != 2 || stats[1].bounds.Dy() != 1 {
		t.Errorf("stats[1] = %+v", stats[1])
	}
	if lm.At(-1, 0) != 0 || lm.At(4, 0) != 0 {
		t.Error("out of range lookups should be background")
	}
}

func TestConnectedComponents_SingleColumn(t *testing.T) {
	lm, stats := connectedComponents([]uint8{1, 1, 0, 1}, 1, 4)
	if len(stats) != 3 {
		t.Fatalf("got %d labels, want 2", len(stats)-1)
	}
	if lm.Labels[1] != 1 || lm.Labels[3] != 2 {
		t.Errorf("labels = %v", lm.Labels)
	}
}

func TestDilateRect(t *testing.T) {
	src := make([]uint8, 25)
	src[2*5+2] = 255

	tests := []struct {
		size int
		want []int // indices expected set
	}{
		{1, []int{12}},
		{2, []int{12, 13, 17, 18}},
		{3, []int{6, 7, 8, 11, 12, 13, 16, 17, 18}},
	}
	for _, tt := range tests {
		got := dilateRect(src, 5, 5, tt.size)
		set := map[int]bool{}
		for _, i := range tt.want {
			set[i] = true
		}
		for i, v := range got {
			if (v != 0) != set[i] {
				t.Errorf("size %d: pixel %d = %d", tt.size, i, v)
			}
		}
	}
}

func TestMinAreaRect_Rotated(t *testing.T) {
	pts := []ipoint{{0, 2}, {4, 0}, {5, 2}, {1, 4}, {2, 2}, {3, 2}}
	got := startAtTopLeft(minAreaRect(pts))
	want := Box{{0, 2}, {4, 0}, {5, 2}, {1, 4}}
	for i := range want {
		if !approx(got[i].X, want[i].X, 1e-9) || !approx(got[i].Y, want[i].Y, 1e-9) {
			t.Fatalf("minAreaRect = %v, want %v", got, want)
		}
	}
}

func TestMinAreaRect_Degenerate(t *testing.T) {
	got := minAreaRect([]ipoint{{3, 4}, {3, 4}})
	for _, p := range got {
		if p != (Point{3, 4}) {
			t.Fatalf("single point rect = %v", got)
		}
	}

	line := minAreaRect([]ipoint{{0, 0}, {4, 0}})
	if dist(line[0], line[1])*dist(line[1], line[2]) != 0 {
		t.Errorf("segment rect should have zero area: %v", line)
	}
}

func TestStartAtTopLeft_Tie(t *testing.T) {
	b := startAtTopLeft([4]Point{{5, 0}, {10, 5}, {5, 10}, {0, 5}})
	if b[0] != (Point{0, 5}) {
		t.Errorf("first corner %v, want the smaller X on a tie", b[0])
	}
	if b[1] != (Point{5, 0}) {
		t.Errorf("corner order not preserved: %v", b)
	}
}

func TestPerspectiveTransform(t *testing.T) {
	src := [4]Point{{10, 20}, {50, 20}, {50, 40}, {10, 40}}
	dst := [4]Point{{0, 0}, {80, 0}, {80, 20}, {0, 20}}

	m, err := perspectiveTransform(src, dst)
	if err != nil {
		t.Fatalf("perspectiveTransform failed: %v", err)
	}
	for i := range src {
		got := warpCoord(m, src[i])
		if !approx(got.X, dst[i].X, 1e-9) || !approx(got.Y, dst[i].Y, 1e-9) {
			t.Errorf("corner %d maps to %v, want %v", i, got, dst[i])
		}
	}

	inv, err := invert(m)
	if err != nil {
		t.Fatalf("invert failed: %v", err)
	}
	back := warpCoord(inv, Point{40, 10})
	if !approx(back.X, 30, 1e-9) || !approx(back.Y, 30, 1e-9) {
		t.Errorf("inverse maps centre to %v, want (30, 30)", back)
	}

	collapsed := [4]Point{{1, 1}, {1, 1}, {1, 1}, {1, 1}}
	if _, err := perspectiveTransform(collapsed, dst); err == nil {
		t.Error("expected error for degenerate quad")
	}
}

func TestBresenham(t *testing.T) {
	var got [][2]int
	bresenham(0, 0, 3, 1, func(x, y int) bool {
		got = append(got, [2]int{x, y})
		return true
	})
	want := [][2]int{{0, 0}, {1, 0}, {2, 1}, {3, 1}}
	if len(got) != len(want) {
		t.Fatalf("line = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("line = %v, want %v", got, want)
		}
	}

	n := 0
	bresenham(5, 5, 5, 0, func(x, y int) bool {
		n++
		return y > 3
	})
	if n != 3 {
		t.Errorf("early stop visited %d pixels, want 3", n)
	}
}

func TestMedian(t *testing.T) {
	if got := median([]int{9, 1, 5, 3, 7}); got != 5 {
		t.Errorf("median odd = %v", got)
	}
	if got := median([]int{4, 1, 3, 2}); got != 2.5 {
		t.Errorf("median even = %v", got)
	}
}

func TestGetDetBoxesCore_SingleWord(t *testing.T) {
	const w, h = 40, 20
	text := scoreMap(w, h, [5]float64{5, 8, 35, 12, 0.9})
	link := make([]float32, w*h)

	det, err := GetDetBoxesCore(text, link, w, h, defaultThresholds)
	if err != nil {
		t.Fatalf("GetDetBoxesCore failed: %v", err)
	}
	if len(det.Boxes) != 1 {
		t.Fatalf("got %d boxes, want 1", len(det.Boxes))
	}

	// niter = 4, so the bar grows by the kernel anchor (2) on every side.
	want := Box{{3, 6}, {36, 6}, {36, 13}, {3, 13}}
	if det.Boxes[0] != want {
		t.Errorf("box = %v, want %v", det.Boxes[0], want)
	}
	if det.Mapper[0] != 1 {
		t.Errorf("mapper = %v, want [1]", det.Mapper)
	}
}

func TestGetDetBoxesCore_SquareUsesBounds(t *testing.T) {
	const w, h = 60, 60
	text := scoreMap(w, h, [5]float64{20, 20, 30, 30, 0.95})

	det, err := GetDetBoxesCore(text, make([]float32, w*h), w, h, defaultThresholds)
	if err != nil {
		t.Fatalf("GetDetBoxesCore failed: %v", err)
	}
	if len(det.Boxes) != 1 {
		t.Fatalf("got %d boxes, want 1", len(det.Boxes))
	}
	want := Box{{17, 17}, {32, 17}, {32, 32}, {17, 32}}
	if det.Boxes[0] != want {
		t.Errorf("box = %v, want %v", det.Boxes[0], want)
	}
}

func TestGetDetBoxesCore_Filters(t *testing.T) {
	const w, h = 60, 30
	text := scoreMap(w, h,
		[5]float64{2, 2, 5, 5, 0.9},     // 9 pixels: too small
		[5]float64{10, 10, 40, 14, 0.5}, // above low_text, peak below text
	)

	det, err := GetDetBoxesCore(text, make([]float32, w*h), w, h, defaultThresholds)
	if err != nil {
		t.Fatalf("GetDetBoxesCore failed: %v", err)
	}
	if len(det.Boxes) != 0 {
		t.Errorf("got %d boxes, want none", len(det.Boxes))
	}
}

func TestGetDetBoxesCore_LinkJoinsCharacters(t *testing.T) {
	const w, h = 40, 24
	text := scoreMap(w, h,
		[5]float64{5, 10, 15, 14, 0.9},
		[5]float64{20, 10, 30, 14, 0.9},
	)
	link := scoreMap(w, h, [5]float64{15, 10, 20, 14, 0.9})

	joined, err := GetDetBoxesCore(text, link, w, h, defaultThresholds)
	if err != nil {
		t.Fatalf("GetDetBoxesCore failed: %v", err)
	}
	if len(joined.Boxes) != 1 {
		t.Fatalf("linked characters gave %d boxes, want 1", len(joined.Boxes))
	}
	b := joined.Boxes[0]
	if b[0] != (Point{3, 8}) || b[2] != (Point{31, 15}) {
		t.Errorf("joined box = %v", b)
	}

	split, err := GetDetBoxesCore(text, link, w, h, Thresholds{Text: 0.7, Link: 0.95, LowText: 0.4})
	if err != nil {
		t.Fatalf("GetDetBoxesCore failed: %v", err)
	}
	if len(split.Boxes) != 2 {
		t.Errorf("unlinked characters gave %d boxes, want 2", len(split.Boxes))
	}
}

func TestGetDetBoxesCore_InvalidInput(t *testing.T) {
	if _, err := GetDetBoxesCore(nil, nil, 0, 4, defaultThresholds); err == nil {
		t.Error("expected error for empty map")
	}
	if _, err := GetDetBoxesCore(make([]float32, 4), make([]float32, 3), 2, 2, defaultThresholds); err == nil {
		t.Error("expected error for mismatched lengths")
	}
}

func TestGetDetBoxes_Polygon(t *testing.T) {
	const w, h = 100, 50
	text := scoreMap(w, h, [5]float64{10, 20, 90, 29, 0.9})
	link := make([]float32, w*h)

	boxes, polys, err := GetDetBoxes(text, link, w, h, defaultThresholds, true)
	if err != nil {
		t.Fatalf("GetDetBoxes failed: %v", err)
	}
	if len(boxes) != 1 || len(polys) != 1 {
		t.Fatalf("got %d boxes and %d polys, want 1 each", len(boxes), len(polys))
	}
	if want := (Box{{7, 17}, {92, 17}, {92, 31}, {7, 31}}); boxes[0] != want {
		t.Fatalf("box = %v, want %v", boxes[0], want)
	}

	poly := polys[0]
	if len(poly) != 2*numControlPoints+4 {
		t.Fatalf("polygon has %d points, want %d", len(poly), 2*numControlPoints+4)
	}

	// Upper edge runs along y = 17 + 0.25*14/15, lower along 17 + 14.75*14/15.
	top, bottom := 17+0.25*14.0/15, 17+14.75*14.0/15
	for i := 0; i < numControlPoints+2; i++ {
		if !approx(poly[i].Y, top, 1e-6) {
			t.Errorf("upper point %d = %v, want y %.3f", i, poly[i], top)
		}
	}
	for i := numControlPoints + 2; i < len(poly); i++ {
		if !approx(poly[i].Y, bottom, 1e-6) {
			t.Errorf("lower point %d = %v, want y %.3f", i, poly[i], bottom)
		}
	}
	if !approx(poly[0].X, 7+0.75*85.0/86, 1e-6) {
		t.Errorf("start point %v", poly[0])
	}
	for i := 1; i < numControlPoints+2; i++ {
		if poly[i].X <= poly[i-1].X {
			t.Errorf("upper edge not left to right at %d: %v", i, poly)
		}
	}
}

func TestGetDetBoxes_NoPoly(t *testing.T) {
	const w, h = 40, 20
	text := scoreMap(w, h, [5]float64{5, 8, 35, 12, 0.9})

	boxes, polys, err := GetDetBoxes(text, make([]float32, w*h), w, h, defaultThresholds, false)
	if err != nil {
		t.Fatalf("GetDetBoxes failed: %v", err)
	}
	if len(polys) != len(boxes) {
		t.Fatalf("polys %d, boxes %d", len(polys), len(boxes))
	}
	for i, p := range polys {
		if p != nil {
			t.Errorf("polygon %d = %v, want nil", i, p)
		}
	}
}

func TestGetPolyCore_SmallBox(t *testing.T) {
	lm := &LabelMap{W: 20, H: 20, Labels: make([]int32, 400)}
	boxes := []Box{{{0, 0}, {8, 0}, {8, 8}, {0, 8}}}
	if polys := GetPolyCore(boxes, lm, []int32{1}); polys[0] != nil {
		t.Errorf("small box got polygon %v", polys[0])
	}
}

func TestAdjustCoordinates(t *testing.T) {
	boxes := []Box{{{1, 2}, {3, 2}, {3, 4}, {1, 4}}}
	got := AdjustResultCoordinates(boxes, 0.5, 1.5, 2)
	want := Box{{1, 6}, {3, 6}, {3, 12}, {1, 12}}
	if got[0] != want {
		t.Errorf("AdjustResultCoordinates = %v, want %v", got[0], want)
	}
	if boxes[0][0] != (Point{1, 2}) {
		t.Error("input boxes were modified")
	}

	polys := AdjustPolygonCoordinates([]Polygon{nil, {{2, 2}}}, 1, 1, 2)
	if polys[0] != nil {
		t.Errorf("nil polygon became %v", polys[0])
	}
	if polys[1][0] != (Point{4, 4}) {
		t.Errorf("polygon point = %v, want (4, 4)", polys[1][0])
	}
}
