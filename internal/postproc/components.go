package postproc

import "image"

// LabelMap assigns a component id to every score-map pixel; 0 is
// background.
type LabelMap struct {
	W, H   int
	Labels []int32
}

// At returns the label at (x, y), or 0 outside the map.
func (m *LabelMap) At(x, y int) int32 {
	if x < 0 || y < 0 || x >= m.W || y >= m.H {
		return 0
	}
	return m.Labels[y*m.W+x]
}

// componentStats describes one connected component.
type componentStats struct {
	bounds image.Rectangle
	area   int
}

// connectedComponents labels the 4-connected regions of non-zero pixels in
// mask. Labels are numbered from 1 in the raster order of each region's
// first pixel; stats[0] is unused.
func connectedComponents(mask []uint8, w, h int) (*LabelMap, []componentStats) {
	lm := &LabelMap{W: w, H: h, Labels: make([]int32, w*h)}
	stats := []componentStats{{}}
	queue := make([]int, 0, 64)

	for start, v := range mask {
		if v == 0 || lm.Labels[start] != 0 {
			continue
		}
		label := int32(len(stats))
		sx, sy := start%w, start/w
		st := componentStats{bounds: image.Rect(sx, sy, sx+1, sy+1)}

		visit := func(n int) {
			if mask[n] != 0 && lm.Labels[n] == 0 {
				lm.Labels[n] = label
				queue = append(queue, n)
			}
		}

		lm.Labels[start] = label
		queue = append(queue[:0], start)
		for len(queue) > 0 {
			i := queue[len(queue)-1]
			queue = queue[:len(queue)-1]
			x, y := i%w, i/w
			st.area++
			st.bounds = st.bounds.Union(image.Rect(x, y, x+1, y+1))

			if x > 0 {
				visit(i - 1)
			}
			if x < w-1 {
				visit(i + 1)
			}
			if y > 0 {
				visit(i - w)
			}
			if y < h-1 {
				visit(i + w)
			}
		}
		stats = append(stats, st)
	}
	return lm, stats
}

// dilateRect applies a binary dilation with a size x size rectangular kernel
// anchored at its centre. Pixels outside the buffer are treated as empty.
func dilateRect(src []uint8, w, h, size int) []uint8 {
	if size <= 1 {
		return append([]uint8(nil), src...)
	}
	anchor := size / 2
	// dst(x) = max src(x + i - anchor), i in [0, size)
	lo, hi := -anchor, size-1-anchor

	tmp := make([]uint8, len(src))
	for y := 0; y < h; y++ {
		row := src[y*w : (y+1)*w]
		out := tmp[y*w : (y+1)*w]
		for x := range out {
			for d := max(lo, -x); d <= hi && x+d < w; d++ {
				if row[x+d] != 0 {
					out[x] = 255
					break
				}
			}
		}
	}

	dst := make([]uint8, len(src))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			for d := max(lo, -y); d <= hi && y+d < h; d++ {
				if tmp[(y+d)*w+x] != 0 {
					dst[y*w+x] = 255
					break
				}
			}
		}
	}
	return dst
}
