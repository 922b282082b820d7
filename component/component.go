// Package component implements the connected-component table the
// fiducial detector's filtering stage operates on: horizontal run-length
// segments linked across rows by a union-find pass, with bounding-box,
// centroid, hollow-row and solidity queries. Grounded on spec.md §3's
// ConnectedComponent segment model and §4.6 steps 3-5.
package component

// Segment is one horizontal run of a binary component: a single row's
// [XStart, XEnd] pixel span, tagged with the id of the component it
// belongs to. A component is the set of segments sharing an id.
type Segment struct {
	XStart, XEnd int
	Y            int
	ID           int
}

// Width returns the number of pixels the segment spans, inclusive.
func (s Segment) Width() int { return s.XEnd - s.XStart + 1 }

// Overlaps reports whether s and other's x-ranges intersect (used to link
// segments across adjacent rows into one component).
func (s Segment) Overlaps(other Segment) bool {
	return s.XStart <= other.XEnd && other.XStart <= s.XEnd
}

// Q23_8 is a 23.8 fixed-point fraction, the format spec.md §4.6 uses for
// solidity/hollow thresholds.
type Q23_8 int32

// NewQ23_8 converts a float64 ratio to Q23.8.
func NewQ23_8(f float64) Q23_8 { return Q23_8(f * 256) }

// Float64 converts back to a plain ratio.
func (q Q23_8) Float64() float64 { return float64(q) / 256 }

// BoundingBox returns the inclusive pixel bounding box of every segment
// with the given id.
func BoundingBox(segments []Segment, id int) (minX, minY, maxX, maxY int, found bool) {
	minX, minY, maxX, maxY = 1<<30, 1<<30, -(1 << 30), -(1 << 30)
	for _, s := range segments {
		if s.ID != id {
			continue
		}
		found = true
		if s.XStart < minX {
			minX = s.XStart
		}
		if s.XEnd > maxX {
			maxX = s.XEnd
		}
		if s.Y < minY {
			minY = s.Y
		}
		if s.Y > maxY {
			maxY = s.Y
		}
	}
	return
}

// PixelCount returns the total number of pixels across all segments of id.
func PixelCount(segments []Segment, id int) int {
	count := 0
	for _, s := range segments {
		if s.ID == id {
			count += s.Width()
		}
	}
	return count
}

// Centroid returns the pixel-weighted centroid of the segments with id.
func Centroid(segments []Segment, id int) (cx, cy float64, found bool) {
	var sumX, sumY, n float64
	for _, s := range segments {
		if s.ID != id {
			continue
		}
		found = true
		w := float64(s.Width())
		mid := float64(s.XStart+s.XEnd) / 2
		sumX += mid * w
		sumY += float64(s.Y) * w
		n += w
	}
	if n == 0 {
		return 0, 0, false
	}
	return sumX / n, sumY / n, found
}

// IsHollow reports whether the component with the given id has, on at
// least one row inside its bounding box, a gap between its leftmost and
// rightmost extent not covered by any of its own segments — the
// interior-fiducial-hole test spec.md §4.6 step 5 requires.
func IsHollow(segments []Segment, id int) bool {
	minX, minY, maxX, maxY, found := BoundingBox(segments, id)
	if !found {
		return false
	}
	byRow := make(map[int][]Segment)
	for _, s := range segments {
		if s.ID == id {
			byRow[s.Y] = append(byRow[s.Y], s)
		}
	}
	for y := minY; y <= maxY; y++ {
		row := byRow[y]
		if len(row) == 0 {
			continue
		}
		covered := make([]bool, maxX-minX+1)
		rowMin, rowMax := maxX, minX
		for _, s := range row {
			if s.XStart < rowMin {
				rowMin = s.XStart
			}
			if s.XEnd > rowMax {
				rowMax = s.XEnd
			}
			for x := s.XStart; x <= s.XEnd; x++ {
				covered[x-minX] = true
			}
		}
		for x := rowMin + 1; x < rowMax; x++ {
			if !covered[x-minX] {
				return true
			}
		}
	}
	return false
}
