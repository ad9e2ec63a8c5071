package mask

import (
	"wsi-patcher/pkg/geometry"

	"gocv.io/x/gocv"
)

// Mask is a boolean 2-D grid at a fixed reference pyramid level;
// true marks tissue. It is owned by the slide it was computed for and is
// read-only once built.
type Mask struct {
	width  int
	height int
	bits   []bool
}

// NewMask creates an all-false mask.
func NewMask(width, height int) *Mask {
	return &Mask{
		width:  width,
		height: height,
		bits:   make([]bool, width*height),
	}
}

// FromMat builds a mask from a single-channel Mat: nonzero pixels are true.
func FromMat(mat gocv.Mat) *Mask {
	m := NewMask(mat.Cols(), mat.Rows())
	for y := 0; y < m.height; y++ {
		for x := 0; x < m.width; x++ {
			if mat.GetUCharAt(y, x) != 0 {
				m.bits[y*m.width+x] = true
			}
		}
	}
	return m
}

// Width returns the mask width in pixels.
func (m *Mask) Width() int { return m.width }

// Height returns the mask height in pixels.
func (m *Mask) Height() int { return m.height }

// Bounds returns the mask extent as a rectangle at origin.
func (m *Mask) Bounds() geometry.RectInt {
	return geometry.RectInt{Width: m.width, Height: m.height}
}

// At reports the mask value at (x, y); coordinates outside the grid are false.
func (m *Mask) At(x, y int) bool {
	if x < 0 || x >= m.width || y < 0 || y >= m.height {
		return false
	}
	return m.bits[y*m.width+x]
}

// Set assigns the mask value at (x, y). Out-of-range coordinates are ignored.
func (m *Mask) Set(x, y int, v bool) {
	if x < 0 || x >= m.width || y < 0 || y >= m.height {
		return
	}
	m.bits[y*m.width+x] = v
}

// Union merges another mask of the same dimensions into this one in place.
// Masks of different dimensions are left untouched.
func (m *Mask) Union(other *Mask) {
	if other == nil || other.width != m.width || other.height != m.height {
		return
	}
	for i, b := range other.bits {
		if b {
			m.bits[i] = true
		}
	}
}

// Count returns the number of true pixels.
func (m *Mask) Count() int {
	n := 0
	for _, b := range m.bits {
		if b {
			n++
		}
	}
	return n
}

// Fraction returns the fraction of true pixels inside the rectangle,
// computed over the part of the rectangle that overlaps the mask.
// Returns 0 when the rectangle misses the mask entirely.
func (m *Mask) Fraction(r geometry.RectInt) float64 {
	clipped := r.Intersect(m.Bounds())
	if clipped.Empty() {
		return 0
	}

	n := 0
	for y := clipped.Y; y < clipped.Y+clipped.Height; y++ {
		row := m.bits[y*m.width : (y+1)*m.width]
		for x := clipped.X; x < clipped.X+clipped.Width; x++ {
			if row[x] {
				n++
			}
		}
	}
	return float64(n) / float64(clipped.Area())
}

// ToMat renders the mask as a single-channel Mat with tissue at 255.
// The caller owns the result.
func (m *Mask) ToMat() gocv.Mat {
	mat := gocv.Zeros(m.height, m.width, gocv.MatTypeCV8U)
	for y := 0; y < m.height; y++ {
		for x := 0; x < m.width; x++ {
			if m.bits[y*m.width+x] {
				mat.SetUCharAt(y, x, 255)
			}
		}
	}
	return mat
}
