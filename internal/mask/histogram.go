package mask

import (
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// DefaultHistogramBins matches the binning the threshold tuner displays.
const DefaultHistogramBins = 64

// Histogram is the binned distribution of one channel's byte values.
type Histogram struct {
	// Counts has one entry per bin.
	Counts []float64
	// Edges has len(Counts)+1 entries; bin i covers [Edges[i], Edges[i+1]).
	Edges []float64
}

// BinFor returns the index of the bin containing value v.
func (h Histogram) BinFor(v uint8) int {
	for i := 1; i < len(h.Edges)-1; i++ {
		if float64(v) < h.Edges[i] {
			return i - 1
		}
	}
	return len(h.Counts) - 1
}

// Histograms computes the per-channel value histograms of the planes,
// in channel order. Feeds the tuner's threshold displays.
func (c *Channels) Histograms(bins int) []Histogram {
	out := make([]Histogram, 0, len(ChannelOrder()))
	for _, ch := range ChannelOrder() {
		out = append(out, planeHistogram(c.Plane(ch), bins))
	}
	return out
}

func planeHistogram(plane planeSource, bins int) Histogram {
	rows, cols := plane.Rows(), plane.Cols()
	values := make([]float64, 0, rows*cols)
	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			values = append(values, float64(plane.GetUCharAt(y, x)))
		}
	}
	sort.Float64s(values)

	edges := make([]float64, bins+1)
	floats.Span(edges, 0, 256)

	counts := stat.Histogram(nil, edges, values, nil)
	return Histogram{Counts: counts, Edges: edges}
}

// planeSource is the part of gocv.Mat the histogram needs; it keeps
// planeHistogram testable with synthetic planes.
type planeSource interface {
	Rows() int
	Cols() int
	GetUCharAt(row, col int) uint8
}
