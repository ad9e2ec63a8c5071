// Package colorutil provides shared color utilities for the slide tools.
package colorutil

import (
	"image/color"
	"math"
)

// Common plot colors used by the preview tools.
var (
	PlotBackground = color.RGBA{R: 250, G: 250, B: 250, A: 255}
	PlotBar        = color.RGBA{R: 40, G: 80, B: 200, A: 255}
	PlotBand       = color.RGBA{R: 255, G: 190, B: 190, A: 255}
)

// RGBToHSVFull converts RGB (0-255) to HSV in OpenCV's full-range
// convention: H, S and V all span 0-255.
func RGBToHSVFull(r, g, b float64) (h, s, v float64) {
	r /= 255.0
	g /= 255.0
	b /= 255.0

	maxC := math.Max(r, math.Max(g, b))
	minC := math.Min(r, math.Min(g, b))
	diff := maxC - minC

	v = maxC * 255.0

	if maxC == 0 {
		s = 0
	} else {
		s = (diff / maxC) * 255.0
	}

	if diff == 0 {
		h = 0
	} else if maxC == r {
		h = 60 * math.Mod((g-b)/diff, 6)
	} else if maxC == g {
		h = 60 * ((b-r)/diff + 2)
	} else {
		h = 60 * ((r-g)/diff + 4)
	}

	if h < 0 {
		h += 360
	}

	// Scale 0-360 degrees onto the full byte range.
	h = h * 255.0 / 360.0

	return h, s, v
}
