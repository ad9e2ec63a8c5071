package preview

import (
	"image"
	"math"

	"wsi-patcher/internal/mask"
	"wsi-patcher/pkg/colorutil"
)

// Histogram plot geometry. Log-scaled counts, one bar per bin, with the
// selected range tinted.
const (
	histPlotHeight   = 120
	histBarWidth     = 3
	histPlotPaddingY = 4
)

var (
	histBackground = colorutil.PlotBackground
	histBarColor   = colorutil.PlotBar
	histBandColor  = colorutil.PlotBand
)

// PlotHistogram draws a channel histogram with the rule's selected range
// shaded behind the bars. Counts are log-scaled, mirroring how slide
// channel distributions are inspected.
func PlotHistogram(h mask.Histogram, selected mask.Range) image.Image {
	w := len(h.Counts) * histBarWidth
	img := image.NewRGBA(image.Rect(0, 0, w, histPlotHeight))

	for y := 0; y < histPlotHeight; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, histBackground)
		}
	}

	// Shade the selected band.
	loBin := h.BinFor(selected.Low)
	hiBin := h.BinFor(selected.High)
	for bin := loBin; bin <= hiBin; bin++ {
		for y := 0; y < histPlotHeight; y++ {
			for dx := 0; dx < histBarWidth; dx++ {
				img.SetRGBA(bin*histBarWidth+dx, y, histBandColor)
			}
		}
	}

	maxLog := 0.0
	for _, c := range h.Counts {
		if l := math.Log1p(c); l > maxLog {
			maxLog = l
		}
	}
	if maxLog == 0 {
		return img
	}

	usable := histPlotHeight - 2*histPlotPaddingY
	for bin, c := range h.Counts {
		barH := int(math.Round(math.Log1p(c) / maxLog * float64(usable)))
		for y := histPlotHeight - histPlotPaddingY - barH; y < histPlotHeight-histPlotPaddingY; y++ {
			for dx := 0; dx < histBarWidth; dx++ {
				img.SetRGBA(bin*histBarWidth+dx, y, histBarColor)
			}
		}
	}
	return img
}
