package tuner

import (
	"fmt"

	"wsi-patcher/internal/mask"
	"wsi-patcher/internal/preview"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/widget"
)

// channelPanel holds the low/high sliders and histogram for one channel.
type channelPanel struct {
	channel   mask.Channel
	lowSlider *widget.Slider
	highSlide *widget.Slider
	rangeLbl  *widget.Label
	histImage *canvas.Image
	container fyne.CanvasObject
}

// newChannelPanel builds the slider card for one channel. get returns the
// current range, set stores a new one, and onTuned runs after the user
// releases a slider.
func newChannelPanel(ch mask.Channel, hist mask.Histogram, get func(mask.Channel) mask.Range, set func(mask.Channel, mask.Range), onTuned func()) *channelPanel {
	p := &channelPanel{channel: ch}

	initial := get(ch)
	p.rangeLbl = widget.NewLabel(rangeText(initial))

	p.histImage = canvas.NewImageFromImage(preview.PlotHistogram(hist, initial))
	p.histImage.FillMode = canvas.ImageFillContain
	p.histImage.SetMinSize(fyne.NewSize(200, 70))

	refresh := func() {
		rg := get(ch)
		p.rangeLbl.SetText(rangeText(rg))
		p.histImage.Image = preview.PlotHistogram(hist, rg)
		p.histImage.Refresh()
	}

	p.lowSlider = widget.NewSlider(0, 255)
	p.lowSlider.SetValue(float64(initial.Low))
	p.lowSlider.OnChanged = func(v float64) {
		rg := get(ch)
		rg.Low = uint8(v)
		if rg.Low > rg.High {
			rg.High = rg.Low
			p.highSlide.SetValue(float64(rg.High))
		}
		set(ch, rg)
		refresh()
	}
	p.lowSlider.OnChangeEnded = func(float64) { onTuned() }

	p.highSlide = widget.NewSlider(0, 255)
	p.highSlide.SetValue(float64(initial.High))
	p.highSlide.OnChanged = func(v float64) {
		rg := get(ch)
		rg.High = uint8(v)
		if rg.High < rg.Low {
			rg.Low = rg.High
			p.lowSlider.SetValue(float64(rg.Low))
		}
		set(ch, rg)
		refresh()
	}
	p.highSlide.OnChangeEnded = func(float64) { onTuned() }

	p.container = widget.NewCard(ch.String(), "", container.NewVBox(
		p.histImage,
		p.rangeLbl,
		widget.NewLabel("Low:"),
		p.lowSlider,
		widget.NewLabel("High:"),
		p.highSlide,
	))
	return p
}

// Reset moves the sliders back to the given range without firing a recompute.
func (p *channelPanel) Reset(rg mask.Range) {
	p.lowSlider.SetValue(float64(rg.Low))
	p.highSlide.SetValue(float64(rg.High))
}

func rangeText(rg mask.Range) string {
	return fmt.Sprintf("[%d, %d]", rg.Low, rg.High)
}
