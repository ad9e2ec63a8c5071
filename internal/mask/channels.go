// Package mask computes per-slide tissue masks from multi-channel color
// range rules, and provides the channel planes and histograms the threshold
// tuner works from.
package mask

import (
	"fmt"

	"gocv.io/x/gocv"
)

// Channel identifies one of the fixed channels a color rule ranges over.
type Channel int

const (
	ChannelHue Channel = iota
	ChannelSaturation
	ChannelValue
	ChannelLaplacian
)

// ChannelOrder returns the fixed, documented channel order.
func ChannelOrder() []Channel {
	return []Channel{ChannelHue, ChannelSaturation, ChannelValue, ChannelLaplacian}
}

func (c Channel) String() string {
	switch c {
	case ChannelHue:
		return "hue"
	case ChannelSaturation:
		return "saturation"
	case ChannelValue:
		return "value"
	case ChannelLaplacian:
		return "laplacian"
	default:
		return fmt.Sprintf("channel(%d)", int(c))
	}
}

// ParseChannel maps a channel name to its Channel value.
func ParseChannel(name string) (Channel, error) {
	for _, c := range ChannelOrder() {
		if c.String() == name {
			return c, nil
		}
	}
	return 0, fmt.Errorf("unknown channel %q", name)
}

// Channels holds the per-pixel channel planes of one decoded slide image:
// hue, saturation and value from the full-range HSV conversion, plus the
// Laplacian response of the value plane. All planes are single-channel
// 8-bit Mats of the source image's dimensions.
type Channels struct {
	Hue        gocv.Mat
	Saturation gocv.Mat
	Value      gocv.Mat
	Laplacian  gocv.Mat
}

// laplacianKernelSize is the aperture of the second-derivative edge filter
// applied to the value plane.
const laplacianKernelSize = 3

// ComputeChannels converts a BGR image into its rule channels. The caller
// owns the result and must Close it.
func ComputeChannels(img gocv.Mat) (*Channels, error) {
	if img.Empty() || img.Rows() == 0 || img.Cols() == 0 {
		return nil, ErrEmptyImage
	}

	hsv := gocv.NewMat()
	defer hsv.Close()
	// Full-range conversion keeps hue on the whole 0..255 byte scale, so
	// rule ranges address all channels uniformly.
	gocv.CvtColor(img, &hsv, gocv.ColorBGRToHSVFull)

	planes := gocv.Split(hsv)
	if len(planes) != 3 {
		for _, p := range planes {
			p.Close()
		}
		return nil, fmt.Errorf("expected 3 HSV planes, got %d", len(planes))
	}

	lap := gocv.NewMat()
	gocv.Laplacian(planes[2], &lap, gocv.MatTypeCV8U, laplacianKernelSize, 1, 0, gocv.BorderDefault)

	return &Channels{
		Hue:        planes[0],
		Saturation: planes[1],
		Value:      planes[2],
		Laplacian:  lap,
	}, nil
}

// Plane returns the Mat for the given channel.
func (c *Channels) Plane(ch Channel) gocv.Mat {
	switch ch {
	case ChannelHue:
		return c.Hue
	case ChannelSaturation:
		return c.Saturation
	case ChannelValue:
		return c.Value
	default:
		return c.Laplacian
	}
}

// Close releases all channel planes.
func (c *Channels) Close() {
	c.Hue.Close()
	c.Saturation.Close()
	c.Value.Close()
	c.Laplacian.Close()
}
