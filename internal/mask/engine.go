package mask

import (
	"errors"
	"fmt"
	"image"

	"gocv.io/x/gocv"
)

var (
	// ErrInvalidRuleSet is returned for malformed rules: a range with
	// low > high, or an unknown channel name.
	ErrInvalidRuleSet = errors.New("invalid rule set")

	// ErrEmptyImage is returned when the input image has zero area.
	ErrEmptyImage = errors.New("empty image")
)

// SmoothOptions controls the optional post-union smoothing pass: a Gaussian
// blur of the binary union followed by re-thresholding. It suppresses
// speckle in the tissue mask. The zero value disables smoothing.
type SmoothOptions struct {
	// KernelSize is the Gaussian kernel aperture; must be odd. Values
	// below 3 disable smoothing.
	KernelSize int
	// Sigma is the Gaussian standard deviation.
	Sigma float64
	// MinFraction is the blurred coverage a pixel must exceed to stay in
	// the mask, in [0, 1).
	MinFraction float64
}

// enabled reports whether the options describe an actual smoothing pass.
func (o SmoothOptions) enabled() bool {
	return o.KernelSize >= 3
}

func (o SmoothOptions) validate() error {
	if !o.enabled() {
		return nil
	}
	if o.KernelSize%2 == 0 {
		return fmt.Errorf("smoothing kernel size must be odd, got %d", o.KernelSize)
	}
	if o.MinFraction < 0 || o.MinFraction >= 1 {
		return fmt.Errorf("smoothing min fraction must be in [0, 1), got %g", o.MinFraction)
	}
	return nil
}

// BuildMask computes the tissue mask of a decoded slide image.
//
// Each rule selects the pixels whose channel values all fall inside the
// rule's ranges; the mask is the union of the per-rule selections,
// optionally smoothed. The output dimensions always equal the input
// dimensions. Pure: same image and rules always give the same mask, and
// nothing is cached here — callers cache per slide.
func BuildMask(img gocv.Mat, rules RuleSet, smooth SmoothOptions) (*Mask, error) {
	if err := rules.Validate(); err != nil {
		return nil, err
	}
	if err := smooth.validate(); err != nil {
		return nil, err
	}

	ch, err := ComputeChannels(img)
	if err != nil {
		return nil, err
	}
	defer ch.Close()

	return buildFromChannels(ch, rules, smooth), nil
}

// buildFromChannels runs the union/smooth steps over precomputed channel
// planes. The tuner calls this directly so slider changes don't redo the
// color conversion.
func buildFromChannels(ch *Channels, rules RuleSet, smooth SmoothOptions) *Mask {
	rows, cols := ch.Hue.Rows(), ch.Hue.Cols()

	union := gocv.Zeros(rows, cols, gocv.MatTypeCV8U)
	defer union.Close()

	for _, rule := range rules {
		rm := RuleMask(ch, rule)
		gocv.BitwiseOr(union, rm, &union)
		rm.Close()
	}

	if smooth.enabled() {
		blurred := gocv.NewMat()
		defer blurred.Close()
		k := image.Point{X: smooth.KernelSize, Y: smooth.KernelSize}
		gocv.GaussianBlur(union, &blurred, k, smooth.Sigma, smooth.Sigma, gocv.BorderDefault)

		// Keep pixels whose blurred coverage strictly exceeds the floor.
		gocv.Threshold(blurred, &union, float32(smooth.MinFraction*255), 255, gocv.ThresholdBinary)
	}

	return FromMat(union)
}

// BuildFromChannels is the channel-plane entry point of BuildMask, for
// callers that already hold the planes. Validation matches BuildMask.
func BuildFromChannels(ch *Channels, rules RuleSet, smooth SmoothOptions) (*Mask, error) {
	if err := rules.Validate(); err != nil {
		return nil, err
	}
	if err := smooth.validate(); err != nil {
		return nil, err
	}
	return buildFromChannels(ch, rules, smooth), nil
}

// RuleMask renders one rule's selection as a 0/255 Mat: the intersection of
// the per-channel in-range masks. The caller owns the result.
func RuleMask(ch *Channels, rule ColorRule) gocv.Mat {
	rows, cols := ch.Hue.Rows(), ch.Hue.Cols()

	acc := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(255, 0, 0, 0), rows, cols, gocv.MatTypeCV8U)
	for _, c := range ChannelOrder() {
		rg := rule.Range(c)

		in := gocv.NewMat()
		gocv.InRangeWithScalar(ch.Plane(c),
			gocv.NewScalar(float64(rg.Low), 0, 0, 0),
			gocv.NewScalar(float64(rg.High), 0, 0, 0),
			&in)
		gocv.BitwiseAnd(acc, in, &acc)
		in.Close()
	}
	return acc
}
