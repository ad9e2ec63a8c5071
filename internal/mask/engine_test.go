package mask

import (
	"errors"
	"math"
	"testing"

	"wsi-patcher/pkg/colorutil"

	"gocv.io/x/gocv"
)

// twoToneImage builds an 8x8 BGR Mat: left half pure red, right half pure
// green. With the full-range HSV conversion red sits at hue 0 and green at
// hue 85, both with saturation and value 255.
func twoToneImage() gocv.Mat {
	img := gocv.NewMatWithSize(8, 8, gocv.MatTypeCV8UC3)
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			if x < 4 {
				img.SetUCharAt(y, x*3+2, 255) // red
			} else {
				img.SetUCharAt(y, x*3+1, 255) // green
			}
		}
	}
	return img
}

// ruleAround builds a rule with a narrow hue band centered on the given
// RGB color, requiring high saturation and value.
func ruleAround(red, green, blue float64) ColorRule {
	h, _, _ := colorutil.RGBToHSVFull(red, green, blue)

	r := NewColorRule()
	lo := 0.0
	if h > 8 {
		lo = h - 8
	}
	hi := math.Min(h+8, 255)
	r.Hue = Range{Low: uint8(lo), High: uint8(hi)}
	r.Saturation = Range{Low: 200, High: 255}
	r.Value = Range{Low: 200, High: 255}
	return r
}

func redRule() ColorRule   { return ruleAround(255, 0, 0) }
func greenRule() ColorRule { return ruleAround(0, 255, 0) }

func TestBuildMaskDimensions(t *testing.T) {
	img := twoToneImage()
	defer img.Close()

	m, err := BuildMask(img, RuleSet{redRule()}, SmoothOptions{})
	if err != nil {
		t.Fatalf("BuildMask failed: %v", err)
	}
	if m.Width() != 8 || m.Height() != 8 {
		t.Errorf("mask dimensions %dx%d != image dimensions 8x8", m.Width(), m.Height())
	}
}

func TestBuildMaskUnionAcrossRules(t *testing.T) {
	img := twoToneImage()
	defer img.Close()

	red, err := BuildMask(img, RuleSet{redRule()}, SmoothOptions{})
	if err != nil {
		t.Fatalf("BuildMask(red) failed: %v", err)
	}
	green, err := BuildMask(img, RuleSet{greenRule()}, SmoothOptions{})
	if err != nil {
		t.Fatalf("BuildMask(green) failed: %v", err)
	}
	both, err := BuildMask(img, RuleSet{redRule(), greenRule()}, SmoothOptions{})
	if err != nil {
		t.Fatalf("BuildMask(red|green) failed: %v", err)
	}

	// Single rules select their half; the union selects everything.
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			wantRed := x < 4
			if red.At(x, y) != wantRed {
				t.Fatalf("red rule at (%d,%d): expected %v", x, y, wantRed)
			}
			if green.At(x, y) != !wantRed {
				t.Fatalf("green rule at (%d,%d): expected %v", x, y, !wantRed)
			}
			if !both.At(x, y) {
				t.Fatalf("union at (%d,%d): expected true", x, y)
			}
		}
	}
}

func TestBuildMaskIntersectionWithinRule(t *testing.T) {
	img := twoToneImage()
	defer img.Close()

	// Hue matches red, but the saturation band excludes the saturated
	// pixels; the intersection across channels must leave nothing.
	r := redRule()
	r.Saturation = Range{Low: 0, High: 100}

	m, err := BuildMask(img, RuleSet{r}, SmoothOptions{})
	if err != nil {
		t.Fatalf("BuildMask failed: %v", err)
	}
	if m.Count() != 0 {
		t.Errorf("expected empty mask, got %d pixels", m.Count())
	}
}

func TestBuildMaskLaplacianChannel(t *testing.T) {
	// A uniform image has zero Laplacian response everywhere; a rule
	// requiring response >= 10 selects nothing.
	img := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 255, 0), 8, 8, gocv.MatTypeCV8UC3)
	defer img.Close()

	r := redRule()
	r.Laplacian = Range{Low: 10, High: 255}

	m, err := BuildMask(img, RuleSet{r}, SmoothOptions{})
	if err != nil {
		t.Fatalf("BuildMask failed: %v", err)
	}
	if m.Count() != 0 {
		t.Errorf("flat image should have no edge response, got %d pixels", m.Count())
	}
}

func TestBuildMaskInvalidRuleSet(t *testing.T) {
	img := twoToneImage()
	defer img.Close()

	bad := NewColorRule()
	bad.Value = Range{Low: 200, High: 100}

	if _, err := BuildMask(img, RuleSet{bad}, SmoothOptions{}); !errors.Is(err, ErrInvalidRuleSet) {
		t.Errorf("expected ErrInvalidRuleSet, got %v", err)
	}
}

func TestBuildMaskEmptyImage(t *testing.T) {
	empty := gocv.NewMat()
	defer empty.Close()

	if _, err := BuildMask(empty, RuleSet{redRule()}, SmoothOptions{}); !errors.Is(err, ErrEmptyImage) {
		t.Errorf("expected ErrEmptyImage, got %v", err)
	}
}

func TestBuildMaskSmoothingFillsSpeckle(t *testing.T) {
	// Left half red except one green pixel; smoothing with a generous
	// kernel and a low floor should absorb the hole.
	img := twoToneImage()
	defer img.Close()
	img.SetUCharAt(4, 2*3+2, 0)
	img.SetUCharAt(4, 2*3+1, 255)

	smooth := SmoothOptions{KernelSize: 5, Sigma: 2, MinFraction: 0.2}
	m, err := BuildMask(img, RuleSet{redRule()}, smooth)
	if err != nil {
		t.Fatalf("BuildMask failed: %v", err)
	}
	if !m.At(2, 4) {
		t.Error("smoothing should have filled the isolated hole")
	}
}

func TestBuildMaskSmoothingValidation(t *testing.T) {
	img := twoToneImage()
	defer img.Close()

	if _, err := BuildMask(img, RuleSet{redRule()}, SmoothOptions{KernelSize: 4, MinFraction: 0.2}); err == nil {
		t.Error("even kernel size should be rejected")
	}
	if _, err := BuildMask(img, RuleSet{redRule()}, SmoothOptions{KernelSize: 5, MinFraction: 1.5}); err == nil {
		t.Error("min fraction above 1 should be rejected")
	}
}
