package preview

import (
	"testing"

	"wsi-patcher/internal/mask"

	"gocv.io/x/gocv"
)

func TestOverlayDimsBackground(t *testing.T) {
	img := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(200, 200, 200, 0), 8, 8, gocv.MatTypeCV8UC3)
	defer img.Close()

	m := mask.NewMask(8, 8)
	for y := 0; y < 8; y++ {
		for x := 0; x < 4; x++ {
			m.Set(x, y, true)
		}
	}

	overlay, err := Overlay(img, m, 1.0)
	if err != nil {
		t.Fatalf("Overlay failed: %v", err)
	}
	defer overlay.Close()

	if overlay.Cols() != 8 || overlay.Rows() != 8 {
		t.Fatalf("unexpected overlay size %dx%d", overlay.Cols(), overlay.Rows())
	}
	if got := overlay.GetUCharAt(4, 1*3); got != 200 {
		t.Errorf("tissue pixel should keep its value, got %d", got)
	}
	if got := overlay.GetUCharAt(4, 6*3); got != 100 {
		t.Errorf("background pixel should be halved, got %d", got)
	}
}

func TestOverlayValidation(t *testing.T) {
	img := gocv.NewMatWithSize(8, 8, gocv.MatTypeCV8UC3)
	defer img.Close()

	if _, err := Overlay(img, mask.NewMask(4, 4), 1.0); err == nil {
		t.Error("mismatched mask dimensions should be rejected")
	}
	if _, err := Overlay(img, mask.NewMask(8, 8), 0); err == nil {
		t.Error("zero ratio should be rejected")
	}
}

func TestPlotHistogram(t *testing.T) {
	h := mask.Histogram{
		Counts: []float64{100, 0, 50, 0},
		Edges:  []float64{0, 64, 128, 192, 256},
	}

	img := PlotHistogram(h, mask.Range{Low: 0, High: 70})
	bounds := img.Bounds()
	if bounds.Dx() != 4*histBarWidth || bounds.Dy() != histPlotHeight {
		t.Errorf("unexpected plot size %dx%d", bounds.Dx(), bounds.Dy())
	}
}
