// Package preview renders human-inspection views of masks: the mask
// overlaid on its slide image, and per-channel histograms with the active
// threshold band marked. Read-only exports; nothing feeds back into the
// mask or importer.
package preview

import (
	"fmt"
	"image"

	"wsi-patcher/internal/imaging"
	"wsi-patcher/internal/mask"

	"gocv.io/x/gocv"
)

// Overlay renders the mask over its source image: tissue keeps its
// original color, background is dimmed to half brightness. ratio downscales
// the output (e.g. 0.25 for a quarter-size preview). The caller owns the
// returned Mat.
func Overlay(img gocv.Mat, m *mask.Mask, ratio float64) (gocv.Mat, error) {
	if img.Empty() {
		return gocv.NewMat(), mask.ErrEmptyImage
	}
	if img.Cols() != m.Width() || img.Rows() != m.Height() {
		return gocv.NewMat(), fmt.Errorf("mask %dx%d does not match image %dx%d",
			m.Width(), m.Height(), img.Cols(), img.Rows())
	}
	if ratio <= 0 || ratio > 1 {
		return gocv.NewMat(), fmt.Errorf("ratio must be in (0, 1], got %g", ratio)
	}

	w := int(float64(img.Cols()) * ratio)
	h := int(float64(img.Rows()) * ratio)
	if w < 1 || h < 1 {
		return gocv.NewMat(), fmt.Errorf("ratio %g collapses the preview", ratio)
	}

	small := gocv.NewMat()
	gocv.Resize(img, &small, image.Point{X: w, Y: h}, 0, 0, gocv.InterpolationArea)

	maskMat := m.ToMat()
	defer maskMat.Close()
	smallMask := gocv.NewMat()
	defer smallMask.Close()
	gocv.Resize(maskMat, &smallMask, image.Point{X: w, Y: h}, 0, 0, gocv.InterpolationLinear)

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if smallMask.GetUCharAt(y, x) >= 128 {
				continue
			}
			for c := 0; c < 3; c++ {
				small.SetUCharAt(y, x*3+c, small.GetUCharAt(y, x*3+c)/2)
			}
		}
	}
	return small, nil
}

// SaveOverlayPNG renders and writes an overlay preview.
func SaveOverlayPNG(path string, img gocv.Mat, m *mask.Mask, ratio float64) error {
	overlay, err := Overlay(img, m, ratio)
	if err != nil {
		return err
	}
	defer overlay.Close()

	out, err := imaging.ToImage(overlay)
	if err != nil {
		return err
	}
	return imaging.SavePNG(path, out)
}
