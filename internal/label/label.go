// Package label reads the printed barcode/ID text from slide label images.
package label

import (
	"fmt"
	"image"
	"strings"

	"wsi-patcher/internal/imaging"

	"github.com/otiai10/gosseract/v2"
	"gocv.io/x/gocv"
)

// LabelChars is the character set expected on slide labels. Lowercase is
// excluded to reduce 0/O and 1/I confusion in accession numbers.
const LabelChars = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ-_."

// Engine performs OCR on slide label images using Tesseract.
type Engine struct {
	client *gosseract.Client
}

// NewEngine creates an OCR engine configured for slide labels.
func NewEngine() (*Engine, error) {
	client := gosseract.NewClient()

	if err := client.SetLanguage("eng"); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to set OCR language: %w", err)
	}

	// Accession numbers are not dictionary words; disable word correction
	// so Tesseract does not rewrite them.
	_ = client.SetVariable("load_system_dawg", "false")
	_ = client.SetVariable("load_freq_dawg", "false")
	_ = client.SetVariable("language_model_penalty_non_dict_word", "0")

	return &Engine{client: client}, nil
}

// Close releases OCR resources.
func (e *Engine) Close() error {
	if e.client != nil {
		return e.client.Close()
	}
	return nil
}

// ReadFile loads a label image from disk and returns its recognized text.
func (e *Engine) ReadFile(path string) (string, error) {
	img, err := imaging.Load(path)
	if err != nil {
		return "", fmt.Errorf("loading label image: %w", err)
	}

	mat, err := imaging.ToMat(img)
	if err != nil {
		return "", fmt.Errorf("converting label image: %w", err)
	}
	defer mat.Close()

	return e.Read(mat)
}

// Read performs OCR on a label image held in a BGR Mat.
func (e *Engine) Read(img gocv.Mat) (string, error) {
	if img.Empty() {
		return "", fmt.Errorf("empty label image")
	}

	processed := preprocess(img)
	defer processed.Close()

	buf, err := gocv.IMEncode(gocv.PNGFileExt, processed)
	if err != nil {
		return "", fmt.Errorf("failed to encode label image: %w", err)
	}
	defer buf.Close()

	// PSM 6: labels are a single uniform block of text.
	if err := e.client.SetPageSegMode(gosseract.PSM_SINGLE_BLOCK); err != nil {
		return "", fmt.Errorf("failed to set PSM: %w", err)
	}
	if err := e.client.SetWhitelist(LabelChars); err != nil {
		return "", fmt.Errorf("failed to set whitelist: %w", err)
	}
	if err := e.client.SetImageFromBytes(buf.GetBytes()); err != nil {
		return "", fmt.Errorf("failed to set image: %w", err)
	}

	text, err := e.client.Text()
	if err != nil {
		return "", fmt.Errorf("OCR failed: %w", err)
	}

	text = strings.TrimSpace(text)
	text = strings.Join(strings.Fields(text), " ")
	return strings.ToUpper(text), nil
}

// preprocess prepares a label image for OCR: upscale small crops, convert
// to grayscale and apply Otsu's threshold for clean text separation.
func preprocess(img gocv.Mat) gocv.Mat {
	h, w := img.Rows(), img.Cols()

	var scaled gocv.Mat
	if minDim := min(h, w); minDim < 150 {
		scale := 150.0 / float64(minDim)
		scaled = gocv.NewMat()
		gocv.Resize(img, &scaled, image.Point{}, scale, scale, gocv.InterpolationCubic)
	} else {
		scaled = img.Clone()
	}

	gray := gocv.NewMat()
	gocv.CvtColor(scaled, &gray, gocv.ColorBGRToGray)
	scaled.Close()

	binary := gocv.NewMat()
	gocv.Threshold(gray, &binary, 0, 255, gocv.ThresholdBinary|gocv.ThresholdOtsu)
	gray.Close()

	return binary
}
