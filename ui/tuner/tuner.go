// Package tuner provides the interactive window for tuning tissue
// detection rules against a loaded slide.
package tuner

import (
	"fmt"
	"image"

	"wsi-patcher/internal/config"
	"wsi-patcher/internal/imaging"
	"wsi-patcher/internal/mask"
	"wsi-patcher/internal/preview"

	"fyne.io/fyne/v2"
	fynecanvas "fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/widget"
	"gocv.io/x/gocv"
)

// previewMaxDim bounds the overlay preview size in pixels.
const previewMaxDim = 900.0

// Tuner is the rule tuning window. It owns the reference-level image and
// its decomposed channels for the lifetime of the window.
type Tuner struct {
	fyne.Window
	app fyne.App

	img      gocv.Mat
	channels *mask.Channels
	hists    []mask.Histogram

	rule     mask.ColorRule // rule being tuned
	accepted mask.RuleSet   // rules already added
	smooth   mask.SmoothOptions

	cfg     *config.Config
	cfgPath string

	previewImg *fynecanvas.Image
	status     *widget.Label
	rulesLbl   *widget.Label
	panels     []*channelPanel
}

// New creates the tuning window for a reference-level slide image. The
// tuner takes ownership of img.
func New(fyneApp fyne.App, img gocv.Mat, cfg *config.Config, cfgPath string) (*Tuner, error) {
	channels, err := mask.ComputeChannels(img)
	if err != nil {
		return nil, fmt.Errorf("decomposing slide image: %w", err)
	}

	t := &Tuner{
		Window:   fyneApp.NewWindow("Tissue Rule Tuner"),
		app:      fyneApp,
		img:      img,
		channels: channels,
		hists:    channels.Histograms(mask.DefaultHistogramBins),
		rule:     mask.NewColorRule(),
		accepted: append(mask.RuleSet{}, cfg.Masking.Rules...),
		cfg:      cfg,
		cfgPath:  cfgPath,
		smooth: mask.SmoothOptions{
			KernelSize:  cfg.Masking.SmoothKernel,
			Sigma:       cfg.Masking.SmoothSigma,
			MinFraction: cfg.Masking.SmoothMinFraction,
		},
	}

	t.setupUI()
	t.recompute()

	t.SetOnClosed(func() {
		t.channels.Close()
		t.img.Close()
	})
	return t, nil
}

func (t *Tuner) setupUI() {
	t.previewImg = fynecanvas.NewImageFromImage(image.NewRGBA(image.Rect(0, 0, 1, 1)))
	t.previewImg.FillMode = fynecanvas.ImageFillContain
	t.previewImg.SetMinSize(fyne.NewSize(600, 450))

	t.status = widget.NewLabel("Ready")
	t.rulesLbl = widget.NewLabel(t.rulesText())

	get := func(ch mask.Channel) mask.Range { return t.rule.Range(ch) }
	set := func(ch mask.Channel, rg mask.Range) { t.rule.SetRange(ch, rg) }
	for i, ch := range mask.ChannelOrder() {
		t.panels = append(t.panels, newChannelPanel(ch, t.hists[i], get, set, t.recompute))
	}

	addBtn := widget.NewButton("Add Rule", t.onAddRule)
	resetBtn := widget.NewButton("Reset", t.onReset)
	saveBtn := widget.NewButton("Save Config", t.onSave)

	sidebar := container.NewVScroll(container.NewVBox(
		t.panels[0].container,
		t.panels[1].container,
		t.panels[2].container,
		t.panels[3].container,
		t.rulesLbl,
		container.NewHBox(addBtn, resetBtn, saveBtn),
	))

	split := container.NewHSplit(sidebar, t.previewImg)
	split.SetOffset(0.3)

	t.SetContent(container.NewBorder(nil, container.NewPadded(t.status), nil, nil, split))
	t.Resize(fyne.NewSize(1100, 700))
}

// recompute rebuilds the tissue mask from the accepted rules plus the rule
// being tuned and refreshes the overlay preview.
func (t *Tuner) recompute() {
	rules := append(append(mask.RuleSet{}, t.accepted...), t.rule)

	m, err := mask.BuildFromChannels(t.channels, rules, t.smooth)
	if err != nil {
		t.status.SetText("Mask build failed: " + err.Error())
		return
	}

	ratio := 1.0
	if maxDim := max(t.img.Cols(), t.img.Rows()); float64(maxDim) > previewMaxDim {
		ratio = previewMaxDim / float64(maxDim)
	}
	overlay, err := preview.Overlay(t.img, m, ratio)
	if err != nil {
		t.status.SetText("Preview failed: " + err.Error())
		return
	}
	defer overlay.Close()

	goImg, err := imaging.ToImage(overlay)
	if err != nil {
		t.status.SetText("Preview failed: " + err.Error())
		return
	}

	t.previewImg.Image = goImg
	t.previewImg.Refresh()
	t.status.SetText(fmt.Sprintf("Tissue: %.1f%% of slide",
		100*float64(m.Count())/float64(m.Width()*m.Height())))
}

func (t *Tuner) onAddRule() {
	t.accepted = append(t.accepted, t.rule)
	t.rule = mask.NewColorRule()
	for _, p := range t.panels {
		p.Reset(mask.FullRange)
	}
	t.rulesLbl.SetText(t.rulesText())
	t.recompute()
}

func (t *Tuner) onReset() {
	t.accepted = nil
	t.rule = mask.NewColorRule()
	for _, p := range t.panels {
		p.Reset(mask.FullRange)
	}
	t.rulesLbl.SetText(t.rulesText())
	t.recompute()
}

func (t *Tuner) onSave() {
	rules := append(mask.RuleSet{}, t.accepted...)
	if t.rule != mask.NewColorRule() {
		rules = append(rules, t.rule)
	}
	if len(rules) == 0 {
		rules = mask.RuleSet{mask.NewColorRule()}
	}

	t.cfg.Masking.Rules = rules
	if err := config.SaveConfig(t.cfg, t.cfgPath); err != nil {
		dialog.ShowError(err, t.Window)
		return
	}
	t.status.SetText("Saved " + t.cfgPath)
}

func (t *Tuner) rulesText() string {
	return fmt.Sprintf("Accepted rules: %d", len(t.accepted))
}
