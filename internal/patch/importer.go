// Package patch extracts fixed-physical-size training patches from whole
// slide images: it resolves the pyramid level to read, fetches and pads the
// pixel rectangle, resizes to the requested output size, and classifies the
// patch against the slide's tissue mask.
package patch

import (
	"context"
	"errors"
	"fmt"
	"image"
	"time"

	"wsi-patcher/internal/mask"
	"wsi-patcher/internal/pyramid"
	"wsi-patcher/internal/slide"
	"wsi-patcher/pkg/geometry"

	"github.com/rs/zerolog"
	"gocv.io/x/gocv"
)

var (
	// ErrOutOfBounds is returned when the requested physical coordinate
	// maps entirely outside the slide's extent.
	ErrOutOfBounds = errors.New("patch outside slide extent")

	// ErrMaskNotBuilt is returned when usability is requested before a
	// tissue mask has been attached to the importer.
	ErrMaskNotBuilt = errors.New("tissue mask not built")
)

// DefaultUsableThreshold is the tissue fraction a patch must strictly
// exceed to count as usable. Exactly at the threshold counts as unusable.
const DefaultUsableThreshold = 0.5

const (
	defaultReadAttempts = 3
	defaultRetryDelay   = 250 * time.Millisecond
)

// Request asks for one patch: a physical top-left coordinate and size in
// microns, rendered at a fixed output pixel size.
type Request struct {
	Origin   geometry.Point2D // top-left, microns
	PhysSize float64          // patch side, microns
	Target   geometry.Size    // output pixel dimensions
}

// SquareRequest builds a request for a square patch.
func SquareRequest(origin geometry.Point2D, physSizeMicrons float64, targetPx int) Request {
	return Request{
		Origin:   origin,
		PhysSize: physSizeMicrons,
		Target:   geometry.NewSize(targetPx, targetPx),
	}
}

// Result is one imported patch. The caller owns Pixels.
type Result struct {
	Pixels gocv.Mat // BGR, exactly the requested target size
	Usable bool     // majority of the mapped mask region is tissue
	Level  int      // pyramid level the pixels were read from
}

// Close releases the patch pixels.
func (r *Result) Close() {
	r.Pixels.Close()
}

// Options tunes an Importer. The zero value uses the defaults.
type Options struct {
	// UsableThreshold overrides DefaultUsableThreshold when positive.
	UsableThreshold float64
	// ReadAttempts bounds reads of a region on transient failure.
	ReadAttempts int
	// RetryDelay is the wait between attempts.
	RetryDelay time.Duration
	// Logger receives per-request debug logging; defaults to a no-op.
	Logger zerolog.Logger
}

func (o Options) withDefaults() Options {
	if o.UsableThreshold <= 0 {
		o.UsableThreshold = DefaultUsableThreshold
	}
	if o.ReadAttempts <= 0 {
		o.ReadAttempts = defaultReadAttempts
	}
	if o.RetryDelay <= 0 {
		o.RetryDelay = defaultRetryDelay
	}
	return o
}

// Importer turns patch requests into pixel buffers for one slide.
// Stateless across requests; safe for concurrent use once the tissue mask
// is attached.
type Importer struct {
	reader slide.Reader
	pyr    *pyramid.SlidePyramid
	opts   Options
	log    zerolog.Logger

	tissue         *mask.Mask
	maskDownsample float64
}

// NewImporter creates an importer over a slide reader.
func NewImporter(reader slide.Reader, opts Options) *Importer {
	opts = opts.withDefaults()
	return &Importer{
		reader: reader,
		pyr:    reader.Pyramid(),
		opts:   opts,
		log:    opts.Logger,
	}
}

// SetTissueMask attaches the slide's tissue mask. downsample is the mask
// grid's downsample relative to level 0 (the downsample of the reference
// level it was built at). Call before the first Import; the mask is
// read-only afterwards.
func (imp *Importer) SetTissueMask(m *mask.Mask, downsample float64) {
	imp.tissue = m
	imp.maskDownsample = downsample
}

// Import fetches one patch.
//
// The pixel rectangle is clipped to the level bounds and zero-padded back
// to its full footprint, then resized with deterministic bilinear
// interpolation to exactly the requested target size. A patch is usable iff
// the tissue fraction of the mapped mask region strictly exceeds the
// usability threshold.
func (imp *Importer) Import(ctx context.Context, req Request) (*Result, error) {
	if req.Target.Width <= 0 || req.Target.Height <= 0 {
		return nil, fmt.Errorf("%w: target %dx%d", pyramid.ErrInvalidPatchSize,
			req.Target.Width, req.Target.Height)
	}

	targetPx := int(req.Target.Mean())
	choice, err := pyramid.SelectLevel(imp.pyr, req.PhysSize, targetPx)
	if err != nil {
		return nil, err
	}

	rect := imp.pyr.PatchRect(req.Origin, choice)
	bounds := imp.pyr.Level(choice.Level).Bounds()
	visible := rect.Intersect(bounds)
	if visible.Empty() {
		return nil, fmt.Errorf("%w: origin (%g, %g) microns", ErrOutOfBounds,
			req.Origin.X, req.Origin.Y)
	}

	if imp.tissue == nil {
		return nil, ErrMaskNotBuilt
	}

	native, err := imp.readWithRetry(ctx, choice.Level, visible)
	if err != nil {
		return nil, err
	}

	if visible != rect {
		native = padToRect(native, visible, rect)
	}

	if native.Cols() != req.Target.Width || native.Rows() != req.Target.Height {
		resized := gocv.NewMat()
		gocv.Resize(native, &resized, image.Point{X: req.Target.Width, Y: req.Target.Height},
			0, 0, gocv.InterpolationLinear)
		native.Close()
		native = resized
	}

	usable := imp.classify(rect, choice.Level)

	imp.log.Debug().
		Int("level", choice.Level).
		Int("footprint", choice.Size).
		Bool("usable", usable).
		Float64("x_microns", req.Origin.X).
		Float64("y_microns", req.Origin.Y).
		Msg("patch imported")

	return &Result{Pixels: native, Usable: usable, Level: choice.Level}, nil
}

// classify maps the level rectangle into mask coordinates and applies the
// majority threshold.
func (imp *Importer) classify(rect geometry.RectInt, level int) bool {
	d := imp.pyr.Level(level).Downsample
	level0 := rect.ToFloat().Scale(d)
	maskRect := level0.Scale(1 / imp.maskDownsample).Round()
	return imp.tissue.Fraction(maskRect) > imp.opts.UsableThreshold
}

// readWithRetry reads a region, retrying transient failures a bounded
// number of times. Out-of-bounds and cancellation are never retried.
func (imp *Importer) readWithRetry(ctx context.Context, level int, rect geometry.RectInt) (gocv.Mat, error) {
	var lastErr error
	for attempt := 1; attempt <= imp.opts.ReadAttempts; attempt++ {
		if attempt > 1 {
			imp.log.Debug().Int("attempt", attempt).Err(lastErr).Msg("retrying region read")
			select {
			case <-ctx.Done():
				return gocv.NewMat(), ctx.Err()
			case <-time.After(imp.opts.RetryDelay):
			}
		}

		m, err := imp.reader.ReadRegion(ctx, level, rect)
		if err == nil {
			return m, nil
		}
		if errors.Is(err, slide.ErrOutOfBounds) || errors.Is(err, slide.ErrBadLevel) ||
			errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return gocv.NewMat(), err
		}
		lastErr = err
	}
	return gocv.NewMat(), fmt.Errorf("region read failed after %d attempts: %w",
		imp.opts.ReadAttempts, lastErr)
}

// padToRect embeds the visible pixels into a zero-filled Mat covering the
// full requested rectangle. Takes ownership of visible's pixels.
func padToRect(pixels gocv.Mat, visible, full geometry.RectInt) gocv.Mat {
	padded := gocv.Zeros(full.Height, full.Width, gocv.MatTypeCV8UC3)

	dst := padded.Region(image.Rect(
		visible.X-full.X,
		visible.Y-full.Y,
		visible.X-full.X+visible.Width,
		visible.Y-full.Y+visible.Height,
	))
	pixels.CopyTo(&dst)
	dst.Close()
	pixels.Close()

	return padded
}
