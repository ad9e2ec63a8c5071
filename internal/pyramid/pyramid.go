// Package pyramid describes whole-slide image pyramids and the policy for
// choosing which pyramid level a patch should be read from.
package pyramid

import (
	"errors"
	"fmt"

	"wsi-patcher/pkg/geometry"
)

var (
	// ErrNoLevels is returned when a pyramid with zero levels is used.
	ErrNoLevels = errors.New("pyramid has no levels")

	// ErrInvalidPatchSize is returned for non-positive patch or target sizes.
	ErrInvalidPatchSize = errors.New("invalid patch size")
)

// Level is one resolution tier of a slide pyramid. Index 0 is the highest
// resolution; Downsample is relative to level 0.
type Level struct {
	Width      int
	Height     int
	Downsample float64
}

// Bounds returns the level's pixel extent as a rectangle at origin.
func (l Level) Bounds() geometry.RectInt {
	return geometry.RectInt{Width: l.Width, Height: l.Height}
}

// SlidePyramid is an immutable description of one whole-slide image:
// its ordered levels and the physical scale (microns per pixel) at level 0.
type SlidePyramid struct {
	levels []Level
	mpp    float64
}

// New validates the level geometry and builds a SlidePyramid.
// Level 0 must have downsample 1.0 and downsamples must strictly increase
// with level index.
func New(levels []Level, mpp float64) (*SlidePyramid, error) {
	if mpp <= 0 {
		return nil, fmt.Errorf("mpp must be positive, got %g", mpp)
	}
	for i, l := range levels {
		if l.Width <= 0 || l.Height <= 0 {
			return nil, fmt.Errorf("level %d has degenerate size %dx%d", i, l.Width, l.Height)
		}
		if i == 0 && l.Downsample != 1.0 {
			return nil, fmt.Errorf("level 0 downsample must be 1.0, got %g", l.Downsample)
		}
		if i > 0 && l.Downsample <= levels[i-1].Downsample {
			return nil, fmt.Errorf("level %d downsample %g not greater than level %d (%g)",
				i, l.Downsample, i-1, levels[i-1].Downsample)
		}
	}

	cp := make([]Level, len(levels))
	copy(cp, levels)
	return &SlidePyramid{levels: cp, mpp: mpp}, nil
}

// NumLevels returns the number of pyramid levels.
func (p *SlidePyramid) NumLevels() int {
	return len(p.levels)
}

// Level returns the level record at the given index.
func (p *SlidePyramid) Level(i int) Level {
	return p.levels[i]
}

// MPP returns the microns-per-pixel scale at level 0.
func (p *SlidePyramid) MPP() float64 {
	return p.mpp
}

// MicronsToLevelPixels converts a physical point (microns) to pixel
// coordinates at the given level.
func (p *SlidePyramid) MicronsToLevelPixels(pt geometry.Point2D, level int) geometry.Point2D {
	d := p.levels[level].Downsample
	return pt.Scale(1 / (p.mpp * d))
}

// Extent returns the slide's physical extent in microns, derived from level 0.
func (p *SlidePyramid) Extent() geometry.Rect {
	if len(p.levels) == 0 {
		return geometry.Rect{}
	}
	l0 := p.levels[0]
	return geometry.Rect{
		Width:  float64(l0.Width) * p.mpp,
		Height: float64(l0.Height) * p.mpp,
	}
}
