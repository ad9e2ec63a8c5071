package slide

import (
	"context"
	"fmt"

	"wsi-patcher/internal/pyramid"
	"wsi-patcher/pkg/geometry"

	"gocv.io/x/gocv"
)

// MemReader serves regions from in-memory level images. Used by tests and
// by the tuner, which operates on a single already-decoded level.
type MemReader struct {
	pyr    *pyramid.SlidePyramid
	levels []gocv.Mat
}

// NewMemReader wraps pre-decoded level Mats (highest resolution first).
// The reader takes ownership of the Mats.
func NewMemReader(pyr *pyramid.SlidePyramid, levels []gocv.Mat) (*MemReader, error) {
	if pyr.NumLevels() != len(levels) {
		return nil, fmt.Errorf("pyramid has %d levels but %d images given", pyr.NumLevels(), len(levels))
	}
	for i, m := range levels {
		want := pyr.Level(i)
		if m.Cols() != want.Width || m.Rows() != want.Height {
			return nil, fmt.Errorf("level %d image is %dx%d, pyramid says %dx%d",
				i, m.Cols(), m.Rows(), want.Width, want.Height)
		}
	}
	return &MemReader{pyr: pyr, levels: levels}, nil
}

// Pyramid returns the slide's level geometry.
func (r *MemReader) Pyramid() *pyramid.SlidePyramid {
	return r.pyr
}

// ReadRegion returns a copy of the requested rectangle.
func (r *MemReader) ReadRegion(ctx context.Context, level int, rect geometry.RectInt) (gocv.Mat, error) {
	if err := ctx.Err(); err != nil {
		return gocv.NewMat(), err
	}
	if level < 0 || level >= len(r.levels) {
		return gocv.NewMat(), fmt.Errorf("%w: level %d of %d", ErrBadLevel, level, len(r.levels))
	}
	bounds := r.pyr.Level(level).Bounds()
	if rect.Empty() || rect.Intersect(bounds) != rect {
		return gocv.NewMat(), fmt.Errorf("%w: %+v at level %d", ErrOutOfBounds, rect, level)
	}

	roi := r.levels[level].Region(rectToImageRect(rect))
	defer roi.Close()
	return roi.Clone(), nil
}

// Close releases the level images.
func (r *MemReader) Close() error {
	for i := range r.levels {
		r.levels[i].Close()
	}
	return nil
}
