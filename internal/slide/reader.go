// Package slide provides pixel access to whole-slide images: the Reader
// interface the patch importer consumes, and file-backed implementations.
package slide

import (
	"context"
	"errors"
	"image"

	"wsi-patcher/internal/pyramid"
	"wsi-patcher/pkg/geometry"

	"gocv.io/x/gocv"
)

var (
	// ErrOutOfBounds is returned when a requested region does not lie
	// fully inside the level's pixel extent. It is distinct from
	// transient read failures so callers can clip and pad instead of
	// treating the read as fatal.
	ErrOutOfBounds = errors.New("region outside level bounds")

	// ErrBadLevel is returned for a level index the pyramid doesn't have.
	ErrBadLevel = errors.New("no such pyramid level")
)

// Reader supplies raw pixel tiles for one slide.
//
// ReadRegion returns a BGR Mat of exactly the requested rectangle at the
// given level; the caller owns it. Implementations must report rectangles
// exceeding the level's bounds with ErrOutOfBounds, and honor context
// cancellation on blocking reads.
type Reader interface {
	Pyramid() *pyramid.SlidePyramid
	ReadRegion(ctx context.Context, level int, r geometry.RectInt) (gocv.Mat, error)
	Close() error
}

// rectToImageRect converts to the stdlib rectangle form gocv regions use.
func rectToImageRect(r geometry.RectInt) image.Rectangle {
	return image.Rect(r.X, r.Y, r.X+r.Width, r.Y+r.Height)
}

// ReadLevel reads an entire pyramid level. Convenience for mask building,
// which works on a full low-resolution level.
func ReadLevel(ctx context.Context, r Reader, level int) (gocv.Mat, error) {
	p := r.Pyramid()
	if level < 0 || level >= p.NumLevels() {
		return gocv.NewMat(), ErrBadLevel
	}
	return r.ReadRegion(ctx, level, p.Level(level).Bounds())
}
