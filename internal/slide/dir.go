package slide

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"wsi-patcher/internal/imaging"
	"wsi-patcher/internal/pyramid"
	"wsi-patcher/pkg/geometry"

	"gocv.io/x/gocv"
	"gopkg.in/yaml.v3"
)

// dirManifest is the sidecar describing a pyramid directory: the physical
// scale and one image file per level, highest resolution first.
type dirManifest struct {
	MPP    float64 `yaml:"mpp"`
	Levels []struct {
		File       string  `yaml:"file"`
		Width      int     `yaml:"width"`
		Height     int     `yaml:"height"`
		Downsample float64 `yaml:"downsample"`
	} `yaml:"levels"`
}

const manifestName = "pyramid.yaml"

// DirReader reads a slide stored as a pyramid directory: a pyramid.yaml
// manifest next to one raster file (TIFF/PNG/JPEG) per level. Levels are
// decoded on first access and kept; whole-level decoding is acceptable
// because patch extraction touches a few levels per slide and the
// low-resolution levels used for masks are small.
type DirReader struct {
	dir string
	pyr *pyramid.SlidePyramid

	mu     sync.Mutex
	levels []gocv.Mat
	loaded []bool
	files  []string
}

// OpenDir opens a pyramid directory.
func OpenDir(dir string) (*DirReader, error) {
	raw, err := os.ReadFile(filepath.Join(dir, manifestName))
	if err != nil {
		return nil, fmt.Errorf("failed to read slide manifest: %w", err)
	}

	var man dirManifest
	if err := yaml.Unmarshal(raw, &man); err != nil {
		return nil, fmt.Errorf("bad slide manifest in %s: %w", dir, err)
	}

	levels := make([]pyramid.Level, len(man.Levels))
	files := make([]string, len(man.Levels))
	for i, l := range man.Levels {
		levels[i] = pyramid.Level{Width: l.Width, Height: l.Height, Downsample: l.Downsample}
		files[i] = filepath.Join(dir, l.File)
	}

	pyr, err := pyramid.New(levels, man.MPP)
	if err != nil {
		return nil, fmt.Errorf("invalid pyramid in %s: %w", dir, err)
	}

	return &DirReader{
		dir:    dir,
		pyr:    pyr,
		levels: make([]gocv.Mat, len(levels)),
		loaded: make([]bool, len(levels)),
		files:  files,
	}, nil
}

// Pyramid returns the slide's level geometry.
func (r *DirReader) Pyramid() *pyramid.SlidePyramid {
	return r.pyr
}

// ReadRegion decodes (or reuses) the level image and returns a copy of the
// requested rectangle.
func (r *DirReader) ReadRegion(ctx context.Context, level int, rect geometry.RectInt) (gocv.Mat, error) {
	if err := ctx.Err(); err != nil {
		return gocv.NewMat(), err
	}
	if level < 0 || level >= r.pyr.NumLevels() {
		return gocv.NewMat(), fmt.Errorf("%w: level %d of %d", ErrBadLevel, level, r.pyr.NumLevels())
	}

	bounds := r.pyr.Level(level).Bounds()
	if rect.Empty() || rect.Intersect(bounds) != rect {
		return gocv.NewMat(), fmt.Errorf("%w: %+v at level %d", ErrOutOfBounds, rect, level)
	}

	full, err := r.levelMat(level)
	if err != nil {
		return gocv.NewMat(), err
	}

	roi := full.Region(rectToImageRect(rect))
	defer roi.Close()
	return roi.Clone(), nil
}

// levelMat returns the decoded Mat for a level, decoding it on first use.
func (r *DirReader) levelMat(level int) (gocv.Mat, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.loaded[level] {
		return r.levels[level], nil
	}

	img, err := imaging.Load(r.files[level])
	if err != nil {
		return gocv.NewMat(), fmt.Errorf("level %d: %w", level, err)
	}
	mat, err := imaging.ToMat(img)
	if err != nil {
		return gocv.NewMat(), fmt.Errorf("level %d: %w", level, err)
	}

	want := r.pyr.Level(level)
	if mat.Cols() != want.Width || mat.Rows() != want.Height {
		mat.Close()
		return gocv.NewMat(), fmt.Errorf("level %d image is %dx%d, manifest says %dx%d",
			level, mat.Cols(), mat.Rows(), want.Width, want.Height)
	}

	r.levels[level] = mat
	r.loaded[level] = true
	return mat, nil
}

// Close releases all decoded levels.
func (r *DirReader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.levels {
		if r.loaded[i] {
			r.levels[i].Close()
			r.loaded[i] = false
		}
	}
	return nil
}
