package pyramid

import (
	"fmt"
	"math"

	"wsi-patcher/pkg/geometry"
)

// Choice is the outcome of level selection for one patch geometry:
// the level to read from and the patch's side length in that level's pixels.
type Choice struct {
	Level int
	Size  int     // round(S_L), the patch footprint in level pixels
	Score float64 // |log10(S_L / (2*S_R))| at the chosen level
}

// SelectLevel picks the pyramid level whose native pixel footprint for a
// patch of physSizeMicrons best matches targetPx output pixels.
//
// For each level L with downsample d_L, the patch occupies
// S_L = physSizeMicrons / mpp / d_L level pixels. The level minimizing
// |log10(S_L / (2*targetPx))| is chosen: a level whose native footprint is
// within roughly a factor of two of the output size avoids both wasteful
// oversampling and destructive undersampling. Ties go to the lower level
// index (higher native resolution).
func SelectLevel(p *SlidePyramid, physSizeMicrons float64, targetPx int) (Choice, error) {
	if p == nil || p.NumLevels() == 0 {
		return Choice{}, ErrNoLevels
	}
	if physSizeMicrons <= 0 {
		return Choice{}, fmt.Errorf("%w: physical size %g microns", ErrInvalidPatchSize, physSizeMicrons)
	}
	if targetPx <= 0 {
		return Choice{}, fmt.Errorf("%w: target %d pixels", ErrInvalidPatchSize, targetPx)
	}

	sizeLevel0 := physSizeMicrons / p.mpp

	best := Choice{Level: -1}
	for i := 0; i < p.NumLevels(); i++ {
		sized := sizeLevel0 / p.levels[i].Downsample
		score := math.Abs(math.Log10(sized / (2 * float64(targetPx))))
		if best.Level < 0 || score < best.Score {
			best = Choice{
				Level: i,
				Size:  int(math.Round(sized)),
				Score: score,
			}
		}
	}
	return best, nil
}

// PatchRect maps a physical patch (top-left origin in microns, side
// choice.Size) into the pixel rectangle to read at the chosen level.
func (p *SlidePyramid) PatchRect(origin geometry.Point2D, choice Choice) geometry.RectInt {
	tl := p.MicronsToLevelPixels(origin, choice.Level).Round()
	return geometry.RectInt{X: tl.X, Y: tl.Y, Width: choice.Size, Height: choice.Size}
}

// BestLevelForDownsample returns the level whose downsample factor is
// closest (in log ratio) to the requested one. Used to pick the reference
// level a slide's tissue mask is computed at.
func (p *SlidePyramid) BestLevelForDownsample(target float64) int {
	best := 0
	bestScore := math.Inf(1)
	for i, l := range p.levels {
		score := math.Abs(math.Log10(target / l.Downsample))
		if score < bestScore {
			best = i
			bestScore = score
		}
	}
	return best
}
