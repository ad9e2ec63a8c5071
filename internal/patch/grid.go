package patch

import (
	"math/rand"

	"wsi-patcher/internal/pyramid"
	"wsi-patcher/pkg/geometry"
)

// Coordinates generates candidate patch origins covering the slide: a
// regular grid at intervalMicrons spacing, keeping only origins whose full
// patch footprint fits the slide, visited in a shuffled order. The order is
// deterministic for a given seed, so extraction runs are reproducible.
func Coordinates(p *pyramid.SlidePyramid, intervalMicrons, physSizeMicrons float64, seed int64) []geometry.Point2D {
	if intervalMicrons <= 0 || physSizeMicrons <= 0 {
		return nil
	}

	ext := p.Extent()
	var coords []geometry.Point2D
	for y := 0.0; y+physSizeMicrons <= ext.Height; y += intervalMicrons {
		for x := 0.0; x+physSizeMicrons <= ext.Width; x += intervalMicrons {
			coords = append(coords, geometry.Point2D{X: x, Y: y})
		}
	}

	rng := rand.New(rand.NewSource(seed))
	rng.Shuffle(len(coords), func(i, j int) {
		coords[i], coords[j] = coords[j], coords[i]
	})
	return coords
}
