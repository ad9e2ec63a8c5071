// Package meta loads slide metadata: identifiers, physical scale, file
// locations and annotation outlines. The patch importer consumes it through
// the Store interface; the production implementation is the viewer MySQL
// database.
package meta

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"wsi-patcher/pkg/geometry"
)

// ErrSlideNotFound is returned when no slide with the given id exists.
var ErrSlideNotFound = errors.New("slide not found")

// SlideInfo is the metadata record for one whole-slide image.
type SlideInfo struct {
	ID   string
	Path string // pyramid directory or slide file path
	MPP  float64

	// LabelPath optionally points at a scan of the slide's label, for
	// OCR-based identity checks.
	LabelPath string

	// Annotations are expert-drawn region outlines in level-0 pixel
	// coordinates.
	Annotations []geometry.Polygon
}

// Store supplies slide metadata.
type Store interface {
	Slide(ctx context.Context, id string) (*SlideInfo, error)
	ListIDs(ctx context.Context) ([]string, error)
}

// ParseAnnotations decodes the annotation JSON stored by the slide viewer.
// The wire shape is a list of single-polygon wrappers, each wrapper a list
// holding one ring of [x, y] vertex pairs:
//
//	[ [ [[x,y], [x,y], ...] ], [ [[x,y], ...] ] ]
func ParseAnnotations(raw []byte) ([]geometry.Polygon, error) {
	if len(raw) == 0 {
		return nil, nil
	}

	var wrappers [][][][2]float64
	if err := json.Unmarshal(raw, &wrappers); err != nil {
		return nil, fmt.Errorf("bad annotation payload: %w", err)
	}

	polys := make([]geometry.Polygon, 0, len(wrappers))
	for i, wrapper := range wrappers {
		if len(wrapper) == 0 {
			continue
		}
		ring := wrapper[0]
		if len(ring) < 3 {
			return nil, fmt.Errorf("annotation %d has %d vertices, need at least 3", i, len(ring))
		}
		poly := make(geometry.Polygon, len(ring))
		for j, v := range ring {
			poly[j] = geometry.Point2D{X: v[0], Y: v[1]}
		}
		polys = append(polys, poly)
	}
	return polys, nil
}
