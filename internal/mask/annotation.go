package mask

import (
	"image"
	"image/color"
	"math"

	"wsi-patcher/pkg/geometry"

	"gocv.io/x/gocv"
)

// AnnotationMask rasterizes annotation polygons into a mask of the given
// dimensions. Polygon vertices are level-0 pixel coordinates; downsample is
// the mask grid's downsample relative to level 0.
func AnnotationMask(width, height int, downsample float64, polys []geometry.Polygon) *Mask {
	mat := gocv.Zeros(height, width, gocv.MatTypeCV8U)
	defer mat.Close()

	pts := gocv.NewPointsVector()
	defer pts.Close()

	for _, poly := range polys {
		if len(poly) < 3 {
			continue
		}
		ips := make([]image.Point, len(poly))
		for i, p := range poly {
			ips[i] = image.Point{
				X: int(math.Round(p.X / downsample)),
				Y: int(math.Round(p.Y / downsample)),
			}
		}
		pv := gocv.NewPointVectorFromPoints(ips)
		pts.Append(pv)
		pv.Close()
	}

	if pts.Size() > 0 {
		gocv.FillPoly(&mat, pts, color.RGBA{R: 255, G: 255, B: 255, A: 255})
	}
	return FromMat(mat)
}
