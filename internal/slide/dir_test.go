package slide

import (
	"context"
	"errors"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"wsi-patcher/internal/imaging"
	"wsi-patcher/pkg/geometry"
)

// writePyramidDir materializes a two-level pyramid on disk: 32x32 at full
// resolution, 8x8 at downsample 4, with a distinct color per level.
func writePyramidDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	sizes := []int{32, 8}
	shades := []uint8{200, 100}
	for i, size := range sizes {
		img := image.NewRGBA(image.Rect(0, 0, size, size))
		for y := 0; y < size; y++ {
			for x := 0; x < size; x++ {
				img.Set(x, y, color.RGBA{R: shades[i], G: shades[i], B: shades[i], A: 255})
			}
		}
		name := filepath.Join(dir, "level"+string(rune('0'+i))+".png")
		if err := imaging.SavePNG(name, img); err != nil {
			t.Fatal(err)
		}
	}

	manifest := `mpp: 0.5
levels:
  - {file: level0.png, width: 32, height: 32, downsample: 1.0}
  - {file: level1.png, width: 8, height: 8, downsample: 4.0}
`
	if err := os.WriteFile(filepath.Join(dir, "pyramid.yaml"), []byte(manifest), 0644); err != nil {
		t.Fatal(err)
	}
	return dir
}

func TestOpenDirReadsManifest(t *testing.T) {
	r, err := OpenDir(writePyramidDir(t))
	if err != nil {
		t.Fatalf("OpenDir failed: %v", err)
	}
	defer r.Close()

	pyr := r.Pyramid()
	if pyr.NumLevels() != 2 {
		t.Fatalf("expected 2 levels, got %d", pyr.NumLevels())
	}
	if pyr.MPP() != 0.5 {
		t.Errorf("mpp = %v, want 0.5", pyr.MPP())
	}
	if d := pyr.Level(1).Downsample; d != 4.0 {
		t.Errorf("level 1 downsample = %v, want 4.0", d)
	}
}

func TestDirReaderReadRegion(t *testing.T) {
	r, err := OpenDir(writePyramidDir(t))
	if err != nil {
		t.Fatalf("OpenDir failed: %v", err)
	}
	defer r.Close()

	ctx := context.Background()

	region, err := r.ReadRegion(ctx, 0, geometry.NewRectInt(4, 4, 16, 12))
	if err != nil {
		t.Fatalf("ReadRegion failed: %v", err)
	}
	defer region.Close()
	if region.Cols() != 16 || region.Rows() != 12 {
		t.Errorf("region is %dx%d, want 16x12", region.Cols(), region.Rows())
	}
	if got := region.GetUCharAt(0, 0); got != 200 {
		t.Errorf("level 0 pixel = %d, want 200", got)
	}

	// Second read at another level checks per-level decode.
	region1, err := r.ReadRegion(ctx, 1, geometry.NewRectInt(0, 0, 8, 8))
	if err != nil {
		t.Fatalf("ReadRegion(level 1) failed: %v", err)
	}
	defer region1.Close()
	if got := region1.GetUCharAt(3, 3*3); got != 100 {
		t.Errorf("level 1 pixel = %d, want 100", got)
	}
}

func TestDirReaderRejectsBadRequests(t *testing.T) {
	r, err := OpenDir(writePyramidDir(t))
	if err != nil {
		t.Fatalf("OpenDir failed: %v", err)
	}
	defer r.Close()

	ctx := context.Background()

	if _, err := r.ReadRegion(ctx, 0, geometry.NewRectInt(20, 20, 16, 16)); !errors.Is(err, ErrOutOfBounds) {
		t.Errorf("overhanging read: got %v, want ErrOutOfBounds", err)
	}
	if _, err := r.ReadRegion(ctx, 0, geometry.NewRectInt(-1, 0, 4, 4)); !errors.Is(err, ErrOutOfBounds) {
		t.Errorf("negative origin: got %v, want ErrOutOfBounds", err)
	}
	if _, err := r.ReadRegion(ctx, 5, geometry.NewRectInt(0, 0, 4, 4)); !errors.Is(err, ErrBadLevel) {
		t.Errorf("bad level: got %v, want ErrBadLevel", err)
	}

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	if _, err := r.ReadRegion(cancelled, 0, geometry.NewRectInt(0, 0, 4, 4)); !errors.Is(err, context.Canceled) {
		t.Errorf("cancelled context: got %v, want context.Canceled", err)
	}
}

func TestOpenDirRejectsDimensionMismatch(t *testing.T) {
	dir := writePyramidDir(t)
	manifest := `mpp: 0.5
levels:
  - {file: level0.png, width: 64, height: 64, downsample: 1.0}
`
	if err := os.WriteFile(filepath.Join(dir, "pyramid.yaml"), []byte(manifest), 0644); err != nil {
		t.Fatal(err)
	}

	r, err := OpenDir(dir)
	if err != nil {
		t.Fatalf("OpenDir failed: %v", err)
	}
	defer r.Close()

	// The mismatch surfaces on first decode.
	if _, err := r.ReadRegion(context.Background(), 0, geometry.NewRectInt(0, 0, 4, 4)); err == nil {
		t.Error("expected an error for a level whose image disagrees with the manifest")
	}
}

func TestOpenDirMissingManifest(t *testing.T) {
	if _, err := OpenDir(t.TempDir()); err == nil {
		t.Error("expected an error for a directory without a manifest")
	}
}
