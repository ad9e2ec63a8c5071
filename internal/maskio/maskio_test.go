package maskio

import (
	"bytes"
	"errors"
	"path/filepath"
	"testing"

	"wsi-patcher/internal/mask"
)

func checkerMask(width, height int) *mask.Mask {
	m := mask.NewMask(width, height)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			if (x+y)%2 == 0 {
				m.Set(x, y, true)
			}
		}
	}
	return m
}

func TestRoundTrip(t *testing.T) {
	orig := checkerMask(37, 21)

	path := filepath.Join(t.TempDir(), "tissue.msk")
	if err := Save(path, orig, 12.0); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, downsample, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if downsample != 12.0 {
		t.Errorf("downsample = %v, want 12.0", downsample)
	}

	w, h := loaded.Width(), loaded.Height()
	if w != 37 || h != 21 {
		t.Fatalf("loaded bounds %dx%d, want 37x21", w, h)
	}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if loaded.At(x, y) != orig.At(x, y) {
				t.Fatalf("pixel (%d,%d) changed across round trip", x, y)
			}
		}
	}
}

func TestReadRejectsBadMagic(t *testing.T) {
	var buf bytes.Buffer
	if err := Write(&buf, checkerMask(4, 4), 2.0); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	data := buf.Bytes()
	data[0] = 'X'

	if _, _, err := Read(bytes.NewReader(data)); !errors.Is(err, ErrBadFormat) {
		t.Errorf("corrupt magic: got %v, want ErrBadFormat", err)
	}
}

func TestReadRejectsTruncatedBitmap(t *testing.T) {
	var buf bytes.Buffer
	if err := Write(&buf, checkerMask(32, 32), 2.0); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	data := buf.Bytes()

	if _, _, err := Read(bytes.NewReader(data[:len(data)-4])); err == nil {
		t.Error("truncated bitmap should fail to load")
	}
}
