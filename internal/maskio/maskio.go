// Package maskio persists tissue masks as compressed bitmap files so a
// batch run can reuse masks without rebuilding them from the slide.
package maskio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	"wsi-patcher/internal/mask"

	"github.com/klauspost/compress/zstd"
)

// ErrBadFormat indicates the file is not a recognized mask dump.
var ErrBadFormat = errors.New("maskio: bad mask file format")

var magic = [4]byte{'W', 'S', 'M', '1'}

type header struct {
	Magic      [4]byte
	Width      uint32
	Height     uint32
	Downsample float64
}

// Save writes the mask and its downsample factor to path. The bitmap is
// packed eight pixels per byte and zstd-compressed.
func Save(path string, m *mask.Mask, downsample float64) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating mask file: %w", err)
	}
	defer f.Close()

	if err := Write(f, m, downsample); err != nil {
		return err
	}
	return f.Close()
}

// Write encodes the mask onto w.
func Write(w io.Writer, m *mask.Mask, downsample float64) error {
	hdr := header{
		Magic:      magic,
		Width:      uint32(m.Width()),
		Height:     uint32(m.Height()),
		Downsample: downsample,
	}
	if err := binary.Write(w, binary.LittleEndian, &hdr); err != nil {
		return fmt.Errorf("writing mask header: %w", err)
	}

	enc, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return fmt.Errorf("creating zstd writer: %w", err)
	}
	if _, err := enc.Write(packBits(m)); err != nil {
		enc.Close()
		return fmt.Errorf("writing mask bitmap: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("flushing mask bitmap: %w", err)
	}
	return nil
}

// Load reads a mask previously written by Save and returns it together
// with the downsample factor recorded in the header.
func Load(path string) (*mask.Mask, float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("opening mask file: %w", err)
	}
	defer f.Close()

	return Read(f)
}

// Read decodes a mask from r.
func Read(r io.Reader) (*mask.Mask, float64, error) {
	var hdr header
	if err := binary.Read(r, binary.LittleEndian, &hdr); err != nil {
		return nil, 0, fmt.Errorf("reading mask header: %w", err)
	}
	if hdr.Magic != magic {
		return nil, 0, ErrBadFormat
	}
	if hdr.Width == 0 || hdr.Height == 0 || hdr.Width > math.MaxInt32 || hdr.Height > math.MaxInt32 {
		return nil, 0, fmt.Errorf("%w: %dx%d bitmap", ErrBadFormat, hdr.Width, hdr.Height)
	}
	if hdr.Downsample <= 0 || math.IsNaN(hdr.Downsample) || math.IsInf(hdr.Downsample, 0) {
		return nil, 0, fmt.Errorf("%w: downsample %v", ErrBadFormat, hdr.Downsample)
	}

	dec, err := zstd.NewReader(r)
	if err != nil {
		return nil, 0, fmt.Errorf("creating zstd reader: %w", err)
	}
	defer dec.Close()

	width, height := int(hdr.Width), int(hdr.Height)
	packed := make([]byte, (width*height+7)/8)
	if _, err := io.ReadFull(dec, packed); err != nil {
		return nil, 0, fmt.Errorf("reading mask bitmap: %w", err)
	}

	return unpackBits(packed, width, height), hdr.Downsample, nil
}

func packBits(m *mask.Mask) []byte {
	width, height := m.Width(), m.Height()
	packed := make([]byte, (width*height+7)/8)
	i := 0
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			if m.At(x, y) {
				packed[i/8] |= 1 << (i % 8)
			}
			i++
		}
	}
	return packed
}

func unpackBits(packed []byte, width, height int) *mask.Mask {
	m := mask.NewMask(width, height)
	i := 0
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			if packed[i/8]&(1<<(i%8)) != 0 {
				m.Set(x, y, true)
			}
			i++
		}
	}
	return m
}
