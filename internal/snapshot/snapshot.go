// Package snapshot writes captured viewport images to disk at the size the
// guide asks for.
package snapshot

import (
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"

	"golang.org/x/image/draw"
)

var encoder = png.Encoder{CompressionLevel: png.BestSpeed}

// Save writes img as a PNG at path, scaling it to width x height first when
// the capture came back at another size. Parent directories are created.
// The file appears atomically: a failed save never leaves a truncated PNG.
func Save(img image.Image, path string, width, height int) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("invalid snapshot size %dx%d", width, height)
	}

	out := img
	if b := img.Bounds(); b.Dx() != width || b.Dy() != height {
		dst := defaultPool.Get(image.Rect(0, 0, width, height))
		defer defaultPool.Put(dst)
		draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
		out = dst
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create snapshot directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".snapshot-*.png")
	if err != nil {
		return fmt.Errorf("create snapshot file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := encoder.Encode(tmp, out); err != nil {
		tmp.Close()
		return fmt.Errorf("encode snapshot %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write snapshot %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("move snapshot into place: %w", err)
	}
	return nil
}

// Load decodes a PNG written by Save.
func Load(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	img, err := png.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return img, nil
}
