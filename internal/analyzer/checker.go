// Package analyzer inspects captured snapshots before they are written, so a
// render of an empty scene does not silently replace a good guide image.
package analyzer

import (
	"errors"
	"fmt"
	"image"
)

var ErrBlankSnapshot = errors.New("snapshot is blank")

// Report describes what a Checker found in one image.
type Report struct {
	EdgeRatio float64         // share of pixels on an edge
	Blank     bool            // too few edges to contain a model
	Content   image.Rectangle // bounds of all edge pixels; empty when Blank
	Regions   int             // separate objects in view
	Clipped   bool            // content reaches the image border
}

// Err returns ErrBlankSnapshot for a blank report.
func (r Report) Err() error {
	if r.Blank {
		return fmt.Errorf("%w: edge ratio %.5f", ErrBlankSnapshot, r.EdgeRatio)
	}
	return nil
}

type Checker interface {
	Check(img image.Image) (Report, error)
}

// NewChecker returns the checker configured by name ("contrast" or "none").
func NewChecker(name string) (Checker, error) {
	switch name {
	case "", "contrast":
		return NewContrastChecker(), nil
	case "none":
		return None{}, nil
	default:
		return nil, fmt.Errorf("unknown blank check %q", name)
	}
}

// None accepts every image.
type None struct{}

func (None) Check(img image.Image) (Report, error) {
	return Report{Content: img.Bounds()}, nil
}

func errTooSmall(r image.Rectangle) error {
	return fmt.Errorf("image %dx%d too small to analyze", r.Dx(), r.Dy())
}
