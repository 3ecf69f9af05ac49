package guide

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// MaxColours is the largest palette ImageMagick and GIF can express.
const MaxColours = 256

// Vec3 is an X, Y, Z position in scene coordinates.
type Vec3 [3]float64

// Camera describes where the snapshot is taken from.
type Camera struct {
	Position Vec3
	LookAt   Vec3
}

// ScreenshotInstruction is everything needed to take one screenshot or animation.
// It is produced by the parser and treated as read-only afterwards.
type ScreenshotInstruction struct {
	ImagePath      string         `yaml:"image_path"`      // relative to the images folder
	ModelPath      string         `yaml:"model_path"`      // OpenSCAD source, relative to the models folder
	CameraPosition Vec3           `yaml:"camera_position"` // camera position
	CameraLookAt   Vec3           `yaml:"camera_lookat"`   // camera focal point
	Layer          IntSeq         `yaml:"layer,omitempty"` // -1 shows the solid model
	Line           IntSeq         `yaml:"line,omitempty"`  // 0 shows the whole layer
	Settings       map[string]any `yaml:"settings"`        // setting key -> value to slice with
	Colours        int            `yaml:"colours"`         // palette size, at most 256
	Width          int            `yaml:"width"`
	Height         int            `yaml:"height"`
	Delay          int            `yaml:"delay"` // between frames, ms

	Location Location `yaml:"-"`
}

// Location points at the embedded block an instruction was decoded from.
type Location struct {
	Source string
	Line   int
}

func (l Location) String() string {
	if l.Source == "" {
		return fmt.Sprintf("line %d", l.Line)
	}
	return fmt.Sprintf("%s:%d", l.Source, l.Line)
}

// Frame is one captured image of an instruction.
type Frame struct {
	Index int
	Layer int
	Line  int
}

// SolidView reports whether the frame shows the unsliced model.
func (f Frame) SolidView() bool {
	return f.Layer < 0
}

func (s ScreenshotInstruction) Camera() Camera {
	return Camera{Position: s.CameraPosition, LookAt: s.CameraLookAt}
}

// Frames pairs layer and line values in lock-step. A scalar counts as a
// one-element sequence, so both sides must have the same length. An omitted
// line shows the whole layer on every frame. The instruction is not modified.
func (s ScreenshotInstruction) Frames() ([]Frame, error) {
	layers, lines := s.Layer.Values(), s.Line.Values()
	if len(layers) == 0 {
		layers = []int{-1}
	}
	if len(lines) == 0 {
		lines = make([]int, len(layers))
	}
	if len(layers) != len(lines) {
		return nil, fmt.Errorf("layer has %d entries but line has %d", len(layers), len(lines))
	}

	frames := make([]Frame, len(layers))
	for i := range frames {
		frames[i] = Frame{Index: i, Layer: layers[i], Line: lines[i]}
	}
	return frames, nil
}

// IsAnimation is true when the normalized layer sequence has more than one
// entry and the instruction is well formed.
func (s ScreenshotInstruction) IsAnimation() bool {
	if _, err := s.Frames(); err != nil {
		return false
	}
	return s.Layer.Len() > 1
}

// Validate checks the invariants of the instruction. Out of range values are
// reported, never clamped.
func (s ScreenshotInstruction) Validate() error {
	var errs []error

	if err := checkLocalPath("image_path", s.ImagePath); err != nil {
		errs = append(errs, err)
	}
	if err := checkLocalPath("model_path", s.ModelPath); err != nil {
		errs = append(errs, err)
	}
	if s.Colours < 1 || s.Colours > MaxColours {
		errs = append(errs, fmt.Errorf("colours must be between 1 and %d, got %d", MaxColours, s.Colours))
	}
	if s.Width <= 0 || s.Height <= 0 {
		errs = append(errs, fmt.Errorf("width and height must be positive, got %dx%d", s.Width, s.Height))
	}
	if s.Delay < 0 {
		errs = append(errs, fmt.Errorf("delay must not be negative, got %d", s.Delay))
	}
	for _, layer := range s.Layer.Values() {
		if layer < -1 {
			errs = append(errs, fmt.Errorf("layer must be -1 or a layer number, got %d", layer))
			break
		}
	}
	for _, line := range s.Line.Values() {
		if line < 0 {
			errs = append(errs, fmt.Errorf("line must not be negative, got %d", line))
			break
		}
	}
	if _, err := s.Frames(); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

func checkLocalPath(field, p string) error {
	switch {
	case p == "":
		return fmt.Errorf("%s is required", field)
	case strings.HasPrefix(p, "-"):
		return fmt.Errorf("%s must not start with '-': %q", field, p)
	case !filepath.IsLocal(p):
		return fmt.Errorf("%s must be a relative path inside its folder: %q", field, p)
	}
	return nil
}

// IntSeq holds either a single integer or a sequence of integers, keeping
// track of which one was written so it can be encoded back the same way.
type IntSeq struct {
	values []int
	scalar bool
}

func Scalar(v int) IntSeq {
	return IntSeq{values: []int{v}, scalar: true}
}

func Seq(vs ...int) IntSeq {
	return IntSeq{values: append([]int(nil), vs...)}
}

// Values returns a copy of the normalized sequence. A scalar becomes a
// single-element slice.
func (s IntSeq) Values() []int {
	return append([]int(nil), s.values...)
}

func (s IntSeq) Len() int {
	return len(s.values)
}

func (s IntSeq) IsScalar() bool {
	return s.scalar
}

// IsZero reports an unset sequence, which the encoder omits.
func (s IntSeq) IsZero() bool {
	return len(s.values) == 0
}

func (s *IntSeq) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		var v int
		if err := node.Decode(&v); err != nil {
			return err
		}
		*s = Scalar(v)
		return nil
	case yaml.SequenceNode:
		var vs []int
		if err := node.Decode(&vs); err != nil {
			return err
		}
		if len(vs) == 0 {
			return fmt.Errorf("line %d: sequence must not be empty", node.Line)
		}
		*s = Seq(vs...)
		return nil
	default:
		return fmt.Errorf("line %d: expected an integer or a list of integers", node.Line)
	}
}

func (s IntSeq) MarshalYAML() (any, error) {
	if s.scalar && len(s.values) == 1 {
		return s.values[0], nil
	}
	return s.values, nil
}
