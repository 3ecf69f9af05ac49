package guide

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validInstruction() ScreenshotInstruction {
	return ScreenshotInstruction{
		ImagePath:      "infill.png",
		ModelPath:      "cube.scad",
		CameraPosition: Vec3{0, 100, 100},
		Layer:          Scalar(-1),
		Line:           Scalar(0),
		Settings:       map[string]any{},
		Colours:        64,
		Width:          640,
		Height:         480,
		Delay:          100,
	}
}

func TestFramesScalarWrapsToSingleFrame(t *testing.T) {
	inst := validInstruction()
	inst.Layer = Scalar(7)
	inst.Line = Scalar(3)

	frames, err := inst.Frames()
	require.NoError(t, err)

	want := []Frame{{Index: 0, Layer: 7, Line: 3}}
	if diff := cmp.Diff(want, frames); diff != "" {
		t.Fatalf("frames mismatch (-want +got):\n%s", diff)
	}
	assert.False(t, inst.IsAnimation())
}

func TestFramesLockStep(t *testing.T) {
	inst := validInstruction()
	inst.Layer = Seq(0, 1, 2)
	inst.Line = Seq(5, 0, 9)

	frames, err := inst.Frames()
	require.NoError(t, err)

	want := []Frame{
		{Index: 0, Layer: 0, Line: 5},
		{Index: 1, Layer: 1, Line: 0},
		{Index: 2, Layer: 2, Line: 9},
	}
	if diff := cmp.Diff(want, frames); diff != "" {
		t.Fatalf("frames mismatch (-want +got):\n%s", diff)
	}
	assert.True(t, inst.IsAnimation())
}

func TestFramesRejectsScalarAgainstSequence(t *testing.T) {
	tests := []struct {
		name        string
		layer, line IntSeq
	}{
		{"scalar layer", Scalar(4), Seq(10, 20)},
		{"scalar line", Seq(0, 1, 2), Scalar(0)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inst := validInstruction()
			inst.Layer = tt.layer
			inst.Line = tt.line

			_, err := inst.Frames()
			assert.Error(t, err)
			assert.False(t, inst.IsAnimation())
			assert.Error(t, inst.Validate())
		})
	}
}

func TestFramesUnsetLineShowsWholeLayer(t *testing.T) {
	inst := validInstruction()
	inst.Layer = Seq(0, 1, 2)
	inst.Line = IntSeq{}

	frames, err := inst.Frames()
	require.NoError(t, err)
	want := []Frame{
		{Index: 0, Layer: 0, Line: 0},
		{Index: 1, Layer: 1, Line: 0},
		{Index: 2, Layer: 2, Line: 0},
	}
	if diff := cmp.Diff(want, frames); diff != "" {
		t.Fatalf("frames mismatch (-want +got):\n%s", diff)
	}
	assert.True(t, inst.IsAnimation())
	assert.NoError(t, inst.Validate())
}

func TestIsAnimationFollowsLayer(t *testing.T) {
	inst := validInstruction()
	inst.Layer = Seq(3)
	inst.Line = Seq(0)
	assert.False(t, inst.IsAnimation())

	inst.Layer = Seq(3, 3)
	inst.Line = Seq(0, 9)
	assert.True(t, inst.IsAnimation())
}

func TestFramesLengthMismatch(t *testing.T) {
	inst := validInstruction()
	inst.Layer = Seq(0, 1, 2)
	inst.Line = Seq(0, 1)

	_, err := inst.Frames()
	assert.Error(t, err)
	assert.False(t, inst.IsAnimation())
	assert.Error(t, inst.Validate())
}

func TestFramesDoesNotMutateInstruction(t *testing.T) {
	inst := validInstruction()
	inst.Layer = Scalar(2)
	inst.Line = Scalar(1)

	_, err := inst.Frames()
	require.NoError(t, err)
	assert.True(t, inst.Layer.IsScalar())
	assert.Equal(t, 1, inst.Layer.Len())

	inst.Line = Seq(1, 2, 3)
	values := inst.Line.Values()
	values[0] = 99
	assert.Equal(t, []int{1, 2, 3}, inst.Line.Values())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*ScreenshotInstruction)
		wantErr string
	}{
		{"valid", func(*ScreenshotInstruction) {}, ""},
		{"too many colours", func(s *ScreenshotInstruction) { s.Colours = 257 }, "colours must be between 1 and 256, got 257"},
		{"zero colours", func(s *ScreenshotInstruction) { s.Colours = 0 }, "colours must be between 1 and 256, got 0"},
		{"max colours", func(s *ScreenshotInstruction) { s.Colours = 256 }, ""},
		{"no size", func(s *ScreenshotInstruction) { s.Width = 0 }, "width and height must be positive"},
		{"negative delay", func(s *ScreenshotInstruction) { s.Delay = -5 }, "delay must not be negative"},
		{"escaping image path", func(s *ScreenshotInstruction) { s.ImagePath = "../../etc/passwd" }, "image_path must be a relative path"},
		{"absolute model path", func(s *ScreenshotInstruction) { s.ModelPath = "/tmp/cube.scad" }, "model_path must be a relative path"},
		{"option-like path", func(s *ScreenshotInstruction) { s.ImagePath = "-write.png" }, "must not start with '-'"},
		{"missing model", func(s *ScreenshotInstruction) { s.ModelPath = "" }, "model_path is required"},
		{"bad layer", func(s *ScreenshotInstruction) { s.Layer = Seq(1, -3) }, "layer must be -1 or a layer number"},
		{"bad line", func(s *ScreenshotInstruction) { s.Line = Scalar(-1) }, "line must not be negative"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inst := validInstruction()
			tt.mutate(&inst)
			err := inst.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
