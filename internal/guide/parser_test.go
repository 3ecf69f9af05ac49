package guide

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const article = `# Infill Density

Infill density sets how much plastic goes inside the print.

<!--screenshot
image_path: infill_density.gif
model_path: cube.scad
camera_position: [0, 120, 180]
camera_lookat: [0, 0, 0]
layer: [10, 11, 12]
line: [0, 0, 5]
settings:
  infill_sparse_density: 20
colours: 64
width: 640
height: 480
delay: 500
-->

<!-- an ordinary comment -->
<!--screenshots are refreshed by hand-->

<!--screenshot
image_path: broken.png
model_path: [not, a, path]
-->

Some more text with a <b>tag</b>.

<!--screenshot
image_path: solid.png
model_path: cube.scad
camera_position: [10, 10, 10]
camera_lookat: [0, 0, 0]
width: 320
height: 240
-->
`

func TestFindYieldsInstructionsInOrder(t *testing.T) {
	insts, errs := Collect("infill.md", article)

	require.Len(t, insts, 2)
	require.Len(t, errs, 1)

	first := insts[0]
	assert.Equal(t, "infill_density.gif", first.ImagePath)
	assert.Equal(t, "cube.scad", first.ModelPath)
	assert.Equal(t, Vec3{0, 120, 180}, first.CameraPosition)
	assert.Equal(t, []int{10, 11, 12}, first.Layer.Values())
	assert.Equal(t, []int{0, 0, 5}, first.Line.Values())
	assert.Equal(t, 20, first.Settings["infill_sparse_density"])
	assert.Equal(t, 64, first.Colours)
	assert.Equal(t, 500, first.Delay)
	assert.Equal(t, Location{Source: "infill.md", Line: 5}, first.Location)
	assert.True(t, first.IsAnimation())

	second := insts[1]
	assert.Equal(t, "solid.png", second.ImagePath)
	assert.Equal(t, []int{-1}, second.Layer.Values())
	assert.True(t, second.Line.IsZero())
	frames, err := second.Frames()
	require.NoError(t, err)
	assert.Equal(t, []Frame{{Index: 0, Layer: -1, Line: 0}}, frames)
	assert.Equal(t, MaxColours, second.Colours)
	assert.Equal(t, 100, second.Delay)
	assert.NotNil(t, second.Settings)
	assert.False(t, second.IsAnimation())
}

func TestFindReportsLocationAndContinues(t *testing.T) {
	_, errs := Collect("infill.md", article)
	require.Len(t, errs, 1)

	var perr *ParseError
	require.True(t, errors.As(errs[0], &perr))
	assert.True(t, errors.Is(errs[0], ErrParse))
	assert.Equal(t, "infill.md", perr.Location.Source)
	assert.Equal(t, 23, perr.Location.Line)
	assert.Contains(t, errs[0].Error(), "infill.md:23")
}

func TestFindRejectsOutOfRangeColours(t *testing.T) {
	text := `<!--screenshot
image_path: a.png
model_path: a.scad
camera_position: [0, 0, 1]
camera_lookat: [0, 0, 0]
colours: 300
width: 10
height: 10
-->`
	insts, errs := Collect("a.md", text)
	assert.Empty(t, insts)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Error(), "colours must be between 1 and 256, got 300")
}

func TestFindRejectsUnknownKeys(t *testing.T) {
	text := `<!--screenshot
image_path: a.png
model_path: a.scad
colors: 12
width: 10
height: 10
-->`
	_, errs := Collect("a.md", text)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Error(), "colors")
}

func TestFindEmptyInstruction(t *testing.T) {
	_, errs := Collect("a.md", "<!--screenshot-->")
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Error(), "empty instruction")
}

func TestFindIsRestartable(t *testing.T) {
	seq := Find("infill.md", article)

	count := func() int {
		n := 0
		for range seq {
			n++
		}
		return n
	}
	assert.Equal(t, 3, count())
	assert.Equal(t, 3, count())
}

func TestFindStopsWhenConsumerStops(t *testing.T) {
	var seen []string
	for inst, err := range Find("infill.md", article) {
		require.NoError(t, err)
		seen = append(seen, inst.ImagePath)
		break
	}
	assert.Equal(t, []string{"infill_density.gif"}, seen)
}

func TestFindNoInstructions(t *testing.T) {
	insts, errs := Collect("plain.md", "Nothing to see here.\n<p>Really.</p>")
	assert.Empty(t, insts)
	assert.Empty(t, errs)
}

func TestFormatRoundTrip(t *testing.T) {
	insts, _ := Collect("infill.md", article)
	require.NotEmpty(t, insts)

	text, err := Format(insts[0])
	require.NoError(t, err)
	assert.Contains(t, text, "<!--screenshot\n")
	assert.Contains(t, text, "camera_lookat:")
	assert.NotContains(t, text, "line: []")

	again, errs := Collect("copy.md", text)
	require.Empty(t, errs)
	require.Len(t, again, 1)

	got := again[0]
	got.Location = insts[0].Location
	assert.Equal(t, insts[0], got)
}

const instructionTail = `model_path: cube.scad
camera_position: [0, 100, 100]
camera_lookat: [0, 0, 0]
width: 64
height: 48
-->
`

func TestFindRejectsScalarAgainstSequence(t *testing.T) {
	tests := []struct {
		name, layer, line string
	}{
		{"scalar layer", "5", "[0, 10, 20]"},
		{"scalar line", "[0, 1, 2]", "0"},
		{"different lengths", "[0, 1, 2]", "[0, 1]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			text := "<!--screenshot\nimage_path: a.gif\nlayer: " + tt.layer + "\nline: " + tt.line + "\n" + instructionTail
			insts, errs := Collect("a.md", text)
			assert.Empty(t, insts)
			require.Len(t, errs, 1)
			assert.Contains(t, errs[0].Error(), "layer has")
		})
	}
}

func TestFindOmittedLineFollowsLayer(t *testing.T) {
	text := "<!--screenshot\nimage_path: a.gif\nlayer: [3, 4]\n" + instructionTail
	insts, errs := Collect("a.md", text)
	require.Empty(t, errs)
	require.Len(t, insts, 1)

	frames, err := insts[0].Frames()
	require.NoError(t, err)
	assert.Equal(t, []Frame{{Index: 0, Layer: 3, Line: 0}, {Index: 1, Layer: 4, Line: 0}}, frames)
	assert.True(t, insts[0].IsAnimation())
}

func TestFindSurvivesRawTextTags(t *testing.T) {
	for _, prose := range []string{
		"The window <title> bar shows the file name.",
		"Plug-ins may inject `<script>` tags.",
		"Use <style> or <textarea> with care.",
		"An empty <title/> element.",
	} {
		t.Run(prose, func(t *testing.T) {
			text := prose + "\n\n<!--screenshot\nimage_path: a.png\n" + instructionTail
			insts, errs := Collect("a.md", text)
			require.Empty(t, errs)
			require.Len(t, insts, 1)
			assert.Equal(t, "a.png", insts[0].ImagePath)
			assert.Equal(t, 3, insts[0].Location.Line)
		})
	}
}

func TestFindRequiresCamera(t *testing.T) {
	text := `<!--screenshot
image_path: a.png
model_path: cube.scad
width: 64
height: 48
-->`
	insts, errs := Collect("a.md", text)
	assert.Empty(t, insts)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Error(), "camera_position is required")
	assert.Contains(t, errs[0].Error(), "camera_lookat is required")

	text = `<!--screenshot
image_path: a.png
model_path: cube.scad
camera_position: [0, 0, 0]
camera_lookat: [0, 0, 0]
width: 64
height: 48
-->`
	insts, errs = Collect("a.md", text)
	assert.Empty(t, errs, "an explicit origin is allowed")
	assert.Len(t, insts, 1)
}

func TestFindKeepsEntitiesLiteral(t *testing.T) {
	text := "<!--screenshot\nimage_path: a.png\nsettings:\n  machine_start_gcode: \"G28 &amp; M104\"\n" + instructionTail
	insts, errs := Collect("a.md", text)
	require.Empty(t, errs)
	require.Len(t, insts, 1)
	assert.Equal(t, "G28 &amp; M104", insts[0].Settings["machine_start_gcode"])

	formatted, err := Format(insts[0])
	require.NoError(t, err)
	again, errs := Collect("b.md", formatted)
	require.Empty(t, errs)
	require.Len(t, again, 1)
	assert.Equal(t, "G28 &amp; M104", again[0].Settings["machine_start_gcode"])
}
