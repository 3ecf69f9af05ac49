package engine

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ivlev/guideshots/internal/system"
)

func TestReportErr(t *testing.T) {
	r := &Report{}
	assert.NoError(t, r.Err())

	first := errors.New("first")
	r.Failures = append(r.Failures, first, &StageError{Stage: StageSlice, Image: "a.png", Err: ErrHostOperation})
	err := r.Err()
	require.Error(t, err)
	assert.ErrorIs(t, err, first)
	assert.ErrorIs(t, err, ErrHostOperation)
}

func TestReportPrint(t *testing.T) {
	r := &Report{
		RunID:        "01J0000000000000000000000",
		Articles:     2,
		Instructions: 3,
		Frames:       7,
		Refreshed:    []Output{{Image: "a.png"}, {Image: "b.gif"}},
		Failures:     []error{errors.New("x")},
		Total:        1500 * time.Millisecond,
	}

	var buf bytes.Buffer
	r.Print(&buf, "v1.2.3")
	out := buf.String()
	assert.Contains(t, out, "Build: v1.2.3")
	assert.Contains(t, out, "Articles: 2 | Instructions: 3 | Frames: 7")
	assert.Contains(t, out, "Refreshed: 2 | Failed: 1")
	assert.Contains(t, out, "Total Time: 1.50s")
	assert.NotContains(t, out, "Memory:")

	r.Resources = &system.Resources{MemTotal: 8 << 30, MemAvailable: 4 << 30, DiskFree: 1 << 30, DiskTotal: 2 << 30}
	buf.Reset()
	r.Print(&buf, "v1.2.3")
	assert.Contains(t, buf.String(), "Memory: 4.0 GiB available of 8.0 GiB")
	assert.Contains(t, buf.String(), "Scratch disk: 1.0 GiB free of 2.0 GiB")
}

func TestReportAppendLog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stats.log")
	r := &Report{RunID: "run1", Instructions: 1}
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, r.AppendLog(path, "dev", at))
	require.NoError(t, r.AppendLog(path, "dev", at))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "[2024-05-01 12:00:00] Build: dev | Run: run1"))
}
