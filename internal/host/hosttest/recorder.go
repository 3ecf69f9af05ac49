// Package hosttest provides a deterministic in-memory Host for tests.
package hosttest

import (
	"context"
	"image"
	"image/color"
	"sync"

	"github.com/ivlev/guideshots/internal/guide"
	"github.com/ivlev/guideshots/internal/host"
)

// Call is one recorded Host invocation.
type Call struct {
	Method string
	Args   []any
}

// Recorder records every call and renders a checkerboard for snapshots.
// Set Fail to make a method return an error.
type Recorder struct {
	mu    sync.Mutex
	calls []Call

	Fail map[string]error
	// Limit keeps only the most recent calls when positive.
	Limit int
	// Render overrides the snapshot image; nil draws a checkerboard.
	Render func(width, height int) image.Image
}

var _ host.Host = (*Recorder)(nil)

func New() *Recorder {
	return &Recorder{Fail: map[string]error{}}
}

func (r *Recorder) record(method string, args ...any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, Call{Method: method, Args: args})
	if r.Limit > 0 && len(r.calls) > r.Limit {
		r.calls = append(r.calls[:0], r.calls[len(r.calls)-r.Limit:]...)
	}
	if err := r.Fail[method]; err != nil {
		return &host.OperationError{Method: method, Err: err}
	}
	return nil
}

func (r *Recorder) ConfigureSettings(_ context.Context, settings map[string]any) error {
	return r.record(host.MethodConfigureSettings, settings)
}

func (r *Recorder) LoadMesh(_ context.Context, path string) error {
	return r.record(host.MethodLoadMesh, path)
}

func (r *Recorder) Slice(context.Context) error {
	return r.record(host.MethodSlice)
}

func (r *Recorder) SwitchToSolidView(context.Context) error {
	return r.record(host.MethodSolidView)
}

func (r *Recorder) SwitchToLayerView(context.Context) error {
	return r.record(host.MethodLayerView)
}

func (r *Recorder) NavigateLayerView(_ context.Context, layer, line int) error {
	return r.record(host.MethodNavigateLayerView, layer, line)
}

func (r *Recorder) Snapshot(_ context.Context, camera guide.Camera, width, height int) (image.Image, error) {
	if err := r.record(host.MethodSnapshot, camera, width, height); err != nil {
		return nil, err
	}
	if r.Render != nil {
		return r.Render(width, height), nil
	}
	return Checkerboard(width, height, 8), nil
}

// Calls returns a copy of everything recorded so far.
func (r *Recorder) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Call(nil), r.calls...)
}

// Methods returns the recorded method names in call order.
func (r *Recorder) Methods() []string {
	calls := r.Calls()
	names := make([]string, len(calls))
	for i, c := range calls {
		names[i] = c.Method
	}
	return names
}

func (r *Recorder) Count(method string) int {
	n := 0
	for _, c := range r.Calls() {
		if c.Method == method {
			n++
		}
	}
	return n
}

func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = nil
}

// Checkerboard draws black and white squares of the given cell size.
func Checkerboard(width, height, cell int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			c := color.RGBA{A: 255}
			if (x/cell+y/cell)%2 == 0 {
				c = color.RGBA{R: 255, G: 255, B: 255, A: 255}
			}
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

// Uniform is a single-colour image, i.e. what an empty scene renders as.
func Uniform(width, height int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}
