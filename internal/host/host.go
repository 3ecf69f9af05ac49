// Package host abstracts the slicer application whose scene is photographed.
//
// The orchestrator only needs a handful of capabilities from the slicer:
// applying settings, loading a mesh, slicing, switching between solid and
// layer view, moving the layer sliders and taking a snapshot. Host captures
// exactly those, so tests can substitute a fake and the real slicer can be
// reached through a bridge (see RemoteHost and NewHandler).
package host

import (
	"context"
	"errors"
	"fmt"
	"image"

	"github.com/ivlev/guideshots/internal/guide"
)

// ErrHostOperation is the category of every failure reported by a Host.
var ErrHostOperation = errors.New("host operation failed")

// Method names, shared by the wire protocol and the test recorder.
const (
	MethodConfigureSettings = "configure_settings"
	MethodLoadMesh          = "load_mesh"
	MethodSlice             = "slice"
	MethodSolidView         = "switch_to_solid_view"
	MethodLayerView         = "switch_to_layer_view"
	MethodNavigateLayerView = "navigate_layer_view"
	MethodSnapshot          = "snapshot"
)

// Host is the single scene the orchestrator drives. Implementations are not
// expected to be safe for concurrent use by several orchestrators.
type Host interface {
	ConfigureSettings(ctx context.Context, settings map[string]any) error
	// LoadMesh replaces the scene contents with the mesh at path.
	LoadMesh(ctx context.Context, path string) error
	Slice(ctx context.Context) error
	SwitchToSolidView(ctx context.Context) error
	SwitchToLayerView(ctx context.Context) error
	// NavigateLayerView moves the sliders; line 0 shows the whole layer.
	NavigateLayerView(ctx context.Context, layer, line int) error
	Snapshot(ctx context.Context, camera guide.Camera, width, height int) (image.Image, error)
}

// OperationError is a failed host call.
type OperationError struct {
	Method string
	Err    error
}

func (e *OperationError) Error() string {
	return fmt.Sprintf("host %s: %v", e.Method, e.Err)
}

func (e *OperationError) Unwrap() []error {
	return []error{ErrHostOperation, e.Err}
}
