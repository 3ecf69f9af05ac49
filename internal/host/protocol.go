package host

import (
	"encoding/json"

	"github.com/ivlev/guideshots/internal/guide"
)

// maxMessage bounds a single websocket message; snapshots travel as PNG.
const maxMessage = 64 << 20

type request struct {
	ID     uint64          `json:"id"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params,omitempty"`
}

type response struct {
	ID     uint64          `json:"id"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  string          `json:"error,omitempty"`
}

type settingsParams struct {
	Settings map[string]any `json:"settings"`
}

type loadMeshParams struct {
	Path string `json:"path"`
}

type navigateParams struct {
	Layer int `json:"layer"`
	Line  int `json:"line"`
}

type snapshotParams struct {
	Position guide.Vec3 `json:"camera_position"`
	LookAt   guide.Vec3 `json:"camera_lookat"`
	Width    int        `json:"width"`
	Height   int        `json:"height"`
}

type snapshotResult struct {
	PNG []byte `json:"png"`
}
