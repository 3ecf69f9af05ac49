package host

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image/png"
	"log/slog"
	"net/http"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/ivlev/guideshots/internal/guide"
)

// Handler is the bridge side of the RemoteHost protocol: it serves any Host
// over a websocket. One connection drives the scene at a time.
type Handler struct {
	host   Host
	logger *slog.Logger
	sem    chan struct{}
}

func NewHandler(h Host, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Handler{host: h, logger: logger, sem: make(chan struct{}, 1)}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	select {
	case h.sem <- struct{}{}:
		defer func() { <-h.sem }()
	default:
		http.Error(w, "host is busy", http.StatusConflict)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"localhost", "localhost:*", "127.0.0.1", "127.0.0.1:*"},
	})
	if err != nil {
		h.logger.Warn("websocket accept failed", "error", err)
		return
	}
	conn.SetReadLimit(maxMessage)
	defer conn.Close(websocket.StatusNormalClosure, "")

	ctx := r.Context()
	for {
		var req request
		if err := wsjson.Read(ctx, conn, &req); err != nil {
			if websocket.CloseStatus(err) != websocket.StatusNormalClosure {
				h.logger.Debug("host connection closed", "error", err)
			}
			return
		}

		resp := response{ID: req.ID}
		result, err := h.dispatch(ctx, req)
		if err != nil {
			resp.Error = err.Error()
		} else if result != nil {
			raw, err := json.Marshal(result)
			if err != nil {
				resp.Error = err.Error()
			} else {
				resp.Result = raw
			}
		}

		if err := wsjson.Write(ctx, conn, resp); err != nil {
			h.logger.Warn("write host response failed", "method", req.Method, "error", err)
			return
		}
	}
}

func (h *Handler) dispatch(ctx context.Context, req request) (any, error) {
	switch req.Method {
	case MethodConfigureSettings:
		var p settingsParams
		if err := decodeParams(req, &p); err != nil {
			return nil, err
		}
		return nil, h.host.ConfigureSettings(ctx, p.Settings)
	case MethodLoadMesh:
		var p loadMeshParams
		if err := decodeParams(req, &p); err != nil {
			return nil, err
		}
		return nil, h.host.LoadMesh(ctx, p.Path)
	case MethodSlice:
		return nil, h.host.Slice(ctx)
	case MethodSolidView:
		return nil, h.host.SwitchToSolidView(ctx)
	case MethodLayerView:
		return nil, h.host.SwitchToLayerView(ctx)
	case MethodNavigateLayerView:
		var p navigateParams
		if err := decodeParams(req, &p); err != nil {
			return nil, err
		}
		return nil, h.host.NavigateLayerView(ctx, p.Layer, p.Line)
	case MethodSnapshot:
		var p snapshotParams
		if err := decodeParams(req, &p); err != nil {
			return nil, err
		}
		img, err := h.host.Snapshot(ctx, guide.Camera{Position: p.Position, LookAt: p.LookAt}, p.Width, p.Height)
		if err != nil {
			return nil, err
		}
		var buf bytes.Buffer
		if err := png.Encode(&buf, img); err != nil {
			return nil, fmt.Errorf("encode snapshot: %w", err)
		}
		return snapshotResult{PNG: buf.Bytes()}, nil
	default:
		return nil, fmt.Errorf("unknown method %q", req.Method)
	}
}

func decodeParams(req request, v any) error {
	if len(req.Params) == 0 {
		return fmt.Errorf("%s: missing params", req.Method)
	}
	if err := json.Unmarshal(req.Params, v); err != nil {
		return fmt.Errorf("%s: %w", req.Method, err)
	}
	return nil
}
