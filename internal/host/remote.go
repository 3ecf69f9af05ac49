package host

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/png"
	"sync"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/ivlev/guideshots/internal/guide"
)

// RemoteHost talks to a bridge running inside the slicer over a websocket.
// Calls are serialized: the bridge drives one scene. A single reader owns the
// connection and hands each response to the call waiting for its id, so a
// call that gives up does not take the connection down with it.
type RemoteHost struct {
	conn    *websocket.Conn
	timeout time.Duration

	callMu sync.Mutex // one call in flight

	mu      sync.Mutex
	nextID  uint64
	pending map[uint64]chan response

	cancel  context.CancelFunc
	done    chan struct{}
	readErr error // set before done is closed
}

// Dial connects to the bridge at url (ws:// or wss://). timeout bounds every
// call; slicing a large model is the slowest one.
func Dial(ctx context.Context, url string, timeout time.Duration) (*RemoteHost, error) {
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("connect to host %s: %w", url, err)
	}
	conn.SetReadLimit(maxMessage)

	connCtx, cancel := context.WithCancel(context.Background())
	h := &RemoteHost{
		conn:    conn,
		timeout: timeout,
		pending: make(map[uint64]chan response),
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	go h.readLoop(connCtx)
	return h, nil
}

func (h *RemoteHost) Close() error {
	err := h.conn.Close(websocket.StatusNormalClosure, "")
	h.cancel()
	<-h.done
	return err
}

func (h *RemoteHost) readLoop(ctx context.Context) {
	defer close(h.done)
	for {
		var resp response
		if err := wsjson.Read(ctx, h.conn, &resp); err != nil {
			h.readErr = err
			return
		}

		h.mu.Lock()
		ch, ok := h.pending[resp.ID]
		delete(h.pending, resp.ID)
		h.mu.Unlock()

		// No waiter: a late answer to a call that already gave up.
		if ok {
			ch <- resp
		}
	}
}

func (h *RemoteHost) ConfigureSettings(ctx context.Context, settings map[string]any) error {
	return h.call(ctx, MethodConfigureSettings, settingsParams{Settings: settings}, nil)
}

func (h *RemoteHost) LoadMesh(ctx context.Context, path string) error {
	return h.call(ctx, MethodLoadMesh, loadMeshParams{Path: path}, nil)
}

func (h *RemoteHost) Slice(ctx context.Context) error {
	return h.call(ctx, MethodSlice, nil, nil)
}

func (h *RemoteHost) SwitchToSolidView(ctx context.Context) error {
	return h.call(ctx, MethodSolidView, nil, nil)
}

func (h *RemoteHost) SwitchToLayerView(ctx context.Context) error {
	return h.call(ctx, MethodLayerView, nil, nil)
}

func (h *RemoteHost) NavigateLayerView(ctx context.Context, layer, line int) error {
	return h.call(ctx, MethodNavigateLayerView, navigateParams{Layer: layer, Line: line}, nil)
}

func (h *RemoteHost) Snapshot(ctx context.Context, camera guide.Camera, width, height int) (image.Image, error) {
	var res snapshotResult
	params := snapshotParams{Position: camera.Position, LookAt: camera.LookAt, Width: width, Height: height}
	if err := h.call(ctx, MethodSnapshot, params, &res); err != nil {
		return nil, err
	}
	img, err := png.Decode(bytes.NewReader(res.PNG))
	if err != nil {
		return nil, &OperationError{Method: MethodSnapshot, Err: fmt.Errorf("decode snapshot: %w", err)}
	}
	return img, nil
}

func (h *RemoteHost) call(ctx context.Context, method string, params, result any) error {
	h.callMu.Lock()
	defer h.callMu.Unlock()

	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}
	if err := ctx.Err(); err != nil {
		return &OperationError{Method: method, Err: err}
	}

	ch := make(chan response, 1)
	h.mu.Lock()
	h.nextID++
	req := request{ID: h.nextID, Method: method}
	h.pending[req.ID] = ch
	h.mu.Unlock()
	defer func() {
		h.mu.Lock()
		delete(h.pending, req.ID)
		h.mu.Unlock()
	}()

	if params != nil {
		raw, err := json.Marshal(params)
		if err != nil {
			return &OperationError{Method: method, Err: err}
		}
		req.Params = raw
	}

	// The write is not bound to ctx: cancelling a websocket write closes the
	// connection. Requests are small, so it does not block for long.
	select {
	case <-h.done:
		return h.closedError(method)
	default:
	}
	if err := wsjson.Write(context.Background(), h.conn, req); err != nil {
		return &OperationError{Method: method, Err: err}
	}

	var resp response
	select {
	case resp = <-ch:
	case <-ctx.Done():
		return &OperationError{Method: method, Err: fmt.Errorf("no answer: %w", ctx.Err())}
	case <-h.done:
		return h.closedError(method)
	}

	if resp.Error != "" {
		return &OperationError{Method: method, Err: errors.New(resp.Error)}
	}
	if result != nil {
		if err := json.Unmarshal(resp.Result, result); err != nil {
			return &OperationError{Method: method, Err: fmt.Errorf("decode result: %w", err)}
		}
	}
	return nil
}

func (h *RemoteHost) closedError(method string) error {
	return &OperationError{Method: method, Err: fmt.Errorf("connection closed: %w", h.readErr)}
}
