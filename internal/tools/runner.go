package tools

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"github.com/kballard/go-shellquote"
)

var (
	// ErrExternalTool is the category of every error returned by Runner.
	ErrExternalTool = errors.New("external tool failed")

	ErrToolNotFound     = errors.New("executable not found")
	ErrToolTimeout      = errors.New("tool timed out")
	ErrToolFailed       = errors.New("tool exited with an error")
	ErrUnknownOperation = errors.New("unknown operation")
)

// maxOutput bounds how much tool output is kept in an error message.
const maxOutput = 4096

// Executor runs one operation of the template table to completion.
type Executor interface {
	Run(ctx context.Context, op Operation, args Args) error
}

// ToolError identifies the operation, stage and command line that failed.
type ToolError struct {
	Op     Operation
	Stage  int
	Argv   []string
	Output string
	Err    error
}

func (e *ToolError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %v", e.Op, e.Err)
	if len(e.Argv) > 0 {
		fmt.Fprintf(&b, " [%s]", shellquote.Join(e.Argv...))
	}
	if e.Output != "" {
		fmt.Fprintf(&b, ", output: %s", e.Output)
	}
	return b.String()
}

func (e *ToolError) Unwrap() []error {
	return []error{ErrExternalTool, e.Err}
}

// Runner executes templates as child processes, one stage at a time, each
// under its own timeout.
type Runner struct {
	Table   Table
	Timeout time.Duration
	Logger  *slog.Logger
}

func NewRunner(table Table, timeout time.Duration, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Runner{Table: table, Timeout: timeout, Logger: logger}
}

func (r *Runner) Run(ctx context.Context, op Operation, args Args) error {
	tmpl, ok := r.Table[op]
	if !ok {
		return &ToolError{Op: op, Err: ErrUnknownOperation}
	}
	stages, err := tmpl.Render(args)
	if err != nil {
		return &ToolError{Op: op, Err: err}
	}

	for i, argv := range stages {
		if err := r.exec(ctx, op, i, argv); err != nil {
			return err
		}
	}
	return nil
}

func (r *Runner) exec(ctx context.Context, op Operation, stage int, argv []string) error {
	runCtx := ctx
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	start := time.Now()
	r.Logger.Debug("run tool", "op", op, "stage", stage, "cmd", shellquote.Join(argv...))

	cmd := exec.CommandContext(runCtx, argv[0], argv[1:]...)
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	// Grandchildren may hold the output pipe open after a kill.
	cmd.WaitDelay = time.Second

	err := cmd.Run()
	if err == nil {
		r.Logger.Debug("tool done", "op", op, "stage", stage, "elapsed", time.Since(start))
		return nil
	}

	te := &ToolError{Op: op, Stage: stage, Argv: argv, Output: truncate(out.String())}
	switch {
	case errors.Is(err, exec.ErrNotFound), errors.Is(err, fs.ErrNotExist):
		te.Err = fmt.Errorf("%w: %s", ErrToolNotFound, argv[0])
	case ctx.Err() != nil:
		// The caller gave up; report that rather than our own timeout.
		te.Err = ctx.Err()
	case errors.Is(runCtx.Err(), context.DeadlineExceeded):
		te.Err = fmt.Errorf("%w after %s", ErrToolTimeout, r.Timeout)
	default:
		te.Err = fmt.Errorf("%w: %v", ErrToolFailed, err)
	}
	return te
}

func truncate(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > maxOutput {
		return s[:maxOutput] + "..."
	}
	return s
}
