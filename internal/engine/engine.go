// Package engine refreshes the screenshots embedded in guide articles. It
// drives one host scene through every instruction in order and hands the
// captured frames to the external image tools.
package engine

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel/attribute"

	"github.com/ivlev/guideshots/internal/analyzer"
	"github.com/ivlev/guideshots/internal/config"
	"github.com/ivlev/guideshots/internal/guide"
	"github.com/ivlev/guideshots/internal/host"
	"github.com/ivlev/guideshots/internal/logger"
	"github.com/ivlev/guideshots/internal/snapshot"
	"github.com/ivlev/guideshots/internal/system"
	"github.com/ivlev/guideshots/internal/tools"
	"github.com/ivlev/guideshots/internal/tracer"
)

// Refresher owns the host scene for the duration of a run. It is not safe for
// concurrent use: instructions mutate one shared scene.
type Refresher struct {
	Config  *config.Config
	Host    host.Host
	Tools   tools.Executor
	Checker analyzer.Checker
	Logger  *slog.Logger
}

func NewRefresher(cfg *config.Config, h host.Host, ex tools.Executor, checker analyzer.Checker, log *slog.Logger) *Refresher {
	if checker == nil {
		checker = analyzer.None{}
	}
	if log == nil {
		log = logger.Discard()
	}
	return &Refresher{Config: cfg, Host: h, Tools: ex, Checker: checker, Logger: log}
}

// RefreshArticle refreshes every instruction of one article.
func (r *Refresher) RefreshArticle(ctx context.Context, article guide.Article) (*Report, error) {
	return r.RefreshAll(ctx, []guide.Article{article})
}

// RefreshAll refreshes the articles in order. A failed instruction is
// recorded and the run moves on; the returned error joins all failures.
// Only cancellation of ctx stops the run early.
func (r *Refresher) RefreshAll(ctx context.Context, articles []guide.Article) (*Report, error) {
	start := time.Now()
	rep := &Report{RunID: ulid.Make().String()}
	st := &runState{report: rep, logger: r.Logger.With("run", rep.RunID)}

	ctx, span := tracer.StartSpan(ctx, "refresh", attribute.String("run.id", rep.RunID))

	for _, article := range articles {
		if ctx.Err() != nil {
			break
		}
		rep.Articles++
		r.refreshArticle(ctx, st, article)
	}
	if err := ctx.Err(); err != nil {
		rep.Failures = append(rep.Failures, fmt.Errorf("refresh interrupted: %w", err))
	}

	rep.Total = time.Since(start)
	if r.Config.ShowStats {
		res, err := system.Sample(ctx, r.Config.ScratchDir)
		if err != nil {
			st.logger.Warn("resource stats unavailable", "error", err)
		} else {
			rep.Resources = &res
		}
	}

	err := rep.Err()
	tracer.End(span, err)
	st.logger.Info("refresh finished",
		"articles", rep.Articles,
		"instructions", rep.Instructions,
		"refreshed", len(rep.Refreshed),
		"failed", len(rep.Failures),
		"elapsed", rep.Total)
	return rep, err
}

type runState struct {
	report *Report
	logger *slog.Logger
}

func (r *Refresher) refreshArticle(ctx context.Context, st *runState, article guide.Article) {
	ctx, span := tracer.StartSpan(ctx, "refresh.article", attribute.String("article", article.Name))
	failed := len(st.report.Failures)

	for inst, err := range article.Instructions() {
		if ctx.Err() != nil {
			break
		}
		if err != nil {
			st.logger.Warn("skipping malformed instruction", "error", err)
			st.report.Failures = append(st.report.Failures, err)
			continue
		}

		st.report.Instructions++
		out, err := r.refreshInstruction(ctx, st, inst)
		if err != nil {
			st.logger.Error("instruction failed", "image", inst.ImagePath, "location", inst.Location.String(), "error", err)
			st.report.Failures = append(st.report.Failures, err)
			continue
		}
		st.logger.Info("refreshed", "image", out.Image, "frames", out.Frames, "elapsed", out.Elapsed)
		st.report.Refreshed = append(st.report.Refreshed, out)
	}

	var err error
	if n := len(st.report.Failures) - failed; n > 0 {
		err = fmt.Errorf("%d failures in %s", n, article.Name)
	}
	tracer.End(span, err)
}

func (r *Refresher) refreshInstruction(ctx context.Context, st *runState, inst guide.ScreenshotInstruction) (out Output, err error) {
	start := time.Now()
	ctx, span := tracer.StartSpan(ctx, "refresh.instruction",
		attribute.String("image_path", inst.ImagePath),
		attribute.String("location", inst.Location.String()))
	defer func() { tracer.End(span, err) }()

	fail := func(stage Stage, err error) error {
		return &StageError{Stage: stage, Image: inst.ImagePath, Location: inst.Location, Err: err}
	}

	frames, err := inst.Frames()
	if err != nil {
		return out, &guide.ParseError{Location: inst.Location, Err: err}
	}
	animation := inst.IsAnimation()

	if err := st.host(func() error { return r.Host.ConfigureSettings(ctx, inst.Settings) }); err != nil {
		return out, fail(StageSettings, err)
	}

	model := r.Config.ModelPath(inst.ModelPath)
	if _, err := os.Stat(model); err != nil {
		return out, fail(StageConvert, fsError(err))
	}

	scratch, err := os.MkdirTemp(r.Config.ScratchDir, "guideshots-")
	if err != nil {
		return out, fail(StageConvert, fsError(err))
	}
	if r.Config.KeepScratch {
		st.logger.Debug("keeping scratch directory", "image", inst.ImagePath, "dir", scratch)
	} else {
		defer os.RemoveAll(scratch)
	}

	mesh := filepath.Join(scratch, "model.stl")
	if err := st.tool(ctx, r.Tools, tools.OpOpenSCAD, tools.Args{Input: model, Output: mesh}); err != nil {
		return out, fail(StageConvert, err)
	}
	if err := st.host(func() error { return r.Host.LoadMesh(ctx, mesh) }); err != nil {
		return out, fail(StageLoad, err)
	}

	sliced := false
	paths := make([]string, 0, len(frames))
	for _, f := range frames {
		if f.SolidView() {
			if err := st.host(func() error { return r.Host.SwitchToSolidView(ctx) }); err != nil {
				return out, fail(StageView, err)
			}
		} else {
			// Layer data exists only after slicing; the scene does not change
			// between frames, so one slice serves them all.
			if !sliced {
				if err := st.host(func() error { return r.Host.Slice(ctx) }); err != nil {
					return out, fail(StageSlice, err)
				}
				sliced = true
			}
			err := st.host(func() error {
				if err := r.Host.SwitchToLayerView(ctx); err != nil {
					return err
				}
				return r.Host.NavigateLayerView(ctx, f.Layer, f.Line)
			})
			if err != nil {
				return out, fail(StageView, err)
			}
		}

		path, err := r.capture(ctx, st, inst, f, scratch, animation)
		if err != nil {
			return out, err
		}
		paths = append(paths, path)
	}

	output := r.Config.ImagePath(inst.ImagePath)
	if err := os.MkdirAll(filepath.Dir(output), 0o755); err != nil {
		return out, fail(StageSave, fsError(err))
	}

	if animation {
		merge := tools.Args{Inputs: paths, Output: output, Colours: inst.Colours, Delay: inst.Delay}
		if err := st.tool(ctx, r.Tools, tools.OpMergeGIF, merge); err != nil {
			return out, fail(StageMergeGIF, err)
		}
		if err := st.tool(ctx, r.Tools, tools.OpOptimiseGIF, tools.Args{Input: output}); err != nil {
			return out, fail(StageOptimiseGIF, err)
		}
	} else {
		reduced := filepath.Join(scratch, "reduced.png")
		reduce := tools.Args{Input: paths[0], Output: reduced, Colours: inst.Colours}
		if err := st.tool(ctx, r.Tools, tools.OpReducePalette, reduce); err != nil {
			return out, fail(StageReducePalette, err)
		}
		if err := st.tool(ctx, r.Tools, tools.OpOptimisePNG, tools.Args{Input: reduced, Output: output}); err != nil {
			return out, fail(StageOptimisePNG, err)
		}
	}

	st.report.Frames += len(frames)
	return Output{
		Image:    inst.ImagePath,
		Path:     output,
		Location: inst.Location,
		Frames:   len(frames),
		Elapsed:  time.Since(start),
	}, nil
}

// capture takes the snapshot for one frame, checks it and writes it to disk.
func (r *Refresher) capture(ctx context.Context, st *runState, inst guide.ScreenshotInstruction, f guide.Frame, scratch string, animation bool) (string, error) {
	fail := func(stage Stage, err error) error {
		return &StageError{Stage: stage, Image: inst.ImagePath, Location: inst.Location, Err: err}
	}

	var img image.Image
	if err := st.host(func() error {
		var err error
		img, err = r.Host.Snapshot(ctx, inst.Camera(), inst.Width, inst.Height)
		return err
	}); err != nil {
		return "", fail(StageSnapshot, err)
	}

	check, err := r.Checker.Check(img)
	if err == nil {
		err = check.Err()
	}
	if err != nil {
		return "", fail(StageSnapshot, fmt.Errorf("%w: frame %d: %w", ErrHostOperation, f.Index, err))
	}
	if check.Clipped {
		st.logger.Warn("model touches the frame border", "image", inst.ImagePath, "frame", f.Index, "content", check.Content.String(), "regions", check.Regions)
	}

	path := r.framePath(inst, f.Index, scratch, animation)
	if err := snapshot.Save(img, path, inst.Width, inst.Height); err != nil {
		return "", fail(StageSave, fsError(err))
	}
	return path, nil
}

// framePath is where a captured frame is written before post-processing.
func (r *Refresher) framePath(inst guide.ScreenshotInstruction, idx int, scratch string, animation bool) string {
	switch {
	case !animation:
		return filepath.Join(scratch, "capture.png")
	case r.Config.LegacyFrameNames:
		return r.Config.ImagePath(FrameName(inst.ImagePath, idx, true))
	default:
		return filepath.Join(scratch, filepath.Base(FrameName(inst.ImagePath, idx, false)))
	}
}

// host runs one or more scene calls, accounting their time to the host.
func (st *runState) host(fn func() error) error {
	start := time.Now()
	err := fn()
	st.report.HostTime += time.Since(start)
	if err != nil && !errors.Is(err, ErrHostOperation) {
		err = fmt.Errorf("%w: %w", ErrHostOperation, err)
	}
	return err
}

func (st *runState) tool(ctx context.Context, ex tools.Executor, op tools.Operation, args tools.Args) error {
	start := time.Now()
	err := ex.Run(ctx, op, args)
	st.report.ToolTime += time.Since(start)
	if err != nil && !errors.Is(err, ErrExternalTool) {
		err = fmt.Errorf("%w: %s: %w", ErrExternalTool, op, err)
	}
	return err
}
