package engine

import (
	"errors"
	"fmt"

	"github.com/ivlev/guideshots/internal/guide"
	"github.com/ivlev/guideshots/internal/host"
	"github.com/ivlev/guideshots/internal/tools"
)

// Error categories. Every failure reported by a Refresher matches exactly one
// of them with errors.Is.
var (
	ErrParse         = guide.ErrParse
	ErrHostOperation = host.ErrHostOperation
	ErrExternalTool  = tools.ErrExternalTool
	ErrFileSystem    = errors.New("file system error")
)

// Stage names the step of the pipeline that failed.
type Stage string

const (
	StageSettings      Stage = "settings"
	StageConvert       Stage = "convert"
	StageLoad          Stage = "load"
	StageSlice         Stage = "slice"
	StageView          Stage = "view"
	StageSnapshot      Stage = "snapshot"
	StageSave          Stage = "save"
	StageMergeGIF      Stage = "merge_gif"
	StageOptimiseGIF   Stage = "optimise_gif"
	StageReducePalette Stage = "reduce_palette"
	StageOptimisePNG   Stage = "optimise_png"
)

// StageError ties a failure to the instruction and the stage it came from.
type StageError struct {
	Stage    Stage
	Image    string
	Location guide.Location
	Err      error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s (%s): %s: %v", e.Image, e.Location, e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

func fsError(err error) error {
	return fmt.Errorf("%w: %w", ErrFileSystem, err)
}
