package tools

import (
	"context"
	"errors"
	"fmt"
	"os/exec"

	"golang.org/x/sync/errgroup"
)

// ToolStatus is the result of looking up one executable.
type ToolStatus struct {
	Name string
	Path string
	Err  error
}

// Preflight resolves every executable the table needs. All lookups run; the
// returned error joins every missing tool.
func Preflight(ctx context.Context, table Table) ([]ToolStatus, error) {
	names := table.Executables()
	statuses := make([]ToolStatus, len(names))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, name := range names {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			path, err := exec.LookPath(name)
			statuses[i] = ToolStatus{Name: name, Path: path}
			if err != nil {
				statuses[i].Err = fmt.Errorf("%w: %s", ErrToolNotFound, name)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return statuses, err
	}

	var errs []error
	for _, s := range statuses {
		if s.Err != nil {
			errs = append(errs, s.Err)
		}
	}
	return statuses, errors.Join(errs...)
}
