package engine

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/ivlev/guideshots/internal/guide"
	"github.com/ivlev/guideshots/internal/system"
)

// Output is one refreshed image or animation.
type Output struct {
	Image    string // image_path as written in the article
	Path     string // file that was written
	Location guide.Location
	Frames   int
	Elapsed  time.Duration
}

// Report summarises a refresh run. Failures holds one error per failed
// instruction, in the order they happened.
type Report struct {
	RunID        string
	Articles     int
	Instructions int
	Frames       int

	Refreshed []Output
	Failures  []error

	Total    time.Duration
	HostTime time.Duration
	ToolTime time.Duration

	// Resources is filled when stats are enabled.
	Resources *system.Resources
}

// Err joins all failures; nil when every instruction was refreshed.
func (r *Report) Err() error {
	return errors.Join(r.Failures...)
}

func (r *Report) Print(w io.Writer, build string) {
	fmt.Fprintf(w,
		"--- [REFRESH REPORT] ---\n"+
			"Build: %s\n"+
			"Run: %s\n"+
			"Articles: %d | Instructions: %d | Frames: %d\n"+
			"Refreshed: %d | Failed: %d\n"+
			"Total Time: %.2fs\n"+
			"Host (scene/slicer): %.2fs\n"+
			"External tools: %.2fs\n",
		build, r.RunID,
		r.Articles, r.Instructions, r.Frames,
		len(r.Refreshed), len(r.Failures),
		r.Total.Seconds(), r.HostTime.Seconds(), r.ToolTime.Seconds(),
	)
	if r.Resources != nil {
		fmt.Fprintf(w,
			"Memory: %s available of %s (%.1f%% used)\n"+
				"Scratch disk: %s free of %s\n",
			system.FormatBytes(r.Resources.MemAvailable), system.FormatBytes(r.Resources.MemTotal), r.Resources.MemUsed,
			system.FormatBytes(r.Resources.DiskFree), system.FormatBytes(r.Resources.DiskTotal),
		)
	}
	fmt.Fprintln(w, "------------------------")
}

// AppendLog adds a one-line summary of the run to the file at path.
func (r *Report) AppendLog(path, build string, at time.Time) error {
	entry := fmt.Sprintf("[%s] Build: %s | Run: %s | Articles: %d | Instructions: %d | Frames: %d | Failed: %d | Total: %.2fs | Host: %.2fs | Tools: %.2fs\n",
		at.Format("2006-01-02 15:04:05"),
		build, r.RunID,
		r.Articles, r.Instructions, r.Frames, len(r.Failures),
		r.Total.Seconds(), r.HostTime.Seconds(), r.ToolTime.Seconds(),
	)

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.WriteString(entry); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
