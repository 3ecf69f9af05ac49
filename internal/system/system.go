// Package system reports host resources relevant to a refresh run: memory for
// the slicer and free space where scratch meshes and frames are written.
package system

import (
	"context"
	"fmt"
	"os"
	"runtime"

	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"
)

type Resources struct {
	CPUs int

	MemTotal     uint64
	MemAvailable uint64
	MemUsed      float64 // percent

	DiskPath  string
	DiskTotal uint64
	DiskFree  uint64
}

// Sample collects memory stats and the usage of the filesystem holding dir.
// An empty dir means the system temp directory.
func Sample(ctx context.Context, dir string) (Resources, error) {
	if dir == "" {
		dir = os.TempDir()
	}
	res := Resources{CPUs: runtime.NumCPU(), DiskPath: dir}

	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return res, fmt.Errorf("read memory stats: %w", err)
	}
	res.MemTotal = vm.Total
	res.MemAvailable = vm.Available
	res.MemUsed = vm.UsedPercent

	du, err := disk.UsageWithContext(ctx, dir)
	if err != nil {
		return res, fmt.Errorf("read disk usage of %s: %w", dir, err)
	}
	res.DiskTotal = du.Total
	res.DiskFree = du.Free

	return res, nil
}

func (r Resources) String() string {
	return fmt.Sprintf("cpus=%d mem=%s/%s (%.1f%% used) disk[%s]=%s free of %s",
		r.CPUs, FormatBytes(r.MemAvailable), FormatBytes(r.MemTotal), r.MemUsed,
		r.DiskPath, FormatBytes(r.DiskFree), FormatBytes(r.DiskTotal))
}

// FormatBytes renders n with a binary unit, e.g. 1.5 GiB.
func FormatBytes(n uint64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := uint64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
