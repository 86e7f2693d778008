package planner

import (
	"context"
	"runtime"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/mem"
)

// DefaultMemoryBudget is the per-worker budget when available memory
// cannot be read.
const DefaultMemoryBudget int64 = 256 << 20

// Resources is a snapshot of the host capacity relevant to a run. Zero
// fields mean the value could not be read.
type Resources struct {
	CPUs            int
	AvailableMemory uint64
	OutputFree      uint64 // Free bytes on the output directory's filesystem.
	TempFree        uint64 // Free bytes on the temp directory's filesystem.
}

// DetectResources reads CPU, memory and disk capacity. Errors are absorbed:
// a field that cannot be read stays zero.
func DetectResources(ctx context.Context, outputDir, tempDir string) Resources {
	var r Resources
	if n, err := cpu.CountsWithContext(ctx, true); err == nil && n > 0 {
		r.CPUs = n
	} else {
		r.CPUs = runtime.NumCPU()
	}
	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		r.AvailableMemory = vm.Available
	}
	if outputDir != "" {
		if u, err := disk.UsageWithContext(ctx, outputDir); err == nil {
			r.OutputFree = u.Free
		}
	}
	if tempDir != "" {
		if u, err := disk.UsageWithContext(ctx, tempDir); err == nil {
			r.TempFree = u.Free
		}
	}
	return r
}

// Workers returns requested when positive, otherwise one per CPU, capped
// at sessions (and never below one).
func (r Resources) Workers(requested, sessions int) int {
	n := requested
	if n <= 0 {
		n = r.CPUs
	}
	if sessions > 0 && n > sessions {
		n = sessions
	}
	return max(n, 1)
}

// MemoryBudget returns requested when positive. Otherwise a quarter of
// available memory is split evenly across workers, falling back to
// DefaultMemoryBudget when memory is unknown.
func (r Resources) MemoryBudget(requested int64, workers int) int64 {
	if requested > 0 {
		return requested
	}
	if r.AvailableMemory == 0 {
		return DefaultMemoryBudget
	}
	return int64(r.AvailableMemory/4) / int64(max(workers, 1))
}

// IntermediateBytes is the temp space one session needs in file mode: one
// packed RGB24 file per side.
func IntermediateBytes(frameSize int64, frames int) int64 {
	return 2 * 3 * frameSize * int64(frames)
}
