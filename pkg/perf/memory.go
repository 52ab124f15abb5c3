package perf

import (
	"context"
	"os"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v4/process"
)

// MemorySnapshot captures heap statistics and process residency at a point
// in time.
type MemorySnapshot struct {
	// HeapAlloc is bytes of allocated heap objects.
	HeapAlloc uint64

	// HeapSys is bytes of heap memory obtained from the OS.
	HeapSys uint64

	// RSS is the resident set size reported by the OS. Zero when the
	// platform does not expose it.
	RSS uint64

	// NumGC is the number of completed GC cycles.
	NumGC uint32

	// Goroutines is the number of live goroutines.
	Goroutines int

	Time time.Time
}

// Resident returns the best available measure of memory in use: RSS when
// known, otherwise the heap obtained from the OS.
func (s MemorySnapshot) Resident() uint64 {
	if s.RSS > 0 {
		return s.RSS
	}
	return s.HeapSys
}

// MemorySource produces memory snapshots. ReadMemory is the default.
type MemorySource func(ctx context.Context) (MemorySnapshot, error)

// ReadMemory samples the runtime and the current process. A failure to read
// process residency is returned alongside a snapshot that still carries the
// runtime figures.
func ReadMemory(ctx context.Context) (MemorySnapshot, error) {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	snap := MemorySnapshot{
		HeapAlloc:  ms.HeapAlloc,
		HeapSys:    ms.HeapSys,
		NumGC:      ms.NumGC,
		Goroutines: runtime.NumGoroutine(),
		Time:       time.Now(),
	}

	p, err := process.NewProcessWithContext(ctx, int32(os.Getpid()))
	if err != nil {
		return snap, err
	}
	mi, err := p.MemoryInfoWithContext(ctx)
	if err != nil {
		return snap, err
	}
	snap.RSS = mi.RSS
	return snap, nil
}
