package system

import (
	"context"
	"fmt"
	"runtime"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/aggressionjsk/ai-saas-app/internal/failure"
)

// Stats is a point-in-time view of host resources.
type Stats struct {
	TotalMB     uint64  `json:"total_mb"`
	AvailableMB uint64  `json:"available_mb"`
	UsedPercent float64 `json:"used_percent"`
	CPUs        int     `json:"cpus"`
	Goroutines  int     `json:"goroutines"`
}

// Admission refuses new animation sessions when the host is short of
// memory. A zero MinFreeMB admits everything.
type Admission struct {
	MinFreeMB uint64

	// memory is replaced in tests.
	memory func(ctx context.Context) (*mem.VirtualMemoryStat, error)
}

func NewAdmission(minFreeMB uint64) *Admission {
	return &Admission{MinFreeMB: minFreeMB, memory: mem.VirtualMemoryWithContext}
}

// Check returns an Overloaded failure when available memory is below the
// threshold. Read errors admit the request.
func (a *Admission) Check(ctx context.Context) error {
	if a == nil || a.MinFreeMB == 0 {
		return nil
	}
	vm, err := a.memory(ctx)
	if err != nil {
		return nil
	}
	avail := vm.Available >> 20
	if avail < a.MinFreeMB {
		return failure.New(failure.KindOverloaded, "system.admission",
			fmt.Errorf("%d MiB available, %d MiB required", avail, a.MinFreeMB))
	}
	return nil
}

// Snapshot collects host statistics for the health endpoint.
func Snapshot(ctx context.Context) (Stats, error) {
	st := Stats{Goroutines: runtime.NumGoroutine()}
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return st, fmt.Errorf("read memory: %w", err)
	}
	st.TotalMB = vm.Total >> 20
	st.AvailableMB = vm.Available >> 20
	st.UsedPercent = vm.UsedPercent

	if n, err := cpu.CountsWithContext(ctx, true); err == nil {
		st.CPUs = n
	} else {
		st.CPUs = runtime.NumCPU()
	}
	return st, nil
}
