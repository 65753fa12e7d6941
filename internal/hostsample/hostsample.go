// Package hostsample captures a local, best-effort process/host
// diagnostic snapshot alongside a published Sample. It is not part of
// the Application/Monitor protocol — a CPU%/RSS reading never crosses
// the wire — it exists so a driver can log or export what the host was
// doing during a given window without re-deriving it from loadPercentage.
package hostsample

import (
	"fmt"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/process"
)

// Snapshot is a point-in-time diagnostic reading for the instrumented
// process.
type Snapshot struct {
	PID          int
	ProcessCPU   float64
	HostCPU      float64
	RSSBytes     uint64
	NumGoroutine int
}

// Take reads the current process's CPU% and RSS, plus host-wide CPU%,
// for pid. Any individual reading that fails is left at its zero value
// rather than aborting the whole snapshot — this is diagnostic data,
// not part of the sampled protocol, so partial information beats none.
func Take(pid int) (Snapshot, error) {
	s := Snapshot{PID: pid}

	if hostPct, err := cpu.Percent(0, false); err == nil && len(hostPct) > 0 {
		s.HostCPU = hostPct[0]
	}

	proc, err := process.NewProcess(int32(pid))
	if err != nil {
		return s, fmt.Errorf("hostsample: process %d not found: %w", pid, err)
	}

	if pct, err := proc.CPUPercent(); err == nil {
		s.ProcessCPU = pct
	}
	if memInfo, err := proc.MemoryInfo(); err == nil && memInfo != nil {
		s.RSSBytes = memInfo.RSS
	}
	if n, err := proc.NumThreads(); err == nil {
		s.NumGoroutine = int(n)
	}

	return s, nil
}
